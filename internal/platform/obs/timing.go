package obs

import (
	"context"
	"load-tracking-service/internal/platform/logger"
	"time"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

// WithRequestID returns a copy of ctx tagged with a request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID returns the request id carried by ctx, if any.
func RequestID(ctx context.Context) string {
	reqID, _ := ctx.Value(RequestIDKey).(string)
	return reqID
}

// Time logs how long the named operation took. Use as
// defer obs.Time(ctx, "op")(&err).
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	log := logger.FromContext(ctx)
	reqID := RequestID(ctx)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			log.Warning("op failed",
				logger.String("req_id", reqID),
				logger.String("op", name),
				logger.Int64("dur_ms", dur.Milliseconds()),
				logger.Error(*errp),
			)
			return
		}
		log.Debug("op done",
			logger.String("req_id", reqID),
			logger.String("op", name),
			logger.Int64("dur_ms", dur.Milliseconds()),
		)
	}
}
