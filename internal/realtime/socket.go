package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"load-tracking-service/internal/domain"
	"load-tracking-service/internal/platform/auth"
	"load-tracking-service/internal/platform/logger"
	"load-tracking-service/internal/ports"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"golang.org/x/net/websocket"
)

// Inbound frame types.
const (
	FrameJoinLoad             = "join_load"
	FrameLeaveLoad            = "leave_load"
	FrameDriverLocationUpdate = "driver_location_update"
)

const (
	subscriberBuffer       = 64
	maxDecodeErrorsPerConn = 5
	maxFramesPerSecond     = 20
	writeTimeout           = 10 * time.Second
)

// Loads is the slice of the lifecycle engine the socket needs.
type Loads interface {
	Join(ctx context.Context, ownerID, id string) (*domain.Load, error)
	UpdateLocation(ctx context.Context, id string, lat, lng *float64) (*domain.Load, domain.Position, error)
}

type socketServer struct {
	hub      *Hub
	loads    Loads
	verifier *auth.Verifier
	log      logger.ILogger
}

// NewSocketHandler serves the realtime protocol on a websocket. With a
// non-nil verifier every connection must present a valid bearer token.
func NewSocketHandler(hub *Hub, loads Loads, verifier *auth.Verifier, log logger.ILogger) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	s := &socketServer{hub: hub, loads: loads, verifier: verifier, log: log}

	wsHandler := websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   s.handleConn,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if s.verifier != nil {
			token := auth.TokenFromRequest(r)
			if token == "" {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			p, err := s.verifier.Verify(token)
			if err != nil {
				s.log.Info("websocket unauthorized", logger.String("remote", r.RemoteAddr), logger.Error(err))
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			r = r.WithContext(auth.WithPrincipal(r.Context(), p))
		}

		wsHandler.ServeHTTP(w, r)
	})
}

func (s *socketServer) handleConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := context.Background()
	if req := conn.Request(); req != nil {
		ctx = req.Context()
	}
	principal, _ := auth.FromContext(ctx)
	ctx = logger.WithContext(ctx, s.log.With(logger.String("user_id", principal.UserID)))

	sub := NewSubscriber(uuid.NewString(), subscriberBuffer)
	s.hub.Register(sub)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writeLoop(conn, sub)
	}()

	defer func() {
		s.hub.Unregister(sub)
		sub.Close()
		<-writerDone
	}()

	decoder := json.NewDecoder(conn)
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame Frame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case <-sub.Done():
				return
			default:
			}
			decodeErrors++
			sendError(sub, "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			decoder = json.NewDecoder(conn)
			continue
		}
		decodeErrors = 0

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			sendError(sub, "rate limit exceeded")
			return
		}

		switch frame.Type {
		case FrameJoinLoad:
			s.handleJoin(ctx, sub, principal, frame)
		case FrameLeaveLoad:
			s.handleLeave(sub, frame)
		case FrameDriverLocationUpdate:
			s.handleLocation(ctx, sub, frame)
		default:
			sendError(sub, "unsupported frame type")
		}
	}
}

// writeLoop drains the subscriber queue onto the socket until either side
// goes away. Frames already queued when the subscriber closes are flushed.
func writeLoop(conn *websocket.Conn, sub *Subscriber) {
	send := func(f Frame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return websocket.JSON.Send(conn, f) == nil
	}

	for {
		select {
		case f := <-sub.Frames():
			if !send(f) {
				sub.Close()
				_ = conn.Close()
				return
			}
		case <-sub.Done():
			for {
				select {
				case f := <-sub.Frames():
					if !send(f) {
						_ = conn.Close()
						return
					}
				default:
					_ = conn.Close()
					return
				}
			}
		}
	}
}

func (s *socketServer) handleJoin(ctx context.Context, sub *Subscriber, p auth.Principal, frame Frame) {
	loadID, err := parseLoadID(frame.Payload)
	if err != nil {
		sendError(sub, "loadId is required")
		return
	}

	err = s.hub.Join(loadID, sub, func() (int, []Frame, error) {
		l, err := s.loads.Join(ctx, p.UserID, loadID)
		if err != nil {
			return 0, nil, err
		}

		frames := []Frame{{Type: ports.EventLoadDetails, Payload: mustJSON(l)}}
		if l.DriverLocation != nil {
			frames = append(frames, Frame{Type: ports.EventLocationUpdate, Payload: mustJSON(l.DriverLocation)})
		}
		return l.Seq(), frames, nil
	})
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrForbidden):
		sendError(sub, "Access denied to this load")
	case errors.Is(err, domain.ErrNotFound):
		sendError(sub, "Load not found")
	default:
		logger.FromContext(ctx).Error("join load failed", logger.String("load_id", loadID), logger.Error(err))
		sendError(sub, "Failed to join load")
	}
}

func (s *socketServer) handleLeave(sub *Subscriber, frame Frame) {
	loadID, err := parseLoadID(frame.Payload)
	if err != nil {
		sendError(sub, "loadId is required")
		return
	}
	s.hub.Unsubscribe(loadID, sub)
}

type locationPayload struct {
	LoadID   any `json:"loadId"`
	Location struct {
		Lat any `json:"lat"`
		Lng any `json:"lng"`
	} `json:"location"`
}

func (s *socketServer) handleLocation(ctx context.Context, sub *Subscriber, frame Frame) {
	var payload locationPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		sendError(sub, "invalid location payload")
		return
	}

	loadID := strings.TrimSpace(cast.ToString(payload.LoadID))
	if loadID == "" {
		sendError(sub, "loadId is required")
		return
	}

	_, _, err := s.loads.UpdateLocation(ctx, loadID, coordinate(payload.Location.Lat), coordinate(payload.Location.Lng))
	if err == nil {
		sub.Send(Frame{Type: ports.EventSuccess, Payload: mustJSON("Location updated")})
		return
	}

	var ve *domain.ValidationError
	var ce *domain.ConflictError
	switch {
	case errors.As(err, &ve):
		sendError(sub, ve.Message)
	case errors.Is(err, domain.ErrNotFound):
		sendError(sub, "Load not found")
	case errors.As(err, &ce):
		sendError(sub, "Load not confirmed")
	default:
		logger.FromContext(ctx).Error("socket location update failed", logger.String("load_id", loadID), logger.Error(err))
		sendError(sub, "Failed to update location")
	}
}

// parseLoadID accepts a bare id (string or number) or an object with loadId.
func parseLoadID(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	if obj, ok := v.(map[string]any); ok {
		v = obj["loadId"]
	}
	if v == nil {
		return "", errors.New("missing load id")
	}

	id, err := cast.ToStringE(v)
	if err != nil {
		return "", err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("missing load id")
	}
	return id, nil
}

// coordinate coerces a number or numeric string; anything else is missing.
func coordinate(v any) *float64 {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil
	}
	return &f
}

func sendError(sub *Subscriber, message string) {
	sub.Send(Frame{Type: ports.EventError, Payload: mustJSON(message)})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
