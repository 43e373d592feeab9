package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"load-tracking-service/internal/platform/logger"
	"load-tracking-service/internal/ports"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	scopeRoom = "room"
	scopeAll  = "all"
)

type relayEnvelope struct {
	Scope string              `json:"scope"`
	Event ports.RealtimeEvent `json:"event"`
}

// RedisRelay fans events out across service instances. Publishing goes to a
// Redis channel; Run feeds everything received on that channel, including
// this instance's own messages, into the local broadcaster. Duplicates are
// harmless because subscribers drop events they have already seen.
//
// While the relay is not subscribed, events are delivered locally only.
type RedisRelay struct {
	client    *redis.Client
	channel   string
	local     ports.Broadcaster
	log       logger.ILogger
	listening atomic.Bool
}

func NewRedisRelay(client *redis.Client, channel string, local ports.Broadcaster, log logger.ILogger) *RedisRelay {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisRelay{client: client, channel: channel, local: local, log: log}
}

func (r *RedisRelay) Publish(ctx context.Context, ev ports.RealtimeEvent) error {
	return r.send(ctx, scopeRoom, ev)
}

func (r *RedisRelay) BroadcastAll(ctx context.Context, ev ports.RealtimeEvent) error {
	return r.send(ctx, scopeAll, ev)
}

// send publishes to Redis, delivering locally instead when Redis is
// unavailable so this instance's clients still see the change.
func (r *RedisRelay) send(ctx context.Context, scope string, ev ports.RealtimeEvent) error {
	if !r.listening.Load() {
		return r.dispatch(ctx, relayEnvelope{Scope: scope, Event: ev})
	}

	b, err := json.Marshal(relayEnvelope{Scope: scope, Event: ev})
	if err != nil {
		return fmt.Errorf("relay %s: encode envelope: %w", ev.Name, err)
	}

	if err := r.client.Publish(ctx, r.channel, b).Err(); err != nil {
		r.log.Warning("redis publish failed, delivering locally",
			logger.String("channel", r.channel),
			logger.String("event", ev.Name),
			logger.Error(err),
		)
		return r.dispatch(ctx, relayEnvelope{Scope: scope, Event: ev})
	}

	return nil
}

func (r *RedisRelay) dispatch(ctx context.Context, env relayEnvelope) error {
	switch env.Scope {
	case scopeRoom:
		return r.local.Publish(ctx, env.Event)
	case scopeAll:
		return r.local.BroadcastAll(ctx, env.Event)
	default:
		return fmt.Errorf("relay: unknown scope %q", env.Scope)
	}
}

// Run subscribes to the relay channel and dispatches messages until ctx is
// done. It fails fast when the subscription cannot be established.
func (r *RedisRelay) Run(ctx context.Context) error {
	return r.run(ctx, nil)
}

// Start runs the relay in the background until ctx is done. It returns once
// the subscription is live, or with the error that prevented it within
// timeout.
func (r *RedisRelay) Start(ctx context.Context, timeout time.Duration) error {
	ready := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		err := r.run(ctx, ready)
		if err != nil {
			r.log.Error("realtime relay stopped", logger.String("channel", r.channel), logger.Error(err))
		}
		done <- err
	}()

	select {
	case <-ready:
		return nil
	case err := <-done:
		if err == nil {
			err = ctx.Err()
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return fmt.Errorf("relay: subscribe %q: timed out after %s", r.channel, timeout)
	}
}

// Listening reports whether events currently travel through Redis.
func (r *RedisRelay) Listening() bool { return r.listening.Load() }

func (r *RedisRelay) run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("relay: subscribe %q: %w", r.channel, err)
	}
	r.listening.Store(true)
	defer r.listening.Store(false)
	if ready != nil {
		close(ready)
	}

	r.log.Info("realtime relay subscribed", logger.String("channel", r.channel))

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warning("relay: dropping malformed message", logger.Error(err))
				continue
			}
			if err := r.dispatch(ctx, env); err != nil {
				r.log.Warning("relay: dispatch failed", logger.String("event", env.Event.Name), logger.Error(err))
			}
		}
	}
}
