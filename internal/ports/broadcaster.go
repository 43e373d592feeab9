package ports

import (
	"context"
	"encoding/json"
	"load-tracking-service/internal/domain"
)

// Realtime event names.
const (
	EventLoadDetails    = "load_details"
	EventLocationUpdate = "location_update"
	EventLoadsUpdated   = "loadsUpdated"
	EventSuccess        = "success"
	EventError          = "error"
)

// RealtimeEvent is a committed change to be fanned out to observers.
// Seq is the load's event-log length after the change; receivers use it to
// drop stale and duplicated deliveries.
type RealtimeEvent struct {
	Name    string          `json:"name"`
	LoadID  string          `json:"loadId"`
	Seq     int             `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// Contract for publishing realtime events.
type Broadcaster interface {
	// Deliver to subscribers of ev.LoadID only.
	Publish(ctx context.Context, ev RealtimeEvent) error
	// Deliver to every connected client.
	BroadcastAll(ctx context.Context, ev RealtimeEvent) error
}

// Actions carried by a loadsUpdated event.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// LoadsUpdated is the bounded global list-refresh payload: the changed load,
// or just its id once deleted.
type LoadsUpdated struct {
	Action string       `json:"action"`
	UserID string       `json:"userId,omitempty"`
	Load   *domain.Load `json:"load,omitempty"`
	LoadID string       `json:"loadId,omitempty"`
}
