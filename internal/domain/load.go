package domain

import (
	"time"
)

// Status is the lifecycle state of a Load.
type Status string

const (
	StatusCreated   Status = "Created"
	StatusConfirmed Status = "Confirmed"
	StatusCanceled  Status = "Canceled"
	StatusCompleted Status = "Completed"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusCompleted
}

// EventType names an entry of a load's event log.
type EventType string

const (
	EventCreated        EventType = "Created"
	EventConfirmed      EventType = "Confirmed"
	EventCanceled       EventType = "Canceled"
	EventCompleted      EventType = "Completed"
	EventLocationUpdate EventType = "LocationUpdate"
)

// Operation names a mutation requested on a load.
type Operation string

const (
	OpConfirm        Operation = "confirm"
	OpCancel         Operation = "cancel"
	OpComplete       Operation = "complete"
	OpUpdateLocation Operation = "update location of"
)

// Stop is one geocoded waypoint on a load's route.
type Stop struct {
	Type    string  `json:"type"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Position is a recorded driver location.
type Position struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	City      string    `json:"city"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is one entry of the append-only event log.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"ts"`
	Meta      *Position `json:"meta,omitempty"`
}

// Load is a trackable shipment with stops, a driver and a lifecycle status.
//
// Events and Locations only grow. Every status change and every location
// update appends exactly one event, in the same mutation as the change itself.
// DriverLocation is nil until the first location update and afterwards equals
// the last element of Locations.
type Load struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"userId,omitempty"`
	Stops          []Stop     `json:"stops"`
	DriverPhone    string     `json:"driverPhone"`
	Geofence       float64    `json:"geofence"`
	Status         Status     `json:"status"`
	Events         []Event    `json:"events"`
	Locations      []Position `json:"locations"`
	DriverLocation *Position  `json:"driverLocation"`
	TrackingURL    string     `json:"trackingUrl"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// NewLoad builds a freshly created load with its initial Created event.
func NewLoad(id, ownerID string, stops []Stop, driverPhone string, geofence float64, trackingURL string, now time.Time) *Load {
	now = now.UTC()
	return &Load{
		ID:          id,
		OwnerID:     ownerID,
		Stops:       append([]Stop(nil), stops...),
		DriverPhone: driverPhone,
		Geofence:    geofence,
		Status:      StatusCreated,
		Events:      []Event{{Type: EventCreated, Timestamp: now}},
		Locations:   []Position{},
		TrackingURL: trackingURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Seq is the position of the load in its own history: the number of committed
// events. It strictly increases with every mutation.
func (l *Load) Seq() int { return len(l.Events) }

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (l *Load) Clone() *Load {
	if l == nil {
		return nil
	}

	c := *l
	c.Stops = append([]Stop(nil), l.Stops...)
	c.Locations = append([]Position{}, l.Locations...)
	c.Events = make([]Event, len(l.Events))
	for i, e := range l.Events {
		if e.Meta != nil {
			m := *e.Meta
			e.Meta = &m
		}
		c.Events[i] = e
	}
	if l.DriverLocation != nil {
		d := *l.DriverLocation
		c.DriverLocation = &d
	}
	return &c
}

// Confirm moves a Created load to Confirmed.
func (l *Load) Confirm(now time.Time) error {
	return l.transition(OpConfirm, StatusCreated, StatusConfirmed, EventConfirmed, now)
}

// Cancel moves a Created load to Canceled.
func (l *Load) Cancel(now time.Time) error {
	return l.transition(OpCancel, StatusCreated, StatusCanceled, EventCanceled, now)
}

// Complete moves a Confirmed load to Completed.
func (l *Load) Complete(now time.Time) error {
	return l.transition(OpComplete, StatusConfirmed, StatusCompleted, EventCompleted, now)
}

// RecordLocation appends a driver position to a Confirmed load. Status is
// unchanged; DriverLocation is overwritten, Locations and Events each grow by one.
func (l *Load) RecordLocation(c Coordinates, city string, now time.Time) (Position, error) {
	if l.Status != StatusConfirmed {
		return Position{}, &ConflictError{Op: OpUpdateLocation, Status: l.Status}
	}

	ts := l.nextTimestamp(now)
	pos := Position{Lat: c.Lat, Lng: c.Lon, City: city, Timestamp: ts}

	meta := pos
	current := pos
	l.Locations = append(l.Locations, pos)
	l.DriverLocation = &current
	l.Events = append(l.Events, Event{Type: EventLocationUpdate, Timestamp: ts, Meta: &meta})
	l.UpdatedAt = ts

	return pos, nil
}

func (l *Load) transition(op Operation, from, to Status, evt EventType, now time.Time) error {
	if l.Status != from {
		return &ConflictError{Op: op, Status: l.Status}
	}

	ts := l.nextTimestamp(now)
	l.Status = to
	l.Events = append(l.Events, Event{Type: evt, Timestamp: ts})
	l.UpdatedAt = ts
	return nil
}

// nextTimestamp clamps now so event timestamps never go backwards.
func (l *Load) nextTimestamp(now time.Time) time.Time {
	now = now.UTC()
	if n := len(l.Events); n > 0 && now.Before(l.Events[n-1].Timestamp) {
		return l.Events[n-1].Timestamp
	}
	return now
}
