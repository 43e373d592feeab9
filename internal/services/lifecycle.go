package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"load-tracking-service/internal/domain"
	"load-tracking-service/internal/platform/logger"
	"load-tracking-service/internal/platform/obs"
	"load-tracking-service/internal/ports"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultFrontendURL = "http://localhost:3001"

type StopInput struct {
	Type    string
	Address string
}

type CreateLoadInput struct {
	Stops       []StopInput
	DriverPhone string
	Geofence    *float64
}

type LifecycleOptions struct {
	// FrontendURL is the origin tracking links point at. When empty the
	// request origin passed to Create is used.
	FrontendURL string
	// OwnerScoped partitions loads by authenticated owner.
	OwnerScoped bool
	Now         func() time.Time
	NewID       func() string
}

// LoadLifecycle enforces the load state machine. Every mutation of an
// existing load goes through LoadStore.UpdateAtomic, so status preconditions
// are checked against the freshest stored record; realtime events are
// published only after the store commits.
type LoadLifecycle struct {
	store       ports.LoadStore
	geocoding   *GeocodingGateway
	events      ports.Broadcaster
	frontendURL string
	ownerScoped bool
	now         func() time.Time
	newID       func() string
}

func NewLoadLifecycle(
	store ports.LoadStore,
	geocoding *GeocodingGateway,
	events ports.Broadcaster,
	opts LifecycleOptions,
) *LoadLifecycle {
	lc := &LoadLifecycle{
		store:       store,
		geocoding:   geocoding,
		events:      events,
		frontendURL: strings.TrimRight(strings.TrimSpace(opts.FrontendURL), "/"),
		ownerScoped: opts.OwnerScoped,
		now:         opts.Now,
		newID:       opts.NewID,
	}
	if lc.now == nil {
		lc.now = time.Now
	}
	if lc.newID == nil {
		lc.newID = uuid.NewString
	}
	return lc
}

func (lc *LoadLifecycle) OwnerScoped() bool { return lc.ownerScoped }

func validateCreate(in CreateLoadInput) error {
	if len(in.Stops) == 0 {
		return &domain.ValidationError{Message: "At least one stop is required"}
	}
	if strings.TrimSpace(in.DriverPhone) == "" {
		return &domain.ValidationError{Message: "Driver phone is required"}
	}
	if in.Geofence == nil || *in.Geofence < 0 || math.IsNaN(*in.Geofence) || math.IsInf(*in.Geofence, 0) {
		return &domain.ValidationError{Message: "Valid geofence is required"}
	}
	return nil
}

// Create validates the input, geocodes every stop and stores a new Created
// load. Nothing is stored unless every stop resolves.
func (lc *LoadLifecycle) Create(ctx context.Context, ownerID, origin string, in CreateLoadInput) (_ *domain.Load, err error) {
	defer obs.Time(ctx, "loads.Create")(&err)

	if err := validateCreate(in); err != nil {
		return nil, err
	}

	stops, err := resolveStops(ctx, lc.geocoding, in.Stops)
	if err != nil {
		return nil, err
	}

	id := lc.newID()
	l := domain.NewLoad(id, ownerID, stops, strings.TrimSpace(in.DriverPhone), *in.Geofence, lc.trackingURL(origin, id), lc.now())

	if err := lc.store.Put(ctx, l); err != nil {
		return nil, fmt.Errorf("create load: store: %w", err)
	}

	lc.publishGlobal(ctx, l.Seq(), ports.LoadsUpdated{Action: ports.ActionCreated, UserID: l.OwnerID, Load: l})

	return l, nil
}

func (lc *LoadLifecycle) trackingURL(origin, id string) string {
	base := lc.frontendURL
	if base == "" {
		base = strings.TrimRight(strings.TrimSpace(origin), "/")
	}
	if base == "" {
		base = defaultFrontendURL
	}
	return base + "/tracking/" + id
}

// Get returns the full record in any status.
func (lc *LoadLifecycle) Get(ctx context.Context, id string) (*domain.Load, error) {
	return lc.store.Get(ctx, id)
}

// List returns the owner's loads, newest first.
func (lc *LoadLifecycle) List(ctx context.Context, ownerID string) (_ []*domain.Load, err error) {
	defer obs.Time(ctx, "loads.List")(&err)

	loads, err := lc.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list loads: %w", err)
	}
	return loads, nil
}

func (lc *LoadLifecycle) Confirm(ctx context.Context, id string) (*domain.Load, error) {
	return lc.transition(ctx, "loads.Confirm", id, func(l *domain.Load) error {
		return l.Confirm(lc.now())
	})
}

func (lc *LoadLifecycle) Cancel(ctx context.Context, id string) (*domain.Load, error) {
	return lc.transition(ctx, "loads.Cancel", id, func(l *domain.Load) error {
		return l.Cancel(lc.now())
	})
}

// Complete requires the caller to own the load in owner-scoped mode; a
// foreign load is reported as not found.
func (lc *LoadLifecycle) Complete(ctx context.Context, ownerID, id string) (*domain.Load, error) {
	return lc.transition(ctx, "loads.Complete", id, func(l *domain.Load) error {
		if !lc.owns(ownerID, l) {
			return domain.ErrNotFound
		}
		return l.Complete(lc.now())
	})
}

func (lc *LoadLifecycle) transition(ctx context.Context, op, id string, fn ports.UpdateFunc) (_ *domain.Load, err error) {
	defer obs.Time(ctx, op)(&err)

	l, err := lc.store.UpdateAtomic(ctx, id, fn)
	if err != nil {
		return nil, err
	}

	lc.publishGlobal(ctx, l.Seq(), ports.LoadsUpdated{Action: ports.ActionUpdated, UserID: l.OwnerID, Load: l})

	return l, nil
}

// UpdateLocation records a driver position on a Confirmed load. The status
// is checked before the reverse-geocode call and again inside the atomic
// update.
func (lc *LoadLifecycle) UpdateLocation(ctx context.Context, id string, lat, lng *float64) (_ *domain.Load, _ domain.Position, err error) {
	defer obs.Time(ctx, "loads.UpdateLocation")(&err)

	c, err := domain.ParsePosition(lat, lng)
	if err != nil {
		return nil, domain.Position{}, err
	}

	current, err := lc.store.Get(ctx, id)
	if err != nil {
		return nil, domain.Position{}, err
	}
	if current.Status != domain.StatusConfirmed {
		return nil, domain.Position{}, &domain.ConflictError{Op: domain.OpUpdateLocation, Status: current.Status}
	}

	city := lc.geocoding.City(ctx, c)

	var pos domain.Position
	l, err := lc.store.UpdateAtomic(ctx, id, func(l *domain.Load) error {
		p, err := l.RecordLocation(c, city, lc.now())
		if err != nil {
			return err
		}
		pos = p
		return nil
	})
	if err != nil {
		return nil, domain.Position{}, err
	}

	lc.publishRoom(ctx, l.ID, l.Seq(), ports.EventLocationUpdate, pos)
	lc.publishGlobal(ctx, l.Seq(), ports.LoadsUpdated{Action: ports.ActionUpdated, UserID: l.OwnerID, Load: l})

	return l, pos, nil
}

// DriverLocation returns the latest recorded position, or nil before the
// first location update.
func (lc *LoadLifecycle) DriverLocation(ctx context.Context, id string) (*domain.Position, error) {
	l, err := lc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.DriverLocation, nil
}

// Delete removes a load the caller owns. Deleting a missing or foreign load
// is a no-op and reports false.
func (lc *LoadLifecycle) Delete(ctx context.Context, ownerID, id string) (_ bool, err error) {
	defer obs.Time(ctx, "loads.Delete")(&err)

	l, err := lc.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !lc.owns(ownerID, l) {
		return false, nil
	}

	// Updates may commit between the lookup above and the removal, so the
	// event seq comes from the record as it was removed.
	removed, err := lc.store.Remove(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete load %q: %w", id, err)
	}
	if removed == nil {
		return false, nil
	}

	lc.publishGlobal(ctx, removed.Seq()+1, ports.LoadsUpdated{Action: ports.ActionDeleted, UserID: removed.OwnerID, LoadID: id})

	return true, nil
}

// Join authorizes a realtime subscription and returns the catch-up snapshot.
// In owner-scoped mode a missing or foreign load is ErrForbidden so the
// answer does not reveal which ids exist.
func (lc *LoadLifecycle) Join(ctx context.Context, ownerID, id string) (*domain.Load, error) {
	l, err := lc.store.Get(ctx, id)
	if err != nil {
		if lc.ownerScoped && errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrForbidden
		}
		return nil, err
	}
	if !lc.owns(ownerID, l) {
		return nil, domain.ErrForbidden
	}
	return l, nil
}

func (lc *LoadLifecycle) owns(ownerID string, l *domain.Load) bool {
	return !lc.ownerScoped || l.OwnerID == ownerID
}

func (lc *LoadLifecycle) publishRoom(ctx context.Context, loadID string, seq int, name string, payload any) {
	if lc.events == nil {
		return
	}

	ev, err := newEvent(name, loadID, seq, payload)
	if err == nil {
		err = lc.events.Publish(ctx, ev)
	}
	if err != nil {
		logger.FromContext(ctx).Warning("publish room event failed",
			logger.String("event", name),
			logger.String("load_id", loadID),
			logger.Error(err),
		)
	}
}

func (lc *LoadLifecycle) publishGlobal(ctx context.Context, seq int, payload ports.LoadsUpdated) {
	if lc.events == nil {
		return
	}

	loadID := payload.LoadID
	if payload.Load != nil {
		loadID = payload.Load.ID
	}

	ev, err := newEvent(ports.EventLoadsUpdated, loadID, seq, payload)
	if err == nil {
		err = lc.events.BroadcastAll(ctx, ev)
	}
	if err != nil {
		logger.FromContext(ctx).Warning("broadcast loadsUpdated failed",
			logger.String("action", payload.Action),
			logger.String("load_id", loadID),
			logger.Error(err),
		)
	}
}

func newEvent(name, loadID string, seq int, payload any) (ports.RealtimeEvent, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return ports.RealtimeEvent{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return ports.RealtimeEvent{Name: name, LoadID: loadID, Seq: seq, Payload: b}, nil
}
