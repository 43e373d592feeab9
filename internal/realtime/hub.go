package realtime

import (
	"context"
	"load-tracking-service/internal/platform/logger"
	"load-tracking-service/internal/ports"
	"sync"
)

// Hub is the in-process subscription registry. It implements
// ports.Broadcaster for subscribers connected to this instance.
type Hub struct {
	mu    sync.RWMutex
	subs  map[*Subscriber]struct{}
	rooms map[string]map[*Subscriber]struct{}
	log   logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		subs:  make(map[*Subscriber]struct{}),
		rooms: make(map[string]map[*Subscriber]struct{}),
		log:   log,
	}
}

// Register adds a subscriber to the global channel.
func (h *Hub) Register(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[s] = struct{}{}
}

// Unregister removes a subscriber from the global channel and every room.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs, s)
	for loadID, members := range h.rooms {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, loadID)
		}
	}
}

func (h *Hub) Subscribe(loadID string, s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[loadID]
	if members == nil {
		members = make(map[*Subscriber]struct{})
		h.rooms[loadID] = members
	}
	members[s] = struct{}{}
}

func (h *Hub) Unsubscribe(loadID string, s *Subscriber) {
	h.mu.Lock()
	if members := h.rooms[loadID]; members != nil {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, loadID)
		}
	}
	h.mu.Unlock()

	s.mu.Lock()
	delete(s.roomSeq, loadID)
	s.mu.Unlock()
}

// Snapshot returns the current state of a load as frames, together with the
// load's seq at the time it was read.
type Snapshot func() (seq int, frames []Frame, err error)

// Join subscribes s to a room and delivers the catch-up snapshot.
//
// The subscription is made before the snapshot is read. Room events for
// the load that arrive in between are held on the subscriber and released
// after the snapshot frames, minus any not newer than the snapshot, so the
// client sees neither a gap nor a duplicate. The snapshot is read without
// holding the subscriber's lock, so publishers never wait on it.
func (h *Hub) Join(loadID string, s *Subscriber, snapshot Snapshot) error {
	s.holdRoom(loadID)
	h.Subscribe(loadID, s)

	seq, frames, err := snapshot()
	if err != nil {
		h.mu.Lock()
		if members := h.rooms[loadID]; members != nil {
			delete(members, s)
			if len(members) == 0 {
				delete(h.rooms, loadID)
			}
		}
		h.mu.Unlock()
		s.releaseRoom(loadID, 0, nil, false)
		return err
	}

	s.releaseRoom(loadID, seq, frames, true)
	return nil
}

// Publish delivers ev to the subscribers of ev.LoadID.
func (h *Hub) Publish(ctx context.Context, ev ports.RealtimeEvent) error {
	h.mu.RLock()
	members := make([]*Subscriber, 0, len(h.rooms[ev.LoadID]))
	for s := range h.rooms[ev.LoadID] {
		members = append(members, s)
	}
	h.mu.RUnlock()

	h.fanOut(members, ev, false)
	return nil
}

// BroadcastAll delivers ev to every registered subscriber.
func (h *Hub) BroadcastAll(ctx context.Context, ev ports.RealtimeEvent) error {
	h.mu.RLock()
	members := make([]*Subscriber, 0, len(h.subs))
	for s := range h.subs {
		members = append(members, s)
	}
	h.mu.RUnlock()

	h.fanOut(members, ev, true)
	return nil
}

func (h *Hub) fanOut(members []*Subscriber, ev ports.RealtimeEvent, global bool) {
	for _, s := range members {
		if !s.deliver(ev.Name, ev.LoadID, ev.Seq, ev.Payload, global) {
			select {
			case <-s.Done():
				h.log.Debug("dropped event for closed subscriber",
					logger.String("subscriber", s.ID),
					logger.String("event", ev.Name),
				)
			default:
			}
		}
	}
}

// Counts reports registered subscribers and the members of loadID's room.
func (h *Hub) Counts(loadID string) (total, room int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs), len(h.rooms[loadID])
}
