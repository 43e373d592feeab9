package realtime

import (
	"encoding/json"
	"sync"
)

// Frame is the unit exchanged with socket clients.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Subscriber is one connected client as seen by the hub.
//
// Deliveries are filtered by sequence number: for every load the subscriber
// remembers the last seq it was given, separately for room and global
// events, and drops anything not newer. Frames are queued; a client that
// falls behind by more than the queue size is closed.
type Subscriber struct {
	ID string

	mu        sync.Mutex
	roomSeq   map[string]int
	globalSeq map[string]int
	// Room events held back while a join reads its snapshot.
	joining map[string][]heldEvent

	out       chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

func NewSubscriber(id string, buffer int) *Subscriber {
	if buffer < 1 {
		buffer = 1
	}
	return &Subscriber{
		ID:        id,
		roomSeq:   make(map[string]int),
		globalSeq: make(map[string]int),
		out:       make(chan Frame, buffer),
		done:      make(chan struct{}),
	}
}

type heldEvent struct {
	name    string
	seq     int
	payload json.RawMessage
}

// Frames is the outbound queue drained by the connection writer.
func (s *Subscriber) Frames() <-chan Frame { return s.out }

// Done is closed once the subscriber is closed.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Send queues a frame outside sequence tracking, e.g. replies to the client.
func (s *Subscriber) Send(f Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueue(f)
}

// enqueue must be called with s.mu held.
func (s *Subscriber) enqueue(f Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.out <- f:
		return true
	default:
		s.Close()
		return false
	}
}

func (s *Subscriber) deliver(name, loadID string, seq int, payload json.RawMessage, global bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !global {
		if held, ok := s.joining[loadID]; ok {
			s.joining[loadID] = append(held, heldEvent{name: name, seq: seq, payload: payload})
			return true
		}
	}

	seqs := s.roomSeq
	if global {
		seqs = s.globalSeq
	}

	if loadID != "" && seq > 0 {
		if seq <= seqs[loadID] {
			return false
		}
		seqs[loadID] = seq
	}

	return s.enqueue(Frame{Type: name, Payload: payload})
}

// holdRoom starts buffering room events for loadID.
func (s *Subscriber) holdRoom(loadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joining == nil {
		s.joining = make(map[string][]heldEvent)
	}
	if _, ok := s.joining[loadID]; !ok {
		s.joining[loadID] = []heldEvent{}
	}
}

// releaseRoom ends buffering for loadID. With a snapshot it queues the
// snapshot frames first, then the held events newer than snapshotSeq; on
// failure the held events are discarded.
func (s *Subscriber) releaseRoom(loadID string, snapshotSeq int, frames []Frame, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.joining[loadID]
	delete(s.joining, loadID)
	if !ok {
		return
	}

	for _, f := range frames {
		s.enqueue(f)
	}
	if snapshotSeq > s.roomSeq[loadID] {
		s.roomSeq[loadID] = snapshotSeq
	}

	for _, ev := range held {
		if ev.seq > 0 {
			if ev.seq <= s.roomSeq[loadID] {
				continue
			}
			s.roomSeq[loadID] = ev.seq
		}
		s.enqueue(Frame{Type: ev.name, Payload: ev.payload})
	}
}
