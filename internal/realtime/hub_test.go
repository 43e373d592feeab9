package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"load-tracking-service/internal/ports"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(s *Subscriber) []Frame {
	var out []Frame
	for {
		select {
		case f := <-s.Frames():
			out = append(out, f)
		default:
			return out
		}
	}
}

func event(name, loadID string, seq int, payload string) ports.RealtimeEvent {
	return ports.RealtimeEvent{Name: name, LoadID: loadID, Seq: seq, Payload: json.RawMessage(payload)}
}

func TestHubRoomIsolation(t *testing.T) {
	h := NewHub(nil)
	a := NewSubscriber("a", 8)
	b := NewSubscriber("b", 8)
	h.Register(a)
	h.Register(b)
	h.Subscribe("load-a", a)
	h.Subscribe("load-b", b)

	require.NoError(t, h.Publish(context.Background(), event(ports.EventLocationUpdate, "load-a", 2, `{"lat":1}`)))

	gotA := drain(a)
	require.Len(t, gotA, 1)
	assert.Equal(t, ports.EventLocationUpdate, gotA[0].Type)
	assert.JSONEq(t, `{"lat":1}`, string(gotA[0].Payload))
	assert.Empty(t, drain(b))
}

func TestHubBroadcastAllReachesEveryone(t *testing.T) {
	h := NewHub(nil)
	a := NewSubscriber("a", 8)
	b := NewSubscriber("b", 8)
	h.Register(a)
	h.Register(b)
	h.Subscribe("load-a", a)

	require.NoError(t, h.BroadcastAll(context.Background(), event(ports.EventLoadsUpdated, "load-a", 1, `{}`)))

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
}

func TestHubDropsStaleAndDuplicateEvents(t *testing.T) {
	h := NewHub(nil)
	s := NewSubscriber("s", 8)
	h.Register(s)
	h.Subscribe("l", s)
	ctx := context.Background()

	require.NoError(t, h.Publish(ctx, event(ports.EventLocationUpdate, "l", 3, `3`)))
	require.NoError(t, h.Publish(ctx, event(ports.EventLocationUpdate, "l", 3, `3`)))
	require.NoError(t, h.Publish(ctx, event(ports.EventLocationUpdate, "l", 2, `2`)))
	require.NoError(t, h.Publish(ctx, event(ports.EventLocationUpdate, "l", 4, `4`)))

	frames := drain(s)
	require.Len(t, frames, 2)
	assert.Equal(t, "3", string(frames[0].Payload))
	assert.Equal(t, "4", string(frames[1].Payload))

	// Room and global sequences are tracked independently.
	require.NoError(t, h.BroadcastAll(ctx, event(ports.EventLoadsUpdated, "l", 4, `{}`)))
	assert.Len(t, drain(s), 1)
}

func TestHubJoinDeliversSnapshotAndSkipsOlderEvents(t *testing.T) {
	h := NewHub(nil)
	s := NewSubscriber("s", 8)
	h.Register(s)
	ctx := context.Background()

	err := h.Join("l", s, func() (int, []Frame, error) {
		return 5, []Frame{
			{Type: ports.EventLoadDetails, Payload: json.RawMessage(`{"id":"l"}`)},
			{Type: ports.EventLocationUpdate, Payload: json.RawMessage(`{"lat":1}`)},
		}, nil
	})
	require.NoError(t, err)

	require.NoError(t, h.Publish(ctx, event(ports.EventLocationUpdate, "l", 5, `"old"`)))
	require.NoError(t, h.Publish(ctx, event(ports.EventLocationUpdate, "l", 6, `"new"`)))

	frames := drain(s)
	require.Len(t, frames, 3)
	assert.Equal(t, ports.EventLoadDetails, frames[0].Type)
	assert.Equal(t, ports.EventLocationUpdate, frames[1].Type)
	assert.Equal(t, `"new"`, string(frames[2].Payload))

	_, room := h.Counts("l")
	assert.Equal(t, 1, room)
}

func TestHubPublishDoesNotWaitForSlowSnapshot(t *testing.T) {
	h := NewHub(nil)
	joiner := NewSubscriber("joiner", 8)
	other := NewSubscriber("other", 8)
	h.Register(joiner)
	h.Register(other)
	h.Subscribe("l", other)
	ctx := context.Background()

	reading := make(chan struct{})
	release := make(chan struct{})
	joined := make(chan error, 1)
	go func() {
		joined <- h.Join("l", joiner, func() (int, []Frame, error) {
			close(reading)
			<-release
			return 2, []Frame{{Type: ports.EventLoadDetails, Payload: json.RawMessage(`{"id":"l"}`)}}, nil
		})
	}()
	<-reading

	published := make(chan struct{})
	go func() {
		defer close(published)
		_ = h.Publish(ctx, event(ports.EventLocationUpdate, "l", 2, `"seen-by-snapshot"`))
		_ = h.Publish(ctx, event(ports.EventLocationUpdate, "l", 3, `"after-snapshot"`))
		_ = h.BroadcastAll(ctx, event(ports.EventLoadsUpdated, "l", 3, `{}`))
	}()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked behind a snapshot read")
	}
	assert.Len(t, drain(other), 3)

	close(release)
	require.NoError(t, <-joined)

	frames := drain(joiner)
	require.Len(t, frames, 3)
	assert.Equal(t, ports.EventLoadsUpdated, frames[0].Type, "global events are not held")
	assert.Equal(t, ports.EventLoadDetails, frames[1].Type)
	assert.Equal(t, `"after-snapshot"`, string(frames[2].Payload))

	require.NoError(t, h.Publish(ctx, event(ports.EventLocationUpdate, "l", 3, `"dup"`)))
	require.NoError(t, h.Publish(ctx, event(ports.EventLocationUpdate, "l", 4, `"next"`)))
	frames = drain(joiner)
	require.Len(t, frames, 1)
	assert.Equal(t, `"next"`, string(frames[0].Payload))
}

func TestHubJoinFailureLeavesNoSubscription(t *testing.T) {
	h := NewHub(nil)
	s := NewSubscriber("s", 8)
	h.Register(s)
	denied := errors.New("denied")

	err := h.Join("l", s, func() (int, []Frame, error) { return 0, nil, denied })
	assert.ErrorIs(t, err, denied)

	_, room := h.Counts("l")
	assert.Zero(t, room)

	require.NoError(t, h.Publish(context.Background(), event(ports.EventLocationUpdate, "l", 1, `{}`)))
	assert.Empty(t, drain(s))
}

func TestHubJoinRacingPublishNeverDuplicates(t *testing.T) {
	h := NewHub(nil)
	ctx := context.Background()

	for round := 0; round < 50; round++ {
		s := NewSubscriber("s", 256)
		h.Register(s)

		var (
			mu  sync.Mutex
			seq = 1
			wg  sync.WaitGroup
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				mu.Lock()
				seq++
				n := seq
				mu.Unlock()
				_ = h.Publish(ctx, event(ports.EventLocationUpdate, "l", n, strconv.Itoa(n)))
			}
		}()

		var snapshotSeq int
		require.NoError(t, h.Join("l", s, func() (int, []Frame, error) {
			mu.Lock()
			defer mu.Unlock()
			snapshotSeq = seq
			return seq, []Frame{{Type: ports.EventLoadDetails}}, nil
		}))
		wg.Wait()

		frames := drain(s)
		require.NotEmpty(t, frames)
		assert.Equal(t, ports.EventLoadDetails, frames[0].Type)

		last := snapshotSeq
		for _, f := range frames[1:] {
			n, err := strconv.Atoi(string(f.Payload))
			require.NoError(t, err)
			assert.Greater(t, n, last, "stale or duplicated delivery")
			last = n
		}
		assert.Equal(t, 21, last, "final state reached the subscriber")

		h.Unregister(s)
	}
}

func TestHubUnsubscribeAndUnregister(t *testing.T) {
	h := NewHub(nil)
	s := NewSubscriber("s", 8)
	h.Register(s)
	h.Subscribe("l", s)
	h.Subscribe("m", s)

	h.Unsubscribe("l", s)
	require.NoError(t, h.Publish(context.Background(), event(ports.EventLocationUpdate, "l", 1, `{}`)))
	assert.Empty(t, drain(s))

	h.Unregister(s)
	total, room := h.Counts("m")
	assert.Zero(t, total)
	assert.Zero(t, room)
}

func TestSubscriberOverflowCloses(t *testing.T) {
	h := NewHub(nil)
	s := NewSubscriber("slow", 1)
	h.Register(s)

	require.NoError(t, h.BroadcastAll(context.Background(), event(ports.EventLoadsUpdated, "a", 1, `{}`)))
	require.NoError(t, h.BroadcastAll(context.Background(), event(ports.EventLoadsUpdated, "b", 1, `{}`)))

	select {
	case <-s.Done():
	default:
		t.Fatal("expected slow subscriber to be closed")
	}
	assert.False(t, s.Send(Frame{Type: ports.EventSuccess}))
}
