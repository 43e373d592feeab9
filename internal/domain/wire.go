package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// epochMillis encodes a time as integer milliseconds since the Unix epoch.
// Decoding also accepts RFC 3339 strings so hand-written fixtures stay readable.
type epochMillis time.Time

func (m epochMillis) MarshalJSON() ([]byte, error) {
	t := time.Time(m)
	if t.IsZero() {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, t.UnixMilli(), 10), nil
}

func (m *epochMillis) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = epochMillis(time.Time{})
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		*m = epochMillis(t.UTC())
		return nil
	}

	ms, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", b, err)
	}
	*m = epochMillis(time.UnixMilli(int64(ms)).UTC())
	return nil
}

type positionFields Position

type positionWire struct {
	*positionFields
	Timestamp epochMillis `json:"timestamp"`
}

func (p Position) MarshalJSON() ([]byte, error) {
	f := positionFields(p)
	return json.Marshal(positionWire{positionFields: &f, Timestamp: epochMillis(p.Timestamp)})
}

func (p *Position) UnmarshalJSON(b []byte) error {
	w := positionWire{positionFields: (*positionFields)(p)}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	p.Timestamp = time.Time(w.Timestamp)
	return nil
}

type eventFields Event

type eventWire struct {
	*eventFields
	Timestamp epochMillis `json:"ts"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	f := eventFields(e)
	return json.Marshal(eventWire{eventFields: &f, Timestamp: epochMillis(e.Timestamp)})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	w := eventWire{eventFields: (*eventFields)(e)}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	e.Timestamp = time.Time(w.Timestamp)
	return nil
}

type loadFields Load

type loadWire struct {
	*loadFields
	CreatedAt epochMillis `json:"createdAt"`
	UpdatedAt epochMillis `json:"updatedAt"`
}

// MarshalJSON emits the load record as served to clients and stored by
// document backends: camelCase keys, epoch-millisecond timestamps.
func (l Load) MarshalJSON() ([]byte, error) {
	f := loadFields(l)
	if f.Events == nil {
		f.Events = []Event{}
	}
	if f.Locations == nil {
		f.Locations = []Position{}
	}
	if f.Stops == nil {
		f.Stops = []Stop{}
	}
	return json.Marshal(loadWire{
		loadFields: &f,
		CreatedAt:  epochMillis(l.CreatedAt),
		UpdatedAt:  epochMillis(l.UpdatedAt),
	})
}

func (l *Load) UnmarshalJSON(b []byte) error {
	w := loadWire{loadFields: (*loadFields)(l)}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	l.CreatedAt = time.Time(w.CreatedAt)
	l.UpdatedAt = time.Time(w.UpdatedAt)
	return nil
}
