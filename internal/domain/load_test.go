package domain

import (
	"errors"
	"testing"
	"time"
)

func newTestLoad(now time.Time) *Load {
	return NewLoad("l-1", "u-1", []Stop{{Type: "pickup", Address: "A", Lat: 10, Lng: 20}}, "555", 100, "http://x/tracking/l-1", now)
}

func TestNewLoadStartsCreated(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	l := newTestLoad(now)

	if l.Status != StatusCreated {
		t.Fatalf("status = %s, want %s", l.Status, StatusCreated)
	}
	if len(l.Events) != 1 || l.Events[0].Type != EventCreated {
		t.Fatalf("events = %+v, want single Created", l.Events)
	}
	if l.DriverLocation != nil {
		t.Errorf("driver location = %+v, want nil", l.DriverLocation)
	}
	if l.Seq() != 1 {
		t.Errorf("seq = %d, want 1", l.Seq())
	}
}

func TestLoadTransitions(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		prepare func(l *Load)
		apply   func(l *Load) error
		want    Status
		wantErr bool
	}{
		{"confirm created", nil, func(l *Load) error { return l.Confirm(now) }, StatusConfirmed, false},
		{"cancel created", nil, func(l *Load) error { return l.Cancel(now) }, StatusCanceled, false},
		{"complete created", nil, func(l *Load) error { return l.Complete(now) }, StatusCreated, true},
		{"confirm twice", func(l *Load) { _ = l.Confirm(now) }, func(l *Load) error { return l.Confirm(now) }, StatusConfirmed, true},
		{"cancel confirmed", func(l *Load) { _ = l.Confirm(now) }, func(l *Load) error { return l.Cancel(now) }, StatusConfirmed, true},
		{"complete confirmed", func(l *Load) { _ = l.Confirm(now) }, func(l *Load) error { return l.Complete(now) }, StatusCompleted, false},
		{"confirm canceled", func(l *Load) { _ = l.Cancel(now) }, func(l *Load) error { return l.Confirm(now) }, StatusCanceled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLoad(now)
			if tt.prepare != nil {
				tt.prepare(l)
			}
			before := len(l.Events)

			err := tt.apply(l)
			if tt.wantErr {
				var ce *ConflictError
				if !errors.As(err, &ce) {
					t.Fatalf("err = %v, want ConflictError", err)
				}
				if ce.Status != tt.want {
					t.Errorf("conflict status = %s, want %s", ce.Status, tt.want)
				}
				if len(l.Events) != before {
					t.Errorf("events grew on failed transition: %d -> %d", before, len(l.Events))
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			} else if len(l.Events) != before+1 {
				t.Errorf("events = %d, want %d", len(l.Events), before+1)
			}

			if l.Status != tt.want {
				t.Errorf("status = %s, want %s", l.Status, tt.want)
			}
		})
	}
}

func TestRecordLocationRequiresConfirmed(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	l := newTestLoad(now)

	if _, err := l.RecordLocation(Coordinates{Lat: 11, Lon: 21}, "City X", now); err == nil {
		t.Fatal("expected conflict on unconfirmed load")
	}
	if len(l.Locations) != 0 || len(l.Events) != 1 {
		t.Fatalf("load mutated on failed location update: locations=%d events=%d", len(l.Locations), len(l.Events))
	}

	_ = l.Confirm(now)
	pos, err := l.RecordLocation(Coordinates{Lat: 11, Lon: 21}, "City X", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if l.DriverLocation == nil || *l.DriverLocation != pos {
		t.Fatalf("driver location = %+v, want %+v", l.DriverLocation, pos)
	}
	if got := l.Locations[len(l.Locations)-1]; got != pos {
		t.Errorf("last location = %+v, want %+v", got, pos)
	}
	last := l.Events[len(l.Events)-1]
	if last.Type != EventLocationUpdate || last.Meta == nil || *last.Meta != pos {
		t.Errorf("last event = %+v, want LocationUpdate with meta", last)
	}
}

func TestEventTimestampsNeverGoBackwards(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	l := newTestLoad(now)

	if err := l.Confirm(now.Add(-time.Hour)); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if l.Events[1].Timestamp.Before(l.Events[0].Timestamp) {
		t.Errorf("event ts went backwards: %v < %v", l.Events[1].Timestamp, l.Events[0].Timestamp)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	l := newTestLoad(now)
	_ = l.Confirm(now)
	_, _ = l.RecordLocation(Coordinates{Lat: 1, Lon: 2}, "c", now)

	c := l.Clone()
	c.Events[0].Type = EventCanceled
	c.DriverLocation.City = "other"
	c.Events[2].Meta.City = "other"

	if l.Events[0].Type != EventCreated {
		t.Error("clone aliases events")
	}
	if l.DriverLocation.City != "c" || l.Events[2].Meta.City != "c" {
		t.Error("clone aliases positions")
	}
}

func TestParsePosition(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name     string
		lat, lng *float64
		wantErr  bool
	}{
		{"valid", f(11), f(21), false},
		{"equator", f(0), f(21), false},
		{"missing lat", nil, f(21), true},
		{"missing lng", f(11), nil, true},
		{"null island", f(0), f(0), true},
		{"lat out of range", f(91), f(21), true},
		{"lng out of range", f(11), f(-181), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePosition(tt.lat, tt.lng)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("err = %T, want *ValidationError", err)
				}
			}
		})
	}
}
