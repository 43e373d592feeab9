package geocoding

import (
	"context"
	"fmt"
	"hash/fnv"
	"load-tracking-service/internal/domain"
	"load-tracking-service/internal/ports"
	"strings"
	"sync"
	"sync/atomic"
)

type MockPlace struct {
	Address string
	Lat     float64
	Lng     float64
	City    string
}

// MockGeocoder is a deterministic in-process Geocoder for local runs and tests.
//
// Known places resolve both ways. With Synthesize set, unknown addresses get
// stable coordinates derived from a hash of the address so any input resolves.
type MockGeocoder struct {
	Synthesize bool

	mu      sync.RWMutex
	forward map[string]domain.Coordinates
	reverse map[string]string
	fail    map[string]error

	forwardCalls atomic.Int64
	reverseCalls atomic.Int64
}

func NewMockGeocoder(places []MockPlace) *MockGeocoder {
	g := &MockGeocoder{
		forward: make(map[string]domain.Coordinates, len(places)),
		reverse: make(map[string]string, len(places)),
		fail:    make(map[string]error),
	}
	for _, p := range places {
		g.Add(p)
	}
	return g
}

func mockKey(address string) string {
	return strings.ToLower(normalize(address))
}

func pointKey(c domain.Coordinates) string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// Add registers a place for both lookup directions.
func (g *MockGeocoder) Add(p MockPlace) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c := domain.Coordinates{Lat: p.Lat, Lon: p.Lng}
	if p.Address != "" {
		g.forward[mockKey(p.Address)] = c
	}
	if p.City != "" {
		g.reverse[pointKey(c)] = p.City
	}
}

// FailOn makes forward lookups of address return err.
func (g *MockGeocoder) FailOn(address string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[mockKey(address)] = err
}

func (g *MockGeocoder) ForwardCalls() int64 { return g.forwardCalls.Load() }
func (g *MockGeocoder) ReverseCalls() int64 { return g.reverseCalls.Load() }

func (g *MockGeocoder) Forward(ctx context.Context, address string) (domain.Coordinates, error) {
	g.forwardCalls.Add(1)

	if err := ctx.Err(); err != nil {
		return domain.Coordinates{}, err
	}

	key := mockKey(address)

	g.mu.RLock()
	failErr, failing := g.fail[key]
	c, ok := g.forward[key]
	g.mu.RUnlock()

	if failing {
		return domain.Coordinates{}, failErr
	}
	if ok {
		return c, nil
	}
	if g.Synthesize && key != "" {
		return synthesize(key), nil
	}

	return domain.Coordinates{}, fmt.Errorf("mock geocode %q: %w", address, ports.ErrAddressNotFound)
}

func (g *MockGeocoder) Reverse(ctx context.Context, c domain.Coordinates) (string, error) {
	g.reverseCalls.Add(1)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.RLock()
	city, ok := g.reverse[pointKey(c)]
	g.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("mock reverse geocode %s: %w", pointKey(c), ports.ErrAddressNotFound)
	}
	return city, nil
}

// synthesize maps an address onto a point inside the continental US.
func synthesize(key string) domain.Coordinates {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	sum := h.Sum64()

	latFrac := float64(sum&0xffffffff) / float64(0xffffffff)
	lonFrac := float64(sum>>32) / float64(0xffffffff)

	return domain.Coordinates{
		Lat: 25 + latFrac*24,
		Lon: -124 + lonFrac*57,
	}
}
