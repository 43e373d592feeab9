package ports

import (
	"context"
	"errors"
	"load-tracking-service/internal/domain"
)

// ErrAddressNotFound is returned by a Geocoder when an address has no result.
var ErrAddressNotFound = errors.New("address not found")

// Contract for the external address <-> coordinate oracle.
type Geocoder interface {
	// Resolve an address to coordinates.
	Forward(ctx context.Context, address string) (domain.Coordinates, error)
	// Resolve coordinates to a human-readable place name.
	Reverse(ctx context.Context, c domain.Coordinates) (string, error)
}

// Persistent address -> coordinate cache used in front of a Geocoder.
type GeocodeCache interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}
