package services

import (
	"context"
	"errors"
	"load-tracking-service/internal/domain"
	"load-tracking-service/internal/platform/logger"
	"load-tracking-service/internal/ports"
	"strconv"
	"strings"
	"time"
)

var errSentinelCoordinate = errors.New("geocoder returned no usable coordinate")

// GeocodingGateway wraps a Geocoder with a per-call deadline and the failure
// policy the lifecycle relies on: forward failures are errors, reverse
// failures are not.
type GeocodingGateway struct {
	geocoder ports.Geocoder
	timeout  time.Duration
}

func NewGeocodingGateway(geocoder ports.Geocoder, timeout time.Duration) *GeocodingGateway {
	return &GeocodingGateway{geocoder: geocoder, timeout: timeout}
}

func (g *GeocodingGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// Resolve geocodes an address. Any oracle failure, timeout, out-of-range
// result or (0,0) comes back as *domain.UnresolvableAddressError.
func (g *GeocodingGateway) Resolve(ctx context.Context, address string) (domain.Coordinates, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	c, err := g.geocoder.Forward(ctx, address)
	if err != nil {
		return domain.Coordinates{}, &domain.UnresolvableAddressError{Address: address, Err: err}
	}
	if c.IsNullIsland() || !c.InRange() {
		return domain.Coordinates{}, &domain.UnresolvableAddressError{Address: address, Err: errSentinelCoordinate}
	}

	return c, nil
}

// City names the place at c, or returns "lat, lng" when the oracle cannot.
func (g *GeocodingGateway) City(ctx context.Context, c domain.Coordinates) string {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	city, err := g.geocoder.Reverse(ctx, c)
	if err != nil || strings.TrimSpace(city) == "" {
		if err != nil {
			logger.FromContext(ctx).Debug("reverse geocode fell back to coordinates", logger.Error(err))
		}
		return FallbackCity(c)
	}

	return city
}

// FallbackCity formats c as "lat, lng".
func FallbackCity(c domain.Coordinates) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}
