package services

import (
	"context"
	"errors"
	"load-tracking-service/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingGeocoder struct{}

func (blockingGeocoder) Forward(ctx context.Context, address string) (domain.Coordinates, error) {
	<-ctx.Done()
	return domain.Coordinates{}, ctx.Err()
}

func (blockingGeocoder) Reverse(ctx context.Context, c domain.Coordinates) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type fixedGeocoder struct {
	coords domain.Coordinates
	city   string
}

func (g fixedGeocoder) Forward(ctx context.Context, address string) (domain.Coordinates, error) {
	return g.coords, nil
}

func (g fixedGeocoder) Reverse(ctx context.Context, c domain.Coordinates) (string, error) {
	return g.city, nil
}

func TestGatewayTimeoutIsUnresolvable(t *testing.T) {
	gw := NewGeocodingGateway(blockingGeocoder{}, 10*time.Millisecond)

	_, err := gw.Resolve(context.Background(), "Somewhere")

	var ue *domain.UnresolvableAddressError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "Somewhere", ue.Address)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGatewayRejectsSentinelCoordinates(t *testing.T) {
	for _, c := range []domain.Coordinates{{}, {Lat: 120, Lon: 10}} {
		gw := NewGeocodingGateway(fixedGeocoder{coords: c}, time.Second)

		_, err := gw.Resolve(context.Background(), "X")

		var ue *domain.UnresolvableAddressError
		assert.True(t, errors.As(err, &ue), "coords %+v", c)
	}
}

func TestGatewayCityFallback(t *testing.T) {
	c := domain.Coordinates{Lat: 11, Lon: 21}

	assert.Equal(t, "11, 21", NewGeocodingGateway(blockingGeocoder{}, 10*time.Millisecond).City(context.Background(), c))
	assert.Equal(t, "11, 21", NewGeocodingGateway(fixedGeocoder{city: "  "}, time.Second).City(context.Background(), c))
	assert.Equal(t, "City X", NewGeocodingGateway(fixedGeocoder{city: "City X"}, time.Second).City(context.Background(), c))
}
