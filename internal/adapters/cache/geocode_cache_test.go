package cache

import (
	"context"
	"load-tracking-service/internal/adapters/repositories"
	"load-tracking-service/internal/domain"
	"load-tracking-service/internal/platform/db"
	"load-tracking-service/internal/platform/db/dbtest"
	"load-tracking-service/internal/ports"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSqliteCache(t *testing.T) *SqliteGeocodeCache {
	t.Helper()
	conn, err := db.OpenSqlite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, repositories.InitSchema(conn))
	return NewSqliteGeocodeCache(conn)
}

func newPostgresCache(t *testing.T) *SQLGeocodeCache {
	t.Helper()
	url := dbtest.PostgresURL(t)
	_, err := repositories.MigratePostgres(url)
	require.NoError(t, err)
	conn, err := db.Open(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewSQLGeocodeCache(conn)
}

func newRedisCache(t *testing.T) (*RedisGeocodeCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisGeocodeCache(client, "", time.Hour), mr
}

func TestGeocodeCacheRoundTrip(t *testing.T) {
	caches := map[string]func(t *testing.T) ports.GeocodeCache{
		"sqlite":   func(t *testing.T) ports.GeocodeCache { return newSqliteCache(t) },
		"postgres": func(t *testing.T) ports.GeocodeCache { return newPostgresCache(t) },
		"redis": func(t *testing.T) ports.GeocodeCache {
			c, _ := newRedisCache(t)
			return c
		},
	}

	for name, factory := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := factory(t)

			empty, err := c.GetMany(ctx, nil)
			require.NoError(t, err)
			assert.Empty(t, empty)

			require.NoError(t, c.PutMany(ctx, map[string]domain.Coordinates{
				"dallas, tx": {Lon: -96.797, Lat: 32.7767},
				"austin, tx": {Lon: -97.7431, Lat: 30.2672},
			}))

			got, err := c.GetMany(ctx, []string{"dallas, tx", " dallas, tx ", "", "houston, tx"})
			require.NoError(t, err)
			assert.Equal(t, map[string]domain.Coordinates{
				"dallas, tx": {Lon: -96.797, Lat: 32.7767},
			}, got)

			require.NoError(t, c.PutMany(ctx, map[string]domain.Coordinates{
				"dallas, tx": {Lon: -96.8, Lat: 32.78},
			}))
			got, err = c.GetMany(ctx, []string{"dallas, tx", "austin, tx"})
			require.NoError(t, err)
			assert.Equal(t, domain.Coordinates{Lon: -96.8, Lat: 32.78}, got["dallas, tx"])
			assert.Equal(t, domain.Coordinates{Lon: -97.7431, Lat: 30.2672}, got["austin, tx"])

			assert.Error(t, c.PutMany(ctx, map[string]domain.Coordinates{" ": {Lon: 1, Lat: 1}}))
		})
	}
}

func TestRedisGeocodeCacheExpiresEntries(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	require.NoError(t, c.PutMany(ctx, map[string]domain.Coordinates{"dallas, tx": {Lon: -96.8, Lat: 32.78}}))
	mr.FastForward(2 * time.Hour)

	got, err := c.GetMany(ctx, []string{"dallas, tx"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisGeocodeCacheSkipsMalformed(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	require.NoError(t, mr.Set("geocode:bad", "not-coords"))

	got, err := c.GetMany(ctx, []string{"bad"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUniqueAddresses(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, uniqueAddresses([]string{" a", "b", "a ", "", "  "}))
}
