package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEOCODER", "mock")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 10*time.Second, cfg.GeocodeTimeout)
	assert.Equal(t, 3, cfg.GeocodeMaxAttempts)
	assert.Equal(t, "loads:events", cfg.RedisChannel)
	assert.False(t, cfg.OwnerScoped())
}

func TestLoadOwnerScoped(t *testing.T) {
	t.Setenv("GEOCODER", "mock")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.OwnerScoped())
}

func TestValidate(t *testing.T) {
	base := Config{
		StoreDriver:        StoreMemory,
		Geocoder:           GeocoderMock,
		GeocodeCache:       CacheNone,
		GeocodeTimeout:     time.Second,
		GeocodeMaxAttempts: 1,
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown store", func(c *Config) { c.StoreDriver = "mongo" }},
		{"postgres without url", func(c *Config) { c.StoreDriver = StorePostgres }},
		{"ors without key", func(c *Config) { c.Geocoder = GeocoderORS }},
		{"unknown geocoder", func(c *Config) { c.Geocoder = "google" }},
		{"postgres cache without url", func(c *Config) { c.GeocodeCache = CachePostgres }},
		{"zero attempts", func(c *Config) { c.GeocodeMaxAttempts = 0 }},
		{"zero timeout", func(c *Config) { c.GeocodeTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidateStoreIgnoresGeocoder(t *testing.T) {
	c := Config{StoreDriver: StoreSqlite, Geocoder: GeocoderORS}
	assert.NoError(t, c.ValidateStore())
	assert.Error(t, c.Validate())

	c.StoreDriver = StorePostgres
	assert.Error(t, c.ValidateStore())
}
