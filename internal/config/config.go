package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StoreBolt     = "bolt"
	StoreSqlite   = "sqlite"
	StorePostgres = "postgres"

	GeocoderORS  = "ors"
	GeocoderMock = "mock"

	CacheNone     = "none"
	CacheSqlite   = "sqlite"
	CachePostgres = "postgres"
	CacheRedis    = "redis"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"load-tracking"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Port        string `env:"PORT" envDefault:"4000"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	BoltPath    string `env:"BOLT_PATH" envDefault:"data/loads.db"`
	SqlitePath  string `env:"SQLITE_PATH" envDefault:"data/app.db"`
	DatabaseURL string `env:"DATABASE_URL"`
	SeedPath    string `env:"SEED_PATH"`

	Geocoder           string        `env:"GEOCODER" envDefault:"ors"`
	ORSAPIKey          string        `env:"ORS_API_KEY"`
	ORSBaseURL         string        `env:"ORS_BASE_URL" envDefault:"https://api.openrouteservice.org"`
	GeocodeCountry     string        `env:"GEOCODE_COUNTRY" envDefault:"US"`
	GeocodeTimeout     time.Duration `env:"GEOCODE_TIMEOUT" envDefault:"10s"`
	GeocodeMaxAttempts int           `env:"GEOCODE_MAX_ATTEMPTS" envDefault:"3"`
	GeocodeCache       string        `env:"GEOCODE_CACHE" envDefault:"none"`
	GeocodeCacheTTL    time.Duration `env:"GEOCODE_CACHE_TTL" envDefault:"720h"`

	FrontendURL string `env:"FRONTEND_URL"`
	JWTSecret   string `env:"JWT_SECRET"`
	CORSOrigin  string `env:"CORS_ORIGIN" envDefault:"*"`

	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"loads:events"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	cfg, err := Parse()
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// Parse reads the configuration without validating it.
func Parse() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: parse env: %w", err)
	}
	return cfg, nil
}

// OwnerScoped reports whether loads are partitioned by authenticated owner.
func (c Config) OwnerScoped() bool {
	return strings.TrimSpace(c.JWTSecret) != ""
}

func (c Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}

	switch c.Geocoder {
	case GeocoderMock:
	case GeocoderORS:
		if strings.TrimSpace(c.ORSAPIKey) == "" {
			return errors.New("ORS_API_KEY is required for GEOCODER=ors")
		}
	default:
		return fmt.Errorf("unknown GEOCODER %q", c.Geocoder)
	}

	switch c.GeocodeCache {
	case CacheNone, CacheSqlite:
	case CachePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for GEOCODE_CACHE=postgres")
		}
	case CacheRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return errors.New("REDIS_URL is required for GEOCODE_CACHE=redis")
		}
	default:
		return fmt.Errorf("unknown GEOCODE_CACHE %q", c.GeocodeCache)
	}

	if c.GeocodeMaxAttempts < 1 {
		return errors.New("GEOCODE_MAX_ATTEMPTS must be at least 1")
	}
	if c.GeocodeTimeout <= 0 {
		return errors.New("GEOCODE_TIMEOUT must be positive")
	}

	return nil
}

// ValidateStore checks only the storage settings, for tools that never
// geocode.
func (c Config) ValidateStore() error {
	switch c.StoreDriver {
	case StoreMemory, StoreBolt, StoreSqlite:
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}
