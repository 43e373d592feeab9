package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"load-tracking-service/internal/adapters/cache"
	"load-tracking-service/internal/adapters/geocoding"
	"load-tracking-service/internal/adapters/repositories"
	"load-tracking-service/internal/config"
	"load-tracking-service/internal/platform/db"
	"load-tracking-service/internal/platform/logger"
	"load-tracking-service/internal/ports"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

// resources shares connections between components and closes them in reverse order.
type resources struct {
	list []io.Closer

	postgres *sql.DB
	sqlite   *sql.DB
	redis    *redis.Client
}

func (c *resources) add(cl io.Closer) { c.list = append(c.list, cl) }

func (c *resources) closeAll(log logger.ILogger) {
	for i := len(c.list) - 1; i >= 0; i-- {
		if err := c.list[i].Close(); err != nil {
			log.Warning("close resource failed", logger.Error(err))
		}
	}
}

func (c *resources) postgresDB(cfg config.Config) (*sql.DB, error) {
	if c.postgres != nil {
		return c.postgres, nil
	}
	if _, err := repositories.MigratePostgres(cfg.DatabaseURL); err != nil {
		return nil, err
	}
	pg, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	c.add(pg)
	c.postgres = pg
	return pg, nil
}

func (c *resources) sqliteDB(cfg config.Config) (*sql.DB, error) {
	if c.sqlite != nil {
		return c.sqlite, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SqlitePath), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: create data dir: %w", err)
	}
	lite, err := db.OpenSqlite(cfg.SqlitePath)
	if err != nil {
		return nil, err
	}
	c.add(lite)
	if err := repositories.InitSchema(lite); err != nil {
		return nil, err
	}
	c.sqlite = lite
	return lite, nil
}

func redisClient(cfg config.Config, c *resources) (*redis.Client, error) {
	if c.redis != nil {
		return c.redis, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	c.add(client)
	c.redis = client
	return client, nil
}

func openStore(cfg config.Config, c *resources) (ports.LoadStore, error) {
	switch cfg.StoreDriver {
	case config.StoreBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.BoltPath), 0o755); err != nil {
			return nil, fmt.Errorf("bolt: create data dir: %w", err)
		}
		s, err := repositories.NewBoltLoadStore(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		c.add(s)
		return s, nil
	case config.StoreSqlite:
		lite, err := c.sqliteDB(cfg)
		if err != nil {
			return nil, err
		}
		return repositories.NewSqliteLoadStore(lite), nil
	case config.StorePostgres:
		pg, err := c.postgresDB(cfg)
		if err != nil {
			return nil, err
		}
		return repositories.NewSQLLoadStore(pg), nil
	default:
		return repositories.NewMemoryLoadStore(), nil
	}
}

func newGeocodeCache(cfg config.Config, c *resources) (ports.GeocodeCache, error) {
	switch cfg.GeocodeCache {
	case config.CacheSqlite:
		lite, err := c.sqliteDB(cfg)
		if err != nil {
			return nil, err
		}
		return cache.NewSqliteGeocodeCache(lite), nil
	case config.CachePostgres:
		pg, err := c.postgresDB(cfg)
		if err != nil {
			return nil, err
		}
		return cache.NewSQLGeocodeCache(pg), nil
	case config.CacheRedis:
		client, err := redisClient(cfg, c)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisGeocodeCache(client, "", cfg.GeocodeCacheTTL), nil
	default:
		return nil, nil
	}
}

func newGeocoder(cfg config.Config, c *resources, log logger.ILogger) (ports.Geocoder, error) {
	if cfg.Geocoder == config.GeocoderMock {
		log.Warning("using mock geocoder; addresses resolve to synthetic coordinates")
		g := geocoding.NewMockGeocoder(nil)
		g.Synthesize = true
		return g, nil
	}

	gc, err := newGeocodeCache(cfg, c)
	if err != nil {
		return nil, err
	}
	return geocoding.NewORSGeocoder(cfg.ORSAPIKey, geocoding.ORSOptions{
		BaseURL:     cfg.ORSBaseURL,
		Country:     cfg.GeocodeCountry,
		MaxAttempts: cfg.GeocodeMaxAttempts,
		Timeout:     cfg.GeocodeTimeout,
		Cache:       gc,
	})
}

func seed(ctx context.Context, store ports.LoadStore, path string, log logger.ILogger) error {
	n, err := repositories.SeedFromJSON(ctx, store, path)
	if err != nil {
		return err
	}
	log.Info("seeded loads", logger.String("path", path), logger.Int("count", n))
	return nil
}
