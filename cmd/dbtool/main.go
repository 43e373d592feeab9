package main

import (
	"context"
	"flag"
	"fmt"
	"load-tracking-service/internal/adapters/repositories"
	"load-tracking-service/internal/config"
	"load-tracking-service/internal/platform/db"
	"load-tracking-service/internal/platform/logger"
	"load-tracking-service/internal/ports"
	"os"
)

// dbtool prepares a persistent store: Postgres migrations or the SQLite
// schema, then optional fixture loads from SEED_PATH (or -seed).
func main() {
	seedPath := flag.String("seed", "", "JSON file of fixture loads (defaults to SEED_PATH)")
	flag.Parse()

	cfg, err := config.Parse()
	if err == nil {
		err = cfg.ValidateStore()
	}
	if err != nil {
		logger.New("dbtool", "info").Error("config invalid", logger.Error(err))
		os.Exit(1)
	}
	if *seedPath != "" {
		cfg.SeedPath = *seedPath
	}

	log := logger.New(cfg.ServiceName+"-dbtool", cfg.LogLevel)
	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("dbtool failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logger.ILogger) error {
	var store ports.LoadStore

	switch cfg.StoreDriver {
	case config.StorePostgres:
		log.Info("applying postgres migrations")
		changed, err := repositories.MigratePostgres(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		log.Info("migrations done", logger.Any("changed", changed))

		pg, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = repositories.NewSQLLoadStore(pg)

	case config.StoreSqlite:
		lite, err := db.OpenSqlite(cfg.SqlitePath)
		if err != nil {
			return err
		}
		defer lite.Close()

		log.Info("initializing sqlite schema", logger.String("path", cfg.SqlitePath))
		if err := repositories.InitSchema(lite); err != nil {
			return err
		}
		store = repositories.NewSqliteLoadStore(lite)

	case config.StoreBolt:
		bolt, err := repositories.NewBoltLoadStore(cfg.BoltPath)
		if err != nil {
			return err
		}
		defer bolt.Close()
		store = bolt

	default:
		return fmt.Errorf("dbtool: STORE_DRIVER %q has nothing to prepare", cfg.StoreDriver)
	}

	if cfg.SeedPath == "" {
		log.Info("no seed file configured, skipping seeding")
		return nil
	}

	n, err := repositories.SeedFromJSON(ctx, store, cfg.SeedPath)
	if err != nil {
		return err
	}
	log.Info("seeding complete", logger.String("path", cfg.SeedPath), logger.Int("count", n))
	return nil
}
