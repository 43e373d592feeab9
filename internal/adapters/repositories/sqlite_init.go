package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"load-tracking-service/internal/domain"
	"load-tracking-service/internal/ports"
	"os"
	"strings"
)

// Initialize the SQLite database schema.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createLoadsQuery := `
	CREATE TABLE IF NOT EXISTS loads (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		doc TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
        address TEXT PRIMARY KEY,
        lon REAL NOT NULL,
        lat REAL NOT NULL
    );
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_loads_owner_created
    ON loads(owner_id, created_at DESC);
	`

	statements := []string{
		createLoadsQuery,
		createGeocodeCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// Populate a load store with fixture loads from a JSON file. Entries are full
// load records, already geocoded; missing event logs get a Created entry.
func SeedFromJSON(ctx context.Context, store ports.LoadStore, jsonPath string) (int, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("seed loads: read %q: %w", jsonPath, err)
	}

	var data []domain.Load
	if err := json.Unmarshal(bytes, &data); err != nil {
		return 0, fmt.Errorf("seed loads: parse json: %w", err)
	}

	rows := make([]*domain.Load, 0, len(data))
	for i := range data {
		item := data[i]

		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			return 0, fmt.Errorf("seed loads: item at index %d: id cannot be empty", i+1)
		}
		if len(item.Stops) == 0 {
			return 0, fmt.Errorf("seed loads: load %q: at least one stop is required", item.ID)
		}

		switch item.Status {
		case domain.StatusCreated, domain.StatusConfirmed, domain.StatusCanceled, domain.StatusCompleted:
		case "":
			item.Status = domain.StatusCreated
		default:
			return 0, fmt.Errorf("seed loads: load %q: unknown status %q", item.ID, item.Status)
		}

		if item.CreatedAt.IsZero() {
			return 0, fmt.Errorf("seed loads: load %q: createdAt is required", item.ID)
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = item.CreatedAt
		}
		if len(item.Events) == 0 {
			item.Events = []domain.Event{{Type: domain.EventCreated, Timestamp: item.CreatedAt}}
		}
		if item.Locations == nil {
			item.Locations = []domain.Position{}
		}
		if n := len(item.Locations); n > 0 && item.DriverLocation == nil {
			last := item.Locations[n-1]
			item.DriverLocation = &last
		}

		rows = append(rows, &item)
	}

	for _, l := range rows {
		if err := store.Put(ctx, l); err != nil {
			return 0, fmt.Errorf("seed loads: put %q: %w", l.ID, err)
		}
	}

	return len(rows), nil
}
