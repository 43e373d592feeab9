package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"load-tracking-service/internal/domain"
	"load-tracking-service/internal/platform/obs"
	"load-tracking-service/internal/ports"
	"time"
)

// loadQueries holds the dialect-specific statements of a SQL load store.
type loadQueries struct {
	get          string
	getForUpdate string
	upsert       string
	update       string
	remove       string
	listByOwner  string
	timeArg      func(time.Time) any
}

var postgresLoadQueries = loadQueries{
	get:          `SELECT doc FROM loads WHERE id = $1;`,
	getForUpdate: `SELECT doc FROM loads WHERE id = $1 FOR UPDATE;`,
	upsert: `
	INSERT INTO loads (id, owner_id, status, doc, created_at, updated_at)
	VALUES ($1, $2, $3, $4::jsonb, $5, $6)
	ON CONFLICT (id) DO UPDATE
	SET owner_id = EXCLUDED.owner_id,
		status = EXCLUDED.status,
		doc = EXCLUDED.doc,
		created_at = EXCLUDED.created_at,
		updated_at = EXCLUDED.updated_at;
	`,
	update: `
	UPDATE loads
	SET status = $1, doc = $2::jsonb, updated_at = $3
	WHERE id = $4;
	`,
	remove: `DELETE FROM loads WHERE id = $1 RETURNING doc;`,
	listByOwner: `
	SELECT doc
	FROM loads
	WHERE owner_id = $1
	ORDER BY created_at DESC, id;
	`,
	timeArg: func(t time.Time) any { return t.UTC() },
}

// SQLite has no row locks; the store's single connection serializes
// transactions instead. Timestamps are stored as unix nanoseconds so they
// order numerically.
var sqliteLoadQueries = loadQueries{
	get:          `SELECT doc FROM loads WHERE id = ?;`,
	getForUpdate: `SELECT doc FROM loads WHERE id = ?;`,
	upsert: `
	INSERT INTO loads (id, owner_id, status, doc, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE
	SET owner_id = excluded.owner_id,
		status = excluded.status,
		doc = excluded.doc,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at;
	`,
	update: `
	UPDATE loads
	SET status = ?, doc = ?, updated_at = ?
	WHERE id = ?;
	`,
	remove: `DELETE FROM loads WHERE id = ? RETURNING doc;`,
	listByOwner: `
	SELECT doc
	FROM loads
	WHERE owner_id = ?
	ORDER BY created_at DESC, id;
	`,
	timeArg: func(t time.Time) any { return t.UTC().UnixNano() },
}

// SQL-backed implementation of the LoadStore port. Each load is stored as a
// JSON document next to the columns used for lookup and ordering.
type SQLLoadStore struct {
	DB *sql.DB
	q  loadQueries
}

// NewSQLLoadStore returns a Postgres-backed store.
func NewSQLLoadStore(db *sql.DB) *SQLLoadStore {
	return &SQLLoadStore{DB: db, q: postgresLoadQueries}
}

// NewSqliteLoadStore returns a SQLite-backed store. db must be limited to a
// single open connection.
func NewSqliteLoadStore(db *sql.DB) *SQLLoadStore {
	return &SQLLoadStore{DB: db, q: sqliteLoadQueries}
}

func (s *SQLLoadStore) Get(ctx context.Context, id string) (_ *domain.Load, err error) {
	defer obs.Time(ctx, "loads.store.Get")(&err)

	if s.DB == nil {
		return nil, errors.New("sql load store: DB is nil")
	}

	var doc []byte
	if err := s.DB.QueryRowContext(ctx, s.q.get, id).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get load %q: query loads table: %w", id, err)
	}

	var l domain.Load
	if err := json.Unmarshal(doc, &l); err != nil {
		return nil, fmt.Errorf("get load %q: decode doc: %w", id, err)
	}

	return &l, nil
}

func (s *SQLLoadStore) Put(ctx context.Context, l *domain.Load) (err error) {
	defer obs.Time(ctx, "loads.store.Put")(&err)

	if s.DB == nil {
		return errors.New("sql load store: DB is nil")
	}
	if l == nil || l.ID == "" {
		return errInvalidLoad
	}

	doc, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("put load %q: encode doc: %w", l.ID, err)
	}

	_, err = s.DB.ExecContext(ctx, s.q.upsert,
		l.ID,
		l.OwnerID,
		string(l.Status),
		string(doc),
		s.q.timeArg(l.CreatedAt),
		s.q.timeArg(l.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put load %q: upsert: %w", l.ID, err)
	}

	return nil
}

func (s *SQLLoadStore) UpdateAtomic(ctx context.Context, id string, fn ports.UpdateFunc) (_ *domain.Load, err error) {
	defer obs.Time(ctx, "loads.store.UpdateAtomic")(&err)

	if s.DB == nil {
		return nil, errors.New("sql load store: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update load %q: db begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	var doc []byte
	if err := tx.QueryRowContext(ctx, s.q.getForUpdate, id).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update load %q: lock row: %w", id, err)
	}

	var current domain.Load
	if err := json.Unmarshal(doc, &current); err != nil {
		return nil, fmt.Errorf("update load %q: decode doc: %w", id, err)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.OwnerID = current.OwnerID

	out, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("update load %q: encode doc: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, s.q.update, string(next.Status), string(out), s.q.timeArg(next.UpdatedAt), id); err != nil {
		return nil, fmt.Errorf("update load %q: write row: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update load %q: commit: %w", id, err)
	}

	return next, nil
}

// Remove deletes the row and decodes the document it held, so callers see
// the last committed state.
func (s *SQLLoadStore) Remove(ctx context.Context, id string) (_ *domain.Load, err error) {
	defer obs.Time(ctx, "loads.store.Remove")(&err)

	if s.DB == nil {
		return nil, errors.New("sql load store: DB is nil")
	}

	var doc []byte
	if err := s.DB.QueryRowContext(ctx, s.q.remove, id).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("remove load %q: %w", id, err)
	}

	var l domain.Load
	if err := json.Unmarshal(doc, &l); err != nil {
		return nil, fmt.Errorf("remove load %q: decode doc: %w", id, err)
	}

	return &l, nil
}

func (s *SQLLoadStore) ListByOwner(ctx context.Context, ownerID string) (_ []*domain.Load, err error) {
	defer obs.Time(ctx, "loads.store.ListByOwner")(&err)

	if s.DB == nil {
		return nil, errors.New("sql load store: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, s.q.listByOwner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list loads: query loads table: %w", err)
	}
	defer rows.Close()

	loads := make([]*domain.Load, 0, 16)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("list loads: scan row: %w", err)
		}

		var l domain.Load
		if err := json.Unmarshal(doc, &l); err != nil {
			return nil, fmt.Errorf("list loads: decode doc: %w", err)
		}
		loads = append(loads, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list loads: row iteration: %w", err)
	}

	return loads, nil
}
