package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"load-tracking-service/internal/domain"
	"load-tracking-service/internal/ports"
	"time"

	bolt "github.com/boltdb/bolt"
)

var (
	loadsBucket  = []byte("loads")
	ownersBucket = []byte("owners")
)

// BoltDB-backed implementation of the LoadStore port.
//
// Loads live in one flat bucket keyed by id, so lookups never need owner
// context. The owners bucket holds one nested bucket per owner whose keys are
// that owner's load ids; it is written in the same transaction as the load.
// Bolt allows a single writer at a time, which makes UpdateAtomic serializable.
type BoltLoadStore struct {
	db *bolt.DB
}

// NewBoltLoadStore opens (or creates) a Bolt database at path.
func NewBoltLoadStore(path string) (*BoltLoadStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt load store: open %q: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(loadsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(ownersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt load store: create buckets: %w", err)
	}

	return &BoltLoadStore{db: db}, nil
}

// Close releases the database file lock.
func (s *BoltLoadStore) Close() error {
	return s.db.Close()
}

// Bucket names must be non-empty, anonymous loads share the "owner:" bucket.
func ownerKey(ownerID string) []byte {
	return []byte("owner:" + ownerID)
}

func (s *BoltLoadStore) Get(ctx context.Context, id string) (*domain.Load, error) {
	var l domain.Load

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(loadsBucket).Get([]byte(id))
		if v == nil {
			return domain.ErrNotFound
		}
		return json.Unmarshal(v, &l)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("bolt get load %q: %w", id, err)
	}

	return &l, nil
}

func (s *BoltLoadStore) Put(ctx context.Context, l *domain.Load) error {
	if l == nil || l.ID == "" {
		return errInvalidLoad
	}

	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("bolt put load %q: encode: %w", l.ID, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		loads := tx.Bucket(loadsBucket)
		owners := tx.Bucket(ownersBucket)

		if prev := loads.Get([]byte(l.ID)); prev != nil {
			var old domain.Load
			if err := json.Unmarshal(prev, &old); err != nil {
				return err
			}
			if b := owners.Bucket(ownerKey(old.OwnerID)); b != nil {
				if err := b.Delete([]byte(l.ID)); err != nil {
					return err
				}
			}
		}

		idx, err := owners.CreateBucketIfNotExists(ownerKey(l.OwnerID))
		if err != nil {
			return err
		}
		if err := idx.Put([]byte(l.ID), []byte{}); err != nil {
			return err
		}

		return loads.Put([]byte(l.ID), data)
	})
	if err != nil {
		return fmt.Errorf("bolt put load %q: %w", l.ID, err)
	}

	return nil
}

func (s *BoltLoadStore) UpdateAtomic(ctx context.Context, id string, fn ports.UpdateFunc) (*domain.Load, error) {
	var result *domain.Load

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		loads := tx.Bucket(loadsBucket)
		v := loads.Get([]byte(id))
		if v == nil {
			return domain.ErrNotFound
		}

		var current domain.Load
		if err := json.Unmarshal(v, &current); err != nil {
			return fmt.Errorf("decode: %w", err)
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}
		next.ID = current.ID
		next.OwnerID = current.OwnerID

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}

		result = next
		return loads.Put([]byte(id), data)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Remove deletes a load and its index entry. Missing ids are a no-op.
func (s *BoltLoadStore) Remove(ctx context.Context, id string) (*domain.Load, error) {
	var removed *domain.Load
	err := s.db.Update(func(tx *bolt.Tx) error {
		loads := tx.Bucket(loadsBucket)
		v := loads.Get([]byte(id))
		if v == nil {
			return nil
		}

		var l domain.Load
		if err := json.Unmarshal(v, &l); err != nil {
			return err
		}
		if b := tx.Bucket(ownersBucket).Bucket(ownerKey(l.OwnerID)); b != nil {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}

		removed = &l
		return loads.Delete([]byte(id))
	})
	if err != nil {
		return nil, fmt.Errorf("bolt remove load %q: %w", id, err)
	}

	return removed, nil
}

func (s *BoltLoadStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Load, error) {
	loads := []*domain.Load{}

	err := s.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(ownersBucket).Bucket(ownerKey(ownerID))
		if idx == nil {
			return nil
		}

		all := tx.Bucket(loadsBucket)
		return idx.ForEach(func(k, _ []byte) error {
			v := all.Get(k)
			if v == nil {
				return nil
			}
			var l domain.Load
			if err := json.Unmarshal(v, &l); err != nil {
				return err
			}
			loads = append(loads, &l)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt list loads for owner %q: %w", ownerID, err)
	}

	sortNewestFirst(loads)
	return loads, nil
}
