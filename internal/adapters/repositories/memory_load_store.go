package repositories

import (
	"context"
	"load-tracking-service/internal/domain"
	"load-tracking-service/internal/ports"
	"sort"
	"sync"
)

type memoryEntry struct {
	mu      sync.Mutex
	load    *domain.Load
	removed bool
}

// In-memory implementation of the LoadStore port.
//
// The map itself is guarded by one RWMutex held only for lookups and index
// maintenance; each record has its own mutex, so UpdateAtomic serializes per
// load and never blocks unrelated loads.
type MemoryLoadStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	owners  map[string]map[string]struct{}
}

func NewMemoryLoadStore() *MemoryLoadStore {
	return &MemoryLoadStore{
		entries: make(map[string]*memoryEntry),
		owners:  make(map[string]map[string]struct{}),
	}
}

func (s *MemoryLoadStore) entry(id string) *memoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}

func (s *MemoryLoadStore) Get(ctx context.Context, id string) (*domain.Load, error) {
	e := s.entry(id)
	if e == nil {
		return nil, domain.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, domain.ErrNotFound
	}

	return e.load.Clone(), nil
}

func (s *MemoryLoadStore) Put(ctx context.Context, l *domain.Load) error {
	if l == nil || l.ID == "" {
		return errInvalidLoad
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[l.ID]; ok {
		old.mu.Lock()
		old.removed = true
		if old.load.OwnerID != l.OwnerID {
			delete(s.owners[old.load.OwnerID], l.ID)
		}
		old.mu.Unlock()
	}

	s.entries[l.ID] = &memoryEntry{load: l.Clone()}
	if s.owners[l.OwnerID] == nil {
		s.owners[l.OwnerID] = make(map[string]struct{})
	}
	s.owners[l.OwnerID][l.ID] = struct{}{}

	return nil
}

func (s *MemoryLoadStore) UpdateAtomic(ctx context.Context, id string, fn ports.UpdateFunc) (*domain.Load, error) {
	e := s.entry(id)
	if e == nil {
		return nil, domain.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, domain.ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next := e.load.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = e.load.ID
	next.OwnerID = e.load.OwnerID

	e.load = next
	return next.Clone(), nil
}

func (s *MemoryLoadStore) Remove(ctx context.Context, id string) (*domain.Load, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}

	e.mu.Lock()
	e.removed = true
	removed := e.load.Clone()
	owner := e.load.OwnerID
	e.mu.Unlock()

	delete(s.entries, id)
	delete(s.owners[owner], id)
	if len(s.owners[owner]) == 0 {
		delete(s.owners, owner)
	}

	return removed, nil
}

func (s *MemoryLoadStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Load, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.owners[ownerID]))
	for id := range s.owners[ownerID] {
		entries = append(entries, s.entries[id])
	}
	s.mu.RUnlock()

	loads := make([]*domain.Load, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			loads = append(loads, e.load.Clone())
		}
		e.mu.Unlock()
	}

	sortNewestFirst(loads)
	return loads, nil
}

// sortNewestFirst orders loads by CreatedAt descending, ties broken by id.
func sortNewestFirst(loads []*domain.Load) {
	sort.Slice(loads, func(i, j int) bool {
		if !loads[i].CreatedAt.Equal(loads[j].CreatedAt) {
			return loads[i].CreatedAt.After(loads[j].CreatedAt)
		}
		return loads[i].ID < loads[j].ID
	})
}
