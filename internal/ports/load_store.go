package ports

import (
	"context"
	"load-tracking-service/internal/domain"
)

// UpdateFunc transforms the freshest stored copy of a load. Returning an error
// aborts the update and nothing is written.
type UpdateFunc func(l *domain.Load) error

// Port: the persistence boundary for Load records.
//
// UpdateAtomic is the only mutation path for existing loads. Two concurrent
// updates on the same id never interleave: the second one observes the
// first one's result.
type LoadStore interface {
	// Return the load with the given id or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Load, error)
	// Store a new load under its id (and its owner's partition).
	Put(ctx context.Context, l *domain.Load) error
	// Read, transform and write back a load as one atomic step.
	UpdateAtomic(ctx context.Context, id string, fn UpdateFunc) (*domain.Load, error)
	// Delete a load entirely and return it as it was at removal. Removing a
	// missing id is not an error and returns nil.
	Remove(ctx context.Context, id string) (*domain.Load, error)
	// Return an owner's loads, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Load, error)
}
