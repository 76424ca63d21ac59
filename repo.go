package relaygate

import "context"

// ServiceRepo stores service descriptors. List returns descriptors in their
// stored order, which is the order routes are registered in.
type ServiceRepo interface {
	List(ctx context.Context) ([]ServiceDescriptor, error)
	// Get returns ErrNotFound when no descriptor has the given id.
	Get(ctx context.Context, id string) (ServiceDescriptor, error)
	// Upsert replaces the descriptor with the same id, keeping its position,
	// or appends a new one.
	Upsert(ctx context.Context, desc ServiceDescriptor) error
	// Delete returns ErrNotFound when no descriptor has the given id.
	Delete(ctx context.Context, id string) error
}
