package instance

import (
	"context"

	"github.com/certvine/certflow/id"
)

// ListOpts controls filtering and pagination for instance list queries.
type ListOpts struct {
	// Limit is the maximum number of instances to return. Zero means no limit.
	Limit int
	// Offset is the number of instances to skip.
	Offset int
	// Status filters by lifecycle status. Empty means all statuses.
	Status Status
}

// Store defines the persistence contract for workflow instances. It is
// the only shared resource between concurrently advancing instances.
//
// Implementations must provide read-modify-write atomicity per instance:
// Update succeeds only when the caller's Version matches the stored one
// (compare-and-swap), which serializes concurrent Advance/Resume calls
// targeting the same instance.
type Store interface {
	// Create persists a new instance. Fails with ErrInstanceExists if the
	// ID is already present.
	Create(ctx context.Context, inst *Instance) error

	// Get retrieves an instance by ID. Fails with ErrInstanceNotFound.
	Get(ctx context.Context, instID id.InstanceID) (*Instance, error)

	// Update persists changes to an existing instance if inst.Version
	// matches the stored version, then increments both. Fails with
	// ErrVersionConflict when another writer got there first.
	Update(ctx context.Context, inst *Instance) error

	// List returns instances matching the given options, ordered by
	// creation time ascending.
	List(ctx context.Context, opts ListOpts) ([]*Instance, error)
}
