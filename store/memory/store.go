// Package memory provides a fully in-memory instance store. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/certvine/certflow"
	"github.com/certvine/certflow/id"
	"github.com/certvine/certflow/instance"
)

// Ensure Store implements the persistence contract at compile time.
var _ instance.Store = (*Store)(nil)

// Store is an in-memory implementation of instance.Store with the same
// compare-and-swap semantics as the durable backends.
type Store struct {
	mu        sync.RWMutex
	instances map[string]*instance.Instance
}

// New returns a new empty Store.
func New() *Store {
	return &Store{instances: make(map[string]*instance.Instance)}
}

// Create persists a new instance.
func (m *Store) Create(_ context.Context, inst *instance.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := inst.ID.String()
	if _, exists := m.instances[key]; exists {
		return certflow.ErrInstanceExists
	}
	m.instances[key] = inst.Clone()
	return nil
}

// Get retrieves an instance by ID.
func (m *Store) Get(_ context.Context, instID id.InstanceID) (*instance.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.instances[instID.String()]
	if !ok {
		return nil, certflow.ErrInstanceNotFound
	}
	return inst.Clone(), nil
}

// Update persists changes if inst.Version matches the stored version,
// then increments the version on both the stored copy and inst.
func (m *Store) Update(_ context.Context, inst *instance.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := inst.ID.String()
	stored, ok := m.instances[key]
	if !ok {
		return certflow.ErrInstanceNotFound
	}
	if stored.Version != inst.Version {
		return certflow.ErrVersionConflict
	}

	inst.Version++
	inst.UpdatedAt = time.Now().UTC()
	m.instances[key] = inst.Clone()
	return nil
}

// List returns instances matching opts, ordered by creation time
// ascending with ID as a stable tiebreak.
func (m *Store) List(_ context.Context, opts instance.ListOpts) ([]*instance.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]*instance.Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		if opts.Status != "" && inst.Status != opts.Status {
			continue
		}
		results = append(results, inst.Clone())
	}

	sort.Slice(results, func(a, b int) bool {
		if !results[a].CreatedAt.Equal(results[b].CreatedAt) {
			return results[a].CreatedAt.Before(results[b].CreatedAt)
		}
		return results[a].ID.String() < results[b].ID.String()
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(results) {
			return nil, nil
		}
		results = results[opts.Offset:]
	}
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}
