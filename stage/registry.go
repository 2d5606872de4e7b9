// Package stage defines the step registry: the fixed, load-time mapping
// from a workflow stage to the handler that executes it.
package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/certvine/certflow/instance"
)

// Handler executes one workflow stage. Handlers are pure with respect to
// the instance: they read the payload for upstream data and return the
// value to be recorded, and never mutate the instance directly. The
// orchestrator persists the output and the stage transition, which makes
// replay after a crash safe.
type Handler func(ctx context.Context, inst *instance.Instance) (json.RawMessage, error)

// Compensation is a handler-specific cleanup invoked when a stage fails
// permanently after partially creating external resources.
type Compensation func(ctx context.Context, inst *instance.Instance) error

// Definition binds a stage to its handler and declares where the output
// is recorded in the instance payload. A definition with a nil Handler
// and no OutputKey is a pass-through: the stage transitions directly to
// its successor with no work and nothing recorded.
type Definition struct {
	// Stage is the stage this handler executes from.
	Stage instance.Stage

	// OutputKey is the payload key the handler's output is recorded under.
	OutputKey string

	// Handler executes the stage. Nil marks a pass-through stage.
	Handler Handler

	// Compensate, if set, runs when the stage fails unrecoverably.
	Compensate Compensation

	// MaxAttempts overrides the supervisor's default attempt budget for
	// this stage. Zero means use the default.
	MaxAttempts int
}

// Registry maps stages to definitions. It is populated once at load time
// and safe for concurrent reads afterwards.
type Registry struct {
	mu   sync.RWMutex
	defs map[instance.Stage]Definition
}

// NewRegistry creates an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[instance.Stage]Definition)}
}

// Register adds a definition. Registering an unknown stage, a handler
// without an output key, an output key without a handler, or a duplicate
// stage is a programming error and fails.
func (r *Registry) Register(def Definition) error {
	if !def.Stage.Valid() {
		return fmt.Errorf("stage registry: unknown stage %q", def.Stage)
	}
	if def.Handler == nil && def.OutputKey != "" {
		return fmt.Errorf("stage registry: output key without handler for stage %q", def.Stage)
	}
	if def.Handler != nil && def.OutputKey == "" {
		return fmt.Errorf("stage registry: empty output key for stage %q", def.Stage)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Stage]; exists {
		return fmt.Errorf("stage registry: stage %q already registered", def.Stage)
	}
	r.defs[def.Stage] = def
	return nil
}

// MustRegister is Register that panics on error. Use during load-time
// wiring where a failure is a programming error.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Get returns the definition registered for s.
func (r *Registry) Get(s instance.Stage) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[s]
	return def, ok
}

// Len returns the number of registered stages.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.defs)
}
