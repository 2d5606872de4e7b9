// Package orchestrator drives workflow instances through the stage
// machine: it loads an instance, executes the handler registered for its
// current stage under the supervisor's retry policy, records the output,
// and persists the transition. Suspension at the external-input stage
// and explicit resume are orchestrator responsibilities; handlers never
// see them.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/certvine/certflow"
	"github.com/certvine/certflow/adapter"
	"github.com/certvine/certflow/id"
	"github.com/certvine/certflow/instance"
	"github.com/certvine/certflow/stage"
	"github.com/certvine/certflow/supervisor"
)

// ResumeInput is the payload entry recorded when a suspended instance is
// resumed with an external results reference.
type ResumeInput struct {
	Reference  string    `json:"reference"`
	ReceivedAt time.Time `json:"received_at"`
}

// Orchestrator executes workflow instances against a stage registry.
type Orchestrator struct {
	store    instance.Store
	registry *stage.Registry
	sup      *supervisor.Supervisor
	forms    adapter.FormService
	emitter  Emitter
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSupervisorOptions forwards options to the embedded supervisor.
func WithSupervisorOptions(opts ...supervisor.Option) Option {
	return func(o *Orchestrator) {
		o.sup = supervisor.New(o.store, o.emitter, o.logger, opts...)
	}
}

// New creates an Orchestrator. forms is used to validate external
// references on resume; it is the same adapter the standard registry
// deploys forms through.
func New(store instance.Store, registry *stage.Registry, forms adapter.FormService, emitter Emitter, logger *slog.Logger, opts ...Option) *Orchestrator {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		store:    store,
		registry: registry,
		forms:    forms,
		emitter:  emitter,
		logger:   logger,
	}
	o.sup = supervisor.New(store, emitter, logger)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start creates a new instance for the given owner and certification and
// advances it as far as it can go without external input. The returned
// instance reflects the state after advancement, which for the standard
// registry is suspension at the external-input stage. params are free-form
// request parameters recorded on the instance and passed through to the
// assessment generator; nil is fine.
func (o *Orchestrator) Start(ctx context.Context, ownerRef, certificationRef string, params map[string]string) (*instance.Instance, error) {
	if ownerRef == "" {
		return nil, certflow.Permanent("orchestrator.start", fmt.Errorf("owner reference is required"))
	}
	if certificationRef == "" {
		return nil, certflow.Permanent("orchestrator.start", fmt.Errorf("certification reference is required"))
	}

	inst := instance.New(ownerRef, certificationRef, params)
	if err := o.store.Create(ctx, inst); err != nil {
		return nil, fmt.Errorf("orchestrator: create instance: %w", err)
	}

	o.emitter.EmitInstanceStarted(ctx, inst)
	o.logger.Info("workflow instance started",
		slog.String("instance_id", inst.ID.String()),
		slog.String("certification_ref", certificationRef),
	)

	return o.advance(ctx, inst)
}

// Advance loads the instance and runs its stage loop until it suspends,
// completes, or fails. Advancing a terminal instance fails with a
// precondition error and hands back the unchanged record; advancing a
// suspended instance fails the same way, Resume is the only way past the
// suspend point.
func (o *Orchestrator) Advance(ctx context.Context, instID id.InstanceID) (*instance.Instance, error) {
	inst, err := o.store.Get(ctx, instID)
	if err != nil {
		return nil, err
	}

	if inst.Status.Terminal() {
		return inst, certflow.PreconditionFailed("orchestrator.advance",
			fmt.Errorf("instance %s is %s", instID, inst.Status))
	}
	if inst.Status == instance.StatusSuspended {
		return inst, certflow.PreconditionFailed("orchestrator.advance",
			fmt.Errorf("instance %s is suspended, resume it with an external reference", instID))
	}

	return o.advance(ctx, inst)
}

// Resume supplies the external results reference to a suspended instance
// and continues execution. The reference is validated syntactically
// before any state changes; a rejected reference leaves the instance
// untouched. A duplicate resume that lost the race observes a
// non-suspended status and gets the already-advanced state back with an
// invalid-resume error, without re-invoking any handler.
func (o *Orchestrator) Resume(ctx context.Context, instID id.InstanceID, externalRef string) (*instance.Instance, error) {
	inst, err := o.store.Get(ctx, instID)
	if err != nil {
		return nil, err
	}

	if inst.Status != instance.StatusSuspended {
		return inst, certflow.InvalidResume("orchestrator.resume",
			fmt.Errorf("instance %s is %s, not suspended", instID, inst.Status))
	}

	if validateErr := o.forms.ValidateReference(externalRef); validateErr != nil {
		return nil, certflow.InvalidResume("orchestrator.resume", validateErr)
	}

	now := time.Now().UTC()
	input, err := json.Marshal(ResumeInput{Reference: externalRef, ReceivedAt: now})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: encode resume input: %w", err)
	}
	if appendErr := inst.Payload.Append(instance.KeyResumeInput, input, now); appendErr != nil {
		return nil, certflow.InvalidResume("orchestrator.resume", appendErr)
	}

	inst.Status = instance.StatusActive
	inst.ResumedAt = &now
	inst.UpdatedAt = now

	if updateErr := o.store.Update(ctx, inst); updateErr != nil {
		return nil, fmt.Errorf("orchestrator: persist resume: %w", updateErr)
	}

	o.emitter.EmitInstanceResumed(ctx, inst)
	o.logger.Info("workflow instance resumed",
		slog.String("instance_id", inst.ID.String()),
		slog.String("external_ref", externalRef),
	)

	return o.advance(ctx, inst)
}

// Get returns the instance by ID.
func (o *Orchestrator) Get(ctx context.Context, instID id.InstanceID) (*instance.Instance, error) {
	return o.store.Get(ctx, instID)
}

// List returns instances matching opts.
func (o *Orchestrator) List(ctx context.Context, opts instance.ListOpts) ([]*instance.Instance, error) {
	return o.store.List(ctx, opts)
}

// advance is the stage loop: execute the current stage's handler, record
// the output, transition, persist, repeat. It stops at the suspend point
// when no resume input has been recorded, and marks the instance
// completed on reaching the terminal stage.
func (o *Orchestrator) advance(ctx context.Context, inst *instance.Instance) (*instance.Instance, error) {
	for {
		if inst.Stage.IsSuspendPoint() && !inst.Payload.Has(instance.KeyResumeInput) {
			return o.suspend(ctx, inst)
		}

		def, ok := o.registry.Get(inst.Stage)
		if !ok {
			return o.failWiring(ctx, inst, certflow.Permanent("orchestrator.advance",
				fmt.Errorf("stage %q: %w", inst.Stage, certflow.ErrNoHandler)))
		}

		var out json.RawMessage
		if def.Handler != nil {
			var execErr error
			out, execErr = o.sup.Execute(ctx, inst, def)
			if execErr != nil {
				// The supervisor has already persisted the failed transition.
				return inst, execErr
			}
		}

		now := time.Now().UTC()
		if len(out) > 0 {
			if appendErr := inst.Payload.Append(def.OutputKey, out, now); appendErr != nil {
				return nil, fmt.Errorf("orchestrator: record stage output: %w", appendErr)
			}
		}

		next, hasNext := inst.Stage.Next()
		if !hasNext {
			return o.failWiring(ctx, inst, certflow.Permanent("orchestrator.advance",
				fmt.Errorf("stage %q: %w", inst.Stage, certflow.ErrInvalidTransition)))
		}

		completed := inst.Stage
		inst.Stage = next
		inst.Attempt = 0
		inst.UpdatedAt = now
		if next == instance.StageFinalized {
			inst.Status = instance.StatusCompleted
			inst.CompletedAt = &now
		}

		if updateErr := o.store.Update(ctx, inst); updateErr != nil {
			return nil, fmt.Errorf("orchestrator: persist transition: %w", updateErr)
		}

		o.emitter.EmitStageCompleted(ctx, inst, completed)
		o.logger.Info("stage completed",
			slog.String("instance_id", inst.ID.String()),
			slog.String("stage", string(completed)),
			slog.String("next", string(next)),
		)

		if next == instance.StageFinalized {
			o.emitter.EmitInstanceCompleted(ctx, inst)
			o.logger.Info("workflow instance completed",
				slog.String("instance_id", inst.ID.String()),
			)
			return inst, nil
		}
	}
}

// failWiring moves an instance to failed when the stage loop hits a
// wiring error, a stage with no registered definition or no successor.
// The gap is a programming error, but the instance must still reach a
// terminal persisted state rather than stay active mid-flight.
func (o *Orchestrator) failWiring(ctx context.Context, inst *instance.Instance, wiringErr error) (*instance.Instance, error) {
	now := time.Now().UTC()
	inst.RecordError(inst.Stage, inst.Attempt, certflow.KindOf(wiringErr), wiringErr.Error(), now)
	inst.Status = instance.StatusFailed
	inst.UpdatedAt = now

	if updateErr := o.store.Update(ctx, inst); updateErr != nil {
		o.logger.Error("failed to persist failed status",
			slog.String("instance_id", inst.ID.String()),
			slog.String("stage", string(inst.Stage)),
			slog.String("error", updateErr.Error()),
		)
	}

	o.emitter.EmitStageFailed(ctx, inst, inst.Stage, wiringErr)
	o.logger.Error("stage loop cannot continue",
		slog.String("instance_id", inst.ID.String()),
		slog.String("stage", string(inst.Stage)),
		slog.String("error", wiringErr.Error()),
	)
	return inst, wiringErr
}

// suspend parks the instance at the suspend point and persists the
// status change.
func (o *Orchestrator) suspend(ctx context.Context, inst *instance.Instance) (*instance.Instance, error) {
	now := time.Now().UTC()
	inst.Status = instance.StatusSuspended
	inst.SuspendedAt = &now
	inst.UpdatedAt = now

	if err := o.store.Update(ctx, inst); err != nil {
		return nil, fmt.Errorf("orchestrator: persist suspension: %w", err)
	}

	o.emitter.EmitInstanceSuspended(ctx, inst)
	o.logger.Info("workflow instance suspended",
		slog.String("instance_id", inst.ID.String()),
		slog.String("stage", string(inst.Stage)),
	)

	return inst, nil
}
