// Package supervisor wraps stage execution with bounded retry, exponential
// backoff, and compensation on unrecoverable failure.
package supervisor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/certvine/certflow"
	"github.com/certvine/certflow/backoff"
	"github.com/certvine/certflow/instance"
	"github.com/certvine/certflow/stage"
)

// DefaultMaxAttempts is the per-stage attempt budget when a definition
// does not override it.
const DefaultMaxAttempts = 3

// Emitter receives retry and failure lifecycle events. The orchestrator's
// emitter satisfies this narrower interface.
type Emitter interface {
	EmitStageRetrying(ctx context.Context, inst *instance.Instance, s instance.Stage, attempt int, delay time.Duration)
	EmitStageFailed(ctx context.Context, inst *instance.Instance, s instance.Stage, err error)
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

// EmitStageRetrying implements Emitter.
func (NoopEmitter) EmitStageRetrying(context.Context, *instance.Instance, instance.Stage, int, time.Duration) {
}

// EmitStageFailed implements Emitter.
func (NoopEmitter) EmitStageFailed(context.Context, *instance.Instance, instance.Stage, error) {}

// Supervisor executes stage handlers under retry policy. Transient
// failures are retried with backoff up to the attempt budget; permanent
// failures and exhausted budgets run the stage's compensation and move
// the instance to failed. A failed workflow always reaches failed status,
// never hangs: compensation errors are logged and never block the
// transition.
type Supervisor struct {
	store       instance.Store
	backoff     backoff.Strategy
	maxAttempts int
	emitter     Emitter
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithMaxAttempts overrides the default attempt budget.
func WithMaxAttempts(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff overrides the default backoff strategy.
func WithBackoff(b backoff.Strategy) Option {
	return func(s *Supervisor) {
		if b != nil {
			s.backoff = b
		}
	}
}

// WithSleep replaces the delay function. Tests inject a no-op here.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Supervisor) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// New creates a Supervisor persisting through store.
func New(store instance.Store, emitter Emitter, logger *slog.Logger, opts ...Option) *Supervisor {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Supervisor{
		store:       store,
		backoff:     backoff.DefaultStrategy(),
		maxAttempts: DefaultMaxAttempts,
		emitter:     emitter,
		logger:      logger,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs def's handler for inst under retry policy and returns the
// handler's output. Every failed attempt is appended to the instance's
// error log and persisted before the next attempt. On unrecoverable
// failure the instance is moved to failed status, persisted, and the
// final handler error is returned.
func (s *Supervisor) Execute(ctx context.Context, inst *instance.Instance, def stage.Definition) (json.RawMessage, error) {
	maxAttempts := s.maxAttempts
	if def.MaxAttempts > 0 {
		maxAttempts = def.MaxAttempts
	}

	for {
		attempt := inst.Attempt + 1

		out, handlerErr := def.Handler(ctx, inst)
		if handlerErr == nil {
			return out, nil
		}

		kind := certflow.KindOf(handlerErr)
		now := time.Now().UTC()
		inst.Attempt = attempt
		inst.RecordError(def.Stage, attempt, kind, handlerErr.Error(), now)
		inst.UpdatedAt = now

		if updateErr := s.store.Update(ctx, inst); updateErr != nil {
			s.logger.Error("failed to persist attempt state",
				slog.String("instance_id", inst.ID.String()),
				slog.String("stage", string(def.Stage)),
				slog.String("error", updateErr.Error()),
			)
			return nil, updateErr
		}

		if kind == certflow.KindTransient && attempt < maxAttempts {
			delay := s.backoff.Delay(attempt)
			s.emitter.EmitStageRetrying(ctx, inst, def.Stage, attempt, delay)

			s.logger.Info("stage scheduled for retry",
				slog.String("instance_id", inst.ID.String()),
				slog.String("stage", string(def.Stage)),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", maxAttempts),
				slog.Duration("delay", delay),
			)

			if sleepErr := s.sleep(ctx, delay); sleepErr != nil {
				// Context ended during backoff: no further attempt is
				// possible, fall through to the failure transition.
				return nil, s.fail(ctx, inst, def, handlerErr, now)
			}
			continue
		}

		return nil, s.fail(ctx, inst, def, handlerErr, now)
	}
}

// fail runs the stage's compensation, moves the instance to failed, and
// persists the transition. It returns the original handler error.
func (s *Supervisor) fail(ctx context.Context, inst *instance.Instance, def stage.Definition, handlerErr error, now time.Time) error {
	if def.Compensate != nil {
		if compErr := def.Compensate(ctx, inst); compErr != nil {
			s.logger.Error("compensation failed",
				slog.String("instance_id", inst.ID.String()),
				slog.String("stage", string(def.Stage)),
				slog.String("error", compErr.Error()),
			)
		}
	}

	// CompletedAt marks successful completion only; a failed record
	// carries its terminal timestamp in UpdatedAt and the error log.
	inst.Status = instance.StatusFailed
	inst.UpdatedAt = now

	if updateErr := s.store.Update(ctx, inst); updateErr != nil {
		s.logger.Error("failed to persist failed status",
			slog.String("instance_id", inst.ID.String()),
			slog.String("stage", string(def.Stage)),
			slog.String("error", updateErr.Error()),
		)
	}

	s.emitter.EmitStageFailed(ctx, inst, def.Stage, handlerErr)

	s.logger.Warn("stage failed unrecoverably",
		slog.String("instance_id", inst.ID.String()),
		slog.String("stage", string(def.Stage)),
		slog.Int("attempts", inst.Attempt),
		slog.String("error", handlerErr.Error()),
	)

	return handlerErr
}

// sleepContext waits for d or until ctx ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
