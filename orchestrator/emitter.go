package orchestrator

import (
	"context"
	"time"

	"github.com/certvine/certflow/instance"
)

// Emitter receives lifecycle notifications from the orchestrator and
// supervisor. Implementations must be fast and must not fail: emission
// is observability, never control flow.
type Emitter interface {
	// EmitInstanceStarted fires once when a new instance is created.
	EmitInstanceStarted(ctx context.Context, inst *instance.Instance)

	// EmitStageCompleted fires after a stage's output is persisted and the
	// instance has transitioned to the next stage.
	EmitStageCompleted(ctx context.Context, inst *instance.Instance, completed instance.Stage)

	// EmitStageRetrying fires before each retry backoff sleep.
	EmitStageRetrying(ctx context.Context, inst *instance.Instance, stage instance.Stage, attempt int, delay time.Duration)

	// EmitStageFailed fires once when an instance moves to failed.
	EmitStageFailed(ctx context.Context, inst *instance.Instance, stage instance.Stage, err error)

	// EmitInstanceSuspended fires when an instance parks at the suspend point.
	EmitInstanceSuspended(ctx context.Context, inst *instance.Instance)

	// EmitInstanceResumed fires when a suspended instance accepts a resume.
	EmitInstanceResumed(ctx context.Context, inst *instance.Instance)

	// EmitInstanceCompleted fires once when an instance reaches the
	// terminal stage successfully.
	EmitInstanceCompleted(ctx context.Context, inst *instance.Instance)
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

func (NoopEmitter) EmitInstanceStarted(context.Context, *instance.Instance) {}
func (NoopEmitter) EmitStageCompleted(context.Context, *instance.Instance, instance.Stage) {
}
func (NoopEmitter) EmitStageRetrying(context.Context, *instance.Instance, instance.Stage, int, time.Duration) {
}
func (NoopEmitter) EmitStageFailed(context.Context, *instance.Instance, instance.Stage, error) {}
func (NoopEmitter) EmitInstanceSuspended(context.Context, *instance.Instance)                  {}
func (NoopEmitter) EmitInstanceResumed(context.Context, *instance.Instance)                    {}
func (NoopEmitter) EmitInstanceCompleted(context.Context, *instance.Instance)                  {}

var _ Emitter = NoopEmitter{}
