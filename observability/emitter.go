// Package observability provides emitter implementations that turn
// workflow lifecycle events into structured logs.
package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/certvine/certflow/instance"
	"github.com/certvine/certflow/orchestrator"
)

var _ orchestrator.Emitter = (*LogEmitter)(nil)

// LogEmitter logs every lifecycle event with the instance's identity and
// position in the stage machine.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a LogEmitter writing to logger.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) EmitInstanceStarted(_ context.Context, inst *instance.Instance) {
	e.logger.Info("instance started",
		slog.String("instance_id", inst.ID.String()),
		slog.String("owner_ref", inst.OwnerRef),
		slog.String("certification_ref", inst.CertificationRef),
	)
}

func (e *LogEmitter) EmitStageCompleted(_ context.Context, inst *instance.Instance, completed instance.Stage) {
	e.logger.Info("stage completed",
		slog.String("instance_id", inst.ID.String()),
		slog.String("stage", string(completed)),
		slog.String("next", string(inst.Stage)),
	)
}

func (e *LogEmitter) EmitStageRetrying(_ context.Context, inst *instance.Instance, s instance.Stage, attempt int, delay time.Duration) {
	e.logger.Warn("stage retrying",
		slog.String("instance_id", inst.ID.String()),
		slog.String("stage", string(s)),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
	)
}

func (e *LogEmitter) EmitStageFailed(_ context.Context, inst *instance.Instance, s instance.Stage, err error) {
	e.logger.Error("stage failed",
		slog.String("instance_id", inst.ID.String()),
		slog.String("stage", string(s)),
		slog.Int("attempts", inst.Attempt),
		slog.String("error", err.Error()),
	)
}

func (e *LogEmitter) EmitInstanceSuspended(_ context.Context, inst *instance.Instance) {
	e.logger.Info("instance suspended",
		slog.String("instance_id", inst.ID.String()),
		slog.String("stage", string(inst.Stage)),
	)
}

func (e *LogEmitter) EmitInstanceResumed(_ context.Context, inst *instance.Instance) {
	e.logger.Info("instance resumed",
		slog.String("instance_id", inst.ID.String()),
	)
}

func (e *LogEmitter) EmitInstanceCompleted(_ context.Context, inst *instance.Instance) {
	e.logger.Info("instance completed",
		slog.String("instance_id", inst.ID.String()),
		slog.Int("payload_entries", len(inst.Payload)),
	)
}
