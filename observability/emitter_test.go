package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/certvine/certflow/instance"
	"github.com/certvine/certflow/observability"
)

func TestLogEmitterWritesStructuredEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	emitter := observability.NewLogEmitter(logger)

	inst := instance.New("learner-1", "AWS-SAA", nil)
	ctx := context.Background()

	emitter.EmitInstanceStarted(ctx, inst)
	emitter.EmitStageCompleted(ctx, inst, instance.StageRequested)
	emitter.EmitStageRetrying(ctx, inst, instance.StageRequested, 1, 500*time.Millisecond)
	emitter.EmitStageFailed(ctx, inst, instance.StageRequested, errors.New("boom"))
	emitter.EmitInstanceSuspended(ctx, inst)
	emitter.EmitInstanceResumed(ctx, inst)
	emitter.EmitInstanceCompleted(ctx, inst)

	out := buf.String()
	for _, want := range []string{
		"instance started",
		"stage completed",
		"stage retrying",
		"stage failed",
		"instance suspended",
		"instance resumed",
		"instance completed",
		inst.ID.String(),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}

func TestLogEmitterNilLogger(t *testing.T) {
	emitter := observability.NewLogEmitter(nil)
	emitter.EmitInstanceStarted(context.Background(), instance.New("o", "c", nil))
}
