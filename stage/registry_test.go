package stage_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/certvine/certflow/instance"
	"github.com/certvine/certflow/stage"
)

func noopHandler(_ context.Context, _ *instance.Instance) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func TestRegisterAndGet(t *testing.T) {
	r := stage.NewRegistry()
	err := r.Register(stage.Definition{
		Stage:     instance.StageRequested,
		OutputKey: instance.KeyAssessment,
		Handler:   noopHandler,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	def, ok := r.Get(instance.StageRequested)
	if !ok {
		t.Fatal("expected definition for requested stage")
	}
	if def.OutputKey != instance.KeyAssessment {
		t.Errorf("unexpected output key %q", def.OutputKey)
	}

	if _, ok := r.Get(instance.StageGapsAnalyzed); ok {
		t.Error("expected no definition for unregistered stage")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := stage.NewRegistry()
	def := stage.Definition{
		Stage:     instance.StageRequested,
		OutputKey: instance.KeyAssessment,
		Handler:   noopHandler,
	}
	if err := r.Register(def); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := r.Register(def); err == nil {
		t.Error("expected error on duplicate registration")
	}
}

func TestRegisterPassThrough(t *testing.T) {
	r := stage.NewRegistry()

	if err := r.Register(stage.Definition{Stage: instance.StageResourcesDeployed}); err != nil {
		t.Fatalf("pass-through register failed: %v", err)
	}

	def, ok := r.Get(instance.StageResourcesDeployed)
	if !ok {
		t.Fatal("expected pass-through definition")
	}
	if def.Handler != nil || def.OutputKey != "" {
		t.Errorf("pass-through must carry no handler or output key, got %+v", def)
	}
}

func TestRegisterValidation(t *testing.T) {
	r := stage.NewRegistry()

	if err := r.Register(stage.Definition{
		Stage:     instance.Stage("bogus"),
		OutputKey: "x",
		Handler:   noopHandler,
	}); err == nil {
		t.Error("expected error for unknown stage")
	}

	if err := r.Register(stage.Definition{
		Stage:     instance.StageRequested,
		OutputKey: "x",
	}); err == nil {
		t.Error("expected error for output key without handler")
	}

	if err := r.Register(stage.Definition{
		Stage:   instance.StageRequested,
		Handler: noopHandler,
	}); err == nil {
		t.Error("expected error for empty output key")
	}

	if r.Len() != 0 {
		t.Errorf("expected empty registry after rejected registrations, got %d", r.Len())
	}
}
