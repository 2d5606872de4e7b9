package instance_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/certvine/certflow"
	"github.com/certvine/certflow/instance"
)

func TestStageOrder(t *testing.T) {
	tests := []struct {
		from instance.Stage
		want instance.Stage
	}{
		{instance.StageRequested, instance.StageAssessmentGenerated},
		{instance.StageAssessmentGenerated, instance.StageResourcesDeployed},
		{instance.StageResourcesDeployed, instance.StageAwaitingExternalInput},
		{instance.StageAwaitingExternalInput, instance.StageResultsRetrieved},
		{instance.StageResultsRetrieved, instance.StageGapsAnalyzed},
		{instance.StageGapsAnalyzed, instance.StagePlanGenerated},
		{instance.StagePlanGenerated, instance.StageContentGenerated},
		{instance.StageContentGenerated, instance.StageFinalized},
	}

	for _, tt := range tests {
		got, ok := tt.from.Next()
		if !ok {
			t.Fatalf("Next(%s): expected a successor", tt.from)
		}
		if got != tt.want {
			t.Errorf("Next(%s) = %s, want %s", tt.from, got, tt.want)
		}
	}
}

func TestStageTerminalHasNoSuccessor(t *testing.T) {
	if _, ok := instance.StageFinalized.Next(); ok {
		t.Error("finalized stage should have no successor")
	}
	if _, ok := instance.Stage("bogus").Next(); ok {
		t.Error("unknown stage should have no successor")
	}
}

func TestStageSuspendPoint(t *testing.T) {
	for _, s := range []instance.Stage{
		instance.StageRequested,
		instance.StageResourcesDeployed,
		instance.StageResultsRetrieved,
		instance.StageFinalized,
	} {
		if s.IsSuspendPoint() {
			t.Errorf("%s should not be a suspend point", s)
		}
	}
	if !instance.StageAwaitingExternalInput.IsSuspendPoint() {
		t.Error("awaiting_external_input should be the suspend point")
	}
}

func TestStatusTerminal(t *testing.T) {
	if instance.StatusActive.Terminal() || instance.StatusSuspended.Terminal() {
		t.Error("active/suspended must not be terminal")
	}
	if !instance.StatusCompleted.Terminal() || !instance.StatusFailed.Terminal() {
		t.Error("completed/failed must be terminal")
	}
}

func TestNewInstance(t *testing.T) {
	inst := instance.New("owner-1", "AWS-SAA", nil)
	if inst.ID.IsNil() {
		t.Fatal("expected generated ID")
	}
	if inst.Stage != instance.StageRequested {
		t.Errorf("expected initial stage requested, got %s", inst.Stage)
	}
	if inst.Status != instance.StatusActive {
		t.Errorf("expected active status, got %s", inst.Status)
	}
	if inst.Version != 1 {
		t.Errorf("expected version 1, got %d", inst.Version)
	}
}

func TestPayloadAppendOnly(t *testing.T) {
	var p instance.Payload
	now := time.Now().UTC()

	if err := p.Append(instance.KeyAssessment, json.RawMessage(`{"a":1}`), now); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if err := p.Append(instance.KeyResponses, json.RawMessage(`[1,2]`), now); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	err := p.Append(instance.KeyAssessment, json.RawMessage(`{"a":2}`), now)
	if !errors.Is(err, certflow.ErrPayloadExists) {
		t.Fatalf("expected ErrPayloadExists on overwrite, got %v", err)
	}

	// Original data intact.
	data, ok := p.Get(instance.KeyAssessment)
	if !ok || string(data) != `{"a":1}` {
		t.Errorf("expected original entry preserved, got %q", data)
	}
}

func TestPayloadInsertionOrder(t *testing.T) {
	var p instance.Payload
	now := time.Now().UTC()
	keys := []string{
		instance.KeyAssessment,
		instance.KeyFormDeployment,
		instance.KeyResumeInput,
		instance.KeyResponses,
		instance.KeyGapAnalysis,
	}
	for _, k := range keys {
		if err := p.Append(k, json.RawMessage(`{}`), now); err != nil {
			t.Fatalf("append %q: %v", k, err)
		}
	}

	got := p.Keys()
	for i, k := range keys {
		if got[i] != k {
			t.Fatalf("insertion order broken at %d: got %q, want %q", i, got[i], k)
		}
	}
}

func TestPayloadDecode(t *testing.T) {
	var p instance.Payload
	if err := p.Append("x", json.RawMessage(`{"n":7}`), time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	var v struct {
		N int `json:"n"`
	}
	if err := p.Decode("x", &v); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v.N != 7 {
		t.Errorf("expected 7, got %d", v.N)
	}

	if err := p.Decode("missing", &v); err == nil {
		t.Error("expected error decoding missing key")
	}
}

func TestErrorLogAppend(t *testing.T) {
	inst := instance.New("o", "c", nil)
	now := time.Now().UTC()

	inst.RecordError(instance.StageRequested, 1, certflow.KindTransient, "timeout", now)
	inst.RecordError(instance.StageRequested, 2, certflow.KindTransient, "timeout", now.Add(time.Second))

	if len(inst.ErrorLog) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(inst.ErrorLog))
	}
	last := inst.LastError()
	if last == nil || last.Attempt != 2 {
		t.Errorf("expected last attempt 2, got %+v", last)
	}
}

func TestCloneIsDeep(t *testing.T) {
	inst := instance.New("o", "c", nil)
	if err := inst.Payload.Append("k", json.RawMessage(`{"v":1}`), time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	inst.RecordError(instance.StageRequested, 1, certflow.KindPermanent, "boom", time.Now().UTC())

	cp := inst.Clone()
	cp.Payload[0].Data[2] = 'x'
	cp.ErrorLog[0].Message = "changed"
	if err := cp.Payload.Append("k2", json.RawMessage(`{}`), time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	if string(inst.Payload[0].Data) != `{"v":1}` {
		t.Error("clone shares payload data with original")
	}
	if inst.ErrorLog[0].Message != "boom" {
		t.Error("clone shares error log with original")
	}
	if len(inst.Payload) != 1 {
		t.Error("append to clone leaked into original")
	}
}
