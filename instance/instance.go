// Package instance defines the durable workflow instance record, its stage
// machine, and the store interface it is persisted through.
package instance

import (
	"time"

	"github.com/certvine/certflow"
	"github.com/certvine/certflow/id"
)

// Stage is one named step of the workflow state machine. Stages form a
// total order with exactly one suspend point; Next encodes the order.
type Stage string

const (
	// StageRequested is the initial stage of every instance.
	StageRequested Stage = "requested"
	// StageAssessmentGenerated means the quiz has been generated.
	StageAssessmentGenerated Stage = "assessment_generated"
	// StageResourcesDeployed means the external form and result sink exist.
	StageResourcesDeployed Stage = "resources_deployed"
	// StageAwaitingExternalInput is the suspend point: the instance waits,
	// durably and without bound, for the learner to finish the form.
	StageAwaitingExternalInput Stage = "awaiting_external_input"
	// StageResultsRetrieved means learner responses have been fetched.
	StageResultsRetrieved Stage = "results_retrieved"
	// StageGapsAnalyzed means skill gaps have been scored.
	StageGapsAnalyzed Stage = "gaps_analyzed"
	// StagePlanGenerated means the remediation plan has been built.
	StagePlanGenerated Stage = "plan_generated"
	// StageContentGenerated means learning content has been rendered.
	StageContentGenerated Stage = "content_generated"
	// StageFinalized is the successful terminal stage.
	StageFinalized Stage = "finalized"
)

// stageOrder is the single source of truth for the transition table.
var stageOrder = []Stage{
	StageRequested,
	StageAssessmentGenerated,
	StageResourcesDeployed,
	StageAwaitingExternalInput,
	StageResultsRetrieved,
	StageGapsAnalyzed,
	StagePlanGenerated,
	StageContentGenerated,
	StageFinalized,
}

// Next returns the stage that follows s in the total order. The second
// return is false for the terminal stage and for unknown stage values.
func (s Stage) Next() (Stage, bool) {
	for i, stage := range stageOrder {
		if stage == s {
			if i+1 >= len(stageOrder) {
				return "", false
			}
			return stageOrder[i+1], true
		}
	}
	return "", false
}

// Valid reports whether s is a known stage value.
func (s Stage) Valid() bool {
	for _, stage := range stageOrder {
		if stage == s {
			return true
		}
	}
	return false
}

// IsSuspendPoint reports whether s is the stage at which execution
// suspends for external input of unbounded duration.
func (s Stage) IsSuspendPoint() bool { return s == StageAwaitingExternalInput }

// Status represents the lifecycle status of a workflow instance.
type Status string

const (
	// StatusActive means the instance is eligible for Advance.
	StatusActive Status = "active"
	// StatusSuspended means the instance is durably parked at the suspend
	// point until an explicit resume supplies the external reference.
	StatusSuspended Status = "suspended"
	// StatusCompleted means the instance finished successfully. Terminal.
	StatusCompleted Status = "completed"
	// StatusFailed means the instance failed terminally. Terminal.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrorEntry is one recorded stage failure. The error log is append-only
// and never pruned within the instance's lifetime.
type ErrorEntry struct {
	Stage     Stage         `json:"stage"`
	Attempt   int           `json:"attempt"`
	Kind      certflow.Kind `json:"kind"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

// Instance is the durable record of one workflow execution. It is mutated
// only by the orchestrator and supervisor, never by callers or adapters.
type Instance struct {
	certflow.Entity

	ID               id.InstanceID     `json:"id"`
	OwnerRef         string            `json:"owner_ref"`
	CertificationRef string            `json:"certification_ref"`
	Parameters       map[string]string `json:"parameters,omitempty"`
	Stage            Stage             `json:"stage"`
	Status           Status            `json:"status"`
	Payload          Payload           `json:"payload"`
	Attempt          int               `json:"attempt"`
	Version          int               `json:"version"`
	ErrorLog         []ErrorEntry      `json:"error_log,omitempty"`
	SuspendedAt      *time.Time        `json:"suspended_at,omitempty"`
	ResumedAt        *time.Time        `json:"resumed_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// New creates an active instance at the initial stage. params are the
// caller-supplied request parameters; nil is fine.
func New(ownerRef, certificationRef string, params map[string]string) *Instance {
	return &Instance{
		Entity:           certflow.NewEntity(),
		ID:               id.NewInstanceID(),
		OwnerRef:         ownerRef,
		CertificationRef: certificationRef,
		Parameters:       params,
		Stage:            StageRequested,
		Status:           StatusActive,
		Version:          1,
	}
}

// RecordError appends a failure entry to the error log.
func (i *Instance) RecordError(stage Stage, attempt int, kind certflow.Kind, msg string, at time.Time) {
	i.ErrorLog = append(i.ErrorLog, ErrorEntry{
		Stage:     stage,
		Attempt:   attempt,
		Kind:      kind,
		Message:   msg,
		Timestamp: at,
	})
}

// LastError returns the most recent error log entry, or nil if none.
func (i *Instance) LastError() *ErrorEntry {
	if len(i.ErrorLog) == 0 {
		return nil
	}
	return &i.ErrorLog[len(i.ErrorLog)-1]
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate persisted state through a shared pointer.
func (i *Instance) Clone() *Instance {
	cp := *i
	if i.Parameters != nil {
		cp.Parameters = make(map[string]string, len(i.Parameters))
		for k, v := range i.Parameters {
			cp.Parameters[k] = v
		}
	}
	cp.Payload = make(Payload, len(i.Payload))
	copy(cp.Payload, i.Payload)
	for k := range cp.Payload {
		data := make([]byte, len(i.Payload[k].Data))
		copy(data, i.Payload[k].Data)
		cp.Payload[k].Data = data
	}
	cp.ErrorLog = make([]ErrorEntry, len(i.ErrorLog))
	copy(cp.ErrorLog, i.ErrorLog)
	if i.SuspendedAt != nil {
		t := *i.SuspendedAt
		cp.SuspendedAt = &t
	}
	if i.ResumedAt != nil {
		t := *i.ResumedAt
		cp.ResumedAt = &t
	}
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
