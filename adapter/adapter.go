// Package adapter defines the narrow contracts for the external
// collaborators the orchestrator drives: question generation, the
// form/results service, taxonomy lookup, and content rendering. Each
// adapter exposes exactly one operation relevant to the orchestrator and
// returns a typed result or a typed failure.
//
// Adapters are expected to be idempotent or tolerant of duplicate calls:
// the supervisor delivers at-least-once when a prior attempt's result was
// lost before being persisted.
package adapter

import (
	"context"

	"github.com/certvine/certflow"
	"github.com/certvine/certflow/gap"
	"github.com/certvine/certflow/id"
)

// Code is the typed failure class reported by adapters.
type Code string

const (
	// CodeUnavailable means the collaborator could not be reached or
	// answered with a server-side fault. Classified transient.
	CodeUnavailable Code = "unavailable"
	// CodeRateLimited means the collaborator throttled the call.
	// Classified transient.
	CodeRateLimited Code = "rate_limited"
	// CodeInvalidInput means the collaborator rejected the request.
	// Classified permanent.
	CodeInvalidInput Code = "invalid_input"
	// CodeUnknown covers everything else. Classified permanent so unknown
	// failures are never retried blindly.
	CodeUnknown Code = "unknown"
)

// Error is a typed adapter failure. It carries its retry classification
// so the supervisor can apply policy without inspecting messages.
type Error struct {
	Code    Code
	Service string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := "adapter " + e.Service + ": " + string(e.Code)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// ErrorKind maps the failure code onto the engine's error taxonomy.
func (e *Error) ErrorKind() certflow.Kind {
	switch e.Code {
	case CodeUnavailable, CodeRateLimited:
		return certflow.KindTransient
	default:
		return certflow.KindPermanent
	}
}

// Unavailable builds a transient unavailability failure for service.
func Unavailable(service string, err error) *Error {
	return &Error{Code: CodeUnavailable, Service: service, Err: err}
}

// RateLimited builds a transient throttling failure for service.
func RateLimited(service string, err error) *Error {
	return &Error{Code: CodeRateLimited, Service: service, Err: err}
}

// InvalidInput builds a permanent rejection failure for service.
func InvalidInput(service string, err error) *Error {
	return &Error{Code: CodeInvalidInput, Service: service, Err: err}
}

// Unknown builds a permanent unclassified failure for service.
func Unknown(service string, err error) *Error {
	return &Error{Code: CodeUnknown, Service: service, Err: err}
}

// ──────────────────────────────────────────────────
// Question generation
// ──────────────────────────────────────────────────

// AssessmentRequest describes the quiz to generate.
type AssessmentRequest struct {
	CertificationRef string            `json:"certification_ref"`
	OwnerRef         string            `json:"owner_ref"`
	Parameters       map[string]string `json:"parameters,omitempty"`
}

// Question is one generated assessment item, tagged with the taxonomy
// skill it exercises.
type Question struct {
	ID      string   `json:"id"`
	SkillID string   `json:"skill_id"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
}

// Assessment is a generated quiz.
type Assessment struct {
	ID               id.AssessmentID `json:"id"`
	CertificationRef string          `json:"certification_ref"`
	Questions        []Question      `json:"questions"`
}

// AssessmentGenerator produces a quiz for a certification profile.
type AssessmentGenerator interface {
	GenerateAssessment(ctx context.Context, req AssessmentRequest) (*Assessment, error)
}

// ──────────────────────────────────────────────────
// Form / results service
// ──────────────────────────────────────────────────

// FormHandle references a deployed external form and its result sink.
type FormHandle struct {
	ID        id.FormID `json:"id"`
	ResultRef string    `json:"result_ref"`
	FormURL   string    `json:"form_url"`
}

// FormService deploys assessments as external forms and retrieves the
// learner's responses. It also owns the syntactic validity check for
// external references supplied on resume.
type FormService interface {
	// DeployForm publishes the assessment as an external form and returns
	// a handle including the results-collection reference.
	DeployForm(ctx context.Context, a *Assessment) (*FormHandle, error)

	// ReleaseForm tears down an externally created form. Used as the
	// compensating action when a later step fails permanently.
	ReleaseForm(ctx context.Context, resultRef string) error

	// ValidateReference checks the syntactic validity of an external
	// reference without any side effect.
	ValidateReference(ref string) error

	// FetchResults retrieves the learner's responses for a reference.
	FetchResults(ctx context.Context, resultRef string) ([]gap.Response, error)
}

// ──────────────────────────────────────────────────
// Taxonomy lookup
// ──────────────────────────────────────────────────

// TaxonomyProvider resolves a certification reference to its skill
// taxonomy. Taxonomy storage is an external collaborator.
type TaxonomyProvider interface {
	Taxonomy(ctx context.Context, certificationRef string) (*gap.Taxonomy, error)
}

// ──────────────────────────────────────────────────
// Content rendering
// ──────────────────────────────────────────────────

// ContentRef points at one rendered learning artifact.
type ContentRef struct {
	ID     id.ContentID `json:"id"`
	Format string       `json:"format"`
	URL    string       `json:"url"`
}

// ContentGenerator renders learning content from a remediation plan.
// The orchestrator drives two instances: slide generation and narrated
// video generation.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, plan *gap.Plan) (*ContentRef, error)
}
