package certflow

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("certflow: no store configured")
	ErrStoreClosed     = errors.New("certflow: store closed")
	ErrMigrationFailed = errors.New("certflow: migration failed")

	// Not found errors.
	ErrInstanceNotFound = errors.New("certflow: workflow instance not found")
	ErrTaxonomyNotFound = errors.New("certflow: certification taxonomy not found")

	// Conflict errors.
	ErrInstanceExists  = errors.New("certflow: workflow instance already exists")
	ErrVersionConflict = errors.New("certflow: instance version conflict")

	// State errors.
	ErrInvalidTransition = errors.New("certflow: invalid stage transition")
	ErrPayloadExists     = errors.New("certflow: payload entry already recorded for stage")
	ErrNoHandler         = errors.New("certflow: no handler registered for stage")

	// Gap analysis errors.
	ErrInsufficientData = errors.New("certflow: insufficient responses for mandatory skill")
)

// Kind classifies an error for retry and propagation policy.
type Kind string

const (
	// KindTransient marks retry-eligible failures: timeouts, rate limits,
	// temporary collaborator unavailability.
	KindTransient Kind = "transient"
	// KindPermanent marks business-rule or validation failures that must
	// not be retried.
	KindPermanent Kind = "permanent"
	// KindPreconditionFailed marks operations invalid for the instance's
	// current state. The instance is never mutated.
	KindPreconditionFailed Kind = "precondition_failed"
	// KindInvalidResume marks a malformed or already-consumed external
	// reference on a resume call. The instance is never mutated.
	KindInvalidResume Kind = "invalid_resume_request"
)

// Error carries a Kind alongside a wrapped cause so callers can apply
// policy with errors.As without matching on message text.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return "certflow: " + e.Op + ": " + string(e.Kind)
	}
	return "certflow: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// ErrorKind returns the error's classification. It satisfies the Kinder
// interface used by KindOf.
func (e *Error) ErrorKind() Kind { return e.Kind }

// Kinder is implemented by errors that carry their own classification,
// for example the adapter package's typed failures.
type Kinder interface {
	ErrorKind() Kind
}

// Transient wraps err as a retry-eligible failure.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Permanent wraps err as a non-retryable failure.
func Permanent(op string, err error) *Error {
	return &Error{Kind: KindPermanent, Op: op, Err: err}
}

// PreconditionFailed wraps err as an operation invalid for current state.
func PreconditionFailed(op string, err error) *Error {
	return &Error{Kind: KindPreconditionFailed, Op: op, Err: err}
}

// InvalidResume wraps err as a rejected resume request.
func InvalidResume(op string, err error) *Error {
	return &Error{Kind: KindInvalidResume, Op: op, Err: err}
}

// KindOf classifies err. Errors that carry a Kind report it; everything
// else defaults to permanent so unknown failures are never retried.
func KindOf(err error) Kind {
	var k Kinder
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindPermanent
}

// IsTransient reports whether err is retry-eligible.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }
