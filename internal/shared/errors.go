package shared

import "errors"

// Error kinds shared by every domain package. Domain errors wrap one of these so
// the HTTP layer can choose a status code with errors.Is.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the caller supplied invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the resource state does not allow the operation.
	ErrConflict = errors.New("conflict")
	// ErrPosting indicates a ledger posting could not be produced.
	ErrPosting = errors.New("posting failed")
	// ErrUnauthorized indicates the request carries no actor.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the actor lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// FieldErrors carries per-field validation messages.
type FieldErrors map[string]string

// Error implements error.
func (f FieldErrors) Error() string {
	return "validation failed"
}

// Unwrap exposes ErrValidation to errors.Is.
func (f FieldErrors) Unwrap() error {
	return ErrValidation
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// NewError returns a sentinel with its own message that matches kind under errors.Is.
func NewError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}
