package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies application failures.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFoundError"
	default:
		return "InternalError"
	}
}

// HTTPStatus maps a kind to its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// DomainError standardizes application errors.
type DomainError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the response status for the error.
func (e *DomainError) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// Envelope renders the client-facing message, prefixed with the status text.
func (e *DomainError) Envelope() string {
	return fmt.Sprintf("%s: %s", http.StatusText(e.HTTPStatus()), e.Message)
}

func NewValidationError(message string) error {
	return &DomainError{Kind: KindValidation, Message: message}
}

func NewNotFound(resource string) error {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

// NewInternalError wraps err; the cause is logged but never rendered to clients.
func NewInternalError(err error) error {
	return &DomainError{Kind: KindInternal, Message: "internal server error", Err: err}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind == kind
	}
	return false
}

// ToDomainError converts generic errors to DomainError. Errors without a
// recognized kind become internal errors.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{Kind: KindInternal, Message: "internal server error", Err: err}
}
