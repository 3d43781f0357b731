package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
)

// Sentinel errors for the outcomes a caller (transport layer) must be able to
// distinguish. Everything else is absorbed into degraded content per turn.
var (
	// ErrInvalidInput marks an empty or otherwise unusable user utterance.
	// The turn terminates without mutating any session state.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternalInconsistency marks an impossible workflow state. The turn is
	// abandoned, session state is left untouched, and a degraded reply is
	// substituted for the caller.
	ErrInternalInconsistency = errors.New("internal inconsistency")

	// External service failure kinds. These never reach the caller as errors;
	// nodes convert them into fallback values. They exist so service adapters
	// can report what went wrong in a classifiable way.
	ErrTimeout           = errors.New("external service timeout")
	ErrUnavailable       = errors.New("external service unavailable")
	ErrNotFound          = errors.New("not found")
	ErrMalformedResponse = errors.New("malformed response")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Invalid wraps err so that errors.Is(result, ErrInvalidInput) holds.
func Invalid(message string) *AppError {
	return New(ErrInvalidInput, http.StatusBadRequest, message)
}

// Inconsistent wraps err so that errors.Is(result, ErrInternalInconsistency) holds.
func Inconsistent(message string) *AppError {
	return New(ErrInternalInconsistency, http.StatusInternalServerError, message)
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
