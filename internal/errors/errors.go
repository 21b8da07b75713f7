package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies failures by how the caller is expected to react.
type ErrorCode string

const (
	ErrTransientProvider ErrorCode = "TRANSIENT_PROVIDER" // collaborator timeout or network failure, fail open
	ErrValidation        ErrorCode = "VALIDATION"         // incomplete candidate, dropped
	ErrDelivery          ErrorCode = "DELIVERY"           // transport failure, requeue + alert
	ErrPersistence       ErrorCode = "PERSISTENCE"        // corpus or queue write failed, halt commits
	ErrConfiguration     ErrorCode = "CONFIGURATION"      // e.g. wrong vector dimension
	ErrNotFound          ErrorCode = "NOT_FOUND"
)

// NewsError is a structured error with a code, message, optional cause and details.
type NewsError struct {
	Code    ErrorCode
	Message string
	Err     error
	Details map[string]any
}

// Error implements the error interface.
func (e *NewsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *NewsError) Unwrap() error {
	return e.Err
}

// NewTransientProvider wraps a failed collaborator call (embedder, reranker, judge, fetch).
func NewTransientProvider(provider string, err error) *NewsError {
	return &NewsError{
		Code:    ErrTransientProvider,
		Message: fmt.Sprintf("%s call failed", provider),
		Err:     err,
		Details: map[string]any{"provider": provider},
	}
}

// NewValidation reports a candidate that is missing required fields.
func NewValidation(missing []string) *NewsError {
	return &NewsError{
		Code:    ErrValidation,
		Message: fmt.Sprintf("candidate missing required fields: %v", missing),
		Details: map[string]any{"missing_fields": missing},
	}
}

// NewDelivery wraps a transport failure for a queued post.
func NewDelivery(title string, err error) *NewsError {
	return &NewsError{
		Code:    ErrDelivery,
		Message: "delivery failed",
		Err:     err,
		Details: map[string]any{"title": title},
	}
}

// NewPersistence wraps a failed corpus or queue write.
func NewPersistence(op string, err error) *NewsError {
	return &NewsError{
		Code:    ErrPersistence,
		Message: op,
		Err:     err,
	}
}

// NewDimensionMismatch is returned when a vector does not match the index dimension.
func NewDimensionMismatch(want, got int) *NewsError {
	return &NewsError{
		Code:    ErrConfiguration,
		Message: fmt.Sprintf("vector dimension %d does not match index dimension %d", got, want),
		Details: map[string]any{"want": want, "got": got},
	}
}

// NewConfiguration reports an invalid setting.
func NewConfiguration(msg string) *NewsError {
	return &NewsError{
		Code:    ErrConfiguration,
		Message: msg,
	}
}

// NewNotFound reports a missing record.
func NewNotFound(identifier string) *NewsError {
	return &NewsError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// Is reports whether any error in err's chain is a NewsError with the given code.
func Is(err error, code ErrorCode) bool {
	var nErr *NewsError
	if stderrors.As(err, &nErr) {
		return nErr.Code == code
	}
	return false
}
