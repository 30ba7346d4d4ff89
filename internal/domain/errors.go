package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID      = "invalid"       // Invalid input or validation failure
	EUNAUTHORIZED = "unauthorized"  // Authentication required
	EFORBIDDEN    = "forbidden"     // Permission denied
	ENOTFOUND     = "not_found"     // Resource not found
	ECONFLICT     = "conflict"      // Resource conflict (e.g., duplicate)
	EGONE         = "gone"          // Resource no longer available
	ETOOLARGE     = "too_large"     // Request entity too large
	ERATELIMIT    = "rate_limit"    // Rate limit exceeded
	EINTERNAL     = "internal"      // Internal server error
	ENOTIMPL      = "not_impl"      // Not implemented
)

// Inspection lifecycle and report error codes
const (
	EINVALIDTRANSITION  = "invalid_transition"  // Phase submitted out of order
	EINCOMPLETEJUDGMENT = "incomplete_judgment" // Phase 1/2 submitted without a verdict
	EMISSINGEVIDENCE    = "missing_evidence"    // Photo required but absent
	ETOKENINVALID       = "token_invalid"       // Delegated token does not resolve
	ETOKENEXPIRED       = "token_expired"       // Delegated token past its expiry
	ECATALOGMISS        = "catalog_miss"        // POI id not present in the catalog
	ECOMPILATION        = "compilation_failure" // Report assembly failed
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "user.create")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		// For internal errors, return generic message
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// InvalidTransition creates a phase sequencing error.
func InvalidTransition(op string, phase, current int) *Error {
	return &Error{
		Code:    EINVALIDTRANSITION,
		Op:      op,
		Message: fmt.Sprintf("phase %d cannot be submitted while the instance is at phase %d", phase, current),
	}
}

// IncompleteJudgment creates an error for a remediation or validation phase
// submitted without a satisfactory/not satisfactory verdict.
func IncompleteJudgment(op string, phase int) *Error {
	return &Error{
		Code:    EINCOMPLETEJUDGMENT,
		Op:      op,
		Message: fmt.Sprintf("phase %d requires a satisfactory or not satisfactory status", phase),
	}
}

// MissingEvidence creates an error for a phase submitted without a photo.
func MissingEvidence(op string, phase int) *Error {
	return &Error{
		Code:    EMISSINGEVIDENCE,
		Op:      op,
		Message: fmt.Sprintf("phase %d requires a photo", phase),
	}
}

// CatalogMiss creates an error for an unknown POI id.
func CatalogMiss(op, poiID string) *Error {
	return &Error{
		Code:    ECATALOGMISS,
		Op:      op,
		Message: fmt.Sprintf("point of interest %q is not in the catalog", poiID),
	}
}

// TokenInvalid creates an error for a delegated token that does not resolve.
func TokenInvalid(op string) *Error {
	return &Error{
		Code:    ETOKENINVALID,
		Op:      op,
		Message: "Access link is invalid.",
	}
}

// TokenExpired creates an error for a delegated token past its expiry.
func TokenExpired(op string) *Error {
	return &Error{
		Code:    ETOKENEXPIRED,
		Op:      op,
		Message: "Access link has expired.",
	}
}

// CompilationFailure wraps any error raised while assembling a report.
func CompilationFailure(err error, op string) *Error {
	return &Error{
		Code:    ECOMPILATION,
		Op:      op,
		Message: "The report could not be generated.",
		Err:     err,
	}
}

// ValidationError represents field-level validation errors.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed", e.Op)
}

// NewValidationError creates a new validation error with the first field error.
func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{
		Op: op,
		Fields: map[string]string{
			field: message,
		},
	}
}
