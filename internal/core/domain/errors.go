package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a registry error with a structured error code.
//
// Codes follow the format SR-<AREA>-<NNNN>. The transport layer renders
// them as "ERR <code> <message>" so clients can match on the code.
type DomainError struct {
	Code    string // Error code (e.g., "SR-ACL-4030")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Name errors (NAME)
var (
	// ErrInvalidFQName indicates an interface name that does not parse as
	// package@major.minor::Interface.
	ErrInvalidFQName = NewDomainError("SR-NAME-4001", "invalid fully-qualified interface name")

	// ErrEmptyInstance indicates an operation that requires an instance name got none.
	ErrEmptyInstance = NewDomainError("SR-NAME-4002", "empty instance name")
)

// Access control errors (ACL)
var (
	// ErrPermissionDenied indicates the policy denied the operation.
	ErrPermissionDenied = NewDomainError("SR-ACL-4030", "permission denied")

	// ErrNoLabel indicates no security label is known for the interface or caller.
	ErrNoLabel = NewDomainError("SR-ACL-4031", "no security label")
)

// Node errors (NODE)
var (
	// ErrInvalidHandle indicates a handle string that does not parse.
	ErrInvalidHandle = NewDomainError("SR-NODE-4000", "invalid handle")

	// ErrNodeNotFound indicates the handle does not refer to a live object.
	ErrNodeNotFound = NewDomainError("SR-NODE-4040", "object not found")

	// ErrNodeDead indicates the object's owning process is gone.
	ErrNodeDead = NewDomainError("SR-NODE-4100", "dead object")

	// ErrDeliveryFailed indicates a notification could not be written to the
	// subscriber's connection.
	ErrDeliveryFailed = NewDomainError("SR-NODE-5020", "notification delivery failed")
)

// Token errors (TOKN)
var (
	// ErrTokenMalformed indicates a token that cannot be decoded.
	ErrTokenMalformed = NewDomainError("SR-TOKN-4000", "malformed token")

	// ErrTokenInvalid indicates an unknown or forged token.
	ErrTokenInvalid = NewDomainError("SR-TOKN-4010", "invalid token")
)

// System errors (SYS)
var (
	// ErrInternal indicates an internal error.
	ErrInternal = NewDomainError("SR-SYS-5000", "internal error")

	// ErrUnavailable indicates the registry loop is not running.
	ErrUnavailable = NewDomainError("SR-SYS-5030", "registry unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("SR-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests on one connection.
	ErrRateLimited = NewDomainError("SR-SYS-4290", "too many requests")
)
