// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for transport.
type Kind int

const (
	KindInternal Kind = iota
	KindAuth
	KindForbidden
	KindValidation
	KindNotFound
	KindInvalidTransition
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Login failure reasons. These are logged, and mapped to a coarser public
// code before they reach a caller.
const (
	ReasonDeviceNotFound = "DEVICE_NOT_FOUND"
	ReasonNotAssigned    = "NOT_ASSIGNED"
	ReasonDeactivated    = "DEACTIVATED"
	ReasonNotConfigured  = "NOT_CONFIGURED"
	ReasonInvalidKey     = "INVALID_KEY"
)

// Public codes returned to callers.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeDeviceInactive     = "DEVICE_INACTIVE"
	CodeDeviceNotAssigned  = "DEVICE_NOT_ASSIGNED"
	CodeMissingToken       = "MISSING_TOKEN"
	CodeInvalidSession     = "INVALID_SESSION"
	CodeInvalidAdminKey    = "INVALID_ADMIN_KEY"
	CodeValidation         = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is the single error type crossing the service boundary.
type Error struct {
	Kind    Kind
	Code    string
	Message string

	// Reason is the precise internal cause of an auth failure. Never rendered.
	Reason     string
	// Fields carries per-field validation messages.
	Fields     map[string]string
	// Allowed lists the legal next statuses for an invalid transition.
	Allowed    []string
	// RetryAfter is the hint attached to a rate-limit rejection.
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// LoginFailure builds the auth error for a failed login step.
func LoginFailure(reason string, cause error) *Error {
	e := &Error{Reason: reason, Err: cause}
	switch reason {
	case ReasonDeactivated:
		e.Kind, e.Code, e.Message = KindForbidden, CodeDeviceInactive, "device is inactive"
	case ReasonNotAssigned:
		e.Kind, e.Code, e.Message = KindForbidden, CodeDeviceNotAssigned, "device is not assigned to a restaurant"
	default:
		e.Kind, e.Code, e.Message = KindAuth, CodeInvalidCredentials, "invalid device credentials"
	}
	return e
}

// InvalidSession is returned for a missing, expired or revoked session.
func InvalidSession() *Error {
	return &Error{Kind: KindAuth, Code: CodeInvalidSession, Message: "invalid or expired session"}
}

// MissingToken is returned when no usable bearer token was supplied.
func MissingToken() *Error {
	return &Error{Kind: KindAuth, Code: CodeMissingToken, Message: "missing bearer token"}
}

// InvalidAdminKey is returned when the administration key does not match.
func InvalidAdminKey() *Error {
	return &Error{Kind: KindAuth, Code: CodeInvalidAdminKey, Message: "invalid admin key"}
}

// Validation wraps caller-input problems with field-level detail.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message, Fields: fields}
}

// NotFound covers both missing records and records owned by someone else.
func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: what + " not found"}
}

// InvalidTransition reports an illegal status change and the legal options.
func InvalidTransition(from, to string, allowed []string) *Error {
	if allowed == nil {
		allowed = []string{}
	}
	return &Error{
		Kind:    KindInvalidTransition,
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition order from %s to %s", from, to),
		Allowed: allowed,
	}
}

// RateLimited carries the retry hint for a throttled caller.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Code: CodeRateLimited, Message: "rate limit exceeded", RetryAfter: retryAfter}
}

// Internal hides err from callers while keeping it for logs.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal error", Err: err}
}
