// Package agenterr defines the agent's closed error taxonomy: a fixed set of
// kinds rather than a growing hierarchy of types.
package agenterr

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy's closed set of error kinds.
type Kind string

const (
	Serialization     Kind = "serialization"
	Config            Kind = "config"
	Validation        Kind = "validation"
	Auth              Kind = "auth"
	NotFound          Kind = "not_found"
	Internal          Kind = "internal"
	Network           Kind = "network"
	RateLimit         Kind = "rate_limit"
	ServiceUnavail    Kind = "service_unavailable"
	PolicyDenied      Kind = "policy_denied"
	ProcessNotAllowed Kind = "process_not_allowed"
	InvalidArguments  Kind = "invalid_arguments"
	BinaryHashMismatch Kind = "binary_hash_mismatch"
	ConsentRequired   Kind = "consent_required"
	ConsentExpired    Kind = "consent_expired"
	IO                Kind = "io"
	SandboxInit       Kind = "sandbox_init"
	SandboxExecution  Kind = "sandbox_execution"
	SandboxUnsupported Kind = "sandbox_unsupported"
	ExecutionTimeout  Kind = "execution_timeout"
	ElementNotFound   Kind = "element_not_found"
	PrivacyDenied     Kind = "privacy_denied"
	OcrError          Kind = "ocr_error"
)

// Error is the agent's single structured error type. Components don't
// invent new error types; they tag an existing one with a Kind.
type Error struct {
	Kind    Kind
	Field   string // Validation
	Message string
	Resource string // NotFound
	ID       string // NotFound
	RetryAfterSecs int // RateLimit
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a bare Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags an existing error with a Kind, preserving it via Unwrap.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NotFoundf builds a NotFound error for a resource/id pair.
func NotFoundf(resource, id string) *Error {
	return &Error{Kind: NotFound, Resource: resource, ID: id, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// Validationf builds a Validation error for a specific field.
func Validationf(field, message string) *Error {
	return &Error{Kind: Validation, Field: field, Message: message}
}

// RateLimitf builds a RateLimit error carrying a retry-after hint.
func RateLimitf(retryAfterSecs int) *Error {
	return &Error{Kind: RateLimit, RetryAfterSecs: retryAfterSecs, Message: "rate limited"}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or Internal if err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}
