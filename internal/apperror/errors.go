// Package apperror provides the error taxonomy shared by the session and
// collection layers. Every failure that reaches a caller is an *Error with a
// Kind, so the CLI (or any other front end) can decide how to present it
// without inspecting transport details.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	// Unauthenticated means the session is missing or expired (probe failure or HTTP 401).
	Unauthenticated Kind = iota + 1
	// Validation is a client-side rejection raised before any network call.
	Validation
	// Network means the request never completed.
	Network
	// ServerRejected is a non-2xx response other than 401/404.
	ServerRejected
	// NotFound is an HTTP 404.
	NotFound
	// StaleResponse marks a result superseded by a newer request.
	StaleResponse
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Validation:
		return "validation"
	case Network:
		return "network"
	case ServerRejected:
		return "server_rejected"
	case NotFound:
		return "not_found"
	case StaleResponse:
		return "stale_response"
	default:
		return "unknown"
	}
}

// Error is the base error type for all client-side failures.
type Error struct {
	// Kind is the failure class.
	Kind Kind

	// Status is the HTTP status code when a response was received, 0 otherwise.
	Status int

	// Message is a human-readable description safe to show to the user.
	Message string

	// Err holds the underlying error, if any. Never shown to the user.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind. This lets callers
// write errors.Is(err, apperror.ErrUnauthenticated).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Status == 0 && t.Message == ""
}

// Sentinels for errors.Is comparisons. They only match on Kind.
var (
	ErrUnauthenticated = &Error{Kind: Unauthenticated}
	ErrValidation      = &Error{Kind: Validation}
	ErrNetwork         = &Error{Kind: Network}
	ErrServerRejected  = &Error{Kind: ServerRejected}
	ErrNotFound        = &Error{Kind: NotFound}
	ErrStaleResponse   = &Error{Kind: StaleResponse}
)

// --- Constructors ---

// NewUnauthenticated creates an Unauthenticated error.
func NewUnauthenticated(message string) *Error {
	return &Error{Kind: Unauthenticated, Status: http.StatusUnauthorized, Message: message}
}

// NewValidation creates a Validation error. No request has been sent.
func NewValidation(message string) *Error {
	return &Error{Kind: Validation, Message: message}
}

// NewValidationf is NewValidation with formatting.
func NewValidationf(format string, args ...any) *Error {
	return NewValidation(fmt.Sprintf(format, args...))
}

// NewNetwork wraps a transport failure.
func NewNetwork(err error) *Error {
	return &Error{Kind: Network, Message: "request failed to complete, please retry", Err: err}
}

// NewServerRejected creates an error for a non-2xx response. An empty message
// falls back to a generic one built from the status code.
func NewServerRejected(status int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("server rejected the request (HTTP %d %s)", status, http.StatusText(status))
	}
	return &Error{Kind: ServerRejected, Status: status, Message: message}
}

// NewNotFound creates a NotFound error.
func NewNotFound(message string) *Error {
	return &Error{Kind: NotFound, Status: http.StatusNotFound, Message: message}
}

// NewStale creates a StaleResponse error.
func NewStale(what string) *Error {
	return &Error{Kind: StaleResponse, Message: what + " superseded by a newer request"}
}

// --- Inspection helpers ---

// KindOf returns the Kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsUnauthenticated reports whether err is an Unauthenticated error.
func IsUnauthenticated(err error) bool { return KindOf(err) == Unauthenticated }

// IsValidation reports whether err is a Validation error.
func IsValidation(err error) bool { return KindOf(err) == Validation }

// IsNetwork reports whether err is a Network error.
func IsNetwork(err error) bool { return KindOf(err) == Network }

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return KindOf(err) == NotFound }

// IsStale reports whether err is a StaleResponse error.
func IsStale(err error) bool { return KindOf(err) == StaleResponse }

// Retryable reports whether repeating the same call may succeed.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Network:
		return true
	case ServerRejected:
		var e *Error
		errors.As(err, &e)
		return e.Status >= 500 || e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// UserMessage returns the message safe to show to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "an unexpected error occurred"
}
