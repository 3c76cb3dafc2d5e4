// Package apperror defines the error taxonomy shared by the service layer and
// the HTTP handlers, and the single translator that renders errors as JSON.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by who is at fault and how it should surface.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindConflict
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindRateLimited
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindConfiguration:
		return "configuration"
	default:
		return "unexpected"
	}
}

// Error is a classified error. Message is safe to show to clients; Err keeps
// the underlying cause for logs and errors.Is checks.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed, missing or policy-violating input.
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Conflict reports a duplicate unique key. It surfaces as 400 like other
// client input errors.
func Conflict(code, message string, err error) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message, Err: err}
}

// Authentication reports an unknown identity or a wrong credential.
func Authentication(message string, err error) *Error {
	return &Error{Kind: KindAuthentication, Code: "invalid_credentials", Message: message, Err: err}
}

// Authorization reports a missing, invalid or expired token on a protected route.
func Authorization(code, message string, err error) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: message, Err: err}
}

// NotFound reports that the addressed record does not exist.
func NotFound(code, message string, err error) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message, Err: err}
}

// RateLimited reports that the caller exceeded an attempt budget.
func RateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Code: "too_many_attempts", Message: message}
}

// Configuration reports a server misconfiguration. It is meant to stop the
// process at startup rather than surface on a request.
func Configuration(message string, err error) *Error {
	return &Error{Kind: KindConfiguration, Code: "configuration", Message: message, Err: err}
}

// Unexpected wraps any other failure.
func Unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Code: "internal_error", Message: "internal server error", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to its response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication, KindAuthorization:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
