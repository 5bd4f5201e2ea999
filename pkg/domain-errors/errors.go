// Package derrors defines coded domain errors shared across services and the
// HTTP transport. Services wrap infrastructure sentinel errors into coded
// errors; the transport translates codes into HTTP statuses without leaking
// collaborator internals.
package derrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of domain failure.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal_error"

	// Certifier-specific codes.
	CodeSessionExpired      Code = "session_expired"
	CodeUserNotSignedIn     Code = "user_not_signed_in"
	CodeIdentityNotFound    Code = "identity_not_found"
	CodeCertificationFailed Code = "certification_failed"
)

// Error is a coded domain error. Message is safe to log; only non-internal
// messages are exposed to HTTP clients.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error without an underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the domain code from an error chain, defaulting to
// CodeInternal for unclassified errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the domain message from an error chain.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps a domain code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeUserNotSignedIn:
		return http.StatusUnauthorized
	case CodeNotFound, CodeIdentityNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeSessionExpired:
		return http.StatusGone
	case CodeCertificationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
