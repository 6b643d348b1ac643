// Package oidcerr implements the OIDC/OAuth 2.0 protocol error taxonomy
// (§7.1 of the specification): errors that are surfaced verbatim to the
// caller with a stable code and a human-readable description.
package oidcerr

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Code is a registered OAuth 2.0 / OIDC error code.
type Code string

const (
	InvalidRequest       Code = "invalid_request"
	InvalidClient        Code = "invalid_client"
	InvalidGrant         Code = "invalid_grant"
	UnauthorizedClient   Code = "unauthorized_client"
	UnsupportedGrantType Code = "unsupported_grant_type"
	InvalidScope         Code = "invalid_scope"
	InvalidTarget        Code = "invalid_target"
	AccessDenied         Code = "access_denied"
	AuthorizationPending Code = "authorization_pending"
	SlowDown             Code = "slow_down"
	ExpiredToken         Code = "expired_token"
	ServerError          Code = "server_error"
	InvalidClientMetadata Code = "invalid_client_metadata"
)

// Error is the wire-level representation of a failed OIDC/OAuth operation.
// It marshals to `{"error": "...", "error_description": "..."}` per RFC 6749 §5.2.
type Error struct {
	Code        Code   `json:"error"`
	Description string `json:"error_description,omitempty"`
	// Cause is the underlying error, if any; never serialized.
	Cause error `json:"-"`
}

// New creates a protocol error with the given description.
func New(code Code, description string) *Error {
	return &Error{Code: code, Description: description}
}

// Newf creates a protocol error with a formatted description.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause to a protocol error.
func Wrap(code Code, description string, cause error) *Error {
	return &Error{Code: code, Description: description, Cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return string(e.Code)
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// MarshalJSON renders the RFC 6749 §5.2 error object.
func (e *Error) MarshalJSON() ([]byte, error) {
	type wire struct {
		Code        Code   `json:"error"`
		Description string `json:"error_description,omitempty"`
	}
	return json.Marshal(wire{Code: e.Code, Description: e.Description})
}

// As reports whether err is (or wraps) an *Error and returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// FromError normalizes an arbitrary error into a protocol error, special-casing
// validator.ValidationErrors the same way the teacher's helpers.NewErrorFromError
// special-cases mongo/json errors: known shapes get a precise code, everything
// else collapses to server_error so internals never leak to the wire.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	if e, ok := As(err); ok {
		return e
	}

	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		return Wrap(InvalidRequest, formatValidationErrors(verr), err)
	}

	return Wrap(ServerError, "an internal error occurred", err)
}

func formatValidationErrors(verr validator.ValidationErrors) string {
	if len(verr) == 0 {
		return "validation failed"
	}
	first := verr[0]
	return fmt.Sprintf("field %q failed validation %q", first.Field(), first.Tag())
}
