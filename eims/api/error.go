package api

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrAuth login failed or client credentials are missing
	ErrAuth = errors.New("eims authentication failed")
	// ErrSigning key material missing or invalid, raised before any network call
	ErrSigning = errors.New("eims request signing failed")
	// ErrTransientTransport retry budget exhausted on a transient failure
	ErrTransientTransport = errors.New("eims transient transport failure")
	// ErrValidation document data rejected locally, raised before any network call
	ErrValidation         = errors.New("eims validation failed")
	ErrClassification     = errors.New("eims buyer classification failed")
	ErrRegistryRejection  = errors.New("eims registry rejected the request")
	ErrResendBlocked      = errors.New("document is still active in the registry, resend blocked")
	ErrReconciliationMiss = errors.New("callback item has no matching bulk mapping")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("eims unauthorized")
)

// RequestError HTTP level failure returned by the registry (non transient 4xx).
type RequestError struct {
	StatusCode   int
	Err          error
	Body         string
	ErrorDetails map[string]any
}

func (r *RequestError) Error() string {
	return fmt.Sprintf("status: %d err: %v message: %s", r.StatusCode, r.Err, r.Body)
}

func (r *RequestError) Unwrap() error {
	if r.StatusCode == 401 {
		return ErrUnauthorized
	}
	return r.Err
}

// AuthError login failure; Cause is what the login call returned.
type AuthError struct {
	Cause error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("eims authentication failed: %v", e.Cause)
}

func (e *AuthError) Unwrap() []error {
	return []error{ErrAuth, e.Cause}
}

// RejectionError well-formed call answered with a business failure.
type RejectionError struct {
	HTTPStatus int
	StatusCode int
	Message    string
	Body       []byte
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("EIMS rejected request (http %d, status %d): %s", e.HTTPStatus, e.StatusCode, e.Message)
}

func (e *RejectionError) Unwrap() error {
	return ErrRegistryRejection
}

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
	Kind   error
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Kind: ErrValidation}
}

func NewClassificationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Kind: ErrClassification}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap reports both the specific kind and ErrValidation, so a
// classification failure also matches errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() []error {
	if e.Kind == nil || e.Kind == ErrValidation {
		return []error{ErrValidation}
	}
	return []error{e.Kind, ErrValidation}
}

// TransientError wraps the last cause once retries are exhausted.
type TransientError struct {
	Attempts   int
	StatusCode int
	Cause      error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("EIMS unavailable after %d attempts: %v", e.Attempts, e.Cause)
	}
	return fmt.Sprintf("EIMS unavailable after %d attempts: http status %d", e.Attempts, e.StatusCode)
}

func (e *TransientError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTransientTransport}
	}
	return []error{ErrTransientTransport, e.Cause}
}
