package providers

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConfigured is returned by adapters that lack credentials or an endpoint
	ErrNotConfigured = errors.New("provider not configured")

	// ErrMalformedResponse is returned when a success payload lacks its expected field
	ErrMalformedResponse = errors.New("malformed response")

	// ErrRetriesExhausted annotates the last error once every attempt has failed
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrUnsupportedOperation is returned when an adapter lacks the requested capability
	ErrUnsupportedOperation = errors.New("operation not supported by provider")

	// ErrAllProvidersFailed matches any *AllProvidersFailedError via errors.Is
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider ProviderID

	// Code is a short machine-readable reason
	Code string

	// Message is the backend's raw message or body
	Message string

	// StatusCode is the HTTP status code (0 when no response was received)
	StatusCode int

	// Retryable indicates a transport failure worth retrying when no status is available
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error keeps the status code visible so classification can see it
func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Provider))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " error %d", e.StatusCode)
	} else {
		b.WriteString(" error")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil && (e.Message == "" || e.Cause.Error() != e.Message) {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider ProviderID, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// NotConfiguredError is the fail-fast error for a provider without credentials
func NotConfiguredError(provider ProviderID) *ProviderError {
	return NewProviderError(provider, "NOT_CONFIGURED", "", 0, false, ErrNotConfigured)
}

// MalformedError reports a success payload missing its expected field
func MalformedError(provider ProviderID, detail string) *ProviderError {
	return NewProviderError(provider, "MALFORMED_RESPONSE", detail, 0, false, ErrMalformedResponse)
}

// ProviderFailure is one provider's contribution to an aggregated failure
type ProviderFailure struct {
	Provider       ProviderID
	Classification Classification
	Skipped        bool
	Err            error
}

// AllProvidersFailedError aggregates every per-provider error for one operation
type AllProvidersFailedError struct {
	Operation Operation
	Failures  []ProviderFailure
}

// Error joins every provider message in attempt order
func (e *AllProvidersFailedError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("all providers failed for %s: no providers in order", e.Operation)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Provider, f.Err))
	}
	return fmt.Sprintf("all providers failed for %s: %s", e.Operation, strings.Join(parts, "; "))
}

// Is matches ErrAllProvidersFailed
func (e *AllProvidersFailedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

// Unwrap exposes every per-provider error
func (e *AllProvidersFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Providers lists the providers in attempt order
func (e *AllProvidersFailedError) Providers() []ProviderID {
	ids := make([]ProviderID, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.Provider)
	}
	return ids
}
