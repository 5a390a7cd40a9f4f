package services

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/upb/concept-studio/services/providers"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeExternal    ErrorType = "external"
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeCanceled    ErrorType = "canceled"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	ErrRecordNotFound = NewDomainError(ErrorTypeNotFound, "generation not found", nil)

	ErrEmptyPrompt = NewDomainError(ErrorTypeValidation, "prompt cannot be empty", nil)
	ErrInvalidKind = NewDomainError(ErrorTypeValidation, "unknown text generation kind", nil)

	ErrProvidersFailed   = NewDomainError(ErrorTypeExternal, "all providers failed", nil)
	ErrNoProviders       = NewDomainError(ErrorTypeUnavailable, "no provider configured", nil)
	ErrGenerationTimeout = NewDomainError(ErrorTypeTimeout, "generation timed out", nil)
	ErrRequestCanceled   = NewDomainError(ErrorTypeCanceled, "request canceled", nil)
)

// with returns a fresh copy of a sentinel carrying cause, so details never leak between calls
func (e *DomainError) with(cause error) *DomainError {
	return NewDomainError(e.Type, e.Message, cause)
}

// FromGenerationError converts an orchestrator failure into a domain error.
// Timeout and cancellation come from the caller's context; a provider whose own client
// timed out is one failure among others. Every per-provider failure is kept in the details.
func FromGenerationError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	var expired *DomainError
	if ctx != nil {
		switch ctx.Err() {
		case context.DeadlineExceeded:
			expired = ErrGenerationTimeout
		case context.Canceled:
			expired = ErrRequestCanceled
		}
	}

	var agg *providers.AllProvidersFailedError
	if !errors.As(err, &agg) {
		switch {
		case expired != nil:
			return expired.with(err)
		case errors.Is(err, context.Canceled):
			return ErrRequestCanceled.with(err)
		case errors.Is(err, context.DeadlineExceeded):
			return ErrGenerationTimeout.with(err)
		}
		return NewDomainError(ErrorTypeExternal, "generation failed", err)
	}

	failures := make([]map[string]interface{}, 0, len(agg.Failures))
	attempted, timedOut := 0, 0
	for _, f := range agg.Failures {
		failures = append(failures, map[string]interface{}{
			"provider":       string(f.Provider),
			"classification": string(f.Classification),
			"skipped":        f.Skipped,
			"error":          f.Err.Error(),
		})
		if f.Skipped {
			continue
		}
		attempted++
		if isTimeout(f.Err) {
			timedOut++
		}
	}

	sentinel := ErrProvidersFailed
	switch {
	case expired != nil:
		sentinel = expired
	case attempted == 0:
		sentinel = ErrNoProviders
	case timedOut == attempted:
		sentinel = ErrGenerationTimeout
	}
	return sentinel.with(err).
		WithDetail("operation", string(agg.Operation)).
		WithDetail("failures", failures)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// IsExternalError checks if an error is an external provider error
func IsExternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeExternal
}

// IsUnavailableError checks if no backend could serve the request
func IsUnavailableError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnavailable
}

// IsTimeoutError checks if the request ran out of time
func IsTimeoutError(err error) bool {
	return GetErrorType(err) == ErrorTypeTimeout
}

// IsCanceledError checks if the caller gave up on the request
func IsCanceledError(err error) bool {
	return GetErrorType(err) == ErrorTypeCanceled
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapValidation wraps an error as a validation error
func WrapValidation(message string, err error) error {
	return NewDomainError(ErrorTypeValidation, message, err)
}
