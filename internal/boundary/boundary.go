// Package boundary defines the typed failure model shared by every call that
// crosses a process or network boundary (evidence providers, LLM, embeddings,
// the company resolver). Expected failures are values, never panics: callers
// receive a *boundary.Error carrying the source, a closed code, and the
// provider that produced it.
package boundary

import (
	"errors"
	"fmt"
)

// Source identifies which external boundary produced an error.
type Source string

const (
	SourceNews      Source = "news"
	SourceMetrics   Source = "metrics"
	SourceFilings   Source = "filings"
	SourceLLM       Source = "llm"
	SourceEmbedding Source = "embedding"
	SourceResolver  Source = "resolver"
)

// Code is the closed set of failure categories. Retryability is derived from
// the code, not chosen by the caller.
type Code string

const (
	CodeTimeout           Code = "timeout"
	CodeRateLimited       Code = "rate_limited"
	CodeAuthInvalid       Code = "auth_invalid"
	CodeConfigInvalid     Code = "config_invalid"
	CodeProviderError     Code = "provider_error"
	CodeTransportError    Code = "transport_error"
	CodeMalformedResponse Code = "malformed_response"
	CodeInvalidJSON       Code = "invalid_json"
	CodeValidationError   Code = "validation_error"
	CodeDimensionMismatch Code = "dimension_mismatch"
)

// Error is the failure value returned at every external boundary.
type Error struct {
	Source     Source `json:"source"`
	Code       Code   `json:"code"`
	Provider   string `json:"provider"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"httpStatus,omitempty"`
	Cause      error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s/%s [%s]: %s", e.Source, e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Source, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether retrying the call could plausibly succeed.
// Transport-layer failures and server-side provider errors are retryable;
// auth, config and data-shape failures require operator or upstream fixes.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeTimeout, CodeRateLimited, CodeTransportError:
		return true
	case CodeProviderError:
		return e.HTTPStatus == 0 || e.HTTPStatus >= 500
	default:
		return false
	}
}

// New creates a boundary error with the given source, code and provider.
func New(source Source, code Code, provider, message string) *Error {
	return &Error{Source: source, Code: code, Provider: provider, Message: message}
}

// Wrap creates a boundary error that keeps the underlying cause in the chain.
func Wrap(cause error, source Source, code Code, provider, message string) *Error {
	return &Error{Source: source, Code: code, Provider: provider, Message: message, Cause: cause}
}

// FromHTTPStatus maps an HTTP response status to a boundary error:
// 429 is rate limiting, 401/403 are auth failures, 408 is a timeout,
// 5xx is a provider-side error and anything else unexpected is treated
// as a provider contract violation.
func FromHTTPStatus(source Source, provider string, status int, message string) *Error {
	e := &Error{Source: source, Provider: provider, Message: message, HTTPStatus: status}
	switch {
	case status == 429:
		e.Code = CodeRateLimited
	case status == 401 || status == 403:
		e.Code = CodeAuthInvalid
	case status == 408 || status == 504:
		e.Code = CodeTimeout
	case status >= 500:
		e.Code = CodeProviderError
	default:
		e.Code = CodeProviderError
	}
	return e
}

// As extracts a *boundary.Error from an error chain.
func As(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// Retryable reports whether err carries a retryable boundary error. Errors
// without a boundary classification report false here; transient-pattern
// sniffing is left to the resilience package.
func Retryable(err error) bool {
	if be, ok := As(err); ok {
		return be.Retryable()
	}
	return false
}
