package boundary

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestRetryable_TransportCodes(t *testing.T) {
	for _, code := range []Code{CodeTimeout, CodeRateLimited, CodeTransportError} {
		e := New(SourceNews, code, "finnhub", "boom")
		assert.True(t, e.Retryable(), "code %s should be retryable", code)
	}
}

func TestRetryable_NonRetryableCodes(t *testing.T) {
	for _, code := range []Code{
		CodeAuthInvalid, CodeConfigInvalid, CodeMalformedResponse,
		CodeInvalidJSON, CodeValidationError, CodeDimensionMismatch,
	} {
		e := New(SourceMetrics, code, "alphavantage", "boom")
		assert.False(t, e.Retryable(), "code %s should not be retryable", code)
	}
}

func TestRetryable_ProviderErrorByStatus(t *testing.T) {
	assert.True(t, (&Error{Code: CodeProviderError, HTTPStatus: 503}).Retryable())
	assert.True(t, (&Error{Code: CodeProviderError}).Retryable())
	assert.False(t, (&Error{Code: CodeProviderError, HTTPStatus: 404}).Retryable())
}

func TestFromHTTPStatus(t *testing.T) {
	cases := []struct {
		status int
		code   Code
	}{
		{429, CodeRateLimited},
		{401, CodeAuthInvalid},
		{403, CodeAuthInvalid},
		{408, CodeTimeout},
		{504, CodeTimeout},
		{500, CodeProviderError},
		{502, CodeProviderError},
		{404, CodeProviderError},
	}
	for _, c := range cases {
		e := FromHTTPStatus(SourceFilings, "edgar", c.status, "http failure")
		assert.Equal(t, c.code, e.Code, "status %d", c.status)
		assert.Equal(t, c.status, e.HTTPStatus)
	}
}

func TestAs_UnwrapsThroughEris(t *testing.T) {
	be := New(SourceLLM, CodeRateLimited, "anthropic", "429")
	wrapped := eris.Wrap(be, "synthesize: llm call")

	got, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, CodeRateLimited, got.Code)
	assert.True(t, Retryable(wrapped))
}

func TestRetryable_PlainError(t *testing.T) {
	assert.False(t, Retryable(eris.New("plain failure")))
}

func TestError_String(t *testing.T) {
	e := New(SourceNews, CodeTimeout, "finnhub", "deadline exceeded")
	assert.Equal(t, "news/finnhub [timeout]: deadline exceeded", e.Error())

	e2 := New(SourceResolver, CodeValidationError, "", "empty symbol")
	assert.Equal(t, "resolver [validation_error]: empty symbol", e2.Error())
}
