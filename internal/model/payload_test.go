package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/equity-snapshot/internal/boundary"
)

func TestWithProviderFailure_AppendOnly(t *testing.T) {
	p := JobPayload{RunID: "r1", Symbol: "AAPL"}

	p1 := p.WithProviderFailure(ProviderFailureDiagnostic{Source: boundary.SourceNews, Provider: "finnhub"})
	p2 := p1.WithProviderFailure(ProviderFailureDiagnostic{Source: boundary.SourceFilings, Provider: "edgar"})

	assert.Empty(t, p.ProviderFailures, "original payload must not be mutated")
	assert.Len(t, p1.ProviderFailures, 1)
	assert.Len(t, p2.ProviderFailures, 2)
	assert.Equal(t, boundary.SourceNews, p2.ProviderFailures[0].Source)
}

func TestWithStageIssue_DoesNotAliasPriorSlice(t *testing.T) {
	p := JobPayload{}.WithStageIssue(StageIssueDiagnostic{Stage: StageNormalize, Status: DegradedStatus})

	a := p.WithStageIssue(StageIssueDiagnostic{Stage: StageEmbed, Reason: "a"})
	b := p.WithStageIssue(StageIssueDiagnostic{Stage: StageEmbed, Reason: "b"})

	require.Len(t, a.StageIssues, 2)
	require.Len(t, b.StageIssues, 2)
	assert.Equal(t, "a", a.StageIssues[1].Reason)
	assert.Equal(t, "b", b.StageIssues[1].Reason)
}

func TestNewProviderFailure_ReducesBoundaryError(t *testing.T) {
	be := boundary.FromHTTPStatus(boundary.SourceNews, "alphavantage", 429, "too many requests")
	d := NewProviderFailure(be)

	assert.Equal(t, boundary.SourceNews, d.Source)
	assert.Equal(t, "alphavantage", d.Provider)
	assert.Equal(t, "failed", d.Status)
	assert.Equal(t, 429, d.HTTPStatus)
	assert.True(t, d.Retryable)
	assert.Contains(t, d.Reason, "rate_limited")
}

func TestJobPayload_JSONRoundTrip(t *testing.T) {
	requested := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	p := JobPayload{
		RunID:          "run-1",
		TaskID:         "task-1",
		Symbol:         "MSFT",
		IdempotencyKey: "MSFT-ingest-2026-03-14T09",
		RequestedAt:    requested,
		Identity: &ResolvedIdentity{
			RequestedSymbol:  "MSFT",
			CanonicalSymbol:  "MSFT",
			Confidence:       0.99,
			ResolutionSource: ResolutionManualMap,
		},
	}

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"2026-03-14T09:30:00Z"`)

	var got JobPayload
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, p, got)
}

func TestStageNext(t *testing.T) {
	next, ok := StageIngest.Next()
	assert.True(t, ok)
	assert.Equal(t, StageNormalize, next)

	_, ok = StageSynthesize.Next()
	assert.False(t, ok)
}

func TestFilingDedupeKey(t *testing.T) {
	f := Filing{Symbol: "AAPL", URL: "https://sec.gov/a.htm", AccessionNumber: "0000320193-26-000001"}
	assert.Equal(t, "0000320193-26-000001", f.DedupeKey())

	f.AccessionNumber = ""
	assert.Equal(t, "AAPL|https://sec.gov/a.htm", f.DedupeKey())
}

func TestIsSynthetic_FlagAndPrefixFallback(t *testing.T) {
	assert.True(t, Document{Provider: "finnhub", Synthetic: true}.IsSynthetic())
	assert.True(t, Document{Provider: "MockNews"}.IsSynthetic())
	assert.False(t, Document{Provider: "finnhub"}.IsSynthetic())
}
