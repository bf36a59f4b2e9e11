package model

import (
	"time"

	"github.com/sells-group/equity-snapshot/internal/boundary"
)

// ProviderFailureDiagnostic is the reduced form of a boundary error attached
// to a job payload when an evidence source call fails during ingestion.
// Read-only after creation.
type ProviderFailureDiagnostic struct {
	Source     boundary.Source `json:"source"`
	Provider   string          `json:"provider"`
	Status     string          `json:"status"`
	ItemCount  int             `json:"itemCount"`
	Reason     string          `json:"reason"`
	HTTPStatus int             `json:"httpStatus,omitempty"`
	Retryable  bool            `json:"retryable"`
}

// NewProviderFailure reduces a boundary error into a payload diagnostic.
func NewProviderFailure(err *boundary.Error) ProviderFailureDiagnostic {
	return ProviderFailureDiagnostic{
		Source:     err.Source,
		Provider:   err.Provider,
		Status:     "failed",
		ItemCount:  0,
		Reason:     string(err.Code) + ": " + err.Message,
		HTTPStatus: err.HTTPStatus,
		Retryable:  err.Retryable(),
	}
}

// StageIssueDiagnostic records a non-fatal degradation in the normalize or
// embed stage. Accumulated across stages, never overwritten.
type StageIssueDiagnostic struct {
	Stage     Stage         `json:"stage"`
	Status    string        `json:"status"`
	Reason    string        `json:"reason"`
	Provider  string        `json:"provider,omitempty"`
	Code      boundary.Code `json:"code,omitempty"`
	Retryable bool          `json:"retryable,omitempty"`
}

// DegradedStatus is the only status a stage issue carries: the stage kept
// going and advanced the pipeline despite the failure.
const DegradedStatus = "degraded"

// MetricsDiagnostics describes the outcome of the market-metrics fetch,
// including partial results the provider degraded rather than failed.
type MetricsDiagnostics struct {
	Provider string   `json:"provider"`
	Status   string   `json:"status"`
	Notes    []string `json:"notes,omitempty"`
}

// JobPayload threads one run through all four pipeline stages. Core identity
// fields are immutable; the diagnostics fields are append-only, each stage
// forwards everything attached by the stages before it.
type JobPayload struct {
	RunID              string                      `json:"runId"`
	TaskID             string                      `json:"taskId"`
	Symbol             string                      `json:"symbol"`
	IdempotencyKey     string                      `json:"idempotencyKey"`
	RequestedAt        time.Time                   `json:"requestedAt"`
	Identity           *ResolvedIdentity           `json:"resolvedIdentity,omitempty"`
	MetricsDiagnostics *MetricsDiagnostics         `json:"metricsDiagnostics,omitempty"`
	ProviderFailures   []ProviderFailureDiagnostic `json:"providerFailures,omitempty"`
	StageIssues        []StageIssueDiagnostic      `json:"stageIssues,omitempty"`
}

// WithProviderFailure returns a copy of the payload with the diagnostic
// appended. The receiver is not mutated.
func (p JobPayload) WithProviderFailure(d ProviderFailureDiagnostic) JobPayload {
	failures := make([]ProviderFailureDiagnostic, 0, len(p.ProviderFailures)+1)
	failures = append(failures, p.ProviderFailures...)
	p.ProviderFailures = append(failures, d)
	return p
}

// WithStageIssue returns a copy of the payload with the degradation appended.
func (p JobPayload) WithStageIssue(d StageIssueDiagnostic) JobPayload {
	issues := make([]StageIssueDiagnostic, 0, len(p.StageIssues)+1)
	issues = append(issues, p.StageIssues...)
	p.StageIssues = append(issues, d)
	return p
}

// WithMetricsDiagnostics returns a copy of the payload carrying the metrics
// fetch outcome.
func (p JobPayload) WithMetricsDiagnostics(d MetricsDiagnostics) JobPayload {
	p.MetricsDiagnostics = &d
	return p
}
