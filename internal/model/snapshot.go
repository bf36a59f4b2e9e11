package model

import "time"

// SourceRef is a deduplicated citation included in a snapshot.
type SourceRef struct {
	Kind     EvidenceKind `json:"kind"`
	Provider string       `json:"provider"`
	Title    string       `json:"title"`
	URL      string       `json:"url,omitempty"`
}

// SnapshotDiagnostics embeds the run's accumulated diagnostics in the terminal
// artifact so a degraded run is inspectable after the fact.
type SnapshotDiagnostics struct {
	ProviderFailures []ProviderFailureDiagnostic `json:"providerFailures,omitempty"`
	StageIssues      []StageIssueDiagnostic      `json:"stageIssues,omitempty"`
	Metrics          *MetricsDiagnostics         `json:"metrics,omitempty"`
}

// Snapshot is the pipeline's terminal artifact: one synthesized research view
// per completed run. Snapshots are append-only history, never mutated.
type Snapshot struct {
	ID            string              `json:"id"`
	RunID         string              `json:"runId"`
	TaskID        string              `json:"taskId"`
	Symbol        string              `json:"symbol"`
	Horizon       string              `json:"horizon"`
	Score         float64             `json:"score"`
	Thesis        string              `json:"thesis"`
	Risks         []string            `json:"risks,omitempty"`
	Catalysts     []string            `json:"catalysts,omitempty"`
	ValuationView string              `json:"valuationView,omitempty"`
	Confidence    float64             `json:"confidence"`
	Sources       []SourceRef         `json:"sources,omitempty"`
	Diagnostics   SnapshotDiagnostics `json:"diagnostics"`
	CreatedAt     time.Time           `json:"createdAt"`
}
