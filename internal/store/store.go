// Package store persists run-scoped evidence and snapshots. Adapters own
// dedupe: upserts resolve conflicts on each entity's natural key, so
// concurrent workers racing on the same symbol converge without locks.
package store

import (
	"context"

	"github.com/sells-group/equity-snapshot/internal/model"
)

// EvidenceQuery selects evidence for a symbol, most recent first. A non-empty
// RunID restricts results to that run; evidence from other runs never bleeds
// into a run-scoped read.
type EvidenceQuery struct {
	Symbol string
	RunID  string
	Limit  int
}

// Store is the persistence interface the pipeline depends on.
type Store interface {
	// Documents
	UpsertDocuments(ctx context.Context, docs []model.Document) error
	ListDocuments(ctx context.Context, q EvidenceQuery) ([]model.Document, error)
	SetDocumentEmbedding(ctx context.Context, docID string, embedding []float64) error

	// Metrics
	UpsertMetrics(ctx context.Context, points []model.MetricPoint) error
	ListMetrics(ctx context.Context, q EvidenceQuery) ([]model.MetricPoint, error)

	// Filings
	UpsertFilings(ctx context.Context, filings []model.Filing) error
	ListFilings(ctx context.Context, q EvidenceQuery) ([]model.Filing, error)

	// Snapshots (append-only history)
	SaveSnapshot(ctx context.Context, snapshot *model.Snapshot) error
	LatestSnapshot(ctx context.Context, symbol, runID string) (*model.Snapshot, error)
	ListSnapshots(ctx context.Context, symbol string, limit int) ([]model.Snapshot, error)

	// Run summaries (advisory context produced by normalization)
	SaveRunSummary(ctx context.Context, runID, symbol, summary string) error
	GetRunSummary(ctx context.Context, runID string) (string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
