package provider

import (
	"context"
	"time"

	"github.com/sells-group/equity-snapshot/internal/model"
)

// MetricsResult is the outcome of a metrics fetch. A degraded provider
// returns an empty Points slice with diagnostics instead of an error, so
// missing market data never sinks an ingest.
type MetricsResult struct {
	Points      []model.MetricPoint
	Diagnostics model.MetricsDiagnostics
}

// NewsProvider fetches news documents for a symbol. Implementations fill the
// evidence fields they own (provider, providerItemId, title, url, body,
// publishedAt, synthetic); run identity is stamped by the pipeline.
type NewsProvider interface {
	Name() string
	FetchDocuments(ctx context.Context, symbol string, from, to time.Time, limit int) ([]model.Document, error)
}

// MetricsProvider fetches market metric points for a symbol.
type MetricsProvider interface {
	Name() string
	FetchMetrics(ctx context.Context, symbol string, asOf time.Time) (*MetricsResult, error)
}

// FilingsProvider fetches regulatory filing metadata for a symbol.
type FilingsProvider interface {
	Name() string
	FetchFilings(ctx context.Context, symbol string, from, to time.Time, limit int) ([]model.Filing, error)
}

// LLM is the language-model port. Both operations take a fully built prompt
// and return raw completion text; failures are boundary errors.
type LLM interface {
	Summarize(ctx context.Context, prompt string) (string, error)
	Synthesize(ctx context.Context, prompt string) (string, error)
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
}
