package model

import (
	"strings"
	"time"
)

// EvidenceKind distinguishes the three evidence families a run collects.
type EvidenceKind string

const (
	KindDocument EvidenceKind = "document"
	KindMetric   EvidenceKind = "metric"
	KindFiling   EvidenceKind = "filing"
)

// Document is a news article or similar text evidence item. Dedupe identity
// is (provider, providerItemId).
type Document struct {
	ID             string    `json:"id"`
	RunID          string    `json:"runId"`
	TaskID         string    `json:"taskId"`
	Symbol         string    `json:"symbol"`
	Provider       string    `json:"provider"`
	ProviderItemID string    `json:"providerItemId"`
	Title          string    `json:"title"`
	URL            string    `json:"url,omitempty"`
	Body           string    `json:"body,omitempty"`
	PublishedAt    time.Time `json:"publishedAt"`
	Synthetic      bool      `json:"synthetic,omitempty"`
	Embedding      []float64 `json:"embedding,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MetricPoint is a single market metric observation. Dedupe identity is
// (symbol, provider, name, asOf).
type MetricPoint struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId"`
	TaskID    string    `json:"taskId"`
	Symbol    string    `json:"symbol"`
	Provider  string    `json:"provider"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	AsOf      time.Time `json:"asOf"`
	Synthetic bool      `json:"synthetic,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filing is regulatory-filing metadata. Dedupe identity is
// (provider, dedupeKey).
type Filing struct {
	ID              string    `json:"id"`
	RunID           string    `json:"runId"`
	TaskID          string    `json:"taskId"`
	Symbol          string    `json:"symbol"`
	Provider        string    `json:"provider"`
	AccessionNumber string    `json:"accessionNumber,omitempty"`
	FormType        string    `json:"formType"`
	Title           string    `json:"title,omitempty"`
	URL             string    `json:"url,omitempty"`
	FiledAt         time.Time `json:"filedAt"`
	Synthetic       bool      `json:"synthetic,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// DedupeKey prefers the provider accession number and falls back to a
// symbol+URL composite for providers that do not assign one.
func (f Filing) DedupeKey() string {
	if f.AccessionNumber != "" {
		return f.AccessionNumber
	}
	return f.Symbol + "|" + f.URL
}

// syntheticProviderPrefix is the legacy convention for fixture providers,
// kept as a fallback for evidence persisted before the explicit flag existed.
const syntheticProviderPrefix = "mock"

func syntheticProvider(provider string) bool {
	return strings.HasPrefix(strings.ToLower(provider), syntheticProviderPrefix)
}

// IsSynthetic reports whether the document came from a fixture provider.
func (d Document) IsSynthetic() bool { return d.Synthetic || syntheticProvider(d.Provider) }

// IsSynthetic reports whether the metric came from a fixture provider.
func (m MetricPoint) IsSynthetic() bool { return m.Synthetic || syntheticProvider(m.Provider) }

// IsSynthetic reports whether the filing came from a fixture provider.
func (f Filing) IsSynthetic() bool { return f.Synthetic || syntheticProvider(f.Provider) }
