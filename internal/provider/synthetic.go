package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/sells-group/equity-snapshot/internal/model"
)

const syntheticProviderName = "mock-fixture"

// SyntheticProvider serves deterministic fixture evidence for development
// and offline runs. Everything it emits is flagged synthetic, so the
// synthesis preference filter drops it whenever real evidence exists.
type SyntheticProvider struct{}

func NewSynthetic() *SyntheticProvider { return &SyntheticProvider{} }

func (p *SyntheticProvider) Name() string { return syntheticProviderName }

func (p *SyntheticProvider) FetchDocuments(_ context.Context, symbol string, _, to time.Time, limit int) ([]model.Document, error) {
	docs := []model.Document{
		{
			Symbol:         symbol,
			Provider:       syntheticProviderName,
			ProviderItemID: fmt.Sprintf("%s-news-1", symbol),
			Title:          fmt.Sprintf("%s reports quarterly results", symbol),
			URL:            fmt.Sprintf("https://fixtures.invalid/%s/news/1", symbol),
			Body:           "Fixture article body for offline development.",
			PublishedAt:    to.Add(-6 * time.Hour),
			Synthetic:      true,
		},
		{
			Symbol:         symbol,
			Provider:       syntheticProviderName,
			ProviderItemID: fmt.Sprintf("%s-news-2", symbol),
			Title:          fmt.Sprintf("Analysts weigh in on %s outlook", symbol),
			URL:            fmt.Sprintf("https://fixtures.invalid/%s/news/2", symbol),
			Body:           "Second fixture article body.",
			PublishedAt:    to.Add(-30 * time.Hour),
			Synthetic:      true,
		},
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs, nil
}

func (p *SyntheticProvider) FetchMetrics(_ context.Context, symbol string, asOf time.Time) (*MetricsResult, error) {
	points := []model.MetricPoint{
		{Symbol: symbol, Provider: syntheticProviderName, Name: "price", Value: 100.0, Unit: "usd", AsOf: asOf, Synthetic: true},
		{Symbol: symbol, Provider: syntheticProviderName, Name: "pe_ratio", Value: 20.0, AsOf: asOf, Synthetic: true},
		{Symbol: symbol, Provider: syntheticProviderName, Name: "eps", Value: 5.0, AsOf: asOf, Synthetic: true},
		{Symbol: symbol, Provider: syntheticProviderName, Name: "market_cap", Value: 1e11, AsOf: asOf, Synthetic: true},
	}
	return &MetricsResult{
		Points: points,
		Diagnostics: model.MetricsDiagnostics{
			Provider: syntheticProviderName,
			Status:   "ok",
			Notes:    []string{"fixture data"},
		},
	}, nil
}

func (p *SyntheticProvider) FetchFilings(_ context.Context, symbol string, _, to time.Time, limit int) ([]model.Filing, error) {
	filings := []model.Filing{
		{
			Symbol:    symbol,
			Provider:  syntheticProviderName,
			FormType:  "10-Q",
			Title:     "Fixture quarterly report",
			URL:       fmt.Sprintf("https://fixtures.invalid/%s/filings/10q", symbol),
			FiledAt:   to.Add(-20 * 24 * time.Hour),
			Synthetic: true,
		},
	}
	if limit > 0 && limit < len(filings) {
		filings = filings[:limit]
	}
	return filings, nil
}

// StaticLLM returns canned completions for offline runs.
type StaticLLM struct{}

func NewStaticLLM() *StaticLLM { return &StaticLLM{} }

func (l *StaticLLM) Summarize(_ context.Context, _ string) (string, error) {
	return "Fixture summary of the supplied evidence.", nil
}

func (l *StaticLLM) Synthesize(_ context.Context, _ string) (string, error) {
	return `{"thesis":"Fixture thesis grounded in synthetic evidence [N1].","risks":["fixture risk"],"catalysts":["fixture catalyst"],"valuation_view":"Fixture valuation view."}`, nil
}

// StaticEmbedder produces small deterministic vectors derived from the text
// bytes, so offline embed runs are repeatable.
type StaticEmbedder struct{}

func NewStaticEmbedder() *StaticEmbedder { return &StaticEmbedder{} }

func (e *StaticEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, 8)
		for j, b := range []byte(text) {
			vec[j%8] += float64(b) / 255.0
		}
		vectors[i] = vec
	}
	return vectors, nil
}
