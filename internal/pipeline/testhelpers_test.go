package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/internal/provider"
	"github.com/sells-group/equity-snapshot/internal/store"
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

// fakeStore is an in-memory store.Store with per-operation error hooks so
// tests can force individual persistence failures.
type fakeStore struct {
	mu        sync.Mutex
	docs      []model.Document
	metrics   []model.MetricPoint
	filings   []model.Filing
	snapshots []model.Snapshot
	summaries map[string]string

	listDocsErr     error
	upsertDocsErr   error
	setEmbeddingErr error
	saveSummaryErr  error
	getSummaryErr   error
	saveSnapshotErr error

	embeddings map[string][]float64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		summaries:  make(map[string]string),
		embeddings: make(map[string][]float64),
	}
}

func (s *fakeStore) UpsertDocuments(_ context.Context, docs []model.Document) error {
	if s.upsertDocsErr != nil {
		return s.upsertDocsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, docs...)
	return nil
}

func (s *fakeStore) ListDocuments(_ context.Context, q store.EvidenceQuery) ([]model.Document, error) {
	if s.listDocsErr != nil {
		return nil, s.listDocsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Document
	for _, d := range s.docs {
		if d.Symbol == q.Symbol && (q.RunID == "" || d.RunID == q.RunID) {
			out = append(out, d)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *fakeStore) SetDocumentEmbedding(_ context.Context, docID string, embedding []float64) error {
	if s.setEmbeddingErr != nil {
		return s.setEmbeddingErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[docID] = embedding
	return nil
}

func (s *fakeStore) UpsertMetrics(_ context.Context, points []model.MetricPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, points...)
	return nil
}

func (s *fakeStore) ListMetrics(_ context.Context, q store.EvidenceQuery) ([]model.MetricPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.MetricPoint
	for _, m := range s.metrics {
		if m.Symbol == q.Symbol && (q.RunID == "" || m.RunID == q.RunID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertFilings(_ context.Context, filings []model.Filing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filings = append(s.filings, filings...)
	return nil
}

func (s *fakeStore) ListFilings(_ context.Context, q store.EvidenceQuery) ([]model.Filing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Filing
	for _, f := range s.filings {
		if f.Symbol == q.Symbol && (q.RunID == "" || f.RunID == q.RunID) {
			out = append(out, f)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *fakeStore) SaveSnapshot(_ context.Context, snapshot *model.Snapshot) error {
	if s.saveSnapshotErr != nil {
		return s.saveSnapshotErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, *snapshot)
	return nil
}

func (s *fakeStore) LatestSnapshot(_ context.Context, symbol, runID string) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		snap := s.snapshots[i]
		if snap.Symbol == symbol && (runID == "" || snap.RunID == runID) {
			return &snap, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListSnapshots(_ context.Context, symbol string, limit int) ([]model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Snapshot
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if s.snapshots[i].Symbol == symbol {
			out = append(out, s.snapshots[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) SaveRunSummary(_ context.Context, runID, _, summary string) error {
	if s.saveSummaryErr != nil {
		return s.saveSummaryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[runID] = summary
	return nil
}

func (s *fakeStore) GetRunSummary(_ context.Context, runID string) (string, error) {
	if s.getSummaryErr != nil {
		return "", s.getSummaryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries[runID], nil
}

func (s *fakeStore) Migrate(context.Context) error { return nil }
func (s *fakeStore) Close() error                  { return nil }

// Provider stubs with function hooks.

type stubNewsProvider struct {
	name string
	fn   func(ctx context.Context, symbol string, from, to time.Time, limit int) ([]model.Document, error)
}

func (s *stubNewsProvider) Name() string {
	if s.name == "" {
		return "stub-news"
	}
	return s.name
}

func (s *stubNewsProvider) FetchDocuments(ctx context.Context, symbol string, from, to time.Time, limit int) ([]model.Document, error) {
	return s.fn(ctx, symbol, from, to, limit)
}

type stubMetricsProvider struct {
	name string
	fn   func(ctx context.Context, symbol string, asOf time.Time) (*provider.MetricsResult, error)
}

func (s *stubMetricsProvider) Name() string {
	if s.name == "" {
		return "stub-metrics"
	}
	return s.name
}

func (s *stubMetricsProvider) FetchMetrics(ctx context.Context, symbol string, asOf time.Time) (*provider.MetricsResult, error) {
	return s.fn(ctx, symbol, asOf)
}

type stubFilingsProvider struct {
	name string
	fn   func(ctx context.Context, symbol string, from, to time.Time, limit int) ([]model.Filing, error)
}

func (s *stubFilingsProvider) Name() string {
	if s.name == "" {
		return "stub-filings"
	}
	return s.name
}

func (s *stubFilingsProvider) FetchFilings(ctx context.Context, symbol string, from, to time.Time, limit int) ([]model.Filing, error) {
	return s.fn(ctx, symbol, from, to, limit)
}

type stubLLM struct {
	summarizeFn  func(ctx context.Context, prompt string) (string, error)
	synthesizeFn func(ctx context.Context, prompt string) (string, error)

	mu                sync.Mutex
	summarizePrompts  []string
	synthesizePrompts []string
}

func (s *stubLLM) Summarize(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.summarizePrompts = append(s.summarizePrompts, prompt)
	s.mu.Unlock()
	if s.summarizeFn != nil {
		return s.summarizeFn(ctx, prompt)
	}
	return "summary", nil
}

func (s *stubLLM) Synthesize(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.synthesizePrompts = append(s.synthesizePrompts, prompt)
	s.mu.Unlock()
	if s.synthesizeFn != nil {
		return s.synthesizeFn(ctx, prompt)
	}
	return `{"thesis": "stable outlook", "risks": ["competition"], "catalysts": ["earnings"], "valuation_view": "fair"}`, nil
}

type stubEmbedder struct {
	fn func(ctx context.Context, texts []string) ([][]float64, error)
}

func (s *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if s.fn != nil {
		return s.fn(ctx, texts)
	}
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vectors[i] = []float64{float64(i), 1}
	}
	return vectors, nil
}

// testEnv wires a pipeline over the fakes with deterministic time and IDs.
type testEnv struct {
	store    *fakeStore
	news     *stubNewsProvider
	metrics  *stubMetricsProvider
	filings  *stubFilingsProvider
	llm      *stubLLM
	embedder *stubEmbedder
	pipeline *Pipeline
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store: newFakeStore(),
		news: &stubNewsProvider{fn: func(context.Context, string, time.Time, time.Time, int) ([]model.Document, error) {
			return nil, nil
		}},
		metrics: &stubMetricsProvider{fn: func(context.Context, string, time.Time) (*provider.MetricsResult, error) {
			return &provider.MetricsResult{Diagnostics: model.MetricsDiagnostics{Provider: "stub-metrics", Status: "ok"}}, nil
		}},
		filings: &stubFilingsProvider{fn: func(context.Context, string, time.Time, time.Time, int) ([]model.Filing, error) {
			return nil, nil
		}},
		llm:      &stubLLM{},
		embedder: &stubEmbedder{},
	}

	registry := &provider.Registry{
		News:     env.news,
		Metrics:  env.metrics,
		Filings:  env.filings,
		LLM:      env.llm,
		Embedder: env.embedder,
	}

	env.pipeline = New(Config{}, env.store, registry)
	env.pipeline.now = func() time.Time { return testNow }

	idSeq := 0
	env.pipeline.newID = func() string {
		idSeq++
		return fmt.Sprintf("id-%04d", idSeq)
	}
	return env
}

func testPayload() model.JobPayload {
	return model.JobPayload{
		RunID:          "run-1",
		TaskID:         "task-1",
		Symbol:         "AAPL",
		IdempotencyKey: "AAPL-ingest-2025-03-14T12",
		RequestedAt:    testNow,
	}
}

func testDoc(runID, title, providerName string, publishedAt time.Time) model.Document {
	return model.Document{
		ID:             "doc-" + title,
		RunID:          runID,
		TaskID:         "task-1",
		Symbol:         "AAPL",
		Provider:       providerName,
		ProviderItemID: "item-" + title,
		Title:          title,
		URL:            "https://example.com/" + title,
		Body:           "body of " + title,
		PublishedAt:    publishedAt,
		CreatedAt:      testNow,
	}
}
