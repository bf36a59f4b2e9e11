package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/equity-snapshot/internal/boundary"
	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/internal/provider"
	"github.com/sells-group/equity-snapshot/internal/queue"
)

// runIngest fans out to the three evidence sources concurrently, persists
// whatever arrived, and advances to normalize. The stage hard-fails only
// when all three sources fail; anything less degrades with per-source
// diagnostics on the payload.
func (p *Pipeline) runIngest(ctx context.Context, log *zap.Logger, payload model.JobPayload) (*queue.Job, error) {
	now := p.now().UTC()
	newsFrom := now.AddDate(0, 0, -p.cfg.NewsWindowDays)
	filingsFrom := now.AddDate(0, 0, -p.cfg.FilingsWindowDays)

	var (
		docs       []model.Document
		metricsRes *provider.MetricsResult
		filings    []model.Filing

		newsErr    error
		metricsErr error
		filingsErr error
	)

	// Joined fan-out: wait for all three, never short-circuit.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, newsErr = p.providers.News.FetchDocuments(gctx, payload.Symbol, newsFrom, now, p.cfg.DocLimit)
		return nil
	})
	g.Go(func() error {
		metricsRes, metricsErr = p.providers.Metrics.FetchMetrics(gctx, payload.Symbol, now)
		return nil
	})
	g.Go(func() error {
		filings, filingsErr = p.providers.Filings.FetchFilings(gctx, payload.Symbol, filingsFrom, now, p.cfg.FilingsLimit)
		return nil
	})
	_ = g.Wait()

	if newsErr != nil {
		payload = payload.WithProviderFailure(model.NewProviderFailure(
			asBoundary(boundary.SourceNews, p.providers.News.Name(), newsErr)))
	}
	if metricsErr != nil {
		payload = payload.WithProviderFailure(model.NewProviderFailure(
			asBoundary(boundary.SourceMetrics, p.providers.Metrics.Name(), metricsErr)))
	}
	if filingsErr != nil {
		payload = payload.WithProviderFailure(model.NewProviderFailure(
			asBoundary(boundary.SourceFilings, p.providers.Filings.Name(), filingsErr)))
	}

	if newsErr != nil && metricsErr != nil && filingsErr != nil {
		return nil, boundary.Wrap(newsErr, boundary.SourceNews, boundary.CodeProviderError,
			p.providers.News.Name(), "all evidence sources failed")
	}

	if newsErr == nil && len(docs) > 0 {
		if err := p.store.UpsertDocuments(ctx, p.stampDocuments(payload, docs, now)); err != nil {
			return nil, err
		}
	}
	if metricsErr == nil && metricsRes != nil {
		payload = payload.WithMetricsDiagnostics(metricsRes.Diagnostics)
		if len(metricsRes.Points) > 0 {
			if err := p.store.UpsertMetrics(ctx, p.stampMetrics(payload, metricsRes.Points, now)); err != nil {
				return nil, err
			}
		}
	}
	if filingsErr == nil && len(filings) > 0 {
		if err := p.store.UpsertFilings(ctx, p.stampFilings(payload, filings, now)); err != nil {
			return nil, err
		}
	}

	log.Info("pipeline: ingest complete",
		zap.Int("documents", len(docs)),
		zap.Int("metrics", metricPointCount(metricsRes)),
		zap.Int("filings", len(filings)),
		zap.Int("provider_failures", len(payload.ProviderFailures)))

	return &queue.Job{Stage: model.StageNormalize, Payload: payload}, nil
}

func (p *Pipeline) stampDocuments(payload model.JobPayload, docs []model.Document, now time.Time) []model.Document {
	out := make([]model.Document, len(docs))
	for i, d := range docs {
		d.ID = p.newID()
		d.RunID = payload.RunID
		d.TaskID = payload.TaskID
		d.Symbol = payload.Symbol
		d.CreatedAt = now
		out[i] = d
	}
	return out
}

func (p *Pipeline) stampMetrics(payload model.JobPayload, points []model.MetricPoint, now time.Time) []model.MetricPoint {
	out := make([]model.MetricPoint, len(points))
	for i, m := range points {
		m.ID = p.newID()
		m.RunID = payload.RunID
		m.TaskID = payload.TaskID
		m.Symbol = payload.Symbol
		m.CreatedAt = now
		out[i] = m
	}
	return out
}

func (p *Pipeline) stampFilings(payload model.JobPayload, filings []model.Filing, now time.Time) []model.Filing {
	out := make([]model.Filing, len(filings))
	for i, f := range filings {
		f.ID = p.newID()
		f.RunID = payload.RunID
		f.TaskID = payload.TaskID
		f.Symbol = payload.Symbol
		f.CreatedAt = now
		out[i] = f
	}
	return out
}

func metricPointCount(res *provider.MetricsResult) int {
	if res == nil {
		return 0
	}
	return len(res.Points)
}
