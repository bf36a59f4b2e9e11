package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/internal/store"
)

// synthesisOutput is the JSON shape the synthesis prompt demands. Everything
// beyond the thesis is optional; the LLM is allowed to omit what the
// evidence does not support.
type synthesisOutput struct {
	Thesis        string   `json:"thesis"`
	Risks         []string `json:"risks"`
	Catalysts     []string `json:"catalysts"`
	ValuationView string   `json:"valuation_view"`
}

// runSynthesize is the terminal stage: it reads everything the run
// persisted, scores the evidence, asks the LLM for the thesis, and saves
// the snapshot. Unlike normalize and embed there is no degrade path for
// the LLM call itself: a snapshot without a thesis is worthless, so that
// failure fails the stage and the job retries.
func (p *Pipeline) runSynthesize(ctx context.Context, log *zap.Logger, payload model.JobPayload) error {
	docs, err := p.store.ListDocuments(ctx, store.EvidenceQuery{
		Symbol: payload.Symbol,
		RunID:  payload.RunID,
		Limit:  p.cfg.DocLimit,
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: synthesize read documents")
	}
	metrics, err := p.store.ListMetrics(ctx, store.EvidenceQuery{
		Symbol: payload.Symbol,
		RunID:  payload.RunID,
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: synthesize read metrics")
	}
	filings, err := p.store.ListFilings(ctx, store.EvidenceQuery{
		Symbol: payload.Symbol,
		RunID:  payload.RunID,
		Limit:  p.cfg.FilingsLimit,
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: synthesize read filings")
	}

	docs = preferReal(docs)
	filings = preferReal(filings)
	metrics = reduceMetrics(preferReal(metrics), p.cfg.MetricsCap)

	runSummary, err := p.store.GetRunSummary(ctx, payload.RunID)
	if err != nil {
		// The summary is advisory; synthesis proceeds without it.
		log.Warn("pipeline: could not read run summary", zap.Error(err))
		payload = payload.WithStageIssue(stageIssue(model.StageSynthesize, err))
	}

	now := p.now().UTC()
	score := computeScore(docs, metrics, filings)
	confidence := computeConfidence(docs, metrics, filings, now)

	prompt := buildSynthesisPrompt(payload, p.cfg.Horizon, runSummary, docs, metrics, filings)
	raw, err := p.providers.LLM.Synthesize(ctx, prompt)
	if err != nil {
		return eris.Wrap(err, "pipeline: synthesize thesis")
	}
	out := parseSynthesis(raw)

	snapshot := &model.Snapshot{
		ID:            p.newID(),
		RunID:         payload.RunID,
		TaskID:        payload.TaskID,
		Symbol:        payload.Symbol,
		Horizon:       p.cfg.Horizon,
		Score:         score,
		Thesis:        out.Thesis,
		Risks:         out.Risks,
		Catalysts:     out.Catalysts,
		ValuationView: out.ValuationView,
		Confidence:    confidence,
		Sources:       dedupeSources(docs, metrics, filings),
		Diagnostics: model.SnapshotDiagnostics{
			ProviderFailures: payload.ProviderFailures,
			StageIssues:      payload.StageIssues,
			Metrics:          payload.MetricsDiagnostics,
		},
		CreatedAt: now,
	}
	if err := p.store.SaveSnapshot(ctx, snapshot); err != nil {
		return eris.Wrap(err, "pipeline: save snapshot")
	}

	log.Info("pipeline: snapshot saved",
		zap.String("snapshot_id", snapshot.ID),
		zap.Float64("score", score),
		zap.Float64("confidence", confidence),
		zap.Int("documents", len(docs)),
		zap.Int("metrics", len(metrics)),
		zap.Int("filings", len(filings)))
	return nil
}

// parseSynthesis decodes the LLM's JSON answer leniently: code fences are
// stripped and a response that is not valid JSON becomes the thesis
// verbatim rather than a failure.
func parseSynthesis(raw string) synthesisOutput {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var out synthesisOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil || out.Thesis == "" {
		return synthesisOutput{Thesis: strings.TrimSpace(raw)}
	}
	return out
}
