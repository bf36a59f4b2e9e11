package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/internal/queue"
	"github.com/sells-group/equity-snapshot/internal/store"
)

// runNormalize summarizes the run's freshest documents via the LLM. The
// summary is advisory context for synthesis, so nothing here fails the
// stage: every problem becomes a degradation diagnostic and the pipeline
// advances. A run with no documents skips embedding entirely.
func (p *Pipeline) runNormalize(ctx context.Context, log *zap.Logger, payload model.JobPayload) (*queue.Job, error) {
	docs, err := p.store.ListDocuments(ctx, store.EvidenceQuery{
		Symbol: payload.Symbol,
		RunID:  payload.RunID,
		Limit:  p.cfg.DocLimit,
	})
	if err != nil {
		log.Warn("pipeline: normalize could not read documents", zap.Error(err))
		payload = payload.WithStageIssue(stageIssue(model.StageNormalize, err))
		return &queue.Job{Stage: model.StageEmbed, Payload: payload}, nil
	}

	if len(docs) == 0 {
		log.Info("pipeline: no documents, skipping to synthesize")
		return &queue.Job{Stage: model.StageSynthesize, Payload: payload}, nil
	}

	top := docs
	if len(top) > p.cfg.SummaryDocs {
		top = top[:p.cfg.SummaryDocs]
	}

	summary, err := p.providers.LLM.Summarize(ctx, buildSummaryPrompt(payload.Symbol, top))
	if err != nil {
		log.Warn("pipeline: summarize failed, degrading", zap.Error(err))
		payload = payload.WithStageIssue(stageIssue(model.StageNormalize, err))
		return &queue.Job{Stage: model.StageEmbed, Payload: payload}, nil
	}

	if err := p.store.SaveRunSummary(ctx, payload.RunID, payload.Symbol, summary); err != nil {
		log.Warn("pipeline: could not persist run summary", zap.Error(err))
		payload = payload.WithStageIssue(stageIssue(model.StageNormalize, err))
	}

	log.Info("pipeline: normalize complete", zap.Int("documents", len(docs)))
	return &queue.Job{Stage: model.StageEmbed, Payload: payload}, nil
}
