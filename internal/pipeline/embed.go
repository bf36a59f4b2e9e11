package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/equity-snapshot/internal/boundary"
	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/internal/queue"
	"github.com/sells-group/equity-snapshot/internal/store"
)

// runEmbed attaches embedding vectors to the run's documents. Like
// normalization it never fails the stage. A count mismatch between texts
// and vectors persists the overlapping prefix and reports the mismatch,
// never silently dropping it.
func (p *Pipeline) runEmbed(ctx context.Context, log *zap.Logger, payload model.JobPayload) (*queue.Job, error) {
	docs, err := p.store.ListDocuments(ctx, store.EvidenceQuery{
		Symbol: payload.Symbol,
		RunID:  payload.RunID,
		Limit:  p.cfg.EmbedDocs,
	})
	if err != nil {
		log.Warn("pipeline: embed could not read documents", zap.Error(err))
		payload = payload.WithStageIssue(stageIssue(model.StageEmbed, err))
		return &queue.Job{Stage: model.StageSynthesize, Payload: payload}, nil
	}

	if len(docs) == 0 {
		log.Info("pipeline: no documents, skipping to synthesize")
		return &queue.Job{Stage: model.StageSynthesize, Payload: payload}, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = embeddingText(d)
	}

	vectors, err := p.providers.Embedder.EmbedTexts(ctx, texts)
	if err != nil {
		log.Warn("pipeline: embedding failed, degrading", zap.Error(err))
		payload = payload.WithStageIssue(stageIssue(model.StageEmbed, err))
		return &queue.Job{Stage: model.StageSynthesize, Payload: payload}, nil
	}

	persist := min(len(docs), len(vectors))
	for i := 0; i < persist; i++ {
		if err := p.store.SetDocumentEmbedding(ctx, docs[i].ID, vectors[i]); err != nil {
			log.Warn("pipeline: could not persist embedding",
				zap.String("document_id", docs[i].ID),
				zap.Error(err))
			payload = payload.WithStageIssue(stageIssue(model.StageEmbed, err))
			break
		}
	}

	if len(vectors) != len(docs) {
		mismatch := boundary.New(boundary.SourceEmbedding, boundary.CodeDimensionMismatch, "",
			fmt.Sprintf("requested %d embeddings, received %d; persisted %d", len(docs), len(vectors), persist))
		payload = payload.WithStageIssue(stageIssue(model.StageEmbed, mismatch))
		log.Warn("pipeline: embedding count mismatch",
			zap.Int("requested", len(docs)),
			zap.Int("received", len(vectors)))
	}

	log.Info("pipeline: embed complete", zap.Int("embedded", persist))
	return &queue.Job{Stage: model.StageSynthesize, Payload: payload}, nil
}

func embeddingText(d model.Document) string {
	if d.Body == "" {
		return d.Title
	}
	return strings.TrimSpace(d.Title + "\n" + d.Body)
}
