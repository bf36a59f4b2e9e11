package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/equity-snapshot/internal/boundary"
	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/internal/provider"
	"github.com/sells-group/equity-snapshot/internal/queue"
	"github.com/sells-group/equity-snapshot/internal/store"
)

// Config holds the pipeline's tunables.
type Config struct {
	// NewsWindowDays bounds the ingest news lookback.
	NewsWindowDays int `yaml:"news_window_days" mapstructure:"news_window_days"`
	// FilingsWindowDays bounds the ingest filings lookback.
	FilingsWindowDays int `yaml:"filings_window_days" mapstructure:"filings_window_days"`
	// DocLimit caps documents fetched and read per run.
	DocLimit int `yaml:"doc_limit" mapstructure:"doc_limit"`
	// FilingsLimit caps filings fetched per run.
	FilingsLimit int `yaml:"filings_limit" mapstructure:"filings_limit"`
	// SummaryDocs is how many documents normalization summarizes.
	SummaryDocs int `yaml:"summary_docs" mapstructure:"summary_docs"`
	// EmbedDocs caps documents sent to the embedder.
	EmbedDocs int `yaml:"embed_docs" mapstructure:"embed_docs"`
	// MetricsCap bounds distinct metric names carried into synthesis.
	MetricsCap int `yaml:"metrics_cap" mapstructure:"metrics_cap"`
	// Horizon labels the snapshot's research horizon.
	Horizon string `yaml:"horizon" mapstructure:"horizon"`
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		NewsWindowDays:    7,
		FilingsWindowDays: 90,
		DocLimit:          25,
		FilingsLimit:      10,
		SummaryDocs:       3,
		EmbedDocs:         16,
		MetricsCap:        8,
		Horizon:           "3m",
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.NewsWindowDays <= 0 {
		c.NewsWindowDays = d.NewsWindowDays
	}
	if c.FilingsWindowDays <= 0 {
		c.FilingsWindowDays = d.FilingsWindowDays
	}
	if c.DocLimit <= 0 {
		c.DocLimit = d.DocLimit
	}
	if c.FilingsLimit <= 0 {
		c.FilingsLimit = d.FilingsLimit
	}
	if c.SummaryDocs <= 0 {
		c.SummaryDocs = d.SummaryDocs
	}
	if c.EmbedDocs <= 0 {
		c.EmbedDocs = d.EmbedDocs
	}
	if c.MetricsCap <= 0 {
		c.MetricsCap = d.MetricsCap
	}
	if c.Horizon == "" {
		c.Horizon = d.Horizon
	}
}

// Pipeline executes the four evidence stages. It is stateless across jobs;
// the store and queue are the only shared state.
type Pipeline struct {
	cfg       Config
	store     store.Store
	providers *provider.Registry
	now       func() time.Time
	newID     func() string
}

// New creates a Pipeline with all dependencies.
func New(cfg Config, st store.Store, providers *provider.Registry) *Pipeline {
	cfg.applyDefaults()
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		providers: providers,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Handle dispatches a queue job to its stage. It implements queue.Handler.
func (p *Pipeline) Handle(ctx context.Context, stage model.Stage, payload model.JobPayload) (*queue.Job, error) {
	log := zap.L().With(
		zap.String("stage", string(stage)),
		zap.String("symbol", payload.Symbol),
		zap.String("run_id", payload.RunID))

	switch stage {
	case model.StageIngest:
		return p.runIngest(ctx, log, payload)
	case model.StageNormalize:
		return p.runNormalize(ctx, log, payload)
	case model.StageEmbed:
		return p.runEmbed(ctx, log, payload)
	case model.StageSynthesize:
		return nil, p.runSynthesize(ctx, log, payload)
	default:
		return nil, eris.Errorf("pipeline: unknown stage %q", stage)
	}
}

// stageIssue reduces a stage failure into a degradation diagnostic,
// preserving the boundary classification when there is one.
func stageIssue(stage model.Stage, err error) model.StageIssueDiagnostic {
	issue := model.StageIssueDiagnostic{
		Stage:  stage,
		Status: model.DegradedStatus,
		Reason: err.Error(),
	}
	if be, ok := boundary.As(err); ok {
		issue.Provider = be.Provider
		issue.Code = be.Code
		issue.Retryable = be.Retryable()
	}
	return issue
}

// asBoundary coerces any provider failure into a boundary error so the
// payload diagnostic always carries a classification.
func asBoundary(source boundary.Source, provider string, err error) *boundary.Error {
	if be, ok := boundary.As(err); ok {
		return be
	}
	return boundary.Wrap(err, source, boundary.CodeProviderError, provider, err.Error())
}
