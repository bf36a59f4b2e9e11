package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/internal/resilience"
)

// PoolConfig sizes one stage's worker pool. Each stage is tuned
// independently: ingest is network-bound and parallelizes well, synthesize is
// slow LLM I/O and usually runs narrow.
type PoolConfig struct {
	Stage   model.Stage
	Workers int
	Retry   resilience.RetryConfig
}

// DefaultPoolRetry is the per-job retry budget: two retries, three attempts
// total. It retries every error, not just transient ones, because a stage
// failure may be a provider blip the diagnostics cannot distinguish.
func DefaultPoolRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = 3
	cfg.ShouldRetry = resilience.RetryAlways
	return cfg
}

// Pool runs a fixed number of workers pulling jobs for one stage. Jobs that
// exhaust the retry budget are recorded to the DLQ and dropped; the pool
// itself never stops on job failure.
type Pool struct {
	queue   Queue
	dlq     resilience.DLQ
	handler Handler
	cfg     PoolConfig
}

// NewPool creates a worker pool for one stage. dlq may be nil, in which case
// exhausted jobs are only logged.
func NewPool(q Queue, dlq resilience.DLQ, handler Handler, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultPoolRetry()
	}
	return &Pool{queue: q, dlq: dlq, handler: handler, cfg: cfg}
}

// Run blocks until the context is canceled, processing jobs concurrently.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			return p.work(ctx)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (p *Pool) work(ctx context.Context) error {
	for {
		payload, err := p.queue.Dequeue(ctx, p.cfg.Stage)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			zap.L().Error("queue: dequeue failed",
				zap.String("stage", string(p.cfg.Stage)),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(dequeuePollTimeout):
			}
			continue
		}
		p.process(ctx, *payload)
	}
}

func (p *Pool) process(ctx context.Context, payload model.JobPayload) {
	start := time.Now()
	var next *Job

	retry := p.cfg.Retry
	retry.OnRetry = func(attempt int, err error) {
		zap.L().Warn("queue: stage attempt failed, retrying",
			zap.String("stage", string(p.cfg.Stage)),
			zap.String("symbol", payload.Symbol),
			zap.String("run_id", payload.RunID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		var handleErr error
		next, handleErr = p.handler.Handle(ctx, p.cfg.Stage, payload)
		return handleErr
	})
	if err != nil {
		if ctx.Err() != nil {
			zap.L().Warn("queue: job interrupted by shutdown",
				zap.String("stage", string(p.cfg.Stage)),
				zap.String("run_id", payload.RunID))
			return
		}
		p.deadLetter(ctx, payload, err)
		return
	}

	zap.L().Info("queue: stage complete",
		zap.String("stage", string(p.cfg.Stage)),
		zap.String("symbol", payload.Symbol),
		zap.String("run_id", payload.RunID),
		zap.Duration("elapsed", time.Since(start)))

	if next == nil {
		return
	}
	enqueued, err := p.queue.Enqueue(ctx, next.Stage, next.Payload)
	if err != nil {
		zap.L().Error("queue: enqueue next stage failed",
			zap.String("stage", string(next.Stage)),
			zap.String("symbol", payload.Symbol),
			zap.String("run_id", payload.RunID),
			zap.Error(err))
		return
	}
	if !enqueued {
		zap.L().Debug("queue: next stage enqueue suppressed by idempotency key",
			zap.String("stage", string(next.Stage)),
			zap.String("key", next.Payload.IdempotencyKey))
	}
}

func (p *Pool) deadLetter(ctx context.Context, payload model.JobPayload, err error) {
	zap.L().Error("queue: stage exhausted retry budget",
		zap.String("stage", string(p.cfg.Stage)),
		zap.String("symbol", payload.Symbol),
		zap.String("run_id", payload.RunID),
		zap.Int("attempts", p.cfg.Retry.MaxAttempts),
		zap.Error(err))
	if p.dlq == nil {
		return
	}
	now := time.Now().UTC()
	entry := resilience.DLQEntry{
		ID:           uuid.NewString(),
		Stage:        p.cfg.Stage,
		Payload:      payload,
		Error:        err.Error(),
		ErrorType:    resilience.ClassifyError(err),
		Attempts:     p.cfg.Retry.MaxAttempts,
		FirstSeenAt:  now,
		LastFailedAt: now,
	}
	if recordErr := p.dlq.Record(ctx, entry); recordErr != nil {
		zap.L().Error("queue: dlq record failed",
			zap.String("stage", string(p.cfg.Stage)),
			zap.Error(recordErr))
	}
}
