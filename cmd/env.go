package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/internal/pipeline"
	"github.com/sells-group/equity-snapshot/internal/provider"
	"github.com/sells-group/equity-snapshot/internal/queue"
	"github.com/sells-group/equity-snapshot/internal/resilience"
	"github.com/sells-group/equity-snapshot/internal/resolve"
	"github.com/sells-group/equity-snapshot/internal/store"
	"github.com/sells-group/equity-snapshot/internal/task"
)

// appEnv holds the initialized store, queue, providers and pipeline shared
// by the run/worker/snapshot/watch/serve commands.
type appEnv struct {
	Store    store.Store
	Queue    queue.Queue
	DLQ      resilience.DLQ
	Pipeline *pipeline.Pipeline
	Resolver resolve.Resolver
	Factory  *task.Factory
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Queue != nil {
		_ = e.Queue.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore selects the persistence backend from config.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

// initQueue selects the queue backend from config. Both backends double as
// the dead-letter sink.
func initQueue(ctx context.Context) (queue.Queue, resilience.DLQ, error) {
	switch cfg.Queue.Driver {
	case "memory":
		q := queue.NewMemory()
		return q, q, nil
	case "redis":
		q, err := queue.NewRedis(ctx, cfg.Queue.Redis)
		if err != nil {
			return nil, nil, err
		}
		return q, q, nil
	default:
		return nil, nil, eris.Errorf("unknown queue driver: %s", cfg.Queue.Driver)
	}
}

// initEnv sets up the store, queue, providers, resolver and pipeline.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	q, dlq, err := initQueue(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	providers, err := provider.NewRegistry(cfg.Providers)
	if err != nil {
		_ = q.Close()
		_ = st.Close()
		return nil, err
	}

	resolver, err := resolve.NewResolver(cfg.Resolver.AliasesPath)
	if err != nil {
		_ = q.Close()
		_ = st.Close()
		return nil, err
	}

	return &appEnv{
		Store:    st,
		Queue:    q,
		DLQ:      dlq,
		Pipeline: pipeline.New(cfg.Pipeline, st, providers),
		Resolver: resolver,
		Factory:  task.NewFactory(nil, nil),
	}, nil
}

// stageWorkers maps each stage to its configured pool size.
func stageWorkers() map[model.Stage]int {
	return map[model.Stage]int{
		model.StageIngest:     cfg.Queue.Workers.Ingest,
		model.StageNormalize:  cfg.Queue.Workers.Normalize,
		model.StageEmbed:      cfg.Queue.Workers.Embed,
		model.StageSynthesize: cfg.Queue.Workers.Synthesize,
	}
}

// runPools starts one worker pool per stage and blocks until ctx is done.
func runPools(ctx context.Context, env *appEnv) error {
	workers := stageWorkers()

	g, gctx := errgroup.WithContext(ctx)
	for _, stage := range model.Stages {
		pool := queue.NewPool(env.Queue, env.DLQ, env.Pipeline, queue.PoolConfig{
			Stage:   stage,
			Workers: workers[stage],
			Retry:   queue.DefaultPoolRetry(),
		})
		g.Go(func() error { return pool.Run(gctx) })
	}

	zap.L().Info("worker pools started",
		zap.Int("ingest", workers[model.StageIngest]),
		zap.Int("normalize", workers[model.StageNormalize]),
		zap.Int("embed", workers[model.StageEmbed]),
		zap.Int("synthesize", workers[model.StageSynthesize]))

	return g.Wait()
}

// enqueueSymbol resolves a symbol and enqueues its ingest job. It returns
// the enqueued payload, or accepted=false when the idempotency window
// suppressed the duplicate.
func enqueueSymbol(ctx context.Context, env *appEnv, symbol string, force bool) (model.JobPayload, bool, error) {
	identity, rerr := env.Resolver.Resolve(ctx, symbol)
	if rerr != nil {
		return model.JobPayload{}, false, rerr
	}

	t := env.Factory.Create(identity.CanonicalSymbol, model.StageIngest, force)
	payload := t.Payload(identity)

	accepted, err := env.Queue.Enqueue(ctx, model.StageIngest, payload)
	if err != nil {
		return model.JobPayload{}, false, eris.Wrap(err, "enqueue ingest")
	}
	return payload, accepted, nil
}
