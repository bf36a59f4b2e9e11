package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/internal/resilience"
)

// recordingHandler captures handled payloads and returns canned responses.
type recordingHandler struct {
	mu      sync.Mutex
	handled []model.JobPayload
	next    *Job
	err     error
	failN   int // fail this many calls before succeeding
}

func (h *recordingHandler) Handle(_ context.Context, _ model.Stage, payload model.JobPayload) (*Job, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, payload)
	if h.failN > 0 {
		h.failN--
		return nil, eris.New("stage blew up")
	}
	if h.err != nil {
		return nil, h.err
	}
	return h.next, nil
}

func (h *recordingHandler) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func fastPoolRetry() resilience.RetryConfig {
	cfg := DefaultPoolRetry()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func runPool(t *testing.T, p *Pool, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poolDone := make(chan error, 1)
	go func() { poolDone <- p.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for !done() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for pool")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	require.NoError(t, <-poolDone)
}

func TestPool_AdvancesToNextStage(t *testing.T) {
	q := NewMemory()
	handler := &recordingHandler{next: &Job{Stage: model.StageNormalize, Payload: testPayload("AAPL-ingest-2026-09-01T14")}}
	p := NewPool(q, q, handler, PoolConfig{Stage: model.StageIngest, Workers: 2, Retry: fastPoolRetry()})

	enqueued, err := q.Enqueue(context.Background(), model.StageIngest, testPayload("AAPL-ingest-2026-09-01T14"))
	require.NoError(t, err)
	require.True(t, enqueued)

	runPool(t, p, func() bool { return q.Depth(model.StageNormalize) > 0 })

	got, err := q.Dequeue(context.Background(), model.StageNormalize)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, 1, handler.calls())
	assert.Empty(t, q.DeadLetters())
}

func TestPool_TerminalStageStopsChain(t *testing.T) {
	q := NewMemory()
	handler := &recordingHandler{next: nil}
	p := NewPool(q, q, handler, PoolConfig{Stage: model.StageSynthesize, Workers: 1, Retry: fastPoolRetry()})

	_, err := q.Enqueue(context.Background(), model.StageSynthesize, testPayload("AAPL-synthesize-2026-09-01T14"))
	require.NoError(t, err)

	runPool(t, p, func() bool { return handler.calls() >= 1 })

	for _, stage := range model.Stages {
		assert.Zero(t, q.Depth(stage))
	}
}

func TestPool_RetriesThenSucceeds(t *testing.T) {
	q := NewMemory()
	handler := &recordingHandler{
		next:  &Job{Stage: model.StageEmbed, Payload: testPayload("AAPL-normalize-2026-09-01T14")},
		failN: 2,
	}
	p := NewPool(q, q, handler, PoolConfig{Stage: model.StageNormalize, Workers: 1, Retry: fastPoolRetry()})

	_, err := q.Enqueue(context.Background(), model.StageNormalize, testPayload("AAPL-normalize-2026-09-01T14"))
	require.NoError(t, err)

	runPool(t, p, func() bool { return q.Depth(model.StageEmbed) > 0 })

	assert.Equal(t, 3, handler.calls(), "two retries after the first failure")
	assert.Empty(t, q.DeadLetters())
}

func TestPool_ExhaustedJobGoesToDLQ(t *testing.T) {
	q := NewMemory()
	handler := &recordingHandler{err: eris.New("all three evidence sources down")}
	p := NewPool(q, q, handler, PoolConfig{Stage: model.StageIngest, Workers: 1, Retry: fastPoolRetry()})

	_, err := q.Enqueue(context.Background(), model.StageIngest, testPayload("MSFT-ingest-2026-09-01T14"))
	require.NoError(t, err)

	runPool(t, p, func() bool { return len(q.DeadLetters()) > 0 })

	assert.Equal(t, 3, handler.calls(), "business failures still consume the queue retry budget")

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, model.StageIngest, dead[0].Stage)
	assert.Equal(t, "AAPL", dead[0].Payload.Symbol)
	assert.Equal(t, 3, dead[0].Attempts)
	assert.Contains(t, dead[0].Error, "sources down")
	assert.Equal(t, "permanent", dead[0].ErrorType)
	assert.Zero(t, q.Depth(model.StageNormalize), "failed job never advances")
}

func TestMemoryQueue_DuplicateEnqueueSuppressed(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	enqueued, err := q.Enqueue(ctx, model.StageIngest, testPayload("AAPL-ingest-2026-09-01T14"))
	require.NoError(t, err)
	assert.True(t, enqueued)

	enqueued, err = q.Enqueue(ctx, model.StageIngest, testPayload("AAPL-ingest-2026-09-01T14"))
	require.NoError(t, err)
	assert.False(t, enqueued)

	// A force key is distinct, so it is never suppressed.
	enqueued, err = q.Enqueue(ctx, model.StageIngest, testPayload("AAPL-ingest-2026-09-01T14-force-task-2"))
	require.NoError(t, err)
	assert.True(t, enqueued)
}

func TestMemoryQueue_FailedEnqueueReleasesClaim(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()
	key := "AAPL-ingest-2026-09-01T14"

	// Fill the stage channel so the enqueue below cannot complete the push.
	for i := 0; i < memoryQueueBuffer; i++ {
		enqueued, err := q.Enqueue(ctx, model.StageIngest, testPayload(fmt.Sprintf("FILL-%d-ingest-2026-09-01T14", i)))
		require.NoError(t, err)
		require.True(t, enqueued)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := q.Enqueue(canceled, model.StageIngest, testPayload(key))
	require.Error(t, err)

	// Make room, then retry the same key. The claim from the failed enqueue
	// must not suppress it.
	_, err = q.Dequeue(ctx, model.StageIngest)
	require.NoError(t, err)

	enqueued, err := q.Enqueue(ctx, model.StageIngest, testPayload(key))
	require.NoError(t, err)
	assert.True(t, enqueued)
}
