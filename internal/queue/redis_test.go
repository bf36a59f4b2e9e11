package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/internal/resilience"
)

func newRedisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := NewRedis(context.Background(), RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q, mr
}

func testPayload(key string) model.JobPayload {
	return model.JobPayload{
		RunID:          "run-1",
		TaskID:         "task-1",
		Symbol:         "AAPL",
		IdempotencyKey: key,
		RequestedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	q, _ := newRedisQueue(t)
	ctx := context.Background()

	payload := testPayload("AAPL-ingest-2026-09-01T14")
	payload = payload.WithProviderFailure(model.ProviderFailureDiagnostic{
		Provider: "alphavantage", Status: "failed", Reason: "rate_limited: throttled", Retryable: true,
	})

	enqueued, err := q.Enqueue(ctx, model.StageIngest, payload)
	require.NoError(t, err)
	assert.True(t, enqueued)

	got, err := q.Dequeue(ctx, model.StageIngest)
	require.NoError(t, err)
	assert.Equal(t, payload.RunID, got.RunID)
	assert.Equal(t, payload.IdempotencyKey, got.IdempotencyKey)
	require.Len(t, got.ProviderFailures, 1, "diagnostics survive the wire")
	assert.Equal(t, "alphavantage", got.ProviderFailures[0].Provider)
}

func TestRedisQueue_DuplicateEnqueueSuppressed(t *testing.T) {
	q, _ := newRedisQueue(t)
	ctx := context.Background()

	payload := testPayload("AAPL-ingest-2026-09-01T14")

	enqueued, err := q.Enqueue(ctx, model.StageIngest, payload)
	require.NoError(t, err)
	assert.True(t, enqueued)

	enqueued, err = q.Enqueue(ctx, model.StageIngest, payload)
	require.NoError(t, err)
	assert.False(t, enqueued, "same key within the window collapses to one job")

	depth, err := q.Depth(ctx, model.StageIngest)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestRedisQueue_SameKeyDifferentStages(t *testing.T) {
	q, _ := newRedisQueue(t)
	ctx := context.Background()

	// The key travels unchanged in the payload; dedupe is scoped per stage
	// so advancing the pipeline is never suppressed by the previous stage's
	// claim.
	payload := testPayload("AAPL-ingest-2026-09-01T14")

	enqueued, err := q.Enqueue(ctx, model.StageIngest, payload)
	require.NoError(t, err)
	assert.True(t, enqueued)

	enqueued, err = q.Enqueue(ctx, model.StageNormalize, payload)
	require.NoError(t, err)
	assert.True(t, enqueued)
}

func TestRedisQueue_IdempotencyWindowExpires(t *testing.T) {
	q, mr := newRedisQueue(t)
	ctx := context.Background()

	payload := testPayload("AAPL-ingest-2026-09-01T14")

	enqueued, err := q.Enqueue(ctx, model.StageIngest, payload)
	require.NoError(t, err)
	assert.True(t, enqueued)

	mr.FastForward(DefaultIdempotencyTTL + time.Minute)

	enqueued, err = q.Enqueue(ctx, model.StageIngest, payload)
	require.NoError(t, err)
	assert.True(t, enqueued, "expired claim no longer suppresses")
}

func TestRedisQueue_FailedPushReleasesClaim(t *testing.T) {
	q, mr := newRedisQueue(t)
	ctx := context.Background()
	key := "AAPL-ingest-2026-09-01T14"

	// A string value on the stage list key makes RPUSH fail with WRONGTYPE.
	require.NoError(t, mr.Set(queueKey(model.StageIngest), "blocker"))

	_, err := q.Enqueue(ctx, model.StageIngest, testPayload(key))
	require.Error(t, err)
	assert.False(t, mr.Exists(idempotencyKey(model.StageIngest, key)),
		"claim must be released when the push fails")

	mr.Del(queueKey(model.StageIngest))

	// Retry after failed push must be accepted, not suppressed for the TTL.
	accepted, err := q.Enqueue(ctx, model.StageIngest, testPayload(key))
	require.NoError(t, err)
	require.True(t, accepted)

	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	payload, err := q.Dequeue(dctx, model.StageIngest)
	require.NoError(t, err)
	assert.Equal(t, key, payload.IdempotencyKey)
}

func TestRedisQueue_EnqueueRejectsMissingKey(t *testing.T) {
	q, _ := newRedisQueue(t)

	_, err := q.Enqueue(context.Background(), model.StageIngest, model.JobPayload{RunID: "run-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idempotency key")
}

func TestRedisQueue_DequeueRespectsContext(t *testing.T) {
	q, _ := newRedisQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx, model.StageSynthesize)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisQueue_DeadLetters(t *testing.T) {
	q, _ := newRedisQueue(t)
	ctx := context.Background()

	entry := resilience.DLQEntry{
		ID:           "dlq-1",
		Stage:        model.StageIngest,
		Payload:      testPayload("AAPL-ingest-2026-09-01T14"),
		Error:        "news/finnhub [provider_error]: upstream 503",
		ErrorType:    "transient",
		Attempts:     3,
		FirstSeenAt:  time.Now().UTC().Truncate(time.Second),
		LastFailedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, q.Record(ctx, entry))

	entries, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dlq-1", entries[0].ID)
	assert.Equal(t, model.StageIngest, entries[0].Stage)
	assert.Equal(t, "AAPL", entries[0].Payload.Symbol)
}
