package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/internal/resilience"
)

const memoryQueueBuffer = 1024

// MemoryQueue is an in-process Queue used by the single-shot snapshot command
// and by tests. Dedupe semantics match the Redis transport: stage-scoped
// idempotency keys with a TTL window.
type MemoryQueue struct {
	mu      sync.Mutex
	jobs    map[model.Stage]chan model.JobPayload
	claimed map[string]time.Time
	dead    []resilience.DLQEntry
	idemTTL time.Duration
	closed  bool
	now     func() time.Time
}

// NewMemory creates an in-process queue with the default dedupe window.
func NewMemory() *MemoryQueue {
	jobs := make(map[model.Stage]chan model.JobPayload, len(model.Stages))
	for _, stage := range model.Stages {
		jobs[stage] = make(chan model.JobPayload, memoryQueueBuffer)
	}
	return &MemoryQueue{
		jobs:    jobs,
		claimed: make(map[string]time.Time),
		idemTTL: DefaultIdempotencyTTL,
		now:     time.Now,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, stage model.Stage, payload model.JobPayload) (bool, error) {
	if !stage.Valid() {
		return false, eris.Errorf("queue: unknown stage %q", stage)
	}
	if payload.IdempotencyKey == "" {
		return false, eris.New("queue: payload missing idempotency key")
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, eris.New("queue: closed")
	}
	key := string(stage) + ":" + payload.IdempotencyKey
	now := q.now()
	if expiry, ok := q.claimed[key]; ok && now.Before(expiry) {
		q.mu.Unlock()
		return false, nil
	}
	q.claimed[key] = now.Add(q.idemTTL)
	ch := q.jobs[stage]
	q.mu.Unlock()

	select {
	case ch <- payload:
		return true, nil
	case <-ctx.Done():
		// The job never made it onto the channel; release the claim so a
		// retried enqueue is not suppressed for the TTL window.
		q.mu.Lock()
		delete(q.claimed, key)
		q.mu.Unlock()
		return false, ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, stage model.Stage) (*model.JobPayload, error) {
	if !stage.Valid() {
		return nil, eris.Errorf("queue: unknown stage %q", stage)
	}
	select {
	case payload, ok := <-q.jobs[stage]:
		if !ok {
			return nil, eris.New("queue: closed")
		}
		return &payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Record captures an exhausted job for later inspection.
func (q *MemoryQueue) Record(_ context.Context, entry resilience.DLQEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, entry)
	return nil
}

// DeadLetters returns the recorded dead-letter entries, oldest first.
func (q *MemoryQueue) DeadLetters() []resilience.DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]resilience.DLQEntry, len(q.dead))
	copy(out, q.dead)
	return out
}

// Depth returns the number of pending jobs for a stage.
func (q *MemoryQueue) Depth(stage model.Stage) int {
	return len(q.jobs[stage])
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	for _, ch := range q.jobs {
		close(ch)
	}
	return nil
}

var _ Queue = (*MemoryQueue)(nil)
var _ resilience.DLQ = (*MemoryQueue)(nil)
