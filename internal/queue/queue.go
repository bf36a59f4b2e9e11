package queue

import (
	"context"

	"github.com/sells-group/equity-snapshot/internal/model"
)

// Job names the stage a payload should run under.
type Job struct {
	Stage   model.Stage
	Payload model.JobPayload
}

// Handler processes one job for a stage. A non-nil return is the follow-up
// job to enqueue; stages may skip ahead (a stage with no documents goes
// straight to synthesize). nil means the chain ends here.
type Handler interface {
	Handle(ctx context.Context, stage model.Stage, payload model.JobPayload) (*Job, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, stage model.Stage, payload model.JobPayload) (*Job, error)

func (f HandlerFunc) Handle(ctx context.Context, stage model.Stage, payload model.JobPayload) (*Job, error) {
	return f(ctx, stage, payload)
}

// Queue is the stage-job transport. Enqueue is at-least-once and keyed by the
// payload's idempotency key scoped to the stage: a duplicate enqueue for the
// same stage and key within the dedupe window collapses to one logical job
// and returns false.
type Queue interface {
	Enqueue(ctx context.Context, stage model.Stage, payload model.JobPayload) (bool, error)
	// Dequeue blocks until a job is available for the stage or the context
	// is canceled.
	Dequeue(ctx context.Context, stage model.Stage) (*model.JobPayload, error)
	Close() error
}
