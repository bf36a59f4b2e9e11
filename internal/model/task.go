package model

import "time"

// Task mints identity for one pipeline run: a task id, a run id, and the
// time-bucketed idempotency key that collapses duplicate enqueues.
type Task struct {
	ID             string    `json:"id"`
	RunID          string    `json:"runId"`
	Symbol         string    `json:"symbol"`
	RequestedAt    time.Time `json:"requestedAt"`
	Priority       int       `json:"priority"`
	Stage          Stage     `json:"stage"`
	IdempotencyKey string    `json:"idempotencyKey"`
}

// Payload builds the initial job payload for this task.
func (t Task) Payload(identity *ResolvedIdentity) JobPayload {
	return JobPayload{
		RunID:          t.RunID,
		TaskID:         t.ID,
		Symbol:         t.Symbol,
		IdempotencyKey: t.IdempotencyKey,
		RequestedAt:    t.RequestedAt,
		Identity:       identity,
	}
}
