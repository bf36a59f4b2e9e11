// Package task mints run and task identity plus the time-bucketed
// idempotency key that collapses duplicate enqueues of the same symbol and
// stage inside one UTC hour.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/equity-snapshot/internal/model"
)

// Clock supplies wall-clock time. Injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator mints unique identifiers.
type IDGenerator interface {
	Next() string
}

// UUIDGenerator mints random UUIDv4 identifiers.
type UUIDGenerator struct{}

// Next returns a new UUID string.
func (UUIDGenerator) Next() string { return uuid.NewString() }

// hourBucketLayout truncates to the UTC hour. The bucket is calendar-aligned:
// reruns just after an hour boundary mint a fresh key.
const hourBucketLayout = "2006-01-02T15"

// Factory creates tasks with stable identity semantics.
type Factory struct {
	clock Clock
	ids   IDGenerator
}

// NewFactory creates a task factory. Nil arguments select the system clock
// and UUID generation.
func NewFactory(clock Clock, ids IDGenerator) *Factory {
	if clock == nil {
		clock = SystemClock{}
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}
	return &Factory{clock: clock, ids: ids}
}

// Create mints a task for the given symbol and stage. The idempotency key is
// symbol-stage-hourBucket so duplicate requests within the same hour collapse
// to one logical job; force appends the task id to bypass that dedupe for
// manual reruns.
func (f *Factory) Create(symbol string, stage model.Stage, force bool) model.Task {
	now := f.clock.Now().UTC()
	id := f.ids.Next()

	key := fmt.Sprintf("%s-%s-%s", sanitizeToken(symbol), stage, now.Format(hourBucketLayout))
	priority := 0
	if force {
		key = key + "-force-" + sanitizeToken(id)
		priority = 1
	}

	return model.Task{
		ID:             id,
		RunID:          f.ids.Next(),
		Symbol:         symbol,
		RequestedAt:    now,
		Priority:       priority,
		Stage:          stage,
		IdempotencyKey: key,
	}
}

// sanitizeToken restricts a key component to [A-Za-z0-9-]. Queue transports
// reserve other delimiters (notably ':') in job identity tokens.
func sanitizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
