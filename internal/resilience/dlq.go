package resilience

import (
	"context"
	"time"

	"github.com/sells-group/equity-snapshot/internal/model"
)

// DLQEntry records a pipeline job that exhausted its queue retry budget.
// Entries exist for operator inspection; nothing replays them automatically.
type DLQEntry struct {
	ID           string           `json:"id"`
	Stage        model.Stage      `json:"stage"`
	Payload      model.JobPayload `json:"payload"`
	Error        string           `json:"error"`
	ErrorType    string           `json:"error_type"` // "transient" or "permanent"
	Attempts     int              `json:"attempts"`
	FirstSeenAt  time.Time        `json:"first_seen_at"`
	LastFailedAt time.Time        `json:"last_failed_at"`
}

// DLQ receives jobs that could not be completed within the retry budget.
type DLQ interface {
	Record(ctx context.Context, entry DLQEntry) error
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
