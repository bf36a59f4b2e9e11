package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/internal/resilience"
)

const (
	// DefaultIdempotencyTTL bounds the dedupe window. The key embeds a UTC
	// hour bucket, so two hours comfortably covers a bucket plus clock skew.
	DefaultIdempotencyTTL = 2 * time.Hour

	// dequeuePollTimeout is how long each BLPOP waits before re-checking the
	// context.
	dequeuePollTimeout = 2 * time.Second

	keyPrefix = "equity:"
	dlqKey    = keyPrefix + "dlq"
)

func queueKey(stage model.Stage) string { return keyPrefix + "queue:" + string(stage) }

func idempotencyKey(stage model.Stage, key string) string {
	return keyPrefix + "idem:" + string(stage) + ":" + key
}

// RedisConfig configures the Redis job transport.
type RedisConfig struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string `yaml:"url" mapstructure:"url"`
	// IdempotencyTTL overrides the dedupe window (default 2h).
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl" mapstructure:"idempotency_ttl"`
}

// RedisQueue implements Queue over Redis lists, one list per stage, with
// SETNX-based enqueue dedupe. It also implements resilience.DLQ by appending
// exhausted jobs to a dead-letter list.
type RedisQueue struct {
	client  *goredis.Client
	idemTTL time.Duration
}

// NewRedis creates a Redis-backed queue and verifies connectivity.
func NewRedis(ctx context.Context, cfg RedisConfig) (*RedisQueue, error) {
	if cfg.URL == "" {
		return nil, eris.New("queue: redis URL is required")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, eris.Wrap(err, "queue: invalid redis URL")
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrap(err, "queue: redis ping")
	}
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &RedisQueue{client: client, idemTTL: ttl}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, stage model.Stage, payload model.JobPayload) (bool, error) {
	if !stage.Valid() {
		return false, eris.Errorf("queue: unknown stage %q", stage)
	}
	if payload.IdempotencyKey == "" {
		return false, eris.New("queue: payload missing idempotency key")
	}

	claimed, err := q.client.SetNX(ctx, idempotencyKey(stage, payload.IdempotencyKey), "1", q.idemTTL).Result()
	if err != nil {
		return false, eris.Wrapf(err, "queue: claim idempotency key for %s", stage)
	}
	if !claimed {
		return false, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		q.releaseClaim(ctx, stage, payload.IdempotencyKey)
		return false, eris.Wrap(err, "queue: marshal payload")
	}
	if err := q.client.RPush(ctx, queueKey(stage), body).Err(); err != nil {
		q.releaseClaim(ctx, stage, payload.IdempotencyKey)
		return false, eris.Wrapf(err, "queue: push %s", stage)
	}
	return true, nil
}

// releaseClaim drops an idempotency claim whose job never made it onto the
// stage list, so a retried enqueue is not suppressed for the TTL window.
func (q *RedisQueue) releaseClaim(ctx context.Context, stage model.Stage, key string) {
	if err := q.client.Del(context.WithoutCancel(ctx), idempotencyKey(stage, key)).Err(); err != nil {
		zap.L().Warn("queue: could not release idempotency claim",
			zap.String("stage", string(stage)),
			zap.String("idempotency_key", key),
			zap.Error(err))
	}
}

func (q *RedisQueue) Dequeue(ctx context.Context, stage model.Stage) (*model.JobPayload, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := q.client.BLPop(ctx, dequeuePollTimeout, queueKey(stage)).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, eris.Wrapf(err, "queue: pop %s", stage)
		}
		// BLPOP returns [key, value].
		if len(res) != 2 {
			return nil, eris.Errorf("queue: unexpected BLPOP reply length %d", len(res))
		}
		var payload model.JobPayload
		if err := json.Unmarshal([]byte(res[1]), &payload); err != nil {
			return nil, eris.Wrapf(err, "queue: decode %s payload", stage)
		}
		return &payload, nil
	}
}

// Record appends an exhausted job to the dead-letter list.
func (q *RedisQueue) Record(ctx context.Context, entry resilience.DLQEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "queue: marshal dlq entry")
	}
	return eris.Wrap(q.client.RPush(ctx, dlqKey, body).Err(), "queue: push dlq")
}

// DeadLetters returns up to limit dead-letter entries, oldest first. A limit
// of zero returns everything.
func (q *RedisQueue) DeadLetters(ctx context.Context, limit int) ([]resilience.DLQEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raw, err := q.client.LRange(ctx, dlqKey, 0, stop).Result()
	if err != nil {
		return nil, eris.Wrap(err, "queue: read dlq")
	}
	entries := make([]resilience.DLQEntry, 0, len(raw))
	for _, item := range raw {
		var entry resilience.DLQEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, eris.Wrap(err, "queue: decode dlq entry")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Depth returns the number of pending jobs for a stage.
func (q *RedisQueue) Depth(ctx context.Context, stage model.Stage) (int64, error) {
	n, err := q.client.LLen(ctx, queueKey(stage)).Result()
	return n, eris.Wrapf(err, "queue: depth %s", stage)
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

var _ Queue = (*RedisQueue)(nil)
var _ resilience.DLQ = (*RedisQueue)(nil)
