package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-snapshot/internal/model"
)

// DB is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	db DB
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{db: pool}, nil
}

// NewPostgresWithDB wraps an existing connection pool (or a mock in tests).
func NewPostgresWithDB(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id               TEXT PRIMARY KEY,
	run_id           TEXT NOT NULL,
	task_id          TEXT NOT NULL,
	symbol           TEXT NOT NULL,
	provider         TEXT NOT NULL,
	provider_item_id TEXT NOT NULL,
	title            TEXT NOT NULL,
	url              TEXT,
	body             TEXT,
	published_at     TIMESTAMPTZ NOT NULL,
	synthetic        BOOLEAN NOT NULL DEFAULT false,
	embedding        JSONB,
	created_at       TIMESTAMPTZ NOT NULL,
	UNIQUE(provider, provider_item_id)
);

CREATE TABLE IF NOT EXISTS metrics (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	task_id    TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	provider   TEXT NOT NULL,
	name       TEXT NOT NULL,
	value      DOUBLE PRECISION NOT NULL,
	unit       TEXT,
	as_of      TIMESTAMPTZ NOT NULL,
	synthetic  BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE(symbol, provider, name, as_of)
);

CREATE TABLE IF NOT EXISTS filings (
	id               TEXT PRIMARY KEY,
	run_id           TEXT NOT NULL,
	task_id          TEXT NOT NULL,
	symbol           TEXT NOT NULL,
	provider         TEXT NOT NULL,
	dedupe_key       TEXT NOT NULL,
	accession_number TEXT,
	form_type        TEXT NOT NULL,
	title            TEXT,
	url              TEXT,
	filed_at         TIMESTAMPTZ NOT NULL,
	synthetic        BOOLEAN NOT NULL DEFAULT false,
	created_at       TIMESTAMPTZ NOT NULL,
	UNIQUE(provider, dedupe_key)
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	task_id    TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS run_summaries (
	run_id     TEXT PRIMARY KEY,
	symbol     TEXT NOT NULL,
	summary    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_symbol_run ON documents(symbol, run_id);
CREATE INDEX IF NOT EXISTS idx_metrics_symbol_run ON metrics(symbol, run_id);
CREATE INDEX IF NOT EXISTS idx_filings_symbol_run ON filings(symbol, run_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_symbol ON snapshots(symbol, created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) UpsertDocuments(ctx context.Context, docs []model.Document) error {
	for _, d := range docs {
		_, err := s.db.Exec(ctx, `
			INSERT INTO documents (id, run_id, task_id, symbol, provider, provider_item_id, title, url, body, published_at, synthetic, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (provider, provider_item_id) DO UPDATE SET
				run_id = EXCLUDED.run_id,
				task_id = EXCLUDED.task_id,
				title = EXCLUDED.title,
				url = EXCLUDED.url,
				body = EXCLUDED.body,
				published_at = EXCLUDED.published_at,
				synthetic = EXCLUDED.synthetic`,
			d.ID, d.RunID, d.TaskID, d.Symbol, d.Provider, d.ProviderItemID,
			d.Title, d.URL, d.Body, d.PublishedAt.UTC(), d.Synthetic, d.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert document %s/%s", d.Provider, d.ProviderItemID)
		}
	}
	return nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, q EvidenceQuery) ([]model.Document, error) {
	query := `SELECT id, run_id, task_id, symbol, provider, provider_item_id, title,
			COALESCE(url, ''), COALESCE(body, ''), published_at, synthetic, embedding, created_at
		FROM documents WHERE symbol = $1`
	args := []any{q.Symbol}
	if q.RunID != "" {
		query += ` AND run_id = $2`
		args = append(args, q.RunID)
	}
	query += ` ORDER BY published_at DESC`
	if q.Limit > 0 {
		query += ` LIMIT ` + placeholder(len(args)+1)
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		var embedding []byte
		if err := rows.Scan(&d.ID, &d.RunID, &d.TaskID, &d.Symbol, &d.Provider, &d.ProviderItemID,
			&d.Title, &d.URL, &d.Body, &d.PublishedAt, &d.Synthetic, &embedding, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		if len(embedding) > 0 {
			if err := json.Unmarshal(embedding, &d.Embedding); err != nil {
				return nil, eris.Wrapf(err, "postgres: decode embedding for %s", d.ID)
			}
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: iterate documents")
}

func (s *PostgresStore) SetDocumentEmbedding(ctx context.Context, docID string, embedding []float64) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal embedding")
	}
	_, err = s.db.Exec(ctx, `UPDATE documents SET embedding = $1 WHERE id = $2`, raw, docID)
	return eris.Wrapf(err, "postgres: set embedding %s", docID)
}

func (s *PostgresStore) UpsertMetrics(ctx context.Context, points []model.MetricPoint) error {
	for _, m := range points {
		_, err := s.db.Exec(ctx, `
			INSERT INTO metrics (id, run_id, task_id, symbol, provider, name, value, unit, as_of, synthetic, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (symbol, provider, name, as_of) DO UPDATE SET
				run_id = EXCLUDED.run_id,
				task_id = EXCLUDED.task_id,
				value = EXCLUDED.value,
				unit = EXCLUDED.unit,
				synthetic = EXCLUDED.synthetic`,
			m.ID, m.RunID, m.TaskID, m.Symbol, m.Provider, m.Name, m.Value, m.Unit,
			m.AsOf.UTC(), m.Synthetic, m.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert metric %s/%s", m.Provider, m.Name)
		}
	}
	return nil
}

func (s *PostgresStore) ListMetrics(ctx context.Context, q EvidenceQuery) ([]model.MetricPoint, error) {
	query := `SELECT id, run_id, task_id, symbol, provider, name, value, COALESCE(unit, ''), as_of, synthetic, created_at
		FROM metrics WHERE symbol = $1`
	args := []any{q.Symbol}
	if q.RunID != "" {
		query += ` AND run_id = $2`
		args = append(args, q.RunID)
	}
	query += ` ORDER BY as_of DESC`
	if q.Limit > 0 {
		query += ` LIMIT ` + placeholder(len(args)+1)
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list metrics")
	}
	defer rows.Close()

	var points []model.MetricPoint
	for rows.Next() {
		var m model.MetricPoint
		if err := rows.Scan(&m.ID, &m.RunID, &m.TaskID, &m.Symbol, &m.Provider, &m.Name,
			&m.Value, &m.Unit, &m.AsOf, &m.Synthetic, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan metric")
		}
		points = append(points, m)
	}
	return points, eris.Wrap(rows.Err(), "postgres: iterate metrics")
}

func (s *PostgresStore) UpsertFilings(ctx context.Context, filings []model.Filing) error {
	for _, f := range filings {
		_, err := s.db.Exec(ctx, `
			INSERT INTO filings (id, run_id, task_id, symbol, provider, dedupe_key, accession_number, form_type, title, url, filed_at, synthetic, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (provider, dedupe_key) DO UPDATE SET
				run_id = EXCLUDED.run_id,
				task_id = EXCLUDED.task_id,
				form_type = EXCLUDED.form_type,
				title = EXCLUDED.title,
				url = EXCLUDED.url,
				filed_at = EXCLUDED.filed_at,
				synthetic = EXCLUDED.synthetic`,
			f.ID, f.RunID, f.TaskID, f.Symbol, f.Provider, f.DedupeKey(), f.AccessionNumber,
			f.FormType, f.Title, f.URL, f.FiledAt.UTC(), f.Synthetic, f.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert filing %s/%s", f.Provider, f.DedupeKey())
		}
	}
	return nil
}

func (s *PostgresStore) ListFilings(ctx context.Context, q EvidenceQuery) ([]model.Filing, error) {
	query := `SELECT id, run_id, task_id, symbol, provider, COALESCE(accession_number, ''), form_type,
			COALESCE(title, ''), COALESCE(url, ''), filed_at, synthetic, created_at
		FROM filings WHERE symbol = $1`
	args := []any{q.Symbol}
	if q.RunID != "" {
		query += ` AND run_id = $2`
		args = append(args, q.RunID)
	}
	query += ` ORDER BY filed_at DESC`
	if q.Limit > 0 {
		query += ` LIMIT ` + placeholder(len(args)+1)
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list filings")
	}
	defer rows.Close()

	var filings []model.Filing
	for rows.Next() {
		var f model.Filing
		if err := rows.Scan(&f.ID, &f.RunID, &f.TaskID, &f.Symbol, &f.Provider, &f.AccessionNumber,
			&f.FormType, &f.Title, &f.URL, &f.FiledAt, &f.Synthetic, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan filing")
		}
		filings = append(filings, f)
	}
	return filings, eris.Wrap(rows.Err(), "postgres: iterate filings")
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snapshot *model.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot")
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO snapshots (id, run_id, task_id, symbol, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		snapshot.ID, snapshot.RunID, snapshot.TaskID, snapshot.Symbol, payload, snapshot.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert snapshot %s", snapshot.ID)
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, symbol, runID string) (*model.Snapshot, error) {
	query := `SELECT payload FROM snapshots WHERE symbol = $1`
	args := []any{symbol}
	if runID != "" {
		query += ` AND run_id = $2`
		args = append(args, runID)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	var payload []byte
	err := s.db.QueryRow(ctx, query, args...).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest snapshot")
	}
	var snapshot model.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, eris.Wrap(err, "postgres: decode snapshot")
	}
	return &snapshot, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, symbol string, limit int) ([]model.Snapshot, error) {
	query := `SELECT payload FROM snapshots WHERE symbol = $1 ORDER BY created_at DESC`
	args := []any{symbol}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var snapshots []model.Snapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		var snapshot model.Snapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return nil, eris.Wrap(err, "postgres: decode snapshot")
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, eris.Wrap(rows.Err(), "postgres: iterate snapshots")
}

func (s *PostgresStore) SaveRunSummary(ctx context.Context, runID, symbol, summary string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO run_summaries (run_id, symbol, summary, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id) DO UPDATE SET summary = EXCLUDED.summary`,
		runID, symbol, summary, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save run summary %s", runID)
}

func (s *PostgresStore) GetRunSummary(ctx context.Context, runID string) (string, error) {
	var summary string
	err := s.db.QueryRow(ctx, `SELECT summary FROM run_summaries WHERE run_id = $1`, runID).Scan(&summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "postgres: get run summary %s", runID)
	}
	return summary, nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
