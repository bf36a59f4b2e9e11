package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/equity-snapshot/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	published_at     DATETIME NOT NULL,
	synthetic        INTEGER NOT NULL DEFAULT 0,
	embedding        TEXT,
	created_at       DATETIME NOT NULL,
	UNIQUE(provider, provider_item_id)
);

CREATE TABLE IF NOT EXISTS metrics (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	task_id    TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	provider   TEXT NOT NULL,
	name       TEXT NOT NULL,
	value      REAL NOT NULL,
	unit       TEXT,
	as_of      DATETIME NOT NULL,
	synthetic  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
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
	filed_at         DATETIME NOT NULL,
	synthetic        INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL,
	UNIQUE(provider, dedupe_key)
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	task_id    TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_summaries (
	run_id     TEXT PRIMARY KEY,
	symbol     TEXT NOT NULL,
	summary    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_symbol_run ON documents(symbol, run_id);
CREATE INDEX IF NOT EXISTS idx_metrics_symbol_run ON metrics(symbol, run_id);
CREATE INDEX IF NOT EXISTS idx_filings_symbol_run ON filings(symbol, run_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_symbol ON snapshots(symbol, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertDocuments(ctx context.Context, docs []model.Document) error {
	for _, d := range docs {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO documents (id, run_id, task_id, symbol, provider, provider_item_id, title, url, body, published_at, synthetic, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(provider, provider_item_id) DO UPDATE SET
				run_id = excluded.run_id,
				task_id = excluded.task_id,
				title = excluded.title,
				url = excluded.url,
				body = excluded.body,
				published_at = excluded.published_at,
				synthetic = excluded.synthetic`,
			d.ID, d.RunID, d.TaskID, d.Symbol, d.Provider, d.ProviderItemID,
			d.Title, d.URL, d.Body, d.PublishedAt.UTC(), boolToInt(d.Synthetic), d.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert document %s/%s", d.Provider, d.ProviderItemID)
		}
	}
	return nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, q EvidenceQuery) ([]model.Document, error) {
	query := `SELECT id, run_id, task_id, symbol, provider, provider_item_id, title, url, body, published_at, synthetic, embedding, created_at
		FROM documents WHERE symbol = ?`
	args := []any{q.Symbol}
	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	query += ` ORDER BY published_at DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		var url, body, embedding sql.NullString
		var synthetic int
		if err := rows.Scan(&d.ID, &d.RunID, &d.TaskID, &d.Symbol, &d.Provider, &d.ProviderItemID,
			&d.Title, &url, &body, &d.PublishedAt, &synthetic, &embedding, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		d.URL = url.String
		d.Body = body.String
		d.Synthetic = synthetic != 0
		if embedding.Valid && embedding.String != "" {
			if err := json.Unmarshal([]byte(embedding.String), &d.Embedding); err != nil {
				return nil, eris.Wrapf(err, "sqlite: decode embedding for %s", d.ID)
			}
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: iterate documents")
}

func (s *SQLiteStore) SetDocumentEmbedding(ctx context.Context, docID string, embedding []float64) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal embedding")
	}
	_, err = s.db.ExecContext(ctx, `UPDATE documents SET embedding = ? WHERE id = ?`, string(raw), docID)
	return eris.Wrapf(err, "sqlite: set embedding %s", docID)
}

func (s *SQLiteStore) UpsertMetrics(ctx context.Context, points []model.MetricPoint) error {
	for _, m := range points {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO metrics (id, run_id, task_id, symbol, provider, name, value, unit, as_of, synthetic, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(symbol, provider, name, as_of) DO UPDATE SET
				run_id = excluded.run_id,
				task_id = excluded.task_id,
				value = excluded.value,
				unit = excluded.unit,
				synthetic = excluded.synthetic`,
			m.ID, m.RunID, m.TaskID, m.Symbol, m.Provider, m.Name, m.Value, m.Unit,
			m.AsOf.UTC(), boolToInt(m.Synthetic), m.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert metric %s/%s", m.Provider, m.Name)
		}
	}
	return nil
}

func (s *SQLiteStore) ListMetrics(ctx context.Context, q EvidenceQuery) ([]model.MetricPoint, error) {
	query := `SELECT id, run_id, task_id, symbol, provider, name, value, unit, as_of, synthetic, created_at
		FROM metrics WHERE symbol = ?`
	args := []any{q.Symbol}
	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	query += ` ORDER BY as_of DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list metrics")
	}
	defer rows.Close()

	var points []model.MetricPoint
	for rows.Next() {
		var m model.MetricPoint
		var unit sql.NullString
		var synthetic int
		if err := rows.Scan(&m.ID, &m.RunID, &m.TaskID, &m.Symbol, &m.Provider, &m.Name,
			&m.Value, &unit, &m.AsOf, &synthetic, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan metric")
		}
		m.Unit = unit.String
		m.Synthetic = synthetic != 0
		points = append(points, m)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: iterate metrics")
}

func (s *SQLiteStore) UpsertFilings(ctx context.Context, filings []model.Filing) error {
	for _, f := range filings {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO filings (id, run_id, task_id, symbol, provider, dedupe_key, accession_number, form_type, title, url, filed_at, synthetic, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(provider, dedupe_key) DO UPDATE SET
				run_id = excluded.run_id,
				task_id = excluded.task_id,
				form_type = excluded.form_type,
				title = excluded.title,
				url = excluded.url,
				filed_at = excluded.filed_at,
				synthetic = excluded.synthetic`,
			f.ID, f.RunID, f.TaskID, f.Symbol, f.Provider, f.DedupeKey(), f.AccessionNumber,
			f.FormType, f.Title, f.URL, f.FiledAt.UTC(), boolToInt(f.Synthetic), f.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert filing %s/%s", f.Provider, f.DedupeKey())
		}
	}
	return nil
}

func (s *SQLiteStore) ListFilings(ctx context.Context, q EvidenceQuery) ([]model.Filing, error) {
	query := `SELECT id, run_id, task_id, symbol, provider, accession_number, form_type, title, url, filed_at, synthetic, created_at
		FROM filings WHERE symbol = ?`
	args := []any{q.Symbol}
	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	query += ` ORDER BY filed_at DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list filings")
	}
	defer rows.Close()

	var filings []model.Filing
	for rows.Next() {
		var f model.Filing
		var accession, title, url sql.NullString
		var synthetic int
		if err := rows.Scan(&f.ID, &f.RunID, &f.TaskID, &f.Symbol, &f.Provider, &accession,
			&f.FormType, &title, &url, &f.FiledAt, &synthetic, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan filing")
		}
		f.AccessionNumber = accession.String
		f.Title = title.String
		f.URL = url.String
		f.Synthetic = synthetic != 0
		filings = append(filings, f)
	}
	return filings, eris.Wrap(rows.Err(), "sqlite: iterate filings")
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snapshot *model.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, run_id, task_id, symbol, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		snapshot.ID, snapshot.RunID, snapshot.TaskID, snapshot.Symbol, string(payload), snapshot.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert snapshot %s", snapshot.ID)
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, symbol, runID string) (*model.Snapshot, error) {
	query := `SELECT payload FROM snapshots WHERE symbol = ?`
	args := []any{symbol}
	if runID != "" {
		query += ` AND run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	var payload string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest snapshot")
	}
	var snapshot model.Snapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode snapshot")
	}
	return &snapshot, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, symbol string, limit int) ([]model.Snapshot, error) {
	query := `SELECT payload FROM snapshots WHERE symbol = ? ORDER BY created_at DESC`
	args := []any{symbol}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var snapshots []model.Snapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		var snapshot model.Snapshot
		if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode snapshot")
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, eris.Wrap(rows.Err(), "sqlite: iterate snapshots")
}

func (s *SQLiteStore) SaveRunSummary(ctx context.Context, runID, symbol, summary string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_summaries (run_id, symbol, summary, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET summary = excluded.summary`,
		runID, symbol, summary, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save run summary %s", runID)
}

func (s *SQLiteStore) GetRunSummary(ctx context.Context, runID string) (string, error) {
	var summary string
	err := s.db.QueryRowContext(ctx, `SELECT summary FROM run_summaries WHERE run_id = ?`, runID).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return summary, eris.Wrapf(err, "sqlite: get run summary %s", runID)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
