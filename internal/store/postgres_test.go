package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/equity-snapshot/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{db: mock}, mock
}

func TestPostgresStore_UpsertDocuments(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO documents .* ON CONFLICT \(provider, provider_item_id\)`).
		WithArgs("doc-1", "run-a", "task-a", "AAPL", "finnhub", "item-1",
			"Apple beats estimates", "https://example.com/1", "body", pgxmock.AnyArg(), false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertDocuments(context.Background(), []model.Document{{
		ID: "doc-1", RunID: "run-a", TaskID: "task-a", Symbol: "AAPL",
		Provider: "finnhub", ProviderItemID: "item-1",
		Title: "Apple beats estimates", URL: "https://example.com/1", Body: "body",
		PublishedAt: now, CreatedAt: now,
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestSnapshot_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM snapshots WHERE symbol = \$1 ORDER BY created_at DESC LIMIT 1`).
		WithArgs("AAPL").
		WillReturnError(pgx.ErrNoRows)

	snapshot, err := s.LatestSnapshot(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.Nil(t, snapshot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestSnapshot_ByRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	payload := []byte(`{"id":"snap-1","runId":"run-a","symbol":"AAPL","score":72.5,"confidence":0.55,"thesis":"steady"}`)
	mock.ExpectQuery(`SELECT payload FROM snapshots WHERE symbol = \$1 AND run_id = \$2`).
		WithArgs("AAPL", "run-a").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	snapshot, err := s.LatestSnapshot(context.Background(), "AAPL", "run-a")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "snap-1", snapshot.ID)
	assert.Equal(t, 72.5, snapshot.Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDocuments_RunScoped(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "run_id", "task_id", "symbol", "provider", "provider_item_id",
		"title", "url", "body", "published_at", "synthetic", "embedding", "created_at",
	}).AddRow("doc-1", "run-a", "task-a", "AAPL", "finnhub", "item-1",
		"Apple beats estimates", "https://example.com/1", "body", now, false, []byte(`[0.1,0.2]`), now)

	mock.ExpectQuery(`SELECT .* FROM documents WHERE symbol = \$1 AND run_id = \$2`).
		WithArgs("AAPL", "run-a").
		WillReturnRows(rows)

	docs, err := s.ListDocuments(context.Background(), EvidenceQuery{Symbol: "AAPL", RunID: "run-a"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-1", docs[0].ID)
	assert.Equal(t, []float64{0.1, 0.2}, docs[0].Embedding)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetDocumentEmbedding(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE documents SET embedding = \$1 WHERE id = \$2`).
		WithArgs(pgxmock.AnyArg(), "doc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SetDocumentEmbedding(context.Background(), "doc-1", []float64{0.5, -0.5})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRunSummary_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT summary FROM run_summaries WHERE run_id = \$1`).
		WithArgs("run-missing").
		WillReturnError(pgx.ErrNoRows)

	summary, err := s.GetRunSummary(context.Background(), "run-missing")
	require.NoError(t, err)
	assert.Empty(t, summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRunSummary_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO run_summaries .* ON CONFLICT \(run_id\)`).
		WithArgs("run-a", "AAPL", "3 documents, 5 metrics", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveRunSummary(context.Background(), "run-a", "AAPL", "3 documents, 5 metrics")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
