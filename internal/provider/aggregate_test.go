package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/equity-snapshot/internal/boundary"
	"github.com/sells-group/equity-snapshot/internal/model"
)

type stubNews struct {
	name string
	docs []model.Document
	err  error
}

func (s *stubNews) Name() string { return s.name }

func (s *stubNews) FetchDocuments(_ context.Context, _ string, _, _ time.Time, _ int) ([]model.Document, error) {
	return s.docs, s.err
}

func doc(provider, url string, publishedAt time.Time) model.Document {
	return model.Document{
		Symbol:      "AAPL",
		Provider:    provider,
		Title:       "article from " + provider,
		URL:         url,
		PublishedAt: publishedAt,
	}
}

func fetchWindow() (time.Time, time.Time) {
	to := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	return to.Add(-7 * 24 * time.Hour), to
}

func TestMultiNews_MergeDedupesByURLKeepingLatest(t *testing.T) {
	from, to := fetchWindow()
	older := doc("vendor-a", "https://example.com/Story", to.Add(-2*time.Hour))
	newer := doc("vendor-b", "  https://example.com/story ", to.Add(-time.Hour))

	m := NewMultiNews(
		&stubNews{name: "vendor-a", docs: []model.Document{older}},
		&stubNews{name: "vendor-b", docs: []model.Document{newer}},
	)

	docs, err := m.FetchDocuments(context.Background(), "AAPL", from, to, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1, "same normalized URL collapses")
	assert.Equal(t, "vendor-b", docs[0].Provider, "later publish time wins")
}

func TestMultiNews_SortedDescendingAndTruncated(t *testing.T) {
	from, to := fetchWindow()
	m := NewMultiNews(&stubNews{name: "vendor-a", docs: []model.Document{
		doc("vendor-a", "https://example.com/1", to.Add(-3*time.Hour)),
		doc("vendor-a", "https://example.com/2", to.Add(-time.Hour)),
		doc("vendor-a", "https://example.com/3", to.Add(-2*time.Hour)),
	}})

	docs, err := m.FetchDocuments(context.Background(), "AAPL", from, to, 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "https://example.com/2", docs[0].URL)
	assert.Equal(t, "https://example.com/3", docs[1].URL)
}

func TestMultiNews_ItemsWithoutURLKept(t *testing.T) {
	from, to := fetchWindow()
	m := NewMultiNews(&stubNews{name: "vendor-a", docs: []model.Document{
		doc("vendor-a", "", to.Add(-time.Hour)),
		doc("vendor-a", "", to.Add(-2*time.Hour)),
	}})

	docs, err := m.FetchDocuments(context.Background(), "AAPL", from, to, 10)
	require.NoError(t, err)
	assert.Len(t, docs, 2, "no dedupe key, no dedupe")
}

func TestMultiNews_PartialFailureMergesRest(t *testing.T) {
	from, to := fetchWindow()
	m := NewMultiNews(
		&stubNews{name: "vendor-a", err: boundary.New(boundary.SourceNews, boundary.CodeProviderError, "vendor-a", "upstream 503")},
		&stubNews{name: "vendor-b", docs: []model.Document{doc("vendor-b", "https://example.com/ok", to.Add(-time.Hour))}},
	)

	docs, err := m.FetchDocuments(context.Background(), "AAPL", from, to, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "vendor-b", docs[0].Provider)
}

func TestMultiNews_AllFailPropagatesFirstError(t *testing.T) {
	from, to := fetchWindow()
	first := boundary.New(boundary.SourceNews, boundary.CodeRateLimited, "vendor-a", "throttled")
	m := NewMultiNews(
		&stubNews{name: "vendor-a", err: first},
		&stubNews{name: "vendor-b", err: boundary.New(boundary.SourceNews, boundary.CodeTimeout, "vendor-b", "slow")},
	)

	_, err := m.FetchDocuments(context.Background(), "AAPL", from, to, 10)
	require.Error(t, err)
	be, ok := boundary.As(err)
	require.True(t, ok)
	assert.Equal(t, "vendor-a", be.Provider)
	assert.Equal(t, boundary.CodeRateLimited, be.Code)
}

func TestMultiNews_EmptySuccessIsSuccess(t *testing.T) {
	from, to := fetchWindow()
	m := NewMultiNews(
		&stubNews{name: "vendor-a", err: boundary.New(boundary.SourceNews, boundary.CodeProviderError, "vendor-a", "down")},
		&stubNews{name: "vendor-b"},
	)

	docs, err := m.FetchDocuments(context.Background(), "AAPL", from, to, 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
