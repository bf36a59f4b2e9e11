package edgar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tickerIndex = `{
	"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."},
	"1":{"cik_str":789019,"ticker":"MSFT","title":"MICROSOFT CORP"}
}`

const submissions = `{"filings":{"recent":{
	"accessionNumber":["0000320193-26-000077","0000320193-26-000052"],
	"form":["10-Q","8-K"],
	"filingDate":["2026-08-01","2026-07-15"],
	"primaryDocument":["aapl-20260630.htm",""],
	"primaryDocDescription":["Quarterly report",""]
}}}`

func newTestClient(t *testing.T) (Client, *int) {
	t.Helper()
	requests := new(int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requests++
		assert.Equal(t, "test-suite admin@example.com", r.Header.Get("User-Agent"))
		switch {
		case strings.HasSuffix(r.URL.Path, "company_tickers.json"):
			w.Write([]byte(tickerIndex))
		case strings.HasSuffix(r.URL.Path, "CIK0000320193.json"):
			w.Write([]byte(submissions))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-suite admin@example.com",
		WithDataBaseURL(srv.URL),
		WithFilesBaseURL(srv.URL))
	return c, requests
}

func TestRecentFilings(t *testing.T) {
	c, _ := newTestClient(t)

	filings, err := c.RecentFilings(context.Background(), "aapl", 10)
	require.NoError(t, err)
	require.Len(t, filings, 2)

	assert.Equal(t, "0000320193-26-000077", filings[0].AccessionNumber)
	assert.Equal(t, "10-Q", filings[0].FormType)
	assert.Equal(t, "Quarterly report", filings[0].Title)
	assert.Equal(t, "2026-08-01", filings[0].FiledAt.Format("2006-01-02"))
	assert.Contains(t, filings[0].URL, "320193/000032019326000077/aapl-20260630.htm")

	assert.Equal(t, "8-K", filings[1].FormType)
	assert.Empty(t, filings[1].URL, "no primary document, no URL")
}

func TestRecentFilingsTruncatedArrays(t *testing.T) {
	// The SEC payload carries parallel arrays keyed by filing index. A
	// truncated response with unequal lengths must degrade, not panic.
	truncated := `{"filings":{"recent":{
		"accessionNumber":["0000320193-26-000077","0000320193-26-000052","0000320193-26-000041"],
		"form":["10-Q"],
		"filingDate":["2026-08-01"],
		"primaryDocument":[],
		"primaryDocDescription":[]
	}}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "company_tickers.json"):
			w.Write([]byte(tickerIndex))
		case strings.HasSuffix(r.URL.Path, "CIK0000320193.json"):
			w.Write([]byte(truncated))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-suite admin@example.com",
		WithDataBaseURL(srv.URL),
		WithFilesBaseURL(srv.URL))

	filings, err := c.RecentFilings(context.Background(), "AAPL", 10)
	require.NoError(t, err)
	require.Len(t, filings, 3)

	assert.Equal(t, "10-Q", filings[0].FormType)
	assert.Equal(t, "2026-08-01", filings[0].FiledAt.Format("2006-01-02"))
	assert.Empty(t, filings[1].FormType)
	assert.True(t, filings[1].FiledAt.IsZero())
	assert.Equal(t, "0000320193-26-000041", filings[2].AccessionNumber)
}

func TestRecentFilingsLimit(t *testing.T) {
	c, _ := newTestClient(t)

	filings, err := c.RecentFilings(context.Background(), "AAPL", 1)
	require.NoError(t, err)
	assert.Len(t, filings, 1)
}

func TestTickerIndexCached(t *testing.T) {
	c, requests := newTestClient(t)

	_, err := c.RecentFilings(context.Background(), "AAPL", 1)
	require.NoError(t, err)
	first := *requests

	_, err = c.RecentFilings(context.Background(), "AAPL", 1)
	require.NoError(t, err)

	// Second call skips the ticker index fetch.
	assert.Equal(t, first+1, *requests)
}

func TestUnknownTicker(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.RecentFilings(context.Background(), "ZZZZ", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ticker")
}
