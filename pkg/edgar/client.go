package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultDataBaseURL  = "https://data.sec.gov"
	defaultFilesBaseURL = "https://www.sec.gov"

	archivesBaseURL = "https://www.sec.gov/Archives/edgar/data"
)

// APIError carries the HTTP status of a failed EDGAR call.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("edgar: status %d: %s", e.StatusCode, e.Body)
}

// Filing is one entry from a company's recent submissions.
type Filing struct {
	AccessionNumber string
	FormType        string
	Title           string
	URL             string
	FiledAt         time.Time
}

// Client defines the EDGAR operations the pipeline uses.
type Client interface {
	// RecentFilings returns the most recent filings for a ticker, newest
	// first, up to limit.
	RecentFilings(ctx context.Context, symbol string, limit int) ([]Filing, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithDataBaseURL overrides the submissions API base URL.
func WithDataBaseURL(u string) Option {
	return func(c *httpClient) {
		c.dataBaseURL = u
	}
}

// WithFilesBaseURL overrides the base URL for the ticker index file.
func WithFilesBaseURL(u string) Option {
	return func(c *httpClient) {
		c.filesBaseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	userAgent    string
	dataBaseURL  string
	filesBaseURL string
	http         *http.Client
	limiter      *rate.Limiter

	mu      sync.Mutex
	tickers map[string]int64 // upper-case ticker -> CIK
}

// NewClient creates an EDGAR client. The SEC requires a descriptive
// User-Agent with a contact address and enforces roughly ten requests per
// second.
func NewClient(userAgent string, opts ...Option) Client {
	c := &httpClient{
		userAgent:    userAgent,
		dataBaseURL:  defaultDataBaseURL,
		filesBaseURL: defaultFilesBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(10, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) RecentFilings(ctx context.Context, symbol string, limit int) ([]Filing, error) {
	cik, err := c.lookupCIK(ctx, symbol)
	if err != nil {
		return nil, err
	}

	// Submissions use the zero-padded 10-digit CIK.
	var submissions struct {
		Filings struct {
			Recent struct {
				AccessionNumber []string `json:"accessionNumber"`
				Form            []string `json:"form"`
				FilingDate      []string `json:"filingDate"`
				PrimaryDocument []string `json:"primaryDocument"`
				PrimaryDocDesc  []string `json:"primaryDocDescription"`
			} `json:"recent"`
		} `json:"filings"`
	}
	url := fmt.Sprintf("%s/submissions/CIK%010d.json", c.dataBaseURL, cik)
	if err := c.get(ctx, url, &submissions); err != nil {
		return nil, err
	}

	recent := submissions.Filings.Recent
	filings := make([]Filing, 0, limit)
	for i := range recent.AccessionNumber {
		if limit > 0 && len(filings) >= limit {
			break
		}
		// The parallel arrays in a submissions payload should be equal length,
		// but a truncated response must not panic.
		filing := Filing{AccessionNumber: recent.AccessionNumber[i]}
		if i < len(recent.Form) {
			filing.FormType = recent.Form[i]
		}
		if i < len(recent.PrimaryDocDesc) {
			filing.Title = recent.PrimaryDocDesc[i]
		}
		if i < len(recent.FilingDate) {
			if d, err := time.Parse("2006-01-02", recent.FilingDate[i]); err == nil {
				filing.FiledAt = d.UTC()
			}
		}
		if i < len(recent.PrimaryDocument) && recent.PrimaryDocument[i] != "" {
			accession := strings.ReplaceAll(filing.AccessionNumber, "-", "")
			filing.URL = fmt.Sprintf("%s/%d/%s/%s", archivesBaseURL, cik, accession, recent.PrimaryDocument[i])
		}
		filings = append(filings, filing)
	}
	return filings, nil
}

// lookupCIK resolves a ticker to its CIK via the SEC's company index,
// fetched once and cached for the client's lifetime.
func (c *httpClient) lookupCIK(ctx context.Context, symbol string) (int64, error) {
	c.mu.Lock()
	cached := c.tickers
	c.mu.Unlock()

	if cached == nil {
		var index map[string]struct {
			CIK    int64  `json:"cik_str"`
			Ticker string `json:"ticker"`
		}
		if err := c.get(ctx, c.filesBaseURL+"/files/company_tickers.json", &index); err != nil {
			return 0, err
		}
		cached = make(map[string]int64, len(index))
		for _, entry := range index {
			cached[strings.ToUpper(entry.Ticker)] = entry.CIK
		}
		c.mu.Lock()
		c.tickers = cached
		c.mu.Unlock()
	}

	cik, ok := cached[strings.ToUpper(symbol)]
	if !ok {
		return 0, eris.Errorf("edgar: unknown ticker %q", symbol)
	}
	return cik, nil
}

func (c *httpClient) get(ctx context.Context, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "edgar: rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "edgar: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "edgar: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "edgar: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "edgar: unmarshal response")
	}
	return nil
}
