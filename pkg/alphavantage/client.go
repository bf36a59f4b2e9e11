package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://www.alphavantage.co"

	timestampLayout = "20060102T150405"
)

// ErrThrottled is returned when Alpha Vantage responds with a rate-limit
// note. The API signals throttling inside a 200 body, not with a 429.
var ErrThrottled = eris.New("alphavantage: rate limit note in response")

// APIError carries the HTTP status of a failed call.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alphavantage: status %d: %s", e.StatusCode, e.Body)
}

// NewsItem is one article from the NEWS_SENTIMENT feed.
type NewsItem struct {
	Title       string
	URL         string
	Summary     string
	Source      string
	PublishedAt time.Time
}

// Overview holds the numeric company fundamentals the pipeline consumes.
type Overview struct {
	MarketCap     float64
	PERatio       float64
	EPS           float64
	DividendYield float64
	Beta          float64
	AsOf          time.Time
}

// GlobalQuote is the latest traded price for a symbol.
type GlobalQuote struct {
	Price         float64
	Change        float64
	ChangePercent float64
	Volume        float64
	TradingDay    time.Time
}

// Client defines the Alpha Vantage operations the pipeline uses.
type Client interface {
	NewsSentiment(ctx context.Context, symbol string, limit int) ([]NewsItem, error)
	CompanyOverview(ctx context.Context, symbol string) (*Overview, error)
	Quote(ctx context.Context, symbol string) (*GlobalQuote, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an Alpha Vantage client. The default limiter matches the
// free tier, five requests per minute.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(12*time.Second), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) NewsSentiment(ctx context.Context, symbol string, limit int) ([]NewsItem, error) {
	params := url.Values{
		"function": {"NEWS_SENTIMENT"},
		"tickers":  {symbol},
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var result struct {
		Feed []struct {
			Title         string `json:"title"`
			URL           string `json:"url"`
			TimePublished string `json:"time_published"`
			Summary       string `json:"summary"`
			Source        string `json:"source"`
		} `json:"feed"`
	}
	if err := c.get(ctx, params, &result); err != nil {
		return nil, err
	}

	items := make([]NewsItem, 0, len(result.Feed))
	for _, entry := range result.Feed {
		item := NewsItem{
			Title:   entry.Title,
			URL:     entry.URL,
			Summary: entry.Summary,
			Source:  entry.Source,
		}
		if ts, err := time.Parse(timestampLayout, entry.TimePublished); err == nil {
			item.PublishedAt = ts.UTC()
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *httpClient) CompanyOverview(ctx context.Context, symbol string) (*Overview, error) {
	params := url.Values{
		"function": {"OVERVIEW"},
		"symbol":   {symbol},
	}

	var result struct {
		MarketCapitalization string `json:"MarketCapitalization"`
		PERatio              string `json:"PERatio"`
		EPS                  string `json:"EPS"`
		DividendYield        string `json:"DividendYield"`
		Beta                 string `json:"Beta"`
		LatestQuarter        string `json:"LatestQuarter"`
	}
	if err := c.get(ctx, params, &result); err != nil {
		return nil, err
	}

	overview := &Overview{
		MarketCap:     parseNumber(result.MarketCapitalization),
		PERatio:       parseNumber(result.PERatio),
		EPS:           parseNumber(result.EPS),
		DividendYield: parseNumber(result.DividendYield),
		Beta:          parseNumber(result.Beta),
	}
	if d, err := time.Parse("2006-01-02", result.LatestQuarter); err == nil {
		overview.AsOf = d.UTC()
	}
	return overview, nil
}

func (c *httpClient) Quote(ctx context.Context, symbol string) (*GlobalQuote, error) {
	params := url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
	}

	var result struct {
		GlobalQuote struct {
			Price         string `json:"05. price"`
			Volume        string `json:"06. volume"`
			TradingDay    string `json:"07. latest trading day"`
			Change        string `json:"09. change"`
			ChangePercent string `json:"10. change percent"`
		} `json:"Global Quote"`
	}
	if err := c.get(ctx, params, &result); err != nil {
		return nil, err
	}

	quote := &GlobalQuote{
		Price:  parseNumber(result.GlobalQuote.Price),
		Volume: parseNumber(result.GlobalQuote.Volume),
		Change: parseNumber(result.GlobalQuote.Change),
	}
	if pct := result.GlobalQuote.ChangePercent; pct != "" {
		quote.ChangePercent = parseNumber(pct[:len(pct)-1])
	}
	if d, err := time.Parse("2006-01-02", result.GlobalQuote.TradingDay); err == nil {
		quote.TradingDay = d.UTC()
	}
	return quote, nil
}

func (c *httpClient) get(ctx context.Context, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "alphavantage: rate limiter")
	}

	params.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "alphavantage: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "alphavantage: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "alphavantage: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	// Throttling and request errors arrive as 200 bodies with sentinel keys.
	var sentinel struct {
		Note         string `json:"Note"`
		Information  string `json:"Information"`
		ErrorMessage string `json:"Error Message"`
	}
	if err := json.Unmarshal(body, &sentinel); err == nil {
		if sentinel.Note != "" || sentinel.Information != "" {
			return ErrThrottled
		}
		if sentinel.ErrorMessage != "" {
			return eris.Errorf("alphavantage: %s", sentinel.ErrorMessage)
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "alphavantage: unmarshal response")
	}
	return nil
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
