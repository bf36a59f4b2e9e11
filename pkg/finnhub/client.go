package finnhub

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	sdk "github.com/Finnhub-Stock-API/finnhub-go/v2"
	"github.com/rotisserie/eris"
)

const dateLayout = "2006-01-02"

// APIError carries the HTTP status of a failed Finnhub call so callers can
// classify it.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("finnhub: status %d: %s", e.StatusCode, e.Body)
}

// NewsItem is one company news article.
type NewsItem struct {
	ID          string
	Headline    string
	Summary     string
	Source      string
	URL         string
	PublishedAt time.Time
}

// Quote is a real-time price quote.
type Quote struct {
	Current       float64
	High          float64
	Low           float64
	Open          float64
	PreviousClose float64
	Timestamp     time.Time
}

// Client defines the Finnhub operations the pipeline uses.
type Client interface {
	CompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]NewsItem, error)
	Quote(ctx context.Context, symbol string) (*Quote, error)
	BasicFinancials(ctx context.Context, symbol string) (map[string]float64, error)
}

type apiClient struct {
	api *sdk.DefaultApiService
}

// NewClient creates a Finnhub client authenticated with the given API key.
func NewClient(apiKey string) Client {
	cfg := sdk.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	return &apiClient{api: sdk.NewAPIClient(cfg).DefaultApi}
}

func (c *apiClient) CompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]NewsItem, error) {
	res, httpRes, err := c.api.CompanyNews(ctx).
		Symbol(symbol).
		From(from.Format(dateLayout)).
		To(to.Format(dateLayout)).
		Execute()
	if err != nil {
		return nil, wrapAPIError(httpRes, err, "company news")
	}

	items := make([]NewsItem, 0, len(res))
	for _, news := range res {
		item := NewsItem{}
		if news.Id != nil {
			item.ID = strconv.FormatInt(*news.Id, 10)
		}
		if news.Headline != nil {
			item.Headline = *news.Headline
		}
		if news.Summary != nil {
			item.Summary = *news.Summary
		}
		if news.Source != nil {
			item.Source = *news.Source
		}
		if news.Url != nil {
			item.URL = *news.Url
		}
		if news.Datetime != nil {
			item.PublishedAt = time.Unix(*news.Datetime, 0).UTC()
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *apiClient) Quote(ctx context.Context, symbol string) (*Quote, error) {
	res, httpRes, err := c.api.Quote(ctx).Symbol(symbol).Execute()
	if err != nil {
		return nil, wrapAPIError(httpRes, err, "quote")
	}

	quote := &Quote{}
	if res.C != nil {
		quote.Current = float64(*res.C)
	}
	if res.H != nil {
		quote.High = float64(*res.H)
	}
	if res.L != nil {
		quote.Low = float64(*res.L)
	}
	if res.O != nil {
		quote.Open = float64(*res.O)
	}
	if res.Pc != nil {
		quote.PreviousClose = float64(*res.Pc)
	}
	if res.T != nil {
		quote.Timestamp = time.Unix(*res.T, 0).UTC()
	}
	return quote, nil
}

func (c *apiClient) BasicFinancials(ctx context.Context, symbol string) (map[string]float64, error) {
	res, httpRes, err := c.api.CompanyBasicFinancials(ctx).Symbol(symbol).Metric("all").Execute()
	if err != nil {
		return nil, wrapAPIError(httpRes, err, "basic financials")
	}

	metrics := make(map[string]float64)
	if res.Metric != nil {
		for name, value := range *res.Metric {
			if v, ok := value.(float64); ok {
				metrics[name] = v
			}
		}
	}
	return metrics, nil
}

func wrapAPIError(res *http.Response, err error, operation string) error {
	if res != nil {
		return &APIError{StatusCode: res.StatusCode, Body: err.Error()}
	}
	return eris.Wrapf(err, "finnhub: %s", operation)
}
