package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sells-group/equity-snapshot/internal/boundary"
	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/pkg/alphavantage"
)

const alphaVantageProviderName = "alphavantage"

// AlphaVantageNews adapts the NEWS_SENTIMENT feed to the news port.
type AlphaVantageNews struct {
	client alphavantage.Client
}

func NewAlphaVantageNews(client alphavantage.Client) *AlphaVantageNews {
	return &AlphaVantageNews{client: client}
}

func (p *AlphaVantageNews) Name() string { return alphaVantageProviderName }

func (p *AlphaVantageNews) FetchDocuments(ctx context.Context, symbol string, from, to time.Time, limit int) ([]model.Document, error) {
	items, err := p.client.NewsSentiment(ctx, symbol, limit)
	if err != nil {
		return nil, classifyAlphaVantageError(boundary.SourceNews, err)
	}

	docs := make([]model.Document, 0, len(items))
	for _, item := range items {
		if item.PublishedAt.Before(from) || item.PublishedAt.After(to) {
			continue
		}
		docs = append(docs, model.Document{
			Symbol:         symbol,
			Provider:       alphaVantageProviderName,
			ProviderItemID: item.URL,
			Title:          item.Title,
			URL:            item.URL,
			Body:           item.Summary,
			PublishedAt:    item.PublishedAt,
		})
	}
	return docs, nil
}

// AlphaVantageMetrics adapts company overview and quote data to the metrics
// port.
type AlphaVantageMetrics struct {
	client alphavantage.Client
}

func NewAlphaVantageMetrics(client alphavantage.Client) *AlphaVantageMetrics {
	return &AlphaVantageMetrics{client: client}
}

func (p *AlphaVantageMetrics) Name() string { return alphaVantageProviderName }

func (p *AlphaVantageMetrics) FetchMetrics(ctx context.Context, symbol string, asOf time.Time) (*MetricsResult, error) {
	var points []model.MetricPoint
	var notes []string

	overview, err := p.client.CompanyOverview(ctx, symbol)
	if err != nil {
		if hard := hardMetricsFailure(classifyAlphaVantageError(boundary.SourceMetrics, err)); hard != nil {
			return nil, hard
		}
		notes = append(notes, fmt.Sprintf("overview unavailable: %v", err))
	} else {
		fundamentalsAsOf := overview.AsOf
		if fundamentalsAsOf.IsZero() {
			fundamentalsAsOf = asOf
		}
		for name, value := range map[string]float64{
			"market_cap":     overview.MarketCap,
			"pe_ratio":       overview.PERatio,
			"eps":            overview.EPS,
			"dividend_yield": overview.DividendYield,
			"beta":           overview.Beta,
		} {
			if value == 0 {
				continue
			}
			points = append(points, model.MetricPoint{
				Symbol: symbol, Provider: alphaVantageProviderName,
				Name: name, Value: value, AsOf: fundamentalsAsOf,
			})
		}
	}

	quote, err := p.client.Quote(ctx, symbol)
	if err != nil {
		if hard := hardMetricsFailure(classifyAlphaVantageError(boundary.SourceMetrics, err)); hard != nil {
			return nil, hard
		}
		notes = append(notes, fmt.Sprintf("quote unavailable: %v", err))
	} else if quote.Price != 0 {
		quoteAsOf := quote.TradingDay
		if quoteAsOf.IsZero() {
			quoteAsOf = asOf
		}
		points = append(points, model.MetricPoint{
			Symbol: symbol, Provider: alphaVantageProviderName,
			Name: "price", Value: quote.Price, Unit: "usd", AsOf: quoteAsOf,
		})
	}

	status := "ok"
	if len(notes) > 0 {
		status = model.DegradedStatus
	}
	return &MetricsResult{
		Points: points,
		Diagnostics: model.MetricsDiagnostics{
			Provider: alphaVantageProviderName,
			Status:   status,
			Notes:    notes,
		},
	}, nil
}

func classifyAlphaVantageError(source boundary.Source, err error) *boundary.Error {
	if errors.Is(err, alphavantage.ErrThrottled) {
		return boundary.Wrap(err, source, boundary.CodeRateLimited, alphaVantageProviderName, "rate limit note in response")
	}
	var apiErr *alphavantage.APIError
	if errors.As(err, &apiErr) {
		be := boundary.FromHTTPStatus(source, alphaVantageProviderName, apiErr.StatusCode, apiErr.Body)
		be.Cause = err
		return be
	}
	return classifyTransportError(source, alphaVantageProviderName, err)
}
