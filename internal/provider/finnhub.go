package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sells-group/equity-snapshot/internal/boundary"
	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/pkg/finnhub"
)

const finnhubProviderName = "finnhub"

// coreFinancialMetrics is the subset of Finnhub basic financials kept as
// metric points, mapped to the pipeline's canonical metric names.
var coreFinancialMetrics = map[string]string{
	"peTTM":                        "pe_ratio",
	"epsTTM":                       "eps",
	"marketCapitalization":         "market_cap",
	"beta":                         "beta",
	"dividendYieldIndicatedAnnual": "dividend_yield",
}

// FinnhubNews adapts the Finnhub company-news endpoint to the news port.
type FinnhubNews struct {
	client finnhub.Client
}

func NewFinnhubNews(client finnhub.Client) *FinnhubNews {
	return &FinnhubNews{client: client}
}

func (p *FinnhubNews) Name() string { return finnhubProviderName }

func (p *FinnhubNews) FetchDocuments(ctx context.Context, symbol string, from, to time.Time, limit int) ([]model.Document, error) {
	items, err := p.client.CompanyNews(ctx, symbol, from, to)
	if err != nil {
		return nil, classifyFinnhubError(boundary.SourceNews, err)
	}

	docs := make([]model.Document, 0, len(items))
	for _, item := range items {
		if limit > 0 && len(docs) >= limit {
			break
		}
		docs = append(docs, model.Document{
			Symbol:         symbol,
			Provider:       finnhubProviderName,
			ProviderItemID: item.ID,
			Title:          item.Headline,
			URL:            item.URL,
			Body:           item.Summary,
			PublishedAt:    item.PublishedAt,
		})
	}
	return docs, nil
}

// FinnhubMetrics adapts Finnhub quotes and basic financials to the metrics
// port.
type FinnhubMetrics struct {
	client finnhub.Client
}

func NewFinnhubMetrics(client finnhub.Client) *FinnhubMetrics {
	return &FinnhubMetrics{client: client}
}

func (p *FinnhubMetrics) Name() string { return finnhubProviderName }

func (p *FinnhubMetrics) FetchMetrics(ctx context.Context, symbol string, asOf time.Time) (*MetricsResult, error) {
	var points []model.MetricPoint
	var notes []string

	quote, err := p.client.Quote(ctx, symbol)
	if err != nil {
		if hard := hardMetricsFailure(classifyFinnhubError(boundary.SourceMetrics, err)); hard != nil {
			return nil, hard
		}
		notes = append(notes, fmt.Sprintf("quote unavailable: %v", err))
	} else if quote.Current != 0 {
		ts := quote.Timestamp
		if ts.IsZero() {
			ts = asOf
		}
		points = append(points,
			model.MetricPoint{Symbol: symbol, Provider: finnhubProviderName, Name: "price", Value: quote.Current, Unit: "usd", AsOf: ts},
			model.MetricPoint{Symbol: symbol, Provider: finnhubProviderName, Name: "prev_close", Value: quote.PreviousClose, Unit: "usd", AsOf: ts},
		)
	}

	financials, err := p.client.BasicFinancials(ctx, symbol)
	if err != nil {
		if hard := hardMetricsFailure(classifyFinnhubError(boundary.SourceMetrics, err)); hard != nil {
			return nil, hard
		}
		notes = append(notes, fmt.Sprintf("financials unavailable: %v", err))
	} else {
		for raw, canonical := range coreFinancialMetrics {
			if v, ok := financials[raw]; ok {
				points = append(points, model.MetricPoint{
					Symbol: symbol, Provider: finnhubProviderName,
					Name: canonical, Value: v, AsOf: asOf,
				})
			}
		}
	}

	status := "ok"
	if len(notes) > 0 {
		status = model.DegradedStatus
	}
	return &MetricsResult{
		Points: points,
		Diagnostics: model.MetricsDiagnostics{
			Provider: finnhubProviderName,
			Status:   status,
			Notes:    notes,
		},
	}, nil
}

// hardMetricsFailure returns the error when it must abort the metrics fetch.
// Only auth and config failures qualify; everything else degrades.
func hardMetricsFailure(err *boundary.Error) *boundary.Error {
	switch err.Code {
	case boundary.CodeAuthInvalid, boundary.CodeConfigInvalid:
		return err
	}
	return nil
}

func classifyFinnhubError(source boundary.Source, err error) *boundary.Error {
	var apiErr *finnhub.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode < 400 {
			return boundary.Wrap(err, source, boundary.CodeMalformedResponse, finnhubProviderName, apiErr.Body)
		}
		be := boundary.FromHTTPStatus(source, finnhubProviderName, apiErr.StatusCode, apiErr.Body)
		be.Cause = err
		return be
	}
	return classifyTransportError(source, finnhubProviderName, err)
}

// classifyTransportError handles the non-HTTP failure modes shared by every
// provider adapter: context timeouts and connection-level errors.
func classifyTransportError(source boundary.Source, provider string, err error) *boundary.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return boundary.Wrap(err, source, boundary.CodeTimeout, provider, "request timed out")
	}
	return boundary.Wrap(err, source, boundary.CodeTransportError, provider, err.Error())
}
