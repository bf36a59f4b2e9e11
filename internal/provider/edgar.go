package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/equity-snapshot/internal/boundary"
	"github.com/sells-group/equity-snapshot/internal/model"
	"github.com/sells-group/equity-snapshot/pkg/edgar"
)

const edgarProviderName = "edgar"

// EdgarFilings adapts the SEC submissions feed to the filings port.
type EdgarFilings struct {
	client edgar.Client
}

func NewEdgarFilings(client edgar.Client) *EdgarFilings {
	return &EdgarFilings{client: client}
}

func (p *EdgarFilings) Name() string { return edgarProviderName }

func (p *EdgarFilings) FetchFilings(ctx context.Context, symbol string, from, to time.Time, limit int) ([]model.Filing, error) {
	// The submissions feed is newest-first; over-fetch so the date window
	// filter still fills the limit.
	fetchLimit := limit * 4
	if fetchLimit <= 0 {
		fetchLimit = 40
	}
	items, err := p.client.RecentFilings(ctx, symbol, fetchLimit)
	if err != nil {
		return nil, classifyEdgarError(err)
	}

	filings := make([]model.Filing, 0, limit)
	for _, item := range items {
		if limit > 0 && len(filings) >= limit {
			break
		}
		if item.FiledAt.Before(from) || item.FiledAt.After(to) {
			continue
		}
		filings = append(filings, model.Filing{
			Symbol:          symbol,
			Provider:        edgarProviderName,
			AccessionNumber: item.AccessionNumber,
			FormType:        item.FormType,
			Title:           item.Title,
			URL:             item.URL,
			FiledAt:         item.FiledAt,
		})
	}
	return filings, nil
}

func classifyEdgarError(err error) *boundary.Error {
	var apiErr *edgar.APIError
	if errors.As(err, &apiErr) {
		be := boundary.FromHTTPStatus(boundary.SourceFilings, edgarProviderName, apiErr.StatusCode, apiErr.Body)
		be.Cause = err
		return be
	}
	return classifyTransportError(boundary.SourceFilings, edgarProviderName, err)
}
