package provider

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/equity-snapshot/internal/model"
)

// MultiNews fans a fetch out to every configured news provider concurrently
// and merges the results. Single-provider failures are logged and dropped;
// the aggregate fails only when every provider fails, propagating the first
// provider's error.
type MultiNews struct {
	providers []NewsProvider
}

func NewMultiNews(providers ...NewsProvider) *MultiNews {
	return &MultiNews{providers: providers}
}

func (m *MultiNews) Name() string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, "+")
}

func (m *MultiNews) FetchDocuments(ctx context.Context, symbol string, from, to time.Time, limit int) ([]model.Document, error) {
	if len(m.providers) == 0 {
		return nil, nil
	}

	// Index-aligned result and failure slots; each goroutine writes only its
	// own index, and failures never short-circuit the join.
	results := make([][]model.Document, len(m.providers))
	failures := make([]error, len(m.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range m.providers {
		g.Go(func() error {
			docs, err := p.FetchDocuments(gctx, symbol, from, to, limit)
			if err != nil {
				failures[i] = err
				zap.L().Warn("provider: news fetch failed",
					zap.String("provider", p.Name()),
					zap.String("symbol", symbol),
					zap.Error(err))
				return nil
			}
			results[i] = docs
			return nil
		})
	}
	_ = g.Wait()

	succeeded := false
	var collected []model.Document
	for i := range m.providers {
		if failures[i] != nil {
			continue
		}
		succeeded = true
		collected = append(collected, results[i]...)
	}
	if !succeeded {
		for _, err := range failures {
			if err != nil {
				return nil, err
			}
		}
	}

	return mergeDocuments(collected, limit), nil
}

// mergeDocuments dedupes by normalized URL keeping the latest-published item
// on collision. Items without a URL are kept unconditionally. Output is
// sorted by publish time descending and truncated to limit.
func mergeDocuments(docs []model.Document, limit int) []model.Document {
	byURL := make(map[string]model.Document)
	var noURL []model.Document

	for _, doc := range docs {
		key := normalizeURL(doc.URL)
		if key == "" {
			noURL = append(noURL, doc)
			continue
		}
		existing, seen := byURL[key]
		if !seen || doc.PublishedAt.After(existing.PublishedAt) {
			byURL[key] = doc
		}
	}

	merged := make([]model.Document, 0, len(byURL)+len(noURL))
	for _, doc := range byURL {
		merged = append(merged, doc)
	}
	merged = append(merged, noURL...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PublishedAt.After(merged[j].PublishedAt)
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func normalizeURL(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

var _ NewsProvider = (*MultiNews)(nil)
