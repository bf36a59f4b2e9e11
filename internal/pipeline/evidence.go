package pipeline

import (
	"sort"

	"github.com/sells-group/equity-snapshot/internal/model"
)

// synthetic is satisfied by every evidence type.
type synthetic interface {
	IsSynthetic() bool
}

// preferReal drops fixture evidence once any real evidence exists for the
// kind; with only fixture items available they are kept as fallback.
func preferReal[T synthetic](items []T) []T {
	hasReal := false
	for _, item := range items {
		if !item.IsSynthetic() {
			hasReal = true
			break
		}
	}
	if !hasReal {
		return items
	}
	real := make([]T, 0, len(items))
	for _, item := range items {
		if !item.IsSynthetic() {
			real = append(real, item)
		}
	}
	return real
}

// reduceMetrics collapses duplicate metric names to the single latest-asOf
// point per name, sorts by asOf descending, and caps the count.
func reduceMetrics(points []model.MetricPoint, limit int) []model.MetricPoint {
	latest := make(map[string]model.MetricPoint, len(points))
	for _, point := range points {
		existing, seen := latest[point.Name]
		if !seen || point.AsOf.After(existing.AsOf) {
			latest[point.Name] = point
		}
	}

	reduced := make([]model.MetricPoint, 0, len(latest))
	for _, point := range latest {
		reduced = append(reduced, point)
	}
	sort.SliceStable(reduced, func(i, j int) bool {
		if reduced[i].AsOf.Equal(reduced[j].AsOf) {
			return reduced[i].Name < reduced[j].Name
		}
		return reduced[i].AsOf.After(reduced[j].AsOf)
	})
	if limit > 0 && len(reduced) > limit {
		reduced = reduced[:limit]
	}
	return reduced
}

// dedupeSources builds the snapshot citation list. Documents and filings
// key on provider|url|title, metrics on provider|title, so a source cited
// by several evidence items appears once.
func dedupeSources(docs []model.Document, metrics []model.MetricPoint, filings []model.Filing) []model.SourceRef {
	seen := make(map[string]bool)
	var sources []model.SourceRef

	add := func(key string, ref model.SourceRef) {
		if seen[key] {
			return
		}
		seen[key] = true
		sources = append(sources, ref)
	}

	for _, d := range docs {
		add(d.Provider+"|"+d.URL+"|"+d.Title, model.SourceRef{
			Kind: model.KindDocument, Provider: d.Provider, Title: d.Title, URL: d.URL,
		})
	}
	for _, m := range metrics {
		add(m.Provider+"|"+m.Name, model.SourceRef{
			Kind: model.KindMetric, Provider: m.Provider, Title: m.Name,
		})
	}
	for _, f := range filings {
		title := f.Title
		if title == "" {
			title = f.FormType
		}
		add(f.Provider+"|"+f.URL+"|"+title, model.SourceRef{
			Kind: model.KindFiling, Provider: f.Provider, Title: title, URL: f.URL,
		})
	}
	return sources
}
