package pipeline

import (
	"math"
	"time"

	"github.com/sells-group/equity-snapshot/internal/model"
)

// Per-kind score contributions, each capped so one plentiful kind cannot
// dominate the total.
const (
	docPoints     = 3.0
	docCap        = 30.0
	metricPoints  = 5.0
	metricCap     = 35.0
	filingPoints  = 5.0
	filingCap     = 25.0
	coverageBonus = 10.0
)

// coreMetricNames is the canonical metric set confidence rewards coverage
// of.
var coreMetricNames = []string{"price", "pe_ratio", "eps", "market_cap", "dividend_yield"}

// computeScore is the deterministic evidence-quality score, 0 to 100 with
// one decimal.
func computeScore(docs []model.Document, metrics []model.MetricPoint, filings []model.Filing) float64 {
	score := math.Min(float64(len(docs))*docPoints, docCap)
	score += math.Min(float64(len(metrics))*metricPoints, metricCap)
	score += math.Min(float64(len(filings))*filingPoints, filingCap)

	kinds := 0.0
	if len(docs) > 0 {
		kinds++
	}
	if len(metrics) > 0 {
		kinds++
	}
	if len(filings) > 0 {
		kinds++
	}
	score += kinds / 3.0 * coverageBonus

	return math.Round(clamp(score, 0, 100)*10) / 10
}

// computeConfidence is the deterministic confidence estimate, 0.10 to 0.90
// with two decimals. It rewards kind coverage, document-provider diversity,
// core-metric coverage and fresh evidence; missing kinds are penalized.
func computeConfidence(docs []model.Document, metrics []model.MetricPoint, filings []model.Filing, now time.Time) float64 {
	confidence := 0.25

	if len(docs) > 0 {
		confidence += 0.12
	}
	if len(metrics) > 0 {
		confidence += 0.12
	}
	if len(filings) > 0 {
		confidence += 0.12
	}

	providers := make(map[string]bool)
	for _, d := range docs {
		providers[d.Provider] = true
	}
	confidence += math.Min(0.04*float64(len(providers)), 0.08)

	core := make(map[string]bool, len(coreMetricNames))
	for _, name := range coreMetricNames {
		core[name] = true
	}
	covered := 0
	seen := make(map[string]bool)
	for _, m := range metrics {
		if core[m.Name] && !seen[m.Name] {
			seen[m.Name] = true
			covered++
		}
	}
	confidence += 0.15 * float64(covered) / float64(len(coreMetricNames))

	confidence += recencyAdjustment(freshestEvidence(docs, metrics, filings), now)

	if len(docs) == 0 {
		confidence -= 0.06
	}
	if len(metrics) == 0 {
		confidence -= 0.08
	}
	if len(filings) == 0 {
		confidence -= 0.04
	}

	return math.Round(clamp(confidence, 0.10, 0.90)*100) / 100
}

func recencyAdjustment(freshest time.Time, now time.Time) float64 {
	if freshest.IsZero() {
		return -0.07
	}
	age := now.Sub(freshest)
	switch {
	case age <= 48*time.Hour:
		return 0.08
	case age <= 7*24*time.Hour:
		return 0.05
	case age <= 30*24*time.Hour:
		return 0.02
	default:
		return -0.07
	}
}

func freshestEvidence(docs []model.Document, metrics []model.MetricPoint, filings []model.Filing) time.Time {
	var freshest time.Time
	for _, d := range docs {
		if d.PublishedAt.After(freshest) {
			freshest = d.PublishedAt
		}
	}
	for _, m := range metrics {
		if m.AsOf.After(freshest) {
			freshest = m.AsOf
		}
	}
	for _, f := range filings {
		if f.FiledAt.After(freshest) {
			freshest = f.FiledAt
		}
	}
	return freshest
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
