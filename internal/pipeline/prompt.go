package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/equity-snapshot/internal/model"
)

// buildSummaryPrompt formats the normalization request: the freshest
// documents, newest first, for a bounded neutral summary.
func buildSummaryPrompt(symbol string, docs []model.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following recent news evidence for %s.\n\n", symbol)
	for i, d := range docs {
		fmt.Fprintf(&b, "%d. [%s] %s (%s)\n", i+1, d.Provider, d.Title, d.PublishedAt.Format("2006-01-02"))
		if d.Body != "" {
			fmt.Fprintf(&b, "   %s\n", d.Body)
		}
	}
	return b.String()
}

// buildSynthesisPrompt assembles the grounding contract: a metrics
// diagnostics line, labeled evidence lines, and explicit citation
// instructions. Labels are N# for news, M# for metrics, F# for filings.
func buildSynthesisPrompt(payload model.JobPayload, horizon, runSummary string, docs []model.Document, metrics []model.MetricPoint, filings []model.Filing) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Produce a %s research snapshot for %s.\n\n", horizon, payload.Symbol)
	if payload.Identity != nil {
		fmt.Fprintf(&b, "Company: %s (resolved via %s, confidence %.2f)\n\n",
			payload.Identity.CompanyName, payload.Identity.ResolutionSource, payload.Identity.Confidence)
	}

	b.WriteString(metricsDiagnosticsLine(payload.MetricsDiagnostics))
	b.WriteString("\n")

	if runSummary != "" {
		fmt.Fprintf(&b, "Prior summary of the news evidence (advisory):\n%s\n\n", runSummary)
	}

	b.WriteString("EVIDENCE\n")
	if len(docs) == 0 {
		b.WriteString("No news documents available.\n")
	}
	for i, d := range docs {
		fmt.Fprintf(&b, "N%d [%s, %s]: %s\n", i+1, d.Provider, d.PublishedAt.Format("2006-01-02"), d.Title)
	}
	if len(metrics) == 0 {
		b.WriteString("No market metrics available.\n")
	}
	for i, m := range metrics {
		unit := ""
		if m.Unit != "" {
			unit = " " + m.Unit
		}
		fmt.Fprintf(&b, "M%d [%s, %s]: %s = %.4g%s\n", i+1, m.Provider, m.AsOf.Format("2006-01-02"), m.Name, m.Value, unit)
	}
	if len(filings) == 0 {
		b.WriteString("No regulatory filings available.\n")
	}
	for i, f := range filings {
		title := f.Title
		if title == "" {
			title = f.FormType
		}
		fmt.Fprintf(&b, "F%d [%s, %s]: %s %s\n", i+1, f.Provider, f.FiledAt.Format("2006-01-02"), f.FormType, title)
	}

	b.WriteString(`
INSTRUCTIONS
- Ground every claim in the evidence above, citing labels inline, e.g. [N1] or [M2].
- Where evidence for a standard element of the thesis is missing, state that it is missing; never invent support.
- Respond with a single JSON object and nothing else:
{"thesis": "...", "risks": ["..."], "catalysts": ["..."], "valuation_view": "..."}
`)

	return b.String()
}

func metricsDiagnosticsLine(d *model.MetricsDiagnostics) string {
	if d == nil {
		return "Metrics fetch: no diagnostics recorded.\n"
	}
	line := fmt.Sprintf("Metrics fetch: provider=%s status=%s", d.Provider, d.Status)
	if len(d.Notes) > 0 {
		line += " notes=" + strings.Join(d.Notes, "; ")
	}
	return line + "\n"
}
