package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bobmcallan/pulse/internal/models"
)

// formatPrice renders a price without trailing zeros, e.g. 72500 or 172.35.
func formatPrice(v float64, currency string) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
	if currency == "" {
		return s
	}
	return s + " " + currency
}

// formatReportList formats manifest entries as a markdown table
func formatReportList(summaries []models.ReportSummary) string {
	if len(summaries) == 0 {
		return "No reports published yet."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Reports (%d)\n\n", len(summaries)))
	sb.WriteString("| ID | Published | Market | Ticker | Price | Rating | Sentiment | Title |\n")
	sb.WriteString("|----|-----------|--------|--------|-------|--------|-----------|-------|\n")
	for _, s := range summaries {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %.0f | %s |\n",
			s.ID, s.Timestamp, s.Market, s.Ticker, formatPrice(s.Price, s.Currency),
			s.InvestmentRating, s.SentimentScore, s.Title))
	}
	return sb.String()
}

// formatReport formats a full report as markdown
func formatReport(r *models.AnalysisReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", r.Title))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", r.ID))
	sb.WriteString(fmt.Sprintf("**Published:** %s\n", r.Timestamp))
	sb.WriteString(fmt.Sprintf("**Ticker:** %s (%s)\n", r.Ticker, r.Market))
	sb.WriteString(fmt.Sprintf("**Price:** %s\n", formatPrice(r.Price, r.Currency)))
	sb.WriteString(fmt.Sprintf("**Target Price:** %s\n", formatPrice(r.TargetPrice, r.Currency)))
	sb.WriteString(fmt.Sprintf("**Rating:** %s\n", r.InvestmentRating))
	sb.WriteString(fmt.Sprintf("**Sentiment:** %.0f / 100\n", r.SentimentScore))
	sb.WriteString(fmt.Sprintf("**Fear & Greed:** %.0f / 100\n\n", r.FearGreedIndex))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(r.Summary + "\n\n")

	if len(r.Reasons) > 0 {
		sb.WriteString("## Key Reasons\n\n")
		for _, reason := range r.Reasons {
			sb.WriteString(fmt.Sprintf("- %s\n", reason))
		}
		sb.WriteString("\n")
	}

	ta := r.TechnicalAnalysis
	sb.WriteString("## Technical Analysis\n\n")
	sb.WriteString(fmt.Sprintf("**Trend:** %s | **Support:** %s | **Resistance:** %s\n\n",
		ta.Trend, formatPrice(ta.Support, ""), formatPrice(ta.Resistance, "")))
	if ta.Details != "" {
		sb.WriteString(ta.Details + "\n\n")
	}

	if r.MacroContext != "" {
		sb.WriteString("## Macro Context\n\n" + r.MacroContext + "\n\n")
	}
	if r.ValuationCheck != "" {
		sb.WriteString("## Valuation\n\n" + r.ValuationCheck + "\n\n")
	}

	sb.WriteString("## Article\n\n")
	sb.WriteString(r.FullContent + "\n\n")

	if len(r.Peers) > 0 {
		sb.WriteString("## Peers\n\n")
		sb.WriteString("| Name | Symbol | Price | Performance | Difference |\n")
		sb.WriteString("|------|--------|-------|-------------|------------|\n")
		for _, p := range r.Peers {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				p.Name, p.Symbol, formatPrice(p.Price, ""), p.Performance, p.DiffReason))
		}
		sb.WriteString("\n")
	}

	if len(r.FAQs) > 0 {
		sb.WriteString("## FAQ\n\n")
		for _, f := range r.FAQs {
			sb.WriteString(fmt.Sprintf("**Q: %s**\n%s\n\n", f.Question, f.Answer))
		}
	}

	if len(r.Sources) > 0 {
		sb.WriteString("## Sources\n\n")
		for _, s := range r.Sources {
			sb.WriteString(fmt.Sprintf("- [%s](%s)\n", s.Title, s.URI))
		}
	}

	return sb.String()
}

// formatStatus formats the generator status as markdown
func formatStatus(st models.RunStatus, market models.Market, exclusions []string) string {
	var sb strings.Builder

	sb.WriteString("# Generator Status\n\n")
	sb.WriteString(fmt.Sprintf("**State:** %s\n", st.State))
	if st.Running && st.Pass > 0 {
		sb.WriteString(fmt.Sprintf("**Pass:** %d\n", st.Pass))
	}
	sb.WriteString(fmt.Sprintf("**Current Market Window:** %s\n", market))
	sb.WriteString(fmt.Sprintf("**Runs:** %d (%d failed)\n", st.TotalRuns, st.FailedRuns))
	if st.LastReport != "" {
		sb.WriteString(fmt.Sprintf("**Last Report:** %s (%s)\n", st.LastReport, st.LastTicker))
	}
	if st.LastError != "" {
		sb.WriteString(fmt.Sprintf("**Last Failure:** %s\n", st.Message))
		sb.WriteString(fmt.Sprintf("**Error:** %s\n", st.LastError))
	}
	if len(exclusions) > 0 {
		sb.WriteString(fmt.Sprintf("**Excluded Next Run:** %s\n", strings.Join(exclusions, ", ")))
	}

	return sb.String()
}
