package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/holdings"
	"github.com/bobmcallan/digest/internal/models"
)

// FormatDigest renders a report as markdown for terminal output
func FormatDigest(r *models.Report) string {
	var sb strings.Builder
	cur := r.ReportingCurrency

	sb.WriteString("# Daily Portfolio Digest\n\n")
	sb.WriteString(fmt.Sprintf("**As of:** %s\n", r.AsOf.Format("2006-01-02 15:04")))
	sb.WriteString(fmt.Sprintf("**Daily P/L:** %s\n", common.FormatSignedMoney(r.AggregateDailyPL, cur)))
	sb.WriteString(fmt.Sprintf("**Total P/L:** %s\n\n", common.FormatSignedMoney(r.AggregateTotalPL, cur)))

	if r.HasFXFallback() {
		sb.WriteString("> **FALLBACK FX RATE** in use: converted amounts are estimates, not live data.\n\n")
	}

	if len(r.Overview) > 0 {
		sb.WriteString("## Market Overview\n\n")
		sb.WriteString("| Index | Last | Daily % |\n")
		sb.WriteString("|-------|------|---------|\n")
		for _, o := range r.Overview {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", o.Name, o.Last.StringFixed(2), common.FormatSignedPct(o.DailyPct.InexactFloat64())))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Holdings\n\n")
	if len(r.Positions) == 0 {
		sb.WriteString("_No priced positions._\n\n")
	} else {
		sb.WriteString("| Symbol | Qty | Cost | Current | Daily P/L | Daily % | Total P/L | Total % | Alerts |\n")
		sb.WriteString("|--------|-----|------|---------|-----------|---------|-----------|---------|--------|\n")
		for _, p := range r.Positions {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
				p.Holding.ResolvedSymbol, p.Holding.Quantity.String(),
				common.FormatPrice(p.CostPrice), common.FormatPrice(p.CurrentPrice),
				common.FormatSignedMoney(p.DailyPL, cur), pctText(p.DailyPct, p.DailyPctUndefined),
				common.FormatSignedMoney(p.TotalPL, cur), pctText(p.TotalPct, p.TotalPctUndefined),
				formatAlerts(p.Alerts),
			))
		}
		sb.WriteString("\n")
	}

	if len(r.Unavailable) > 0 {
		sb.WriteString("## Data Unavailable\n\n")
		for _, u := range r.Unavailable {
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", u.Symbol, u.Reason))
		}
		sb.WriteString("\n")
	}

	writeMovers(&sb, "Market Gainers", r.Gainers)
	writeMovers(&sb, "Market Losers", r.Losers)

	for _, section := range narrativeSections {
		text := r.Narrative.Text(section)
		if text == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("## %s\n\n%s\n\n", narrativeTitles[section], text))
		sb.WriteString(fmt.Sprintf("_%s_\n\n", models.NarrativeDisclaimer))
	}

	if len(r.Notes) > 0 {
		sb.WriteString("## Notes\n\n")
		for _, n := range r.Notes {
			sb.WriteString(fmt.Sprintf("- %s\n", n.Message))
		}
	}

	return sb.String()
}

func writeMovers(sb *strings.Builder, title string, movers []models.MarketMover) {
	if len(movers) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("## %s\n\n", title))
	sb.WriteString("| Symbol | Name | Daily % | Market Cap |\n")
	sb.WriteString("|--------|------|---------|------------|\n")
	for _, m := range movers {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", m.Symbol, m.DisplayName, common.FormatSignedPct(m.DailyPct), moverCap(m)))
	}
	sb.WriteString("\n")
}

func formatAlerts(alerts []models.AlertKind) string {
	if len(alerts) == 0 {
		return "-"
	}
	parts := make([]string, len(alerts))
	for i, a := range alerts {
		parts[i] = strings.ReplaceAll(string(a), "_", " ")
	}
	return strings.Join(parts, ", ")
}

// FormatScan renders a standalone scan as markdown
func FormatScan(res *models.ScanResult) string {
	var sb strings.Builder
	sb.WriteString("# Market Scan\n\n")
	sb.WriteString(fmt.Sprintf("**Universe:** %d symbols, **candidates:** %d\n\n", res.UniverseSize, res.Candidates))
	if len(res.Gainers) == 0 && len(res.Losers) == 0 {
		sb.WriteString("_No movers above the configured floors._\n\n")
	}
	writeMovers(&sb, "Market Gainers", res.Gainers)
	writeMovers(&sb, "Market Losers", res.Losers)
	if len(res.Notes) > 0 {
		sb.WriteString("## Notes\n\n")
		for _, n := range res.Notes {
			sb.WriteString(fmt.Sprintf("- %s\n", n.Message))
		}
	}
	return sb.String()
}

// FormatHoldings renders a loaded holdings table as markdown
func FormatHoldings(res *holdings.Result) string {
	var sb strings.Builder
	sb.WriteString("# Holdings\n\n")
	sb.WriteString(fmt.Sprintf("Header found on row %d.\n\n", res.HeaderRow))
	sb.WriteString("| Row | Symbol | Resolved | Cost | Currency | Qty |\n")
	sb.WriteString("|-----|--------|----------|------|----------|-----|\n")
	for _, h := range res.Ordered() {
		currency := h.Currency
		if currency == "" {
			currency = "-"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s |\n",
			h.Row, h.Symbol, h.ResolvedSymbol, common.FormatPrice(h.CostPrice), currency, h.Quantity.String()))
	}
	sb.WriteString("\n")

	if len(res.Dropped) > 0 {
		sb.WriteString("## Dropped Rows\n\n")
		for _, e := range res.Dropped {
			sb.WriteString(fmt.Sprintf("- %s\n", e.Error()))
		}
	}
	return sb.String()
}

// FormatArchive renders archived report summaries as a markdown table
func FormatArchive(reports []models.ArchivedReport) string {
	var sb strings.Builder
	sb.WriteString("# Archived Reports\n\n")
	if len(reports) == 0 {
		sb.WriteString("No reports archived yet.\n")
		return sb.String()
	}
	sb.WriteString("| ID | As Of | Subject | Archived |\n")
	sb.WriteString("|----|-------|---------|----------|\n")
	for _, r := range reports {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			r.ID, r.AsOf.Format("2006-01-02 15:04"), r.Subject, r.ArchivedAt.Format("2006-01-02 15:04")))
	}
	return sb.String()
}

// RenderMarkdown styles markdown for an ANSI terminal
func RenderMarkdown(md string) (string, error) {
	return glamour.Render(md, "dark")
}

// RenderTerminal renders the markdown digest with ANSI styling
func RenderTerminal(r *models.Report) (string, error) {
	return RenderMarkdown(FormatDigest(r))
}
