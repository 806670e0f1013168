package report

import (
	"bytes"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/models"
)

//go:embed templates/report.html
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html").
	Funcs(template.FuncMap{"dict": dict}).
	ParseFS(templateFS, "templates/report.html"))

func dict(pairs ...interface{}) (map[string]interface{}, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict needs key/value pairs")
	}
	m := make(map[string]interface{}, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}

type pageView struct {
	Title       string
	AsOf        string
	ID          string
	Reporting   string
	FXFallback  bool
	FXRates     []fxView
	Overview    []overviewView
	DailyPL     string
	TotalPL     string
	DailyClass  string
	TotalClass  string
	Chart       template.URL
	Positions   []positionView
	Alerts      []alertView
	Unavailable []models.UnavailablePosition
	Gainers     []moverView
	Losers      []moverView
	Narrative   []narrativeView
	Disclaimer  string
	Notes       []models.Note
}

type fxView struct {
	Pair      string
	Rate      string
	Source    string
	Available bool
	Fallback  bool
}

type overviewView struct {
	Symbol, Name, Last, Previous, Pct, Class string
}

type positionView struct {
	Symbol     string
	Quantity   string
	Cost       string
	Current    string
	DailyPL    string
	DailyPct   string
	TotalPL    string
	TotalPct   string
	DailyClass string
	TotalClass string
	FromClose  bool
	Fallback   bool
}

type alertView struct {
	Title string
	Rows  []positionView
}

type moverView struct {
	Symbol, Name, Last, Pct, Cap, Class string
}

type narrativeView struct {
	Title       string
	HTML        template.HTML
	Available   bool
	Placeholder string
}

var narrativeTitles = map[models.NarrativeSection]string{
	models.NarrativeAnalysis: "AI Analysis",
	models.NarrativeInsights: "AI Insights",
}

// Render produces the self-contained HTML message for a report
func (s *Service) Render(report *models.Report) (*models.Message, error) {
	if report == nil {
		return nil, errors.New("nil report")
	}

	view := s.buildView(report)
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	filename := "daily_stock_report.html"
	if s.cfg.FilenameLayout != "" {
		filename = report.AsOf.Format(s.cfg.FilenameLayout)
	}
	return &models.Message{
		ReportID: report.ID,
		AsOf:     report.AsOf,
		Subject:  view.Title,
		HTML:     buf.String(),
		Filename: filename,
	}, nil
}

func (s *Service) buildView(r *models.Report) pageView {
	prefix := s.cfg.SubjectPrefix
	if prefix == "" {
		prefix = "Daily Portfolio Digest"
	}
	cur := r.ReportingCurrency

	v := pageView{
		Title:       fmt.Sprintf("%s - %s", prefix, r.AsOf.Format("2006-01-02")),
		AsOf:        r.AsOf.Format("2006-01-02 15:04 MST"),
		ID:          r.ID,
		Reporting:   cur,
		FXFallback:  r.HasFXFallback(),
		DailyPL:     common.FormatSignedMoney(r.AggregateDailyPL, cur),
		TotalPL:     common.FormatSignedMoney(r.AggregateTotalPL, cur),
		DailyClass:  class(r.AggregateDailyPL),
		TotalClass:  class(r.AggregateTotalPL),
		Unavailable: r.Unavailable,
		Gainers:     moverViews(r.Gainers),
		Losers:      moverViews(r.Losers),
		Disclaimer:  models.NarrativeDisclaimer,
		Notes:       r.Notes,
	}

	for _, fx := range r.FXRates {
		v.FXRates = append(v.FXRates, fxView{
			Pair:      fx.From + "/" + fx.To,
			Rate:      fx.Rate.StringFixed(4),
			Source:    fx.Source,
			Available: fx.Available,
			Fallback:  fx.Fallback,
		})
	}

	for _, o := range r.Overview {
		v.Overview = append(v.Overview, overviewView{
			Symbol:   o.Symbol,
			Name:     o.Name,
			Last:     o.Last.StringFixed(2),
			Previous: o.PreviousClose.StringFixed(2),
			Pct:      common.FormatSignedPct(o.DailyPct.InexactFloat64()),
			Class:    class(o.DailyPct),
		})
	}

	for _, p := range r.Positions {
		v.Positions = append(v.Positions, positionRow(p))
	}

	for _, a := range []struct {
		kind  models.AlertKind
		title string
	}{
		{models.AlertTotalDrop, fmt.Sprintf("Alert: Total Loss at or Beyond %.1f%%", r.Thresholds.TotalDropPct)},
		{models.AlertDailyDrop, fmt.Sprintf("Alert: Daily Drop at or Beyond %.1f%%", r.Thresholds.DailyDropPct)},
		{models.AlertDailyGain, fmt.Sprintf("Highlight: Daily Gain of %.1f%% or More", r.Thresholds.DailyGainPct)},
	} {
		flagged := r.PositionsWithAlert(a.kind)
		if len(flagged) == 0 {
			continue
		}
		section := alertView{Title: a.title}
		for _, p := range flagged {
			section.Rows = append(section.Rows, positionRow(p))
		}
		v.Alerts = append(v.Alerts, section)
	}

	if png, err := RenderPLChart(r.Positions); err == nil {
		v.Chart = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
	} else if len(r.Positions) > 0 {
		s.logger.Debug().Err(err).Msg("P/L chart skipped")
	}

	for _, section := range narrativeSections {
		nv := narrativeView{Title: narrativeTitles[section]}
		text := r.Narrative.Text(section)
		if text == "" {
			nv.Placeholder = "AI commentary is unavailable for this report."
		} else if html, err := markdownToHTML(text); err == nil {
			nv.HTML = html
			nv.Available = true
		} else {
			nv.Placeholder = "AI commentary could not be displayed."
		}
		v.Narrative = append(v.Narrative, nv)
	}

	return v
}

func positionRow(p models.PositionResult) positionView {
	cur := p.ReportingCurrency
	return positionView{
		Symbol:     p.Holding.ResolvedSymbol,
		Quantity:   p.Holding.Quantity.String(),
		Cost:       common.FormatPrice(p.CostPrice) + " " + p.QuoteCurrency,
		Current:    common.FormatPrice(p.CurrentPrice) + " " + p.QuoteCurrency,
		DailyPL:    common.FormatSignedMoney(p.DailyPL, cur),
		DailyPct:   pctText(p.DailyPct, p.DailyPctUndefined),
		TotalPL:    common.FormatSignedMoney(p.TotalPL, cur),
		TotalPct:   pctText(p.TotalPct, p.TotalPctUndefined),
		DailyClass: class(p.DailyPL),
		TotalClass: class(p.TotalPL),
		FromClose:  p.PriceSource == models.PriceSourceClose,
		Fallback:   p.FXFallback,
	}
}

func moverViews(movers []models.MarketMover) []moverView {
	out := make([]moverView, 0, len(movers))
	for _, m := range movers {
		out = append(out, moverView{
			Symbol: m.Symbol,
			Name:   m.DisplayName,
			Last:   fmt.Sprintf("%.2f", m.LastClose),
			Pct:    common.FormatSignedPct(m.DailyPct),
			Cap:    moverCap(m),
			Class:  class(decimal.NewFromFloat(m.DailyPct)),
		})
	}
	return out
}

// moverCap marks capitalizations converted with a fallback rate
func moverCap(m models.MarketMover) string {
	if m.FXFallback {
		return common.FormatMarketCap(m.MarketCap) + " (est.)"
	}
	return common.FormatMarketCap(m.MarketCap)
}

func pctText(pct decimal.Decimal, undefined bool) string {
	if undefined {
		return "n/a"
	}
	return common.FormatSignedPct(pct.InexactFloat64())
}

func class(v decimal.Decimal) string {
	if v.IsNegative() {
		return "down"
	}
	return "up"
}

// markdownToHTML converts narrative markdown. Raw HTML in the input is not
// passed through.
func markdownToHTML(md string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return template.HTML(strings.TrimSpace(buf.String())), nil
}
