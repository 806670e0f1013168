package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertKind classifies a per-position alert
type AlertKind string

const (
	AlertTotalDrop AlertKind = "total_drop"
	AlertDailyDrop AlertKind = "daily_drop"
	AlertDailyGain AlertKind = "daily_gain"
)

// AlertThresholds are percentage thresholds; drops are negative numbers.
type AlertThresholds struct {
	TotalDropPct float64 `toml:"total_drop_pct"`
	DailyDropPct float64 `toml:"daily_drop_pct"`
	DailyGainPct float64 `toml:"daily_gain_pct"`
}

// NoteKind classifies a partial failure surfaced in the report
type NoteKind string

const (
	NoteQuoteUnavailable     NoteKind = "quote_unavailable"
	NoteBatchFailed          NoteKind = "batch_failed"
	NoteFXFallback           NoteKind = "fx_fallback"
	NoteFXUnavailable        NoteKind = "fx_unavailable"
	NoteUniverseUnavailable  NoteKind = "universe_unavailable"
	NoteNarrativeUnavailable NoteKind = "narrative_unavailable"
	NoteRowDropped           NoteKind = "row_dropped"
)

// Note is an explicit, user-visible record of a partial failure
type Note struct {
	Kind    NoteKind `json:"kind"`
	Subject string   `json:"subject,omitempty"`
	Message string   `json:"message"`
}

// OverviewRow is one benchmark line in the market overview table
type OverviewRow struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Last          decimal.Decimal `json:"last"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	DailyPct      decimal.Decimal `json:"daily_pct"`
}

// NarrativeSection identifies one narrative call
type NarrativeSection string

const (
	NarrativeAnalysis NarrativeSection = "analysis"
	NarrativeInsights NarrativeSection = "insights"
)

// NarrativeDisclaimer is rendered with every narrative section
const NarrativeDisclaimer = "AI-generated commentary based only on the figures in this report. " +
	"It is not investment advice and contains no buy or sell recommendations."

// Narrative holds opaque display text keyed by section
type Narrative struct {
	Sections   map[NarrativeSection]string `json:"sections"`
	Disclaimer string                      `json:"disclaimer"`
}

// Text returns the text for a section, or "" when absent
func (n *Narrative) Text(section NarrativeSection) string {
	if n == nil {
		return ""
	}
	return n.Sections[section]
}

// Report is the aggregate output of one run
type Report struct {
	ID                string                `json:"id"`
	AsOf              time.Time             `json:"as_of"`
	ReportingCurrency string                `json:"reporting_currency"`
	Positions         []PositionResult      `json:"positions"`
	Unavailable       []UnavailablePosition `json:"unavailable,omitempty"`
	AggregateDailyPL  decimal.Decimal       `json:"aggregate_daily_pl"`
	AggregateTotalPL  decimal.Decimal       `json:"aggregate_total_pl"`
	Gainers           []MarketMover         `json:"gainers"`
	Losers            []MarketMover         `json:"losers"`
	Overview          []OverviewRow         `json:"overview,omitempty"`
	FXRates           []FXRate              `json:"fx_rates,omitempty"`
	Thresholds        AlertThresholds       `json:"thresholds"`
	Narrative         *Narrative            `json:"narrative,omitempty"`
	Notes             []Note                `json:"notes,omitempty"`
}

// PositionsWithAlert returns the positions carrying the given alert, in report order
func (r *Report) PositionsWithAlert(kind AlertKind) []PositionResult {
	var out []PositionResult
	for _, p := range r.Positions {
		if p.HasAlert(kind) {
			out = append(out, p)
		}
	}
	return out
}

// HasFXFallback reports whether any rate used was a fallback estimate
func (r *Report) HasFXFallback() bool {
	for _, fx := range r.FXRates {
		if fx.Fallback {
			return true
		}
	}
	return false
}

// IsEmpty reports whether there is nothing worth delivering
func (r *Report) IsEmpty() bool {
	return len(r.Positions) == 0 && len(r.Gainers) == 0 && len(r.Losers) == 0
}

// Findings is the structured numeric input handed to the narrative
// collaborator. It never contains raw provider payloads.
type Findings struct {
	AsOf              string             `json:"as_of"`
	ReportingCurrency string             `json:"reporting_currency"`
	AggregateDailyPL  float64            `json:"aggregate_daily_pl"`
	AggregateTotalPL  float64            `json:"aggregate_total_pl"`
	Positions         []FindingPosition  `json:"positions"`
	Unavailable       []string           `json:"unavailable,omitempty"`
	Gainers           []FindingMover     `json:"market_gainers"`
	Losers            []FindingMover     `json:"market_losers"`
	Overview          []FindingBenchmark `json:"market_overview,omitempty"`
}

// FindingPosition is one position in Findings
type FindingPosition struct {
	Symbol   string   `json:"symbol"`
	Quantity float64  `json:"quantity"`
	DailyPL  float64  `json:"daily_pl"`
	DailyPct float64  `json:"daily_pct"`
	TotalPL  float64  `json:"total_pl"`
	TotalPct float64  `json:"total_pct"`
	Alerts   []string `json:"alerts,omitempty"`
}

// FindingMover is one scanned mover in Findings
type FindingMover struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	DailyPct  float64 `json:"daily_pct"`
	MarketCap float64 `json:"market_cap"`
}

// FindingBenchmark is one overview row in Findings
type FindingBenchmark struct {
	Symbol   string  `json:"symbol"`
	DailyPct float64 `json:"daily_pct"`
}

// Message is a rendered report ready for delivery
type Message struct {
	ReportID string
	AsOf     time.Time
	Subject  string
	HTML     string
	Filename string
}
