// Package models defines data structures for the portfolio digest
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is one portfolio position as loaded from the holdings table.
// Constructed once per run and never mutated afterwards.
type Holding struct {
	Symbol         string          `json:"symbol"`          // as entered, e.g. "XNAS:AAPL"
	ResolvedSymbol string          `json:"resolved_symbol"` // provider-facing, e.g. "AAPL", "TEVA.TA"
	CostPrice      decimal.Decimal `json:"cost_price"`      // per unit, in Currency
	Quantity       decimal.Decimal `json:"quantity"`
	Currency       string          `json:"currency,omitempty"` // cost basis currency; empty means the instrument's trading currency
	Row            int             `json:"row"`                // 1-based row in the source table
}

// CostCurrency returns the currency the cost basis is recorded in,
// defaulting to the quote currency when the table carried none.
func (h Holding) CostCurrency(quoteCurrency string) string {
	if h.Currency == "" {
		return quoteCurrency
	}
	return h.Currency
}

// PositionResult is the derived P/L of one holding against one quote.
// Monetary fields are in the reporting currency unless noted.
type PositionResult struct {
	Holding Holding `json:"holding"`

	QuoteCurrency     string          `json:"quote_currency"`
	ReportingCurrency string          `json:"reporting_currency"`
	CurrentPrice      decimal.Decimal `json:"current_price"`  // quote currency
	PreviousClose     decimal.Decimal `json:"previous_close"` // quote currency
	CostPrice         decimal.Decimal `json:"cost_price"`     // quote currency, after any cost conversion
	PriceSource       PriceSource     `json:"price_source"`

	FXRate     decimal.Decimal `json:"fx_rate"` // quote currency -> reporting currency
	FXFallback bool            `json:"fx_fallback,omitempty"`

	CurrentPriceReporting decimal.Decimal `json:"current_price_reporting"`
	CostPriceReporting    decimal.Decimal `json:"cost_price_reporting"`

	DailyPL  decimal.Decimal `json:"daily_pl"`
	TotalPL  decimal.Decimal `json:"total_pl"`
	DailyPct decimal.Decimal `json:"daily_pct"`
	TotalPct decimal.Decimal `json:"total_pct"`

	// Set when the denominator was zero and the percentage was reported as 0.
	DailyPctUndefined bool `json:"daily_pct_undefined,omitempty"`
	TotalPctUndefined bool `json:"total_pct_undefined,omitempty"`

	Alerts []AlertKind `json:"alerts,omitempty"`
}

// HasAlert reports whether the position carries the given alert.
func (p PositionResult) HasAlert(kind AlertKind) bool {
	for _, a := range p.Alerts {
		if a == kind {
			return true
		}
	}
	return false
}

// UnavailablePosition is a holding excluded from aggregates for this run.
type UnavailablePosition struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// DetailRequest carries every input of the per-holding detail view.
// Nothing is read from ambient state.
type DetailRequest struct {
	Ticker  string
	Holding Holding
	Period  string // 1w, 1mo, 3mo, 6mo, 1y, 2y, 5y, all
}

// Detail is the rendered per-holding view.
type Detail struct {
	Ticker           string          `json:"ticker"`
	Period           string          `json:"period"`
	PeriodLabel      string          `json:"period_label"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	CurrentPrice     float64         `json:"current_price"`
	CurrentFromClose bool            `json:"current_from_close,omitempty"`
	// CostUnconverted is set when no rate converts the cost into the quote
	// currency; the change fields are then absent.
	CostUnconverted bool       `json:"cost_unconverted,omitempty"`
	FXFallback      bool       `json:"fx_fallback,omitempty"`
	ChangeAbs       *float64   `json:"change_abs,omitempty"`
	ChangePct       *float64   `json:"change_pct,omitempty"`
	Min             float64    `json:"min"`
	Max             float64    `json:"max"`
	Mean            float64    `json:"mean"`
	StdDev          float64    `json:"std_dev"`
	Bars            []PriceBar `json:"bars"`
	Recent          []PriceBar `json:"recent"`
	Indicators      Indicators `json:"indicators"`
	ChartPNG        []byte     `json:"-"`
	GeneratedAt     time.Time  `json:"generated_at"`
}

// TrendType classifies the price trend from moving averages
type TrendType string

const (
	TrendBullish TrendType = "bullish"
	TrendBearish TrendType = "bearish"
	TrendNeutral TrendType = "neutral"
)

// Indicators are technical readings over a detail period's closes.
// Averages the period is too short for are zero.
type Indicators struct {
	SMA20           float64   `json:"sma_20"`
	SMA50           float64   `json:"sma_50"`
	SMA200          float64   `json:"sma_200"`
	RSI14           float64   `json:"rsi_14"`
	RSIState        string    `json:"rsi_state"`
	Trend           TrendType `json:"trend"`
	DistanceToSMA50 float64   `json:"distance_to_sma_50"` // percent
}
