package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar is a single session close
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open,omitempty"`
	High   float64   `json:"high,omitempty"`
	Low    float64   `json:"low,omitempty"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume,omitempty"`
}

// PriceSource records where a quote's current price came from
type PriceSource string

const (
	PriceSourceLastTrade PriceSource = "last_trade"
	PriceSourceClose     PriceSource = "close"
)

// PriceQuote is a provider snapshot for one symbol, normalized to the
// major currency unit. Absent prices are invalid NullDecimals, never zero.
type PriceQuote struct {
	Symbol        string              `json:"symbol"`
	Currency      string              `json:"currency"`
	CurrentPrice  decimal.NullDecimal `json:"current_price"`
	PreviousClose decimal.NullDecimal `json:"previous_close"`
	Source        PriceSource         `json:"source,omitempty"`
	AsOf          time.Time           `json:"as_of"`
	Reason        string              `json:"reason,omitempty"` // why the quote is unavailable
}

// Available reports whether both prices are present
func (q PriceQuote) Available() bool {
	return q.CurrentPrice.Valid && q.PreviousClose.Valid
}

// UnavailableQuote builds a quote flagged with the given reason
func UnavailableQuote(symbol, reason string) PriceQuote {
	return PriceQuote{Symbol: symbol, Currency: MajorCurrency(CurrencyForSymbol(symbol)), Reason: reason}
}

// InstrumentInfo is basic instrument metadata
type InstrumentInfo struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	MarketCap float64 `json:"market_cap"`
	Currency  string  `json:"currency,omitempty"`
}

// FXRate converts one unit of From into To.
type FXRate struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	Available bool            `json:"available"`
	Fallback  bool            `json:"fallback"` // hardcoded estimate, not live data
	Source    string          `json:"source"`
	AsOf      time.Time       `json:"as_of"`
}

// Pair returns the rate's pair code, e.g. "USDILS"
func (r FXRate) Pair() string {
	return r.From + r.To
}

// FXTable holds rates from each currency into the reporting currency.
type FXTable struct {
	Reporting string
	Rates     map[string]FXRate // keyed by From
}

// NewFXTable creates an empty table for the reporting currency
func NewFXTable(reporting string) FXTable {
	return FXTable{Reporting: reporting, Rates: make(map[string]FXRate)}
}

// Add stores a rate keyed by its source currency
func (t FXTable) Add(rate FXRate) {
	t.Rates[rate.From] = rate
}

// ToReporting returns the rate from currency into the reporting currency.
// ok is false when no usable rate exists.
func (t FXTable) ToReporting(currency string) (rate decimal.Decimal, fallback bool, ok bool) {
	if currency == "" || currency == t.Reporting {
		return decimal.NewFromInt(1), false, true
	}
	r, found := t.Rates[currency]
	if !found || !r.Available || !r.Rate.IsPositive() {
		return decimal.Zero, false, false
	}
	return r.Rate, r.Fallback, true
}

// Cross returns the rate converting from into to, going through the reporting currency.
func (t FXTable) Cross(from, to string) (rate decimal.Decimal, fallback bool, ok bool) {
	if from == to {
		return decimal.NewFromInt(1), false, true
	}
	fromRate, fromFallback, ok := t.ToReporting(from)
	if !ok {
		return decimal.Zero, false, false
	}
	toRate, toFallback, ok := t.ToReporting(to)
	if !ok {
		return decimal.Zero, false, false
	}
	return fromRate.Div(toRate), fromFallback || toFallback, true
}

// Fallbacks lists the rates that were not live
func (t FXTable) Fallbacks() []FXRate {
	var out []FXRate
	for _, r := range t.Rates {
		if r.Fallback {
			out = append(out, r)
		}
	}
	return out
}

// suffixCurrency maps a resolved-symbol exchange suffix to the currency the
// exchange quotes in. Minor units (ILA, GBX) are quoted as such.
var suffixCurrency = map[string]string{
	"":   "USD",
	"TA": "ILA",
	"L":  "GBX",
	"TO": "CAD",
	"DE": "EUR",
	"PA": "EUR",
	"AX": "AUD",
}

// minorUnits maps a minor currency unit to its major currency and divisor.
var minorUnits = map[string]struct {
	major   string
	divisor int64
}{
	"ILA": {"ILS", 100},
	"GBX": {"GBP", 100},
}

// ExchangeSuffix returns the ".XX" suffix of a resolved symbol without the dot,
// or "" for US listings. Index and FX symbols return "".
func ExchangeSuffix(symbol string) string {
	if strings.HasPrefix(symbol, "^") || strings.HasSuffix(symbol, "=X") {
		return ""
	}
	if i := strings.LastIndex(symbol, "."); i > 0 && i < len(symbol)-1 {
		return strings.ToUpper(symbol[i+1:])
	}
	return ""
}

// CurrencyForSymbol returns the currency (possibly a minor unit) an
// instrument is quoted in, derived from its exchange suffix.
func CurrencyForSymbol(symbol string) string {
	if cur, ok := suffixCurrency[ExchangeSuffix(symbol)]; ok {
		return cur
	}
	return "USD"
}

// MajorCurrency maps a minor unit to its major currency; others pass through.
func MajorCurrency(currency string) string {
	if m, ok := minorUnits[strings.ToUpper(currency)]; ok {
		return m.major
	}
	return strings.ToUpper(currency)
}

// ToMajorUnit converts a price quoted in currency into the major unit.
// It returns the converted price and the major currency code.
func ToMajorUnit(price decimal.Decimal, currency string) (decimal.Decimal, string) {
	if m, ok := minorUnits[strings.ToUpper(currency)]; ok {
		return price.Div(decimal.NewFromInt(m.divisor)), m.major
	}
	return price, strings.ToUpper(currency)
}
