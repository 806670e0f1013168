package eodhd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/models"
)

// suffixToExchange maps canonical ".SUFFIX" exchange codes to EODHD exchange codes
var suffixToExchange = map[string]string{
	"":   "US",
	"TA": "TA",
	"L":  "LSE",
	"TO": "TO",
	"DE": "XETRA",
	"AX": "AU",
	"PA": "PA",
}

// exchangeToSuffix is the inverse of suffixToExchange, used for constituents
var exchangeToSuffix = map[string]string{
	"US":     "",
	"NASDAQ": "",
	"NYSE":   "",
	"TA":     ".TA",
	"LSE":    ".L",
	"TO":     ".TO",
	"XETRA":  ".DE",
	"AU":     ".AX",
	"PA":     ".PA",
}

// ToTicker converts a canonical symbol ("AAPL", "TEVA.TA", "^GSPC") to EODHD form
func ToTicker(symbol string) string {
	if strings.HasPrefix(symbol, "^") {
		return strings.TrimPrefix(symbol, "^") + ".INDX"
	}
	suffix := models.ExchangeSuffix(symbol)
	exchange, ok := suffixToExchange[suffix]
	if !ok {
		return symbol
	}
	base := symbol
	if suffix != "" {
		base = strings.TrimSuffix(symbol, "."+suffix)
		base = strings.TrimSuffix(base, "."+strings.ToLower(suffix))
	}
	return base + "." + exchange
}

// FromComponent converts an index constituent to a canonical symbol
func FromComponent(c Component) string {
	code := strings.ToUpper(strings.TrimSpace(c.Code))
	if suffix, ok := exchangeToSuffix[strings.ToUpper(c.Exchange)]; ok {
		return code + suffix
	}
	return code + "." + strings.ToUpper(c.Exchange)
}

// Name identifies the provider
func (c *Client) Name() string {
	return "eodhd"
}

// FetchBatchHistory returns trailing daily closes for symbols. Two sessions
// come from a single real-time request (close and previous close); longer
// windows fall back to one EOD request per symbol.
func (c *Client) FetchBatchHistory(ctx context.Context, symbols []string, sessions int) (map[string][]models.PriceBar, error) {
	if len(symbols) == 0 {
		return map[string][]models.PriceBar{}, nil
	}
	if sessions <= 2 {
		return c.batchFromRealTime(ctx, symbols)
	}

	out := make(map[string][]models.PriceBar, len(symbols))
	var lastErr error
	from := time.Now().AddDate(0, 0, -sessions*2-7)
	for _, sym := range symbols {
		bars, err := c.GetEOD(ctx, ToTicker(sym), interfaces.WithDateRange(from, time.Time{}), interfaces.WithLimit(sessions))
		if err != nil {
			lastErr = err
			c.logger.Debug().Err(err).Str("ticker", sym).Msg("EOD history unavailable")
			continue
		}
		if len(bars) > 0 {
			out[sym] = bars
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (c *Client) batchFromRealTime(ctx context.Context, symbols []string) (map[string][]models.PriceBar, error) {
	tickers := make([]string, len(symbols))
	bySymbol := make(map[string]string, len(symbols))
	for i, sym := range symbols {
		tickers[i] = ToTicker(sym)
		bySymbol[strings.ToUpper(tickers[i])] = sym
	}

	quotes, err := c.GetRealTime(ctx, tickers)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]models.PriceBar, len(quotes))
	for _, q := range quotes {
		sym, ok := bySymbol[strings.ToUpper(q.Code)]
		if !ok || q.Close <= 0 || q.PreviousClose <= 0 {
			continue
		}
		asOf := q.Time()
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}
		day := asOf.Truncate(24 * time.Hour)
		out[sym] = []models.PriceBar{
			{Date: previousWeekday(day), Close: float64(q.PreviousClose)},
			{Date: day, Open: float64(q.Open), High: float64(q.High), Low: float64(q.Low), Close: float64(q.Close), Volume: int64(q.Volume)},
		}
	}
	return out, nil
}

// FetchLastPrice returns the delayed real-time price
func (c *Client) FetchLastPrice(ctx context.Context, symbol string) (float64, bool, error) {
	quotes, err := c.GetRealTime(ctx, []string{ToTicker(symbol)})
	if err != nil {
		return 0, false, err
	}
	if len(quotes) == 0 || quotes[0].Close <= 0 {
		return 0, false, nil
	}
	return float64(quotes[0].Close), true, nil
}

// FetchInfo returns the instrument name, market cap and trading currency
func (c *Client) FetchInfo(ctx context.Context, symbol string) (*models.InstrumentInfo, error) {
	f, err := c.GetFundamentals(ctx, ToTicker(symbol))
	if err != nil {
		return nil, err
	}
	if f.General.Name == "" && f.Highlights.MarketCapitalization <= 0 {
		return nil, fmt.Errorf("no fundamentals for %s", symbol)
	}
	return &models.InstrumentInfo{
		Symbol:    symbol,
		Name:      f.General.Name,
		MarketCap: float64(f.Highlights.MarketCapitalization),
		Currency:  f.General.CurrencyCode,
	}, nil
}

// FetchFX returns the latest from->to rate from the FOREX exchange
func (c *Client) FetchFX(ctx context.Context, from, to string) (float64, error) {
	ticker := strings.ToUpper(from+to) + ".FOREX"
	quotes, err := c.GetRealTime(ctx, []string{ticker})
	if err != nil {
		return 0, err
	}
	if len(quotes) == 0 || quotes[0].Close <= 0 {
		return 0, fmt.Errorf("no rate for %s", ticker)
	}
	return float64(quotes[0].Close), nil
}

// FetchHistory returns daily bars between from and to
func (c *Client) FetchHistory(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	return c.GetEOD(ctx, ToTicker(symbol), interfaces.WithDateRange(from, to))
}

// FetchConstituents returns the canonical symbols of an index such as "GSPC.INDX"
func (c *Client) FetchConstituents(ctx context.Context, index string) ([]string, error) {
	if !strings.Contains(index, ".") {
		index += ".INDX"
	}
	f, err := c.GetFundamentals(ctx, index)
	if err != nil {
		return nil, err
	}
	if len(f.Components) == 0 {
		return nil, errors.New("index " + index + " has no components")
	}

	keys := make([]string, 0, len(f.Components))
	for k := range f.Components {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})

	symbols := make([]string, 0, len(keys))
	for _, k := range keys {
		if comp := f.Components[k]; comp.Code != "" {
			symbols = append(symbols, FromComponent(comp))
		}
	}
	return symbols, nil
}

func previousWeekday(day time.Time) time.Time {
	prev := day.AddDate(0, 0, -1)
	for prev.Weekday() == time.Saturday || prev.Weekday() == time.Sunday {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

// Ensure Client implements the provider contracts
var (
	_ interfaces.MarketDataProvider = (*Client)(nil)
	_ interfaces.UniverseProvider   = (*Client)(nil)
)
