// Package yahoo provides a Yahoo Finance market data provider backed by go-yfinance
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/models"
)

// ProviderError wraps a failed Yahoo Finance call
type ProviderError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("yahoo %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("yahoo %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrNoData is returned when Yahoo answers without usable prices
var ErrNoData = errors.New("no data")

// backend is the raw Yahoo surface. The library is synchronous and has no
// context support, so cancellation is checked between calls.
type backend interface {
	download(symbols []string, period string) (map[string][]models.PriceBar, map[string]error, error)
	lastPrice(symbol string) (float64, error)
	info(symbol string) (*models.InstrumentInfo, error)
	history(symbol, period string) ([]models.PriceBar, error)
}

// Client implements the market data provider on Yahoo Finance
type Client struct {
	backend       backend
	historyPeriod string
	logger        *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHistoryPeriod sets the download window used for short batches
func WithHistoryPeriod(period string) ClientOption {
	return func(c *Client) {
		if period != "" {
			c.historyPeriod = period
		}
	}
}

func withBackend(b backend) ClientOption {
	return func(c *Client) {
		c.backend = b
	}
}

// NewClient creates a new Yahoo Finance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		backend:       yfBackend{},
		historyPeriod: "5d",
		logger:        common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the provider
func (c *Client) Name() string {
	return "yahoo"
}

// FetchBatchHistory downloads daily bars for all symbols in one request and
// keeps the trailing sessions per symbol.
func (c *Client) FetchBatchHistory(ctx context.Context, symbols []string, sessions int) (map[string][]models.PriceBar, error) {
	if len(symbols) == 0 {
		return map[string][]models.PriceBar{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	period := c.historyPeriod
	if sessions > 3 {
		period = periodForSessions(sessions)
	}

	data, symbolErrs, err := c.backend.download(symbols, period)
	if err != nil {
		return nil, &ProviderError{Op: "download", Err: err}
	}

	out := make(map[string][]models.PriceBar, len(data))
	for _, sym := range symbols {
		bars := validBars(data[sym])
		if len(bars) == 0 {
			if e, ok := symbolErrs[sym]; ok {
				c.logger.Debug().Err(e).Str("ticker", sym).Msg("Symbol missing from batch")
			}
			continue
		}
		if sessions > 0 && len(bars) > sessions {
			bars = bars[len(bars)-sessions:]
		}
		out[sym] = bars
	}
	return out, nil
}

// FetchLastPrice returns the regular market price, falling back to pre/post market
func (c *Client) FetchLastPrice(ctx context.Context, symbol string) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	price, err := c.backend.lastPrice(symbol)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return 0, false, nil
		}
		return 0, false, &ProviderError{Op: "quote", Symbol: symbol, Err: err}
	}
	return price, price > 0, nil
}

// FetchInfo returns name and market capitalization
func (c *Client) FetchInfo(ctx context.Context, symbol string) (*models.InstrumentInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := c.backend.info(symbol)
	if err != nil {
		return nil, &ProviderError{Op: "info", Symbol: symbol, Err: err}
	}
	return info, nil
}

// FetchFX returns the from->to rate using the "FROMTO=X" pair symbol
func (c *Client) FetchFX(ctx context.Context, from, to string) (float64, error) {
	pair := strings.ToUpper(from+to) + "=X"
	price, ok, err := c.FetchLastPrice(ctx, pair)
	if err == nil && ok {
		return price, nil
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	bars, herr := c.backend.history(pair, "5d")
	bars = validBars(bars)
	if herr != nil || len(bars) == 0 {
		if herr == nil {
			herr = ErrNoData
		}
		return 0, &ProviderError{Op: "fx", Symbol: pair, Err: herr}
	}
	return bars[len(bars)-1].Close, nil
}

// FetchHistory returns daily bars between from and to. Yahoo is queried by
// period, so the smallest period covering from is used and the result trimmed.
func (c *Client) FetchHistory(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars, err := c.backend.history(symbol, periodCovering(from, time.Now()))
	if err != nil {
		return nil, &ProviderError{Op: "history", Symbol: symbol, Err: err}
	}

	out := make([]models.PriceBar, 0, len(bars))
	for _, b := range validBars(bars) {
		if !from.IsZero() && b.Date.Before(from) {
			continue
		}
		if !to.IsZero() && b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// validBars drops bars without a close and sorts oldest first
func validBars(bars []models.PriceBar) []models.PriceBar {
	out := make([]models.PriceBar, 0, len(bars))
	for _, b := range bars {
		if b.Close > 0 {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func periodForSessions(sessions int) string {
	switch {
	case sessions <= 3:
		return "5d"
	case sessions <= 18:
		return "1mo"
	case sessions <= 60:
		return "3mo"
	case sessions <= 120:
		return "6mo"
	case sessions <= 250:
		return "1y"
	default:
		return "2y"
	}
}

func periodCovering(from, now time.Time) string {
	if from.IsZero() {
		return "max"
	}
	days := now.Sub(from).Hours() / 24
	switch {
	case days <= 5:
		return "5d"
	case days <= 31:
		return "1mo"
	case days <= 93:
		return "3mo"
	case days <= 186:
		return "6mo"
	case days <= 366:
		return "1y"
	case days <= 731:
		return "2y"
	case days <= 1827:
		return "5y"
	default:
		return "max"
	}
}

// Ensure Client implements MarketDataProvider
var _ interfaces.MarketDataProvider = (*Client)(nil)
