// Package marketdata is the market data gateway: it wraps a provider with
// batching, a short-lived response cache, minor-unit normalization and
// unavailable-sentinel semantics. No call is retried.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/digest/internal/cache"
	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/metrics"
	"github.com/bobmcallan/digest/internal/models"
)

// Config tunes the gateway
type Config struct {
	BatchSize       int
	PreferLastPrice bool
	FXFallback      map[string]float64 // "USDILS" -> 3.7
	CacheTTL        time.Duration
}

// Service implements MarketDataGateway
type Service struct {
	provider interfaces.MarketDataProvider
	cache    interfaces.Cache
	metrics  *metrics.Metrics
	cfg      Config
	logger   *common.Logger
	now      func() time.Time
}

// NewService creates a gateway. cache and m may be nil.
func NewService(provider interfaces.MarketDataProvider, c interfaces.Cache, m *metrics.Metrics, cfg Config, logger *common.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		provider: provider,
		cache:    c,
		metrics:  m,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Provider returns the wrapped provider's name
func (s *Service) Provider() string {
	return s.provider.Name()
}

// GetQuotes prices symbols in batches of the configured size, preferring
// the last traded price when configured
func (s *Service) GetQuotes(ctx context.Context, symbols []string) (map[string]models.PriceQuote, []error) {
	return s.quotes(ctx, symbols, s.cfg.BatchSize, s.cfg.PreferLastPrice)
}

// GetCloseQuotes prices symbols from the two most recent closes only, in
// batches of batchSize. Used by the scanner where a per-symbol call is too costly.
func (s *Service) GetCloseQuotes(ctx context.Context, symbols []string, batchSize int) (map[string]models.PriceQuote, []error) {
	if batchSize <= 0 {
		batchSize = s.cfg.BatchSize
	}
	return s.quotes(ctx, symbols, batchSize, false)
}

func (s *Service) quotes(ctx context.Context, symbols []string, batchSize int, preferLast bool) (map[string]models.PriceQuote, []error) {
	symbols = dedupe(symbols)
	out := make(map[string]models.PriceQuote, len(symbols))
	var errs []error

	for start := 0; start < len(symbols); start += batchSize {
		end := start + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		history, misses, err := s.batchHistory(ctx, batch)
		if err != nil {
			bfe := &BatchFetchError{Symbols: misses, Err: err}
			errs = append(errs, bfe)
			s.logger.Warn().Err(err).Int("batch", start/batchSize).Int("count", len(misses)).
				Msg("Batch fetch failed, marking fetched symbols unavailable (continuing)")
			for _, sym := range misses {
				out[sym] = models.UnavailableQuote(sym, "batch fetch failed")
			}
		}

		for _, sym := range batch {
			if _, failed := out[sym]; failed {
				continue
			}
			out[sym] = s.buildQuote(ctx, sym, history[sym], preferLast)
		}
	}
	return out, errs
}

// batchHistory returns two sessions per symbol, serving what it can from the
// cache and fetching the rest in one provider call. On error the returned
// history still holds the cache hits and misses lists the symbols that failed.
func (s *Service) batchHistory(ctx context.Context, batch []string) (map[string][]models.PriceBar, []string, error) {
	history := make(map[string][]models.PriceBar, len(batch))
	var misses []string
	for _, sym := range batch {
		var bars []models.PriceBar
		if s.cacheGet(ctx, s.key("bars2", sym), &bars) {
			history[sym] = bars
			continue
		}
		misses = append(misses, sym)
	}
	if len(misses) == 0 {
		return history, nil, nil
	}

	start := time.Now()
	fetched, err := s.provider.FetchBatchHistory(ctx, misses, 2)
	if err == nil && maxObservations(fetched) < 2 {
		err = errInsufficientHistory
	}
	s.metrics.ObserveProvider(s.provider.Name(), "batch_history", start, err)
	if err != nil {
		return history, misses, err
	}

	for sym, bars := range fetched {
		if len(bars) >= 2 {
			s.cacheSet(ctx, s.key("bars2", sym), bars)
		}
		history[sym] = bars
	}
	return history, misses, nil
}

func (s *Service) buildQuote(ctx context.Context, sym string, bars []models.PriceBar, preferLast bool) models.PriceQuote {
	if len(bars) < 2 {
		reason := "no data returned by provider"
		if len(bars) == 1 {
			reason = "only one session returned"
		}
		return models.UnavailableQuote(sym, reason)
	}

	last := bars[len(bars)-1]
	prev := bars[len(bars)-2]
	currency := models.CurrencyForSymbol(sym)

	current := decimal.NewFromFloat(last.Close)
	source := models.PriceSourceClose
	if preferLast {
		if price, ok := s.rawLastPrice(ctx, sym); ok {
			current = decimal.NewFromFloat(price)
			source = models.PriceSourceLastTrade
		}
	}

	current, major := models.ToMajorUnit(current, currency)
	previous, _ := models.ToMajorUnit(decimal.NewFromFloat(prev.Close), currency)

	return models.PriceQuote{
		Symbol:        sym,
		Currency:      major,
		CurrentPrice:  decimal.NewNullDecimal(current),
		PreviousClose: decimal.NewNullDecimal(previous),
		Source:        source,
		AsOf:          last.Date,
	}
}

// GetLastPrice returns the normalized last traded price
func (s *Service) GetLastPrice(ctx context.Context, symbol string) (float64, bool) {
	price, ok := s.rawLastPrice(ctx, symbol)
	if !ok {
		return 0, false
	}
	return price * majorFactor(symbol), true
}

func (s *Service) rawLastPrice(ctx context.Context, symbol string) (float64, bool) {
	var cached float64
	if s.cacheGet(ctx, s.key("last", symbol), &cached) {
		return cached, true
	}

	start := time.Now()
	price, ok, err := s.provider.FetchLastPrice(ctx, symbol)
	s.metrics.ObserveProvider(s.provider.Name(), "last_price", start, err)
	if err != nil {
		s.logger.Debug().Err(err).Str("ticker", symbol).Msg("Last price unavailable, using close")
		return 0, false
	}
	if !ok || price <= 0 {
		return 0, false
	}
	s.cacheSet(ctx, s.key("last", symbol), price)
	return price, true
}

// GetFXRate returns the from->to rate. When the live quote is unavailable
// the configured fallback is returned with Fallback set; without a fallback
// the rate is marked unavailable.
func (s *Service) GetFXRate(ctx context.Context, from, to string) models.FXRate {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	now := s.now()
	if from == to {
		return models.FXRate{From: from, To: to, Rate: decimal.NewFromInt(1), Available: true, Source: "identity", AsOf: now}
	}

	var cached models.FXRate
	if s.cacheGet(ctx, s.key("fx", from+to), &cached) {
		return cached
	}

	start := time.Now()
	rate, err := s.provider.FetchFX(ctx, from, to)
	if err == nil && rate <= 0 {
		err = fmt.Errorf("non-positive rate %v", rate)
	}
	s.metrics.ObserveProvider(s.provider.Name(), "fx", start, err)

	if err == nil {
		live := models.FXRate{From: from, To: to, Rate: decimal.NewFromFloat(rate), Available: true, Source: s.provider.Name(), AsOf: now}
		s.cacheSet(ctx, s.key("fx", from+to), live)
		return live
	}

	fallback, ok := s.fallbackRate(from, to)
	if !ok {
		s.logger.Warn().Err(err).Str("pair", from+to).Msg("FX rate unavailable and no fallback configured")
		return models.FXRate{From: from, To: to, Source: "none", AsOf: now}
	}

	s.logger.Warn().Err(err).Str("pair", from+to).Str("fallback", fallback.String()).
		Msg("FX rate unavailable, using fallback estimate")
	return models.FXRate{From: from, To: to, Rate: fallback, Available: true, Fallback: true, Source: "fallback", AsOf: now}
}

func (s *Service) fallbackRate(from, to string) (decimal.Decimal, bool) {
	if v, ok := s.cfg.FXFallback[from+to]; ok && v > 0 {
		return decimal.NewFromFloat(v), true
	}
	if v, ok := s.cfg.FXFallback[to+from]; ok && v > 0 {
		return decimal.NewFromInt(1).Div(decimal.NewFromFloat(v)), true
	}
	return decimal.Zero, false
}

// GetInfo returns instrument metadata
func (s *Service) GetInfo(ctx context.Context, symbol string) (*models.InstrumentInfo, error) {
	var cached models.InstrumentInfo
	if s.cacheGet(ctx, s.key("info", symbol), &cached) {
		return &cached, nil
	}

	start := time.Now()
	info, err := s.provider.FetchInfo(ctx, symbol)
	s.metrics.ObserveProvider(s.provider.Name(), "info", start, err)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%s: %w", symbol, ErrQuoteUnavailable)
	}
	s.cacheSet(ctx, s.key("info", symbol), info)
	return info, nil
}

func (s *Service) key(parts ...string) string {
	return cache.Key(append([]string{s.provider.Name()}, parts...)...)
}

func (s *Service) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("Cache read failed")
		found = false
	}
	s.metrics.CacheLookup(found)
	return found
}

func (s *Service) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// majorFactor converts a price in the symbol's quote unit into its major unit
func majorFactor(symbol string) float64 {
	f, _ := models.ToMajorUnit(decimal.NewFromInt(1), models.CurrencyForSymbol(symbol))
	return f.InexactFloat64()
}

func maxObservations(history map[string][]models.PriceBar) int {
	n := 0
	for _, bars := range history {
		if len(bars) > n {
			n = len(bars)
		}
	}
	return n
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

var _ interfaces.MarketDataGateway = (*Service)(nil)
