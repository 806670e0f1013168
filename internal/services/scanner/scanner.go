// Package scanner finds large daily movers in a broader universe than the
// portfolio. Failures are contained per universe, per batch and per symbol.
package scanner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/models"
)

// Service implements ScannerService
type Service struct {
	gateway   interfaces.MarketDataGateway
	universes interfaces.UniverseProvider
	defaults  models.ScanOptions
	logger    *common.Logger
}

// NewService creates a scanner. universes may be nil, in which case only
// file and list universes resolve.
func NewService(gateway interfaces.MarketDataGateway, universes interfaces.UniverseProvider, defaults models.ScanOptions, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		gateway:   gateway,
		universes: universes,
		defaults:  defaults,
		logger:    logger,
	}
}

// OptionsFromConfig maps the scanner config section onto scan options. The
// capitalization floor is expressed in the reporting currency.
func OptionsFromConfig(cfg *common.Config) models.ScanOptions {
	return models.ScanOptions{
		Universes:           cfg.Scanner.Universes,
		BatchSize:           cfg.Scanner.BatchSize,
		CapitalizationFloor: cfg.Scanner.CapitalizationFloor,
		MovementFloor:       cfg.Scanner.MovementFloor,
		TopN:                cfg.Scanner.TopN,
		ReportingCurrency:   cfg.FX.ReportingCurrency,
	}
}

type candidate struct {
	symbol    string
	pct       float64
	lastClose float64
}

// Scan resolves the universe, prices it from two-day closes, keeps symbols
// whose absolute move reaches the movement floor, then fetches metadata for
// those only and keeps the ones above the capitalization floor.
func (s *Service) Scan(ctx context.Context, opts models.ScanOptions) (*models.ScanResult, error) {
	opts = s.withDefaults(opts)
	start := time.Now()
	result := &models.ScanResult{Gainers: []models.MarketMover{}, Losers: []models.MarketMover{}}

	universe := s.resolveUniverse(ctx, opts, result)
	result.UniverseSize = len(universe)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(universe) == 0 {
		s.logger.Warn().Msg("Scanner universe is empty, no movers reported")
		return result, nil
	}

	quotes, batchErrs := s.gateway.GetCloseQuotes(ctx, universe, opts.BatchSize)
	result.FailedBatches = len(batchErrs)
	for _, err := range batchErrs {
		result.Notes = append(result.Notes, models.Note{
			Kind:    models.NoteBatchFailed,
			Subject: "scanner",
			Message: err.Error(),
		})
	}

	var candidates []candidate
	for _, sym := range universe {
		q, ok := quotes[sym]
		if !ok || !q.Available() || q.PreviousClose.Decimal.IsZero() {
			continue
		}
		prev := q.PreviousClose.Decimal.InexactFloat64()
		last := q.CurrentPrice.Decimal.InexactFloat64()
		pct := (last - prev) / prev * 100
		if math.Abs(pct) >= opts.MovementFloor {
			candidates = append(candidates, candidate{symbol: sym, pct: pct, lastClose: last})
		}
	}
	result.Candidates = len(candidates)
	s.logger.Info().Int("universe", len(universe)).Int("candidates", len(candidates)).
		Int("failed_batches", result.FailedBatches).Msg("Scanner movement filter applied")

	rates := newRateBook(s.gateway, opts.ReportingCurrency, result)
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := s.gateway.GetInfo(ctx, c.symbol)
		if err != nil || info == nil {
			s.logger.Debug().Err(err).Str("ticker", c.symbol).Msg("Metadata unavailable, excluding mover")
			continue
		}
		capital, fallback, ok := rates.marketCap(ctx, c.symbol, info)
		if !ok {
			s.logger.Debug().Str("ticker", c.symbol).Str("currency", info.Currency).
				Msg("No FX rate for market cap, excluding mover")
			continue
		}
		if capital <= opts.CapitalizationFloor {
			continue
		}
		name := info.Name
		if name == "" {
			name = c.symbol
		}
		mover := models.MarketMover{
			Symbol:      c.symbol,
			DisplayName: name,
			DailyPct:    c.pct,
			MarketCap:   capital,
			LastClose:   c.lastClose,
			FXFallback:  fallback,
		}
		if c.pct > 0 {
			result.Gainers = append(result.Gainers, mover)
		} else if c.pct < 0 {
			result.Losers = append(result.Losers, mover)
		}
	}

	Rank(result, opts.TopN)

	s.logger.Info().Int("gainers", len(result.Gainers)).Int("losers", len(result.Losers)).
		Dur("elapsed", time.Since(start)).Msg("Market scan complete")
	return result, nil
}

// Rank sorts gainers descending and losers ascending by daily percentage,
// ties broken by symbol, and truncates both to topN
func Rank(result *models.ScanResult, topN int) {
	sort.SliceStable(result.Gainers, func(i, j int) bool {
		a, b := result.Gainers[i], result.Gainers[j]
		if a.DailyPct != b.DailyPct {
			return a.DailyPct > b.DailyPct
		}
		return a.Symbol < b.Symbol
	})
	sort.SliceStable(result.Losers, func(i, j int) bool {
		a, b := result.Losers[i], result.Losers[j]
		if a.DailyPct != b.DailyPct {
			return a.DailyPct < b.DailyPct
		}
		return a.Symbol < b.Symbol
	})
	if topN > 0 {
		if len(result.Gainers) > topN {
			result.Gainers = result.Gainers[:topN]
		}
		if len(result.Losers) > topN {
			result.Losers = result.Losers[:topN]
		}
	}
}

func (s *Service) resolveUniverse(ctx context.Context, opts models.ScanOptions, result *models.ScanResult) []string {
	exclude := make(map[string]bool, len(opts.Exclude))
	for _, sym := range opts.Exclude {
		exclude[sym] = true
	}

	seen := make(map[string]bool)
	var universe []string
	for _, spec := range opts.Universes {
		if ctx.Err() != nil {
			break
		}
		symbols, err := s.fetchUniverse(ctx, spec)
		if err != nil {
			s.logger.Warn().Err(err).Str("universe", spec).Msg("Universe unavailable, continuing with the rest")
			result.Notes = append(result.Notes, models.Note{
				Kind:    models.NoteUniverseUnavailable,
				Subject: spec,
				Message: fmt.Sprintf("universe %s unavailable: %v", spec, err),
			})
			continue
		}
		s.logger.Debug().Str("universe", spec).Int("count", len(symbols)).Msg("Universe loaded")
		for _, sym := range symbols {
			if sym == "" || seen[sym] || exclude[sym] {
				continue
			}
			seen[sym] = true
			universe = append(universe, sym)
		}
	}
	return universe
}

func (s *Service) withDefaults(opts models.ScanOptions) models.ScanOptions {
	if len(opts.Universes) == 0 {
		opts.Universes = s.defaults.Universes
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = s.defaults.BatchSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.CapitalizationFloor <= 0 {
		opts.CapitalizationFloor = s.defaults.CapitalizationFloor
	}
	if opts.MovementFloor <= 0 {
		opts.MovementFloor = s.defaults.MovementFloor
	}
	if opts.TopN <= 0 {
		opts.TopN = s.defaults.TopN
	}
	if opts.TopN <= 0 {
		opts.TopN = 20
	}
	if opts.ReportingCurrency == "" {
		opts.ReportingCurrency = s.defaults.ReportingCurrency
	}
	opts.ReportingCurrency = strings.ToUpper(opts.ReportingCurrency)
	return opts
}

var _ interfaces.ScannerService = (*Service)(nil)
