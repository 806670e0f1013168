// Package report runs the digest pipeline and renders its output
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/holdings"
	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/metrics"
	"github.com/bobmcallan/digest/internal/models"
	"github.com/bobmcallan/digest/internal/services/pnl"
)

// ErrNarrativeUnavailable marks a narrative section the collaborator could not produce
var ErrNarrativeUnavailable = errors.New("narrative unavailable")

// HoldingsLoader reads the holdings table
type HoldingsLoader interface {
	LoadFile(path, sheet string) (*holdings.Result, error)
}

// Config holds the report pipeline settings
type Config struct {
	PortfolioFile     string
	PortfolioSheet    string
	ReportingCurrency string
	Thresholds        models.AlertThresholds
	Benchmarks        []string
	ScannerEnabled    bool
	Scan              models.ScanOptions
	NarrativeTimeout  time.Duration
	SubjectPrefix     string
	FilenameLayout    string
}

// ConfigFromCommon maps the application config onto report settings
func ConfigFromCommon(cfg *common.Config) Config {
	return Config{
		PortfolioFile:     cfg.Portfolio.File,
		PortfolioSheet:    cfg.Portfolio.Sheet,
		ReportingCurrency: cfg.FX.ReportingCurrency,
		Thresholds:        cfg.Alerts,
		Benchmarks:        cfg.Provider.Benchmarks,
		ScannerEnabled:    cfg.Scanner.Enabled,
		Scan: models.ScanOptions{
			Universes:           cfg.Scanner.Universes,
			BatchSize:           cfg.Scanner.BatchSize,
			CapitalizationFloor: cfg.Scanner.CapitalizationFloor,
			MovementFloor:       cfg.Scanner.MovementFloor,
			TopN:                cfg.Scanner.TopN,
			ReportingCurrency:   cfg.FX.ReportingCurrency,
		},
		NarrativeTimeout: cfg.Clients.Gemini.GetTimeout(),
		SubjectPrefix:    cfg.Email.SubjectPrefix,
		FilenameLayout:   cfg.Output.Filename,
	}
}

// Service implements ReportService
type Service struct {
	loader   HoldingsLoader
	gateway  interfaces.MarketDataGateway
	scanner  interfaces.ScannerService
	narrator interfaces.Summarizer
	metrics  *metrics.Metrics
	cfg      Config
	logger   *common.Logger
	now      func() time.Time
}

// NewService creates a new report service. scanner, narrator and m may be nil.
func NewService(
	loader HoldingsLoader,
	gateway interfaces.MarketDataGateway,
	scanner interfaces.ScannerService,
	narrator interfaces.Summarizer,
	m *metrics.Metrics,
	cfg Config,
	logger *common.Logger,
) *Service {
	if cfg.ReportingCurrency == "" {
		cfg.ReportingCurrency = "ILS"
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		loader:   loader,
		gateway:  gateway,
		scanner:  scanner,
		narrator: narrator,
		metrics:  m,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes the pipeline: load, price, convert, calculate, scan, narrate.
// Only holdings-table errors abort the run; every other failure becomes a
// note on the report.
func (s *Service) Run(ctx context.Context) (report *models.Report, err error) {
	start := time.Now()
	defer func() {
		unavailable := 0
		if report != nil {
			unavailable = len(report.Unavailable)
		}
		s.metrics.ObserveRun(start, unavailable, err)
	}()

	s.logger.Info().Str("file", s.cfg.PortfolioFile).Msg("Starting digest run")

	// Step 1: Load holdings
	loaded, err := s.loader.LoadFile(s.cfg.PortfolioFile, s.cfg.PortfolioSheet)
	if err != nil {
		return nil, fmt.Errorf("load holdings: %w", err)
	}

	report = &models.Report{
		ID:                uuid.New().String(),
		AsOf:              s.now(),
		ReportingCurrency: s.cfg.ReportingCurrency,
		Positions:         []models.PositionResult{},
		Gainers:           []models.MarketMover{},
		Losers:            []models.MarketMover{},
		Thresholds:        s.cfg.Thresholds,
	}
	for _, pe := range loaded.Dropped {
		report.Notes = append(report.Notes, models.Note{
			Kind:    models.NoteRowDropped,
			Subject: fmt.Sprintf("row %d", pe.Row),
			Message: pe.Error(),
		})
	}

	// Step 2: Quotes
	ordered := loaded.Ordered()
	symbols := loaded.Symbols()
	quotes := map[string]models.PriceQuote{}
	if len(symbols) > 0 {
		var batchErrs []error
		quotes, batchErrs = s.gateway.GetQuotes(ctx, symbols)
		for _, e := range batchErrs {
			report.Notes = append(report.Notes, models.Note{Kind: models.NoteBatchFailed, Subject: "portfolio", Message: e.Error()})
		}
	}

	// Step 3: FX and P/L
	fx := s.fxTable(ctx, ordered, quotes, report)
	positions, unavailable := pnl.CalculateAll(ordered, quotes, fx)
	for i := range positions {
		positions[i].Alerts = DeriveAlerts(positions[i], s.cfg.Thresholds)
	}
	report.Positions = positions
	report.Unavailable = unavailable
	for _, u := range unavailable {
		report.Notes = append(report.Notes, models.Note{
			Kind:    models.NoteQuoteUnavailable,
			Subject: u.Symbol,
			Message: fmt.Sprintf("no data for %s: %s", u.Symbol, u.Reason),
		})
	}
	report.AggregateDailyPL, report.AggregateTotalPL = pnl.Aggregate(positions)

	// Step 4: Market scan
	s.scan(ctx, symbols, report)

	// Step 5: Market overview
	s.overview(ctx, report)

	if report.IsEmpty() {
		s.logger.Warn().Msg("No positions or market movers to report")
		return report, nil
	}

	// Step 6: Narrative
	s.narrate(ctx, report)

	s.logger.Info().
		Str("id", report.ID).
		Int("positions", len(report.Positions)).
		Int("unavailable", len(report.Unavailable)).
		Int("gainers", len(report.Gainers)).
		Int("losers", len(report.Losers)).
		Int("notes", len(report.Notes)).
		Dur("elapsed", time.Since(start)).
		Msg("Digest run complete")

	return report, nil
}

// fxTable fetches one rate into the reporting currency for every quote and
// cost currency in play
func (s *Service) fxTable(ctx context.Context, holdingsList []models.Holding, quotes map[string]models.PriceQuote, report *models.Report) models.FXTable {
	table := models.NewFXTable(s.cfg.ReportingCurrency)

	needed := make(map[string]bool)
	for _, h := range holdingsList {
		q, ok := quotes[h.ResolvedSymbol]
		if !ok || !q.Available() {
			continue
		}
		needed[q.Currency] = true
		if h.Currency != "" {
			needed[models.MajorCurrency(h.Currency)] = true
		}
	}
	currencies := make([]string, 0, len(needed))
	for cur := range needed {
		if cur != "" && cur != s.cfg.ReportingCurrency {
			currencies = append(currencies, cur)
		}
	}
	sort.Strings(currencies)

	for _, cur := range currencies {
		rate := s.gateway.GetFXRate(ctx, cur, s.cfg.ReportingCurrency)
		table.Add(rate)
		report.FXRates = append(report.FXRates, rate)
		switch {
		case !rate.Available:
			report.Notes = append(report.Notes, models.Note{
				Kind:    models.NoteFXUnavailable,
				Subject: rate.Pair(),
				Message: fmt.Sprintf("no %s/%s rate available; positions quoted in %s are excluded", cur, s.cfg.ReportingCurrency, cur),
			})
		case rate.Fallback:
			report.Notes = append(report.Notes, models.Note{
				Kind:    models.NoteFXFallback,
				Subject: rate.Pair(),
				Message: fmt.Sprintf("live %s/%s rate unavailable; using fallback estimate %s (not live data)", cur, s.cfg.ReportingCurrency, rate.Rate.String()),
			})
		}
	}
	return table
}

func (s *Service) scan(ctx context.Context, portfolio []string, report *models.Report) {
	if s.scanner == nil || !s.cfg.ScannerEnabled {
		return
	}
	opts := s.cfg.Scan
	opts.Exclude = portfolio
	if opts.ReportingCurrency == "" {
		opts.ReportingCurrency = s.cfg.ReportingCurrency
	}

	result, err := s.scanner.Scan(ctx, opts)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Market scan failed (continuing)")
		report.Notes = append(report.Notes, models.Note{
			Kind:    models.NoteUniverseUnavailable,
			Subject: "scanner",
			Message: fmt.Sprintf("market scan failed: %v", err),
		})
		return
	}
	report.Gainers = result.Gainers
	report.Losers = result.Losers

	// rates already fetched for the portfolio are reported once
	known := make(map[string]bool, len(report.FXRates))
	for _, r := range report.FXRates {
		known[r.Pair()] = true
	}
	for _, r := range result.FXRates {
		if !known[r.Pair()] {
			report.FXRates = append(report.FXRates, r)
		}
	}
	for _, n := range result.Notes {
		if (n.Kind == models.NoteFXFallback || n.Kind == models.NoteFXUnavailable) && known[n.Subject] {
			continue
		}
		report.Notes = append(report.Notes, n)
	}
}

var benchmarkNames = map[string]string{
	"^GSPC":     "S&P 500",
	"^IXIC":     "NASDAQ Composite",
	"^DJI":      "Dow Jones Industrial Average",
	"^NDX":      "NASDAQ 100",
	"^RUT":      "Russell 2000",
	"^TA125.TA": "TA-125",
	"^TA35.TA":  "TA-35",
	"^FTSE":     "FTSE 100",
}

func (s *Service) overview(ctx context.Context, report *models.Report) {
	if len(s.cfg.Benchmarks) == 0 {
		return
	}
	quotes, _ := s.gateway.GetQuotes(ctx, s.cfg.Benchmarks)
	for _, sym := range s.cfg.Benchmarks {
		q, ok := quotes[sym]
		if !ok || !q.Available() {
			report.Notes = append(report.Notes, models.Note{
				Kind:    models.NoteQuoteUnavailable,
				Subject: sym,
				Message: fmt.Sprintf("no data for benchmark %s", sym),
			})
			continue
		}
		name := benchmarkNames[sym]
		if name == "" {
			name = sym
		}
		pct, _ := dailyPct(q)
		report.Overview = append(report.Overview, models.OverviewRow{
			Symbol:        sym,
			Name:          name,
			Last:          q.CurrentPrice.Decimal,
			PreviousClose: q.PreviousClose.Decimal,
			DailyPct:      pct,
		})
	}
}

var _ interfaces.ReportService = (*Service)(nil)
