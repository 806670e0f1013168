package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/digest/internal/cache"
	"github.com/bobmcallan/digest/internal/clients/eodhd"
	"github.com/bobmcallan/digest/internal/clients/gemini"
	"github.com/bobmcallan/digest/internal/clients/yahoo"
	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/delivery"
	"github.com/bobmcallan/digest/internal/holdings"
	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/metrics"
	"github.com/bobmcallan/digest/internal/models"
	"github.com/bobmcallan/digest/internal/services/detail"
	"github.com/bobmcallan/digest/internal/services/marketdata"
	"github.com/bobmcallan/digest/internal/services/report"
	"github.com/bobmcallan/digest/internal/services/scanner"
	"github.com/bobmcallan/digest/internal/storage"
)

// App holds the initialized clients and services.
// It is shared by every cmd/digest subcommand.
type App struct {
	Config         *common.Config
	Logger         *common.Logger
	Metrics        *metrics.Metrics
	Cache          interfaces.Cache
	Provider       interfaces.MarketDataProvider
	Gateway        interfaces.MarketDataGateway
	Loader         *holdings.Loader
	ScannerService interfaces.ScannerService
	ReportService  interfaces.ReportService
	DetailService  interfaces.DetailService
	Deliverer      interfaces.Deliverer
	Archive        interfaces.ReportArchive // nil when archiving is disabled
	StartupTime    time.Time

	scheduler *Scheduler

	mu     sync.RWMutex
	latest *RunResult
}

// RunResult is the outcome of one scheduled or manual run
type RunResult struct {
	Report    *models.Report
	Message   *models.Message // nil when the report was empty
	Delivered []string
	Finished  time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp loads configuration and initializes every client and service.
// configPath may be empty, in which case DIGEST_CONFIG, then digest.toml
// beside the binary, then config/digest.toml are tried.
func NewApp(configPath string) (*App, error) {
	if configPath == "" {
		configPath = os.Getenv("DIGEST_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "digest.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/digest.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)
	for _, w := range config.Warnings() {
		logger.Warn().Msg(w)
	}

	ctx := context.Background()

	eodhdKey, err := common.ResolveAPIKey("eodhd_api_key", config.Clients.EODHD.APIKey)
	if err != nil {
		logger.Debug().Msg("EODHD API key not configured")
	}
	var eodhdClient *eodhd.Client
	if eodhdKey != "" || config.Provider.Name == "eodhd" {
		eodhdClient = eodhd.NewClient(eodhdKey,
			eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
			eodhd.WithLogger(logger),
			eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
			eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
		)
	}

	var provider interfaces.MarketDataProvider
	switch config.Provider.Name {
	case "eodhd":
		provider = eodhdClient
	default:
		provider = yahoo.NewClient(
			yahoo.WithLogger(logger),
			yahoo.WithHistoryPeriod(config.Clients.Yahoo.HistoryPeriod),
		)
	}

	// Constituent lists come from EODHD regardless of the price provider
	var universes interfaces.UniverseProvider
	if eodhdKey != "" {
		universes = eodhdClient
	}

	var narrator interfaces.Summarizer
	geminiKey, err := common.ResolveAPIKey("gemini_api_key", config.Clients.Gemini.APIKey)
	if err != nil {
		logger.Debug().Msg("Gemini API key not configured")
	}
	if geminiKey != "" {
		geminiClient, err := gemini.NewClient(ctx, geminiKey,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Clients.Gemini.Model),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client, narrative disabled")
		} else {
			narrator = geminiClient
		}
	}

	responseCache, err := cache.New(config.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	a := newApp(config, logger, provider, universes, narrator, responseCache)

	// The digest still runs and delivers without the archive
	archive, err := storage.NewReportArchive(ctx, config.Archive, logger)
	if err != nil {
		logger.Warn().Err(err).Str("backend", config.Archive.Backend).Msg("Report archive unavailable, continuing without it")
	} else if archive != nil {
		a.Archive = archive
		a.Deliverer = delivery.NewServiceFromConfig(config, a.Metrics, logger, delivery.NewArchiveChannel(archive))
	}

	return a, nil
}

// newApp wires services over already constructed collaborators
func newApp(
	config *common.Config,
	logger *common.Logger,
	provider interfaces.MarketDataProvider,
	universes interfaces.UniverseProvider,
	narrator interfaces.Summarizer,
	responseCache interfaces.Cache,
) *App {
	startupStart := time.Now()
	m := metrics.New()

	gateway := marketdata.NewService(provider, responseCache, m, marketdata.Config{
		BatchSize:       config.Provider.BatchSize,
		PreferLastPrice: config.Provider.PreferLastPrice,
		FXFallback:      config.FX.Fallback,
		CacheTTL:        cacheTTL(config.Cache),
	}, logger)

	loader := holdings.NewLoader(config.Portfolio, logger)
	scannerService := scanner.NewService(gateway, universes, scanner.OptionsFromConfig(config), logger)

	reportService := report.NewService(loader, gateway, scannerService, narrator, m, report.ConfigFromCommon(config), logger)

	a := &App{
		Config:         config,
		Logger:         logger,
		Metrics:        m,
		Cache:          responseCache,
		Provider:       provider,
		Gateway:        gateway,
		Loader:         loader,
		ScannerService: scannerService,
		ReportService:  reportService,
		DetailService:  detail.NewService(gateway, logger),
		Deliverer:      delivery.NewServiceFromConfig(config, m, logger),
		StartupTime:    startupStart,
	}

	logger.Info().
		Str("provider", provider.Name()).
		Bool("narrative", narrator != nil).
		Bool("email", config.Email.Enabled()).
		Msg("App initialized")

	return a
}

func cacheTTL(cfg common.CacheConfig) time.Duration {
	if strings.EqualFold(cfg.Backend, "none") {
		return 0
	}
	return cfg.GetTTL()
}

// RunOnce executes the digest pipeline, renders the report and delivers it.
// An empty report is neither rendered nor delivered.
func (a *App) RunOnce(ctx context.Context) (*RunResult, error) {
	start := time.Now()

	r, err := a.ReportService.Run(ctx)
	if err != nil {
		return nil, err
	}
	result := &RunResult{Report: r}

	if r.IsEmpty() {
		a.Logger.Warn().Int("notes", len(r.Notes)).Msg("Report is empty, nothing delivered")
		result.Finished = time.Now()
		a.setLatest(result)
		return result, nil
	}

	msg, err := a.ReportService.Render(r)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	result.Message = msg

	delivered, err := a.Deliverer.Deliver(ctx, msg)
	if err != nil {
		return nil, err
	}
	result.Delivered = delivered
	result.Finished = time.Now()
	a.setLatest(result)

	a.Logger.Info().
		Str("report", r.ID).
		Int("positions", len(r.Positions)).
		Strs("delivered", delivered).
		Dur("elapsed", time.Since(start)).
		Msg("Digest run complete")

	return result, nil
}

// Latest returns the most recent successful run
func (a *App) Latest() (*RunResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest, a.latest != nil
}

func (a *App) setLatest(r *RunResult) {
	a.mu.Lock()
	a.latest = r
	a.mu.Unlock()
}

// FindHolding loads the portfolio and returns the holding for symbol,
// which may be given in either exchange-prefixed or resolved form
func (a *App) FindHolding(symbol string) (models.Holding, bool, error) {
	res, err := a.Loader.LoadFile(a.Config.Portfolio.File, a.Config.Portfolio.Sheet)
	if err != nil {
		return models.Holding{}, false, err
	}
	h, ok := res.Holdings[holdings.ResolveSymbol(symbol)]
	return h, ok, nil
}

// StartScheduler registers the digest run on the configured cron spec
func (a *App) StartScheduler() error {
	s := NewScheduler(a.Logger)
	job := Exclusive(&digestJob{app: a})
	if err := s.AddJob(a.Config.Schedule.Cron, job); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", a.Config.Schedule.Cron, err)
	}
	s.Start()
	a.scheduler = s

	if a.Config.Schedule.RunOnStart {
		go func() {
			if err := s.RunNow(job); err != nil {
				a.Logger.Error().Err(err).Msg("Startup digest run failed")
			}
		}()
	}
	return nil
}

// Close stops the scheduler and releases the cache and archive.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
		a.scheduler = nil
	}
	if a.Archive != nil {
		if err := a.Archive.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close report archive")
		}
		a.Archive = nil
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close cache")
		}
		a.Cache = nil
	}
}
