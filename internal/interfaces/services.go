package interfaces

import (
	"context"

	"github.com/bobmcallan/digest/internal/models"
)

// MarketDataGateway wraps the provider with batching, caching, unit
// normalization and unavailable-sentinel semantics.
type MarketDataGateway interface {
	// GetQuotes returns a quote for every requested symbol. Symbols whose batch
	// failed or that the provider omitted carry an unavailable quote; batch
	// failures are also returned for reporting.
	GetQuotes(ctx context.Context, symbols []string) (map[string]models.PriceQuote, []error)

	// GetCloseQuotes is GetQuotes priced from the two latest closes only,
	// in batches of batchSize
	GetCloseQuotes(ctx context.Context, symbols []string, batchSize int) (map[string]models.PriceQuote, []error)

	// GetFXRate returns from->to, falling back to a configured rate flagged as such
	GetFXRate(ctx context.Context, from, to string) models.FXRate

	// GetInfo returns instrument metadata, or an error when absent
	GetInfo(ctx context.Context, symbol string) (*models.InstrumentInfo, error)

	// GetHistory returns normalized daily bars for a detail period (1w ... all)
	GetHistory(ctx context.Context, symbol, period string) ([]models.PriceBar, error)

	// GetLastPrice returns the normalized last traded price; ok is false when absent
	GetLastPrice(ctx context.Context, symbol string) (price float64, ok bool)
}

// ScannerService finds large daily movers outside the portfolio
type ScannerService interface {
	Scan(ctx context.Context, opts models.ScanOptions) (*models.ScanResult, error)
}

// ReportService runs the end-to-end digest pipeline
type ReportService interface {
	// Run loads holdings, prices them, scans the market and assembles a report
	Run(ctx context.Context) (*models.Report, error)

	// Render produces the self-contained HTML message for a report
	Render(report *models.Report) (*models.Message, error)
}

// DetailService renders the per-holding detail view
type DetailService interface {
	Render(ctx context.Context, req models.DetailRequest) (*models.Detail, error)
}

// Deliverer hands a rendered report to a delivery channel.
// It returns a description of each channel that succeeded.
type Deliverer interface {
	Deliver(ctx context.Context, msg *models.Message) ([]string, error)
}
