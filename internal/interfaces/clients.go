// Package interfaces defines provider, collaborator and service contracts for the digest
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/digest/internal/models"
)

// MarketDataProvider is the black-box financial data source.
// Prices are returned in the unit the exchange quotes in (ILA, GBX, ...);
// normalization is the gateway's job.
type MarketDataProvider interface {
	// Name identifies the provider in logs, metrics and notes
	Name() string

	// FetchBatchHistory returns up to sessions trailing daily bars per symbol,
	// oldest first. Symbols the provider has no data for are omitted.
	FetchBatchHistory(ctx context.Context, symbols []string, sessions int) (map[string][]models.PriceBar, error)

	// FetchLastPrice returns the low-latency last traded price; ok is false when absent
	FetchLastPrice(ctx context.Context, symbol string) (price float64, ok bool, err error)

	// FetchInfo returns instrument metadata (name, market cap)
	FetchInfo(ctx context.Context, symbol string) (*models.InstrumentInfo, error)

	// FetchFX returns the rate converting one unit of from into to
	FetchFX(ctx context.Context, from, to string) (float64, error)

	// FetchHistory returns daily bars between from and to, oldest first.
	// A zero from means all available history.
	FetchHistory(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error)
}

// UniverseProvider supplies index constituent lists for the scanner
type UniverseProvider interface {
	FetchConstituents(ctx context.Context, index string) ([]string, error)
}

// EODOption configures EOD data requests
type EODOption func(*EODParams)

// EODParams holds EOD query parameters
type EODParams struct {
	From   time.Time
	To     time.Time
	Period string // d=daily, w=weekly, m=monthly
	Order  string // a=ascending, d=descending
	Limit  int
}

// WithDateRange sets the date range for EOD query
func WithDateRange(from, to time.Time) EODOption {
	return func(p *EODParams) {
		p.From = from
		p.To = to
	}
}

// WithLimit sets the limit for EOD query
func WithLimit(limit int) EODOption {
	return func(p *EODParams) {
		p.Limit = limit
	}
}

// Summarizer is the narrative text-generation collaborator. It receives only
// structured findings (JSON) and returns opaque display text (markdown).
type Summarizer interface {
	Summarize(ctx context.Context, section models.NarrativeSection, findings []byte) (string, error)
}

// Cache is the process-level response cache. Values are JSON encoded.
type Cache interface {
	// Get decodes the cached value into dest; found is false on a miss
	Get(ctx context.Context, key string, dest interface{}) (found bool, err error)

	// Set stores value for ttl
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Close() error
}
