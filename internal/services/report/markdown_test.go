package report

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/bobmcallan/digest/internal/holdings"
	"github.com/bobmcallan/digest/internal/models"
)

func TestFormatScan(t *testing.T) {
	md := FormatScan(&models.ScanResult{
		UniverseSize: 503,
		Candidates:   12,
		Gainers:      []models.MarketMover{{Symbol: "NVDA", DisplayName: "NVIDIA Corporation", DailyPct: 10, MarketCap: 2.2e12}},
		Losers:       []models.MarketMover{{Symbol: "TSLA", DisplayName: "Tesla, Inc.", DailyPct: -10, MarketCap: 6e11, FXFallback: true}},
		Notes:        []models.Note{{Kind: models.NoteBatchFailed, Message: "batch 3 failed"}},
	})

	assert.Contains(t, md, "503 symbols")
	assert.Contains(t, md, "## Market Gainers")
	assert.Contains(t, md, "| NVDA | NVIDIA Corporation | +10.00% |")
	assert.NotContains(t, md, "2.20T (est.)")
	assert.Contains(t, md, "(est.) |", "fallback-converted cap is marked")
	assert.Contains(t, md, "- batch 3 failed")

	gainersOnly := FormatScan(&models.ScanResult{Gainers: []models.MarketMover{{Symbol: "NVDA", DailyPct: 10}}})
	assert.NotContains(t, gainersOnly, "## Market Losers")

	empty := FormatScan(&models.ScanResult{})
	assert.Contains(t, empty, "No movers")
}

func TestFormatHoldings(t *testing.T) {
	res := &holdings.Result{
		HeaderRow: 3,
		Holdings: map[string]models.Holding{
			"TEVA.TA": {Symbol: "TASE:TEVA", ResolvedSymbol: "TEVA.TA", CostPrice: decimal.NewFromInt(40), Quantity: decimal.NewFromInt(100), Currency: "ILS", Row: 5},
			"AAPL":    {Symbol: "XNAS:AAPL", ResolvedSymbol: "AAPL", CostPrice: decimal.NewFromInt(150), Quantity: decimal.NewFromInt(10), Row: 4},
		},
		Dropped: []*holdings.ParseError{{Row: 6, Column: "Quantity", Value: "n/a"}},
	}

	md := FormatHoldings(res)
	assert.Contains(t, md, "row 3")
	assert.Contains(t, md, "| 4 | XNAS:AAPL | AAPL | 150.00 | - | 10 |")
	assert.Contains(t, md, "| 5 | TASE:TEVA | TEVA.TA | 40.00 | ILS | 100 |")
	assert.Less(t, strings.Index(md, "XNAS:AAPL"), strings.Index(md, "TASE:TEVA"), "source order")
	assert.Contains(t, md, "## Dropped Rows")
}

func TestFormatArchive(t *testing.T) {
	md := FormatArchive([]models.ArchivedReport{{
		ID:         "r1",
		AsOf:       time.Date(2024, 3, 26, 16, 30, 0, 0, time.UTC),
		Subject:    "Daily Portfolio Digest - 2024-03-26",
		ArchivedAt: time.Date(2024, 3, 26, 16, 31, 0, 0, time.UTC),
	}})
	assert.Contains(t, md, "| r1 | 2024-03-26 16:30 | Daily Portfolio Digest - 2024-03-26 | 2024-03-26 16:31 |")

	assert.Contains(t, FormatArchive(nil), "No reports archived yet.")
}
