package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/models"
	"github.com/bobmcallan/digest/internal/services/marketdata"
	testcommon "github.com/bobmcallan/digest/test/common"
)

func newScanner(p *testcommon.MockProvider, universes bool) *Service {
	gw := marketdata.NewService(p, nil, nil, marketdata.Config{BatchSize: 50}, common.NewSilentLogger())
	defaults := models.ScanOptions{BatchSize: 2, CapitalizationFloor: 1e8, MovementFloor: 5, TopN: 20}
	if !universes {
		return NewService(gw, nil, defaults, nil)
	}
	return NewService(gw, p, defaults, nil)
}

func seed(p *testcommon.MockProvider, sym string, prev, last, capital float64) {
	p.SetCloses(sym, prev, last)
	p.Infos[sym] = &models.InstrumentInfo{Symbol: sym, Name: sym + " Inc", MarketCap: capital}
}

func symbols(movers []models.MarketMover) []string {
	out := make([]string, len(movers))
	for i, m := range movers {
		out[i] = m.Symbol
	}
	return out
}

func TestScan_FiltersAndRanks(t *testing.T) {
	p := testcommon.NewMockProvider()
	p.Constituents["GSPC.INDX"] = []string{"UP10", "UP6", "FLAT", "DOWN8", "DOWN20", "SMALLCAP", "AAPL"}
	seed(p, "UP10", 100, 110, 5e9)
	seed(p, "UP6", 100, 106, 5e9)
	seed(p, "FLAT", 100, 101, 5e9)
	seed(p, "DOWN8", 100, 92, 5e9)
	seed(p, "DOWN20", 100, 80, 5e9)
	seed(p, "SMALLCAP", 100, 150, 1e8) // equal to the floor: excluded
	seed(p, "AAPL", 100, 120, 3e12)

	svc := newScanner(p, true)
	res, err := svc.Scan(context.Background(), models.ScanOptions{
		Universes: []string{"eodhd:GSPC.INDX"},
		Exclude:   []string{"AAPL"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"UP10", "UP6"}, symbols(res.Gainers))
	assert.Equal(t, []string{"DOWN20", "DOWN8"}, symbols(res.Losers))
	assert.Equal(t, 6, res.UniverseSize, "portfolio symbol excluded")
	assert.Equal(t, 5, res.Candidates)
	assert.Equal(t, "UP10 Inc", res.Gainers[0].DisplayName)
	assert.InDelta(t, -20.0, res.Losers[0].DailyPct, 1e-9)

	// metadata fetched only for the filtered set
	assert.Equal(t, 5, p.InfoCalls)
	for _, m := range append(res.Gainers, res.Losers...) {
		assert.Greater(t, m.MarketCap, 1e8)
	}
}

func TestScan_CapitalizationFloorHolds(t *testing.T) {
	p := testcommon.NewMockProvider()
	p.Constituents["X"] = []string{"A", "B", "C"}
	seed(p, "A", 10, 12, 5e8)
	seed(p, "B", 10, 12, 2e9)
	seed(p, "C", 10, 7, 9e9)

	for _, floor := range []float64{0, 5e8, 1e9, 1e10} {
		res, err := newScanner(p, true).Scan(context.Background(), models.ScanOptions{
			Universes:           []string{"eodhd:X"},
			CapitalizationFloor: floor,
		})
		require.NoError(t, err)
		for _, m := range append(res.Gainers, res.Losers...) {
			assert.Greater(t, m.MarketCap, floor, m.Symbol)
		}
	}
}

func TestScan_CapitalizationFloorInReportingCurrency(t *testing.T) {
	p := testcommon.NewMockProvider()
	p.FX["USDILS"] = 3.7
	p.FX["GBPILS"] = 4.6
	seed(p, "SMALLUSD", 100, 110, 9e7)
	seed(p, "BIGGBX.L", 100, 110, 1.5e8)
	p.Infos["BIGGBX.L"].Currency = "GBX"

	res, err := newScanner(p, false).Scan(context.Background(), models.ScanOptions{
		Universes:         []string{"list:SMALLUSD,BIGGBX.L"},
		ReportingCurrency: "ils",
	})
	require.NoError(t, err)

	// 9e7 USD is above 1e8 ILS; 1.5e8 pence is 1.5e6 GBP, far below it
	require.Equal(t, []string{"SMALLUSD"}, symbols(res.Gainers))
	assert.InDelta(t, 3.33e8, res.Gainers[0].MarketCap, 1)
	assert.False(t, res.Gainers[0].FXFallback)
	assert.Len(t, res.FXRates, 2)
	assert.Empty(t, res.Notes)
}

func TestScan_MarketCapCurrencyFromSuffix(t *testing.T) {
	p := testcommon.NewMockProvider()
	p.FX["GBPILS"] = 4.6
	seed(p, "VOD.L", 100, 90, 5e10) // no metadata currency: .L quotes in pence

	res, err := newScanner(p, false).Scan(context.Background(), models.ScanOptions{
		Universes:         []string{"list:VOD.L"},
		ReportingCurrency: "ILS",
	})
	require.NoError(t, err)
	require.Len(t, res.Losers, 1)
	assert.InDelta(t, 2.3e9, res.Losers[0].MarketCap, 1)
}

func TestScan_MarketCapFallbackRateFlagged(t *testing.T) {
	p := testcommon.NewMockProvider()
	seed(p, "NVDA", 800, 880, 2.2e12)
	seed(p, "SAP.DE", 100, 110, 2e11) // no EUR rate at all
	gw := marketdata.NewService(p, nil, nil, marketdata.Config{
		BatchSize:  50,
		FXFallback: map[string]float64{"USDILS": 3.7},
	}, common.NewSilentLogger())
	svc := NewService(gw, nil, models.ScanOptions{CapitalizationFloor: 1e8, MovementFloor: 5, ReportingCurrency: "ILS"}, nil)

	res, err := svc.Scan(context.Background(), models.ScanOptions{Universes: []string{"list:NVDA,SAP.DE"}})
	require.NoError(t, err)

	require.Equal(t, []string{"NVDA"}, symbols(res.Gainers), "no rate means no comparison")
	assert.True(t, res.Gainers[0].FXFallback)
	assert.InDelta(t, 8.14e12, res.Gainers[0].MarketCap, 1)

	kinds := map[models.NoteKind]string{}
	for _, n := range res.Notes {
		kinds[n.Kind] = n.Subject
	}
	assert.Equal(t, "USDILS", kinds[models.NoteFXFallback])
	assert.Equal(t, "EURILS", kinds[models.NoteFXUnavailable])
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := common.NewDefaultConfig()
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, cfg.FX.ReportingCurrency, opts.ReportingCurrency)
	assert.Equal(t, cfg.Scanner.CapitalizationFloor, opts.CapitalizationFloor)
}

func TestScan_BatchAndMetadataFailuresExcluded(t *testing.T) {
	p := testcommon.NewMockProvider()
	p.Constituents["X"] = []string{"A", "B", "C", "D", "E"}
	for _, sym := range []string{"A", "B", "C", "D", "E"} {
		seed(p, sym, 100, 90, 5e9)
	}
	p.FailingSymbols["C"] = true // batch [C, D] fails
	delete(p.Infos, "E")         // metadata missing

	res, err := newScanner(p, true).Scan(context.Background(), models.ScanOptions{Universes: []string{"eodhd:X"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, symbols(res.Losers))
	assert.Equal(t, 1, res.FailedBatches)
	require.Len(t, res.Notes, 1)
	assert.Equal(t, models.NoteBatchFailed, res.Notes[0].Kind)
}

func TestScan_PartialUniverse(t *testing.T) {
	p := testcommon.NewMockProvider()
	p.ConstituentErrs["NDX.INDX"] = errors.New("HTTP 503")
	p.Constituents["GSPC.INDX"] = []string{"A"}
	seed(p, "A", 100, 110, 5e9)

	res, err := newScanner(p, true).Scan(context.Background(), models.ScanOptions{
		Universes: []string{"eodhd:NDX.INDX", "eodhd:GSPC.INDX"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, symbols(res.Gainers))
	require.Len(t, res.Notes, 1)
	assert.Equal(t, models.NoteUniverseUnavailable, res.Notes[0].Kind)
	assert.Equal(t, "eodhd:NDX.INDX", res.Notes[0].Subject)
}

func TestScan_NoUniverseProvider(t *testing.T) {
	p := testcommon.NewMockProvider()
	res, err := newScanner(p, false).Scan(context.Background(), models.ScanOptions{Universes: []string{"eodhd:GSPC.INDX"}})
	require.NoError(t, err)
	assert.Empty(t, res.Gainers)
	assert.Empty(t, res.Losers)
	require.Len(t, res.Notes, 1)
	assert.Contains(t, res.Notes[0].Message, ErrNoUniverseProvider.Error())
	assert.Empty(t, p.BatchCalls)
}

func TestScan_FileAndListUniverses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "universe.txt")
	require.NoError(t, os.WriteFile(path, []byte("# watch list\nnvda, NVIDIA\n\nTSLA # volatile\n"), 0644))

	p := testcommon.NewMockProvider()
	seed(p, "NVDA", 800, 880, 2e12)
	seed(p, "TSLA", 200, 180, 6e11)
	seed(p, "AMD", 150, 165, 2e11)

	res, err := newScanner(p, false).Scan(context.Background(), models.ScanOptions{
		Universes: []string{"file:" + path, "list:amd, nvda"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.UniverseSize)
	assert.Equal(t, []string{"AMD", "NVDA"}, symbols(res.Gainers))
	assert.Equal(t, []string{"TSLA"}, symbols(res.Losers))
}

func TestRank_TruncatesToTopN(t *testing.T) {
	res := &models.ScanResult{
		Gainers: []models.MarketMover{{Symbol: "B", DailyPct: 6}, {Symbol: "A", DailyPct: 6}, {Symbol: "C", DailyPct: 9}},
		Losers:  []models.MarketMover{{Symbol: "X", DailyPct: -5}, {Symbol: "Y", DailyPct: -12}, {Symbol: "Z", DailyPct: -7}},
	}
	Rank(res, 2)
	assert.Equal(t, []string{"C", "A"}, symbols(res.Gainers))
	assert.Equal(t, []string{"Y", "Z"}, symbols(res.Losers))
}
