// Package common provides shared test infrastructure
package common

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/digest/internal/models"
)

// ErrMockNoData is returned by the mocks when nothing is configured for a key
var ErrMockNoData = errors.New("mock: no data")

// MockProvider implements MarketDataProvider and UniverseProvider for testing
type MockProvider struct {
	mu sync.Mutex

	ProviderName string
	Bars         map[string][]models.PriceBar // oldest first
	LastPrices   map[string]float64
	Infos        map[string]*models.InstrumentInfo
	FX           map[string]float64 // keyed by pair, e.g. "USDILS"
	Constituents map[string][]string

	BatchErr        error
	FailingSymbols  map[string]bool // any batch containing one of these errors
	ConstituentErrs map[string]error

	BatchCalls     [][]string
	LastPriceCalls int
	InfoCalls      int
	FXCalls        int
	HistoryCalls   int
}

// NewMockProvider creates an empty mock provider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		ProviderName:    "mock",
		Bars:            make(map[string][]models.PriceBar),
		LastPrices:      make(map[string]float64),
		Infos:           make(map[string]*models.InstrumentInfo),
		FX:              make(map[string]float64),
		Constituents:    make(map[string][]string),
		FailingSymbols:  make(map[string]bool),
		ConstituentErrs: make(map[string]error),
	}
}

// SetCloses stores one daily bar per close, ending on 2024-03-26
func (m *MockProvider) SetCloses(symbol string, closes ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Bars[symbol] = SampleBars(closes...)
}

func (m *MockProvider) Name() string { return m.ProviderName }

func (m *MockProvider) FetchBatchHistory(ctx context.Context, symbols []string, sessions int) (map[string][]models.PriceBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchCalls = append(m.BatchCalls, append([]string(nil), symbols...))
	if m.BatchErr != nil {
		return nil, m.BatchErr
	}
	for _, s := range symbols {
		if m.FailingSymbols[s] {
			return nil, fmt.Errorf("mock: batch containing %s failed", s)
		}
	}
	out := make(map[string][]models.PriceBar)
	for _, s := range symbols {
		bars, ok := m.Bars[s]
		if !ok || len(bars) == 0 {
			continue
		}
		if sessions > 0 && len(bars) > sessions {
			bars = bars[len(bars)-sessions:]
		}
		out[s] = append([]models.PriceBar(nil), bars...)
	}
	return out, nil
}

func (m *MockProvider) FetchLastPrice(ctx context.Context, symbol string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastPriceCalls++
	p, ok := m.LastPrices[symbol]
	return p, ok, nil
}

func (m *MockProvider) FetchInfo(ctx context.Context, symbol string) (*models.InstrumentInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InfoCalls++
	if info, ok := m.Infos[symbol]; ok {
		copied := *info
		return &copied, nil
	}
	return nil, ErrMockNoData
}

func (m *MockProvider) FetchFX(ctx context.Context, from, to string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FXCalls++
	if r, ok := m.FX[from+to]; ok {
		return r, nil
	}
	return 0, ErrMockNoData
}

func (m *MockProvider) FetchHistory(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HistoryCalls++
	bars, ok := m.Bars[symbol]
	if !ok {
		return nil, ErrMockNoData
	}
	var out []models.PriceBar
	for _, b := range bars {
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

func (m *MockProvider) FetchConstituents(ctx context.Context, index string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.ConstituentErrs[index]; ok {
		return nil, err
	}
	if c, ok := m.Constituents[index]; ok {
		return c, nil
	}
	return nil, ErrMockNoData
}

// MockSummarizer implements Summarizer for testing
type MockSummarizer struct {
	mu        sync.Mutex
	Responses map[models.NarrativeSection]string
	Err       error
	Calls     int
	Findings  [][]byte
}

// NewMockSummarizer creates a summarizer answering each section with a fixed text
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{
		Responses: map[models.NarrativeSection]string{
			models.NarrativeAnalysis: "Mock analysis: the portfolio **rose** today.",
			models.NarrativeInsights: "- Mock insight: gains were concentrated in one name.",
		},
	}
}

func (m *MockSummarizer) Summarize(ctx context.Context, section models.NarrativeSection, findings []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Findings = append(m.Findings, findings)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Responses[section], nil
}

// MockDeliverer implements Deliverer for testing
type MockDeliverer struct {
	mu        sync.Mutex
	Delivered []*models.Message
	Err       error
}

func (m *MockDeliverer) Deliver(ctx context.Context, msg *models.Message) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Delivered = append(m.Delivered, msg)
	return []string{"mock"}, nil
}

// MockArchive implements ReportArchive in memory for testing
type MockArchive struct {
	mu      sync.Mutex
	Reports map[string]models.ArchivedReport
	SaveErr error
	Closed  bool
}

func NewMockArchive() *MockArchive {
	return &MockArchive{Reports: make(map[string]models.ArchivedReport)}
}

func (m *MockArchive) Save(ctx context.Context, rec *models.ArchivedReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Reports[rec.ID] = *rec
	return nil
}

func (m *MockArchive) Get(ctx context.Context, id string) (*models.ArchivedReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Reports[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrReportNotFound, id)
	}
	return &rec, nil
}

func (m *MockArchive) List(ctx context.Context, limit int) ([]models.ArchivedReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ArchivedReport, 0, len(m.Reports))
	for _, rec := range m.Reports {
		rec.HTML = ""
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AsOf.After(out[j].AsOf) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockArchive) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

// Helper functions

// SampleBars builds consecutive weekday bars ending on 2024-03-26
func SampleBars(closes ...float64) []models.PriceBar {
	end := time.Date(2024, 3, 26, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, 0, len(closes))
	d := end
	for len(dates) < len(closes) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			dates = append(dates, d)
		}
		d = d.AddDate(0, 0, -1)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	bars := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = models.PriceBar{
			Date:   dates[i],
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000000 + int64(i*10000),
		}
	}
	return bars
}
