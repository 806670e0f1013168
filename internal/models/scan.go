package models

// MarketMover is a scanned instrument outside the portfolio
type MarketMover struct {
	Symbol      string  `json:"symbol"`
	DisplayName string  `json:"display_name"`
	DailyPct    float64 `json:"daily_pct"`
	MarketCap   float64 `json:"market_cap"` // in the reporting currency when one is set
	LastClose   float64 `json:"last_close"`
	FXFallback  bool    `json:"fx_fallback,omitempty"`
}

// ScanResult holds ranked movers and the scan's partial-failure notes
type ScanResult struct {
	Gainers       []MarketMover `json:"gainers"`
	Losers        []MarketMover `json:"losers"`
	UniverseSize  int           `json:"universe_size"`
	Candidates    int           `json:"candidates"`
	FailedBatches int           `json:"failed_batches"`
	FXRates       []FXRate      `json:"fx_rates,omitempty"`
	Notes         []Note        `json:"notes,omitempty"`
}

// ScanOptions tunes a scan. Zero values fall back to service defaults.
type ScanOptions struct {
	Universes           []string
	Exclude             []string // portfolio symbols; movers are outside the portfolio
	BatchSize           int
	CapitalizationFloor float64
	MovementFloor       float64
	TopN                int
	// ReportingCurrency is the currency of CapitalizationFloor. Empty compares
	// market caps in the listing currency as reported.
	ReportingCurrency string
}
