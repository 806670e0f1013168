package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolding_CostCurrency(t *testing.T) {
	assert.Equal(t, "USD", Holding{}.CostCurrency("USD"))
	assert.Equal(t, "ILS", Holding{Currency: "ILS"}.CostCurrency("USD"))
}

func TestCurrencyForSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"AAPL", "USD"},
		{"TEVA.TA", "ILA"},
		{"VOD.L", "GBX"},
		{"SHOP.TO", "CAD"},
		{"^GSPC", "USD"},
		{"USDILS=X", "USD"},
		{"XYZ.ZZ", "USD"},
	}
	for _, tt := range tests {
		if got := CurrencyForSymbol(tt.symbol); got != tt.want {
			t.Errorf("CurrencyForSymbol(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestToMajorUnit(t *testing.T) {
	price, cur := ToMajorUnit(decimal.NewFromInt(4000), "ila")
	assert.True(t, price.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, "ILS", cur)

	price, cur = ToMajorUnit(decimal.NewFromInt(150), "usd")
	assert.True(t, price.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "USD", cur)
}

func TestFXTable_Cross(t *testing.T) {
	table := NewFXTable("ILS")
	table.Add(FXRate{From: "USD", To: "ILS", Rate: decimal.NewFromFloat(3.7), Available: true, Fallback: true})
	table.Add(FXRate{From: "EUR", To: "ILS", Rate: decimal.NewFromInt(4), Available: true})
	table.Add(FXRate{From: "GBP", To: "ILS", Available: false})

	rate, fallback, ok := table.ToReporting("ILS")
	require.True(t, ok)
	assert.False(t, fallback)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))

	_, _, ok = table.ToReporting("GBP")
	assert.False(t, ok, "unavailable rate is unusable")

	rate, fallback, ok = table.Cross("EUR", "USD")
	require.True(t, ok)
	assert.True(t, fallback, "a fallback leg taints the cross rate")
	assert.Equal(t, "1.0811", rate.StringFixed(4))

	assert.Len(t, table.Fallbacks(), 1)
}

func TestReport_Alerts(t *testing.T) {
	r := &Report{Positions: []PositionResult{
		{Holding: Holding{Symbol: "A"}, Alerts: []AlertKind{AlertDailyDrop}},
		{Holding: Holding{Symbol: "B"}},
		{Holding: Holding{Symbol: "C"}, Alerts: []AlertKind{AlertTotalDrop, AlertDailyDrop}},
	}}

	drops := r.PositionsWithAlert(AlertDailyDrop)
	require.Len(t, drops, 2)
	assert.Equal(t, "A", drops[0].Holding.Symbol)
	assert.Equal(t, "C", drops[1].Holding.Symbol)
	assert.Empty(t, r.PositionsWithAlert(AlertDailyGain))
	assert.False(t, r.IsEmpty())
	assert.True(t, (&Report{}).IsEmpty())
}

func TestNarrative_Text(t *testing.T) {
	var n *Narrative
	assert.Empty(t, n.Text(NarrativeAnalysis))

	n = &Narrative{Sections: map[NarrativeSection]string{NarrativeAnalysis: "Flat day."}}
	assert.Equal(t, "Flat day.", n.Text(NarrativeAnalysis))
	assert.Empty(t, n.Text(NarrativeInsights))
}

func TestNewArchivedReport(t *testing.T) {
	asOf := time.Date(2024, 3, 26, 16, 30, 0, 0, time.UTC)
	msg := &Message{ReportID: "r1", AsOf: asOf, Subject: "Digest", HTML: "<p>hi</p>", Filename: "digest-2024-03-26.html"}

	rec, err := NewArchivedReport(msg, asOf.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)
	assert.Equal(t, "Digest", rec.Subject)
	assert.Equal(t, "<p>hi</p>", rec.HTML)
	assert.Equal(t, "digest-2024-03-26.html", rec.Filename)
	assert.True(t, rec.ArchivedAt.After(rec.AsOf))

	_, err = NewArchivedReport(&Message{Subject: "no id"}, asOf)
	assert.Error(t, err)

	_, err = NewArchivedReport(nil, asOf)
	assert.Error(t, err)
}
