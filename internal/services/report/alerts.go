package report

import (
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/digest/internal/models"
)

// DeriveAlerts returns every alert a position triggers. Drop thresholds are
// negative percentages; a percentage reported as undefined never alerts.
func DeriveAlerts(p models.PositionResult, t models.AlertThresholds) []models.AlertKind {
	var alerts []models.AlertKind
	if !p.TotalPctUndefined && p.TotalPct.LessThanOrEqual(decimal.NewFromFloat(t.TotalDropPct)) {
		alerts = append(alerts, models.AlertTotalDrop)
	}
	if !p.DailyPctUndefined {
		daily := p.DailyPct
		if daily.LessThanOrEqual(decimal.NewFromFloat(t.DailyDropPct)) {
			alerts = append(alerts, models.AlertDailyDrop)
		}
		if daily.GreaterThanOrEqual(decimal.NewFromFloat(t.DailyGainPct)) {
			alerts = append(alerts, models.AlertDailyGain)
		}
	}
	return alerts
}

// dailyPct is (current - previous) / previous * 100 for a quote
func dailyPct(q models.PriceQuote) (decimal.Decimal, bool) {
	prev := q.PreviousClose.Decimal
	if prev.IsZero() {
		return decimal.Zero, false
	}
	return q.CurrentPrice.Decimal.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)), true
}
