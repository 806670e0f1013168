// Package pnl computes per-position and aggregate profit and loss.
// Everything here is pure: the same holdings, quotes and rates always
// produce the same results.
package pnl

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/digest/internal/models"
	"github.com/bobmcallan/digest/internal/services/marketdata"
)

// ErrFXUnavailable is returned when a position needs a conversion with no usable rate
var ErrFXUnavailable = errors.New("fx rate unavailable")

var hundred = decimal.NewFromInt(100)

// Calculate derives the P/L of one holding. Cost is converted into the
// quote currency before any differencing; results are converted into the
// reporting currency with the table's rate for the quote currency.
func Calculate(h models.Holding, q models.PriceQuote, fx models.FXTable) (models.PositionResult, error) {
	if !q.Available() {
		return models.PositionResult{}, fmt.Errorf("%s: %w", h.ResolvedSymbol, marketdata.ErrQuoteUnavailable)
	}

	quoteCur := q.Currency
	cost, costCur := models.ToMajorUnit(h.CostPrice, h.CostCurrency(quoteCur))
	costFallback := false
	if costCur != quoteCur {
		rate, fb, ok := fx.Cross(costCur, quoteCur)
		if !ok {
			return models.PositionResult{}, fmt.Errorf("%s: cost %s->%s: %w", h.ResolvedSymbol, costCur, quoteCur, ErrFXUnavailable)
		}
		cost = cost.Mul(rate)
		costFallback = fb
	}

	rate, fallback, ok := fx.ToReporting(quoteCur)
	if !ok {
		return models.PositionResult{}, fmt.Errorf("%s: %s->%s: %w", h.ResolvedSymbol, quoteCur, fx.Reporting, ErrFXUnavailable)
	}

	current := q.CurrentPrice.Decimal
	previous := q.PreviousClose.Decimal
	currentRep := current.Mul(rate)
	previousRep := previous.Mul(rate)
	costRep := cost.Mul(rate)

	dailyPct, dailyUndefined := percent(current.Sub(previous), previous)
	totalPct, totalUndefined := percent(current.Sub(cost), cost)

	return models.PositionResult{
		Holding:               h,
		QuoteCurrency:         quoteCur,
		ReportingCurrency:     fx.Reporting,
		CurrentPrice:          current,
		PreviousClose:         previous,
		CostPrice:             cost,
		PriceSource:           q.Source,
		FXRate:                rate,
		FXFallback:            fallback || costFallback,
		CurrentPriceReporting: currentRep,
		CostPriceReporting:    costRep,
		DailyPL:               currentRep.Sub(previousRep).Mul(h.Quantity),
		TotalPL:               currentRep.Sub(costRep).Mul(h.Quantity),
		DailyPct:              dailyPct,
		TotalPct:              totalPct,
		DailyPctUndefined:     dailyUndefined,
		TotalPctUndefined:     totalUndefined,
	}, nil
}

// percent returns change/base*100, or 0 flagged as undefined when base is zero
func percent(change, base decimal.Decimal) (decimal.Decimal, bool) {
	if base.IsZero() {
		return decimal.Zero, true
	}
	return change.Div(base).Mul(hundred), false
}

// CalculateAll prices every holding in order. Holdings without a quote or a
// usable rate are returned as unavailable and take no part in aggregates.
func CalculateAll(holdings []models.Holding, quotes map[string]models.PriceQuote, fx models.FXTable) ([]models.PositionResult, []models.UnavailablePosition) {
	results := make([]models.PositionResult, 0, len(holdings))
	var unavailable []models.UnavailablePosition

	for _, h := range holdings {
		q, ok := quotes[h.ResolvedSymbol]
		if !ok {
			unavailable = append(unavailable, models.UnavailablePosition{Symbol: h.ResolvedSymbol, Reason: "no quote requested"})
			continue
		}
		if !q.Available() {
			reason := q.Reason
			if reason == "" {
				reason = "quote unavailable"
			}
			unavailable = append(unavailable, models.UnavailablePosition{Symbol: h.ResolvedSymbol, Reason: reason})
			continue
		}

		res, err := Calculate(h, q, fx)
		if err != nil {
			unavailable = append(unavailable, models.UnavailablePosition{Symbol: h.ResolvedSymbol, Reason: err.Error()})
			continue
		}
		results = append(results, res)
	}
	return results, unavailable
}

// Aggregate sums daily and total P/L over computed positions
func Aggregate(results []models.PositionResult) (daily, total decimal.Decimal) {
	daily, total = decimal.Zero, decimal.Zero
	for _, r := range results {
		daily = daily.Add(r.DailyPL)
		total = total.Add(r.TotalPL)
	}
	return daily, total
}
