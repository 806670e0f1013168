package scanner

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/models"
)

// rateBook converts market caps into the reporting currency, fetching one
// rate per listing currency for the scan and recording it on the result.
type rateBook struct {
	gateway   interfaces.MarketDataGateway
	reporting string
	result    *models.ScanResult
	rates     map[string]models.FXRate
}

func newRateBook(gateway interfaces.MarketDataGateway, reporting string, result *models.ScanResult) *rateBook {
	return &rateBook{
		gateway:   gateway,
		reporting: reporting,
		result:    result,
		rates:     make(map[string]models.FXRate),
	}
}

// marketCap returns the instrument's capitalization in the reporting
// currency. The metadata currency wins over the one implied by the symbol
// suffix; minor units are normalized first. ok is false when no rate exists.
func (b *rateBook) marketCap(ctx context.Context, symbol string, info *models.InstrumentInfo) (float64, bool, bool) {
	if b.reporting == "" {
		return info.MarketCap, false, true
	}
	currency := info.Currency
	if currency == "" {
		currency = models.CurrencyForSymbol(symbol)
	}
	capital, major := models.ToMajorUnit(decimal.NewFromFloat(info.MarketCap), currency)

	rate := b.rate(ctx, major)
	if !rate.Available {
		return 0, false, false
	}
	return capital.Mul(rate.Rate).InexactFloat64(), rate.Fallback, true
}

func (b *rateBook) rate(ctx context.Context, currency string) models.FXRate {
	if r, ok := b.rates[currency]; ok {
		return r
	}
	r := b.gateway.GetFXRate(ctx, currency, b.reporting)
	b.rates[currency] = r
	if currency == b.reporting {
		return r
	}

	b.result.FXRates = append(b.result.FXRates, r)
	switch {
	case !r.Available:
		b.result.Notes = append(b.result.Notes, models.Note{
			Kind:    models.NoteFXUnavailable,
			Subject: r.Pair(),
			Message: fmt.Sprintf("no %s/%s rate available; movers listed in %s are excluded", currency, b.reporting, currency),
		})
	case r.Fallback:
		b.result.Notes = append(b.result.Notes, models.Note{
			Kind:    models.NoteFXFallback,
			Subject: r.Pair(),
			Message: fmt.Sprintf("live %s/%s rate unavailable; market caps use fallback estimate %s (not live data)", currency, b.reporting, r.Rate.String()),
		})
	}
	return r
}
