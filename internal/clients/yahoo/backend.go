package yahoo

import (
	"fmt"

	"github.com/bobmcallan/digest/internal/models"
	yfmodels "github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/multi"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// yfBackend talks to Yahoo Finance through go-yfinance
type yfBackend struct{}

func (yfBackend) download(symbols []string, period string) (map[string][]models.PriceBar, map[string]error, error) {
	params := yfmodels.DefaultDownloadParams()
	params.Symbols = symbols
	params.Period = period
	params.Interval = "1d"

	result, err := multi.Download(symbols, &params)
	if err != nil {
		return nil, nil, err
	}

	data := make(map[string][]models.PriceBar, len(result.Data))
	for sym, bars := range result.Data {
		converted := make([]models.PriceBar, 0, len(bars))
		for _, bar := range bars {
			converted = append(converted, models.PriceBar{
				Date:   bar.Date,
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: int64(bar.Volume),
			})
		}
		data[sym] = converted
	}

	errs := make(map[string]error, len(result.Errors))
	for sym, e := range result.Errors {
		errs[sym] = e
	}
	return data, errs, nil
}

func (yfBackend) lastPrice(symbol string) (float64, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	quote, err := t.Quote()
	if err != nil {
		return 0, err
	}
	if quote == nil {
		return 0, ErrNoData
	}
	switch {
	case quote.RegularMarketPrice > 0:
		return quote.RegularMarketPrice, nil
	case quote.PostMarketPrice > 0:
		return quote.PostMarketPrice, nil
	case quote.PreMarketPrice > 0:
		return quote.PreMarketPrice, nil
	}
	return 0, ErrNoData
}

func (yfBackend) info(symbol string) (*models.InstrumentInfo, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	info, err := t.Info()
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrNoData
	}

	name := info.LongName
	if name == "" {
		name = info.ShortName
	}
	return &models.InstrumentInfo{
		Symbol:    symbol,
		Name:      name,
		MarketCap: float64(info.MarketCap),
	}, nil
}

func (yfBackend) history(symbol, period string) ([]models.PriceBar, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	bars, err := t.History(yfmodels.HistoryParams{
		Period:     period,
		Interval:   "1d",
		AutoAdjust: true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.PriceBar, 0, len(bars))
	for _, bar := range bars {
		out = append(out, models.PriceBar{
			Date:   bar.Date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: int64(bar.Volume),
		})
	}
	return out, nil
}
