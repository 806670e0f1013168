package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/digest/internal/models"
)

// DefaultPeriod is the detail view period when none is requested
const DefaultPeriod = "1y"

// Periods lists the supported detail view periods, shortest first
var Periods = []string{"1w", "1mo", "3mo", "6mo", "1y", "2y", "5y", "all"}

// PeriodStart returns the first date covered by period. "all" returns the zero time.
func PeriodStart(period string, now time.Time) (time.Time, error) {
	switch period {
	case "1w":
		return now.AddDate(0, 0, -7), nil
	case "1mo":
		return now.AddDate(0, -1, 0), nil
	case "3mo":
		return now.AddDate(0, -3, 0), nil
	case "6mo":
		return now.AddDate(0, -6, 0), nil
	case "1y":
		return now.AddDate(-1, 0, 0), nil
	case "2y":
		return now.AddDate(-2, 0, 0), nil
	case "5y":
		return now.AddDate(-5, 0, 0), nil
	case "all":
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("%w %q (want one of %v)", ErrUnsupportedPeriod, period, Periods)
}

// GetHistory returns daily bars for period with prices in the major unit
func (s *Service) GetHistory(ctx context.Context, symbol, period string) ([]models.PriceBar, error) {
	if period == "" {
		period = DefaultPeriod
	}
	now := s.now()
	from, err := PeriodStart(period, now)
	if err != nil {
		return nil, err
	}

	var cached []models.PriceBar
	if s.cacheGet(ctx, s.key("history", period, symbol), &cached) {
		return cached, nil
	}

	start := time.Now()
	bars, err := s.provider.FetchHistory(ctx, symbol, from, now)
	s.metrics.ObserveProvider(s.provider.Name(), "history", start, err)
	if err != nil {
		return nil, err
	}

	factor := majorFactor(symbol)
	out := make([]models.PriceBar, len(bars))
	for i, b := range bars {
		out[i] = models.PriceBar{
			Date:   b.Date,
			Open:   b.Open * factor,
			High:   b.High * factor,
			Low:    b.Low * factor,
			Close:  b.Close * factor,
			Volume: b.Volume,
		}
	}
	if len(out) > 0 {
		s.cacheSet(ctx, s.key("history", period, symbol), out)
	}
	return out, nil
}
