// Package detail renders the per-holding detail view. Every input arrives
// in the request; nothing is read from shared state.
package detail

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/models"
	"github.com/bobmcallan/digest/internal/services/marketdata"
)

// ErrNoHistory is returned when the provider has no bars for the period
var ErrNoHistory = errors.New("no price history")

// recentSessions is the number of trailing sessions listed in the view
const recentSessions = 10

// Service implements DetailService
type Service struct {
	gateway interfaces.MarketDataGateway
	logger  *common.Logger
	now     func() time.Time
}

// NewService creates a new detail service
func NewService(gateway interfaces.MarketDataGateway, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{gateway: gateway, logger: logger, now: time.Now}
}

// Render builds the detail view for one ticker over the requested period
func (s *Service) Render(ctx context.Context, req models.DetailRequest) (*models.Detail, error) {
	ticker := req.Ticker
	if ticker == "" {
		ticker = req.Holding.ResolvedSymbol
	}
	if ticker == "" {
		return nil, errors.New("ticker is required")
	}
	period := req.Period
	if period == "" {
		period = marketdata.DefaultPeriod
	}
	if _, err := marketdata.PeriodStart(period, s.now()); err != nil {
		return nil, err
	}

	bars, err := s.gateway.GetHistory(ctx, ticker, period)
	if err != nil {
		return nil, fmt.Errorf("%s history: %w", ticker, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s %s: %w", ticker, period, ErrNoHistory)
	}

	d := &models.Detail{
		Ticker:      ticker,
		Period:      period,
		PeriodLabel: PeriodLabel(bars[0].Date, bars[len(bars)-1].Date),
		Bars:        bars,
		GeneratedAt: s.now(),
	}

	current, ok := s.gateway.GetLastPrice(ctx, ticker)
	if !ok {
		s.logger.Warn().Str("ticker", ticker).Msg("Could not retrieve current price, using last closing price")
		current = bars[len(bars)-1].Close
		d.CurrentFromClose = true
	}
	d.CurrentPrice = current

	costLine := s.applyCost(ctx, d, req.Holding)

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	d.Min, d.Max = minMax(closes)
	d.Mean = stat.Mean(closes, nil)
	if len(closes) > 1 {
		d.StdDev = stat.StdDev(closes, nil)
	}
	d.Indicators = ComputeIndicators(closes, current)

	if len(bars) > recentSessions {
		d.Recent = bars[len(bars)-recentSessions:]
	} else {
		d.Recent = bars
	}

	up := d.ChangePct == nil || *d.ChangePct >= 0
	png, err := RenderPriceChart(ticker, bars, costLine, current, up)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Detail chart skipped")
	} else {
		d.ChartPNG = png
	}

	return d, nil
}

// applyCost sets the cost and the change against it. The change is only
// computed when cost and price are in the same currency; without a rate the
// view is flagged and no cost line is drawn.
func (s *Service) applyCost(ctx context.Context, d *models.Detail, h models.Holding) *CostLine {
	quoteCur := models.MajorCurrency(models.CurrencyForSymbol(d.Ticker))
	cost, costCur := models.ToMajorUnit(h.CostPrice, h.CostCurrency(quoteCur))
	d.CostPrice = cost

	line := &CostLine{Label: "Cost Price"}
	if costCur != quoteCur {
		rate := s.gateway.GetFXRate(ctx, costCur, quoteCur)
		if !rate.Available {
			s.logger.Warn().Str("ticker", d.Ticker).Str("pair", rate.Pair()).
				Msg("No rate for cost conversion, change against cost not shown")
			d.CostUnconverted = true
			return nil
		}
		d.CostPrice = cost.Mul(rate.Rate)
		if rate.Fallback {
			d.FXFallback = true
			line.Label = "Cost Price (fallback FX)"
		}
	}

	costF := d.CostPrice.InexactFloat64()
	changeAbs := d.CurrentPrice - costF
	changePct := 0.0
	if costF != 0 {
		changePct = changeAbs / costF * 100
	}
	d.ChangeAbs, d.ChangePct = &changeAbs, &changePct
	line.Price = costF
	return line
}

// PeriodLabel describes the span between the first and last bar
func PeriodLabel(first, last time.Time) string {
	days := int(last.Sub(first).Hours() / 24)
	switch {
	case days > 365:
		return plural(days/365, "Year")
	case days > 30:
		return plural(days/30, "Month")
	case days >= 7:
		return plural(days/7, "Week")
	}
	return plural(days, "Day")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func minMax(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

var _ interfaces.DetailService = (*Service)(nil)
