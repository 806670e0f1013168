package detail

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/digest/internal/models"
)

// CostLine is the cost basis drawn across the chart
type CostLine struct {
	Price float64
	Label string
}

// RenderPriceChart renders closes with a dashed cost line, a marker at the
// current price and a 20-session average once the period is long enough. Green when the position is up against cost, red otherwise.
// A nil cost omits the line. Returns raw PNG bytes.
func RenderPriceChart(ticker string, bars []models.PriceBar, cost *CostLine, current float64, up bool) ([]byte, error) {
	if len(bars) < 2 {
		return nil, fmt.Errorf("need at least 2 data points, got %d", len(bars))
	}

	xValues := make([]time.Time, len(bars))
	closes := make([]float64, len(bars))
	lo, hi := current, current
	if cost != nil {
		lo, hi = math.Min(lo, cost.Price), math.Max(hi, cost.Price)
	}
	for i, b := range bars {
		xValues[i] = b.Date
		closes[i] = b.Close
		if b.Close < lo {
			lo = b.Close
		}
		if b.Close > hi {
			hi = b.Close
		}
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 1
	}

	lineColor := drawing.ColorFromHex("34A853")
	if !up {
		lineColor = drawing.ColorFromHex("EA4335")
	}
	first, last := xValues[0], xValues[len(xValues)-1]

	closeSeries := chart.TimeSeries{
		Name: "Closing Price",
		Style: chart.Style{
			StrokeColor: lineColor,
			StrokeWidth: 2,
			FillColor:   lineColor.WithAlpha(38),
		},
		XValues: xValues,
		YValues: closes,
	}

	currentSeries := chart.TimeSeries{
		Name: "Current Price",
		Style: chart.Style{
			StrokeWidth: chart.Disabled,
			DotWidth:    6,
			DotColor:    drawing.ColorFromHex("FFA500"),
		},
		XValues: []time.Time{last},
		YValues: []float64{current},
	}

	series := []chart.Series{closeSeries, currentSeries}
	if cost != nil {
		series = append(series, chart.TimeSeries{
			Name: cost.Label,
			Style: chart.Style{
				StrokeColor:     drawing.ColorRed,
				StrokeWidth:     2,
				StrokeDashArray: []float64{5.0, 3.0},
			},
			XValues: []time.Time{first, last},
			YValues: []float64{cost.Price, cost.Price},
		})
	}
	if avg := movingAverage(closes, shortWindow); avg != nil {
		series = append(series, chart.TimeSeries{
			Name: "20-Session Average",
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("5F6368"),
				StrokeWidth: 1,
			},
			XValues: xValues[shortWindow-1:],
			YValues: avg,
		})
	}

	graph := chart.Chart{
		Title:  ticker + " - Performance Tracking",
		Width:  900,
		Height: 500,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo - pad, Max: hi + pad},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f", f)
				}
				return ""
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}
