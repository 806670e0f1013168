package report

import (
	"bytes"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/digest/internal/models"
)

var (
	gainColor = drawing.ColorFromHex("34A853")
	lossColor = drawing.ColorFromHex("EA4335")
)

// RenderPLChart renders daily P/L per position as a PNG bar chart.
// Returns raw PNG bytes.
func RenderPLChart(positions []models.PositionResult) ([]byte, error) {
	if len(positions) == 0 {
		return nil, fmt.Errorf("no positions to chart")
	}

	bars := make([]chart.Value, 0, len(positions))
	lo, hi := 0.0, 0.0
	for _, p := range positions {
		v := p.DailyPL.InexactFloat64()
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		color := gainColor
		if v < 0 {
			color = lossColor
		}
		bars = append(bars, chart.Value{
			Label: p.Holding.ResolvedSymbol,
			Value: v,
			Style: chart.Style{FillColor: color, StrokeColor: color},
		})
	}

	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = 1
	}

	width, spacing := barLayout(len(bars))
	graph := chart.BarChart{
		Title:  "Daily P/L by Position",
		Width:  900,
		Height: 360,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		BarWidth:     width,
		BarSpacing:   spacing,
		UseBaseValue: true,
		BaseValue:    0,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo - pad, Max: hi + pad},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// barLayout keeps the bars and gaps within roughly 750px of the canvas
func barLayout(n int) (width, spacing int) {
	width = 500 / n
	if width > 60 {
		width = 60
	}
	if width < 2 {
		width = 2
	}
	spacing = width / 2
	if spacing < 1 {
		spacing = 1
	}
	return width, spacing
}
