package detail

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bobmcallan/digest/internal/models"
)

func trend(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestSMA(t *testing.T) {
	tests := []struct {
		name     string
		closes   []float64
		period   int
		expected float64
	}{
		{"simple 3-session", []float64{10, 20, 30}, 3, 20},
		{"trailing window only", []float64{100, 10, 20, 30}, 3, 20},
		{"insufficient data", []float64{10, 20}, 5, 0},
		{"zero period", []float64{10}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, SMA(tt.closes, tt.period), 0.0001)
		})
	}
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"only gains", trend(50, 1, 20), 100},
		{"too short is neutral", trend(50, 1, 10), 50},
		// 14 changes: 7 of +2, 7 of -1 -> RS 2 -> RSI 66.67
		{"mixed", []float64{100, 102, 101, 103, 102, 104, 103, 105, 104, 106, 105, 107, 106, 108, 107}, 100 - 100.0/3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RSI(tt.closes, 14), 0.01)
		})
	}

	assert.Less(t, RSI(trend(100, -1, 20), 14), 1.0, "only losses")
}

func TestClassifyRSI(t *testing.T) {
	assert.Equal(t, "overbought", ClassifyRSI(75))
	assert.Equal(t, "oversold", ClassifyRSI(25))
	assert.Equal(t, "neutral", ClassifyRSI(50))
}

func TestComputeIndicators(t *testing.T) {
	up := ComputeIndicators(trend(100, 1, 250), 360)
	assert.InDelta(t, 339.5, up.SMA20, 0.0001)
	assert.InDelta(t, 324.5, up.SMA50, 0.0001)
	assert.InDelta(t, 249.5, up.SMA200, 0.0001)
	assert.Equal(t, models.TrendBullish, up.Trend)
	assert.Equal(t, "overbought", up.RSIState)
	assert.InDelta(t, (360-324.5)/324.5*100, up.DistanceToSMA50, 0.0001)

	down := ComputeIndicators(trend(400, -1, 250), 140)
	assert.Equal(t, models.TrendBearish, down.Trend)
	assert.Equal(t, "oversold", down.RSIState)

	short := ComputeIndicators(trend(100, 1, 30), 130)
	assert.Zero(t, short.SMA50)
	assert.Zero(t, short.DistanceToSMA50)
	assert.Equal(t, models.TrendNeutral, short.Trend, "no long average")
}

func TestMovingAverage(t *testing.T) {
	assert.Equal(t, []float64{2, 3, 4}, movingAverage([]float64{1, 2, 3, 4, 5}, 3))
	assert.Nil(t, movingAverage([]float64{1, 2}, 3))
}
