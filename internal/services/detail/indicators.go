package detail

import "github.com/bobmcallan/digest/internal/models"

// Indicator windows in sessions
const (
	shortWindow = 20
	midWindow   = 50
	longWindow  = 200
	rsiWindow   = 14
)

// ComputeIndicators derives moving averages, RSI and trend from closes
// ordered oldest first. Windows longer than the series are left at zero.
func ComputeIndicators(closes []float64, current float64) models.Indicators {
	ind := models.Indicators{
		SMA20:  SMA(closes, shortWindow),
		SMA50:  SMA(closes, midWindow),
		SMA200: SMA(closes, longWindow),
		RSI14:  RSI(closes, rsiWindow),
	}
	ind.RSIState = ClassifyRSI(ind.RSI14)
	ind.Trend = DetermineTrend(current, ind.SMA20, ind.SMA50, ind.SMA200)
	if ind.SMA50 != 0 {
		ind.DistanceToSMA50 = (current - ind.SMA50) / ind.SMA50 * 100
	}
	return ind
}

// SMA is the mean of the trailing period closes, or 0 when too short
func SMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period)
}

// RSI is the simple-average relative strength index over the trailing
// period changes. Too short a series reads as neutral (50).
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}

	var gains, losses float64
	tail := closes[len(closes)-period-1:]
	for i := 1; i < len(tail); i++ {
		change := tail[i] - tail[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		return 100
	}
	rs := gains / losses
	return 100 - (100 / (1 + rs))
}

// ClassifyRSI classifies an RSI value
func ClassifyRSI(rsi float64) string {
	if rsi >= 70 {
		return "overbought"
	}
	if rsi <= 30 {
		return "oversold"
	}
	return "neutral"
}

// DetermineTrend is bullish above the 200-session average with the short
// average over the mid one, bearish on the mirror condition. Without
// enough history for the long average it is neutral.
func DetermineTrend(current, sma20, sma50, sma200 float64) models.TrendType {
	if sma200 == 0 {
		return models.TrendNeutral
	}
	if current > sma200 && sma20 > sma50 {
		return models.TrendBullish
	}
	if current < sma200 && sma20 < sma50 {
		return models.TrendBearish
	}
	return models.TrendNeutral
}

// movingAverage returns the rolling mean aligned to closes; entries before
// the first full window are omitted, so the result starts at index period-1.
func movingAverage(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}
	out := make([]float64, 0, len(closes)-period+1)
	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}
