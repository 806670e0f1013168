package common

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", FormatMoney(decimal.RequireFromString("1234.5"), "USD"))
	assert.Equal(t, "-$50.00", FormatMoney(decimal.NewFromInt(-50), "usd"))
	assert.Equal(t, "+$150.00", FormatSignedMoney(decimal.NewFromInt(150), "USD"))
	assert.Equal(t, "12.30 XYZ", FormatMoney(decimal.RequireFromString("12.3"), "XYZ"))
}

func TestFormatSignedPct(t *testing.T) {
	assert.Equal(t, "+3.13%", FormatSignedPct(3.126))
	assert.Equal(t, "-10.00%", FormatSignedPct(-10))
	assert.Equal(t, "0.00%", FormatSignedPct(0))
}

func TestFormatPriceAndCap(t *testing.T) {
	assert.Equal(t, "165.00", FormatPrice(decimal.NewFromInt(165)))
	assert.Equal(t, "0.7100", FormatPrice(decimal.RequireFromString("0.71")))
	assert.Equal(t, "2.20T", FormatMarketCap(2.2e12))
	assert.Equal(t, "350.0M", FormatMarketCap(3.5e8))
}
