package common

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney formats an amount in the major unit of currency, e.g. "$1,234.50".
// Unknown currency codes fall back to "1234.50 XYZ".
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(strings.ToUpper(currency))
	if cur == nil {
		return fmt.Sprintf("%s %s", amount.StringFixed(2), strings.ToUpper(currency))
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return cur.Formatter().Format(minor)
}

// FormatSignedMoney is FormatMoney with an explicit "+" for gains
func FormatSignedMoney(amount decimal.Decimal, currency string) string {
	if amount.IsPositive() {
		return "+" + FormatMoney(amount, currency)
	}
	return FormatMoney(amount, currency)
}

// FormatPrice formats a unit price with up to four decimals and no grouping
func FormatPrice(price decimal.Decimal) string {
	if price.Abs().LessThan(decimal.NewFromInt(1)) {
		return price.StringFixed(4)
	}
	return price.StringFixed(2)
}

// FormatSignedPct formats a percentage with sign and two decimals, e.g. "+3.13%"
func FormatSignedPct(pct float64) string {
	if pct > 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatMarketCap abbreviates a capitalization, e.g. 2.2e12 -> "2.20T"
func FormatMarketCap(v float64) string {
	switch {
	case v >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	}
	return fmt.Sprintf("%.0f", v)
}
