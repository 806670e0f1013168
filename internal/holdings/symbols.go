package holdings

import "strings"

// exchangePrefixes rewrites "PREFIX:TICKER" notation into the provider-facing
// form. An empty suffix strips the prefix (US listings).
var exchangePrefixes = map[string]string{
	"XNAS":   "",
	"XNYS":   "",
	"NASDAQ": "",
	"NYSE":   "",
	"ARCX":   "",
	"BATS":   "",
	"AMEX":   "",
	"XTAE":   ".TA",
	"TASE":   ".TA",
	"XLON":   ".L",
	"LSE":    ".L",
	"XTSE":   ".TO",
	"TSX":    ".TO",
	"XETR":   ".DE",
	"ETR":    ".DE",
	"XASX":   ".AX",
	"ASX":    ".AX",
	"XPAR":   ".PA",
	"EPA":    ".PA",
}

// ResolveSymbol translates a symbol as entered into the provider's format.
// Unmapped prefixes pass through unchanged.
func ResolveSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	prefix, ticker, ok := strings.Cut(s, ":")
	if !ok {
		return s
	}
	suffix, known := exchangePrefixes[strings.TrimSpace(prefix)]
	if !known {
		return s
	}
	ticker = strings.TrimSpace(ticker)
	if suffix != "" && strings.HasSuffix(ticker, suffix) {
		return ticker
	}
	return ticker + suffix
}
