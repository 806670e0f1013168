package marketdata

import (
	"errors"
	"fmt"
	"strings"
)

// ErrQuoteUnavailable marks a symbol without a usable quote for this run
var ErrQuoteUnavailable = errors.New("quote unavailable")

// ErrUnsupportedPeriod is returned for a detail period outside Periods
var ErrUnsupportedPeriod = errors.New("unsupported period")

// BatchFetchError reports a batch downgraded to unavailable as a whole
type BatchFetchError struct {
	Symbols []string
	Err     error
}

func (e *BatchFetchError) Error() string {
	preview := e.Symbols
	if len(preview) > 5 {
		preview = preview[:5]
	}
	more := ""
	if len(e.Symbols) > len(preview) {
		more = fmt.Sprintf(" and %d more", len(e.Symbols)-len(preview))
	}
	return fmt.Sprintf("batch fetch failed for %s%s: %v", strings.Join(preview, ", "), more, e.Err)
}

func (e *BatchFetchError) Unwrap() error { return e.Err }

// errInsufficientHistory is the batch-level failure when the provider
// answers with fewer than two sessions
var errInsufficientHistory = errors.New("fewer than 2 observations in batch response")
