package holdings

import (
	"errors"
	"fmt"
	"strings"
)

// ErrHeaderNotFound is returned when no row contains the header marker
var ErrHeaderNotFound = errors.New("holdings: no valid header found")

// SchemaError reports required columns missing from the header row
type SchemaError struct {
	Missing []string
	Found   []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("holdings: missing column(s) %s; found columns: %s",
		quoteAll(e.Missing), quoteAll(e.Found))
}

// ParseError reports a data row that could not become a Holding.
// Rows failing to parse are dropped, never defaulted.
type ParseError struct {
	Row    int // 1-based row in the source table
	Column string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("row %d: column %q value %q: %s", e.Row, e.Column, e.Value, e.Reason)
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
