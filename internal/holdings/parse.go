package holdings

import (
	"strings"
	"unicode"

	"github.com/bobmcallan/digest/internal/models"
	"github.com/shopspring/decimal"
)

// ParseCleanedDecimal strips every character except digits, a single decimal
// point and an optional leading minus, then parses the remainder. Cells like
// "$1,234.50" or "₪ 12.3" parse; "1.2.3", "" and "n/a" are absent.
func ParseCleanedDecimal(cell string) (decimal.Decimal, bool) {
	var b strings.Builder
	seenDigit, seenDot, negative := false, false, false

	for _, r := range cell {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			b.WriteRune(r)
		case r == '.':
			if seenDot {
				return decimal.Zero, false
			}
			seenDot = true
			b.WriteRune(r)
		case r == '-' && !seenDigit && !seenDot && !negative:
			negative = true
		}
	}
	if !seenDigit {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// ColumnIndex holds the positions of the resolved columns; -1 means absent
type ColumnIndex struct {
	Symbol   int
	Cost     int
	Quantity int
	Currency int

	names Columns
}

// Columns names the logical columns in the source table
type Columns struct {
	Symbol   string
	Cost     string
	Quantity string
	Currency string // optional
}

// LocateHeader returns the 0-based index of the first row containing marker
// in any cell. Matching ignores case and whitespace.
func LocateHeader(rows [][]string, marker string) (int, error) {
	needle := squash(marker)
	if needle == "" {
		return -1, ErrHeaderNotFound
	}
	for i, row := range rows {
		for _, cell := range row {
			if strings.Contains(squash(cell), needle) {
				return i, nil
			}
		}
	}
	return -1, ErrHeaderNotFound
}

// ResolveColumns matches required columns by exact, trimmed name
func ResolveColumns(header []string, cols Columns) (ColumnIndex, error) {
	idx := ColumnIndex{Symbol: -1, Cost: -1, Quantity: -1, Currency: -1, names: cols}
	found := make([]string, 0, len(header))

	for i, cell := range header {
		name := strings.TrimSpace(cell)
		if name == "" {
			continue
		}
		found = append(found, name)
		switch {
		case name == cols.Symbol && idx.Symbol < 0:
			idx.Symbol = i
		case name == cols.Cost && idx.Cost < 0:
			idx.Cost = i
		case name == cols.Quantity && idx.Quantity < 0:
			idx.Quantity = i
		case cols.Currency != "" && name == cols.Currency && idx.Currency < 0:
			idx.Currency = i
		}
	}

	var missing []string
	if idx.Symbol < 0 {
		missing = append(missing, cols.Symbol)
	}
	if idx.Cost < 0 {
		missing = append(missing, cols.Cost)
	}
	if idx.Quantity < 0 {
		missing = append(missing, cols.Quantity)
	}
	if len(missing) > 0 {
		return idx, &SchemaError{Missing: missing, Found: found}
	}
	return idx, nil
}

// ParseRow converts one data row into a Holding. rowNum is 1-based.
func ParseRow(row []string, rowNum int, idx ColumnIndex) (models.Holding, error) {
	symbol := strings.TrimSpace(cell(row, idx.Symbol))
	if symbol == "" || strings.EqualFold(symbol, "nan") {
		return models.Holding{}, &ParseError{Row: rowNum, Column: idx.names.Symbol, Reason: "empty symbol"}
	}

	rawCost := cell(row, idx.Cost)
	cost, ok := ParseCleanedDecimal(rawCost)
	if !ok {
		return models.Holding{}, &ParseError{Row: rowNum, Column: idx.names.Cost, Value: rawCost, Reason: "not a number"}
	}
	if cost.IsNegative() {
		return models.Holding{}, &ParseError{Row: rowNum, Column: idx.names.Cost, Value: rawCost, Reason: "negative cost"}
	}

	rawQty := cell(row, idx.Quantity)
	qty, ok := ParseCleanedDecimal(rawQty)
	if !ok {
		return models.Holding{}, &ParseError{Row: rowNum, Column: idx.names.Quantity, Value: rawQty, Reason: "not a number"}
	}
	if !qty.IsPositive() {
		return models.Holding{}, &ParseError{Row: rowNum, Column: idx.names.Quantity, Value: rawQty, Reason: "quantity must be positive"}
	}

	h := models.Holding{
		Symbol:         symbol,
		ResolvedSymbol: ResolveSymbol(symbol),
		CostPrice:      cost,
		Quantity:       qty,
		Row:            rowNum,
	}
	if idx.Currency >= 0 {
		h.Currency = strings.ToUpper(strings.TrimSpace(cell(row, idx.Currency)))
	}
	return h, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func squash(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
