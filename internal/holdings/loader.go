// Package holdings loads the portfolio table: it locates the header row by
// text search, resolves the required columns and parses each data row into
// a Holding keyed by its provider-facing symbol.
package holdings

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/models"
)

// Result is the outcome of loading one table
type Result struct {
	Holdings  map[string]models.Holding // keyed by resolved symbol
	HeaderRow int                       // 1-based
	Dropped   []*ParseError
}

// Ordered returns holdings in source-table order
func (r *Result) Ordered() []models.Holding {
	out := make([]models.Holding, 0, len(r.Holdings))
	for _, h := range r.Holdings {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

// Symbols returns resolved symbols in source-table order
func (r *Result) Symbols() []string {
	ordered := r.Ordered()
	out := make([]string, len(ordered))
	for i, h := range ordered {
		out[i] = h.ResolvedSymbol
	}
	return out
}

// Loader parses holdings tables
type Loader struct {
	marker  string
	columns Columns
	logger  *common.Logger
}

// NewLoader creates a loader from the portfolio configuration
func NewLoader(cfg common.PortfolioConfig, logger *common.Logger) *Loader {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Loader{
		marker: cfg.HeaderMarker,
		columns: Columns{
			Symbol:   cfg.SymbolColumn,
			Cost:     cfg.CostColumn,
			Quantity: cfg.QuantityColumn,
			Currency: cfg.CurrencyColumn,
		},
		logger: logger,
	}
}

// LoadFile reads the table at path and loads it
func (l *Loader) LoadFile(path, sheet string) (*Result, error) {
	rows, err := ReadTable(path, sheet)
	if err != nil {
		return nil, err
	}
	return l.Load(rows)
}

// Load parses rows into holdings. Only header and schema failures are
// returned as errors; bad data rows are dropped and recorded.
func (l *Loader) Load(rows [][]string) (*Result, error) {
	headerIdx, err := LocateHeader(rows, l.marker)
	if err != nil {
		return nil, fmt.Errorf("marker %q: %w", l.marker, err)
	}

	idx, err := ResolveColumns(rows[headerIdx], l.columns)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Holdings:  make(map[string]models.Holding),
		HeaderRow: headerIdx + 1,
	}

	for i := headerIdx + 1; i < len(rows); i++ {
		rowNum := i + 1
		if blank(rows[i]) {
			continue
		}

		h, err := ParseRow(rows[i], rowNum, idx)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				result.Dropped = append(result.Dropped, pe)
			}
			l.logger.Warn().Err(err).Int("row", rowNum).Msg("Dropping holdings row")
			continue
		}

		if err := merge(result.Holdings, h); err != nil {
			result.Dropped = append(result.Dropped, err)
			l.logger.Warn().Err(err).Int("row", rowNum).Msg("Dropping duplicate holdings row")
		}
	}

	l.logger.Info().
		Int("header_row", result.HeaderRow).
		Int("holdings", len(result.Holdings)).
		Int("dropped", len(result.Dropped)).
		Msg("Holdings loaded")

	return result, nil
}

// merge adds h to holdings. A repeated symbol sums quantities and takes the
// quantity-weighted average cost; the first row's position is kept.
func merge(holdings map[string]models.Holding, h models.Holding) *ParseError {
	existing, ok := holdings[h.ResolvedSymbol]
	if !ok {
		holdings[h.ResolvedSymbol] = h
		return nil
	}
	if existing.Currency != h.Currency {
		return &ParseError{
			Row:    h.Row,
			Value:  h.Symbol,
			Reason: fmt.Sprintf("duplicate of row %d with a different cost currency", existing.Row),
		}
	}

	qty := existing.Quantity.Add(h.Quantity)
	cost := existing.CostPrice.Mul(existing.Quantity).
		Add(h.CostPrice.Mul(h.Quantity)).
		Div(qty)

	existing.Quantity = qty
	existing.CostPrice = cost
	holdings[h.ResolvedSymbol] = existing
	return nil
}
