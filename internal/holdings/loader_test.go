package holdings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testConfig() common.PortfolioConfig {
	return common.PortfolioConfig{
		HeaderMarker:   "Symbol",
		SymbolColumn:   "Symbol",
		CostColumn:     "Cost Price",
		QuantityColumn: "Quantity",
	}
}

func TestLoad_HeaderAfterMetadataRows(t *testing.T) {
	cfg := testConfig()
	cfg.HeaderMarker = "cumulative change"

	rows := [][]string{
		{"My Portfolio", "", ""},
		{"Exported 2024-05-01"},
		{"Cumulative Change", "Symbol", "Cost Price", "Quantity"},
		{"+12%", "XNAS:AAPL", "150.00", "10"},
		{"-3%", "XTAE:TEVA", "₪4,512.5", "20"},
	}

	result, err := NewLoader(cfg, nil).Load(rows)
	require.NoError(t, err)

	assert.Equal(t, 3, result.HeaderRow)
	require.Len(t, result.Holdings, 2)

	aapl := result.Holdings["AAPL"]
	assert.Equal(t, 4, aapl.Row, "data rows start after the header")
	assert.True(t, aapl.CostPrice.Equal(decimal.NewFromInt(150)))
	assert.True(t, aapl.Quantity.Equal(decimal.NewFromInt(10)))

	teva := result.Holdings["TEVA.TA"]
	assert.Equal(t, 5, teva.Row)
	assert.True(t, teva.CostPrice.Equal(decimal.RequireFromString("4512.5")))

	assert.Equal(t, []string{"AAPL", "TEVA.TA"}, result.Symbols())
}

func TestLoad_ExcludesInvalidRows(t *testing.T) {
	rows := [][]string{
		{"Symbol", "Cost Price", "Quantity"},
		{"AAPL", "150", "10"},
		{"ZERO", "10", "0"},
		{"NEG", "10", "-5"},
		{"BADCOST", "n/a", "5"},
		{"NEGCOST", "-1", "5"},
		{"", "", ""},
		{"", "12", "3"},
		{"FREE", "0", "4"},
	}

	result, err := NewLoader(testConfig(), nil).Load(rows)
	require.NoError(t, err)

	assert.Len(t, result.Holdings, 2)
	assert.Contains(t, result.Holdings, "AAPL")
	assert.Contains(t, result.Holdings, "FREE", "zero cost is valid")
	for _, sym := range []string{"ZERO", "NEG", "BADCOST", "NEGCOST"} {
		assert.NotContains(t, result.Holdings, sym)
	}
	assert.Len(t, result.Dropped, 5, "blank row is skipped silently")
}

func TestLoad_NoValidHoldingIsZeroFilled(t *testing.T) {
	rows := [][]string{
		{"Symbol", "Cost Price", "Quantity"},
		{"MSFT", "abc", "xyz"},
	}

	result, err := NewLoader(testConfig(), nil).Load(rows)
	require.NoError(t, err)
	assert.Empty(t, result.Holdings)
}

func TestLoad_HeaderNotFound(t *testing.T) {
	rows := [][]string{
		{"Ticker", "Buy", "Shares"},
		{"AAPL", "1", "1"},
	}

	_, err := NewLoader(testConfig(), nil).Load(rows)
	assert.True(t, errors.Is(err, ErrHeaderNotFound))
}

func TestLoad_SchemaError(t *testing.T) {
	rows := [][]string{
		{"Symbol", "Cost", "Quantity"},
		{"AAPL", "1", "1"},
	}

	_, err := NewLoader(testConfig(), nil).Load(rows)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"Cost Price"}, se.Missing)
	assert.Equal(t, []string{"Symbol", "Cost", "Quantity"}, se.Found)
}

func TestLoad_DuplicateSymbolsAggregate(t *testing.T) {
	rows := [][]string{
		{"Symbol", "Cost Price", "Quantity"},
		{"AAPL", "100", "10"},
		{"NASDAQ:AAPL", "200", "30"},
	}

	result, err := NewLoader(testConfig(), nil).Load(rows)
	require.NoError(t, err)
	require.Len(t, result.Holdings, 1)

	h := result.Holdings["AAPL"]
	assert.True(t, h.Quantity.Equal(decimal.NewFromInt(40)))
	assert.True(t, h.CostPrice.Equal(decimal.NewFromInt(175)), "weighted average cost, got %s", h.CostPrice)
	assert.Equal(t, 2, h.Row)
}

func TestLoad_CurrencyColumn(t *testing.T) {
	cfg := testConfig()
	cfg.CurrencyColumn = "Currency"
	rows := [][]string{
		{"Symbol", "Cost Price", "Quantity", "Currency"},
		{"TASE:ESLT", "120", "2", "usd"},
		{"MSFT", "300", "1", ""},
	}

	result, err := NewLoader(cfg, nil).Load(rows)
	require.NoError(t, err)
	assert.Equal(t, "USD", result.Holdings["ESLT.TA"].Currency)
	assert.Equal(t, "", result.Holdings["MSFT"].Currency)
}

func TestLocateHeader_IgnoresCaseAndWhitespace(t *testing.T) {
	rows := [][]string{
		{"notes"},
		{" cumulative\tCHANGE "},
	}
	idx, err := LocateHeader(rows, "Cumulative Change")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = LocateHeader(rows, "  ")
	assert.ErrorIs(t, err, ErrHeaderNotFound)
}

func TestParseCleanedDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"150", "150", true},
		{"$1,234.50", "1234.5", true},
		{"₪ 12.3", "12.3", true},
		{"-5", "-5", true},
		{"$-5.25", "-5.25", true},
		{"12 shares", "12", true},
		{".5", "0.5", true},
		{"1.2.3", "", false},
		{"", "", false},
		{"n/a", "", false},
		{"-", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCleanedDecimal(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
			}
		})
	}
}

func TestResolveSymbol(t *testing.T) {
	tests := map[string]string{
		"XNAS:AAPL":    "AAPL",
		"nyse:ko":      "KO",
		"XTAE:TEVA":    "TEVA.TA",
		"TASE:TEVA.TA": "TEVA.TA",
		"LSE:VOD":      "VOD.L",
		"XETR:SAP":     "SAP.DE",
		"ASX:BHP":      "BHP.AX",
		"EPA:MC":       "MC.PA",
		"TSX:RY":       "RY.TO",
		"OTC:ABCD":     "OTC:ABCD",
		" msft ":       "MSFT",
	}
	for in, want := range tests {
		assert.Equal(t, want, ResolveSymbol(in), in)
	}
}

func TestLoadFile_Workbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	data := [][]interface{}{
		{"Portfolio export"},
		{},
		{"Symbol", "Cost Price", "Quantity"},
		{"XNAS:MSFT", 300.5, 4},
	}
	for i, row := range data {
		if len(row) == 0 {
			continue
		}
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellRef, &row))
	}

	path := filepath.Join(t.TempDir(), "portfolio.xlsx")
	require.NoError(t, f.SaveAs(path))

	result, err := NewLoader(testConfig(), nil).LoadFile(path, "")
	require.NoError(t, err)
	require.Contains(t, result.Holdings, "MSFT")
	assert.Equal(t, 3, result.HeaderRow)
	assert.True(t, result.Holdings["MSFT"].CostPrice.Equal(decimal.RequireFromString("300.5")))
}

func TestLoadFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.csv")
	content := "Exported by broker\n\nSymbol,Cost Price,Quantity\nXLON:VOD,\"1,020.00\",100\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	result, err := NewLoader(testConfig(), nil).LoadFile(path, "")
	require.NoError(t, err)
	require.Contains(t, result.Holdings, "VOD.L")
	assert.True(t, result.Holdings["VOD.L"].CostPrice.Equal(decimal.NewFromInt(1020)))
}

func TestReadTable_UnsupportedType(t *testing.T) {
	_, err := ReadTable("portfolio.ods", "")
	assert.Error(t, err)
}
