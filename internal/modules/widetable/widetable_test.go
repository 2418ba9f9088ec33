package widetable

import (
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/aristath/statements/internal/domain"
	"github.com/aristath/statements/internal/table"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStatement(account, end string) domain.Statement {
	return domain.Statement{
		Start:         "2024-01-01",
		End:           end,
		AccountID:     account,
		Broker:        "Interactive Brokers",
		AccountHolder: "Jane Doe",
		BaseCurrency:  "USD",
		NAV: domain.NAV{
			StartingValue: 1000,
			EndingValue:   1100,
			Dividends:     5,
		},
	}
}

func testRecord(account, end string, securities map[string]*float64) domain.StatementRecord {
	rec := domain.StatementRecord{Statement: testStatement(account, end)}
	for _, v := range domain.Variants {
		totals := &domain.Totals{Variant: v, Value: domain.Float(42)}
		for _, sym := range []string{"AAPL", "MSFT", "CL"} {
			if val, ok := securities[sym]; ok {
				totals.Securities = append(totals.Securities, domain.SecurityValue{Symbol: sym, Value: val})
			}
		}
		rec.SetTotals(totals)
	}
	return rec
}

func TestIsSecuritySymbol(t *testing.T) {
	assert.True(t, IsSecuritySymbol("AAPL"))
	assert.True(t, IsSecuritySymbol("BRK_B"))
	assert.True(t, IsSecuritySymbol("M2K"))
	assert.False(t, IsSecuritySymbol("___"))
	assert.False(t, IsSecuritySymbol(""))
	assert.False(t, IsSecuritySymbol("Aapl"))
	assert.False(t, IsSecuritySymbol("total_total"))
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "BRK_B", NormalizeSymbol("brk.b"))
	assert.Equal(t, "CL", NormalizeSymbol(" cl "))
	assert.Equal(t, "SPY_19JUL24", NormalizeSymbol("SPY 19JUL24"))
}

func TestSchema_Classify(t *testing.T) {
	schema := DefaultSchema()
	meta, sec, dropped := schema.Classify([]string{"account_name", "AAPL", "total_total", "Notes", "ending_value", "CL"})

	assert.Equal(t, []string{"account_name", "total_total", "ending_value"}, meta)
	assert.Equal(t, []string{"AAPL", "CL"}, sec)
	assert.Equal(t, []string{"Notes"}, dropped)
	assert.False(t, schema.IsSecurity("account_name"))
	assert.True(t, schema.IsSecurity("MSFT"))
}

func TestStatementRow_RoundTrip(t *testing.T) {
	s := testStatement("U123", "2024-03-31")
	row := StatementRow(s)

	assert.Equal(t, "U123", row.Get("account_name").String())
	assert.Equal(t, 1100.0, row.Get("ending_value").FloatOrZero())
	assert.True(t, row.Get("title").IsNull())

	back, err := StatementFromRow(row)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestStatementFromRow_RequiresNaturalKey(t *testing.T) {
	_, err := StatementFromRow(table.Row{"account_name": table.Text("U1")})
	assert.Error(t, err)

	_, err = StatementFromRow(table.Row{
		"statement_start": table.Text("2024-01-01"),
		"statement_end":   table.Text("2024-01-31"),
		"account_name":    table.Text("U1"),
		"ending_value":    table.Text("n/a"),
	})
	assert.Error(t, err)
}

func TestReconstruct_ScalarAtFixedPosition(t *testing.T) {
	records := []domain.StatementRecord{
		testRecord("U1", "2024-03-31", map[string]*float64{"AAPL": domain.Float(10), "MSFT": nil}),
	}

	tables, err := NewReconstructor(zerolog.Nop()).Reconstruct(records)
	require.NoError(t, err)

	for _, v := range domain.Variants {
		tbl := tables.Get(v)
		require.Equal(t, 1, tbl.Len())
		assert.Equal(t, v.ScalarColumn(), tbl.Columns()[ScalarPosition])
		assert.Equal(t, 42.0, tbl.Row(0).Get(v.ScalarColumn()).FloatOrZero())
		assert.True(t, tbl.HasColumn("MSFT"))
		assert.True(t, tbl.Row(0).Get("MSFT").IsNull())
		assert.False(t, tbl.HasColumn("CL"))
	}
}

func TestReconstruct_AbsentSecurityIsNullNotZero(t *testing.T) {
	records := []domain.StatementRecord{
		testRecord("U1", "2024-03-31", map[string]*float64{"AAPL": domain.Float(10)}),
		testRecord("U2", "2024-03-31", map[string]*float64{"CL": domain.Float(-3)}),
	}

	tables, err := NewReconstructor(zerolog.Nop()).Reconstruct(records)
	require.NoError(t, err)

	assert.True(t, tables.Total.Row(0).Get("CL").IsNull())
	assert.True(t, tables.Total.Row(1).Get("AAPL").IsNull())
	assert.Equal(t, -3.0, tables.Total.Row(1).Get("CL").FloatOrZero())
}

func TestReconstruct_FirstValueWinsPerSymbol(t *testing.T) {
	rec := testRecord("U1", "2024-03-31", nil)
	rec.Total.Securities = []domain.SecurityValue{
		{Symbol: "AAPL", Value: domain.Float(1)},
		{Symbol: "AAPL", Value: domain.Float(2)},
	}

	tables, err := NewReconstructor(zerolog.Nop()).Reconstruct([]domain.StatementRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1.0, tables.Total.Row(0).Get("AAPL").FloatOrZero())
}

func TestReconstruct_SkipsIncompleteRecords(t *testing.T) {
	partial := testRecord("U1", "2024-03-31", map[string]*float64{"AAPL": domain.Float(10)})
	partial.UnrealizedTotal = nil
	complete := testRecord("U2", "2024-03-31", map[string]*float64{"CL": domain.Float(7)})

	tables, err := NewReconstructor(zerolog.Nop()).Reconstruct([]domain.StatementRecord{partial, complete})
	require.NoError(t, err)

	for _, v := range domain.Variants {
		tbl := tables.Get(v)
		require.Equal(t, 1, tbl.Len(), v)
		assert.Equal(t, "U2", tbl.Row(0).Get("account_name").String())
		assert.False(t, tbl.HasColumn("AAPL"))
	}
}

func TestReconstruct_NoRecords(t *testing.T) {
	tables, err := NewReconstructor(zerolog.Nop()).Reconstruct(nil)
	require.NoError(t, err)

	for _, v := range domain.Variants {
		assert.Equal(t, 0, tables.Get(v).Len())
		assert.Equal(t, Layout(v), tables.Get(v).Columns())
	}
}

func TestColumnType(t *testing.T) {
	assert.Equal(t, arrow.BinaryTypes.String, ColumnType("account_name"))
	assert.Equal(t, arrow.BinaryTypes.String, ColumnType("statement_end"))
	assert.Equal(t, arrow.PrimitiveTypes.Float64, ColumnType("ending_value"))
	assert.Equal(t, arrow.PrimitiveTypes.Float64, ColumnType("total_total"))
	assert.Equal(t, arrow.PrimitiveTypes.Float64, ColumnType("AAPL"))
	assert.Equal(t, arrow.BinaryTypes.String, ColumnType("Notes"))
}

func TestDecomposeReconstruct_RoundTrip(t *testing.T) {
	records := []domain.StatementRecord{
		testRecord("U1", "2024-03-31", map[string]*float64{"AAPL": domain.Float(10), "MSFT": nil}),
		testRecord("U2", "2024-06-30", map[string]*float64{"CL": domain.Float(7)}),
	}
	schema := DefaultSchema()

	tables, err := NewReconstructor(zerolog.Nop()).Reconstruct(records)
	require.NoError(t, err)

	for _, v := range domain.Variants {
		split := Decompose(tables.Get(v), schema)

		assert.Empty(t, split.Dropped)
		assert.ElementsMatch(t, Layout(v), split.Metadata.Columns())
		assert.ElementsMatch(t, []string{"AAPL", "MSFT", "CL"}, split.Securities.Columns())
		require.Equal(t, split.Metadata.Len(), split.Securities.Len())

		for i, rec := range records {
			s, err := StatementFromRow(split.Metadata.Row(i))
			require.NoError(t, err)
			assert.Equal(t, rec.Statement, s)

			scalar, err := split.Scalar(i, v)
			require.NoError(t, err)
			assert.Equal(t, 42.0, *scalar)
		}

		values := split.SecurityValues(1)
		require.Len(t, values, 3)
		for _, sv := range values {
			if sv.Symbol == "CL" {
				require.NotNil(t, sv.Value)
				assert.Equal(t, 7.0, *sv.Value)
			} else {
				assert.Nil(t, sv.Value)
			}
		}
	}
}
