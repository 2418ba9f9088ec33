package statements

import (
	"path/filepath"
	"testing"

	"github.com/aristath/statements/internal/domain"
	"github.com/aristath/statements/internal/frame"
	"github.com/aristath/statements/internal/modules/widetable"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSample(t *testing.T) *Prepared {
	t.Helper()
	parsed, err := NewParser(zerolog.Nop()).Parse([]byte(sampleStatement))
	require.NoError(t, err)
	nav := NewNAVExtractor(zerolog.Nop()).Extract([]byte(sampleStatement))

	prepared := NewPrepared(zerolog.Nop())
	require.NoError(t, prepared.Add(parsed, nav))
	return prepared
}

func preparedTable(t *testing.T, p *Prepared, v domain.Variant) *frame.Frame {
	t.Helper()
	tbl, err := p.Table(v)
	require.NoError(t, err)
	t.Cleanup(tbl.Release)
	return tbl
}

func TestPrepared_SumsPerUnderlying(t *testing.T) {
	prepared := buildSample(t)
	require.Equal(t, 1, prepared.Len())

	total := preparedTable(t, prepared, domain.VariantTotal).Row(0)
	assert.Equal(t, 100.0, total.Get("AAPL").FloatOrZero())
	assert.Equal(t, 1000.5, total.Get("MSFT").FloatOrZero())
	assert.Equal(t, 15.0, total.Get("CL").FloatOrZero())
	assert.Equal(t, 1115.5, total.Get("total_total").FloatOrZero())

	realized := preparedTable(t, prepared, domain.VariantRealized).Row(0)
	assert.Equal(t, 70.0, realized.Get("AAPL").FloatOrZero())
	assert.Equal(t, 1085.5, realized.Get("realized_total").FloatOrZero())

	unrealized := preparedTable(t, prepared, domain.VariantUnrealized).Row(0)
	assert.Equal(t, 30.0, unrealized.Get("AAPL").FloatOrZero())
	assert.Equal(t, 30.0, unrealized.Get("unrealized_total").FloatOrZero())
}

func TestPrepared_CarriesStatementMetadata(t *testing.T) {
	prepared := buildSample(t)

	tbl := preparedTable(t, prepared, domain.VariantTotal)
	assert.Equal(t, "total_total", tbl.Columns()[widetable.ScalarPosition])

	row := tbl.Row(0)
	assert.Equal(t, "U1234567", row.Get("account_name").String())
	assert.Equal(t, "2024-01-01", row.Get("statement_start").String())
	assert.Equal(t, "2024-03-31", row.Get("statement_end").String())
	assert.Equal(t, "Jane Doe", row.Get("account_holder").String())
	assert.Equal(t, 1100.0, row.Get("ending_value").FloatOrZero())
	assert.Equal(t, 3.25, row.Get("time_weighted_rr").FloatOrZero())

	split := widetable.Decompose(tbl, widetable.DefaultSchema())
	assert.ElementsMatch(t, []string{"AAPL", "CL", "MSFT"}, split.Securities.Columns())
	assert.Empty(t, split.Dropped)
}

func TestPrepared_RejectsStatementWithoutKey(t *testing.T) {
	parsed, err := NewParser(zerolog.Nop()).Parse([]byte(performanceSummary))
	require.NoError(t, err)

	err = NewPrepared(zerolog.Nop()).Add(parsed, domain.NAV{})
	assert.Error(t, err)
}

func TestPrepared_WriteDir(t *testing.T) {
	prepared := buildSample(t)
	dir := filepath.Join(t.TempDir(), "prepared")

	require.NoError(t, prepared.WriteDir(dir))

	for _, v := range domain.Variants {
		tbl, err := frame.ReadCSVFile(filepath.Join(dir, PreparedFile(v)), widetable.ColumnType)
		require.NoError(t, err)
		defer tbl.Release()
		require.Equal(t, 1, tbl.Len())
		assert.Equal(t, "U1234567", tbl.Row(0).Get("account_name").String())
		assert.True(t, tbl.HasColumn(v.ScalarColumn()))
	}
}

func TestProcessor_ProcessDir(t *testing.T) {
	dir := t.TempDir()
	writeStatement(t, dir, "b.csv", sampleStatement)
	writeStatement(t, dir, "a.csv", statementHeader+statementNAV)
	writeStatement(t, dir, "notes.txt", "ignored")

	prepared, err := NewProcessor(zerolog.Nop()).ProcessDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, prepared.Len())
}

func TestProcessor_ProcessDirContinuesPastParseError(t *testing.T) {
	dir := t.TempDir()
	writeStatement(t, dir, "a_bad.csv", statementHeader+performanceSummary+
		"Realized & Unrealized Performance Summary,Data,Futures,ZZZZ9,0,1,1,2,\n")
	writeStatement(t, dir, "b_good.csv", sampleStatement)

	prepared, err := NewProcessor(zerolog.Nop()).ProcessDir(dir)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, err.Error(), "a_bad.csv")

	require.NotNil(t, prepared)
	require.Equal(t, 1, prepared.Len())
	total := preparedTable(t, prepared, domain.VariantTotal)
	assert.Equal(t, 100.0, total.Row(0).Get("AAPL").FloatOrZero())
}

func TestListCSVFiles(t *testing.T) {
	dir := t.TempDir()
	writeStatement(t, dir, "b.csv", "x")
	writeStatement(t, dir, "a.csv", "x")
	writeStatement(t, dir, "c.txt", "x")

	files, err := ListCSVFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")}, files)
}
