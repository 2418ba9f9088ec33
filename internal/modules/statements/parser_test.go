package statements

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Metadata(t *testing.T) {
	parsed, err := NewParser(zerolog.Nop()).Parse([]byte(sampleStatement))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"broker":         "Interactive Brokers LLC",
		"broker_address": "Two Pickwick Plaza, Greenwich, CT 06830",
		"title":          "Activity Statement",
		"start_date":     "2024-01-01",
		"end_date":       "2024-03-31",
		"date_generated": "2024-04-02, 13:45:12 EDT",
	}, parsed.Statement)

	assert.Equal(t, map[string]string{
		"holder":        "Jane Doe",
		"id":            "U1234567",
		"type":          "Individual",
		"customer_type": "Individual",
		"capabilities":  "Margin",
		"base_currency": "USD",
	}, parsed.Account)
}

func TestParser_SingleDatePeriod(t *testing.T) {
	content := "Statement,Data,Period,\"March 31, 2024\"\n" +
		"Account Information,Data,Account,U1\n" + performanceSummary

	parsed, err := NewParser(zerolog.Nop()).Parse([]byte(content))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-31", parsed.Statement["start_date"])
	assert.Equal(t, "2024-03-31", parsed.Statement["end_date"])
}

func TestParser_UnparseablePeriodIsTolerated(t *testing.T) {
	content := "Statement,Data,Period,not a date\n" + performanceSummary

	parsed, err := NewParser(zerolog.Nop()).Parse([]byte(content))
	require.NoError(t, err)
	assert.NotContains(t, parsed.Statement, "start_date")
}

func TestParser_TradeRows(t *testing.T) {
	parsed, err := NewParser(zerolog.Nop()).Parse([]byte(sampleStatement))
	require.NoError(t, err)

	trades := parsed.Trades
	require.Equal(t, 4, trades.Len())

	for _, col := range []string{"Asset Category", "Symbol", "Realized Total", "Total",
		"original_symbol", "trade_type", "underlying", "expiry", "strike", "option_type"} {
		assert.True(t, trades.HasColumn(col), col)
	}

	assert.Equal(t, "aapl", trades.Row(0).Get("underlying").String())
	assert.Equal(t, "1,000.50", trades.Row(1).Get("Realized Total").String())

	option := trades.Row(2)
	assert.Equal(t, "aapl", option.Get("underlying").String())
	assert.Equal(t, "19jul24", option.Get("expiry").String())
	assert.Equal(t, "200", option.Get("strike").String())
	assert.Equal(t, "c", option.Get("option_type").String())
	assert.Equal(t, "Equity and Index Options", option.Get("trade_type").String())

	future := trades.Row(3)
	assert.Equal(t, "cl", future.Get("underlying").String())
	assert.True(t, future.Get("expiry").IsNull())
	assert.True(t, future.Get("Code").IsNull())
}

func TestParser_AggregatesClassificationErrors(t *testing.T) {
	content := statementHeader + performanceSummary +
		"Realized & Unrealized Performance Summary,Data,Futures,ZZZZ9,0,1,1,2,\n" +
		"Realized & Unrealized Performance Summary,Data,Futures,QQQQ1,0,1,1,2,\n"

	_, err := NewParser(zerolog.Nop()).Parse([]byte(content))
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	require.Len(t, parseErr.Rows, 2)
	assert.Contains(t, parseErr.Rows[0], "ZZZZ9")
	assert.Contains(t, parseErr.Rows[1], "QQQQ1")
	assert.Contains(t, parseErr.Rows[0], "Row ")
	assert.Contains(t, err.Error(), "failed to process some futures symbols")
}

func TestParser_RowWithoutSymbol(t *testing.T) {
	short := "Realized & Unrealized Performance Summary,Data,%s\n"

	parsed, err := NewParser(zerolog.Nop()).Parse([]byte(statementHeader + performanceSummary + fmt.Sprintf(short, "Stocks")))
	require.NoError(t, err)
	require.Equal(t, 5, parsed.Trades.Len())
	assert.Equal(t, "Stocks", parsed.Trades.Row(4).Get("trade_type").String())
	assert.True(t, parsed.Trades.Row(4).Get("underlying").IsNull())

	_, err = NewParser(zerolog.Nop()).Parse([]byte(statementHeader + performanceSummary + fmt.Sprintf(short, "Futures")))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Len(t, parseErr.Rows, 1)
	assert.Contains(t, parseErr.Rows[0], "no mapping found for futures symbol")
}

func TestParser_NoTradeData(t *testing.T) {
	_, err := NewParser(zerolog.Nop()).Parse([]byte(statementHeader + statementNAV))
	assert.True(t, errors.Is(err, ErrNoTradeData))

	onlyOther := statementHeader +
		"Realized & Unrealized Performance Summary,Header,Asset Category,Symbol,Total\n" +
		"Realized & Unrealized Performance Summary,Data,Forex,EUR.USD,2\n"
	_, err = NewParser(zerolog.Nop()).Parse([]byte(onlyOther))
	assert.True(t, errors.Is(err, ErrNoTradeData))
}

func TestParser_ParseFile(t *testing.T) {
	dir := t.TempDir()
	path := writeStatement(t, dir, "q1.csv", sampleStatement)

	parsed, err := NewParser(zerolog.Nop()).ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "U1234567", parsed.Account["id"])

	_, err = NewParser(zerolog.Nop()).ParseFile(dir + "/missing.csv")
	assert.Error(t, err)
}
