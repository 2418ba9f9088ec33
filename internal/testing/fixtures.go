package testing

import (
	"github.com/aristath/statements/internal/domain"
	"github.com/aristath/statements/internal/frame"
	"github.com/aristath/statements/internal/modules/widetable"
	"github.com/aristath/statements/internal/table"
	"github.com/rs/zerolog"
)

// NewStatementFixture returns a statement for account ending on end, with
// a quarter-long period and zero NAV figures.
func NewStatementFixture(account, end string) domain.Statement {
	return domain.Statement{
		Start:         "2024-01-01",
		End:           end,
		AccountID:     account,
		Broker:        "Interactive Brokers LLC",
		BrokerAddress: "Two Pickwick Plaza, Greenwich, CT 06830",
		DateGenerated: "2024-04-02, 13:45:12 EDT",
		Title:         "Activity Statement",
		AccountHolder: "Jane Doe",
		AccountType:   "Individual",
		CustomerType:  "Individual",
		Capabilities:  "Margin",
		BaseCurrency:  "USD",
	}
}

// NewRecordFixture returns a statement record whose three totals carry the
// same securities. A nil map value is a security with no figure.
func NewRecordFixture(s domain.Statement, scalar float64, securities map[string]*float64) domain.StatementRecord {
	rec := domain.StatementRecord{Statement: s}
	for _, v := range domain.Variants {
		totals := &domain.Totals{Variant: v, Value: domain.Float(scalar)}
		for symbol, value := range securities {
			totals.Securities = append(totals.Securities, domain.SecurityValue{Symbol: symbol, Value: value})
		}
		rec.SetTotals(totals)
	}
	return rec
}

// NewRecordFixtures returns two accounts over two quarters:
// U1 holds AAPL and MSFT, U2 holds AAPL and CL.
func NewRecordFixtures() []domain.StatementRecord {
	u1q1 := NewStatementFixture("U1", "2024-03-31")
	u1q1.NAV = domain.NAV{StartingValue: 1000, EndingValue: 1100, Dividends: 5, Interest: 2, RealizedPL: 40, ChangeInUnrealizedPL: 60}

	u1q2 := NewStatementFixture("U1", "2024-06-30")
	u1q2.Start = "2024-04-01"
	u1q2.NAV = domain.NAV{StartingValue: 1100, EndingValue: 1150, DividendAccruals: 1, Interest: 3, RealizedPL: 20, ChangeInUnrealizedPL: 30}

	u2q1 := NewStatementFixture("U2", "2024-03-31")
	u2q1.NAV = domain.NAV{StartingValue: 500, EndingValue: 450, DepositsAndWithdrawals: -100, OtherFee: -2, RealizedPL: 30, ChangeInUnrealizedPL: 20}

	return []domain.StatementRecord{
		NewRecordFixture(u1q1, 30, map[string]*float64{"AAPL": domain.Float(10), "MSFT": domain.Float(20)}),
		NewRecordFixture(u1q2, 15, map[string]*float64{"AAPL": domain.Float(-5), "MSFT": domain.Float(20)}),
		NewRecordFixture(u2q1, 12, map[string]*float64{"AAPL": domain.Float(4), "CL": domain.Float(8), "MSFT": nil}),
	}
}

// NewTablesFixture builds the wide tables of the record fixtures.
func NewTablesFixture() *widetable.Tables {
	tables, err := widetable.NewReconstructor(zerolog.Nop()).Reconstruct(NewRecordFixtures())
	if err != nil {
		panic(err)
	}
	return tables
}

// NewFrameFixture builds a total-layout wide table from bare rows.
func NewFrameFixture(rows ...table.Row) *frame.Frame {
	c := frame.NewCollector(widetable.Layout(domain.VariantTotal)...)
	for _, row := range rows {
		c.Append(row)
	}
	f, err := c.Build(widetable.ColumnType)
	if err != nil {
		panic(err)
	}
	return f
}

// NewWideRowFixture returns a bare wide row for ad hoc engine tests.
func NewWideRowFixture(account, end string, nav domain.NAV, securities map[string]float64) table.Row {
	s := NewStatementFixture(account, end)
	s.NAV = nav
	row := widetable.StatementRow(s)
	for symbol, v := range securities {
		row[symbol] = table.Number(v)
	}
	return row
}
