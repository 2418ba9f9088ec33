package widetable

import (
	"fmt"

	"github.com/aristath/statements/internal/domain"
	"github.com/aristath/statements/internal/table"
)

// navAccessors pairs NAVColumns with their domain.NAV fields.
var navAccessors = map[string]func(*domain.NAV) *float64{
	"starting_value":             func(n *domain.NAV) *float64 { return &n.StartingValue },
	"ending_value":               func(n *domain.NAV) *float64 { return &n.EndingValue },
	"realized_pl":                func(n *domain.NAV) *float64 { return &n.RealizedPL },
	"change_in_unrealized_pl":    func(n *domain.NAV) *float64 { return &n.ChangeInUnrealizedPL },
	"transferred_pl_adjustments": func(n *domain.NAV) *float64 { return &n.TransferredPLAdjustments },
	"deposits_and_withdrawals":   func(n *domain.NAV) *float64 { return &n.DepositsAndWithdrawals },
	"position_transfers":         func(n *domain.NAV) *float64 { return &n.PositionTransfers },
	"dividends":                  func(n *domain.NAV) *float64 { return &n.Dividends },
	"withholding_tax":            func(n *domain.NAV) *float64 { return &n.WithholdingTax },
	"dividend_accruals":          func(n *domain.NAV) *float64 { return &n.DividendAccruals },
	"interest":                   func(n *domain.NAV) *float64 { return &n.Interest },
	"interest_accruals":          func(n *domain.NAV) *float64 { return &n.InterestAccruals },
	"other_fee":                  func(n *domain.NAV) *float64 { return &n.OtherFee },
	"time_weighted_rr":           func(n *domain.NAV) *float64 { return &n.TimeWeightedRR },
}

func statementText(s *domain.Statement) map[string]*string {
	return map[string]*string{
		"statement_start":      &s.Start,
		"statement_end":        &s.End,
		"account_name":         &s.AccountID,
		"broker":               &s.Broker,
		"broker_address":       &s.BrokerAddress,
		"date_generated":       &s.DateGenerated,
		"title":                &s.Title,
		"account_holder":       &s.AccountHolder,
		"account_type":         &s.AccountType,
		"customer_type":        &s.CustomerType,
		"account_capabilities": &s.Capabilities,
		"base_currency":        &s.BaseCurrency,
	}
}

// StatementRow renders a statement (without its id) as wide-table cells.
// Empty text fields are left null.
func StatementRow(s domain.Statement) table.Row {
	row := make(table.Row, len(StatementColumns)+len(NAVColumns))
	for col, field := range statementText(&s) {
		if *field != "" {
			row[col] = table.Text(*field)
		}
	}
	for col, field := range navAccessors {
		row[col] = table.Number(*field(&s.NAV))
	}
	return row
}

// StatementFromRow reads a statement from wide-table cells. The natural key
// columns are required; missing NAV figures read as zero.
func StatementFromRow(row table.Row) (domain.Statement, error) {
	var s domain.Statement
	for col, field := range statementText(&s) {
		*field = row.Get(col).String()
	}
	for col, field := range navAccessors {
		v := row.Get(col)
		if v.IsNull() {
			continue
		}
		f, ok := v.Float()
		if !ok {
			return domain.Statement{}, fmt.Errorf("column %s: %q is not numeric", col, v.String())
		}
		*field(&s.NAV) = f
	}

	if s.Start == "" || s.End == "" || s.AccountID == "" {
		return domain.Statement{}, fmt.Errorf("statement row is missing statement_start, statement_end or account_name")
	}
	return s, nil
}

// Layout returns the metadata column order of a variant's wide table: the
// statement columns with the variant scalar at ScalarPosition, then NAV.
func Layout(v domain.Variant) []string {
	cols := make([]string, 0, len(StatementColumns)+len(NAVColumns)+1)
	cols = append(cols, StatementColumns[:ScalarPosition]...)
	cols = append(cols, v.ScalarColumn())
	cols = append(cols, StatementColumns[ScalarPosition:]...)
	cols = append(cols, NAVColumns...)
	return cols
}
