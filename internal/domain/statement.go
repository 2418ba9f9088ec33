// Package domain holds the persisted statement model shared by the parser,
// the ingestion pipeline, the store and the wide-table reconstruction.
package domain

import "fmt"

// Variant identifies one of the three totals families kept per statement.
type Variant string

const (
	VariantTotal      Variant = "total"
	VariantRealized   Variant = "realized_total"
	VariantUnrealized Variant = "unrealized_total"
)

// Variants lists every totals variant in ingestion order.
var Variants = []Variant{VariantRealized, VariantUnrealized, VariantTotal}

// ParseVariant converts a pnl type ("total", "realized_total", "unrealized_total").
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantTotal, VariantRealized, VariantUnrealized:
		return Variant(s), nil
	}
	return "", fmt.Errorf("unknown pnl type %q", s)
}

// ScalarColumn returns the wide-table column that carries the variant's scalar aggregate.
func (v Variant) ScalarColumn() string {
	if v == VariantTotal {
		return "total_total"
	}
	return string(v)
}

// NAV holds the "Change in NAV" performance fields of one statement.
type NAV struct {
	StartingValue            float64
	EndingValue              float64
	RealizedPL               float64
	ChangeInUnrealizedPL     float64
	TransferredPLAdjustments float64
	DepositsAndWithdrawals   float64
	PositionTransfers        float64
	Dividends                float64
	WithholdingTax           float64
	DividendAccruals         float64
	Interest                 float64
	InterestAccruals         float64
	OtherFee                 float64
	TimeWeightedRR           float64
}

// Statement is one brokerage reporting period for one account.
// Its natural key is (Start, End, AccountID).
type Statement struct {
	ID            int64
	Start         string // YYYY-MM-DD
	End           string // YYYY-MM-DD
	AccountID     string
	Broker        string
	BrokerAddress string
	DateGenerated string
	Title         string
	AccountHolder string
	AccountType   string
	CustomerType  string
	Capabilities  string
	BaseCurrency  string
	NAV           NAV
}

// Key returns the natural key formatted for logging.
func (s Statement) Key() string {
	return fmt.Sprintf("%s/%s..%s", s.AccountID, s.Start, s.End)
}

// SecurityValue is one symbol's contribution to a totals record.
// A nil Value means the statement carried the column without a figure.
type SecurityValue struct {
	ID       int64
	TotalsID int64
	Symbol   string
	Value    *float64
}

// Totals is a scalar aggregate plus its per-security breakdown.
type Totals struct {
	ID          int64
	StatementID int64
	Variant     Variant
	Value       *float64
	Securities  []SecurityValue
}

// StatementRecord is a statement with its three totals records, as fetched
// from the store in one hierarchical read.
type StatementRecord struct {
	Statement       Statement
	Total           *Totals
	RealizedTotal   *Totals
	UnrealizedTotal *Totals
}

// Totals returns the record's totals for the given variant, or nil.
func (r *StatementRecord) Totals(v Variant) *Totals {
	switch v {
	case VariantTotal:
		return r.Total
	case VariantRealized:
		return r.RealizedTotal
	case VariantUnrealized:
		return r.UnrealizedTotal
	}
	return nil
}

// SetTotals attaches totals to the matching variant slot.
func (r *StatementRecord) SetTotals(t *Totals) {
	switch t.Variant {
	case VariantTotal:
		r.Total = t
	case VariantRealized:
		r.RealizedTotal = t
	case VariantUnrealized:
		r.UnrealizedTotal = t
	}
}

// Float returns a pointer to f, for nullable numeric fields.
func Float(f float64) *float64 {
	return &f
}
