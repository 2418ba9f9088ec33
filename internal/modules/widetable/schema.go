// Package widetable converts between wide statement tables (one row per
// statement, metadata columns followed by one column per security) and the
// normalized statement/totals/security records kept in the store.
package widetable

import (
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
)

// StatementColumns are the statement metadata columns, in wide-table order.
var StatementColumns = []string{
	"statement_start",
	"statement_end",
	"account_name",
	"broker",
	"broker_address",
	"date_generated",
	"title",
	"account_holder",
	"account_type",
	"customer_type",
	"account_capabilities",
	"base_currency",
}

// NAVColumns are the Change in NAV columns carried on every statement row.
var NAVColumns = []string{
	"starting_value",
	"ending_value",
	"realized_pl",
	"change_in_unrealized_pl",
	"transferred_pl_adjustments",
	"deposits_and_withdrawals",
	"position_transfers",
	"dividends",
	"withholding_tax",
	"dividend_accruals",
	"interest",
	"interest_accruals",
	"other_fee",
	"time_weighted_rr",
}

// ScalarColumns carry the per-variant totals scalar.
var ScalarColumns = []string{"total_total", "realized_total", "unrealized_total"}

// ScalarPosition is the column index the variant scalar is placed at.
const ScalarPosition = 3

var textColumns, numericColumns = columnSet(StatementColumns), columnSet(NAVColumns, ScalarColumns)

func columnSet(lists ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, cols := range lists {
		for _, c := range cols {
			set[c] = struct{}{}
		}
	}
	return set
}

// ColumnType is the arrow type of a wide-table column. Statement columns
// are String; NAV, scalar and security columns are Float64. Anything else
// loads as String so an unrecognized column never fails a read.
func ColumnType(col string) arrow.DataType {
	if _, ok := textColumns[col]; ok {
		return arrow.BinaryTypes.String
	}
	if _, ok := numericColumns[col]; ok || IsSecuritySymbol(col) {
		return arrow.PrimitiveTypes.Float64
	}
	return arrow.BinaryTypes.String
}

// Schema is the enumerated set of metadata columns. Every other column whose
// name is a valid security identifier is a security column.
type Schema struct {
	columns []string
	members map[string]struct{}
}

// NewSchema creates a schema from an explicit metadata column list.
func NewSchema(columns ...string) *Schema {
	s := &Schema{members: make(map[string]struct{}, len(columns))}
	for _, c := range columns {
		if _, ok := s.members[c]; ok {
			continue
		}
		s.members[c] = struct{}{}
		s.columns = append(s.columns, c)
	}
	return s
}

// DefaultSchema returns the statement, NAV and scalar columns.
func DefaultSchema() *Schema {
	cols := make([]string, 0, len(StatementColumns)+len(NAVColumns)+len(ScalarColumns))
	cols = append(cols, StatementColumns...)
	cols = append(cols, NAVColumns...)
	cols = append(cols, ScalarColumns...)
	return NewSchema(cols...)
}

// Columns returns the metadata columns in schema order.
func (s *Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// IsMetadata reports whether col is a metadata column.
func (s *Schema) IsMetadata(col string) bool {
	_, ok := s.members[col]
	return ok
}

// IsSecurity reports whether col is a security column.
func (s *Schema) IsSecurity(col string) bool {
	return !s.IsMetadata(col) && IsSecuritySymbol(col)
}

// Classify partitions cols, preserving order. Columns that are neither
// metadata nor a valid security identifier are returned in dropped.
func (s *Schema) Classify(cols []string) (metadata, securities, dropped []string) {
	for _, c := range cols {
		switch {
		case s.IsMetadata(c):
			metadata = append(metadata, c)
		case IsSecuritySymbol(c):
			securities = append(securities, c)
		default:
			dropped = append(dropped, c)
		}
	}
	return metadata, securities, dropped
}

// IsSecuritySymbol reports whether name matches ^[A-Z0-9_]+$ with at least
// one letter or digit.
func IsSecuritySymbol(name string) bool {
	if name == "" {
		return false
	}
	alnum := false
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			alnum = true
		case r == '_':
		default:
			return false
		}
	}
	return alnum
}

// NormalizeSymbol turns an underlying into a security column name:
// uppercased, with every character outside [A-Z0-9_] replaced by '_'.
func NormalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var b strings.Builder
	b.Grow(len(symbol))
	for _, r := range symbol {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
