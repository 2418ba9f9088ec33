package frame

import (
	"github.com/apache/arrow/go/v17/arrow/array"
	"gonum.org/v1/gonum/floats"
)

// Operator is the comparison a Filter applies to a String column.
type Operator int

const (
	// OpEquals keeps rows equal to Values[0].
	OpEquals Operator = iota
	// OpIn keeps rows equal to any of Values.
	OpIn
	// OpBetween keeps rows within Values[0] and Values[1] inclusive.
	OpBetween
)

// Filter is one predicate on a String column. Null cells never match.
type Filter struct {
	Field    string
	Operator Operator
	Values   []string
}

// Equals matches rows whose field equals value.
func Equals(field, value string) Filter {
	return Filter{Field: field, Operator: OpEquals, Values: []string{value}}
}

// In matches rows whose field is one of values.
func In(field string, values []string) Filter {
	return Filter{Field: field, Operator: OpIn, Values: values}
}

// Between matches rows whose field sorts within [from, to].
func Between(field, from, to string) Filter {
	return Filter{Field: field, Operator: OpBetween, Values: []string{from, to}}
}

// Where returns the indices of the rows passing every filter, ascending.
// A filter on a missing or non-text column matches nothing.
func (f *Frame) Where(filters ...Filter) []int {
	pass := make([]bool, f.Len())
	for i := range pass {
		pass[i] = true
	}

	for _, filter := range filters {
		col := f.Strings(filter.Field)
		if col == nil {
			return nil
		}
		applyFilter(col, filter, pass)
	}

	rows := make([]int, 0, len(pass))
	for i, ok := range pass {
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}

func applyFilter(col *array.String, filter Filter, pass []bool) {
	var match func(string) bool
	switch filter.Operator {
	case OpEquals:
		want := filter.Values[0]
		match = func(s string) bool { return s == want }
	case OpIn:
		set := make(map[string]struct{}, len(filter.Values))
		for _, v := range filter.Values {
			set[v] = struct{}{}
		}
		match = func(s string) bool {
			_, ok := set[s]
			return ok
		}
	case OpBetween:
		from, to := filter.Values[0], filter.Values[1]
		match = func(s string) bool { return s >= from && s <= to }
	default:
		match = func(string) bool { return false }
	}

	for i := 0; i < col.Len(); i++ {
		if pass[i] && (col.IsNull(i) || !match(col.Value(i))) {
			pass[i] = false
		}
	}
}

// Float returns row i of a numeric column; nulls and missing columns read 0.
func (f *Frame) Float(name string, i int) float64 {
	col := f.Floats(name)
	if col == nil || col.IsNull(i) {
		return 0
	}
	return col.Value(i)
}

// Sum adds a numeric column over rows, counting nulls as zero. A missing
// or non-numeric column sums to zero.
func (f *Frame) Sum(name string, rows []int) float64 {
	col := f.Floats(name)
	if col == nil {
		return 0
	}
	values := make([]float64, 0, len(rows))
	for _, i := range rows {
		if col.IsValid(i) {
			values = append(values, col.Value(i))
		}
	}
	return floats.Sum(values)
}

// GroupSum sums a numeric column over rows grouped by a String column.
// Rows with a null key are left out.
func (f *Frame) GroupSum(key, value string, rows []int) map[string]float64 {
	keys := f.Strings(key)
	out := make(map[string]float64)
	if keys == nil {
		return out
	}
	groups := make(map[string][]float64)
	for _, i := range rows {
		if keys.IsNull(i) {
			continue
		}
		k := keys.Value(i)
		groups[k] = append(groups[k], f.Float(value, i))
	}
	for k, values := range groups {
		out[k] = floats.Sum(values)
	}
	return out
}

// Distinct returns the non-empty values of a String column in first-seen
// order.
func (f *Frame) Distinct(name string) []string {
	out := []string{}
	col := f.Strings(name)
	if col == nil {
		return out
	}
	seen := make(map[string]struct{})
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			continue
		}
		v := col.Value(i)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
