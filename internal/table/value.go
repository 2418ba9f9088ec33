// Package table provides the row type passed between the statement parser,
// ingestion and the arrow-backed frames: rows keyed by column name holding
// nullable text or number cells.
package table

import (
	"strconv"
)

// Kind is the dynamic type of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindNumber
)

// Value is a nullable cell holding either text or a number.
// The zero Value is null.
type Value struct {
	kind Kind
	text string
	num  float64
}

// Null returns the null value.
func Null() Value { return Value{} }

// Text wraps a string cell.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number wraps a numeric cell.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// NumberPtr wraps a nullable number; nil becomes null.
func NumberPtr(f *float64) Value {
	if f == nil {
		return Null()
	}
	return Number(*f)
}

// Kind reports the dynamic type.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the cell is empty.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric content. Text cells holding a number are
// converted; anything else reports false.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		f, err := strconv.ParseFloat(v.text, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// FloatOrZero returns the numeric content or 0.
func (v Value) FloatOrZero() float64 {
	f, _ := v.Float()
	return f
}

// FloatPtr returns the numeric content as a nullable pointer.
func (v Value) FloatPtr() *float64 {
	f, ok := v.Float()
	if !ok {
		return nil
	}
	return &f
}

// String renders the cell; null renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return ""
}

// Equal compares kind and content.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.text == o.text && v.num == o.num
}
