// Package frame holds wide statement tables as Apache Arrow records: one
// nullable column per metadata field or security, typed String or Float64.
// Frames are immutable once built; row filters and sums run directly over
// the column arrays.
package frame

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/aristath/statements/internal/table"
)

// TypeFunc assigns the arrow type of a column by name.
type TypeFunc func(column string) arrow.DataType

// AllText types every column as String.
func AllText(string) arrow.DataType { return arrow.BinaryTypes.String }

// Frame is a read-only wide table backed by one arrow record.
type Frame struct {
	rec   arrow.Record
	index map[string]int
}

// New wraps rec. The frame takes over the caller's reference.
func New(rec arrow.Record) *Frame {
	f := &Frame{rec: rec, index: make(map[string]int, rec.NumCols())}
	for i, field := range rec.Schema().Fields() {
		if _, dup := f.index[field.Name]; !dup {
			f.index[field.Name] = i
		}
	}
	return f
}

// Empty returns a frame with the given columns and no rows.
func Empty(columns []string, types TypeFunc) *Frame {
	return empty(Schema(columns, types))
}

func empty(schema *arrow.Schema) *Frame {
	cols := make([]arrow.Array, schema.NumFields())
	for i, field := range schema.Fields() {
		cols[i] = array.MakeArrayOfNull(memory.DefaultAllocator, field.Type, 0)
	}
	rec := array.NewRecord(schema, cols, 0)
	for _, c := range cols {
		c.Release()
	}
	return New(rec)
}

// Schema builds the nullable arrow schema of columns.
func Schema(columns []string, types TypeFunc) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c, Type: types(c), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// Record returns the underlying record. It stays owned by the frame.
func (f *Frame) Record() arrow.Record { return f.rec }

// Release drops the frame's reference to its record.
func (f *Frame) Release() { f.rec.Release() }

// Len returns the number of rows.
func (f *Frame) Len() int { return int(f.rec.NumRows()) }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	fields := f.rec.Schema().Fields()
	out := make([]string, len(fields))
	for i, field := range fields {
		out[i] = field.Name
	}
	return out
}

// HasColumn reports whether the column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the array of a column, or nil.
func (f *Frame) Column(name string) arrow.Array {
	i, ok := f.index[name]
	if !ok {
		return nil
	}
	return f.rec.Column(i)
}

// Floats returns a Float64 column, or nil when it is missing or not numeric.
func (f *Frame) Floats(name string) *array.Float64 {
	col, _ := f.Column(name).(*array.Float64)
	return col
}

// Strings returns a String column, or nil when it is missing or not text.
func (f *Frame) Strings(name string) *array.String {
	col, _ := f.Column(name).(*array.String)
	return col
}

// Cell returns row i of a column as a table value; missing columns are null.
func (f *Frame) Cell(name string, i int) table.Value {
	switch col := f.Column(name).(type) {
	case *array.Float64:
		if col.IsValid(i) {
			return table.Number(col.Value(i))
		}
	case *array.String:
		if col.IsValid(i) {
			return table.Text(col.Value(i))
		}
	}
	return table.Null()
}

// Row returns row i as a row map holding its non-null cells.
func (f *Frame) Row(i int) table.Row {
	row := make(table.Row, f.rec.NumCols())
	for name := range f.index {
		if v := f.Cell(name, i); !v.IsNull() {
			row[name] = v
		}
	}
	return row
}

// Select returns a frame restricted to cols, sharing their arrays.
// Missing columns are skipped.
func (f *Frame) Select(cols ...string) *Frame {
	schema := f.rec.Schema()
	fields := make([]arrow.Field, 0, len(cols))
	arrays := make([]arrow.Array, 0, len(cols))
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		i, ok := f.index[c]
		if !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		fields = append(fields, schema.Field(i))
		arrays = append(arrays, f.rec.Column(i))
	}
	return New(array.NewRecord(arrow.NewSchema(fields, nil), arrays, f.rec.NumRows()))
}

// HConcat joins two frames side by side. When a column appears in both, the
// left frame's column wins.
func HConcat(left, right *Frame) (*Frame, error) {
	if left.Len() != right.Len() {
		return nil, fmt.Errorf("cannot join tables with %d and %d rows", left.Len(), right.Len())
	}

	fields := append([]arrow.Field{}, left.rec.Schema().Fields()...)
	arrays := append([]arrow.Array{}, left.rec.Columns()...)
	for i, field := range right.rec.Schema().Fields() {
		if left.HasColumn(field.Name) {
			continue
		}
		fields = append(fields, field)
		arrays = append(arrays, right.rec.Column(i))
	}
	return New(array.NewRecord(arrow.NewSchema(fields, nil), arrays, left.rec.NumRows())), nil
}
