package frame

import (
	"fmt"
	"sort"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/aristath/statements/internal/table"
)

// Collector gathers rows until their full column set is known, then builds
// the frame in one pass.
type Collector struct {
	columns []string
	known   map[string]struct{}
	rows    []table.Row
}

// NewCollector starts a collector with a fixed leading column order.
func NewCollector(columns ...string) *Collector {
	c := &Collector{known: make(map[string]struct{}, len(columns))}
	for _, col := range columns {
		c.addColumn(col)
	}
	return c
}

// Append adds a row. Keys that are not columns yet are appended as new
// columns in sorted order so the layout does not depend on map iteration.
func (c *Collector) Append(row table.Row) {
	var unknown []string
	for k := range row {
		if _, ok := c.known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		c.addColumn(k)
	}
	c.rows = append(c.rows, row)
}

// AppendValues adds a row given positionally against cols. The first value
// of a repeated column wins.
func (c *Collector) AppendValues(cols []string, values []table.Value) error {
	if len(cols) != len(values) {
		return fmt.Errorf("got %d values for %d columns", len(values), len(cols))
	}
	row := make(table.Row, len(cols))
	for i, col := range cols {
		c.addColumn(col)
		if _, seen := row[col]; !seen {
			row[col] = values[i]
		}
	}
	c.rows = append(c.rows, row)
	return nil
}

// Len returns the number of rows collected.
func (c *Collector) Len() int { return len(c.rows) }

// Columns returns the column names in order.
func (c *Collector) Columns() []string {
	out := make([]string, len(c.columns))
	copy(out, c.columns)
	return out
}

// Build writes the collected rows into an arrow record typed by types.
// A text cell in a Float64 column that does not parse as a number fails
// the build.
func (c *Collector) Build(types TypeFunc) (*Frame, error) {
	schema := Schema(c.columns, types)
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	for i, col := range c.columns {
		switch fb := b.Field(i).(type) {
		case *array.Float64Builder:
			fb.Reserve(len(c.rows))
			for r, row := range c.rows {
				v := row.Get(col)
				if v.IsNull() {
					fb.AppendNull()
					continue
				}
				n, ok := v.Float()
				if !ok {
					return nil, fmt.Errorf("row %d column %s: %q is not numeric", r+1, col, v.String())
				}
				fb.Append(n)
			}
		case *array.StringBuilder:
			fb.Reserve(len(c.rows))
			for _, row := range c.rows {
				v := row.Get(col)
				if v.IsNull() {
					fb.AppendNull()
					continue
				}
				fb.Append(v.String())
			}
		default:
			return nil, fmt.Errorf("column %s: unsupported type %s", col, schema.Field(i).Type)
		}
	}

	return New(b.NewRecord()), nil
}

func (c *Collector) addColumn(name string) {
	if _, ok := c.known[name]; ok {
		return
	}
	c.known[name] = struct{}{}
	c.columns = append(c.columns, name)
}
