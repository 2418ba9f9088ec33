package table

// Row maps column names to cells. A missing key reads as null.
type Row map[string]Value

// Get returns the cell for col, or null.
func (r Row) Get(col string) Value {
	return r[col]
}
