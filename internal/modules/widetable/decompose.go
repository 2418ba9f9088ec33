package widetable

import (
	"fmt"

	"github.com/aristath/statements/internal/domain"
	"github.com/aristath/statements/internal/frame"
)

// Split is a wide table partitioned into its metadata and security columns.
// Row i of Metadata and row i of Securities describe the same statement.
type Split struct {
	Metadata   *frame.Frame
	Securities *frame.Frame
	// Dropped lists columns that were neither metadata nor securities.
	Dropped []string
}

// Decompose partitions f using schema. Both halves share f's arrays.
func Decompose(f *frame.Frame, schema *Schema) Split {
	metadata, securities, dropped := schema.Classify(f.Columns())
	return Split{
		Metadata:   f.Select(metadata...),
		Securities: f.Select(securities...),
		Dropped:    dropped,
	}
}

// SecurityValues returns row i of the security table as one value per
// security column, nulls included.
func (s Split) SecurityValues(i int) []domain.SecurityValue {
	cols := s.Securities.Columns()
	out := make([]domain.SecurityValue, 0, len(cols))
	for _, c := range cols {
		out = append(out, domain.SecurityValue{Symbol: c, Value: s.Securities.Cell(c, i).FloatPtr()})
	}
	return out
}

// Scalar returns the variant scalar of metadata row i (nil when absent).
func (s Split) Scalar(i int, v domain.Variant) (*float64, error) {
	cell := s.Metadata.Cell(v.ScalarColumn(), i)
	if cell.IsNull() {
		return nil, nil
	}
	f, ok := cell.Float()
	if !ok {
		return nil, fmt.Errorf("column %s: %q is not numeric", v.ScalarColumn(), cell.String())
	}
	return &f, nil
}
