package widetable

import (
	"fmt"

	"github.com/aristath/statements/internal/domain"
	"github.com/aristath/statements/internal/frame"
	"github.com/aristath/statements/internal/table"
	"github.com/rs/zerolog"
)

// Tables holds the three reconstructed wide tables.
type Tables struct {
	Total      *frame.Frame
	Realized   *frame.Frame
	Unrealized *frame.Frame
}

// NewTables creates three empty tables laid out for their variant.
func NewTables() *Tables {
	return &Tables{
		Total:      frame.Empty(Layout(domain.VariantTotal), ColumnType),
		Realized:   frame.Empty(Layout(domain.VariantRealized), ColumnType),
		Unrealized: frame.Empty(Layout(domain.VariantUnrealized), ColumnType),
	}
}

// Get returns the table of variant v.
func (t *Tables) Get(v domain.Variant) *frame.Frame {
	switch v {
	case domain.VariantTotal:
		return t.Total
	case domain.VariantRealized:
		return t.Realized
	case domain.VariantUnrealized:
		return t.Unrealized
	}
	return nil
}

func (t *Tables) set(v domain.Variant, f *frame.Frame) {
	switch v {
	case domain.VariantTotal:
		t.Total = f
	case domain.VariantRealized:
		t.Realized = f
	case domain.VariantUnrealized:
		t.Unrealized = f
	}
}

// Reconstructor rebuilds wide tables from hierarchical statement records.
type Reconstructor struct {
	log zerolog.Logger
}

// NewReconstructor creates a reconstructor.
func NewReconstructor(log zerolog.Logger) *Reconstructor {
	return &Reconstructor{log: log.With().Str("component", "reconstructor").Logger()}
}

// Reconstruct builds one row per record in each variant table, in record
// order. A record missing any of its three totals is left out of all
// three tables so the tables stay aligned.
func (r *Reconstructor) Reconstruct(records []domain.StatementRecord) (*Tables, error) {
	collectors := make(map[domain.Variant]*frame.Collector, len(domain.Variants))
	for _, v := range domain.Variants {
		collectors[v] = frame.NewCollector(Layout(v)...)
	}

	skipped := 0
	for i := range records {
		rec := &records[i]
		if missing := missingVariants(rec); len(missing) > 0 {
			skipped++
			r.log.Warn().
				Str("statement", rec.Statement.Key()).
				Strs("missing", missing).
				Msg("Skipping incomplete statement record")
			continue
		}
		for _, v := range domain.Variants {
			collectors[v].Append(WideRow(rec.Statement, rec.Totals(v)))
		}
	}

	out := &Tables{}
	for _, v := range domain.Variants {
		f, err := collectors[v].Build(ColumnType)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s table: %w", v, err)
		}
		out.set(v, f)
	}

	r.log.Debug().
		Int("statements", out.Total.Len()).
		Int("skipped", skipped).
		Msg("Wide tables reconstructed")
	return out, nil
}

func missingVariants(rec *domain.StatementRecord) []string {
	var missing []string
	for _, v := range domain.Variants {
		if rec.Totals(v) == nil {
			missing = append(missing, string(v))
		}
	}
	return missing
}

// WideRow is the statement row joined with the pivoted security values and
// the variant scalar. The first value seen for a symbol wins; symbols with
// no value stay null.
func WideRow(s domain.Statement, totals *domain.Totals) table.Row {
	row := StatementRow(s)
	for _, sv := range totals.Securities {
		if _, seen := row[sv.Symbol]; seen {
			continue
		}
		row[sv.Symbol] = table.NumberPtr(sv.Value)
	}
	row[totals.Variant.ScalarColumn()] = table.NumberPtr(totals.Value)
	return row
}
