package statements

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/aristath/statements/internal/domain"
	"github.com/aristath/statements/internal/frame"
	"github.com/aristath/statements/internal/modules/widetable"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// variantSources names the trade column summed for each variant.
var variantSources = map[domain.Variant]string{
	domain.VariantRealized:   "Realized Total",
	domain.VariantUnrealized: "Unrealized Total",
	domain.VariantTotal:      "Total",
}

// PreparedFile returns the prepared CSV file name of a variant.
func PreparedFile(v domain.Variant) string {
	return string(v) + ".csv"
}

// Prepared accumulates one wide row per statement for each variant.
type Prepared struct {
	rows map[domain.Variant]*frame.Collector
	log  zerolog.Logger
}

// NewPrepared creates an empty set of prepared tables.
func NewPrepared(log zerolog.Logger) *Prepared {
	p := &Prepared{
		rows: make(map[domain.Variant]*frame.Collector, len(domain.Variants)),
		log:  log.With().Str("component", "prepared_builder").Logger(),
	}
	for _, v := range domain.Variants {
		p.rows[v] = frame.NewCollector(widetable.Layout(v)...)
	}
	return p
}

// Table builds the prepared table of variant v from the rows added so far.
func (p *Prepared) Table(v domain.Variant) (*frame.Frame, error) {
	rows, ok := p.rows[v]
	if !ok {
		return nil, fmt.Errorf("unknown variant %s", v)
	}
	return rows.Build(widetable.ColumnType)
}

// Len returns the number of statements added.
func (p *Prepared) Len() int {
	return p.rows[domain.VariantTotal].Len()
}

// Add appends the rows of one parsed statement.
func (p *Prepared) Add(parsed *Parsed, nav domain.NAV) error {
	s := StatementFromParsed(parsed, nav)
	if s.Start == "" || s.End == "" || s.AccountID == "" {
		return fmt.Errorf("statement has no period or account id")
	}

	for _, v := range domain.Variants {
		totals, err := p.totals(parsed.Trades, v)
		if err != nil {
			return fmt.Errorf("statement %s: %w", s.Key(), err)
		}
		p.rows[v].Append(widetable.WideRow(s, totals))
	}

	p.log.Debug().
		Str("account", s.AccountID).
		Str("end", s.End).
		Msg("Statement prepared")
	return nil
}

// totals sums the variant's source column per underlying. The scalar is the
// sum over every trade row. Underlyings with no figure keep a null value.
func (p *Prepared) totals(trades *frame.Frame, v domain.Variant) (*domain.Totals, error) {
	source := variantSources[v]
	if !trades.HasColumn(source) {
		return nil, fmt.Errorf("trade data has no %q column", source)
	}

	var all []decimal.Decimal
	bySymbol := make(map[string][]decimal.Decimal)
	var order []string

	for i := 0; i < trades.Len(); i++ {
		underlying := trades.Cell("underlying", i).String()
		if underlying == "" {
			underlying = trades.Cell("original_symbol", i).String()
		}
		symbol := widetable.NormalizeSymbol(underlying)
		if !widetable.IsSecuritySymbol(symbol) {
			p.log.Warn().Str("symbol", underlying).Msg("Skipping trade row with unusable symbol")
			continue
		}
		if _, ok := bySymbol[symbol]; !ok {
			bySymbol[symbol] = nil
			order = append(order, symbol)
		}

		cell := trades.Cell(source, i)
		if cell.IsNull() {
			continue
		}
		d, err := parseDecimal(cell.String())
		if err != nil {
			p.log.Warn().Err(err).Str("symbol", symbol).Str("column", source).Msg("Could not convert trade value")
			continue
		}
		bySymbol[symbol] = append(bySymbol[symbol], d)
		all = append(all, d)
	}

	sort.Strings(order)
	totals := &domain.Totals{Variant: v, Value: domain.Float(sumAmounts(all))}
	for _, symbol := range order {
		sv := domain.SecurityValue{Symbol: symbol}
		if values := bySymbol[symbol]; len(values) > 0 {
			sv.Value = domain.Float(sumAmounts(values))
		}
		totals.Securities = append(totals.Securities, sv)
	}
	return totals, nil
}

// WriteDir writes total.csv, realized_total.csv and unrealized_total.csv.
func (p *Prepared) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create prepared directory: %w", err)
	}
	for _, v := range domain.Variants {
		path := filepath.Join(dir, PreparedFile(v))
		t, err := p.Table(v)
		if err != nil {
			return fmt.Errorf("failed to build %s table: %w", v, err)
		}
		err = frame.WriteCSVFile(path, t)
		t.Release()
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	p.log.Info().Str("dir", dir).Int("statements", p.Len()).Msg("Prepared tables written")
	return nil
}

// StatementFromParsed maps parser metadata and NAV figures onto a statement.
func StatementFromParsed(parsed *Parsed, nav domain.NAV) domain.Statement {
	return domain.Statement{
		Start:         parsed.Statement["start_date"],
		End:           parsed.Statement["end_date"],
		AccountID:     parsed.Account["id"],
		Broker:        parsed.Statement["broker"],
		BrokerAddress: parsed.Statement["broker_address"],
		DateGenerated: parsed.Statement["date_generated"],
		Title:         parsed.Statement["title"],
		AccountHolder: parsed.Account["holder"],
		AccountType:   parsed.Account["type"],
		CustomerType:  parsed.Account["customer_type"],
		Capabilities:  parsed.Account["capabilities"],
		BaseCurrency:  parsed.Account["base_currency"],
		NAV:           nav,
	}
}
