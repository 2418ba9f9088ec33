// Package analytics answers portfolio performance queries over the wide
// statement tables: gains, interest, dividends, security rankings and
// per-security time series.
package analytics

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aristath/statements/internal/frame"
	"github.com/aristath/statements/internal/modules/widetable"
	"github.com/aristath/statements/internal/utils"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrNoData is returned when the account/date filter matches no rows.
	ErrNoData = errors.New("no data found")
	// ErrUnknownSecurity is returned for a security the table has no column for.
	ErrUnknownSecurity = errors.New("unknown security")
	// ErrInvalidFilter is returned for filters that cannot be evaluated.
	ErrInvalidFilter = errors.New("invalid filter")
)

// gainsTerms are the NAV columns of the total gains formula with their sign.
var gainsTerms = []struct {
	column string
	sign   float64
}{
	{"ending_value", 1},
	{"transferred_pl_adjustments", -1},
	{"deposits_and_withdrawals", -1},
	{"dividends", 1},
	{"starting_value", -1},
	{"dividend_accruals", 1},
	{"interest", -1},
	{"interest_accruals", -1},
	{"other_fee", 1},
}

// Ranked is one security of a ranking.
type Ranked struct {
	Security string  `json:"security"`
	Value    float64 `json:"value"`
}

// Series is a per-date time series. Date and Value are parallel.
type Series struct {
	Date  []string  `json:"date"`
	Value []float64 `json:"value"`
}

// Engine evaluates queries against one wide table.
type Engine struct {
	schema *widetable.Schema
}

// NewEngine creates a query engine using schema to tell metadata columns
// from security columns.
func NewEngine(schema *widetable.Schema) *Engine {
	return &Engine{schema: schema}
}

// Accounts lists the distinct account names in first-seen order.
func (e *Engine) Accounts(t *frame.Frame) []string {
	return t.Distinct("account_name")
}

// Securities lists the non-metadata columns in table order.
func (e *Engine) Securities(t *frame.Frame) []string {
	securities := []string{}
	for _, c := range t.Columns() {
		if !e.schema.IsMetadata(c) {
			securities = append(securities, c)
		}
	}
	return securities
}

// TotalGains sums ending − transferred − deposits + dividends − starting +
// dividend accruals − interest − interest accruals + other fees.
func (e *Engine) TotalGains(t *frame.Frame, accounts []string, end string) (float64, error) {
	rows, err := e.atEnd(t, accounts, end)
	if err != nil {
		return 0, err
	}
	terms := make([]float64, len(gainsTerms))
	for i, term := range gainsTerms {
		terms[i] = term.sign * t.Sum(term.column, rows)
	}
	return floats.Sum(terms), nil
}

// RealizedGains sums realized_pl.
func (e *Engine) RealizedGains(t *frame.Frame, accounts []string, end string) (float64, error) {
	return e.sumColumns(t, accounts, end, "realized_pl")
}

// UnrealizedGains sums change_in_unrealized_pl.
func (e *Engine) UnrealizedGains(t *frame.Frame, accounts []string, end string) (float64, error) {
	return e.sumColumns(t, accounts, end, "change_in_unrealized_pl")
}

// Interest sums interest.
func (e *Engine) Interest(t *frame.Frame, accounts []string, end string) (float64, error) {
	return e.sumColumns(t, accounts, end, "interest")
}

// Dividends sums dividends plus dividend accruals.
func (e *Engine) Dividends(t *frame.Frame, accounts []string, end string) (float64, error) {
	return e.sumColumns(t, accounts, end, "dividends", "dividend_accruals")
}

// TopDown ranks securities by summed value, highest first.
func (e *Engine) TopDown(t *frame.Frame, accounts []string, end string) ([]Ranked, error) {
	return e.rank(t, accounts, end, func(a, b float64) bool { return a > b })
}

// BottomUp ranks securities by summed value, lowest first.
func (e *Engine) BottomUp(t *frame.Frame, accounts []string, end string) ([]Ranked, error) {
	return e.rank(t, accounts, end, func(a, b float64) bool { return a < b })
}

// TimeSeries sums security per statement end date between start and end
// inclusive, dates ascending.
func (e *Engine) TimeSeries(t *frame.Frame, security string, accounts []string, start, end string) (Series, error) {
	if t.Floats(security) == nil || e.schema.IsMetadata(security) {
		return Series{}, fmt.Errorf("%w: %s", ErrUnknownSecurity, security)
	}

	from, err := normalizeDate(start)
	if err != nil {
		return Series{}, err
	}
	to, err := normalizeDate(end)
	if err != nil {
		return Series{}, err
	}

	rows := t.Where(
		frame.In("account_name", accounts),
		frame.Between("statement_end", from, to),
	)
	if len(rows) == 0 {
		return Series{}, fmt.Errorf("%w for accounts %v from %s to %s", ErrNoData, accounts, from, to)
	}

	byDate := t.GroupSum("statement_end", security, rows)
	series := Series{Date: make([]string, 0, len(byDate)), Value: make([]float64, 0, len(byDate))}
	for date := range byDate {
		series.Date = append(series.Date, date)
	}
	sort.Strings(series.Date)
	for _, date := range series.Date {
		series.Value = append(series.Value, byDate[date])
	}
	return series, nil
}

func (e *Engine) rank(t *frame.Frame, accounts []string, end string, less func(a, b float64) bool) ([]Ranked, error) {
	rows, err := e.atEnd(t, accounts, end)
	if err != nil {
		return nil, err
	}

	securities := e.Securities(t)
	ranked := make([]Ranked, len(securities))
	for i, security := range securities {
		ranked[i] = Ranked{Security: security, Value: t.Sum(security, rows)}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i].Value, ranked[j].Value) })
	return ranked, nil
}

func (e *Engine) sumColumns(t *frame.Frame, accounts []string, end string, columns ...string) (float64, error) {
	rows, err := e.atEnd(t, accounts, end)
	if err != nil {
		return 0, err
	}
	sums := make([]float64, len(columns))
	for i, c := range columns {
		sums[i] = t.Sum(c, rows)
	}
	return floats.Sum(sums), nil
}

// atEnd returns the rows of accounts whose statement ends on end.
func (e *Engine) atEnd(t *frame.Frame, accounts []string, end string) ([]int, error) {
	date, err := normalizeDate(end)
	if err != nil {
		return nil, err
	}
	rows := t.Where(
		frame.In("account_name", accounts),
		frame.Equals("statement_end", date),
	)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w for accounts %v on %s", ErrNoData, accounts, date)
	}
	return rows, nil
}

func normalizeDate(s string) (string, error) {
	date, err := utils.NormalizeDate(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return date, nil
}
