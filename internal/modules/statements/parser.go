// Package statements reads brokerage statement exports: the statement and
// account sections, the realized/unrealized performance summary trade rows
// and the Change in NAV figures. It also turns parsed statements into the
// prepared wide tables consumed by ingestion.
package statements

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aristath/statements/internal/frame"
	"github.com/aristath/statements/internal/modules/symbols"
	"github.com/aristath/statements/internal/table"
	"github.com/aristath/statements/internal/utils"
	"github.com/rs/zerolog"
)

const (
	sectionStatement   = "Statement"
	sectionAccountInfo = "Account Information"
	sectionPerformance = "Realized & Unrealized Performance Summary"
	rowTypeHeader      = "Header"
)

// ErrNoTradeData is returned when a statement has no eligible trade rows.
var ErrNoTradeData = errors.New("no matching trade data found in the CSV")

// tradeCategories are the asset categories whose rows are kept.
var tradeCategories = []string{"Stocks", "Equity and Index Options", "Futures"}

// statementLabels maps Statement section labels to metadata keys.
var statementLabels = map[string]string{
	"BrokerName":    "broker",
	"BrokerAddress": "broker_address",
	"WhenGenerated": "date_generated",
	"Title":         "title",
}

// accountLabels maps Account Information labels to metadata keys.
var accountLabels = map[string]string{
	"Name":                 "holder",
	"Account":              "id",
	"Account Type":         "type",
	"Customer Type":        "customer_type",
	"Account Capabilities": "capabilities",
	"Base Currency":        "base_currency",
}

// ParseError aggregates every row that failed symbol classification.
type ParseError struct {
	Rows []string
}

func (e *ParseError) Error() string {
	return "failed to process some futures symbols:\n" + strings.Join(e.Rows, "\n")
}

// Parsed is the result of parsing one statement export.
type Parsed struct {
	// Trades holds the performance summary rows plus the symbol components,
	// every column as text.
	Trades *frame.Frame
	// Statement holds start_date, end_date, broker, broker_address, date_generated, title.
	Statement map[string]string
	// Account holds holder, id, type, customer_type, capabilities, base_currency.
	Account map[string]string
}

// Parser is the two-pass statement parser.
type Parser struct {
	log zerolog.Logger
}

// NewParser creates a statement parser.
func NewParser(log zerolog.Logger) *Parser {
	return &Parser{log: log.With().Str("component", "statement_parser").Logger()}
}

// ParseFile parses the statement export at path.
func (p *Parser) ParseFile(path string) (*Parsed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement %s: %w", path, err)
	}
	parsed, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return parsed, nil
}

// Parse runs the metadata pass and then the trade pass over data.
func (p *Parser) Parse(data []byte) (*Parsed, error) {
	statementInfo, accountInfo, err := p.scanMetadata(data)
	if err != nil {
		return nil, err
	}

	trades, err := p.scanTrades(data)
	if err != nil {
		return nil, err
	}

	p.log.Debug().
		Str("account", accountInfo["id"]).
		Str("start", statementInfo["start_date"]).
		Str("end", statementInfo["end_date"]).
		Int("trades", trades.Len()).
		Msg("Statement parsed")

	return &Parsed{Trades: trades, Statement: statementInfo, Account: accountInfo}, nil
}

func newReader(data []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r
}

// scanMetadata reads the leading Statement / Account Information sections and
// stops at the first row that belongs to neither.
func (p *Parser) scanMetadata(data []byte) (map[string]string, map[string]string, error) {
	statementInfo := make(map[string]string)
	accountInfo := make(map[string]string)

	reader := newReader(data)
	for line := 1; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read statement line %d: %w", line, err)
		}

		if !inMetadataSection(row) {
			break
		}
		if len(row) < 2 || row[1] == rowTypeHeader {
			continue
		}

		if hasCell(row, sectionStatement) {
			if len(row) >= 4 && row[0] == sectionStatement && row[2] == "Period" {
				start, end, err := parsePeriod(row[3])
				if err != nil {
					p.log.Warn().Err(err).Int("line", line).Msg("Could not parse statement period")
				} else {
					statementInfo["start_date"] = start
					statementInfo["end_date"] = end
				}
			} else if label, value, ok := p.parseStatementInfo(row, line); ok {
				setDefault(statementInfo, label, value)
			}
		}

		if hasCell(row, sectionAccountInfo) {
			if label, value, ok := p.parseAccountInfo(row, line); ok {
				setDefault(accountInfo, label, value)
			}
		}
	}

	return statementInfo, accountInfo, nil
}

func (p *Parser) parseStatementInfo(row []string, line int) (string, string, bool) {
	if len(row) < 4 || row[0] != sectionStatement {
		return "", "", false
	}
	label, ok := statementLabels[row[2]]
	if !ok {
		p.log.Debug().Str("label", row[2]).Int("line", line).Msg("Ignoring unknown statement label")
		return "", "", false
	}
	if row[2] != "WhenGenerated" {
		return label, row[3], true
	}

	fields := strings.Fields(row[3])
	if len(fields) < 2 {
		p.log.Warn().Str("value", row[3]).Int("line", line).Msg("Could not parse generation timestamp")
		return "", "", false
	}
	timezone := fields[len(fields)-1]
	ts, err := utils.NormalizeTimestamp(strings.Join(fields[:len(fields)-1], " "))
	if err != nil {
		p.log.Warn().Err(err).Int("line", line).Msg("Could not parse generation timestamp")
		return "", "", false
	}
	return label, ts + " " + timezone, true
}

func (p *Parser) parseAccountInfo(row []string, line int) (string, string, bool) {
	if len(row) < 4 || row[0] != sectionAccountInfo {
		return "", "", false
	}
	label, ok := accountLabels[row[2]]
	if !ok {
		p.log.Debug().Str("label", row[2]).Int("line", line).Msg("Ignoring unknown account label")
		return "", "", false
	}
	return label, row[3], true
}

// scanTrades reads every performance summary data row of an allowed asset
// category. Classification errors are collected across all rows. A row cut
// short before its symbol is classified with an empty symbol, which only
// fails for futures.
func (p *Parser) scanTrades(data []byte) (*frame.Frame, error) {
	var (
		headers []string
		errs    []string
		matched int
	)
	trades := frame.NewCollector()

	reader := newReader(data)
	for line := 1; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read statement line %d: %w", line, err)
		}

		if len(row) >= 2 && strings.Contains(row[0], sectionPerformance) && row[1] == rowTypeHeader {
			headers = row
			continue
		}
		if headers == nil || len(row) < 3 || !strings.Contains(row[0], sectionPerformance) {
			continue
		}

		category := row[2]
		if !isTradeCategory(category) {
			continue
		}
		symbol := ""
		if len(row) > 3 {
			symbol = row[3]
		}

		components, err := symbols.Classify(symbol, symbols.InstrumentFromCategory(category), category)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Row %d: %v", line, err))
			p.log.Error().Err(err).Int("line", line).Str("symbol", symbol).Msg("Failed to classify symbol")
			continue
		}

		cols := make([]string, 0, len(headers)+len(symbols.Columns))
		values := make([]table.Value, 0, cap(cols))
		for i, h := range headers {
			cols = append(cols, h)
			if i < len(row) && row[i] != "" {
				values = append(values, table.Text(row[i]))
			} else {
				values = append(values, table.Null())
			}
		}
		for i, v := range components.Values() {
			cols = append(cols, symbols.Columns[i])
			if v != "" {
				values = append(values, table.Text(v))
			} else {
				values = append(values, table.Null())
			}
		}
		if err := trades.AppendValues(cols, values); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		matched++
	}

	if len(errs) > 0 {
		return nil, &ParseError{Rows: errs}
	}
	if matched == 0 {
		return nil, ErrNoTradeData
	}
	return trades.Build(frame.AllText)
}

// parsePeriod parses "January 1, 2024 - March 31, 2024" or a single date.
func parsePeriod(value string) (string, string, error) {
	value = strings.TrimSpace(strings.Trim(value, `"`))
	parts := strings.SplitN(value, " - ", 2)

	start, err := utils.NormalizeDate(parts[0])
	if err != nil {
		return "", "", err
	}
	if len(parts) == 1 {
		return start, start, nil
	}
	end, err := utils.NormalizeDate(parts[1])
	if err != nil {
		return "", "", err
	}
	return start, end, nil
}

func inMetadataSection(row []string) bool {
	for _, cell := range row {
		if strings.Contains(cell, sectionStatement) || strings.Contains(cell, "Account Info") {
			return true
		}
	}
	return false
}

func hasCell(row []string, value string) bool {
	for _, cell := range row {
		if cell == value {
			return true
		}
	}
	return false
}

func isTradeCategory(category string) bool {
	for _, c := range tradeCategories {
		if strings.Contains(category, c) {
			return true
		}
	}
	return false
}

// setDefault keeps the first value seen for a key.
func setDefault(m map[string]string, key, value string) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}
