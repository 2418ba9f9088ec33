package statements

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/aristath/statements/internal/domain"
	"github.com/rs/zerolog"
)

const (
	sectionChangeInNAV = "Change in NAV"
	sectionTWRR        = "Time Weighted Rate of Return"
)

// navFields maps "Change in NAV" labels to the field they set.
var navFields = map[string]func(*domain.NAV) *float64{
	"Starting Value":              func(n *domain.NAV) *float64 { return &n.StartingValue },
	"Ending Value":                func(n *domain.NAV) *float64 { return &n.EndingValue },
	"Realized P/L":                func(n *domain.NAV) *float64 { return &n.RealizedPL },
	"Change in Unrealized P/L":    func(n *domain.NAV) *float64 { return &n.ChangeInUnrealizedPL },
	"Transferred P/L Adjustments": func(n *domain.NAV) *float64 { return &n.TransferredPLAdjustments },
	"Deposits & Withdrawals":      func(n *domain.NAV) *float64 { return &n.DepositsAndWithdrawals },
	"Position Transfers":          func(n *domain.NAV) *float64 { return &n.PositionTransfers },
	"Dividends":                   func(n *domain.NAV) *float64 { return &n.Dividends },
	"Withholding Tax":             func(n *domain.NAV) *float64 { return &n.WithholdingTax },
	"Change in Dividend Accruals": func(n *domain.NAV) *float64 { return &n.DividendAccruals },
	"Interest":                    func(n *domain.NAV) *float64 { return &n.Interest },
	"Change in Interest Accruals": func(n *domain.NAV) *float64 { return &n.InterestAccruals },
	"Other Fees":                  func(n *domain.NAV) *float64 { return &n.OtherFee },
}

// NAVExtractor reads the Change in NAV section and the time weighted rate
// of return. Bad figures are logged and leave the field at zero.
type NAVExtractor struct {
	log zerolog.Logger
}

// NewNAVExtractor creates a NAV extractor.
func NewNAVExtractor(log zerolog.Logger) *NAVExtractor {
	return &NAVExtractor{log: log.With().Str("component", "nav_extractor").Logger()}
}

// ExtractFile extracts NAV figures from the statement at path. Only I/O
// failures are returned.
func (e *NAVExtractor) ExtractFile(path string) (domain.NAV, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.NAV{}, fmt.Errorf("failed to read statement %s: %w", path, err)
	}
	return e.Extract(data), nil
}

// Extract scans data once and returns whatever NAV figures it finds.
func (e *NAVExtractor) Extract(data []byte) domain.NAV {
	var nav domain.NAV

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	for line := 1; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			e.log.Warn().Err(err).Int("line", line).Msg("Stopped reading NAV section")
			break
		}
		if len(row) < 4 {
			continue
		}

		switch row[0] {
		case sectionChangeInNAV:
			field, ok := navFields[row[2]]
			if !ok {
				continue
			}
			value, err := parseAmount(row[3])
			if err != nil {
				e.log.Warn().Err(err).Str("label", row[2]).Int("line", line).Msg("Could not convert NAV value")
				continue
			}
			*field(&nav) = value

		case sectionTWRR:
			value, err := parseAmount(row[3])
			if err != nil {
				e.log.Warn().Err(err).Int("line", line).Msg("Could not convert time weighted return")
				continue
			}
			nav.TimeWeightedRR = value
		}
	}

	return nav
}
