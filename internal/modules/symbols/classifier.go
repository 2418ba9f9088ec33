// Package symbols decomposes raw trading symbols into their underlying,
// expiry, strike and option kind according to the instrument type.
package symbols

import (
	"fmt"
	"strings"
)

// Instrument is the instrument type a symbol is classified under.
type Instrument string

const (
	Stocks       Instrument = "Stocks"
	EquityOption Instrument = "EquityOption"
	Future       Instrument = "Future"
)

// InstrumentFromCategory maps a statement asset category to an instrument type.
// Unknown categories are returned unchanged and classified leniently.
func InstrumentFromCategory(category string) Instrument {
	switch {
	case strings.Contains(category, "Equity and Index Options"):
		return EquityOption
	case strings.Contains(category, "Futures"):
		return Future
	case strings.Contains(category, "Stocks"):
		return Stocks
	}
	return Instrument(category)
}

// futuresRoots maps known futures contract codes to their canonical root.
var futuresRoots = map[string]string{
	"CLN4": "cl", "CLQ4": "cl", "MCLN4": "cl", "MCLV4": "cl", "MCLX4": "cl", "MCLZ4": "cl", "MCLF5": "cl",
	"M2KM4": "m2k", "M2KU4": "m2k", "M2KZ4": "m2k",
	"MESM4": "mes", "M3SU4": "mes", "MESZ4": "mes", "MESU4": "mes",
	"MGCQ4": "mgc", "MGCV4": "mgc", "MGCZ4": "mgc", "MGCG5": "mgc",
	"MHGQ4": "mhg", "MHGV4": "mhg", "MHGX4": "mhg", "MHGZ4": "mhg", "MHGN4": "mhg",
	"MNQM4": "mnq", "MNQU4": "mnq", "MNQZ4": "mnq",
	"MNGQ4": "mng", "MNGV4": "mng", "MNGZ4": "mng", "MNGN4": "mng",
	"QIU4": "qi",
	"YMU4": "ym",
}

// Components is the structured form of a symbol. Fields that do not apply
// to the instrument type are left empty.
type Components struct {
	OriginalSymbol string
	TradeType      string
	Underlying     string
	Expiry         string
	Strike         string
	OptionType     string
}

// Columns lists the column names Components are appended under.
var Columns = []string{"original_symbol", "trade_type", "underlying", "expiry", "strike", "option_type"}

// Values returns the components in Columns order.
func (c Components) Values() []string {
	return []string{c.OriginalSymbol, c.TradeType, c.Underlying, c.Expiry, c.Strike, c.OptionType}
}

// ClassificationError reports a futures symbol with no known root.
type ClassificationError struct {
	Symbol string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("no mapping found for futures symbol: %s", e.Symbol)
}

// Classify decomposes symbol. Only an unmapped futures contract is an error;
// every other instrument type degrades to using the symbol as underlying.
func Classify(symbol string, instrument Instrument, tradeType string) (Components, error) {
	c := Components{
		OriginalSymbol: strings.ToLower(symbol),
		TradeType:      tradeType,
	}

	switch instrument {
	case Stocks:
		c.Underlying = strings.ToLower(symbol)

	case EquityOption:
		parts := strings.Fields(symbol)
		if len(parts) >= 4 {
			c.Underlying = strings.ToLower(parts[0])
			c.Expiry = strings.ToLower(parts[1])
			c.Strike = parts[2]
			c.OptionType = strings.ToLower(parts[3])
		} else {
			c.Underlying = symbol
		}

	case Future:
		root, ok := futuresRoots[symbol]
		if !ok {
			return Components{}, &ClassificationError{Symbol: symbol}
		}
		c.Underlying = root

	default:
		c.Underlying = symbol
	}

	return c, nil
}
