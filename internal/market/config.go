package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// The exchange configuration document is a single JSON object keyed by
// exchange name. Market sections use the document's own labels: the spot
// section is named "Spot/Margin", futures is "Futures". Symbol keys are case
// significant, which is why this file is decoded with encoding/json rather
// than the settings loader (viper folds keys to lower case).
const (
	docSpotSection    = "Spot/Margin"
	docFuturesSection = "Futures"
)

var ErrBadExchangeConfig = errors.New("invalid exchange configuration")

type exchangeDoc struct {
	NanosecondLatencyTo   int64                           `json:"nanosecondLatencyTo"`
	NanosecondLatencyFrom int64                           `json:"nanosecondLatencyFrom"`
	TradingRules          map[string]map[string][]float64 `json:"tradeingRules"`
	FeeStructure          map[string]feeDoc               `json:"feeStructure"`
}

type feeDoc struct {
	Maker []float64 `json:"Maker"`
	Taker []float64 `json:"Taker"`
}

// LoadExchanges reads the configuration document and returns one Exchange
// per top-level key, with trading rules, fee schedules (tier 0 selected) and
// latencies populated.
func LoadExchanges(path string) ([]*Exchange, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exchange config: %w", err)
	}

	var doc map[string]exchangeDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadExchangeConfig, err)
	}

	exchanges := make([]*Exchange, 0, len(doc))
	for name, entry := range doc {
		ex, err := buildExchange(name, entry)
		if err != nil {
			return nil, err
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, nil
}

func buildExchange(name string, doc exchangeDoc) (*Exchange, error) {
	ex := NewExchange(name)
	ex.sendingLatency = doc.NanosecondLatencyTo
	ex.receivingLatency = doc.NanosecondLatencyFrom

	sections := map[string]MarketType{
		docSpotSection:    Spot,
		docFuturesSection: Futures,
	}

	for section, mt := range sections {
		rules, ok := doc.TradingRules[section]
		if !ok {
			return nil, fmt.Errorf("%w: %s missing %q trading rules", ErrBadExchangeConfig, name, section)
		}
		ex.rules[mt] = make(map[Security][]float64, len(rules))
		for symbol, vector := range rules {
			sec, err := parseSymbol(symbol)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrBadExchangeConfig, name, err)
			}
			if len(vector) != tradingRuleVectorLen {
				return nil, fmt.Errorf("%w: %s %s has %d rule entries, want %d",
					ErrBadExchangeConfig, name, symbol, len(vector), tradingRuleVectorLen)
			}
			ex.rules[mt][sec] = vector
			ex.listed[mt] = append(ex.listed[mt], sec)
		}

		fees, ok := doc.FeeStructure[section]
		if !ok {
			return nil, fmt.Errorf("%w: %s missing %q fee structure", ErrBadExchangeConfig, name, section)
		}
		if len(fees.Maker) != len(fees.Taker) || len(fees.Maker) == 0 {
			return nil, fmt.Errorf("%w: %s %q maker/taker tiers mismatched", ErrBadExchangeConfig, name, section)
		}
		for i := range fees.Maker {
			ex.feeSchedule[mt] = append(ex.feeSchedule[mt], FeeTier{Maker: fees.Maker[i], Taker: fees.Taker[i]})
		}
		// Tier 0 applies until SetFeeTier picks another level.
		ex.makerFee[mt] = fees.Maker[0]
		ex.takerFee[mt] = fees.Taker[0]
	}

	return ex, nil
}

func parseSymbol(symbol string) (Security, error) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok || base == "" || quote == "" {
		return Security{}, fmt.Errorf("malformed symbol %q", symbol)
	}
	return Security{Base: base, Quote: quote}, nil
}
