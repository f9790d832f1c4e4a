package market

import (
	"errors"
	"fmt"
)

// Trading rule vector indices. Each listed security carries a 12-slot vector
// of doubles in the exchange configuration; -1 disables a cap.
const (
	RuleTickSize       = 0
	RuleMinBaseSize    = 1
	RuleMinQuoteValue  = 2
	RuleMaxLimitBase   = 3
	RuleMaxLimitQuote  = 4
	RuleMaxMarketBase  = 5
	RuleMaxMarketQuote = 6
	RuleMaxIsolatedLev = 10
	RuleMaxCrossLev    = 11

	tradingRuleVectorLen = 12
)

var (
	ErrSecurityNotListed = errors.New("security not listed")
	ErrUnknownFeeTier    = errors.New("unknown fee tier")
)

// FeeTier is one (maker, taker) percentage pair from the fee schedule.
type FeeTier struct {
	Maker float64
	Taker float64
}

// Exchange describes a trading venue: its listed securities, per-security
// trading rules, tiered fee schedule, the currently selected maker/taker
// fees, and the simulated wire latencies in nanoseconds. Identity is the
// name alone; two Exchange values with the same name are the same venue.
//
// Latency and fee setters are only called between backtest runs, never while
// a replay is in flight.
type Exchange struct {
	name             string
	sendingLatency   int64 // ns from us to the exchange
	receivingLatency int64 // ns from the exchange to us

	makerFee    map[MarketType]float64
	takerFee    map[MarketType]float64
	feeSchedule map[MarketType][]FeeTier
	rules       map[MarketType]map[Security][]float64
	listed      map[MarketType][]Security
}

// NewExchange creates an empty venue with the given name. Rules and fees are
// normally populated by LoadExchanges.
func NewExchange(name string) *Exchange {
	return &Exchange{
		name:        name,
		makerFee:    make(map[MarketType]float64),
		takerFee:    make(map[MarketType]float64),
		feeSchedule: make(map[MarketType][]FeeTier),
		rules:       make(map[MarketType]map[Security][]float64),
		listed:      make(map[MarketType][]Security),
	}
}

func (e *Exchange) Name() string { return e.name }

// TradingRules returns the 12-slot rule vector for a listed security.
func (e *Exchange) TradingRules(mt MarketType, sec Security) ([]float64, error) {
	if rules, ok := e.rules[mt][sec]; ok {
		return rules, nil
	}
	return nil, fmt.Errorf("%w: %s on %s %s", ErrSecurityNotListed, sec, e.name, mt)
}

// ListedSecurities returns the securities listed for the market type.
func (e *Exchange) ListedSecurities(mt MarketType) []Security {
	return e.listed[mt]
}

// FindSecurity resolves a 'BASE/QUOTE' symbol string against the listing.
// Symbol matching is case sensitive.
func (e *Exchange) FindSecurity(mt MarketType, symbol string) (Security, bool) {
	for _, sec := range e.listed[mt] {
		if sec.String() == symbol {
			return sec, true
		}
	}
	return Security{}, false
}

// SetFeeTier selects the maker/taker pair at the given schedule level.
func (e *Exchange) SetFeeTier(mt MarketType, level int) error {
	sched := e.feeSchedule[mt]
	if level < 0 || level >= len(sched) {
		return fmt.Errorf("%w: level %d on %s %s", ErrUnknownFeeTier, level, e.name, mt)
	}
	e.makerFee[mt] = sched[level].Maker
	e.takerFee[mt] = sched[level].Taker
	return nil
}

// SetMakerFee overrides the maker fee percentage outside the schedule.
func (e *Exchange) SetMakerFee(mt MarketType, pct float64) { e.makerFee[mt] = pct }

// SetTakerFee overrides the taker fee percentage outside the schedule.
func (e *Exchange) SetTakerFee(mt MarketType, pct float64) { e.takerFee[mt] = pct }

func (e *Exchange) MakerFee(mt MarketType) float64 { return e.makerFee[mt] }
func (e *Exchange) TakerFee(mt MarketType) float64 { return e.takerFee[mt] }

func (e *Exchange) SendingLatency() int64   { return e.sendingLatency }
func (e *Exchange) ReceivingLatency() int64 { return e.receivingLatency }

func (e *Exchange) SetSendingLatency(ns int64)   { e.sendingLatency = ns }
func (e *Exchange) SetReceivingLatency(ns int64) { e.receivingLatency = ns }
