package engine

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"skoll/internal/market"
)

// Variant selects the behaviour of an order. Stop behaves like a market
// order once triggered; StopLimit behaves like a limit order once triggered.
type Variant int

const (
	LimitOrder Variant = iota
	MarketOrder
	StopOrder
	StopLimitOrder
)

func (v Variant) String() string {
	switch v {
	case LimitOrder:
		return "LIMIT"
	case MarketOrder:
		return "MARKET"
	case StopOrder:
		return "STOP"
	case StopLimitOrder:
		return "STOPLIMIT"
	}
	return "UNKNOWN"
}

// State is the lifecycle state of an order.
//
//	SentToExchange -> Working -> PartiallyFilled* -> Filled | Cancelled | Rejected
type State int

const (
	SentToExchange State = iota
	Working
	PartiallyFilled
	Filled
	Cancelled
	Rejected
)

func (s State) String() string {
	switch s {
	case SentToExchange:
		return "Sent to Exchange"
	case Working:
		return "Working"
	case PartiallyFilled:
		return "Partially Filled"
	case Filled:
		return "Filled"
	case Cancelled:
		return "Cancelled"
	case Rejected:
		return "Rejected"
	}
	return "Unknown"
}

var (
	ErrOrderValidation = errors.New("order validation")
	ErrOrderNotLive    = errors.New("order is not live")
	ErrNotModifiable   = errors.New("order variant cannot be modified")
	ErrTriggerFrozen   = errors.New("trigger price cannot change once triggered")
	ErrBadFillQuantity = errors.New("invalid fill quantity")
)

// OrderParams carries everything needed to construct an order. Exactly one
// of BaseSize / QuoteSize must be nonzero. Price is the limit price for
// Limit and StopLimit, the reference price for Market, and the trigger price
// for Stop. Trigger is only consulted for Stop and StopLimit; a Stop
// with a zero Trigger uses Price.
type OrderParams struct {
	Variant    Variant
	Side       market.Side
	MarketType market.MarketType
	Security   market.Security
	Exchange   *market.Exchange
	Submitted  market.Timestamp
	Leverage   uint
	Margin     market.MarginType
	BaseSize   float64
	QuoteSize  float64
	Price      float64
	Trigger    float64
}

// Order is a user order working its way through the simulated exchange. All
// mutation goes through the lifecycle methods below; containers that hold an
// order (book queues, pending lists, logs) treat it as read-only and consult
// State for liveness.
type Order struct {
	id         OrderID
	variant    Variant
	side       market.Side
	marketType market.MarketType
	security   market.Security
	exchange   *market.Exchange
	submitted  market.Timestamp
	leverage   uint
	margin     market.MarginType

	price        float64
	triggerPrice float64
	triggered    bool

	baseSize   float64 // pre-leverage size in base currency
	quoteSize  float64 // pre-leverage size in quote currency
	levAdjBase float64 // remaining leverage-adjusted base size
	filled     float64
	avgPrice   float64

	state State
}

func newOrder(id OrderID, p OrderParams) (*Order, error) {
	o := &Order{
		id:           id,
		variant:      p.Variant,
		side:         p.Side,
		marketType:   p.MarketType,
		security:     p.Security,
		exchange:     p.Exchange,
		submitted:    p.Submitted,
		leverage:     p.Leverage,
		margin:       p.Margin,
		price:        p.Price,
		triggerPrice: p.Trigger,
		baseSize:     p.BaseSize,
		quoteSize:    p.QuoteSize,
		state:        SentToExchange,
	}
	if o.variant == StopOrder && o.triggerPrice == 0 {
		o.triggerPrice = o.price
	}
	if err := o.validate(); err != nil {
		o.state = Rejected
		return o, err
	}
	return o, nil
}

// validate runs the construction checks in order and fills in the derived
// sizes. The first violated rule wins.
func (o *Order) validate() error {
	if o.side != market.Buy && o.side != market.Sell {
		return fmt.Errorf("%w: side must be 1 (buy) or -1 (sell)", ErrOrderValidation)
	}
	if o.baseSize == 0 && o.quoteSize == 0 {
		return fmt.Errorf("%w: order size must be non-zero", ErrOrderValidation)
	}
	if o.baseSize < 0 {
		return fmt.Errorf("%w: base currency size must be non-negative", ErrOrderValidation)
	}
	if o.quoteSize < 0 {
		return fmt.Errorf("%w: quote currency size must be non-negative", ErrOrderValidation)
	}
	if o.baseSize != 0 && o.quoteSize != 0 {
		return fmt.Errorf("%w: size must be given in base or quote currency, not both", ErrOrderValidation)
	}
	if o.price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrOrderValidation)
	}

	rules, err := o.exchange.TradingRules(o.marketType, o.security)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOrderValidation, err)
	}

	if decimalsOf(o.price) > decimalsOf(rules[market.RuleTickSize]) {
		return fmt.Errorf("%w: price must obey the minimum tick size", ErrOrderValidation)
	}

	if o.leverage < 1 {
		return fmt.Errorf("%w: leverage must be at least 1", ErrOrderValidation)
	}
	if o.leverage == 1 && o.margin != market.NoMargin {
		return fmt.Errorf("%w: 1x leverage requires no margin", ErrOrderValidation)
	}
	if o.leverage != 1 && o.margin == market.NoMargin {
		return fmt.Errorf("%w: leverage above 1x requires a margin type", ErrOrderValidation)
	}
	if o.margin == market.Isolated && float64(o.leverage) > rules[market.RuleMaxIsolatedLev] {
		return fmt.Errorf("%w: leverage exceeds the maximum isolated leverage", ErrOrderValidation)
	}
	if o.margin == market.Cross && float64(o.leverage) > rules[market.RuleMaxCrossLev] {
		return fmt.Errorf("%w: leverage exceeds the maximum cross leverage", ErrOrderValidation)
	}

	// Derive the missing size. Quote-sized orders are floored to a whole
	// multiple of the minimum base increment.
	minBase := rules[market.RuleMinBaseSize]
	if o.baseSize == 0 {
		o.baseSize = math.Floor(o.quoteSize/o.price/minBase) * minBase
	} else {
		o.quoteSize = o.baseSize * o.price
	}
	o.levAdjBase = float64(o.leverage) * o.baseSize

	if o.levAdjBase < minBase {
		return fmt.Errorf("%w: size is below the minimum base size", ErrOrderValidation)
	}
	if float64(o.leverage)*o.quoteSize < rules[market.RuleMinQuoteValue] {
		return fmt.Errorf("%w: value is below the minimum quote value", ErrOrderValidation)
	}

	// Per-variant caps; -1 disables a cap.
	maxBase, maxQuote := rules[market.RuleMaxMarketBase], rules[market.RuleMaxMarketQuote]
	if o.variant == LimitOrder || o.variant == StopLimitOrder {
		maxBase, maxQuote = rules[market.RuleMaxLimitBase], rules[market.RuleMaxLimitQuote]
	}
	if maxBase != -1 && o.levAdjBase > maxBase {
		return fmt.Errorf("%w: size exceeds the maximum %s base size", ErrOrderValidation, o.variant)
	}
	if maxQuote != -1 && float64(o.leverage)*o.quoteSize > maxQuote {
		return fmt.Errorf("%w: value exceeds the maximum %s quote value", ErrOrderValidation, o.variant)
	}

	return nil
}

// IsLive reports whether the order can still trade.
func (o *Order) IsLive() bool {
	return o.state == Working || o.state == PartiallyFilled
}

// Fill applies an execution of qty at price, updating the volume-weighted
// average fill price and the remaining size. Terminal orders are immune.
func (o *Order) Fill(qty, price float64) error {
	if o.state == Filled || o.state == Cancelled || o.state == Rejected {
		return ErrOrderNotLive
	}
	if qty <= 0 {
		return fmt.Errorf("%w: must be positive", ErrBadFillQuantity)
	}
	if qty > o.levAdjBase {
		return fmt.Errorf("%w: exceeds remaining size", ErrBadFillQuantity)
	}

	o.avgPrice = (o.avgPrice*o.filled + price*qty) / (o.filled + qty)
	o.filled += qty
	o.levAdjBase -= qty

	if o.levAdjBase > 0 {
		o.state = PartiallyFilled
	} else {
		o.state = Filled
	}
	return nil
}

// Cancel moves a live or in-flight order to Cancelled. Calling it on an
// already-terminal order is a no-op.
func (o *Order) Cancel() {
	if !o.IsLive() && o.state != SentToExchange {
		return
	}
	o.state = Cancelled
}

// Reject moves a non-terminal order to Rejected.
func (o *Order) Reject() {
	if !o.IsLive() && o.state != SentToExchange {
		return
	}
	o.state = Rejected
}

// CheckReceived promotes SentToExchange to Working once the venue's sending
// latency has elapsed since submission.
func (o *Order) CheckReceived(now market.Timestamp) {
	if o.state != SentToExchange {
		return
	}
	if now.UnixNanos()-o.submitted.UnixNanos() >= o.exchange.SendingLatency() {
		o.state = Working
	}
}

// CheckTriggered arms a Stop or StopLimit when the last traded price crosses
// the trigger. The triggered flag is monotone: once set it never clears.
func (o *Order) CheckTriggered(lastPrice float64) {
	if o.variant != StopOrder && o.variant != StopLimitOrder {
		return
	}
	if o.triggered || lastPrice <= 0 {
		return
	}
	if (o.side == market.Buy && lastPrice >= o.triggerPrice) ||
		(o.side == market.Sell && lastPrice <= o.triggerPrice) {
		o.triggered = true
	}
}

// CheckFillability reports whether the order could execute against the
// given best bid/ask right now.
func (o *Order) CheckFillability(bestBid, bestAsk float64) bool {
	switch o.variant {
	case MarketOrder:
		return o.IsLive()
	case LimitOrder:
		return o.IsLive() && o.crossesBook(bestBid, bestAsk)
	case StopOrder:
		return o.IsLive() && o.triggered
	case StopLimitOrder:
		return o.IsLive() && o.triggered && o.crossesBook(bestBid, bestAsk)
	}
	return false
}

func (o *Order) crossesBook(bestBid, bestAsk float64) bool {
	if o.side == market.Buy {
		return o.price >= bestAsk
	}
	return o.price <= bestBid
}

// Modify replaces the order's size and price(s). Only live Limit, Stop and
// StopLimit orders can be modified; a StopLimit's trigger price is frozen
// once triggered, and a triggered Stop cannot be modified at all. Derived
// sizes are recomputed from the new values.
func (o *Order) Modify(base, quote, price, trigger float64) error {
	switch o.variant {
	case MarketOrder:
		return ErrNotModifiable
	case StopOrder:
		if o.triggered {
			return ErrTriggerFrozen
		}
		price = trigger
	case StopLimitOrder:
		if o.triggered && trigger != o.triggerPrice {
			return ErrTriggerFrozen
		}
	}
	if !o.IsLive() {
		return ErrOrderNotLive
	}

	if base == 0 && quote == 0 {
		return fmt.Errorf("%w: order size must be non-zero", ErrOrderValidation)
	}
	if base < 0 || quote < 0 {
		return fmt.Errorf("%w: order size must be non-negative", ErrOrderValidation)
	}
	if base != 0 && quote != 0 {
		return fmt.Errorf("%w: size must be given in base or quote currency, not both", ErrOrderValidation)
	}
	if price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrOrderValidation)
	}
	if o.variant != LimitOrder && trigger <= 0 {
		return fmt.Errorf("%w: trigger price must be positive", ErrOrderValidation)
	}

	rules, err := o.exchange.TradingRules(o.marketType, o.security)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOrderValidation, err)
	}
	tickDecimals := decimalsOf(rules[market.RuleTickSize])
	if decimalsOf(price) > tickDecimals {
		return fmt.Errorf("%w: price must obey the minimum tick size", ErrOrderValidation)
	}
	if o.variant != LimitOrder && decimalsOf(trigger) > tickDecimals {
		return fmt.Errorf("%w: trigger price must obey the minimum tick size", ErrOrderValidation)
	}

	minBase := rules[market.RuleMinBaseSize]
	if base == 0 {
		o.quoteSize = quote
		o.baseSize = math.Floor(quote/price/minBase) * minBase
	} else {
		o.baseSize = base
		o.quoteSize = base * price
	}
	o.levAdjBase = float64(o.leverage) * o.baseSize

	if o.variant != StopOrder {
		o.price = price
	}
	if o.variant != LimitOrder {
		o.triggerPrice = trigger
	}
	return nil
}

func (o *Order) ID() OrderID                   { return o.id }
func (o *Order) Variant() Variant              { return o.variant }
func (o *Order) Side() market.Side             { return o.side }
func (o *Order) MarketType() market.MarketType { return o.marketType }
func (o *Order) Security() market.Security     { return o.security }
func (o *Order) Exchange() *market.Exchange    { return o.exchange }
func (o *Order) Submitted() market.Timestamp   { return o.submitted }
func (o *Order) Leverage() uint                { return o.leverage }
func (o *Order) Margin() market.MarginType     { return o.margin }
func (o *Order) Price() float64                { return o.price }
func (o *Order) TriggerPrice() float64         { return o.triggerPrice }
func (o *Order) Triggered() bool               { return o.triggered }
func (o *Order) BaseSize() float64             { return o.baseSize }
func (o *Order) QuoteSize() float64            { return o.quoteSize }
func (o *Order) Remaining() float64            { return o.levAdjBase }
func (o *Order) FilledSize() float64           { return o.filled }
func (o *Order) AvgFillPrice() float64         { return o.avgPrice }
func (o *Order) State() State                  { return o.state }

// decimalsOf counts significant digits after the decimal point, using the
// shortest representation that round-trips the float.
func decimalsOf(v float64) int {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}
