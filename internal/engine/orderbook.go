package engine

import (
	"errors"
	"math"

	"github.com/tidwall/btree"

	"skoll/internal/market"
)

var (
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// NoPrice is the sentinel returned by BestBid/BestAsk and the level
// navigation helpers when no qualifying level exists.
const NoPrice = -1.0

// entry is one FIFO slot at a price level: a remaining quantity and its
// owner. Owner zero is anonymous external liquidity; anything else is a user
// order resolved through the arena at match time.
type entry struct {
	qty   float64
	owner OrderID
}

// level is a single price level. Exactly one side tag applies at a time; a
// level can be retagged (with its queue emptied) when a depth update crosses
// it. Keys are the price quantized to whole ticks, so lookups never compare
// floats for equality.
type level struct {
	key     int64
	price   float64
	side    market.Side
	entries []entry
}

// PriceQty is one (price, quantity) segment of a market-style fill walk.
type PriceQty struct {
	Price float64
	Qty   float64
}

// Fill reports a user order executed by an external event, together with
// the price and quantity it traded.
type Fill struct {
	Order *Order
	Price float64
	Qty   float64
}

// OrderBook models the market for one (market type, exchange, security).
// External liquidity and resting user orders share the same price levels;
// matching walks only consume the external portion, and user orders are
// only ever filled by the event-driven paths (TradeOccurred, side updates).
type OrderBook struct {
	exchange   *market.Exchange
	security   market.Security
	marketType market.MarketType
	tick       float64
	levels     *btree.BTreeG[*level]
	arena      *Arena
}

// NewOrderBook builds an empty book. The security must be listed on the
// exchange so the tick size is known for price quantization.
func NewOrderBook(ex *market.Exchange, mt market.MarketType, sec market.Security, arena *Arena) (*OrderBook, error) {
	rules, err := ex.TradingRules(mt, sec)
	if err != nil {
		return nil, err
	}
	return &OrderBook{
		exchange:   ex,
		security:   sec,
		marketType: mt,
		tick:       rules[market.RuleTickSize],
		levels: btree.NewBTreeG(func(a, b *level) bool {
			return a.key < b.key
		}),
		arena: arena,
	}, nil
}

func (b *OrderBook) Exchange() *market.Exchange    { return b.exchange }
func (b *OrderBook) Security() market.Security     { return b.security }
func (b *OrderBook) MarketType() market.MarketType { return b.marketType }

// TradeOccurred consumes an external trade of qty at price against the
// level's queue, front first. Segments owned by live user orders are
// reported as fills; external segments and dead user segments just vanish.
// A missing or empty level consumes nothing.
func (b *OrderBook) TradeOccurred(price, qty float64) ([]Fill, error) {
	if price <= 0 {
		return nil, ErrInvalidPrice
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	l, ok := b.levelAt(price)
	if !ok {
		return nil, nil
	}

	var fills []Fill
	remaining := qty
	for remaining > 0 && len(l.entries) > 0 {
		front := &l.entries[0]
		sub := math.Min(remaining, front.qty)
		front.qty -= sub
		remaining -= sub

		if ord := b.arena.Get(front.owner); ord != nil && ord.IsLive() {
			fills = append(fills, Fill{Order: ord, Price: price, Qty: sub})
		}
		if front.qty == 0 {
			l.entries = l.entries[1:]
		}
	}
	return fills, nil
}

// AddOrder rests size at the price level on the given side. If the level
// already carries the opposite tag and the incoming order is a live user
// order, the order is aggressive and is routed straight to FillMarket; the
// returned segments are its fills. External adds against an opposite-tagged
// level are dropped.
func (b *OrderBook) AddOrder(price float64, side market.Side, size float64, owner *Order) ([]PriceQty, error) {
	if price <= 0 {
		return nil, ErrInvalidPrice
	}

	l := b.ensureLevel(price, side)
	if l.side != side {
		if owner != nil && owner.IsLive() {
			return b.FillMarket(owner), nil
		}
		return nil, nil
	}

	var id OrderID
	if owner != nil {
		id = owner.ID()
	}
	b.appendEntry(l, size, id)
	return nil, nil
}

// appendEntry pushes to the back of the queue, coalescing with the tail
// when the owner matches. Adjacent external entries merge; entries owned by
// distinct user orders never do.
func (b *OrderBook) appendEntry(l *level, size float64, owner OrderID) {
	if n := len(l.entries); n > 0 && l.entries[n-1].owner == owner {
		l.entries[n-1].qty += size
		return
	}
	l.entries = append(l.entries, entry{qty: size, owner: owner})
}

// FillMarket executes a market or triggered stop order against external
// liquidity, walking levels from the best opposite price outward.
func (b *OrderBook) FillMarket(o *Order) []PriceQty {
	if !o.IsLive() {
		return nil
	}
	return b.sweepExternal(o.side, o.Remaining())
}

// InstantFillLimit executes the marketable portion of a limit or stop-limit
// order. qty is the caller's precomputed bound, normally
// min(LimitInstantFillQuantity, remaining).
func (b *OrderBook) InstantFillLimit(o *Order, qty float64) []PriceQty {
	if !o.IsLive() {
		return nil
	}
	return b.sweepExternal(o.side, qty)
}

// sweepExternal consumes up to qty of external liquidity walking outward
// from the best opposite level. If every level is exhausted first, the
// leftover is attributed to the last segment: a synthetic far-touch fill,
// kept for parity with the observable behaviour of the matching walk.
func (b *OrderBook) sweepExternal(side market.Side, qty float64) []PriceQty {
	price := b.bestOpposite(side)
	if price == NoPrice {
		return nil
	}

	var fills []PriceQty
	remaining := qty
	for price != NoPrice && remaining > 0 {
		avail := b.externalSizeAt(price)
		sub := math.Min(remaining, avail)
		b.reduceExternalAt(price, sub)
		if avail != 0 {
			fills = append(fills, PriceQty{Price: price, Qty: sub})
		}
		remaining -= sub
		price = b.nextLevel(side, price)
	}

	if remaining > 0 && len(fills) > 0 {
		fills[len(fills)-1].Qty += remaining
	}
	return fills
}

// LimitInstantFillQuantity sums the external size of every level a limit
// order at limitPrice could cross, walking outward from the best opposite
// price while levels stay at or better than the limit.
func (b *OrderBook) LimitInstantFillQuantity(limitPrice float64, side market.Side) float64 {
	price := b.bestOpposite(side)
	total := 0.0
	for price != NoPrice {
		if side == market.Buy && price > limitPrice {
			break
		}
		if side == market.Sell && price < limitPrice {
			break
		}
		total += b.externalSizeAt(price)
		price = b.nextLevel(side, price)
	}
	return total
}

// BuySideUpdated applies a depth update declaring the full external size on
// the buy side at price. See sideUpdated.
func (b *OrderBook) BuySideUpdated(price, size float64) ([]Fill, error) {
	return b.sideUpdated(market.Buy, price, size)
}

// SellSideUpdated is the sell-side counterpart of BuySideUpdated.
func (b *OrderBook) SellSideUpdated(price, size float64) ([]Fill, error) {
	return b.sideUpdated(market.Sell, price, size)
}

// sideUpdated reconciles a depth update in two phases. If the level already
// carries the update's side, only the external portion is adjusted: grow by
// appending external liquidity, shrink by reducing external entries (user
// orders are never reduced by market data). If the level carried the
// opposite tag, every live user order resting there is swept at the level's
// price for its full remaining size, and the level restarts as pure
// external liquidity. Finally, any level beyond the updated price that
// still carries the opposite tag has been crossed: its user orders are
// swept the same way and the level is retagged empty.
func (b *OrderBook) sideUpdated(side market.Side, price, size float64) ([]Fill, error) {
	if price <= 0 {
		return nil, ErrInvalidPrice
	}

	var fills []Fill
	l := b.ensureLevel(price, side)
	if l.side == side {
		ext := externalSize(l)
		total := ext + userSize(l)
		switch {
		case size > total:
			b.appendEntry(l, size-total, 0)
		case size < total:
			reduceExternal(l, math.Min(ext, total-size))
		}
	} else {
		fills = append(fills, b.sweepUsers(l)...)
		l.side = side
		l.entries = nil
		b.appendEntry(l, size, 0)
	}

	for _, crossed := range b.crossedLevels(side, l.key) {
		fills = append(fills, b.sweepUsers(crossed)...)
		crossed.side = side
		crossed.entries = nil
	}
	return fills, nil
}

// sweepUsers emits a full-remaining-size fill at the level's price for each
// live user order resting on the level.
func (b *OrderBook) sweepUsers(l *level) []Fill {
	var fills []Fill
	for _, e := range l.entries {
		if ord := b.arena.Get(e.owner); ord != nil && ord.IsLive() {
			fills = append(fills, Fill{Order: ord, Price: l.price, Qty: ord.Remaining()})
		}
	}
	return fills
}

// crossedLevels collects levels on the wrong side of a crossing update:
// below the price for a buy-side update, above it for a sell-side update,
// still carrying the opposite tag.
func (b *OrderBook) crossedLevels(side market.Side, key int64) []*level {
	var crossed []*level
	if side == market.Buy {
		b.levels.Descend(&level{key: key - 1}, func(l *level) bool {
			if l.side == market.Sell {
				crossed = append(crossed, l)
			}
			return true
		})
	} else {
		b.levels.Ascend(&level{key: key + 1}, func(l *level) bool {
			if l.side == market.Buy {
				crossed = append(crossed, l)
			}
			return true
		})
	}
	return crossed
}

// BestBid returns the highest buy-tagged level price, or NoPrice.
func (b *OrderBook) BestBid() float64 {
	best := NoPrice
	b.levels.Reverse(func(l *level) bool {
		if l.side == market.Buy {
			best = l.price
			return false
		}
		return true
	})
	return best
}

// BestAsk returns the lowest sell-tagged level price, or NoPrice.
func (b *OrderBook) BestAsk() float64 {
	best := NoPrice
	b.levels.Scan(func(l *level) bool {
		if l.side == market.Sell {
			best = l.price
			return false
		}
		return true
	})
	return best
}

// NextBuySideLevel returns the greatest level price strictly below price,
// or NoPrice.
func (b *OrderBook) NextBuySideLevel(price float64) float64 {
	next := NoPrice
	b.levels.Descend(&level{key: b.quantize(price) - 1}, func(l *level) bool {
		next = l.price
		return false
	})
	return next
}

// NextSellSideLevel returns the least level price strictly above price, or
// NoPrice.
func (b *OrderBook) NextSellSideLevel(price float64) float64 {
	next := NoPrice
	b.levels.Ascend(&level{key: b.quantize(price) + 1}, func(l *level) bool {
		next = l.price
		return false
	})
	return next
}

// nextLevel advances a fill walk away from the touch: upward through asks
// for a buy, downward through bids for a sell.
func (b *OrderBook) nextLevel(side market.Side, price float64) float64 {
	if side == market.Buy {
		return b.NextSellSideLevel(price)
	}
	return b.NextBuySideLevel(price)
}

func (b *OrderBook) bestOpposite(side market.Side) float64 {
	if side == market.Buy {
		return b.BestAsk()
	}
	return b.BestBid()
}

// TotalSizeAt reports the summed queue size resting at a price level.
func (b *OrderBook) TotalSizeAt(price float64) float64 {
	l, ok := b.levelAt(price)
	if !ok {
		return 0
	}
	total := 0.0
	for _, e := range l.entries {
		total += e.qty
	}
	return total
}

// externalSizeAt reports the anonymous external size resting at a level.
func (b *OrderBook) externalSizeAt(price float64) float64 {
	l, ok := b.levelAt(price)
	if !ok {
		return 0
	}
	return externalSize(l)
}

func externalSize(l *level) float64 {
	total := 0.0
	for _, e := range l.entries {
		if e.owner == 0 {
			total += e.qty
		}
	}
	return total
}

// userSize reports the size owned by user orders at a level. Entries for
// orders that have since gone terminal still count here: the queue slot is
// occupied until an event consumes it.
func userSize(l *level) float64 {
	total := 0.0
	for _, e := range l.entries {
		if e.owner != 0 {
			total += e.qty
		}
	}
	return total
}

// reduceExternalAt removes up to qty of external liquidity at a price.
func (b *OrderBook) reduceExternalAt(price, qty float64) {
	if l, ok := b.levelAt(price); ok {
		reduceExternal(l, qty)
	}
}

// reduceExternal removes up to qty of external liquidity, consuming entries
// from the back of the queue so the newest external adds go first. User
// order entries are skipped. Entries hitting zero are removed.
func reduceExternal(l *level, qty float64) {
	for i := len(l.entries) - 1; i >= 0 && qty > 0; i-- {
		e := &l.entries[i]
		if e.owner != 0 {
			continue
		}
		sub := math.Min(e.qty, qty)
		e.qty -= sub
		qty -= sub
		if e.qty == 0 {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
		}
	}
}

func (b *OrderBook) quantize(price float64) int64 {
	return int64(math.Round(price / b.tick))
}

func (b *OrderBook) levelAt(price float64) (*level, bool) {
	return b.levels.Get(&level{key: b.quantize(price)})
}

// ensureLevel returns the level at price, creating it tagged with side if
// absent. An existing level keeps its current tag.
func (b *OrderBook) ensureLevel(price float64, side market.Side) *level {
	if l, ok := b.levelAt(price); ok {
		return l
	}
	l := &level{key: b.quantize(price), price: price, side: side}
	b.levels.Set(l)
	return l
}
