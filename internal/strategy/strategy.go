package strategy

import (
	"skoll/internal/engine"
	"skoll/internal/market"
)

// PositionKey identifies a position bucket. Exchanges compare by name, so
// the key carries the name rather than the instance.
type PositionKey struct {
	Market   market.MarketType
	Exchange string
	Security market.Security
}

// PositionMap holds signed base-currency positions per bucket.
type PositionMap map[PositionKey]float64

// Event carries the fields shared by every callback message. The Book handle
// is read-only: strategies observe it but never mutate it — all book
// mutation flows through the replay driver.
type Event struct {
	Timestamp  market.Timestamp
	Exchange   *market.Exchange
	MarketType market.MarketType
	Security   market.Security
	Book       *engine.OrderBook
}

// TradeEvent reports an external trade print.
type TradeEvent struct {
	Event
	Price float64
	Size  float64
}

// QuoteEvent reports a change at the top of book.
type QuoteEvent struct {
	Event
	BidPrice float64
	BidSize  float64
	AskPrice float64
	AskSize  float64
}

// DepthEvent reports a full-size update at one price level.
type DepthEvent struct {
	Event
	Side  market.Side
	Price float64
	Size  float64
}

// Strategy consumes event messages and emits orders. All callbacks run
// synchronously with the driver, before the pending orders are reworked for
// the tick. Position accounting is pushed in by the driver as fills land.
type Strategy interface {
	OnTrade(TradeEvent) []*engine.Order
	OnTopQuote(QuoteEvent) []*engine.Order
	OnDepth(DepthEvent) []*engine.Order

	UpdatePosition(mt market.MarketType, ex *market.Exchange, sec market.Security, delta float64)
	Position(mt market.MarketType, ex *market.Exchange, sec market.Security) float64
	PositionMap() PositionMap

	Clear()
}

// PositionTracker is the position bookkeeping shared by strategies; embed it
// and call ClearPositions from Clear.
type PositionTracker struct {
	positions PositionMap
}

func (p *PositionTracker) UpdatePosition(mt market.MarketType, ex *market.Exchange, sec market.Security, delta float64) {
	if p.positions == nil {
		p.positions = make(PositionMap)
	}
	p.positions[PositionKey{Market: mt, Exchange: ex.Name(), Security: sec}] += delta
}

func (p *PositionTracker) Position(mt market.MarketType, ex *market.Exchange, sec market.Security) float64 {
	return p.positions[PositionKey{Market: mt, Exchange: ex.Name(), Security: sec}]
}

func (p *PositionTracker) PositionMap() PositionMap {
	return p.positions
}

func (p *PositionTracker) ClearPositions() {
	p.positions = nil
}
