package engine

import (
	"skoll/internal/market"
)

// Trade is an immutable execution record. The fee is computed once at
// construction from the parent order's exchange: maker or taker percentage
// of the traded notional.
type Trade struct {
	id        int64
	order     *Order
	timestamp market.Timestamp
	side      market.Side
	size      float64 // filled quantity in base currency
	price     float64
	isMaker   bool
	fee       float64
}

func NewTrade(id int64, parent *Order, ts market.Timestamp, size, price float64, isMaker bool) *Trade {
	pct := parent.exchange.TakerFee(parent.marketType)
	if isMaker {
		pct = parent.exchange.MakerFee(parent.marketType)
	}
	return &Trade{
		id:        id,
		order:     parent,
		timestamp: ts,
		side:      parent.side,
		size:      size,
		price:     price,
		isMaker:   isMaker,
		fee:       size * price * pct / 100,
	}
}

func (t *Trade) ID() int64                     { return t.id }
func (t *Trade) Order() *Order                 { return t.order }
func (t *Trade) Timestamp() market.Timestamp   { return t.timestamp }
func (t *Trade) Side() market.Side             { return t.side }
func (t *Trade) Size() float64                 { return t.size }
func (t *Trade) Price() float64                { return t.price }
func (t *Trade) IsMaker() bool                 { return t.isMaker }
func (t *Trade) Fee() float64                  { return t.fee }
func (t *Trade) Security() market.Security     { return t.order.security }
func (t *Trade) Exchange() *market.Exchange    { return t.order.exchange }
func (t *Trade) MarketType() market.MarketType { return t.order.marketType }
