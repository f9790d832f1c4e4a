package engine

// OrderID identifies an order within one backtest run. Zero is reserved for
// "no owner" (external liquidity) in book queues.
type OrderID int64

// Arena owns every order created during a run. Book queues, pending lists
// and logs refer to orders by id and resolve them here, so the order struct
// itself stays the single authority on lifecycle state. Id counters are per
// arena and reset by Clear, never global.
type Arena struct {
	orders      map[OrderID]*Order
	nextOrderID OrderID
	nextTradeID int64
}

func NewArena() *Arena {
	return &Arena{orders: make(map[OrderID]*Order)}
}

// NewOrder constructs and registers an order. A validation failure still
// registers the order (in state Rejected) and returns it alongside the
// error, so rejected orders remain observable.
func (a *Arena) NewOrder(p OrderParams) (*Order, error) {
	a.nextOrderID++
	o, err := newOrder(a.nextOrderID, p)
	a.orders[o.id] = o
	return o, err
}

// Get resolves an id to its order, or nil for the external-liquidity id.
func (a *Arena) Get(id OrderID) *Order {
	return a.orders[id]
}

// NextTradeID hands out the next trade id.
func (a *Arena) NextTradeID() int64 {
	a.nextTradeID++
	return a.nextTradeID
}

// Clear drops all orders and resets both counters.
func (a *Arena) Clear() {
	a.orders = make(map[OrderID]*Order)
	a.nextOrderID = 0
	a.nextTradeID = 0
}
