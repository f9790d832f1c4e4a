package record

import (
	"skoll/internal/engine"
)

// OrderLog is the insertion-ordered record of every order admitted during a
// run, including ones that later went terminal.
type OrderLog struct {
	orders []*engine.Order
}

func NewOrderLog() *OrderLog {
	return &OrderLog{}
}

func (l *OrderLog) Add(o *engine.Order) {
	l.orders = append(l.orders, o)
}

func (l *OrderLog) Orders() []*engine.Order {
	return l.orders
}

func (l *OrderLog) Clear() {
	l.orders = nil
}
