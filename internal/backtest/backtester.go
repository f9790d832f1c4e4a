// Package backtest replays historical market events through simulated order
// books, resolving user-order fills and tracking balances per market.
package backtest

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"skoll/internal/engine"
	"skoll/internal/feed"
	"skoll/internal/market"
	"skoll/internal/record"
	"skoll/internal/strategy"
)

var (
	ErrUnknownExchange     = errors.New("exchange not found")
	ErrUnknownSecurity     = errors.New("security not found")
	ErrBookNotFound        = errors.New("order book not found")
	ErrInsufficientBalance = errors.New("order exceeds available balance")
)

// BookKey identifies one order book. Exchanges compare by name.
type BookKey struct {
	Market   market.MarketType
	Exchange string
	Security market.Security
}

type priceKey struct {
	Market   market.MarketType
	Security market.Security
}

// Backtester is the replay driver. It owns the books, the pending-order
// list, the ledgers and the order arena; the strategy only sees event
// messages and read-only book handles. Everything runs on the caller's
// goroutine — ordering is the total order of input records.
type Backtester struct {
	account *Account
	strat   strategy.Strategy
	arena   *engine.Arena

	books   map[BookKey]*engine.OrderBook
	pending []engine.OrderID
	lastPx  map[priceKey]float64

	orderLog *record.OrderLog
	tradeLog *record.TradeLog

	log zerolog.Logger
}

// New wires a driver for the account's exchanges. One book is created per
// (market type, exchange, listed security).
func New(account *Account, strat strategy.Strategy, arena *engine.Arena) (*Backtester, error) {
	bt := &Backtester{
		account:  account,
		strat:    strat,
		arena:    arena,
		lastPx:   make(map[priceKey]float64),
		orderLog: record.NewOrderLog(),
		tradeLog: record.NewTradeLog(),
		log:      log.With().Str("runID", uuid.NewString()).Logger(),
	}
	if err := bt.loadBooks(); err != nil {
		return nil, err
	}
	return bt, nil
}

func (bt *Backtester) loadBooks() error {
	bt.books = make(map[BookKey]*engine.OrderBook)
	for _, ex := range bt.account.Exchanges() {
		for _, mt := range []market.MarketType{market.Spot, market.Futures} {
			for _, sec := range ex.ListedSecurities(mt) {
				book, err := engine.NewOrderBook(ex, mt, sec, bt.arena)
				if err != nil {
					return err
				}
				bt.books[BookKey{Market: mt, Exchange: ex.Name(), Security: sec}] = book
			}
		}
	}
	return nil
}

// Clear resets every run-scoped structure so the driver can replay again:
// books are rebuilt empty, ledgers and last-price marks dropped, the arena
// counters restart, and account balances return to the given figures.
func (bt *Backtester) Clear(initial map[market.MarketType]float64) error {
	bt.arena.Clear()
	if err := bt.loadBooks(); err != nil {
		return err
	}
	bt.orderLog.Clear()
	bt.tradeLog.Clear()
	bt.lastPx = make(map[priceKey]float64)
	bt.pending = nil
	bt.account.Clear(initial)
	bt.strat.Clear()
	return nil
}

func (bt *Backtester) OrderLog() *record.OrderLog { return bt.orderLog }
func (bt *Backtester) TradeLog() *record.TradeLog { return bt.tradeLog }
func (bt *Backtester) Account() *Account          { return bt.account }

// Run replays the market data file to exhaustion.
func (bt *Backtester) Run(dataPath string) error {
	reader := feed.NewReader(dataPath)
	reader.Start()
	defer reader.Stop()

	bt.log.Info().Str("data", dataPath).Msg("backtest starting")
	for rec := range reader.Records() {
		if err := bt.step(rec); err != nil {
			return err
		}
	}
	if err := reader.Err(); err != nil {
		return err
	}
	bt.log.Info().
		Int("orders", len(bt.orderLog.Orders())).
		Int("trades", len(bt.tradeLog.Trades())).
		Msg("backtest finished")
	return nil
}

// step processes one input record: route the event into its book, resolve
// any user fills it caused, hand the event to the strategy, admit the
// strategy's new orders, rework the pending list, and snapshot balances.
func (bt *Backtester) step(rec feed.Record) error {
	ex := bt.account.FindExchange(rec.Exchange)
	if ex == nil {
		return fmt.Errorf("%w: %s", ErrUnknownExchange, rec.Exchange)
	}
	sec, ok := ex.FindSecurity(rec.MarketType, rec.Symbol)
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrUnknownSecurity, rec.Symbol, rec.Exchange)
	}
	book, ok := bt.books[BookKey{Market: rec.MarketType, Exchange: ex.Name(), Security: sec}]
	if !ok {
		return fmt.Errorf("%w: %s %s %s", ErrBookNotFound, rec.MarketType, rec.Exchange, rec.Symbol)
	}

	ev := strategy.Event{
		Timestamp:  rec.Timestamp,
		Exchange:   ex,
		MarketType: rec.MarketType,
		Security:   sec,
		Book:       book,
	}

	var orders []*engine.Order
	switch rec.Kind {
	case feed.KindTrade:
		bt.lastPx[priceKey{Market: rec.MarketType, Security: sec}] = rec.Price
		fills, err := book.TradeOccurred(rec.Price, rec.Size)
		if err != nil {
			return err
		}
		bt.applyEventFills(fills, rec.Timestamp)
		orders = bt.strat.OnTrade(strategy.TradeEvent{Event: ev, Price: rec.Price, Size: rec.Size})

	case feed.KindBidUpdate:
		fills, err := book.BuySideUpdated(rec.BidPrice, rec.BidSize)
		if err != nil {
			return err
		}
		bt.applyEventFills(fills, rec.Timestamp)
		orders = bt.strat.OnTopQuote(strategy.QuoteEvent{
			Event:    ev,
			BidPrice: rec.BidPrice, BidSize: rec.BidSize,
			AskPrice: rec.AskPrice, AskSize: rec.AskSize,
		})

	case feed.KindAskUpdate:
		fills, err := book.SellSideUpdated(rec.AskPrice, rec.AskSize)
		if err != nil {
			return err
		}
		bt.applyEventFills(fills, rec.Timestamp)
		orders = bt.strat.OnTopQuote(strategy.QuoteEvent{
			Event:    ev,
			BidPrice: rec.BidPrice, BidSize: rec.BidSize,
			AskPrice: rec.AskPrice, AskSize: rec.AskSize,
		})

	case feed.KindBuySideUpdate:
		fills, err := book.BuySideUpdated(rec.Price, rec.Size)
		if err != nil {
			return err
		}
		bt.applyEventFills(fills, rec.Timestamp)
		orders = bt.strat.OnDepth(strategy.DepthEvent{Event: ev, Side: market.Buy, Price: rec.Price, Size: rec.Size})

	case feed.KindSellSideUpdate:
		fills, err := book.SellSideUpdated(rec.Price, rec.Size)
		if err != nil {
			return err
		}
		bt.applyEventFills(fills, rec.Timestamp)
		orders = bt.strat.OnDepth(strategy.DepthEvent{Event: ev, Side: market.Sell, Price: rec.Price, Size: rec.Size})
	}
	mtxEvents.WithLabelValues(string(rec.Kind)).Inc()

	if err := bt.admitOrders(orders); err != nil {
		return err
	}
	if err := bt.workPending(rec.Timestamp); err != nil {
		return err
	}
	bt.evictPending()
	bt.snapshotBalances(rec.Timestamp)
	return nil
}

// applyEventFills converts fills caused by market events into maker trades:
// the user order was resting when the event consumed it.
func (bt *Backtester) applyEventFills(fills []engine.Fill, ts market.Timestamp) {
	for _, f := range fills {
		if err := f.Order.Fill(f.Qty, f.Price); err != nil {
			bt.log.Warn().Err(err).Int64("orderID", int64(f.Order.ID())).Msg("skipping stale fill")
			continue
		}
		bt.recordTrade(f.Order, ts, f.Qty, f.Price, true)
	}
}

// recordTrade books one execution: ledger entry, balance change and
// strategy position update.
func (bt *Backtester) recordTrade(o *engine.Order, ts market.Timestamp, qty, price float64, isMaker bool) {
	trade := engine.NewTrade(bt.arena.NextTradeID(), o, ts, qty, price, isMaker)
	bt.tradeLog.Add(trade)

	side := float64(o.Side())
	bt.account.UpdateBalance(o.MarketType(), -side*qty*price-trade.Fee())
	bt.strat.UpdatePosition(o.MarketType(), o.Exchange(), o.Security(), side*qty)

	liquidity := "taker"
	if isMaker {
		liquidity = "maker"
	}
	mtxTrades.WithLabelValues(liquidity).Inc()
	bt.log.Debug().
		Int64("tradeID", trade.ID()).
		Int64("orderID", int64(o.ID())).
		Float64("qty", qty).
		Float64("price", price).
		Bool("maker", isMaker).
		Msg("trade")
}

// admitOrders appends strategy-produced orders to the pending list. An order
// whose notional exceeds the market's available balance is a strategy bug:
// the order is rejected and the run aborts.
func (bt *Backtester) admitOrders(orders []*engine.Order) error {
	for _, o := range orders {
		notional := o.BaseSize() * o.Price()
		if bt.account.Balance(o.MarketType())-notional < 0 {
			o.Reject()
			return fmt.Errorf("%w: order %d needs %.2f, %s balance is %.2f",
				ErrInsufficientBalance, o.ID(), notional, o.MarketType(), bt.account.Balance(o.MarketType()))
		}
		bt.pending = append(bt.pending, o.ID())
		bt.orderLog.Add(o)
		mtxOrders.WithLabelValues(o.Variant().String(), o.Side().String()).Inc()
	}
	return nil
}

// workPending advances every pending order through the latency gate, the
// trigger check and, when fillable, the matcher. Each order is checked
// against its own book and its own market's last traded price.
func (bt *Backtester) workPending(now market.Timestamp) error {
	for _, id := range bt.pending {
		o := bt.arena.Get(id)
		book, ok := bt.books[BookKey{Market: o.MarketType(), Exchange: o.Exchange().Name(), Security: o.Security()}]
		if !ok {
			return fmt.Errorf("%w: %s %s %s", ErrBookNotFound, o.MarketType(), o.Exchange().Name(), o.Security())
		}

		if o.State() == engine.SentToExchange {
			o.CheckReceived(now)
		}
		if o.IsLive() && (o.Variant() == engine.StopOrder || o.Variant() == engine.StopLimitOrder) {
			o.CheckTriggered(bt.lastPx[priceKey{Market: o.MarketType(), Security: o.Security()}])
		}
		if !o.CheckFillability(book.BestBid(), book.BestAsk()) {
			continue
		}

		var fills []engine.PriceQty
		switch o.Variant() {
		case engine.MarketOrder, engine.StopOrder:
			fills = book.FillMarket(o)
		case engine.LimitOrder, engine.StopLimitOrder:
			q := math.Min(book.LimitInstantFillQuantity(o.Price(), o.Side()), o.Remaining())
			residual := o.Remaining() - q
			if q > 0 {
				fills = book.InstantFillLimit(o, q)
			}
			if residual > 0 {
				restFills, err := book.AddOrder(o.Price(), o.Side(), residual, o)
				if err != nil {
					return err
				}
				fills = append(fills, restFills...)
			}
		}

		for _, pq := range fills {
			if err := o.Fill(pq.Qty, pq.Price); err != nil {
				bt.log.Warn().Err(err).Int64("orderID", int64(o.ID())).Msg("skipping fill")
				continue
			}
			bt.recordTrade(o, now, pq.Qty, pq.Price, false)
		}
	}
	return nil
}

// evictPending drops orders that are neither live nor still in flight.
func (bt *Backtester) evictPending() {
	kept := bt.pending[:0]
	for _, id := range bt.pending {
		o := bt.arena.Get(id)
		if o.IsLive() || o.State() == engine.SentToExchange {
			kept = append(kept, id)
		}
	}
	bt.pending = kept
}

// snapshotBalances records the per-event balance point. Once trading has
// started, open positions are marked to market: each position adjusts its
// own market's balance by pos * (weighted average fill price - last traded
// price).
func (bt *Backtester) snapshotBalances(ts market.Timestamp) {
	spot := bt.account.Balance(market.Spot)
	futures := bt.account.Balance(market.Futures)

	if len(bt.tradeLog.Trades()) > 0 {
		for key, pos := range bt.strat.PositionMap() {
			if pos == 0 {
				continue
			}
			last := bt.lastPx[priceKey{Market: key.Market, Security: key.Security}]
			avg := bt.tradeLog.WeightedAvgFillPrice(math.Abs(pos))
			adj := pos * (avg - last)
			if key.Market == market.Spot {
				spot += adj
			} else {
				futures += adj
			}
		}
	}

	bt.tradeLog.AddBalanceSnapshot(ts, spot, futures)
	mtxBalance.WithLabelValues(market.Spot.String()).Set(spot)
	mtxBalance.WithLabelValues(market.Futures.String()).Set(futures)
}
