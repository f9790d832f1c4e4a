package record

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"

	"github.com/shopspring/decimal"

	"skoll/internal/engine"
	"skoll/internal/market"
)

// BalanceSnapshot is one point of the per-event balance time series.
type BalanceSnapshot struct {
	Timestamp market.Timestamp
	Spot      float64
	Futures   float64
}

// TradeLog is the insertion-ordered record of executions plus the parallel
// balance history sampled after every input event.
type TradeLog struct {
	trades  []*engine.Trade
	history []BalanceSnapshot
}

func NewTradeLog() *TradeLog {
	return &TradeLog{}
}

func (l *TradeLog) Add(t *engine.Trade) {
	l.trades = append(l.trades, t)
}

func (l *TradeLog) Trades() []*engine.Trade {
	return l.trades
}

func (l *TradeLog) AddBalanceSnapshot(ts market.Timestamp, spot, futures float64) {
	l.history = append(l.history, BalanceSnapshot{Timestamp: ts, Spot: spot, Futures: futures})
}

func (l *TradeLog) BalanceHistory() []BalanceSnapshot {
	return l.history
}

func (l *TradeLog) Clear() {
	l.trades = nil
	l.history = nil
}

// WeightedAvgFillPrice walks trades newest to oldest, consuming up to size,
// and returns the size-weighted average price of what it consumed. With no
// trades, or a zero request, it returns 0; if the log holds less size than
// requested the average covers what was found.
func (l *TradeLog) WeightedAvgFillPrice(size float64) float64 {
	consumed := 0.0
	weighted := 0.0
	for i := len(l.trades) - 1; i >= 0 && consumed < size; i-- {
		t := l.trades[i]
		take := math.Min(t.Size(), size-consumed)
		consumed += take
		weighted += take * t.Price()
	}
	if consumed == 0 {
		return 0
	}
	return weighted / consumed
}

// TotalRealizedPNL sums the cash effect of every trade: -side * notional
// minus fees.
func (l *TradeLog) TotalRealizedPNL() float64 {
	pnl := 0.0
	for _, t := range l.trades {
		pnl -= float64(t.Side())*t.Price()*t.Size() + t.Fee()
	}
	return pnl
}

// ExportBalanceHistoryCSV writes TIMESTAMP,SPOT_BALANCE,FUTURES_BALANCE with
// two-decimal balances.
func (l *TradeLog) ExportBalanceHistoryCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create balance history: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"TIMESTAMP", "SPOT_BALANCE", "FUTURES_BALANCE"}); err != nil {
		return err
	}
	for _, snap := range l.history {
		row := []string{
			snap.Timestamp.String(),
			money(snap.Spot),
			money(snap.Futures),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ExportTradeLogCSV writes one row per trade:
// TIMESTAMP,SECURITY,MARKET_TYPE,EXCHANGE,SIDE,SIZE,FEE.
func (l *TradeLog) ExportTradeLogCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trade log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"TIMESTAMP", "SECURITY", "MARKET_TYPE", "EXCHANGE", "SIDE", "SIZE", "FEE"}); err != nil {
		return err
	}
	for _, t := range l.trades {
		side := "sell"
		if t.Side() == market.Buy {
			side = "Buy"
		}
		row := []string{
			t.Timestamp().String(),
			t.Security().String(),
			t.MarketType().String(),
			t.Exchange().Name(),
			side,
			money(t.Size()),
			money(t.Fee()),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
