package strategy_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/engine"
	"skoll/internal/market"
	"skoll/internal/strategy"
)

// --- Setup & Helpers --------------------------------------------------------

const exchangeConfigDoc = `{
  "Binance": {
    "nanosecondLatencyTo": 0,
    "nanosecondLatencyFrom": 0,
    "tradeingRules": {
      "Spot/Margin": {
        "BTC/USDT": [0.01, 0.001, 1, 1000, 10000000, 100, 1000000, 0, 0, 0, 10, 5]
      },
      "Futures": {
        "BTC/USDT": [0.01, 0.001, 1, 1000, 10000000, 100, 1000000, 0, 0, 0, 10, 5]
      }
    },
    "feeStructure": {
      "Spot/Margin": {"Maker": [0.1], "Taker": [0.2]},
      "Futures": {"Maker": [0.1], "Taker": [0.2]}
    }
  }
}`

var btcusdt = market.Security{Base: "BTC", Quote: "USDT"}

func loadExchange(t *testing.T) *market.Exchange {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exchange.json")
	require.NoError(t, os.WriteFile(path, []byte(exchangeConfigDoc), 0o644))
	exchanges, err := market.LoadExchanges(path)
	require.NoError(t, err)
	return exchanges[0]
}

// tradeAt builds a trade event at second offsets from a fixed origin.
func tradeAt(t *testing.T, ex *market.Exchange, second int, price float64) strategy.TradeEvent {
	t.Helper()
	ts, err := market.ParseTimestamp(fmt.Sprintf("2024-03-01 10:00:%02d.000000000", second))
	require.NoError(t, err)
	return strategy.TradeEvent{
		Event: strategy.Event{
			Timestamp:  ts,
			Exchange:   ex,
			MarketType: market.Spot,
			Security:   btcusdt,
		},
		Price: price,
		Size:  1,
	}
}

func fixedBalance(v float64) strategy.BalanceFunc {
	return func(market.MarketType) float64 { return v }
}

// --- Tests ------------------------------------------------------------------

func TestBullishCrossEmitsMarketBuy(t *testing.T) {
	ex := loadExchange(t)
	arena := engine.NewArena()
	// 1s candles, 2/3 moving averages: the signal can fire on the 4th candle.
	ma := strategy.NewMovingAverageCross(arena, fixedBalance(1000), 1, 2, 3)

	// Closes 110, 100, 100 then an open at 115:
	// short MA (115+100)/2 crosses above long MA (115+100+100)/3 while the
	// previous pair had short below long.
	assert.Empty(t, ma.OnTrade(tradeAt(t, ex, 0, 110)))
	assert.Empty(t, ma.OnTrade(tradeAt(t, ex, 1, 100)))
	assert.Empty(t, ma.OnTrade(tradeAt(t, ex, 2, 100)))

	orders := ma.OnTrade(tradeAt(t, ex, 3, 115))
	require.Len(t, orders, 1)

	o := orders[0]
	assert.Equal(t, engine.MarketOrder, o.Variant())
	assert.Equal(t, market.Buy, o.Side())
	assert.Equal(t, uint(1), o.Leverage())
	// 3% of the balance at the trade price, rounded to two decimals.
	assert.InDelta(t, 0.26, o.BaseSize(), 1e-9)
	assert.Equal(t, 115.0, o.Price())
	assert.Equal(t, engine.SentToExchange, o.State())
}

func TestBearishCrossFlipsPosition(t *testing.T) {
	ex := loadExchange(t)
	arena := engine.NewArena()
	ma := strategy.NewMovingAverageCross(arena, fixedBalance(1000), 1, 2, 3)

	// Already long 0.5 from earlier fills.
	ma.UpdatePosition(market.Spot, ex, btcusdt, 0.5)

	assert.Empty(t, ma.OnTrade(tradeAt(t, ex, 0, 90)))
	assert.Empty(t, ma.OnTrade(tradeAt(t, ex, 1, 100)))
	assert.Empty(t, ma.OnTrade(tradeAt(t, ex, 2, 100)))

	orders := ma.OnTrade(tradeAt(t, ex, 3, 85))
	require.Len(t, orders, 1)

	o := orders[0]
	assert.Equal(t, market.Sell, o.Side())
	// 3% of balance plus the open position's absolute size.
	assert.InDelta(t, 0.35+0.5, o.BaseSize(), 1e-9)
}

func TestCandleAggregation(t *testing.T) {
	ex := loadExchange(t)
	arena := engine.NewArena()
	// 60s candles so all trades land in one bucket; no signal possible.
	ma := strategy.NewMovingAverageCross(arena, fixedBalance(1000), 60, 2, 3)

	assert.Empty(t, ma.OnTrade(tradeAt(t, ex, 0, 100)))
	assert.Empty(t, ma.OnTrade(tradeAt(t, ex, 1, 105)))
	assert.Empty(t, ma.OnTrade(tradeAt(t, ex, 2, 95)))
	assert.Empty(t, ma.OnTrade(tradeAt(t, ex, 59, 99)))
}

func TestFlatTapeStaysQuiet(t *testing.T) {
	ex := loadExchange(t)
	arena := engine.NewArena()
	ma := strategy.NewMovingAverageCross(arena, fixedBalance(1000), 1, 2, 3)

	for s := 0; s < 10; s++ {
		assert.Empty(t, ma.OnTrade(tradeAt(t, ex, s, 100)))
	}
}

func TestClearResetsCandlesAndPositions(t *testing.T) {
	ex := loadExchange(t)
	arena := engine.NewArena()
	ma := strategy.NewMovingAverageCross(arena, fixedBalance(1000), 1, 2, 3)

	ma.UpdatePosition(market.Spot, ex, btcusdt, 2)
	assert.Empty(t, ma.OnTrade(tradeAt(t, ex, 0, 100)))

	ma.Clear()
	assert.Zero(t, ma.Position(market.Spot, ex, btcusdt))
	assert.Empty(t, ma.PositionMap())
}

func TestPositionTracker(t *testing.T) {
	ex := loadExchange(t)
	var tracker strategy.PositionTracker

	assert.Zero(t, tracker.Position(market.Spot, ex, btcusdt))
	tracker.UpdatePosition(market.Spot, ex, btcusdt, 1.5)
	tracker.UpdatePosition(market.Spot, ex, btcusdt, -0.5)
	assert.Equal(t, 1.0, tracker.Position(market.Spot, ex, btcusdt))
	assert.Zero(t, tracker.Position(market.Futures, ex, btcusdt))

	key := strategy.PositionKey{Market: market.Spot, Exchange: "Binance", Security: btcusdt}
	assert.Equal(t, 1.0, tracker.PositionMap()[key])
}
