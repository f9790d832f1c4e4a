package engine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"skoll/internal/engine"
	"skoll/internal/market"
)

// --- Setup & Helpers --------------------------------------------------------

const exchangeConfigDoc = `{
  "Binance": {
    "nanosecondLatencyTo": 0,
    "nanosecondLatencyFrom": 0,
    "tradeingRules": {
      "Spot/Margin": {
        "BTC/USDT": [0.01, 0.001, 10, 1000, 10000000, 100, 1000000, 0, 0, 0, 10, 5]
      },
      "Futures": {
        "BTC/USDT": [0.01, 0.001, 10, 1000, 10000000, 100, 1000000, 0, 0, 0, 10, 5]
      }
    },
    "feeStructure": {
      "Spot/Margin": {"Maker": [0.1, 0.08], "Taker": [0.2, 0.18]},
      "Futures": {"Maker": [0.1, 0.08], "Taker": [0.2, 0.18]}
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
	require.Len(t, exchanges, 1)
	return exchanges[0]
}

func ts(t *testing.T, s string) market.Timestamp {
	t.Helper()
	parsed, err := market.ParseTimestamp(s)
	require.NoError(t, err)
	return parsed
}

// baseParams returns a valid 1x spot limit buy to mutate per test case.
func baseParams(t *testing.T, ex *market.Exchange) engine.OrderParams {
	return engine.OrderParams{
		Variant:    engine.LimitOrder,
		Side:       market.Buy,
		MarketType: market.Spot,
		Security:   btcusdt,
		Exchange:   ex,
		Submitted:  ts(t, "2024-03-01 10:00:00.000000000"),
		Leverage:   1,
		Margin:     market.NoMargin,
		BaseSize:   1.5,
		Price:      100.5,
	}
}

// mustWorking builds an order and walks it to Working via the zero-latency
// receive gate.
func mustWorking(t *testing.T, arena *engine.Arena, p engine.OrderParams) *engine.Order {
	t.Helper()
	o, err := arena.NewOrder(p)
	require.NoError(t, err)
	o.CheckReceived(p.Submitted)
	require.Equal(t, engine.Working, o.State())
	return o
}

func newTestBook(t *testing.T, ex *market.Exchange, arena *engine.Arena) *engine.OrderBook {
	t.Helper()
	book, err := engine.NewOrderBook(ex, market.Spot, btcusdt, arena)
	require.NoError(t, err)
	return book
}
