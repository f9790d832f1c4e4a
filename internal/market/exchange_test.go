package market

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exchangeConfigDoc = `{
  "Binance": {
    "nanosecondLatencyTo": 25,
    "nanosecondLatencyFrom": 30,
    "tradeingRules": {
      "Spot/Margin": {
        "BTC/USDT": [0.01, 0.001, 10, 1000, 10000000, 100, 1000000, 0, 0, 0, 10, 5]
      },
      "Futures": {
        "BTC/USDT": [0.01, 0.001, 10, 1000, 10000000, 100, 1000000, 0, 0, 0, 10, 5],
        "ETH/USDT": [0.01, 0.01, 10, 5000, 10000000, 500, 1000000, 0, 0, 0, 20, 10]
      }
    },
    "feeStructure": {
      "Spot/Margin": {"Maker": [0.1, 0.08], "Taker": [0.2, 0.18]},
      "Futures": {"Maker": [0.02, 0.01], "Taker": [0.05, 0.04]}
    }
  }
}`

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exchange.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadExchanges(t *testing.T) {
	exchanges, err := LoadExchanges(writeConfig(t, exchangeConfigDoc))
	require.NoError(t, err)
	require.Len(t, exchanges, 1)

	ex := exchanges[0]
	assert.Equal(t, "Binance", ex.Name())
	assert.Equal(t, int64(25), ex.SendingLatency())
	assert.Equal(t, int64(30), ex.ReceivingLatency())

	assert.Len(t, ex.ListedSecurities(Spot), 1)
	assert.Len(t, ex.ListedSecurities(Futures), 2)

	btc, ok := ex.FindSecurity(Spot, "BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, Security{Base: "BTC", Quote: "USDT"}, btc)

	rules, err := ex.TradingRules(Spot, btc)
	require.NoError(t, err)
	assert.Equal(t, 0.01, rules[RuleTickSize])
	assert.Equal(t, 0.001, rules[RuleMinBaseSize])
	assert.Equal(t, 10.0, rules[RuleMaxIsolatedLev])
	assert.Equal(t, 5.0, rules[RuleMaxCrossLev])

	// Tier 0 selected on load.
	assert.Equal(t, 0.1, ex.MakerFee(Spot))
	assert.Equal(t, 0.2, ex.TakerFee(Spot))
	assert.Equal(t, 0.02, ex.MakerFee(Futures))
}

func TestFindSecurityIsCaseSensitive(t *testing.T) {
	exchanges, err := LoadExchanges(writeConfig(t, exchangeConfigDoc))
	require.NoError(t, err)

	_, ok := exchanges[0].FindSecurity(Spot, "btc/usdt")
	assert.False(t, ok)
	_, ok = exchanges[0].FindSecurity(Spot, "XRP/USDT")
	assert.False(t, ok)
}

func TestSetFeeTier(t *testing.T) {
	exchanges, err := LoadExchanges(writeConfig(t, exchangeConfigDoc))
	require.NoError(t, err)
	ex := exchanges[0]

	require.NoError(t, ex.SetFeeTier(Spot, 1))
	assert.Equal(t, 0.08, ex.MakerFee(Spot))
	assert.Equal(t, 0.18, ex.TakerFee(Spot))

	assert.ErrorIs(t, ex.SetFeeTier(Spot, 2), ErrUnknownFeeTier)
	assert.ErrorIs(t, ex.SetFeeTier(Spot, -1), ErrUnknownFeeTier)
}

func TestManualFeeOverrides(t *testing.T) {
	ex := NewExchange("Test")
	ex.SetMakerFee(Spot, 0.5)
	ex.SetTakerFee(Spot, 0.7)
	assert.Equal(t, 0.5, ex.MakerFee(Spot))
	assert.Equal(t, 0.7, ex.TakerFee(Spot))
}

func TestTradingRulesUnknownSecurity(t *testing.T) {
	exchanges, err := LoadExchanges(writeConfig(t, exchangeConfigDoc))
	require.NoError(t, err)

	_, err = exchanges[0].TradingRules(Spot, Security{Base: "XRP", Quote: "USDT"})
	assert.ErrorIs(t, err, ErrSecurityNotListed)
}

func TestLoadExchangesRejectsShortRuleVector(t *testing.T) {
	doc := `{
  "Bad": {
    "nanosecondLatencyTo": 0,
    "nanosecondLatencyFrom": 0,
    "tradeingRules": {
      "Spot/Margin": {"BTC/USDT": [0.01, 0.001]},
      "Futures": {}
    },
    "feeStructure": {
      "Spot/Margin": {"Maker": [0.1], "Taker": [0.2]},
      "Futures": {"Maker": [0.1], "Taker": [0.2]}
    }
  }
}`
	_, err := LoadExchanges(writeConfig(t, doc))
	assert.ErrorIs(t, err, ErrBadExchangeConfig)
}

func TestLoadExchangesRejectsMismatchedFeeTiers(t *testing.T) {
	doc := `{
  "Bad": {
    "nanosecondLatencyTo": 0,
    "nanosecondLatencyFrom": 0,
    "tradeingRules": {
      "Spot/Margin": {"BTC/USDT": [0.01, 0.001, 10, 1000, 10000000, 100, 1000000, 0, 0, 0, 10, 5]},
      "Futures": {"BTC/USDT": [0.01, 0.001, 10, 1000, 10000000, 100, 1000000, 0, 0, 0, 10, 5]}
    },
    "feeStructure": {
      "Spot/Margin": {"Maker": [0.1, 0.08], "Taker": [0.2]},
      "Futures": {"Maker": [0.1], "Taker": [0.2]}
    }
  }
}`
	_, err := LoadExchanges(writeConfig(t, doc))
	assert.ErrorIs(t, err, ErrBadExchangeConfig)
}
