package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/config"
)

func TestDefaults(t *testing.T) {
	s, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "sample_result.csv", s.Output.BalanceHistory)
	assert.Equal(t, "sample_tradelog.csv", s.Output.TradeLog)
	assert.Equal(t, "sample_latency_analysis.csv", s.Output.LatencyAnalysis)
	assert.Equal(t, 180, s.Strategy.CandleSeconds)
	assert.Equal(t, 5, s.Strategy.ShortWindow)
	assert.Equal(t, 20, s.Strategy.LongWindow)
	assert.Equal(t, 0, s.Fees.Tier)
	assert.Equal(t, "info", s.Logging.Level)
	assert.Empty(t, s.Metrics.Addr)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	doc := `
output:
  balance_history: out/balances.csv
strategy:
  candle_seconds: 60
  short_window: 3
  long_window: 9
fees:
  tier: 1
logging:
  level: debug
metrics:
  addr: 127.0.0.1:9091
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out/balances.csv", s.Output.BalanceHistory)
	assert.Equal(t, "sample_tradelog.csv", s.Output.TradeLog, "unset keys keep defaults")
	assert.Equal(t, 60, s.Strategy.CandleSeconds)
	assert.Equal(t, 3, s.Strategy.ShortWindow)
	assert.Equal(t, 9, s.Strategy.LongWindow)
	assert.Equal(t, 1, s.Fees.Tier)
	assert.Equal(t, "debug", s.Logging.Level)
	assert.Equal(t, "127.0.0.1:9091", s.Metrics.Addr)
}

func TestMissingFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestRejectsInvertedWindows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy:\n  short_window: 20\n  long_window: 5\n"), 0o644))
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestRejectsNonPositiveCandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy:\n  candle_seconds: 0\n"), 0o644))
	_, err := config.Load(path)
	assert.Error(t, err)
}
