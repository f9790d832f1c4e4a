// Package config defines the runner settings: output paths, strategy
// parameters, fee tier and observability knobs. Settings are read from an
// optional YAML file with SKOLL_* environment overrides; the exchange
// configuration document is separate and handled by internal/market.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Settings is the top-level runner configuration.
type Settings struct {
	Output   OutputSettings   `mapstructure:"output"`
	Strategy StrategySettings `mapstructure:"strategy"`
	Fees     FeeSettings      `mapstructure:"fees"`
	Logging  LoggingSettings  `mapstructure:"logging"`
	Metrics  MetricsSettings  `mapstructure:"metrics"`
}

// OutputSettings names the CSV files the runs produce.
type OutputSettings struct {
	BalanceHistory  string `mapstructure:"balance_history"`
	TradeLog        string `mapstructure:"trade_log"`
	LatencyAnalysis string `mapstructure:"latency_analysis"`
}

// StrategySettings tunes the sample moving-average-cross strategy.
type StrategySettings struct {
	CandleSeconds int `mapstructure:"candle_seconds"`
	ShortWindow   int `mapstructure:"short_window"`
	LongWindow    int `mapstructure:"long_window"`
}

// FeeSettings selects the fee schedule tier applied to every exchange.
type FeeSettings struct {
	Tier int `mapstructure:"tier"`
}

type LoggingSettings struct {
	Level string `mapstructure:"level"`
}

// MetricsSettings configures the optional Prometheus listener. An empty
// address disables it. Only the backtest command starts the listener;
// latency_analysis ignores the address.
type MetricsSettings struct {
	Addr string `mapstructure:"addr"`
}

// Load reads settings from the given YAML file, or returns the defaults
// when path is empty. SKOLL_* environment variables override either way.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetDefault("output.balance_history", "sample_result.csv")
	v.SetDefault("output.trade_log", "sample_tradelog.csv")
	v.SetDefault("output.latency_analysis", "sample_latency_analysis.csv")
	v.SetDefault("strategy.candle_seconds", 180)
	v.SetDefault("strategy.short_window", 5)
	v.SetDefault("strategy.long_window", 20)
	v.SetDefault("fees.tier", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.addr", "")

	v.SetEnvPrefix("SKOLL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	if s.Strategy.CandleSeconds <= 0 {
		return fmt.Errorf("strategy.candle_seconds must be positive")
	}
	if s.Strategy.ShortWindow <= 0 || s.Strategy.LongWindow <= 0 {
		return fmt.Errorf("strategy windows must be positive")
	}
	if s.Strategy.ShortWindow >= s.Strategy.LongWindow {
		return fmt.Errorf("strategy.short_window must be below strategy.long_window")
	}
	if s.Fees.Tier < 0 {
		return fmt.Errorf("fees.tier must not be negative")
	}
	return nil
}
