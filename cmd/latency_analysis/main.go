// latency_analysis replays the same market data under a sweep of sending
// latencies and writes the final balances per latency as CSV.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"skoll/internal/backtest"
	"skoll/internal/config"
	"skoll/internal/engine"
	"skoll/internal/market"
	"skoll/internal/strategy"
)

var settingsPath string

var rootCmd = &cobra.Command{
	Use:          "latency_analysis <spot_balance> <futures_balance> <config_path> <data_path>",
	Short:        "Sweep sending latencies and record the final balances",
	Args:         cobra.ExactArgs(4),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&settingsPath, "settings", "", "optional runner settings YAML")
}

func run(cmd *cobra.Command, args []string) error {
	spot, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("spot balance: %w", err)
	}
	futures, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("futures balance: %w", err)
	}

	settings, err := config.Load(settingsPath)
	if err != nil {
		return err
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if parsed, err := zerolog.ParseLevel(settings.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(parsed)
	}

	account, err := backtest.NewAccount(spot, futures, args[2])
	if err != nil {
		return err
	}
	for _, ex := range account.Exchanges() {
		for _, mt := range []market.MarketType{market.Spot, market.Futures} {
			if err := ex.SetFeeTier(mt, settings.Fees.Tier); err != nil {
				return err
			}
		}
	}

	arena := engine.NewArena()
	maCross := strategy.NewMovingAverageCross(arena, account.Balance,
		settings.Strategy.CandleSeconds, settings.Strategy.ShortWindow, settings.Strategy.LongWindow)

	bt, err := backtest.New(account, maCross, arena)
	if err != nil {
		return err
	}

	results, err := bt.RunLatencySweep(args[3])
	if err != nil {
		return err
	}
	if err := backtest.WriteLatencyCSV(settings.Output.LatencyAnalysis, results); err != nil {
		return err
	}
	log.Info().Str("path", settings.Output.LatencyAnalysis).Msg("latency analysis exported")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
