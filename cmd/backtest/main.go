// backtest replays a market data file through the simulated exchange and
// writes the balance history and trade ledger as CSV.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"skoll/internal/backtest"
	"skoll/internal/config"
	"skoll/internal/engine"
	"skoll/internal/market"
	"skoll/internal/strategy"
)

var settingsPath string

var rootCmd = &cobra.Command{
	Use:          "backtest <spot_balance> <futures_balance> <config_path> <data_path>",
	Short:        "Run one backtest over a market data file",
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
	setupLogging(settings.Logging.Level)

	account, err := backtest.NewAccount(spot, futures, args[2])
	if err != nil {
		return err
	}
	if err := applyFeeTier(account, settings.Fees.Tier); err != nil {
		return err
	}

	arena := engine.NewArena()
	maCross := strategy.NewMovingAverageCross(arena, account.Balance,
		settings.Strategy.CandleSeconds, settings.Strategy.ShortWindow, settings.Strategy.LongWindow)

	bt, err := backtest.New(account, maCross, arena)
	if err != nil {
		return err
	}

	if addr := settings.Metrics.Addr; addr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	if err := bt.Run(args[3]); err != nil {
		return err
	}

	if err := bt.TradeLog().ExportBalanceHistoryCSV(settings.Output.BalanceHistory); err != nil {
		return err
	}
	log.Info().Str("path", settings.Output.BalanceHistory).Msg("balance history exported")
	if err := bt.TradeLog().ExportTradeLogCSV(settings.Output.TradeLog); err != nil {
		return err
	}
	log.Info().Str("path", settings.Output.TradeLog).Msg("trade log exported")

	history := bt.TradeLog().BalanceHistory()
	pnl := -spot - futures
	if len(history) > 0 {
		last := history[len(history)-1]
		pnl += last.Spot + last.Futures
	} else {
		pnl = 0
	}
	fmt.Printf("Strategy Total P&L: %s\n", decimal.NewFromFloat(pnl).StringFixed(2))
	return nil
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

func applyFeeTier(account *backtest.Account, tier int) error {
	for _, ex := range account.Exchanges() {
		for _, mt := range []market.MarketType{market.Spot, market.Futures} {
			if err := ex.SetFeeTier(mt, tier); err != nil {
				return err
			}
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
