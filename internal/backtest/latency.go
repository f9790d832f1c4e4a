package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"skoll/internal/market"
)

// sweepLatencies are the sending latencies, in nanoseconds, replayed by the
// latency analysis.
var sweepLatencies = []int64{0, 10, 25, 50, 100, 200, 500, 1000}

// LatencyResult is the final balances of one sweep run.
type LatencyResult struct {
	Latency int64
	Spot    float64
	Futures float64
}

// RunLatencySweep replays the data once per latency value, resetting the
// driver between runs and forcing every exchange's sending latency to the
// swept value.
func (bt *Backtester) RunLatencySweep(dataPath string) ([]LatencyResult, error) {
	initial := bt.account.Balances()

	results := make([]LatencyResult, 0, len(sweepLatencies))
	for _, latency := range sweepLatencies {
		if err := bt.Clear(initial); err != nil {
			return nil, err
		}
		for _, ex := range bt.account.Exchanges() {
			ex.SetSendingLatency(latency)
		}

		if err := bt.Run(dataPath); err != nil {
			return nil, fmt.Errorf("latency %dns: %w", latency, err)
		}

		res := LatencyResult{Latency: latency, Spot: initial[market.Spot], Futures: initial[market.Futures]}
		if hist := bt.tradeLog.BalanceHistory(); len(hist) > 0 {
			last := hist[len(hist)-1]
			res.Spot, res.Futures = last.Spot, last.Futures
		}
		results = append(results, res)

		bt.log.Info().
			Int64("latencyNs", latency).
			Float64("spot", res.Spot).
			Float64("futures", res.Futures).
			Msg("sweep run complete")
	}
	return results, nil
}

// WriteLatencyCSV writes LATENCY,SPOT_BALANCE,FUTURES_BALANCE.
func WriteLatencyCSV(path string, results []LatencyResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create latency analysis: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"LATENCY", "SPOT_BALANCE", "FUTURES_BALANCE"}); err != nil {
		return err
	}
	for _, res := range results {
		row := []string{
			strconv.FormatInt(res.Latency, 10),
			decimal.NewFromFloat(res.Spot).StringFixed(2),
			decimal.NewFromFloat(res.Futures).StringFixed(2),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
