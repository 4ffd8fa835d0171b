package backtest

import (
	"fmt"
	"time"

	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/internal/indicators"
	"github.com/ducminhle1904/bufferzone-backtest/internal/monitoring"
	"github.com/ducminhle1904/bufferzone-backtest/internal/strategy"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// MinValidRows is the minimum number of rows a test slice needs to count as a window
const MinValidRows = 20

// RunOptions adjusts a single executor run
type RunOptions struct {
	// StartDate is the first trading day. Rows before it only warm up the moving average.
	StartDate time.Time
	// MA is a precomputed moving average over the whole series; nil means compute it.
	MA []float64
}

// Result is the output of one backtest run
type Result struct {
	Params  strategy.StrategyParams `json:"params"`
	Equity  []types.EquityRecord    `json:"equity"`
	Trades  []types.TradeRecord     `json:"trades"`
	Summary types.Summary           `json:"summary"`
}

// Executor drives the buffer-zone state machine over an aligned series.
// It holds no per-run state and is safe for concurrent use.
type Executor struct {
	exec strategy.ExecutionConfig
}

// NewExecutor creates an executor with the given cost model and MA type
func NewExecutor(exec strategy.ExecutionConfig) *Executor {
	return &Executor{exec: exec}
}

// ExecutionConfig returns the cost model used by the executor
func (e *Executor) ExecutionConfig() strategy.ExecutionConfig {
	return e.exec
}

// Run backtests params over the whole series
func (e *Executor) Run(series *types.AlignedSeries, params strategy.StrategyParams) (*Result, error) {
	return e.RunWithOptions(series, params, RunOptions{})
}

// RunWithOptions backtests params over the series starting at opts.StartDate.
//
// Day loop, for row i from the start row:
//   - an order pending from row i-1 fills at the trade open of row i
//   - on the last row any position is liquidated at the trade close and nothing else happens
//   - otherwise sell then buy signals fire when the signal close crosses the band since row i-1
//   - equity is marked at the trade close
func (e *Executor) RunWithOptions(series *types.AlignedSeries, params strategy.StrategyParams, opts RunOptions) (*Result, error) {
	res, err := e.run(series, params, opts)
	trades := 0
	if res != nil {
		trades = len(res.Trades)
	}
	monitoring.RecordBacktestRun(err, trades)
	return res, err
}

func (e *Executor) run(series *types.AlignedSeries, params strategy.StrategyParams, opts RunOptions) (*Result, error) {
	bz, err := strategy.NewBufferZone(params, e.exec)
	if err != nil {
		return nil, err
	}

	n := series.Len()
	if n == 0 || len(series.Trade) != n {
		return nil, bterrors.NewDataValidationError("backtest", "run",
			fmt.Sprintf("series must be non-empty with equal legs (signal=%d, trade=%d)", n, len(series.Trade)))
	}

	ma := opts.MA
	if ma == nil {
		ma, err = indicators.MovingAverage(signalCloses(series), params.MAWindow, e.exec.MAType)
		if err != nil {
			return nil, bterrors.WrapConfigError(err, "backtest", "run")
		}
	} else if len(ma) != n {
		return nil, bterrors.NewDataValidationError("backtest", "run",
			fmt.Sprintf("precomputed moving average has %d rows, series has %d", len(ma), n))
	}

	start := 0
	if !opts.StartDate.IsZero() {
		start = series.IndexOnOrAfter(opts.StartDate)
	}
	if valid := indicators.CountValid(ma[start:]); valid < 2 {
		return nil, bterrors.NewDataValidationError("backtest", "run",
			fmt.Sprintf("need at least 2 valid rows after moving-average warm-up, got %d", valid)).
			WithContext("ma_window", params.MAWindow).
			WithContext("rows", n-start)
	}

	bands := func(i int) strategy.Bands {
		return strategy.ComputeBands(ma[i], params.BuyBufferPct, params.SellBufferPct)
	}
	// a crossing on the first trading day is judged against the last warm-up row
	if start > 0 {
		bz.Observe(series.Signal[start-1].Close, bands(start-1))
	}

	equity := make([]types.EquityRecord, 0, n-start)
	last := n - 1
	for i := start; i < n; i++ {
		date := series.Date(i)
		trade := series.Trade[i]

		bz.FillPending(date, i, trade.Open)

		if i == last {
			bz.Liquidate(date, trade.Close)
		} else if err := bz.EvaluateSignals(date, i, series.Signal[i].Close, bands(i)); err != nil {
			return nil, err
		}

		equity = append(equity, types.EquityRecord{Date: date, Equity: bz.Equity(trade.Close)})
	}

	return &Result{
		Params:  params,
		Equity:  equity,
		Trades:  bz.Trades(),
		Summary: ComputeSummary(params.InitialCapital, equity, bz.Trades()),
	}, nil
}

func signalCloses(series *types.AlignedSeries) []float64 {
	closes := make([]float64, series.Len())
	for i, bar := range series.Signal {
		closes[i] = bar.Close
	}
	return closes
}
