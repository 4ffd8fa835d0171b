package validation

import (
	"context"
	"time"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	"github.com/ducminhle1904/bufferzone-backtest/internal/strategy"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// Package validation provides walk-forward validation and combinatorial overfitting statistics

// GridRunner evaluates a parameter grid over a series; *backtest.GridPool implements it
type GridRunner interface {
	ExecuteParallel(ctx context.Context, series *types.AlignedSeries, combos []strategy.StrategyParams, opts backtest.Options) ([]backtest.GridResult, error)
}

// BacktestRunner runs one parameter set; *backtest.Executor implements it
type BacktestRunner interface {
	RunWithOptions(series *types.AlignedSeries, params strategy.StrategyParams, opts backtest.RunOptions) (*backtest.Result, error)
}

// WindowMode selects how the training window moves
type WindowMode string

const (
	// ModeExpanding keeps the train start at the history start and grows the train end
	ModeExpanding WindowMode = "expanding"
	// ModeRolling slides a fixed-width train window
	ModeRolling WindowMode = "rolling"
)

// WalkForwardConfig holds the configuration for walk-forward validation
type WalkForwardConfig struct {
	TrainYears int
	TestYears  int
	Mode       WindowMode
	Metric     backtest.SelectionMetric
	// InitialCapital seeds the first test window; 0 takes it from the first combination
	InitialCapital float64
}

// YearWindow is one train/test split in calendar terms; ends are exclusive
type YearWindow struct {
	Index      int
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
}

// Fold is a YearWindow resolved to row ranges [TrainFrom, TrainTo) and [TestFrom, TestTo)
type Fold struct {
	Window    YearWindow
	TrainFrom int
	TrainTo   int
	TestFrom  int
	TestTo    int
}

func (f Fold) TrainRows() int { return f.TrainTo - f.TrainFrom }
func (f Fold) TestRows() int  { return f.TestTo - f.TestFrom }

// WfoWindowResult holds the results for a single window; dates are the first and last rows of each slice
type WfoWindowResult struct {
	WindowIdx     int                     `json:"window_idx"`
	TrainStart    time.Time               `json:"train_start"`
	TrainEnd      time.Time               `json:"train_end"`
	TestStart     time.Time               `json:"test_start"`
	TestEnd       time.Time               `json:"test_end"`
	BestParams    strategy.StrategyParams `json:"best_params"`
	TestReturnPct float64                 `json:"test_return_pct"`
	TestMDD       float64                 `json:"test_mdd"`
	TrainMetric   float64                 `json:"train_metric"`
	TestMetric    float64                 `json:"test_metric"`
	StartCapital  float64                 `json:"start_capital"`
	EndCapital    float64                 `json:"end_capital"`
	TestTrades    int                     `json:"test_trades"`
}

// WalkForwardResult is the stitched out-of-sample record
type WalkForwardResult struct {
	Windows []WfoWindowResult    `json:"windows"`
	Equity  []types.EquityRecord `json:"equity"`
	Trades  []types.TradeRecord  `json:"trades"`
	Summary types.Summary        `json:"summary"`

	Metric         backtest.SelectionMetric `json:"metric"`
	MeanTrainValue float64                  `json:"mean_train_metric"`
	MeanTestValue  float64                  `json:"mean_test_metric"`
	// DistinctParams counts different best parameter sets across windows
	DistinctParams int `json:"distinct_params"`
	Skipped        int `json:"skipped_windows"`
	Excluded       int `json:"excluded_windows"`
}

// CSCVSplit chooses half the blocks as in-sample; the complement is out-of-sample
type CSCVSplit struct {
	IS  []int `json:"is"`
	OOS []int `json:"oos"`
}

// PboResult summarizes the CSCV run
type PboResult struct {
	PBO            float64   `json:"pbo"`
	Splits         int       `json:"splits"`
	ValidSplits    int       `json:"valid_splits"`
	Overfit        int       `json:"overfit_splits"`
	Logits         []float64 `json:"logits"`
	MeanLogit      float64   `json:"mean_logit"`
	ProbOOSLoss    float64   `json:"prob_oos_loss"`
	SlopeISvsOOS   float64   `json:"degradation_slope"`
	InterceptOOS   float64   `json:"degradation_intercept"`
	Blocks         int       `json:"blocks"`
	BlockLen       int       `json:"block_len"`
	Combinations   int       `json:"combinations"`
	BestISCounts   []int     `json:"-"`
	ISBestOOSValue []float64 `json:"-"`
	ISBestISValue  []float64 `json:"-"`
}

// DsrResult is the deflated Sharpe ratio and its inputs
type DsrResult struct {
	DSR              float64 `json:"dsr"`
	Sharpe           float64 `json:"sharpe"`
	SharpeAnnualized float64 `json:"sharpe_annualized"`
	SR0              float64 `json:"sr0"`
	SR0Annualized    float64 `json:"sr0_annualized"`
	ZScore           float64 `json:"z_score"`
	Skewness         float64 `json:"skewness"`
	Kurtosis         float64 `json:"kurtosis"`
	Trials           int     `json:"trials"`
	Observations     int     `json:"observations"`
}
