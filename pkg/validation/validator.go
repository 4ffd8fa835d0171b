package validation

import (
	"context"
	"fmt"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/internal/monitoring"
	"github.com/ducminhle1904/bufferzone-backtest/internal/strategy"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/logger"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// WalkForwardValidator re-optimizes on each train slice and applies the winner out of sample
type WalkForwardValidator struct {
	grid   GridRunner
	runner BacktestRunner
	log    *logger.Logger
	status *monitoring.SweepStatus
}

// NewWalkForwardValidator creates a validator from a grid runner and a single-run executor
func NewWalkForwardValidator(grid GridRunner, runner BacktestRunner, log *logger.Logger) *WalkForwardValidator {
	return &WalkForwardValidator{
		grid:   grid,
		runner: runner,
		log:    logger.OrNop(log).With(logger.String("component", "wfo")),
	}
}

// WithStatus reports per-window progress to s
func (v *WalkForwardValidator) WithStatus(s *monitoring.SweepStatus) *WalkForwardValidator {
	v.status = s
	return v
}

// Validate runs the walk-forward over series.
//
// Each test slice is backtested on the history prefix ending at the test end with
// trading starting at the test start, so the moving average is already warm on the
// first test day. Capital is chained: every window starts with the previous window's
// ending capital.
func (v *WalkForwardValidator) Validate(ctx context.Context, series *types.AlignedSeries, combos []strategy.StrategyParams, cfg WalkForwardConfig) (*WalkForwardResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Metric == "" {
		cfg.Metric = backtest.MetricCAGR
	}
	if _, err := backtest.ParseSelectionMetric(string(cfg.Metric)); err != nil {
		return nil, err
	}
	if len(combos) == 0 {
		return nil, bterrors.NewConfigError("wfo", "validate", "parameter grid is empty")
	}
	for i, p := range combos {
		if err := p.Validate(); err != nil {
			return nil, bterrors.WrapConfigError(err, "wfo", "validate").WithContext("index", i)
		}
	}

	capital := cfg.InitialCapital
	if capital == 0 {
		capital = combos[0].InitialCapital
	}

	folds := CreateFolds(series, cfg)
	v.status.Begin("wfo", len(folds))
	v.log.Info("walk-forward started",
		logger.Int("windows", len(folds)), logger.String("mode", string(cfg.Mode)),
		logger.Int("train_years", cfg.TrainYears), logger.Int("test_years", cfg.TestYears),
		logger.String("metric", string(cfg.Metric)))

	result := &WalkForwardResult{
		Metric: cfg.Metric,
		Equity: make([]types.EquityRecord, 0, series.Len()),
		Trades: make([]types.TradeRecord, 0),
	}
	initialCapital := capital
	distinct := make(map[string]struct{})
	trainSum, testSum := 0.0, 0.0

	for _, fold := range folds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		window, err := v.runWindow(ctx, series, combos, fold, cfg, capital)
		v.status.Increment()
		if err != nil {
			v.status.Fail(err)
			return nil, err
		}
		if window.skipped {
			result.Skipped++
			continue
		}
		if window.excluded {
			result.Excluded++
			continue
		}

		r := window.result
		result.Windows = append(result.Windows, r)
		result.Equity = append(result.Equity, window.run.Equity...)
		result.Trades = append(result.Trades, window.run.Trades...)
		distinct[r.BestParams.Key()] = struct{}{}
		trainSum += r.TrainMetric
		testSum += r.TestMetric
		capital = r.EndCapital
		monitoring.RecordWFOWindow("ok")
	}

	if len(result.Windows) == 0 {
		err := bterrors.NewConfigError("wfo", "validate",
			fmt.Sprintf("no valid walk-forward windows (%d laid out, %d skipped, %d excluded)",
				len(folds), result.Skipped, result.Excluded))
		v.status.Fail(err)
		return nil, err
	}

	n := float64(len(result.Windows))
	result.MeanTrainValue = trainSum / n
	result.MeanTestValue = testSum / n
	result.DistinctParams = len(distinct)
	result.Summary = backtest.ComputeSummary(initialCapital, result.Equity, result.Trades)

	v.log.Info("walk-forward finished",
		logger.Int("windows", len(result.Windows)), logger.Int("skipped", result.Skipped),
		logger.Int("excluded", result.Excluded),
		logger.Float64("oos_return_pct", result.Summary.TotalReturnPct),
		logger.Float64("oos_mdd", result.Summary.MDD))
	return result, nil
}

type windowOutcome struct {
	result   WfoWindowResult
	run      *backtest.Result
	skipped  bool
	excluded bool
}

func (v *WalkForwardValidator) runWindow(ctx context.Context, series *types.AlignedSeries, combos []strategy.StrategyParams, fold Fold, cfg WalkForwardConfig, capital float64) (*windowOutcome, error) {
	w := fold.Window
	log := v.log.With(logger.Int("window", w.Index),
		logger.Date("train_start", w.TrainStart), logger.Date("test_start", w.TestStart))

	if fold.TestRows() < backtest.MinValidRows {
		log.Info("window excluded: test slice too short",
			logger.Int("test_rows", fold.TestRows()), logger.Int("min_rows", backtest.MinValidRows))
		monitoring.RecordWFOWindow("excluded")
		return &windowOutcome{excluded: true}, nil
	}

	// combinations whose moving average cannot produce two valid rows on the train slice are left out
	eligible := make([]strategy.StrategyParams, 0, len(combos))
	for _, p := range combos {
		if p.MAWindow+1 <= fold.TrainRows() {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		log.Warn("window skipped: train slice has no valid indicator rows",
			logger.Int("train_rows", fold.TrainRows()))
		monitoring.RecordWFOWindow("skipped")
		return &windowOutcome{skipped: true}, nil
	}
	if len(eligible) < len(combos) {
		log.Debug("combinations dropped for short train slice",
			logger.Int("dropped", len(combos)-len(eligible)))
	}

	train := series.Slice(fold.TrainFrom, fold.TrainTo)
	rows, err := v.grid.ExecuteParallel(ctx, train, eligible, backtest.Options{})
	if err != nil {
		return nil, fmt.Errorf("window %d train grid: %w", w.Index, err)
	}
	best, err := backtest.SelectBest(rows, cfg.Metric)
	if err != nil {
		return nil, err
	}

	params := rows[best].Params
	params.InitialCapital = capital
	prefix := series.Slice(0, fold.TestTo)
	run, err := v.runner.RunWithOptions(prefix, params, backtest.RunOptions{StartDate: series.Date(fold.TestFrom)})
	if err != nil {
		return nil, fmt.Errorf("window %d test run: %w", w.Index, err)
	}

	r := WfoWindowResult{
		WindowIdx:     w.Index,
		TrainStart:    series.Date(fold.TrainFrom),
		TrainEnd:      series.Date(fold.TrainTo - 1),
		TestStart:     series.Date(fold.TestFrom),
		TestEnd:       series.Date(fold.TestTo - 1),
		BestParams:    params,
		TestReturnPct: run.Summary.TotalReturnPct,
		TestMDD:       run.Summary.MDD,
		TrainMetric:   cfg.Metric.Value(rows[best].Summary),
		TestMetric:    cfg.Metric.Value(run.Summary),
		StartCapital:  capital,
		EndCapital:    run.Summary.FinalCapital,
		TestTrades:    len(run.Trades),
	}
	log.Info("window done",
		logger.String("best", params.Key()),
		logger.Float64("train_metric", r.TrainMetric),
		logger.Float64("test_return_pct", r.TestReturnPct),
		logger.Float64("test_mdd", r.TestMDD))

	return &windowOutcome{result: r, run: run}, nil
}
