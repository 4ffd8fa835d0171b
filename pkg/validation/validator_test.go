package validation

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/internal/strategy"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/logger"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

func newValidator(log *logger.Logger) (*WalkForwardValidator, *backtest.Executor) {
	exec := strategy.DefaultExecutionConfig()
	executor := backtest.NewExecutor(exec)
	return NewWalkForwardValidator(backtest.NewGridPool(3, exec, log), executor, log), executor
}

// TestWalkForward_SingleWindowRoundTrip tests that one window reproduces a direct executor run
func TestWalkForward_SingleWindowRoundTrip(t *testing.T) {
	series := waveSeries(date(2015, 1, 1), date(2017, 12, 31))
	combos, err := testGrid().Combinations()
	require.NoError(t, err)

	v, executor := newValidator(nil)
	res, err := v.Validate(context.Background(), series, combos, WalkForwardConfig{
		TrainYears: 1, TestYears: 2, Mode: ModeExpanding, Metric: backtest.MetricCAGR,
	})
	require.NoError(t, err)
	require.Len(t, res.Windows, 1)

	w := res.Windows[0]
	assert.Equal(t, date(2016, 1, 1), w.TestStart)
	assert.Equal(t, date(2017, 12, 31), w.TestEnd)

	direct, err := executor.RunWithOptions(series, w.BestParams, backtest.RunOptions{StartDate: w.TestStart})
	require.NoError(t, err)
	assert.Equal(t, direct.Summary, res.Summary)
	assert.Equal(t, direct.Equity, res.Equity)
	assert.Equal(t, direct.Trades, res.Trades)
	assert.Equal(t, 1, res.DistinctParams)
}

// TestWalkForward_BestParamsMaximiseTrainMetric tests the per-window selection
func TestWalkForward_BestParamsMaximiseTrainMetric(t *testing.T) {
	series := waveSeries(date(2015, 1, 1), date(2017, 12, 31))
	combos, err := testGrid().Combinations()
	require.NoError(t, err)

	v, _ := newValidator(nil)
	res, err := v.Validate(context.Background(), series, combos, WalkForwardConfig{
		TrainYears: 1, TestYears: 2, Mode: ModeExpanding, Metric: backtest.MetricMDD,
	})
	require.NoError(t, err)

	rows, err := backtest.NewGridPool(1, strategy.DefaultExecutionConfig(), nil).
		ExecuteParallel(context.Background(), series.Slice(0, 365), combos, backtest.Options{})
	require.NoError(t, err)
	best, err := backtest.SelectBest(rows, backtest.MetricMDD)
	require.NoError(t, err)

	want := rows[best].Params
	assert.Equal(t, want.Key(), res.Windows[0].BestParams.Key())
	assert.Equal(t, rows[best].Summary.MDD, res.Windows[0].TrainMetric)
}

// TestWalkForward_CapitalIsChained tests the stitched curve across rolling windows
func TestWalkForward_CapitalIsChained(t *testing.T) {
	series := waveSeries(date(2015, 1, 1), date(2019, 12, 31))
	combos, err := testGrid().Combinations()
	require.NoError(t, err)

	v, _ := newValidator(nil)
	res, err := v.Validate(context.Background(), series, combos, WalkForwardConfig{
		TrainYears: 2, TestYears: 1, Mode: ModeRolling, Metric: backtest.MetricTotalReturn,
	})
	require.NoError(t, err)
	require.Len(t, res.Windows, 3)

	assert.Equal(t, 10000.0, res.Windows[0].StartCapital)
	for i := 1; i < len(res.Windows); i++ {
		assert.Equal(t, res.Windows[i-1].EndCapital, res.Windows[i].StartCapital)
		assert.Equal(t, res.Windows[i].StartCapital, res.Windows[i].BestParams.InitialCapital)
	}
	assert.Equal(t, res.Windows[2].EndCapital, res.Summary.FinalCapital)
	assert.Equal(t, 10000.0, res.Summary.InitialCapital)

	assert.Len(t, res.Equity, 3*365)
	for i := 1; i < len(res.Equity); i++ {
		assert.True(t, res.Equity[i-1].Date.Before(res.Equity[i].Date))
	}
	assert.Equal(t, date(2017, 1, 1), res.Summary.StartDate)
	assert.GreaterOrEqual(t, res.DistinctParams, 1)
	assert.LessOrEqual(t, res.Summary.MDD, 0.0)
}

// TestWalkForward_SkipsWindowsWithoutValidIndicatorRows tests the warning path
func TestWalkForward_SkipsWindowsWithoutValidIndicatorRows(t *testing.T) {
	series := waveSeries(date(2015, 1, 1), date(2018, 12, 31))
	p := strategy.StrategyParams{MAWindow: 400, BuyBufferPct: 0.01, SellBufferPct: 0.01, InitialCapital: 10000}

	var buf bytes.Buffer
	v, _ := newValidator(logger.NewWithWriter(&buf, zerolog.WarnLevel))
	res, err := v.Validate(context.Background(), series, []strategy.StrategyParams{p}, WalkForwardConfig{
		TrainYears: 1, TestYears: 1, Mode: ModeExpanding,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.Windows, 2)
	assert.Equal(t, 1, res.Windows[0].WindowIdx)
	assert.Contains(t, buf.String(), "window skipped")
}

func TestWalkForward_NoValidWindows(t *testing.T) {
	series := waveSeries(date(2015, 1, 1), date(2017, 12, 31))
	p := strategy.StrategyParams{MAWindow: 2000, InitialCapital: 10000}

	v, _ := newValidator(nil)
	_, err := v.Validate(context.Background(), series, []strategy.StrategyParams{p}, WalkForwardConfig{
		TrainYears: 1, TestYears: 1, Mode: ModeRolling,
	})
	require.Error(t, err)
	assert.True(t, bterrors.IsConfig(err))
}

func TestWalkForward_ExcludesShortTestSlices(t *testing.T) {
	series := waveSeries(date(2015, 1, 1), date(2016, 12, 31))
	// a sparse final year: one bar per month
	last := series.Signal[len(series.Signal)-1]
	for m := 1; m <= 12; m++ {
		bar := last
		bar.Timestamp = date(2017, 1, 1).AddDate(0, m-1, 30)
		series.Signal = append(series.Signal, bar)
		series.Trade = append(series.Trade, bar)
	}
	require.Equal(t, date(2017, 12, 31), series.Date(series.Len()-1))

	combos, err := testGrid().Combinations()
	require.NoError(t, err)
	v, _ := newValidator(nil)
	_, err = v.Validate(context.Background(), series, combos, WalkForwardConfig{
		TrainYears: 2, TestYears: 1, Mode: ModeExpanding,
	})
	require.Error(t, err)
	assert.True(t, bterrors.IsConfig(err))
	assert.Contains(t, err.Error(), "1 excluded")
}

func TestWalkForward_RejectsBadConfig(t *testing.T) {
	series := waveSeries(date(2015, 1, 1), date(2017, 12, 31))
	combos, err := testGrid().Combinations()
	require.NoError(t, err)
	v, _ := newValidator(nil)

	_, err = v.Validate(context.Background(), series, combos, WalkForwardConfig{TrainYears: 0, TestYears: 1, Mode: ModeRolling})
	assert.True(t, bterrors.IsConfig(err))

	_, err = v.Validate(context.Background(), series, combos, WalkForwardConfig{TrainYears: 1, TestYears: 1, Mode: ModeRolling, Metric: "sortino"})
	assert.True(t, bterrors.IsConfig(err))

	_, err = v.Validate(context.Background(), series, nil, WalkForwardConfig{TrainYears: 1, TestYears: 1, Mode: ModeRolling})
	assert.True(t, bterrors.IsConfig(err))

	_, err = v.Validate(context.Background(), &types.AlignedSeries{}, combos, WalkForwardConfig{TrainYears: 1, TestYears: 1, Mode: ModeRolling})
	assert.True(t, bterrors.IsConfig(err), "no windows on empty history")
}
