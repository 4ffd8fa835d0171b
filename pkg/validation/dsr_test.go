package validation

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/internal/strategy"
)

func TestExpectedMaxSharpe(t *testing.T) {
	assert.Equal(t, 0.0, ExpectedMaxSharpe([]float64{0.3}))

	trials := []float64{0.1, 0.3, -0.2, 0.05}
	sd := math.Sqrt(stat.Variance(trials, nil))
	want := sd * ((1-eulerGamma)*distuv.UnitNormal.Quantile(1-1.0/4) +
		eulerGamma*distuv.UnitNormal.Quantile(1-1/(4*math.E)))
	assert.InDelta(t, want, ExpectedMaxSharpe(trials), 1e-12)
	assert.Greater(t, ExpectedMaxSharpe(trials), 0.0)
}

// TestDeflatedSharpe_SingleTrial tests that one trial is not deflated
func TestDeflatedSharpe_SingleTrial(t *testing.T) {
	returns := noiseMatrix(1, 500, 21)[0]
	for i := range returns {
		returns[i] += 0.002
	}

	res, err := DeflatedSharpe(returns, []float64{0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.SR0)
	assert.Equal(t, 500, res.Observations)
	assert.Equal(t, 1, res.Trials)

	mean, std := stat.MeanStdDev(returns, nil)
	sr := mean / std
	assert.InDelta(t, sr, res.Sharpe, 1e-12)
	assert.InDelta(t, sr*math.Sqrt(252), res.SharpeAnnualized, 1e-9)

	denom := 1 - res.Skewness*sr + (res.Kurtosis-1)/4*sr*sr
	assert.InDelta(t, distuv.UnitNormal.CDF(sr*math.Sqrt(499)/math.Sqrt(denom)), res.DSR, 1e-12)
	assert.Greater(t, res.DSR, 0.5)
}

// TestDeflatedSharpe_MoreDispersedTrialsDeflateMore tests the trial penalty
func TestDeflatedSharpe_MoreDispersedTrialsDeflateMore(t *testing.T) {
	returns := noiseMatrix(1, 300, 4)[0]
	for i := range returns {
		returns[i] += 0.001
	}

	narrow, err := DeflatedSharpe(returns, []float64{0.05, 0.06, 0.04, 0.05})
	require.NoError(t, err)
	wide, err := DeflatedSharpe(returns, []float64{0.5, -0.4, 0.3, -0.2})
	require.NoError(t, err)

	assert.Less(t, wide.DSR, narrow.DSR)
	assert.Greater(t, wide.SR0, narrow.SR0)
	for _, r := range []*DsrResult{narrow, wide} {
		assert.GreaterOrEqual(t, r.DSR, 0.0)
		assert.LessOrEqual(t, r.DSR, 1.0)
	}
}

func TestDeflatedSharpe_ConstantReturns(t *testing.T) {
	res, err := DeflatedSharpe([]float64{0, 0, 0, 0}, []float64{0, 0.1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Sharpe)
	assert.Equal(t, 0.0, res.Skewness)
	assert.Equal(t, 3.0, res.Kurtosis)
	assert.False(t, math.IsNaN(res.DSR))
}

func TestDeflatedSharpe_Errors(t *testing.T) {
	_, err := DeflatedSharpe([]float64{0.01}, []float64{0.1})
	assert.True(t, bterrors.IsConfig(err))
	_, err = DeflatedSharpe([]float64{0.01, 0.02}, nil)
	assert.True(t, bterrors.IsConfig(err))
}

func TestDeflatedSharpeFromGrid(t *testing.T) {
	series := waveSeries(date(2015, 1, 1), date(2016, 12, 31))
	combos, err := testGrid().Combinations()
	require.NoError(t, err)
	rows, err := backtest.NewGridPool(2, strategy.DefaultExecutionConfig(), nil).
		ExecuteParallel(context.Background(), series, combos, backtest.Options{CollectReturns: true})
	require.NoError(t, err)

	res, best, err := DeflatedSharpeFromGrid(rows, backtest.MetricSharpe)
	require.NoError(t, err)
	want, _ := backtest.SelectBest(rows, backtest.MetricSharpe)
	assert.Equal(t, want, best)
	assert.Equal(t, len(rows), res.Trials)
	assert.Equal(t, series.Len()-1, res.Observations)
}
