package validation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
)

// eulerGamma is the Euler-Mascheroni constant used in the expected maximum Sharpe
const eulerGamma = 0.5772156649015329

// ExpectedMaxSharpe is the Sharpe ratio the best of trials independent strategies
// would reach by luck alone, given the variance of the trial Sharpe ratios.
func ExpectedMaxSharpe(trialSharpes []float64) float64 {
	n := float64(len(trialSharpes))
	if n <= 1 {
		return 0
	}
	sd := math.Sqrt(stat.Variance(trialSharpes, nil))
	return sd * ((1-eulerGamma)*distuv.UnitNormal.Quantile(1-1/n) +
		eulerGamma*distuv.UnitNormal.Quantile(1-1/(n*math.E)))
}

// DeflatedSharpe computes the deflated Sharpe ratio of the selected strategy's
// per-period returns, deflated by the number and dispersion of the trials and
// by the skewness and kurtosis of the returns. Sharpe ratios are per period;
// the annualized fields scale by sqrt(252).
func DeflatedSharpe(returns []float64, trialSharpes []float64) (*DsrResult, error) {
	t := len(returns)
	if t < 2 {
		return nil, bterrors.NewConfigError("dsr", "compute", fmt.Sprintf("need at least 2 returns, got %d", t))
	}
	if len(trialSharpes) == 0 {
		return nil, bterrors.NewConfigError("dsr", "compute", "need at least one trial")
	}

	mean, std := stat.MeanStdDev(returns, nil)
	sr := mean / math.Max(std, epsilon)

	skew, kurt := 0.0, 3.0
	if std > epsilon {
		skew = stat.Skew(returns, nil)
		kurt = stat.ExKurtosis(returns, nil) + 3
	}

	sr0 := ExpectedMaxSharpe(trialSharpes)
	denom := math.Max(1-skew*sr+(kurt-1)/4*sr*sr, epsilon)
	z := (sr - sr0) * math.Sqrt(float64(t-1)) / math.Sqrt(denom)

	annual := math.Sqrt(backtest.TradingDaysPerYear)
	return &DsrResult{
		DSR:              distuv.UnitNormal.CDF(z),
		Sharpe:           sr,
		SharpeAnnualized: sr * annual,
		SR0:              sr0,
		SR0Annualized:    sr0 * annual,
		ZScore:           z,
		Skewness:         skew,
		Kurtosis:         kurt,
		Trials:           len(trialSharpes),
		Observations:     t,
	}, nil
}

// DeflatedSharpeFromGrid deflates the best grid row by metric against all rows as trials.
// Rows must carry their return series.
func DeflatedSharpeFromGrid(rows []backtest.GridResult, metric backtest.SelectionMetric) (*DsrResult, int, error) {
	returns, err := ReturnsFromGrid(rows)
	if err != nil {
		return nil, -1, err
	}
	best, err := backtest.SelectBest(rows, metric)
	if err != nil {
		return nil, -1, err
	}

	trials := make([]float64, len(returns))
	for i, r := range returns {
		trials[i] = backtest.PeriodSharpe(r)
	}
	res, err := DeflatedSharpe(returns[best], trials)
	if err != nil {
		return nil, -1, err
	}
	return res, best, nil
}
