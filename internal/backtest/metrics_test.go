package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

func curve(values ...float64) []types.EquityRecord {
	out := make([]types.EquityRecord, len(values))
	for i, v := range values {
		out[i] = types.EquityRecord{Date: testStart.AddDate(0, 0, i), Equity: v}
	}
	return out
}

// TestMaxDrawdown_NonDecreasingIsZero tests mdd == 0 for a curve that never falls
func TestMaxDrawdown_NonDecreasingIsZero(t *testing.T) {
	assert.Equal(t, 0.0, MaxDrawdown(curve(100, 100, 101, 105, 105, 120)))
	assert.Equal(t, 0.0, MaxDrawdown(nil))
}

// TestMaxDrawdown_AnyDipIsNegative tests the peak-to-trough computation
func TestMaxDrawdown_AnyDipIsNegative(t *testing.T) {
	assert.InDelta(t, -0.25, MaxDrawdown(curve(100, 120, 90, 110, 130)), 1e-12)
	assert.Less(t, MaxDrawdown(curve(100, 99.999, 200)), 0.0)
}

func TestCAGR(t *testing.T) {
	assert.InDelta(t, 0.1, CAGR(100, 121, 2*DaysPerYear), 1e-12)
	assert.Equal(t, 0.0, CAGR(100, 121, 0))
	assert.Equal(t, 0.0, CAGR(0, 121, 10))
}

func TestDailyReturns(t *testing.T) {
	r := DailyReturns(curve(100, 110, 99))
	assert.InDeltaSlice(t, []float64{0.1, -0.1}, r, 1e-12)
	assert.Nil(t, DailyReturns(curve(100)))
}

func TestPeriodSharpe(t *testing.T) {
	assert.Equal(t, 0.0, PeriodSharpe([]float64{0.01, 0.01, 0.01}))
	assert.Greater(t, PeriodSharpe([]float64{0.01, 0.02, 0.015, 0.005}), 0.0)
	assert.InDelta(t, PeriodSharpe([]float64{0.01, -0.02, 0.03})*math.Sqrt(252),
		AnnualizedSharpe([]float64{0.01, -0.02, 0.03}), 1e-12)
}

// TestComputeSummary tests the trade and equity statistics together
func TestComputeSummary(t *testing.T) {
	equity := curve(10000, 10500, 10200, 11000)
	trades := []types.TradeRecord{
		{PnL: 800, ExitDate: testStart.AddDate(0, 0, 1)},
		{PnL: -300, ExitDate: testStart.AddDate(0, 0, 2)},
		{PnL: 500, ExitDate: testStart.AddDate(0, 0, 3)},
	}

	s := ComputeSummary(10000, equity, trades)
	assert.Equal(t, 11000.0, s.FinalCapital)
	assert.InDelta(t, 10.0, s.TotalReturnPct, 1e-9)
	assert.Equal(t, 3, s.TotalTrades)
	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 1, s.LosingTrades)
	assert.InDelta(t, 2.0/3.0, s.WinRate, 1e-12)
	assert.InDelta(t, 1300.0/300.0, s.ProfitFactor, 1e-12)
	assert.InDelta(t, 10200.0/10500.0-1, s.MDD, 1e-12)
	assert.Equal(t, testStart, s.StartDate)
	assert.Equal(t, testStart.Add(72*time.Hour), s.EndDate)
	assert.Greater(t, s.Volatility, 0.0)
}

func TestComputeSummary_NoTrades(t *testing.T) {
	s := ComputeSummary(5000, curve(5000, 5000), nil)
	assert.Equal(t, 0.0, s.WinRate)
	assert.Equal(t, 0.0, s.ProfitFactor)
	assert.Equal(t, 0.0, s.TotalReturnPct)
	assert.Equal(t, 0.0, s.MDD)
}
