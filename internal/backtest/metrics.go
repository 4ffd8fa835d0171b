package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

const (
	// DaysPerYear annualizes CAGR from calendar days
	DaysPerYear = 365.25
	// TradingDaysPerYear annualizes Sharpe and volatility from daily returns
	TradingDaysPerYear = 252
)

// ComputeSummary derives run statistics from an equity curve and trade ledger
func ComputeSummary(initialCapital float64, equity []types.EquityRecord, trades []types.TradeRecord) types.Summary {
	s := types.Summary{
		InitialCapital: initialCapital,
		FinalCapital:   initialCapital,
		TotalTrades:    len(trades),
	}
	if len(equity) > 0 {
		first, last := equity[0], equity[len(equity)-1]
		s.FinalCapital = last.Equity
		s.StartDate = first.Date
		s.EndDate = last.Date
		s.CAGR = CAGR(initialCapital, last.Equity, last.Date.Sub(first.Date).Hours()/24)
	}
	if initialCapital > 0 {
		s.TotalReturnPct = (s.FinalCapital/initialCapital - 1) * 100
	}
	s.MDD = MaxDrawdown(equity)

	returns := DailyReturns(equity)
	s.Sharpe = AnnualizedSharpe(returns)
	if len(returns) > 1 {
		s.Volatility = stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear)
	}

	grossProfit, grossLoss := 0.0, 0.0
	for _, trade := range trades {
		if trade.PnL > 0 {
			s.WinningTrades++
			grossProfit += trade.PnL
		} else {
			s.LosingTrades++
			grossLoss -= trade.PnL
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	}
	// undefined without a losing trade; reported as 0 so summaries stay JSON-encodable
	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	}
	return s
}

// CAGR annualizes the growth from initial to final over the given calendar days
func CAGR(initial, final, days float64) float64 {
	if initial <= 0 || final <= 0 || days <= 0 {
		return 0
	}
	return math.Pow(final/initial, DaysPerYear/days) - 1
}

// MaxDrawdown is the minimum of equity/running_peak - 1 over the curve; it is <= 0
func MaxDrawdown(equity []types.EquityRecord) float64 {
	mdd := 0.0
	peak := math.Inf(-1)
	for _, point := range equity {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := point.Equity/peak - 1; dd < mdd {
			mdd = dd
		}
	}
	return mdd
}

// DailyReturns returns the simple returns between consecutive equity marks
func DailyReturns(equity []types.EquityRecord) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev > 0 {
			returns[i-1] = equity[i].Equity/prev - 1
		}
	}
	return returns
}

// PeriodSharpe is mean/stddev of returns; 0 when the deviation is negligible
func PeriodSharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std < 1e-12 {
		return 0
	}
	return mean / std
}

// AnnualizedSharpe scales the per-period Sharpe by sqrt(252)
func AnnualizedSharpe(returns []float64) float64 {
	return PeriodSharpe(returns) * math.Sqrt(TradingDaysPerYear)
}
