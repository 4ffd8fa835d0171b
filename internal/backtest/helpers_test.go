package backtest

import (
	"math"
	"time"

	"github.com/ducminhle1904/bufferzone-backtest/internal/strategy"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

var testStart = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

func seriesFromCloses(closes []float64) *types.AlignedSeries {
	bars := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = types.OHLCV{
			Timestamp: testStart.AddDate(0, 0, i),
			Open:      open,
			High:      math.Max(open, c) * 1.01,
			Low:       math.Min(open, c) * 0.99,
			Close:     c,
			Volume:    1000,
		}
	}
	trade := make([]types.OHLCV, len(bars))
	copy(trade, bars)
	return &types.AlignedSeries{Signal: bars, Trade: trade}
}

// generateRisingData creates a geometric uptrend with open == close
func generateRisingData(count int) *types.AlignedSeries {
	closes := make([]float64, count)
	for i := range closes {
		closes[i] = 100 * math.Pow(1.02, float64(i))
	}
	s := seriesFromCloses(closes)
	for i := range s.Trade {
		s.Trade[i].Open = s.Trade[i].Close
		s.Signal[i].Open = s.Signal[i].Close
	}
	return s
}

// generateWaveData creates an oscillating series with a slight drift
func generateWaveData(count int) *types.AlignedSeries {
	closes := make([]float64, count)
	for i := range closes {
		closes[i] = 100 + 12*math.Sin(float64(i)/9) + 4*math.Sin(float64(i)/2.3) + float64(i)*0.03
	}
	return seriesFromCloses(closes)
}

func baseParams() strategy.StrategyParams {
	return strategy.StrategyParams{
		MAWindow:       3,
		BuyBufferPct:   0.01,
		SellBufferPct:  0.01,
		HoldDays:       0,
		RecentMonths:   0,
		InitialCapital: 10000,
	}
}

func smallGrid() ParamGrid {
	return ParamGrid{
		MAWindow:       []int{5, 10, 20},
		BuyBufferPct:   []float64{0, 0.01, 0.03},
		SellBufferPct:  []float64{0.01, 0.02},
		HoldDays:       []int{0, 3},
		RecentMonths:   []int{0, 1},
		InitialCapital: 10000,
	}
}
