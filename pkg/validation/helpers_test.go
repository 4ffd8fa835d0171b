package validation

import (
	"math"
	"time"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// waveSeries builds one bar per calendar day between from and to inclusive
func waveSeries(from, to time.Time) *types.AlignedSeries {
	var bars []types.OHLCV
	prev := 100.0
	for d, i := from, 0; !d.After(to); d, i = d.AddDate(0, 0, 1), i+1 {
		c := 100 + 15*math.Sin(float64(i)/23) + 5*math.Sin(float64(i)/4.1) + float64(i)*0.02
		bars = append(bars, types.OHLCV{
			Timestamp: d,
			Open:      prev,
			High:      math.Max(prev, c) * 1.01,
			Low:       math.Min(prev, c) * 0.99,
			Close:     c,
			Volume:    1000,
		})
		prev = c
	}
	trade := make([]types.OHLCV, len(bars))
	copy(trade, bars)
	return &types.AlignedSeries{Signal: bars, Trade: trade}
}

func testGrid() backtest.ParamGrid {
	return backtest.ParamGrid{
		MAWindow:       []int{10, 30, 60},
		BuyBufferPct:   []float64{0, 0.02},
		SellBufferPct:  []float64{0.01, 0.03},
		HoldDays:       []int{0, 5},
		RecentMonths:   []int{0},
		InitialCapital: 10000,
	}
}
