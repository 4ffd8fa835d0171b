package indicators

import (
	"fmt"
	"math"
	"strings"
)

// MAType selects the moving-average flavour used for the buffer-zone band
type MAType int

const (
	MATypeEMA MAType = iota
	MATypeSMA
)

func (m MAType) String() string {
	switch m {
	case MATypeEMA:
		return "ema"
	case MATypeSMA:
		return "sma"
	default:
		return "unknown"
	}
}

// ParseMAType parses "ema" or "sma"; an empty string selects EMA
func ParseMAType(s string) (MAType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ema":
		return MATypeEMA, nil
	case "sma":
		return MATypeSMA, nil
	default:
		return MATypeEMA, fmt.Errorf("unknown moving average type %q", s)
	}
}

// MovingAverage returns the full moving-average series of values.
// The first window-1 entries are NaN (warm-up).
func MovingAverage(values []float64, window int, maType MAType) ([]float64, error) {
	switch maType {
	case MATypeSMA:
		return SMASeries(values, window)
	case MATypeEMA:
		return EMASeries(values, window)
	default:
		return nil, fmt.Errorf("unsupported moving average type %d", maType)
	}
}

// FirstValid returns the index of the first non-NaN entry, or len(series) if none
func FirstValid(series []float64) int {
	for i, v := range series {
		if !math.IsNaN(v) {
			return i
		}
	}
	return len(series)
}

// CountValid counts the non-NaN entries
func CountValid(series []float64) int {
	n := 0
	for _, v := range series {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
