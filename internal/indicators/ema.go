package indicators

import "errors"

// EMASeries calculates the exponential moving average.
// The first value is seeded with the SMA of the first window closes, then
// EMA = (Close * Alpha) + (Previous EMA * (1 - Alpha)) with alpha = 2/(window+1).
func EMASeries(values []float64, window int) ([]float64, error) {
	if window < 1 {
		return nil, errors.New("ema window must be >= 1")
	}

	out := nanSeries(len(values))
	if len(values) < window {
		return out, nil
	}

	alpha := 2.0 / float64(window+1)

	seed := 0.0
	for i := 0; i < window; i++ {
		seed += values[i]
	}
	last := seed / float64(window)
	out[window-1] = last

	for i := window; i < len(values); i++ {
		last = (values[i] * alpha) + (last * (1 - alpha))
		out[i] = last
	}

	return out, nil
}
