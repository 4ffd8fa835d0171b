package indicators

import "errors"

// SMASeries calculates the simple moving average over a rolling window
func SMASeries(values []float64, window int) ([]float64, error) {
	if window < 1 {
		return nil, errors.New("sma window must be >= 1")
	}

	out := nanSeries(len(values))
	if len(values) < window {
		return out, nil
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}

	return out, nil
}
