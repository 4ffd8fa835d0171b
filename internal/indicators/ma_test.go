package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestCloses(count int) []float64 {
	out := make([]float64, count)
	for i := range out {
		out[i] = 100.0 + float64(i)
	}
	return out
}

func TestSMASeries_WarmupIsNaN(t *testing.T) {
	sma, err := SMASeries(generateTestCloses(10), 5)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(sma[i]), "index %d should be warm-up", i)
	}
	assert.Equal(t, 4, FirstValid(sma))
	assert.Equal(t, 6, CountValid(sma))
}

func TestSMASeries_Values(t *testing.T) {
	closes := generateTestCloses(10)
	sma, err := SMASeries(closes, 5)
	require.NoError(t, err)

	// mean of 100..104
	assert.InDelta(t, 102.0, sma[4], 1e-9)
	// mean of 105..109
	assert.InDelta(t, 107.0, sma[9], 1e-9)
}

func TestSMASeries_InsufficientData(t *testing.T) {
	sma, err := SMASeries(generateTestCloses(3), 5)
	require.NoError(t, err)
	assert.Equal(t, 0, CountValid(sma))
}

func TestEMASeries_SeededWithSMA(t *testing.T) {
	closes := generateTestCloses(6)
	ema, err := EMASeries(closes, 3)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(ema[1]))
	assert.InDelta(t, 101.0, ema[2], 1e-9)
	// alpha = 0.5
	assert.InDelta(t, 0.5*103+0.5*101, ema[3], 1e-9)
	assert.InDelta(t, 0.5*104+0.5*ema[3], ema[4], 1e-9)
}

func TestEMASeries_FlatInputStaysFlat(t *testing.T) {
	closes := []float64{50, 50, 50, 50, 50, 50}
	ema, err := EMASeries(closes, 4)
	require.NoError(t, err)
	for i := 3; i < len(closes); i++ {
		assert.InDelta(t, 50.0, ema[i], 1e-12)
	}
}

func TestMovingAverage_RejectsBadWindow(t *testing.T) {
	_, err := MovingAverage(generateTestCloses(5), 0, MATypeSMA)
	assert.Error(t, err)
	_, err = MovingAverage(generateTestCloses(5), 0, MATypeEMA)
	assert.Error(t, err)
}

func TestParseMAType(t *testing.T) {
	m, err := ParseMAType("")
	require.NoError(t, err)
	assert.Equal(t, MATypeEMA, m)

	m, err = ParseMAType(" SMA ")
	require.NoError(t, err)
	assert.Equal(t, MATypeSMA, m)
	assert.Equal(t, "sma", m.String())

	_, err = ParseMAType("wma")
	assert.Error(t, err)
}
