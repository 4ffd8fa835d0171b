package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

var start = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

func bar(day int, close float64) types.OHLCV {
	return types.OHLCV{
		Timestamp: start.AddDate(0, 0, day),
		Open:      close,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    1000,
	}
}

func TestBuildAligned_IntersectsSortsAndDedupes(t *testing.T) {
	signal := []types.OHLCV{bar(3, 13), bar(0, 10), bar(1, 11), bar(1, 99), bar(2, 12)}
	trade := []types.OHLCV{bar(1, 21), bar(2, 22), bar(4, 24), bar(3, 23)}

	aligned, err := BuildAligned(signal, trade)
	require.NoError(t, err)
	require.Equal(t, 3, aligned.Len())

	for i, day := range []int{1, 2, 3} {
		assert.Equal(t, start.AddDate(0, 0, day), aligned.Date(i))
		assert.Equal(t, aligned.Signal[i].Timestamp, aligned.Trade[i].Timestamp)
	}
	assert.Equal(t, 11.0, aligned.Signal[0].Close, "first occurrence of a duplicate date wins")
	assert.Equal(t, 21.0, aligned.Trade[0].Close)
	assert.Equal(t, 23.0, aligned.Trade[2].Close)
}

func TestBuildAligned_KeysByCalendarDate(t *testing.T) {
	s := bar(0, 10)
	s.Timestamp = s.Timestamp.Add(16 * time.Hour)
	tr := bar(0, 20)

	aligned, err := BuildAligned([]types.OHLCV{s}, []types.OHLCV{tr})
	require.NoError(t, err)
	require.Equal(t, 1, aligned.Len())
	assert.Equal(t, start, aligned.Date(0))
}

func TestBuildAligned_Errors(t *testing.T) {
	_, err := BuildAligned(nil, []types.OHLCV{bar(0, 1)})
	assert.True(t, bterrors.IsDataValidation(err))

	_, err = BuildAligned([]types.OHLCV{bar(0, 1)}, []types.OHLCV{bar(1, 1)})
	assert.True(t, bterrors.IsDataValidation(err))
}

func TestBuildAligned_DoesNotMutateInputs(t *testing.T) {
	signal := []types.OHLCV{bar(2, 12), bar(0, 10)}
	_, err := BuildAligned(signal, signal)
	require.NoError(t, err)
	assert.Equal(t, 12.0, signal[0].Close)
}
