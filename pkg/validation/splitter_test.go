package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
)

func TestBuildYearWindows_Expanding(t *testing.T) {
	windows := BuildYearWindows(date(2015, 1, 1), date(2019, 12, 31), 2, 1, ModeExpanding)
	require.Len(t, windows, 3)
	for i, w := range windows {
		assert.Equal(t, i, w.Index)
		assert.Equal(t, date(2015, 1, 1), w.TrainStart)
		assert.Equal(t, date(2017+i, 1, 1), w.TrainEnd)
		assert.Equal(t, w.TrainEnd, w.TestStart)
		assert.Equal(t, date(2018+i, 1, 1), w.TestEnd)
	}
}

func TestBuildYearWindows_Rolling(t *testing.T) {
	windows := BuildYearWindows(date(2015, 1, 1), date(2019, 12, 31), 2, 1, ModeRolling)
	require.Len(t, windows, 3)
	for i, w := range windows {
		assert.Equal(t, date(2015+i, 1, 1), w.TrainStart)
		assert.Equal(t, date(2017+i, 1, 1), w.TrainEnd)
	}
}

func TestBuildYearWindows_TestMustFitHistory(t *testing.T) {
	assert.Empty(t, BuildYearWindows(date(2015, 1, 1), date(2016, 12, 30), 1, 1, ModeExpanding))
	assert.Len(t, BuildYearWindows(date(2015, 1, 1), date(2016, 12, 31), 1, 1, ModeExpanding), 1)
	assert.Empty(t, BuildYearWindows(date(2015, 1, 1), date(2020, 1, 1), 0, 1, ModeExpanding))
}

func TestCreateFolds(t *testing.T) {
	series := waveSeries(date(2015, 1, 1), date(2017, 12, 31))
	folds := CreateFolds(series, WalkForwardConfig{TrainYears: 1, TestYears: 1, Mode: ModeRolling})
	require.Len(t, folds, 2)

	assert.Equal(t, 0, folds[0].TrainFrom)
	assert.Equal(t, 365, folds[0].TrainRows())
	assert.Equal(t, 366, folds[0].TestRows(), "2016 is a leap year")
	assert.Equal(t, folds[0].TestFrom, folds[1].TrainFrom)
	assert.Equal(t, series.Len(), folds[1].TestTo)
}

func TestWalkForwardConfig_Validate(t *testing.T) {
	ok := WalkForwardConfig{TrainYears: 1, TestYears: 1, Mode: ModeExpanding}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.TrainYears = 0
	assert.True(t, bterrors.IsConfig(bad.Validate()))

	bad = ok
	bad.TestYears = -1
	assert.True(t, bterrors.IsConfig(bad.Validate()))

	bad = ok
	bad.Mode = "anchored"
	assert.True(t, bterrors.IsConfig(bad.Validate()))
}
