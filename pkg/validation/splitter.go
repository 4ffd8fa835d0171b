package validation

import (
	"fmt"
	"time"

	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// Validate checks window sizes and mode
func (c WalkForwardConfig) Validate() error {
	if c.TrainYears <= 0 {
		return bterrors.NewConfigError("wfo", "validate", fmt.Sprintf("train_years must be > 0, got %d", c.TrainYears))
	}
	if c.TestYears <= 0 {
		return bterrors.NewConfigError("wfo", "validate", fmt.Sprintf("test_years must be > 0, got %d", c.TestYears))
	}
	switch c.Mode {
	case ModeExpanding, ModeRolling:
	default:
		return bterrors.NewConfigError("wfo", "validate", fmt.Sprintf("unknown window mode %q", c.Mode))
	}
	if c.InitialCapital < 0 {
		return bterrors.NewConfigError("wfo", "validate", "initial_capital must be >= 0")
	}
	return nil
}

// BuildYearWindows lays out train/test windows over [first, last].
// Windows step by testYears; a window is produced only while its whole test
// period fits inside history.
func BuildYearWindows(first, last time.Time, trainYears, testYears int, mode WindowMode) []YearWindow {
	var windows []YearWindow
	if trainYears <= 0 || testYears <= 0 {
		return windows
	}
	historyEnd := last.AddDate(0, 0, 1)

	for k := 0; ; k++ {
		var trainStart, trainEnd time.Time
		switch mode {
		case ModeRolling:
			trainStart = first.AddDate(k*testYears, 0, 0)
			trainEnd = trainStart.AddDate(trainYears, 0, 0)
		default:
			trainStart = first
			trainEnd = first.AddDate(trainYears+k*testYears, 0, 0)
		}
		testEnd := trainEnd.AddDate(testYears, 0, 0)
		if testEnd.After(historyEnd) {
			break
		}
		windows = append(windows, YearWindow{
			Index:      k,
			TrainStart: trainStart,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    testEnd,
		})
	}
	return windows
}

// CreateFolds resolves the configured windows to row ranges of series
func CreateFolds(series *types.AlignedSeries, cfg WalkForwardConfig) []Fold {
	if series.Len() == 0 {
		return nil
	}
	windows := BuildYearWindows(series.Date(0), series.Date(series.Len()-1), cfg.TrainYears, cfg.TestYears, cfg.Mode)

	folds := make([]Fold, 0, len(windows))
	for _, w := range windows {
		folds = append(folds, Fold{
			Window:    w,
			TrainFrom: series.IndexOnOrAfter(w.TrainStart),
			TrainTo:   series.IndexOnOrAfter(w.TrainEnd),
			TestFrom:  series.IndexOnOrAfter(w.TestStart),
			TestTo:    series.IndexOnOrAfter(w.TestEnd),
		})
	}
	return folds
}
