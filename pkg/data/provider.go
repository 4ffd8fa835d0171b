package data

import (
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/bufferzone-backtest/pkg/logger"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// DataManager combines loading, validation, filtering and alignment
type DataManager struct {
	provider BarProvider
	filter   DataFilter
}

// NewDataManager creates a data manager over a cached daily CSV provider
func NewDataManager(log *logger.Logger) *DataManager {
	return &DataManager{
		provider: NewCachingProvider(NewCSVProvider(log), log),
		filter:   NewDefaultDataFilter(),
	}
}

// NewDataManagerWithProvider creates a data manager with a custom provider
func NewDataManagerWithProvider(provider BarProvider) *DataManager {
	return &DataManager{
		provider: provider,
		filter:   NewDefaultDataFilter(),
	}
}

// LoadHistoricalData loads, orders and validates one series
func (dm *DataManager) LoadHistoricalData(source string) ([]types.OHLCV, error) {
	bars, err := dm.provider.LoadData(source)
	if err != nil {
		return nil, err
	}
	bars = dm.filter.RemoveDuplicates(dm.filter.SortByTimestamp(bars))
	if err := dm.provider.ValidateData(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// LoadAligned loads the signal and trade series, restricts both to [start, end]
// (zero bounds are open) and aligns them on common dates.
func (dm *DataManager) LoadAligned(signalSource, tradeSource string, start, end time.Time) (*types.AlignedSeries, error) {
	signal, err := dm.LoadHistoricalData(signalSource)
	if err != nil {
		return nil, err
	}

	trade := signal
	if tradeSource != "" && tradeSource != signalSource {
		trade, err = dm.LoadHistoricalData(tradeSource)
		if err != nil {
			return nil, err
		}
	}

	signal = dm.filter.FilterByDateRange(signal, start, end)
	trade = dm.filter.FilterByDateRange(trade, start, end)
	return BuildAligned(signal, trade)
}

// ParseTrailingPeriod parses period strings like "30d", "5y" or raw durations like "168h"
func ParseTrailingPeriod(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(s, "days") {
		s = strings.TrimSuffix(s, "days") + "d"
	}
	for suffix, unit := range map[string]time.Duration{"d": 24 * time.Hour, "y": 365 * 24 * time.Hour} {
		if !strings.HasSuffix(s, suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(s, suffix))
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * unit, true
	}
	// allow raw durations too (e.g., 168h)
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}
