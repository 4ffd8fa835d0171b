package data

import (
	"time"

	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// BarProvider reads one daily bar table, such as the signal or the trade series
type BarProvider interface {
	LoadData(source string) ([]types.OHLCV, error)
	// ValidateData rejects impossible prices and out-of-order dates
	ValidateData(bars []types.OHLCV) error
	Name() string
}

// BarCache keeps parsed tables keyed by the version of their source.
// A lookup with a stamp that differs from the stored one is a miss.
type BarCache interface {
	Get(stamp SourceStamp) ([]types.OHLCV, bool)
	Put(stamp SourceStamp, bars []types.OHLCV)
	Invalidate(path string)
	Len() int
}

// DataFilter orders and trims bar tables before alignment
type DataFilter interface {
	FilterByPeriod(bars []types.OHLCV, period time.Duration) []types.OHLCV
	// FilterByDateRange keeps bars inside [start, end]; zero bounds are open
	FilterByDateRange(bars []types.OHLCV, start, end time.Time) []types.OHLCV
	ValidateTimeSequence(bars []types.OHLCV) error
	SortByTimestamp(bars []types.OHLCV) []types.OHLCV
	RemoveDuplicates(bars []types.OHLCV) []types.OHLCV
}

// CSVColumnMapping locates the bar fields in a CSV row
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string
}

// DailyCSVFormat is date,open,high,low,close,volume with ISO dates
var DailyCSVFormat = CSVColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	DateFormat:   "2006-01-02",
}
