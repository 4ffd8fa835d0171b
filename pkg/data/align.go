package data

import (
	"fmt"
	"time"

	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// BuildAligned intersects the signal and trade series on their common dates.
// Both inputs are sorted ascending and de-duplicated (first occurrence wins)
// before intersecting; bars are keyed by calendar date.
func BuildAligned(signal, trade []types.OHLCV) (*types.AlignedSeries, error) {
	if len(signal) == 0 || len(trade) == 0 {
		return nil, bterrors.NewDataValidationError("data", "align",
			fmt.Sprintf("empty input series (signal=%d, trade=%d)", len(signal), len(trade)))
	}

	filter := NewDefaultDataFilter()
	sig := filter.RemoveDuplicates(filter.SortByTimestamp(signal))
	trd := filter.RemoveDuplicates(filter.SortByTimestamp(trade))

	aligned := &types.AlignedSeries{
		Signal: make([]types.OHLCV, 0, min(len(sig), len(trd))),
		Trade:  make([]types.OHLCV, 0, min(len(sig), len(trd))),
	}

	// merge walk over two sorted, duplicate-free sequences
	i, j := 0, 0
	for i < len(sig) && j < len(trd) {
		di, dj := dateKey(sig[i].Timestamp), dateKey(trd[j].Timestamp)
		switch {
		case di.Before(dj):
			i++
		case dj.Before(di):
			j++
		default:
			s, t := sig[i], trd[j]
			s.Timestamp, t.Timestamp = di, di
			aligned.Signal = append(aligned.Signal, s)
			aligned.Trade = append(aligned.Trade, t)
			i++
			j++
		}
	}

	if aligned.Len() == 0 {
		return nil, bterrors.NewDataValidationError("data", "align", "signal and trade series share no dates")
	}
	return aligned, nil
}

// dateKey truncates a timestamp to its calendar date in UTC
func dateKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
