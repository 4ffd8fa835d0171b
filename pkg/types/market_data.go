package types

import "time"

// OHLCV is a single daily bar
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// SeriesRole identifies which side of an aligned pair a series plays
type SeriesRole int

const (
	RoleSignal SeriesRole = iota
	RoleTrade
)

func (r SeriesRole) String() string {
	switch r {
	case RoleSignal:
		return "signal"
	case RoleTrade:
		return "trade"
	default:
		return "unknown"
	}
}

// AlignedSeries holds two bar sequences sharing one ascending, duplicate-free date index.
// The signal series drives indicators, the trade series supplies execution prices.
// Treat it as immutable once built.
type AlignedSeries struct {
	Signal []OHLCV
	Trade  []OHLCV
}

// Len returns the number of aligned rows
func (a *AlignedSeries) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Signal)
}

// Date returns the date of row i
func (a *AlignedSeries) Date(i int) time.Time {
	return a.Signal[i].Timestamp
}

// Dates returns the shared date index
func (a *AlignedSeries) Dates() []time.Time {
	out := make([]time.Time, a.Len())
	for i := range a.Signal {
		out[i] = a.Signal[i].Timestamp
	}
	return out
}

// Slice returns the rows in [from, to) as a new AlignedSeries sharing backing arrays.
func (a *AlignedSeries) Slice(from, to int) *AlignedSeries {
	return &AlignedSeries{
		Signal: a.Signal[from:to:to],
		Trade:  a.Trade[from:to:to],
	}
}

// IndexOnOrAfter returns the first row whose date is not before t, or Len() if none.
func (a *AlignedSeries) IndexOnOrAfter(t time.Time) int {
	lo, hi := 0, a.Len()
	for lo < hi {
		mid := (lo + hi) / 2
		if a.Signal[mid].Timestamp.Before(t) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Fingerprint identifies the contents cheaply: length plus first and last dates and closes.
// Used to decide whether worker caches built from a previous payload are still valid.
type Fingerprint struct {
	Rows        int
	First, Last time.Time
	FirstSignal float64
	LastSignal  float64
	FirstTrade  float64
	LastTrade   float64
}

// Fingerprint computes the series fingerprint
func (a *AlignedSeries) Fingerprint() Fingerprint {
	n := a.Len()
	if n == 0 {
		return Fingerprint{}
	}
	return Fingerprint{
		Rows:        n,
		First:       a.Signal[0].Timestamp,
		Last:        a.Signal[n-1].Timestamp,
		FirstSignal: a.Signal[0].Close,
		LastSignal:  a.Signal[n-1].Close,
		FirstTrade:  a.Trade[0].Close,
		LastTrade:   a.Trade[n-1].Close,
	}
}
