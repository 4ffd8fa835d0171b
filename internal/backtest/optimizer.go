package backtest

import (
	"fmt"
	"sort"
	"strings"

	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/internal/strategy"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// ParamGrid lists candidate values per strategy parameter
type ParamGrid struct {
	MAWindow       []int     `json:"ma_window" yaml:"ma_window"`
	BuyBufferPct   []float64 `json:"buy_buffer_pct" yaml:"buy_buffer_pct"`
	SellBufferPct  []float64 `json:"sell_buffer_pct" yaml:"sell_buffer_pct"`
	HoldDays       []int     `json:"hold_days" yaml:"hold_days"`
	RecentMonths   []int     `json:"recent_months" yaml:"recent_months"`
	InitialCapital float64   `json:"initial_capital" yaml:"initial_capital"`
}

// Size is the number of combinations the grid expands to
func (g ParamGrid) Size() int {
	return len(g.MAWindow) * len(g.BuyBufferPct) * len(g.SellBufferPct) * len(g.HoldDays) * len(g.RecentMonths)
}

// Combinations expands the Cartesian product in a fixed nested order
// (ma_window outermost, recent_months innermost).
func (g ParamGrid) Combinations() ([]strategy.StrategyParams, error) {
	if g.Size() == 0 {
		return nil, bterrors.NewConfigError("grid", "combinations", "parameter grid is empty: every parameter needs at least one value")
	}

	combos := make([]strategy.StrategyParams, 0, g.Size())
	for _, ma := range g.MAWindow {
		for _, buy := range g.BuyBufferPct {
			for _, sell := range g.SellBufferPct {
				for _, hold := range g.HoldDays {
					for _, recent := range g.RecentMonths {
						p := strategy.StrategyParams{
							MAWindow:       ma,
							BuyBufferPct:   buy,
							SellBufferPct:  sell,
							HoldDays:       hold,
							RecentMonths:   recent,
							InitialCapital: g.InitialCapital,
						}
						if err := p.Validate(); err != nil {
							return nil, err
						}
						combos = append(combos, p)
					}
				}
			}
		}
	}
	return combos, nil
}

// SelectionMetric names the summary field used to rank combinations
type SelectionMetric string

const (
	MetricCAGR        SelectionMetric = "cagr"
	MetricTotalReturn SelectionMetric = "total_return_pct"
	MetricMDD         SelectionMetric = "mdd"
	MetricSharpe      SelectionMetric = "sharpe"
)

// ParseSelectionMetric parses a metric name
func ParseSelectionMetric(s string) (SelectionMetric, error) {
	switch m := SelectionMetric(strings.ToLower(strings.TrimSpace(s))); m {
	case MetricCAGR, MetricTotalReturn, MetricMDD, MetricSharpe:
		return m, nil
	case "":
		return MetricCAGR, nil
	default:
		return "", bterrors.NewConfigError("grid", "parse_metric",
			fmt.Sprintf("unknown selection metric %q (want cagr, total_return_pct, mdd or sharpe)", s))
	}
}

// Value extracts the metric from a summary
func (m SelectionMetric) Value(s types.Summary) float64 {
	switch m {
	case MetricTotalReturn:
		return s.TotalReturnPct
	case MetricMDD:
		return s.MDD
	case MetricSharpe:
		return s.Sharpe
	default:
		return s.CAGR
	}
}

// Better reports whether a ranks strictly ahead of b.
// MDD is <= 0, so the value closest to zero (the largest) is the best drawdown.
func (m SelectionMetric) Better(a, b float64) bool {
	return a > b
}

// SelectBest returns the index of the best row; ties keep the earliest row
func SelectBest(rows []GridResult, metric SelectionMetric) (int, error) {
	if len(rows) == 0 {
		return -1, bterrors.NewConfigError("grid", "select_best", "no grid results to select from")
	}
	best := 0
	for i := 1; i < len(rows); i++ {
		if metric.Better(metric.Value(rows[i].Summary), metric.Value(rows[best].Summary)) {
			best = i
		}
	}
	return best, nil
}

// TopN returns up to n rows ordered best first; ties keep enumeration order
func TopN(rows []GridResult, metric SelectionMetric, n int) []GridResult {
	sorted := make([]GridResult, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return metric.Better(metric.Value(sorted[i].Summary), metric.Value(sorted[j].Summary))
	})
	if n > 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
