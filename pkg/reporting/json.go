package reporting

import (
	"encoding/json"
	"os"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	"github.com/ducminhle1904/bufferzone-backtest/internal/strategy"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// BestParams is the best.json document written after a grid search
type BestParams struct {
	Metric  backtest.SelectionMetric `json:"metric"`
	Value   float64                  `json:"value"`
	Params  strategy.StrategyParams  `json:"params"`
	Summary types.Summary            `json:"summary"`
}

// NewBestParams picks the best grid row by metric
func NewBestParams(rows []backtest.GridResult, metric backtest.SelectionMetric) (*BestParams, error) {
	best, err := backtest.SelectBest(rows, metric)
	if err != nil {
		return nil, err
	}
	return &BestParams{
		Metric:  metric,
		Value:   metric.Value(rows[best].Summary),
		Params:  rows[best].Params,
		Summary: rows[best].Summary,
	}, nil
}

// FormatJSON formats v as indented JSON bytes
func FormatJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// WriteJSON writes v as indented JSON, creating the directory if needed
func WriteJSON(v any, path string) error {
	data, err := FormatJSON(v)
	if err != nil {
		return err
	}
	if err := EnsureDirectoryExists(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
