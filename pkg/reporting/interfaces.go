package reporting

import (
	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/validation"
)

// Package reporting renders backtest, grid and validation results to the console and to files

// Report bundles everything one CLI invocation produced. Nil sections are skipped.
type Report struct {
	Name        string
	Run         *backtest.Result
	Grid        []backtest.GridResult
	Metric      backtest.SelectionMetric
	WalkForward *validation.WalkForwardResult
	PBO         *validation.PboResult
	DSR         *validation.DsrResult
}

// Trades returns the trade ledger of the single run or the stitched walk-forward record
func (r *Report) Trades() []types.TradeRecord {
	switch {
	case r.Run != nil:
		return r.Run.Trades
	case r.WalkForward != nil:
		return r.WalkForward.Trades
	}
	return nil
}

// Equity returns the equity curve of the single run or the stitched walk-forward record
func (r *Report) Equity() []types.EquityRecord {
	switch {
	case r.Run != nil:
		return r.Run.Equity
	case r.WalkForward != nil:
		return r.WalkForward.Equity
	}
	return nil
}

// ConsoleReporter defines interface for console output
type ConsoleReporter interface {
	PrintSummary(title string, s types.Summary)
	PrintGrid(rows []backtest.GridResult, metric backtest.SelectionMetric, n int)
	PrintWalkForward(res *validation.WalkForwardResult)
	PrintPBO(res *validation.PboResult)
	PrintDSR(res *validation.DsrResult)
}

// FileReporter defines interface for file output
type FileReporter interface {
	WriteTradesCSV(trades []types.TradeRecord, path string) error
	WriteEquityCSV(equity []types.EquityRecord, path string) error
	WriteGridCSV(rows []backtest.GridResult, path string) error
	WriteWorkbook(report *Report, path string) error
	WriteJSON(v any, path string) error
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle       int
	CurrencyStyle     int
	PercentStyle      int
	NumberStyle       int
	DateStyle         int
	BaseStyle         int
	RedPercentStyle   int
	GreenPercentStyle int
	SummaryStyle      int
}

// ReportingConfig holds configuration for reporting
type ReportingConfig struct {
	EnableConsole   bool
	EnableFiles     bool
	OutputDirectory string
	ExcelEnabled    bool
	CSVEnabled      bool
	JSONEnabled     bool
	// TopN limits the console grid table
	TopN int
}
