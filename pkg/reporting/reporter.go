package reporting

import (
	"io"
	"path/filepath"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/logger"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/validation"
)

const defaultTopN = 10

// DefaultReporter implements the console and file reporting interfaces
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
}

// NewDefaultReporter creates a reporter printing tables to out
func NewDefaultReporter(out io.Writer) *DefaultReporter {
	return &DefaultReporter{
		console: NewDefaultConsoleReporter(out),
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
	}
}

// Console output methods
func (r *DefaultReporter) PrintSummary(title string, s types.Summary) {
	r.console.PrintSummary(title, s)
}

func (r *DefaultReporter) PrintGrid(rows []backtest.GridResult, metric backtest.SelectionMetric, n int) {
	r.console.PrintGrid(rows, metric, n)
}

func (r *DefaultReporter) PrintWalkForward(res *validation.WalkForwardResult) {
	r.console.PrintWalkForward(res)
}

func (r *DefaultReporter) PrintPBO(res *validation.PboResult) {
	r.console.PrintPBO(res)
}

func (r *DefaultReporter) PrintDSR(res *validation.DsrResult) {
	r.console.PrintDSR(res)
}

// File output methods
func (r *DefaultReporter) WriteTradesCSV(trades []types.TradeRecord, path string) error {
	return r.csv.WriteTradesCSV(trades, path)
}

func (r *DefaultReporter) WriteEquityCSV(equity []types.EquityRecord, path string) error {
	return r.csv.WriteEquityCSV(equity, path)
}

func (r *DefaultReporter) WriteGridCSV(rows []backtest.GridResult, path string) error {
	return r.csv.WriteGridCSV(rows, path)
}

func (r *DefaultReporter) WriteWorkbook(report *Report, path string) error {
	return r.excel.WriteWorkbook(report, path)
}

func (r *DefaultReporter) WriteJSON(v any, path string) error {
	return WriteJSON(v, path)
}

// ReportingManager provides a high-level interface for all reporting needs
type ReportingManager struct {
	reporter *DefaultReporter
	paths    *DefaultPathManager
	config   ReportingConfig
	log      *logger.Logger
}

// NewReportingManager creates a new reporting manager with configuration
func NewReportingManager(config ReportingConfig, out io.Writer, log *logger.Logger) *ReportingManager {
	if config.TopN <= 0 {
		config.TopN = defaultTopN
	}
	return &ReportingManager{
		reporter: NewDefaultReporter(out),
		paths:    NewDefaultPathManager(config.OutputDirectory),
		config:   config,
		log:      logger.OrNop(log).With(logger.String("component", "reporting")),
	}
}

// OutputDir returns where files for report are written
func (m *ReportingManager) OutputDir(report *Report, mode string) string {
	return m.paths.GetOutputDir(report.Name, mode)
}

// ReportResults outputs results according to configuration and returns the files written
func (m *ReportingManager) ReportResults(report *Report, mode string) ([]string, error) {
	if m.config.EnableConsole {
		m.printConsole(report)
	}
	if !m.config.EnableFiles {
		return nil, nil
	}

	dir := m.OutputDir(report, mode)
	var written []string
	write := func(name string, fn func(path string) error) error {
		path := filepath.Join(dir, name)
		if err := fn(path); err != nil {
			return err
		}
		written = append(written, path)
		m.log.Debug("report written", logger.String("path", path))
		return nil
	}

	if m.config.CSVEnabled {
		if trades := report.Trades(); trades != nil {
			if err := write("trades.csv", func(p string) error { return m.reporter.WriteTradesCSV(trades, p) }); err != nil {
				return written, err
			}
		}
		if equity := report.Equity(); equity != nil {
			if err := write("equity.csv", func(p string) error { return m.reporter.WriteEquityCSV(equity, p) }); err != nil {
				return written, err
			}
		}
		if len(report.Grid) > 0 {
			if err := write("grid.csv", func(p string) error { return m.reporter.WriteGridCSV(report.Grid, p) }); err != nil {
				return written, err
			}
		}
	}

	if m.config.ExcelEnabled {
		if err := write("report.xlsx", func(p string) error { return m.reporter.WriteWorkbook(report, p) }); err != nil {
			return written, err
		}
	}

	if m.config.JSONEnabled {
		if len(report.Grid) > 0 {
			best, err := NewBestParams(report.Grid, report.Metric)
			if err != nil {
				return written, err
			}
			if err := write("best.json", func(p string) error { return m.reporter.WriteJSON(best, p) }); err != nil {
				return written, err
			}
		}
		if report.WalkForward != nil || report.PBO != nil || report.DSR != nil {
			doc := struct {
				WalkForward *validation.WalkForwardResult `json:"walk_forward,omitempty"`
				PBO         *validation.PboResult         `json:"pbo,omitempty"`
				DSR         *validation.DsrResult         `json:"dsr,omitempty"`
			}{report.WalkForward, report.PBO, report.DSR}
			if err := write("validation.json", func(p string) error { return m.reporter.WriteJSON(doc, p) }); err != nil {
				return written, err
			}
		}
	}

	m.log.Info("reports written", logger.String("dir", dir), logger.Int("files", len(written)))
	return written, nil
}

func (m *ReportingManager) printConsole(report *Report) {
	if report.Run != nil {
		m.reporter.PrintSummary("BACKTEST: "+report.Run.Params.Key(), report.Run.Summary)
	}
	if len(report.Grid) > 0 {
		m.reporter.PrintGrid(report.Grid, report.Metric, m.config.TopN)
	}
	m.reporter.PrintWalkForward(report.WalkForward)
	m.reporter.PrintPBO(report.PBO)
	m.reporter.PrintDSR(report.DSR)
}
