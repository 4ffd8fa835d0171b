package reporting

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

const (
	summarySheet     = "Summary"
	tradesSheet      = "Trades"
	equitySheet      = "Equity"
	gridSheet        = "Grid"
	walkForwardSheet = "WalkForward"
)

// DefaultExcelReporter implements Excel output functionality
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteWorkbook writes a workbook with a Summary sheet and one sheet per non-empty report section
func (r *DefaultExcelReporter) WriteWorkbook(report *Report, path string) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), summarySheet); err != nil {
		return err
	}
	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, report, styles); err != nil {
		return err
	}
	if trades := report.Trades(); len(trades) > 0 {
		if err := r.writeTradesSheet(fx, trades, styles); err != nil {
			return err
		}
	}
	if equity := report.Equity(); len(equity) > 0 {
		if err := r.writeEquitySheet(fx, equity, styles); err != nil {
			return err
		}
	}
	if len(report.Grid) > 0 {
		if err := r.writeGridSheet(fx, report, styles); err != nil {
			return err
		}
	}
	if report.WalkForward != nil {
		if err := r.writeWalkForwardSheet(fx, report, styles); err != nil {
			return err
		}
	}

	return fx.SaveAs(path)
}

func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	thin := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}
	right := &excelize.Alignment{Horizontal: "right"}

	// Header style - Dark blue background with white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 7, Alignment: right, Border: thin})
	if err != nil {
		return styles, err
	}
	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 10, Alignment: right, Border: thin})
	if err != nil {
		return styles, err
	}
	styles.NumberStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 4, Alignment: right, Border: thin})
	if err != nil {
		return styles, err
	}
	styles.DateStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 14, Border: thin})
	if err != nil {
		return styles, err
	}
	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: thin})
	if err != nil {
		return styles, err
	}

	// losing trades in red, winners in green
	styles.RedPercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt: 10, Font: &excelize.Font{Color: "FF0000"}, Alignment: right, Border: thin,
	})
	if err != nil {
		return styles, err
	}
	styles.GreenPercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt: 10, Font: &excelize.Font{Color: "008000"}, Alignment: right, Border: thin,
	})
	if err != nil {
		return styles, err
	}

	styles.SummaryStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 2},
			{Type: "right", Color: "000000", Style: 2},
			{Type: "top", Color: "000000", Style: 2},
			{Type: "bottom", Color: "000000", Style: 2},
		},
	})
	return styles, err
}

func writeHeader(fx *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return fx.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// writeRow writes values starting at column A with one style per column
func writeRow(fx *excelize.File, sheet string, row int, values []any, styles []int) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if i < len(styles) {
			if err := fx.SetCellStyle(sheet, cell, cell, styles[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeSummarySheet(fx *excelize.File, report *Report, styles ExcelStyles) error {
	fx.SetColWidth(summarySheet, "A", "A", 24)
	fx.SetColWidth(summarySheet, "B", "B", 22)

	row := 1
	section := func(title string) error {
		if row > 1 {
			row++
		}
		if err := writeRow(fx, summarySheet, row, []any{title, ""}, []int{styles.SummaryStyle, styles.SummaryStyle}); err != nil {
			return err
		}
		row++
		return nil
	}
	line := func(label string, v any, style int) error {
		err := writeRow(fx, summarySheet, row, []any{label, v}, []int{styles.BaseStyle, style})
		row++
		return err
	}
	summary := func(title string, s types.Summary) error {
		if err := section(title); err != nil {
			return err
		}
		for _, l := range []struct {
			label string
			value any
			style int
		}{
			{"Start Date", s.StartDate, styles.DateStyle},
			{"End Date", s.EndDate, styles.DateStyle},
			{"Initial Capital", s.InitialCapital, styles.CurrencyStyle},
			{"Final Capital", s.FinalCapital, styles.CurrencyStyle},
			{"Total Return", s.TotalReturnPct / 100, styles.PercentStyle},
			{"CAGR", s.CAGR, styles.PercentStyle},
			{"Max Drawdown", s.MDD, styles.PercentStyle},
			{"Sharpe (ann.)", s.Sharpe, styles.NumberStyle},
			{"Volatility (ann.)", s.Volatility, styles.PercentStyle},
			{"Trades", s.TotalTrades, styles.BaseStyle},
			{"Win Rate", s.WinRate, styles.PercentStyle},
			{"Profit Factor", s.ProfitFactor, styles.NumberStyle},
		} {
			if err := line(l.label, l.value, l.style); err != nil {
				return err
			}
		}
		return nil
	}

	if report.Run != nil {
		if err := summary("Backtest: "+report.Run.Params.Key(), report.Run.Summary); err != nil {
			return err
		}
	}
	if len(report.Grid) > 0 {
		best, err := NewBestParams(report.Grid, report.Metric)
		if err != nil {
			return err
		}
		if err := summary(fmt.Sprintf("Best of %d by %s: %s", len(report.Grid), report.Metric, best.Params.Key()), best.Summary); err != nil {
			return err
		}
	}
	if wf := report.WalkForward; wf != nil {
		if err := summary("Walk-Forward Out-of-Sample", wf.Summary); err != nil {
			return err
		}
		if err := line("Windows", len(wf.Windows), styles.BaseStyle); err != nil {
			return err
		}
		if err := line("Distinct Best Params", wf.DistinctParams, styles.BaseStyle); err != nil {
			return err
		}
	}
	if pbo := report.PBO; pbo != nil {
		if err := section("CSCV"); err != nil {
			return err
		}
		if err := line("PBO", pbo.PBO, styles.PercentStyle); err != nil {
			return err
		}
		if err := line("Valid Splits", pbo.ValidSplits, styles.BaseStyle); err != nil {
			return err
		}
		if err := line("Mean Logit", pbo.MeanLogit, styles.NumberStyle); err != nil {
			return err
		}
		if err := line("P(OOS Sharpe < 0)", pbo.ProbOOSLoss, styles.PercentStyle); err != nil {
			return err
		}
	}
	if dsr := report.DSR; dsr != nil {
		if err := section("Deflated Sharpe"); err != nil {
			return err
		}
		if err := line("DSR", dsr.DSR, styles.PercentStyle); err != nil {
			return err
		}
		if err := line("Sharpe (ann.)", dsr.SharpeAnnualized, styles.NumberStyle); err != nil {
			return err
		}
		if err := line("SR0 (ann.)", dsr.SR0Annualized, styles.NumberStyle); err != nil {
			return err
		}
		if err := line("Trials", dsr.Trials, styles.BaseStyle); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeTradesSheet(fx *excelize.File, trades []types.TradeRecord, styles ExcelStyles) error {
	if _, err := fx.NewSheet(tradesSheet); err != nil {
		return err
	}
	fx.SetColWidth(tradesSheet, "A", "A", 8)
	fx.SetColWidth(tradesSheet, "B", "C", 12)
	fx.SetColWidth(tradesSheet, "D", "I", 14)
	fx.SetColWidth(tradesSheet, "J", "J", 14)

	if err := writeHeader(fx, tradesSheet, []string{
		"Trade", "Entry Date", "Exit Date", "Entry Price", "Exit Price", "Quantity", "PnL", "PnL %", "Commission", "Exit Reason",
	}, styles.HeaderStyle); err != nil {
		return err
	}
	for i, t := range trades {
		pctStyle := styles.GreenPercentStyle
		if t.PnL < 0 {
			pctStyle = styles.RedPercentStyle
		}
		if err := writeRow(fx, tradesSheet, i+2,
			[]any{i + 1, t.EntryDate, t.ExitDate, t.EntryPrice, t.ExitPrice, t.Quantity, t.PnL, t.PnLPct / 100, t.Commission, string(t.ExitReason)},
			[]int{styles.BaseStyle, styles.DateStyle, styles.DateStyle, styles.NumberStyle, styles.NumberStyle, styles.BaseStyle,
				styles.CurrencyStyle, pctStyle, styles.CurrencyStyle, styles.BaseStyle},
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeEquitySheet(fx *excelize.File, equity []types.EquityRecord, styles ExcelStyles) error {
	if _, err := fx.NewSheet(equitySheet); err != nil {
		return err
	}
	fx.SetColWidth(equitySheet, "A", "C", 14)
	if err := writeHeader(fx, equitySheet, []string{"Date", "Equity", "Drawdown"}, styles.HeaderStyle); err != nil {
		return err
	}
	peak := 0.0
	for i, e := range equity {
		peak = max(peak, e.Equity)
		dd := 0.0
		if peak > 0 {
			dd = e.Equity/peak - 1
		}
		if err := writeRow(fx, equitySheet, i+2, []any{e.Date, e.Equity, dd},
			[]int{styles.DateStyle, styles.CurrencyStyle, styles.PercentStyle}); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeGridSheet(fx *excelize.File, report *Report, styles ExcelStyles) error {
	if _, err := fx.NewSheet(gridSheet); err != nil {
		return err
	}
	fx.SetColWidth(gridSheet, "A", "M", 13)
	if err := writeHeader(fx, gridSheet, []string{
		"Index", "MA Window", "Buy Buffer", "Sell Buffer", "Hold Days", "Recent Months",
		"Final Capital", "Total Return", "CAGR", "MDD", "Sharpe", "Win Rate", "Trades",
	}, styles.HeaderStyle); err != nil {
		return err
	}
	for i, g := range report.Grid {
		p, s := g.Params, g.Summary
		if err := writeRow(fx, gridSheet, i+2,
			[]any{g.Index, p.MAWindow, p.BuyBufferPct, p.SellBufferPct, p.HoldDays, p.RecentMonths,
				s.FinalCapital, s.TotalReturnPct / 100, s.CAGR, s.MDD, s.Sharpe, s.WinRate, s.TotalTrades},
			[]int{styles.BaseStyle, styles.BaseStyle, styles.PercentStyle, styles.PercentStyle, styles.BaseStyle, styles.BaseStyle,
				styles.CurrencyStyle, styles.PercentStyle, styles.PercentStyle, styles.PercentStyle, styles.NumberStyle, styles.PercentStyle, styles.BaseStyle},
		); err != nil {
			return err
		}
	}
	return fx.AutoFilter(gridSheet, fmt.Sprintf("A1:M%d", len(report.Grid)+1), nil)
}

func (r *DefaultExcelReporter) writeWalkForwardSheet(fx *excelize.File, report *Report, styles ExcelStyles) error {
	wf := report.WalkForward
	if _, err := fx.NewSheet(walkForwardSheet); err != nil {
		return err
	}
	fx.SetColWidth(walkForwardSheet, "A", "A", 8)
	fx.SetColWidth(walkForwardSheet, "B", "E", 12)
	fx.SetColWidth(walkForwardSheet, "F", "F", 44)
	fx.SetColWidth(walkForwardSheet, "G", "M", 14)
	if err := writeHeader(fx, walkForwardSheet, []string{
		"Window", "Train Start", "Train End", "Test Start", "Test End", "Best Params",
		"Train " + string(wf.Metric), "Test " + string(wf.Metric), "Test Return", "Test MDD",
		"Start Capital", "End Capital", "Test Trades",
	}, styles.HeaderStyle); err != nil {
		return err
	}
	for i, w := range wf.Windows {
		retStyle := styles.GreenPercentStyle
		if w.TestReturnPct < 0 {
			retStyle = styles.RedPercentStyle
		}
		if err := writeRow(fx, walkForwardSheet, i+2,
			[]any{w.WindowIdx, w.TrainStart, w.TrainEnd, w.TestStart, w.TestEnd, w.BestParams.Key(),
				w.TrainMetric, w.TestMetric, w.TestReturnPct / 100, w.TestMDD, w.StartCapital, w.EndCapital, w.TestTrades},
			[]int{styles.BaseStyle, styles.DateStyle, styles.DateStyle, styles.DateStyle, styles.DateStyle, styles.BaseStyle,
				styles.NumberStyle, styles.NumberStyle, retStyle, styles.PercentStyle, styles.CurrencyStyle, styles.CurrencyStyle, styles.BaseStyle},
		); err != nil {
			return err
		}
	}
	return nil
}
