package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/validation"
)

const dateLayout = "2006-01-02"

// DefaultConsoleReporter renders result tables
type DefaultConsoleReporter struct {
	out io.Writer
}

// NewDefaultConsoleReporter creates a console reporter writing to out; nil means stdout
func NewDefaultConsoleReporter(out io.Writer) *DefaultConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &DefaultConsoleReporter{out: out}
}

func (r *DefaultConsoleReporter) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// PrintSummary prints run statistics as a two-column table
func (r *DefaultConsoleReporter) PrintSummary(title string, s types.Summary) {
	t := r.newTable(title)
	t.AppendRows([]table.Row{
		{"Period", fmt.Sprintf("%s → %s", s.StartDate.Format(dateLayout), s.EndDate.Format(dateLayout))},
		{"Initial Capital", fmt.Sprintf("$%.2f", s.InitialCapital)},
		{"Final Capital", fmt.Sprintf("$%.2f", s.FinalCapital)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Total Return", fmt.Sprintf("%.2f%%", s.TotalReturnPct)},
		{"CAGR", fmt.Sprintf("%.2f%%", s.CAGR*100)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", s.MDD*100)},
		{"Sharpe (ann.)", fmt.Sprintf("%.2f", s.Sharpe)},
		{"Volatility (ann.)", fmt.Sprintf("%.2f%%", s.Volatility*100)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Trades", s.TotalTrades},
		{"Win Rate", fmt.Sprintf("%.1f%% (%d W / %d L)", s.WinRate*100, s.WinningTrades, s.LosingTrades)},
		{"Profit Factor", fmt.Sprintf("%.2f", s.ProfitFactor)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 40, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Fprintln(r.out)
}

// PrintGrid prints the n best grid rows by metric
func (r *DefaultConsoleReporter) PrintGrid(rows []backtest.GridResult, metric backtest.SelectionMetric, n int) {
	top := backtest.TopN(rows, metric, n)
	t := r.newTable(fmt.Sprintf("GRID SEARCH: top %d of %d by %s", len(top), len(rows), metric))
	t.AppendHeader(table.Row{"#", "MA", "Buy %", "Sell %", "Hold", "Recent", "Return %", "CAGR %", "MDD %", "Sharpe", "Trades"})
	for i, row := range top {
		p, s := row.Params, row.Summary
		t.AppendRow(table.Row{
			i + 1, p.MAWindow,
			fmt.Sprintf("%.2f", p.BuyBufferPct*100), fmt.Sprintf("%.2f", p.SellBufferPct*100),
			p.HoldDays, p.RecentMonths,
			fmt.Sprintf("%.2f", s.TotalReturnPct), fmt.Sprintf("%.2f", s.CAGR*100),
			fmt.Sprintf("%.2f", s.MDD*100), fmt.Sprintf("%.2f", s.Sharpe), s.TotalTrades,
		})
	}
	t.Render()
	fmt.Fprintln(r.out)
}

// PrintWalkForward prints one row per window and the stitched out-of-sample summary
func (r *DefaultConsoleReporter) PrintWalkForward(res *validation.WalkForwardResult) {
	if res == nil {
		return
	}
	t := r.newTable("WALK-FORWARD WINDOWS")
	t.AppendHeader(table.Row{"#", "Train", "Test", "Best Params", "Train " + string(res.Metric), "Test " + string(res.Metric), "Test Return %", "Test MDD %", "End Capital"})
	for _, w := range res.Windows {
		t.AppendRow(table.Row{
			w.WindowIdx,
			w.TrainStart.Format(dateLayout) + " → " + w.TrainEnd.Format(dateLayout),
			w.TestStart.Format(dateLayout) + " → " + w.TestEnd.Format(dateLayout),
			w.BestParams.Key(),
			fmt.Sprintf("%.4f", w.TrainMetric), fmt.Sprintf("%.4f", w.TestMetric),
			fmt.Sprintf("%.2f", w.TestReturnPct), fmt.Sprintf("%.2f", w.TestMDD*100),
			fmt.Sprintf("$%.2f", w.EndCapital),
		})
	}
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d distinct", res.DistinctParams),
		fmt.Sprintf("%.4f", res.MeanTrainValue), fmt.Sprintf("%.4f", res.MeanTestValue), "", "",
		fmt.Sprintf("%d skipped, %d excluded", res.Skipped, res.Excluded)})
	t.Render()
	fmt.Fprintln(r.out)

	r.PrintSummary("WALK-FORWARD OUT-OF-SAMPLE", res.Summary)
}

// PrintPBO prints the CSCV overfitting statistics
func (r *DefaultConsoleReporter) PrintPBO(res *validation.PboResult) {
	if res == nil {
		return
	}
	t := r.newTable("CSCV / PROBABILITY OF BACKTEST OVERFITTING")
	t.AppendRows([]table.Row{
		{"Blocks (S)", fmt.Sprintf("%d × %d rows", res.Blocks, res.BlockLen)},
		{"Combinations (N)", res.Combinations},
		{"Splits", fmt.Sprintf("%d valid of %d", res.ValidSplits, res.Splits)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"PBO", fmt.Sprintf("%.4f (%d overfit)", res.PBO, res.Overfit)},
		{"Mean Logit", fmt.Sprintf("%.4f", res.MeanLogit)},
		{"P(OOS Sharpe < 0)", fmt.Sprintf("%.4f", res.ProbOOSLoss)},
		{"Degradation", fmt.Sprintf("OOS = %.4f + %.4f × IS", res.InterceptOOS, res.SlopeISvsOOS)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 40, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Fprintln(r.out)
}

// PrintDSR prints the deflated Sharpe ratio and its inputs
func (r *DefaultConsoleReporter) PrintDSR(res *validation.DsrResult) {
	if res == nil {
		return
	}
	t := r.newTable("DEFLATED SHARPE RATIO")
	t.AppendRows([]table.Row{
		{"DSR", fmt.Sprintf("%.4f", res.DSR)},
		{"Sharpe", fmt.Sprintf("%.4f (ann. %.2f)", res.Sharpe, res.SharpeAnnualized)},
		{"Expected Max SR0", fmt.Sprintf("%.4f (ann. %.2f)", res.SR0, res.SR0Annualized)},
		{"z", fmt.Sprintf("%.4f", res.ZScore)},
		{"Skew / Kurtosis", fmt.Sprintf("%.4f / %.4f", res.Skewness, res.Kurtosis)},
		{"Trials / T", fmt.Sprintf("%d / %d", res.Trials, res.Observations)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 40, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Fprintln(r.out)
}
