package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// DefaultCSVReporter implements CSV output functionality
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

// WriteTradesCSV writes one row per closed round trip plus a summary row
func (r *DefaultCSVReporter) WriteTradesCSV(trades []types.TradeRecord, path string) error {
	rows := make([][]string, 0, len(trades)+1)
	var totalPnL, totalCommission float64
	wins := 0
	for i, t := range trades {
		totalPnL += t.PnL
		totalCommission += t.Commission
		winLoss := "W"
		if t.PnL < 0 {
			winLoss = "L"
		} else {
			wins++
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			t.EntryDate.Format(dateLayout),
			t.ExitDate.Format(dateLayout),
			formatFloat(t.EntryPrice, 4),
			formatFloat(t.ExitPrice, 4),
			formatFloat(t.Quantity, 0),
			formatFloat(t.PnL, 2),
			formatFloat(t.PnLPct, 2),
			formatFloat(t.Commission, 2),
			string(t.ExitReason),
			winLoss,
		})
	}

	summary := make([]string, 11)
	summary[0] = "SUMMARY"
	summary[6] = formatFloat(totalPnL, 2)
	summary[8] = formatFloat(totalCommission, 2)
	summary[10] = fmt.Sprintf("%d/%d", wins, len(trades))
	rows = append(rows, summary)

	return writeCSV(path, []string{
		"Trade", "Entry_Date", "Exit_Date", "Entry_Price", "Exit_Price", "Quantity",
		"PnL", "PnL_%", "Commission", "Exit_Reason", "Win_Loss",
	}, rows)
}

// WriteEquityCSV writes the daily equity curve
func (r *DefaultCSVReporter) WriteEquityCSV(equity []types.EquityRecord, path string) error {
	rows := make([][]string, len(equity))
	for i, e := range equity {
		rows[i] = []string{e.Date.Format(dateLayout), formatFloat(e.Equity, 2)}
	}
	return writeCSV(path, []string{"Date", "Equity"}, rows)
}

// WriteGridCSV writes every grid row in combination order
func (r *DefaultCSVReporter) WriteGridCSV(grid []backtest.GridResult, path string) error {
	rows := make([][]string, len(grid))
	for i, g := range grid {
		p, s := g.Params, g.Summary
		rows[i] = []string{
			strconv.Itoa(g.Index),
			strconv.Itoa(p.MAWindow),
			formatFloat(p.BuyBufferPct, 4),
			formatFloat(p.SellBufferPct, 4),
			strconv.Itoa(p.HoldDays),
			strconv.Itoa(p.RecentMonths),
			formatFloat(s.FinalCapital, 2),
			formatFloat(s.TotalReturnPct, 4),
			formatFloat(s.CAGR, 6),
			formatFloat(s.MDD, 6),
			formatFloat(s.Sharpe, 4),
			formatFloat(s.WinRate, 4),
			strconv.Itoa(s.TotalTrades),
		}
	}
	return writeCSV(path, []string{
		"Index", "MA_Window", "Buy_Buffer", "Sell_Buffer", "Hold_Days", "Recent_Months",
		"Final_Capital", "Total_Return_%", "CAGR", "MDD", "Sharpe", "Win_Rate", "Trades",
	}, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
