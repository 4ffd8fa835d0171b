package types

import "time"

// EquityRecord is one mark-to-market row per trading day
type EquityRecord struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

// ExitReason explains why a round trip closed
type ExitReason string

const (
	ExitSignal    ExitReason = "signal"
	ExitEndOfData ExitReason = "end_of_data"
)

// TradeRecord is a closed round trip
type TradeRecord struct {
	EntryDate  time.Time  `json:"entry_date"`
	EntryPrice float64    `json:"entry_price"`
	ExitDate   time.Time  `json:"exit_date"`
	ExitPrice  float64    `json:"exit_price"`
	Quantity   float64    `json:"quantity"`
	PnL        float64    `json:"pnl"`
	PnLPct     float64    `json:"pnl_pct"`
	ExitReason ExitReason `json:"exit_reason"`
	Commission float64    `json:"commission"`
}

// Summary holds the run statistics computed from an equity curve and trade ledger.
// CAGR uses calendar days / 365.25; Sharpe and Volatility use 252 trading days.
type Summary struct {
	InitialCapital float64   `json:"initial_capital"`
	FinalCapital   float64   `json:"final_capital"`
	TotalReturnPct float64   `json:"total_return_pct"`
	CAGR           float64   `json:"cagr"`
	MDD            float64   `json:"mdd"`
	TotalTrades    int       `json:"total_trades"`
	WinRate        float64   `json:"win_rate"`
	WinningTrades  int       `json:"winning_trades"`
	LosingTrades   int       `json:"losing_trades"`
	ProfitFactor   float64   `json:"profit_factor"`
	Sharpe         float64   `json:"sharpe"`
	Volatility     float64   `json:"volatility"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
}
