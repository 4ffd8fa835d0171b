package strategy

import (
	"fmt"
	"math"
	"time"

	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// Bands is the buffer zone around the moving average for one day
type Bands struct {
	MA    float64
	Upper float64
	Lower float64
}

// ComputeBands derives the hysteresis band from the moving average
func ComputeBands(ma, buyBufferPct, sellBufferPct float64) Bands {
	return Bands{
		MA:    ma,
		Upper: ma * (1 + buyBufferPct),
		Lower: ma * (1 - sellBufferPct),
	}
}

// BandObservation is one day's signal close against that day's band
type BandObservation struct {
	Close float64
	Bands Bands
}

// NoObservation stands for a day that does not exist, such as the one before the first row
var NoObservation = BandObservation{Close: math.NaN(), Bands: ComputeBands(math.NaN(), 0, 0)}

func (o BandObservation) hasClose() bool { return !math.IsNaN(o.Close) }
func (o BandObservation) hasBands() bool { return !math.IsNaN(o.Bands.MA) }

// CrossedBelow reports whether the close moved from at or above the lower band to below it.
// A previous day still in moving-average warm-up has no band; its close is compared with today's band.
func CrossedBelow(prev, cur BandObservation) bool {
	if !cur.hasBands() || !prev.hasClose() || !(cur.Close < cur.Bands.Lower) {
		return false
	}
	ref := prev.Bands.Lower
	if !prev.hasBands() {
		ref = cur.Bands.Lower
	}
	return prev.Close >= ref
}

// CrossedAbove reports whether the close moved from at or below the upper band to above it.
// Warm-up days are handled as in CrossedBelow.
func CrossedAbove(prev, cur BandObservation) bool {
	if !cur.hasBands() || !prev.hasClose() || !(cur.Close > cur.Bands.Upper) {
		return false
	}
	ref := prev.Bands.Upper
	if !prev.hasBands() {
		ref = cur.Bands.Upper
	}
	return prev.Close <= ref
}

// DetectSellSignal reports whether a LONG position should be exited today.
// The close must cross below the lower band and the position must have been held
// for at least holdDays trading days. A crossing blocked by holdDays is not remembered.
func DetectSellSignal(state PositionState, prev, cur BandObservation, heldDays, holdDays int) bool {
	if state != StateLong {
		return false
	}
	return CrossedBelow(prev, cur) && heldDays >= holdDays
}

// DetectBuySignal reports whether a FLAT book should enter today.
// The close must cross above the upper band and the re-entry lockout must have expired.
// A crossing inside the lockout is not remembered.
func DetectBuySignal(state PositionState, prev, cur BandObservation, date, lastBuy time.Time, recentMonths int) bool {
	if state != StateFlat {
		return false
	}
	return CrossedAbove(prev, cur) && !InReentryLockout(lastBuy, date, recentMonths)
}

// InReentryLockout reports whether a buy issued on lastBuy still blocks new buys on date.
// A zero lastBuy means no buy was ever issued.
func InReentryLockout(lastBuy, date time.Time, recentMonths int) bool {
	if recentMonths <= 0 || lastBuy.IsZero() {
		return false
	}
	return date.Before(lastBuy.AddDate(0, recentMonths, 0))
}

// BufferZone is the per-run position state machine and capital ledger.
// A BufferZone must not be shared between runs.
type BufferZone struct {
	params StrategyParams
	exec   ExecutionConfig

	state   PositionState
	pending *PendingOrder

	cash     float64
	quantity float64

	entryDate       time.Time
	entryIndex      int
	entryPrice      float64
	entryCommission float64

	lastBuyIssued time.Time
	trades        []types.TradeRecord

	// prev is the last day seen by EvaluateSignals or Observe
	prev BandObservation
}

// NewBufferZone creates a FLAT machine holding the initial capital in cash
func NewBufferZone(params StrategyParams, exec ExecutionConfig) (*BufferZone, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := exec.Validate(); err != nil {
		return nil, err
	}
	return &BufferZone{
		params: params,
		exec:   exec,
		state:  StateFlat,
		cash:   params.InitialCapital,
		trades: make([]types.TradeRecord, 0),
		prev:   NoObservation,
	}, nil
}

// State returns the active position state
func (b *BufferZone) State() PositionState { return b.state }

// Pending returns the outstanding order, or nil
func (b *BufferZone) Pending() *PendingOrder { return b.pending }

// Cash returns the uninvested capital
func (b *BufferZone) Cash() float64 { return b.cash }

// Quantity returns the held share count
func (b *BufferZone) Quantity() float64 { return b.quantity }

// Trades returns the closed round trips so far
func (b *BufferZone) Trades() []types.TradeRecord { return b.trades }

// Equity marks the book to the given price
func (b *BufferZone) Equity(mark float64) float64 {
	return b.cash + b.quantity*mark
}

// ForceState overrides the position state without touching the pending order or ledger.
// It exists for diagnostics and for exercising invariant checks.
func (b *BufferZone) ForceState(state PositionState) {
	b.state = state
}

// HeldDays returns the trading days since the open position was filled
func (b *BufferZone) HeldDays(index int) int {
	if b.quantity == 0 {
		return 0
	}
	return index - b.entryIndex
}

// IssueOrder queues an order for the next open.
// Queuing while another order is outstanding is an invariant violation.
func (b *BufferZone) IssueOrder(action TradeAction, date time.Time, index int, trigger float64) error {
	if b.pending != nil {
		return bterrors.NewPendingOrderConflictError("strategy", "issue_order",
			fmt.Sprintf("cannot issue %s on %s: %s issued on %s is still outstanding",
				action, date.Format("2006-01-02"), b.pending.Action, b.pending.IssuedDate.Format("2006-01-02"))).
			WithContext("state", b.state.String())
	}

	order := &PendingOrder{
		Action:       action,
		IssuedDate:   date,
		IssuedIndex:  index,
		TriggerPrice: trigger,
	}

	switch action {
	case ActionBuy:
		order.QuantityHint = b.buyQuantity(trigger)
		b.lastBuyIssued = date
		b.state = StatePendingBuy
	case ActionSell:
		order.QuantityHint = b.quantity
		b.state = StatePendingSell
	default:
		return bterrors.NewConfigError("strategy", "issue_order", fmt.Sprintf("unsupported order action %s", action))
	}

	b.pending = order
	return nil
}

// Observe records a day's close and band as the previous day without evaluating signals.
// Used for the last warm-up row before a delayed trading start.
func (b *BufferZone) Observe(close float64, bands Bands) {
	b.prev = BandObservation{Close: close, Bands: bands}
}

// EvaluateSignals runs the sell check and then the buy check against the day's close,
// then records the day as the previous one. Sell has priority; at most one order is issued per day.
// close is the signal-series close: the band is in signal price units, so the trade close is never compared with it.
// Bands with a NaN moving average never signal.
func (b *BufferZone) EvaluateSignals(date time.Time, index int, close float64, bands Bands) error {
	prev, cur := b.prev, BandObservation{Close: close, Bands: bands}
	b.prev = cur

	if DetectSellSignal(b.state, prev, cur, b.HeldDays(index), b.params.HoldDays) {
		return b.IssueOrder(ActionSell, date, index, close)
	}
	if DetectBuySignal(b.state, prev, cur, date, b.lastBuyIssued, b.params.RecentMonths) {
		return b.IssueOrder(ActionBuy, date, index, close)
	}
	return nil
}

// FillPending executes the outstanding order at the given open.
// Buys fill higher and sells fill lower by the slippage rate.
func (b *BufferZone) FillPending(date time.Time, index int, open float64) {
	if b.pending == nil {
		return
	}
	order := b.pending
	b.pending = nil

	switch order.Action {
	case ActionBuy:
		fill := open * (1 + b.exec.SlippageRate)
		qty := b.buyQuantity(fill)
		if qty <= 0 {
			// not enough capital for a single share
			b.state = StateFlat
			return
		}
		cost := fill * qty
		commission := cost * b.exec.CommissionRate
		b.cash -= cost + commission
		b.quantity = qty
		b.entryDate = date
		b.entryIndex = index
		b.entryPrice = fill
		b.entryCommission = commission
		b.state = StateLong
	case ActionSell:
		b.closePosition(date, open*(1-b.exec.SlippageRate), types.ExitSignal)
	}
}

// Liquidate is the end-of-history transition: any open position is closed at the given close
// and the book ends FLAT. The executor never leaves an order pending on the last row; a pending
// order left by a direct caller is dropped unfilled.
func (b *BufferZone) Liquidate(date time.Time, close float64) {
	b.pending = nil
	if b.quantity > 0 {
		b.closePosition(date, close*(1-b.exec.SlippageRate), types.ExitEndOfData)
	}
	b.state = StateFlat
}

func (b *BufferZone) buyQuantity(price float64) float64 {
	if price <= 0 {
		return 0
	}
	return math.Floor(b.cash / (price * (1 + b.exec.CommissionRate)))
}

func (b *BufferZone) closePosition(date time.Time, fill float64, reason types.ExitReason) {
	qty := b.quantity
	proceeds := fill * qty
	commission := proceeds * b.exec.CommissionRate
	b.cash += proceeds - commission

	entryCost := b.entryPrice*qty + b.entryCommission
	pnl := (proceeds - commission) - entryCost
	pnlPct := 0.0
	if entryCost > 0 {
		pnlPct = pnl / entryCost * 100
	}

	b.trades = append(b.trades, types.TradeRecord{
		EntryDate:  b.entryDate,
		EntryPrice: b.entryPrice,
		ExitDate:   date,
		ExitPrice:  fill,
		Quantity:   qty,
		PnL:        pnl,
		PnLPct:     pnlPct,
		ExitReason: reason,
		Commission: b.entryCommission + commission,
	})

	b.quantity = 0
	b.entryPrice = 0
	b.entryCommission = 0
	b.state = StateFlat
}
