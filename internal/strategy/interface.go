package strategy

import (
	"time"
)

// TradeAction represents the side of a pending order
type TradeAction int

const (
	ActionHold TradeAction = iota
	ActionBuy
	ActionSell
)

func (ta TradeAction) String() string {
	switch ta {
	case ActionHold:
		return "HOLD"
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// PositionState is the per-run position state machine.
// Exactly one state is active on any given day.
type PositionState int

const (
	StateFlat PositionState = iota
	StatePendingBuy
	StateLong
	StatePendingSell
)

func (s PositionState) String() string {
	switch s {
	case StateFlat:
		return "FLAT"
	case StatePendingBuy:
		return "PENDING_BUY"
	case StateLong:
		return "LONG"
	case StatePendingSell:
		return "PENDING_SELL"
	default:
		return "UNKNOWN"
	}
}

// PendingOrder is created at a day's close and filled at the next day's open
type PendingOrder struct {
	Action       TradeAction
	IssuedDate   time.Time
	IssuedIndex  int
	TriggerPrice float64
	QuantityHint float64
}
