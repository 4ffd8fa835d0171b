package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

var day0 = time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)

func testParams() StrategyParams {
	return StrategyParams{
		MAWindow:       3,
		BuyBufferPct:   0.01,
		SellBufferPct:  0.01,
		HoldDays:       0,
		RecentMonths:   0,
		InitialCapital: 10000,
	}
}

func noCosts() ExecutionConfig {
	return ExecutionConfig{}
}

func TestComputeBands(t *testing.T) {
	b := ComputeBands(100, 0.02, 0.03)
	assert.InDelta(t, 102.0, b.Upper, 1e-12)
	assert.InDelta(t, 97.0, b.Lower, 1e-12)
	assert.Equal(t, 100.0, b.MA)
}

func obs(close float64, bands Bands) BandObservation {
	return BandObservation{Close: close, Bands: bands}
}

func TestCrossedBelow(t *testing.T) {
	bands := ComputeBands(100, 0.01, 0.01)
	warmUp := ComputeBands(math.NaN(), 0.01, 0.01)

	assert.True(t, CrossedBelow(obs(100, bands), obs(98, bands)))
	assert.True(t, CrossedBelow(obs(99, bands), obs(98, bands)), "from exactly on the band")
	assert.False(t, CrossedBelow(obs(98.5, bands), obs(98, bands)), "already below")
	assert.False(t, CrossedBelow(obs(100, bands), obs(99.5, bands)), "inside the band")
	assert.False(t, CrossedBelow(NoObservation, obs(98, bands)), "no previous day")
	assert.False(t, CrossedBelow(obs(100, bands), obs(98, warmUp)))

	// a warm-up previous day is compared with today's band
	assert.True(t, CrossedBelow(obs(100, warmUp), obs(98, bands)))
	assert.False(t, CrossedBelow(obs(98.5, warmUp), obs(98, bands)))
}

func TestCrossedAbove(t *testing.T) {
	bands := ComputeBands(100, 0.01, 0.01)
	warmUp := ComputeBands(math.NaN(), 0.01, 0.01)

	assert.True(t, CrossedAbove(obs(100, bands), obs(102, bands)))
	assert.True(t, CrossedAbove(obs(101, bands), obs(102, bands)), "from exactly on the band")
	assert.False(t, CrossedAbove(obs(101.5, bands), obs(102, bands)), "already above")
	assert.False(t, CrossedAbove(obs(100, bands), obs(100.5, bands)), "inside the band")
	assert.False(t, CrossedAbove(NoObservation, obs(102, bands)), "no previous day")
	assert.False(t, CrossedAbove(obs(100, bands), obs(102, warmUp)))

	assert.True(t, CrossedAbove(obs(100, warmUp), obs(102, bands)))
	assert.False(t, CrossedAbove(obs(102, warmUp), obs(103, bands)))
}

func TestDetectSellSignal(t *testing.T) {
	bands := ComputeBands(100, 0.01, 0.01)
	inside, below := obs(100, bands), obs(98, bands)

	assert.True(t, DetectSellSignal(StateLong, inside, below, 5, 5))
	assert.False(t, DetectSellSignal(StateLong, inside, below, 4, 5), "hold days not reached")
	assert.False(t, DetectSellSignal(StateLong, below, below, 5, 0), "no crossing")
	assert.False(t, DetectSellSignal(StateLong, inside, obs(99.5, bands), 5, 0), "inside the band")
	assert.False(t, DetectSellSignal(StateFlat, inside, below, 5, 0), "nothing to sell")
	assert.False(t, DetectSellSignal(StatePendingSell, inside, below, 5, 0))
}

func TestDetectBuySignal(t *testing.T) {
	bands := ComputeBands(100, 0.01, 0.01)
	inside, above := obs(100, bands), obs(102, bands)
	lastBuy := day0

	assert.True(t, DetectBuySignal(StateFlat, inside, above, day0, time.Time{}, 3))
	assert.False(t, DetectBuySignal(StateFlat, above, above, day0, time.Time{}, 0), "no crossing")
	assert.False(t, DetectBuySignal(StateFlat, inside, obs(100.5, bands), day0, time.Time{}, 0), "inside the band")
	assert.False(t, DetectBuySignal(StateLong, inside, above, day0, time.Time{}, 0))
	assert.False(t, DetectBuySignal(StatePendingBuy, inside, above, day0, time.Time{}, 0))

	assert.False(t, DetectBuySignal(StateFlat, inside, above, day0.AddDate(0, 2, 0), lastBuy, 3), "locked out")
	assert.True(t, DetectBuySignal(StateFlat, inside, above, day0.AddDate(0, 3, 0), lastBuy, 3), "lockout expired")
}

func TestInReentryLockout(t *testing.T) {
	assert.False(t, InReentryLockout(time.Time{}, day0, 6))
	assert.False(t, InReentryLockout(day0, day0, 0))
	assert.True(t, InReentryLockout(day0, day0.AddDate(0, 5, 27), 6))
	assert.False(t, InReentryLockout(day0, day0.AddDate(0, 6, 0), 6))
}

func TestNewBufferZone_RejectsInvalidParams(t *testing.T) {
	p := testParams()
	p.MAWindow = 0
	_, err := NewBufferZone(p, noCosts())
	require.Error(t, err)
	assert.True(t, bterrors.IsConfig(err))
	assert.Contains(t, err.Error(), "ma_window")

	p = testParams()
	p.HoldDays = -1
	_, err = NewBufferZone(p, noCosts())
	require.Error(t, err)
	assert.True(t, bterrors.IsConfig(err))
	assert.Contains(t, err.Error(), "hold_days")

	p = testParams()
	p.InitialCapital = 0
	_, err = NewBufferZone(p, noCosts())
	assert.True(t, bterrors.IsConfig(err))

	_, err = NewBufferZone(testParams(), ExecutionConfig{CommissionRate: -0.1})
	assert.True(t, bterrors.IsConfig(err))
}

func TestBufferZone_BuyFillSellCycle(t *testing.T) {
	exec := ExecutionConfig{CommissionRate: 0.001, SlippageRate: 0.002}
	bz, err := NewBufferZone(testParams(), exec)
	require.NoError(t, err)

	bands := ComputeBands(100, 0.01, 0.01)
	bz.Observe(100, bands)
	require.NoError(t, bz.EvaluateSignals(day0, 10, 102, bands))
	require.Equal(t, StatePendingBuy, bz.State())
	require.NotNil(t, bz.Pending())
	assert.Equal(t, ActionBuy, bz.Pending().Action)

	bz.FillPending(day0.AddDate(0, 0, 1), 11, 103)
	assert.Equal(t, StateLong, bz.State())
	assert.Nil(t, bz.Pending())

	fill := 103 * 1.002
	qty := math.Floor(10000 / (fill * 1.001))
	assert.Equal(t, qty, bz.Quantity())
	assert.InDelta(t, 10000-fill*qty*1.001, bz.Cash(), 1e-9)

	// sell on a break below the lower band
	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 0, 2), 12, 98, bands))
	require.Equal(t, StatePendingSell, bz.State())
	assert.Equal(t, qty, bz.Pending().QuantityHint)

	bz.FillPending(day0.AddDate(0, 0, 3), 13, 97)
	assert.Equal(t, StateFlat, bz.State())
	assert.Equal(t, 0.0, bz.Quantity())

	require.Len(t, bz.Trades(), 1)
	trade := bz.Trades()[0]
	assert.Equal(t, types.ExitSignal, trade.ExitReason)
	assert.InDelta(t, 97*0.998, trade.ExitPrice, 1e-9)
	assert.InDelta(t, fill, trade.EntryPrice, 1e-9)
	assert.Less(t, trade.PnL, 0.0)
	assert.InDelta(t, bz.Cash()-10000, trade.PnL, 1e-6)
}

func TestBufferZone_SellHasPriorityOverBuy(t *testing.T) {
	bz, err := NewBufferZone(testParams(), noCosts())
	require.NoError(t, err)
	require.NoError(t, bz.IssueOrder(ActionBuy, day0, 0, 100))
	bz.FillPending(day0.AddDate(0, 0, 1), 1, 100)
	require.Equal(t, StateLong, bz.State())

	// a crossing below the lower band with the machine LONG only ever sells
	bands := ComputeBands(100, 0.01, 0.01)
	bz.Observe(100, bands)
	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 0, 2), 2, 90, bands))
	assert.Equal(t, ActionSell, bz.Pending().Action)
}

func TestBufferZone_HoldDaysBlocksEarlyExit(t *testing.T) {
	p := testParams()
	p.HoldDays = 3
	bz, err := NewBufferZone(p, noCosts())
	require.NoError(t, err)

	require.NoError(t, bz.IssueOrder(ActionBuy, day0, 0, 100))
	bz.FillPending(day0.AddDate(0, 0, 1), 1, 100)

	bands := ComputeBands(100, 0.01, 0.01)
	bz.Observe(100, bands)
	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 0, 2), 2, 90, bands))
	assert.Equal(t, StateLong, bz.State(), "crossed after 1 day held")

	// staying below the band is not a new crossing, even once the hold is over
	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 0, 3), 3, 90, bands))
	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 0, 4), 4, 90, bands))
	assert.Equal(t, StateLong, bz.State(), "held 3 days, no crossing")

	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 0, 5), 5, 100, bands))
	assert.Equal(t, StateLong, bz.State())
	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 0, 6), 6, 90, bands))
	assert.Equal(t, StatePendingSell, bz.State(), "crossed again after 5 days held")
	assert.Equal(t, day0.AddDate(0, 0, 6), bz.Pending().IssuedDate)
}

func TestBufferZone_RecentMonthsLockout(t *testing.T) {
	p := testParams()
	p.RecentMonths = 1
	bz, err := NewBufferZone(p, noCosts())
	require.NoError(t, err)
	bands := ComputeBands(100, 0.01, 0.01)

	bz.Observe(100, bands)
	require.NoError(t, bz.EvaluateSignals(day0, 0, 105, bands))
	bz.FillPending(day0.AddDate(0, 0, 1), 1, 105)
	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 0, 2), 2, 95, bands))
	bz.FillPending(day0.AddDate(0, 0, 3), 3, 95)
	require.Equal(t, StateFlat, bz.State())

	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 0, 10), 10, 105, bands))
	assert.Equal(t, StateFlat, bz.State(), "re-entry within a month is locked out")

	// the lockout expires while the close is still above the band: no new crossing
	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 1, 0), 30, 105, bands))
	assert.Equal(t, StateFlat, bz.State())

	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 1, 1), 31, 100, bands))
	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 1, 2), 32, 105, bands))
	assert.Equal(t, StatePendingBuy, bz.State())
}

func TestBufferZone_SecondOrderWhileOutstandingConflicts(t *testing.T) {
	bz, err := NewBufferZone(testParams(), noCosts())
	require.NoError(t, err)
	bands := ComputeBands(100, 0.01, 0.01)

	bz.Observe(100, bands)
	require.NoError(t, bz.EvaluateSignals(day0, 0, 102, bands))
	require.Equal(t, StatePendingBuy, bz.State())

	// no fill in between: pretend the state machine lost track of the pending order
	bz.ForceState(StateFlat)
	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 0, 1), 1, 100, bands))
	err = bz.EvaluateSignals(day0.AddDate(0, 0, 2), 2, 103, bands)
	require.Error(t, err)
	assert.True(t, bterrors.IsPendingOrderConflict(err))

	// the outstanding order is left untouched
	assert.Equal(t, day0, bz.Pending().IssuedDate)
}

func TestBufferZone_FirstDayNeedsAPreviousClose(t *testing.T) {
	bz, err := NewBufferZone(testParams(), noCosts())
	require.NoError(t, err)
	bands := ComputeBands(100, 0.01, 0.01)

	require.NoError(t, bz.EvaluateSignals(day0, 0, 102, bands))
	assert.Equal(t, StateFlat, bz.State(), "nothing to cross from")
}

func TestBufferZone_WarmUpDayFeedsTheNextCrossing(t *testing.T) {
	warmUp := ComputeBands(math.NaN(), 0.01, 0.01)
	bands := ComputeBands(100, 0.01, 0.01)

	bz, err := NewBufferZone(testParams(), noCosts())
	require.NoError(t, err)
	require.NoError(t, bz.EvaluateSignals(day0, 0, 100, warmUp))
	assert.Equal(t, StateFlat, bz.State(), "no band, no signal")
	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 0, 1), 1, 102, bands))
	assert.Equal(t, StatePendingBuy, bz.State())

	bz, err = NewBufferZone(testParams(), noCosts())
	require.NoError(t, err)
	require.NoError(t, bz.EvaluateSignals(day0, 0, 103, warmUp))
	require.NoError(t, bz.EvaluateSignals(day0.AddDate(0, 0, 1), 1, 102, bands))
	assert.Equal(t, StateFlat, bz.State(), "already above the band before it existed")
}

func TestBufferZone_BuyCancelledWhenCapitalTooSmall(t *testing.T) {
	p := testParams()
	p.InitialCapital = 50
	bz, err := NewBufferZone(p, noCosts())
	require.NoError(t, err)

	require.NoError(t, bz.IssueOrder(ActionBuy, day0, 0, 40))
	bz.FillPending(day0.AddDate(0, 0, 1), 1, 60)
	assert.Equal(t, StateFlat, bz.State())
	assert.Nil(t, bz.Pending())
	assert.Equal(t, 50.0, bz.Cash())
}

func TestBufferZone_LiquidateEndsFlat(t *testing.T) {
	bz, err := NewBufferZone(testParams(), noCosts())
	require.NoError(t, err)

	require.NoError(t, bz.IssueOrder(ActionBuy, day0, 0, 100))
	bz.FillPending(day0.AddDate(0, 0, 1), 1, 100)
	require.NoError(t, bz.IssueOrder(ActionSell, day0.AddDate(0, 0, 2), 2, 99))

	bz.Liquidate(day0.AddDate(0, 0, 3), 110)
	assert.Equal(t, StateFlat, bz.State())
	assert.Nil(t, bz.Pending())
	require.Len(t, bz.Trades(), 1)
	assert.Equal(t, types.ExitEndOfData, bz.Trades()[0].ExitReason)
	assert.InDelta(t, 11000, bz.Cash(), 1e-9)
}

// TestBufferZone_LiquidateDropsPendingBuy tests a direct caller liquidating with an order outstanding
func TestBufferZone_LiquidateDropsPendingBuy(t *testing.T) {
	bz, err := NewBufferZone(testParams(), noCosts())
	require.NoError(t, err)
	require.NoError(t, bz.IssueOrder(ActionBuy, day0, 0, 100))

	bz.Liquidate(day0.AddDate(0, 0, 1), 100)
	assert.Equal(t, StateFlat, bz.State())
	assert.Empty(t, bz.Trades())
	assert.Equal(t, 10000.0, bz.Cash())
}

func TestStrategyParams_Key(t *testing.T) {
	assert.Equal(t, "ma=3 buy=0.0100 sell=0.0100 hold=0 recent=0", testParams().Key())
}
