package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensqt/daytrader/internal/core"
)

func TestEntryBreakout(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "100", "95", "101", "110", "10"))

	at := openAt.Add(5 * time.Minute)
	h.quote(0, "99.8", "100.1", at) // spread 0.3%
	h.tick(0, core.TickLast, "100.5", at)

	assert.True(t, r.Crossed.Is())
	assert.True(t, r.Executed.Is())
	assert.True(t, r.SpreadAtExecPct.GreaterThan(decimal.Zero))

	placed := h.gw.PlacedOrders()
	require.Len(t, placed, 3)

	parent := placed[0]
	assert.Equal(t, core.SideBuy, parent.Side)
	assert.Equal(t, core.OrderLimit, parent.Type)
	assert.True(t, parent.LimitPrice.Equal(decimal.RequireFromString("101")))
	assert.False(t, parent.Transmit)

	stop := placed[2]
	assert.Equal(t, core.OrderStop, stop.Type)
	assert.True(t, stop.AuxPrice.Equal(decimal.RequireFromString("95")))
	assert.True(t, stop.Transmit, "last leg releases the chain")

	assert.Equal(t, int64(1000), r.ParentOrderID)
	assert.Equal(t, int64(1001), r.ProfitOrderID)
	assert.Equal(t, int64(1002), r.StopOrderID)
}

func TestEntryRequiresCross(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "100", "95", "101", "110", "10"))

	at := openAt.Add(5 * time.Minute)
	h.quote(0, "99.0", "99.2", at)
	h.tick(0, core.TickLast, "99.5", at) // below entry

	assert.False(t, r.Crossed.Is())
	assert.Empty(t, h.gw.PlacedOrders())
}

func TestEntryBlockedByWideSpread(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "100", "95", "101", "110", "10"))

	at := openAt.Add(5 * time.Minute)
	h.quote(0, "98.0", "100.1", at) // spread ~2.1%
	h.tick(0, core.TickLast, "100.5", at)

	assert.True(t, r.Crossed.Is())
	assert.False(t, r.Executed.Is())
	assert.True(t, r.SpreadAboveLimit.Is())
	assert.Empty(t, h.gw.PlacedOrders())
}

func TestEntrySecondChanceOnlyInFirstMinute(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "100", "95", "101", "110", "10"))

	// Cross during the first minute under a bad spread.
	at := openAt.Add(20 * time.Second)
	h.quote(0, "98.0", "100.1", at)
	h.tick(0, core.TickLast, "100.5", at)
	require.True(t, r.Crossed.Is())
	require.False(t, r.Executed.Is())

	// Spread improves while still inside the first minute: entry fires.
	at = openAt.Add(50 * time.Second)
	h.quote(0, "100.0", "100.2", at)
	h.tick(0, core.TickLast, "100.5", at)
	assert.True(t, r.Executed.Is())
}

func TestEntryNoRequalifyAfterFirstMinute(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "100", "95", "101", "110", "10"))

	at := openAt.Add(20 * time.Second)
	h.quote(0, "98.0", "100.1", at)
	h.tick(0, core.TickLast, "100.5", at)
	require.True(t, r.Crossed.Is())
	require.False(t, r.Executed.Is())

	// Good spread, but the first minute has passed.
	at = openAt.Add(5 * time.Minute)
	h.quote(0, "100.0", "100.2", at)
	h.tick(0, core.TickLast, "100.5", at)
	assert.False(t, r.Executed.Is())
	assert.Empty(t, h.gw.PlacedOrders())
}

func TestEntryInvestmentCapShrinksQuantity(t *testing.T) {
	h := newHarness(t)
	// 18% invested of a 100k portfolio, 20% cap.
	h.fund(100000, 18000)
	r := h.addRow(newPlanRow("ACME", "30", "28", "31", "35", "100"))

	at := openAt.Add(5 * time.Minute)
	h.quote(0, "30.1", "30.2", at)
	h.tick(0, core.TickLast, "30.5", at)

	// Wanted 3000 notional, residual capacity 2000: floor(2000/30) = 66.
	assert.True(t, r.InvestLimit.Is())
	assert.True(t, r.Quantity.Equal(decimal.NewFromInt(66)), "got %s", r.Quantity)
	assert.True(t, r.Executed.Is())

	placed := h.gw.PlacedOrders()
	require.Len(t, placed, 3)
	for _, spec := range placed {
		assert.True(t, spec.Quantity.Equal(decimal.NewFromInt(66)))
	}
}

func TestEntryBelowMinimumAborts(t *testing.T) {
	h := newHarness(t)
	// Residual capacity 100 notional; 3 shares of 30 = 90 < 0.1% of 100k.
	h.fund(100000, 19900)
	r := h.addRow(newPlanRow("ACME", "30", "28", "31", "35", "100"))

	at := openAt.Add(5 * time.Minute)
	h.quote(0, "30.1", "30.2", at)
	h.tick(0, core.TickLast, "30.5", at)

	assert.True(t, r.InvestLimit.Is())
	assert.True(t, r.BelowLimit.Is())
	assert.False(t, r.Executed.Is())
	assert.Empty(t, h.gw.PlacedOrders())

	// Later ticks are guarded out entirely.
	h.tick(0, core.TickLast, "30.6", at.Add(time.Second))
	assert.Empty(t, h.gw.PlacedOrders())
}

func TestBreakerBlocksAllEntries(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	h.pushPnL(500, 0) // +0.5%
	require.False(t, h.risk.MaxDailyLossReached())

	h.pushPnL(-3000, -2200) // -5.2% latches
	require.True(t, h.risk.MaxDailyLossReached())

	h.pushPnL(-1000, -1000) // recovery to -2% must not unlatch
	require.True(t, h.risk.MaxDailyLossReached())

	r := h.addRow(newPlanRow("ACME", "100", "95", "101", "110", "10"))
	r2 := h.addRow(newPlanRow("ZETA", "50", "45", "51", "60", "10"))

	at := openAt.Add(5 * time.Minute)
	h.quote(0, "99.8", "100.1", at)
	h.tick(0, core.TickLast, "100.5", at)
	h.quote(1, "49.9", "50.05", at)
	h.tick(1, core.TickLast, "50.5", at)

	assert.True(t, r.MaxLossReached.Is())
	assert.True(t, r2.MaxLossReached.Is())
	assert.False(t, r.Executed.Is())
	assert.False(t, r2.Executed.Is())
	assert.Empty(t, h.gw.PlacedOrders())
}

func TestEntryStopAtLowOfDay(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "100", "95", "101", "110", "10"))
	r.StopAtLowOfDay = true

	at := openAt.Add(5 * time.Minute)
	h.quote(0, "99.8", "100.1", at)
	h.tick(0, core.TickLast, "98.0", at) // sets low of day above the stop
	h.tick(0, core.TickLast, "100.5", at.Add(time.Second))

	assert.True(t, r.Executed.Is())
	// Low 98 is above stop 95 and below last*0.99.
	assert.True(t, r.Stop.Equal(decimal.RequireFromString("98")), "got %s", r.Stop)
}

func TestEntryBuyBlockNearClose(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "100", "95", "101", "110", "10"))
	r.SellOnClose = true

	at := closeAt.Add(-10 * time.Minute) // inside the 15-minute block
	h.quote(0, "99.8", "100.1", at)
	h.tick(0, core.TickLast, "100.5", at)

	assert.True(t, r.Executed.Is(), "execution is stamped even when blocked")
	assert.Empty(t, h.gw.PlacedOrders(), "no order inside the close window")
}

func TestOpeningBracketAboveStop(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	h.eng.dailyBracketsSubmitted = false
	r := h.addRow(newPlanRow("ACME", "90", "95", "0", "110", "50"))
	r.IsOpenPosition = true

	at := openAt.Add(time.Minute)
	h.quote(0, "99.8", "100.1", at)
	h.tick(0, core.TickLast, "100.0", at)

	assert.True(t, r.OpenBracketSubmitted.Is())
	assert.True(t, h.eng.dailyBracketsSubmitted)

	placed := h.gw.PlacedOrders()
	require.Len(t, placed, 2) // profit + stop OCA
	assert.Equal(t, placed[0].OCAGroup, placed[1].OCAGroup)
	assert.Equal(t, 2, placed[0].OCAType)
	assert.False(t, placed[0].Transmit)
	assert.True(t, placed[1].Transmit)
}

func TestOpeningBracketWaitsForSessionOpen(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	h.eng.dailyBracketsSubmitted = false
	r := h.addRow(newPlanRow("ACME", "90", "95", "0", "110", "50"))
	r.IsOpenPosition = true

	// Overnight quotes before the open must not trigger placement.
	at := openAt.Add(-10 * time.Minute)
	h.quote(0, "99.8", "100.1", at)
	h.tick(0, core.TickLast, "100.0", at)

	assert.False(t, r.OpenBracketSubmitted.Is())
	assert.False(t, h.eng.dailyBracketsSubmitted)
	assert.Empty(t, h.gw.PlacedOrders())

	// Same price after the open: bracket goes out.
	at = openAt.Add(time.Minute)
	h.quote(0, "99.8", "100.1", at)
	h.tick(0, core.TickLast, "100.0", at)

	assert.True(t, r.OpenBracketSubmitted.Is())
	assert.Len(t, h.gw.PlacedOrders(), 2)
}

func TestOpeningBracketGapFadeLiquidates(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	h.eng.dailyBracketsSubmitted = false
	r := h.addRow(newPlanRow("ACME", "90", "95", "0", "110", "50"))
	r.IsOpenPosition = true

	at := openAt.Add(time.Minute)
	h.quote(0, "93.9", "94.1", at)

	// 94.0 is below 0.99*95 = 94.05: arm the window.
	h.tick(0, core.TickLast, "94.0", at)
	assert.True(t, r.Looped.Is())
	assert.False(t, r.OpenBracketSubmitted.Is())
	assert.Empty(t, h.gw.PlacedOrders())

	// Five seconds later the price has kept falling: market out.
	h.tick(0, core.TickLast, "93.5", at.Add(5*time.Second))
	assert.True(t, r.OpenBracketSubmitted.Is())

	placed := h.gw.PlacedOrders()
	require.Len(t, placed, 1)
	assert.Equal(t, core.SideSell, placed[0].Side)
	assert.Equal(t, core.OrderMarket, placed[0].Type)
	assert.True(t, placed[0].Quantity.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, placed[0].OrderID, r.StopOrderID, "market order takes the stop slot")
}

func TestOpeningBracketGapFadeRearms(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	h.eng.dailyBracketsSubmitted = false
	r := h.addRow(newPlanRow("ACME", "90", "95", "0", "110", "50"))
	r.IsOpenPosition = true

	at := openAt.Add(time.Minute)
	h.quote(0, "93.9", "94.1", at)

	h.tick(0, core.TickLast, "94.0", at)
	require.True(t, r.Looped.Is())

	// Price recovered a touch but still below threshold: watch again.
	h.tick(0, core.TickLast, "94.02", at.Add(5*time.Second))
	assert.False(t, r.OpenBracketSubmitted.Is())
	assert.Empty(t, h.gw.PlacedOrders())

	// Recovers above the threshold: normal bracket.
	h.tick(0, core.TickLast, "94.06", at.Add(7*time.Second))
	assert.True(t, r.OpenBracketSubmitted.Is())
	assert.Len(t, h.gw.PlacedOrders(), 2)
}

func TestPriorSessionOrderSweep(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	h.eng.priorOrdersCancelled = false
	h.eng.dailyBracketsSubmitted = false
	h.addRow(newPlanRow("ACME", "100", "95", "101", "110", "10"))

	h.tick(0, core.TickLast, "99.0", openAt.Add(time.Minute))

	cancelled := h.gw.CancelledOrders()
	require.Len(t, cancelled, 50)
	assert.Equal(t, int64(950), cancelled[0])
	assert.Equal(t, int64(999), cancelled[len(cancelled)-1])

	// No open positions: the day's one-time steps complete on this tick.
	assert.True(t, h.eng.priorOrdersCancelled)
	assert.True(t, h.eng.dailyBracketsSubmitted)

	// A second tick must not sweep again.
	h.gw.Reset()
	h.tick(0, core.TickLast, "99.1", openAt.Add(2*time.Minute))
	assert.Empty(t, h.gw.CancelledOrders())
}

func TestSellHalfReversal(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "50", "47", "51", "60", "100"))
	execAt := openAt.Add(10 * time.Minute)
	r.Crossed.Set, r.Crossed.At = true, execAt
	r.Executed.Set, r.Executed.At = true, execAt
	r.Filled.Set, r.Filled.At = true, execAt
	r.SpreadAtExecPct = decimal.RequireFromString("0.3")
	r.ProfitOrderID = 900

	// Run-up past entry*(1.06) after the confirmation window: arm.
	at := execAt.Add(200 * time.Second)
	h.quote(0, "53.0", "53.2", at)
	h.tick(0, core.TickLast, "53.10", at)
	assert.True(t, r.TwoPctAbove.Is())
	assert.Empty(t, h.gw.PlacedOrders())

	// Retrace to within entry*(1+spread%): 50*1.003 = 50.15.
	at = at.Add(30 * time.Second)
	h.tick(0, core.TickLast, "50.10", at)

	assert.True(t, r.NewOCA.Is())
	assert.True(t, r.Quantity.Equal(decimal.NewFromInt(50)))
	assert.Contains(t, h.gw.CancelledOrders(), int64(900), "old bracket torn down first")

	placed := h.gw.PlacedOrders()
	require.Len(t, placed, 3) // market half + 2-leg OCA
	assert.Equal(t, core.OrderMarket, placed[0].Type)
	assert.True(t, placed[0].Quantity.Equal(decimal.NewFromInt(50)))
	assert.True(t, placed[1].Quantity.Equal(decimal.NewFromInt(50)))
}

func TestSellHalfOddQuantitySplit(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "50", "47", "51", "60", "101"))
	execAt := openAt.Add(10 * time.Minute)
	r.Executed.Set, r.Executed.At = true, execAt
	r.Filled.Set, r.Filled.At = true, execAt
	r.SpreadAtExecPct = decimal.RequireFromString("0.3")
	r.TwoPctAbove.Set, r.TwoPctAbove.At = true, execAt.Add(200*time.Second)

	at := execAt.Add(300 * time.Second)
	h.quote(0, "50.0", "50.1", at)
	h.tick(0, core.TickLast, "50.05", at)

	placed := h.gw.PlacedOrders()
	require.Len(t, placed, 3)
	assert.True(t, placed[0].Quantity.Equal(decimal.NewFromInt(51)), "ceil half sold")
	assert.True(t, r.Quantity.Equal(decimal.NewFromInt(50)), "floor half kept")
}

func TestSellFullBreakevenEscalation(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "50", "47", "51", "60", "100"))
	execAt := openAt.Add(10 * time.Minute)
	r.Executed.Set, r.Executed.At = true, execAt
	r.Filled.Set, r.Filled.At = true, execAt
	r.ProfitOrderID = 900

	// Above entry*1.10 inside the confirmation window: whole tick consumed.
	at := execAt.Add(100 * time.Second)
	h.quote(0, "55.0", "55.2", at)
	h.tick(0, core.TickLast, "55.10", at)
	assert.False(t, r.FivePctAbove.Is())
	assert.Empty(t, h.gw.PlacedOrders())

	// Past the window: escalate to breakeven.
	at = execAt.Add(200 * time.Second)
	h.tick(0, core.TickLast, "55.10", at)

	assert.True(t, r.FivePctAbove.Is())
	assert.True(t, r.Stop.Equal(decimal.RequireFromString("50")), "stop at entry")
	assert.Contains(t, h.gw.CancelledOrders(), int64(900))

	placed := h.gw.PlacedOrders()
	require.Len(t, placed, 2)
	assert.True(t, placed[1].AuxPrice.Equal(decimal.RequireFromString("50")))
}

func TestAddAndReducePropagatesStop(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)

	sib := h.addRow(newPlanRow("ACME", "45", "42", "46", "70", "30"))
	sib.IsOpenPosition = true
	sib.OpenBracketSubmitted.Set = true
	sib.ProfitOrderID = 800

	r := h.addRow(newPlanRow("ACME", "50", "48", "51", "60", "100"))
	r.AddAndReduce = true
	r.ProfitOrderID = 810
	execAt := openAt.Add(10 * time.Minute)
	r.Executed.Set, r.Executed.At = true, execAt
	r.Filled.Set, r.Filled.At = true, execAt

	at := execAt.Add(time.Minute)
	h.quote(1, "50.0", "50.1", at)
	h.tick(1, core.TickLast, "50.05", at)

	assert.True(t, r.AddReduceExecuted.Is())
	assert.True(t, sib.Stop.Equal(decimal.RequireFromString("48")), "sibling takes the trigger stop")

	// Every live row of the symbol is rebracketted, the trigger included.
	assert.Contains(t, h.gw.CancelledOrders(), int64(800))
	assert.Contains(t, h.gw.CancelledOrders(), int64(810))

	placed := h.gw.PlacedOrders()
	require.Len(t, placed, 4)
	// Each row keeps its own target.
	assert.True(t, placed[0].LimitPrice.Equal(decimal.RequireFromString("70")))
	assert.True(t, placed[2].LimitPrice.Equal(decimal.RequireFromString("60")))
	assert.True(t, placed[2].Quantity.Equal(decimal.NewFromInt(100)))

	// A second tick must not touch the siblings again.
	h.gw.Reset()
	h.tick(1, core.TickLast, "50.06", at.Add(time.Second))
	assert.Empty(t, h.gw.PlacedOrders())
}

func TestSMACancelDropsCloseLeg(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "95", "92", "96", "110", "50"))
	r.SellOnClose = true
	r.HasSMA = true
	r.SMASell = decimal.RequireFromString("98")
	execAt := openAt.Add(10 * time.Minute)
	r.Executed.Set, r.Executed.At = true, execAt
	r.Filled.Set, r.Filled.At = true, execAt
	r.ProfitOrderID = 700

	at := closeAt.Add(-5 * time.Minute) // inside the 8-minute window
	h.quote(0, "99.9", "100.1", at)
	h.tick(0, core.TickLast, "100.0", at)

	assert.False(t, r.SellOnClose, "close leg dropped")
	assert.Contains(t, h.gw.CancelledOrders(), int64(700))

	placed := h.gw.PlacedOrders()
	require.Len(t, placed, 2, "rebracket without close leg")
}

func TestSMACancelRequiresPriceAboveSMA(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "95", "92", "96", "110", "50"))
	r.SellOnClose = true
	r.HasSMA = true
	r.SMASell = decimal.RequireFromString("98")
	execAt := openAt.Add(10 * time.Minute)
	r.Executed.Set, r.Executed.At = true, execAt
	r.Filled.Set, r.Filled.At = true, execAt

	at := closeAt.Add(-5 * time.Minute)
	h.quote(0, "97.4", "97.6", at)
	h.tick(0, core.TickLast, "97.5", at) // below the SMA threshold

	assert.True(t, r.SellOnClose)
	assert.Empty(t, h.gw.PlacedOrders())
}

func TestBadCloseLiquidatesHalf(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "95", "92", "96", "110", "9"))
	execAt := openAt.Add(10 * time.Minute)
	r.Executed.Set, r.Executed.At = true, execAt
	r.Filled.Set, r.Filled.At = true, execAt
	r.ProfitOrderID = 910

	// Build the day's range: high 100, low 90.
	mid := openAt.Add(time.Hour)
	h.quote(0, "90.4", "90.6", mid)
	h.tick(0, core.TickLast, "100", mid)
	h.tick(0, core.TickLast, "90", mid.Add(time.Second))

	// Inside close-2min, closing at 5% of the range.
	at := closeAt.Add(-90 * time.Second)
	h.tick(0, core.TickLast, "90.5", at)

	assert.True(t, r.BadCloseChecked.Is())
	assert.True(t, r.BadCloseRule.Is())
	assert.True(t, r.Quantity.Equal(decimal.NewFromInt(4)))
	assert.Contains(t, h.gw.CancelledOrders(), int64(910), "old bracket torn down first")

	placed := h.gw.PlacedOrders()
	require.Len(t, placed, 3)
	assert.Equal(t, core.OrderMarket, placed[0].Type)
	assert.True(t, placed[0].Quantity.Equal(decimal.NewFromInt(5)), "ceil half sold")
}

func TestBadCloseCheckedExactlyOnce(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "95", "92", "96", "110", "9"))
	execAt := openAt.Add(10 * time.Minute)
	r.Executed.Set, r.Executed.At = true, execAt
	r.Filled.Set, r.Filled.At = true, execAt

	mid := openAt.Add(time.Hour)
	h.quote(0, "90.4", "90.6", mid)
	h.tick(0, core.TickLast, "100", mid)
	h.tick(0, core.TickLast, "90", mid.Add(time.Second))

	at := closeAt.Add(-90 * time.Second)
	h.tick(0, core.TickLast, "90.5", at)
	require.True(t, r.BadCloseChecked.Is())

	h.gw.Reset()
	h.tick(0, core.TickLast, "90.4", at.Add(10*time.Second))
	h.tick(0, core.TickLast, "90.3", at.Add(20*time.Second))
	assert.Empty(t, h.gw.PlacedOrders(), "the check never fires twice")
}

func TestBadCloseSkipsHealthyClose(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "95", "92", "96", "110", "9"))
	execAt := openAt.Add(10 * time.Minute)
	r.Executed.Set, r.Executed.At = true, execAt
	r.Filled.Set, r.Filled.At = true, execAt

	mid := openAt.Add(time.Hour)
	h.quote(0, "98.4", "98.6", mid)
	h.tick(0, core.TickLast, "100", mid)
	h.tick(0, core.TickLast, "90", mid.Add(time.Second))

	// Closing at 85% of the range: no action, but the check is spent.
	at := closeAt.Add(-90 * time.Second)
	h.tick(0, core.TickLast, "98.5", at)

	assert.True(t, r.BadCloseChecked.Is())
	assert.False(t, r.BadCloseRule.Is())
	assert.Empty(t, h.gw.PlacedOrders())
}

func TestMonotonicFlagsThroughLifecycle(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, 0)
	r := h.addRow(newPlanRow("ACME", "100", "95", "101", "110", "10"))

	at := openAt.Add(5 * time.Minute)
	h.quote(0, "99.8", "100.1", at)
	h.tick(0, core.TickLast, "100.5", at)
	require.True(t, r.Crossed.Is() && r.Executed.Is())

	crossedAt, executedAt := r.Crossed.At, r.Executed.At

	for i := 0; i < 5; i++ {
		h.tick(0, core.TickLast, "100.6", at.Add(time.Duration(i+1)*time.Second))
	}
	assert.Equal(t, crossedAt, r.Crossed.At)
	assert.Equal(t, executedAt, r.Executed.At)
}
