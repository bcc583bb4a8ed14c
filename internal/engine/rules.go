package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensqt/daytrader/internal/ledger"
	"github.com/opensqt/daytrader/internal/orders"
)

var (
	one        = decimal.NewFromInt(1)
	two        = decimal.NewFromInt(2)
	hundred    = decimal.NewFromInt(100)
	pointNine9 = decimal.RequireFromString("0.99")
)

// placeOpeningBracket decides the fate of one open-position row: bracket
// it when the price holds above the stop, otherwise watch a short window
// and liquidate if the price keeps fading.
func (e *Engine) placeOpeningBracket(ctx context.Context, r *ledger.Row, now time.Time) {
	threshold := r.Stop.Mul(pointNine9)
	gapFade := time.Duration(e.cfg.Windows.GapFadeSec) * time.Second

	switch {
	case r.Last.GreaterThanOrEqual(threshold):
		err := orders.SubmitOCA(ctx, e.gateway, e.builder, r,
			r.Quantity, r.Target, r.Stop, r.SellOnClose, e.clock.CloseTime())
		if err != nil {
			e.logger.Error("Opening bracket failed", "symbol", r.Symbol, "error", err)
			return
		}
		r.Mark(&r.OpenBracketSubmitted, "open_bracket_submitted", now)

	case !r.Looped.Is():
		// First look below the stop: arm the observation window.
		r.StopObservedAt = now
		r.StopObservedPrice = r.Last
		r.Mark(&r.Looped, "stock_looped", now)

	case now.Sub(r.StopObservedAt) >= gapFade:
		if r.Last.LessThan(r.StopObservedPrice) {
			// Still falling after the window: get out at market. The
			// market order takes the stop slot so the fill attributes
			// as a stop-out.
			id, err := orders.SubmitMarketSell(ctx, e.gateway, e.builder, r, r.Quantity)
			if err != nil {
				e.logger.Error("Opening liquidation failed", "symbol", r.Symbol, "error", err)
				return
			}
			r.StopOrderID = id
			r.Mark(&r.OpenBracketSubmitted, "open_bracket_submitted", now)
			e.logger.Warn("Open position liquidated below stop",
				"symbol", r.Symbol, "last", r.Last.String(), "stop", r.Stop.String())
		} else {
			// Price recovered but not above threshold: watch again.
			r.StopObservedAt = now
			r.StopObservedPrice = r.Last
		}
	}
}

// entry places the entry bracket when the price breaks out over the plan
// entry under acceptable spread, sizing the order to the operator's
// invested cap.
func (e *Engine) entry(ctx context.Context, r *ledger.Row, now time.Time) {
	if r.IsOpenPosition || r.Executed.Is() || r.Sold.Is() {
		return
	}

	firstMinute := now.Before(e.clock.OpenTime().Add(time.Minute))
	if !r.Crossed.Is() {
		if !r.Last.GreaterThan(r.Entry) {
			return
		}
		r.Mark(&r.Crossed, "crossed_buy_price", now)
		r.ThrottleAt = now
	} else if !firstMinute {
		// Crossed on an earlier tick and past the first-minute grace
		// window: the chance is gone for the day.
		return
	}

	invested, _ := e.risk.PercentInvested()
	portfolio, _ := e.risk.PortfolioSize()

	// Exposure in base currency as a fraction of portfolio.
	entryBase := r.Entry.Div(e.fxRate)
	exposure := entryBase.Mul(r.Quantity).Div(portfolio)

	if invested.Add(exposure).GreaterThan(e.maxInvestedPct) {
		residual := e.maxInvestedPct.Sub(invested)
		shrunk := residual.Mul(portfolio).Div(entryBase).Floor()
		r.Mark(&r.InvestLimit, "invest_limit_reached", now)

		if shrunk.Mul(entryBase).LessThan(portfolio.Mul(e.minPosition)) || !shrunk.IsPositive() {
			r.Mark(&r.BelowLimit, "position_below_limit", now)
			e.logger.Warn("Position below minimum size, skipping",
				"symbol", r.Symbol, "shrunk_qty", shrunk.String())
			return
		}
		r.SetQuantity(shrunk)
	}

	if e.risk.MaxDailyLossReached() {
		r.Mark(&r.MaxLossReached, "max_daily_loss_reached", now)
		e.logger.Warn("Daily loss breaker tripped, no entry", "symbol", r.Symbol)
		return
	}

	spread := r.Ask.Sub(r.Bid).Abs().Div(r.Ask)

	// Loop diagnostics are throttled per row in the first minute only.
	throttled := firstMinute && now.Sub(r.ThrottleAt) < time.Duration(e.cfg.Windows.SpreadThrottleSec)*time.Second
	if !throttled {
		r.ThrottleAt = now
		if spread.GreaterThanOrEqual(e.maxSpread) {
			r.Mark(&r.SpreadAboveLimit, "spread_above_limit", now)
			e.logger.Info("Spread too wide",
				"symbol", r.Symbol, "spread_pct", spread.Mul(hundred).StringFixed(2))
		}
		if r.Last.GreaterThanOrEqual(r.BuyLimit) {
			r.Mark(&r.PriceAboveLimit, "price_above_limit", now)
			e.logger.Info("Price beyond buy limit",
				"symbol", r.Symbol, "last", r.Last.String(), "buy_limit", r.BuyLimit.String())
		}
	}

	if r.StopUndercut.Is() || !r.Last.LessThan(r.BuyLimit) || !spread.LessThan(e.maxSpread) {
		return
	}

	r.Mark(&r.Executed, "order_executed", now)
	r.SpreadAtExecPct = spread.Mul(hundred)

	// Sell-on-close rows stop entering near the close.
	buyBlock := e.clock.CloseTime().Add(-e.window(e.cfg.Windows.BuyBlockMin))
	if r.SellOnClose && !now.Before(buyBlock) {
		e.logger.Info("Entry blocked inside the close window", "symbol", r.Symbol)
		return
	}

	if r.StopAtLowOfDay && r.Low.GreaterThan(r.Stop) {
		stop := r.Low
		if floor := r.Last.Mul(pointNine9); stop.GreaterThan(floor) {
			stop = floor
		}
		r.SetStop(stop)
		if err := e.store.PatchStop(r.ReqID, r.Stop); err != nil {
			e.logger.Warn("Stop writeback failed", "symbol", r.Symbol, "error", err)
		}
	}

	err := orders.SubmitEntryBracket(ctx, e.gateway, e.builder, r,
		r.SellOnClose, e.clock.CloseTime(), now)
	if err != nil {
		e.logger.Error("Entry bracket failed", "symbol", r.Symbol, "error", err)
		return
	}
	e.logger.Info("Entry bracket submitted",
		"symbol", r.Symbol, "qty", r.Quantity.String(),
		"buy_limit", r.BuyLimit.String(), "target", r.Target.String(), "stop", r.Stop.String())
}

// addAndReduce raises the stop of every live position of the symbol,
// the triggering row included, once the flagged row's buy fills.
func (e *Engine) addAndReduce(ctx context.Context, r *ledger.Row, now time.Time) {
	if !r.AddAndReduce || !r.Filled.Is() || r.AddReduceExecuted.Is() {
		return
	}

	for _, sib := range e.table.BySymbol(r.Symbol) {
		if !sib.IsActive() {
			continue
		}
		if sib.ProfitOrderID != 0 {
			if err := e.gateway.CancelOrder(ctx, sib.ProfitOrderID); err != nil {
				e.logger.Warn("Profit leg cancel failed", "symbol", sib.Symbol, "error", err)
			}
		}
		sib.SetStop(r.Stop)
		err := orders.SubmitOCA(ctx, e.gateway, e.builder, sib,
			sib.Quantity, sib.Target, sib.Stop, sib.SellOnClose, e.clock.CloseTime())
		if err != nil {
			e.logger.Error("Add-and-reduce rebracket failed", "symbol", sib.Symbol, "error", err)
			continue
		}
		if err := e.store.PatchStop(sib.ReqID, sib.Stop); err != nil {
			e.logger.Warn("Stop writeback failed", "symbol", sib.Symbol, "error", err)
		}
	}
	r.Mark(&r.AddReduceExecuted, "add_and_reduce_executed", now)
}

// sellHalf takes half the position off at market when a confirmed run-up
// retraces back to the entry spread.
func (e *Engine) sellHalf(ctx context.Context, r *ledger.Row, now time.Time) {
	if !r.Filled.Is() || r.Sold.Is() {
		return
	}

	confirm := time.Duration(e.cfg.Windows.ReversalConfirmSec) * time.Second
	armLevel := r.Entry.Mul(one.Add(e.sellHalfRev))

	if !r.TwoPctAbove.Is() {
		if r.Last.GreaterThan(armLevel) && now.Sub(r.Executed.At) >= confirm {
			r.Mark(&r.TwoPctAbove, "above_buy_point", now)
		}
		return
	}

	if r.FivePctAbove.Is() || r.NewOCA.Is() || !r.Quantity.GreaterThan(one) {
		return
	}

	retrace := r.Entry.Mul(one.Add(r.SpreadAtExecPct.Div(hundred)))
	if r.Last.GreaterThan(retrace) {
		return
	}

	// The profit leg cancel tears down the whole working bracket before
	// the half is sold off.
	if r.ProfitOrderID != 0 {
		if err := e.gateway.CancelOrder(ctx, r.ProfitOrderID); err != nil {
			e.logger.Warn("Profit leg cancel failed", "symbol", r.Symbol, "error", err)
		}
	}

	sellQty := r.Quantity.Div(two).Ceil()
	keepQty := r.Quantity.Div(two).Floor()

	if _, err := orders.SubmitMarketSell(ctx, e.gateway, e.builder, r, sellQty); err != nil {
		e.logger.Error("Half sell failed", "symbol", r.Symbol, "error", err)
		return
	}
	err := orders.SubmitOCA(ctx, e.gateway, e.builder, r,
		keepQty, r.Target, r.Stop, r.SellOnClose, e.clock.CloseTime())
	if err != nil {
		e.logger.Error("Half rebracket failed", "symbol", r.Symbol, "error", err)
		return
	}
	r.SetQuantity(keepQty)
	r.Mark(&r.NewOCA, "new_oca_bracket", now)
	e.logger.Info("Half position sold on reversal",
		"symbol", r.Symbol, "sold", sellQty.String(), "kept", keepQty.String())
}

// sellFullReversal escalates the stop to breakeven after a strong run-up.
// Inside the confirmation window it consumes the whole tick, reported by
// the true return.
func (e *Engine) sellFullReversal(ctx context.Context, r *ledger.Row, now time.Time) bool {
	if !r.Filled.Is() || r.Sold.Is() || r.FivePctAbove.Is() {
		return false
	}
	if !r.Last.GreaterThan(r.Entry.Mul(one.Add(e.sellFullRev))) {
		return false
	}

	confirm := time.Duration(e.cfg.Windows.ReversalConfirmSec) * time.Second
	if now.Sub(r.Executed.At) < confirm {
		return true
	}

	r.Mark(&r.FivePctAbove, "breakeven_escalated", now)
	if r.ProfitOrderID != 0 {
		if err := e.gateway.CancelOrder(ctx, r.ProfitOrderID); err != nil {
			e.logger.Warn("Profit leg cancel failed", "symbol", r.Symbol, "error", err)
		}
	}
	r.SetStop(r.Entry)
	err := orders.SubmitOCA(ctx, e.gateway, e.builder, r,
		r.Quantity, r.Target, r.Stop, r.SellOnClose, e.clock.CloseTime())
	if err != nil {
		e.logger.Error("Breakeven rebracket failed", "symbol", r.Symbol, "error", err)
		return false
	}
	if err := e.store.PatchStop(r.ReqID, r.Stop); err != nil {
		e.logger.Warn("Stop writeback failed", "symbol", r.Symbol, "error", err)
	}
	e.logger.Info("Stop escalated to breakeven", "symbol", r.Symbol, "stop", r.Stop.String())
	return false
}

// smaCancel drops the forced close leg near the close when the price
// holds above the plan's moving-average threshold. This is the one
// documented reset of a lifecycle flag.
func (e *Engine) smaCancel(ctx context.Context, r *ledger.Row, now time.Time) {
	if !r.SellOnClose || !r.HasSMA || r.Sold.Is() {
		return
	}
	window := e.clock.CloseTime().Add(-e.window(e.cfg.Windows.SMACancelMin))
	if now.Before(window) || !now.Before(e.clock.CloseTime()) {
		return
	}
	live := (r.IsOpenPosition && r.OpenBracketSubmitted.Is()) || r.Filled.Is()
	if !live {
		return
	}
	if !r.Target.GreaterThan(r.Last) || !r.Last.GreaterThan(r.Stop) || !r.Last.GreaterThan(r.SMASell) {
		return
	}

	r.SellOnClose = false
	e.logger.Info("Close leg dropped, price above SMA threshold",
		"symbol", r.Symbol, "last", r.Last.String(), "sma", r.SMASell.String())

	if r.ProfitOrderID != 0 {
		if err := e.gateway.CancelOrder(ctx, r.ProfitOrderID); err != nil {
			e.logger.Warn("Profit leg cancel failed", "symbol", r.Symbol, "error", err)
		}
	}
	err := orders.SubmitOCA(ctx, e.gateway, e.builder, r,
		r.Quantity, r.Target, r.Stop, false, e.clock.CloseTime())
	if err != nil {
		e.logger.Error("SMA rebracket failed", "symbol", r.Symbol, "error", err)
	}
}

// badClose liquidates half of a fresh position that is closing low in
// the day's range. Checked exactly once per row.
func (e *Engine) badClose(ctx context.Context, r *ledger.Row, now time.Time) {
	window := e.clock.CloseTime().Add(-e.window(e.cfg.Windows.BadCloseMin))
	if now.Before(window) || !now.Before(e.clock.CloseTime()) {
		return
	}
	if !r.Mark(&r.BadCloseChecked, "bad_close_checked", now) {
		return
	}

	if r.Sold.Is() || r.SellOnClose || r.HasSMA || r.FivePctAbove.Is() || r.NewOCA.Is() {
		return
	}
	if r.IsOpenPosition || !r.Filled.Is() || !r.Quantity.GreaterThan(one) {
		return
	}

	span := r.High.Sub(r.Low)
	if !span.IsPositive() {
		return
	}
	rangePos := r.Last.Sub(r.Low).Div(span)
	if !rangePos.LessThan(e.badCloseFrac) {
		return
	}

	r.Mark(&r.BadCloseRule, "bad_close_rule", now)
	if r.ProfitOrderID != 0 {
		if err := e.gateway.CancelOrder(ctx, r.ProfitOrderID); err != nil {
			e.logger.Warn("Profit leg cancel failed", "symbol", r.Symbol, "error", err)
		}
	}
	sellQty := r.Quantity.Div(two).Ceil()
	keepQty := r.Quantity.Div(two).Floor()

	if _, err := orders.SubmitMarketSell(ctx, e.gateway, e.builder, r, sellQty); err != nil {
		e.logger.Error("Bad-close sell failed", "symbol", r.Symbol, "error", err)
		return
	}
	if keepQty.IsPositive() {
		err := orders.SubmitOCA(ctx, e.gateway, e.builder, r,
			keepQty, r.Target, r.Stop, false, e.clock.CloseTime())
		if err != nil {
			e.logger.Error("Bad-close rebracket failed", "symbol", r.Symbol, "error", err)
			return
		}
	}
	r.SetQuantity(keepQty)
	e.logger.Warn("Bad close, half position liquidated",
		"symbol", r.Symbol, "range_position", rangePos.StringFixed(3))
}
