package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/opensqt/daytrader/internal/core"
	"github.com/opensqt/daytrader/internal/ledger"
)

// onTick is the ordered per-tick rule pipeline. Steps run top to bottom
// and any of them may end the tick early.
func (e *Engine) onTick(ctx context.Context, ev core.TickEvent) {
	e.metrics.TicksReceived.WithLabelValues(ev.Kind.String()).Inc()

	e.table.Mu.Lock()
	defer e.table.Mu.Unlock()

	r, ok := e.table.Row(ev.ReqID)
	if !ok {
		return
	}

	now := ev.At
	if now.IsZero() {
		now = time.Now()
	}

	// 1. Session re-evaluation with one-shot edge effects. Stale quotes
	// are dropped before the current tick lands in the row, so the tick
	// that crosses the open edge survives the sweep.
	state, openEdge, closeEdge := e.clock.Refresh(now)
	if openEdge {
		for _, row := range e.table.Rows() {
			row.ClearQuotes()
		}
		e.logger.Info("Session opened")
	}
	if closeEdge {
		e.logger.Info("Session closed")
	}

	// 2. Fold the tick into the snapshot.
	r.ApplyTick(ev.Kind, ev.Price)

	// 3. One-time open-position reconcile after the startup grace.
	if !e.reconciled && now.Sub(e.startedAt) > time.Duration(e.cfg.Gateway.StartupGraceSec)*time.Second {
		e.reconciled = true
		e.reconcilePositions()
	}

	// 4. Lazy archiver start on the first observed open.
	if state == core.SessionOpen {
		e.archiver.Start(ctx, e.clock.OpenTime(), e.clock.CloseTime())
	}

	// 5. Wait for metadata while hours are undefined.
	if !e.clock.Defined() {
		return
	}

	// 6. Opening brackets for pre-existing positions. The prior-order
	// sweep runs in the pre-open lead; placement itself waits for the
	// open so overnight quotes cannot trigger it.
	if !e.dailyBracketsSubmitted {
		e.openingBrackets(ctx, r, now, state == core.SessionOpen)
	}

	// 7/8. Outside the session: notice until close+grace, then shut down.
	if state != core.SessionOpen {
		if !e.clock.PastFinal(now) {
			e.notOpenNotice(now)
			return
		}
		e.shutdown(now)
		return
	}

	// 9. Quotes guard.
	if !r.HasQuotes() {
		return
	}

	// 10. Debounced plan sync, stopped near the close.
	syncEvery := time.Duration(e.cfg.Windows.PlanSyncSec) * time.Second
	syncStop := e.clock.CloseTime().Add(-e.window(e.cfg.Windows.PlanSyncStopMin))
	if now.Sub(e.lastPlanSync) >= syncEvery && now.Before(syncStop) {
		e.lastPlanSync = now
		e.syncer.Sync(ctx, e.clock.CloseTime(), now)
		e.metrics.LedgerRows.Set(float64(e.table.Len()))
	}

	// 11. Keep-alive sentinel bypass.
	if r.IsSentinel(e.sentinelEntry, e.sentinelStop) {
		r.Mark(&r.StopUndercut, "stop_undercut", now)
		return
	}

	// 12. Stop-undercut detection.
	if r.Last.IsPositive() && r.Last.LessThan(r.Stop) {
		r.Mark(&r.StopUndercut, "stop_undercut", now)
	}

	// 13. Sold detection.
	exitFilled := r.ProfitFilled.Is() || r.StopFilled.Is() || r.CloseFilled.Is()
	if exitFilled && (r.IsOpenPosition || r.Filled.Is()) {
		r.Mark(&r.Sold, "stock_sold", now)
	}

	// 14. Risk guard.
	if _, ok := e.risk.PercentInvested(); !ok {
		return
	}
	if _, ok := e.risk.PortfolioSize(); !ok {
		return
	}
	if r.BelowLimit.Is() || r.MaxLossReached.Is() {
		return
	}

	// 15-20. Trading rules.
	e.entry(ctx, r, now)
	e.addAndReduce(ctx, r, now)
	e.sellHalf(ctx, r, now)
	if e.sellFullReversal(ctx, r, now) {
		return
	}
	e.smaCancel(ctx, r, now)
	e.badClose(ctx, r, now)
}

// notOpenNotice prints the rate-limited countdown, tightening the cadence
// as the open approaches.
func (e *Engine) notOpenNotice(now time.Time) {
	mins := e.clock.MinutesToOpen(now)

	var cadence time.Duration
	switch {
	case mins > 15:
		cadence = 15 * time.Minute
	case mins > 2:
		cadence = 3 * time.Minute
	default:
		cadence = 30 * time.Second
	}

	e.notice.SetLimit(rate.Every(cadence))
	if e.notice.Allow() {
		e.logger.Info("Market not open", "minutes_to_open", fmt.Sprintf("%.1f", mins))
	}
}

// shutdown ends the trading day. It runs under the table lock, so it
// only latches the flag; Run stops the archiver once the lock is
// released, since the archiver's sampler needs the same lock to drain.
func (e *Engine) shutdown(now time.Time) {
	if e.finished {
		return
	}
	e.finished = true
	e.logger.Info("Session over, shutting down", "time", now.Format("15:04:05"))
}

// openingBrackets protects pre-existing open positions: cancel leftovers
// from the prior session once inside the open window, then bracket each
// open-position row, or liquidate it when the price keeps fading below
// the stop.
func (e *Engine) openingBrackets(ctx context.Context, r *ledger.Row, now time.Time, open bool) {
	withinLead := e.clock.MinutesToOpen(now) <= float64(e.cfg.Windows.OpenCancelLeadMin)
	if !e.priorOrdersCancelled && withinLead {
		e.priorOrdersCancelled = true
		e.cancelPriorOrders(ctx)
	}

	if !e.priorOrdersCancelled || !open {
		return
	}

	if r.IsOpenPosition && !r.OpenBracketSubmitted.Is() && r.HasQuotes() {
		e.placeOpeningBracket(ctx, r, now)
	}

	// The day is done once every open-position row has its bracket.
	for _, row := range e.table.Rows() {
		if row.IsOpenPosition != row.OpenBracketSubmitted.Is() {
			return
		}
	}
	e.dailyBracketsSubmitted = true
	e.logger.Info("All opening brackets submitted")
}
