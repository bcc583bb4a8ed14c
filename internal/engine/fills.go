package engine

import (
	"time"

	"github.com/opensqt/daytrader/internal/core"
	"github.com/opensqt/daytrader/internal/ledger"
)

// onOrderStatus folds a broker order-status event into the owning row.
// Lookup misses are ignored: the status may belong to a superseded leg or
// an order from a prior day.
func (e *Engine) onOrderStatus(ev core.OrderStatusEvent) {
	filled := ev.Status == core.StatusFilled
	if !filled {
		switch ev.Status {
		case core.StatusPreSubmitted, core.StatusSubmitted, core.StatusPendingCancel, core.StatusCancelled:
			filled = ev.Filled.IsPositive()
		}
	}
	if !filled {
		return
	}

	now := time.Now()

	e.table.Mu.Lock()
	defer e.table.Mu.Unlock()

	r, leg, ok := e.table.FindByOrderID(ev.OrderID)
	if !ok {
		return
	}

	switch leg {
	case ledger.LegParent:
		r.Mark(&r.Filled, "order_filled", now)
		if ev.LastFillPrice.IsPositive() {
			r.SetEntry(ev.LastFillPrice)
		}
		if ev.Filled.IsPositive() {
			r.SetQuantity(ev.Filled)
		}
		e.logger.Info("Buy filled",
			"symbol", r.Symbol, "qty", ev.Filled.String(), "price", ev.LastFillPrice.String())

	case ledger.LegProfit:
		r.Mark(&r.ProfitFilled, "profit_order_filled", now)
		r.ProfitFillPrice = ev.LastFillPrice
		e.exitFill(r, ev, now)

	case ledger.LegStop:
		r.Mark(&r.StopFilled, "stop_order_filled", now)
		r.StopFillPrice = ev.LastFillPrice
		e.exitFill(r, ev, now)

	case ledger.LegClose:
		r.Mark(&r.CloseFilled, "close_order_filled", now)
		r.CloseFillPrice = ev.LastFillPrice
		e.exitFill(r, ev, now)

	case ledger.LegMarket:
		e.logger.Info("Market sell filled",
			"symbol", r.Symbol, "qty", ev.Filled.String(), "price", ev.LastFillPrice.String())
	}
}

// exitFill applies the shared bookkeeping of any exit-leg fill: the
// remaining quantity becomes the position, zero remaining means sold.
func (e *Engine) exitFill(r *ledger.Row, ev core.OrderStatusEvent, now time.Time) {
	r.SetQuantity(ev.Remaining)
	if ev.Remaining.IsZero() {
		r.Mark(&r.Sold, "stock_sold", now)
	}
	e.logger.Info("Exit leg filled",
		"symbol", r.Symbol, "remaining", ev.Remaining.String(), "price", ev.LastFillPrice.String())
}
