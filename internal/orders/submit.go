package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensqt/daytrader/internal/core"
	"github.com/opensqt/daytrader/internal/ledger"
)

// SubmitEntryBracket reserves a contiguous ID range, submits the full
// entry bracket for the row and records the leg IDs on it.
func SubmitEntryBracket(ctx context.Context, gw core.IGateway, b *Builder, r *ledger.Row, withCloseLeg bool, closeTime, now time.Time) error {
	firstID := gw.ReserveOrderIDs(EntryBracketLegs(withCloseLeg))
	specs := b.EntryBracket(firstID, r.Contract(), r.Quantity, r.BuyLimit, r.Target, r.Stop, withCloseLeg, closeTime, now)

	for _, spec := range specs {
		if err := gw.PlaceOrder(ctx, spec); err != nil {
			return err
		}
	}

	r.ParentOrderID = firstID
	r.ProfitOrderID = firstID + 1
	r.StopOrderID = firstID + 2
	if withCloseLeg {
		r.CloseOrderID = firstID + 3
	}
	return nil
}

// SubmitOCA reserves IDs, submits a fresh one-cancels-all exit group at
// the given levels and supersedes the row's exit-leg IDs. The exit fill
// flags are reset so fills of the new group report cleanly.
func SubmitOCA(ctx context.Context, gw core.IGateway, b *Builder, r *ledger.Row, qty, target, stop decimal.Decimal, withCloseLeg bool, closeTime time.Time) error {
	firstID := gw.ReserveOrderIDs(OCALegs(withCloseLeg))
	specs := b.OCABracket(firstID, r.Contract(), qty, target, stop, withCloseLeg, closeTime)

	for _, spec := range specs {
		if err := gw.PlaceOrder(ctx, spec); err != nil {
			return err
		}
	}

	r.ProfitOrderID = firstID
	r.StopOrderID = firstID + 1
	if withCloseLeg {
		r.CloseOrderID = firstID + 2
	}
	r.ProfitFilled.Reset()
	r.StopFilled.Reset()
	r.CloseFilled.Reset()
	return nil
}

// SubmitMarketSell submits an immediate market sell for the row and
// records the order ID in the market correlation slot.
func SubmitMarketSell(ctx context.Context, gw core.IGateway, b *Builder, r *ledger.Row, qty decimal.Decimal) (int64, error) {
	orderID := gw.ReserveOrderIDs(1)
	if err := gw.PlaceOrder(ctx, b.MarketSell(orderID, r.Contract(), qty)); err != nil {
		return 0, err
	}
	r.MarketOrderID = orderID
	return orderID, nil
}
