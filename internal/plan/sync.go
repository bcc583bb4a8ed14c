package plan

import (
	"context"
	"time"

	"github.com/opensqt/daytrader/internal/core"
	"github.com/opensqt/daytrader/internal/ledger"
	"github.com/opensqt/daytrader/internal/orders"
)

// Syncer reconciles a freshly loaded plan into the ledger: appends new
// rows, replaces exit brackets on changed active positions and overwrites
// levels on pending ones.
type Syncer struct {
	store   *Store
	table   *ledger.Table
	gateway core.IGateway
	builder *orders.Builder
	logger  core.ILogger
}

// NewSyncer creates a Syncer.
func NewSyncer(store *Store, table *ledger.Table, gateway core.IGateway, builder *orders.Builder, logger core.ILogger) *Syncer {
	return &Syncer{
		store:   store,
		table:   table,
		gateway: gateway,
		builder: builder,
		logger:  logger.WithField("component", "plan_sync"),
	}
}

// Sync reloads the plan file and applies it to the ledger. A failed read
// skips the cycle without error; the next debounce tick retries. The
// caller holds the table lock.
func (s *Syncer) Sync(ctx context.Context, closeTime, now time.Time) {
	planRows, err := s.store.Load()
	if err != nil {
		s.logger.Warn("Plan reload skipped", "error", err)
		return
	}

	for j, p := range planRows {
		if j >= s.table.Len() {
			s.appendRow(ctx, p, now)
			continue
		}

		row, _ := s.table.Row(j)
		switch {
		case row.IsActive():
			s.updateActive(ctx, j, row, p, closeTime, now)
		case !row.Crossed.Is():
			s.updatePending(row, p)
		}
	}
}

// appendRow adds a mid-session plan addition and subscribes its market
// data.
func (s *Syncer) appendRow(ctx context.Context, p Row, now time.Time) {
	row := RowToLedger(p)
	reqID := s.table.Append(row)
	row.Mark(&row.NewPositionAdded, "new_position_added", now)

	if err := s.gateway.RequestContractDetails(ctx, reqID, row.Contract()); err != nil {
		s.logger.Error("Contract details request failed", "symbol", row.Symbol, "error", err)
	}
	if err := s.gateway.RequestMarketData(ctx, reqID, row.Contract()); err != nil {
		s.logger.Error("Market data request failed", "symbol", row.Symbol, "error", err)
	}
	s.logger.Info("Plan row added", "symbol", row.Symbol, "req_id", reqID)
}

// updateActive replaces the exit bracket of an open or filled-unsold row
// whose plan levels changed.
func (s *Syncer) updateActive(ctx context.Context, j int, row *ledger.Row, p Row, closeTime, now time.Time) {
	stopChanged := !p.Stop.Equal(row.Stop)
	targetChanged := !p.Target.Equal(row.Target)
	qtyShrank := p.Quantity.LessThan(row.Quantity)
	socChanged := p.SellOnClose != row.SellOnClose
	lowChanged := p.StopAtLowOfDay != row.StopAtLowOfDay

	if !stopChanged && !targetChanged && !qtyShrank && !socChanged && !lowChanged {
		return
	}

	if row.StopAtLowOfDay && stopChanged {
		s.logger.Warn("Overwriting a low-of-day stop from the plan",
			"symbol", row.Symbol, "old", row.Stop.String(), "new", p.Stop.String())
	}
	newlyAtLow := p.StopAtLowOfDay && !row.StopAtLowOfDay

	if stopChanged {
		row.SetStop(p.Stop)
	}
	if targetChanged {
		row.SetTarget(p.Target)
	}
	row.SellOnClose = p.SellOnClose
	row.StopAtLowOfDay = p.StopAtLowOfDay

	if row.ProfitOrderID != 0 {
		if err := s.gateway.CancelOrder(ctx, row.ProfitOrderID); err != nil {
			s.logger.Warn("Profit leg cancel failed", "symbol", row.Symbol, "error", err)
		}
	}

	// stop-at-low turning on snaps the stop to today's low and pushes it
	// back into the file
	if newlyAtLow && row.Low.GreaterThan(row.Stop) {
		row.SetStop(row.Low)
		if err := s.store.PatchStop(j, row.Stop); err != nil {
			s.logger.Warn("Stop writeback failed", "symbol", row.Symbol, "error", err)
		}
	}

	if qtyShrank {
		delta := row.Quantity.Sub(p.Quantity)
		if _, err := orders.SubmitMarketSell(ctx, s.gateway, s.builder, row, delta); err != nil {
			s.logger.Error("Trim market sell failed", "symbol", row.Symbol, "error", err)
		}
		row.SetQuantity(p.Quantity)
	}

	if err := orders.SubmitOCA(ctx, s.gateway, s.builder, row, row.Quantity, row.Target, row.Stop, row.SellOnClose, closeTime); err != nil {
		s.logger.Error("Replacement bracket failed", "symbol", row.Symbol, "error", err)
		return
	}
	row.Mark(&row.OpenPositionUpdated, "open_position_updated", now)
}

// updatePending overwrites the levels of a row that has not crossed its
// buy price yet. No order traffic; the entry logic picks up the new
// values on the next tick.
func (s *Syncer) updatePending(row *ledger.Row, p Row) {
	if !p.Entry.Equal(row.Entry) {
		row.SetEntry(p.Entry)
	}
	if !p.Stop.Equal(row.Stop) {
		row.SetStop(p.Stop)
	}
	if !p.BuyLimit.Equal(row.BuyLimit) {
		row.SetBuyLimit(p.BuyLimit)
	}
	if !p.Target.Equal(row.Target) {
		row.SetTarget(p.Target)
	}
	if !p.Quantity.Equal(row.Quantity) {
		row.SetQuantity(p.Quantity)
	}
	row.SellOnClose = p.SellOnClose
	row.StopAtLowOfDay = p.StopAtLowOfDay
	row.AddAndReduce = p.AddAndReduce
	row.SMASell = p.SMASell
	row.HasSMA = p.HasSMA
}

// RowToLedger converts a plan line into a fresh ledger row.
func RowToLedger(p Row) *ledger.Row {
	return &ledger.Row{
		Symbol:         p.Symbol,
		Currency:       p.Currency,
		Exchange:       p.Exchange,
		SecType:        p.SecType,
		Entry:          p.Entry,
		BuyLimit:       p.BuyLimit,
		Target:         p.Target,
		Stop:           p.Stop,
		Quantity:       p.Quantity,
		SMASell:        p.SMASell,
		HasSMA:         p.HasSMA,
		IsOpenPosition: p.IsOpenPosition,
		SellOnClose:    p.SellOnClose,
		StopAtLowOfDay: p.StopAtLowOfDay,
		AddAndReduce:   p.AddAndReduce,
	}
}
