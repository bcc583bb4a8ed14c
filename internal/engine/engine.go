// Package engine runs the tick-driven rule pipeline over the instrument
// ledger: one sequential loop consuming the gateway event stream, placing
// and replacing bracket orders until the session shuts down.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/opensqt/daytrader/internal/archive"
	"github.com/opensqt/daytrader/internal/config"
	"github.com/opensqt/daytrader/internal/core"
	"github.com/opensqt/daytrader/internal/ledger"
	"github.com/opensqt/daytrader/internal/orders"
	"github.com/opensqt/daytrader/internal/plan"
	"github.com/opensqt/daytrader/internal/session"
	"github.com/opensqt/daytrader/pkg/telemetry"
)

// priorCancelCount bounds the best-effort sweep of order IDs left over
// from the previous session. IDs are contiguous from the broker counter,
// so everything this client placed before lives just below the seed.
const priorCancelCount = 50

// Params collects the engine's collaborators.
type Params struct {
	Config   *config.Config
	Table    *ledger.Table
	Gateway  core.IGateway
	Clock    *session.Clock
	Risk     core.IRiskMonitor
	Syncer   *plan.Syncer
	Store    *plan.Store
	Archiver *archive.Archiver
	Builder  *orders.Builder
	Metrics  *telemetry.Metrics
	Logger   core.ILogger

	// MaxInvestedPct is the operator's daily invested cap as a fraction.
	MaxInvestedPct decimal.Decimal
	// FXRate converts venue-currency prices into the account base.
	FXRate decimal.Decimal
	// OpenIdx and CloseIdx select the open and close instants out of the
	// broker's liquid-hours token list.
	OpenIdx  int
	CloseIdx int
}

// Engine is the per-tick rule evaluator. All state below is touched only
// from the event loop goroutine; the ledger itself carries the lock the
// timer tasks share.
type Engine struct {
	cfg      *config.Config
	table    *ledger.Table
	gateway  core.IGateway
	clock    *session.Clock
	risk     core.IRiskMonitor
	syncer   *plan.Syncer
	store    *plan.Store
	archiver *archive.Archiver
	builder  *orders.Builder
	metrics  *telemetry.Metrics
	logger   core.ILogger

	maxInvestedPct decimal.Decimal
	fxRate         decimal.Decimal
	openIdx        int
	closeIdx       int

	// Rule thresholds, decimal once at construction.
	maxSpread     decimal.Decimal
	sellHalfRev   decimal.Decimal
	sellFullRev   decimal.Decimal
	badCloseFrac  decimal.Decimal
	minPosition   decimal.Decimal
	sentinelEntry decimal.Decimal
	sentinelStop  decimal.Decimal

	startedAt  time.Time
	reconciled bool
	positions  map[string]decimal.Decimal

	dailyBracketsSubmitted bool
	priorOrdersCancelled   bool
	lastPlanSync           time.Time

	firstHours    string
	firstHoursRow int
	metadataSeen  int

	notice *rate.Limiter

	finished bool
}

// New assembles the engine from its collaborators.
func New(p Params) *Engine {
	rules := p.Config.Rules
	return &Engine{
		cfg:      p.Config,
		table:    p.Table,
		gateway:  p.Gateway,
		clock:    p.Clock,
		risk:     p.Risk,
		syncer:   p.Syncer,
		store:    p.Store,
		archiver: p.Archiver,
		builder:  p.Builder,
		metrics:  p.Metrics,
		logger:   p.Logger.WithField("component", "engine"),

		maxInvestedPct: p.MaxInvestedPct,
		fxRate:         p.FXRate,
		openIdx:        p.OpenIdx,
		closeIdx:       p.CloseIdx,

		maxSpread:     decimal.NewFromFloat(rules.MaxSpread),
		sellHalfRev:   decimal.NewFromFloat(rules.SellHalfReversal),
		sellFullRev:   decimal.NewFromFloat(rules.SellFullReversal),
		badCloseFrac:  decimal.NewFromFloat(rules.BadClose),
		minPosition:   decimal.NewFromFloat(rules.MinPositionSize),
		sentinelEntry: decimal.NewFromFloat(rules.SentinelEntryPrice),
		sentinelStop:  decimal.NewFromFloat(rules.SentinelStopPrice),

		positions:     make(map[string]decimal.Decimal),
		firstHoursRow: -1,
		notice:        rate.NewLimiter(rate.Every(15*time.Minute), 1),
	}
}

// Run consumes the gateway event stream until the session is over, the
// stream closes, or the context is cancelled. A clean session end returns
// nil after the archiver has persisted its outputs.
func (e *Engine) Run(ctx context.Context) error {
	e.startedAt = time.Now()
	e.logger.Info("Engine started")

	for {
		select {
		case <-ctx.Done():
			e.archiver.Stop()
			return ctx.Err()
		case ev, ok := <-e.gateway.Events():
			if !ok {
				e.archiver.Stop()
				return errors.New("gateway event stream closed")
			}
			if err := e.handle(ctx, ev); err != nil {
				e.archiver.Stop()
				return err
			}
			if e.finished {
				e.archiver.Stop()
				return nil
			}
		}
	}
}

func (e *Engine) handle(ctx context.Context, ev core.Event) error {
	switch ev := ev.(type) {
	case core.TickEvent:
		e.onTick(ctx, ev)
	case core.AccountValueEvent:
		e.onAccountValue(ev)
	case core.PositionEvent:
		e.positions[ev.Contract.Symbol] = ev.Quantity
	case core.ContractDetailsEvent:
		return e.onContractDetails(ev)
	case core.OrderStatusEvent:
		e.onOrderStatus(ev)
	case core.ErrorEvent:
		e.logger.Warn("Broker error", "req_id", ev.ReqID, "code", ev.Code, "message", ev.Message)
	}
	return nil
}

func (e *Engine) onAccountValue(ev core.AccountValueEvent) {
	e.risk.OnAccountValue(ev.Key, ev.Value, ev.Currency)

	if pnl, ok := e.risk.DailyPnL(); ok {
		if size, sized := e.risk.PortfolioSize(); sized && !size.IsZero() {
			e.metrics.DailyPnLPct.Set(decToF(pnl.Div(size).Mul(decimal.NewFromInt(100))))
		}
	}
	if pct, ok := e.risk.PercentInvested(); ok {
		e.metrics.PercentInvested.Set(decToF(pct))
	}
	if e.risk.MaxDailyLossReached() {
		e.metrics.BreakerTripped.Set(1)
	}
}

// onContractDetails records the company name and, until the session hours
// are defined, tries to define them from the row's liquid-hours string.
// A close already in the past is fatal.
func (e *Engine) onContractDetails(ev core.ContractDetailsEvent) error {
	e.table.Mu.Lock()
	if row, ok := e.table.Row(ev.ReqID); ok && ev.LongName != "" {
		row.CompanyName = ev.LongName
	}
	e.table.Mu.Unlock()

	e.metadataSeen++
	if ev.LiquidHours == "" {
		return nil
	}

	if e.firstHoursRow < 0 {
		e.firstHours = ev.LiquidHours
		e.firstHoursRow = ev.ReqID
	} else if ev.LiquidHours != e.firstHours {
		e.logger.Warn("Liquid hours differ across instruments",
			"req_id", ev.ReqID, "reference_row", e.firstHoursRow)
	}

	if e.clock.Defined() {
		return nil
	}

	err := e.clock.Define(ev.LiquidHours, e.openIdx, e.closeIdx, time.Now())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrClosePast):
		return err
	case errors.Is(err, session.ErrStaleHours):
		// The keep-alive row reports placeholder hours far in the
		// future. Once every other instrument has also reported, these
		// are the only hours we will get, so take them anyway.
		if e.universeReported() {
			err = e.clock.DefineFinal(ev.LiquidHours, e.openIdx, e.closeIdx, time.Now())
			if errors.Is(err, session.ErrClosePast) {
				return err
			}
			if err != nil {
				e.logger.Error("Session definition failed", "req_id", ev.ReqID, "error", err)
			}
			return nil
		}
		e.logger.Debug("Stale liquid hours, waiting for more metadata", "req_id", ev.ReqID)
		return nil
	default:
		e.logger.Error("Session definition failed", "req_id", ev.ReqID, "error", err)
		return nil
	}
}

// universeReported is true once metadata has arrived for every ledger
// row, or every row but one; the keep-alive row is allowed to straggle.
func (e *Engine) universeReported() bool {
	e.table.Mu.RLock()
	defer e.table.Mu.RUnlock()
	return e.table.Len() > 1 && e.metadataSeen >= e.table.Len()-1
}

// reconcilePositions compares broker-reported inventory against the
// plan's open-position quantities per currency. Advisory only.
func (e *Engine) reconcilePositions() {
	planned := make(map[string]decimal.Decimal)
	reported := make(map[string]decimal.Decimal)

	for _, r := range e.table.Rows() {
		if !r.IsOpenPosition {
			continue
		}
		planned[r.Currency] = planned[r.Currency].Add(r.Quantity)
		if qty, ok := e.positions[r.Symbol]; ok {
			reported[r.Currency] = reported[r.Currency].Add(qty)
		}
	}

	for currency, want := range planned {
		got := reported[currency]
		if !want.Equal(got) {
			e.logger.Warn("Open-position quantity mismatch",
				"currency", currency, "plan", want.String(), "broker", got.String())
		}
	}
	e.logger.Info("Open positions reconciled", "currencies", len(planned))
}

// cancelPriorOrders sweeps the ID range just below the broker's seed,
// catching orders left over from the previous session. Rejections of
// already-terminal IDs are swallowed.
func (e *Engine) cancelPriorOrders(ctx context.Context) {
	seed := e.gateway.ReserveOrderIDs(0)
	first := seed - priorCancelCount
	if first < 1 {
		first = 1
	}
	for id := first; id < seed; id++ {
		if err := e.gateway.CancelOrder(ctx, id); err != nil {
			e.logger.Debug("Prior-order cancel rejected", "order_id", id, "error", err)
		}
	}
	e.logger.Info("Prior-session orders cancelled", "from", first, "to", seed-1)
}

func (e *Engine) window(minutes int) time.Duration {
	return time.Duration(minutes) * time.Minute
}

func decToF(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}
