// Package risk tracks account-level PnL and exposure and latches the
// daily-loss circuit breaker the rule engine consults on every tick.
package risk

import (
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/opensqt/daytrader/internal/core"
)

// Account-value keys pushed by the gateway.
const (
	KeyRealizedPnL        = "RealizedPnL"
	KeyUnrealizedPnL      = "UnrealizedPnL"
	KeyNetLiquidation     = "NetLiquidation"
	KeyGrossPositionValue = "GrossPositionValue"

	// BaseCurrency marks the account-wide aggregate rows; PnL pushes in
	// individual currencies are ignored.
	BaseCurrency = "BASE"
)

// Monitor implements core.IRiskMonitor. Daily PnL percent is
// (realized + unrealized) / fx / portfolio; once it falls to the
// configured max loss the breaker latches for the rest of the session
// and is never reset.
type Monitor struct {
	logger core.ILogger

	fxRate         decimal.Decimal
	maxDailyLoss   decimal.Decimal // negative fraction of portfolio
	printThreshold decimal.Decimal // percentage points

	mu sync.RWMutex

	realized      decimal.Decimal
	unrealized    decimal.Decimal
	hasRealized   bool
	hasUnrealized bool

	portfolio    decimal.Decimal
	hasPortfolio bool

	grossPosition decimal.Decimal
	invested      decimal.Decimal
	hasInvested   bool

	// last logged component percentages, for chatter suppression
	lastRealizedPct   decimal.Decimal
	lastUnrealizedPct decimal.Decimal
	lastInvestedPct   decimal.Decimal

	tripped int32 // atomic, one-way
}

// NewMonitor creates a Monitor for the venue's exchange rate.
func NewMonitor(fxRate, maxDailyLoss, printThreshold decimal.Decimal, logger core.ILogger) *Monitor {
	return &Monitor{
		logger:         logger.WithField("component", "risk_monitor"),
		fxRate:         fxRate,
		maxDailyLoss:   maxDailyLoss,
		printThreshold: printThreshold,
	}
}

// MaxDailyLossReached reports whether the breaker has latched.
func (m *Monitor) MaxDailyLossReached() bool {
	return atomic.LoadInt32(&m.tripped) == 1
}

// PortfolioSize returns the net liquidation value; false until the first
// account push.
func (m *Monitor) PortfolioSize() (decimal.Decimal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.portfolio, m.hasPortfolio
}

// PercentInvested returns gross position value over net liquidation as a
// fraction; false until both figures have arrived.
func (m *Monitor) PercentInvested() (decimal.Decimal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invested, m.hasInvested
}

// DailyPnL returns the base-currency daily PnL after FX conversion;
// false until both components have arrived.
func (m *Monitor) DailyPnL() (decimal.Decimal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasRealized || !m.hasUnrealized {
		return decimal.Zero, false
	}
	return m.realized.Add(m.unrealized).Div(m.fxRate), true
}

// OnAccountValue folds one account push into the monitor. Percent
// invested and the breaker are recomputed here and nowhere else.
func (m *Monitor) OnAccountValue(key string, value decimal.Decimal, currency string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch key {
	case KeyRealizedPnL:
		if currency != BaseCurrency {
			return
		}
		m.realized = value
		m.hasRealized = true
	case KeyUnrealizedPnL:
		if currency != BaseCurrency {
			return
		}
		m.unrealized = value
		m.hasUnrealized = true
	case KeyNetLiquidation:
		m.portfolio = value
		m.hasPortfolio = true
	case KeyGrossPositionValue:
		m.grossPosition = value
	default:
		return
	}

	m.recomputeInvestedLocked()
	m.recomputePnLLocked()
}

func (m *Monitor) recomputeInvestedLocked() {
	if !m.hasPortfolio || m.portfolio.IsZero() {
		return
	}
	m.invested = m.grossPosition.Div(m.portfolio)
	m.hasInvested = true

	pct := m.invested.Mul(decimal.NewFromInt(100))
	if pct.Sub(m.lastInvestedPct).Abs().GreaterThan(m.printThreshold) {
		m.logger.Info("Percent invested", "invested_pct", pct.StringFixed(2))
		m.lastInvestedPct = pct
	}
}

func (m *Monitor) recomputePnLLocked() {
	if !m.hasRealized || !m.hasUnrealized || !m.hasPortfolio || m.portfolio.IsZero() {
		return
	}

	hundred := decimal.NewFromInt(100)
	base := m.fxRate.Mul(m.portfolio)
	realizedPct := m.realized.Div(base).Mul(hundred)
	unrealizedPct := m.unrealized.Div(base).Mul(hundred)
	dailyPct := realizedPct.Add(unrealizedPct)

	moved := realizedPct.Sub(m.lastRealizedPct).Abs().GreaterThan(m.printThreshold) ||
		unrealizedPct.Sub(m.lastUnrealizedPct).Abs().GreaterThan(m.printThreshold)
	if moved {
		m.logger.Info("Daily PnL",
			"realized_pct", realizedPct.StringFixed(2),
			"unrealized_pct", unrealizedPct.StringFixed(2),
			"daily_pct", dailyPct.StringFixed(2))
		m.lastRealizedPct = realizedPct
		m.lastUnrealizedPct = unrealizedPct
	}

	limitPct := m.maxDailyLoss.Mul(hundred)
	if dailyPct.LessThanOrEqual(limitPct) && atomic.CompareAndSwapInt32(&m.tripped, 0, 1) {
		m.logger.Warn("Max daily loss reached, trading halted for the session",
			"daily_pct", dailyPct.StringFixed(2),
			"limit_pct", limitPct.StringFixed(2))
	}
}
