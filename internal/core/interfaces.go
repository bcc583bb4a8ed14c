// Package core defines the shared interfaces and wire types for the
// execution engine.
package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// IGateway is the brokerage connection: market data in, orders out.
// Events from the broker (ticks, account values, order statuses, contract
// metadata) are delivered on a single ordered channel; submission and
// cancellation are fire-and-forget from the caller's perspective.
type IGateway interface {
	Connect(ctx context.Context) error
	Close() error

	// Events returns the ordered event stream. The channel is closed when
	// the connection terminates.
	Events() <-chan Event

	// ReserveOrderIDs atomically allocates n contiguous broker order IDs
	// and returns the first of the range.
	ReserveOrderIDs(n int) int64

	PlaceOrder(ctx context.Context, spec OrderSpec) error
	// CancelOrder is idempotent; cancelling an unknown or already-terminal
	// ID is a tolerated no-op.
	CancelOrder(ctx context.Context, orderID int64) error

	RequestContractDetails(ctx context.Context, reqID int, contract Contract) error
	RequestMarketData(ctx context.Context, reqID int, contract Contract) error
	RequestAccountUpdates(ctx context.Context) error
	RequestPositions(ctx context.Context) error
}

// ISessionClock tracks the venue's trading calendar for the day.
type ISessionClock interface {
	State() SessionState
	// IsOpen recomputes openness at the given instant, honoring a midday
	// pause when the venue has one.
	IsOpen(now time.Time) bool
	MinutesToOpen(now time.Time) float64
	OpenTime() time.Time
	CloseTime() time.Time
	Defined() bool
}

// IRiskMonitor exposes the account-level figures the rule engine consults
// on every tick.
type IRiskMonitor interface {
	// PercentInvested and PortfolioSize report false until the first
	// account push has arrived.
	PercentInvested() (decimal.Decimal, bool)
	PortfolioSize() (decimal.Decimal, bool)
	// DailyPnL is the day's realized plus unrealized PnL in the account
	// base currency after FX conversion.
	DailyPnL() (decimal.Decimal, bool)
	MaxDailyLossReached() bool
	OnAccountValue(key string, value decimal.Decimal, currency string)
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
