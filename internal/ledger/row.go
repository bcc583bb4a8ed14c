// Package ledger holds the per-instrument trading state for one session.
// Rows are appended at startup from the plan file or mid-session by plan
// sync, never removed or reordered; the row index doubles as the market
// data request ID.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensqt/daytrader/internal/core"
)

// Flag is a one-shot lifecycle marker with the time it was raised.
// Flags are monotonic for the trading day: once set they stay set.
type Flag struct {
	Set bool
	At  time.Time
}

// Is reports whether the flag has been raised.
func (f Flag) Is() bool { return f.Set }

// Reset clears the flag. Only the exit-leg fill flags are ever reset,
// when a fresh one-cancels-all group supersedes the previous bracket.
func (f *Flag) Reset() {
	f.Set = false
	f.At = time.Time{}
}

// Row is the full mutable state for one tracked instrument.
type Row struct {
	// Identity. ReqID is the stable per-session request ID, assigned by
	// the table on append.
	ReqID       int
	Symbol      string
	Currency    string
	Exchange    string
	SecType     string
	CompanyName string

	// Plan inputs.
	Entry    decimal.Decimal
	Stop     decimal.Decimal
	BuyLimit decimal.Decimal
	Target   decimal.Decimal
	Quantity decimal.Decimal

	IsOpenPosition bool
	SellOnClose    bool // resettable: the SMA close-cancel rule clears it
	StopAtLowOfDay bool
	AddAndReduce   bool

	SMASell decimal.Decimal
	HasSMA  bool

	// Live snapshot, overwritten per tick. Zero means not yet received.
	Last       decimal.Decimal
	Bid        decimal.Decimal
	Ask        decimal.Decimal
	ClosePrice decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	BidSize    decimal.Decimal
	AskSize    decimal.Decimal
	Volume     decimal.Decimal

	// Lifecycle flags.
	Crossed              Flag
	Executed             Flag
	Filled               Flag
	ProfitFilled         Flag
	StopFilled           Flag
	CloseFilled          Flag
	StopUndercut         Flag
	OpenBracketSubmitted Flag
	TwoPctAbove          Flag
	NewOCA               Flag
	FivePctAbove         Flag
	BadCloseChecked      Flag
	BadCloseRule         Flag
	AddReduceExecuted    Flag
	BelowLimit           Flag
	MaxLossReached       Flag
	Sold                 Flag
	Looped               Flag
	InvestLimit          Flag
	PriceAboveLimit      Flag
	SpreadAboveLimit     Flag
	NewPositionAdded     Flag
	OpenPositionUpdated  Flag

	// Fill bookkeeping.
	ProfitFillPrice decimal.Decimal
	StopFillPrice   decimal.Decimal
	CloseFillPrice  decimal.Decimal

	// Order correlation. Superseded on rebracket, never cleared.
	ParentOrderID int64
	ProfitOrderID int64
	StopOrderID   int64
	CloseOrderID  int64
	MarketOrderID int64

	// Scratch state for the 4-second gap-fade sub-rule and the
	// first-minute loop-message throttle.
	StopObservedAt    time.Time
	StopObservedPrice decimal.Decimal
	ThrottleAt        time.Time

	// Spread at execution, as a percentage of ask.
	SpreadAtExecPct decimal.Decimal

	logger core.ILogger
}

// Mark raises a one-shot flag, logging the transition. It returns false
// without logging when the flag was already set.
func (r *Row) Mark(f *Flag, name string, at time.Time) bool {
	if f.Set {
		return false
	}
	f.Set = true
	f.At = at
	if r.logger != nil {
		r.logger.Info("Flag set", "symbol", r.Symbol, "flag", name)
	}
	return true
}

// SetStop overwrites the stop price, logging old and new values.
func (r *Row) SetStop(v decimal.Decimal) {
	if r.logger != nil {
		r.logger.Info("Stop price changed", "symbol", r.Symbol, "old", r.Stop.String(), "new", v.String())
	}
	r.Stop = v
}

// SetTarget overwrites the profit target, logging old and new values.
func (r *Row) SetTarget(v decimal.Decimal) {
	if r.logger != nil {
		r.logger.Info("Target price changed", "symbol", r.Symbol, "old", r.Target.String(), "new", v.String())
	}
	r.Target = v
}

// SetQuantity overwrites the quantity, logging old and new values.
func (r *Row) SetQuantity(v decimal.Decimal) {
	if r.logger != nil {
		r.logger.Info("Quantity changed", "symbol", r.Symbol, "old", r.Quantity.String(), "new", v.String())
	}
	r.Quantity = v
}

// SetEntry overwrites the entry price, logging old and new values.
func (r *Row) SetEntry(v decimal.Decimal) {
	if r.logger != nil {
		r.logger.Info("Entry price changed", "symbol", r.Symbol, "old", r.Entry.String(), "new", v.String())
	}
	r.Entry = v
}

// SetBuyLimit overwrites the buy-limit price, logging old and new values.
func (r *Row) SetBuyLimit(v decimal.Decimal) {
	if r.logger != nil {
		r.logger.Info("Buy limit changed", "symbol", r.Symbol, "old", r.BuyLimit.String(), "new", v.String())
	}
	r.BuyLimit = v
}

// Contract returns the broker contract descriptor for this row.
func (r *Row) Contract() core.Contract {
	return core.Contract{
		Symbol:   r.Symbol,
		Currency: r.Currency,
		Exchange: r.Exchange,
		SecType:  r.SecType,
	}
}

// HasQuotes reports whether last, bid and ask have all been received.
func (r *Row) HasQuotes() bool {
	return r.Last.IsPositive() && r.Bid.IsPositive() && r.Ask.IsPositive()
}

// IsSentinel reports whether this is the keep-alive row, identified by its
// marker entry and stop prices.
func (r *Row) IsSentinel(entry, stop decimal.Decimal) bool {
	return r.Entry.Equal(entry) && r.Stop.Equal(stop)
}

// IsActive reports whether the row holds live inventory: an open position
// whose bracket has been submitted, or a freshly filled buy, in either
// case not yet sold.
func (r *Row) IsActive() bool {
	if r.Sold.Is() {
		return false
	}
	if r.IsOpenPosition && r.OpenBracketSubmitted.Is() {
		return true
	}
	return r.Filled.Is()
}

// ClearQuotes resets the stale quote columns. Invoked once on the
// closed-to-open session transition.
func (r *Row) ClearQuotes() {
	r.Last = decimal.Zero
	r.Bid = decimal.Zero
	r.Ask = decimal.Zero
	r.ClosePrice = decimal.Zero
	r.BidSize = decimal.Zero
	r.AskSize = decimal.Zero
}

// ApplyTick folds a price or size tick into the snapshot. High and low
// only move when the print extends the running extremum.
func (r *Row) ApplyTick(kind core.TickKind, v decimal.Decimal) {
	switch kind {
	case core.TickLast:
		r.Last = v
		if v.GreaterThan(r.High) {
			r.High = v
		}
		if r.Low.IsZero() || v.LessThan(r.Low) {
			r.Low = v
		}
	case core.TickBid:
		r.Bid = v
	case core.TickAsk:
		r.Ask = v
	case core.TickClose:
		r.ClosePrice = v
	case core.TickHigh:
		if v.GreaterThan(r.High) {
			r.High = v
		}
	case core.TickLow:
		if r.Low.IsZero() || v.LessThan(r.Low) {
			r.Low = v
		}
	case core.TickBidSize:
		r.BidSize = v
	case core.TickAskSize:
		r.AskSize = v
	case core.TickVolume:
		r.Volume = v
	}
}
