package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionState is the lifecycle of the trading day.
type SessionState int

const (
	SessionUninitialized SessionState = iota
	SessionDefined
	SessionOpen
	SessionClosed
	SessionClosedFinal
)

func (s SessionState) String() string {
	switch s {
	case SessionUninitialized:
		return "uninitialized"
	case SessionDefined:
		return "defined"
	case SessionOpen:
		return "open"
	case SessionClosed:
		return "closed"
	case SessionClosedFinal:
		return "closed_final"
	default:
		return "unknown"
	}
}

// TickKind identifies which quote field a price or size tick updates.
type TickKind int

const (
	TickBid TickKind = iota
	TickAsk
	TickLast
	TickClose
	TickHigh
	TickLow
	TickBidSize
	TickAskSize
	TickVolume
)

func (k TickKind) String() string {
	switch k {
	case TickBid:
		return "bid"
	case TickAsk:
		return "ask"
	case TickLast:
		return "last"
	case TickClose:
		return "close"
	case TickHigh:
		return "high"
	case TickLow:
		return "low"
	case TickBidSize:
		return "bid_size"
	case TickAskSize:
		return "ask_size"
	case TickVolume:
		return "volume"
	default:
		return "unknown"
	}
}

// Side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType is the broker order type.
type OrderType string

const (
	OrderLimit  OrderType = "LMT"
	OrderStop   OrderType = "STP"
	OrderMarket OrderType = "MKT"
)

// TimeInForce values used by the engine.
type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGTC TimeInForce = "GTC"
	TIFGTD TimeInForce = "GTD"
)

// OrderStatus values reported by the broker.
type OrderStatus string

const (
	StatusPreSubmitted  OrderStatus = "PreSubmitted"
	StatusSubmitted     OrderStatus = "Submitted"
	StatusPendingCancel OrderStatus = "PendingCancel"
	StatusCancelled     OrderStatus = "Cancelled"
	StatusFilled        OrderStatus = "Filled"
)

// Contract identifies a tradable instrument.
type Contract struct {
	Symbol   string
	Currency string
	Exchange string
	SecType  string
}

// OrderSpec is a single order submission. Bracket and OCA linkage is
// expressed through ParentID and OCAGroup; only the final order of a
// linked group sets Transmit, releasing the whole chain at once.
type OrderSpec struct {
	OrderID  int64
	ParentID int64

	Contract Contract

	Side     Side
	Type     OrderType
	TIF      TimeInForce
	Quantity decimal.Decimal

	// LimitPrice applies to LMT orders, AuxPrice to STP orders.
	LimitPrice decimal.Decimal
	AuxPrice   decimal.Decimal

	GoodTillDate  time.Time
	GoodAfterTime time.Time

	OCAGroup string
	OCAType  int

	Transmit bool
}

// Event is a single broker notification delivered on the gateway stream.
type Event interface {
	eventKind() string
}

// TickEvent is a price or size update for the instrument registered under
// ReqID. Price carries the value for both price and size kinds.
type TickEvent struct {
	ReqID int
	Kind  TickKind
	Price decimal.Decimal
	At    time.Time
}

// AccountValueEvent is one key of an account-summary push.
type AccountValueEvent struct {
	Key      string
	Value    decimal.Decimal
	Currency string
}

// PositionEvent reports one broker-held position.
type PositionEvent struct {
	Contract Contract
	Quantity decimal.Decimal
}

// ContractDetailsEvent carries the one-time instrument metadata burst.
type ContractDetailsEvent struct {
	ReqID       int
	LongName    string
	TimeZone    string
	LiquidHours string
}

// OrderStatusEvent reports order progress. Filled and Remaining are share
// counts; LastFillPrice is the most recent execution price.
type OrderStatusEvent struct {
	OrderID       int64
	Status        OrderStatus
	Filled        decimal.Decimal
	Remaining     decimal.Decimal
	LastFillPrice decimal.Decimal
}

// ErrorEvent is a broker-side protocol error tied to a request ID.
type ErrorEvent struct {
	ReqID   int64
	Code    int
	Message string
}

func (TickEvent) eventKind() string            { return "tick" }
func (AccountValueEvent) eventKind() string    { return "account_value" }
func (PositionEvent) eventKind() string        { return "position" }
func (ContractDetailsEvent) eventKind() string { return "contract_details" }
func (OrderStatusEvent) eventKind() string     { return "order_status" }
func (ErrorEvent) eventKind() string           { return "error" }
