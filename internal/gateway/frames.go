package gateway

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/opensqt/daytrader/internal/core"
)

// Wire format: the brokerage gateway speaks JSON frames over a single
// websocket. Inbound frames carry a "type" discriminator and a payload;
// outbound requests carry an "op" discriminator.

const (
	frameHello           = "hello"
	frameTick            = "tick"
	frameAccountValue    = "accountValue"
	framePosition        = "position"
	frameContractDetails = "contractDetails"
	frameOrderStatus     = "orderStatus"
	frameError           = "error"
)

const (
	opHello              = "hello"
	opPlaceOrder         = "placeOrder"
	opCancelOrder        = "cancelOrder"
	opReqContractDetails = "reqContractDetails"
	opReqMarketData      = "reqMarketData"
	opReqAccountUpdates  = "reqAccountUpdates"
	opReqPositions       = "reqPositions"
)

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type helloPayload struct {
	NextOrderID int64 `json:"nextOrderId"`
}

type tickPayload struct {
	ReqID int             `json:"reqId"`
	Kind  string          `json:"kind"`
	Price decimal.Decimal `json:"price"`
}

type accountValuePayload struct {
	Key      string          `json:"key"`
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

type positionPayload struct {
	Symbol   string          `json:"symbol"`
	Currency string          `json:"currency"`
	Exchange string          `json:"exchange"`
	SecType  string          `json:"secType"`
	Quantity decimal.Decimal `json:"quantity"`
}

type contractDetailsPayload struct {
	ReqID       int    `json:"reqId"`
	LongName    string `json:"longName"`
	TimeZone    string `json:"timeZoneId"`
	LiquidHours string `json:"liquidHours"`
}

type orderStatusPayload struct {
	OrderID       int64           `json:"orderId"`
	Status        string          `json:"status"`
	Filled        decimal.Decimal `json:"filled"`
	Remaining     decimal.Decimal `json:"remaining"`
	LastFillPrice decimal.Decimal `json:"lastFillPrice"`
}

type errorPayload struct {
	ReqID   int64  `json:"reqId"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type helloRequest struct {
	Op       string `json:"op"`
	ClientID int    `json:"clientId"`
}

type orderRequest struct {
	Op       string `json:"op"`
	OrderID  int64  `json:"orderId"`
	ParentID int64  `json:"parentId,omitempty"`

	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
	Exchange string `json:"exchange"`
	SecType  string `json:"secType"`

	Side     string          `json:"side"`
	Type     string          `json:"orderType"`
	TIF      string          `json:"tif"`
	Quantity decimal.Decimal `json:"quantity"`

	LimitPrice decimal.Decimal `json:"limitPrice,omitempty"`
	AuxPrice   decimal.Decimal `json:"auxPrice,omitempty"`

	GoodTillDate  string `json:"goodTillDate,omitempty"`
	GoodAfterTime string `json:"goodAfterTime,omitempty"`

	OCAGroup string `json:"ocaGroup,omitempty"`
	OCAType  int    `json:"ocaType,omitempty"`

	Transmit bool `json:"transmit"`
}

type cancelRequest struct {
	Op      string `json:"op"`
	OrderID int64  `json:"orderId"`
}

type contractRequest struct {
	Op       string `json:"op"`
	ReqID    int    `json:"reqId"`
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
	Exchange string `json:"exchange"`
	SecType  string `json:"secType"`
}

type subscribeRequest struct {
	Op string `json:"op"`
}

// gatewayTimeLayout is the broker's wire format for GTD/GAT stamps.
const gatewayTimeLayout = "20060102 15:04:05"

func tickKindFromWire(kind string) (core.TickKind, bool) {
	switch kind {
	case "bid":
		return core.TickBid, true
	case "ask":
		return core.TickAsk, true
	case "last":
		return core.TickLast, true
	case "close":
		return core.TickClose, true
	case "high":
		return core.TickHigh, true
	case "low":
		return core.TickLow, true
	case "bidSize":
		return core.TickBidSize, true
	case "askSize":
		return core.TickAskSize, true
	case "volume":
		return core.TickVolume, true
	default:
		return 0, false
	}
}

func orderStatusFromWire(status string) core.OrderStatus {
	return core.OrderStatus(status)
}

func orderRequestFromSpec(spec core.OrderSpec) orderRequest {
	req := orderRequest{
		Op:       opPlaceOrder,
		OrderID:  spec.OrderID,
		ParentID: spec.ParentID,
		Symbol:   spec.Contract.Symbol,
		Currency: spec.Contract.Currency,
		Exchange: spec.Contract.Exchange,
		SecType:  spec.Contract.SecType,
		Side:     string(spec.Side),
		Type:     string(spec.Type),
		TIF:      string(spec.TIF),
		Quantity: spec.Quantity,
		OCAGroup: spec.OCAGroup,
		OCAType:  spec.OCAType,
		Transmit: spec.Transmit,
	}
	if !spec.LimitPrice.IsZero() {
		req.LimitPrice = spec.LimitPrice
	}
	if !spec.AuxPrice.IsZero() {
		req.AuxPrice = spec.AuxPrice
	}
	if !spec.GoodTillDate.IsZero() {
		req.GoodTillDate = spec.GoodTillDate.Format(gatewayTimeLayout)
	}
	if !spec.GoodAfterTime.IsZero() {
		req.GoodAfterTime = spec.GoodAfterTime.Format(gatewayTimeLayout)
	}
	return req
}
