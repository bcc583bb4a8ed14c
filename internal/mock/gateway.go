// Package mock provides test doubles for the brokerage gateway.
package mock

import (
	"context"
	"sync"

	"github.com/opensqt/daytrader/internal/core"
)

// Gateway is an in-memory core.IGateway that records every request and
// lets tests push events onto the stream.
type Gateway struct {
	mu sync.Mutex

	nextOrderID int64
	events      chan core.Event

	Placed           []core.OrderSpec
	Cancelled        []int64
	DetailRequests   []int
	MarketDataReqs   []int
	AccountRequested bool
	PositionsReqs    int

	// PlaceErr, when set, is returned by every PlaceOrder call.
	PlaceErr error
	// CancelErr, when set, is returned by every CancelOrder call.
	CancelErr error
}

// NewGateway creates a mock gateway whose order IDs start at firstOrderID.
func NewGateway(firstOrderID int64) *Gateway {
	return &Gateway{
		nextOrderID: firstOrderID,
		events:      make(chan core.Event, 256),
	}
}

func (g *Gateway) Connect(ctx context.Context) error { return nil }

func (g *Gateway) Close() error {
	close(g.events)
	return nil
}

func (g *Gateway) Events() <-chan core.Event { return g.events }

// Push delivers an event to the stream as the broker would.
func (g *Gateway) Push(ev core.Event) { g.events <- ev }

func (g *Gateway) ReserveOrderIDs(n int) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextOrderID
	g.nextOrderID += int64(n)
	return id
}

func (g *Gateway) PlaceOrder(ctx context.Context, spec core.OrderSpec) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.PlaceErr != nil {
		return g.PlaceErr
	}
	g.Placed = append(g.Placed, spec)
	return nil
}

func (g *Gateway) CancelOrder(ctx context.Context, orderID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CancelErr != nil {
		return g.CancelErr
	}
	g.Cancelled = append(g.Cancelled, orderID)
	return nil
}

func (g *Gateway) RequestContractDetails(ctx context.Context, reqID int, contract core.Contract) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.DetailRequests = append(g.DetailRequests, reqID)
	return nil
}

func (g *Gateway) RequestMarketData(ctx context.Context, reqID int, contract core.Contract) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.MarketDataReqs = append(g.MarketDataReqs, reqID)
	return nil
}

func (g *Gateway) RequestAccountUpdates(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.AccountRequested = true
	return nil
}

func (g *Gateway) RequestPositions(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.PositionsReqs++
	return nil
}

// PlacedOrders returns a copy of every recorded submission.
func (g *Gateway) PlacedOrders() []core.OrderSpec {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]core.OrderSpec, len(g.Placed))
	copy(out, g.Placed)
	return out
}

// CancelledOrders returns a copy of every recorded cancellation.
func (g *Gateway) CancelledOrders() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int64, len(g.Cancelled))
	copy(out, g.Cancelled)
	return out
}

// Reset clears the recorded requests.
func (g *Gateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Placed = nil
	g.Cancelled = nil
	g.DetailRequests = nil
	g.MarketDataReqs = nil
}
