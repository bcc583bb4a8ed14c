package gateway

import (
	"context"

	"github.com/opensqt/daytrader/internal/core"
	"github.com/opensqt/daytrader/pkg/telemetry"
)

// InstrumentedGateway decorates a gateway with Prometheus counters on the
// order path. The event stream passes through untouched.
type InstrumentedGateway struct {
	inner   core.IGateway
	metrics *telemetry.Metrics
}

// NewInstrumentedGateway wraps inner with the given instrument set.
func NewInstrumentedGateway(inner core.IGateway, metrics *telemetry.Metrics) *InstrumentedGateway {
	return &InstrumentedGateway{inner: inner, metrics: metrics}
}

func (g *InstrumentedGateway) Connect(ctx context.Context) error { return g.inner.Connect(ctx) }
func (g *InstrumentedGateway) Close() error                      { return g.inner.Close() }
func (g *InstrumentedGateway) Events() <-chan core.Event         { return g.inner.Events() }
func (g *InstrumentedGateway) ReserveOrderIDs(n int) int64       { return g.inner.ReserveOrderIDs(n) }

func (g *InstrumentedGateway) PlaceOrder(ctx context.Context, spec core.OrderSpec) error {
	if err := g.inner.PlaceOrder(ctx, spec); err != nil {
		g.metrics.OrderErrors.Inc()
		return err
	}
	g.metrics.OrdersPlaced.WithLabelValues(string(spec.Side), string(spec.Type)).Inc()
	return nil
}

func (g *InstrumentedGateway) CancelOrder(ctx context.Context, orderID int64) error {
	if err := g.inner.CancelOrder(ctx, orderID); err != nil {
		g.metrics.OrderErrors.Inc()
		return err
	}
	g.metrics.OrdersCancelled.Inc()
	return nil
}

func (g *InstrumentedGateway) RequestContractDetails(ctx context.Context, reqID int, contract core.Contract) error {
	return g.inner.RequestContractDetails(ctx, reqID, contract)
}

func (g *InstrumentedGateway) RequestMarketData(ctx context.Context, reqID int, contract core.Contract) error {
	return g.inner.RequestMarketData(ctx, reqID, contract)
}

func (g *InstrumentedGateway) RequestAccountUpdates(ctx context.Context) error {
	return g.inner.RequestAccountUpdates(ctx)
}

func (g *InstrumentedGateway) RequestPositions(ctx context.Context) error {
	return g.inner.RequestPositions(ctx)
}
