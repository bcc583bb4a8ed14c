// Package telemetry exposes the engine's Prometheus metrics and the
// /metrics HTTP server.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every instrument the engine updates.
type Metrics struct {
	OrdersPlaced    *prometheus.CounterVec
	OrdersCancelled prometheus.Counter
	OrderErrors     prometheus.Counter

	TicksReceived *prometheus.CounterVec
	WSMessages    prometheus.Counter
	WSConnects    prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPErrors   *prometheus.CounterVec

	DailyPnLPct     prometheus.Gauge
	PercentInvested prometheus.Gauge
	BreakerTripped  prometheus.Gauge
	LedgerRows      prometheus.Gauge
}

// NewMetrics creates and registers the instrument set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_orders_placed_total",
				Help: "Orders submitted to the gateway",
			},
			[]string{"side", "type"},
		),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_orders_cancelled_total",
			Help: "Cancel requests sent to the gateway",
		}),
		OrderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_order_errors_total",
			Help: "Failed gateway order requests",
		}),
		TicksReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_ticks_received_total",
				Help: "Market data ticks by kind",
			},
			[]string{"kind"},
		),
		WSMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_ws_messages_total",
			Help: "WebSocket messages received",
		}),
		WSConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_ws_connections_total",
			Help: "WebSocket connections initiated",
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_http_requests_total",
				Help: "Outbound HTTP requests by method",
			},
			[]string{"method"},
		),
		HTTPErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_http_errors_total",
				Help: "Failed outbound HTTP requests by method",
			},
			[]string{"method"},
		),
		DailyPnLPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_daily_pnl_pct",
			Help: "Daily PnL as a percent of portfolio",
		}),
		PercentInvested: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_percent_invested",
			Help: "Gross position value over net liquidation",
		}),
		BreakerTripped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_daily_loss_breaker",
			Help: "1 once the daily-loss circuit breaker has latched",
		}),
		LedgerRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_ledger_rows",
			Help: "Instrument rows tracked in the ledger",
		}),
	}

	reg.MustRegister(
		m.OrdersPlaced, m.OrdersCancelled, m.OrderErrors,
		m.TicksReceived, m.WSMessages, m.WSConnects,
		m.HTTPRequests, m.HTTPErrors,
		m.DailyPnLPct, m.PercentInvested, m.BreakerTripped, m.LedgerRows,
	)
	return m
}

var (
	globalOnce    sync.Once
	globalMetrics *Metrics
)

// GetGlobalMetrics returns the default-registry instrument set.
func GetGlobalMetrics() *Metrics {
	globalOnce.Do(func() {
		globalMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return globalMetrics
}
