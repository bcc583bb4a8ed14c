// Package gateway implements the brokerage connection over a websocket
// JSON stream: market data and account events in, order requests out.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"golang.org/x/time/rate"

	"github.com/opensqt/daytrader/internal/config"
	"github.com/opensqt/daytrader/internal/core"
	"github.com/opensqt/daytrader/pkg/websocket"
)

// Client implements core.IGateway over the websocket frame protocol.
// The broker seeds the order-ID counter in its hello frame; every
// subsequent allocation is a local atomic increment.
type Client struct {
	url      string
	clientID int

	ws        *websocket.Client
	limiter   *rate.Limiter
	sendRetry retrypolicy.RetryPolicy[any]

	events chan core.Event
	done   chan struct{}

	// emitMu fences emit against the channel close: a reader goroutine
	// that outlives the websocket stop timeout must not send on the
	// closed events channel.
	emitMu       sync.RWMutex
	eventsClosed bool

	nextOrderID int64

	ready     chan struct{}
	readyOnce sync.Once
	closeOnce sync.Once

	logger core.ILogger
}

// NewClient creates a gateway client for the given venue client ID. A
// zero port means cfg.URL already carries one.
func NewClient(cfg config.GatewayConfig, clientID int, logger core.ILogger) *Client {
	url := cfg.URL
	if cfg.Port > 0 {
		url = fmt.Sprintf("%s:%d", cfg.URL, cfg.Port)
	}
	c := &Client{
		url:      url + "/v1/stream",
		clientID: clientID,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		events:   make(chan core.Event, cfg.EventChannelCapacity),
		done:     make(chan struct{}),
		ready:    make(chan struct{}),
		logger:   logger.WithField("component", "gateway"),
	}

	c.sendRetry = retrypolicy.NewBuilder[any]().
		WithMaxRetries(cfg.OrderRetryAttempts - 1).
		WithBackoff(time.Duration(cfg.OrderRetryBaseMLS)*time.Millisecond, 2*time.Second).
		Build()

	ws := websocket.NewClient(c.url, c.handleMessage, c.logger)
	ws.SetPingConfig(
		time.Duration(cfg.PingIntervalSec)*time.Second,
		10*time.Second,
		time.Duration(cfg.PongWaitSec)*time.Second,
	)
	ws.SetReconnectWait(time.Duration(cfg.ReconnectDelaySec) * time.Second)
	ws.SetOnConnected(func() {
		if err := ws.Send(helloRequest{Op: opHello, ClientID: clientID}); err != nil {
			c.logger.Error("Failed to send hello", "error", err)
		}
	})
	c.ws = ws

	return c
}

// Connect starts the websocket and blocks until the broker's hello frame
// arrives or the context expires.
func (c *Client) Connect(ctx context.Context) error {
	c.ws.Start()

	select {
	case <-c.ready:
		c.logger.Info("Gateway connected",
			"url", c.url,
			"client_id", c.clientID,
			"next_order_id", atomic.LoadInt64(&c.nextOrderID))
		return nil
	case <-ctx.Done():
		c.ws.Stop()
		return fmt.Errorf("gateway handshake: %w", ctx.Err())
	}
}

// Close terminates the connection and closes the event stream.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Stop()
		c.emitMu.Lock()
		c.eventsClosed = true
		close(c.events)
		c.emitMu.Unlock()
	})
	return nil
}

// Events returns the ordered broker event stream.
func (c *Client) Events() <-chan core.Event {
	return c.events
}

// ReserveOrderIDs atomically allocates n contiguous order IDs and returns
// the first of the range.
func (c *Client) ReserveOrderIDs(n int) int64 {
	return atomic.AddInt64(&c.nextOrderID, int64(n)) - int64(n)
}

// PlaceOrder submits one order. Transient send failures are retried with
// backoff; the broker reports acceptance asynchronously via orderStatus.
func (c *Client) PlaceOrder(ctx context.Context, spec core.OrderSpec) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req := orderRequestFromSpec(spec)
	err := failsafe.With[any](c.sendRetry).WithContext(ctx).Run(func() error {
		return c.ws.Send(req)
	})
	if err != nil {
		return fmt.Errorf("place order %d: %w", spec.OrderID, err)
	}

	c.logger.Debug("Order sent",
		"order_id", spec.OrderID,
		"symbol", spec.Contract.Symbol,
		"side", spec.Side,
		"type", spec.Type,
		"qty", spec.Quantity,
		"transmit", spec.Transmit)
	return nil
}

// CancelOrder requests cancellation. Cancelling an unknown or terminal
// order is a broker-side no-op.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	err := failsafe.With[any](c.sendRetry).WithContext(ctx).Run(func() error {
		return c.ws.Send(cancelRequest{Op: opCancelOrder, OrderID: orderID})
	})
	if err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}

	c.logger.Debug("Cancel sent", "order_id", orderID)
	return nil
}

// RequestContractDetails asks for the one-time instrument metadata burst.
func (c *Client) RequestContractDetails(ctx context.Context, reqID int, contract core.Contract) error {
	return c.sendContractRequest(ctx, opReqContractDetails, reqID, contract)
}

// RequestMarketData subscribes the instrument to the tick stream.
func (c *Client) RequestMarketData(ctx context.Context, reqID int, contract core.Contract) error {
	return c.sendContractRequest(ctx, opReqMarketData, reqID, contract)
}

func (c *Client) sendContractRequest(ctx context.Context, op string, reqID int, contract core.Contract) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := c.ws.Send(contractRequest{
		Op:       op,
		ReqID:    reqID,
		Symbol:   contract.Symbol,
		Currency: contract.Currency,
		Exchange: contract.Exchange,
		SecType:  contract.SecType,
	}); err != nil {
		return fmt.Errorf("%s %d: %w", op, reqID, err)
	}
	return nil
}

// RequestAccountUpdates subscribes to account-summary pushes.
func (c *Client) RequestAccountUpdates(ctx context.Context) error {
	return c.sendSubscribe(ctx, opReqAccountUpdates)
}

// RequestPositions asks for a snapshot of broker-held positions.
func (c *Client) RequestPositions(ctx context.Context) error {
	return c.sendSubscribe(ctx, opReqPositions)
}

func (c *Client) sendSubscribe(ctx context.Context, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := c.ws.Send(subscribeRequest{Op: op}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) handleMessage(message []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		c.logger.Error("Failed to unmarshal gateway frame", "error", err)
		return
	}

	switch frame.Type {
	case frameHello:
		var p helloPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.logger.Error("Bad hello payload", "error", err)
			return
		}
		atomic.StoreInt64(&c.nextOrderID, p.NextOrderID)
		c.readyOnce.Do(func() { close(c.ready) })

	case frameTick:
		var p tickPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.logger.Error("Bad tick payload", "error", err)
			return
		}
		kind, ok := tickKindFromWire(p.Kind)
		if !ok {
			return
		}
		c.emit(core.TickEvent{ReqID: p.ReqID, Kind: kind, Price: p.Price, At: time.Now()})

	case frameAccountValue:
		var p accountValuePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.logger.Error("Bad account payload", "error", err)
			return
		}
		c.emit(core.AccountValueEvent{Key: p.Key, Value: p.Value, Currency: p.Currency})

	case framePosition:
		var p positionPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.logger.Error("Bad position payload", "error", err)
			return
		}
		c.emit(core.PositionEvent{
			Contract: core.Contract{
				Symbol:   p.Symbol,
				Currency: p.Currency,
				Exchange: p.Exchange,
				SecType:  p.SecType,
			},
			Quantity: p.Quantity,
		})

	case frameContractDetails:
		var p contractDetailsPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.logger.Error("Bad contract details payload", "error", err)
			return
		}
		c.emit(core.ContractDetailsEvent{
			ReqID:       p.ReqID,
			LongName:    p.LongName,
			TimeZone:    p.TimeZone,
			LiquidHours: p.LiquidHours,
		})

	case frameOrderStatus:
		var p orderStatusPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.logger.Error("Bad order status payload", "error", err)
			return
		}
		c.emit(core.OrderStatusEvent{
			OrderID:       p.OrderID,
			Status:        orderStatusFromWire(p.Status),
			Filled:        p.Filled,
			Remaining:     p.Remaining,
			LastFillPrice: p.LastFillPrice,
		})

	case frameError:
		var p errorPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.logger.Error("Bad error payload", "error", err)
			return
		}
		c.logger.Warn("Gateway error", "req_id", p.ReqID, "code", p.Code, "message", p.Message)
		c.emit(core.ErrorEvent{ReqID: p.ReqID, Code: p.Code, Message: p.Message})

	default:
		c.logger.Debug("Unknown gateway frame", "type", frame.Type)
	}
}

// emit blocks on a full buffer so broker ordering is preserved; Close
// unblocks any pending send. Events arriving after Close are dropped.
func (c *Client) emit(ev core.Event) {
	c.emitMu.RLock()
	defer c.emitMu.RUnlock()
	if c.eventsClosed {
		return
	}
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
