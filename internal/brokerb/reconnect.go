package brokerb

import (
	"context"
	"time"

	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/eventbus"
	"go.uber.org/zap"
)

// checksPerHealthCheck is how many EVENT_TIMER ticks elapse between
// health checks. The bus timer runs at reconnect.interval_seconds
// (§4.2 default 10s), so one tick is one check.
const checksPerHealthCheck = 1

// ConnectionClosed marks the adapter disconnected; the next timer tick
// health check drives the reconnect attempt.
func (c *Client) ConnectionClosed() {
	c.connectedFlag.Store(false)
	c.logger.Warn("broker_b connection closed")
}

// AttachReconnect subscribes a TIMER handler that checks connection
// health every checksPerHealthCheck ticks and reconnects on failure,
// replaying the tracked subscription set once ready (spec.md §4.5
// "Reconnection").
func (c *Client) AttachReconnect(bus *eventbus.Bus) {
	tickCount := 0
	bus.Subscribe(domain.EventTimer, func(domain.Event) {
		tickCount++
		if tickCount%checksPerHealthCheck != 0 {
			return
		}
		if c.connectedFlag.Load() {
			return
		}
		c.reconnect()
	})
}

func (c *Client) reconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.transport.Dial(ctx, c.addr); err != nil {
		c.logger.Warn("broker_b reconnect failed, will retry next tick", zap.Error(err))
		return
	}
	c.connectedFlag.Store(true)
	c.logger.Info("broker_b reconnected")

	c.postAsync(func() {
		c.replaySubscriptions()
	})
	c.QueryAccount()
	c.QueryPosition()
	c.QueryOpenOrders()
}
