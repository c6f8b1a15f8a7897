package brokerb

import (
	"time"

	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/gateway"
	"go.uber.org/zap"
)

// Subscribe starts a market-data stream for req and records it in the
// subscribed set so a reconnect can replay it.
func (c *Client) Subscribe(req gateway.SubscribeRequest) error {
	c.postAsync(func() {
		reqID, ok := c.reqIDBySymbol[req.VtSymbol]
		if !ok {
			reqID = c.allocReqID()
			c.reqIDBySymbol[req.VtSymbol] = reqID
			c.ticksByReqID[reqID] = &domain.TickData{Symbol: req.VtSymbol, Extra: domain.TickExtra{}}
		}
		c.subscribed[req.VtSymbol] = req
		if err := c.transport.ReqMktData(reqID, ContractSpec{Symbol: req.VtSymbol, Exchange: req.Exchange}); err != nil {
			c.logger.Warn("req_mkt_data failed", zap.String("symbol", req.VtSymbol), zap.Error(err))
		}
	})
	return nil
}

// Unsubscribe cancels the stream but deliberately keeps the cached
// TickData slot and the subscribed-set entry removed (spec's
// documented known limitation: the cache slot itself is retained,
// only the stream and replay-tracking stop).
func (c *Client) Unsubscribe(req gateway.SubscribeRequest) error {
	c.postAsync(func() {
		reqID, ok := c.reqIDBySymbol[req.VtSymbol]
		if !ok {
			return
		}
		if err := c.transport.CancelMktData(reqID); err != nil {
			c.logger.Warn("cancel_mkt_data failed", zap.String("symbol", req.VtSymbol), zap.Error(err))
		}
		delete(c.subscribed, req.VtSymbol)
	})
	return nil
}

// SubscribeBars is not supported by broker B in this core: it returns
// nil without requesting bars, and Capabilities does not report
// CapBars. Nothing checks CapBars before calling it.
func (c *Client) SubscribeBars(req gateway.BarsRequest) error {
	return nil
}

// UnsubscribeBars mirrors SubscribeBars.
func (c *Client) UnsubscribeBars(req gateway.BarsRequest) error {
	return nil
}

// replaySubscriptions resends every tracked subscription after a
// reconnect. Runs on the loop goroutine.
func (c *Client) replaySubscriptions() {
	for vtSymbol, req := range c.subscribed {
		reqID, ok := c.reqIDBySymbol[vtSymbol]
		if !ok {
			reqID = c.allocReqID()
			c.reqIDBySymbol[vtSymbol] = reqID
		}
		if err := c.transport.ReqMktData(reqID, ContractSpec{Symbol: req.VtSymbol, Exchange: req.Exchange}); err != nil {
			c.logger.Warn("resubscribe failed", zap.String("symbol", vtSymbol), zap.Error(err))
		}
	}
}

func (c *Client) tickBySymbol(vtSymbol string) (*domain.TickData, int64, bool) {
	reqID, ok := c.reqIDBySymbol[vtSymbol]
	if !ok {
		return nil, 0, false
	}
	tick, ok := c.ticksByReqID[reqID]
	return tick, reqID, ok
}

// TickPrice merges a bid/ask/last price field into the cached
// TickData for reqID and emits the merged value via on_tick.
func (c *Client) TickPrice(reqID int64, field TickField, price float64) {
	tick, ok := c.ticksByReqID[reqID]
	if !ok {
		return
	}
	switch field {
	case FieldBid:
		tick.Bid = price
	case FieldAsk:
		tick.Ask = price
	case FieldLast:
		tick.Last = price
	}
	c.emitTick(tick)
}

// TickSize merges a bid/ask/volume size field.
func (c *Client) TickSize(reqID int64, field TickField, size float64) {
	tick, ok := c.ticksByReqID[reqID]
	if !ok {
		return
	}
	switch field {
	case FieldBidSize:
		tick.BidSize = size
	case FieldAskSize:
		tick.AskSize = size
	case FieldVolume:
		tick.Volume = size
	}
	c.emitTick(tick)
}

// TickString merges a string-valued field; only LAST_TIMESTAMP is
// understood. Other fields are ignored, though the tick is still
// re-emitted.
func (c *Client) TickString(reqID int64, field TickField, value string) {
	tick, ok := c.ticksByReqID[reqID]
	if !ok {
		return
	}
	if field == FieldLastTimestamp {
		if ts, err := time.Parse(time.RFC3339, value); err == nil {
			tick.Timestamp = ts
		}
	}
	c.emitTick(tick)
}

// emitTick publishes an immutable copy of tick, synthesizing a mid
// price when no last trade has been reported (FX/commodity style).
func (c *Client) emitTick(tick *domain.TickData) {
	if tick.Timestamp.IsZero() {
		tick.Timestamp = time.Now()
	}
	out := *tick
	if out.Last == 0 {
		out.Last = out.Mid()
	}
	extra := make(domain.TickExtra, len(tick.Extra))
	for k, v := range tick.Extra {
		extra[k] = v
	}
	out.Extra = extra
	c.bus.Publish(domain.TickEvent(out))
}
