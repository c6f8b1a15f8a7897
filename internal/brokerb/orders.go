package brokerb

import (
	"context"
	"fmt"
	"time"

	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/gateway"
	"go.uber.org/zap"
)

func orderTypeToWire(t domain.OrderType) string {
	switch t {
	case domain.OrderTypeMarket:
		return "MKT"
	case domain.OrderTypeLimit:
		return "LMT"
	case domain.OrderTypeStop:
		return "STP"
	case domain.OrderTypeStopLimit:
		return "STP LMT"
	default:
		return string(t)
	}
}

func directionToAction(d domain.Direction) string {
	if d == domain.DirectionShort {
		return "SELL"
	}
	return "BUY"
}

// SendOrder caches a SUBMITTING OrderData, emits it synchronously, then
// schedules the network send on the I/O loop (spec.md §4.5 "Orders").
func (c *Client) SendOrder(req gateway.OrderRequest) (string, error) {
	orderID := c.allocOrderID()
	vtOrderID := c.vtOrderID(orderID)
	tif := req.TIF
	if tif == "" {
		tif = domain.TimeInForceGTC
	}

	order := domain.OrderData{
		VtOrderID:    vtOrderID,
		AccountAlias: req.AccountAlias,
		Symbol:       req.Symbol,
		Exchange:     req.Exchange,
		Direction:    req.Direction,
		Type:         req.Type,
		Volume:       req.Volume,
		Price:        req.Price,
		StopPrice:    req.StopPrice,
		Status:       domain.OrderStatusSubmitting,
		TIF:          tif,
		Timestamp:    time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := c.post(ctx, func() {
		c.orders[vtOrderID] = order
		c.orderIDToVt[orderID] = vtOrderID
		c.bus.Publish(domain.OrderEvent(order))

		spec := OrderSpec{
			Action:     directionToAction(req.Direction),
			OrderType:  orderTypeToWire(req.Type),
			Quantity:   req.Volume,
			LimitPrice: req.Price,
			AuxPrice:   req.StopPrice,
			TIF:        string(tif),
		}
		contract := ContractSpec{Symbol: req.Symbol, Exchange: req.Exchange}
		if sendErr := c.transport.PlaceOrder(orderID, contract, spec); sendErr != nil {
			c.logger.Warn("place_order failed", zap.String("vt_orderid", vtOrderID), zap.Error(sendErr))
		}
	})
	if err != nil {
		return "", fmt.Errorf("%w: send_order: %v", domain.ErrBrokerTransient, err)
	}
	return vtOrderID, nil
}

// CancelOrder posts a cancel request for vtOrderID.
func (c *Client) CancelOrder(vtOrderID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return c.post(ctx, func() {
		for orderID, vt := range c.orderIDToVt {
			if vt != vtOrderID {
				continue
			}
			if err := c.transport.CancelOrder(orderID); err != nil {
				c.logger.Warn("cancel_order failed", zap.String("vt_orderid", vtOrderID), zap.Error(err))
			}
			return
		}
		c.logger.Warn("cancel_order: unknown vt_orderid", zap.String("vt_orderid", vtOrderID))
	})
}

// brokerBStatusMapping is the status table from spec.md §4.5.
var brokerBStatusMapping = map[string]domain.OrderStatus{
	"Submitted":    domain.OrderStatusNotTraded,
	"PreSubmitted": domain.OrderStatusNotTraded,
	"Cancelled":    domain.OrderStatusCancelled,
	"ApiCancelled": domain.OrderStatusCancelled,
	"Inactive":     domain.OrderStatusRejected,
}

// OpenOrder copies the broker-reported exchange onto the cached order
// and re-emits it. The other contract and order fields are not merged,
// status/traded are never touched (those come from OrderStatus), and
// callbacks for orders missing from the cache are ignored.
func (c *Client) OpenOrder(orderID int64, contract ContractSpec, spec OrderSpec) {
	vtOrderID, ok := c.orderIDToVt[orderID]
	if !ok {
		return
	}
	order, ok := c.orders[vtOrderID]
	if !ok {
		return
	}
	order.Exchange = contract.Exchange
	c.orders[vtOrderID] = order
	c.bus.Publish(domain.OrderEvent(order))
}

// OrderStatus updates only (status, traded); unknown status values
// leave the status unchanged and log once per value.
func (c *Client) OrderStatus(orderID int64, status string, traded, avgFillPrice float64) {
	vtOrderID, ok := c.orderIDToVt[orderID]
	if !ok {
		return
	}
	order, ok := c.orders[vtOrderID]
	if !ok {
		return
	}

	if status == "Filled" {
		order.Traded = traded
		if traded < order.Volume {
			order.Status = domain.OrderStatusPartTraded
		} else {
			order.Status = domain.OrderStatusAllTraded
		}
	} else if mapped, known := brokerBStatusMapping[status]; known {
		order.Traded = traded
		order.Status = mapped
	} else {
		if !c.unknownStatusLogged[status] {
			c.logger.Warn("unknown broker-b order status", zap.String("status", status))
			c.unknownStatusLogged[status] = true
		}
	}

	c.orders[vtOrderID] = order
	c.bus.Publish(domain.OrderEvent(order))
}

// ExecDetails emits a TRADE event; it never modifies order status.
func (c *Client) ExecDetails(orderID int64, execID string, price, volume float64, ts time.Time) {
	vtOrderID, ok := c.orderIDToVt[orderID]
	if !ok {
		return
	}
	order, ok := c.orders[vtOrderID]
	if !ok {
		return
	}
	c.bus.Publish(domain.TradeEvent(domain.TradeData{
		VtTradeID: fmt.Sprintf("%s.%s", vtOrderID, execID),
		VtOrderID: vtOrderID,
		Symbol:    order.Symbol,
		Direction: order.Direction,
		Price:     price,
		Volume:    volume,
		Timestamp: ts,
	}))
}
