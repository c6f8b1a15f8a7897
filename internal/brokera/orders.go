package brokera

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/gateway"
	"go.uber.org/zap"
)

func orderTypeToWire(t domain.OrderType) string { return string(t) }

func directionToSide(d domain.Direction) string {
	if d == domain.DirectionShort {
		return "SELL"
	}
	return "BUY"
}

// SendOrder caches a SUBMITTING OrderData and emits it synchronously
// before dispatching the HTTP submit onto the worker pool, matching
// the SUBMITTING-before-return contract the router relies on for every
// broker (§4.5/§4.6/§5).
func (a *Adapter) SendOrder(req gateway.OrderRequest) (string, error) {
	clientOrderID := uuid.NewString()

	tif := req.TIF
	if tif == "" {
		tif = domain.TimeInForceGTC
	}

	vtOrderID := fmt.Sprintf("%s.%s", a.accountAlias, clientOrderID)
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

	a.mu.Lock()
	a.orders[vtOrderID] = order
	a.clientOrderIDMap[clientOrderID] = vtOrderID
	a.mu.Unlock()
	a.bus.Publish(domain.OrderEvent(order))

	spec := OrderSpec{
		ClientOrderID: clientOrderID,
		Symbol:        req.Symbol,
		Side:          directionToSide(req.Direction),
		OrderType:     orderTypeToWire(req.Type),
		Qty:           req.Volume,
		LimitPrice:    req.Price,
		StopPrice:     req.StopPrice,
		TIF:           string(tif),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	submitErr := a.pool.Submit(func() {
		ack, err := a.transport.PlaceOrder(ctx, spec)
		if err != nil {
			a.logger.Warn("place_order failed", zap.String("vt_orderid", vtOrderID), zap.Error(err))
			return
		}

		a.mu.Lock()
		if o, ok := a.orders[vtOrderID]; ok {
			// Broker-assigned order_id arrives here; mapping it to
			// the vt_orderid lets later order-event payloads that
			// carry an explicit orderId (priority 1) resolve to this
			// order. The client_order_id entry stored above serves
			// payloads that omit it (priority 2).
			a.clientOrderIDMap[ack.OrderID] = vtOrderID
			a.orders[vtOrderID] = o
		}
		a.mu.Unlock()
	})
	if submitErr != nil {
		a.logger.Warn("place_order dispatch failed", zap.Error(submitErr))
	}

	return vtOrderID, nil
}

// CancelOrder looks up the cached order and dispatches a cancel onto
// the worker pool.
func (a *Adapter) CancelOrder(vtOrderID string) error {
	a.mu.Lock()
	_, ok := a.orders[vtOrderID]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, vtOrderID)
	}

	brokerOrderID := a.resolveBrokerOrderID(vtOrderID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.runOnPool(ctx, func() error {
		return a.transport.CancelOrder(ctx, brokerOrderID)
	})
}

// resolveBrokerOrderID reverses the client_order_id -> vt_orderid map
// to find the broker-assigned id to cancel by; falls back to the
// vt_orderid's client-order-id suffix if no broker id has arrived yet.
func (a *Adapter) resolveBrokerOrderID(vtOrderID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, vt := range a.clientOrderIDMap {
		if vt == vtOrderID {
			return id
		}
	}
	return strings.TrimPrefix(vtOrderID, a.accountAlias+".")
}

// QueryAccount dispatches an account-balance query onto the worker
// pool and emits the result via on_account.
func (a *Adapter) QueryAccount() error {
	return a.dispatchQuery(func(ctx context.Context) error {
		snap, err := a.transport.QueryAccount(ctx)
		if err != nil {
			return err
		}
		a.bus.Publish(domain.AccountEvent(domain.AccountData{
			AccountAlias: a.accountAlias,
			Balance:      snap.Balance,
			Available:    snap.Available,
			Currency:     snap.Currency,
		}))
		return nil
	})
}

// QueryPosition dispatches a position query and emits on_position per
// row. Zero-volume rows are emitted too; the OMS cache is responsible
// for evicting them.
func (a *Adapter) QueryPosition() error {
	return a.dispatchQuery(func(ctx context.Context) error {
		rows, err := a.transport.QueryPositions(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			a.bus.Publish(domain.PositionEvent(domain.PositionData{
				AccountAlias: a.accountAlias,
				Symbol:       row.Symbol,
				Direction:    domain.Direction(row.Direction),
				Volume:       row.Volume,
				Price:        row.Price,
				PnL:          row.PnL,
				Frozen:       row.Frozen,
			}))
		}
		return nil
	})
}

// QueryOpenOrders dispatches an open-orders query and emits on_order
// per row, merging into the adapter's own cache.
func (a *Adapter) QueryOpenOrders() error {
	return a.dispatchQuery(func(ctx context.Context) error {
		rows, err := a.transport.QueryOpenOrders(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			vtOrderID := fmt.Sprintf("%s.%s", a.accountAlias, row.OrderID)
			order := domain.OrderData{
				VtOrderID:    vtOrderID,
				AccountAlias: a.accountAlias,
				Symbol:       row.Symbol,
				Direction:    sideToDirection(row.Side),
				Type:         domain.OrderType(row.OrderType),
				Volume:       row.Qty,
				Traded:       row.FilledQty,
				Price:        row.Price,
				Status:       openOrderStatus(row.Status, row.FilledQty, row.Qty),
				Timestamp:    time.Now(),
			}
			a.mu.Lock()
			a.orders[vtOrderID] = order
			a.clientOrderIDMap[row.ClientOrderID] = vtOrderID
			a.mu.Unlock()
			a.bus.Publish(domain.OrderEvent(order))
		}
		return nil
	})
}

func sideToDirection(side string) domain.Direction {
	if side == "SELL" || side == "SHORT" {
		return domain.DirectionShort
	}
	return domain.DirectionLong
}

func openOrderStatus(status string, filled, qty float64) domain.OrderStatus {
	switch status {
	case "FILLED":
		if filled < qty {
			return domain.OrderStatusPartTraded
		}
		return domain.OrderStatusAllTraded
	case "CANCELLED":
		return domain.OrderStatusCancelled
	case "FAILED":
		return domain.OrderStatusRejected
	default:
		return domain.OrderStatusNotTraded
	}
}

func (a *Adapter) dispatchQuery(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	submitErr := a.pool.Submit(func() {
		defer cancel()
		if err := fn(ctx); err != nil {
			a.logger.Warn("broker_a query failed", zap.Error(err))
		}
	})
	if submitErr != nil {
		cancel()
		return fmt.Errorf("%w: worker pool submit: %v", domain.ErrBrokerTransient, submitErr)
	}
	return nil
}

// brokerAStatusMapping is the explicit order_status mapping from
// spec.md §4.6; FILLED's outcome depends on filled_qty vs qty so it is
// handled inline rather than as a static table entry.
var brokerAStatusMapping = map[string]domain.OrderStatus{
	"SUBMITTED": domain.OrderStatusNotTraded,
	"CANCELLED": domain.OrderStatusCancelled,
	"FAILED":    domain.OrderStatusRejected,
}

// sceneTypeMapping is the fallback mapping used when order_status is
// absent; MODIFY_SUCCESS preserves the existing status (handled inline).
var sceneTypeMapping = map[string]domain.OrderStatus{
	"FILLED":         domain.OrderStatusPartTraded,
	"FINAL_FILLED":    domain.OrderStatusAllTraded,
	"PLACE_FAILED":    domain.OrderStatusRejected,
	"MODIFY_FAILED":   domain.OrderStatusRejected,
	"CANCEL_FAILED":   domain.OrderStatusRejected,
	"CANCEL_SUCCESS":  domain.OrderStatusCancelled,
}

// resolveOrderStatus applies §4.6's status mapping: prefer the
// explicit order_status, special-casing FILLED's part/all split, then
// fall back to scene_type, preserving the current status for
// MODIFY_SUCCESS or anything unrecognized.
func resolveOrderStatus(current domain.OrderStatus, payload OrderEventPayload) domain.OrderStatus {
	if payload.OrderStatus != "" {
		if payload.OrderStatus == "FILLED" {
			if payload.FilledQty < payload.Qty {
				return domain.OrderStatusPartTraded
			}
			return domain.OrderStatusAllTraded
		}
		if mapped, ok := brokerAStatusMapping[payload.OrderStatus]; ok {
			return mapped
		}
	}
	if payload.SceneType == "MODIFY_SUCCESS" {
		return current
	}
	if mapped, ok := sceneTypeMapping[payload.SceneType]; ok {
		return mapped
	}
	return current
}

// shouldTriggerRefresh reports whether payload is one of the
// terminal-ish events that schedule a debounced snapshot refresh (§4.6 "Refresh debouncing").
func shouldTriggerRefresh(payload OrderEventPayload) bool {
	switch payload.SceneType {
	case "FILLED", "FINAL_FILLED", "CANCEL_SUCCESS":
		return true
	}
	switch payload.OrderStatus {
	case "FILLED", "CANCELLED":
		return true
	}
	return false
}

// onOrderEvent resolves the order id per §4.6's priority
// (payload.OrderID, then the client_order_id entry of the
// id -> vt_orderid map, then the client_order_id itself), clones the cached order, applies the status
// delta, stores the clone, and emits it via on_order. It never mutates
// a value already dispatched to a subscriber.
func (a *Adapter) onOrderEvent(payload OrderEventPayload) {
	resolvedID := payload.OrderID
	vtOrderID := ""
	a.mu.Lock()
	if resolvedID == "" {
		if vt, ok := a.clientOrderIDMap[payload.ClientOrderID]; ok {
			vtOrderID = vt
		} else {
			resolvedID = payload.ClientOrderID
		}
	}

	if vtOrderID == "" {
		if vt, ok := a.clientOrderIDMap[resolvedID]; ok {
			vtOrderID = vt
		} else {
			vtOrderID = fmt.Sprintf("%s.%s", a.accountAlias, resolvedID)
		}
	}

	current, exists := a.orders[vtOrderID]
	if !exists {
		current = domain.OrderData{
			VtOrderID:    vtOrderID,
			AccountAlias: a.accountAlias,
			Symbol:       payload.Symbol,
			Direction:    sideToDirection(payload.Side),
			Volume:       payload.Qty,
			Status:       domain.OrderStatusSubmitting,
		}
	}

	next := current // clone by value before mutating
	next.Traded = payload.FilledQty
	next.Status = resolveOrderStatus(current.Status, payload)
	next.Timestamp = payload.Timestamp
	if next.Timestamp.IsZero() {
		next.Timestamp = time.Now()
	}

	a.orders[vtOrderID] = next
	a.mu.Unlock()

	a.bus.Publish(domain.OrderEvent(next))

	if shouldTriggerRefresh(payload) {
		a.refresh.trigger()
	}
}
