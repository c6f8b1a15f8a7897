// Package gateway defines BrokerGateway, the capability surface every
// broker adapter implements. Methods must return promptly — no
// blocking network I/O on the caller's goroutine; side effects surface
// asynchronously through the event bus.
package gateway

import (
	"context"
	"time"

	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/registry"
)

// Capability is a single order-type/feature bit a broker may support.
type Capability uint32

const (
	CapMarket Capability = 1 << iota
	CapLimit
	CapStop
	CapStopLimit
	CapBars
)

// CapabilitySet is a bitmask of supported Capability values.
type CapabilitySet uint32

// Has reports whether c includes cap.
func (c CapabilitySet) Has(cap Capability) bool { return CapabilitySet(cap)&c != 0 }

// CapabilityForType maps an order type to the capability bit that
// gates it.
func CapabilityForType(t domain.OrderType) Capability {
	switch t {
	case domain.OrderTypeMarket:
		return CapMarket
	case domain.OrderTypeLimit:
		return CapLimit
	case domain.OrderTypeStop:
		return CapStop
	case domain.OrderTypeStopLimit:
		return CapStopLimit
	default:
		return 0
	}
}

// SubscribeRequest is a market-data subscription, tracked by the
// adapter so it can be replayed after a reconnect.
type SubscribeRequest struct {
	VtSymbol string
	Exchange string
}

// BarsRequest is a historical/real-time bar subscription.
type BarsRequest struct {
	VtSymbol string
	RTH      bool
}

// OrderRequest is the adapter-specific order composed by the router
// from an OrderIntent (spec §4.7 step 5).
type OrderRequest struct {
	AccountAlias string
	Symbol       string
	Exchange     string
	Direction    domain.Direction
	Type         domain.OrderType
	Volume       float64
	Price        float64
	StopPrice    float64
	TIF          domain.TimeInForce
}

// BrokerGateway is the capability surface every broker adapter
// implements. Connect requests a first snapshot of account, positions
// and open orders; the results arrive later as events, and contracts
// are not part of that snapshot.
type BrokerGateway interface {
	// Connect establishes the adapter's connection(s) and requests the
	// initial snapshot.
	Connect(ctx context.Context) error
	Close() error

	Subscribe(req SubscribeRequest) error
	Unsubscribe(req SubscribeRequest) error
	SubscribeBars(req BarsRequest) error
	UnsubscribeBars(req BarsRequest) error

	// SendOrder emits a SUBMITTING OrderData synchronously before
	// returning the assigned vt_orderid.
	SendOrder(req OrderRequest) (vtOrderID string, err error)
	CancelOrder(vtOrderID string) error

	QueryAccount() error
	QueryPosition() error
	QueryOpenOrders() error

	// RequestContractDetails is synchronous with a bounded timeout;
	// it is the only gateway method registry auto-fill relies on.
	RequestContractDetails(ctx context.Context, query domain.ContractQuery) ([]registry.ContractDetails, error)

	// Capabilities reports which order types this adapter instance can
	// natively express, for the router's capability gate.
	Capabilities() CapabilitySet

	// AccountAlias identifies which configured account this gateway
	// instance serves.
	AccountAlias() string
}

// DefaultContractDetailsTimeout bounds RequestContractDetails calls
// that don't specify their own deadline.
const DefaultContractDetailsTimeout = 5 * time.Second
