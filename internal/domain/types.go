// Package domain holds the canonical data model shared across Janus:
// registry entries, contracts, orders, trades, positions, accounts,
// ticks and the wire-level order intent. Values are treated as
// immutable once handed to the event bus: callers that need to change
// a field construct a new value rather than mutating one in place.
package domain

import "time"

// AssetClass is the instrument class a SymbolRegistryEntry resolves to.
type AssetClass string

const (
	AssetClassEquity AssetClass = "EQUITY"
)

// SymbolRegistryEntry maps a canonical symbol to its per-broker ids.
// Never overwritten in place except to fill a missing broker id;
// removal is a manual, out-of-band operation.
type SymbolRegistryEntry struct {
	ID             int64
	CanonicalSymbol string
	AssetClass     AssetClass
	Currency       string
	BrokerATicker  string
	BrokerBConID   int64
	Description    string
}

// HasBrokerA reports whether a broker-A ticker has been bound.
func (e SymbolRegistryEntry) HasBrokerA() bool { return e.BrokerATicker != "" }

// HasBrokerB reports whether a broker-B conid has been bound.
func (e SymbolRegistryEntry) HasBrokerB() bool { return e.BrokerBConID != 0 }

// ContractData describes a tradable instrument as reported by a broker.
type ContractData struct {
	VtSymbol    string
	Exchange    string
	ProductType string
	MinVolume   float64
	PriceTick   float64
	Currency    string
}

// Direction is the position/order direction.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// OrderType enumerates the order types Janus understands.
type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStop       OrderType = "STOP"
	OrderTypeStopLimit  OrderType = "STOP_LIMIT"
)

// OrderStatus is the lifecycle state of an OrderData value.
type OrderStatus string

const (
	OrderStatusSubmitting  OrderStatus = "SUBMITTING"
	OrderStatusNotTraded   OrderStatus = "NOTTRADED"
	OrderStatusPartTraded  OrderStatus = "PARTTRADED"
	OrderStatusAllTraded   OrderStatus = "ALLTRADED"
	OrderStatusCancelled   OrderStatus = "CANCELLED"
	OrderStatusRejected    OrderStatus = "REJECTED"
)

// IsActive reports whether status is one of the active-order states.
func (s OrderStatus) IsActive() bool {
	switch s {
	case OrderStatusSubmitting, OrderStatusNotTraded, OrderStatusPartTraded:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether status can no longer transition.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusAllTraded, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// TimeInForce is the order's time-in-force.
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "DAY"
	TimeInForceGTC TimeInForce = "GTC"
)

// OrderData is the canonical order shape dispatched through the event
// bus. An OrderData is immutable once it has been handed to on_order:
// adapters must clone and replace, never mutate a value already
// observed by a subscriber.
type OrderData struct {
	VtOrderID    string
	AccountAlias string
	Symbol       string
	Exchange     string
	Direction    Direction
	Type         OrderType
	Volume       float64
	Price        float64
	StopPrice    float64
	Traded       float64
	Status       OrderStatus
	TIF          TimeInForce
	Timestamp    time.Time
}

// Clone returns a copy of o, safe for a subscriber to retain.
func (o OrderData) Clone() OrderData { return o }

// RemainingVolume returns the unfilled quantity.
func (o OrderData) RemainingVolume() float64 { return o.Volume - o.Traded }

// TradeData is an append-only fill record.
type TradeData struct {
	VtTradeID string
	VtOrderID string
	Symbol    string
	Direction Direction
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// PositionData is the last snapshot pushed by a broker. Zero-volume
// entries are evicted from the OMS cache, never retained.
type PositionData struct {
	AccountAlias string
	Symbol       string
	Direction    Direction
	Volume       float64
	Price        float64
	PnL          float64
	Frozen       float64
}

// AccountData is the last balance snapshot pushed by a broker.
type AccountData struct {
	AccountAlias string
	Balance      float64
	Available    float64
	Currency     string
}

// TickExtra carries option-greek style supplementary fields that ride
// along with a tick but aren't part of the core quote.
type TickExtra map[string]float64

// TickData is merged in place from partial field callbacks; a tick is
// never considered complete on any single callback, only the union of
// everything received so far. Each merge produces a new TickData value
// emitted via on_tick — the held cache slot is mutable, the emitted
// value is not.
type TickData struct {
	Symbol    string
	Last      float64
	Bid       float64
	Ask       float64
	BidSize   float64
	AskSize   float64
	Volume    float64
	Timestamp time.Time
	Extra     TickExtra
}

// Mid returns the synthesized (bid+ask)/2 price used for FX/commodity
// style instruments that don't report a last trade.
func (t TickData) Mid() float64 {
	if t.Bid == 0 || t.Ask == 0 {
		return 0
	}
	return (t.Bid + t.Ask) / 2
}

// OrderSide is the wire-level side on an OrderIntent; it carries more
// intent than Direction (SHORT/COVER bypass the position-derived
// short-sale policy in the router).
type OrderSide string

const (
	OrderSideBuy   OrderSide = "BUY"
	OrderSideSell  OrderSide = "SELL"
	OrderSideShort OrderSide = "SHORT"
	OrderSideCover OrderSide = "COVER"
)

// OrderIntent is the wire-level input to the order router.
type OrderIntent struct {
	AccountAlias string      `validate:"required"`
	Symbol       string      `validate:"required"`
	Side         OrderSide   `validate:"required,oneof=BUY SELL SHORT COVER"`
	Type         OrderType   `validate:"required,oneof=MARKET LIMIT STOP STOP_LIMIT"`
	Qty          float64     `validate:"required,gt=0"`
	LimitPrice   float64     `validate:"omitempty,gt=0"`
	StopPrice    float64     `validate:"omitempty,gt=0"`
	TIF          TimeInForce `validate:"required,oneof=DAY GTC"`
}

// BarData is a completed OHLCV bar for subscribe_bars/unsubscribe_bars.
type BarData struct {
	VtSymbol  string
	Interval  string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// LogData backs the eLog topic and EVENT_LOG bus events.
type LogData struct {
	Msg       string
	Level     string
	Source    string
	Timestamp time.Time
}

// HarmonyResult is the aggregate the harmony orchestrator returns for
// one connected broker kind.
type HarmonyResult struct {
	Broker           string
	Filled           int
	SkippedAmbiguous int
	SkippedNoMatch   int
	Errors           []string
}

// ContractQuery is the default-filter contract-details request used by
// registry auto-fill: US + SMART + USD, STK, ticker- or conid-keyed.
type ContractQuery struct {
	Symbol   string
	Exchange string
	Currency string
	SecType  string
}

// DefaultContractQuery returns the auto-fill default filter for sym.
func DefaultContractQuery(sym string) ContractQuery {
	return ContractQuery{
		Symbol:   sym,
		Exchange: "SMART",
		Currency: "USD",
		SecType:  "STK",
	}
}
