// Package brokerb implements the broker-B adapter: an async
// socket-protocol broker modeled on request/response multiplexing over
// a single connection (reqid-tagged requests, streaming callbacks). A
// single goroutine owns the connection and all protocol state; other
// goroutines interact with it only by posting closures onto its
// command channel or by receiving results from a completion channel.
package brokerb

import (
	"context"
	"time"

	"github.com/rfzwl/janus/internal/domain"
)

// TickField tags which quote field a tickPrice/tickSize/tickString
// callback updates.
type TickField int

const (
	FieldBid TickField = iota
	FieldAsk
	FieldLast
	FieldBidSize
	FieldAskSize
	FieldVolume
	FieldLastTimestamp
)

// ContractSpec is the wire-level contract description sent with a
// market-data, order, or contract-details request.
type ContractSpec struct {
	Symbol   string
	Exchange string
	Currency string
	SecType  string
	ConID    int64
}

// OrderSpec is the wire-level order sent with PlaceOrder.
type OrderSpec struct {
	Action    string // "BUY" | "SELL"
	OrderType string // "MKT" | "LMT" | "STP" | "STP LMT"
	Quantity  float64
	LimitPrice float64
	AuxPrice  float64 // stop price
	TIF       string
}

// ContractDetailsPayload is one candidate returned by a contract
// details request.
type ContractDetailsPayload struct {
	Contract    ContractSpec
	MinTick     float64
	MinVolume   float64
	ProductType string
}

// Transport is the socket-protocol surface a Client drives. The
// request methods run on the Client's I/O goroutine; Dial and Close
// are called from Connect, the reconnect handler and Close. A real implementation
// frames requests over a TCP connection; tests substitute a fake that
// records calls and drives callbacks synchronously.
type Transport interface {
	Dial(ctx context.Context, addr string) error
	Close() error
	Connected() bool

	ReqMktData(reqID int64, contract ContractSpec) error
	CancelMktData(reqID int64) error
	ReqContractDetails(reqID int64, query domain.ContractQuery) error
	PlaceOrder(orderID int64, contract ContractSpec, spec OrderSpec) error
	CancelOrder(orderID int64) error
	ReqAccountUpdates(subscribe bool, accountAlias string) error
	ReqPositions() error
	ReqOpenOrders() error
}

// Callbacks is implemented by Client and invoked by a Transport
// whenever the broker pushes a message. All calls happen on the
// Client's I/O goroutine in a real transport; the fake transport used
// in tests calls these directly, still single-goroutine per test.
type Callbacks interface {
	TickPrice(reqID int64, field TickField, price float64)
	TickSize(reqID int64, field TickField, size float64)
	TickString(reqID int64, field TickField, value string)
	ContractDetails(reqID int64, payload ContractDetailsPayload)
	ContractDetailsEnd(reqID int64)
	OpenOrder(orderID int64, contract ContractSpec, spec OrderSpec)
	OrderStatus(orderID int64, status string, traded, avgFillPrice float64)
	ExecDetails(orderID int64, execID string, price, volume float64, ts time.Time)
	Error(reqID int64, code int, msg string)
	ConnectionClosed()
}
