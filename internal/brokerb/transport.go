package brokerb

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rfzwl/janus/internal/domain"
)

// wireMessage is the newline-delimited JSON envelope exchanged over the
// socket. Type tags which payload field is populated; this keeps the
// protocol trivially extensible without a generated schema.
type wireMessage struct {
	Type   string          `json:"type"`
	ReqID  int64           `json:"reqid,omitempty"`
	OrderID int64          `json:"order_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SocketTransport is the production Transport: a single TCP connection
// framed with newline-delimited JSON. The request methods are called
// from the Client's loop goroutine; Dial and Close run on other
// goroutines, so conn and enc are guarded by mu. The read loop runs on its own goroutine and forwards every inbound
// message to Callbacks via a posting function supplied at construction,
// preserving the single-writer-state discipline the Client relies on.
type SocketTransport struct {
	post func(func())
	cb   Callbacks

	mu   sync.Mutex
	conn net.Conn
	enc  *json.Encoder
}

// NewSocketTransport constructs a transport that delivers every
// callback by calling post(fn) — the caller passes Client.postAsync so
// callbacks are serialized onto the I/O loop goroutine alongside
// outgoing commands.
func NewSocketTransport(post func(func()), cb Callbacks) *SocketTransport {
	return &SocketTransport{post: post, cb: cb}
}

func (t *SocketTransport) Dial(ctx context.Context, addr string) error {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.conn = conn
	t.enc = json.NewEncoder(conn)
	t.mu.Unlock()

	go t.readLoop(conn)
	return nil
}

func (t *SocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

func (t *SocketTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

func (t *SocketTransport) send(msg wireMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enc == nil {
		return fmt.Errorf("%w: not connected", domain.ErrBrokerTransient)
	}
	return t.enc.Encode(msg)
}

func (t *SocketTransport) ReqMktData(reqID int64, contract ContractSpec) error {
	payload, _ := json.Marshal(contract)
	return t.send(wireMessage{Type: "reqMktData", ReqID: reqID, Payload: payload})
}

func (t *SocketTransport) CancelMktData(reqID int64) error {
	return t.send(wireMessage{Type: "cancelMktData", ReqID: reqID})
}

func (t *SocketTransport) ReqContractDetails(reqID int64, query domain.ContractQuery) error {
	payload, _ := json.Marshal(query)
	return t.send(wireMessage{Type: "reqContractDetails", ReqID: reqID, Payload: payload})
}

func (t *SocketTransport) PlaceOrder(orderID int64, contract ContractSpec, spec OrderSpec) error {
	payload, _ := json.Marshal(struct {
		Contract ContractSpec
		Order    OrderSpec
	}{contract, spec})
	return t.send(wireMessage{Type: "placeOrder", OrderID: orderID, Payload: payload})
}

func (t *SocketTransport) CancelOrder(orderID int64) error {
	return t.send(wireMessage{Type: "cancelOrder", OrderID: orderID})
}

func (t *SocketTransport) ReqAccountUpdates(subscribe bool, accountAlias string) error {
	payload, _ := json.Marshal(struct {
		Subscribe bool
		Account   string
	}{subscribe, accountAlias})
	return t.send(wireMessage{Type: "reqAccountUpdates", Payload: payload})
}

func (t *SocketTransport) ReqPositions() error {
	return t.send(wireMessage{Type: "reqPositions"})
}

func (t *SocketTransport) ReqOpenOrders() error {
	return t.send(wireMessage{Type: "reqOpenOrders"})
}

// readLoop decodes newline-delimited JSON messages and dispatches each
// to the matching Callbacks method via t.post, so the Client's loop
// goroutine remains the only goroutine mutating adapter state.
func (t *SocketTransport) readLoop(conn net.Conn) {
	dec := json.NewDecoder(bufio.NewReader(conn))
	for {
		var msg wireMessage
		if err := dec.Decode(&msg); err != nil {
			t.post(func() { t.cb.ConnectionClosed() })
			return
		}
		t.dispatch(msg)
	}
}

func (t *SocketTransport) dispatch(msg wireMessage) {
	switch msg.Type {
	case "tickPrice":
		var p struct {
			Field TickField
			Price float64
		}
		if json.Unmarshal(msg.Payload, &p) == nil {
			t.post(func() { t.cb.TickPrice(msg.ReqID, p.Field, p.Price) })
		}
	case "tickSize":
		var p struct {
			Field TickField
			Size  float64
		}
		if json.Unmarshal(msg.Payload, &p) == nil {
			t.post(func() { t.cb.TickSize(msg.ReqID, p.Field, p.Size) })
		}
	case "tickString":
		var p struct {
			Field TickField
			Value string
		}
		if json.Unmarshal(msg.Payload, &p) == nil {
			t.post(func() { t.cb.TickString(msg.ReqID, p.Field, p.Value) })
		}
	case "contractDetails":
		var p ContractDetailsPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			t.post(func() { t.cb.ContractDetails(msg.ReqID, p) })
		}
	case "contractDetailsEnd":
		t.post(func() { t.cb.ContractDetailsEnd(msg.ReqID) })
	case "openOrder":
		var p struct {
			Contract ContractSpec
			Order    OrderSpec
		}
		if json.Unmarshal(msg.Payload, &p) == nil {
			t.post(func() { t.cb.OpenOrder(msg.OrderID, p.Contract, p.Order) })
		}
	case "orderStatus":
		var p struct {
			Status       string
			Traded       float64
			AvgFillPrice float64
		}
		if json.Unmarshal(msg.Payload, &p) == nil {
			t.post(func() { t.cb.OrderStatus(msg.OrderID, p.Status, p.Traded, p.AvgFillPrice) })
		}
	case "execDetails":
		var p struct {
			ExecID string
			Price  float64
			Volume float64
		}
		if json.Unmarshal(msg.Payload, &p) == nil {
			t.post(func() { t.cb.ExecDetails(msg.OrderID, p.ExecID, p.Price, p.Volume, time.Now()) })
		}
	case "error":
		var p struct {
			Code int
			Msg  string
		}
		if json.Unmarshal(msg.Payload, &p) == nil {
			t.post(func() { t.cb.Error(msg.ReqID, p.Code, p.Msg) })
		}
	}
}
