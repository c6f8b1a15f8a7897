package brokerb

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/eventbus"
	"github.com/rfzwl/janus/internal/gateway"
	"go.uber.org/zap"
)

type requestKind int

const (
	requestKindContractDetails requestKind = iota
)

// pendingRequest tracks one outstanding reqid-tagged request. Mutated
// only on the loop goroutine, so it carries no lock.
type pendingRequest struct {
	kind    requestKind
	results []ContractDetailsPayload
	done    chan struct{}
}

// Client is the broker-B adapter: a single goroutine owns the
// connection and all protocol state (§4.5). Every exported method
// posts a closure onto cmdCh and, where a result is needed, waits on a
// dedicated completion channel bounded by the caller's context.
type Client struct {
	accountAlias string
	addr         string
	transport    Transport
	bus          *eventbus.Bus
	logger       *zap.Logger

	cmdCh chan func()
	done  chan struct{}

	nextReqID   int64
	nextOrderID int64

	// Fields below are only ever touched on the loop goroutine.
	pending       map[int64]*pendingRequest
	ticksByReqID  map[int64]*domain.TickData
	reqIDBySymbol map[string]int64
	subscribed    map[string]gateway.SubscribeRequest
	orders        map[string]domain.OrderData // vt_orderid -> order
	orderIDToVt   map[int64]string
	contracts     map[string]domain.ContractData

	connectedFlag atomic.Bool
	unknownStatusLogged map[string]bool
}

// NewClient constructs a broker-B adapter bound to accountAlias, using
// transport for wire I/O and bus to publish domain events.
func NewClient(accountAlias, addr string, transport Transport, bus *eventbus.Bus, logger *zap.Logger) *Client {
	return &Client{
		accountAlias:  accountAlias,
		addr:          addr,
		transport:     transport,
		bus:           bus,
		logger:        logger.With(zap.String("adapter", "broker_b"), zap.String("account", accountAlias)),
		cmdCh:         make(chan func(), 256),
		done:          make(chan struct{}),
		pending:       make(map[int64]*pendingRequest),
		ticksByReqID:  make(map[int64]*domain.TickData),
		reqIDBySymbol: make(map[string]int64),
		subscribed:    make(map[string]gateway.SubscribeRequest),
		orders:        make(map[string]domain.OrderData),
		orderIDToVt:   make(map[int64]string),
		contracts:     make(map[string]domain.ContractData),
		unknownStatusLogged: make(map[string]bool),
	}
}

// NewSocketClient constructs a production Client wired to a real
// SocketTransport. The transport needs the Client's own postAsync and
// Callbacks, so it is built after the Client rather than passed into
// NewClient by the caller.
func NewSocketClient(accountAlias, addr string, bus *eventbus.Bus, logger *zap.Logger) *Client {
	c := NewClient(accountAlias, addr, nil, bus, logger)
	c.transport = NewSocketTransport(c.postAsync, c)
	return c
}

// Connect dials the transport and starts the I/O loop goroutine. It
// blocks until the dial completes or ctx expires; the loop keeps
// running after Connect returns.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Dial(ctx, c.addr); err != nil {
		return fmt.Errorf("%w: dial: %v", domain.ErrBrokerTransient, err)
	}
	c.connectedFlag.Store(true)
	go c.loop()

	if err := c.QueryAccount(); err != nil {
		return err
	}
	if err := c.QueryPosition(); err != nil {
		return err
	}
	return c.QueryOpenOrders()
}

// Close stops the loop and closes the transport.
func (c *Client) Close() error {
	close(c.done)
	return c.transport.Close()
}

// loop is the single goroutine that owns the connection and all
// protocol state: the cooperative scheduler spec.md §4.5 describes.
func (c *Client) loop() {
	for {
		select {
		case fn := <-c.cmdCh:
			fn()
		case <-c.done:
			return
		}
	}
}

// post schedules fn onto the loop goroutine and waits for it to run,
// bounded by ctx. Used by synchronous gateway methods.
func (c *Client) post(ctx context.Context, fn func()) error {
	doneCh := make(chan struct{})
	select {
	case c.cmdCh <- func() { fn(); close(doneCh) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("%w: adapter closed", domain.ErrBrokerPermanent)
	}
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// postAsync schedules fn onto the loop without waiting.
func (c *Client) postAsync(fn func()) {
	select {
	case c.cmdCh <- fn:
	case <-c.done:
	}
}

func (c *Client) allocReqID() int64 { return atomic.AddInt64(&c.nextReqID, 1) }
func (c *Client) allocOrderID() int64 { return atomic.AddInt64(&c.nextOrderID, 1) }

func (c *Client) vtOrderID(orderID int64) string {
	return fmt.Sprintf("%s.%d", c.accountAlias, orderID)
}

// Capabilities reports every order type broker B supports.
func (c *Client) Capabilities() gateway.CapabilitySet {
	return gateway.CapabilitySet(gateway.CapMarket | gateway.CapLimit | gateway.CapStop | gateway.CapStopLimit)
}

// AccountAlias identifies the account this client serves.
func (c *Client) AccountAlias() string { return c.accountAlias }

var _ gateway.BrokerGateway = (*Client)(nil)
