package brokera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/eventbus"
	"github.com/rfzwl/janus/internal/gateway"
	"github.com/rfzwl/janus/internal/registry"
	"go.uber.org/zap"
)

// Adapter is the broker-A adapter: a worker pool serves the
// synchronous HTTP SDK calls (never on the event-bus worker or the
// streaming goroutine), while a dedicated daemon goroutine runs the
// trade-events state machine for this account (§4.6).
type Adapter struct {
	accountAlias string
	transport    HTTPTransport
	stream       TradeEventsStream
	bus          *eventbus.Bus
	logger       *zap.Logger
	pool         *ants.Pool

	streamStateMu sync.Mutex
	streamState   streamState

	mu               sync.Mutex
	orders           map[string]domain.OrderData // vt_orderid -> order
	clientOrderIDMap map[string]string           // client_order_id or broker order_id -> vt_orderid
	subscribed       map[string]gateway.SubscribeRequest

	refresh *debouncedRefresh

	cancel context.CancelFunc
}

// Config bundles the constructor arguments an Adapter needs beyond
// bus/logger, kept small since most fields come from config.AccountConfig.
type Config struct {
	AccountAlias      string
	RefreshDebounceMs int
}

// NewAdapter constructs a broker-A adapter. poolSize bounds the ants
// worker pool used for HTTP SDK dispatch.
func NewAdapter(cfg Config, transport HTTPTransport, stream TradeEventsStream, bus *eventbus.Bus, logger *zap.Logger, poolSize int) (*Adapter, error) {
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("broker_a worker pool: %w", err)
	}

	a := &Adapter{
		accountAlias:     cfg.AccountAlias,
		transport:        transport,
		stream:           stream,
		bus:              bus,
		logger:           logger.With(zap.String("adapter", "broker_a"), zap.String("account", cfg.AccountAlias)),
		pool:             pool,
		orders:           make(map[string]domain.OrderData),
		clientOrderIDMap: make(map[string]string),
		subscribed:       make(map[string]gateway.SubscribeRequest),
	}
	debounceMs := cfg.RefreshDebounceMs
	if debounceMs <= 0 {
		debounceMs = 1500
	}
	a.refresh = newDebouncedRefresh(time.Duration(debounceMs)*time.Millisecond, a.doRefresh)
	return a, nil
}

// runOnPool dispatches fn onto the worker pool and blocks the caller
// until it completes or ctx expires, satisfying "gateway methods
// return promptly" by bounding the wait rather than by not waiting.
// CancelOrder waits here; SendOrder and the Query* methods only submit
// to the pool and return.
func (a *Adapter) runOnPool(ctx context.Context, fn func() error) error {
	resultCh := make(chan error, 1)
	submitErr := a.pool.Submit(func() {
		resultCh <- fn()
	})
	if submitErr != nil {
		return fmt.Errorf("%w: worker pool submit: %v", domain.ErrBrokerTransient, submitErr)
	}
	select {
	case err := <-resultCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect performs the first snapshot burst and starts the trade-events
// state machine goroutine.
func (a *Adapter) Connect(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.QueryAccount(); err != nil {
		cancel()
		return err
	}
	if err := a.QueryPosition(); err != nil {
		cancel()
		return err
	}
	if err := a.QueryOpenOrders(); err != nil {
		cancel()
		return err
	}

	go a.tradeEventsLoop(loopCtx)
	return nil
}

// Close stops the trade-events goroutine and releases the worker pool.
func (a *Adapter) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.refresh.stop()
	a.pool.Release()
	return a.stream.Close()
}

// Capabilities reports every order type broker A supports in this
// core; STOP_LIMIT support varies by broker version per §9 — this
// deployment enables it.
func (a *Adapter) Capabilities() gateway.CapabilitySet {
	return gateway.CapabilitySet(gateway.CapMarket | gateway.CapLimit | gateway.CapStop | gateway.CapStopLimit)
}

// AccountAlias identifies the account this adapter serves.
func (a *Adapter) AccountAlias() string { return a.accountAlias }

// SubscribeBars is not part of broker A's HTTP surface in this core.
func (a *Adapter) SubscribeBars(req gateway.BarsRequest) error { return nil }

// UnsubscribeBars mirrors SubscribeBars.
func (a *Adapter) UnsubscribeBars(req gateway.BarsRequest) error { return nil }

// Subscribe records req for potential future use; broker A's market
// data is out of this core's scope beyond the registry's contract
// lookups, so this only tracks the request.
func (a *Adapter) Subscribe(req gateway.SubscribeRequest) error {
	a.mu.Lock()
	a.subscribed[req.VtSymbol] = req
	a.mu.Unlock()
	return nil
}

// Unsubscribe removes req from the tracked set.
func (a *Adapter) Unsubscribe(req gateway.SubscribeRequest) error {
	a.mu.Lock()
	delete(a.subscribed, req.VtSymbol)
	a.mu.Unlock()
	return nil
}

var _ gateway.BrokerGateway = (*Adapter)(nil)
var _ registry.ContractResolver = (*Adapter)(nil)
