package brokera

import (
	"context"
	"testing"
	"time"

	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/eventbus"
	"github.com/rfzwl/janus/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTransport struct {
	placeOrderResp OrderAck
	placeOrderErr  error
}

func (f *fakeTransport) PlaceOrder(ctx context.Context, spec OrderSpec) (OrderAck, error) {
	return f.placeOrderResp, f.placeOrderErr
}
func (f *fakeTransport) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (f *fakeTransport) QueryAccount(ctx context.Context) (AccountSnapshot, error) {
	return AccountSnapshot{}, nil
}
func (f *fakeTransport) QueryPositions(ctx context.Context) ([]PositionSnapshot, error) {
	return nil, nil
}
func (f *fakeTransport) QueryOpenOrders(ctx context.Context) ([]OpenOrderSnapshot, error) {
	return nil, nil
}
func (f *fakeTransport) QueryContractDetails(ctx context.Context, ticker string) ([]ContractPayload, error) {
	return nil, nil
}

type fakeStream struct{ closed bool }

func (f *fakeStream) Connect(ctx context.Context) error { return nil }
func (f *fakeStream) Recv() (StreamEvent, error)        { <-make(chan struct{}); return StreamEvent{}, nil }
func (f *fakeStream) Close() error                      { f.closed = true; return nil }

func newTestAdapter(t *testing.T) (*Adapter, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{}
	bus := eventbus.New(zap.NewNop(), 0)
	a, err := NewAdapter(Config{AccountAlias: "acct_a", RefreshDebounceMs: 50}, transport, &fakeStream{}, bus, zap.NewNop(), 4)
	require.NoError(t, err)
	return a, transport
}

func TestSendOrderEmitsSubmittingBeforeReturning(t *testing.T) {
	a, transport := newTestAdapter(t)
	defer a.Close()
	transport.placeOrderResp = OrderAck{OrderID: "broker123"}

	var got domain.OrderData
	bus := eventbus.New(zap.NewNop(), 0)
	bus.Subscribe(domain.EventOrder, func(e domain.Event) { got = *e.Order })
	bus.Start(context.Background())
	defer bus.Stop()
	a.bus = bus

	vtID, err := a.SendOrder(gateway.OrderRequest{
		AccountAlias: "acct_a",
		Symbol:       "AAPL",
		Direction:    domain.DirectionLong,
		Type:         domain.OrderTypeLimit,
		Volume:       10,
		Price:        150,
		TIF:          domain.TimeInForceGTC,
	})
	require.NoError(t, err)
	waitFor(t, func() bool { return got.VtOrderID == vtID })
	assert.Equal(t, domain.OrderStatusSubmitting, got.Status)
}

func TestResolveOrderStatusExplicitFilledSplitsOnQty(t *testing.T) {
	status := resolveOrderStatus(domain.OrderStatusNotTraded, OrderEventPayload{
		OrderStatus: "FILLED", Qty: 10, FilledQty: 5,
	})
	assert.Equal(t, domain.OrderStatusPartTraded, status)

	status = resolveOrderStatus(domain.OrderStatusNotTraded, OrderEventPayload{
		OrderStatus: "FILLED", Qty: 10, FilledQty: 10,
	})
	assert.Equal(t, domain.OrderStatusAllTraded, status)
}

func TestResolveOrderStatusFallsBackToSceneType(t *testing.T) {
	status := resolveOrderStatus(domain.OrderStatusNotTraded, OrderEventPayload{SceneType: "FINAL_FILLED"})
	assert.Equal(t, domain.OrderStatusAllTraded, status)
}

func TestResolveOrderStatusModifySuccessPreservesStatus(t *testing.T) {
	status := resolveOrderStatus(domain.OrderStatusPartTraded, OrderEventPayload{SceneType: "MODIFY_SUCCESS"})
	assert.Equal(t, domain.OrderStatusPartTraded, status)
}

func TestOrderIDResolutionPriority(t *testing.T) {
	a, _ := newTestAdapter(t)
	defer a.Close()

	bus := eventbus.New(zap.NewNop(), 0)
	var emitted []domain.OrderData
	bus.Subscribe(domain.EventOrder, func(e domain.Event) { emitted = append(emitted, *e.Order) })
	bus.Start(context.Background())
	defer bus.Stop()
	a.bus = bus

	a.mu.Lock()
	a.clientOrderIDMap["client-1"] = "acct_a.client-1"
	a.mu.Unlock()

	a.onOrderEvent(OrderEventPayload{ClientOrderID: "client-1", OrderStatus: "SUBMITTED"})
	waitFor(t, func() bool { return len(emitted) == 1 })
	assert.Equal(t, "acct_a.client-1", emitted[0].VtOrderID)
}

func TestDebouncedRefreshCoalesces(t *testing.T) {
	var calls int
	d := newDebouncedRefresh(30*time.Millisecond, func() { calls++ })
	d.trigger()
	d.trigger()
	d.trigger()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, calls)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
