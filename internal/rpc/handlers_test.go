package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rfzwl/janus/internal/config"
	"github.com/rfzwl/janus/internal/db/models"
	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/gateway"
	"github.com/rfzwl/janus/internal/harmony"
	"github.com/rfzwl/janus/internal/oms"
	"github.com/rfzwl/janus/internal/registry"
	"github.com/rfzwl/janus/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeGateway struct {
	caps       gateway.CapabilitySet
	sentOrders []gateway.OrderRequest
	barsSubs   []gateway.BarsRequest
	barsUnsubs []gateway.BarsRequest
}

func (f *fakeGateway) Connect(ctx context.Context) error                { return nil }
func (f *fakeGateway) Close() error                                     { return nil }
func (f *fakeGateway) Subscribe(req gateway.SubscribeRequest) error      { return nil }
func (f *fakeGateway) Unsubscribe(req gateway.SubscribeRequest) error    { return nil }
func (f *fakeGateway) SubscribeBars(req gateway.BarsRequest) error {
	f.barsSubs = append(f.barsSubs, req)
	return nil
}
func (f *fakeGateway) UnsubscribeBars(req gateway.BarsRequest) error {
	f.barsUnsubs = append(f.barsUnsubs, req)
	return nil
}
func (f *fakeGateway) SendOrder(req gateway.OrderRequest) (string, error) {
	f.sentOrders = append(f.sentOrders, req)
	return "ib_main.1", nil
}
func (f *fakeGateway) CancelOrder(vtOrderID string) error { return nil }
func (f *fakeGateway) QueryAccount() error                { return nil }
func (f *fakeGateway) QueryPosition() error                { return nil }
func (f *fakeGateway) QueryOpenOrders() error              { return nil }
func (f *fakeGateway) RequestContractDetails(ctx context.Context, query domain.ContractQuery) ([]registry.ContractDetails, error) {
	return nil, nil
}
func (f *fakeGateway) Capabilities() gateway.CapabilitySet { return f.caps }
func (f *fakeGateway) AccountAlias() string                { return "ib_main" }

func newTestService(t *testing.T) (*Service, *fakeGateway) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.SymbolRegistryRecord{}))
	reg := registry.New(db, zap.NewNop())
	require.NoError(t, reg.Load(context.Background()))
	_, err = reg.Ensure(context.Background(), "AAPL", registry.EnsureFields{BrokerBConID: 265598})
	require.NoError(t, err)

	gw := &fakeGateway{caps: gateway.CapabilitySet(gateway.CapLimit | gateway.CapMarket | gateway.CapBars)}
	cache := oms.New()
	r := router.New(reg, cache, map[string]router.Broker{
		"ib_main": {Gateway: gw, Kind: config.BrokerB, AutoFill: true},
	})
	h := harmony.New(reg)

	server := newTestServer()
	accounts := map[string]AccountBinding{
		"ib_main": {Config: config.AccountConfig{Alias: "ib_main", Broker: config.BrokerB, Default: true}, Gateway: gw},
	}
	svc := NewService(server, r, cache, h, accounts, nil)
	return svc, gw
}

func TestHandleSendOrderIntentHappyPath(t *testing.T) {
	svc, gw := newTestService(t)
	client := newTestClient()

	params, _ := json.Marshal(SendOrderIntentParams{
		AccountAlias: "ib_main", Symbol: "AAPL", Side: "BUY", Type: "LIMIT",
		Qty: 10, LimitPrice: 150, TIF: "GTC",
	})

	result, err := svc.handleSendOrderIntent(client, params)
	require.NoError(t, err)
	require.Len(t, gw.sentOrders, 1)
	assert.Equal(t, "ib_main.1", result.(map[string]string)["vt_orderid"])
}

func TestHandleSendOrderIntentRejectsMissingLimitPrice(t *testing.T) {
	svc, gw := newTestService(t)
	client := newTestClient()

	params, _ := json.Marshal(SendOrderIntentParams{
		AccountAlias: "ib_main", Symbol: "AAPL", Side: "BUY", Type: "LIMIT",
		Qty: 10, TIF: "GTC",
	})

	_, err := svc.handleSendOrderIntent(client, params)
	assert.ErrorIs(t, err, domain.ErrInvalidIntent)
	assert.Empty(t, gw.sentOrders)
}

func TestHandleBrokerListReportsConfiguredAccounts(t *testing.T) {
	svc, _ := newTestService(t)
	result, err := svc.handleBrokerList(newTestClient(), nil)
	require.NoError(t, err)
	entries := result.([]BrokerListEntry)
	require.Len(t, entries, 1)
	assert.Equal(t, "ib_main", entries[0].AccountAlias)
	assert.True(t, entries[0].Default)
}

func TestHandleSubscribeBarsUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t)
	params, _ := json.Marshal(SubscribeBarsParams{Symbols: []string{"AAPL"}, AccountAlias: "nope"})

	_, err := svc.handleSubscribeBars(newTestClient(), params)
	assert.ErrorIs(t, err, domain.ErrUnknownBroker)
}

func TestHandleSubscribeBarsDispatchesToGateway(t *testing.T) {
	svc, gw := newTestService(t)
	params, _ := json.Marshal(SubscribeBarsParams{Symbols: []string{"AAPL", "MSFT"}, AccountAlias: "ib_main"})

	_, err := svc.handleSubscribeBars(newTestClient(), params)
	require.NoError(t, err)
	require.Len(t, gw.barsSubs, 2)
}
