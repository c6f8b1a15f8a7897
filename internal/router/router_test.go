package router

import (
	"context"
	"testing"

	"github.com/rfzwl/janus/internal/config"
	"github.com/rfzwl/janus/internal/db/models"
	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/gateway"
	"github.com/rfzwl/janus/internal/oms"
	"github.com/rfzwl/janus/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeGateway struct {
	caps         gateway.CapabilitySet
	sentOrders   []gateway.OrderRequest
	contractHits []registry.ContractDetails
	contractErr  error
	nextVtID     string
}

func (f *fakeGateway) Connect(ctx context.Context) error { return nil }
func (f *fakeGateway) Close() error                      { return nil }
func (f *fakeGateway) Subscribe(req gateway.SubscribeRequest) error   { return nil }
func (f *fakeGateway) Unsubscribe(req gateway.SubscribeRequest) error { return nil }
func (f *fakeGateway) SubscribeBars(req gateway.BarsRequest) error    { return nil }
func (f *fakeGateway) UnsubscribeBars(req gateway.BarsRequest) error  { return nil }
func (f *fakeGateway) SendOrder(req gateway.OrderRequest) (string, error) {
	f.sentOrders = append(f.sentOrders, req)
	return f.nextVtID, nil
}
func (f *fakeGateway) CancelOrder(vtOrderID string) error { return nil }
func (f *fakeGateway) QueryAccount() error                { return nil }
func (f *fakeGateway) QueryPosition() error                { return nil }
func (f *fakeGateway) QueryOpenOrders() error              { return nil }
func (f *fakeGateway) RequestContractDetails(ctx context.Context, query domain.ContractQuery) ([]registry.ContractDetails, error) {
	return f.contractHits, f.contractErr
}
func (f *fakeGateway) Capabilities() gateway.CapabilitySet { return f.caps }
func (f *fakeGateway) AccountAlias() string                { return "acct" }

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.SymbolRegistryRecord{}))
	r := registry.New(db, zap.NewNop())
	require.NoError(t, r.Load(context.Background()))
	return r
}

func TestRouteHappyLimitBuyBrokerB(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	_, err := reg.Ensure(ctx, "AAPL", registry.EnsureFields{BrokerBConID: 265598})
	require.NoError(t, err)

	gw := &fakeGateway{caps: gateway.CapabilitySet(gateway.CapLimit), nextVtID: "ib_main.1"}
	cache := oms.New()
	r := New(reg, cache, map[string]Broker{
		"ib_main": {Gateway: gw, Kind: config.BrokerB, AutoFill: true},
	})

	vtID, err := r.Route(ctx, domain.OrderIntent{
		AccountAlias: "ib_main", Symbol: "AAPL", Side: domain.OrderSideBuy,
		Type: domain.OrderTypeLimit, Qty: 10, LimitPrice: 150, TIF: domain.TimeInForceGTC,
	})
	require.NoError(t, err)
	assert.Equal(t, "ib_main.1", vtID)
	require.Len(t, gw.sentOrders, 1)
	assert.Equal(t, domain.DirectionLong, gw.sentOrders[0].Direction)
}

func TestRouteAmbiguousAutoFillRejectsAndDoesNotSend(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	gw := &fakeGateway{
		caps: gateway.CapabilitySet(gateway.CapMarket),
		contractHits: []registry.ContractDetails{
			{Contract: domain.ContractData{VtSymbol: "ACME"}, BrokerBConID: 1},
			{Contract: domain.ContractData{VtSymbol: "ACME"}, BrokerBConID: 2},
		},
	}
	cache := oms.New()
	r := New(reg, cache, map[string]Broker{
		"ib_main": {Gateway: gw, Kind: config.BrokerB, AutoFill: true},
	})

	_, err := r.Route(ctx, domain.OrderIntent{
		AccountAlias: "ib_main", Symbol: "ACME", Side: domain.OrderSideBuy,
		Type: domain.OrderTypeMarket, Qty: 1, TIF: domain.TimeInForceGTC,
	})
	assert.ErrorIs(t, err, domain.ErrRegistryAmbiguous)
	assert.Empty(t, gw.sentOrders)

	_, ok := reg.LookupByCanonical("ACME")
	assert.False(t, ok, "registry must remain unchanged on ambiguous auto-fill")
}

func TestRouteShortSaleWithZeroPositionOpensShort(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	_, err := reg.Ensure(ctx, "TSLA", registry.EnsureFields{BrokerATicker: "TSLA"})
	require.NoError(t, err)

	gw := &fakeGateway{caps: gateway.CapabilitySet(gateway.CapMarket), nextVtID: "ats_main.1"}
	cache := oms.New()
	r := New(reg, cache, map[string]Broker{
		"ats_main": {Gateway: gw, Kind: config.BrokerA, AllowShort: true, AutoFill: true},
	})

	_, err = r.Route(ctx, domain.OrderIntent{
		AccountAlias: "ats_main", Symbol: "TSLA", Side: domain.OrderSideSell,
		Type: domain.OrderTypeMarket, Qty: 5, TIF: domain.TimeInForceGTC,
	})
	require.NoError(t, err)
	require.Len(t, gw.sentOrders, 1)
	assert.Equal(t, domain.DirectionShort, gw.sentOrders[0].Direction)
}

func TestRouteCapabilityGateRejectsUnsupportedType(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	_, err := reg.Ensure(ctx, "MSFT", registry.EnsureFields{BrokerATicker: "MSFT"})
	require.NoError(t, err)

	gw := &fakeGateway{caps: gateway.CapabilitySet(gateway.CapMarket | gateway.CapLimit)} // no stop-limit
	cache := oms.New()
	r := New(reg, cache, map[string]Broker{
		"ats_main": {Gateway: gw, Kind: config.BrokerA, AutoFill: true},
	})

	_, err = r.Route(ctx, domain.OrderIntent{
		AccountAlias: "ats_main", Symbol: "MSFT", Side: domain.OrderSideBuy,
		Type: domain.OrderTypeStopLimit, Qty: 100, StopPrice: 300, LimitPrice: 301, TIF: domain.TimeInForceGTC,
	})
	assert.ErrorIs(t, err, domain.ErrCapabilityUnsupported)
	assert.Empty(t, gw.sentOrders)
}
