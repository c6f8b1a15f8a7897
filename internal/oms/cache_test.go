package oms

import (
	"context"
	"testing"
	"time"

	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestActiveOrderLifecycle(t *testing.T) {
	bus := eventbus.New(zap.NewNop(), 0)
	cache := New()
	cache.Attach(bus)
	bus.Start(context.Background())
	defer bus.Stop()

	vtID := "ib_main.1"
	bus.Publish(domain.OrderEvent(domain.OrderData{VtOrderID: vtID, Status: domain.OrderStatusSubmitting, Volume: 10}))
	waitFor(t, func() bool { return cache.IsActive(vtID) })

	bus.Publish(domain.OrderEvent(domain.OrderData{VtOrderID: vtID, Status: domain.OrderStatusNotTraded, Volume: 10}))
	waitFor(t, func() bool { return cache.IsActive(vtID) })

	bus.Publish(domain.OrderEvent(domain.OrderData{VtOrderID: vtID, Status: domain.OrderStatusAllTraded, Volume: 10, Traded: 10}))
	waitFor(t, func() bool { return !cache.IsActive(vtID) })

	o, ok := cache.Order(vtID)
	assert.True(t, ok)
	assert.Equal(t, domain.OrderStatusAllTraded, o.Status)
	assert.Empty(t, cache.ActiveOrders())
}

func TestZeroVolumePositionIsEvicted(t *testing.T) {
	bus := eventbus.New(zap.NewNop(), 0)
	cache := New()
	cache.Attach(bus)
	bus.Start(context.Background())
	defer bus.Stop()

	bus.Publish(domain.PositionEvent(domain.PositionData{AccountAlias: "acct", Symbol: "TSLA", Direction: domain.DirectionShort, Volume: 5}))
	waitFor(t, func() bool {
		_, ok := cache.Position("acct", "TSLA", domain.DirectionShort)
		return ok
	})

	bus.Publish(domain.PositionEvent(domain.PositionData{AccountAlias: "acct", Symbol: "TSLA", Direction: domain.DirectionShort, Volume: 0}))
	waitFor(t, func() bool {
		_, ok := cache.Position("acct", "TSLA", domain.DirectionShort)
		return !ok
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
