package rpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAttachPublisherForwardsTickToClients(t *testing.T) {
	bus := eventbus.New(zap.NewNop(), 0)
	server := newTestServer()
	AttachPublisher(bus, server)

	client := newTestClient()
	server.clientsMux.Lock()
	server.clients[client.ID] = client
	server.clientsMux.Unlock()

	bus.Start(context.Background())
	defer bus.Stop()

	bus.Publish(domain.TickEvent(domain.TickData{Symbol: "AAPL", Last: 150}))

	select {
	case raw := <-client.Send:
		var msg EventMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "eTick.AAPL", msg.Topic)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published tick")
	}
}

func TestAttachPublisherDropsTimerEvents(t *testing.T) {
	bus := eventbus.New(zap.NewNop(), 0)
	server := newTestServer()
	AttachPublisher(bus, server)

	client := newTestClient()
	server.clientsMux.Lock()
	server.clients[client.ID] = client
	server.clientsMux.Unlock()

	bus.Start(context.Background())
	defer bus.Stop()

	bus.Publish(domain.Event{Kind: domain.EventTimer})
	bus.Publish(domain.TradeEvent(domain.TradeData{VtTradeID: "t1"}))

	select {
	case raw := <-client.Send:
		var msg EventMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "eTrade", msg.Topic, "the timer event must never reach a client")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published trade")
	}
}
