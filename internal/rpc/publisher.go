package rpc

import (
	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/eventbus"
)

// AttachPublisher subscribes server to every event bus kind and
// forwards each as a topic-tagged EventMessage to every connected
// client (§6's "all topics" fan-out; per-client topic filtering is a
// future addition the Subscriptions field on Client already makes
// room for). EVENT_TIMER is intentionally not forwarded — it is an
// internal reconnect/health-check tick, not a client-facing event.
func AttachPublisher(bus *eventbus.Bus, server *Server) {
	bus.SubscribeAll(func(e domain.Event) {
		if e.Kind == domain.EventTimer {
			return
		}
		server.Broadcast(EventMessage{Topic: e.Topic(), Data: payloadOf(e)})
	})
}

func payloadOf(e domain.Event) interface{} {
	switch e.Kind {
	case domain.EventTick:
		return e.Tick
	case domain.EventTrade:
		return e.Trade
	case domain.EventOrder:
		return e.Order
	case domain.EventPosition:
		return e.Position
	case domain.EventAccount:
		return e.Account
	case domain.EventContract:
		return e.Contract
	case domain.EventLog:
		return e.Log
	case domain.EventBar:
		return e.Bar
	default:
		return nil
	}
}
