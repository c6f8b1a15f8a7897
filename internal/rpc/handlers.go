package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rfzwl/janus/internal/config"
	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/gateway"
	"github.com/rfzwl/janus/internal/harmony"
	"github.com/rfzwl/janus/internal/oms"
	"github.com/rfzwl/janus/internal/router"
	"github.com/rfzwl/janus/internal/validation"
)

// AccountBinding pairs a configured account with the gateway serving it,
// for broker_list and subscribe_bars/unsubscribe_bars dispatch.
type AccountBinding struct {
	Config  config.AccountConfig
	Gateway gateway.BrokerGateway
}

// Service wires the RPC request/reply surface to the core components:
// the order router, OMS cache, harmony orchestrator and the configured
// account/gateway bindings subscribe_bars needs to reach an adapter.
type Service struct {
	server   *Server
	router   *router.Router
	oms      *oms.Cache
	harmony  *harmony.Orchestrator
	accounts map[string]AccountBinding
	brokers  []harmony.ConnectedBroker
	validate *validation.Validator
}

// NewService constructs a Service and registers every §6 method on server.
func NewService(server *Server, r *router.Router, cache *oms.Cache, h *harmony.Orchestrator, accounts map[string]AccountBinding, brokers []harmony.ConnectedBroker) *Service {
	s := &Service{
		server:   server,
		router:   r,
		oms:      cache,
		harmony:  h,
		accounts: accounts,
		brokers:  brokers,
		validate: validation.NewValidator(),
	}
	s.registerHandlers()
	return s
}

func (s *Service) registerHandlers() {
	s.server.Register("send_order_intent", s.handleSendOrderIntent)
	s.server.Register("cancel_order", s.handleCancelOrder)
	s.server.Register("sync", s.handleSync)
	s.server.Register("harmony", s.handleHarmony)
	s.server.Register("subscribe_bars", s.handleSubscribeBars)
	s.server.Register("unsubscribe_bars", s.handleUnsubscribeBars)
	s.server.Register("broker_list", s.handleBrokerList)
}

func (s *Service) handleSendOrderIntent(client *Client, raw []byte) (interface{}, error) {
	var p SendOrderIntentParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidIntent, err)
	}

	intent := domain.OrderIntent{
		AccountAlias: p.AccountAlias,
		Symbol:       p.Symbol,
		Side:         domain.OrderSide(p.Side),
		Type:         domain.OrderType(p.Type),
		Qty:          p.Qty,
		LimitPrice:   p.LimitPrice,
		StopPrice:    p.StopPrice,
		TIF:          domain.TimeInForce(p.TIF),
	}
	if err := s.validate.Validate(intent); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidIntent, err)
	}

	vtOrderID, err := s.router.Route(context.Background(), intent)
	if err != nil {
		return nil, err
	}
	return map[string]string{"vt_orderid": vtOrderID}, nil
}

func (s *Service) handleCancelOrder(client *Client, raw []byte) (interface{}, error) {
	var p CancelOrderParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidIntent, err)
	}
	if err := s.router.CancelOrder(p.AccountAlias, p.VtOrderID); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

// syncSnapshot is the sync() response body: every active order,
// non-zero position and known account the cache currently holds.
type syncSnapshot struct {
	Orders    []domain.OrderData    `json:"orders"`
	Positions []domain.PositionData `json:"positions"`
	Accounts  []domain.AccountData  `json:"accounts"`
}

func (s *Service) handleSync(client *Client, raw []byte) (interface{}, error) {
	snap := syncSnapshot{
		Orders:    s.oms.ActiveOrders(),
		Positions: s.oms.Positions(),
	}
	for alias := range s.accounts {
		if a, ok := s.oms.Account(alias); ok {
			snap.Accounts = append(snap.Accounts, a)
		}
	}
	return snap, nil
}

func (s *Service) handleHarmony(client *Client, raw []byte) (interface{}, error) {
	results, err := s.harmony.Run(context.Background(), s.brokers)
	if err != nil {
		return nil, err
	}
	out := HarmonySummary{Results: make([]HarmonyResultDTO, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, HarmonyResultDTO{
			Broker:           r.Broker,
			Filled:           r.Filled,
			SkippedAmbiguous: r.SkippedAmbiguous,
			SkippedNoMatch:   r.SkippedNoMatch,
			Errors:           r.Errors,
		})
	}
	return out, nil
}

func (s *Service) handleSubscribeBars(client *Client, raw []byte) (interface{}, error) {
	return s.dispatchBars(raw, false)
}

func (s *Service) handleUnsubscribeBars(client *Client, raw []byte) (interface{}, error) {
	return s.dispatchBars(raw, true)
}

func (s *Service) dispatchBars(raw []byte, unsubscribe bool) (interface{}, error) {
	var p SubscribeBarsParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidIntent, err)
	}
	binding, ok := s.accounts[p.AccountAlias]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownBroker, p.AccountAlias)
	}

	for _, sym := range p.Symbols {
		req := gateway.BarsRequest{VtSymbol: sym, RTH: p.RTH}
		var err error
		if unsubscribe {
			err = binding.Gateway.UnsubscribeBars(req)
		} else {
			err = binding.Gateway.SubscribeBars(req)
		}
		if err != nil {
			return nil, err
		}
	}
	return map[string]int{"count": len(p.Symbols)}, nil
}

func (s *Service) handleBrokerList(client *Client, raw []byte) (interface{}, error) {
	out := make([]BrokerListEntry, 0, len(s.accounts))
	for _, binding := range s.accounts {
		out = append(out, BrokerListEntry{
			AccountAlias: binding.Config.Alias,
			Broker:       string(binding.Config.Broker),
			Default:      binding.Config.Default,
		})
	}
	return out, nil
}
