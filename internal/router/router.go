// Package router implements the Order Router: OrderIntent -> resolved
// broker-specific OrderRequest, following §4.7's ordered steps
// (canonicalize, pre-validate/auto-fill, short-sale policy,
// capability gate, compose+send). Validation and capability errors
// are returned synchronously to the RPC caller; the router never
// blocks on broker network I/O beyond what SendOrder itself does.
package router

import (
	"context"
	"fmt"

	"github.com/rfzwl/janus/internal/config"
	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/gateway"
	"github.com/rfzwl/janus/internal/oms"
	"github.com/rfzwl/janus/internal/registry"
)

// Broker bundles a BrokerGateway with the config knobs the router
// needs per account: which broker-id field auto-fill targets, and
// whether auto-fill is allowed at all for this account.
type Broker struct {
	Gateway    gateway.BrokerGateway
	Kind       config.BrokerKind
	AllowShort bool
	AutoFill   bool
}

// Router is the Order Router component.
type Router struct {
	registry *registry.Registry
	oms      *oms.Cache
	brokers  map[string]Broker // account_alias -> broker
}

// New constructs a Router over reg/cache and the given account brokers.
func New(reg *registry.Registry, cache *oms.Cache, brokers map[string]Broker) *Router {
	return &Router{registry: reg, oms: cache, brokers: brokers}
}

// Route executes §4.7's pipeline and calls SendOrder on success,
// returning the vt_orderid.
func (r *Router) Route(ctx context.Context, intent domain.OrderIntent) (string, error) {
	broker, ok := r.brokers[intent.AccountAlias]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownBroker, intent.AccountAlias)
	}

	if err := validateIntent(intent); err != nil {
		return "", err
	}

	sym := registry.Normalize(intent.Symbol)
	entry, ok := r.registry.LookupByCanonical(sym)
	if !ok {
		if !broker.AutoFill {
			return "", fmt.Errorf("%w: %s", domain.ErrRegistryMiss, sym)
		}
		resolver, resolverOK := broker.Gateway.(registry.ContractResolver)
		if !resolverOK {
			return "", fmt.Errorf("%w: %s (adapter cannot resolve contracts)", domain.ErrRegistryMiss, sym)
		}
		var fillErr error
		entry, fillErr = autoFillFor(ctx, r.registry, broker.Kind, sym, resolver)
		if fillErr != nil {
			return "", fillErr
		}
	}

	if err := r.ensureBrokerID(ctx, broker, sym, entry); err != nil {
		return "", err
	}
	// Re-fetch in case ensureBrokerID performed an auto-fill write.
	if e, ok := r.registry.LookupByCanonical(sym); ok {
		entry = e
	}

	direction := r.resolveDirection(intent, broker)

	if !broker.Gateway.Capabilities().Has(gateway.CapabilityForType(intent.Type)) {
		return "", fmt.Errorf("%w: %s cannot express %s", domain.ErrCapabilityUnsupported, intent.AccountAlias, intent.Type)
	}

	req := gateway.OrderRequest{
		AccountAlias: intent.AccountAlias,
		Symbol:       entry.CanonicalSymbol,
		Exchange:     brokerExchange(broker.Kind, entry),
		Direction:    direction,
		Type:         intent.Type,
		Volume:       intent.Qty,
		Price:        intent.LimitPrice,
		StopPrice:    intent.StopPrice,
		TIF:          intent.TIF,
	}

	return broker.Gateway.SendOrder(req)
}

// CancelOrder forwards to the adapter serving accountAlias.
func (r *Router) CancelOrder(accountAlias, vtOrderID string) error {
	broker, ok := r.brokers[accountAlias]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownBroker, accountAlias)
	}
	return broker.Gateway.CancelOrder(vtOrderID)
}

// brokerExchange picks the venue string carried on the composed
// OrderRequest; broker B always routes through SMART, broker A gets an
// empty exchange, which its adapter copies onto the order unchanged.
func brokerExchange(kind config.BrokerKind, entry domain.SymbolRegistryEntry) string {
	if kind == config.BrokerB {
		return "SMART"
	}
	return ""
}

func validateIntent(intent domain.OrderIntent) error {
	switch intent.Type {
	case domain.OrderTypeLimit:
		if intent.LimitPrice <= 0 {
			return fmt.Errorf("%w: LIMIT order requires limit_price", domain.ErrInvalidIntent)
		}
	case domain.OrderTypeStop:
		if intent.StopPrice <= 0 {
			return fmt.Errorf("%w: STOP order requires stop_price", domain.ErrInvalidIntent)
		}
	case domain.OrderTypeStopLimit:
		if intent.StopPrice <= 0 || intent.LimitPrice <= 0 {
			return fmt.Errorf("%w: STOP_LIMIT order requires both stop_price and limit_price", domain.ErrInvalidIntent)
		}
	}
	return nil
}

// ensureBrokerID runs §4.1 auto-fill when the broker id this account's
// broker kind needs (conid for B, ticker for A) is still missing.
func (r *Router) ensureBrokerID(ctx context.Context, broker Broker, sym string, entry domain.SymbolRegistryEntry) error {
	needsFill := (broker.Kind == config.BrokerB && !entry.HasBrokerB()) ||
		(broker.Kind == config.BrokerA && !entry.HasBrokerA())
	if !needsFill {
		return nil
	}
	if !broker.AutoFill {
		return fmt.Errorf("%w: %s has no %s id and auto-fill is disabled", domain.ErrRegistryMiss, sym, broker.Kind)
	}
	resolver, ok := broker.Gateway.(registry.ContractResolver)
	if !ok {
		return fmt.Errorf("%w: %s adapter cannot resolve contracts", domain.ErrRegistryMiss, sym)
	}
	_, err := autoFillFor(ctx, r.registry, broker.Kind, sym, resolver)
	return err
}

func autoFillFor(ctx context.Context, reg *registry.Registry, kind config.BrokerKind, sym string, resolver registry.ContractResolver) (domain.SymbolRegistryEntry, error) {
	if kind == config.BrokerB {
		return reg.AutoFillBrokerB(ctx, sym, resolver)
	}
	return reg.AutoFillBrokerA(ctx, sym, resolver)
}

// resolveDirection applies §4.7 step 3's short-sale policy. Explicit
// SHORT/COVER commands bypass the position check entirely.
func (r *Router) resolveDirection(intent domain.OrderIntent, broker Broker) domain.Direction {
	switch intent.Side {
	case domain.OrderSideShort:
		return domain.DirectionShort
	case domain.OrderSideCover:
		return domain.DirectionLong
	case domain.OrderSideBuy:
		return domain.DirectionLong
	case domain.OrderSideSell:
		net := r.oms.NetPosition(intent.AccountAlias, intent.Symbol)
		switch {
		case net > 0:
			return domain.DirectionLong // reduces the long
		case net < 0:
			return domain.DirectionShort // increases the short
		default:
			// position = 0: only an open-short if the account allows it;
			// otherwise treat as a (rejected-by-broker) long sell, the
			// router itself doesn't second-guess a flat-account sell
			// beyond what allow_short gates.
			if broker.AllowShort {
				return domain.DirectionShort
			}
			return domain.DirectionLong
		}
	default:
		return domain.DirectionLong
	}
}
