// Package harmony implements the one-shot, server-initiated registry
// backfill across every connected broker kind (§4.8). It is the only
// component besides the router that writes through the registry.
package harmony

import (
	"context"
	"errors"

	"github.com/rfzwl/janus/internal/config"
	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/registry"
)

// ConnectedBroker is one connected broker kind the orchestrator scans
// against; kind is per-broker-family (not per-account) per §4.8.
type ConnectedBroker struct {
	Kind     config.BrokerKind
	Resolver registry.ContractResolver
}

// Orchestrator runs the harmony backfill.
type Orchestrator struct {
	registry *registry.Registry
}

// New constructs an Orchestrator over reg.
func New(reg *registry.Registry) *Orchestrator {
	return &Orchestrator{registry: reg}
}

// Run iterates every registry entry missing a given connected broker's
// id and attempts auto-fill, aggregating results per broker kind. On
// any store write error the whole run aborts immediately: no partial
// results beyond what was already flushed are committed (§4.8, §8
// scenario 6).
func (o *Orchestrator) Run(ctx context.Context, brokers []ConnectedBroker) ([]domain.HarmonyResult, error) {
	results := make([]domain.HarmonyResult, 0, len(brokers))

	for _, b := range brokers {
		result := domain.HarmonyResult{Broker: string(b.Kind)}

		entries := o.registry.Snapshot()
		for _, entry := range entries {
			if hasBrokerID(b.Kind, entry) {
				continue
			}

			var err error
			if b.Kind == config.BrokerB {
				_, err = o.registry.AutoFillBrokerB(ctx, entry.CanonicalSymbol, b.Resolver)
			} else {
				_, err = o.registry.AutoFillBrokerA(ctx, entry.CanonicalSymbol, b.Resolver)
			}

			switch {
			case err == nil:
				result.Filled++
			case errors.Is(err, domain.ErrRegistryAmbiguous):
				result.SkippedAmbiguous++
			case errors.Is(err, domain.ErrRegistryMiss):
				result.SkippedNoMatch++
			case errors.Is(err, domain.ErrRegistryStore):
				result.Errors = append(result.Errors, err.Error())
				results = append(results, result)
				return results, err
			default:
				result.Errors = append(result.Errors, err.Error())
			}
		}

		results = append(results, result)
	}

	return results, nil
}

func hasBrokerID(kind config.BrokerKind, entry domain.SymbolRegistryEntry) bool {
	if kind == config.BrokerB {
		return entry.HasBrokerB()
	}
	return entry.HasBrokerA()
}
