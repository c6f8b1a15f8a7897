package brokera

import (
	"context"
	"fmt"
	"time"

	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/registry"
)

// RequestContractDetails implements the ticker-only auto-fill variant
// of §4.1: synchronous with a bounded timeout, dispatched onto the
// worker pool so it never blocks the caller's goroutine directly.
func (a *Adapter) RequestContractDetails(ctx context.Context, query domain.ContractQuery) ([]registry.ContractDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resultCh := make(chan struct {
		rows []ContractPayload
		err  error
	}, 1)

	submitErr := a.pool.Submit(func() {
		rows, err := a.transport.QueryContractDetails(ctx, query.Symbol)
		resultCh <- struct {
			rows []ContractPayload
			err  error
		}{rows, err}
	})
	if submitErr != nil {
		return nil, fmt.Errorf("%w: worker pool submit: %v", domain.ErrBrokerTransient, submitErr)
	}

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrBrokerTransient, res.err)
		}
		out := make([]registry.ContractDetails, 0, len(res.rows))
		for _, row := range res.rows {
			out = append(out, registry.ContractDetails{
				Contract: domain.ContractData{
					VtSymbol:    row.Ticker,
					Exchange:    row.Exchange,
					ProductType: row.ProductType,
					MinVolume:   row.MinVolume,
					PriceTick:   row.PriceTick,
					Currency:    row.Currency,
				},
				BrokerATicker: row.Ticker,
			})
		}
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
