package brokerb

import (
	"context"
	"fmt"

	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/gateway"
	"github.com/rfzwl/janus/internal/registry"
	"go.uber.org/zap"
)

// RequestContractDetails is synchronous with a bounded timeout; it is
// the only gateway method registry auto-fill relies on (§4.1, §4.4).
func (c *Client) RequestContractDetails(ctx context.Context, query domain.ContractQuery) ([]registry.ContractDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, gateway.DefaultContractDetailsTimeout)
	defer cancel()

	var reqID int64
	var pr *pendingRequest

	err := c.post(ctx, func() {
		reqID = c.allocReqID()
		pr = &pendingRequest{kind: requestKindContractDetails, done: make(chan struct{})}
		c.pending[reqID] = pr
		if sendErr := c.transport.ReqContractDetails(reqID, query); sendErr != nil {
			c.logger.Warn("req_contract_details failed", zap.Error(sendErr))
			delete(c.pending, reqID)
			close(pr.done)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: request_contract_details: %v", domain.ErrBrokerTransient, err)
	}

	select {
	case <-pr.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	out := make([]registry.ContractDetails, 0, len(pr.results))
	for _, p := range pr.results {
		out = append(out, registry.ContractDetails{
			Contract: domain.ContractData{
				VtSymbol:    p.Contract.Symbol,
				Exchange:    p.Contract.Exchange,
				ProductType: p.ProductType,
				MinVolume:   p.MinVolume,
				PriceTick:   p.MinTick,
				Currency:    p.Contract.Currency,
			},
			BrokerBConID: p.Contract.ConID,
		})
	}
	return out, nil
}

// ContractDetails accumulates one candidate match for the outstanding
// reqid; the request completes on the matching ContractDetailsEnd.
func (c *Client) ContractDetails(reqID int64, payload ContractDetailsPayload) {
	pr, ok := c.pending[reqID]
	if !ok {
		return
	}
	pr.results = append(pr.results, payload)
}

// ContractDetailsEnd resolves the completion signal for reqID.
func (c *Client) ContractDetailsEnd(reqID int64) {
	pr, ok := c.pending[reqID]
	if !ok {
		return
	}
	delete(c.pending, reqID)
	close(pr.done)
}

// QueryAccount requests an account-balance snapshot.
func (c *Client) QueryAccount() error {
	c.postAsync(func() {
		if err := c.transport.ReqAccountUpdates(true, c.accountAlias); err != nil {
			c.logger.Warn("req_account_updates failed", zap.Error(err))
		}
	})
	return nil
}

// QueryPosition requests a position snapshot.
func (c *Client) QueryPosition() error {
	c.postAsync(func() {
		if err := c.transport.ReqPositions(); err != nil {
			c.logger.Warn("req_positions failed", zap.Error(err))
		}
	})
	return nil
}

// QueryOpenOrders requests the open-order snapshot.
func (c *Client) QueryOpenOrders() error {
	c.postAsync(func() {
		if err := c.transport.ReqOpenOrders(); err != nil {
			c.logger.Warn("req_open_orders failed", zap.Error(err))
		}
	})
	return nil
}

// Error surfaces a broker-pushed error/informational code. Code 1102
// ("data farm connected") is the documented resubscribe trigger;
// everything else is logged and otherwise ignored by the adapter
// itself (it never retries a request on the caller's behalf).
func (c *Client) Error(reqID int64, code int, msg string) {
	if code == dataFarmConnectedCode {
		c.logger.Info("data farm reconnect sentinel received, resubscribing")
		c.replaySubscriptions()
		return
	}
	c.logger.Warn("broker_b error", zap.Int64("reqid", reqID), zap.Int("code", code), zap.String("msg", msg))
}

const dataFarmConnectedCode = 1102
