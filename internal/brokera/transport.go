// Package brokera implements the broker-A adapter: a synchronous
// HTTP order/query SDK paired with a gRPC-style trade-events stream.
// HTTP calls never run on the caller's goroutine — they are dispatched
// onto an ants worker pool (§4.6 "gateway methods ... executed on a
// worker pool"); the streaming side runs its own per-account state
// machine goroutine.
package brokera

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rfzwl/janus/internal/domain"
	"github.com/sony/gobreaker"
)

// OrderSpec is the wire-level order submitted to the HTTP SDK.
type OrderSpec struct {
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	OrderType     string  `json:"order_type"`
	Qty           float64 `json:"qty"`
	LimitPrice    float64 `json:"limit_price,omitempty"`
	StopPrice     float64 `json:"stop_price,omitempty"`
	TIF           string  `json:"tif"`
}

// OrderAck is the HTTP SDK's synchronous response to an order submit.
type OrderAck struct {
	OrderID       string `json:"order_id"`
	ClientOrderID string `json:"client_order_id"`
}

// ContractPayload is one candidate returned by a ticker lookup.
type ContractPayload struct {
	Ticker      string  `json:"ticker"`
	Exchange    string  `json:"exchange"`
	ProductType string  `json:"product_type"`
	MinVolume   float64 `json:"min_volume"`
	PriceTick   float64 `json:"price_tick"`
	Currency    string  `json:"currency"`
}

// AccountSnapshot is the HTTP SDK's balance response.
type AccountSnapshot struct {
	Balance   float64 `json:"balance"`
	Available float64 `json:"available"`
	Currency  string  `json:"currency"`
}

// PositionSnapshot is one row of the HTTP SDK's position response.
type PositionSnapshot struct {
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Volume    float64 `json:"volume"`
	Price     float64 `json:"price"`
	PnL       float64 `json:"pnl"`
	Frozen    float64 `json:"frozen"`
}

// OpenOrderSnapshot is one row of the HTTP SDK's open-orders response.
type OpenOrderSnapshot struct {
	OrderID       string  `json:"order_id"`
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	OrderType     string  `json:"order_type"`
	Qty           float64 `json:"qty"`
	FilledQty     float64 `json:"filled_qty"`
	Price         float64 `json:"price"`
	Status        string  `json:"status"`
}

// HTTPTransport is the synchronous broker-A SDK surface. A production
// implementation calls the broker's REST API; tests substitute a fake
// that returns canned responses.
type HTTPTransport interface {
	PlaceOrder(ctx context.Context, spec OrderSpec) (OrderAck, error)
	CancelOrder(ctx context.Context, orderID string) error
	QueryAccount(ctx context.Context) (AccountSnapshot, error)
	QueryPositions(ctx context.Context) ([]PositionSnapshot, error)
	QueryOpenOrders(ctx context.Context) ([]OpenOrderSnapshot, error)
	QueryContractDetails(ctx context.Context, ticker string) ([]ContractPayload, error)
}

// RESTTransport is the production HTTPTransport: plain net/http against
// a JSON REST API, with a circuit breaker guarding against cascading
// failures when the broker's HTTP endpoint degrades.
type RESTTransport struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewRESTTransport constructs a RESTTransport against baseURL.
func NewRESTTransport(baseURL, username, password string) *RESTTransport {
	return &RESTTransport{
		baseURL:    baseURL,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "broker_a_http",
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (t *RESTTransport) do(ctx context.Context, method, path string, body, out interface{}) error {
	_, err := t.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			b, marshalErr := json.Marshal(body)
			if marshalErr != nil {
				return nil, marshalErr
			}
			reader = bytes.NewReader(b)
		}

		req, reqErr := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(t.username, t.password)

		resp, doErr := t.httpClient.Do(req)
		if doErr != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrBrokerTransient, doErr)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d", domain.ErrBrokerTransient, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("broker_a rejected request: status %d", resp.StatusCode)
		}
		if out == nil {
			return nil, nil
		}
		return nil, json.NewDecoder(resp.Body).Decode(out)
	})
	return err
}

func (t *RESTTransport) PlaceOrder(ctx context.Context, spec OrderSpec) (OrderAck, error) {
	var ack OrderAck
	err := t.do(ctx, http.MethodPost, "/orders", spec, &ack)
	return ack, err
}

func (t *RESTTransport) CancelOrder(ctx context.Context, orderID string) error {
	return t.do(ctx, http.MethodDelete, "/orders/"+orderID, nil, nil)
}

func (t *RESTTransport) QueryAccount(ctx context.Context) (AccountSnapshot, error) {
	var snap AccountSnapshot
	err := t.do(ctx, http.MethodGet, "/account", nil, &snap)
	return snap, err
}

func (t *RESTTransport) QueryPositions(ctx context.Context) ([]PositionSnapshot, error) {
	var rows []PositionSnapshot
	err := t.do(ctx, http.MethodGet, "/positions", nil, &rows)
	return rows, err
}

func (t *RESTTransport) QueryOpenOrders(ctx context.Context) ([]OpenOrderSnapshot, error) {
	var rows []OpenOrderSnapshot
	err := t.do(ctx, http.MethodGet, "/orders/open", nil, &rows)
	return rows, err
}

func (t *RESTTransport) QueryContractDetails(ctx context.Context, ticker string) ([]ContractPayload, error) {
	var rows []ContractPayload
	err := t.do(ctx, http.MethodGet, "/contracts?ticker="+ticker, nil, &rows)
	return rows, err
}
