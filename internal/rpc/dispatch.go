package rpc

import (
	"encoding/json"
	"errors"

	"github.com/rfzwl/janus/internal/domain"
	"go.uber.org/zap"
)

func marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

// dispatch parses a raw client frame as a Request, runs the registered
// Handler for its method and writes back a Response. A malformed frame
// or unknown method produces an error Response rather than dropping
// the connection — one bad request must not take down the session.
func (s *Server) dispatch(client *Client, raw []byte) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		s.reply(client, Response{Error: &RPCError{Code: "invalid_request", Message: err.Error()}})
		return
	}

	h, ok := s.handlers[req.Method]
	if !ok {
		s.reply(client, Response{ID: req.ID, Error: &RPCError{Code: "unknown_method", Message: req.Method}})
		return
	}

	result, err := h(client, req.Params)
	if err != nil {
		s.reply(client, Response{ID: req.ID, Error: toRPCError(err)})
		return
	}
	s.reply(client, Response{ID: req.ID, Result: result})
}

func (s *Server) reply(client *Client, resp Response) {
	payload, err := marshal(resp)
	if err != nil {
		s.logger.Error("rpc: failed to marshal response", zap.Error(err))
		return
	}
	select {
	case client.Send <- payload:
	default:
		s.logger.Warn("rpc: client send buffer full, dropping response", zap.String("client_id", client.ID))
	}
}

// toRPCError maps core sentinel errors onto a stable wire code per §7
// ("RPC wraps all core errors with {code, message}").
func toRPCError(err error) *RPCError {
	code := "internal_error"
	switch {
	case errors.Is(err, domain.ErrRegistryMiss):
		code = "registry_miss"
	case errors.Is(err, domain.ErrRegistryAmbiguous):
		code = "registry_ambiguous"
	case errors.Is(err, domain.ErrRegistryConflict):
		code = "registry_conflict"
	case errors.Is(err, domain.ErrRegistryStore):
		code = "registry_store_error"
	case errors.Is(err, domain.ErrCapabilityUnsupported):
		code = "capability_unsupported"
	case errors.Is(err, domain.ErrInvalidIntent):
		code = "invalid_intent"
	case errors.Is(err, domain.ErrBrokerTransient):
		code = "broker_transient"
	case errors.Is(err, domain.ErrBrokerPermanent):
		code = "broker_permanent"
	case errors.Is(err, domain.ErrOrderNotFound):
		code = "order_not_found"
	case errors.Is(err, domain.ErrUnknownBroker):
		code = "unknown_broker"
	}
	return &RPCError{Code: code, Message: err.Error()}
}
