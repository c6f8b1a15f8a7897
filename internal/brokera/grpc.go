package brokera

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

// jsonCodec lets the trade-events stream ride over a plain gRPC
// server-streaming call without a compiled .proto service: the wire
// events are JSON, framed by gRPC's own length-prefixed message
// framing. encoding.RegisterCodec in init below installs it once per
// process.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// wireStreamEvent is the JSON-over-gRPC representation of StreamEvent.
type wireStreamEvent struct {
	Type  StreamEventType    `json:"type"`
	Order *OrderEventPayload `json:"order,omitempty"`
}

// tradeEventsStreamDesc describes the single server-streaming method
// broker A's trade-events service exposes.
var tradeEventsStreamDesc = grpc.StreamDesc{
	StreamName:    "TradeEvents",
	ServerStreams: true,
}

// GRPCStream is the production TradeEventsStream: a gRPC connection
// with exponential reconnect backoff and no keepalive parameters,
// carrying JSON-coded StreamEvent messages over a server-streaming
// call.
type GRPCStream struct {
	target       string
	regionID     string
	accountAlias string

	conn   *grpc.ClientConn
	stream grpc.ClientStream
}

// NewGRPCStream constructs a stream against target (host:port).
func NewGRPCStream(target, regionID, accountAlias string) *GRPCStream {
	return &GRPCStream{target: target, regionID: regionID, accountAlias: accountAlias}
}

func (s *GRPCStream) Connect(ctx context.Context) error {
	conn, err := grpc.DialContext(ctx, s.target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  100 * time.Millisecond,
				Multiplier: 1.6,
				Jitter:     0.2,
				MaxDelay:   30 * time.Second,
			},
		}),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodec{}.Name())),
		grpc.WithBlock(),
	)
	if err != nil {
		return fmt.Errorf("dial trade events stream: %w", err)
	}
	s.conn = conn

	stream, err := conn.NewStream(ctx, &tradeEventsStreamDesc, "/brokera.TradeEvents/Subscribe")
	if err != nil {
		conn.Close()
		return fmt.Errorf("open trade events stream: %w", err)
	}
	req := struct {
		RegionID     string `json:"region_id"`
		AccountAlias string `json:"account_alias"`
	}{s.regionID, s.accountAlias}
	if err := stream.SendMsg(&req); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe trade events stream: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		conn.Close()
		return err
	}
	s.stream = stream
	return nil
}

func (s *GRPCStream) Recv() (StreamEvent, error) {
	var wire wireStreamEvent
	if err := s.stream.RecvMsg(&wire); err != nil {
		return StreamEvent{}, err
	}
	return StreamEvent{Type: wire.Type, Order: wire.Order}, nil
}

func (s *GRPCStream) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

var _ TradeEventsStream = (*GRPCStream)(nil)
