package brokera

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// StreamEventType tags a message pushed over the trade-events stream.
type StreamEventType string

const (
	StreamSubscribeSuccess StreamEventType = "SubscribeSuccess"
	StreamPing             StreamEventType = "Ping"
	StreamAuthError        StreamEventType = "AuthError"
	StreamConnExceeded     StreamEventType = "NumOfConnExceed"
	StreamSubExpired       StreamEventType = "SubscribeExpired"
	StreamOrderEvent       StreamEventType = "OrderEvent"
)

// OrderEventPayload is the trade-events order-status-changed payload,
// filtered at the stream boundary to event_type=ORDER /
// subscribe_type=ORDER_STATUS_CHANGED (§4.6).
type OrderEventPayload struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          string
	OrderStatus   string // explicit status, preferred mapping source
	SceneType     string // fallback mapping source
	Qty           float64
	FilledQty     float64
	Price         float64
	Timestamp     time.Time
}

// StreamEvent is the tagged variant the trade-events stream delivers.
type StreamEvent struct {
	Type  StreamEventType
	Order *OrderEventPayload
}

// TradeEventsStream is the gRPC-style trade-events subscription
// surface. A production implementation wraps a gRPC server-stream;
// tests substitute a fake that replays a canned event sequence.
type TradeEventsStream interface {
	Connect(ctx context.Context) error
	Recv() (StreamEvent, error)
	Close() error
}

// streamState is the per-account trade-events state machine (§4.6).
type streamState int

const (
	stateIdle streamState = iota
	stateConnecting
	stateSubscribed
	stateReconnectWait
	stateStopped
)

func (s streamState) String() string {
	switch s {
	case stateIdle:
		return "IDLE"
	case stateConnecting:
		return "CONNECTING"
	case stateSubscribed:
		return "SUBSCRIBED"
	case stateReconnectWait:
		return "RECONNECT_WAIT"
	case stateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// backoffConfig tunes the RECONNECT_WAIT exponential-backoff-with-
// jitter schedule, capped.
type backoffConfig struct {
	Base time.Duration
	Max  time.Duration
}

func defaultBackoff() backoffConfig {
	return backoffConfig{Base: 500 * time.Millisecond, Max: 30 * time.Second}
}

func (b backoffConfig) delay(attempt int) time.Duration {
	d := float64(b.Base) * math.Pow(2, float64(attempt))
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	jitter := d * (0.5 + rand.Float64()/2) // 50%-100% of the capped delay
	return time.Duration(jitter)
}

// tradeEventsLoop drives one account's trade-events state machine
// until ctx is cancelled or the stream reaches STOPPED. It runs on its
// own daemon goroutine per account (or per shared-credential group).
func (a *Adapter) tradeEventsLoop(ctx context.Context) {
	state := stateIdle
	attempt := 0
	backoff := defaultBackoff()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch state {
		case stateIdle, stateConnecting:
			a.setStreamState(stateConnecting)
			if err := a.stream.Connect(ctx); err != nil {
				a.logger.Warn("trade_events connect failed", zap.Error(err))
				state = stateReconnectWait
				continue
			}
			state = a.runStream(ctx)
			attempt = 0

		case stateReconnectWait:
			a.setStreamState(stateReconnectWait)
			d := backoff.delay(attempt)
			attempt++
			a.logger.Info("trade_events reconnect wait", zap.Duration("delay", d), zap.Int("attempt", attempt))
			select {
			case <-time.After(d):
				state = stateConnecting
			case <-ctx.Done():
				return
			}

		case stateStopped:
			a.setStreamState(stateStopped)
			return
		}
	}
}

// runStream consumes events from an already-connected stream until it
// errors out or a terminal/backoff-triggering event arrives. Returns
// the next state for the outer loop.
func (a *Adapter) runStream(ctx context.Context) streamState {
	a.setStreamState(stateSubscribed)

	for {
		ev, err := a.stream.Recv()
		if err != nil {
			select {
			case <-ctx.Done():
				return stateStopped
			default:
			}
			a.logger.Warn("trade_events recv error", zap.Error(err))
			return stateReconnectWait
		}

		switch ev.Type {
		case StreamSubscribeSuccess:
			a.logger.Info("trade_events subscribed")
		case StreamPing:
			// ignored
		case StreamAuthError:
			a.logger.Error("trade_events auth error, operator action required")
			return stateStopped
		case StreamConnExceeded:
			a.logger.Error("trade_events connection quota exceeded, stopping (no retry storm)")
			return stateStopped
		case StreamSubExpired:
			a.logger.Warn("trade_events subscription expired, reconnecting with backoff")
			return stateReconnectWait
		case StreamOrderEvent:
			if ev.Order != nil {
				a.onOrderEvent(*ev.Order)
			}
		}
	}
}

func (a *Adapter) setStreamState(s streamState) {
	a.streamStateMu.Lock()
	a.streamState = s
	a.streamStateMu.Unlock()
}

// StreamState reports the current trade-events state machine state,
// for diagnostics.
func (a *Adapter) StreamState() string {
	a.streamStateMu.Lock()
	defer a.streamStateMu.Unlock()
	return a.streamState.String()
}
