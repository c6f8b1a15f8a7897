// Package eventbus implements the single ordered dispatch queue that
// funnels broker adapter callbacks into the OMS cache and RPC
// publisher. TICK events use a bounded, drop-oldest channel and never
// block the producer; every other kind uses a 16384-slot buffered
// channel, and a producer that finds it full logs a backpressure
// warning and blocks until the worker frees a slot.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rfzwl/janus/internal/domain"
	"go.uber.org/zap"
)

const (
	tickQueueSize  = 4096
	otherQueueSize = 16384
)

// Subscriber receives dispatched events. Implementations must not
// mutate the event's payload — values are shared by reference for
// efficiency but are conceptually immutable once dispatched.
type Subscriber func(domain.Event)

// Bus is the EventBus: one worker goroutine drains an internal queue
// and dispatches to type-keyed subscribers plus a set of generic
// subscribers, in enqueue order per producer.
type Bus struct {
	logger *zap.Logger

	tickCh  chan domain.Event
	otherCh chan domain.Event

	mu          sync.RWMutex
	byKind      map[domain.EventKind][]Subscriber
	generic     []Subscriber

	timerInterval time.Duration

	cancel context.CancelFunc
	done   chan struct{}

	droppedTicks atomic.Uint64
}

// New constructs a Bus. timerInterval is the cadence at which EVENT_TIMER
// fires once Start is called; per spec §4.5 this doubles as the
// reconnect health-check cadence (default 10s).
func New(logger *zap.Logger, timerInterval time.Duration) *Bus {
	return &Bus{
		logger:        logger,
		tickCh:        make(chan domain.Event, tickQueueSize),
		otherCh:       make(chan domain.Event, otherQueueSize),
		byKind:        make(map[domain.EventKind][]Subscriber),
		timerInterval: timerInterval,
	}
}

// Subscribe registers fn for events of kind. Safe to call before or
// after Start.
func (b *Bus) Subscribe(kind domain.EventKind, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byKind[kind] = append(b.byKind[kind], fn)
}

// SubscribeAll registers fn for every event kind, including TIMER.
func (b *Bus) SubscribeAll(fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generic = append(b.generic, fn)
}

// Publish enqueues an event. TICK events never block: on overflow the
// oldest queued tick is dropped. Every other kind, when its queue is
// full, logs a backpressure warning and blocks the caller until there
// is room, rather than dropping state that must not be lost.
func (b *Bus) Publish(e domain.Event) {
	if e.Kind == domain.EventTick {
		select {
		case b.tickCh <- e:
		default:
			select {
			case <-b.tickCh:
				b.droppedTicks.Add(1)
			default:
			}
			select {
			case b.tickCh <- e:
			default:
			}
		}
		return
	}

	select {
	case b.otherCh <- e:
	default:
		b.logger.Warn("event bus backpressure: non-tick queue full, blocking producer",
			zap.String("kind", string(e.Kind)))
		b.otherCh <- e
	}
}

// Start spawns the dispatch worker and the timer goroutine.
func (b *Bus) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	go b.run(ctx)

	if b.timerInterval > 0 {
		go b.runTimer(ctx)
	}
}

// Stop drains pending events and joins the worker. Shutdown ordering:
// callers must stop the bus before closing adapters, so no dispatch
// lands on a torn-down subscriber.
func (b *Bus) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
}

func (b *Bus) run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.drain()
			return
		case e := <-b.tickCh:
			b.dispatch(e)
		case e := <-b.otherCh:
			b.dispatch(e)
		}
	}
}

// drain flushes whatever is already queued before the worker exits, so
// a shutdown doesn't lose events already accepted from producers.
func (b *Bus) drain() {
	for {
		select {
		case e := <-b.otherCh:
			b.dispatch(e)
		case e := <-b.tickCh:
			b.dispatch(e)
		default:
			return
		}
	}
}

func (b *Bus) runTimer(ctx context.Context) {
	ticker := time.NewTicker(b.timerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Publish(domain.Event{Kind: domain.EventTimer})
		}
	}
}

func (b *Bus) dispatch(e domain.Event) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.byKind[e.Kind]...)
	generic := append([]Subscriber(nil), b.generic...)
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
	for _, fn := range generic {
		fn(e)
	}
}

// DroppedTicks returns the number of TICK events dropped for overflow,
// for diagnostics/metrics.
func (b *Bus) DroppedTicks() uint64 { return b.droppedTicks.Load() }
