package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rfzwl/janus/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatchOrderPerProducer(t *testing.T) {
	b := New(zap.NewNop(), 0)
	b.Start(context.Background())
	defer b.Stop()

	var mu sync.Mutex
	var seen []float64

	done := make(chan struct{})
	var count int
	b.Subscribe(domain.EventOrder, func(e domain.Event) {
		mu.Lock()
		seen = append(seen, e.Order.Volume)
		count++
		if count == 5 {
			close(done)
		}
		mu.Unlock()
	})

	for i := 1; i <= 5; i++ {
		b.Publish(domain.OrderEvent(domain.OrderData{Volume: float64(i)}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, seen)
}

func TestGenericSubscriberReceivesEveryKind(t *testing.T) {
	b := New(zap.NewNop(), 0)
	b.Start(context.Background())
	defer b.Stop()

	kinds := make(chan domain.EventKind, 4)
	b.SubscribeAll(func(e domain.Event) { kinds <- e.Kind })

	b.Publish(domain.TickEvent(domain.TickData{Symbol: "AAPL"}))
	b.Publish(domain.OrderEvent(domain.OrderData{}))

	require.Equal(t, domain.EventTick, <-kinds)
	require.Equal(t, domain.EventOrder, <-kinds)
}

func TestTickOverflowDropsOldestTickOnly(t *testing.T) {
	b := New(zap.NewNop(), 0)
	// Do not Start the worker: fill the bounded tick queue directly to
	// exercise the drop-oldest path deterministically.
	for i := 0; i < tickQueueSize+10; i++ {
		b.Publish(domain.TickEvent(domain.TickData{Symbol: "AAPL", Last: float64(i)}))
	}
	assert.Equal(t, uint64(10), b.DroppedTicks())
	assert.Equal(t, tickQueueSize, len(b.tickCh))
}
