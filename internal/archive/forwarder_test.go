package archive

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/autonex/punchd/internal/attendance/types"
	"github.com/autonex/punchd/internal/metrics"
)

// newTestForwarder builds a forwarder whose batch writer records flush sizes
// instead of talking to Postgres.
func newTestForwarder(batchSize int, maxWait time.Duration, flushes chan<- int) *Forwarder {
	f := &Forwarder{
		queue:     make(chan types.CanonicalEvent, 64),
		batchSize: batchSize,
		maxWait:   maxWait,
		logger:    log.New(io.Discard, "", 0),
		m:         metrics.New(prometheus.NewRegistry()),
		done:      make(chan struct{}),
	}
	f.insert = func(_ context.Context, items []types.CanonicalEvent) (int64, error) {
		flushes <- len(items)
		return int64(len(items)), nil
	}
	return f
}

func waitFlush(t *testing.T, flushes <-chan int, want int, within time.Duration) {
	t.Helper()
	select {
	case n := <-flushes:
		if n != want {
			t.Fatalf("expected flush of %d events, got %d", want, n)
		}
	case <-time.After(within):
		t.Fatalf("no flush within %v", within)
	}
}

func TestForwarder_SizeFlushRestartsWait(t *testing.T) {
	flushes := make(chan int, 4)
	f := newTestForwarder(3, 300*time.Millisecond, flushes)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.Start(ctx)

	// Burn most of the wait interval, then fill a whole batch.
	time.Sleep(200 * time.Millisecond)
	for i := 0; i < 3; i++ {
		f.Enqueue(types.CanonicalEvent{EventID: fmt.Sprintf("e%d", i)})
	}
	waitFlush(t, flushes, 3, 100*time.Millisecond)

	// A lone event after a size flush waits the full interval again; the
	// leftover timer from before the batch must not fire it early.
	start := time.Now()
	f.Enqueue(types.CanonicalEvent{EventID: "late"})
	waitFlush(t, flushes, 1, 3*f.maxWait)
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("lone event flushed after %v, before the wait restarted", elapsed)
	}
}

func TestForwarder_TimerFlushesPartialBatch(t *testing.T) {
	flushes := make(chan int, 4)
	f := newTestForwarder(100, 100*time.Millisecond, flushes)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.Start(ctx)

	f.Enqueue(types.CanonicalEvent{EventID: "e1"})
	waitFlush(t, flushes, 1, time.Second)
}

func TestForwarder_FinalFlushOnShutdown(t *testing.T) {
	flushes := make(chan int, 4)
	f := newTestForwarder(100, time.Hour, flushes)
	ctx, cancel := context.WithCancel(context.Background())
	f.Start(ctx)

	f.Enqueue(types.CanonicalEvent{EventID: "e1"})
	f.Enqueue(types.CanonicalEvent{EventID: "e2"})
	time.Sleep(100 * time.Millisecond) // let the loop drain the queue
	cancel()
	<-f.done

	waitFlush(t, flushes, 2, time.Second)
}
