package async_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keep-network/tbtc-relayer/async"
)

func TestEveryRuns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	i := int32(0)
	async.RunEvery(ctx, 100*time.Millisecond, func() {
		atomic.AddInt32(&i, 1)
	})

	// Sleep for a bit and ensure the value has increased.
	time.Sleep(200 * time.Millisecond)

	if atomic.LoadInt32(&i) == 0 {
		t.Error("Counter failed to increment with ticker")
	}

	cancel()

	// Sleep for a bit to let the cancel take place.
	time.Sleep(100 * time.Millisecond)

	last := atomic.LoadInt32(&i)

	// Sleep for a bit and ensure the value has not increased.
	time.Sleep(200 * time.Millisecond)

	if atomic.LoadInt32(&i) != last {
		t.Error("Counter incremented after stop")
	}
}

func TestEveryNonOverlappingSkipsSlowTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := int32(0)
	async.RunEveryNonOverlapping(ctx, 50*time.Millisecond, func() {
		atomic.AddInt32(&started, 1)
		time.Sleep(300 * time.Millisecond)
	})

	// Over 300ms at a 50ms period, an overlapping runner would start ~6
	// invocations; the guard must keep it to one in-flight invocation.
	time.Sleep(280 * time.Millisecond)

	if n := atomic.LoadInt32(&started); n != 1 {
		t.Errorf("Expected a single in-flight invocation, got %d", n)
	}

	// Skipping is per tick: once the slow invocation finishes, the next
	// tick runs again.
	time.Sleep(200 * time.Millisecond)

	if n := atomic.LoadInt32(&started); n < 2 {
		t.Errorf("Expected a follow-up invocation after the first finished, got %d", n)
	}
}
