package crawler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterNeverExceedsMaxConcurrent(t *testing.T) {
	const maxConcurrent = 3
	const tasks = 12

	limiter := NewLimiter(maxConcurrent, 0)

	var active, peak int64
	for i := 0; i < tasks; i++ {
		err := limiter.Submit(context.Background(), func() {
			n := atomic.AddInt64(&active, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&active, -1)
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	limiter.Wait()

	if peak > maxConcurrent {
		t.Fatalf("observed %d concurrent tasks, limit is %d", peak, maxConcurrent)
	}
	if peak == 0 {
		t.Fatal("no task ever ran")
	}
}

func TestLimiterPacesTaskStarts(t *testing.T) {
	const delay = 40 * time.Millisecond
	limiter := NewLimiter(2, delay)

	var mu sync.Mutex
	var starts []time.Time
	for i := 0; i < 4; i++ {
		err := limiter.Submit(context.Background(), func() {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	limiter.Wait()

	if len(starts) != 4 {
		t.Fatalf("expected 4 starts, got %d", len(starts))
	}
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < delay-5*time.Millisecond {
			t.Errorf("start %d only %v after start %d, want >= %v", i, gap, i-1, delay)
		}
	}
}

func TestLimiterFailureDoesNotCancelSiblings(t *testing.T) {
	limiter := NewLimiter(2, 0)

	var ran int64
	for i := 0; i < 5; i++ {
		i := i
		err := limiter.Submit(context.Background(), func() {
			if i == 1 {
				// A failing sibling just records its error; here it
				// simply returns early.
				return
			}
			atomic.AddInt64(&ran, 1)
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	limiter.Wait()

	if ran != 4 {
		t.Fatalf("expected 4 surviving tasks, got %d", ran)
	}
}

func TestLimiterSubmitHonorsCancellation(t *testing.T) {
	limiter := NewLimiter(1, 0)

	release := make(chan struct{})
	if err := limiter.Submit(context.Background(), func() { <-release }); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Submit(ctx, func() {}); err == nil {
		t.Fatal("expected context error while waiting for a slot")
	}

	close(release)
	limiter.Wait()
}
