package crawler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter bounds how many jobs run simultaneously and paces job starts.
// Submission order is admission order: jobs submitted sequentially start in
// FIFO order, each at least delay after the previous start, with at most
// maxConcurrent in flight at any instant.
type Limiter struct {
	sem  chan struct{}
	pace *rate.Limiter
	wg   sync.WaitGroup
}

func NewLimiter(maxConcurrent int, delay time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	l := &Limiter{
		sem: make(chan struct{}, maxConcurrent),
	}
	if delay > 0 {
		l.pace = rate.NewLimiter(rate.Every(delay), 1)
	}
	return l
}

// Submit blocks until a slot is free and the pacing delay has elapsed, then
// runs job on its own goroutine. One job's failure never affects siblings;
// outcome collection is the caller's business (jobs close over their result
// slots). Returns the context error if ctx is cancelled while waiting.
func (l *Limiter) Submit(ctx context.Context, job func()) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Pacing happens in the submitting goroutine, after slot acquisition,
	// so starts stay strictly in submission order.
	if l.pace != nil {
		if err := l.pace.Wait(ctx); err != nil {
			<-l.sem
			return err
		}
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() { <-l.sem }()
		job()
	}()
	return nil
}

// Wait blocks until every submitted job has settled.
func (l *Limiter) Wait() {
	l.wg.Wait()
}
