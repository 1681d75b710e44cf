// Package pacing enforces the fixed inter-page delay against each
// upstream store using per-store token buckets.
package pacing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/torquemods/modhub/internal/metrics"
)

// Pacer hands out one fetch token per store per delay interval. The
// first fetch for a store proceeds immediately; each subsequent fetch
// waits out the remainder of the interval.
type Pacer struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// New creates a Pacer with the given inter-page delay. A non-positive
// delay disables pacing.
func New(interval time.Duration) *Pacer {
	return &Pacer{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Wait blocks until the store may issue its next page request.
func (p *Pacer) Wait(ctx context.Context, storeID string) error {
	if p.interval <= 0 {
		return nil
	}
	p.mu.Lock()
	limiter, ok := p.limiters[storeID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(p.interval), 1)
		p.limiters[storeID] = limiter
	}
	p.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("page pacing wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObservePageDelay(storeID, waited)
	}
	return nil
}

// Forget drops a store's limiter so the next run starts fresh.
func (p *Pacer) Forget(storeID string) {
	p.mu.Lock()
	delete(p.limiters, storeID)
	p.mu.Unlock()
}
