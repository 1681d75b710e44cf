// Package events publishes scrape run summaries for downstream
// consumers (cache invalidation, dashboards).
package events

import (
	"context"
	"sync"

	"github.com/torquemods/modhub/internal/catalog"
)

// Publisher delivers a run summary to interested consumers. Publishing
// is best-effort: a failure is logged by the caller and never fails
// the run itself.
type Publisher interface {
	PublishSummary(ctx context.Context, summary catalog.ScrapeSummary) error
	Close() error
}

// MemoryPublisher records summaries in memory. It is the default when
// no Pub/Sub project is configured, and doubles as the test recorder.
type MemoryPublisher struct {
	mu        sync.RWMutex
	summaries []catalog.ScrapeSummary
}

// NewMemory returns a MemoryPublisher.
func NewMemory() *MemoryPublisher {
	return &MemoryPublisher{}
}

// PublishSummary records the summary.
func (p *MemoryPublisher) PublishSummary(_ context.Context, summary catalog.ScrapeSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, summary)
	return nil
}

// Summaries returns a copy of everything published so far.
func (p *MemoryPublisher) Summaries() []catalog.ScrapeSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]catalog.ScrapeSummary, len(p.summaries))
	copy(out, p.summaries)
	return out
}

// Close is a no-op.
func (p *MemoryPublisher) Close() error { return nil }
