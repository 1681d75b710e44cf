// Package orchestrator schedules store scrapes: single-flight guard,
// bounded fan-out, summary aggregation, and the periodic refresh loop.
package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/torquemods/modhub/internal/catalog"
	"github.com/torquemods/modhub/internal/events"
	"github.com/torquemods/modhub/internal/metrics"
	"github.com/torquemods/modhub/internal/scraper"
)

// StoreScraper runs one store's pipeline to completion.
type StoreScraper interface {
	ScrapeStore(ctx context.Context, store catalog.Store) scraper.Result
}

// Config controls orchestrator scheduling.
type Config struct {
	// Concurrency bounds the number of store scrapes in flight.
	Concurrency int
	// RefreshInterval is the periodic trigger cadence.
	RefreshInterval time.Duration
}

// Orchestrator fans a run out across all configured stores.
//
// The single-flight guard is the inflight pointer: a nil→handle CAS is
// the Idle→Running transition and storing nil is Running→Idle. A
// trigger that loses the CAS joins the in-flight run and receives its
// summary, so concurrent triggers coalesce rather than queue.
type Orchestrator struct {
	stores    []catalog.Store
	scraper   StoreScraper
	modStore  catalog.ModStore
	publisher events.Publisher
	cfg       Config
	logger    *zap.Logger

	inflight atomic.Pointer[runHandle]
}

type runHandle struct {
	done    chan struct{}
	summary catalog.ScrapeSummary
	err     error
}

// New builds an Orchestrator.
func New(
	stores []catalog.Store,
	s StoreScraper,
	modStore catalog.ModStore,
	publisher events.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		stores:    stores,
		scraper:   s,
		modStore:  modStore,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Trigger runs a full scrape, or joins the one already running. Every
// caller gets exactly one summary; at most one writer set exists at a
// time.
func (o *Orchestrator) Trigger(ctx context.Context) (catalog.ScrapeSummary, error) {
	for {
		handle := &runHandle{done: make(chan struct{})}
		if o.inflight.CompareAndSwap(nil, handle) {
			handle.summary, handle.err = o.run(ctx)
			o.inflight.Store(nil)
			close(handle.done)
			return handle.summary, handle.err
		}

		current := o.inflight.Load()
		if current == nil {
			// The previous run finished between the CAS and the load;
			// try to own a fresh run.
			continue
		}
		select {
		case <-current.done:
			return current.summary, current.err
		case <-ctx.Done():
			return catalog.ScrapeSummary{}, ctx.Err()
		}
	}
}

// RunPeriodic triggers a scrape every RefreshInterval until the
// context finishes. Errors are logged, never fatal: the next tick
// tries again.
func (o *Orchestrator) RunPeriodic(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := o.Trigger(ctx)
			if err != nil {
				o.logger.Warn("scheduled scrape failed", zap.Error(err))
				continue
			}
			o.logger.Info("scheduled scrape completed",
				zap.Int("stores_succeeded", summary.StoresSucceeded),
				zap.Int("stores_failed", summary.StoresFailed),
				zap.Int("mods_upserted", summary.ModsUpserted),
			)
		}
	}
}

type storeOutcome struct {
	store    catalog.Store
	run      catalog.ScrapeRun
	upserted int
	err      error
}

// run fans the store pipelines out under the concurrency bound and
// folds their outcomes into a summary. Channel aggregation keeps all
// counting in this goroutine; workers share nothing mutable.
func (o *Orchestrator) run(ctx context.Context) (catalog.ScrapeSummary, error) {
	summary := catalog.ScrapeSummary{StoresTotal: len(o.stores)}

	sem := make(chan struct{}, o.cfg.Concurrency)
	outcomes := make(chan storeOutcome)

	for _, store := range o.stores {
		go func(store catalog.Store) {
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes <- o.scrapeAndCommit(ctx, store)
		}(store)
	}

	for range o.stores {
		out := <-outcomes
		if out.err != nil {
			summary.StoresFailed++
			continue
		}
		summary.StoresSucceeded++
		summary.ModsUpserted += out.upserted
	}

	if summary.StoresSucceeded == 0 && summary.StoresFailed > 0 {
		return summary, catalog.ErrAllStoresFailed
	}

	o.publishSummary(ctx, summary)
	return summary, nil
}

// scrapeAndCommit runs one store's full pipeline. Prune only ever
// happens inside ReplaceStoreMods, and that is only reached when the
// run finished success or capped; a failed run cannot delete rows.
func (o *Orchestrator) scrapeAndCommit(ctx context.Context, store catalog.Store) storeOutcome {
	metrics.IncActiveStores()
	defer metrics.DecActiveStores()

	result := o.scraper.ScrapeStore(ctx, store)
	out := storeOutcome{store: store, run: result.Run, err: result.Err}

	if out.err == nil {
		if err := o.modStore.ReplaceStoreMods(ctx, store.ID, result.Mods); err != nil {
			out.err = &catalog.StorageError{Op: "replace store mods", Err: err}
			out.run.Status = catalog.RunFailed
			out.run.Error = out.err.Error()
			o.logger.Error("store commit failed",
				zap.String("store", store.ID),
				zap.Error(err),
			)
		} else {
			out.upserted = len(result.Mods)
			metrics.ObserveUpserts(store.ID, out.upserted)
		}
	}

	// The run status is only final here: a successful scrape can still
	// flip to failed on commit. Count it once, by its final status.
	metrics.ObserveRun(string(out.run.Status))

	if err := o.modStore.RecordRun(ctx, out.run); err != nil {
		// Run history is diagnostic; losing a row must not fail the store.
		o.logger.Warn("record scrape run failed",
			zap.String("store", store.ID),
			zap.Error(err),
		)
	}
	return out
}

func (o *Orchestrator) publishSummary(ctx context.Context, summary catalog.ScrapeSummary) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishSummary(ctx, summary); err != nil {
		o.logger.Warn("publish run summary failed", zap.Error(err))
	}
}
