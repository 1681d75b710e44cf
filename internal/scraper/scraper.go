// Package scraper drives pagination end-to-end for one store.
package scraper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/torquemods/modhub/internal/catalog"
	"github.com/torquemods/modhub/internal/fetcher"
	"github.com/torquemods/modhub/internal/metrics"
	"github.com/torquemods/modhub/internal/policy/pacing"
	"github.com/torquemods/modhub/internal/shopify"
)

// Config bounds one store scrape.
type Config struct {
	// PageLimit is the requested page size (1..250). A page with fewer
	// items than this marks the end of the catalog.
	PageLimit int
	// MaxPages caps pagination against runaway upstreams. Hitting the
	// cap finishes the scrape as capped, not failed.
	MaxPages int
}

// Result is the outcome of one store scrape: the finalized run record
// and, for success/capped runs, the complete normalized set.
type Result struct {
	Run  catalog.ScrapeRun
	Mods []catalog.Mod
	Err  error
}

// Scraper fetches every page of a store's catalog sequentially.
// Pages are never fetched in parallel within a store; the pacer
// enforces the inter-page delay.
type Scraper struct {
	fetcher fetcher.PageFetcher
	pacer   *pacing.Pacer
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// New builds a Scraper.
func New(f fetcher.PageFetcher, pacer *pacing.Pacer, cfg Config, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		fetcher: f,
		pacer:   pacer,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// ScrapeStore walks the store's catalog to completion, the page cap,
// or the first unrecoverable failure. On failure the accumulated
// records are discarded; there is no partial commit.
func (s *Scraper) ScrapeStore(ctx context.Context, store catalog.Store) Result {
	run := catalog.ScrapeRun{
		ID:        uuid.NewString(),
		StoreID:   store.ID,
		StartedAt: s.now(),
	}

	if s.pacer != nil {
		defer s.pacer.Forget(store.ID)
	}

	var mods []catalog.Mod
	seen := make(map[int64]struct{})

	for page := 1; ; page++ {
		if s.pacer != nil {
			if err := s.pacer.Wait(ctx, store.ID); err != nil {
				return s.fail(store, run, err)
			}
		}

		products, err := s.fetcher.FetchPage(ctx, store, page)
		if err != nil {
			return s.fail(store, run, err)
		}
		run.PagesFetched++

		fresh := 0
		for _, p := range products {
			run.RecordsSeen++
			if _, dup := seen[p.ID]; p.ID != 0 && dup {
				continue
			}
			mod, err := shopify.Normalize(store, p)
			if err != nil {
				run.RecordsSkipped++
				continue
			}
			seen[p.ID] = struct{}{}
			mods = append(mods, mod)
			fresh++
		}

		if len(products) == 0 || len(products) < s.cfg.PageLimit {
			break
		}
		if fresh == 0 {
			// A full page of already-seen products means the upstream
			// is repeating itself; stop before the cap burns pages.
			s.logger.Warn("no new products on full page, stopping pagination",
				zap.String("store", store.ID),
				zap.Int("page", page),
			)
			break
		}
		if page >= s.cfg.MaxPages {
			run.Status = catalog.RunCapped
			s.logger.Warn("pagination stopped at safety cap",
				zap.String("store", store.ID),
				zap.Int("max_pages", s.cfg.MaxPages),
			)
			break
		}
	}

	if run.Status == "" {
		run.Status = catalog.RunSucceeded
	}
	run.FinishedAt = s.now()

	metrics.ObserveRecords(store.ID, len(mods), run.RecordsSkipped)
	s.logger.Info("store scrape finished",
		zap.String("store", store.ID),
		zap.String("status", string(run.Status)),
		zap.Int("pages", run.PagesFetched),
		zap.Int("mods", len(mods)),
		zap.Int("skipped", run.RecordsSkipped),
	)

	return Result{Run: run, Mods: mods}
}

func (s *Scraper) fail(store catalog.Store, run catalog.ScrapeRun, err error) Result {
	run.Status = catalog.RunFailed
	run.FinishedAt = s.now()
	run.Error = err.Error()

	metrics.ObserveRecords(store.ID, 0, run.RecordsSkipped)
	s.logger.Warn("store scrape failed",
		zap.String("store", store.ID),
		zap.Int("pages_fetched", run.PagesFetched),
		zap.Error(err),
	)

	// Accumulated mods are dropped: a failed attempt never commits.
	return Result{Run: run, Err: err}
}
