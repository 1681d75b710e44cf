// Package query serves compatibility lookups over the persisted
// catalog, triggering a cold-start scrape when the catalog is empty.
package query

import (
	"context"

	"go.uber.org/zap"

	"github.com/torquemods/modhub/internal/catalog"
)

// Triggerer starts a full scrape or joins the one in flight.
type Triggerer interface {
	Trigger(ctx context.Context) (catalog.ScrapeSummary, error)
}

// Engine answers mod queries, seeding the catalog on first use.
type Engine struct {
	store     catalog.ModStore
	triggerer Triggerer
	logger    *zap.Logger
}

// New builds an Engine.
func New(store catalog.ModStore, triggerer Triggerer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, triggerer: triggerer, logger: logger}
}

// ListMods returns mods matching the filter. At least one filter field
// must be non-blank; that is validated before any storage or scrape
// work happens.
func (e *Engine) ListMods(ctx context.Context, filter catalog.Filter) ([]catalog.Mod, error) {
	if filter.IsZero() {
		return nil, catalog.ErrInvalidQuery
	}
	if err := e.ensureSeeded(ctx); err != nil {
		return nil, err
	}
	return e.store.QueryMods(ctx, filter)
}

// GetMod resolves a single mod by composite or bare upstream id.
func (e *Engine) GetMod(ctx context.Context, id string) (catalog.Mod, error) {
	if err := e.ensureSeeded(ctx); err != nil {
		return catalog.Mod{}, err
	}
	return e.store.FindMod(ctx, id)
}

// ensureSeeded triggers a blocking scrape when the catalog is empty.
// Concurrent cold-start requests coalesce onto one run via the
// triggerer's single-flight guard.
func (e *Engine) ensureSeeded(ctx context.Context) error {
	count, err := e.store.CountMods(ctx)
	if err != nil {
		return &catalog.StorageError{Op: "count mods", Err: err}
	}
	if count > 0 {
		return nil
	}

	e.logger.Info("catalog empty, running cold-start scrape")
	summary, err := e.triggerer.Trigger(ctx)
	if err != nil {
		return err
	}
	e.logger.Info("cold-start scrape finished",
		zap.Int("stores_succeeded", summary.StoresSucceeded),
		zap.Int("stores_failed", summary.StoresFailed),
		zap.Int("mods_upserted", summary.ModsUpserted),
	)
	return nil
}
