package catalog

import "context"

// ModStore is the persistence contract for normalized mods and scrape
// runs. Implementations must make ReplaceStoreMods atomic per store:
// a concurrent reader sees either the store's full prior catalog or
// its full new catalog, never a mix.
type ModStore interface {
	// ReplaceStoreMods upserts every mod in the set and prunes rows of
	// storeID whose IDs are absent from it, as one atomic unit. It is
	// only called for runs that finished success or capped.
	ReplaceStoreMods(ctx context.Context, storeID string, mods []Mod) error

	// CountMods returns the total number of persisted mods.
	CountMods(ctx context.Context) (int, error)

	// QueryMods returns mods matching every supplied filter value,
	// newest first.
	QueryMods(ctx context.Context, filter Filter) ([]Mod, error)

	// FindMod resolves either a full composite id or a bare upstream
	// product id (matched against the id suffix). Returns ErrNotFound
	// when nothing matches.
	FindMod(ctx context.Context, id string) (Mod, error)

	// RecordRun appends a finalized ScrapeRun. Runs are write-once.
	RecordRun(ctx context.Context, run ScrapeRun) error

	// Close releases underlying resources.
	Close()
}
