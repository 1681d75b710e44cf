package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/torquemods/modhub/internal/catalog"
	memorystore "github.com/torquemods/modhub/internal/store/memory"
)

type fakeTriggerer struct {
	calls   int
	err     error
	onCall  func()
	summary catalog.ScrapeSummary
}

func (f *fakeTriggerer) Trigger(_ context.Context) (catalog.ScrapeSummary, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	return f.summary, f.err
}

func seededStore(t *testing.T) *memorystore.Store {
	t.Helper()
	s := memorystore.New()
	require.NoError(t, s.ReplaceStoreMods(context.Background(), "dubhaus", []catalog.Mod{
		{ID: "dubhaus:1", StoreID: "dubhaus", Title: "Intake BMW F20", Tags: []string{"N20"}},
	}))
	return s
}

func TestListModsRejectsEmptyFilter(t *testing.T) {
	t.Parallel()

	trig := &fakeTriggerer{}
	e := New(seededStore(t), trig, zap.NewNop())

	_, err := e.ListMods(context.Background(), catalog.Filter{Make: "  "})
	require.ErrorIs(t, err, catalog.ErrInvalidQuery)
	// Validation happens before any scrape or storage work.
	require.Zero(t, trig.calls)
}

func TestListModsWarmCatalogSkipsScrape(t *testing.T) {
	t.Parallel()

	trig := &fakeTriggerer{}
	e := New(seededStore(t), trig, zap.NewNop())

	mods, err := e.ListMods(context.Background(), catalog.Filter{Make: "bmw"})
	require.NoError(t, err)
	require.Len(t, mods, 1)
	require.Zero(t, trig.calls)
}

func TestListModsColdStartTriggersScrape(t *testing.T) {
	t.Parallel()

	store := memorystore.New()
	trig := &fakeTriggerer{}
	trig.onCall = func() {
		// Simulate the orchestrator committing during the run.
		_ = store.ReplaceStoreMods(context.Background(), "dubhaus", []catalog.Mod{
			{ID: "dubhaus:1", StoreID: "dubhaus", Title: "Intake BMW F20"},
		})
	}
	e := New(store, trig, zap.NewNop())

	mods, err := e.ListMods(context.Background(), catalog.Filter{Make: "bmw"})
	require.NoError(t, err)
	require.Len(t, mods, 1)
	require.Equal(t, 1, trig.calls)

	// The catalog is warm now; no further trigger.
	_, err = e.ListMods(context.Background(), catalog.Filter{Make: "bmw"})
	require.NoError(t, err)
	require.Equal(t, 1, trig.calls)
}

func TestListModsColdStartFailurePropagates(t *testing.T) {
	t.Parallel()

	trig := &fakeTriggerer{err: catalog.ErrAllStoresFailed}
	e := New(memorystore.New(), trig, zap.NewNop())

	_, err := e.ListMods(context.Background(), catalog.Filter{Make: "bmw"})
	require.ErrorIs(t, err, catalog.ErrAllStoresFailed)
}

func TestGetModColdStart(t *testing.T) {
	t.Parallel()

	store := memorystore.New()
	trig := &fakeTriggerer{}
	trig.onCall = func() {
		_ = store.ReplaceStoreMods(context.Background(), "xforce", []catalog.Mod{
			{ID: "xforce:987", StoreID: "xforce", Title: "Catback"},
		})
	}
	e := New(store, trig, zap.NewNop())

	mod, err := e.GetMod(context.Background(), "987")
	require.NoError(t, err)
	require.Equal(t, "xforce:987", mod.ID)
	require.Equal(t, 1, trig.calls)
}

func TestGetModNotFound(t *testing.T) {
	t.Parallel()

	e := New(seededStore(t), &fakeTriggerer{}, zap.NewNop())

	_, err := e.GetMod(context.Background(), "nope")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

type failingCountStore struct {
	catalog.ModStore
}

func (failingCountStore) CountMods(context.Context) (int, error) {
	return 0, errors.New("db down")
}

func TestListModsCountFailure(t *testing.T) {
	t.Parallel()

	e := New(failingCountStore{}, &fakeTriggerer{}, zap.NewNop())

	_, err := e.ListMods(context.Background(), catalog.Filter{Make: "bmw"})
	var storageErr *catalog.StorageError
	require.ErrorAs(t, err, &storageErr)
}
