package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/torquemods/modhub/internal/catalog"
)

func mod(id, storeID, title string) catalog.Mod {
	return catalog.Mod{ID: id, StoreID: storeID, Title: title}
}

func TestReplaceStoreModsUpsertsAndPrunes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	require.NoError(t, s.ReplaceStoreMods(ctx, "xforce", []catalog.Mod{
		mod("xforce:1", "xforce", "Catback"),
		mod("xforce:2", "xforce", "Headers"),
	}))

	// Second scrape drops product 2 and adds product 3.
	require.NoError(t, s.ReplaceStoreMods(ctx, "xforce", []catalog.Mod{
		mod("xforce:1", "xforce", "Catback v2"),
		mod("xforce:3", "xforce", "Muffler"),
	}))

	mods := s.ModsForStore("xforce")
	require.Len(t, mods, 2)
	require.Equal(t, "xforce:1", mods[0].ID)
	require.Equal(t, "Catback v2", mods[0].Title)
	require.Equal(t, "xforce:3", mods[1].ID)
}

func TestReplaceStoreModsEmptySetClearsStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	require.NoError(t, s.ReplaceStoreMods(ctx, "xforce", []catalog.Mod{
		mod("xforce:1", "xforce", "Catback"),
	}))
	require.NoError(t, s.ReplaceStoreMods(ctx, "xforce", nil))
	require.Empty(t, s.ModsForStore("xforce"))
}

func TestReplaceStoreModsIsolatedPerStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	require.NoError(t, s.ReplaceStoreMods(ctx, "xforce", []catalog.Mod{
		mod("xforce:1", "xforce", "Catback"),
	}))
	require.NoError(t, s.ReplaceStoreMods(ctx, "justjap", []catalog.Mod{
		mod("justjap:1", "justjap", "Coilovers"),
	}))

	// Replacing one store never touches another store's rows.
	require.NoError(t, s.ReplaceStoreMods(ctx, "justjap", nil))
	require.Len(t, s.ModsForStore("xforce"), 1)

	count, err := s.CountMods(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestReplaceStoreModsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	set := []catalog.Mod{
		mod("xforce:1", "xforce", "Catback"),
		mod("xforce:2", "xforce", "Headers"),
	}

	require.NoError(t, s.ReplaceStoreMods(ctx, "xforce", set))
	require.NoError(t, s.ReplaceStoreMods(ctx, "xforce", set))

	require.Len(t, s.ModsForStore("xforce"), 2)
}

func TestQueryModsFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	require.NoError(t, s.ReplaceStoreMods(ctx, "dubhaus", []catalog.Mod{
		{ID: "dubhaus:1", StoreID: "dubhaus", Title: "Intake BMW F20", Tags: []string{"N20"}},
		{ID: "dubhaus:2", StoreID: "dubhaus", Title: "Exhaust Golf GTI", Tags: []string{"MK7"}},
	}))

	mods, err := s.QueryMods(ctx, catalog.Filter{Make: "bmw"})
	require.NoError(t, err)
	require.Len(t, mods, 1)
	require.Equal(t, "dubhaus:1", mods[0].ID)

	mods, err = s.QueryMods(ctx, catalog.Filter{Make: "bmw", Engine: "n20"})
	require.NoError(t, err)
	require.Len(t, mods, 1)

	mods, err = s.QueryMods(ctx, catalog.Filter{Make: "bmw", Model: "mk7"})
	require.NoError(t, err)
	require.Empty(t, mods)
}

func TestQueryModsNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	require.NoError(t, s.ReplaceStoreMods(ctx, "a", []catalog.Mod{mod("a:1", "a", "Widget")}))
	require.NoError(t, s.ReplaceStoreMods(ctx, "b", []catalog.Mod{mod("b:1", "b", "Widget")}))

	mods, err := s.QueryMods(ctx, catalog.Filter{Make: "widget"})
	require.NoError(t, err)
	require.Len(t, mods, 2)
	require.Equal(t, "b:1", mods[0].ID)
}

func TestFindMod(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	require.NoError(t, s.ReplaceStoreMods(ctx, "xforce", []catalog.Mod{
		mod("xforce:987", "xforce", "Catback"),
	}))

	byComposite, err := s.FindMod(ctx, "xforce:987")
	require.NoError(t, err)
	require.Equal(t, "xforce:987", byComposite.ID)

	bySuffix, err := s.FindMod(ctx, "987")
	require.NoError(t, err)
	require.Equal(t, "xforce:987", bySuffix.ID)

	_, err = s.FindMod(ctx, "missing")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestRecordRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	run := catalog.ScrapeRun{
		ID:         "run-1",
		StoreID:    "xforce",
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		Status:     catalog.RunSucceeded,
	}
	require.NoError(t, s.RecordRun(ctx, run))
	require.NoError(t, s.RecordRun(ctx, catalog.ScrapeRun{ID: "run-2", StoreID: "xforce", Status: catalog.RunFailed}))

	runs := s.Runs()
	require.Len(t, runs, 2)
	require.Equal(t, "run-1", runs[0].ID)
}
