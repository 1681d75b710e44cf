// Package memory provides an in-memory ModStore for tests and for
// running the service without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/torquemods/modhub/internal/catalog"
)

// Store keeps mods and scrape runs in process memory. Per-store
// replacement happens under one lock acquisition, so readers see the
// same snapshot-at-store-granularity the Postgres store provides.
type Store struct {
	mu   sync.RWMutex
	mods map[string]catalog.Mod
	seq  map[string]int // insertion order, newest-first queries
	next int
	runs []catalog.ScrapeRun
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		mods: make(map[string]catalog.Mod),
		seq:  make(map[string]int),
	}
}

// ReplaceStoreMods swaps the store's full catalog atomically.
func (s *Store) ReplaceStoreMods(_ context.Context, storeID string, mods []catalog.Mod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]struct{}, len(mods))
	for _, m := range mods {
		keep[m.ID] = struct{}{}
		s.next++
		s.mods[m.ID] = m
		s.seq[m.ID] = s.next
	}
	for id, m := range s.mods {
		if m.StoreID != storeID {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(s.mods, id)
			delete(s.seq, id)
		}
	}
	return nil
}

// CountMods returns the number of persisted mods.
func (s *Store) CountMods(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mods), nil
}

// QueryMods returns matching mods, most recently written first.
func (s *Store) QueryMods(_ context.Context, filter catalog.Filter) ([]catalog.Mod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []catalog.Mod
	for _, m := range s.mods {
		if filter.Matches(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out, nil
}

// FindMod resolves a composite id or a bare upstream id suffix.
func (s *Store) FindMod(_ context.Context, id string) (catalog.Mod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.mods[id]; ok {
		return m, nil
	}
	for _, m := range s.mods {
		if _, suffix, ok := strings.Cut(m.ID, ":"); ok && suffix == id {
			return m, nil
		}
	}
	return catalog.Mod{}, catalog.ErrNotFound
}

// RecordRun appends a finalized run.
func (s *Store) RecordRun(_ context.Context, run catalog.ScrapeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

// Runs returns a copy of all recorded runs (test helper).
func (s *Store) Runs() []catalog.ScrapeRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.ScrapeRun, len(s.runs))
	copy(out, s.runs)
	return out
}

// ModsForStore returns the store's current rows (test helper).
func (s *Store) ModsForStore(storeID string) []catalog.Mod {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []catalog.Mod
	for _, m := range s.mods {
		if m.StoreID == storeID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close is a no-op.
func (s *Store) Close() {}
