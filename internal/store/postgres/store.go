// Package postgres implements catalog.ModStore on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/torquemods/modhub/internal/catalog"
)

const upsertChunkSize = 400

// Config controls the connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// dbPool is the subset of pgxpool.Pool the store uses; pgxmock
// satisfies it in tests.
type dbPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store persists normalized mods and scrape runs in Postgres.
type Store struct {
	pool dbPool
}

// New connects a Store using the provided config and verifies the
// connection with a ping.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (tests).
func NewWithPool(pool dbPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates tables and indexes if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS normalized_mods (
			id TEXT PRIMARY KEY,
			store_id TEXT NOT NULL,
			title TEXT NOT NULL,
			images JSONB NOT NULL DEFAULT '[]'::jsonb,
			price DOUBLE PRECISION NOT NULL DEFAULT 0,
			vendor TEXT NOT NULL,
			product_type TEXT NOT NULL,
			tags JSONB NOT NULL DEFAULT '[]'::jsonb,
			product_url TEXT NOT NULL,
			search_text TEXT NOT NULL DEFAULT '',
			search_compact TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS scrape_runs (
			id TEXT PRIMARY KEY,
			store_id TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			pages_fetched INT NOT NULL,
			records_seen INT NOT NULL,
			records_skipped INT NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_normalized_mods_store_id
			ON normalized_mods(store_id)`,
		`CREATE INDEX IF NOT EXISTS idx_normalized_mods_updated_at
			ON normalized_mods(updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_normalized_mods_upstream_id
			ON normalized_mods ((split_part(id, ':', 2)))`,
		`CREATE INDEX IF NOT EXISTS idx_scrape_runs_store_started
			ON scrape_runs(store_id, started_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// ReplaceStoreMods commits a store's complete catalog in one
// transaction: upsert every mod, then prune rows the new set no longer
// contains. Readers never observe a half-applied catalog.
func (s *Store) ReplaceStoreMods(ctx context.Context, storeID string, mods []catalog.Mod) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for start := 0; start < len(mods); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(mods) {
			end = len(mods)
		}
		if err := upsertChunk(ctx, tx, mods[start:end]); err != nil {
			return err
		}
	}

	if len(mods) == 0 {
		if _, err := tx.Exec(ctx,
			`DELETE FROM normalized_mods WHERE store_id = $1`, storeID); err != nil {
			return fmt.Errorf("prune store rows: %w", err)
		}
	} else {
		// NOW() is transaction-stable, and every row upserted above got
		// updated_at = NOW(), so anything strictly older is a row the
		// new catalog no longer contains.
		if _, err := tx.Exec(ctx,
			`DELETE FROM normalized_mods WHERE store_id = $1 AND updated_at < NOW()`,
			storeID); err != nil {
			return fmt.Errorf("prune store rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const upsertSQL = `
INSERT INTO normalized_mods (
	id, store_id, title, images, price, vendor, product_type, tags,
	product_url, search_text, search_compact, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW())
ON CONFLICT (id) DO UPDATE SET
	store_id = EXCLUDED.store_id,
	title = EXCLUDED.title,
	images = EXCLUDED.images,
	price = EXCLUDED.price,
	vendor = EXCLUDED.vendor,
	product_type = EXCLUDED.product_type,
	tags = EXCLUDED.tags,
	product_url = EXCLUDED.product_url,
	search_text = EXCLUDED.search_text,
	search_compact = EXCLUDED.search_compact,
	updated_at = NOW()`

func upsertChunk(ctx context.Context, tx pgx.Tx, mods []catalog.Mod) error {
	batch := &pgx.Batch{}
	for _, m := range mods {
		images, err := json.Marshal(m.Images)
		if err != nil {
			return fmt.Errorf("marshal images for %s: %w", m.ID, err)
		}
		tags, err := json.Marshal(m.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags for %s: %w", m.ID, err)
		}
		searchText := catalog.SearchText(m)
		batch.Queue(upsertSQL,
			m.ID, m.StoreID, m.Title, images, m.Price, m.Vendor,
			m.ProductType, tags, m.ProductURL,
			searchText, strings.ReplaceAll(searchText, " ", ""),
		)
	}
	results := tx.SendBatch(ctx, batch)
	for range mods {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("upsert mod: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close upsert batch: %w", err)
	}
	return nil
}

// CountMods returns the total persisted mod count.
func (s *Store) CountMods(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM normalized_mods`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count mods: %w", err)
	}
	return count, nil
}

const modColumns = `id, store_id, title, images, price, vendor, product_type, tags, product_url`

// QueryMods returns mods matching every supplied filter, newest first.
// Filters run against the precomputed search_text column; the engine
// filter also checks search_compact so spaced and unspaced engine
// codes match each other.
func (s *Store) QueryMods(ctx context.Context, filter catalog.Filter) ([]catalog.Mod, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if v := catalog.NormalizeMatchText(filter.Make); v != "" {
		conds = append(conds, "search_text LIKE "+arg("%"+v+"%"))
	}
	if v := catalog.NormalizeMatchText(filter.Model); v != "" {
		conds = append(conds, "search_text LIKE "+arg("%"+v+"%"))
	}
	if v := catalog.NormalizeMatchText(filter.Engine); v != "" {
		compact := strings.ReplaceAll(v, " ", "")
		conds = append(conds, "(search_text LIKE "+arg("%"+v+"%")+
			" OR search_compact LIKE "+arg("%"+compact+"%")+")")
	}

	query := "SELECT " + modColumns + " FROM normalized_mods"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query mods: %w", err)
	}
	defer rows.Close()

	var out []catalog.Mod
	for rows.Next() {
		mod, err := scanMod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mod)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mods: %w", err)
	}
	return out, nil
}

// FindMod resolves a composite id, or a bare upstream id against the
// id suffix.
func (s *Store) FindMod(ctx context.Context, id string) (catalog.Mod, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+modColumns+` FROM normalized_mods
		WHERE id = $1 OR split_part(id, ':', 2) = $1
		LIMIT 1`, id)
	mod, err := scanMod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Mod{}, catalog.ErrNotFound
		}
		return catalog.Mod{}, err
	}
	return mod, nil
}

// RecordRun appends one finalized scrape run.
func (s *Store) RecordRun(ctx context.Context, run catalog.ScrapeRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_runs (
			id, store_id, started_at, finished_at, status,
			pages_fetched, records_seen, records_skipped, error
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		run.ID, run.StoreID, run.StartedAt, run.FinishedAt, string(run.Status),
		run.PagesFetched, run.RecordsSeen, run.RecordsSkipped, run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert scrape run: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMod(row rowScanner) (catalog.Mod, error) {
	var (
		mod    catalog.Mod
		images []byte
		tags   []byte
	)
	if err := row.Scan(
		&mod.ID, &mod.StoreID, &mod.Title, &images, &mod.Price,
		&mod.Vendor, &mod.ProductType, &tags, &mod.ProductURL,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Mod{}, err
		}
		return catalog.Mod{}, fmt.Errorf("scan mod row: %w", err)
	}
	if err := json.Unmarshal(images, &mod.Images); err != nil {
		return catalog.Mod{}, fmt.Errorf("decode images for %s: %w", mod.ID, err)
	}
	if err := json.Unmarshal(tags, &mod.Tags); err != nil {
		return catalog.Mod{}, fmt.Errorf("decode tags for %s: %w", mod.ID, err)
	}
	return mod, nil
}
