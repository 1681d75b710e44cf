// Package catalog defines the canonical domain types shared by the
// ingestion pipeline and the query engine.
package catalog

import "time"

// Store describes one upstream storefront. Descriptors come from
// configuration at startup and are immutable for the life of a run.
type Store struct {
	ID      string `json:"id" mapstructure:"id"`
	Name    string `json:"name" mapstructure:"name"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	LogoURL string `json:"logo_url,omitempty" mapstructure:"logo_url"`
}

// Mod is a normalized product record. Its ID is the composite
// "<store_id>:<upstream_product_id>", which is globally unique because
// store IDs are unique and upstream IDs are unique within a store.
type Mod struct {
	ID          string   `json:"id"`
	StoreID     string   `json:"store_id"`
	Title       string   `json:"title"`
	Images      []string `json:"images"`
	Price       float64  `json:"price"`
	Vendor      string   `json:"vendor"`
	ProductType string   `json:"product_type"`
	Tags        []string `json:"tags"`
	ProductURL  string   `json:"product_url"`
}

// RunStatus is the terminal state of a per-store scrape attempt.
type RunStatus string

const (
	// RunSucceeded means pagination terminated normally and the store's
	// rows were committed.
	RunSucceeded RunStatus = "success"
	// RunFailed means the attempt was aborted; accumulated records were
	// discarded and existing rows for the store were left untouched.
	RunFailed RunStatus = "failed"
	// RunCapped means pagination stopped at the max-pages safety cap.
	// The partial result set is committed like a success.
	RunCapped RunStatus = "capped"
)

// ScrapeRun records one ingestion attempt for a single store. It is
// created when the attempt starts, finalized exactly once, and never
// mutated afterward.
type ScrapeRun struct {
	ID             string    `json:"id"`
	StoreID        string    `json:"store_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Status         RunStatus `json:"status"`
	PagesFetched   int       `json:"pages_fetched"`
	RecordsSeen    int       `json:"records_seen"`
	RecordsSkipped int       `json:"records_skipped"`
	Error          string    `json:"error,omitempty"`
}

// ScrapeSummary aggregates one orchestrator run across all stores.
type ScrapeSummary struct {
	StoresTotal     int `json:"stores_total"`
	StoresSucceeded int `json:"stores_succeeded"`
	StoresFailed    int `json:"stores_failed"`
	ModsUpserted    int `json:"mods_upserted"`
}
