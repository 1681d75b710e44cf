package catalog

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced at the service boundary.
var (
	// ErrNotFound is returned when a mod lookup matches nothing.
	ErrNotFound = errors.New("mod not found")
	// ErrInvalidQuery is returned when a compatibility query supplies
	// no usable filter. It is raised before any network or storage work.
	ErrInvalidQuery = errors.New("at least one filter must be provided: make, model, or engine")
	// ErrAllStoresFailed signals a systemic upstream or network outage:
	// every configured store failed within one orchestrator run.
	ErrAllStoresFailed = errors.New("failed to fetch products from all configured stores")
)

// FetchError is a non-retryable upstream failure (network error or a
// non-429 HTTP error) for one store's page. It fails that store only.
type FetchError struct {
	StoreID string
	Page    int
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch store %q page %d: %v", e.StoreID, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RateLimitError reports an upstream 429. RetryAfter carries the
// server-provided wait when the header was present and parseable.
type RateLimitError struct {
	StoreID       string
	Page          int
	RetryAfter    time.Duration
	HasRetryAfter bool
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by store %q on page %d", e.StoreID, e.Page)
}

// RetryExhaustedError means the per-page rate-limit retry budget was
// spent without a successful response. The store's scrape fails.
type RetryExhaustedError struct {
	StoreID  string
	Page     int
	Attempts int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("store %q page %d still rate limited after %d attempts", e.StoreID, e.Page, e.Attempts)
}

// StorageError wraps a persistence failure so callers can distinguish
// storage trouble from upstream trouble.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
