// Package fetcher defines the page-fetching contract and the
// rate-limit retry controller that wraps it.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/torquemods/modhub/internal/catalog"
	"github.com/torquemods/modhub/internal/metrics"
	"github.com/torquemods/modhub/internal/policy/backoff"
	"github.com/torquemods/modhub/internal/shopify"
)

// PageFetcher issues one page request against a store's catalog.
type PageFetcher interface {
	FetchPage(ctx context.Context, store catalog.Store, page int) ([]shopify.Product, error)
}

// Controller wraps a PageFetcher with the rate-limit retry policy.
// Only 429s are retried; any other failure is returned immediately so
// a broken upstream cannot stall the whole run.
type Controller struct {
	fetcher PageFetcher
	policy  backoff.Policy
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *zap.Logger
}

// NewController builds a Controller around the given fetcher.
func NewController(f PageFetcher, policy backoff.Policy, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		fetcher: f,
		policy:  policy,
		sleep:   sleepCtx,
		logger:  logger,
	}
}

// FetchPage fetches one page, waiting out rate limits per the policy.
func (c *Controller) FetchPage(ctx context.Context, store catalog.Store, page int) ([]shopify.Product, error) {
	for attempt := 0; ; attempt++ {
		products, err := c.fetcher.FetchPage(ctx, store, page)
		if err == nil {
			return products, nil
		}

		var rle *catalog.RateLimitError
		if !errors.As(err, &rle) {
			return nil, err
		}

		decision := c.policy.Next(attempt, rle.RetryAfter, rle.HasRetryAfter)
		if !decision.Retry {
			return nil, &catalog.RetryExhaustedError{
				StoreID:  store.ID,
				Page:     page,
				Attempts: attempt + 1,
			}
		}

		c.logger.Warn("rate limited, backing off",
			zap.String("store", store.ID),
			zap.Int("page", page),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", decision.Delay),
			zap.Bool("retry_after_header", rle.HasRetryAfter),
		)
		metrics.ObservePageDelay(store.ID, decision.Delay)

		if err := c.sleep(ctx, decision.Delay); err != nil {
			return nil, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
