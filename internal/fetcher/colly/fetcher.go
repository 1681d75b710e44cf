// Package collyfetcher fetches single catalog pages using gocolly.
package collyfetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/torquemods/modhub/internal/catalog"
	"github.com/torquemods/modhub/internal/metrics"
	"github.com/torquemods/modhub/internal/shopify"
)

// Config controls the page client.
type Config struct {
	UserAgent string
	PageLimit int
	Timeout   time.Duration
}

// Client issues one GET {base}/products.json?limit={n}&page={p} per
// call and classifies the outcome into the catalog error taxonomy.
type Client struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

// New builds a Client with a pooled HTTP transport.
func New(cfg Config) *Client {
	return NewWithTransport(cfg, newHTTPTransport())
}

// NewWithTransport builds a Client over a caller-supplied transport
// (tests swap in a mock transport here).
func NewWithTransport(cfg Config, transport http.RoundTripper) *Client {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	// Catalog pages are fetched again on 429 retries and on every
	// scheduled run, and clones share the visited-URL store, so revisit
	// dedupe must stay off.
	c.AllowURLRevisit = true
	c.WithTransport(transport)
	return &Client{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// FetchPage retrieves and decodes one catalog page. Page indexes start
// at 1. A 429 maps to *catalog.RateLimitError carrying any Retry-After
// value; every other failure maps to *catalog.FetchError.
func (c *Client) FetchPage(ctx context.Context, store catalog.Store, page int) ([]shopify.Product, error) {
	url := pageURL(store.BaseURL, c.cfg.PageLimit, page)

	var (
		body       []byte
		statusCode int
		retryAfter string
		fetchErr   error
	)

	collector := c.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	collector.AllowURLRevisit = true
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	timeout := c.cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(c.transport)

	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			statusCode = r.StatusCode
			if r.Headers != nil {
				retryAfter = r.Headers.Get("Retry-After")
			}
		}
	})

	visitErr, err := runCollector(ctx, collector, url)
	if err != nil {
		metrics.ObservePage(store.ID, "error")
		return nil, &catalog.FetchError{StoreID: store.ID, Page: page, Err: err}
	}
	if fetchErr == nil {
		fetchErr = visitErr
	}

	if statusCode == http.StatusTooManyRequests {
		metrics.ObservePage(store.ID, "rate_limited")
		rle := &catalog.RateLimitError{StoreID: store.ID, Page: page}
		if secs, err := strconv.ParseInt(strings.TrimSpace(retryAfter), 10, 64); err == nil && secs > 0 {
			rle.RetryAfter = time.Duration(secs) * time.Second
			rle.HasRetryAfter = true
		}
		return nil, rle
	}
	if fetchErr != nil {
		metrics.ObservePage(store.ID, "error")
		if statusCode != 0 {
			fetchErr = fmt.Errorf("http status %d: %w", statusCode, fetchErr)
		}
		return nil, &catalog.FetchError{StoreID: store.ID, Page: page, Err: fetchErr}
	}

	var payload shopify.ProductsPage
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.ObservePage(store.ID, "error")
		return nil, &catalog.FetchError{
			StoreID: store.ID,
			Page:    page,
			Err:     fmt.Errorf("decode products page: %w", err),
		}
	}

	metrics.ObservePage(store.ID, "ok")
	return payload.Products, nil
}

// runCollector separates cancellation from fetch outcome: the first
// return value is the visit error (classified by the caller together
// with whatever OnError captured), the second is a context error.
func runCollector(ctx context.Context, collector *colly.Collector, url string) (error, error) {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("page fetch canceled: %w", ctx.Err())
	case err := <-done:
		return err, nil
	}
}

func pageURL(baseURL string, limit, page int) string {
	return fmt.Sprintf("%s/products.json?limit=%d&page=%d",
		strings.TrimRight(baseURL, "/"), limit, page)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
