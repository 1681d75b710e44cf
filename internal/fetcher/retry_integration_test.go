package fetcher

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/torquemods/modhub/internal/catalog"
	collyfetcher "github.com/torquemods/modhub/internal/fetcher/colly"
	"github.com/torquemods/modhub/internal/policy/backoff"
)

// The controller retrying against the real page client must end up
// refetching the same page URL; a client that dedupes visits would
// turn every retry into a hard failure.
func TestControllerRetryThroughRealClient(t *testing.T) {
	t.Parallel()

	calls := 0
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET",
		"https://xforce.com.au/products.json?limit=250&page=1",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls <= 2 {
				resp := httpmock.NewStringResponse(http.StatusTooManyRequests, "")
				resp.Header = http.Header{"Retry-After": []string{"1"}}
				return resp, nil
			}
			return httpmock.NewStringResponse(200,
				`{"products":[{"id":11,"title":"Varex Catback","handle":"varex"}]}`), nil
		})

	client := collyfetcher.NewWithTransport(collyfetcher.Config{
		UserAgent: "modhub-test/0.0",
		PageLimit: 250,
		Timeout:   2 * time.Second,
	}, transport)

	c := NewController(client, backoff.Policy{MaxRetries: 6, BaseDelay: time.Second}, zap.NewNop())
	var sleeps []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	store := catalog.Store{ID: "xforce", BaseURL: "https://xforce.com.au"}
	products, err := c.FetchPage(context.Background(), store, 1)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, int64(11), products[0].ID)
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{time.Second, time.Second}, sleeps)
}
