package collyfetcher

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/torquemods/modhub/internal/catalog"
)

var fetchStore = catalog.Store{
	ID:      "xforce",
	Name:    "XForce",
	BaseURL: "https://xforce.com.au",
}

func newTestClient(transport *httpmock.MockTransport) *Client {
	return NewWithTransport(Config{
		UserAgent: "modhub-test/0.0",
		PageLimit: 250,
		Timeout:   2 * time.Second,
	}, transport)
}

func TestFetchPageDecodesProducts(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET",
		"https://xforce.com.au/products.json?limit=250&page=1",
		httpmock.NewStringResponder(200, `{"products":[
			{"id":11,"title":"Varex Catback","handle":"varex","vendor":"XForce",
			 "tags":["Exhaust"],"variants":[{"price":"1899.00"}]},
			{"id":12,"title":"Header Kit","handle":"headers","tags":"4AGE, Header"}
		]}`))

	products, err := newTestClient(transport).FetchPage(context.Background(), fetchStore, 1)
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.Equal(t, int64(11), products[0].ID)
	require.Equal(t, []string{"4AGE", "Header"}, []string(products[1].Tags))
}

func TestFetchPageRateLimited(t *testing.T) {
	t.Parallel()

	resp := httpmock.NewStringResponse(http.StatusTooManyRequests, "slow down")
	resp.Header = http.Header{"Retry-After": []string{"7"}}

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET",
		"https://xforce.com.au/products.json?limit=250&page=3",
		httpmock.ResponderFromResponse(resp))

	_, err := newTestClient(transport).FetchPage(context.Background(), fetchStore, 3)

	var rle *catalog.RateLimitError
	require.ErrorAs(t, err, &rle)
	require.Equal(t, "xforce", rle.StoreID)
	require.Equal(t, 3, rle.Page)
	require.True(t, rle.HasRetryAfter)
	require.Equal(t, 7*time.Second, rle.RetryAfter)
}

func TestFetchPageRateLimitedWithoutHeader(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET",
		"https://xforce.com.au/products.json?limit=250&page=1",
		httpmock.NewStringResponder(http.StatusTooManyRequests, ""))

	_, err := newTestClient(transport).FetchPage(context.Background(), fetchStore, 1)

	var rle *catalog.RateLimitError
	require.ErrorAs(t, err, &rle)
	require.False(t, rle.HasRetryAfter)
}

func TestFetchPageServerError(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET",
		"https://xforce.com.au/products.json?limit=250&page=1",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	_, err := newTestClient(transport).FetchPage(context.Background(), fetchStore, 1)

	var fe *catalog.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, 1, fe.Page)
}

func TestFetchPageMalformedBody(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET",
		"https://xforce.com.au/products.json?limit=250&page=1",
		httpmock.NewStringResponder(200, "<html>not json</html>"))

	_, err := newTestClient(transport).FetchPage(context.Background(), fetchStore, 1)

	var fe *catalog.FetchError
	require.ErrorAs(t, err, &fe)
}

func TestFetchPageRepeatedFetchSucceeds(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET",
		"https://xforce.com.au/products.json?limit=250&page=1",
		httpmock.NewStringResponder(200, `{"products":[{"id":11,"title":"Varex Catback"}]}`))

	client := newTestClient(transport)

	// Retries and scheduled runs hit the same page URL again through
	// the same client; every fetch must go out on the wire.
	for i := 0; i < 3; i++ {
		products, err := client.FetchPage(context.Background(), fetchStore, 1)
		require.NoError(t, err)
		require.Len(t, products, 1)
	}
	require.Equal(t, 3, transport.GetTotalCallCount())
}

func TestFetchPageRecoversAfterRateLimit(t *testing.T) {
	t.Parallel()

	calls := 0
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET",
		"https://xforce.com.au/products.json?limit=250&page=1",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(http.StatusTooManyRequests, ""), nil
			}
			return httpmock.NewStringResponse(200, `{"products":[{"id":11,"title":"Varex Catback"}]}`), nil
		})

	client := newTestClient(transport)

	_, err := client.FetchPage(context.Background(), fetchStore, 1)
	var rle *catalog.RateLimitError
	require.ErrorAs(t, err, &rle)

	products, err := client.FetchPage(context.Background(), fetchStore, 1)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, 2, calls)
}

func TestFetchPageTrailingSlashBase(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET",
		"https://xforce.com.au/products.json?limit=250&page=2",
		httpmock.NewStringResponder(200, `{"products":[]}`))

	slashStore := fetchStore
	slashStore.BaseURL = "https://xforce.com.au/"

	products, err := newTestClient(transport).FetchPage(context.Background(), slashStore, 2)
	require.NoError(t, err)
	require.Empty(t, products)
}

func TestPageURL(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"https://justjap.com/products.json?limit=100&page=4",
		pageURL("https://justjap.com/", 100, 4))
}
