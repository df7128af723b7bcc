package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdelaney/crm-mcp/internal/cache"
)

// fakeRemote is a paged /people endpoint that records every request it sees.
type fakeRemote struct {
	mu       sync.Mutex
	requests []pageRequest
	// respond overrides the default full-page answer per request index.
	respond func(w http.ResponseWriter, index int, limit, offset int) bool
}

type pageRequest struct {
	limit  int
	offset int
}

func (f *fakeRemote) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		f.mu.Lock()
		index := len(f.requests)
		f.requests = append(f.requests, pageRequest{limit: limit, offset: offset})
		f.mu.Unlock()

		if f.respond != nil && f.respond(w, index, limit, offset) {
			return
		}
		writePage(w, limit, offset, limit)
	}
}

func (f *fakeRemote) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeRemote) request(i int) pageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func writePage(w http.ResponseWriter, limit, offset, n int) {
	items := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, map[string]any{"id": offset + i})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"people":    items,
		"_metadata": map[string]any{"limit": limit, "offset": offset},
	})
}

func testRate() RateConfig {
	return RateConfig{
		BaseDelay:         time.Millisecond,
		LowDelay:          2 * time.Millisecond,
		CriticalDelay:     3 * time.Millisecond,
		LowThreshold:      50,
		CriticalThreshold: 10,
		Cooldown:          10 * time.Millisecond,
	}
}

func newTestFetcher(t *testing.T, remote *fakeRemote, store *cache.Store, opts FetcherOptions) (*Fetcher, *Client) {
	t.Helper()
	ts := httptest.NewServer(remote.handler())
	t.Cleanup(ts.Close)
	client := NewClient(ClientOptions{
		BaseURL:    ts.URL,
		APIKey:     "test-key",
		SystemName: "test",
		Governor:   NewGovernor(testRate()),
	})
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	return NewFetcher(client, store, opts), client
}

func TestFetchUpToPaginates(t *testing.T) {
	remote := &fakeRemote{}
	f, _ := newTestFetcher(t, remote, cache.New(100), FetcherOptions{PageSize: 100})

	records, err := f.FetchUpTo(context.Background(), "people", nil, 250)
	require.NoError(t, err)
	assert.Len(t, records, 250)

	require.Equal(t, 3, remote.count(), "250 records at page size 100 is exactly 3 requests")
	assert.Equal(t, pageRequest{limit: 100, offset: 0}, remote.request(0))
	assert.Equal(t, pageRequest{limit: 100, offset: 100}, remote.request(1))
	assert.Equal(t, pageRequest{limit: 50, offset: 200}, remote.request(2))
}

func TestFetchUpToEarlyStop(t *testing.T) {
	remote := &fakeRemote{}
	remote.respond = func(w http.ResponseWriter, index, limit, offset int) bool {
		if offset == 100 {
			writePage(w, limit, offset, 40)
			return true
		}
		return false
	}
	f, _ := newTestFetcher(t, remote, cache.New(100), FetcherOptions{PageSize: 100})

	records, err := f.FetchUpTo(context.Background(), "people", nil, 300)
	require.NoError(t, err)
	assert.Len(t, records, 140)
	assert.Equal(t, 2, remote.count(), "a short page means end of data; no further requests")
}

func TestFetchUpToServesRepeatFromCache(t *testing.T) {
	remote := &fakeRemote{}
	f, _ := newTestFetcher(t, remote, cache.New(100), FetcherOptions{PageSize: 100})

	first, err := f.FetchUpTo(context.Background(), "people", map[string]any{"sort": "-created"}, 1000)
	require.NoError(t, err)
	require.Len(t, first, 1000)
	require.Equal(t, 10, remote.count())

	second, err := f.FetchUpTo(context.Background(), "people", map[string]any{"sort": "-created"}, 1000)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 10, remote.count(), "identical repeat must be a full cache hit")
}

func TestFetchUpToOversizedPageNotCached(t *testing.T) {
	remote := &fakeRemote{}
	store := cache.New(100, cache.WithMaxValueBytes(64))
	f, _ := newTestFetcher(t, remote, store, FetcherOptions{PageSize: 100})

	records, err := f.FetchUpTo(context.Background(), "people", nil, 100)
	require.NoError(t, err, "an uncacheable page must not fail the fetch")
	require.Len(t, records, 100)
	assert.Equal(t, 0, store.Size(), "page above the value limit is not stored")

	_, err = f.FetchUpTo(context.Background(), "people", nil, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, remote.count(), "repeat goes back to the network")
}

func TestFetchUpToCacheDisabled(t *testing.T) {
	remote := &fakeRemote{}
	f, _ := newTestFetcher(t, remote, nil, FetcherOptions{PageSize: 100})

	_, err := f.FetchUpTo(context.Background(), "people", nil, 200)
	require.NoError(t, err)
	_, err = f.FetchUpTo(context.Background(), "people", nil, 200)
	require.NoError(t, err)
	assert.Equal(t, 4, remote.count(), "without a store every page hits the network")
}

func TestFetchUpToInvalidation(t *testing.T) {
	remote := &fakeRemote{}
	store := cache.New(100)
	f, _ := newTestFetcher(t, remote, store, FetcherOptions{PageSize: 100})

	_, err := f.FetchUpTo(context.Background(), "people", nil, 100)
	require.NoError(t, err)
	require.Equal(t, 1, remote.count())

	f.Invalidate("people")

	_, err = f.FetchUpTo(context.Background(), "people", nil, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, remote.count(), "invalidation forces a refetch")
}

func TestFetchUpToRetriesTransient(t *testing.T) {
	remote := &fakeRemote{}
	remote.respond = func(w http.ResponseWriter, index, limit, offset int) bool {
		if index == 0 {
			w.WriteHeader(http.StatusBadGateway)
			return true
		}
		return false
	}
	f, _ := newTestFetcher(t, remote, nil, FetcherOptions{PageSize: 100})

	records, err := f.FetchUpTo(context.Background(), "people", nil, 100)
	require.NoError(t, err)
	assert.Len(t, records, 100)
	assert.Equal(t, 2, remote.count())
}

func TestFetchUpToValidationAbortsImmediately(t *testing.T) {
	remote := &fakeRemote{}
	remote.respond = func(w http.ResponseWriter, index, limit, offset int) bool {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"errorMessage": "invalid stageId"})
		return true
	}
	f, _ := newTestFetcher(t, remote, nil, FetcherOptions{PageSize: 100})

	_, err := f.FetchUpTo(context.Background(), "people", map[string]any{"stageId": "nope"}, 100)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 0, fe.Page)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, http.StatusBadRequest, ve.Status)
	assert.Contains(t, ve.Detail, "invalid stageId")

	assert.Equal(t, 1, remote.count(), "validation failures are never retried")
}

func TestFetchUpToPartialOnExhaustedRetries(t *testing.T) {
	remote := &fakeRemote{}
	remote.respond = func(w http.ResponseWriter, index, limit, offset int) bool {
		if offset == 100 {
			w.WriteHeader(http.StatusInternalServerError)
			return true
		}
		return false
	}
	f, _ := newTestFetcher(t, remote, nil, FetcherOptions{PageSize: 100, MaxAttempts: 2})

	records, err := f.FetchUpTo(context.Background(), "people", nil, 300)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "people", fe.Category)
	assert.Equal(t, 1, fe.Page)
	assert.Len(t, fe.Partial, 100, "page 0 survives the page 1 failure")
	assert.Len(t, records, 100, "partial records are also returned directly")
	assert.Equal(t, 3, remote.count(), "one success plus two attempts at the failing page")
}

func TestFetchUpToRateLimited(t *testing.T) {
	remote := &fakeRemote{}
	remote.respond = func(w http.ResponseWriter, index, limit, offset int) bool {
		w.WriteHeader(http.StatusTooManyRequests)
		return true
	}
	f, client := newTestFetcher(t, remote, nil, FetcherOptions{PageSize: 100, MaxAttempts: 2})

	_, err := f.FetchUpTo(context.Background(), "people", nil, 100)
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Positive(t, client.Governor().NextDelay())
}

func TestFetchUpToCancellation(t *testing.T) {
	remote := &fakeRemote{}
	f, _ := newTestFetcher(t, remote, nil, FetcherOptions{PageSize: 100})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.FetchUpTo(ctx, "people", nil, 100)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetchUpToObservesQuota(t *testing.T) {
	remote := &fakeRemote{}
	remote.respond = func(w http.ResponseWriter, index, limit, offset int) bool {
		w.Header().Set(rateLimitHeader, "5")
		return false
	}
	f, client := newTestFetcher(t, remote, nil, FetcherOptions{PageSize: 100})

	_, err := f.FetchUpTo(context.Background(), "people", nil, 100)
	require.NoError(t, err)

	remaining, known := client.Governor().Remaining()
	require.True(t, known)
	assert.Equal(t, 5, remaining)
	assert.Equal(t, 3*time.Millisecond, client.Governor().NextDelay(), "critical tier delay after a low quota hint")
}

func TestFetchUpToRejectsNonPositiveMax(t *testing.T) {
	remote := &fakeRemote{}
	f, _ := newTestFetcher(t, remote, nil, FetcherOptions{})

	_, err := f.FetchUpTo(context.Background(), "people", nil, 0)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, remote.count())
}

func TestExtractItemsSkipsMetadata(t *testing.T) {
	resp := map[string]any{
		"_metadata": map[string]any{"total": float64(2)},
		"deals": []any{
			map[string]any{"id": float64(1)},
			map[string]any{"id": float64(2)},
		},
	}
	items := extractItems(resp, "deals")
	require.Len(t, items, 2)
	assert.Equal(t, fmt.Sprint(float64(1)), fmt.Sprint(items[0]["id"]))
}

func TestExtractItemsPrefersCategoryField(t *testing.T) {
	// Two array fields in one envelope: the category-named one wins, so page
	// contents never depend on map iteration order.
	resp := map[string]any{
		"_metadata": map[string]any{"total": float64(1)},
		"warnings":  []any{map[string]any{"code": "deprecated"}},
		"deals":     []any{map[string]any{"id": float64(7)}},
	}
	for i := 0; i < 20; i++ {
		items := extractItems(resp, "deals")
		require.Len(t, items, 1)
		assert.Equal(t, float64(7), items[0]["id"])
	}
}

func TestExtractItemsFallsBackToScan(t *testing.T) {
	resp := map[string]any{
		"_metadata": map[string]any{"total": float64(1)},
		"results":   []any{map[string]any{"id": float64(3)}},
	}
	items := extractItems(resp, "deals")
	require.Len(t, items, 1)
	assert.Equal(t, float64(3), items[0]["id"])
}
