package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jdelaney/crm-mcp/internal/cache"
	"github.com/jdelaney/crm-mcp/internal/logger"
)

// metadataKey marks the envelope field in list responses that is not a record
// batch.
const metadataKey = "_metadata"

// Fetcher turns one logical request for up to N records into a sequence of
// bounded page requests. Pages are fetched strictly in order because the
// governor's pacing decision depends on the most recent quota observation.
type Fetcher struct {
	client      *Client
	store       *cache.Store // nil when caching is disabled
	ttl         cache.TTLPolicy
	pageSize    int
	maxAttempts int
	retryDelay  time.Duration
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	// PageSize is the remote-enforced maximum page size. Default 100.
	PageSize int
	// MaxAttempts bounds retries per page on transient failures. Default 3.
	MaxAttempts int
	// RetryDelay is the initial backoff, doubled per attempt. Default 100ms.
	RetryDelay time.Duration
	// TTL selects cache lifetimes per category. Zero value gets the default
	// tiering.
	TTL cache.TTLPolicy
}

// NewFetcher creates a Fetcher. A nil store disables caching entirely and
// every page goes to the network.
func NewFetcher(client *Client, store *cache.Store, opts FetcherOptions) *Fetcher {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}
	if opts.TTL.Default == 0 && opts.TTL.ByCategory == nil {
		opts.TTL = cache.DefaultTTLPolicy()
	}
	return &Fetcher{
		client:      client,
		store:       store,
		ttl:         opts.TTL,
		pageSize:    opts.PageSize,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
	}
}

// FetchUpTo retrieves up to maxRecords records of a category, transparently
// paging through the remote. Each page is served from cache when possible.
// It stops early when the remote returns a short page. On failure the
// returned *FetchError carries every record accumulated so far.
func (f *Fetcher) FetchUpTo(ctx context.Context, category string, filters map[string]any, maxRecords int) ([]map[string]any, error) {
	if maxRecords <= 0 {
		return nil, &ValidationError{Status: 0, Detail: fmt.Sprintf("maxRecords must be positive, got %d", maxRecords)}
	}

	var records []map[string]any
	for offset := 0; len(records) < maxRecords; offset += f.pageSize {
		limit := f.pageSize
		if rest := maxRecords - len(records); rest < limit {
			limit = rest
		}
		pageIndex := offset / f.pageSize
		pageParams := mergeParams(filters, limit, offset)
		key := cache.Key(category, pageParams, offset)

		if items, ok := f.cachedPage(key); ok {
			logger.Debugf("cache hit for %s page %d", category, pageIndex)
			records = append(records, items...)
			if len(items) < limit {
				break
			}
			continue
		}

		items, err := f.fetchPage(ctx, category, pageParams, pageIndex)
		if err != nil {
			return records, &FetchError{Category: category, Page: pageIndex, Partial: records, Err: err}
		}
		f.storePage(key, category, items)
		records = append(records, items...)
		if len(items) < limit {
			break
		}
	}
	if len(records) > maxRecords {
		records = records[:maxRecords]
	}
	return records, nil
}

// Invalidate drops all cached pages of a category. Write-path tools call
// this after any mutating operation.
func (f *Fetcher) Invalidate(category string) int {
	if f.store == nil {
		return 0
	}
	n := f.store.InvalidateCategory(category)
	if n > 0 {
		logger.Debugf("invalidated %d cached pages of %s", n, category)
	}
	return n
}

func (f *Fetcher) cachedPage(key string) ([]map[string]any, bool) {
	if f.store == nil {
		return nil, false
	}
	raw, ok := f.store.Get(key)
	if !ok {
		return nil, false
	}
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (f *Fetcher) storePage(key, category string, items []map[string]any) {
	if f.store == nil {
		return
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := f.store.Put(key, raw, f.ttl.TTL(category)); err != nil {
		// Oversized pages are simply not cached; the fetch still succeeded.
		logger.Debugf("not caching %s page: %v", category, err)
	}
}

// fetchPage performs one network page fetch with bounded retries on
// transient failures. Validation rejections abort immediately.
func (f *Fetcher) fetchPage(ctx context.Context, category string, params map[string]any, pageIndex int) ([]map[string]any, error) {
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		resp, err := f.client.Get(ctx, "/"+category, params)
		if err == nil {
			return extractItems(resp, category), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var ve *ValidationError
		if errors.As(err, &ve) || !IsTransient(err) {
			return nil, err
		}
		if attempt == f.maxAttempts {
			break
		}
		backoff := f.retryDelay << (attempt - 1)
		logger.Warnf("page %d of %s failed (attempt %d/%d), retrying in %s: %v",
			pageIndex, category, attempt, f.maxAttempts, backoff, err)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// extractItems pulls the record batch out of a list response envelope. The
// remote wraps each batch under a category-named field next to _metadata;
// the scan fallback covers endpoints whose field name differs from the
// category. The named lookup comes first so an envelope carrying a second
// array field cannot make page contents depend on map iteration order.
func extractItems(resp map[string]any, category string) []map[string]any {
	if arr, ok := resp[category].([]any); ok {
		return collectRecords(arr)
	}
	for k, v := range resp {
		if k == metadataKey {
			continue
		}
		if arr, ok := v.([]any); ok {
			return collectRecords(arr)
		}
	}
	return nil
}

func collectRecords(arr []any) []map[string]any {
	items := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

func mergeParams(filters map[string]any, limit, offset int) map[string]any {
	params := make(map[string]any, len(filters)+2)
	for k, v := range filters {
		params[k] = v
	}
	params["limit"] = limit
	params["offset"] = offset
	return params
}
