// Package cache holds per-session search results keyed by keyword.
//
// A keyword is fetched at most once per session: concurrent requests for the
// same uncached keyword share one fetch, and a stored entry is never replaced
// until the whole cache is cleared.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/helixir/venue-search-service/internal/domain"
	"github.com/helixir/venue-search-service/internal/observability"
	"github.com/helixir/venue-search-service/internal/papersources"
)

// FetchFunc produces the results for an uncached keyword.
type FetchFunc func(ctx context.Context) papersources.Result

// ResultCache maps keywords to the papers found for them.
// It is safe for concurrent use.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string][]*domain.Paper
	// epoch changes on Clear so fetches started earlier do not repopulate.
	epoch   uint64
	flight  singleflight.Group
	metrics *observability.Metrics
}

// New creates an empty cache. metrics may be nil.
func New(metrics *observability.Metrics) *ResultCache {
	return &ResultCache{
		entries: make(map[string][]*domain.Paper),
		metrics: metrics,
	}
}

// Key returns the cache key for a keyword. Keywords differing only in case
// or spacing share an entry.
func Key(keyword string) string {
	return domain.NormalizeKeyword(keyword)
}

// Lookup returns the cached papers for keyword.
func (c *ResultCache) Lookup(keyword string) ([]*domain.Paper, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	papers, ok := c.entries[Key(keyword)]
	if !ok {
		return nil, false
	}
	return append([]*domain.Paper(nil), papers...), true
}

// Has reports whether keyword has been fetched.
func (c *ResultCache) Has(keyword string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[Key(keyword)]
	return ok
}

// Count returns the number of cached papers for keyword.
func (c *ResultCache) Count(keyword string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	papers, ok := c.entries[Key(keyword)]
	return len(papers), ok
}

// GetOrFetch returns the cached papers for keyword, or runs fetch and stores
// its papers. Concurrent callers for the same keyword share a single fetch.
// A failed fetch is returned but not stored, so a later call retries it.
func (c *ResultCache) GetOrFetch(ctx context.Context, keyword string, fetch FetchFunc) papersources.Result {
	if papers, ok := c.Lookup(keyword); ok {
		c.metrics.RecordCacheHit()
		return papersources.Result{Papers: papers}
	}

	key := Key(keyword)
	c.mu.RLock()
	epoch := c.epoch
	c.mu.RUnlock()

	v, _, _ := c.flight.Do(fmt.Sprintf("%d/%s", epoch, key), func() (interface{}, error) {
		if papers, ok := c.Lookup(keyword); ok {
			c.metrics.RecordCacheHit()
			return papersources.Result{Papers: papers}, nil
		}

		c.metrics.RecordCacheMiss()
		res := fetch(ctx)
		if res.Papers == nil {
			res.Papers = []*domain.Paper{}
		}
		if !res.Failed() {
			c.store(key, epoch, res.Papers)
		}
		return res, nil
	})

	res := v.(papersources.Result)
	res.Papers = append([]*domain.Paper{}, res.Papers...)
	return res
}

// store writes papers for key unless the cache was cleared since epoch or
// the key is already present.
func (c *ResultCache) store(key string, epoch uint64, papers []*domain.Paper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	if _, exists := c.entries[key]; exists {
		return
	}
	c.entries[key] = append([]*domain.Paper(nil), papers...)
}

// Keys returns the cached keys in sorted order.
func (c *ResultCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of cached keywords.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes every entry.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]*domain.Paper)
	c.epoch++
}

// Searcher runs a query against the paper sources.
type Searcher interface {
	Search(ctx context.Context, q papersources.Query) papersources.Result
}

// Scoped binds a cache to a searcher and a venue selection so callers can
// search by keyword alone.
type Scoped struct {
	cache    *ResultCache
	searcher Searcher
	sel      domain.Selection
}

// Scope returns a keyword searcher backed by c.
func (c *ResultCache) Scope(searcher Searcher, sel domain.Selection) *Scoped {
	return &Scoped{cache: c, searcher: searcher, sel: sel}
}

// Search returns the cached results for keyword, fetching them on first use.
func (s *Scoped) Search(ctx context.Context, keyword string) papersources.Result {
	return s.cache.GetOrFetch(ctx, keyword, func(ctx context.Context) papersources.Result {
		return s.searcher.Search(ctx, papersources.Query{
			Venue:   s.sel.Venue,
			Year:    s.sel.Year,
			Keyword: keyword,
			Status:  s.sel.Status,
		})
	})
}
