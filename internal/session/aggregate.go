package session

import "github.com/helixir/venue-search-service/internal/domain"

// CacheReader is the read side of a result cache.
type CacheReader interface {
	Lookup(keyword string) ([]*domain.Paper, bool)
}

// Aggregate merges the cached results of keywords into one candidate pool.
// Papers keep keyword order, then source order. A paper whose Link was
// already seen is dropped. Keywords missing from the cache contribute nothing.
func Aggregate(keywords []string, cache CacheReader) []*domain.Paper {
	out := make([]*domain.Paper, 0)
	seen := make(map[string]struct{})

	for _, kw := range keywords {
		papers, ok := cache.Lookup(kw)
		if !ok {
			continue
		}
		for _, p := range papers {
			if _, dup := seen[p.Link]; dup {
				continue
			}
			seen[p.Link] = struct{}{}
			out = append(out, p)
		}
	}

	return out
}
