package papersources

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/venue-search-service/internal/domain"
)

const (
	// DefaultAdapterTimeout bounds a single adapter call.
	DefaultAdapterTimeout = 45 * time.Second

	// DefaultMaxParallel bounds concurrent adapter calls in SearchMany.
	DefaultMaxParallel = 4
)

// RouterConfig configures a Router.
type RouterConfig struct {
	// AdapterTimeout is applied to the context of every adapter call.
	// When it fires the adapter contributes an empty result.
	AdapterTimeout time.Duration

	// MaxParallel caps concurrent adapter calls in SearchMany.
	MaxParallel int
}

// Router dispatches queries to the source registered for their venue.
// It is safe for concurrent use.
type Router struct {
	mu      sync.RWMutex
	sources map[domain.Venue]PaperSource
	config  RouterConfig
	logger  zerolog.Logger
}

// NewRouter creates a router with an empty dispatch table.
func NewRouter(logger zerolog.Logger, cfg RouterConfig) *Router {
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = DefaultAdapterTimeout
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	return &Router{
		sources: make(map[domain.Venue]PaperSource),
		config:  cfg,
		logger:  logger.With().Str("component", "router").Logger(),
	}
}

// Register adds source to the dispatch table for every venue it serves.
// A later registration for the same venue replaces the earlier one.
func (r *Router) Register(source PaperSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range source.Venues() {
		r.sources[v] = source
	}
}

// Source returns the source serving venue, or nil.
func (r *Router) Source(venue domain.Venue) PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[venue]
}

// Venues returns the venues with a registered source.
func (r *Router) Venues() []domain.Venue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	venues := make([]domain.Venue, 0, len(r.sources))
	for v := range r.sources {
		venues = append(venues, v)
	}
	sort.Slice(venues, func(i, j int) bool { return venues[i] < venues[j] })
	return venues
}

// Search runs q against the source registered for q.Venue.
// An unknown venue yields an empty result that is not marked as failed.
func (r *Router) Search(ctx context.Context, q Query) Result {
	source := r.Source(q.Venue)
	if source == nil {
		r.logger.Warn().Str("venue", string(q.Venue)).Msg("no source registered for venue")
		return Result{Papers: []*domain.Paper{}}
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.AdapterTimeout)
	defer cancel()

	res := source.Search(ctx, q)
	if res.Papers == nil {
		res.Papers = []*domain.Paper{}
	}
	return res
}

// SearchMany runs independent queries in parallel and returns their results
// in input order.
func (r *Router) SearchMany(ctx context.Context, queries []Query) []Result {
	results := make([]Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.MaxParallel)
	for i, q := range queries {
		g.Go(func() error {
			results[i] = r.Search(gctx, q)
			return nil
		})
	}
	// Search never fails, so Wait has nothing to report.
	_ = g.Wait()

	return results
}
