package papersources

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/venue-search-service/internal/domain"
	"github.com/helixir/venue-search-service/internal/observability"
)

// FetchFunc performs the network part of a search and may fail.
type FetchFunc func(ctx context.Context, q Query) ([]*domain.Paper, error)

// Guard runs fetch for q and converts any failure into an empty Result.
// Adapters call it from Search so that logging and metrics are uniform
// across sources.
func Guard(ctx context.Context, logger zerolog.Logger, metrics *observability.Metrics, source string, q Query, fetch FetchFunc) Result {
	log := observability.WithSearchContext(logger, source, string(q.Venue), q.Year, q.Keyword)
	start := time.Now()
	metrics.RecordSearchStarted(source)

	papers, err := fetch(ctx, q)
	elapsed := time.Since(start)
	if err != nil {
		metrics.RecordSearchFailed(source, elapsed.Seconds())
		log.Warn().Err(err).Dur("elapsed", elapsed).Msg("search failed, returning no results")
		return Result{Papers: []*domain.Paper{}, Err: err}
	}
	if papers == nil {
		papers = []*domain.Paper{}
	}

	metrics.RecordSearchCompleted(source, len(papers), elapsed.Seconds())
	log.Debug().Int("papers", len(papers)).Dur("elapsed", elapsed).Msg("search completed")
	return Result{Papers: papers}
}
