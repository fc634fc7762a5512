// Package papersources provides adapters that fetch conference papers from
// heterogeneous backends and normalize them into domain.Paper records.
//
// Each adapter implements PaperSource and serves a fixed set of venues. The
// Router dispatches a Query to the adapter registered for its venue:
//
//	router := papersources.NewRouter(logger, papersources.RouterConfig{})
//	router.Register(openreview.New(openreview.Config{}, logger, metrics))
//	router.Register(cvf.New(cvf.Config{}, logger, metrics))
//	res := router.Search(ctx, papersources.Query{
//	    Venue:   domain.VenueICLR,
//	    Year:    2024,
//	    Keyword: "diffusion",
//	    Status:  domain.StatusAccepted,
//	})
//
// Adapters never fail a search: transport, status and parse failures are
// logged and turned into an empty Result whose Err records the cause.
package papersources

import (
	"context"

	"github.com/helixir/venue-search-service/internal/domain"
)

// Query describes one search against a single venue.
type Query struct {
	// Venue is the conference to search.
	Venue domain.Venue

	// Year is the conference year.
	Year int

	// Keyword filters results. Adapters decide how it is matched.
	Keyword string

	// Status selects accepted papers or submissions under review.
	// Ignored by sources without a review API.
	Status domain.Status
}

// Selection returns the venue/year/status part of the query.
func (q Query) Selection() domain.Selection {
	return domain.Selection{Venue: q.Venue, Year: q.Year, Status: q.Status}
}

// Result is the outcome of one search.
type Result struct {
	// Papers is never nil. It is empty when Err is set.
	Papers []*domain.Paper

	// Err records why the source contributed nothing. It is informational:
	// callers treat the result as empty and must not abort on it.
	Err error
}

// Failed reports whether the search degraded to an empty result.
func (r Result) Failed() bool {
	return r.Err != nil
}

// PaperSource is implemented by every paper backend adapter.
type PaperSource interface {
	// Search fetches, normalizes and filters papers for the query.
	// Failures yield an empty Result carrying the cause.
	Search(ctx context.Context, q Query) Result

	// Venues lists the venues this source serves.
	Venues() []domain.Venue

	// Name returns a human-readable name for logging and metrics.
	Name() string
}
