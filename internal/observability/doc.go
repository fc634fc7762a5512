// Package observability provides logging, metrics, and context helpers for
// the venue search service.
//
// # Logging
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithSessionContext(logger, sessionID, "review")
//
// # Metrics
//
//	metrics := observability.NewMetrics("venue_search")
//	metrics.RecordSearchCompleted("openreview", len(papers), elapsed.Seconds())
//
// A nil *Metrics is valid and records nothing.
//
// # Standard Fields
//
//   - request_id: HTTP request identifier
//   - session_id: refinement session identifier
//   - stage: session stage (intent, review, results)
//   - source: paper source (openreview, cvf, arxiv)
//   - venue, year, keyword: search parameters
package observability
