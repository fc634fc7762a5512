package httpserver

import (
	"github.com/helixir/venue-search-service/internal/domain"
	"github.com/helixir/venue-search-service/internal/papersources"
	"github.com/helixir/venue-search-service/internal/session"
)

const (
	warnExtractionDegraded = "keyword extraction unavailable; the intent is used as the only keyword"
	warnRankingDegraded    = "ranking unavailable; candidates are shown in source order"
	warnSourceDegraded     = "paper source unavailable; results may be incomplete"
)

// venueResponse is the JSON representation of a supported venue.
type venueResponse struct {
	Code     string   `json:"code"`
	Family   string   `json:"family"`
	Years    []int    `json:"years"`
	Statuses []string `json:"statuses"`
}

// venuesResponse is the JSON response for the venue catalog.
type venuesResponse struct {
	Venues []venueResponse `json:"venues"`
}

// searchResponse is the JSON response for a one-shot search.
type searchResponse struct {
	Venue    string          `json:"venue"`
	Year     int             `json:"year"`
	Status   string          `json:"status"`
	Keyword  string          `json:"keyword"`
	Papers   []*domain.Paper `json:"papers"`
	Total    int             `json:"total"`
	Degraded bool            `json:"degraded"`
	Warnings []string        `json:"warnings,omitempty"`
}

// searchBatchResponse is the JSON response for a multi-venue search.
type searchBatchResponse struct {
	Keyword  string           `json:"keyword"`
	Searches []searchResponse `json:"searches"`
	Total    int              `json:"total"`
	Degraded bool             `json:"degraded"`
	Warnings []string         `json:"warnings,omitempty"`
}

// sessionResponse is the JSON representation of a session.
type sessionResponse struct {
	session.View
	Warnings []string `json:"warnings,omitempty"`
}

// scanResponse is the JSON response for a scan.
type scanResponse struct {
	sessionResponse
	Scan session.ScanReport `json:"scan"`
}

// resultsResponse is the JSON response for the results view.
type resultsResponse struct {
	SessionID       string          `json:"session_id"`
	Intent          string          `json:"intent"`
	FinalKeywords   []string        `json:"final_keywords"`
	CandidateCount  int             `json:"candidate_count"`
	Results         []*domain.Paper `json:"results"`
	RankingDegraded bool            `json:"ranking_degraded"`
	Warnings        []string        `json:"warnings,omitempty"`
}

func venueToResponse(info domain.VenueInfo) venueResponse {
	statuses := []string{string(domain.StatusAccepted)}
	if info.SupportsStatus() {
		statuses = append(statuses, string(domain.StatusUnderReview))
	}
	return venueResponse{
		Code:     string(info.Code),
		Family:   string(info.Family),
		Years:    info.Years(),
		Statuses: statuses,
	}
}

func viewToResponse(v session.View) sessionResponse {
	return sessionResponse{View: v, Warnings: viewWarnings(v)}
}

func viewToResultsResponse(v session.View) resultsResponse {
	var warnings []string
	if v.RankingDegraded {
		warnings = append(warnings, warnRankingDegraded)
	}
	return resultsResponse{
		SessionID:       v.ID,
		Intent:          v.Intent,
		FinalKeywords:   v.FinalKeywords,
		CandidateCount:  v.CandidateCount,
		Results:         v.Results,
		RankingDegraded: v.RankingDegraded,
		Warnings:        warnings,
	}
}

func viewWarnings(v session.View) []string {
	var warnings []string
	if v.ExtractionDegraded && v.Stage != domain.StageIntent {
		warnings = append(warnings, warnExtractionDegraded)
	}
	if v.RankingDegraded {
		warnings = append(warnings, warnRankingDegraded)
	}
	return warnings
}

func toSearchResponse(q papersources.Query, res papersources.Result) searchResponse {
	resp := searchResponse{
		Venue:    string(q.Venue),
		Year:     q.Year,
		Status:   string(q.Status),
		Keyword:  q.Keyword,
		Papers:   res.Papers,
		Total:    len(res.Papers),
		Degraded: res.Failed(),
	}
	if resp.Papers == nil {
		resp.Papers = []*domain.Paper{}
	}
	if res.Failed() {
		resp.Warnings = []string{warnSourceDegraded}
	}
	return resp
}

func toSearchBatchResponse(keyword string, searches []searchResponse) searchBatchResponse {
	resp := searchBatchResponse{Keyword: keyword, Searches: searches}
	for _, sr := range searches {
		resp.Total += sr.Total
		if sr.Degraded {
			resp.Degraded = true
		}
	}
	if resp.Degraded {
		resp.Warnings = []string{warnSourceDegraded}
	}
	return resp
}
