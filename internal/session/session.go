// Package session implements the three-stage refinement pipeline that turns a
// researcher's intent into a reranked list of conference papers.
//
// A Session moves Intent -> Review -> Results. Keywords are extracted from the
// intent, edited and scanned during Review, and the merged candidate pool is
// reranked once on entering Results. Every Session owns a keyword-scoped
// result cache so repeated scans never refetch a keyword.
package session

import (
	"sync"
	"time"

	"github.com/helixir/venue-search-service/internal/cache"
	"github.com/helixir/venue-search-service/internal/domain"
	"github.com/helixir/venue-search-service/internal/llm"
)

// Session is the state of one refinement flow. All fields are guarded by mu;
// Engine methods lock it so only one operation mutates a session at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	selection domain.Selection
	stage     domain.Stage
	intent    string
	entries   []domain.KeywordEntry
	cache     *cache.ResultCache
	assistant *llm.Assistant

	extractionDegraded bool
	extractionErr      error
	reasoning          string

	finalKeywords   []string
	candidateCount  int
	ranked          []*domain.Paper
	rankingDone     bool
	rankingErr      error
	rankingDegraded bool
}

// View is a point-in-time copy of a session safe to hand to callers.
type View struct {
	ID                 string                `json:"id"`
	CreatedAt          time.Time             `json:"created_at"`
	Stage              domain.Stage          `json:"stage"`
	Selection          domain.Selection      `json:"selection"`
	Intent             string                `json:"intent"`
	Keywords           []domain.KeywordEntry `json:"keywords"`
	Reasoning          string                `json:"reasoning,omitempty"`
	ExtractionDegraded bool                  `json:"extraction_degraded"`
	CachedKeywords     []string              `json:"cached_keywords"`
	FinalKeywords      []string              `json:"final_keywords"`
	CandidateCount     int                   `json:"candidate_count"`
	Results            []*domain.Paper       `json:"results"`
	RankingDegraded    bool                  `json:"ranking_degraded"`
	Ranked             bool                  `json:"ranked"`
}

// Snapshot returns a copy of the session's current state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// view copies state; the caller holds mu.
func (s *Session) view() View {
	entries := make([]domain.KeywordEntry, len(s.entries))
	for i, e := range s.entries {
		entries[i] = e
		if e.Count != nil {
			n := *e.Count
			entries[i].Count = &n
		}
	}

	return View{
		ID:                 s.ID,
		CreatedAt:          s.CreatedAt,
		Stage:              s.stage,
		Selection:          s.selection,
		Intent:             s.intent,
		Keywords:           entries,
		Reasoning:          s.reasoning,
		ExtractionDegraded: s.extractionDegraded,
		CachedKeywords:     s.cache.Keys(),
		FinalKeywords:      append([]string{}, s.finalKeywords...),
		CandidateCount:     s.candidateCount,
		Results:            append([]*domain.Paper{}, s.ranked...),
		RankingDegraded:    s.rankingDegraded,
		Ranked:             s.rankingDone,
	}
}

// Stage returns the current stage.
func (s *Session) Stage() domain.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// ExtractionErr returns the cause of a degraded keyword extraction.
func (s *Session) ExtractionErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extractionErr
}

// RankingErr returns the cause of a degraded rerank.
func (s *Session) RankingErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rankingErr
}

// clearResults drops everything derived from a confirm. The caller holds mu.
func (s *Session) clearResults() {
	s.finalKeywords = nil
	s.candidateCount = 0
	s.ranked = nil
	s.rankingDone = false
	s.rankingErr = nil
	s.rankingDegraded = false
}

// resetState returns the session to its initial Intent state. The selection
// and the assistant survive. The caller holds mu.
func (s *Session) resetState() {
	s.stage = domain.StageIntent
	s.intent = ""
	s.entries = nil
	s.extractionDegraded = false
	s.extractionErr = nil
	s.reasoning = ""
	s.cache.Clear()
	s.clearResults()
}
