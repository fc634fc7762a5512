package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/venue-search-service/internal/cache"
	"github.com/helixir/venue-search-service/internal/domain"
	"github.com/helixir/venue-search-service/internal/llm"
	"github.com/helixir/venue-search-service/internal/observability"
	"github.com/helixir/venue-search-service/internal/papersources"
)

// Defaults for Config.
const (
	DefaultTopN            = llm.DefaultTopN
	DefaultScanConcurrency = 4
)

// PaperSearcher runs one venue query. It is satisfied by *papersources.Router
// and decouples the engine from the concrete adapters in tests.
type PaperSearcher interface {
	Search(ctx context.Context, q papersources.Query) papersources.Result
}

// Config tunes the engine.
type Config struct {
	// TopN is the number of recommendations requested from the reranker.
	TopN int
	// ScanConcurrency bounds parallel keyword fetches within one scan.
	ScanConcurrency int
}

// Engine drives sessions through the refinement pipeline.
type Engine struct {
	searcher   PaperSearcher
	assistants llm.AssistantFactory
	cfg        Config
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewEngine creates an Engine. metrics may be nil.
func NewEngine(searcher PaperSearcher, assistants llm.AssistantFactory, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Engine {
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.ScanConcurrency <= 0 {
		cfg.ScanConcurrency = DefaultScanConcurrency
	}
	return &Engine{
		searcher:   searcher,
		assistants: assistants,
		cfg:        cfg,
		logger:     logger.With().Str("component", "session_engine").Logger(),
		metrics:    metrics,
	}
}

// NewSession creates a session in the Intent stage for sel. apiKey selects
// the language-model credential; empty uses the configured default.
func (e *Engine) NewSession(sel domain.Selection, apiKey string) (*Session, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		selection: sel,
		stage:     domain.StageIntent,
		cache:     cache.New(e.metrics),
		assistant: e.assistants(apiKey),
	}

	e.metrics.RecordSessionCreated()
	e.sessionLogger(s).Info().
		Str("venue", string(sel.Venue)).
		Int("year", sel.Year).
		Str("status", string(sel.Status)).
		Msg("session created")
	return s, nil
}

// SubmitIntent extracts keywords from text and moves the session to Review.
// Empty text is rejected with no transition. A failed extraction is not an
// error: the intent becomes the only keyword and the view reports
// ExtractionDegraded.
func (e *Engine) SubmitIntent(ctx context.Context, s *Session, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != domain.StageIntent {
		return domain.NewStageError("submit intent", s.stage)
	}
	intent := strings.TrimSpace(text)
	if intent == "" {
		return domain.NewValidationError("intent", "must not be empty")
	}

	ex := s.assistant.Extractor.Extract(ctx, intent)

	entries := make([]domain.KeywordEntry, 0, len(ex.Keywords))
	for _, kw := range ex.Keywords {
		if entry := domain.NewKeywordEntry(kw); entry.Keyword != "" {
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 {
		entries = append(entries, domain.NewKeywordEntry(intent))
	}

	s.intent = intent
	s.entries = entries
	s.reasoning = ex.Reasoning
	s.extractionDegraded = ex.Degraded
	s.extractionErr = ex.Err
	s.cache.Clear()
	s.clearResults()

	if ex.Degraded {
		e.sessionLogger(s).Warn().Err(ex.Err).Msg("keyword extraction degraded, using intent as keyword")
	}
	e.transition(s, domain.StageReview)
	return nil
}

// UpdateKeywords replaces the keyword entries with user edits. Counts are
// refreshed from the cache for active entries and unset for inactive ones.
func (e *Engine) UpdateKeywords(s *Session, entries []domain.KeywordEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != domain.StageReview {
		return domain.NewStageError("update keywords", s.stage)
	}
	return s.applyEdits(entries)
}

// ScanReport summarizes one scan.
type ScanReport struct {
	// Fetched keywords were searched and cached by this scan.
	Fetched []string `json:"fetched"`
	// Cached keywords were already present and not refetched.
	Cached []string `json:"cached"`
	// Failed keywords could not be searched; they stay uncached so the next
	// scan retries them.
	Failed []string `json:"failed"`
}

// Scan fetches every active keyword not yet cached and refreshes counts.
// sel, when non-nil, replaces the session's selection first. edits, when
// non-nil, replace the keyword entries first. The session stays in Review.
func (e *Engine) Scan(ctx context.Context, s *Session, sel *domain.Selection, edits []domain.KeywordEntry) (ScanReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report ScanReport
	if s.stage != domain.StageReview {
		return report, domain.NewStageError("scan", s.stage)
	}
	if sel != nil {
		if err := sel.Validate(); err != nil {
			return report, err
		}
		s.selection = *sel
	}
	if edits != nil {
		if err := s.applyEdits(edits); err != nil {
			return report, err
		}
	}

	// One fetch per distinct cache key, in entry order.
	var pending []string
	queued := make(map[string]bool)
	for _, entry := range s.entries {
		if !entry.Active {
			continue
		}
		key := cache.Key(entry.Keyword)
		if queued[key] {
			continue
		}
		queued[key] = true
		if s.cache.Has(entry.Keyword) {
			report.Cached = append(report.Cached, entry.Keyword)
			continue
		}
		pending = append(pending, entry.Keyword)
	}

	results := e.fetchAll(ctx, s, pending)
	failed := make(map[string]bool)
	for i, kw := range pending {
		if results[i].Failed() {
			failed[cache.Key(kw)] = true
			report.Failed = append(report.Failed, kw)
			continue
		}
		report.Fetched = append(report.Fetched, kw)
	}

	for i := range s.entries {
		entry := &s.entries[i]
		if !entry.Active {
			entry.Count = nil
			continue
		}
		n, ok := s.cache.Count(entry.Keyword)
		if !ok && !failed[cache.Key(entry.Keyword)] {
			entry.Count = nil
			continue
		}
		entry.Count = &n
	}

	e.sessionLogger(s).Info().
		Int("fetched", len(report.Fetched)).
		Int("cached", len(report.Cached)).
		Int("failed", len(report.Failed)).
		Msg("scan completed")
	return report, nil
}

// fetchAll searches keywords through the session cache in parallel.
// Results are returned in input order.
func (e *Engine) fetchAll(ctx context.Context, s *Session, keywords []string) []papersources.Result {
	results := make([]papersources.Result, len(keywords))
	if len(keywords) == 0 {
		return results
	}

	scoped := s.cache.Scope(e.searcher, s.selection)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ScanConcurrency)
	for i, kw := range keywords {
		g.Go(func() error {
			results[i] = scoped.Search(gctx, kw)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Confirm fixes the active keywords as the final set and enters Results.
// edits, when non-nil, replace the keyword entries first. With no active
// keyword the session stays in Review and a ValidationError is returned.
// Entering Results may return domain.ErrNoCandidates; the stage is still
// Results and the caller should direct the user back to Review.
func (e *Engine) Confirm(ctx context.Context, s *Session, edits []domain.KeywordEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != domain.StageReview {
		return domain.NewStageError("confirm", s.stage)
	}
	if edits != nil {
		if err := s.applyEdits(edits); err != nil {
			return err
		}
	}

	var final []string
	seen := make(map[string]bool)
	for _, entry := range s.entries {
		key := cache.Key(entry.Keyword)
		if !entry.Active || seen[key] {
			continue
		}
		seen[key] = true
		final = append(final, entry.Keyword)
	}
	if len(final) == 0 {
		return domain.NewValidationError("keywords", "at least one active keyword is required")
	}

	s.finalKeywords = final
	e.transition(s, domain.StageResults)
	return e.enterResults(ctx, s)
}

// Results runs the Results entry action if it has not produced a ranking
// yet. It is safe to call repeatedly.
func (e *Engine) Results(ctx context.Context, s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != domain.StageResults {
		return domain.NewStageError("view results", s.stage)
	}
	return e.enterResults(ctx, s)
}

// enterResults aggregates the final keywords and reranks once per session.
// The caller holds mu.
func (e *Engine) enterResults(ctx context.Context, s *Session) error {
	candidates := Aggregate(s.finalKeywords, s.cache)
	s.candidateCount = len(candidates)

	if len(candidates) == 0 {
		e.sessionLogger(s).Warn().Strs("keywords", s.finalKeywords).Msg("no cached candidates for final keywords")
		return fmt.Errorf("%w: scan the keywords before confirming", domain.ErrNoCandidates)
	}
	if s.rankingDone {
		return nil
	}

	ranking := s.assistant.Reranker.Rerank(ctx, s.intent, candidates, e.cfg.TopN)
	s.ranked = ranking.Papers
	s.rankingDegraded = ranking.Degraded
	s.rankingErr = ranking.Err
	s.rankingDone = true

	logger := e.sessionLogger(s)
	if ranking.Degraded {
		logger.Warn().Err(ranking.Err).Msg("rerank degraded, showing candidates unranked")
	}
	logger.Info().
		Int("candidates", len(candidates)).
		Int("selected", len(ranking.Papers)).
		Bool("degraded", ranking.Degraded).
		Msg("candidates ranked")
	return nil
}

// Dismiss removes the result at index. An out-of-range index is a no-op.
func (e *Engine) Dismiss(s *Session, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != domain.StageResults {
		return domain.NewStageError("dismiss", s.stage)
	}
	if index < 0 || index >= len(s.ranked) {
		return nil
	}
	s.ranked = append(s.ranked[:index:index], s.ranked[index+1:]...)
	return nil
}

// Back moves Review to Intent and Results to Review. Intent, keyword
// entries and cache are kept.
func (e *Engine) Back(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.stage {
	case domain.StageReview:
		e.transition(s, domain.StageIntent)
	case domain.StageResults:
		e.transition(s, domain.StageReview)
	default:
		return domain.NewStageError("back", s.stage)
	}
	return nil
}

// ResetKeywords clears the keyword entries and the cache during Review.
func (e *Engine) ResetKeywords(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != domain.StageReview {
		return domain.NewStageError("reset keywords", s.stage)
	}
	s.entries = nil
	s.cache.Clear()
	return nil
}

// Reset returns the session to its initial state from any stage.
func (e *Engine) Reset(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.stage
	s.resetState()
	if from != domain.StageIntent {
		e.metrics.RecordStageTransition(string(from), string(domain.StageIntent))
	}
	e.sessionLogger(s).Info().Str("from", string(from)).Msg("session reset")
}

// Assist runs the whole pipeline without user edits: extract keywords, scan
// all of them, confirm and rank. The returned view reflects the session even
// when an error is returned.
func (e *Engine) Assist(ctx context.Context, sel domain.Selection, intent, apiKey string) (View, error) {
	s, err := e.NewSession(sel, apiKey)
	if err != nil {
		return View{}, err
	}
	if err := e.SubmitIntent(ctx, s, intent); err != nil {
		return s.Snapshot(), err
	}
	if _, err := e.Scan(ctx, s, nil, nil); err != nil {
		return s.Snapshot(), err
	}
	if err := e.Confirm(ctx, s, nil); err != nil {
		return s.Snapshot(), err
	}
	return s.Snapshot(), nil
}

// applyEdits validates and installs keyword entries. The caller holds mu.
func (s *Session) applyEdits(edits []domain.KeywordEntry) error {
	entries := make([]domain.KeywordEntry, 0, len(edits))
	for i, edit := range edits {
		kw := strings.TrimSpace(edit.Keyword)
		if kw == "" {
			return domain.NewValidationError(fmt.Sprintf("keywords[%d]", i), "keyword must not be empty")
		}
		entry := domain.KeywordEntry{Keyword: kw, Active: edit.Active}
		if entry.Active {
			if n, ok := s.cache.Count(kw); ok {
				entry.Count = &n
			}
		}
		entries = append(entries, entry)
	}
	s.entries = entries
	return nil
}

// transition moves s to stage. The caller holds mu.
func (e *Engine) transition(s *Session, to domain.Stage) {
	from := s.stage
	s.stage = to
	e.metrics.RecordStageTransition(string(from), string(to))
	e.sessionLogger(s).Debug().Str("from", string(from)).Msg("stage changed")
}

func (e *Engine) sessionLogger(s *Session) *zerolog.Logger {
	logger := observability.WithSessionContext(e.logger, s.ID, string(s.stage))
	return &logger
}
