package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/venue-search-service/internal/domain"
	"github.com/helixir/venue-search-service/internal/observability"
)

const (
	// MaxRerankCandidates bounds the candidate list sent to the model.
	MaxRerankCandidates = 100
	// AbstractPreviewRunes is how much of each abstract appears in the prompt.
	AbstractPreviewRunes = 300
	// DefaultTopN is the number of recommendations requested.
	DefaultTopN = 25
)

// Ranking is the outcome of a rerank.
type Ranking struct {
	// Papers are copies of the selected candidates in the model's order,
	// each carrying its RecommendationReason. In degraded mode they are the
	// first topN candidates, unranked and without reasons.
	Papers   []*domain.Paper
	Degraded bool
	Err      error
}

// rerankResponse is the expected JSON structure from the model. Entries are
// kept raw so one malformed recommendation does not discard the others.
type rerankResponse struct {
	Recommendations *[]json.RawMessage `json:"recommendations"`
}

type recommendation struct {
	ID     json.RawMessage `json:"id"`
	Reason json.RawMessage `json:"reason"`
}

// Reranker selects and explains the best candidates for an intent.
type Reranker struct {
	client  ChatClient
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewReranker creates a Reranker. metrics may be nil.
func NewReranker(client ChatClient, logger zerolog.Logger, metrics *observability.Metrics) *Reranker {
	return &Reranker{
		client:  client,
		logger:  logger.With().Str("component", "reranker").Logger(),
		metrics: metrics,
	}
}

// Rerank asks the model to pick the topN candidates that best fit intent.
// Only the first MaxRerankCandidates candidates are considered. Ids that are
// not integers, out of range, or repeated are skipped. Candidates are never
// mutated. An empty candidate list returns an empty ranking without a call.
func (r *Reranker) Rerank(ctx context.Context, intent string, candidates []*domain.Paper, topN int) Ranking {
	if len(candidates) == 0 {
		return Ranking{Papers: []*domain.Paper{}}
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	pool := candidates
	if len(pool) > MaxRerankCandidates {
		pool = pool[:MaxRerankCandidates]
	}

	papers, err := r.rerank(ctx, intent, pool, topN)
	if err != nil {
		r.logger.Warn().Err(err).Int("candidates", len(pool)).Msg("rerank failed, returning candidates unranked")
		r.metrics.RecordRerank(len(pool), true)
		return Ranking{Papers: fallback(candidates, topN), Degraded: true, Err: err}
	}

	r.logger.Debug().Int("candidates", len(pool)).Int("selected", len(papers)).Msg("candidates reranked")
	r.metrics.RecordRerank(len(pool), false)
	return Ranking{Papers: papers}
}

func (r *Reranker) rerank(ctx context.Context, intent string, pool []*domain.Paper, topN int) ([]*domain.Paper, error) {
	systemPrompt, userPrompt := BuildRerankPrompt(intent, pool, topN)

	resp, err := r.client.Complete(ctx, ChatRequest{
		Operation: "rerank",
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: userPrompt},
		},
		ResponseFormat: "json",
	})
	if err != nil {
		return nil, fmt.Errorf("rerank via %s failed: %w", r.client.Provider(), err)
	}

	var parsed rerankResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	if parsed.Recommendations == nil {
		return nil, fmt.Errorf("LLM response contains no recommendations field")
	}

	return selectRecommended(pool, *parsed.Recommendations, topN), nil
}

// selectRecommended maps model recommendations onto the candidate pool.
func selectRecommended(pool []*domain.Paper, recs []json.RawMessage, topN int) []*domain.Paper {
	out := make([]*domain.Paper, 0, min(topN, len(recs)))
	seen := make(map[int]bool, len(recs))

	for _, raw := range recs {
		if len(out) == topN {
			break
		}

		var rec recommendation
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		id, ok := parseID(rec.ID)
		if !ok || id < 0 || id >= len(pool) || seen[id] {
			continue
		}
		seen[id] = true

		var reason string
		_ = json.Unmarshal(rec.Reason, &reason)
		out = append(out, pool[id].WithReason(reason))
	}

	return out
}

// parseID accepts only JSON integer literals. Strings, floats and booleans
// are rejected.
func parseID(raw json.RawMessage) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, false
	}
	return id, true
}

func fallback(candidates []*domain.Paper, topN int) []*domain.Paper {
	n := min(topN, len(candidates))
	return append([]*domain.Paper{}, candidates[:n]...)
}

// BuildRerankPrompt builds the system and user prompts for reranking. Each
// candidate is numbered by its position in pool and its abstract is cut to
// AbstractPreviewRunes.
func BuildRerankPrompt(intent string, pool []*domain.Paper, topN int) (systemPrompt, userPrompt string) {
	systemPrompt = "You are an academic assistant that selects and recommends papers matching " +
		"a researcher's intent. Respond strictly in JSON."

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Researcher intent: %q\n\n", intent))
	sb.WriteString(fmt.Sprintf("Select the top %d papers from the candidates below that best match the intent.\n\n", topN))
	sb.WriteString("Candidates:\n")
	for i, p := range pool {
		sb.WriteString(fmt.Sprintf("[%d] Title: %s\nAbstract: %s...\n\n", i, p.Title, preview(p.Abstract, AbstractPreviewRunes)))
	}
	sb.WriteString("Return a JSON object in exactly this format:\n")
	sb.WriteString(`{"recommendations": [{"id": 0, "reason": "short reason for the recommendation"}]}`)
	sb.WriteString("\nEach \"id\" must be the number of a candidate in the list above.")

	return systemPrompt, sb.String()
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
