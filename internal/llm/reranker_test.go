package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/venue-search-service/internal/domain"
	"github.com/helixir/venue-search-service/internal/observability"
)

func makeCandidates(n int) []*domain.Paper {
	papers := make([]*domain.Paper, n)
	for i := range papers {
		papers[i] = &domain.Paper{
			Title:    fmt.Sprintf("Paper %d", i),
			Abstract: fmt.Sprintf("Abstract %d", i),
			Authors:  []string{"Author"},
			Keywords: []string{},
			Link:     fmt.Sprintf("https://example.org/%d", i),
			Status:   "ICLR 2024 (Oral)",
		}
	}
	return papers
}

func titles(papers []*domain.Paper) []string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = p.Title
	}
	return out
}

func TestReranker_ModelOrderIsAuthoritative(t *testing.T) {
	t.Parallel()

	candidates := makeCandidates(3)
	client := &mockClient{completeFunc: respondWith(
		`{"recommendations": [{"id": 2, "reason": "best fit"}, {"id": 0, "reason": "related"}, {"id": 5, "reason": "bogus"}]}`)}

	ranking := NewReranker(client, zerolog.Nop(), nil).Rerank(context.Background(), "intent", candidates, 25)

	assert.False(t, ranking.Degraded)
	assert.NoError(t, ranking.Err)
	require.Len(t, ranking.Papers, 2)
	assert.Equal(t, []string{"Paper 2", "Paper 0"}, titles(ranking.Papers))
	assert.Equal(t, "best fit", ranking.Papers[0].RecommendationReason)
	assert.Equal(t, "related", ranking.Papers[1].RecommendationReason)

	// Candidates are copied, never annotated in place.
	assert.Empty(t, candidates[2].RecommendationReason)
	assert.NotSame(t, candidates[2], ranking.Papers[0])
}

func TestReranker_SkipsInvalidIDs(t *testing.T) {
	t.Parallel()

	candidates := makeCandidates(4)
	client := &mockClient{completeFunc: respondWith(`{"recommendations": [
		{"id": "1", "reason": "string id"},
		{"id": 1.5, "reason": "fractional"},
		{"id": 3.0, "reason": "float literal"},
		{"id": -1, "reason": "negative"},
		{"id": true, "reason": "bool"},
		{"reason": "no id"},
		"not an object",
		{"id": 3, "reason": 42},
		{"id": 1, "reason": "first"},
		{"id": 1, "reason": "repeat"}
	]}`)}

	ranking := NewReranker(client, zerolog.Nop(), nil).Rerank(context.Background(), "intent", candidates, 25)

	assert.False(t, ranking.Degraded)
	assert.Equal(t, []string{"Paper 3", "Paper 1"}, titles(ranking.Papers))
	assert.Empty(t, ranking.Papers[0].RecommendationReason)
	assert.Equal(t, "first", ranking.Papers[1].RecommendationReason)
}

func TestReranker_CapsAtTopN(t *testing.T) {
	t.Parallel()

	client := &mockClient{completeFunc: respondWith(
		`{"recommendations": [{"id": 4, "reason": "a"}, {"id": 3, "reason": "b"}, {"id": 2, "reason": "c"}]}`)}

	ranking := NewReranker(client, zerolog.Nop(), nil).Rerank(context.Background(), "intent", makeCandidates(5), 2)

	assert.Equal(t, []string{"Paper 4", "Paper 3"}, titles(ranking.Papers))
}

func TestReranker_EmptyRecommendations(t *testing.T) {
	t.Parallel()

	client := &mockClient{completeFunc: respondWith(`{"recommendations": []}`)}
	ranking := NewReranker(client, zerolog.Nop(), nil).Rerank(context.Background(), "intent", makeCandidates(3), 25)

	assert.False(t, ranking.Degraded)
	assert.Empty(t, ranking.Papers)
}

func TestReranker_EmptyCandidatesMakesNoCall(t *testing.T) {
	t.Parallel()

	client := &mockClient{completeFunc: respondWith(`{}`)}
	ranking := NewReranker(client, zerolog.Nop(), nil).Rerank(context.Background(), "intent", nil, 25)

	assert.Equal(t, 0, client.calls)
	assert.NotNil(t, ranking.Papers)
	assert.Empty(t, ranking.Papers)
	assert.False(t, ranking.Degraded)
}

func TestReranker_Fallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		complete func(context.Context, ChatRequest) (*ChatResponse, error)
	}{
		{
			name: "transport failure",
			complete: func(context.Context, ChatRequest) (*ChatResponse, error) {
				return nil, errors.New("connection refused")
			},
		},
		{name: "malformed json", complete: respondWith(`not json`)},
		{name: "missing recommendations", complete: respondWith(`{"papers": []}`)},
		{name: "recommendations not a list", complete: respondWith(`{"recommendations": "none"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			candidates := makeCandidates(30)
			ranking := NewReranker(&mockClient{completeFunc: tt.complete}, zerolog.Nop(), nil).
				Rerank(context.Background(), "intent", candidates, 25)

			assert.True(t, ranking.Degraded)
			require.Error(t, ranking.Err)
			require.Len(t, ranking.Papers, 25)
			assert.Same(t, candidates[0], ranking.Papers[0])
			assert.Same(t, candidates[24], ranking.Papers[24])
			for _, p := range ranking.Papers {
				assert.Empty(t, p.RecommendationReason)
			}
		})
	}
}

func TestReranker_FallbackShorterThanTopN(t *testing.T) {
	t.Parallel()

	client := &mockClient{completeFunc: func(context.Context, ChatRequest) (*ChatResponse, error) {
		return nil, ErrMissingCredential
	}}
	ranking := NewReranker(client, zerolog.Nop(), nil).Rerank(context.Background(), "intent", makeCandidates(3), 25)

	assert.True(t, ranking.Degraded)
	assert.ErrorIs(t, ranking.Err, ErrMissingCredential)
	assert.Len(t, ranking.Papers, 3)
}

func TestReranker_TruncatesPoolTo100(t *testing.T) {
	t.Parallel()

	client := &mockClient{completeFunc: respondWith(
		`{"recommendations": [{"id": 99, "reason": "last"}, {"id": 100, "reason": "beyond pool"}]}`)}
	ranking := NewReranker(client, zerolog.Nop(), nil).Rerank(context.Background(), "intent", makeCandidates(150), 25)

	assert.Equal(t, []string{"Paper 99"}, titles(ranking.Papers))

	prompt := client.lastReq.Messages[1].Content
	assert.Contains(t, prompt, "[99] Title: Paper 99")
	assert.NotContains(t, prompt, "[100]")
}

func TestBuildRerankPrompt(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 400)
	pool := []*domain.Paper{
		{Title: "First", Abstract: long},
		{Title: "Second", Abstract: "short abstract"},
	}

	system, user := BuildRerankPrompt("video diffusion", pool, 10)

	assert.Contains(t, system, "JSON")
	assert.Contains(t, user, `"video diffusion"`)
	assert.Contains(t, user, "top 10 papers")
	assert.Contains(t, user, "[0] Title: First\nAbstract: "+strings.Repeat("é", 300)+"...")
	assert.NotContains(t, user, strings.Repeat("é", 301))
	assert.Contains(t, user, "[1] Title: Second\nAbstract: short abstract...")
	assert.Contains(t, user, `"recommendations"`)

	// The stored abstract is untouched.
	assert.Equal(t, long, pool[0].Abstract)
}

func TestReranker_Metrics(t *testing.T) {
	metrics := observability.NewMetrics("test_llm_reranker")

	ok := NewReranker(&mockClient{completeFunc: respondWith(`{"recommendations": [{"id": 0, "reason": "r"}]}`)}, zerolog.Nop(), metrics)
	ok.Rerank(context.Background(), "x", makeCandidates(4), 25)

	bad := NewReranker(&mockClient{completeFunc: respondWith(`oops`)}, zerolog.Nop(), metrics)
	bad.Rerank(context.Background(), "x", makeCandidates(2), 25)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Rerankings.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Rerankings.WithLabelValues("degraded")))
}
