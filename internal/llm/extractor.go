// Package llm turns a researcher's free-form intent into search keywords and
// reranks a merged candidate pool, using an OpenAI-compatible chat model.
//
// Neither step fails outright. When the model is unreachable or answers with
// something unusable, the Extractor falls back to the verbatim intent and the
// Reranker falls back to the first candidates in their original order. Both
// results carry a Degraded flag and the cause so callers can warn the user.
//
// Example usage:
//
//	client := llm.NewOpenAIClient(llm.OpenAIConfig{APIKey: key}, metrics)
//	extractor := llm.NewExtractor(client, logger, metrics)
//	ex := extractor.Extract(ctx, "diffusion models for video generation")
//	if ex.Degraded {
//		// warn: searching with the raw intent
//	}
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/venue-search-service/internal/observability"
)

// Keyword count bounds requested from the model.
const (
	MinKeywords = 3
	MaxKeywords = 5
)

// Extraction is the outcome of a keyword extraction.
type Extraction struct {
	// Keywords is never empty. In degraded mode it holds the intent alone.
	Keywords []string
	// Reasoning is the model's explanation, when it gave one.
	Reasoning string
	// Degraded is set when Keywords is the fallback value.
	Degraded bool
	// Err is the cause of degradation.
	Err error
}

// extractionResponse is the expected JSON structure from the model.
type extractionResponse struct {
	Keywords  []string `json:"keywords"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// Extractor derives search keywords from an intent.
type Extractor struct {
	client  ChatClient
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewExtractor creates an Extractor. metrics may be nil.
func NewExtractor(client ChatClient, logger zerolog.Logger, metrics *observability.Metrics) *Extractor {
	return &Extractor{
		client:  client,
		logger:  logger.With().Str("component", "keyword_extractor").Logger(),
		metrics: metrics,
	}
}

// Extract asks the model for 3-5 compound academic keywords describing intent.
// It never returns an error: on any failure the result is the intent as the
// sole keyword with Degraded set.
func (e *Extractor) Extract(ctx context.Context, intent string) Extraction {
	keywords, reasoning, err := e.extract(ctx, intent)
	if err != nil {
		e.logger.Warn().Err(err).Str("intent", intent).Msg("keyword extraction failed, using intent as keyword")
		e.metrics.RecordKeywordsExtracted(1, true)
		return Extraction{Keywords: []string{intent}, Degraded: true, Err: err}
	}

	e.logger.Debug().Strs("keywords", keywords).Msg("keywords extracted")
	e.metrics.RecordKeywordsExtracted(len(keywords), false)
	return Extraction{Keywords: keywords, Reasoning: reasoning}
}

func (e *Extractor) extract(ctx context.Context, intent string) ([]string, string, error) {
	systemPrompt, userPrompt := BuildExtractionPrompt(intent)

	resp, err := e.client.Complete(ctx, ChatRequest{
		Operation: "extract",
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: userPrompt},
		},
		ResponseFormat: "json",
	})
	if err != nil {
		return nil, "", fmt.Errorf("keyword extraction via %s failed: %w", e.client.Provider(), err)
	}

	var parsed extractionResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return nil, "", fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}

	keywords := make([]string, 0, len(parsed.Keywords))
	for _, kw := range parsed.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		return nil, "", fmt.Errorf("LLM response contains no keywords")
	}

	return keywords, parsed.Reasoning, nil
}

// BuildExtractionPrompt builds the system and user prompts for keyword
// extraction. The user prompt is the intent itself.
func BuildExtractionPrompt(intent string) (systemPrompt, userPrompt string) {
	var sb strings.Builder

	sb.WriteString("You are an academic search specialist. Turn the researcher's natural-language ")
	sb.WriteString(fmt.Sprintf("intent into %d to %d specific, compound academic English keywords ", MinKeywords, MaxKeywords))
	sb.WriteString("suitable for searching conference paper titles and abstracts.\n\n")

	sb.WriteString("Guidelines:\n")
	sb.WriteString("1. Prefer multi-word technical phrases (e.g., \"video diffusion model\").\n")
	sb.WriteString("2. Avoid single overly broad words such as \"Image\", \"Learning\" or \"Model\".\n")
	sb.WriteString("3. Translate the intent into English terminology if it is written in another language.\n\n")

	sb.WriteString("You MUST respond with valid JSON in exactly this format:\n")
	sb.WriteString(`{"keywords": ["keyword1", "keyword2"], "reasoning": "Brief explanation of keyword choices"}`)

	return sb.String(), intent
}
