package llm

import (
	"github.com/rs/zerolog"

	"github.com/helixir/venue-search-service/internal/observability"
)

// Assistant bundles the two AI steps of a session over one chat client.
type Assistant struct {
	Extractor *Extractor
	Reranker  *Reranker
}

// NewAssistant creates an Assistant over client.
func NewAssistant(client ChatClient, logger zerolog.Logger, metrics *observability.Metrics) *Assistant {
	return &Assistant{
		Extractor: NewExtractor(client, logger, metrics),
		Reranker:  NewReranker(client, logger, metrics),
	}
}

// AssistantFactory builds an Assistant for a caller-supplied API key.
// An empty key selects the configured default.
type AssistantFactory func(apiKey string) *Assistant

// NewAssistantFactory returns a factory producing OpenAI-compatible assistants
// that share every setting in cfg except the API key.
func NewAssistantFactory(cfg OpenAIConfig, logger zerolog.Logger, metrics *observability.Metrics) AssistantFactory {
	return func(apiKey string) *Assistant {
		c := cfg
		if apiKey != "" {
			c.APIKey = apiKey
		}
		return NewAssistant(NewOpenAIClient(c, metrics), logger, metrics)
	}
}
