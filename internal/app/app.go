// Package app assembles the service components from configuration. It is
// shared by the HTTP server and the command-line client.
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/venue-search-service/internal/config"
	"github.com/helixir/venue-search-service/internal/llm"
	"github.com/helixir/venue-search-service/internal/observability"
	"github.com/helixir/venue-search-service/internal/papersources"
	"github.com/helixir/venue-search-service/internal/papersources/arxiv"
	"github.com/helixir/venue-search-service/internal/papersources/cvf"
	"github.com/helixir/venue-search-service/internal/papersources/openreview"
	"github.com/helixir/venue-search-service/internal/session"
)

// Components holds the wired core of the service.
type Components struct {
	Router *papersources.Router
	Engine *session.Engine
	Store  *session.Store
}

// NewLogger builds the root logger from the logging section.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	return observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		AddSource:  cfg.AddSource,
		TimeFormat: cfg.TimeFormat,
	})
}

// Build wires sources, router, assistant factory, engine and session store.
// metrics may be nil.
func Build(cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*Components, error) {
	router, err := NewRouter(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}

	assistants := llm.NewAssistantFactory(llm.OpenAIConfig{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		RetryDelay:  cfg.LLM.RetryDelay,
	}, logger, metrics)

	engine := session.NewEngine(router, assistants, session.Config{
		TopN:            cfg.LLM.TopN,
		ScanConcurrency: cfg.Search.ScanConcurrency,
	}, logger, metrics)

	return &Components{
		Router: router,
		Engine: engine,
		Store:  session.NewStore(cfg.Session.IdleTTL),
	}, nil
}

// NewRouter registers every enabled source with a new router.
func NewRouter(cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*papersources.Router, error) {
	router := papersources.NewRouter(logger, papersources.RouterConfig{
		AdapterTimeout: cfg.Search.AdapterTimeout,
		MaxParallel:    cfg.Search.MaxParallel,
	})

	src := cfg.Sources
	if src.OpenReview.Enabled {
		router.Register(openreview.New(openreview.Config{
			BaseURLV1:  src.OpenReview.BaseURL,
			BaseURLV2:  src.OpenReview.BaseURLV2,
			V2FromYear: src.OpenReview.V2FromYear,
			PageSize:   src.OpenReview.PageSize,
			MaxPages:   src.OpenReview.MaxPages,
			Timeout:    src.OpenReview.Timeout,
			RateLimit:  src.OpenReview.RateLimit,
			BurstSize:  src.OpenReview.Burst,
			UserAgent:  src.OpenReview.UserAgent,
		}, logger, metrics))
	}
	if src.CVF.Enabled {
		client, err := cvf.New(cvf.Config{
			BaseURL:   src.CVF.BaseURL,
			Timeout:   src.CVF.Timeout,
			RateLimit: src.CVF.RateLimit,
			BurstSize: src.CVF.Burst,
			UserAgent: src.CVF.UserAgent,
		}, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("create cvf source: %w", err)
		}
		router.Register(client)
	}
	if src.ArXiv.Enabled {
		router.Register(arxiv.New(arxiv.Config{
			BaseURL:    src.ArXiv.BaseURL,
			Timeout:    src.ArXiv.Timeout,
			RateLimit:  src.ArXiv.RateLimit,
			BurstSize:  src.ArXiv.Burst,
			UserAgent:  src.ArXiv.UserAgent,
			MaxResults: src.ArXiv.MaxResults,
		}, logger, metrics))
	}

	logger.Info().Interface("venues", router.Venues()).Msg("paper sources registered")
	return router, nil
}
