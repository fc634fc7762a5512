package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/helixir/venue-search-service/internal/observability"
)

// Default values for the OpenAI-compatible client.
const (
	DefaultProvider   = "deepseek"
	DefaultBaseURL    = "https://api.deepseek.com"
	DefaultModel      = "deepseek-chat"
	defaultMaxTokens  = 2048
	defaultTimeout    = 60 * time.Second
	defaultRetryDelay = 500 * time.Millisecond
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is a single chat message.
type Message struct {
	Role    Role
	Content string
}

// ChatRequest is one chat completion call.
type ChatRequest struct {
	// Operation labels the call in metrics and logs ("extract", "rerank").
	Operation string
	Messages  []Message
	// ResponseFormat is "json" to request a JSON object, empty for text.
	ResponseFormat string
	// MaxTokens overrides the client default when positive.
	MaxTokens int
}

// Usage reports token consumption for a call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ChatResponse is the first choice of a chat completion.
type ChatResponse struct {
	Content string
	Model   string
	Usage   Usage
}

// ChatClient sends chat completion requests to a language model.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Provider() string
	Model() string
}

// OpenAIConfig holds the parameters needed to create an OpenAIClient.
// This is defined in the llm package to avoid importing the config package.
type OpenAIConfig struct {
	// Provider names the vendor in errors and metrics.
	Provider string
	// APIKey is the bearer credential. Empty is allowed; calls then fail
	// with ErrMissingCredential.
	APIKey string
	// BaseURL is the API base URL (empty means DeepSeek).
	BaseURL string
	// Model is the model identifier.
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	// MaxRetries is how many times a transient failure is retried.
	MaxRetries int
	// RetryDelay is the first backoff delay; it doubles per attempt.
	RetryDelay time.Duration
}

// OpenAIClient implements ChatClient for any OpenAI-compatible endpoint.
type OpenAIClient struct {
	client      *openai.Client
	provider    string
	model       string
	hasKey      bool
	temperature float32
	maxTokens   int
	maxRetries  int
	retryDelay  time.Duration
	metrics     *observability.Metrics
}

// NewOpenAIClient creates a chat client. metrics may be nil.
func NewOpenAIClient(cfg OpenAIConfig, metrics *observability.Metrics) *OpenAIClient {
	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		provider:    cfg.Provider,
		model:       cfg.Model,
		hasKey:      cfg.APIKey != "",
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		metrics:     metrics,
	}
}

// Complete sends one chat completion request.
//
// Transient failures (status 429, 5xx and transport errors) are retried up to
// maxRetries times with exponential backoff. Context cancellation is respected
// between retries.
func (c *OpenAIClient) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if !c.hasKey {
		c.metrics.RecordLLMRequestFailed(req.Operation, c.model, errorType(ErrMissingCredential))
		return nil, ErrMissingCredential
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	}
	if req.ResponseFormat == "json" {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var (
		resp     openai.ChatCompletionResponse
		duration time.Duration
		lastErr  error
	)
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%s: context cancelled during retry: %w", c.provider, ctx.Err())
			case <-time.After(delay):
			}
		}

		start := time.Now()
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, chatReq)
		duration = time.Since(start)
		if err == nil {
			lastErr = nil
			break
		}

		apiErr := c.parseAPIError(err)
		c.metrics.RecordLLMRequestFailed(req.Operation, c.model, errorType(apiErr))
		lastErr = apiErr
		if !apiErr.IsTransient() || ctx.Err() != nil {
			return nil, apiErr
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.metrics.RecordLLMRequestFailed(req.Operation, c.model, errorType(ErrEmptyResponse))
		return nil, fmt.Errorf("%s: %w", c.provider, ErrEmptyResponse)
	}

	c.metrics.RecordLLMRequest(req.Operation, c.model, duration.Seconds(),
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	model := resp.Model
	if model == "" {
		model = c.model
	}

	return &ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   model,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// Provider returns the name of the LLM provider.
func (c *OpenAIClient) Provider() string {
	return c.provider
}

// Model returns the model identifier being used.
func (c *OpenAIClient) Model() string {
	return c.model
}

// parseAPIError converts a go-openai error into an *APIError.
func (c *OpenAIClient) parseAPIError(err error) *APIError {
	var oaErr *openai.APIError
	if errors.As(err, &oaErr) {
		apiErr := &APIError{
			Provider:   c.provider,
			StatusCode: oaErr.HTTPStatusCode,
			Message:    oaErr.Message,
			Type:       oaErr.Type,
		}
		if code, ok := oaErr.Code.(string); ok {
			apiErr.Code = code
		}
		return apiErr
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := extractMessage(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		if msg == "" && reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &APIError{
			Provider:   c.provider,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
		}
	}

	return &APIError{Provider: c.provider, Message: err.Error()}
}

// extractMessage pulls a human-readable message out of a non-standard JSON
// error body.
func extractMessage(body []byte) string {
	var parsed struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return parsed.Message
}
