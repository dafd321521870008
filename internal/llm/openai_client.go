// ABOUTME: OpenAI-compatible client for entity extraction and card synthesis
// ABOUTME: Works against api.openai.com or any compatible endpoint via BaseURL (e.g. a local Ollama)
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harper/muleta/internal/extract"
	"github.com/harper/muleta/internal/logger"
	"github.com/harper/muleta/internal/models"
	"github.com/harper/muleta/internal/util"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4o-mini"
	// Source tags extraction results produced by this client
	Source = "llm"
)

// ClientConfig holds configuration for the OpenAI-compatible client
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:     apiKey,
		ChatModel:  DefaultChatModel,
		Timeout:    60 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Second,
	}
}

// OpenAIClient wraps the OpenAI API client. Extraction makes a single
// attempt per call; the caller owns the retry policy.
type OpenAIClient struct {
	client     *openai.Client
	chatModel  string
	baseURL    string
	hasKey     bool
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	log        *logger.Logger
}

// NewOpenAIClient creates a client with the default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey), nil)
}

// NewOpenAIClientWithConfig creates a client with custom configuration. A key
// is required unless a custom BaseURL points at a keyless local server.
func NewOpenAIClientWithConfig(config *ClientConfig, log *logger.Logger) (*OpenAIClient, error) {
	if config.APIKey == "" && config.BaseURL == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "local"
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	chatModel := config.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientConfig),
		chatModel:  chatModel,
		baseURL:    clientConfig.BaseURL,
		hasKey:     config.APIKey != "",
		timeout:    timeout,
		maxRetries: config.MaxRetries,
		retryDelay: config.RetryDelay,
		log:        logger.OrNop(log).Component("llm"),
	}, nil
}

// GetClient returns the underlying OpenAI client for direct use
func (c *OpenAIClient) GetClient() *openai.Client {
	return c.client
}

// complete sends one chat completion bounded by the client timeout
func (c *OpenAIClient) complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Extract asks the model for entities and relations in text. Transport
// failures are Unavailable; unreadable output is a ParseFailure.
func (c *OpenAIClient) Extract(ctx context.Context, text string) extract.Result {
	start := time.Now()
	content, err := c.complete(ctx, extractionSystemPrompt, buildExtractionPrompt(text), 0.1)
	if err != nil {
		c.log.Debug("extraction call failed", "error", err, "elapsed", time.Since(start))
		return extract.Unavailable(Source, err)
	}
	res := extract.ParseResponse(Source, content)
	c.log.Debug("extraction call finished",
		"status", res.Status.String(),
		"entities", len(res.Candidates.Entities),
		"relations", len(res.Candidates.Relations),
		"elapsed", time.Since(start))
	return res
}

// SynthesizeCard asks the model for one question/answer pair, retrying
// transport and parse failures with backoff
func (c *OpenAIClient) SynthesizeCard(ctx context.Context, prompt models.CardPrompt) (models.CardContent, error) {
	var card models.CardContent
	err := util.Retry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context, attempt int) error {
		content, err := c.complete(ctx, cardSystemPrompt, buildCardPrompt(prompt), 0.3)
		if err != nil {
			return err
		}
		parsed, err := parseCardContent(content)
		if err != nil {
			return err
		}
		card = parsed
		return nil
	})
	if err != nil {
		return models.CardContent{}, fmt.Errorf("failed to synthesize card: %w", err)
	}
	return card, nil
}

func parseCardContent(content string) (models.CardContent, error) {
	content = strings.TrimSpace(content)
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}
	var card models.CardContent
	if err := json.Unmarshal([]byte(content), &card); err != nil {
		return models.CardContent{}, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return card, nil
}

// HealthReport describes the configured model endpoint
type HealthReport struct {
	Model         string `json:"model"`
	BaseURL       string `json:"base_url"`
	KeyConfigured bool   `json:"key_configured"`
	Reachable     bool   `json:"reachable"`
	Error         string `json:"error,omitempty"`
}

// Health probes the endpoint by listing models
func (c *OpenAIClient) Health(ctx context.Context) HealthReport {
	report := HealthReport{Model: c.chatModel, BaseURL: c.baseURL, KeyConfigured: c.hasKey}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.client.ListModels(ctx); err != nil {
		report.Error = err.Error()
		return report
	}
	report.Reachable = true
	return report
}
