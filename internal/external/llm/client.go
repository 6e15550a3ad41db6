// Package llm wraps the chat completion API used for sentiment
// classification.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/wonny/aegis-pulse/pkg/config"
	"github.com/wonny/aegis-pulse/pkg/logger"
)

// ErrNoAPIKey is returned when the client is used without credentials
var ErrNoAPIKey = errors.New("llm api key not configured")

// ErrEmptyCompletion is returned when the model answers with no choices
var ErrEmptyCompletion = errors.New("llm returned no choices")

const systemPrompt = "You are a financial sentiment analyst. Respond with JSON only."

// Client sends prompts to an OpenAI compatible chat endpoint
// ⭐ SSOT: LLM 호출은 이 클라이언트에서만
type Client struct {
	client      openai.Client
	model       string
	maxTokens   int64
	timeout     time.Duration
	temperature float64
	configured  bool
	logger      *logger.Logger
}

// NewClient creates a client from LLM settings; an empty API key yields an
// unconfigured client whose Complete always fails with ErrNoAPIKey
func NewClient(cfg config.LLMConfig, log *logger.Logger) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}

	return &Client{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   int64(maxTokens),
		timeout:     timeout,
		temperature: 0.2,
		configured:  cfg.APIKey != "",
		logger:      log.WithComponent("llm"),
	}
}

// Configured reports whether an API key is set
func (c *Client) Configured() bool {
	return c != nil && c.configured
}

// Complete sends one prompt and returns the raw text answer
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNoAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	c.logger.WithFields(map[string]interface{}{
		"model":         c.model,
		"duration_ms":   time.Since(start).Milliseconds(),
		"finish_reason": resp.Choices[0].FinishReason,
		"total_tokens":  resp.Usage.TotalTokens,
	}).Debug("Completion received")

	return resp.Choices[0].Message.Content, nil
}
