// Package llm is a client for OpenAI-compatible chat-completions APIs,
// with structured output, rate spacing, and bounded retry.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds client configuration.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	MaxTokens    int
	Temperature  float64
	RetryBackoff time.Duration // base delay, doubled per attempt
}

// DefaultConfig returns the stock configuration for an API key.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:       apiKey,
		BaseURL:      "https://api.openai.com/v1",
		Model:        "gpt-4o-mini",
		Timeout:      30 * time.Second,
		MaxTokens:    4096,
		Temperature:  0.2,
		RetryBackoff: time.Second,
	}
}

// Client talks to one OpenAI-compatible endpoint. Safe for concurrent
// use; request starts are spaced out under an internal mutex.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	maxTokens    int
	temperature  float64
	retryBackoff time.Duration
	httpClient   *http.Client
	logger       *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

const (
	maxRetries         = 3
	minRequestInterval = 100 * time.Millisecond
)

// New creates a client from config. Zero config fields fall back to the
// defaults from DefaultConfig.
func New(config Config, logger *zap.Logger) *Client {
	def := DefaultConfig(config.APIKey)
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = def.MaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = def.Temperature
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = def.RetryBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:       config.APIKey,
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		model:        config.Model,
		maxTokens:    config.MaxTokens,
		temperature:  config.Temperature,
		retryBackoff: config.RetryBackoff,
		httpClient:   &http.Client{Timeout: config.Timeout},
		logger:       logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends a system and user prompt and returns the text reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, nil)
}

// CompleteJSON sends a prompt with a structured-output schema and
// returns the raw JSON reply for the caller to unmarshal.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, format *ResponseFormat) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, format)
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string, format *ResponseFormat) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured (set OPENAI_API_KEY)")
	}

	// Auto-apply timeout if the context has no deadline of its own.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	c.logger.Debug("completion request",
		zap.String("model", c.model),
		zap.Int("system_len", len(systemPrompt)),
		zap.Int("user_len", len(userPrompt)),
		zap.Bool("structured", format != nil))

	// Rate limiting
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < minRequestInterval {
		time.Sleep(minRequestInterval - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := Request{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:      c.maxTokens,
		Temperature:    c.temperature,
		ResponseFormat: format,
	}

	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(c.retryBackoff * time.Duration(1<<uint(i-1))):
			case <-ctx.Done():
				return "", fmt.Errorf("retry wait: %w", ctx.Err())
			}
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return "", fmt.Errorf("marshaling request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			c.logger.Debug("rate limited, backing off", zap.Int("attempt", i))
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var completion Response
		if err := json.Unmarshal(body, &completion); err != nil {
			return "", fmt.Errorf("parsing response: %w", err)
		}
		if completion.Error != nil {
			return "", fmt.Errorf("API error: %s", completion.Error.Message)
		}
		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("no completion returned")
		}

		content := strings.TrimSpace(completion.Choices[0].Message.Content)
		c.logger.Debug("completion done",
			zap.Duration("elapsed", time.Since(startTime)),
			zap.Int("response_len", len(content)),
			zap.Int("total_tokens", completion.Usage.TotalTokens))
		return content, nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}
