// Package llm implements the language-model collaborators on top of an
// OpenAI-compatible chat completions API: free-text and receipt extraction,
// email classification, and chat intent recognition.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"expensebot/internal/core"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// Config configures the OpenAI client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// Client talks to the chat completions endpoint. It satisfies the
// classifier, receipt reader and NLU ports of the services package.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
}

// NewClient validates cfg and builds a client. A missing API key yields an
// error wrapping core.ErrMissingCredentials.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("OpenAI API key: %w", core.ErrMissingCredentials)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Client{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		now:         time.Now,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// statusError is a non-200 answer from the API.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("OpenAI API error (status %d): %s", e.Status, e.Body)
}

func (e *statusError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// completeJSON sends messages and returns the first choice's content with
// any markdown fence removed. Rate limits and server errors are retried.
func (c *Client) completeJSON(ctx context.Context, op string, messages []chatMessage, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		started := c.now()
		content, err := c.post(ctx, body)
		if err == nil {
			slog.DebugContext(ctx, "LLM call completed", "op", op, "model", c.model, "duration", c.now().Sub(started))
			return stripCodeFence(content), nil
		}

		var se *statusError
		if attempt >= c.maxAttempts || !errors.As(err, &se) || !se.retryable() {
			return "", &core.CollaboratorError{Collaborator: "openai " + op, Err: err}
		}
		slog.WarnContext(ctx, "LLM call failed, retrying", "op", op, "attempt", attempt, "status", se.Status, "delay", delay)
		select {
		case <-ctx.Done():
			return "", &core.CollaboratorError{Collaborator: "openai " + op, Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return parsed.Choices[0].Message.Content, nil
}

// stripCodeFence removes a ```json ... ``` wrapper around model output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func userMessage(prompt string) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: "You extract structured data about personal expenses. Respond with ONLY a valid JSON object."},
		{Role: "user", Content: prompt},
	}
}
