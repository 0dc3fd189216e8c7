package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/lifeline/core/config"
	"github.com/tailored-agentic-units/lifeline/core/protocol"
	"github.com/tailored-agentic-units/lifeline/core/response"
	"github.com/tailored-agentic-units/lifeline/observability"
)

// maxResponseBytes bounds how much of a completion response is read.
const maxResponseBytes = 1 << 20

var errEmptyCompletion = errors.New("empty completion")

type chatRequest struct {
	Model       string             `json:"model"`
	Messages    []protocol.Message `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
}

// Client calls an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	id          string
	baseURL     string
	model       string
	apiKey      string
	temperature *float64
	maxTokens   int
	timeout     time.Duration
	httpClient  *http.Client
	observer    observability.Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithObserver sets the observer that receives call events.
func WithObserver(o observability.Observer) Option {
	return func(cl *Client) {
		cl.observer = o
	}
}

// NewClient creates a Client. The API key comes from cfg.APIKey or the
// environment variable named by cfg.APIKeyEnv; an empty key sends no
// Authorization header, which suits local OpenAI-compatible servers.
func NewClient(cfg *config.AgentConfig, opts ...Option) (*Client, error) {
	merged := config.DefaultAgentConfig()
	merged.Merge(cfg)

	if !strings.HasPrefix(merged.BaseURL, "http://") && !strings.HasPrefix(merged.BaseURL, "https://") {
		return nil, fmt.Errorf("%w: base_url %q", ErrInvalidConfig, merged.BaseURL)
	}

	c := &Client{
		id:          uuid.Must(uuid.NewV7()).String(),
		baseURL:     strings.TrimRight(merged.BaseURL, "/"),
		model:       merged.Model,
		apiKey:      merged.ResolveAPIKey(),
		temperature: merged.Temperature,
		maxTokens:   merged.MaxTokens,
		timeout:     merged.Timeout.Std(),
		httpClient:  &http.Client{},
		observer:    observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ID() string { return c.id }

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

func (c *Client) GenerateReply(ctx context.Context, systemPrompt, userText string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, status, err := c.call(ctx, systemPrompt, userText)
	elapsed := time.Since(start)

	data := map[string]any{
		"agent_id":    c.id,
		"model":       c.model,
		"status":      status,
		"duration_ms": elapsed.Milliseconds(),
	}

	if err != nil {
		data["error"] = err.Error()
		c.observer.OnEvent(ctx, observability.Event{
			Type:      EventCallFailed,
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "agent.client",
			Data:      data,
		})
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	data["reply_length"] = len([]rune(reply))
	c.observer.OnEvent(ctx, observability.Event{
		Type:      EventCallComplete,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "agent.client",
		Data:      data,
	})
	return reply, nil
}

func (c *Client) call(ctx context.Context, systemPrompt, userText string) (string, int, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    protocol.Prompt(systemPrompt, userText),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, response.ParseError(respBody))
	}

	chat, err := response.ParseChat(respBody)
	if err != nil {
		return "", resp.StatusCode, err
	}

	reply := chat.Content()
	if reply == "" {
		return "", resp.StatusCode, errEmptyCompletion
	}
	return reply, resp.StatusCode, nil
}
