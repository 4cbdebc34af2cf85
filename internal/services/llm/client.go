package llm

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 40 * time.Second

	defaultRetryAttempts  = 1
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// ErrMissingAPIKey is returned before any request when no key is configured.
var ErrMissingAPIKey = errors.New("llm: api key required")

// Config holds the gateway settings shared by every model the client calls.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	MaxAttempts    int
}

// Prompt is one JSON-mode request. Model falls back to Config.Model.
type Prompt struct {
	Model  string
	System string
	User   string
}

// Completion is the raw text a model returned.
type Completion struct {
	Model        string
	Content      string
	FinishReason string
}

// Client talks to an OpenAI-compatible chat completions endpoint such as
// OpenRouter. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retryMaxAttempts = attempts }
}

// WithRetryBackoff sets the first retry delay and the cap it doubles towards.
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) { c.retryBaseDelay, c.retryMaxDelay = base, maxDelay }
}

// WithSleeper replaces the timer used between attempts; tests record delays with it.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.sleeper = sleeper }
}

func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultRetryAttempts
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	c := &Client{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: cfg.MaxAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model is the default model for prompts that do not name one.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.cfg.Model
}

// CompleteJSON asks the model for a JSON object (response_format json_object,
// temperature 0) and returns its raw content. Decode it with DecodeJSON.
func (c *Client) CompleteJSON(ctx context.Context, prompt Prompt) (Completion, error) {
	switch {
	case c == nil:
		return Completion{}, errors.New("llm complete: client unavailable")
	case c.cfg.APIKey == "":
		return Completion{}, ErrMissingAPIKey
	}
	user := strings.TrimSpace(prompt.User)
	if user == "" {
		return Completion{}, errors.New("llm complete: user prompt required")
	}
	model := cmp.Or(strings.TrimSpace(prompt.Model), c.cfg.Model)
	if model == "" {
		return Completion{}, errors.New("llm complete: model required")
	}

	req := chatCompletionRequest{
		Model:          model,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	if system := strings.TrimSpace(prompt.System); system != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: user})

	content, finishReason, err := c.completeWithRetry(ctx, req, "llm complete "+model)
	if err != nil {
		return Completion{}, err
	}
	return Completion{Model: model, Content: content, FinishReason: finishReason}, nil
}

// HealthCheck sends a trivial prompt to model and expects {"ok": true} back.
func (c *Client) HealthCheck(ctx context.Context, model string) error {
	completion, err := c.CompleteJSON(ctx, Prompt{
		Model:  model,
		System: "You must respond with JSON only.",
		User:   `Respond with {"ok":true}`,
	})
	if err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	var reply struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(completion.Content, &reply); err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("llm health: unexpected reply %s", Snippet(completion.Content))
	}
	return nil
}

func (c *Client) timeoutDuration() time.Duration {
	if c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

