package chapterlookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mangabridge/internal/logging"
	"mangabridge/internal/services"
	"mangabridge/internal/services/llm"
)

// DefaultTierTimeout bounds one tier when no timeout is configured.
const DefaultTierTimeout = 45 * time.Second

const (
	TierPrimary   = "primary"
	TierSecondary = "secondary"
)

// Completer is the chat-completion call the lookup needs.
type Completer interface {
	CompleteJSON(ctx context.Context, prompt llm.Prompt) (llm.Completion, error)
}

// Request identifies the episode to map.
type Request struct {
	Title   string
	Episode int
	Season  string
}

// Config selects the model tiers.
type Config struct {
	PrimaryModel   string
	SecondaryModel string
	TierTimeout    time.Duration
}

// TierFailure records why one tier produced no answer.
type TierFailure struct {
	Tier  string
	Model string
	Err   error
}

func (f TierFailure) String() string {
	return fmt.Sprintf("%s (%s): %v", f.Tier, f.Model, f.Err)
}

// LookupError is returned when every tier failed.
type LookupError struct {
	Attempts []TierFailure
}

func (e *LookupError) Error() string {
	if len(e.Attempts) == 0 {
		return services.ErrAILookupFailed.Error() + ": no model tiers configured"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, attempt.String())
	}
	return services.ErrAILookupFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *LookupError) Unwrap() error {
	return services.ErrAILookupFailed
}

// Option customizes a Client.
type Option func(*Client)

// WithClock overrides the date source used in prompts.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type tier struct {
	name  string
	model string
}

// Client asks the configured models for the chapter an episode ends on,
// falling through tiers until one returns a valid answer.
type Client struct {
	completer Completer
	tiers     []tier
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// New builds a lookup client. Empty model names drop that tier.
func New(completer Completer, cfg Config, opts ...Option) *Client {
	c := &Client{
		completer: completer,
		timeout:   cfg.TierTimeout,
		now:       time.Now,
		logger:    logging.NewNop(),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTierTimeout
	}
	if model := strings.TrimSpace(cfg.PrimaryModel); model != "" {
		c.tiers = append(c.tiers, tier{name: TierPrimary, model: model})
	}
	if model := strings.TrimSpace(cfg.SecondaryModel); model != "" {
		c.tiers = append(c.tiers, tier{name: TierSecondary, model: model})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup runs the tiers in order and returns the first valid answer.
func (c *Client) Lookup(ctx context.Context, req Request) (Answer, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.Episode < 1 {
		return Answer{}, services.Wrap(services.ErrValidation, "chapterlookup", "lookup", "title and a positive episode are required", nil)
	}
	if c == nil || c.completer == nil {
		return Answer{}, &LookupError{}
	}

	prompt := BuildPrompt(req, c.now())
	logger := logging.WithContext(ctx, c.logger)
	var failures []TierFailure

	for _, t := range c.tiers {
		if err := ctx.Err(); err != nil {
			failures = append(failures, TierFailure{Tier: t.name, Model: t.model, Err: err})
			break
		}
		started := time.Now()
		answer, err := c.ask(ctx, t, prompt)
		if err == nil {
			answer.Model = t.model
			answer.Tier = t.name
			logger.Info("chapter lookup answered",
				logging.String(logging.FieldTitle, req.Title),
				logging.Int(logging.FieldEpisode, req.Episode),
				logging.String("tier", t.name),
				logging.String("model", t.model),
				logging.Int("chapter", answer.Chapter),
				logging.Int("volume", answer.Volume),
				logging.Duration("elapsed", time.Since(started)),
			)
			return answer, nil
		}
		failures = append(failures, TierFailure{Tier: t.name, Model: t.model, Err: err})
		logging.WarnWithContext(logger, "chapter lookup tier failed", "ai_tier_failed",
			logging.String(logging.FieldTitle, req.Title),
			logging.Int(logging.FieldEpisode, req.Episode),
			logging.String("tier", t.name),
			logging.String("model", t.model),
			logging.String("failure", failureClass(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the llm api key, model names and provider status"),
			logging.String(logging.FieldImpact, "falling through to the next model tier"),
		)
	}
	return Answer{}, &LookupError{Attempts: failures}
}

func (c *Client) ask(ctx context.Context, t tier, prompt string) (Answer, error) {
	tierCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.completer.CompleteJSON(tierCtx, llm.Prompt{Model: t.model, User: prompt})
	if err != nil {
		if errors.Is(tierCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return Answer{}, fmt.Errorf("timed out after %s: %w", c.timeout, err)
		}
		return Answer{}, err
	}
	return ParseAnswer(completion.Content)
}

func failureClass(err error) string {
	var refusal *RefusalError
	var parse *ParseError
	switch {
	case errors.As(err, &refusal):
		return "refusal"
	case errors.As(err, &parse):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	if status, ok := llm.StatusCode(err); ok {
		return fmt.Sprintf("http_%d", status)
	}
	return "transport"
}
