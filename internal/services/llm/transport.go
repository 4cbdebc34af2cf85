package llm

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
)

// chatCompletionRequest is the OpenAI-compatible request body.
type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatChoice accepts the three shapes gateways use for a finished answer:
// message, streaming delta and the legacy text field.
type chatChoice struct {
	Message      choiceBody `json:"message"`
	Delta        choiceBody `json:"delta"`
	Text         string     `json:"text"`
	FinishReason string     `json:"finish_reason"`
}

type choiceBody struct {
	Content   string `json:"content"`
	Refusal   string `json:"refusal"`
	ToolCalls []struct {
		Function struct {
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}

// text returns the content, falling back to the first tool call's arguments
// for models that answer JSON mode through a function call.
func (b choiceBody) text() string {
	if content := strings.TrimSpace(b.Content); content != "" {
		return content
	}
	for _, call := range b.ToolCalls {
		if args := strings.TrimSpace(call.Function.Arguments); args != "" {
			return args
		}
	}
	return ""
}

type chatCompletionResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// answer picks the first usable content across choices along with the first
// reported finish reason and refusal.
func (r chatCompletionResponse) answer() (content, finishReason, refusal string) {
	for _, choice := range r.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if refusal == "" {
			refusal = firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal)
		}
		if content == "" {
			content = firstNonEmpty(choice.Message.text(), choice.Delta.text(), choice.Text)
		}
	}
	return content, finishReason, refusal
}

// StatusError reports a non-2xx response from the gateway.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, Snippet(e.Body))
}

// EmptyContentError reports a 2xx response without usable content.
type EmptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *EmptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op, e.FinishReason, e.Refusal, e.Snippet)
}

// StatusCode extracts the HTTP status from a client error.
func StatusCode(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

// post sends one request and returns the model's content. Gateway errors are
// typed so the retry loop can classify them.
func (c *Client) post(ctx context.Context, payload chatCompletionRequest, op string) (string, string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("%s: encode body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", "", fmt.Errorf("%s: new request: %w", op, err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%s: http error (timeout=%s): %w", op, c.timeoutDuration(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		wait, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body)), RetryAfter: wait}
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", "", fmt.Errorf("%s: decode response: %w", op, err)
	}
	if decoded.Error != nil {
		return "", "", fmt.Errorf("%s: api error: %s", op, strings.TrimSpace(decoded.Error.Message))
	}
	if len(decoded.Choices) == 0 {
		return "", "", fmt.Errorf("%s: empty choices", op)
	}
	content, finishReason, refusal := decoded.answer()
	if content == "" {
		return "", finishReason, &EmptyContentError{
			Op:           op,
			FinishReason: finishReason,
			Refusal:      refusal,
			Snippet:      Snippet(string(body)),
		}
	}
	return content, finishReason, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	// OpenRouter attributes traffic with these.
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
