package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// completeWithRetry runs up to the configured number of attempts. Only
// transient failures are retried; see retryable.
func (c *Client) completeWithRetry(ctx context.Context, payload chatCompletionRequest, op string) (string, string, error) {
	attempts := max(c.retryMaxAttempts, 1)
	for attempt := 1; ; attempt++ {
		content, finishReason, err := c.post(ctx, payload, op)
		if err == nil {
			return content, finishReason, nil
		}
		if attempt >= attempts || ctx.Err() != nil {
			if attempt > 1 {
				return "", "", fmt.Errorf("%s: failed after %d attempts: %w", op, attempt, err)
			}
			return "", "", err
		}
		wait, ok := c.retryable(err, attempt)
		if !ok {
			if attempt > 1 {
				return "", "", fmt.Errorf("%s: failed after %d attempts: %w", op, attempt, err)
			}
			return "", "", err
		}
		if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
			return "", "", sleepErr
		}
	}
}

// retryable reports whether err is worth another attempt and how long to wait.
// Empty content, 408, 429, 5xx and network timeouts qualify; a Retry-After
// header overrides the exponential backoff.
func (c *Client) retryable(err error, attempt int) (time.Duration, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode
		if code != http.StatusRequestTimeout && code != http.StatusTooManyRequests && code < http.StatusInternalServerError {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return min(statusErr.RetryAfter, c.maxDelay()), true
		}
		return c.backoff(attempt), true
	}
	var emptyErr *EmptyContentError
	if errors.As(err, &emptyErr) {
		return c.backoff(attempt), true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles from the base delay per attempt, capped at the max delay.
func (c *Client) backoff(attempt int) time.Duration {
	if c.retryBaseDelay <= 0 {
		return 0
	}
	limit := c.maxDelay()
	delay := c.retryBaseDelay
	for i := 1; i < attempt && delay < limit; i++ {
		delay *= 2
	}
	return min(delay, limit)
}

func (c *Client) maxDelay() time.Duration {
	if c.retryMaxDelay > 0 {
		return c.retryMaxDelay
	}
	return defaultRetryMaxDelay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter accepts both delta-seconds and HTTP-date values.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}
