package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/editloop/editloop/internal/transcript"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 5 * time.Second
)

// RetryClient wraps a Client with a fixed attempt budget and a fixed delay
// between attempts. Exhaustion surfaces as an *ExternalCallError.
type RetryClient struct {
	inner    Client
	attempts int
	delay    time.Duration
}

// RetryOption configures a RetryClient.
type RetryOption func(*RetryClient)

// WithAttempts overrides the attempt budget.
func WithAttempts(n int) RetryOption {
	return func(c *RetryClient) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithDelay overrides the pause between attempts.
func WithDelay(d time.Duration) RetryOption {
	return func(c *RetryClient) {
		if d >= 0 {
			c.delay = d
		}
	}
}

func NewRetryClient(inner Client, opts ...RetryOption) *RetryClient {
	c := &RetryClient{
		inner:    inner,
		attempts: defaultRetryAttempts,
		delay:    defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RetryClient) Complete(ctx context.Context, tr *transcript.Transcript, model string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		out, err := c.inner.Complete(ctx, tr, model)
		if err == nil {
			return out, nil
		}
		lastErr = err
		slog.Warn("model call failed", "model", model, "attempt", attempt, "error", err)

		if attempt < c.attempts {
			select {
			case <-time.After(c.delay):
			case <-ctx.Done():
				return "", &ExternalCallError{Model: model, Attempts: attempt, Err: ctx.Err()}
			}
		}
	}

	return "", &ExternalCallError{Model: model, Attempts: c.attempts, Err: lastErr}
}
