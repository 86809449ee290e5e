package common

import (
	"context"
	"log/slog"
	"time"
)

// RetryConfig bounds how often a transient provider failure is re-attempted.
type RetryConfig struct {
	MaxAttempts int           // total attempts including the first, default 3
	BaseDelay   time.Duration // first backoff delay, default 500ms
	MaxDelay    time.Duration // backoff cap, default 10s
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	return c
}

// Retry runs fn with exponential backoff. Only transient provider errors
// are retried; permanent errors and context cancellation return immediately.
func Retry(ctx context.Context, cfg RetryConfig, logger *slog.Logger, op string, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	var err error
	delay := cfg.BaseDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		logger.Warn("retry.backoff",
			"op", op,
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return err
}
