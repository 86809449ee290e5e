package dnc

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/leadsmith/leadgen/internal/common"
)

// Registry answers whether a phone number appears on a do-not-contact list.
type Registry interface {
	// IsListed reports whether the normalized number is on the list.
	IsListed(ctx context.Context, number string) (bool, error)
	Name() string
}

// Checker wraps a Registry with per-run caching so a number scrubbed once
// is never looked up again within the same process.
type Checker struct {
	registry Registry
	failOpen bool
	logger   *slog.Logger
	retry    common.RetryConfig

	mu    sync.Mutex
	cache map[string]bool
}

func NewChecker(registry Registry, failOpen bool, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		registry: registry,
		failOpen: failOpen,
		logger:   logger,
		cache:    make(map[string]bool),
	}
}

// Check scrubs a lead's mobile number and returns the DNC verdict.
// A lead with no usable number cannot be on a phone list. When the
// registry is unreachable the verdict depends on failOpen: closed means
// the lead is treated as listed until a later run can certify it.
func (c *Checker) Check(ctx context.Context, mobile string) bool {
	number := NormalizeNumber(mobile)
	if number == "" {
		return false
	}

	listed, err := c.lookup(ctx, number)
	if err != nil {
		c.logger.Warn("dnc.lookup.failed",
			"registry", c.registry.Name(),
			"error", err,
		)
		return !c.failOpen
	}
	return listed
}

func (c *Checker) lookup(ctx context.Context, number string) (bool, error) {
	c.mu.Lock()
	if listed, ok := c.cache[number]; ok {
		c.mu.Unlock()
		return listed, nil
	}
	c.mu.Unlock()

	start := time.Now()
	var listed bool
	err := common.Retry(ctx, c.retry, c.logger, "dnc.lookup", func(ctx context.Context) error {
		var err error
		listed, err = c.registry.IsListed(ctx, number)
		return err
	})
	if err != nil {
		return false, err
	}

	c.logger.Debug("dnc.lookup.ok",
		"registry", c.registry.Name(),
		"listed", listed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	c.mu.Lock()
	c.cache[number] = listed
	c.mu.Unlock()
	return listed, nil
}

// NormalizeNumber reduces a phone number to digits, dropping a leading
// US country code so cache keys and registry lookups are stable.
func NormalizeNumber(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) < 10 {
		return ""
	}
	return digits
}
