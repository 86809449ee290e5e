package enrich

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/leadsmith/leadgen/internal/common"
	"github.com/leadsmith/leadgen/internal/lead"
)

// ErrNotFound is the provider's explicit "no contact data" signal. Not a
// failure: the lead is simply created without contact fields.
var ErrNotFound = errors.New("no contact data for business")

// LookupRequest identifies the business to enrich.
type LookupRequest struct {
	BusinessName string
	CaseOrLienID string
}

// Provider is the contact-data collaborator contract. Variants: Mock and
// Live, selected by configuration.
type Provider interface {
	Lookup(ctx context.Context, req LookupRequest) (lead.ContactInfo, error)
	Name() string
}

// Enricher wraps a provider with the pipeline's best-effort semantics:
// provider failures never block lead creation, and enrichment is
// idempotent so it may be re-run against a lead whose contact fields are
// still null.
type Enricher struct {
	provider Provider
	retry    common.RetryConfig
	timeout  time.Duration
	logger   *slog.Logger
}

func New(p Provider, timeout time.Duration, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Enricher{provider: p, timeout: timeout, logger: logger}
}

// Enrich returns contact info for the candidate, or nil when the provider
// had nothing (or failed). The error is already logged; callers only need
// to know whether contact data arrived.
func (e *Enricher) Enrich(ctx context.Context, req LookupRequest) *lead.ContactInfo {
	if req.BusinessName == "" {
		e.logger.Warn("enrich.skipped", "reason", "no business name")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var info lead.ContactInfo
	err := common.Retry(ctx, e.retry, e.logger, "enrich.lookup", func(ctx context.Context) error {
		var err error
		info, err = e.provider.Lookup(ctx, req)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.logger.Info("enrich.not_found", "business", req.BusinessName, "provider", e.provider.Name())
		} else {
			e.logger.Warn("enrich.failed", "business", req.BusinessName, "provider", e.provider.Name(), "error", err)
		}
		return nil
	}
	if info.Empty() {
		return nil
	}

	e.logger.Info("enrich.ok",
		"business", req.BusinessName,
		"provider", e.provider.Name(),
		"has_owner", info.OwnerName != "",
		"has_email", info.Email != "",
		"has_mobile", info.Mobile != "",
	)
	return &info
}
