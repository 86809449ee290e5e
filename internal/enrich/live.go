package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/leadsmith/leadgen/internal/common"
	"github.com/leadsmith/leadgen/internal/lead"
)

// Live calls an external contact-data provider over HTTP JSON.
// Request: {business_name, case_or_lien_id}; response: ContactInfo or an
// explicit not-found status.
type Live struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

func NewLive(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Live {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Live{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (l *Live) Name() string { return "live" }

func (l *Live) Lookup(ctx context.Context, req LookupRequest) (lead.ContactInfo, error) {
	body, err := json.Marshal(map[string]string{
		"business_name":   req.BusinessName,
		"case_or_lien_id": req.CaseOrLienID,
	})
	if err != nil {
		return lead.ContactInfo{}, common.NewPermanentError("enrich", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v1/contacts/lookup", bytes.NewReader(body))
	if err != nil {
		return lead.ContactInfo{}, common.NewPermanentError("enrich", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if l.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.http.Do(httpReq)
	if err != nil {
		return lead.ContactInfo{}, common.NewTransientError("enrich", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			l.logger.Warn("enrich.http.body_close_error", "error", err)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return lead.ContactInfo{}, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5:
		return lead.ContactInfo{}, common.NewTransientError("enrich", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode/100 != 2:
		return lead.ContactInfo{}, common.NewPermanentError("enrich", fmt.Errorf("status %d", resp.StatusCode))
	}

	var info lead.ContactInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return lead.ContactInfo{}, common.NewPermanentError("enrich", fmt.Errorf("decode response: %w", err))
	}
	return info, nil
}
