package dnc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/leadsmith/leadgen/internal/common"
)

// LiveRegistry queries a hosted do-not-contact scrub API.
type LiveRegistry struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewLiveRegistry(baseURL, apiKey string, timeout time.Duration) *LiveRegistry {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LiveRegistry{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (l *LiveRegistry) Name() string { return "live" }

func (l *LiveRegistry) IsListed(ctx context.Context, number string) (bool, error) {
	u := fmt.Sprintf("%s/v1/scrub?number=%s", l.baseURL, url.QueryEscape(number))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, common.NewPermanentError("dnc", err)
	}
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return false, common.NewTransientError("dnc", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5:
		return false, common.NewTransientError("dnc", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode/100 != 2:
		return false, common.NewPermanentError("dnc", fmt.Errorf("status %d", resp.StatusCode))
	}

	var body struct {
		Listed bool `json:"listed"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return false, common.NewPermanentError("dnc", fmt.Errorf("decode response: %w", err))
	}
	return body.Listed, nil
}
