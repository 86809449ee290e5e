package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/leadsmith/leadgen/internal/common"
)

// Live posts rendered messages to per-channel webhook endpoints, the
// integration shape most SMS/email gateways expose.
type Live struct {
	smsURL   string
	emailURL string
	apiKey   string
	http     *http.Client
}

func NewLive(smsURL, emailURL, apiKey string, timeout time.Duration) *Live {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Live{
		smsURL:   smsURL,
		emailURL: emailURL,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

func (l *Live) Name() string { return "live" }

func (l *Live) SendSMS(ctx context.Context, msg SMSMessage) error {
	if l.smsURL == "" {
		return common.NewPermanentError("sms", fmt.Errorf("no sms webhook configured"))
	}
	return l.post(ctx, "sms", l.smsURL, map[string]string{
		"to":   msg.To,
		"body": msg.Body,
	})
}

func (l *Live) SendEmail(ctx context.Context, msg EmailMessage) error {
	if l.emailURL == "" {
		return common.NewPermanentError("email", fmt.Errorf("no email webhook configured"))
	}
	return l.post(ctx, "email", l.emailURL, map[string]string{
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Body,
	})
}

func (l *Live) post(ctx context.Context, provider, url string, payload map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return common.NewPermanentError(provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return common.NewPermanentError(provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return common.NewTransientError(provider, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode/100 == 2:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5:
		return common.NewTransientError(provider, fmt.Errorf("status %d", resp.StatusCode))
	default:
		return common.NewPermanentError(provider, fmt.Errorf("status %d", resp.StatusCode))
	}
}
