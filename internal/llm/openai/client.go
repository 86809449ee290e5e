package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leadsmith/leadgen/internal/common"
	"github.com/leadsmith/leadgen/internal/llm"
)

// ExtractFields implements llm.FieldExtractor against an OpenAI-compatible
// chat/completions endpoint. Malformed output is sanitized and re-validated;
// if still malformed, one stricter re-prompt is sent, after which the call
// fails with common.ErrExtractionParse. That failure is surfaced to the
// operator, never silently defaulted.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.LeadFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
		"source_type", req.SourceType,
		"ocr_confidence", req.OCRConfidence,
		"schema_version", llm.SchemaVersion,
	)

	schema := llm.BuildLeadJSONSchema()
	messages := []map[string]any{
		{"role": "system", "content": llm.BuildSystemPrompt()},
		{"role": "user", "content": llm.BuildUserPrompt(req)},
		{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
	}

	content, err := c.complete(ctx, rid, messages)
	if err != nil {
		return llm.LeadFields{}, nil, err
	}

	rawContent, vErr := validateWithSanitize(schema, content)
	if vErr != nil {
		c.log.Warn("llm.extract.reprompt",
			"req_id", rid, "error", vErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		// Single stricter re-prompt, carrying the bad response as context.
		messages = append(messages,
			map[string]any{"role": "assistant", "content": content},
			map[string]any{"role": "system", "content": llm.BuildStrictReprompt()},
		)
		content, err = c.complete(ctx, rid, messages)
		if err != nil {
			return llm.LeadFields{}, nil, err
		}
		rawContent, vErr = validateWithSanitize(schema, content)
		if vErr != nil {
			c.log.Error("llm.extract.parse_failed",
				"req_id", rid, "error", vErr, "content", content,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.LeadFields{}, []byte(content), fmt.Errorf("%w: %v", common.ErrExtractionParse, vErr)
		}
	}

	var out llm.LeadFields
	if err := json.Unmarshal(rawContent, &out); err != nil {
		return llm.LeadFields{}, rawContent, fmt.Errorf("%w: unmarshal fields: %v", common.ErrExtractionParse, err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"business", out.BusinessName,
		"filing_type", out.FilingType,
		"case_id", out.CaseOrLienID,
		"amount", out.ClaimAmount,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, rawContent, nil
}

// validateWithSanitize validates strictly first, then retries validation
// after a tolerant cleanup pass.
func validateWithSanitize(schema map[string]any, content string) ([]byte, error) {
	raw := []byte(content)
	if err := llm.ValidateJSONAgainstSchema(schema, raw); err == nil {
		return raw, nil
	}
	cleaned, _, sErr := llm.NormalizeAndSanitizeJSON(raw)
	if sErr != nil {
		return nil, sErr
	}
	if err := llm.ValidateJSONAgainstSchema(schema, cleaned); err != nil {
		return nil, err
	}
	return cleaned, nil
}

// complete posts one chat/completions request with bounded retries for
// transient failures and returns the first choice's content.
func (c *Client) complete(ctx context.Context, rid string, messages []map[string]any) (string, error) {
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	var raw []byte
	err := common.Retry(ctx, common.RetryConfig{}, c.log, "llm.complete", func(ctx context.Context) error {
		var err error
		raw, err = c.post(ctx, endpoint, body)
		return err
	})
	if err != nil {
		c.log.Error("llm.extract.http_error", "req_id", rid, "error", err)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", common.NewPermanentError("llm", fmt.Errorf("decode response: %w", err))
	}
	if len(cc.Choices) == 0 {
		return "", common.NewPermanentError("llm", fmt.Errorf("no choices in response"))
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, common.NewPermanentError("llm", fmt.Errorf("marshal request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, common.NewPermanentError("llm", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, common.NewTransientError("llm", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("llm.http.body_close_error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode/100 == 2:
		return raw, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5:
		return nil, common.NewTransientError("llm", fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 512)))
	default:
		// 4xx: auth or validation; retrying cannot help.
		return nil, common.NewPermanentError("llm", fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 512)))
	}
}

func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...(truncated)"
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
