package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadsmith/leadgen/internal/common"
	"github.com/leadsmith/leadgen/internal/llm"
)

func chatResponse(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o-mini"}, nil)
}

func extractReq() llm.ExtractRequest {
	return llm.ExtractRequest{
		Text:         "NOTICE OF MECHANICS LIEN ... Johnson Enterprise Solutions LLC ... $45,750.00",
		SourceType:   "Lien Database",
		FilenameHint: "lien_0001.pdf",
	}
}

func TestExtractFields_CleanResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(chatResponse(
			`{"business_name":"Johnson Enterprise Solutions LLC","filing_type":"lien","case_or_lien_id":"2024-CV-001234","filing_date":"2024-01-15","claim_amount":"45750.00","confidence":0.95}`,
		))
	})

	fields, raw, err := c.ExtractFields(context.Background(), extractReq())
	require.NoError(t, err)
	assert.Equal(t, "Johnson Enterprise Solutions LLC", fields.BusinessName)
	assert.Equal(t, "lien", fields.FilingType)
	assert.Equal(t, "45750.00", fields.ClaimAmount)
	assert.NotEmpty(t, raw)
}

func TestExtractFields_SanitizesWithoutReprompt(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(chatResponse(
			"```json\n{\"business_name\":\"Acme\",\"filing_type\":\"Lien\",\"amount\":\"$1,200.50\",\"court\":\"Superior\"}\n```",
		))
	})

	fields, _, err := c.ExtractFields(context.Background(), extractReq())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "cosmetic breakage must not burn the re-prompt")
	assert.Equal(t, "Acme", fields.BusinessName)
	assert.Equal(t, "lien", fields.FilingType)
	assert.Equal(t, "1200.50", fields.ClaimAmount)
}

func TestExtractFields_RepromptRecovers(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_ = json.NewEncoder(w).Encode(chatResponse("The document describes a lien filed by Acme."))
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse(`{"business_name":"Acme","filing_type":"lien"}`))
	})

	fields, _, err := c.ExtractFields(context.Background(), extractReq())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "Acme", fields.BusinessName)
}

func TestExtractFields_ParseErrorAfterReprompt(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(chatResponse("I couldn't find any structured fields."))
	})

	_, _, err := c.ExtractFields(context.Background(), extractReq())
	require.ErrorIs(t, err, common.ErrExtractionParse)
	assert.Equal(t, int32(2), calls.Load(), "exactly one re-prompt, then fail")
}

func TestExtractFields_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse(`{"business_name":"Acme","filing_type":"lien"}`))
	})

	fields, _, err := c.ExtractFields(context.Background(), extractReq())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "Acme", fields.BusinessName)
}

func TestExtractFields_PermanentStatusFailsFast(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, _, err := c.ExtractFields(context.Background(), extractReq())
	require.Error(t, err)
	assert.False(t, common.IsTransient(err))
	assert.Equal(t, int32(1), calls.Load(), "auth failures are not retried")
}
