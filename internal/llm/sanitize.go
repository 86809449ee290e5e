package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
)

// NormalizeAndSanitizeJSON
// - Strips markdown code fences the model sometimes wraps JSON in
// - Renames known synonyms (amount -> claim_amount, summary -> narrative)
// - Drops null/empty optionals
// - Coerces numeric -> string for claim_amount
// - Removes unknown keys (strict additionalProperties = false friendliness)
//
// It is spent before the re-prompt so a cosmetically broken response does
// not burn the retry.
func NormalizeAndSanitizeJSON(raw []byte) ([]byte, []string, error) {
	cleaned := StripCodeFences(raw)

	var m map[string]any
	if err := json.Unmarshal(cleaned, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to our schema
	renamed("amount", "claim_amount")
	renamed("claim", "claim_amount")
	renamed("case_id", "case_or_lien_id")
	renamed("lien_id", "case_or_lien_id")
	renamed("document_summary", "narrative")
	renamed("summary", "narrative")
	renamed("date_filed", "filing_date")

	// 2) coerce claim_amount to a plain decimal string
	if v, ok := m["claim_amount"]; ok {
		switch t := v.(type) {
		case float64:
			m["claim_amount"] = fmt.Sprintf("%.2f", t)
		case string:
			s := strings.TrimSpace(t)
			s = strings.ReplaceAll(s, "$", "")
			s = strings.ReplaceAll(s, ",", "")
			if s == "" {
				delete(m, "claim_amount")
				dropped = append(dropped, "claim_amount(empty)")
			} else {
				m["claim_amount"] = s
			}
		case nil:
			delete(m, "claim_amount")
			dropped = append(dropped, "claim_amount(null)")
		default:
			delete(m, "claim_amount")
			dropped = append(dropped, "claim_amount(type)")
		}
	}

	// 3) lowercase filing_type
	if v, ok := m["filing_type"].(string); ok {
		m["filing_type"] = strings.ToLower(strings.TrimSpace(v))
	}

	// 4) drop nulls and empty strings, trim the rest
	for k, v := range maps.Clone(m) {
		switch t := v.(type) {
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	// 5) remove unknown keys
	allowed := map[string]struct{}{
		"business_name": {}, "filing_type": {}, "case_or_lien_id": {},
		"filing_date": {}, "claim_amount": {}, "narrative": {},
		"confidence": {},
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, dropped, nil
}

// StripCodeFences removes a leading ```json / ``` fence pair if present.
func StripCodeFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}
