package llm

// BuildLeadJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass this to the language service as a structured output
// constraint and also use it locally to validate.
func BuildLeadJSONSchema() map[string]any {
	props := map[string]any{
		"business_name": map[string]any{"type": "string", "minLength": 1},
		"filing_type": map[string]any{
			"type": "string",
			"enum": []string{"lien", "complaint", "other"},
		},
		"case_or_lien_id": map[string]any{"type": "string", "minLength": 1},
		"filing_date":     map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"claim_amount":    decimalProp(),
		"narrative":       map[string]any{"type": "string"},
		"confidence":      map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}
	required := []string{"business_name", "filing_type"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^\d+(\.\d{1,2})?$`,
	}
}
