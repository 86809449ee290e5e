package llm

import "context"

// SchemaVersion identifies the extraction schema sent to the language
// service. Bump when field names or semantics change.
const SchemaVersion = "lead-extract/v1"

// LeadFields is the normalized shape we want from the language service.
// Optional fields are omitted when absent, never null and never guessed.
type LeadFields struct {
	BusinessName string  `json:"business_name"`
	FilingType   string  `json:"filing_type"`              // lien | complaint | other
	CaseOrLienID string  `json:"case_or_lien_id,omitempty"`
	FilingDate   string  `json:"filing_date,omitempty"`    // YYYY-MM-DD
	ClaimAmount  string  `json:"claim_amount,omitempty"`   // decimal string
	Narrative    string  `json:"narrative,omitempty"`      // one-sentence purpose summary
	Confidence   float32 `json:"confidence,omitempty"`     // 0..1
}

type ExtractRequest struct {
	Text         string
	SourceType   string // "Court Filing" | "Lien Database"
	FilenameHint string

	OCRConfidence float32 // from the text extraction stage, 0 if digital
}

// FieldExtractor is the interface the pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (LeadFields, []byte /*rawJSON*/, error)
}
