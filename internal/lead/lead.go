package lead

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/leadsmith/leadgen/constants"
)

// Candidate is the unvalidated structured output of field extraction,
// prior to becoming a persisted Lead. Fields the extractor could not
// locate are nil, never fabricated.
type Candidate struct {
	BusinessName string
	FilingType   constants.FilingType
	CaseOrLienID string
	FilingDate   *time.Time
	ClaimAmount  *decimal.Decimal
	Narrative    string
	Confidence   float32

	SourceDocument string
	SourceType     constants.SourceType
}

// ContactInfo is the additive output of enrichment.
type ContactInfo struct {
	OwnerName string `json:"owner_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Mobile    string `json:"mobile,omitempty"`
}

// Empty reports whether enrichment produced nothing usable.
func (c ContactInfo) Empty() bool {
	return c.OwnerName == "" && c.Email == "" && c.Mobile == ""
}

// Lead is the persisted unit. One Lead per unique Fingerprint; mutated by
// enrichment (contact fields), compliance (dnc), operators (send flags)
// and the dispatcher (status).
type Lead struct {
	ID           uuid.UUID            `json:"id"`
	Fingerprint  string               `json:"fingerprint"`
	BusinessName string               `json:"business_name"`
	FilingType   constants.FilingType `json:"filing_type"`
	CaseOrLienID string               `json:"case_or_lien_id,omitempty"`
	FilingDate   *time.Time           `json:"filing_date,omitempty"`
	ClaimAmount  *decimal.Decimal     `json:"claim_amount,omitempty"`
	Narrative    string               `json:"narrative,omitempty"`

	OwnerName string `json:"owner_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Mobile    string `json:"mobile,omitempty"`

	DNC       bool `json:"dnc"`
	SendSMS   bool `json:"send_sms"`
	SendEmail bool `json:"send_email"`

	Status       constants.LeadStatus `json:"status"`
	SendAttempts int                  `json:"send_attempts"`
	SendError    string               `json:"send_error,omitempty"`

	SourceDocument string               `json:"source_document,omitempty"`
	SourceType     constants.SourceType `json:"source_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromCandidate builds a new Lead in status NEW.
func FromCandidate(c Candidate) *Lead {
	now := time.Now().UTC()
	return &Lead{
		ID:             uuid.New(),
		Fingerprint:    Fingerprint(c),
		BusinessName:   c.BusinessName,
		FilingType:     c.FilingType,
		CaseOrLienID:   c.CaseOrLienID,
		FilingDate:     c.FilingDate,
		ClaimAmount:    c.ClaimAmount,
		Narrative:      c.Narrative,
		Status:         constants.LeadStatusNew,
		SourceDocument: c.SourceDocument,
		SourceType:     c.SourceType,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
