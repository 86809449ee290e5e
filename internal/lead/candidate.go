package lead

import (
	"fmt"
	"strings"

	"github.com/leadsmith/leadgen/constants"
	"github.com/leadsmith/leadgen/internal/llm"
)

// CandidateFromFields converts schema-validated extractor output into a
// Candidate. Dates are normalized to the canonical calendar form and the
// claim amount is parsed as an exact decimal. Fields the extractor omitted
// stay nil.
func CandidateFromFields(f llm.LeadFields, sourceDocument string, sourceType constants.SourceType) (Candidate, error) {
	name := strings.TrimSpace(f.BusinessName)
	if name == "" {
		return Candidate{}, fmt.Errorf("candidate has no business name")
	}

	filingType, _ := constants.CanonicalizeFilingType(f.FilingType)

	c := Candidate{
		BusinessName:   name,
		FilingType:     filingType,
		CaseOrLienID:   strings.TrimSpace(f.CaseOrLienID),
		Narrative:      strings.TrimSpace(f.Narrative),
		Confidence:     f.Confidence,
		SourceDocument: sourceDocument,
		SourceType:     sourceType,
	}

	if f.FilingDate != "" {
		t, err := NormalizeDate(f.FilingDate)
		if err != nil {
			return Candidate{}, fmt.Errorf("filing date: %w", err)
		}
		c.FilingDate = &t
	}

	if f.ClaimAmount != "" {
		d, err := ParseAmount(f.ClaimAmount)
		if err != nil {
			return Candidate{}, fmt.Errorf("claim amount: %w", err)
		}
		c.ClaimAmount = &d
	}

	return c, nil
}
