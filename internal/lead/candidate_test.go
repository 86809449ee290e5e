package lead

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadsmith/leadgen/constants"
	"github.com/leadsmith/leadgen/internal/llm"
)

func TestCandidateFromFields(t *testing.T) {
	c, err := CandidateFromFields(llm.LeadFields{
		BusinessName: "Metro Tech Innovations LLC",
		FilingType:   "complaint",
		CaseOrLienID: "30-2024-CV-002456",
		FilingDate:   "2024-02-01",
		ClaimAmount:  "67500.00",
		Narrative:    "Breach of contract dispute over undelivered software milestones.",
		Confidence:   0.91,
	}, "/data/filings/complaint_0023.pdf", constants.SourceCourtFiling)
	require.NoError(t, err)

	assert.Equal(t, "Metro Tech Innovations LLC", c.BusinessName)
	assert.Equal(t, constants.FilingComplaint, c.FilingType)
	assert.Equal(t, "30-2024-CV-002456", c.CaseOrLienID)
	require.NotNil(t, c.FilingDate)
	assert.Equal(t, "2024-02-01", c.FilingDate.Format("2006-01-02"))
	require.NotNil(t, c.ClaimAmount)
	assert.Equal(t, "67500.00", c.ClaimAmount.StringFixed(2))
	assert.Equal(t, constants.SourceCourtFiling, c.SourceType)
}

func TestCandidateFromFields_OptionalFieldsStayNil(t *testing.T) {
	c, err := CandidateFromFields(llm.LeadFields{
		BusinessName: "Acme Co",
		FilingType:   "lien",
	}, "doc.pdf", constants.SourceLienDatabase)
	require.NoError(t, err)
	assert.Nil(t, c.FilingDate)
	assert.Nil(t, c.ClaimAmount)
	assert.Empty(t, c.CaseOrLienID)
}

func TestCandidateFromFields_Errors(t *testing.T) {
	_, err := CandidateFromFields(llm.LeadFields{FilingType: "lien"}, "doc.pdf", constants.SourceCourtFiling)
	require.Error(t, err, "business name is mandatory")

	_, err = CandidateFromFields(llm.LeadFields{
		BusinessName: "Acme", FilingType: "lien", FilingDate: "sometime",
	}, "doc.pdf", constants.SourceCourtFiling)
	require.Error(t, err)

	_, err = CandidateFromFields(llm.LeadFields{
		BusinessName: "Acme", FilingType: "lien", ClaimAmount: "lots",
	}, "doc.pdf", constants.SourceCourtFiling)
	require.Error(t, err)
}

func TestFromCandidate(t *testing.T) {
	c, err := CandidateFromFields(llm.LeadFields{
		BusinessName: "Johnson Enterprise Solutions LLC",
		FilingType:   "lien",
		CaseOrLienID: "2024-CV-001234",
		FilingDate:   "2024-01-15",
		ClaimAmount:  "$45,750.00",
	}, "lien_0001.pdf", constants.SourceLienDatabase)
	require.NoError(t, err)

	l := FromCandidate(c)
	assert.Equal(t, constants.LeadStatusNew, l.Status)
	assert.Equal(t, "case:2024-CV-001234", l.Fingerprint)
	assert.False(t, l.DNC)
	assert.False(t, l.SendSMS)
	assert.False(t, l.SendEmail)
	require.NotNil(t, l.ClaimAmount)
	assert.Equal(t, "45750.00", l.ClaimAmount.StringFixed(2))
	assert.False(t, l.CreatedAt.IsZero())
}
