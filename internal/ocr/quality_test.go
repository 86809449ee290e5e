package ocr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsOCR(t *testing.T) {
	goodPage := strings.Repeat("The plaintiff alleges breach of contract against the defendant. ", 10)

	tests := []struct {
		name  string
		text  string
		pages int
		want  bool
	}{
		{"dense digital text", goodPage, 1, false},
		{"empty text", "", 1, true},
		{"thin text per page", "NOTICE OF LIEN", 1, true},
		{"dense but multipage thin", goodPage, 40, true},
		{"pua garbage", strings.Repeat(" ", 100), 1, true},
		{"replacement chars", strings.Repeat("�plaintiff� ", 50), 1, true},
		{"non wordlike tokens", strings.Repeat("x ", 400), 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, needsOCR(tt.text, tt.pages))
		})
	}
}

func TestPrintableRatio(t *testing.T) {
	assert.InDelta(t, 1.0, printableRatio("plain legal text\nwith lines\n"), 0.001)
	assert.Less(t, printableRatio(strings.Repeat("", 90)+"plaintiff"), 0.5)
}

func TestWordlikeRatio(t *testing.T) {
	assert.InDelta(t, 1.0, wordlikeRatio("the quick brown fox"), 0.001)
	assert.Equal(t, 0.0, wordlikeRatio(""))
	assert.Less(t, wordlikeRatio("x y z aaaaaaaaaaaaaaaaaaaaaaaa"), 0.5)
}

func TestHeuristicConfidence(t *testing.T) {
	filing := `NOTICE OF MECHANICS LIEN
Case No. 2024-CV-001234

Claimant: Johnson Enterprise Solutions LLC
Amount claimed: $45,750.00
Date of filing: 01/15/2024

This lien secures payment for labor and materials furnished to the property.`

	rich := heuristicConfidence(filing)
	assert.GreaterOrEqual(t, rich, float32(0.7))

	poor := heuristicConfidence("hello")
	assert.LessOrEqual(t, poor, float32(0.3))
	assert.Greater(t, rich, poor)
}
