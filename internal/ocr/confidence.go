package ocr

import (
	"regexp"
	"strings"
)

var (
	reCaseID = regexp.MustCompile(`\b\d{2,4}-?[a-z]{1,4}-?\d{4,}\b|\bcase\s+no\b|\blien\b`)
	reDate   = regexp.MustCompile(`\b(19|20)\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	reAmount = regexp.MustCompile(`\$\s?\d{1,3}(,\d{3})*(\.\d{2})?|\b\d+\.\d{2}\b`)
)

func hasCaseIDPattern(s string) bool { return reCaseID.MatchString(s) }
func hasDatePattern(s string) bool   { return reDate.MatchString(s) }
func hasAmountPattern(s string) bool { return reAmount.MatchString(s) }

// naive heuristic confidence based on decoded text characteristics
func heuristicConfidence(txt string) float32 {
	// boost if we see common filing artifacts
	// (case-number-ish, date-ish, amount-ish). Each adds a fixed bump.
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if hasCaseIDPattern(txtL) {
		score += 0.2
	}
	if hasDatePattern(txtL) {
		score += 0.15
	}
	if hasAmountPattern(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
