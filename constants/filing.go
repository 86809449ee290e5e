package constants

import (
	"strings"
)

// FilingType classifies the legal document a lead was extracted from.
type FilingType string

const (
	FilingLien      FilingType = "lien"
	FilingComplaint FilingType = "complaint"
	FilingOther     FilingType = "other"
)

var allFilingTypes = []FilingType{FilingLien, FilingComplaint, FilingOther}

func FilingTypesAsStrings() []string {
	result := make([]string, len(allFilingTypes))
	for i, ft := range allFilingTypes {
		result[i] = string(ft)
	}
	return result
}

// CanonicalizeFilingType maps free-form labels from the extractor onto the
// stable enum. Unknown labels fall back to FilingOther.
func CanonicalizeFilingType(input string) (FilingType, bool) {
	if input == "" {
		return FilingOther, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]FilingType{
		"mechanics lien":   FilingLien,
		"mechanic's lien":  FilingLien,
		"tax lien":         FilingLien,
		"judgment lien":    FilingLien,
		"lien filing":      FilingLien,
		"civil complaint":  FilingComplaint,
		"court complaint":  FilingComplaint,
		"court filing":     FilingComplaint,
		"lawsuit":          FilingComplaint,
		"petition":         FilingComplaint,
	}

	if ft, ok := synonyms[normalized]; ok {
		return ft, true
	}

	for _, ft := range allFilingTypes {
		if normalized == string(ft) {
			return ft, true
		}
	}

	return FilingOther, false
}

// SourceType labels where a document came from, used as a prompt hint and
// recorded on the lead. Derived from the filename.
type SourceType string

const (
	SourceCourtFiling  SourceType = "Court Filing"
	SourceLienDatabase SourceType = "Lien Database"
)

// ClassifySource guesses the source type from a filename, defaulting PDFs
// to court filings and everything else to the lien database.
func ClassifySource(filename string) SourceType {
	lower := strings.ToLower(filename)
	switch {
	case strings.Contains(lower, "court") || strings.Contains(lower, "filing") || strings.Contains(lower, "complaint"):
		return SourceCourtFiling
	case strings.Contains(lower, "lien"):
		return SourceLienDatabase
	case strings.HasSuffix(lower, ".pdf"):
		return SourceCourtFiling
	default:
		return SourceLienDatabase
	}
}
