package lead

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	rePunct      = regexp.MustCompile(`[^a-z0-9\s]`)
	reWhitespace = regexp.MustCompile(`\s+`)

	// Corporate suffixes carry no identity; "Acme LLC" and "Acme, Inc."
	// must fingerprint the same when the filing id is absent.
	corpSuffixes = map[string]struct{}{
		"llc": {}, "inc": {}, "corp": {}, "co": {}, "ltd": {},
		"llp": {}, "lp": {}, "pc": {}, "pllc": {}, "incorporated": {},
		"corporation": {}, "company": {}, "limited": {},
	}
)

// NormalizeBusinessName lowercases, strips punctuation and corporate
// suffixes, and collapses whitespace.
func NormalizeBusinessName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = rePunct.ReplaceAllString(s, " ")
	s = reWhitespace.ReplaceAllString(s, " ")

	words := strings.Fields(s)
	for len(words) > 0 {
		if _, ok := corpSuffixes[words[len(words)-1]]; !ok {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// NormalizeCaseID uppercases a case/lien identifier and strips internal
// whitespace so "2024-cv-001234" and "2024-CV-001234 " collide.
func NormalizeCaseID(id string) string {
	s := strings.ToUpper(strings.TrimSpace(id))
	return reWhitespace.ReplaceAllString(s, "")
}

// Fingerprint derives the stable dedup key for a candidate. The case/lien
// id is the primary key when present; otherwise a hash of normalized
// business name + filing date + claim amount.
func Fingerprint(c Candidate) string {
	if id := NormalizeCaseID(c.CaseOrLienID); id != "" {
		return "case:" + id
	}

	var b strings.Builder
	b.WriteString(NormalizeBusinessName(c.BusinessName))
	b.WriteString("|")
	if c.FilingDate != nil {
		b.WriteString(c.FilingDate.Format("2006-01-02"))
	}
	b.WriteString("|")
	if c.ClaimAmount != nil {
		b.WriteString(c.ClaimAmount.StringFixed(2))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return "hash:" + hex.EncodeToString(sum[:])
}
