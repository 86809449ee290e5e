package lead

import (
	"fmt"
	"strings"
	"time"
)

// Source phrasings seen in filings. Order matters: unambiguous layouts
// first, two-digit years last.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"2 January 2006",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1/2/06",
	"01/02/06",
}

// NormalizeDate parses a date in any supported source phrasing and returns
// it in the canonical YYYY-MM-DD form. "November 30, 2023" and "11/30/23"
// both normalize to "2023-11-30".
func NormalizeDate(s string) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}
