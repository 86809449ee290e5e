package ocr

import (
	"strings"
	"unicode"
)

const (
	minCharsPerPage   = 50
	minPrintableRatio = 0.85
	minWordlikeRatio  = 0.50
)

// needsOCR decides whether the digital text path produced usable output or
// the PDF must be rasterized and recognized optically. Thin text per page
// usually means a scanned document; a low printable or word-like ratio
// means an embedded-font extraction artifact.
func needsOCR(text string, pages int) bool {
	if pages <= 0 {
		pages = 1
	}
	charsPerPage := float64(len(strings.TrimSpace(text))) / float64(pages)
	if charsPerPage < minCharsPerPage {
		return true
	}
	if printableRatio(text) < minPrintableRatio {
		return true
	}
	if wordlikeRatio(text) < minWordlikeRatio {
		return true
	}
	return false
}

// printableRatio returns the ratio of printable characters in text.
// Excludes PUA U+E000-U+F8FF, control chars < U+0020 (except \n\r\t), U+FFFD.
func printableRatio(text string) float64 {
	if len(text) == 0 {
		return 1.0
	}
	total := 0
	printable := 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	// Private Use Area
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	// Replacement character
	if r == 0xFFFD {
		return true
	}
	// Control chars except whitespace
	if r < 0x0020 && r != '\n' && r != '\r' && r != '\t' {
		return true
	}
	return false
}

// wordlikeRatio returns the ratio of word-like tokens (length 2-15) to total tokens.
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		n := len([]rune(f))
		if n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}
