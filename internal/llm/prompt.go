package llm

import (
	"strings"
)

const maxPromptText = 6000

// BuildSystemPrompt composes the system message: a conservative legal
// filing parser that returns schema-constrained JSON and never invents
// data not present in the source text.
func BuildSystemPrompt() string {
	parts := []string{
		"You are an expert legal document parser specializing in liens and court complaints.",
		"Return ONLY JSON that matches the provided JSON Schema (" + SchemaVersion + ").",
		"Extract the primary business or defendant name, the case or lien identifier, the filing date, the claimed amount, and a one-sentence narrative of the document's purpose.",
		"'filing_type' must be exactly one of: lien, complaint, other.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"'claim_amount' must be a plain decimal string with no currency symbol or thousands separators.",
		"Be conservative: only report values visibly present in the text. Never invent a business name, identifier, date, or amount.",
		"Never output null. If a field is not present or unreadable, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildStrictReprompt is sent on the single retry after a malformed
// response. Same contract, tighter wording.
func BuildStrictReprompt() string {
	parts := []string{
		"Your previous response did not match the required JSON Schema.",
		"Respond again with ONLY a single JSON object, no markdown fences, no commentary.",
		"Every present field must satisfy the schema exactly; omit any field you cannot support from the text.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the document text with source hints. Text is
// truncated; the lead fields appear in the first pages of a filing.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if req.SourceType != "" {
		b.WriteString("Document source: ")
		b.WriteString(req.SourceType)
		b.WriteString("\n")
	}
	if req.FilenameHint != "" {
		b.WriteString("Filename: ")
		b.WriteString(req.FilenameHint)
		b.WriteString("\n")
	}
	if req.OCRConfidence > 0 {
		b.WriteString("Note: this text came from OCR and may contain recognition errors.\n")
	}

	text := strings.TrimSpace(req.Text)
	b.WriteString("\nDocument text:\n---\n")
	if len(text) > maxPromptText {
		b.WriteString(text[:maxPromptText])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	b.WriteString("\n---\n")
	return b.String()
}
