package transport

import (
	"fmt"
	"strings"

	"github.com/leadsmith/leadgen/internal/lead"
)

// RenderSMS builds the outreach text for a lead. Recipients without a
// known owner name are addressed by the business name instead.
func RenderSMS(l *lead.Lead) SMSMessage {
	name := recipientName(l)
	body := fmt.Sprintf(
		"Hello %s, we have an opportunity regarding %s. Please contact us to learn more. Reply STOP to opt out.",
		name, l.BusinessName,
	)
	return SMSMessage{To: l.Mobile, Body: body}
}

// RenderEmail builds the outreach email for a lead, including the
// unsubscribe footer required on every outbound message.
func RenderEmail(l *lead.Lead) EmailMessage {
	name := recipientName(l)
	subject := fmt.Sprintf("An Opportunity for %s", l.BusinessName)

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", name)
	fmt.Fprintf(&b, "We hope this message finds you well. We have identified a potential opportunity that may be relevant to %s.\n\n", l.BusinessName)
	b.WriteString("Our team specializes in helping businesses like yours navigate complex situations and would like to discuss how we might be able to assist you.\n\n")
	b.WriteString("Would you be available for a brief conversation this week? We can work around your schedule.\n\n")
	b.WriteString("Best regards,\nLead Generation Team\n\n")
	b.WriteString(`P.S. If you prefer not to receive future communications, please reply with "UNSUBSCRIBE" and we will remove you from our contact list immediately.`)

	return EmailMessage{To: l.Email, Subject: subject, Body: b.String()}
}

func recipientName(l *lead.Lead) string {
	if l.OwnerName != "" {
		return l.OwnerName
	}
	return l.BusinessName
}
