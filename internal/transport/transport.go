package transport

import (
	"context"
)

// SMSMessage is a rendered text message ready for a gateway.
type SMSMessage struct {
	To   string
	Body string
}

// EmailMessage is a rendered email ready for a gateway.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
}

// Transport delivers rendered messages over a channel provider.
// Implementations classify failures as transient or permanent so dispatch
// retry policy can act on them.
type Transport interface {
	SendSMS(ctx context.Context, msg SMSMessage) error
	SendEmail(ctx context.Context, msg EmailMessage) error
	Name() string
}
