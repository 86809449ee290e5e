package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Mock prints each message to a writer instead of calling a gateway, with
// an optional artificial delay to imitate provider latency. It records
// every message so tests can assert on exactly what was sent.
type Mock struct {
	out    io.Writer
	delay  time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	SMS    []SMSMessage
	Emails []EmailMessage

	// FailSMS and FailEmail, when set, are returned instead of sending.
	FailSMS   error
	FailEmail error
}

func NewMock(out io.Writer, delay time.Duration, logger *slog.Logger) *Mock {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mock{out: out, delay: delay, logger: logger}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) SendSMS(ctx context.Context, msg SMSMessage) error {
	if err := m.pause(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSMS != nil {
		return m.FailSMS
	}
	m.SMS = append(m.SMS, msg)

	rule := "============================================================"
	fmt.Fprintf(m.out, "\n%s\nSIMULATING SMS SEND\n%s\n", rule, rule)
	fmt.Fprintf(m.out, "To: %s\nMessage: %s\n%s\n\n", msg.To, msg.Body, rule)

	m.logger.Info("transport.sms.simulated", "to", msg.To)
	return nil
}

func (m *Mock) SendEmail(ctx context.Context, msg EmailMessage) error {
	if err := m.pause(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailEmail != nil {
		return m.FailEmail
	}
	m.Emails = append(m.Emails, msg)

	rule := "============================================================"
	fmt.Fprintf(m.out, "\n%s\nSIMULATING EMAIL SEND\n%s\n", rule, rule)
	fmt.Fprintf(m.out, "To: %s\nSubject: %s\nBody:\n%s\n%s\n\n", msg.To, msg.Subject, msg.Body, rule)

	m.logger.Info("transport.email.simulated", "to", msg.To)
	return nil
}

func (m *Mock) pause(ctx context.Context) error {
	if m.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.delay):
		return nil
	}
}
