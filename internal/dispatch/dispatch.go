package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadsmith/leadgen/constants"
	"github.com/leadsmith/leadgen/internal/common"
	"github.com/leadsmith/leadgen/internal/lead"
	"github.com/leadsmith/leadgen/internal/store"
	"github.com/leadsmith/leadgen/internal/transport"
)

// Summary aggregates one dispatcher run.
type Summary struct {
	Examined  uint32
	Claimed   uint32
	SMSSent   uint32
	EmailSent uint32
	Completed uint32
	Failed    uint32
	NoContact uint32 // flag set but no usable address or number
	Exhausted uint32 // retry budget spent, left in SEND_FAILED
}

// Dispatcher delivers flagged READY leads and retries failed ones within
// a bounded attempt budget. Claiming a lead is a compare-and-swap on its
// status, persisted before any transport call, so concurrent runs never
// double-send.
type Dispatcher struct {
	Store       store.LeadStore
	Transport   transport.Transport
	Logger      *slog.Logger
	MaxAttempts int // total send attempts per lead, default 3
	BatchLimit  uint64
	Retry       common.RetryConfig
}

func New(st store.LeadStore, tr transport.Transport, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Store:       st,
		Transport:   tr,
		Logger:      logger,
		MaxAttempts: 3,
		BatchLimit:  100,
	}
}

// Run processes one dispatch cycle: fresh READY leads first, then leads
// whose previous attempt failed and still have retry budget.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	if err := d.runBatch(ctx, constants.LeadStatusReady, &sum); err != nil {
		return sum, err
	}
	if err := d.runBatch(ctx, constants.LeadStatusSendFailed, &sum); err != nil {
		return sum, err
	}
	d.Logger.Info("dispatch.run.done",
		"examined", sum.Examined,
		"claimed", sum.Claimed,
		"sms_sent", sum.SMSSent,
		"email_sent", sum.EmailSent,
		"completed", sum.Completed,
		"failed", sum.Failed,
		"no_contact", sum.NoContact,
		"exhausted", sum.Exhausted,
	)
	return sum, nil
}

// RunContinuous polls for dispatchable leads until the context ends.
func (d *Dispatcher) RunContinuous(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	d.Logger.Info("dispatch.continuous.start", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := d.Run(ctx); err != nil {
			d.Logger.Error("dispatch.cycle.failed", "err", err)
		}
		select {
		case <-ctx.Done():
			d.Logger.Info("dispatch.continuous.stop")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) runBatch(ctx context.Context, from constants.LeadStatus, sum *Summary) error {
	leads, err := d.Store.Query(ctx, store.Filter{
		Status:      &from,
		SendFlagged: true,
		Limit:       d.BatchLimit,
	})
	if err != nil {
		return fmt.Errorf("query %s leads: %w", from, err)
	}

	for _, l := range leads {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sum.Examined++
		if l.DNC {
			// Flags on a DNC lead should be impossible; never send.
			d.Logger.Warn("dispatch.skip.dnc", "lead_id", l.ID)
			continue
		}
		if from == constants.LeadStatusSendFailed && l.SendAttempts >= d.maxAttempts() {
			d.Logger.Warn("dispatch.skip.attempts_exhausted",
				"lead_id", l.ID,
				"attempts", l.SendAttempts,
			)
			sum.Exhausted++
			continue
		}

		claimed, err := d.Store.ClaimForSend(ctx, l.ID, from)
		if err != nil {
			return fmt.Errorf("claim lead %s: %w", l.ID, err)
		}
		if !claimed {
			// Another dispatcher run got there first.
			continue
		}
		sum.Claimed++
		d.dispatchLead(ctx, l, sum)
	}
	return nil
}

// dispatchLead sends each requested channel for a lead already in
// SENDING. A channel flag is consumed only after its send succeeds, so a
// SENT channel is never re-sent even if the other channel fails.
func (d *Dispatcher) dispatchLead(ctx context.Context, l *lead.Lead, sum *Summary) {
	var firstErr error

	if l.SendSMS {
		switch {
		case l.Mobile == "":
			d.Logger.Warn("dispatch.sms.no_number", "lead_id", l.ID, "business", l.BusinessName)
			sum.NoContact++
			// Nothing to deliver; drop the flag so the lead is not re-examined.
			if err := d.Store.ConsumeChannel(ctx, l.ID, constants.ChannelSMS); err != nil {
				firstErr = err
			}
		default:
			if err := d.sendSMS(ctx, l); err != nil {
				firstErr = err
			} else {
				sum.SMSSent++
			}
		}
	}

	if l.SendEmail && firstErr == nil {
		switch {
		case l.Email == "":
			d.Logger.Warn("dispatch.email.no_address", "lead_id", l.ID, "business", l.BusinessName)
			sum.NoContact++
			if err := d.Store.ConsumeChannel(ctx, l.ID, constants.ChannelEmail); err != nil {
				firstErr = err
			}
		default:
			if err := d.sendEmail(ctx, l); err != nil {
				firstErr = err
			} else {
				sum.EmailSent++
			}
		}
	}

	if firstErr != nil {
		sum.Failed++
		d.Logger.Error("dispatch.lead.failed", "lead_id", l.ID, "err", firstErr)
		if err := d.Store.FailSend(ctx, l.ID, firstErr.Error()); err != nil {
			d.Logger.Error("dispatch.mark_failed.error", "lead_id", l.ID, "err", err)
		}
		return
	}

	if err := d.Store.CompleteSend(ctx, l.ID); err != nil {
		d.Logger.Error("dispatch.complete.error", "lead_id", l.ID, "err", err)
		return
	}
	sum.Completed++
	d.Logger.Info("dispatch.lead.sent", "lead_id", l.ID, "business", l.BusinessName)
}

func (d *Dispatcher) sendSMS(ctx context.Context, l *lead.Lead) error {
	msg := transport.RenderSMS(l)
	err := common.Retry(ctx, d.Retry, d.Logger, "dispatch.sms", func(ctx context.Context) error {
		return d.Transport.SendSMS(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("sms to %s: %w", msg.To, err)
	}
	d.Logger.Info("dispatch.sms.sent", "lead_id", l.ID, "to", msg.To)
	return d.Store.ConsumeChannel(ctx, l.ID, constants.ChannelSMS)
}

func (d *Dispatcher) sendEmail(ctx context.Context, l *lead.Lead) error {
	msg := transport.RenderEmail(l)
	err := common.Retry(ctx, d.Retry, d.Logger, "dispatch.email", func(ctx context.Context) error {
		return d.Transport.SendEmail(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("email to %s: %w", msg.To, err)
	}
	d.Logger.Info("dispatch.email.sent", "lead_id", l.ID, "to", msg.To)
	return d.Store.ConsumeChannel(ctx, l.ID, constants.ChannelEmail)
}

func (d *Dispatcher) maxAttempts() int {
	if d.MaxAttempts <= 0 {
		return 3
	}
	return d.MaxAttempts
}
