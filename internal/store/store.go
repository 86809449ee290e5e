package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/leadsmith/leadgen/constants"
	"github.com/leadsmith/leadgen/internal/lead"
)

// Filter narrows Query results.
type Filter struct {
	Status       *constants.LeadStatus
	DNC          *bool
	SendFlagged  bool // send_sms OR send_email requested
	CaseOrLienID string
	Limit        uint64
}

// IngestJob records one document's trip through the pipeline, including
// failures, so per-document outcomes are visible next to the leads.
type IngestJob struct {
	ID             uuid.UUID
	SourceDocument string
	SourceType     constants.SourceType
	ContentHash    string
	Status         constants.JobStatus
	Stage          string
	ErrorMessage   string
	LeadID         *uuid.UUID
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// JobOutcome finalizes an ingest job.
type JobOutcome struct {
	Status       constants.JobStatus
	Stage        string
	ErrorMessage string
	LeadID       *uuid.UUID
}

// LeadStore is the sole durable state the pipeline depends on. The
// fingerprint uniqueness constraint behind CreateLead is the atomic dedup
// point; ClaimForSend is the dispatch serialization point.
type LeadStore interface {
	// CreateLead inserts a new lead. Returns common.ErrDuplicateKey when a
	// lead with the same fingerprint already exists.
	CreateLead(ctx context.Context, l *lead.Lead) error
	GetByID(ctx context.Context, id uuid.UUID) (*lead.Lead, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*lead.Lead, error)
	Query(ctx context.Context, f Filter) ([]*lead.Lead, error)

	// MergeCandidate folds newly observed non-null candidate fields into an
	// existing lead: last-non-null-wins, a populated field is never
	// overwritten with null.
	MergeCandidate(ctx context.Context, id uuid.UUID, c lead.Candidate) error

	// SetContact fills contact fields that are still empty (re-enrichment is
	// idempotent) and advances NEW -> ENRICHED.
	SetContact(ctx context.Context, id uuid.UUID, info lead.ContactInfo) error

	// SetCompliance records the DNC verdict. NEW and ENRICHED leads
	// advance to READY; leads already dispatching, sent, or parked in
	// SEND_FAILED keep their status so a duplicate ingest cannot revive
	// them. dnc=true forces send_sms and send_email false.
	SetCompliance(ctx context.Context, id uuid.UUID, dnc bool) error

	// SetFlags sets the operator send flags. Fails with
	// common.ErrInvalidInput on a DNC lead.
	SetFlags(ctx context.Context, id uuid.UUID, sendSMS, sendEmail bool) error

	// ClaimForSend atomically transitions from -> SENDING. Returns false
	// when another dispatcher got there first (or the status moved on).
	ClaimForSend(ctx context.Context, id uuid.UUID, from constants.LeadStatus) (bool, error)

	// ConsumeChannel clears a channel flag after a successful send.
	ConsumeChannel(ctx context.Context, id uuid.UUID, ch constants.Channel) error

	// CompleteSend marks the lead SENT and clears any recorded send error.
	CompleteSend(ctx context.Context, id uuid.UUID) error

	// FailSend marks the lead SEND_FAILED with the failure reason and
	// increments the attempt counter.
	FailSend(ctx context.Context, id uuid.UUID, reason string) error

	// Ingest job log.
	LookupJobByHash(ctx context.Context, contentHash string) (*IngestJob, error)
	StartJob(ctx context.Context, sourceDocument string, sourceType constants.SourceType, contentHash string) (*IngestJob, error)
	// AdvanceJob records per-stage progress (OCR_OK, PARSED) on a running
	// job so an operator can see where a slow document sits.
	AdvanceJob(ctx context.Context, id uuid.UUID, status constants.JobStatus, stage string) error
	FinishJob(ctx context.Context, id uuid.UUID, outcome JobOutcome) error

	Close() error
}
