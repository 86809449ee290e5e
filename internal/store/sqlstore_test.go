package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadsmith/leadgen/constants"
	"github.com/leadsmith/leadgen/internal/common"
	"github.com/leadsmith/leadgen/internal/lead"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleCandidate() lead.Candidate {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("45750.00")
	return lead.Candidate{
		BusinessName:   "Johnson Enterprise Solutions LLC",
		FilingType:     constants.FilingLien,
		CaseOrLienID:   "2024-CV-001234",
		FilingDate:     &date,
		ClaimAmount:    &amount,
		Narrative:      "Mechanics lien for unpaid construction work.",
		SourceDocument: "/data/filings/lien_0001.pdf",
		SourceType:     constants.SourceLienDatabase,
	}
}

func TestCreateLead_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l := lead.FromCandidate(sampleCandidate())
	require.NoError(t, s.CreateLead(ctx, l))

	got, err := s.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.Fingerprint, got.Fingerprint)
	assert.Equal(t, "Johnson Enterprise Solutions LLC", got.BusinessName)
	assert.Equal(t, constants.FilingLien, got.FilingType)
	assert.Equal(t, constants.LeadStatusNew, got.Status)
	require.NotNil(t, got.ClaimAmount)
	assert.Equal(t, "45750.00", got.ClaimAmount.StringFixed(2))
	require.NotNil(t, got.FilingDate)
	assert.Equal(t, "2024-01-15", got.FilingDate.Format("2006-01-02"))
}

func TestCreateLead_DuplicateFingerprint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := lead.FromCandidate(sampleCandidate())
	require.NoError(t, s.CreateLead(ctx, first))

	second := lead.FromCandidate(sampleCandidate())
	err := s.CreateLead(ctx, second)
	require.ErrorIs(t, err, common.ErrDuplicateKey)

	leads, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, leads, 1, "identical fingerprints must yield exactly one lead")
}

func TestMergeCandidate_LastNonNullWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sparse := sampleCandidate()
	sparse.Narrative = ""
	sparse.ClaimAmount = nil
	l := lead.FromCandidate(sparse)
	require.NoError(t, s.CreateLead(ctx, l))

	richer := sampleCandidate()
	richer.BusinessName = "A Different Spelling LLC"
	require.NoError(t, s.MergeCandidate(ctx, l.ID, richer))

	got, err := s.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Johnson Enterprise Solutions LLC", got.BusinessName,
		"populated fields are not overwritten")
	require.NotNil(t, got.ClaimAmount)
	assert.Equal(t, "45750.00", got.ClaimAmount.StringFixed(2), "null fields are filled")
	assert.Equal(t, "Mechanics lien for unpaid construction work.", got.Narrative)
}

func TestMergeCandidate_NeverNullsOut(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l := lead.FromCandidate(sampleCandidate())
	require.NoError(t, s.CreateLead(ctx, l))

	empty := lead.Candidate{BusinessName: "Johnson Enterprise Solutions LLC"}
	require.NoError(t, s.MergeCandidate(ctx, l.ID, empty))

	got, err := s.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-CV-001234", got.CaseOrLienID)
	require.NotNil(t, got.FilingDate)
	require.NotNil(t, got.ClaimAmount)
}

func TestSetContact_IdempotentEnrichment(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l := lead.FromCandidate(sampleCandidate())
	require.NoError(t, s.CreateLead(ctx, l))

	require.NoError(t, s.SetContact(ctx, l.ID, lead.ContactInfo{
		OwnerName: "Michael Johnson", Email: "mjohnson@example.com", Mobile: "+1 (555) 201-3344",
	}))
	got, err := s.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.LeadStatusEnriched, got.Status)
	assert.Equal(t, "Michael Johnson", got.OwnerName)

	// A second enrichment with different data must not clobber.
	require.NoError(t, s.SetContact(ctx, l.ID, lead.ContactInfo{
		OwnerName: "Someone Else", Email: "other@example.com", Mobile: "+1 (555) 999-0000",
	}))
	got, err = s.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Michael Johnson", got.OwnerName)
	assert.Equal(t, "mjohnson@example.com", got.Email)
}

func TestSetCompliance_DNCForcesFlagsOff(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l := lead.FromCandidate(sampleCandidate())
	require.NoError(t, s.CreateLead(ctx, l))
	require.NoError(t, s.SetFlags(ctx, l.ID, true, true))
	require.NoError(t, s.SetCompliance(ctx, l.ID, true))

	got, err := s.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, got.DNC)
	assert.False(t, got.SendSMS)
	assert.False(t, got.SendEmail)
	assert.Equal(t, constants.LeadStatusReady, got.Status)
}

func TestSetFlags_RejectedOnDNCLead(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l := lead.FromCandidate(sampleCandidate())
	require.NoError(t, s.CreateLead(ctx, l))
	require.NoError(t, s.SetCompliance(ctx, l.ID, true))

	err := s.SetFlags(ctx, l.ID, true, false)
	require.ErrorIs(t, err, common.ErrInvalidInput)

	got, gerr := s.GetByID(ctx, l.ID)
	require.NoError(t, gerr)
	assert.False(t, got.SendSMS)
}

func TestClaimForSend_CompareAndSwap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l := lead.FromCandidate(sampleCandidate())
	require.NoError(t, s.CreateLead(ctx, l))
	require.NoError(t, s.SetCompliance(ctx, l.ID, false))

	claimed, err := s.ClaimForSend(ctx, l.ID, constants.LeadStatusReady)
	require.NoError(t, err)
	assert.True(t, claimed)

	again, err := s.ClaimForSend(ctx, l.ID, constants.LeadStatusReady)
	require.NoError(t, err)
	assert.False(t, again, "a second claim on the same lead must lose")

	got, err := s.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.LeadStatusSending, got.Status)
}

func TestClaimForSend_ConcurrentDispatchers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l := lead.FromCandidate(sampleCandidate())
	require.NoError(t, s.CreateLead(ctx, l))
	require.NoError(t, s.SetCompliance(ctx, l.ID, false))

	const racers = 8
	var wg sync.WaitGroup
	wins := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ClaimForSend(ctx, l.ID, constants.LeadStatusReady)
			if err == nil && ok {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Equal(t, 1, len(wins), "exactly one dispatcher may claim a lead")
}

func TestSetCompliance_DoesNotReviveDispatchedLead(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l := lead.FromCandidate(sampleCandidate())
	require.NoError(t, s.CreateLead(ctx, l))
	require.NoError(t, s.SetCompliance(ctx, l.ID, false))

	claimed, err := s.ClaimForSend(ctx, l.ID, constants.LeadStatusReady)
	require.NoError(t, err)
	require.True(t, claimed)

	// A duplicate ingest re-runs the compliance stage on the merged lead
	// while the first dispatcher still holds the claim.
	require.NoError(t, s.SetCompliance(ctx, l.ID, false))

	got, err := s.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.LeadStatusSending, got.Status)

	again, err := s.ClaimForSend(ctx, l.ID, constants.LeadStatusReady)
	require.NoError(t, err)
	assert.False(t, again, "a claimed lead must stay claimed across re-ingestion")
}

func TestSetCompliance_DoesNotResetSendFailed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l := lead.FromCandidate(sampleCandidate())
	require.NoError(t, s.CreateLead(ctx, l))
	require.NoError(t, s.SetCompliance(ctx, l.ID, false))

	claimed, err := s.ClaimForSend(ctx, l.ID, constants.LeadStatusReady)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, s.FailSend(ctx, l.ID, "sms gateway 503"))

	require.NoError(t, s.SetCompliance(ctx, l.ID, false))

	got, err := s.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.LeadStatusSendFailed, got.Status)
	assert.Equal(t, 1, got.SendAttempts)
}

func TestSetCompliance_RecordsDNCOnSentLead(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l := lead.FromCandidate(sampleCandidate())
	require.NoError(t, s.CreateLead(ctx, l))
	require.NoError(t, s.SetCompliance(ctx, l.ID, false))

	claimed, err := s.ClaimForSend(ctx, l.ID, constants.LeadStatusReady)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, s.CompleteSend(ctx, l.ID))

	require.NoError(t, s.SetCompliance(ctx, l.ID, true))

	got, err := s.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.LeadStatusSent, got.Status)
	assert.True(t, got.DNC, "the verdict still lands even when status is frozen")
}

func TestSendLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l := lead.FromCandidate(sampleCandidate())
	require.NoError(t, s.CreateLead(ctx, l))
	require.NoError(t, s.SetCompliance(ctx, l.ID, false))
	require.NoError(t, s.SetFlags(ctx, l.ID, true, true))

	claimed, err := s.ClaimForSend(ctx, l.ID, constants.LeadStatusReady)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, s.ConsumeChannel(ctx, l.ID, constants.ChannelSMS))
	require.NoError(t, s.FailSend(ctx, l.ID, "email webhook 503"))

	got, err := s.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.LeadStatusSendFailed, got.Status)
	assert.Equal(t, 1, got.SendAttempts)
	assert.False(t, got.SendSMS, "delivered channel stays consumed across the failure")
	assert.True(t, got.SendEmail)

	claimed, err = s.ClaimForSend(ctx, l.ID, constants.LeadStatusSendFailed)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, s.ConsumeChannel(ctx, l.ID, constants.ChannelEmail))
	require.NoError(t, s.CompleteSend(ctx, l.ID))

	got, err = s.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.LeadStatusSent, got.Status)
	assert.Empty(t, got.SendError)
}

func TestQuery_Filters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := lead.FromCandidate(sampleCandidate())
	require.NoError(t, s.CreateLead(ctx, a))
	require.NoError(t, s.SetCompliance(ctx, a.ID, false))
	require.NoError(t, s.SetFlags(ctx, a.ID, true, false))

	other := sampleCandidate()
	other.BusinessName = "Metro Tech Innovations LLC"
	other.CaseOrLienID = "30-2024-CV-002456"
	b := lead.FromCandidate(other)
	require.NoError(t, s.CreateLead(ctx, b))

	ready := constants.LeadStatusReady
	leads, err := s.Query(ctx, Filter{Status: &ready, SendFlagged: true})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, a.ID, leads[0].ID)

	leads, err = s.Query(ctx, Filter{CaseOrLienID: "30-2024-CV-002456"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, b.ID, leads[0].ID)

	_, err = s.GetByFingerprint(ctx, "case:NOPE")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestIngestJobs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job, err := s.StartJob(ctx, "/data/filings/lien_0001.pdf", constants.SourceLienDatabase, "abc123")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusRunning, job.Status)

	_, err = s.LookupJobByHash(ctx, "abc123")
	assert.ErrorIs(t, err, common.ErrNotFound, "running jobs are not terminal")

	// Per-stage progress lands on the job but does not make it terminal.
	require.NoError(t, s.AdvanceJob(ctx, job.ID, constants.JobStatusOCROK, "ocr"))
	require.NoError(t, s.AdvanceJob(ctx, job.ID, constants.JobStatusParsed, "parse"))
	_, err = s.LookupJobByHash(ctx, "abc123")
	assert.ErrorIs(t, err, common.ErrNotFound, "in-flight stage statuses are not terminal")

	l := lead.FromCandidate(sampleCandidate())
	require.NoError(t, s.CreateLead(ctx, l))
	require.NoError(t, s.FinishJob(ctx, job.ID, JobOutcome{
		Status: constants.JobStatusDone,
		Stage:  "complete",
		LeadID: &l.ID,
	}))

	found, err := s.LookupJobByHash(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, job.ID, found.ID)
	require.NotNil(t, found.LeadID)
	assert.Equal(t, l.ID, *found.LeadID)
	require.NotNil(t, found.FinishedAt)

	dup, err := s.StartJob(ctx, "/data/filings/lien_0001_copy.pdf", constants.SourceLienDatabase, "def456")
	require.NoError(t, err)
	require.NoError(t, s.FinishJob(ctx, dup.ID, JobOutcome{
		Status: constants.JobStatusDuplicate,
		Stage:  "complete",
		LeadID: &l.ID,
	}))
	found, err = s.LookupJobByHash(ctx, "def456")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusDuplicate, found.Status)
}
