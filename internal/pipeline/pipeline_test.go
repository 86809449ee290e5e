package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadsmith/leadgen/constants"
	"github.com/leadsmith/leadgen/internal/common"
	"github.com/leadsmith/leadgen/internal/dnc"
	"github.com/leadsmith/leadgen/internal/enrich"
	"github.com/leadsmith/leadgen/internal/extract"
	"github.com/leadsmith/leadgen/internal/lead"
	"github.com/leadsmith/leadgen/internal/llm"
	"github.com/leadsmith/leadgen/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *store.SQLStore {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// stubText returns the file contents verbatim, standing in for the OCR
// stage.
type stubText struct {
	err error
}

func (s stubText) Extract(_ context.Context, path string) (extract.TextExtractionResult, error) {
	if s.err != nil {
		return extract.TextExtractionResult{}, s.err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return extract.TextExtractionResult{}, err
	}
	return extract.TextExtractionResult{
		Text:   string(b),
		Pages:  1,
		Method: "pdf-text",
	}, nil
}

// stubFields maps a marker substring of the document text to fixed fields,
// standing in for the LLM stage.
type stubFields struct {
	byMarker map[string]llm.LeadFields
	err      error
}

func (s stubFields) ExtractFields(_ context.Context, req llm.ExtractRequest) (llm.LeadFields, []byte, error) {
	if s.err != nil {
		return llm.LeadFields{}, nil, s.err
	}
	for marker, fields := range s.byMarker {
		if strings.Contains(req.Text, marker) {
			return fields, nil, nil
		}
	}
	return llm.LeadFields{}, nil, errors.New("no fields for document")
}

type fixedProvider struct {
	info lead.ContactInfo
}

func (f fixedProvider) Name() string { return "fixed" }

func (f fixedProvider) Lookup(context.Context, enrich.LookupRequest) (lead.ContactInfo, error) {
	return f.info, nil
}

var johnsonFields = llm.LeadFields{
	BusinessName: "Johnson Enterprise Solutions LLC",
	FilingType:   "lien",
	CaseOrLienID: "2024-CV-001234",
	FilingDate:   "2024-01-15",
	ClaimAmount:  "45750.00",
	Narrative:    "State tax lien filed against business assets for unpaid taxes.",
	Confidence:   0.95,
}

var metroFields = llm.LeadFields{
	BusinessName: "Metro Tech Innovations LLC",
	FilingType:   "complaint",
	CaseOrLienID: "30-2024-CV-002456",
	FilingDate:   "2024-02-20",
	ClaimAmount:  "67500.00",
	Narrative:    "Civil complaint alleging breach of contract over an unpaid software development agreement.",
	Confidence:   0.9,
}

func writeDoc(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func newPipeline(st *store.SQLStore, fields llm.FieldExtractor, listed ...string) *Pipeline {
	logger := testLogger()
	enricher := enrich.New(fixedProvider{info: lead.ContactInfo{
		OwnerName: "Sarah Johnson",
		Email:     "sarah@example.com",
		Mobile:    "5552013344",
	}}, 0, logger)
	checker := dnc.NewChecker(dnc.NewMock(0, listed...), false, logger)
	return New(st, stubText{}, fields, enricher, checker, logger)
}

func TestProcessFileCreatesReadyLead(t *testing.T) {
	st := openStore(t)
	dir := t.TempDir()
	fields := stubFields{byMarker: map[string]llm.LeadFields{"Johnson": johnsonFields}}
	p := newPipeline(st, fields)
	ctx := context.Background()

	path := writeDoc(t, dir, "lien_johnson.pdf", "STATE TAX LIEN against Johnson Enterprise Solutions LLC")
	out := p.ProcessFile(ctx, path)
	require.NoError(t, out.Err)
	assert.False(t, out.Duplicate)
	assert.False(t, out.Skipped)

	got, err := st.GetByID(ctx, out.LeadID)
	require.NoError(t, err)
	assert.Equal(t, "Johnson Enterprise Solutions LLC", got.BusinessName)
	assert.Equal(t, constants.FilingLien, got.FilingType)
	assert.Equal(t, "2024-CV-001234", got.CaseOrLienID)
	require.NotNil(t, got.ClaimAmount)
	assert.Equal(t, "45750.00", got.ClaimAmount.StringFixed(2))
	assert.Equal(t, "2024-01-15", got.FilingDate.Format("2006-01-02"))
	assert.Equal(t, constants.SourceLienDatabase, got.SourceType)

	// Enrichment and the clean compliance verdict landed.
	assert.Equal(t, "Sarah Johnson", got.OwnerName)
	assert.Equal(t, "5552013344", got.Mobile)
	assert.False(t, got.DNC)
	assert.Equal(t, constants.LeadStatusReady, got.Status)
}

func TestSameFilingTwiceYieldsOneLead(t *testing.T) {
	st := openStore(t)
	dir := t.TempDir()
	fields := stubFields{byMarker: map[string]llm.LeadFields{"Johnson": johnsonFields}}
	p := newPipeline(st, fields)
	ctx := context.Background()

	// Two distinct documents describing the same filing: different bytes,
	// so hash dedup does not apply, but the fingerprint matches.
	first := writeDoc(t, dir, "lien_johnson_a.pdf", "TAX LIEN Johnson Enterprise Solutions LLC, filed 2024-01-15")
	second := writeDoc(t, dir, "lien_johnson_b.pdf", "NOTICE OF LIEN: Johnson Enterprise Solutions LLC $45,750.00")

	out1 := p.ProcessFile(ctx, first)
	require.NoError(t, out1.Err)
	out2 := p.ProcessFile(ctx, second)
	require.NoError(t, out2.Err)

	assert.False(t, out1.Duplicate)
	assert.True(t, out2.Duplicate)
	assert.Equal(t, out1.LeadID, out2.LeadID)

	leads, err := st.Query(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func TestDuplicateMergeFillsMissingFields(t *testing.T) {
	st := openStore(t)
	dir := t.TempDir()

	sparse := johnsonFields
	sparse.ClaimAmount = ""
	sparse.Narrative = ""
	fields := stubFields{byMarker: map[string]llm.LeadFields{
		"sparse": sparse,
		"full":   johnsonFields,
	}}
	p := newPipeline(st, fields)
	ctx := context.Background()

	out1 := p.ProcessFile(ctx, writeDoc(t, dir, "lien_1.pdf", "sparse copy"))
	require.NoError(t, out1.Err)
	out2 := p.ProcessFile(ctx, writeDoc(t, dir, "lien_2.pdf", "full copy"))
	require.NoError(t, out2.Err)
	require.True(t, out2.Duplicate)

	got, err := st.GetByID(ctx, out1.LeadID)
	require.NoError(t, err)
	require.NotNil(t, got.ClaimAmount)
	assert.Equal(t, "45750.00", got.ClaimAmount.StringFixed(2))
	assert.NotEmpty(t, got.Narrative)
}

func TestComplaintFiling(t *testing.T) {
	st := openStore(t)
	dir := t.TempDir()
	fields := stubFields{byMarker: map[string]llm.LeadFields{"Metro Tech": metroFields}}
	p := newPipeline(st, fields)
	ctx := context.Background()

	path := writeDoc(t, dir, "court_complaint_metro.pdf", "SUPERIOR COURT complaint: Metro Tech Innovations LLC")
	out := p.ProcessFile(ctx, path)
	require.NoError(t, out.Err)

	got, err := st.GetByID(ctx, out.LeadID)
	require.NoError(t, err)
	assert.Equal(t, constants.FilingComplaint, got.FilingType)
	assert.Equal(t, "30-2024-CV-002456", got.CaseOrLienID)
	assert.Equal(t, "67500.00", got.ClaimAmount.StringFixed(2))
	assert.Contains(t, got.Narrative, "breach of contract")
	assert.Equal(t, constants.SourceCourtFiling, got.SourceType)
}

func TestAlreadyProcessedDocumentSkipped(t *testing.T) {
	st := openStore(t)
	dir := t.TempDir()
	fields := stubFields{byMarker: map[string]llm.LeadFields{"Johnson": johnsonFields}}
	p := newPipeline(st, fields)
	ctx := context.Background()

	path := writeDoc(t, dir, "lien_johnson.pdf", "TAX LIEN Johnson Enterprise Solutions LLC")
	out1 := p.ProcessFile(ctx, path)
	require.NoError(t, out1.Err)

	out2 := p.ProcessFile(ctx, path)
	require.NoError(t, out2.Err)
	assert.True(t, out2.Skipped)
	assert.Equal(t, out1.JobID, out2.JobID)

	// Rescan mode reprocesses and resolves to the same lead.
	p.RescanAll = true
	out3 := p.ProcessFile(ctx, path)
	require.NoError(t, out3.Err)
	assert.False(t, out3.Skipped)
	assert.True(t, out3.Duplicate)
	assert.Equal(t, out1.LeadID, out3.LeadID)
}

func TestReingestAfterDispatchKeepsLeadSent(t *testing.T) {
	st := openStore(t)
	dir := t.TempDir()
	fields := stubFields{byMarker: map[string]llm.LeadFields{"Johnson": johnsonFields}}
	p := newPipeline(st, fields)
	ctx := context.Background()

	out1 := p.ProcessFile(ctx, writeDoc(t, dir, "lien_johnson_a.pdf", "TAX LIEN Johnson Enterprise Solutions LLC"))
	require.NoError(t, out1.Err)

	claimed, err := st.ClaimForSend(ctx, out1.LeadID, constants.LeadStatusReady)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, st.CompleteSend(ctx, out1.LeadID))

	// A second document for the same filing arrives after the campaign ran.
	out2 := p.ProcessFile(ctx, writeDoc(t, dir, "lien_johnson_b.pdf", "NOTICE: Johnson Enterprise Solutions LLC tax lien"))
	require.NoError(t, out2.Err)
	require.True(t, out2.Duplicate)

	got, err := st.GetByID(ctx, out1.LeadID)
	require.NoError(t, err)
	assert.Equal(t, constants.LeadStatusSent, got.Status, "re-ingestion must not reopen a sent lead")
}

func TestReingestKeepsExhaustedLeadParked(t *testing.T) {
	st := openStore(t)
	dir := t.TempDir()
	fields := stubFields{byMarker: map[string]llm.LeadFields{"Johnson": johnsonFields}}
	p := newPipeline(st, fields)
	ctx := context.Background()

	out1 := p.ProcessFile(ctx, writeDoc(t, dir, "lien_johnson_a.pdf", "TAX LIEN Johnson Enterprise Solutions LLC"))
	require.NoError(t, out1.Err)

	from := constants.LeadStatusReady
	for i := 0; i < 3; i++ {
		claimed, err := st.ClaimForSend(ctx, out1.LeadID, from)
		require.NoError(t, err)
		require.True(t, claimed)
		require.NoError(t, st.FailSend(ctx, out1.LeadID, "sms gateway 503"))
		from = constants.LeadStatusSendFailed
	}

	out2 := p.ProcessFile(ctx, writeDoc(t, dir, "lien_johnson_b.pdf", "NOTICE: Johnson Enterprise Solutions LLC tax lien"))
	require.NoError(t, out2.Err)
	require.True(t, out2.Duplicate)

	got, err := st.GetByID(ctx, out1.LeadID)
	require.NoError(t, err)
	assert.Equal(t, constants.LeadStatusSendFailed, got.Status)
	assert.Equal(t, 3, got.SendAttempts, "attempts survive re-ingestion so the budget stays spent")
}

func TestDNCListedLeadNotFlagged(t *testing.T) {
	st := openStore(t)
	dir := t.TempDir()
	fields := stubFields{byMarker: map[string]llm.LeadFields{"Johnson": johnsonFields}}
	p := newPipeline(st, fields, "5552013344")
	ctx := context.Background()

	out := p.ProcessFile(ctx, writeDoc(t, dir, "lien_johnson.pdf", "LIEN Johnson Enterprise Solutions LLC"))
	require.NoError(t, out.Err)

	got, err := st.GetByID(ctx, out.LeadID)
	require.NoError(t, err)
	assert.True(t, got.DNC)
	assert.False(t, got.SendSMS)
	assert.False(t, got.SendEmail)
	assert.Equal(t, constants.LeadStatusReady, got.Status)

	err = st.SetFlags(ctx, got.ID, true, true)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestLowConfidenceExtractionRejected(t *testing.T) {
	st := openStore(t)
	dir := t.TempDir()

	shaky := johnsonFields
	shaky.Confidence = 0.30
	fields := stubFields{byMarker: map[string]llm.LeadFields{"Johnson": shaky}}
	p := newPipeline(st, fields)
	p.MinConfidence = 0.60
	ctx := context.Background()

	out := p.ProcessFile(ctx, writeDoc(t, dir, "lien_johnson.pdf", "blurry TAX LIEN Johnson Enterprise Solutions LLC"))
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "below threshold")

	leads, err := st.Query(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, leads)

	// An extraction that reports no confidence is not gated.
	silent := johnsonFields
	silent.Confidence = 0
	p2 := newPipeline(st, stubFields{byMarker: map[string]llm.LeadFields{"Johnson": silent}})
	p2.MinConfidence = 0.60
	out2 := p2.ProcessFile(ctx, writeDoc(t, dir, "lien_johnson_2.pdf", "TAX LIEN Johnson Enterprise Solutions LLC, second scan"))
	require.NoError(t, out2.Err)
}

func TestTextExtractionFailureRecordsJob(t *testing.T) {
	st := openStore(t)
	dir := t.TempDir()
	p := New(st, stubText{err: common.ErrUnreadableDocument},
		stubFields{}, nil, nil, testLogger())
	ctx := context.Background()

	path := writeDoc(t, dir, "lien_blank.pdf", "unreadable scan")
	out := p.ProcessFile(ctx, path)
	require.ErrorIs(t, out.Err, common.ErrUnreadableDocument)

	// A failed job is not terminal, so the document is retried next run.
	out2 := p.ProcessFile(ctx, path)
	assert.False(t, out2.Skipped)
	assert.Error(t, out2.Err)

	leads, err := st.Query(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestFieldExtractionFailureRecordsJob(t *testing.T) {
	st := openStore(t)
	dir := t.TempDir()
	p := New(st, stubText{}, stubFields{err: common.ErrExtractionParse}, nil, nil, testLogger())
	ctx := context.Background()

	out := p.ProcessFile(ctx, writeDoc(t, dir, "lien_garbled.pdf", "garbled"))
	require.ErrorIs(t, out.Err, common.ErrExtractionParse)

	leads, err := st.Query(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestUnsupportedExtensionRejected(t *testing.T) {
	st := openStore(t)
	dir := t.TempDir()
	p := New(st, stubText{}, stubFields{}, nil, nil, testLogger())

	out := p.ProcessFile(context.Background(), writeDoc(t, dir, "notes.txt", "not a filing"))
	assert.Error(t, out.Err)
}
