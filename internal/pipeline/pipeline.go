package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/leadsmith/leadgen/constants"
	"github.com/leadsmith/leadgen/internal/common"
	"github.com/leadsmith/leadgen/internal/dnc"
	"github.com/leadsmith/leadgen/internal/enrich"
	"github.com/leadsmith/leadgen/internal/extract"
	"github.com/leadsmith/leadgen/internal/ingest"
	"github.com/leadsmith/leadgen/internal/lead"
	"github.com/leadsmith/leadgen/internal/llm"
	"github.com/leadsmith/leadgen/internal/store"
)

// Stage names recorded on ingest jobs so failures point at the step that
// produced them.
const (
	StageHash     = "hash"
	StageOCR      = "ocr"
	StageParse    = "parse"
	StagePersist  = "persist"
	StageEnrich   = "enrich"
	StageComply   = "compliance"
	StageComplete = "complete"
)

// Outcome is the per-document result of one pipeline run.
type Outcome struct {
	Path      string
	JobID     uuid.UUID
	LeadID    uuid.UUID
	Duplicate bool
	Skipped   bool
	Err       error
}

// Pipeline coordinates text extraction, field parsing, dedup, enrichment
// and compliance for filing documents.
type Pipeline struct {
	Store     store.LeadStore
	Text      extract.TextExtractor
	Fields    llm.FieldExtractor
	Enricher  *enrich.Enricher
	Checker   *dnc.Checker
	Logger    *slog.Logger
	RescanAll bool // when true, reprocess documents whose hash was already seen

	// MinConfidence rejects extractions whose self-reported confidence is
	// below the threshold. Zero disables the gate; an extraction that
	// reports no confidence is not gated.
	MinConfidence float32
}

func New(st store.LeadStore, text extract.TextExtractor, fields llm.FieldExtractor, enricher *enrich.Enricher, checker *dnc.Checker, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Store:    st,
		Text:     text,
		Fields:   fields,
		Enricher: enricher,
		Checker:  checker,
		Logger:   logger,
	}
}

// ProcessFile runs one document end to end: hash, extract text, parse
// fields, persist or merge the lead, enrich contacts, record the DNC
// verdict. Each run is recorded as an ingest job, including failures.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) Outcome {
	start := time.Now()
	out := Outcome{Path: path}

	doc, err := ingest.Describe(path)
	if err != nil {
		p.Logger.Error("pipeline.describe.failed", "path", path, "err", err)
		out.Err = err
		return out
	}
	out.Path = doc.Path

	if !p.RescanAll {
		if prior, err := p.Store.LookupJobByHash(ctx, doc.HashHex); err == nil && prior != nil && prior.Status.Terminal() {
			p.Logger.Info("pipeline.skip.already_processed",
				"path", doc.Path,
				"hash", doc.HashHex,
				"prior_job_id", prior.ID,
				"prior_status", prior.Status,
			)
			out.JobID = prior.ID
			out.Skipped = true
			return out
		}
	}

	job, err := p.Store.StartJob(ctx, doc.Path, doc.SourceType, doc.HashHex)
	if err != nil {
		out.Err = fmt.Errorf("start job: %w", err)
		return out
	}
	out.JobID = job.ID

	leadID, duplicate, err := p.run(ctx, job.ID, doc)
	out.LeadID = leadID
	out.Duplicate = duplicate
	out.Err = err
	if err == nil {
		p.Logger.Info("pipeline.document.ok",
			"path", doc.Path,
			"job_id", job.ID,
			"lead_id", leadID,
			"duplicate", duplicate,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	return out
}

func (p *Pipeline) run(ctx context.Context, jobID uuid.UUID, doc ingest.Document) (uuid.UUID, bool, error) {
	fail := func(stage string, err error) (uuid.UUID, bool, error) {
		p.Logger.Error("pipeline.stage.failed", "job_id", jobID, "stage", stage, "err", err)
		_ = p.Store.FinishJob(ctx, jobID, store.JobOutcome{
			Status:       constants.JobStatusFailed,
			Stage:        stage,
			ErrorMessage: err.Error(),
		})
		return uuid.Nil, false, err
	}

	// Stage 1: document -> text.
	res, err := p.Text.Extract(ctx, doc.Path)
	if err != nil {
		return fail(StageOCR, err)
	}
	p.Logger.Info("pipeline.ocr.ok",
		"job_id", jobID,
		"method", res.Method,
		"pages", res.Pages,
		"confidence", res.Confidence,
	)
	if err := p.Store.AdvanceJob(ctx, jobID, constants.JobStatusOCROK, StageOCR); err != nil {
		return fail(StageOCR, err)
	}

	// Stage 2: text -> structured fields.
	fields, _, err := p.Fields.ExtractFields(ctx, llm.ExtractRequest{
		Text:          res.Text,
		SourceType:    string(doc.SourceType),
		FilenameHint:  filepath.Base(doc.Path),
		OCRConfidence: res.Confidence,
	})
	if err != nil {
		return fail(StageParse, err)
	}
	if p.MinConfidence > 0 && fields.Confidence > 0 && fields.Confidence < p.MinConfidence {
		return fail(StageParse, fmt.Errorf("extraction confidence %.2f below threshold %.2f", fields.Confidence, p.MinConfidence))
	}

	cand, err := lead.CandidateFromFields(fields, doc.Path, doc.SourceType)
	if err != nil {
		return fail(StageParse, err)
	}
	if err := p.Store.AdvanceJob(ctx, jobID, constants.JobStatusParsed, StageParse); err != nil {
		return fail(StageParse, err)
	}

	// Stage 3: persist, deduplicating on fingerprint.
	l := lead.FromCandidate(cand)
	duplicate := false
	switch err := p.Store.CreateLead(ctx, l); {
	case err == nil:
	case errors.Is(err, common.ErrDuplicateKey):
		duplicate = true
		existing, gerr := p.Store.GetByFingerprint(ctx, l.Fingerprint)
		if gerr != nil {
			return fail(StagePersist, gerr)
		}
		if merr := p.Store.MergeCandidate(ctx, existing.ID, cand); merr != nil {
			return fail(StagePersist, merr)
		}
		l = existing
		p.Logger.Info("pipeline.lead.merged",
			"job_id", jobID,
			"lead_id", l.ID,
			"fingerprint", l.Fingerprint,
		)
	default:
		return fail(StagePersist, err)
	}

	// Stage 4: enrichment is best effort and never blocks the document.
	if p.Enricher != nil {
		info := p.Enricher.Enrich(ctx, enrich.LookupRequest{
			BusinessName: cand.BusinessName,
			CaseOrLienID: cand.CaseOrLienID,
		})
		if info != nil && !info.Empty() {
			if err := p.Store.SetContact(ctx, l.ID, *info); err != nil {
				return fail(StageEnrich, err)
			}
			l.OwnerName = firstNonEmpty(l.OwnerName, info.OwnerName)
			l.Email = firstNonEmpty(l.Email, info.Email)
			l.Mobile = firstNonEmpty(l.Mobile, info.Mobile)
		}
	}

	// Stage 5: compliance verdict makes the lead dispatchable.
	if p.Checker != nil {
		listed := p.Checker.Check(ctx, l.Mobile)
		if err := p.Store.SetCompliance(ctx, l.ID, listed); err != nil {
			return fail(StageComply, err)
		}
	}

	status := constants.JobStatusDone
	if duplicate {
		status = constants.JobStatusDuplicate
	}
	leadID := l.ID
	if err := p.Store.FinishJob(ctx, jobID, store.JobOutcome{
		Status: status,
		Stage:  StageComplete,
		LeadID: &leadID,
	}); err != nil {
		return leadID, duplicate, err
	}
	return leadID, duplicate, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
