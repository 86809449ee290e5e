package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/leadsmith/leadgen/constants"
	"github.com/leadsmith/leadgen/internal/common"
	"github.com/leadsmith/leadgen/internal/lead"
)

// SQLStore implements LeadStore over database/sql. The DSN selects the
// backend: postgres:// URLs use pgx, anything else is opened as a SQLite
// database (":memory:" included).
type SQLStore struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	logger *slog.Logger
}

// Open connects, pings, and ensures the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		driver      string
		placeholder sq.PlaceholderFormat
	)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver, placeholder = "pgx", sq.Dollar
	} else {
		driver, placeholder = "sqlite", sq.Question
	}

	logger.Info("store.open", "driver", driver)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// modernc sqlite: a single connection avoids both the separate
		// ':memory:' databases per conn and SQLITE_BUSY under writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLStore{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		logger: logger,
	}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

var leadColumns = []string{
	"id", "fingerprint", "business_name", "filing_type", "case_or_lien_id",
	"filing_date", "claim_amount", "narrative", "owner_name", "email",
	"mobile", "dnc", "send_sms", "send_email", "status", "send_attempts",
	"send_error", "source_document", "source_type", "created_at", "updated_at",
}

func (s *SQLStore) CreateLead(ctx context.Context, l *lead.Lead) error {
	query, args, err := s.sb.Insert("leads").
		Columns(leadColumns...).
		Values(
			l.ID.String(), l.Fingerprint, l.BusinessName, string(l.FilingType),
			nullable(l.CaseOrLienID), nullableDate(l.FilingDate), nullableDec(l.ClaimAmount),
			nullable(l.Narrative), nullable(l.OwnerName), nullable(l.Email),
			nullable(l.Mobile), l.DNC, l.SendSMS, l.SendEmail, string(l.Status),
			l.SendAttempts, nullable(l.SendError), nullable(l.SourceDocument),
			nullable(string(l.SourceType)), fmtTime(l.CreatedAt), fmtTime(l.UpdatedAt),
		).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		// Driver-agnostic duplicate detection: the unique index rejected the
		// insert iff a row with this fingerprint exists.
		if existing, lookupErr := s.GetByFingerprint(ctx, l.Fingerprint); lookupErr == nil && existing != nil {
			return fmt.Errorf("fingerprint %s -> lead %s: %w", l.Fingerprint, existing.ID, common.ErrDuplicateKey)
		}
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (s *SQLStore) GetByID(ctx context.Context, id uuid.UUID) (*lead.Lead, error) {
	return s.getOne(ctx, sq.Eq{"id": id.String()})
}

func (s *SQLStore) GetByFingerprint(ctx context.Context, fingerprint string) (*lead.Lead, error) {
	return s.getOne(ctx, sq.Eq{"fingerprint": fingerprint})
}

func (s *SQLStore) getOne(ctx context.Context, pred any) (*lead.Lead, error) {
	query, args, err := s.sb.Select(leadColumns...).From("leads").Where(pred).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	row := s.db.QueryRowContext(ctx, query, args...)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return l, err
}

func (s *SQLStore) Query(ctx context.Context, f Filter) ([]*lead.Lead, error) {
	b := s.sb.Select(leadColumns...).From("leads").OrderBy("created_at")
	if f.Status != nil {
		b = b.Where(sq.Eq{"status": string(*f.Status)})
	}
	if f.DNC != nil {
		b = b.Where(sq.Eq{"dnc": *f.DNC})
	}
	if f.SendFlagged {
		b = b.Where(sq.Or{sq.Eq{"send_sms": true}, sq.Eq{"send_email": true}})
	}
	if f.CaseOrLienID != "" {
		b = b.Where(sq.Eq{"case_or_lien_id": f.CaseOrLienID})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var out []*lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLStore) MergeCandidate(ctx context.Context, id uuid.UUID, c lead.Candidate) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	// Last-non-null-wins; a populated field is never overwritten with null.
	sets := map[string]any{}
	if existing.CaseOrLienID == "" && c.CaseOrLienID != "" {
		sets["case_or_lien_id"] = c.CaseOrLienID
	}
	if existing.FilingDate == nil && c.FilingDate != nil {
		sets["filing_date"] = c.FilingDate.Format("2006-01-02")
	}
	if existing.ClaimAmount == nil && c.ClaimAmount != nil {
		sets["claim_amount"] = c.ClaimAmount.StringFixed(2)
	}
	if existing.Narrative == "" && c.Narrative != "" {
		sets["narrative"] = c.Narrative
	}
	if existing.FilingType == constants.FilingOther && c.FilingType != constants.FilingOther {
		sets["filing_type"] = string(c.FilingType)
	}
	if len(sets) == 0 {
		return nil
	}
	sets["updated_at"] = fmtTime(time.Now().UTC())

	query, args, err := s.sb.Update("leads").SetMap(sets).Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build merge: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("merge lead: %w", err)
	}
	return nil
}

func (s *SQLStore) SetContact(ctx context.Context, id uuid.UUID, info lead.ContactInfo) error {
	// Fill only fields that are still empty so re-enrichment is idempotent.
	query, args, err := s.sb.Update("leads").
		Set("owner_name", sq.Expr("CASE WHEN owner_name IS NULL OR owner_name = '' THEN ? ELSE owner_name END", info.OwnerName)).
		Set("email", sq.Expr("CASE WHEN email IS NULL OR email = '' THEN ? ELSE email END", info.Email)).
		Set("mobile", sq.Expr("CASE WHEN mobile IS NULL OR mobile = '' THEN ? ELSE mobile END", info.Mobile)).
		Set("status", sq.Expr("CASE WHEN status = ? THEN ? ELSE status END",
			string(constants.LeadStatusNew), string(constants.LeadStatusEnriched))).
		Set("updated_at", fmtTime(time.Now().UTC())).
		Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build contact update: %w", err)
	}
	return s.execOne(ctx, query, args)
}

func (s *SQLStore) SetCompliance(ctx context.Context, id uuid.UUID, dnc bool) error {
	// Only pre-dispatch leads advance to READY. A duplicate ingest re-runs
	// the compliance stage on the merged lead, and that must not revive a
	// lead that is mid-send, already sent, or out of retry budget.
	b := s.sb.Update("leads").
		Set("dnc", dnc).
		Set("status", sq.Expr("CASE WHEN status IN (?, ?) THEN ? ELSE status END",
			string(constants.LeadStatusNew), string(constants.LeadStatusEnriched), string(constants.LeadStatusReady))).
		Set("updated_at", fmtTime(time.Now().UTC())).
		Where(sq.Eq{"id": id.String()})
	if dnc {
		b = b.Set("send_sms", false).Set("send_email", false)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build compliance update: %w", err)
	}
	return s.execOne(ctx, query, args)
}

func (s *SQLStore) SetFlags(ctx context.Context, id uuid.UUID, sendSMS, sendEmail bool) error {
	query, args, err := s.sb.Update("leads").
		Set("send_sms", sendSMS).
		Set("send_email", sendEmail).
		Set("updated_at", fmtTime(time.Now().UTC())).
		Where(sq.Eq{"id": id.String(), "dnc": false}).ToSql()
	if err != nil {
		return fmt.Errorf("build flags update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set flags: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("lead %s is on the do-not-call list: %w", id, common.ErrInvalidInput)
	}
	return nil
}

func (s *SQLStore) ClaimForSend(ctx context.Context, id uuid.UUID, from constants.LeadStatus) (bool, error) {
	query, args, err := s.sb.Update("leads").
		Set("status", string(constants.LeadStatusSending)).
		Set("updated_at", fmtTime(time.Now().UTC())).
		Where(sq.Eq{"id": id.String(), "status": string(from), "dnc": false}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build claim: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("claim for send: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLStore) ConsumeChannel(ctx context.Context, id uuid.UUID, ch constants.Channel) error {
	col := "send_sms"
	if ch == constants.ChannelEmail {
		col = "send_email"
	}
	query, args, err := s.sb.Update("leads").
		Set(col, false).
		Set("updated_at", fmtTime(time.Now().UTC())).
		Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build consume: %w", err)
	}
	return s.execOne(ctx, query, args)
}

func (s *SQLStore) CompleteSend(ctx context.Context, id uuid.UUID) error {
	query, args, err := s.sb.Update("leads").
		Set("status", string(constants.LeadStatusSent)).
		Set("send_error", "").
		Set("updated_at", fmtTime(time.Now().UTC())).
		Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build complete: %w", err)
	}
	return s.execOne(ctx, query, args)
}

func (s *SQLStore) FailSend(ctx context.Context, id uuid.UUID, reason string) error {
	query, args, err := s.sb.Update("leads").
		Set("status", string(constants.LeadStatusSendFailed)).
		Set("send_error", reason).
		Set("send_attempts", sq.Expr("send_attempts + 1")).
		Set("updated_at", fmtTime(time.Now().UTC())).
		Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build fail: %w", err)
	}
	return s.execOne(ctx, query, args)
}

func (s *SQLStore) execOne(ctx context.Context, query string, args []any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// --- ingest jobs ---

func (s *SQLStore) LookupJobByHash(ctx context.Context, contentHash string) (*IngestJob, error) {
	query, args, err := s.sb.Select(
		"id", "source_document", "source_type", "content_hash", "status",
		"stage", "error_message", "lead_id", "started_at", "finished_at",
	).From("ingest_jobs").
		Where(sq.Eq{"content_hash": contentHash}).
		Where(sq.Eq{"status": []string{string(constants.JobStatusDone), string(constants.JobStatusDuplicate)}}).
		OrderBy("started_at DESC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job lookup: %w", err)
	}
	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return job, err
}

func (s *SQLStore) StartJob(ctx context.Context, sourceDocument string, sourceType constants.SourceType, contentHash string) (*IngestJob, error) {
	job := &IngestJob{
		ID:             uuid.New(),
		SourceDocument: sourceDocument,
		SourceType:     sourceType,
		ContentHash:    contentHash,
		Status:         constants.JobStatusRunning,
		StartedAt:      time.Now().UTC(),
	}
	query, args, err := s.sb.Insert("ingest_jobs").
		Columns("id", "source_document", "source_type", "content_hash", "status", "started_at").
		Values(job.ID.String(), job.SourceDocument, string(job.SourceType), job.ContentHash,
			string(job.Status), fmtTime(job.StartedAt)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

func (s *SQLStore) AdvanceJob(ctx context.Context, id uuid.UUID, status constants.JobStatus, stage string) error {
	query, args, err := s.sb.Update("ingest_jobs").
		Set("status", string(status)).
		Set("stage", stage).
		Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build job advance: %w", err)
	}
	return s.execOne(ctx, query, args)
}

func (s *SQLStore) FinishJob(ctx context.Context, id uuid.UUID, outcome JobOutcome) error {
	b := s.sb.Update("ingest_jobs").
		Set("status", string(outcome.Status)).
		Set("stage", outcome.Stage).
		Set("error_message", outcome.ErrorMessage).
		Set("finished_at", fmtTime(time.Now().UTC())).
		Where(sq.Eq{"id": id.String()})
	if outcome.LeadID != nil {
		b = b.Set("lead_id", outcome.LeadID.String())
	}
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build job update: %w", err)
	}
	return s.execOne(ctx, query, args)
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*lead.Lead, error) {
	var (
		l                                  lead.Lead
		idStr, filingType, status          string
		caseID, filingDate, amount         sql.NullString
		narrative, owner, email, mobile    sql.NullString
		sendErr, sourceDoc, sourceType     sql.NullString
		createdAt, updatedAt               string
	)
	err := row.Scan(
		&idStr, &l.Fingerprint, &l.BusinessName, &filingType, &caseID,
		&filingDate, &amount, &narrative, &owner, &email, &mobile,
		&l.DNC, &l.SendSMS, &l.SendEmail, &status, &l.SendAttempts,
		&sendErr, &sourceDoc, &sourceType, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse lead id: %w", err)
	}
	l.FilingType = constants.FilingType(filingType)
	l.Status = constants.LeadStatus(status)
	l.CaseOrLienID = caseID.String
	l.Narrative = narrative.String
	l.OwnerName = owner.String
	l.Email = email.String
	l.Mobile = mobile.String
	l.SendError = sendErr.String
	l.SourceDocument = sourceDoc.String
	l.SourceType = constants.SourceType(sourceType.String)

	if filingDate.Valid && filingDate.String != "" {
		t, err := time.Parse("2006-01-02", filingDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse filing date: %w", err)
		}
		l.FilingDate = &t
	}
	if amount.Valid && amount.String != "" {
		d, err := decimal.NewFromString(amount.String)
		if err != nil {
			return nil, fmt.Errorf("parse claim amount: %w", err)
		}
		l.ClaimAmount = &d
	}
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if l.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func scanJob(row rowScanner) (*IngestJob, error) {
	var (
		j                          IngestJob
		idStr, status              string
		sourceType, stage, errMsg  sql.NullString
		leadID, finishedAt         sql.NullString
		startedAt                  string
	)
	err := row.Scan(&idStr, &j.SourceDocument, &sourceType, &j.ContentHash,
		&status, &stage, &errMsg, &leadID, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if j.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}
	j.SourceType = constants.SourceType(sourceType.String)
	j.Status = constants.JobStatus(status)
	j.Stage = stage.String
	j.ErrorMessage = errMsg.String
	if leadID.Valid && leadID.String != "" {
		id, err := uuid.Parse(leadID.String)
		if err != nil {
			return nil, fmt.Errorf("parse job lead id: %w", err)
		}
		j.LeadID = &id
	}
	if j.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid && finishedAt.String != "" {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		j.FinishedAt = &t
	}
	return &j, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func nullableDec(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.StringFixed(2)
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
