package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leadsmith/leadgen/constants"
	"github.com/leadsmith/leadgen/internal/async"
	"github.com/leadsmith/leadgen/internal/common"
	"github.com/leadsmith/leadgen/internal/ingest"
	"github.com/leadsmith/leadgen/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	Path    string `json:"path"`
	Workers int    `json:"workers,omitempty"`
	Async   bool   `json:"async,omitempty"`
}

type ingestResponse struct {
	Processed  uint32        `json:"processed"`
	Duplicates uint32        `json:"duplicates"`
	Skipped    uint32        `json:"skipped"`
	Failed     uint32        `json:"failed"`
	Documents  []documentOut `json:"documents,omitempty"`
}

type documentOut struct {
	Path      string `json:"path"`
	LeadID    string `json:"lead_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleIngest runs the pipeline over a directory (or single file) on the
// server's filesystem and reports per-document outcomes.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}
	workers := req.Workers
	if workers <= 0 {
		workers = s.workers
	}

	if req.Async {
		if s.queue == nil {
			writeError(w, http.StatusBadRequest, errors.New("async ingest is not enabled"))
			return
		}
		docs, scan, err := ingest.ScanDirectory(req.Path, true)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		queued := 0
		for _, d := range docs {
			if d.Err != "" {
				continue
			}
			if err := s.queue.Enqueue(r.Context(), async.Job{Path: d.Path, SubmittedAt: time.Now().UTC()}); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			queued++
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"queued":  queued,
			"scanned": scan.Scanned,
			"failed":  scan.Failed,
		})
		return
	}

	outcomes, stats, err := s.pipeline.ProcessDirectory(r.Context(), req.Path, workers)
	if err != nil && len(outcomes) == 0 {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := ingestResponse{
		Processed:  stats.Processed,
		Duplicates: stats.Duplicates,
		Skipped:    stats.Skipped,
		Failed:     stats.Failed,
	}
	for _, o := range outcomes {
		d := documentOut{Path: o.Path, Duplicate: o.Duplicate, Skipped: o.Skipped}
		if o.LeadID != uuid.Nil {
			d.LeadID = o.LeadID.String()
		}
		if o.Err != nil {
			d.Error = o.Err.Error()
		}
		resp.Documents = append(resp.Documents, d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDispatch runs one dispatch cycle and returns its summary.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	sum, err := s.dispatcher.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{
		"examined":   sum.Examined,
		"claimed":    sum.Claimed,
		"sms_sent":   sum.SMSSent,
		"email_sent": sum.EmailSent,
		"completed":  sum.Completed,
		"failed":     sum.Failed,
		"no_contact": sum.NoContact,
		"exhausted":  sum.Exhausted,
	})
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	leads, err := s.store.Query(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("id must be a UUID"))
		return
	}
	l, err := s.store.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, l)
	}
}

type flagsRequest struct {
	SendSMS   *bool `json:"send_sms"`
	SendEmail *bool `json:"send_email"`
}

// handlePatchFlags sets the operator send flags on a lead. Rejected on
// DNC leads; flags on those are always false.
func (s *Server) handlePatchFlags(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("id must be a UUID"))
		return
	}
	var req flagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.SendSMS == nil && req.SendEmail == nil {
		writeError(w, http.StatusBadRequest, errors.New("at least one of send_sms, send_email is required"))
		return
	}

	cur, err := s.store.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	sms := cur.SendSMS
	email := cur.SendEmail
	if req.SendSMS != nil {
		sms = *req.SendSMS
	}
	if req.SendEmail != nil {
		email = *req.SendEmail
	}

	err = s.store.SetFlags(r.Context(), id, sms, email)
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		writeError(w, http.StatusConflict, errors.New("lead is on the do-not-contact list"))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	l, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	data, err := s.exporter.ExportLeadsXLSX(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="leads.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func filterFromQuery(r *http.Request) (store.Filter, error) {
	var f store.Filter
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		st := constants.LeadStatus(strings.ToUpper(v))
		switch st {
		case constants.LeadStatusNew, constants.LeadStatusEnriched, constants.LeadStatusReady,
			constants.LeadStatusSending, constants.LeadStatusSent, constants.LeadStatusSendFailed:
			f.Status = &st
		default:
			return f, fmt.Errorf("unknown status %q", v)
		}
	}
	if v := q.Get("dnc"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("dnc must be a bool: %w", err)
		}
		f.DNC = &b
	}
	if v := q.Get("flagged"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("flagged must be a bool: %w", err)
		}
		f.SendFlagged = b
	}
	if v := q.Get("case_id"); v != "" {
		f.CaseOrLienID = v
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("limit must be a positive integer: %w", err)
		}
		f.Limit = n
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
