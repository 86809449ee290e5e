package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/leadsmith/leadgen/internal/store"
)

// Service produces XLSX bytes from the lead store for operator review.
type Service struct {
	store  store.LeadStore
	logger *slog.Logger
}

func NewService(st store.LeadStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger}
}

// ExportLeadsXLSX returns an XLSX workbook (as bytes) of the leads
// matching the filter, one row per lead in review-sheet column order.
func (s *Service) ExportLeadsXLSX(ctx context.Context, f store.Filter) ([]byte, error) {
	start := time.Now()

	leads, err := s.store.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}

	wb := excelize.NewFile()
	const sheet = "Leads"
	if index, _ := wb.GetSheetIndex(sheet); index == -1 {
		if _, err := wb.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := wb.GetSheetIndex(sheet)
	wb.SetActiveSheet(activeIndex)
	_ = wb.DeleteSheet("Sheet1")

	headers := []string{
		"Business Name",
		"Filing Type",
		"Case/Lien ID",
		"Filing Date",
		"Claim Amount",
		"Owner",
		"Email",
		"Mobile",
		"DNC",
		"Send SMS",
		"Send Email",
		"Status",
		"Narrative",
		"Source Document",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = wb.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, l := range leads {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = wb.SetCellValue(sheet, cell, v)
		}

		write(1, l.BusinessName)
		write(2, string(l.FilingType))
		write(3, l.CaseOrLienID)
		if l.FilingDate != nil {
			write(4, l.FilingDate.Format("2006-01-02"))
		} else {
			write(4, "")
		}
		if l.ClaimAmount != nil {
			write(5, l.ClaimAmount.StringFixed(2))
		} else {
			write(5, "")
		}
		write(6, l.OwnerName)
		write(7, l.Email)
		write(8, l.Mobile)
		write(9, l.DNC)
		write(10, l.SendSMS)
		write(11, l.SendEmail)
		write(12, string(l.Status))
		write(13, truncate(l.Narrative, 140))
		write(14, l.SourceDocument)
		row++
	}

	// Widen a few columns
	_ = wb.SetColWidth(sheet, "A", "A", 32) // business
	_ = wb.SetColWidth(sheet, "C", "C", 20) // case id
	_ = wb.SetColWidth(sheet, "D", "E", 14) // date, amount
	_ = wb.SetColWidth(sheet, "F", "H", 24) // contact fields
	_ = wb.SetColWidth(sheet, "M", "M", 48) // narrative
	_ = wb.SetColWidth(sheet, "N", "N", 60) // path

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(leads),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
