package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/leadsmith/leadgen/constants"
	"github.com/leadsmith/leadgen/internal/common"
	"github.com/leadsmith/leadgen/internal/extract"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// Extract picks a strategy based on file extension: the digital text path
// first for PDFs, falling back to page rasterization + OCR when the
// extracted text is too thin or garbled; images go straight to OCR. When
// no path yields usable text the document is structurally defective and
// the error wraps common.ErrUnreadableDocument (reported, not retried).
func (e *Extractor) Extract(ctx context.Context, path string) (extract.TextExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("ocr.extract.start", "path", path, "ext", ext)

	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err := e.extractPDF(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	case constants.IMAGE:
		res, err := e.extractImage(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	default:
		e.logger.Error("ocr.unsupported_extension", "extension", ext)
		return extract.TextExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}
}

func (e *Extractor) unreadable(res extract.TextExtractionResult, path string) (extract.TextExtractionResult, error) {
	e.logger.Error("ocr.unreadable_document", "path", path, "method", res.Method)
	return res, fmt.Errorf("%s: %w", path, common.ErrUnreadableDocument)
}
