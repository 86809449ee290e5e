package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leadsmith/leadgen/constants"
	"github.com/leadsmith/leadgen/internal/extract"
)

func (e *Extractor) extractPDF(ctx context.Context, path string) (extract.TextExtractionResult, error) {
	text, pages, warns, err := e.pdfToText(ctx, path)
	if err == nil {
		text = Normalize(text)
		if !needsOCR(text, pages) {
			return extract.TextExtractionResult{
				Text:       text,
				Pages:      pages,
				SourceType: constants.PDF,
				Method:     "pdf-text",
				Language:   e.cfg.TesseractLang,
				Warnings:   warns,
			}, nil
		}
		e.logger.Info("ocr.pdf_text_insufficient", "path", path, "pages", pages, "chars", len(text))
		warns = append(warns, "digital text below quality threshold; falling back to OCR")
	} else {
		warns = append(warns, err.Error())
	}

	ocrText, ocrPages, ocrConf, ocrWarns, ocrErr := e.pdfToOCR(ctx, path)
	warns = append(warns, ocrWarns...)
	res := extract.TextExtractionResult{
		Pages:      ocrPages,
		SourceType: constants.PDF,
		Method:     "pdf-ocr",
		Language:   e.cfg.TesseractLang,
		Warnings:   warns,
	}
	if ocrErr != nil {
		return e.unreadable(res, path)
	}
	ocrText = Normalize(ocrText)
	if strings.TrimSpace(ocrText) == "" {
		return e.unreadable(res, path)
	}
	res.Text = ocrText
	res.Confidence = blendConfidence(ocrConf, heuristicConfidence(ocrText))
	return res, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(text, "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (text string, pages int, conf float32, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "lg-pp-*")
	if err != nil {
		return "", 0, 0, nil, err
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("ocr.tmpdir_cleanup_failed", "dir", dir, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, 0, []string{string(errb)}, err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	var confSum float64
	var confPages int
	for _, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
		warns = append(warns, w...)

		if c, cw, cerr := e.tesseractTSVConfidence(ctx, img); cerr == nil {
			if c > 0 {
				confSum += float64(c)
				confPages++
			}
			warns = append(warns, cw...)
		} else {
			warns = append(warns, cerr.Error())
		}
	}
	pages = len(matches)
	if confPages > 0 {
		conf = float32(confSum / float64(confPages))
	}
	return b.String(), pages, conf, warns, nil
}
