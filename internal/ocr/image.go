package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/leadsmith/leadgen/constants"
	"github.com/leadsmith/leadgen/internal/extract"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (extract.TextExtractionResult, error) {
	txt, warn, err := e.tesseractOCR(ctx, path)
	res := extract.TextExtractionResult{
		Pages:      1,
		SourceType: constants.IMAGE,
		Method:     "image-ocr",
		Language:   e.cfg.TesseractLang,
		Warnings:   warn,
	}
	if err != nil {
		return e.unreadable(res, path)
	}
	txt = Normalize(txt)
	if strings.TrimSpace(txt) == "" {
		return e.unreadable(res, path)
	}

	// compute confidence: TSV mean word confidence blended with heuristics
	var ocrConf float32
	if c, w, err2 := e.tesseractTSVConfidence(ctx, path); err2 == nil {
		ocrConf = c
		res.Warnings = append(res.Warnings, w...)
	} else {
		res.Warnings = append(res.Warnings, err2.Error())
	}
	res.Text = txt
	res.Confidence = blendConfidence(ocrConf, heuristicConfidence(txt))
	return res, nil
}

// blendConfidence combines the recognizer-reported mean word confidence
// with the text heuristics, weighting the recognizer higher when it
// reported one.
func blendConfidence(ocrConf, heurConf float32) float32 {
	conf := heurConf
	if ocrConf > 0 {
		conf = 0.7*ocrConf + 0.3*heurConf
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}

	// minor cleanup of obvious line noise
	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return txt, nil, nil
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, path string) (float32, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	// TSV output
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return 0, []string{string(errb)}, fmt.Errorf("tesseract TSV: %w", err)
	}
	lines := strings.Split(string(out), "\n")
	if len(lines) == 0 {
		return 0, nil, nil
	}

	// locate the conf column from the header row
	confIdx := -1
	for i, h := range strings.Split(lines[0], "\t") {
		if strings.TrimSpace(h) == "conf" {
			confIdx = i
			break
		}
	}
	if confIdx < 0 {
		return 0, nil, fmt.Errorf("tesseract TSV: no conf column")
	}

	var sum, n float64
	for _, ln := range lines[1:] {
		cols := strings.Split(ln, "\t")
		if len(cols) <= confIdx {
			continue
		} // short row
		confStr := cols[confIdx]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil, nil
	}
	mean := sum / n // 0..100
	return float32(mean / 100.0), nil, nil
}
