// Package app wires configured components so the binaries share one
// construction path.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/leadsmith/leadgen/internal/common"
	"github.com/leadsmith/leadgen/internal/dispatch"
	"github.com/leadsmith/leadgen/internal/dnc"
	"github.com/leadsmith/leadgen/internal/enrich"
	"github.com/leadsmith/leadgen/internal/export"
	"github.com/leadsmith/leadgen/internal/llm/openai"
	"github.com/leadsmith/leadgen/internal/ocr"
	"github.com/leadsmith/leadgen/internal/pipeline"
	"github.com/leadsmith/leadgen/internal/store"
	"github.com/leadsmith/leadgen/internal/transport"
)

// App holds the wired components for one process.
type App struct {
	Config     *common.Config
	Store      store.LeadStore
	Pipeline   *pipeline.Pipeline
	Dispatcher *dispatch.Dispatcher
	Exporter   *export.Service
	Logger     *slog.Logger
}

// Build opens the store and constructs the pipeline and dispatcher from
// config. Callers must Close when done.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	openCtx := ctx
	if cfg.Store.DialTimeout > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, cfg.Store.DialTimeout)
		defer cancel()
	}
	st, err := store.Open(openCtx, cfg.Store.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("open lead store: %w", err)
	}

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext:     cfg.OCR.Pdftotext,
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
	}, logger)

	parser := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	var provider enrich.Provider
	if cfg.Enrich.Mode == "live" {
		provider = enrich.NewLive(cfg.Enrich.BaseURL, cfg.Enrich.APIKey, cfg.Enrich.Timeout, logger)
	} else {
		provider = enrich.NewMock(cfg.Enrich.MockSeed, cfg.Enrich.MockRate)
	}
	enricher := enrich.New(provider, cfg.Enrich.Timeout, logger)

	var registry dnc.Registry
	if cfg.DNC.Mode == "live" {
		registry = dnc.NewLiveRegistry(cfg.DNC.BaseURL, cfg.DNC.APIKey, cfg.DNC.Timeout)
	} else {
		registry = dnc.NewMock(cfg.DNC.MockRate)
	}
	checker := dnc.NewChecker(registry, cfg.DNC.Mode != "live", logger)

	var tr transport.Transport
	if cfg.Transport.Mode == "live" {
		tr = transport.NewLive(cfg.Transport.SMSWebhook, cfg.Transport.EmailWebhook, cfg.Transport.APIKey, cfg.Transport.Timeout)
	} else {
		tr = transport.NewMock(os.Stdout, 0, logger)
	}

	p := pipeline.New(st, extractor, parser, enricher, checker, logger)
	p.MinConfidence = cfg.Pipeline.MinConfidence

	d := dispatch.New(st, tr, logger)
	d.MaxAttempts = cfg.Dispatch.MaxSendAttempts

	return &App{
		Config:     cfg,
		Store:      st,
		Pipeline:   p,
		Dispatcher: d,
		Exporter:   export.NewService(st, logger),
		Logger:     logger,
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
