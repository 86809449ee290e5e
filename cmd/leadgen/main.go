// Command leadgen processes a directory of scanned filing documents into
// deduplicated, compliance-checked leads, optionally exporting the result
// as an XLSX review sheet.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/leadsmith/leadgen/internal/app"
	"github.com/leadsmith/leadgen/internal/common"
	"github.com/leadsmith/leadgen/internal/store"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory to process filing documents from (required)")
		out     = flag.String("out", "", "output XLSX file path (optional)")
		workers = flag.Int("workers", 0, "concurrent documents (default from config)")
		rescan  = flag.Bool("rescan", false, "reprocess documents whose content was already seen")
		watch   = flag.Bool("watch", false, "keep running and process new documents as they arrive")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()
	a.Pipeline.RescanAll = *rescan

	if *watch {
		logger.Info("watching for documents", "dir", *dir)
		if err := a.Pipeline.Watch(ctx, []string{*dir}, 500*time.Millisecond, logger); err != nil && ctx.Err() == nil {
			logger.Error("watch failed", "error", err)
			os.Exit(1)
		}
		return
	}

	_, stats, err := a.Pipeline.ProcessDirectory(ctx, *dir, cfg.Pipeline.Workers)
	if err != nil {
		logger.Error("processing aborted", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Processed: %d new, %d duplicates, %d skipped, %d failed\n",
		stats.Processed, stats.Duplicates, stats.Skipped, stats.Failed)

	if *out == "" {
		return
	}
	outPath := *out
	if filepath.Ext(outPath) == "" {
		outPath = filepath.Join(outPath, "leads.xlsx")
	}
	data, err := a.Exporter.ExportLeadsXLSX(ctx, store.Filter{})
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		logger.Error("write export file failed", "path", outPath, "error", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", outPath)
}
