package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/leadsmith/leadgen/internal/ingest"
)

// Stats aggregates a directory run.
type Stats struct {
	Processed  uint32 // leads created
	Duplicates uint32 // resolved to an existing lead
	Skipped    uint32 // content hash already processed
	Failed     uint32
}

// ProcessDirectory scans root and runs every matching document through the
// pipeline with a bounded worker pool. Per-document failures are counted
// and logged, never fatal to the run.
func (p *Pipeline) ProcessDirectory(ctx context.Context, root string, workers int) ([]Outcome, Stats, error) {
	if workers <= 0 {
		workers = 4
	}

	docs, scan, err := ingest.ScanDirectory(root, true)
	if err != nil {
		return nil, Stats{}, err
	}
	p.Logger.Info("pipeline.scan.done",
		"root", root,
		"scanned", scan.Scanned,
		"matched", scan.Matched,
		"failed", scan.Failed,
	)

	start := time.Now()
	paths := make(chan string)
	results := make(chan Outcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				results <- p.ProcessFile(ctx, path)
			}
		}()
	}

	go func() {
		defer close(paths)
		for _, d := range docs {
			if d.Err != "" {
				results <- Outcome{Path: d.Path, Err: errors.New(d.Err)}
				continue
			}
			select {
			case <-ctx.Done():
				return
			case paths <- d.Path:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var outcomes []Outcome
	var stats Stats
	expected := len(docs)
	for i := 0; i < expected; i++ {
		out, ok := <-results
		if !ok {
			break
		}
		outcomes = append(outcomes, out)
		switch {
		case out.Err != nil:
			stats.Failed++
		case out.Skipped:
			stats.Skipped++
		case out.Duplicate:
			stats.Duplicates++
		default:
			stats.Processed++
		}
	}

	p.Logger.Info("pipeline.run.done",
		"root", root,
		"processed", stats.Processed,
		"duplicates", stats.Duplicates,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return outcomes, stats, ctx.Err()
}

// Watch processes documents as they land under the given roots, for
// deployments where filings arrive continuously.
func (p *Pipeline) Watch(ctx context.Context, roots []string, debounce time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = p.Logger
	}
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       roots,
		InitialScan: true,
		Debounce:    debounce,
	})
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path, ok := <-events:
			if !ok {
				return nil
			}
			out := p.ProcessFile(ctx, path)
			if out.Err != nil {
				logger.Error("pipeline.watch.document_failed", "path", path, "err", out.Err)
			}
		case werr, ok := <-errs:
			if ok && werr != nil {
				logger.Warn("pipeline.watch.error", "err", werr)
			}
		}
	}
}
