// Command campaign dispatches flagged leads over SMS and email, either as
// a single pass or continuously.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/leadsmith/leadgen/internal/app"
	"github.com/leadsmith/leadgen/internal/common"
)

func main() {
	var (
		continuous = flag.Bool("continuous", false, "keep polling for dispatchable leads")
		interval   = flag.Duration("interval", 0, "poll interval in continuous mode (default from config)")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *interval > 0 {
		cfg.Dispatch.Interval = *interval
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

	if *continuous {
		err := a.Dispatcher.RunContinuous(ctx, cfg.Dispatch.Interval)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("dispatch failed", "error", err)
			os.Exit(1)
		}
		return
	}

	start := time.Now()
	sum, err := a.Dispatcher.Run(ctx)
	if err != nil {
		logger.Error("dispatch failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Dispatched %d leads (%d sms, %d email, %d failed) in %s\n",
		sum.Completed, sum.SMSSent, sum.EmailSent, sum.Failed,
		time.Since(start).Round(time.Millisecond))
}
