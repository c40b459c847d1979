package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hhplus/orderstorm/internal/config"
	"github.com/hhplus/orderstorm/internal/dashboard"
	"github.com/hhplus/orderstorm/internal/engine"
	"github.com/hhplus/orderstorm/internal/logging"
	"github.com/hhplus/orderstorm/internal/metrics"
	"github.com/hhplus/orderstorm/internal/report"
	"github.com/hhplus/orderstorm/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second

	// exitThresholds matches k6's exit code for crossed thresholds.
	exitThresholds = 99
)

var errThresholdsFailed = errors.New("one or more thresholds failed")

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, errThresholdsFailed):
		os.Exit(exitThresholds)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogPretty, stderr)
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	rc, err := engine.FromConfig(*cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Tracing, tracing.AttrScenario.String(rc.Scenario))
	if err != nil {
		return err
	}
	defer shutdownTracing(tp, logger)

	sink := metrics.NewSink()
	eng, err := engine.New(rc,
		engine.WithSink(sink),
		engine.WithLogger(logger),
		engine.WithTracer(tp.TracerProvider(), tp.ShouldPropagate()),
	)
	if err != nil {
		return err
	}

	var dash *dashboard.Dashboard
	var progress *report.ProgressReporter
	if cfg.Dashboard {
		progress = report.NewProgressReporter(sink, progressInterval, nil)
		dash, err = dashboard.New(sink, progress, dashboard.RunInfo{
			Scenario:   rc.Scenario,
			TargetURL:  rc.BaseURL,
			MaxVUs:     eng.MaxVUs(),
			Planned:    eng.PlannedDuration(),
			Timeout:    rc.Timeout,
			ConfigFile: cfg.ConfigFile,
			Thresholds: rc.Thresholds,
		}, cancel)
		if err != nil {
			return err
		}
		dash.Start()
	} else {
		var out io.Writer = stdout
		if cfg.JSONOutput {
			out = nil
		}
		progress = report.NewProgressReporter(sink, progressInterval, out)
		progress.Start()
	}

	summary, runErr := eng.Run(ctx)
	if dash != nil {
		dash.Stop()
	} else {
		progress.Stop()
	}
	if runErr != nil {
		return runErr
	}

	if cfg.JSONOutput {
		if err := report.PrintJSONReport(stdout, summary); err != nil {
			return err
		}
	} else {
		report.PrintReport(stdout, summary)
	}

	if cfg.SummaryFile != "" {
		if err := report.WriteFile(cfg.SummaryFile, summary); err != nil {
			return err
		}
		logger.Info().Str("path", cfg.SummaryFile).Msg("summary written")
	}
	if cfg.HTMLOutput != "" {
		if err := writeHTMLReport(cfg.HTMLOutput, summary, progress.History()); err != nil {
			return err
		}
		logger.Info().Str("path", cfg.HTMLOutput).Msg("html report written")
	}

	if !summary.Passed {
		return errThresholdsFailed
	}
	return nil
}

func writeHTMLReport(path string, summary report.Summary, history []report.Point) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("html report: %w", err)
	}
	if err := report.GenerateHTMLReport(f, summary, history); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func shutdownTracing(tp *tracing.Provider, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("tracing shutdown failed")
	}
}
