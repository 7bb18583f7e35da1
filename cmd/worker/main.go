// Package main provides the worker command: fetch a batch, keep the top records and persist them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"webhookworker/internal/app"
	"webhookworker/internal/config"
	"webhookworker/internal/formatter"
	"webhookworker/internal/logger"
	"webhookworker/internal/store"
	"webhookworker/pkg/checksum"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type options struct {
	Limit       *int   `long:"limit" description:"Number of records to keep (overrides selection.limit)"`
	Config      string `short:"c" long:"config" env:"WORKER_CONFIG" description:"Path to YAML config file"`
	Env         string `long:"env" description:"Environment: development, staging or production"`
	URL         string `long:"url" description:"Source URL returning a JSON array"`
	OutputDir   string `short:"o" long:"output-dir" description:"Directory for the output files"`
	LogLevel    string `long:"log-level" description:"Log level: debug, info, warn or error"`
	HistoryDB   string `long:"history-db" description:"SQLite file recording every run"`
	MetricsFile string `long:"metrics-file" description:"Write Prometheus metrics to this textfile"`
	History     int    `long:"history" value-name:"N" description:"List the last N runs from --history-db and exit"`
	Quiet       bool   `short:"q" long:"quiet" description:"Do not print the result table"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options

	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, flagsErr.Message)
			return exitOK
		}

		fmt.Fprintf(stderr, "invalid arguments: %v\n", err)

		return exitUsage
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitUsage
	}

	log := logger.New(logger.Options{
		Writer: stderr,
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.History > 0 {
		if cfg.History.Path == "" {
			fmt.Fprintln(stderr, "configuration error: --history needs --history-db or history.path")
			return exitUsage
		}

		return listHistory(ctx, stdout, stderr, cfg.History.Path, opts.History)
	}

	var runnerOpts []app.Option

	if cfg.History.Path != "" {
		history, err := store.OpenHistory(cfg.History.Path)
		if err != nil {
			log.Warn("run history disabled", "path", cfg.History.Path, "error", err)
		} else {
			defer history.Close()

			runnerOpts = append(runnerOpts, app.WithHistory(history))
		}
	}

	start := time.Now()

	res, err := app.NewRunner(cfg, log, runnerOpts...).Run(ctx)
	if err != nil {
		log.Error("run failed", "error", err, "elapsed", time.Since(start))
		return exitFailure
	}

	if !opts.Quiet {
		printReport(stdout, res)
	}

	return exitOK
}

// loadConfig reads the file and environment, applies command-line overrides, then validates.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}

	if opts.Env != "" {
		cfg.Environment = opts.Env
	}

	if opts.URL != "" {
		cfg.Source.URL = opts.URL
	}

	if opts.Limit != nil {
		cfg.Selection.Limit = *opts.Limit
	}

	if opts.OutputDir != "" {
		cfg.Output.Dir = opts.OutputDir
	}

	if opts.LogLevel != "" {
		cfg.Logging.Level = strings.ToLower(opts.LogLevel)
	}

	if opts.HistoryDB != "" {
		cfg.History.Path = opts.HistoryDB
	}

	if opts.MetricsFile != "" {
		cfg.Metrics.Textfile = opts.MetricsFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func printReport(w io.Writer, res *app.Result) {
	s := res.Summary

	fmt.Fprintln(w, "------------------------------------------------")
	fmt.Fprintln(w, "📊 Summary Report")
	fmt.Fprintln(w, "------------------------------------------------")
	fmt.Fprintf(w, "Run ID:      %s\n", s.RunID)
	fmt.Fprintf(w, "Environment: %s\n", s.Environment)
	fmt.Fprintf(w, "Received:    %d\n", s.Total)
	fmt.Fprintf(w, "Processed:   %d\n", s.Processed)
	fmt.Fprintf(w, "Saved:       %d\n", s.Saved)
	fmt.Fprintf(w, "Discarded:   %d\n", res.Stats.Discarded())
	fmt.Fprintf(w, "Output:      %s\n", s.Output)
	fmt.Fprintf(w, "Summary:     %s\n", res.SummaryPath)
	fmt.Fprintln(w)
	fmt.Fprint(w, formatter.RenderTable(res.Selected, formatter.DefaultTitleWidth))
}

// listHistory prints the latest runs and whether each output file still matches its checksum.
func listHistory(ctx context.Context, stdout, stderr io.Writer, path string, n int) int {
	history, err := store.OpenHistory(path)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open run history: %v\n", err)
		return exitFailure
	}
	defer history.Close()

	runs, err := history.Recent(ctx, n)
	if err != nil {
		fmt.Fprintf(stderr, "failed to list runs: %v\n", err)
		return exitFailure
	}

	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No runs recorded")
		return exitOK
	}

	for _, s := range runs {
		fmt.Fprintf(stdout, "%s  %s  %-11s total=%d processed=%d saved=%d output=%s (%s)\n",
			s.Timestamp.Format(time.RFC3339), s.RunID, s.Environment,
			s.Total, s.Processed, s.Saved, s.Output, outputState(s.Output, s.SHA256))
	}

	return exitOK
}

func outputState(path, sum string) string {
	ok, err := checksum.Verify(path, sum)

	switch {
	case ok:
		return "ok"
	case errors.Is(err, checksum.ErrHashMismatch):
		return "changed"
	case errors.Is(err, fs.ErrNotExist):
		return "missing"
	default:
		return "unreadable"
	}
}
