// Package main provides the normalizer command: run the record pipeline over a local JSON file.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"

	"webhookworker/internal/formatter"
	"webhookworker/internal/logger"
	"webhookworker/internal/models"
	"webhookworker/internal/pipeline"
)

type options struct {
	Input   string `short:"i" long:"input" required:"true" description:"JSON file holding an array of records"`
	Output  string `short:"o" long:"output" description:"Write the selected records to this JSON file"`
	Limit   int    `long:"limit" default:"5" description:"Number of records to keep"`
	Workers int    `long:"workers" default:"4" description:"Records processed concurrently"`
	Verbose bool   `short:"v" long:"verbose" description:"Log every discarded record"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options

	if _, err := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash).ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, flagsErr.Message)
			return 0
		}

		fmt.Fprintf(stderr, "invalid arguments: %v\n", err)

		return 2
	}

	level := "error"
	if opts.Verbose {
		level = "debug"
	}

	log := logger.New(logger.Options{Writer: stderr, Level: level})

	content, err := os.ReadFile(opts.Input)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading file: %v\n", err)
		return 1
	}

	var batch []models.RawRecord
	if err := json.Unmarshal(content, &batch); err != nil {
		fmt.Fprintf(stderr, "Error parsing %s: expected a JSON array: %v\n", opts.Input, err)
		return 1
	}

	fmt.Fprintf(stdout, "📂 Reading: %s (%d records)\n", opts.Input, len(batch))

	res, err := pipeline.New(log, opts.Workers).Run(batch, opts.Limit)
	if err != nil {
		fmt.Fprintf(stderr, "Pipeline failed: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "📊 Valid: %d, transformed: %d, selected: %d, discarded: %d\n",
		res.Stats.ValidCount, res.Stats.TransformedCount, res.Stats.SelectedCount, res.Stats.Discarded())

	for _, d := range res.Discards {
		fmt.Fprintf(stdout, "  - #%d (%s): %s\n", d.Index, d.Stage, d.Reason)
	}

	fmt.Fprintln(stdout)
	fmt.Fprint(stdout, formatter.RenderTable(res.Selected, formatter.DefaultTitleWidth))

	if opts.Output == "" {
		return 0
	}

	data, err := json.MarshalIndent(res.Selected, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Error encoding records: %v\n", err)
		return 1
	}

	if err := os.WriteFile(opts.Output, append(data, '\n'), 0644); err != nil {
		fmt.Fprintf(stderr, "Error writing output: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "✅ Saved to %s\n", opts.Output)

	return 0
}
