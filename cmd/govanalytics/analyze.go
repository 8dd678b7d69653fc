package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"govanalytics/errs"
	"govanalytics/model"
)

// runAnalyze implements the `analyze <protocol> [--limit N] [--at TIMESTAMP]`
// subcommand (spec.md §6): builds a snapshot via the fetch coordinator,
// persists it to the configured store, and prints it as JSON.
func runAnalyze(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath string
		limit   int
		at      string
	)
	fs.StringVar(&cfgPath, "config", "", "path to YAML configuration")
	fs.IntVar(&limit, "limit", 500, "maximum holders to fetch")
	fs.StringVar(&at, "at", "", "reference timestamp (RFC3339); defaults to now")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: analyze requires exactly one <protocol> argument")
		return exitValidation
	}
	protocol := fs.Arg(0)

	reference := time.Now().UTC()
	if strings.TrimSpace(at) != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			fmt.Fprintf(stderr, "Error: invalid --at timestamp: %v\n", err)
			return exitValidation
		}
		reference = parsed.UTC()
	}

	a, err := newApp(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}
	defer a.close()

	result, err := fetchSnapshot(ctx, a, protocol, limit, reference)
	if err != nil {
		if errs.KindOf(err) == errs.KindCancelled {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitCancelled
		}
		a.logger.Error("analyze failed", "protocol", protocol, "error", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}

	if err := a.store.Put(ctx, result.Snapshot); err != nil {
		fmt.Fprintf(stderr, "Error: persist snapshot: %v\n", err)
		return exitInternal
	}

	if err := json.NewEncoder(stdout).Encode(result); err != nil {
		fmt.Fprintf(stderr, "Error: encode output: %v\n", err)
		return exitInternal
	}

	if result.Snapshot.Provenance == model.ProvenanceSimulated {
		return exitDegraded
	}
	return exitOK
}
