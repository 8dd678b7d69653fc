package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"
)

// runSeries implements the
// `series <protocol> --metric NAME [--from T1] [--to T2]` subcommand
// (spec.md §4.8, §6): projects a single stored metric series from the
// snapshot store.
func runSeries(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("series", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath string
		metric  string
		from    string
		to      string
	)
	fs.StringVar(&cfgPath, "config", "", "path to YAML configuration")
	fs.StringVar(&metric, "metric", "", "metric name (required)")
	fs.StringVar(&from, "from", "", "range start (RFC3339); defaults to 90 days before --to")
	fs.StringVar(&to, "to", "", "range end (RFC3339); defaults to now")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: series requires exactly one <protocol> argument")
		return exitValidation
	}
	if metric == "" {
		fmt.Fprintln(stderr, "Error: series requires --metric")
		return exitValidation
	}
	protocol := fs.Arg(0)

	toTime, err := parseOrDefault(to, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid --to timestamp: %v\n", err)
		return exitValidation
	}
	fromTime, err := parseOrDefault(from, toTime.AddDate(0, 0, -90))
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid --from timestamp: %v\n", err)
		return exitValidation
	}

	a, err := newApp(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}
	defer a.close()

	points, err := a.store.Series(ctx, protocol, metric, fromTime, toTime)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}

	if err := json.NewEncoder(stdout).Encode(points); err != nil {
		fmt.Fprintf(stderr, "Error: encode output: %v\n", err)
		return exitInternal
	}
	return exitOK
}
