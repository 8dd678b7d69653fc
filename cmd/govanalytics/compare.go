package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"govanalytics/compare"
	"govanalytics/store"
)

// runCompare implements the
// `compare <protocols...> [--metric NAME] [--from T1] [--to T2]` subcommand
// (spec.md §4.9, §6): aligns each protocol's stored series for metric onto a
// common timestamp axis and ranks protocols by that metric's latest value.
func runCompare(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath string
		metric  string
		from    string
		to      string
		skew    time.Duration
	)
	fs.StringVar(&cfgPath, "config", "", "path to YAML configuration")
	fs.StringVar(&metric, "metric", "gini", "metric name to compare")
	fs.StringVar(&from, "from", "", "range start (RFC3339); defaults to 90 days before --to")
	fs.StringVar(&to, "to", "", "range end (RFC3339); defaults to now")
	fs.DurationVar(&skew, "skew", 24*time.Hour, "maximum alignment skew")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	protocols := fs.Args()
	if len(protocols) < 2 {
		fmt.Fprintln(stderr, "Error: compare requires at least two <protocol> arguments")
		return exitValidation
	}

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

	seriesByProtocol := make(map[string][]store.Point, len(protocols))
	latest := make(map[string]map[string]float64, len(protocols))
	for _, protocolID := range protocols {
		points, err := a.store.Series(ctx, protocolID, metric, fromTime, toTime)
		if err != nil {
			fmt.Fprintf(stderr, "Error: read series for %s: %v\n", protocolID, err)
			return exitInternal
		}
		seriesByProtocol[protocolID] = points
		latest[protocolID] = map[string]float64{}
		if len(points) > 0 {
			latest[protocolID][metric] = points[len(points)-1].Value
		}
	}

	table := compare.Align(seriesByProtocol, protocols, skew)
	ranked := compare.Rank(latest, []compare.Weight{{Metric: metric, Weight: 1}}, protocols)

	out := struct {
		Table  compare.Table    `json:"table"`
		Ranked []compare.Ranked `json:"ranked"`
	}{Table: table, Ranked: ranked}

	if err := json.NewEncoder(stdout).Encode(out); err != nil {
		fmt.Fprintf(stderr, "Error: encode output: %v\n", err)
		return exitInternal
	}
	return exitOK
}

func parseOrDefault(raw string, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}
