// Package compare aligns metric series across protocols and ranks them by a
// caller-supplied weighted composite score, per spec.md §4.9. Grounded in
// spirit on other_examples' cross_protocol_governance.go alignment/ranking
// naming (enrichment only, not a pack teacher); the join and ranking logic
// itself is original to this package's use of store.Series output.
package compare

import (
	"sort"
	"time"

	"govanalytics/store"
)

// Cell is one (protocol, metric-value) observation aligned into a table
// row, carrying the provenance of the snapshot it was read from.
type Cell struct {
	Value      float64
	Provenance string
	Present    bool
}

// Row is one aligned timestamp's values across all compared protocols.
type Row struct {
	Timestamp time.Time
	Values    map[string]Cell
}

// Table is the rectangular alignment output: rows are aligned timestamps,
// columns are protocols (spec.md §4.9).
type Table struct {
	Protocols []string
	Rows      []Row
}

// Align joins each protocol's metric series onto the timestamps of the
// first listed protocol's series (the reference axis), matching every
// other protocol's nearest-earlier point within maxSkew (spec.md §4.9:
// "nearest-earlier alignment with a configurable maximum skew").
func Align(seriesByProtocol map[string][]store.Point, protocolOrder []string, maxSkew time.Duration) Table {
	table := Table{Protocols: append([]string(nil), protocolOrder...)}
	if len(protocolOrder) == 0 {
		return table
	}
	reference := seriesByProtocol[protocolOrder[0]]

	for _, refPoint := range reference {
		row := Row{Timestamp: refPoint.Timestamp, Values: make(map[string]Cell, len(protocolOrder))}
		for _, protocolID := range protocolOrder {
			series := seriesByProtocol[protocolID]
			point, ok := nearestEarlierWithin(series, refPoint.Timestamp, maxSkew)
			if !ok {
				row.Values[protocolID] = Cell{Present: false}
				continue
			}
			row.Values[protocolID] = Cell{Value: point.Value, Provenance: string(point.Provenance), Present: true}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func nearestEarlierWithin(series []store.Point, at time.Time, maxSkew time.Duration) (store.Point, bool) {
	var best store.Point
	found := false
	for _, p := range series {
		if p.Timestamp.After(at) {
			continue
		}
		skew := at.Sub(p.Timestamp)
		if skew > maxSkew {
			continue
		}
		if !found || p.Timestamp.After(best.Timestamp) {
			best = p
			found = true
		}
	}
	return best, found
}

// Weight pairs a metric name with its ranking weight. Metrics are min-max
// normalized across the compared protocols before weighting (spec.md §4.9:
// "weighted linear combination of normalized metrics").
type Weight struct {
	Metric string
	Weight float64
}

// Ranked is one protocol's composite ranking score.
type Ranked struct {
	Protocol string
	Score    float64
}

// Rank orders protocols by a weighted linear combination of their latest
// normalized metric values, descending. latest maps protocol -> metric ->
// raw value.
func Rank(latest map[string]map[string]float64, weights []Weight, protocolOrder []string) []Ranked {
	normalized := make(map[string]map[string]float64, len(protocolOrder))
	for _, protocolID := range protocolOrder {
		normalized[protocolID] = make(map[string]float64, len(weights))
	}

	for _, w := range weights {
		min, max := 0.0, 0.0
		first := true
		for _, protocolID := range protocolOrder {
			v, ok := latest[protocolID][w.Metric]
			if !ok {
				continue
			}
			if first {
				min, max = v, v
				first = false
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		span := max - min
		for _, protocolID := range protocolOrder {
			v, ok := latest[protocolID][w.Metric]
			if !ok {
				normalized[protocolID][w.Metric] = 0
				continue
			}
			if span == 0 {
				normalized[protocolID][w.Metric] = 0
				continue
			}
			normalized[protocolID][w.Metric] = (v - min) / span
		}
	}

	out := make([]Ranked, 0, len(protocolOrder))
	for _, protocolID := range protocolOrder {
		var score float64
		for _, w := range weights {
			score += normalized[protocolID][w.Metric] * w.Weight
		}
		out = append(out, Ranked{Protocol: protocolID, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Protocol < out[j].Protocol
	})
	return out
}
