// Package blocks discovers voting blocks from co-voting behavior via graph
// community detection, and flags anomalous voting patterns, per spec.md
// §4.7. Grounded on gonum.org/v1/gonum/graph/simple for weighted undirected
// graph construction, graph/topo for connected components, and
// graph/community for modularity-based subdivision of large components —
// no repo in the pack implements voter-graph analysis directly, so this is
// enrichment from the wider gonum ecosystem already present transitively
// via the pack (luxfi-consensus, shubhamdubey02-coreth).
package blocks

import (
	"math/big"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"govanalytics/config"
	"govanalytics/model"
)

// Config parameterizes co-voting graph construction (spec.md §4.7).
type Config struct {
	MinOverlap          int
	SimilarityThreshold float64
	LargeComponentSplit int
}

// FromConfig adapts the loaded voting_blocks configuration section.
func FromConfig(c config.VotingBlocksConfig) Config {
	return Config{
		MinOverlap:          c.MinOverlap,
		SimilarityThreshold: c.SimilarityThreshold,
		LargeComponentSplit: c.LargeComponentSplit,
	}
}

// agreementEdge is one computed similarity measurement between two voters.
type agreementEdge struct {
	a, b    model.Address
	overlap int
	agree   int
	ratio   float64
}

// computeAgreements computes pairwise agreement ratios for voters who cast
// votes on at least minOverlap distinct proposals in common, per spec.md
// §4.7: "agreement ratio: among proposals both voted on, fraction on which
// they chose the same choice".
func computeAgreements(votes []model.Vote, minOverlap int) []agreementEdge {
	choicesByVoter := make(map[model.Address]map[string]model.VoteChoice)
	for _, v := range votes {
		m, ok := choicesByVoter[v.Voter]
		if !ok {
			m = make(map[string]model.VoteChoice)
			choicesByVoter[v.Voter] = m
		}
		m[v.ProposalID] = v.Choice
	}

	voters := make([]model.Address, 0, len(choicesByVoter))
	for addr := range choicesByVoter {
		voters = append(voters, addr)
	}
	sort.Slice(voters, func(i, j int) bool { return voters[i].Less(voters[j]) })

	var edges []agreementEdge
	for i := 0; i < len(voters); i++ {
		for j := i + 1; j < len(voters); j++ {
			u, v := voters[i], voters[j]
			overlap, agree := 0, 0
			for proposalID, choiceU := range choicesByVoter[u] {
				choiceV, voted := choicesByVoter[v][proposalID]
				if !voted {
					continue
				}
				overlap++
				if choiceU == choiceV {
					agree++
				}
			}
			if overlap < minOverlap {
				continue
			}
			edges = append(edges, agreementEdge{a: u, b: v, overlap: overlap, agree: agree, ratio: float64(agree) / float64(overlap)})
		}
	}
	return edges
}

// Discover builds the co-voting graph, filters by similarity threshold,
// computes connected components, optionally subdivides oversized
// components by modularity, and returns blocks sorted by descending
// aggregate power with address-based tie-breaking (spec.md §4.7). powerOf
// resolves each voter's eligible power; it is expected to return a non-nil
// *big.Int (zero for unknown addresses).
func Discover(votes []model.Vote, powerOf func(model.Address) *big.Int, cfg Config) []model.VotingBlock {
	edges := computeAgreements(votes, cfg.MinOverlap)

	nodeIDs := make(map[model.Address]int64)
	addrByID := make(map[int64]model.Address)
	var voters []model.Address
	for _, e := range edges {
		if e.ratio < cfg.SimilarityThreshold {
			continue
		}
		for _, addr := range []model.Address{e.a, e.b} {
			if _, ok := nodeIDs[addr]; !ok {
				id := int64(len(voters))
				nodeIDs[addr] = id
				addrByID[id] = addr
				voters = append(voters, addr)
			}
		}
	}
	if len(voters) == 0 {
		return nil
	}

	g := simple.NewWeightedUndirectedGraph(0, 0)
	for _, addr := range voters {
		g.AddNode(simple.Node(nodeIDs[addr]))
	}
	for _, e := range edges {
		if e.ratio < cfg.SimilarityThreshold {
			continue
		}
		g.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(nodeIDs[e.a]),
			T: simple.Node(nodeIDs[e.b]),
			W: float64(e.overlap),
		})
	}

	components := topo.ConnectedComponents(g)

	var groups [][]model.Address
	for _, comp := range components {
		if len(comp) < 2 {
			continue
		}
		if cfg.LargeComponentSplit > 0 && len(comp) > cfg.LargeComponentSplit {
			groups = append(groups, splitByModularity(g, comp, addrByID)...)
			continue
		}
		members := make([]model.Address, 0, len(comp))
		for _, n := range comp {
			members = append(members, addrByID[n.ID()])
		}
		groups = append(groups, members)
	}

	blockAgreement := make(map[model.Address]map[model.Address]agreementEdge)
	for _, e := range edges {
		if blockAgreement[e.a] == nil {
			blockAgreement[e.a] = make(map[model.Address]agreementEdge)
		}
		blockAgreement[e.a][e.b] = e
		if blockAgreement[e.b] == nil {
			blockAgreement[e.b] = make(map[model.Address]agreementEdge)
		}
		blockAgreement[e.b][e.a] = e
	}

	var totalPower big.Int
	for _, addr := range voters {
		totalPower.Add(&totalPower, powerOf(addr))
	}

	out := make([]model.VotingBlock, 0, len(groups))
	for _, members := range groups {
		sort.Slice(members, func(i, j int) bool { return members[i].Less(members[j]) })
		power := big.NewInt(0)
		for _, a := range members {
			power.Add(power, powerOf(a))
		}
		cohesion := averageCohesion(members, blockAgreement)
		influence := 0.0
		if totalPower.Sign() > 0 {
			powerF, _ := new(big.Float).SetInt(power).Float64()
			totalF, _ := new(big.Float).SetInt(&totalPower).Float64()
			influence = powerF / totalF
		}
		addrs := make([]model.Address, len(members))
		copy(addrs, members)
		out = append(out, model.VotingBlock{Members: addrs, Power: power, Cohesion: cohesion, Influence: influence})
	}

	sort.Slice(out, func(i, j int) bool {
		c := out[i].Power.Cmp(out[j].Power)
		if c != 0 {
			return c > 0
		}
		return minAddress(out[i].Members).Less(minAddress(out[j].Members))
	})
	return out
}

func minAddress(addrs []model.Address) model.Address {
	min := addrs[0]
	for _, a := range addrs[1:] {
		if a.Less(min) {
			min = a
		}
	}
	return min
}

func averageCohesion(members []model.Address, agreement map[model.Address]map[model.Address]agreementEdge) float64 {
	var sum float64
	var count int
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if e, ok := agreement[members[i]][members[j]]; ok {
				sum += e.ratio
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// splitByModularity subdivides an oversized connected component using the
// Louvain modularity optimization (spec.md §4.7: "a second pass
// (modularity-based community split) may subdivide components exceeding a
// size threshold").
func splitByModularity(g graph.Graph, comp []graph.Node, addrByID map[int64]model.Address) [][]model.Address {
	sub := simple.NewWeightedUndirectedGraph(0, 0)
	memberSet := make(map[int64]struct{}, len(comp))
	for _, n := range comp {
		memberSet[n.ID()] = struct{}{}
		sub.AddNode(simple.Node(n.ID()))
	}
	wg, ok := g.(*simple.WeightedUndirectedGraph)
	if ok {
		for _, n := range comp {
			edgeIter := wg.From(n.ID())
			for edgeIter.Next() {
				to := edgeIter.Node()
				if _, inComp := memberSet[to.ID()]; !inComp {
					continue
				}
				weightedEdge := wg.WeightedEdge(n.ID(), to.ID())
				if weightedEdge != nil {
					sub.SetWeightedEdge(weightedEdge)
				}
			}
		}
	}

	reduced := community.Modularize(sub, 1, rand.NewSource(1))
	if reduced == nil {
		members := make([]model.Address, 0, len(comp))
		for _, n := range comp {
			members = append(members, addrByID[n.ID()])
		}
		return [][]model.Address{members}
	}

	structure := reduced.Structure()
	out := make([][]model.Address, 0, len(structure))
	for _, group := range structure {
		if len(group) < 2 {
			continue
		}
		members := make([]model.Address, 0, len(group))
		for _, n := range group {
			members = append(members, addrByID[n.ID()])
		}
		out = append(out, members)
	}
	return out
}
