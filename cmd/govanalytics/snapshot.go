package main

import (
	"context"
	"math/big"
	"sort"
	"time"

	"govanalytics/blocks"
	"govanalytics/config"
	"govanalytics/errs"
	"govanalytics/metrics/concentration"
	"govanalytics/metrics/participation"
	"govanalytics/model"
	"govanalytics/normalize"
)

// buildResult bundles the assembled snapshot with the derived voting-block
// and anomaly analysis spec.md §4.7 defines alongside it (not persisted as
// part of the Snapshot record itself; recomputed on demand).
type buildResult struct {
	Snapshot  model.Snapshot      `json:"snapshot"`
	Blocks    []model.VotingBlock `json:"voting_blocks"`
	Anomalies []blocks.Anomaly    `json:"anomalies"`
}

// fetchSnapshot walks the fetch coordinator for holders, proposals, the
// votes on every fetched proposal, and delegations, normalizes each, and
// folds the results into a Snapshot tagged with the weakest provenance tier
// actually used across every call (spec.md §4.2 step 5).
func fetchSnapshot(ctx context.Context, a *app, protocolID string, holderLimit int, reference time.Time) (buildResult, error) {
	protocol := model.Protocol{ID: protocolID, ContractID: protocolID, Decimals: 18}
	worst := model.ProvenanceLive
	degradeIfWeaker := func(p model.Provenance) {
		if p.Weaker(worst) {
			worst = p
		}
	}

	holderResult, err := a.coordinator.FetchHolders(ctx, protocolID, holderLimit, "", a.cfg.Concurrency.PerSource)
	if err != nil {
		return buildResult{}, err
	}
	degradeIfWeaker(holderResult.Provenance)
	normalizedHolders, err := normalize.Holders(holderResult.Value.Holders, holderResult.Value.Supply)
	if err != nil {
		return buildResult{}, err
	}
	holders := normalizedHolders.Records
	assignRanks(holders)
	protocol.Supply = holderResult.Value.Supply

	since := reference.AddDate(-1, 0, 0)
	proposalResult, err := a.coordinator.FetchProposals(ctx, protocolID, since, reference, a.cfg.Concurrency.PerSource)
	if err != nil {
		return buildResult{}, err
	}
	degradeIfWeaker(proposalResult.Provenance)
	normalizedProposals, err := normalize.Proposals(proposalResult.Value)
	if err != nil {
		return buildResult{}, err
	}
	proposals := normalizedProposals.Records

	var votes []model.Vote
	for _, p := range proposals {
		voteResult, err := a.coordinator.FetchVotes(ctx, protocolID, p.ID, a.cfg.Concurrency.PerSource)
		if err != nil {
			continue
		}
		degradeIfWeaker(voteResult.Provenance)
		normalizedVotes, err := normalize.Votes(voteResult.Value)
		if err != nil {
			continue
		}
		votes = append(votes, normalizedVotes.Records...)
	}

	delegationResult, err := a.coordinator.FetchDelegations(ctx, protocolID, since, reference, a.cfg.Concurrency.PerSource)
	var delegations []model.Delegation
	switch {
	case err == nil:
		degradeIfWeaker(delegationResult.Provenance)
		normalizedDelegations, derr := normalize.Delegations(delegationResult.Value)
		if derr == nil {
			delegations = normalizedDelegations.Records
		}
	case errs.KindOf(err) == errs.KindCancelled:
		return buildResult{}, err
	default:
		degradeIfWeaker(model.ProvenanceSimulated)
	}

	snap := model.Snapshot{
		Protocol:    protocol,
		Timestamp:   reference,
		Holders:     holders,
		Proposals:   proposals,
		Votes:       votes,
		Delegations: delegations,
		Metrics:     computeMetrics(holders, proposals, votes, delegations),
		Provenance:  worst,
		Degraded:    worst == model.ProvenanceSimulated,
	}

	blocksFound, anomalies := analyzeVotingBlocks(a.cfg, holders, proposals, votes)
	return buildResult{Snapshot: snap, Blocks: blocksFound, Anomalies: anomalies}, nil
}

// powerOfFunc resolves a voter's balance for the voting-block analyzer,
// treating unknown addresses (voters absent from the holder snapshot, e.g.
// a delegatee-only address) as zero power.
func powerOfFunc(holders []model.HolderBalance) func(model.Address) *big.Int {
	byAddr := make(map[model.Address]*big.Int, len(holders))
	for _, h := range holders {
		byAddr[h.Address] = h.Balance
	}
	return func(addr model.Address) *big.Int {
		if p, ok := byAddr[addr]; ok {
			return p
		}
		return big.NewInt(0)
	}
}

// analyzeVotingBlocks discovers co-voting blocks and flags every anomaly
// category spec.md §4.7 defines, using cfg.VotingBlocks and a fixed top-10
// whale cohort.
func analyzeVotingBlocks(cfg config.Config, holders []model.HolderBalance, proposals []model.Proposal, votes []model.Vote) ([]model.VotingBlock, []blocks.Anomaly) {
	blockConfig := blocks.FromConfig(cfg.VotingBlocks)
	blocksFound := blocks.Discover(votes, powerOfFunc(holders), blockConfig)

	var anomalies []blocks.Anomaly
	anomalies = append(anomalies, blocks.CoordinatedVoting(blocksFound, votes)...)
	anomalies = append(anomalies, blocks.WhaleVsOutcome(holders, proposals, votes, 10)...)
	anomalies = append(anomalies, blocks.PowerVsOutcome(proposals)...)

	sortedProposals := make([]model.Proposal, len(proposals))
	copy(sortedProposals, proposals)
	sort.Slice(sortedProposals, func(i, j int) bool { return sortedProposals[i].VotingStart.Before(sortedProposals[j].VotingStart) })
	var turnoutSeries []blocks.ProposalTurnoutSeries
	for _, p := range sortedProposals {
		eligible := participation.EligiblePowerAt(holders, nil, p)
		turnoutSeries = append(turnoutSeries, blocks.ProposalTurnoutSeries{
			ProposalID: p.ID,
			Turnout:    participation.Turnout(p, votes, eligible),
		})
	}
	anomalies = append(anomalies, blocks.ParticipationSpike(turnoutSeries, 10)...)

	sort.Slice(anomalies, func(i, j int) bool { return anomalies[i].Severity > anomalies[j].Severity })
	return blocksFound, anomalies
}

func assignRanks(holders []model.HolderBalance) {
	sort.Slice(holders, func(i, j int) bool {
		c := holders[i].Balance.Cmp(holders[j].Balance)
		if c != 0 {
			return c > 0
		}
		return holders[i].Address.Less(holders[j].Address)
	})
	for i := range holders {
		holders[i].Rank = i + 1
	}
}

// computeMetrics populates the flat metric set a Snapshot carries, spanning
// concentration (spec.md §4.5) and participation (spec.md §4.6).
func computeMetrics(holders []model.HolderBalance, proposals []model.Proposal, votes []model.Vote, delegations []model.Delegation) model.MetricSet {
	metrics := make(model.MetricSet)

	balances := make([]*big.Int, len(holders))
	for i, h := range holders {
		balances[i] = h.Balance
	}
	ascending := concentration.Ascending(balances)
	descending := concentration.Descending(balances)
	metrics["gini"] = concentration.Gini(ascending)
	metrics["hhi"] = concentration.HHI(balances)
	metrics["nakamoto"] = float64(concentration.Nakamoto(descending))
	if palma, ok := concentration.Palma(descending); ok {
		metrics["palma"] = palma
	}
	for n, share := range concentration.TopNShare(descending, []int{5, 10, 20, 50}) {
		switch n {
		case 5:
			metrics["top5_share"] = share
		case 10:
			metrics["top10_share"] = share
		case 20:
			metrics["top20_share"] = share
		case 50:
			metrics["top50_share"] = share
		}
	}

	var turnouts []participation.ProposalTurnout
	var weights []float64
	for _, p := range proposals {
		eligible := participation.EligiblePowerAt(holders, delegations, p)
		turnout := participation.Turnout(p, votes, eligible)
		turnouts = append(turnouts, participation.ProposalTurnout{ProposalID: p.ID, Turnout: turnout})
		total := big.NewInt(0)
		for _, v := range eligible {
			total.Add(total, v)
		}
		totalF, _ := new(big.Float).SetInt(total).Float64()
		weights = append(weights, totalF)
	}
	metrics["overall_turnout"] = participation.OverallTurnout(turnouts, weights)

	return metrics
}
