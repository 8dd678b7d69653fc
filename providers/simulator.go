package providers

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"govanalytics/config"
	"govanalytics/model"
	"govanalytics/simulate"
)

// SimulatorAdapter is the terminal fallback source registered under id
// "simulator" in every fallback chain (spec.md §4.4, §6 config default).
// It generates deterministic synthetic data rather than calling out to a
// network source, so fetches fail only on an expired caller-supplied
// context or an invalid configured simulator setting (such as the supply).
type SimulatorAdapter struct {
	cfg config.SimulatorConfig
}

// NewSimulatorAdapter builds a SimulatorAdapter parameterized by cfg.
func NewSimulatorAdapter(cfg config.SimulatorConfig) *SimulatorAdapter {
	return &SimulatorAdapter{cfg: cfg}
}

func (a *SimulatorAdapter) SourceID() string { return "simulator" }

func (a *SimulatorAdapter) FreeTier() bool { return false }

func (a *SimulatorAdapter) supply() (*big.Int, error) {
	supply, ok := new(big.Int).SetString(a.cfg.Supply, 10)
	if !ok {
		return nil, fmt.Errorf("simulator: invalid supply %q", a.cfg.Supply)
	}
	return supply, nil
}

func (a *SimulatorAdapter) holders(protocol string) ([]model.HolderBalance, error) {
	supply, err := a.supply()
	if err != nil {
		return nil, err
	}
	seed := a.cfg.Seed + int64(stringHash(protocol))
	n := a.cfg.HolderCount
	if n <= 0 {
		n = 250
	}
	return simulate.Holders(simulate.Profile(a.cfg.Profile), n, supply, a.cfg.Alpha, a.cfg.DominantShare, seed)
}

// FetchHolders generates a single page containing every synthetic holder;
// the simulator has no pagination concept so cursor is ignored and HasMore
// is always false.
func (a *SimulatorAdapter) FetchHolders(ctx context.Context, protocol string, limit int, cursor string) (HolderPage, error) {
	if err := ctx.Err(); err != nil {
		return HolderPage{}, err
	}
	holders, err := a.holders(protocol)
	if err != nil {
		return HolderPage{}, err
	}
	supply, err := a.supply()
	if err != nil {
		return HolderPage{}, err
	}
	if limit > 0 && limit < len(holders) {
		holders = holders[:limit]
	}
	return HolderPage{Holders: holders, Supply: supply}, nil
}

func (a *SimulatorAdapter) governance(protocol string, until time.Time) ([]model.Proposal, []model.Vote, error) {
	holders, err := a.holders(protocol)
	if err != nil {
		return nil, nil, err
	}
	rates := simulate.ChoiceRates{For: a.cfg.ForRate, Against: a.cfg.AgainstRate, Abstain: a.cfg.AbstainRate}
	seed := a.cfg.Seed + int64(stringHash(protocol)) + 1
	meanProposals := a.cfg.MeanProposals
	if meanProposals <= 0 {
		meanProposals = 6
	}
	return simulate.Governance(protocol, holders, until, meanProposals, rates, seed)
}

// FetchProposals generates a synthetic set of proposals anchored at until
// and drops those whose voting starts before since. The number generated is
// a Poisson draw that does not depend on the window.
func (a *SimulatorAdapter) FetchProposals(ctx context.Context, protocol string, since, until time.Time) ([]ProposalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	proposals, _, err := a.governance(protocol, until)
	if err != nil {
		return nil, err
	}
	out := make([]ProposalRecord, 0, len(proposals))
	for _, p := range proposals {
		if p.VotingStart.Before(since) {
			continue
		}
		out = append(out, ProposalRecord{
			ProtocolID:   p.ProtocolID,
			ID:           p.ID,
			Proposer:     p.Proposer.String(),
			CreatedAt:    p.CreatedAt,
			VotingStart:  p.VotingStart,
			VotingEnd:    p.VotingEnd,
			Status:       p.Status.String(),
			Quorum:       p.Quorum.String(),
			ForVotes:     p.Tallies.For.String(),
			AgainstVotes: p.Tallies.Against.String(),
			AbstainVotes: p.Tallies.Abstain.String(),
		})
	}
	return out, nil
}

// FetchVotes regenerates the full synthetic proposal/vote set for protocol
// and returns only the ballots cast on proposalID. Regeneration is
// deterministic under the adapter's seed, so voters, choices and power are
// stable across calls; CastAt is anchored at the current time, not at the
// until passed to FetchProposals.
func (a *SimulatorAdapter) FetchVotes(ctx context.Context, protocol, proposalID string) ([]VoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, votes, err := a.governance(protocol, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	out := make([]VoteRecord, 0, len(votes))
	for _, v := range votes {
		if v.ProposalID != proposalID {
			continue
		}
		out = append(out, VoteRecord{
			ProposalID: v.ProposalID,
			Voter:      v.Voter.String(),
			Choice:     v.Choice.String(),
			Power:      v.Power.String(),
			CastAt:     v.CastAt,
		})
	}
	return out, nil
}

// FetchDelegations generates a small synthetic delegation set among the
// protocol's holders (spec.md §6 supplemented feature; simulate.Delegations).
func (a *SimulatorAdapter) FetchDelegations(ctx context.Context, protocol string, since, until time.Time) ([]DelegationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	holders, err := a.holders(protocol)
	if err != nil {
		return nil, err
	}
	seed := a.cfg.Seed + int64(stringHash(protocol)) + 2
	delegations, err := simulate.Delegations(holders, until, seed)
	if err != nil {
		return nil, err
	}
	out := make([]DelegationRecord, 0, len(delegations))
	for _, d := range delegations {
		if d.EffectiveFrom.Before(since) {
			continue
		}
		rec := DelegationRecord{
			Delegator:     d.Delegator.String(),
			Delegatee:     d.Delegatee.String(),
			EffectiveFrom: d.EffectiveFrom,
			Full:          d.Amount.Full,
		}
		if !d.Amount.Full {
			rec.Amount = d.Amount.Amount.String()
		}
		out = append(out, rec)
	}
	return out, nil
}

// stringHash folds a protocol id into a small deterministic offset so
// different protocols simulated under the same base seed diverge instead of
// generating identical holder sets.
func stringHash(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
