// Package normalize maps provider adapter records onto the canonical data
// model, dropping records that violate schema and gating the result on a
// minimum survivor share, per spec.md §4.3. Parsing follows the teacher's
// native/governance.validatorForParam style: strict big.Int decode, wrapped
// per-field errors.
package normalize

import (
	"fmt"
	"math/big"
	"strings"

	"govanalytics/errs"
	"govanalytics/model"
	"govanalytics/providers"
)

// MinSurvivorShare is the minimum fraction of records that must survive
// normalization for a fetch to count as successful (spec.md §4.3: "e.g., ≥
// 80% of expected records for that kind").
const MinSurvivorShare = 0.8

// Warning carries enough context to reproduce a dropped record without
// re-fetching the source.
type Warning struct {
	Kind      string
	RecordRef string
	Reason    string
}

// Result bundles the records that survived normalization with the warnings
// for everything that was dropped.
type Result[T any] struct {
	Records  []T
	Warnings []Warning
	Total    int
}

// SurvivorShare reports the fraction of input records retained.
func (r Result[T]) SurvivorShare() float64 {
	if r.Total == 0 {
		return 1
	}
	return float64(len(r.Records)) / float64(r.Total)
}

// belowThreshold builds the KindValidation error returned when too many
// records were dropped for the fetch to count as successful for this kind.
func belowThreshold(kind string, share float64) error {
	return errs.New(errs.KindValidation, "normalize", kind, fmt.Errorf("survivor share %.2f below minimum %.2f", share, MinSurvivorShare))
}

var statusByName = map[string]model.ProposalStatus{
	"pending":   model.ProposalStatusPending,
	"active":    model.ProposalStatusActive,
	"succeeded": model.ProposalStatusSucceeded,
	"defeated":  model.ProposalStatusDefeated,
	"executed":  model.ProposalStatusExecuted,
	"cancelled": model.ProposalStatusCancelled,
	"expired":   model.ProposalStatusExpired,
}

var choiceByName = map[string]model.VoteChoice{
	"for":     model.VoteChoiceFor,
	"against": model.VoteChoiceAgainst,
	"abstain": model.VoteChoiceAbstain,
}

func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s: empty amount", field)
	}
	n, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid integer literal %q", field, raw)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%s: negative amount %q", field, raw)
	}
	return n, nil
}

// Holders validates a holder page already expressed in canonical model
// types: drops records with a missing or negative balance, drops duplicate
// addresses, gates on MinSurvivorShare, and — when supply is known — checks
// the aggregate invariant Σ balances ≤ supply (spec.md §8 invariant 1). A nil
// supply (a source with no total-supply index) skips that last check only;
// every other validation still applies.
func Holders(records []model.HolderBalance, supply *big.Int) (Result[model.HolderBalance], error) {
	out := Result[model.HolderBalance]{Total: len(records)}
	seen := make(map[model.Address]struct{}, len(records))
	sum := new(big.Int)
	for _, rec := range records {
		h, err := holder(rec)
		if err != nil {
			out.Warnings = append(out.Warnings, Warning{Kind: "holder", RecordRef: rec.Address.String(), Reason: err.Error()})
			continue
		}
		if _, dup := seen[h.Address]; dup {
			out.Warnings = append(out.Warnings, Warning{Kind: "holder", RecordRef: h.Address.String(), Reason: "duplicate holder address"})
			continue
		}
		seen[h.Address] = struct{}{}
		sum.Add(sum, h.Balance)
		out.Records = append(out.Records, h)
	}
	if out.SurvivorShare() < MinSurvivorShare {
		return out, belowThreshold("holders", out.SurvivorShare())
	}
	if supply != nil && sum.Cmp(supply) > 0 {
		return out, errs.New(errs.KindValidation, "normalize", "holders", fmt.Errorf("sum of balances %s exceeds supply %s", sum.String(), supply.String()))
	}
	return out, nil
}

func holder(rec model.HolderBalance) (model.HolderBalance, error) {
	if rec.Balance == nil {
		return model.HolderBalance{}, fmt.Errorf("balance: missing")
	}
	if rec.Balance.Sign() < 0 {
		return model.HolderBalance{}, fmt.Errorf("balance: negative amount %s", rec.Balance.String())
	}
	return rec, nil
}

// Proposals maps raw ProposalRecords onto the canonical model, dropping
// invalid records and gating on MinSurvivorShare.
func Proposals(records []providers.ProposalRecord) (Result[model.Proposal], error) {
	out := Result[model.Proposal]{Total: len(records)}
	for _, rec := range records {
		p, err := proposal(rec)
		if err != nil {
			out.Warnings = append(out.Warnings, Warning{Kind: "proposal", RecordRef: rec.ProtocolID + "/" + rec.ID, Reason: err.Error()})
			continue
		}
		out.Records = append(out.Records, p)
	}
	if out.SurvivorShare() < MinSurvivorShare {
		return out, belowThreshold("proposals", out.SurvivorShare())
	}
	return out, nil
}

func proposal(rec providers.ProposalRecord) (model.Proposal, error) {
	proposer, err := model.ParseAddress(rec.Proposer)
	if err != nil {
		return model.Proposal{}, fmt.Errorf("proposer: %w", err)
	}
	status, ok := statusByName[strings.ToLower(strings.TrimSpace(rec.Status))]
	if !ok {
		return model.Proposal{}, fmt.Errorf("status: unknown value %q", rec.Status)
	}
	if rec.VotingStart.After(rec.VotingEnd) {
		return model.Proposal{}, fmt.Errorf("voting_start %s after voting_end %s", rec.VotingStart, rec.VotingEnd)
	}
	quorum, err := parseAmount("quorum", rec.Quorum)
	if err != nil {
		return model.Proposal{}, err
	}
	forVotes, err := parseAmount("for_votes", rec.ForVotes)
	if err != nil {
		return model.Proposal{}, err
	}
	againstVotes, err := parseAmount("against_votes", rec.AgainstVotes)
	if err != nil {
		return model.Proposal{}, err
	}
	abstainVotes, err := parseAmount("abstain_votes", rec.AbstainVotes)
	if err != nil {
		return model.Proposal{}, err
	}
	return model.Proposal{
		ProtocolID:  rec.ProtocolID,
		ID:          rec.ID,
		Proposer:    proposer,
		CreatedAt:   rec.CreatedAt,
		VotingStart: rec.VotingStart,
		VotingEnd:   rec.VotingEnd,
		Status:      status,
		Quorum:      quorum,
		Tallies: model.Tallies{
			For:     forVotes,
			Against: againstVotes,
			Abstain: abstainVotes,
		},
		Metadata: rec.Metadata,
	}, nil
}

// Votes maps raw VoteRecords onto the canonical model, rejecting a second
// vote from the same voter on the same proposal (spec.md §3 invariant: "at
// most one vote per (proposal, voter)") and gating on MinSurvivorShare.
func Votes(records []providers.VoteRecord) (Result[model.Vote], error) {
	out := Result[model.Vote]{Total: len(records)}
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		v, err := vote(rec)
		if err != nil {
			out.Warnings = append(out.Warnings, Warning{Kind: "vote", RecordRef: rec.ProposalID + "/" + rec.Voter, Reason: err.Error()})
			continue
		}
		dedupeKey := v.ProposalID + "|" + v.Voter.String()
		if _, dup := seen[dedupeKey]; dup {
			out.Warnings = append(out.Warnings, Warning{Kind: "vote", RecordRef: dedupeKey, Reason: "duplicate vote for (proposal, voter)"})
			continue
		}
		seen[dedupeKey] = struct{}{}
		out.Records = append(out.Records, v)
	}
	if out.SurvivorShare() < MinSurvivorShare {
		return out, belowThreshold("votes", out.SurvivorShare())
	}
	return out, nil
}

func vote(rec providers.VoteRecord) (model.Vote, error) {
	voter, err := model.ParseAddress(rec.Voter)
	if err != nil {
		return model.Vote{}, fmt.Errorf("voter: %w", err)
	}
	choice, ok := choiceByName[strings.ToLower(strings.TrimSpace(rec.Choice))]
	if !ok {
		return model.Vote{}, fmt.Errorf("choice: unknown value %q", rec.Choice)
	}
	power, err := parseAmount("power", rec.Power)
	if err != nil {
		return model.Vote{}, err
	}
	return model.Vote{
		ProposalID: rec.ProposalID,
		Voter:      voter,
		Choice:     choice,
		Power:      power,
		CastAt:     rec.CastAt,
	}, nil
}

// Delegations maps raw DelegationRecords onto the canonical model, rejecting
// self-delegation (spec.md §3 invariant: "delegation graph has no
// self-loops") and gating on MinSurvivorShare.
func Delegations(records []providers.DelegationRecord) (Result[model.Delegation], error) {
	out := Result[model.Delegation]{Total: len(records)}
	for _, rec := range records {
		d, err := delegation(rec)
		if err != nil {
			out.Warnings = append(out.Warnings, Warning{Kind: "delegation", RecordRef: rec.Delegator + "->" + rec.Delegatee, Reason: err.Error()})
			continue
		}
		out.Records = append(out.Records, d)
	}
	if out.SurvivorShare() < MinSurvivorShare {
		return out, belowThreshold("delegations", out.SurvivorShare())
	}
	return out, nil
}

func delegation(rec providers.DelegationRecord) (model.Delegation, error) {
	delegator, err := model.ParseAddress(rec.Delegator)
	if err != nil {
		return model.Delegation{}, fmt.Errorf("delegator: %w", err)
	}
	delegatee, err := model.ParseAddress(rec.Delegatee)
	if err != nil {
		return model.Delegation{}, fmt.Errorf("delegatee: %w", err)
	}
	if delegator == delegatee {
		return model.Delegation{}, fmt.Errorf("delegation has a self-loop: %s", rec.Delegator)
	}
	amount := model.DelegationAmount{Full: rec.Full}
	if !rec.Full {
		parsed, err := parseAmount("amount", rec.Amount)
		if err != nil {
			return model.Delegation{}, err
		}
		amount.Amount = parsed
	}
	return model.Delegation{
		Delegator:     delegator,
		Delegatee:     delegatee,
		EffectiveFrom: rec.EffectiveFrom,
		Amount:        amount,
	}, nil
}
