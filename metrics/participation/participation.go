// Package participation computes governance participation metrics over a
// Snapshot's proposals and votes, per spec.md §4.6.
package participation

import (
	"math/big"
	"sort"

	"gonum.org/v1/gonum/stat"

	"govanalytics/model"
)

// ProposalTurnout is the fraction of eligible power that was cast on one
// proposal.
type ProposalTurnout struct {
	ProposalID string
	Turnout    float64
}

// eligiblePower returns each holder's delegation-adjusted power: balance
// plus net delegated-in minus delegated-out, resolved as of reference. This
// is the eligible-power definition spec.md §3's delegation invariant
// implies and §4.6 requires ("eligible power at p's reference time").
func eligiblePower(holders []model.HolderBalance, delegations []model.Delegation, reference func(model.Delegation) bool) map[model.Address]*big.Int {
	power := make(map[model.Address]*big.Int, len(holders))
	for _, h := range holders {
		power[h.Address] = new(big.Int).Set(h.Balance)
	}
	for _, d := range delegations {
		if !reference(d) {
			continue
		}
		delegatorPower, ok := power[d.Delegator]
		if !ok {
			delegatorPower = big.NewInt(0)
		}
		var amount *big.Int
		if d.Amount.Full {
			amount = new(big.Int).Set(delegatorPower)
		} else if d.Amount.Amount != nil {
			amount = new(big.Int).Set(d.Amount.Amount)
			if amount.Cmp(delegatorPower) > 0 {
				amount = new(big.Int).Set(delegatorPower)
			}
		} else {
			continue
		}
		power[d.Delegator] = new(big.Int).Sub(delegatorPower, amount)
		delegateePower, ok := power[d.Delegatee]
		if !ok {
			delegateePower = big.NewInt(0)
		}
		power[d.Delegatee] = new(big.Int).Add(delegateePower, amount)
	}
	return power
}

// EligiblePowerAt resolves eligible power as of a proposal's voting-start
// reference time: only delegations effective on or before that time count.
func EligiblePowerAt(holders []model.HolderBalance, delegations []model.Delegation, reference model.Proposal) map[model.Address]*big.Int {
	return eligiblePower(holders, delegations, func(d model.Delegation) bool {
		return !d.EffectiveFrom.After(reference.VotingStart)
	})
}

func totalPower(power map[model.Address]*big.Int) *big.Int {
	total := big.NewInt(0)
	for _, p := range power {
		total.Add(total, p)
	}
	return total
}

// Turnout computes the fraction of eligible power cast on proposal p,
// per spec.md §4.6.
func Turnout(p model.Proposal, votes []model.Vote, eligible map[model.Address]*big.Int) float64 {
	total := totalPower(eligible)
	if total.Sign() == 0 {
		return 0
	}
	cast := big.NewInt(0)
	for _, v := range votes {
		if v.ProposalID != p.ID {
			continue
		}
		cast.Add(cast, v.Power)
	}
	castF, _ := new(big.Float).SetInt(cast).Float64()
	totalF, _ := new(big.Float).SetInt(total).Float64()
	return castF / totalF
}

// OverallTurnout is the power-weighted mean of per-proposal turnout across
// proposals, using each proposal's own eligible power total as its weight
// (spec.md §4.6: "power-weighted mean of per-proposal turnout").
func OverallTurnout(turnouts []ProposalTurnout, weights []float64) float64 {
	if len(turnouts) == 0 || len(turnouts) != len(weights) {
		return 0
	}
	values := make([]float64, len(turnouts))
	for i, t := range turnouts {
		values[i] = t.Turnout
	}
	totalWeight := 0.0
	for _, w := range weights {
		totalWeight += w
	}
	if totalWeight == 0 {
		return stat.Mean(values, nil)
	}
	return stat.Mean(values, weights)
}

// Bucket is a holding-size segment boundary, expressed as [LowerBound,
// UpperBound) base units; UpperBound == nil means unbounded above.
type Bucket struct {
	Name       string
	LowerBound *big.Int
	UpperBound *big.Int
}

// DefaultBuckets are the holding-size decades spec.md §4.6 gives as an
// example: ≤1, 1-10, 10-100, 100-1k, 1k-10k, >10k.
func DefaultBuckets() []Bucket {
	return []Bucket{
		{Name: "<=1", LowerBound: big.NewInt(0), UpperBound: big.NewInt(2)},
		{Name: "1-10", LowerBound: big.NewInt(2), UpperBound: big.NewInt(10)},
		{Name: "10-100", LowerBound: big.NewInt(10), UpperBound: big.NewInt(100)},
		{Name: "100-1k", LowerBound: big.NewInt(100), UpperBound: big.NewInt(1000)},
		{Name: "1k-10k", LowerBound: big.NewInt(1000), UpperBound: big.NewInt(10000)},
		{Name: ">10k", LowerBound: big.NewInt(10000), UpperBound: nil},
	}
}

func (b Bucket) contains(balance *big.Int) bool {
	if balance.Cmp(b.LowerBound) < 0 {
		return false
	}
	if b.UpperBound != nil && balance.Cmp(b.UpperBound) >= 0 {
		return false
	}
	return true
}

// BucketReport summarizes one holding-size segment's participation.
type BucketReport struct {
	Bucket           Bucket
	VoterCount       int
	EligibleCount    int
	ParticipationRate float64
	CastPowerShare   float64
}

// Segmentation buckets holders by size and reports, per bucket, voter
// count, participation rate, and cast power share (spec.md §4.6).
func Segmentation(holders []model.HolderBalance, votes []model.Vote, buckets []Bucket) []BucketReport {
	voted := make(map[model.Address]struct{}, len(votes))
	castPowerByVoter := make(map[model.Address]*big.Int, len(votes))
	var totalCast big.Int
	for _, v := range votes {
		voted[v.Voter] = struct{}{}
		existing, ok := castPowerByVoter[v.Voter]
		if !ok {
			existing = big.NewInt(0)
		}
		existing.Add(existing, v.Power)
		castPowerByVoter[v.Voter] = existing
		totalCast.Add(&totalCast, v.Power)
	}

	reports := make([]BucketReport, len(buckets))
	for i, b := range buckets {
		reports[i].Bucket = b
		var castInBucket big.Int
		for _, h := range holders {
			if !b.contains(h.Balance) {
				continue
			}
			reports[i].EligibleCount++
			if _, ok := voted[h.Address]; ok {
				reports[i].VoterCount++
				if power, ok := castPowerByVoter[h.Address]; ok {
					castInBucket.Add(&castInBucket, power)
				}
			}
		}
		if reports[i].EligibleCount > 0 {
			reports[i].ParticipationRate = float64(reports[i].VoterCount) / float64(reports[i].EligibleCount)
		}
		if totalCast.Sign() > 0 {
			castF, _ := new(big.Float).SetInt(&castInBucket).Float64()
			totalF, _ := new(big.Float).SetInt(&totalCast).Float64()
			reports[i].CastPowerShare = castF / totalF
		}
	}
	return reports
}

// WhaleAgreement reports, for one top-K holder, per-proposal agreement with
// the winning outcome and aggregate influence (spec.md §4.6).
type WhaleAgreement struct {
	Address          model.Address
	ProposalsVoted   int
	AgreementCount   int
	AgreementRate    float64
	InfluenceShare   float64
}

func winningChoice(p model.Proposal) model.VoteChoice {
	if p.Tallies.For.Cmp(p.Tallies.Against) >= 0 {
		return model.VoteChoiceFor
	}
	return model.VoteChoiceAgainst
}

// WhaleBehavior reports agreement-with-outcome and aggregate influence for
// the top-K holders by balance.
func WhaleBehavior(holders []model.HolderBalance, proposals []model.Proposal, votes []model.Vote, topK int) []WhaleAgreement {
	sorted := make([]model.HolderBalance, len(holders))
	copy(sorted, holders)
	sort.Slice(sorted, func(i, j int) bool {
		c := sorted[i].Balance.Cmp(sorted[j].Balance)
		if c != 0 {
			return c > 0
		}
		return sorted[i].Address.Less(sorted[j].Address)
	})
	if topK > len(sorted) {
		topK = len(sorted)
	}
	whales := sorted[:topK]

	winners := make(map[string]model.VoteChoice, len(proposals))
	winningSidePower := make(map[string]*big.Int, len(proposals))
	for _, p := range proposals {
		winners[p.ID] = winningChoice(p)
		if winners[p.ID] == model.VoteChoiceFor {
			winningSidePower[p.ID] = p.Tallies.For
		} else {
			winningSidePower[p.ID] = p.Tallies.Against
		}
	}

	votesByVoter := make(map[model.Address][]model.Vote, len(votes))
	for _, v := range votes {
		votesByVoter[v.Voter] = append(votesByVoter[v.Voter], v)
	}

	out := make([]WhaleAgreement, 0, len(whales))
	for _, h := range whales {
		agreement := WhaleAgreement{Address: h.Address}
		var influencePower big.Int
		for _, v := range votesByVoter[h.Address] {
			winner, ok := winners[v.ProposalID]
			if !ok {
				continue
			}
			agreement.ProposalsVoted++
			if v.Choice == winner {
				agreement.AgreementCount++
				influencePower.Add(&influencePower, v.Power)
			}
		}
		if agreement.ProposalsVoted > 0 {
			agreement.AgreementRate = float64(agreement.AgreementCount) / float64(agreement.ProposalsVoted)
		}
		var totalWinningPower big.Int
		for _, p := range winningSidePower {
			totalWinningPower.Add(&totalWinningPower, p)
		}
		if totalWinningPower.Sign() > 0 {
			influenceF, _ := new(big.Float).SetInt(&influencePower).Float64()
			totalF, _ := new(big.Float).SetInt(&totalWinningPower).Float64()
			agreement.InfluenceShare = influenceF / totalF
		}
		out = append(out, agreement)
	}
	return out
}
