package blocks

import (
	"math/big"
	"sort"

	"gonum.org/v1/gonum/stat"

	"govanalytics/model"
)

// AnomalyKind is the closed set of anomaly categories spec.md §4.7 defines.
type AnomalyKind string

const (
	AnomalyCoordinatedVoting  AnomalyKind = "coordinated_voting"
	AnomalyWhaleVsOutcome     AnomalyKind = "whale_vs_outcome"
	AnomalyPowerVsOutcome     AnomalyKind = "power_vs_outcome"
	AnomalyParticipationSpike AnomalyKind = "participation_spike"
)

// Anomaly is one flagged anomalous pattern. Severity is a detector-specific
// numeric score for sorting (spec.md §4.7); rendering a human-readable
// explanation from Kind/Severity is a presentation concern, not this
// package's.
type Anomaly struct {
	Kind       AnomalyKind
	ProposalID string
	Severity   float64
	Members    []model.Address
}

// CoordinatedVoting flags blocks of at least 3 members voting identically
// on at least 90% of the proposals they share (spec.md §4.7).
func CoordinatedVoting(blocksFound []model.VotingBlock, votes []model.Vote) []Anomaly {
	const minBlockSize = 3
	const minIdenticalShare = 0.9

	choicesByVoter := make(map[model.Address]map[string]model.VoteChoice)
	for _, v := range votes {
		m, ok := choicesByVoter[v.Voter]
		if !ok {
			m = make(map[string]model.VoteChoice)
			choicesByVoter[v.Voter] = m
		}
		m[v.ProposalID] = v.Choice
	}

	var out []Anomaly
	for _, b := range blocksFound {
		if len(b.Members) < minBlockSize {
			continue
		}
		shared := sharedProposals(b.Members, choicesByVoter)
		if len(shared) == 0 {
			continue
		}
		identical := 0
		for _, proposalID := range shared {
			choice := choicesByVoter[b.Members[0]][proposalID]
			allMatch := true
			for _, m := range b.Members[1:] {
				if choicesByVoter[m][proposalID] != choice {
					allMatch = false
					break
				}
			}
			if allMatch {
				identical++
			}
		}
		share := float64(identical) / float64(len(shared))
		if share >= minIdenticalShare {
			out = append(out, Anomaly{
				Kind:     AnomalyCoordinatedVoting,
				Severity: share,
				Members:  b.Members,
			})
		}
	}
	return out
}

func sharedProposals(members []model.Address, choicesByVoter map[model.Address]map[string]model.VoteChoice) []string {
	if len(members) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, m := range members {
		for proposalID := range choicesByVoter[m] {
			counts[proposalID]++
		}
	}
	var shared []string
	for proposalID, c := range counts {
		if c == len(members) {
			shared = append(shared, proposalID)
		}
	}
	sort.Strings(shared)
	return shared
}

// WhaleVsOutcome flags proposals where the top-K holders by balance, as a
// group, cast at least 80% of their participating power on the losing side
// (spec.md §4.7).
func WhaleVsOutcome(holders []model.HolderBalance, proposals []model.Proposal, votes []model.Vote, topK int) []Anomaly {
	const losingShareThreshold = 0.8

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
	whaleSet := make(map[model.Address]struct{}, topK)
	for _, h := range sorted[:topK] {
		whaleSet[h.Address] = struct{}{}
	}

	votesByProposal := make(map[string][]model.Vote)
	for _, v := range votes {
		votesByProposal[v.ProposalID] = append(votesByProposal[v.ProposalID], v)
	}

	var out []Anomaly
	for _, p := range proposals {
		winner := winningChoiceOf(p)
		var whalePower, whaleLosingPower big.Int
		for _, v := range votesByProposal[p.ID] {
			if _, ok := whaleSet[v.Voter]; !ok {
				continue
			}
			whalePower.Add(&whalePower, v.Power)
			if v.Choice != winner {
				whaleLosingPower.Add(&whaleLosingPower, v.Power)
			}
		}
		if whalePower.Sign() == 0 {
			continue
		}
		whaleF, _ := new(big.Float).SetInt(&whalePower).Float64()
		losingF, _ := new(big.Float).SetInt(&whaleLosingPower).Float64()
		losingShare := losingF / whaleF
		if losingShare >= losingShareThreshold {
			out = append(out, Anomaly{
				Kind:       AnomalyWhaleVsOutcome,
				ProposalID: p.ID,
				Severity:   losingShare,
			})
		}
	}
	return out
}

func winningChoiceOf(p model.Proposal) model.VoteChoice {
	if p.Tallies.For.Cmp(p.Tallies.Against) >= 0 {
		return model.VoteChoiceFor
	}
	return model.VoteChoiceAgainst
}

// powerMargin is the cast-power majority's margin as a fraction of for+against
// power, used as PowerVsOutcome's severity: a wider margin makes a status
// contradiction more flagrant.
func powerMargin(p model.Proposal) float64 {
	total := new(big.Int).Add(p.Tallies.For, p.Tallies.Against)
	if total.Sign() == 0 {
		return 0
	}
	diff := new(big.Int).Sub(p.Tallies.For, p.Tallies.Against)
	diff.Abs(diff)
	diffF, _ := new(big.Float).SetInt(diff).Float64()
	totalF, _ := new(big.Float).SetInt(total).Float64()
	return diffF / totalF
}

// PowerVsOutcome flags decided proposals (succeeded, executed or defeated)
// whose recorded outcome contradicts the side holding the majority of cast
// For/Against power (spec.md §4.7). Undecided proposals and For/Against ties
// have no contradiction to report and are skipped.
func PowerVsOutcome(proposals []model.Proposal) []Anomaly {
	var out []Anomaly
	for _, p := range proposals {
		succeeded := p.Status == model.ProposalStatusSucceeded || p.Status == model.ProposalStatusExecuted
		if !succeeded && p.Status != model.ProposalStatusDefeated {
			continue
		}
		if p.Tallies.For.Cmp(p.Tallies.Against) == 0 {
			continue
		}
		majority := winningChoiceOf(p)
		majorityFor := majority == model.VoteChoiceFor
		if succeeded != majorityFor {
			out = append(out, Anomaly{
				Kind:       AnomalyPowerVsOutcome,
				ProposalID: p.ID,
				Severity:   powerMargin(p),
			})
		}
	}
	return out
}

// ParticipationSpike flags proposals whose turnout exceeds the trailing
// window's mean by more than 3 standard deviations (spec.md §4.7).
func ParticipationSpike(turnouts []ProposalTurnoutSeries, window int) []Anomaly {
	const sigmaThreshold = 3.0

	var out []Anomaly
	for i, t := range turnouts {
		start := i - window
		if start < 0 {
			start = 0
		}
		trailing := turnouts[start:i]
		if len(trailing) < 2 {
			continue
		}
		values := make([]float64, len(trailing))
		for j, tr := range trailing {
			values[j] = tr.Turnout
		}
		mean, std := stat.MeanStdDev(values, nil)
		if std == 0 {
			continue
		}
		if t.Turnout > mean+sigmaThreshold*std {
			out = append(out, Anomaly{
				Kind:       AnomalyParticipationSpike,
				ProposalID: t.ProposalID,
				Severity:   (t.Turnout - mean) / std,
			})
		}
	}
	return out
}

// ProposalTurnoutSeries is one proposal's turnout, ordered chronologically,
// as fed to ParticipationSpike.
type ProposalTurnoutSeries struct {
	ProposalID string
	Turnout    float64
}
