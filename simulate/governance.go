package simulate

import (
	"fmt"
	"math"
	"math/big"
	"math/rand"
	"time"

	"govanalytics/model"
)

// ChoiceRates gives the base rate (probability) of each ballot choice,
// summing to 1, used to bias synthetic vote sampling per protocol.
type ChoiceRates struct {
	For     float64
	Against float64
	Abstain float64
}

func (r ChoiceRates) normalized() ChoiceRates {
	total := r.For + r.Against + r.Abstain
	if total <= 0 {
		return ChoiceRates{For: 1.0 / 3, Against: 1.0 / 3, Abstain: 1.0 / 3}
	}
	return ChoiceRates{For: r.For / total, Against: r.Against / total, Abstain: r.Abstain / total}
}

func (r ChoiceRates) sample(rng *rand.Rand) model.VoteChoice {
	norm := r.normalized()
	x := rng.Float64()
	if x < norm.For {
		return model.VoteChoiceFor
	}
	if x < norm.For+norm.Against {
		return model.VoteChoiceAgainst
	}
	return model.VoteChoiceAbstain
}

// poisson draws a single sample from a Poisson distribution with mean
// lambda using Knuth's algorithm.
func poisson(rng *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		k++
		p *= rng.Float64()
		if p <= l {
			return k - 1
		}
	}
}

// Governance generates a synthetic set of proposals and votes over holders,
// deterministic under seed. meanProposals parameterizes the Poisson draw for
// proposal count; rates biases ballot sampling (spec.md §4.4: "Governance
// data is simulated by drawing a proposal count from a Poisson process,
// assigning each proposal a random subset of voters weighted by holding,
// and sampling choices with protocol-specific base rates").
func Governance(protocolID string, holders []model.HolderBalance, reference time.Time, meanProposals float64, rates ChoiceRates, seed int64) ([]model.Proposal, []model.Vote, error) {
	if len(holders) == 0 {
		return nil, nil, fmt.Errorf("simulate governance: no holders supplied")
	}
	rng := rand.New(rand.NewSource(seed))
	count := poisson(rng, meanProposals)
	if count == 0 {
		count = 1
	}

	totalPower := big.NewInt(0)
	for _, h := range holders {
		totalPower.Add(totalPower, h.Balance)
	}

	proposals := make([]model.Proposal, 0, count)
	var votes []model.Vote
	for i := 0; i < count; i++ {
		start := reference.Add(-time.Duration(i+1) * 7 * 24 * time.Hour)
		end := start.Add(5 * 24 * time.Hour)
		id := fmt.Sprintf("sim-%d", i+1)

		voterCount := 1 + rng.Intn(len(holders))
		chosen := weightedSampleWithoutReplacement(rng, holders, voterCount)

		tallies := model.Tallies{For: big.NewInt(0), Against: big.NewInt(0), Abstain: big.NewInt(0)}
		for _, h := range chosen {
			choice := rates.sample(rng)
			votes = append(votes, model.Vote{
				ProposalID: id,
				Voter:      h.Address,
				Choice:     choice,
				Power:      new(big.Int).Set(h.Balance),
				CastAt:     start.Add(time.Duration(rng.Intn(4)) * 24 * time.Hour),
			})
			switch choice {
			case model.VoteChoiceFor:
				tallies.For.Add(tallies.For, h.Balance)
			case model.VoteChoiceAgainst:
				tallies.Against.Add(tallies.Against, h.Balance)
			case model.VoteChoiceAbstain:
				tallies.Abstain.Add(tallies.Abstain, h.Balance)
			}
		}

		status := model.ProposalStatusDefeated
		if tallies.For.Cmp(tallies.Against) > 0 {
			status = model.ProposalStatusSucceeded
		}
		quorum := new(big.Int).Div(totalPower, big.NewInt(20))
		proposals = append(proposals, model.Proposal{
			ProtocolID:  protocolID,
			ID:          id,
			Proposer:    holders[rng.Intn(len(holders))].Address,
			CreatedAt:   start.Add(-24 * time.Hour),
			VotingStart: start,
			VotingEnd:   end,
			Status:      status,
			Quorum:      quorum,
			Tallies:     tallies,
		})
	}
	return proposals, votes, nil
}

// weightedSampleWithoutReplacement draws k holders, biased by balance, using
// an accumulate-and-reshuffle selection with no repeats.
func weightedSampleWithoutReplacement(rng *rand.Rand, holders []model.HolderBalance, k int) []model.HolderBalance {
	if k >= len(holders) {
		out := make([]model.HolderBalance, len(holders))
		copy(out, holders)
		return out
	}
	pool := make([]model.HolderBalance, len(holders))
	copy(pool, holders)
	weights := make([]float64, len(pool))
	var total float64
	for i, h := range pool {
		w := holderWeight(h)
		weights[i] = w
		total += w
	}
	out := make([]model.HolderBalance, 0, k)
	for len(out) < k && len(pool) > 0 {
		target := rng.Float64() * total
		var cum float64
		idx := len(pool) - 1
		for i, w := range weights {
			cum += w
			if target <= cum {
				idx = i
				break
			}
		}
		out = append(out, pool[idx])
		total -= weights[idx]
		pool = append(pool[:idx], pool[idx+1:]...)
		weights = append(weights[:idx], weights[idx+1:]...)
	}
	return out
}

func holderWeight(h model.HolderBalance) float64 {
	f := new(big.Float).SetInt(h.Balance)
	v, _ := f.Float64()
	if v <= 0 {
		return 1e-9
	}
	return v
}
