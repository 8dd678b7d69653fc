package blocks

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govanalytics/model"
)

func voter(b byte) model.Address {
	var a model.Address
	a[19] = b
	return a
}

// TestDiscoverSeparatesTwoBlocks reproduces spec.md §8's scenario 3: six
// voters A-F across 10 proposals, where {A,B,C} vote identically on 9 of
// 10 shared proposals and {D,E} identically on 8 of 10, while F votes
// uncorrelated. With min_overlap=3 and similarity_threshold=0.8 this must
// yield exactly two blocks, {A,B,C} and {D,E}, ordered by descending
// aggregate power (unit stakes here, so 3 for {A,B,C} ahead of 2 for {D,E}).
func TestDiscoverSeparatesTwoBlocks(t *testing.T) {
	a, b, c, d, e, f := voter(1), voter(2), voter(3), voter(4), voter(5), voter(6)

	var votes []model.Vote
	choices := []model.VoteChoice{model.VoteChoiceFor, model.VoteChoiceAgainst}
	for i := 0; i < 10; i++ {
		proposalID := proposalName(i)
		abcChoice := choices[i%2]
		// A, B, C agree on 9 of 10; on proposal index 9, C defects.
		cChoice := abcChoice
		if i == 9 {
			cChoice = otherChoice(abcChoice)
		}
		votes = append(votes,
			model.Vote{ProposalID: proposalID, Voter: a, Choice: abcChoice, Power: big.NewInt(1)},
			model.Vote{ProposalID: proposalID, Voter: b, Choice: abcChoice, Power: big.NewInt(1)},
			model.Vote{ProposalID: proposalID, Voter: c, Choice: cChoice, Power: big.NewInt(1)},
		)
		// D, E agree on 8 of 10; on proposal indices 0 and 5, E defects.
		deChoice := choices[(i+1)%2]
		eChoice := deChoice
		if i == 0 || i == 5 {
			eChoice = otherChoice(deChoice)
		}
		votes = append(votes,
			model.Vote{ProposalID: proposalID, Voter: d, Choice: deChoice, Power: big.NewInt(1)},
			model.Vote{ProposalID: proposalID, Voter: e, Choice: eChoice, Power: big.NewInt(1)},
		)
		// F votes on a different period than everyone else, so it agrees with
		// A/B/C and D/E on only about half of proposals — below threshold for
		// either block.
		fChoice := choices[(i/2)%2]
		votes = append(votes, model.Vote{ProposalID: proposalID, Voter: f, Choice: fChoice, Power: big.NewInt(1)})
	}

	cfg := Config{MinOverlap: 3, SimilarityThreshold: 0.8}
	power := func(model.Address) *big.Int { return big.NewInt(1) }
	found := Discover(votes, power, cfg)

	require.Len(t, found, 2)
	assert.ElementsMatch(t, []model.Address{a, b, c}, found[0].Members)
	assert.ElementsMatch(t, []model.Address{d, e}, found[1].Members)
}

func TestDiscoverEmptyVotesYieldsNoBlocks(t *testing.T) {
	cfg := Config{MinOverlap: 3, SimilarityThreshold: 0.8}
	found := Discover(nil, func(model.Address) *big.Int { return big.NewInt(0) }, cfg)
	assert.Nil(t, found)
}

func TestDiscoverBelowMinOverlapExcluded(t *testing.T) {
	a, b := voter(1), voter(2)
	votes := []model.Vote{
		{ProposalID: "p1", Voter: a, Choice: model.VoteChoiceFor, Power: big.NewInt(1)},
		{ProposalID: "p1", Voter: b, Choice: model.VoteChoiceFor, Power: big.NewInt(1)},
		{ProposalID: "p2", Voter: a, Choice: model.VoteChoiceFor, Power: big.NewInt(1)},
		{ProposalID: "p2", Voter: b, Choice: model.VoteChoiceFor, Power: big.NewInt(1)},
	}
	cfg := Config{MinOverlap: 3, SimilarityThreshold: 0.8}
	found := Discover(votes, func(model.Address) *big.Int { return big.NewInt(1) }, cfg)
	assert.Nil(t, found)
}

func TestDiscoverOrdersByDescendingPower(t *testing.T) {
	a, b, c, d := voter(1), voter(2), voter(3), voter(4)
	var votes []model.Vote
	for i := 0; i < 3; i++ {
		proposalID := proposalName(i)
		votes = append(votes,
			model.Vote{ProposalID: proposalID, Voter: a, Choice: model.VoteChoiceFor, Power: big.NewInt(1)},
			model.Vote{ProposalID: proposalID, Voter: b, Choice: model.VoteChoiceFor, Power: big.NewInt(1)},
			model.Vote{ProposalID: proposalID, Voter: c, Choice: model.VoteChoiceAgainst, Power: big.NewInt(1)},
			model.Vote{ProposalID: proposalID, Voter: d, Choice: model.VoteChoiceAgainst, Power: big.NewInt(1)},
		)
	}
	cfg := Config{MinOverlap: 3, SimilarityThreshold: 0.8}
	power := map[model.Address]int64{a: 10, b: 10, c: 1000, d: 1000}
	found := Discover(votes, func(addr model.Address) *big.Int { return big.NewInt(power[addr]) }, cfg)
	require.Len(t, found, 2)
	assert.ElementsMatch(t, []model.Address{c, d}, found[0].Members)
	assert.ElementsMatch(t, []model.Address{a, b}, found[1].Members)
}

func TestCoordinatedVotingFlagsIdenticalBlock(t *testing.T) {
	a, b, c := voter(1), voter(2), voter(3)
	var votes []model.Vote
	for i := 0; i < 5; i++ {
		proposalID := proposalName(i)
		votes = append(votes,
			model.Vote{ProposalID: proposalID, Voter: a, Choice: model.VoteChoiceFor, Power: big.NewInt(1)},
			model.Vote{ProposalID: proposalID, Voter: b, Choice: model.VoteChoiceFor, Power: big.NewInt(1)},
			model.Vote{ProposalID: proposalID, Voter: c, Choice: model.VoteChoiceFor, Power: big.NewInt(1)},
		)
	}
	blocksFound := []model.VotingBlock{{Members: []model.Address{a, b, c}, Power: big.NewInt(3)}}
	anomalies := CoordinatedVoting(blocksFound, votes)
	require.Len(t, anomalies, 1)
	assert.Equal(t, AnomalyCoordinatedVoting, anomalies[0].Kind)
}

func TestWhaleVsOutcomeFlagsLosingWhales(t *testing.T) {
	whale := voter(1)
	holders := []model.HolderBalance{{Address: whale, Balance: big.NewInt(1000)}}
	proposals := []model.Proposal{
		{ID: "p1", Tallies: model.Tallies{For: big.NewInt(1), Against: big.NewInt(1000)}},
	}
	votes := []model.Vote{
		{ProposalID: "p1", Voter: whale, Choice: model.VoteChoiceFor, Power: big.NewInt(1000)},
	}
	anomalies := WhaleVsOutcome(holders, proposals, votes, 1)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "p1", anomalies[0].ProposalID)
}

func TestPowerVsOutcomeFlagsContradiction(t *testing.T) {
	proposals := []model.Proposal{
		{ID: "p1", Status: model.ProposalStatusDefeated, Tallies: model.Tallies{For: big.NewInt(1000), Against: big.NewInt(1)}},
	}
	anomalies := PowerVsOutcome(proposals)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "p1", anomalies[0].ProposalID)
}

func TestParticipationSpikeFlagsOutlier(t *testing.T) {
	series := []ProposalTurnoutSeries{
		{ProposalID: "p1", Turnout: 0.1},
		{ProposalID: "p2", Turnout: 0.12},
		{ProposalID: "p3", Turnout: 0.11},
		{ProposalID: "p4", Turnout: 0.13},
		{ProposalID: "p5", Turnout: 0.9},
	}
	anomalies := ParticipationSpike(series, 4)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "p5", anomalies[0].ProposalID)
}

func proposalName(i int) string {
	return "p" + string(rune('0'+i))
}

func otherChoice(c model.VoteChoice) model.VoteChoice {
	if c == model.VoteChoiceFor {
		return model.VoteChoiceAgainst
	}
	return model.VoteChoiceFor
}
