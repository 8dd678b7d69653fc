package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govanalytics/errs"
	"govanalytics/model"
	"govanalytics/providers"
)

func validProposal(id string) providers.ProposalRecord {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return providers.ProposalRecord{
		ProtocolID:   "proto",
		ID:           id,
		Proposer:     "0x1111111111111111111111111111111111111111",
		CreatedAt:    now,
		VotingStart:  now,
		VotingEnd:    now.Add(48 * time.Hour),
		Status:       "active",
		Quorum:       "1000",
		ForVotes:     "600",
		AgainstVotes: "100",
		AbstainVotes: "10",
	}
}

func TestProposalsAllValidSurvive(t *testing.T) {
	records := []providers.ProposalRecord{validProposal("p1"), validProposal("p2")}
	res, err := Proposals(records)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Empty(t, res.Warnings)
}

func TestProposalsDropsUnknownStatus(t *testing.T) {
	bad := validProposal("p1")
	bad.Status = "not-a-real-status"
	res, err := Proposals([]providers.ProposalRecord{bad, validProposal("p2"), validProposal("p3"), validProposal("p4"), validProposal("p5")})
	require.NoError(t, err)
	assert.Len(t, res.Records, 4)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "proposal", res.Warnings[0].Kind)
}

func TestProposalsBelowSurvivorThresholdFails(t *testing.T) {
	bad := validProposal("p1")
	bad.Status = "bogus"
	records := []providers.ProposalRecord{bad, bad, bad, validProposal("p4")}
	_, err := Proposals(records)
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestProposalsRejectsEndBeforeStart(t *testing.T) {
	bad := validProposal("p1")
	bad.VotingEnd = bad.VotingStart.Add(-time.Hour)
	records := []providers.ProposalRecord{bad, validProposal("p2"), validProposal("p3"), validProposal("p4"), validProposal("p5")}
	res, err := Proposals(records)
	require.NoError(t, err)
	assert.Len(t, res.Records, 4)
}

func TestVotesRejectsDuplicateVoterPerProposal(t *testing.T) {
	records := []providers.VoteRecord{
		{ProposalID: "p1", Voter: "0x1111111111111111111111111111111111111111", Choice: "for", Power: "100", CastAt: time.Now()},
		{ProposalID: "p1", Voter: "0x1111111111111111111111111111111111111111", Choice: "against", Power: "100", CastAt: time.Now()},
	}
	res, err := Votes(records)
	require.Error(t, err)
	assert.Len(t, res.Records, 1)
	assert.Len(t, res.Warnings, 1)
}

func TestDelegationsRejectsSelfLoop(t *testing.T) {
	addr := "0x2222222222222222222222222222222222222222"
	records := []providers.DelegationRecord{
		{Delegator: addr, Delegatee: addr, EffectiveFrom: time.Now(), Amount: "500"},
	}
	res, err := Delegations(records)
	require.Error(t, err)
	assert.Empty(t, res.Records)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Reason, "self-loop")
}

func TestDelegationsFullFlagSkipsAmountParse(t *testing.T) {
	records := []providers.DelegationRecord{
		{
			Delegator:     "0x1111111111111111111111111111111111111111",
			Delegatee:     "0x2222222222222222222222222222222222222222",
			EffectiveFrom: time.Now(),
			Full:          true,
		},
	}
	res, err := Delegations(records)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].Amount.Full)
	assert.Nil(t, res.Records[0].Amount.Amount)
}

func TestParseAmountRejectsNegative(t *testing.T) {
	_, err := parseAmount("test", "-5")
	require.Error(t, err)
}

func TestModelVoteChoiceRoundTrip(t *testing.T) {
	assert.Equal(t, "for", model.VoteChoiceFor.String())
	assert.Equal(t, model.VoteChoiceFor, choiceByName[model.VoteChoiceFor.String()])
}
