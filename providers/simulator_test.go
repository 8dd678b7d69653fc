package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govanalytics/config"
)

func testSimulatorConfig() config.SimulatorConfig {
	return config.SimulatorConfig{
		Seed:          42,
		Profile:       "power-law",
		HolderCount:   60,
		Supply:        "1000000000000000000000000",
		Alpha:         1.16,
		DominantShare: 0.6,
		MeanProposals: 4,
		ForRate:       0.55,
		AgainstRate:   0.35,
		AbstainRate:   0.10,
	}
}

func TestSimulatorAdapterSourceID(t *testing.T) {
	a := NewSimulatorAdapter(testSimulatorConfig())
	assert.Equal(t, "simulator", a.SourceID())
}

func TestSimulatorAdapterFetchHoldersRespectsLimit(t *testing.T) {
	a := NewSimulatorAdapter(testSimulatorConfig())
	page, err := a.FetchHolders(context.Background(), "proto", 10, "")
	require.NoError(t, err)
	assert.Len(t, page.Holders, 10)
}

func TestSimulatorAdapterFetchHoldersDeterministicPerProtocol(t *testing.T) {
	a := NewSimulatorAdapter(testSimulatorConfig())
	first, err := a.FetchHolders(context.Background(), "alpha", 0, "")
	require.NoError(t, err)
	second, err := a.FetchHolders(context.Background(), "alpha", 0, "")
	require.NoError(t, err)
	require.Equal(t, len(first.Holders), len(second.Holders))
	for i := range first.Holders {
		assert.Equal(t, first.Holders[i].Address, second.Holders[i].Address)
		assert.Equal(t, first.Holders[i].Balance.String(), second.Holders[i].Balance.String())
	}

	other, err := a.FetchHolders(context.Background(), "beta", 0, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Holders[0].Address, other.Holders[0].Address)
}

func TestSimulatorAdapterFetchProposalsAndVotes(t *testing.T) {
	a := NewSimulatorAdapter(testSimulatorConfig())
	until := time.Now().UTC()
	since := until.AddDate(-1, 0, 0)
	proposals, err := a.FetchProposals(context.Background(), "proto", since, until)
	require.NoError(t, err)
	require.NotEmpty(t, proposals)

	votes, err := a.FetchVotes(context.Background(), "proto", proposals[0].ID)
	require.NoError(t, err)
	for _, v := range votes {
		assert.Equal(t, proposals[0].ID, v.ProposalID)
	}
}

func TestSimulatorAdapterFetchDelegations(t *testing.T) {
	a := NewSimulatorAdapter(testSimulatorConfig())
	until := time.Now().UTC()
	since := until.AddDate(-1, 0, 0)
	delegations, err := a.FetchDelegations(context.Background(), "proto", since, until)
	require.NoError(t, err)
	for _, d := range delegations {
		assert.NotEmpty(t, d.Delegator)
		assert.NotEmpty(t, d.Delegatee)
	}
}

func TestSimulatorAdapterRejectsCancelledContext(t *testing.T) {
	a := NewSimulatorAdapter(testSimulatorConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.FetchHolders(ctx, "proto", 10, "")
	require.Error(t, err)
}

func TestSimulatorAdapterInvalidSupply(t *testing.T) {
	cfg := testSimulatorConfig()
	cfg.Supply = "not-a-number"
	a := NewSimulatorAdapter(cfg)
	_, err := a.FetchHolders(context.Background(), "proto", 10, "")
	require.Error(t, err)
}
