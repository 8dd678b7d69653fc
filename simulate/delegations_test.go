package simulate

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govanalytics/model"
)

func TestDelegationsDeterministicUnderSeed(t *testing.T) {
	supply := big.NewInt(1_000_000)
	holders, err := Holders(ProfilePowerLaw, 40, supply, 1.16, 0.6, 9)
	require.NoError(t, err)

	reference := time.Now()
	a, err := Delegations(holders, reference, 77)
	require.NoError(t, err)
	b, err := Delegations(holders, reference, 77)
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Delegator, b[i].Delegator)
		assert.Equal(t, a[i].Delegatee, b[i].Delegatee)
		assert.Equal(t, a[i].Amount.Full, b[i].Amount.Full)
	}
}

func TestDelegationsNoSelfDelegation(t *testing.T) {
	supply := big.NewInt(1_000_000)
	holders, err := Holders(ProfileCommunity, 30, supply, 1.16, 0.6, 3)
	require.NoError(t, err)

	delegations, err := Delegations(holders, time.Now(), 5)
	require.NoError(t, err)
	for _, d := range delegations {
		assert.NotEqual(t, d.Delegator, d.Delegatee)
	}
}

func TestDelegationsPartialAmountNeverExceedsBalance(t *testing.T) {
	supply := big.NewInt(1_000_000)
	holders, err := Holders(ProfilePowerLaw, 40, supply, 1.16, 0.6, 21)
	require.NoError(t, err)
	byAddr := make(map[model.Address]*big.Int, len(holders))
	for _, h := range holders {
		byAddr[h.Address] = h.Balance
	}

	delegations, err := Delegations(holders, time.Now(), 21)
	require.NoError(t, err)
	for _, d := range delegations {
		if d.Amount.Full {
			continue
		}
		require.LessOrEqual(t, d.Amount.Amount.Cmp(byAddr[d.Delegator]), 0)
	}
}

func TestDelegationsRejectsEmptyHolders(t *testing.T) {
	_, err := Delegations(nil, time.Now(), 1)
	require.Error(t, err)
}
