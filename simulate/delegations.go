package simulate

import (
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"govanalytics/model"
)

// Delegations generates a small set of synthetic delegation edges among
// holders, deterministic under seed. This supplements spec.md §4.4's
// holder/governance generators so the simulator adapter can answer every
// fetch kind the real provider adapters answer (spec.md §6 supplemented
// features).
func Delegations(holders []model.HolderBalance, reference time.Time, seed int64) ([]model.Delegation, error) {
	if len(holders) == 0 {
		return nil, fmt.Errorf("simulate delegations: no holders supplied")
	}
	rng := rand.New(rand.NewSource(seed))
	count := len(holders) / 10
	if count == 0 && len(holders) >= 2 {
		count = 1
	}

	var delegations []model.Delegation
	delegated := make(map[model.Address]struct{}, count)
	for i := 0; i < count; i++ {
		delegator := holders[rng.Intn(len(holders))]
		if _, already := delegated[delegator.Address]; already {
			continue
		}
		delegatee := holders[rng.Intn(len(holders))]
		if delegatee.Address == delegator.Address {
			continue
		}
		full := rng.Float64() < 0.5
		amount := model.DelegationAmount{Full: full}
		if !full {
			half := new(big.Int).Div(delegator.Balance, big.NewInt(2))
			amount.Amount = half
		}
		delegations = append(delegations, model.Delegation{
			Delegator:     delegator.Address,
			Delegatee:     delegatee.Address,
			EffectiveFrom: reference.Add(-time.Duration(1+rng.Intn(30)) * 24 * time.Hour),
			Amount:        amount,
		})
		delegated[delegator.Address] = struct{}{}
	}
	return delegations, nil
}
