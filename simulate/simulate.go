// Package simulate generates deterministic synthetic holder distributions
// and governance activity, used by the Fetch Coordinator as the terminal
// fallback and by tests, per spec.md §4.4. Seeding follows the teacher's
// test-fixture idiom (tests/e2e/potso_task3_test.go: rand.New(rand.NewSource(seed))).
package simulate

import (
	"fmt"
	"math"
	"math/big"
	"math/rand"
	"sort"

	"govanalytics/model"
)

// Profile names a synthetic holder-distribution shape.
type Profile string

const (
	ProfilePowerLaw          Profile = "power-law"
	ProfileProtocolDominated Profile = "protocol-dominated"
	ProfileCommunity         Profile = "community"
)

// Holders generates n synthetic holder balances under profile, deterministic
// under seed, with sum(balances) <= supply.
func Holders(profile Profile, n int, supply *big.Int, alpha, dominantShare float64, seed int64) ([]model.HolderBalance, error) {
	if n <= 0 {
		return nil, fmt.Errorf("simulate holders: n must be positive, got %d", n)
	}
	if supply == nil || supply.Sign() <= 0 {
		return nil, fmt.Errorf("simulate holders: supply must be positive")
	}
	rng := rand.New(rand.NewSource(seed))
	addrs := syntheticAddresses(rng, n)

	var raw []float64
	switch profile {
	case ProfilePowerLaw:
		raw = powerLawWeights(n, alpha)
	case ProfileProtocolDominated:
		raw = protocolDominatedWeights(rng, n, alpha, dominantShare)
	case ProfileCommunity:
		raw = communityWeights(rng, n)
	default:
		return nil, fmt.Errorf("simulate holders: unknown profile %q", profile)
	}

	balances := rescale(raw, supply)
	holders := make([]model.HolderBalance, n)
	for i := range holders {
		holders[i] = model.HolderBalance{Address: addrs[i], Balance: balances[i]}
	}
	sort.Slice(holders, func(i, j int) bool {
		c := holders[i].Balance.Cmp(holders[j].Balance)
		if c != 0 {
			return c > 0
		}
		return holders[i].Address.Less(holders[j].Address)
	})
	for i := range holders {
		holders[i].Rank = i + 1
	}
	return holders, nil
}

// powerLawWeights computes balance_i = scale · i^(-alpha) for i=1..n, per
// spec.md §4.4. The caller-supplied scale is folded into rescale.
func powerLawWeights(n int, alpha float64) []float64 {
	w := make([]float64, n)
	for i := 1; i <= n; i++ {
		w[i-1] = math.Pow(float64(i), -alpha)
	}
	return w
}

// protocolDominatedWeights assigns 1-3 addresses a configurable majority
// share; the remainder follows power-law (spec.md §4.4).
func protocolDominatedWeights(rng *rand.Rand, n int, alpha, dominantShare float64) []float64 {
	w := make([]float64, n)
	dominantCount := 1 + rng.Intn(3)
	if dominantCount > n {
		dominantCount = n
	}
	remainder := powerLawWeights(n-dominantCount, alpha)
	var remainderSum float64
	for _, v := range remainder {
		remainderSum += v
	}
	if dominantShare <= 0 || dominantShare >= 1 {
		dominantShare = 0.6
	}
	each := dominantShare / float64(dominantCount)
	for i := 0; i < dominantCount; i++ {
		w[i] = each
	}
	remainderShare := 1 - dominantShare
	for i, v := range remainder {
		share := remainderShare
		if remainderSum > 0 {
			share = remainderShare * (v / remainderSum)
		}
		w[dominantCount+i] = share
	}
	return w
}

// communityWeights draws log-normal weights with small variance, yielding
// low concentration (spec.md §4.4).
func communityWeights(rng *rand.Rand, n int) []float64 {
	const sigma = 0.35
	w := make([]float64, n)
	for i := range w {
		w[i] = math.Exp(rng.NormFloat64() * sigma)
	}
	return w
}

// rescale converts relative weights into base-unit balances summing to at
// most supply.
func rescale(weights []float64, supply *big.Int) []*big.Int {
	var total float64
	for _, w := range weights {
		total += w
	}
	out := make([]*big.Int, len(weights))
	supplyF := new(big.Float).SetInt(supply)
	for i, w := range weights {
		share := w / total
		shareF := big.NewFloat(share)
		amount := new(big.Float).Mul(supplyF, shareF)
		intAmount, _ := amount.Int(nil)
		if intAmount.Sign() < 0 {
			intAmount = big.NewInt(0)
		}
		out[i] = intAmount
	}
	return out
}

func syntheticAddresses(rng *rand.Rand, n int) []model.Address {
	addrs := make([]model.Address, n)
	seen := make(map[model.Address]struct{}, n)
	for i := range addrs {
		for {
			var a model.Address
			for j := range a {
				a[j] = byte(rng.Intn(256))
			}
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			addrs[i] = a
			break
		}
	}
	return addrs
}
