// Package concentration computes token-holder concentration metrics over a
// sorted slice of balances, per spec.md §4.5. All functions are pure and
// return defined sentinel values on degenerate input rather than erroring.
package concentration

import (
	"math/big"
	"sort"
)

// Ascending returns a copy of balances sorted ascending, the orientation
// Gini expects (HHI does not depend on order).
func Ascending(balances []*big.Int) []*big.Int {
	out := make([]*big.Int, len(balances))
	copy(out, balances)
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// Descending returns a copy of balances sorted descending, the orientation
// Nakamoto and TopNShare expect.
func Descending(balances []*big.Int) []*big.Int {
	out := make([]*big.Int, len(balances))
	copy(out, balances)
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) > 0 })
	return out
}

func sum(balances []*big.Int) *big.Int {
	total := big.NewInt(0)
	for _, b := range balances {
		total.Add(total, b)
	}
	return total
}

// Gini computes the Gini coefficient over ascending balances b_1<=...<=b_n
// with total T: G = (2*sum(i*b_i))/(n*T) - (n+1)/n. Returns 0 for n<=1 or
// T=0 (spec.md §4.5).
func Gini(ascending []*big.Int) float64 {
	n := len(ascending)
	if n <= 1 {
		return 0
	}
	total := sum(ascending)
	if total.Sign() == 0 {
		return 0
	}
	weighted := new(big.Float)
	for i, b := range ascending {
		term := new(big.Float).Mul(big.NewFloat(float64(i+1)), new(big.Float).SetInt(b))
		weighted.Add(weighted, term)
	}
	numerator := new(big.Float).Mul(big.NewFloat(2), weighted)
	denominator := new(big.Float).Mul(big.NewFloat(float64(n)), new(big.Float).SetInt(total))
	ratio, _ := new(big.Float).Quo(numerator, denominator).Float64()
	return ratio - float64(n+1)/float64(n)
}

// HHI computes the Herfindahl-Hirschman index, scaled by 10,000: sum((b_i/T)^2)*10000.
func HHI(balances []*big.Int) float64 {
	total := sum(balances)
	if total.Sign() == 0 {
		return 0
	}
	totalF, _ := new(big.Float).SetInt(total).Float64()
	var acc float64
	for _, b := range balances {
		bf, _ := new(big.Float).SetInt(b).Float64()
		share := bf / totalF
		acc += share * share
	}
	return acc * 10000
}

// Nakamoto returns the smallest k such that the sum of the top k balances
// exceeds T/2. descending must be sorted descending. Returns 0 when T=0 or
// the slice is empty.
func Nakamoto(descending []*big.Int) int {
	total := sum(descending)
	if total.Sign() == 0 || len(descending) == 0 {
		return 0
	}
	// Compare 2*running against total rather than running against total/2
	// to avoid an off-by-half-unit truncation bias for odd totals.
	running := big.NewInt(0)
	for i, b := range descending {
		running.Add(running, b)
		doubled := new(big.Int).Lsh(running, 1)
		if doubled.Cmp(total) > 0 {
			return i + 1
		}
	}
	return len(descending)
}

// Palma returns the ratio of the top-10% share to the bottom-40% share.
// ok is false when the bottom-40% share is 0 (undefined per spec.md §4.5).
func Palma(descending []*big.Int) (ratio float64, ok bool) {
	n := len(descending)
	if n == 0 {
		return 0, false
	}
	total := sum(descending)
	if total.Sign() == 0 {
		return 0, false
	}
	topCount := n * 10 / 100
	bottomCount := n * 40 / 100
	if topCount == 0 || bottomCount == 0 {
		return 0, false
	}
	topSum := sum(descending[:topCount])
	bottomSum := sum(descending[n-bottomCount:])
	if bottomSum.Sign() == 0 {
		return 0, false
	}
	totalF, _ := new(big.Float).SetInt(total).Float64()
	topF, _ := new(big.Float).SetInt(topSum).Float64()
	bottomF, _ := new(big.Float).SetInt(bottomSum).Float64()
	topShare := topF / totalF
	bottomShare := bottomF / totalF
	return topShare / bottomShare, true
}

// TopNShare returns sum(top n balances)/T for each n in ns. Missing
// (n > len(descending)) entries use all available balances.
func TopNShare(descending []*big.Int, ns []int) map[int]float64 {
	total := sum(descending)
	out := make(map[int]float64, len(ns))
	if total.Sign() == 0 {
		for _, n := range ns {
			out[n] = 0
		}
		return out
	}
	totalF, _ := new(big.Float).SetInt(total).Float64()
	for _, n := range ns {
		k := n
		if k > len(descending) {
			k = len(descending)
		}
		topSum := sum(descending[:k])
		topF, _ := new(big.Float).SetInt(topSum).Float64()
		out[n] = topF / totalF
	}
	return out
}

// LorenzPoint is one sampled (population share, wealth share) pair.
type LorenzPoint struct {
	PopulationShare float64
	WealthShare     float64
}

// LorenzPoints samples the Lorenz curve over ascending balances at
// resolution evenly spaced population shares (spec.md §4.5).
func LorenzPoints(ascending []*big.Int, resolution int) []LorenzPoint {
	n := len(ascending)
	if n == 0 || resolution <= 0 {
		return nil
	}
	total := sum(ascending)
	points := make([]LorenzPoint, 0, resolution+1)
	points = append(points, LorenzPoint{0, 0})
	if total.Sign() == 0 {
		for i := 1; i <= resolution; i++ {
			points = append(points, LorenzPoint{float64(i) / float64(resolution), 0})
		}
		return points
	}
	totalF, _ := new(big.Float).SetInt(total).Float64()
	cum := big.NewInt(0)
	idx := 0
	for i := 1; i <= resolution; i++ {
		popShare := float64(i) / float64(resolution)
		target := int(popShare * float64(n))
		if target > n {
			target = n
		}
		for idx < target {
			cum.Add(cum, ascending[idx])
			idx++
		}
		cumF, _ := new(big.Float).SetInt(cum).Float64()
		points = append(points, LorenzPoint{popShare, cumF / totalF})
	}
	return points
}
