package concentration

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigs(values ...int64) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestGiniSingleHolderIsZero(t *testing.T) {
	asc := Ascending(bigs(200))
	assert.Equal(t, 0.0, Gini(asc))
}

func TestGiniEmptyIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Gini(nil))
}

func TestGiniZeroTotalIsZero(t *testing.T) {
	asc := Ascending(bigs(0, 0, 0))
	assert.Equal(t, 0.0, Gini(asc))
}

func TestGiniWithinUnitInterval(t *testing.T) {
	asc := Ascending(bigs(100, 50, 30, 20))
	g := Gini(asc)
	assert.GreaterOrEqual(t, g, 0.0)
	assert.LessOrEqual(t, g, 1.0)
}

func TestHHISingleHolderIsMax(t *testing.T) {
	assert.Equal(t, 10000.0, HHI(bigs(200)))
}

func TestHHIWithinBounds(t *testing.T) {
	h := HHI(bigs(100, 50, 30, 20))
	assert.GreaterOrEqual(t, h, 0.0)
	assert.LessOrEqual(t, h, 10000.0)
	// Four unequal holders: HHI must exceed the 2500 that four equal holders give.
	assert.Greater(t, h, 2500.0)
}

func TestHHIZeroTotalIsZero(t *testing.T) {
	assert.Equal(t, 0.0, HHI(bigs(0, 0)))
}

func TestNakamotoSingleHolderIsOne(t *testing.T) {
	desc := Descending(bigs(200))
	assert.Equal(t, 1, Nakamoto(desc))
}

func TestNakamotoMajorityScenario(t *testing.T) {
	// [100,50,30,20], total 200: top-1=100 (not >100), top-2=150 (>100) -> k=2.
	desc := Descending(bigs(100, 50, 30, 20))
	assert.Equal(t, 2, Nakamoto(desc))
}

func TestNakamotoZeroTotalIsZero(t *testing.T) {
	assert.Equal(t, 0, Nakamoto(bigs(0, 0)))
}

func TestNakamotoAtLeastOneWhenPositiveTotal(t *testing.T) {
	desc := Descending(bigs(10, 10, 10, 10, 10))
	assert.GreaterOrEqual(t, Nakamoto(desc), 1)
}

func TestPalmaUndefinedForSmallN(t *testing.T) {
	desc := Descending(bigs(100, 50, 30, 20))
	_, ok := Palma(desc)
	assert.False(t, ok, "top-10%% of 4 holders rounds to zero, so Palma is undefined")
}

func TestPalmaDefinedForLargerN(t *testing.T) {
	values := make([]int64, 20)
	for i := range values {
		values[i] = int64(20 - i)
	}
	desc := Descending(bigs(values...))
	ratio, ok := Palma(desc)
	require.True(t, ok)
	assert.Greater(t, ratio, 0.0)
}

func TestTopNShareCapsAtPopulationSize(t *testing.T) {
	desc := Descending(bigs(100, 50, 30, 20))
	shares := TopNShare(desc, []int{5, 10})
	assert.Equal(t, 1.0, shares[5])
	assert.Equal(t, 1.0, shares[10])
}

func TestTopNShareZeroTotal(t *testing.T) {
	shares := TopNShare(bigs(0, 0), []int{5})
	assert.Equal(t, 0.0, shares[5])
}

func TestLorenzPointsMonotonicAndBounded(t *testing.T) {
	asc := Ascending(bigs(20, 30, 50, 100))
	points := LorenzPoints(asc, 10)
	require.Len(t, points, 11)
	assert.Equal(t, LorenzPoint{0, 0}, points[0])
	for i := 1; i < len(points); i++ {
		assert.GreaterOrEqual(t, points[i].WealthShare, points[i-1].WealthShare)
		assert.LessOrEqual(t, points[i].WealthShare, 1.0)
	}
	assert.InDelta(t, 1.0, points[len(points)-1].WealthShare, 1e-9)
}

func TestLorenzPointsEmptyReturnsNil(t *testing.T) {
	assert.Nil(t, LorenzPoints(nil, 10))
}
