package frames

import (
	"math/bits"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// walsh returns the i-th 64-bit Walsh code. Distinct codes differ in exactly
// 32 positions.
func walsh(i int) Hash {
	var w uint64
	for j := 0; j < 64; j++ {
		if bits.OnesCount(uint(i&j))%2 == 1 {
			w |= 1 << uint(j)
		}
	}
	return Hash{w}
}

func cand(ts, quality, brightness float64, hash Hash) FrameCandidate {
	return FrameCandidate{Timestamp: ts, Quality: quality, Brightness: brightness, Hash: hash}
}

func defaultSelect(k int) SelectOptions {
	return SelectOptions{
		K:          k,
		MinHamming: DefaultMinHamming,
		BrightMin:  DefaultBrightMin,
		BrightMax:  DefaultBrightMax,
		MinQuality: DefaultMinQuality,
	}
}

func TestSelectEmpty(t *testing.T) {
	assert.Empty(t, SelectDiverseTopK(nil, defaultSelect(5)))
	assert.Empty(t, SelectDiverseTopK([]FrameCandidate{cand(1, 1, 0.5, walsh(1))}, defaultSelect(0)))
}

func TestSelectStaticVideoCollapsesToBest(t *testing.T) {
	cands := []FrameCandidate{
		cand(1, 1.0, 0.5, Hash{0}),
		cand(2, 2.5, 0.5, Hash{0b1}),
		cand(3, 1.5, 0.5, Hash{0b10}),
		cand(4, 0.9, 0.5, Hash{0b11}),
	}
	got := SelectDiverseTopK(cands, defaultSelect(4))

	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Timestamp)
}

func TestSelectDiverseFillsBudget(t *testing.T) {
	k := 6
	var cands []FrameCandidate
	for i := 1; i <= k+5; i++ {
		cands = append(cands, cand(float64(i), 1+float64(i)/10, 0.5, walsh(i)))
	}
	got := SelectDiverseTopK(cands, defaultSelect(k))

	require.Len(t, got, k)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Quality, got[i].Quality)
	}
	assert.Equal(t, float64(k+5), got[0].Timestamp)
}

func TestSelectRejectsNearDuplicates(t *testing.T) {
	base := walsh(3)
	near := Hash{base[0] ^ 0b111}
	cands := []FrameCandidate{
		cand(1, 2.0, 0.5, base),
		cand(2, 1.9, 0.5, near),
		cand(3, 1.8, 0.5, walsh(5)),
	}
	got := SelectDiverseTopK(cands, defaultSelect(3))

	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Timestamp)
	assert.Equal(t, 3.0, got[1].Timestamp)
}

func TestSelectTrimsLowYield(t *testing.T) {
	// four diverse frames against a budget of twenty
	var cands []FrameCandidate
	for i := 1; i <= 4; i++ {
		cands = append(cands, cand(float64(i), float64(10-i), 0.5, walsh(i)))
	}
	got := SelectDiverseTopK(cands, defaultSelect(20))

	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Timestamp)
	assert.Equal(t, 2.0, got[1].Timestamp)
}

func TestSelectTierRelaxesQuality(t *testing.T) {
	cands := []FrameCandidate{
		cand(1, 0.05, 0.5, walsh(1)),
		cand(2, 0.2, 0.5, walsh(2)),
		cand(3, 5.0, 0.01, walsh(3)),
	}
	got := SelectDiverseTopK(cands, defaultSelect(3))

	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Timestamp)
}

func TestSelectTierBrightnessOnly(t *testing.T) {
	cands := []FrameCandidate{
		cand(1, 0.01, 0.5, walsh(1)),
		cand(2, 0.02, 0.6, walsh(2)),
		cand(3, 5.0, 0.99, walsh(3)),
	}
	got := SelectDiverseTopK(cands, defaultSelect(3))

	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Timestamp)
	assert.Equal(t, 1.0, got[1].Timestamp)
}

func TestSelectLastResortTakesFirstTwo(t *testing.T) {
	cands := []FrameCandidate{
		cand(1, 0.1, 0.01, walsh(1)),
		cand(2, 3.0, 0.02, walsh(2)),
		cand(3, 9.0, 0.995, walsh(3)),
	}
	got := SelectDiverseTopK(cands, defaultSelect(10))

	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Timestamp)
	assert.Equal(t, 1.0, got[1].Timestamp)

	got = SelectDiverseTopK(cands, defaultSelect(1))
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Timestamp)
}

func TestSelectDoesNotMutateInput(t *testing.T) {
	cands := []FrameCandidate{
		cand(1, 0.5, 0.5, walsh(1)),
		cand(2, 3.0, 0.5, walsh(2)),
	}
	SelectDiverseTopK(cands, defaultSelect(2))
	assert.Equal(t, 1.0, cands[0].Timestamp)
}

func TestSelectNeverExceedsK(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		n := rng.Intn(40)
		cands := make([]FrameCandidate, n)
		for i := range cands {
			cands[i] = cand(float64(i), rng.Float64()*6, rng.Float64(), Hash{rng.Uint64()})
		}
		k := rng.Intn(12)
		opts := defaultSelect(k)
		opts.MinHamming = rng.Intn(40)

		got := SelectDiverseTopK(cands, opts)
		assert.LessOrEqual(t, len(got), k)
		if n > 0 && k > 0 {
			assert.NotEmpty(t, got)
		}
	}
}
