package operators

import (
	"math/rand"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

// MixedCrossover recombines two mixed-type parents: real and integer positions
// use a two-point numeric crossover within their own type group, softmax
// blocks use a point crossover that swaps whole blocks so the simplex
// constraint is never split.
type MixedCrossover struct {
	Layout      framework.Layout
	Probability float64

	realIdx []int
	intIdx  []int
}

func NewMixedCrossover(layout framework.Layout, probability float64) *MixedCrossover {
	return &MixedCrossover{
		Layout:      layout,
		Probability: probability,
		realIdx:     layout.ScalarIndices(framework.GeneReal),
		intIdx:      layout.ScalarIndices(framework.GeneInt),
	}
}

func (c *MixedCrossover) Do(rng *rand.Rand, p1, p2 []float64) ([]float64, []float64) {
	child1 := make([]float64, len(p1))
	child2 := make([]float64, len(p2))
	copy(child1, p1)
	copy(child2, p2)

	if rng.Float64() >= c.Probability {
		return child1, child2
	}

	twoPointSwap(rng, child1, child2, c.realIdx)
	twoPointSwap(rng, child1, child2, c.intIdx)

	// Block point crossover: cut points fall on block boundaries only.
	if nb := len(c.Layout.Blocks); nb > 0 {
		lo, hi := twoPoints(rng, nb)
		for _, b := range c.Layout.Blocks[lo:hi] {
			for i := b.Start; i < b.End; i++ {
				child1[i], child2[i] = child2[i], child1[i]
			}
		}
	}

	return child1, child2
}

// twoPointSwap exchanges the segment between two cut points of the given
// index list between a and b.
func twoPointSwap(rng *rand.Rand, a, b []float64, idx []int) {
	if len(idx) < 2 {
		return
	}
	lo, hi := twoPoints(rng, len(idx))
	for _, i := range idx[lo:hi] {
		a[i], b[i] = b[i], a[i]
	}
}

func twoPoints(rng *rand.Rand, n int) (int, int) {
	lo := rng.Intn(n + 1)
	hi := rng.Intn(n + 1)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}
