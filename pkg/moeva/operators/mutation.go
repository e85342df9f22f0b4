package operators

import (
	"math"
	"math/rand"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

// MixedMutation applies bounded polynomial mutation to real and integer
// positions and a simplex-preserving polynomial mutation to softmax blocks.
type MixedMutation struct {
	Layout      framework.Layout
	XL, XU      []float64
	Probability float64
	// Eta is the polynomial distribution index; larger values keep mutants
	// closer to the parent.
	Eta float64
}

func NewMixedMutation(layout framework.Layout, xl, xu []float64, probability, eta float64) *MixedMutation {
	return &MixedMutation{
		Layout:      layout,
		XL:          xl,
		XU:          xu,
		Probability: probability,
		Eta:         eta,
	}
}

func (m *MixedMutation) Do(rng *rand.Rand, x []float64) {
	for i, t := range m.Layout.Types {
		if t == framework.GeneSoftmax {
			continue
		}
		if rng.Float64() >= m.Probability {
			continue
		}
		delta := polynomialDelta(rng, m.Eta)
		x[i] += delta * (m.XU[i] - m.XL[i])
		x[i] = math.Max(m.XL[i], math.Min(m.XU[i], x[i]))
		if t == framework.GeneInt {
			x[i] = math.Round(x[i])
		}
	}

	for _, b := range m.Layout.Blocks {
		if rng.Float64() >= m.Probability {
			continue
		}
		for i := b.Start; i < b.End; i++ {
			x[i] += polynomialDelta(rng, m.Eta)
		}
		renormalizeBlock(x, b)
	}
}

// polynomialDelta draws a perturbation in (-1, 1) from the polynomial mutation
// distribution with index eta.
func polynomialDelta(rng *rand.Rand, eta float64) float64 {
	u := rng.Float64()
	exp := 1.0 / (eta + 1.0)
	if u <= 0.5 {
		return math.Pow(2*u, exp) - 1
	}
	return 1 - math.Pow(2*(1-u), exp)
}

func renormalizeBlock(x []float64, b framework.Block) {
	sum := 0.0
	for i := b.Start; i < b.End; i++ {
		if x[i] < 0 {
			x[i] = 0
		}
		sum += x[i]
	}
	if sum == 0 {
		for i := b.Start; i < b.End; i++ {
			x[i] = 1 / float64(b.Len())
		}
		return
	}
	for i := b.Start; i < b.End; i++ {
		x[i] /= sum
	}
}
