package operators

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

// InitialStateSampling tiles the encoded initial state n times, so evolution
// starts from the unperturbed sample. Integer positions are rounded to keep
// the type layout valid.
type InitialStateSampling struct {
	encoder  framework.Encoder
	xInitial []float64
}

func NewInitialStateSampling(encoder framework.Encoder, xInitial []float64) *InitialStateSampling {
	return &InitialStateSampling{encoder: encoder, xInitial: xInitial}
}

func (s *InitialStateSampling) Sample(_ *rand.Rand, n int) ([][]float64, error) {
	gen, err := s.encoder.MLToGenetic([][]float64{s.xInitial})
	if err != nil {
		return nil, fmt.Errorf("encode initial state: %w", err)
	}
	seed := gen[0]
	layout := s.encoder.Layout()
	roundInts(seed, layout)

	out := make([][]float64, n)
	for i := range out {
		row := make([]float64, len(seed))
		copy(row, seed)
		out[i] = row
	}
	return out, nil
}

// MixedSamplingLp seeds a population where a configurable fraction of
// individuals carry a random perturbation drawn uniformly from an Lp ball of
// radius Eps around the initial state (in normalized gene space), while the
// remainder are the raw tiled initial state. At least one feasible-distance
// individual is therefore always present.
type MixedSamplingLp struct {
	encoder  framework.Encoder
	xInitial []float64

	RatioPerturbed float64
	Eps            float64
	Norm           framework.Norm
}

func NewMixedSamplingLp(encoder framework.Encoder, xInitial []float64, ratioPerturbed, eps float64, norm framework.Norm) *MixedSamplingLp {
	return &MixedSamplingLp{
		encoder:        encoder,
		xInitial:       xInitial,
		RatioPerturbed: ratioPerturbed,
		Eps:            eps,
		Norm:           norm,
	}
}

func (s *MixedSamplingLp) Sample(rng *rand.Rand, n int) ([][]float64, error) {
	gen, err := s.encoder.MLToGenetic([][]float64{s.xInitial})
	if err != nil {
		return nil, fmt.Errorf("encode initial state: %w", err)
	}
	seed := gen[0]
	layout := s.encoder.Layout()
	xl, xu := s.encoder.MinMaxGenetic()

	nPerturbed := int(math.Round(s.RatioPerturbed * float64(n)))
	if nPerturbed > n {
		nPerturbed = n
	}

	out := make([][]float64, 0, n)
	for i := 0; i < n-nPerturbed; i++ {
		row := make([]float64, len(seed))
		copy(row, seed)
		roundInts(row, layout)
		out = append(out, row)
	}

	seedNorm := normalize(seed, xl, xu)
	for i := 0; i < nPerturbed; i++ {
		delta := sampleInBall(rng, len(seed), s.Eps, s.Norm)
		row := make([]float64, len(seed))
		floats.AddTo(row, seedNorm, delta)
		clampUnit(row)
		denormalize(row, xl, xu)
		roundInts(row, layout)
		renormalizeBlocks(row, layout)
		out = append(out, row)
	}
	return out, nil
}

// RandomSampling draws each gene uniformly within its bounds, rounding integer
// positions and renormalizing softmax blocks onto the simplex.
type RandomSampling struct {
	Layout framework.Layout
	XL, XU []float64
}

func NewRandomSampling(layout framework.Layout, xl, xu []float64) *RandomSampling {
	return &RandomSampling{Layout: layout, XL: xl, XU: xu}
}

func (s *RandomSampling) Sample(rng *rand.Rand, n int) ([][]float64, error) {
	out := make([][]float64, n)
	for i := range out {
		row := make([]float64, s.Layout.Len())
		for j := range row {
			row[j] = s.XL[j] + rng.Float64()*(s.XU[j]-s.XL[j])
		}
		roundInts(row, s.Layout)
		renormalizeBlocks(row, s.Layout)
		out[i] = row
	}
	return out, nil
}

// sampleInBall draws one point uniformly from the Lp ball of the given radius
// in d dimensions.
func sampleInBall(rng *rand.Rand, d int, radius float64, norm framework.Norm) []float64 {
	v := make([]float64, d)
	switch norm {
	case framework.NormLinf:
		for i := range v {
			v[i] = (2*rng.Float64() - 1) * radius
		}
	default: // NormL2
		sum := 0.0
		for i := range v {
			v[i] = rng.NormFloat64()
			sum += v[i] * v[i]
		}
		if sum == 0 {
			return v
		}
		r := radius * math.Pow(rng.Float64(), 1/float64(d)) / math.Sqrt(sum)
		floats.Scale(r, v)
	}
	return v
}

func normalize(x, xl, xu []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		span := xu[i] - xl[i]
		if span == 0 {
			continue
		}
		out[i] = (x[i] - xl[i]) / span
	}
	return out
}

func denormalize(x, xl, xu []float64) {
	for i := range x {
		x[i] = xl[i] + x[i]*(xu[i]-xl[i])
	}
}

func clampUnit(x []float64) {
	for i := range x {
		x[i] = math.Max(0, math.Min(1, x[i]))
	}
}

func roundInts(x []float64, layout framework.Layout) {
	for i, t := range layout.Types {
		if t == framework.GeneInt {
			x[i] = math.Round(x[i])
		}
	}
}

// renormalizeBlocks projects every softmax block back onto the probability
// simplex. A degenerate all-zero block becomes uniform.
func renormalizeBlocks(x []float64, layout framework.Layout) {
	for _, b := range layout.Blocks {
		renormalizeBlock(x, b)
	}
}
