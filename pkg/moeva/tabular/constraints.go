package tabular

import (
	"fmt"
	"math"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

// Evaluator implements the constraint-evaluator contract for a FeatureSet:
// each linear constraint contributes one violation column whose magnitude is
// the constraint's left-hand side (<= 0 means satisfied).
type Evaluator struct {
	fs   *FeatureSet
	tags []framework.FeatureTag

	colMin, colMax []float64
	mutableMask    []bool
}

var _ framework.ConstraintEvaluator = (*Evaluator)(nil)

func NewEvaluator(fs *FeatureSet) (*Evaluator, error) {
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	colMin, colMax := fs.columnMinMax()
	mask := make([]bool, 0, fs.NumColumns())
	for _, f := range fs.Features {
		for i := 0; i < f.width(); i++ {
			mask = append(mask, f.Mutable)
		}
	}
	return &Evaluator{
		fs:          fs,
		tags:        fs.featureTags(),
		colMin:      colMin,
		colMax:      colMax,
		mutableMask: mask,
	}, nil
}

// Clone returns an independent deep copy, so each parallel worker can own its
// own evaluator.
func (e *Evaluator) Clone() *Evaluator {
	fs := &FeatureSet{
		Features:    append([]FeatureSpec(nil), e.fs.Features...),
		Constraints: make([]LinearConstraint, len(e.fs.Constraints)),
	}
	for i, c := range e.fs.Constraints {
		coeffs := make(map[string]float64, len(c.Coefficients))
		for k, v := range c.Coefficients {
			coeffs[k] = v
		}
		fs.Constraints[i] = LinearConstraint{Coefficients: coeffs, Bias: c.Bias}
	}
	clone, _ := NewEvaluator(fs)
	return clone
}

func (e *Evaluator) Evaluate(X [][]float64) ([][]float64, error) {
	width := e.fs.NumColumns()
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("sample %d has %d features, feature set declares %d", i, len(row), width)
		}
		g := make([]float64, len(e.fs.Constraints))
		for j, c := range e.fs.Constraints {
			v := c.Bias
			for name, coeff := range c.Coefficients {
				v += coeff * row[e.fs.columnOf(name)]
			}
			g[j] = v
		}
		out[i] = g
	}
	return out, nil
}

func (e *Evaluator) NumConstraints() int { return len(e.fs.Constraints) }

// Normalize maps raw violation magnitudes into [0, 1] using the declared
// constraint bounds.
func (e *Evaluator) Normalize(G [][]float64) [][]float64 {
	min, max := e.ConstraintsMinMax()
	out := make([][]float64, len(G))
	for i, row := range G {
		norm := make([]float64, len(row))
		for j, g := range row {
			span := max[j] - min[j]
			if span == 0 {
				norm[j] = 0
				continue
			}
			norm[j] = (g - min[j]) / span
		}
		out[i] = norm
	}
	return out
}

// ConstraintsMinMax returns per-constraint violation bounds derived from the
// feature bounds the constraint's terms can reach.
func (e *Evaluator) ConstraintsMinMax() (min, max []float64) {
	min = make([]float64, len(e.fs.Constraints))
	max = make([]float64, len(e.fs.Constraints))
	for j, c := range e.fs.Constraints {
		lo, hi := c.Bias, c.Bias
		for name, coeff := range c.Coefficients {
			f, _ := e.fs.feature(name)
			a, b := coeff*f.Min, coeff*f.Max
			lo += math.Min(a, b)
			hi += math.Max(a, b)
		}
		min[j], max[j] = lo, hi
	}
	return min, max
}

func (e *Evaluator) MutableMask() []bool { return e.mutableMask }

func (e *Evaluator) FeatureMinMax() (min, max []float64) { return e.colMin, e.colMax }

// FixFeatureTypes rounds integer columns and snaps every one-hot group to its
// argmax.
func (e *Evaluator) FixFeatureTypes(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		fixed := make([]float64, len(row))
		copy(fixed, row)
		col := 0
		for _, f := range e.fs.Features {
			switch f.Type {
			case TypeInt:
				fixed[col] = math.Round(fixed[col])
			case TypeCategorical:
				argmaxOneHot(fixed[col : col+f.Categories])
			}
			col += f.width()
		}
		out[i] = fixed
	}
	return out
}

func (e *Evaluator) FeatureTypes() []framework.FeatureTag { return e.tags }

func argmaxOneHot(group []float64) {
	best := 0
	for i, v := range group {
		if v > group[best] {
			best = i
		}
	}
	for i := range group {
		group[i] = 0
	}
	group[best] = 1
}
