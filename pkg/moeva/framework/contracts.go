package framework

import "fmt"

// Classifier scores a batch of feature vectors in ml representation and
// returns class-probability-like outputs, one row per sample.
type Classifier interface {
	PredictProba(X [][]float64) ([][]float64, error)
}

// FeatureKind tags one column of the ml representation.
type FeatureKind int

const (
	FeatureReal FeatureKind = iota
	FeatureInt
	FeatureCategorical
)

// FeatureTag is the per-column type tag exposed by a ConstraintEvaluator.
// Columns belonging to the same one-hot encoded categorical variable share a
// Group; Group is -1 for non-categorical columns.
type FeatureTag struct {
	Kind  FeatureKind
	Group int
}

// ConstraintEvaluator exposes the domain's feasibility constraints plus the
// feature metadata the search needs: mutability, bounds and type tags.
// Evaluate returns per-constraint violation magnitudes, one row per sample;
// values <= 0 mean the constraint is satisfied.
type ConstraintEvaluator interface {
	Evaluate(X [][]float64) ([][]float64, error)
	NumConstraints() int

	Normalize(G [][]float64) [][]float64
	ConstraintsMinMax() (min, max []float64)

	MutableMask() []bool
	FeatureMinMax() (min, max []float64)
	FixFeatureTypes(X [][]float64) [][]float64
	FeatureTypes() []FeatureTag
}

// CheckConstraints fails with a descriptive error when any of the provided
// samples already violates a domain constraint. It is meant to stop a run
// before a search budget is spent on infeasible seeds.
func CheckConstraints(c ConstraintEvaluator, X [][]float64) error {
	G, err := c.Evaluate(X)
	if err != nil {
		return err
	}
	violated := 0
	for _, row := range G {
		for _, g := range row {
			if g > 0 {
				violated++
			}
		}
	}
	if violated > 0 {
		return fmt.Errorf("constraints not respected %d times", violated)
	}
	return nil
}

// Encoder is the bidirectional mapping between the genetic search
// representation and the ml feature representation. GeneticToML is conditioned
// on the immutable initial state so non-mutable features pass through.
type Encoder interface {
	GeneticToML(X [][]float64, xInitial []float64) ([][]float64, error)
	MLToGenetic(X [][]float64) ([][]float64, error)

	Normalize(X [][]float64) [][]float64

	MinMaxGenetic() (xl, xu []float64)
	GeneticLength() int
	Layout() Layout
}
