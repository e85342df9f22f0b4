package moeva

import (
	"testing"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
	"github.com/Srinivas0rch/moeva2/pkg/moeva/tabular"
)

// testFeatureSet builds a small mixed-type tabular domain:
//   - x1: mutable real in [0, 10]
//   - x2: immutable real in [0, 10]
//   - x3: mutable int in [0, 5]
//   - color: mutable categorical with 3 categories
//
// plus the relational constraint x1 - x2 <= 0. The ml representation is 6
// columns wide, the genetic representation 5 genes.
func testFeatureSet() *tabular.FeatureSet {
	return &tabular.FeatureSet{
		Features: []tabular.FeatureSpec{
			{Name: "x1", Type: tabular.TypeReal, Min: 0, Max: 10, Mutable: true},
			{Name: "x2", Type: tabular.TypeReal, Min: 0, Max: 10},
			{Name: "x3", Type: tabular.TypeInt, Min: 0, Max: 5, Mutable: true},
			{Name: "color", Type: tabular.TypeCategorical, Categories: 3, Mutable: true},
		},
		Constraints: []tabular.LinearConstraint{
			{Coefficients: map[string]float64{"x1": 1, "x2": -1}},
		},
	}
}

// testInitialState is feasible: x1 - x2 = -5.
func testInitialState() []float64 {
	return []float64{0, 5, 1, 1, 0, 0}
}

// testClassifier scores class 1 proportionally to x1, so the class-0
// probability is 1 / (1 + exp(x1)): exactly 0.5 at the initial state and
// strictly below 0.5 for any positive x1.
func testClassifier(t *testing.T) *tabular.LogisticClassifier {
	t.Helper()
	c, err := tabular.NewLogisticClassifier(
		[][]float64{
			{0, 0, 0, 0, 0, 0},
			{1, 0, 0, 0, 0, 0},
		},
		[]float64{0, 0},
	)
	if err != nil {
		t.Fatalf("build classifier: %v", err)
	}
	return c
}

func testDomain(t *testing.T) (*tabular.Evaluator, *tabular.Encoder, *tabular.LogisticClassifier) {
	t.Helper()
	fs := testFeatureSet()
	evaluator, err := tabular.NewEvaluator(fs)
	if err != nil {
		t.Fatalf("build evaluator: %v", err)
	}
	encoder, err := tabular.NewEncoder(fs)
	if err != nil {
		t.Fatalf("build encoder: %v", err)
	}
	return evaluator, encoder, testClassifier(t)
}

func testMinMaxScaler(t *testing.T, evaluator framework.ConstraintEvaluator) *MinMaxScaler {
	t.Helper()
	min, max := evaluator.FeatureMinMax()
	s, err := NewMinMaxScaler(min, max)
	if err != nil {
		t.Fatalf("build min-max scaler: %v", err)
	}
	return s
}
