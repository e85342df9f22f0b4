package tabular

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

func sampleFeatureSet() *FeatureSet {
	return &FeatureSet{
		Features: []FeatureSpec{
			{Name: "amount", Type: TypeReal, Min: 0, Max: 100, Mutable: true},
			{Name: "limit", Type: TypeReal, Min: 0, Max: 100},
			{Name: "count", Type: TypeInt, Min: 0, Max: 9, Mutable: true},
			{Name: "channel", Type: TypeCategorical, Categories: 3, Mutable: true},
		},
		Constraints: []LinearConstraint{
			{Coefficients: map[string]float64{"amount": 1, "limit": -1}},
		},
	}
}

func TestFeatureSetValidate(t *testing.T) {
	require.NoError(t, sampleFeatureSet().Validate())

	tests := []struct {
		name   string
		mutate func(*FeatureSet)
	}{
		{"no features", func(fs *FeatureSet) { fs.Features = nil }},
		{"unnamed feature", func(fs *FeatureSet) { fs.Features[0].Name = "" }},
		{"duplicate name", func(fs *FeatureSet) { fs.Features[1].Name = "amount" }},
		{"unknown type", func(fs *FeatureSet) { fs.Features[0].Type = "boolean" }},
		{"min above max", func(fs *FeatureSet) { fs.Features[0].Min = 200 }},
		{"single category", func(fs *FeatureSet) { fs.Features[3].Categories = 1 }},
		{"empty constraint", func(fs *FeatureSet) { fs.Constraints[0].Coefficients = nil }},
		{"unknown constraint feature", func(fs *FeatureSet) {
			fs.Constraints[0].Coefficients = map[string]float64{"ghost": 1}
		}},
		{"categorical in constraint", func(fs *FeatureSet) {
			fs.Constraints[0].Coefficients = map[string]float64{"channel": 1}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := sampleFeatureSet()
			tc.mutate(fs)
			assert.Error(t, fs.Validate())
		})
	}
}

func TestLoadFeatureSet(t *testing.T) {
	doc := `
features:
  - name: amount
    type: real
    min: 0
    max: 100
    mutable: true
  - name: limit
    type: real
    min: 0
    max: 100
  - name: channel
    type: categorical
    categories: 3
    mutable: true
constraints:
  - coefficients:
      amount: 1
      limit: -1
    bias: 0
`
	path := filepath.Join(t.TempDir(), "features.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	fs, err := LoadFeatureSet(path)
	require.NoError(t, err)
	assert.Len(t, fs.Features, 3)
	assert.Len(t, fs.Constraints, 1)
	assert.Equal(t, 5, fs.NumColumns())
	assert.True(t, fs.Features[0].Mutable)

	_, err = LoadFeatureSet(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("features: {not: a list}"), 0o644))
	_, err = LoadFeatureSet(bad)
	assert.Error(t, err)
}

func TestEncoderRoundTrip(t *testing.T) {
	enc, err := NewEncoder(sampleFeatureSet())
	require.NoError(t, err)

	// amount + count + 3 one-hot channel columns are mutable.
	assert.Equal(t, 5, enc.GeneticLength())
	layout := enc.Layout()
	require.NoError(t, layout.Validate())
	assert.Equal(t, framework.GeneReal, layout.Types[0])
	assert.Equal(t, framework.GeneInt, layout.Types[1])
	require.Len(t, layout.Blocks, 1)
	assert.Equal(t, framework.Block{Start: 2, End: 5}, layout.Blocks[0])

	// ml -> genetic -> ml reproduces the sample; the immutable limit column
	// passes through from the initial state.
	xInitial := []float64{10, 50, 3, 0, 1, 0}
	genes, err := enc.MLToGenetic([][]float64{xInitial})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 3, 0, 1, 0}, genes[0])

	back, err := enc.GeneticToML(genes, xInitial)
	require.NoError(t, err)
	assert.Equal(t, xInitial, back[0])
}

func TestEncoderArgmaxSnapsBlocks(t *testing.T) {
	enc, err := NewEncoder(sampleFeatureSet())
	require.NoError(t, err)
	xInitial := []float64{10, 50, 3, 0, 1, 0}

	// A fractional simplex block resolves to the one-hot of its argmax.
	out, err := enc.GeneticToML([][]float64{{20, 4, 0.2, 0.3, 0.5}}, xInitial)
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 50, 4, 0, 0, 1}, out[0])
}

func TestEncoderErrors(t *testing.T) {
	enc, err := NewEncoder(sampleFeatureSet())
	require.NoError(t, err)

	_, err = enc.MLToGenetic([][]float64{{1, 2}})
	assert.Error(t, err, "wrong ml width")

	_, err = enc.GeneticToML([][]float64{{1, 2}}, []float64{10, 50, 3, 0, 1, 0})
	assert.Error(t, err, "wrong genetic width")

	_, err = enc.GeneticToML([][]float64{{20, 4, 0.2, 0.3, 0.5}}, []float64{1})
	assert.Error(t, err, "wrong initial state width")

	frozen := sampleFeatureSet()
	for i := range frozen.Features {
		frozen.Features[i].Mutable = false
	}
	_, err = NewEncoder(frozen)
	assert.Error(t, err, "nothing to search over")
}

func TestEncoderNormalize(t *testing.T) {
	enc, err := NewEncoder(sampleFeatureSet())
	require.NoError(t, err)

	out := enc.Normalize([][]float64{{50, 100, 9, 0, 1, 0}})
	want := []float64{0.5, 1, 1, 0, 1, 0}
	for j := range want {
		assert.InDelta(t, want[j], out[0][j], 1e-12, "column %d", j)
	}
}

func TestEvaluator(t *testing.T) {
	ev, err := NewEvaluator(sampleFeatureSet())
	require.NoError(t, err)
	assert.Equal(t, 1, ev.NumConstraints())

	G, err := ev.Evaluate([][]float64{
		{10, 50, 3, 0, 1, 0}, // amount - limit = -40
		{80, 50, 3, 0, 1, 0}, // amount - limit = 30
	})
	require.NoError(t, err)
	assert.Equal(t, -40.0, G[0][0])
	assert.Equal(t, 30.0, G[1][0])

	_, err = ev.Evaluate([][]float64{{1}})
	assert.Error(t, err)
}

func TestCheckConstraints(t *testing.T) {
	ev, err := NewEvaluator(sampleFeatureSet())
	require.NoError(t, err)

	feasible := [][]float64{{10, 50, 3, 0, 1, 0}}
	require.NoError(t, framework.CheckConstraints(ev, feasible))

	mixed := [][]float64{
		{80, 50, 3, 0, 1, 0},
		{10, 50, 3, 0, 1, 0},
		{90, 50, 3, 0, 1, 0},
	}
	err = framework.CheckConstraints(ev, mixed)
	require.Error(t, err)
	assert.Equal(t, "constraints not respected 2 times", err.Error())
}

func TestEvaluatorClone(t *testing.T) {
	ev, err := NewEvaluator(sampleFeatureSet())
	require.NoError(t, err)
	clone := ev.Clone()

	// Mutating the clone's constraint must not leak into the original.
	clone.fs.Constraints[0].Coefficients["amount"] = 100
	G, err := ev.Evaluate([][]float64{{1, 50, 3, 0, 1, 0}})
	require.NoError(t, err)
	assert.Equal(t, -49.0, G[0][0])

	assert.Equal(t, ev.MutableMask(), clone.MutableMask())
}

func TestEvaluatorNormalizeAndBounds(t *testing.T) {
	ev, err := NewEvaluator(sampleFeatureSet())
	require.NoError(t, err)

	min, max := ev.ConstraintsMinMax()
	// amount - limit over [0,100]^2 spans [-100, 100].
	assert.Equal(t, -100.0, min[0])
	assert.Equal(t, 100.0, max[0])

	norm := ev.Normalize([][]float64{{-100}, {0}, {100}})
	assert.InDelta(t, 0.0, norm[0][0], 1e-12)
	assert.InDelta(t, 0.5, norm[1][0], 1e-12)
	assert.InDelta(t, 1.0, norm[2][0], 1e-12)

	colMin, colMax := ev.FeatureMinMax()
	assert.Equal(t, 6, len(colMin))
	assert.Equal(t, 100.0, colMax[0])
	assert.Equal(t, 1.0, colMax[3], "one-hot columns are bounded by [0, 1]")

	mask := ev.MutableMask()
	assert.Equal(t, []bool{true, false, true, true, true, true}, mask)

	tags := ev.FeatureTypes()
	require.Len(t, tags, 6)
	assert.Equal(t, framework.FeatureReal, tags[0].Kind)
	assert.Equal(t, framework.FeatureInt, tags[2].Kind)
	assert.Equal(t, framework.FeatureCategorical, tags[3].Kind)
	assert.Equal(t, tags[3].Group, tags[5].Group)
	assert.Equal(t, -1, tags[0].Group)
}

func TestFixFeatureTypes(t *testing.T) {
	ev, err := NewEvaluator(sampleFeatureSet())
	require.NoError(t, err)

	out := ev.FixFeatureTypes([][]float64{{10.7, 50.2, 2.6, 0.2, 0.5, 0.3}})
	assert.Equal(t, 10.7, out[0][0], "real columns pass through")
	assert.Equal(t, 50.2, out[0][1])
	assert.Equal(t, 3.0, out[0][2], "int columns round")
	assert.Equal(t, []float64{0, 1, 0}, out[0][3:6], "one-hot groups snap to argmax")
}

func TestLogisticClassifier(t *testing.T) {
	c, err := NewLogisticClassifier(
		[][]float64{{0, 0}, {1, 0}},
		[]float64{0, 0},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, c.NumClasses())

	proba, err := c.PredictProba([][]float64{{0, 5}, {2, 5}, {100, 0}})
	require.NoError(t, err)
	for i, row := range proba {
		sum := 0.0
		for _, p := range row {
			assert.GreaterOrEqual(t, p, 0.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "row %d must sum to 1", i)
	}
	assert.InDelta(t, 0.5, proba[0][0], 1e-12)
	assert.InDelta(t, 1/(1+math.Exp(2)), proba[1][0], 1e-12)
	assert.Less(t, proba[2][0], 1e-12, "huge positive logit saturates class 1")

	_, err = c.PredictProba([][]float64{{1}})
	assert.Error(t, err, "feature width mismatch")
}

func TestNewLogisticClassifierValidation(t *testing.T) {
	_, err := NewLogisticClassifier([][]float64{{1}}, []float64{0})
	assert.Error(t, err, "single class")

	_, err = NewLogisticClassifier([][]float64{{1}, {2}}, []float64{0})
	assert.Error(t, err, "bias length mismatch")

	_, err = NewLogisticClassifier([][]float64{{1, 2}, {3}}, []float64{0, 0})
	assert.Error(t, err, "ragged weights")
}

func TestLoadLogisticClassifier(t *testing.T) {
	doc := `{"weights": [[0, 0], [1, 0]], "bias": [0, 0]}`
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := LoadLogisticClassifier(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.NumClasses())

	_, err = LoadLogisticClassifier(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
