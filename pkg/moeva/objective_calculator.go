package moeva

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/floats"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

// Thresholds are applied post-hoc only, never during evolution. F1 bounds the
// target-class probability of a misclassified candidate, F2 bounds its scaled
// distance to the initial state.
type Thresholds struct {
	F1 float64
	F2 float64
}

// NumSuccessColumns is the number of boolean success combinations: the three
// objectives taken independently, the three pairs and the full triple.
const NumSuccessColumns = 7

// SuccessColumns returns the column labels o1..o7.
func SuccessColumns() []string {
	cols := make([]string, NumSuccessColumns)
	for i := range cols {
		cols[i] = fmt.Sprintf("o%d", i+1)
	}
	return cols
}

// PreferredMetric selects the ranking used for best-attack selection.
type PreferredMetric string

const (
	MetricMisclassification PreferredMetric = "misclassification"
	MetricDistance          PreferredMetric = "distance"
)

// SortOrder orders the selection ranking.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// scaledTolerance bounds how far min-max scaled values may fall outside
// [0, 1] before the scaler is considered mismatched with the data.
const scaledTolerance = 1e-4

// ObjectiveCalculatorConfig configures the post-hoc evaluator.
type ObjectiveCalculatorConfig struct {
	Classifier  framework.Classifier
	Constraints framework.ConstraintEvaluator
	Encoder     framework.Encoder
	TargetClass int
	Thresholds  Thresholds

	// MinMaxScaler maps ml vectors into the canonical [0,1] space all
	// distance comparisons happen in.
	MinMaxScaler Transformer
	MLScaler     Transformer
	Norm         framework.Norm

	// NJobs == 1 selects attacks sequentially; other values use a worker
	// pool, independent of the search orchestrator's parallelism choice.
	NJobs int
}

// ObjectiveCalculator recomputes the objective triple directly from
// ml-representation candidates, classifies every candidate against the
// thresholds, and selects representative successful attacks. It is usable on
// optimizer output as well as on candidates produced by a different encoding
// path.
type ObjectiveCalculator struct {
	cfg       ObjectiveCalculatorConfig
	catGroups []framework.Block
}

func NewObjectiveCalculator(cfg ObjectiveCalculatorConfig) (*ObjectiveCalculator, error) {
	if cfg.Classifier == nil || cfg.Constraints == nil {
		return nil, fmt.Errorf("objective calculator requires a classifier and a constraint evaluator")
	}
	if cfg.MinMaxScaler == nil {
		return nil, fmt.Errorf("objective calculator requires a fitted min-max scaler")
	}
	switch cfg.Norm {
	case framework.NormL2, framework.NormLinf:
	default:
		return nil, fmt.Errorf("unsupported norm %q", cfg.Norm)
	}
	return &ObjectiveCalculator{
		cfg:       cfg,
		catGroups: categoricalGroups(cfg.Constraints.FeatureTypes()),
	}, nil
}

// categoricalGroups extracts the one-hot column ranges from the per-column
// feature tags.
func categoricalGroups(tags []framework.FeatureTag) []framework.Block {
	var groups []framework.Block
	for i := 0; i < len(tags); {
		if tags[i].Kind != framework.FeatureCategorical {
			i++
			continue
		}
		j := i + 1
		for j < len(tags) && tags[j].Kind == framework.FeatureCategorical && tags[j].Group == tags[i].Group {
			j++
		}
		groups = append(groups, framework.Block{Start: i, End: j})
		i = j
	}
	return groups
}

// calculateObjectives returns one row per candidate with columns
// [constraint violation, misclassification, distance]. Constraint violation
// folds in the one-hot encoding-consistency check.
func (c *ObjectiveCalculator) calculateObjectives(xInitial []float64, xF [][]float64) ([][]float64, error) {
	gAll, err := c.cfg.Constraints.Evaluate(xF)
	if err != nil {
		return nil, fmt.Errorf("constraint evaluation: %w", err)
	}

	cv := make([]float64, len(xF))
	for i, row := range gAll {
		sum := 0.0
		for _, g := range row {
			if g > 0 {
				sum += g
			}
		}
		if v := c.oneHotViolation(xF[i]); v > 0 {
			sum += v
		}
		cv[i] = sum
	}

	xML := xF
	if c.cfg.MLScaler != nil {
		if xML, err = c.cfg.MLScaler.Transform(xF); err != nil {
			return nil, fmt.Errorf("ml scaling: %w", err)
		}
	}
	proba, err := c.cfg.Classifier.PredictProba(xML)
	if err != nil {
		return nil, fmt.Errorf("classifier scoring: %w", err)
	}

	xiScaled, err := c.cfg.MinMaxScaler.Transform([][]float64{xInitial})
	if err != nil {
		return nil, err
	}
	xScaled, err := c.cfg.MinMaxScaler.Transform(xF)
	if err != nil {
		return nil, err
	}
	if err := checkScaled(xiScaled); err != nil {
		return nil, err
	}
	if err := checkScaled(xScaled); err != nil {
		return nil, err
	}

	order := normOrder(c.cfg.Norm)
	out := make([][]float64, len(xF))
	for i := range xF {
		f1 := proba[i][c.cfg.TargetClass]
		f2 := floats.Distance(xiScaled[0], xScaled[i], order)
		out[i] = []float64{cv[i], f1, f2}
	}
	return out, nil
}

// oneHotViolation measures how far the candidate's categorical groups are
// from resolving to exactly one active category. Zero iff every group is an
// exact one-hot vector.
func (c *ObjectiveCalculator) oneHotViolation(x []float64) float64 {
	total := 0.0
	for _, g := range c.catGroups {
		sum := 0.0
		for i := g.Start; i < g.End; i++ {
			total += math.Min(math.Abs(x[i]), math.Abs(x[i]-1))
			sum += x[i]
		}
		total += math.Abs(sum - 1)
	}
	return total
}

// checkScaled asserts the numeric scaling invariant: scaled values outside
// the tolerant [0, 1] range indicate the scaler is mismatched with the data
// and must not be silently clamped.
func checkScaled(X [][]float64) error {
	for i, row := range X {
		for j, v := range row {
			if v < -scaledTolerance || v > 1+scaledTolerance {
				return fmt.Errorf("scaled value %g at (%d, %d) outside [%g, %g]: min-max scaler mismatched with data", v, i, j, -scaledTolerance, 1+scaledTolerance)
			}
		}
	}
	return nil
}

// objectiveRespected expands objective rows into the 7 boolean success
// columns: the three singles, the three pairs, and the triple conjunction.
func (c *ObjectiveCalculator) objectiveRespected(values [][]float64) [][]bool {
	out := make([][]bool, len(values))
	for i, v := range values {
		constraints := v[0] <= 0
		misclassified := v[1] < c.cfg.Thresholds.F1
		inBall := v[2] <= c.cfg.Thresholds.F2
		out[i] = []bool{
			constraints,
			misclassified,
			inBall,
			constraints && misclassified,
			constraints && inBall,
			misclassified && inBall,
			constraints && misclassified && inBall,
		}
	}
	return out
}

func (c *ObjectiveCalculator) objectiveArray(xInitial []float64, xF [][]float64) ([][]bool, error) {
	values, err := c.calculateObjectives(xInitial, xF)
	if err != nil {
		return nil, err
	}
	return c.objectiveRespected(values), nil
}

// SuccessRate returns, for one sample's population, the per-column mean of
// the 7 success booleans.
func (c *ObjectiveCalculator) SuccessRate(xInitial []float64, xF [][]float64) ([]float64, error) {
	respected, err := c.objectiveArray(xInitial, xF)
	if err != nil {
		return nil, err
	}
	rates := make([]float64, NumSuccessColumns)
	for _, row := range respected {
		for j, ok := range row {
			if ok {
				rates[j]++
			}
		}
	}
	for j := range rates {
		rates[j] /= float64(len(respected))
	}
	return rates, nil
}

// AtLeastOne reports, per success column, whether any individual in the
// population achieves it.
func (c *ObjectiveCalculator) AtLeastOne(xInitial []float64, xF [][]float64) ([]bool, error) {
	rates, err := c.SuccessRate(xInitial, xF)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(rates))
	for i, r := range rates {
		out[i] = r > 0
	}
	return out, nil
}

// SuccessRate3D aggregates a batch: the per-column mean of AtLeastOne across
// samples, i.e. the fraction of samples for which the search found at least
// one qualifying candidate.
func (c *ObjectiveCalculator) SuccessRate3D(xInitials [][]float64, x [][][]float64) ([]float64, error) {
	if len(xInitials) != len(x) {
		return nil, fmt.Errorf("batch mismatch: %d initial states, %d populations", len(xInitials), len(x))
	}
	agg := make([]float64, NumSuccessColumns)
	for i := range x {
		atLeastOne, err := c.AtLeastOne(xInitials[i], x[i])
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		for j, ok := range atLeastOne {
			if ok {
				agg[j]++
			}
		}
	}
	for j := range agg {
		agg[j] /= float64(len(x))
	}
	return agg, nil
}

// SuccessRateTable is the batch-aggregate success-rate table keyed by the
// o1..o7 columns.
type SuccessRateTable struct {
	Columns []string
	Rates   []float64
}

func (t SuccessRateTable) Get(column string) (float64, bool) {
	for i, c := range t.Columns {
		if c == column {
			return t.Rates[i], true
		}
	}
	return 0, false
}

// SuccessRate3DTable labels the batch aggregate with the o1..o7 columns.
func (c *ObjectiveCalculator) SuccessRate3DTable(xInitials [][]float64, x [][][]float64) (SuccessRateTable, error) {
	rates, err := c.SuccessRate3D(xInitials, x)
	if err != nil {
		return SuccessRateTable{}, err
	}
	return SuccessRateTable{Columns: SuccessColumns(), Rates: rates}, nil
}

// SuccessRateGenetic evaluates terminal search results by converting their
// populations back to ml representation first.
func (c *ObjectiveCalculator) SuccessRateGenetic(results []*Result) ([]float64, error) {
	if c.cfg.Encoder == nil {
		return nil, fmt.Errorf("genetic success rates require an encoder")
	}
	xInitials := make([][]float64, len(results))
	pops := make([][][]float64, len(results))
	for i, r := range results {
		xF, err := c.cfg.Encoder.GeneticToML(r.PopulationGenes(), r.InitialState)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		xInitials[i] = r.InitialState
		pops[i] = xF
	}
	return c.SuccessRate3D(xInitials, pops)
}

// getOneSuccessful ranks one sample's candidates by the preferred metric,
// keeps only those respecting the full conjunction, and caps the selection to
// the maxInputs best. maxInputs <= 0 keeps all qualifying candidates. A
// sample with no qualifying candidate yields an empty selection.
func (c *ObjectiveCalculator) getOneSuccessful(xInitial []float64, xGenerated [][]float64, metric PreferredMetric, order SortOrder, maxInputs int) ([][]float64, error) {
	var metricCol int
	switch metric {
	case MetricMisclassification:
		metricCol = 1
	case MetricDistance:
		metricCol = 2
	default:
		return nil, fmt.Errorf("unsupported selection metric %q", metric)
	}

	values, err := c.calculateObjectives(xInitial, xGenerated)
	if err != nil {
		return nil, err
	}
	respected := c.objectiveRespected(values)

	index := make([]int, len(xGenerated))
	for i := range index {
		index[i] = i
	}
	sort.SliceStable(index, func(a, b int) bool {
		if order == OrderDesc {
			return values[index[a]][metricCol] > values[index[b]][metricCol]
		}
		return values[index[a]][metricCol] < values[index[b]][metricCol]
	})

	var selected [][]float64
	for _, i := range index {
		if !respected[i][NumSuccessColumns-1] {
			continue
		}
		selected = append(selected, xGenerated[i])
		if maxInputs > 0 && len(selected) == maxInputs {
			break
		}
	}
	return selected, nil
}

// GetSuccessfulAttacks selects, per sample, the best fully-successful
// candidates. The returned index reports which samples contributed at least
// one attack; the attacks themselves come back concatenated across samples in
// input order.
func (c *ObjectiveCalculator) GetSuccessfulAttacks(xInitials [][]float64, xGenerated [][][]float64, metric PreferredMetric, order SortOrder, maxInputs int) ([][]float64, []bool, error) {
	if len(xInitials) != len(xGenerated) {
		return nil, nil, fmt.Errorf("batch mismatch: %d initial states, %d candidate sets", len(xInitials), len(xGenerated))
	}

	perSample := make([][][]float64, len(xInitials))

	if c.cfg.NJobs == 1 {
		for i := range xInitials {
			selected, err := c.getOneSuccessful(xInitials[i], xGenerated[i], metric, order, maxInputs)
			if err != nil {
				return nil, nil, fmt.Errorf("sample %d: %w", i, err)
			}
			perSample[i] = selected
		}
	} else {
		workers := c.cfg.NJobs
		if workers <= 0 {
			workers = len(xInitials)
		}
		var mu sync.Mutex
		var firstErr error
		p := pool.New().WithMaxGoroutines(workers)
		for i := range xInitials {
			i := i
			p.Go(func() {
				selected, err := c.getOneSuccessful(xInitials[i], xGenerated[i], metric, order, maxInputs)
				mu.Lock()
				defer mu.Unlock()
				if err != nil && firstErr == nil {
					firstErr = fmt.Errorf("sample %d: %w", i, err)
					return
				}
				perSample[i] = selected
			})
		}
		p.Wait()
		if firstErr != nil {
			return nil, nil, firstErr
		}
	}

	index := make([]bool, len(perSample))
	var attacks [][]float64
	for i, sel := range perSample {
		index[i] = len(sel) >= 1
		attacks = append(attacks, sel...)
	}
	return attacks, index, nil
}

// GetSuccessfulAttacksResults runs best-attack selection directly on terminal
// search results.
func (c *ObjectiveCalculator) GetSuccessfulAttacksResults(results []*Result, metric PreferredMetric, order SortOrder, maxInputs int) ([][]float64, []bool, error) {
	if c.cfg.Encoder == nil {
		return nil, nil, fmt.Errorf("result selection requires an encoder")
	}
	xInitials := make([][]float64, len(results))
	pops := make([][][]float64, len(results))
	for i, r := range results {
		xF, err := c.cfg.Encoder.GeneticToML(r.PopulationGenes(), r.InitialState)
		if err != nil {
			return nil, nil, fmt.Errorf("result %d: %w", i, err)
		}
		xInitials[i] = r.InitialState
		pops[i] = xF
	}
	return c.GetSuccessfulAttacks(xInitials, pops, metric, order, maxInputs)
}
