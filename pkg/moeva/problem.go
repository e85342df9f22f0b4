package moeva

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

// NumObjectives is the fixed objective triple: misclassification score,
// normalized distance, aggregated constraint violation.
const NumObjectives = 3

const problemName = "ConstrainedAttack"

// HistoryMode selects what the evaluator appends to its in-memory log each
// generation.
type HistoryMode string

const (
	// HistoryNone disables history capture.
	HistoryNone HistoryMode = ""
	// HistoryReduced records the objective matrix of every generation.
	HistoryReduced HistoryMode = "reduced"
	// HistoryFull records the objective matrix concatenated with the raw
	// per-constraint violation columns.
	HistoryFull HistoryMode = "full"
)

// ExtraObjective appends additional objective values, one per individual. It
// receives the genetic population, the ml representation, the normalized ml
// representation and the (optionally ml-scaled) classifier input.
type ExtraObjective func(x, xF, xFNorm, xML [][]float64) ([]float64, error)

// AttackProblemConfig configures the fitness evaluator for one sample's run.
type AttackProblemConfig struct {
	InitialState []float64
	Classifier   framework.Classifier
	TargetClass  int
	Encoder      framework.Encoder
	Constraints  framework.ConstraintEvaluator

	ScaleObjectives bool
	History         HistoryMode
	MLScaler        Transformer
	Norm            framework.Norm
	Extras          []ExtraObjective
}

// AttackProblem maps one generation of genetic candidates to an objective
// matrix: probability of the target class, distance to the initial state in
// normalized feature space, and summed positive constraint violations. It is
// bound to a single immutable initial state and owns an append-only history
// buffer for the duration of one run.
type AttackProblem struct {
	cfg AttackProblemConfig

	xInitialNorm []float64
	xl, xu       []float64
	f2Scaler     distanceScaler

	history [][][]float64
}

func NewAttackProblem(cfg AttackProblemConfig) (*AttackProblem, error) {
	if cfg.Classifier == nil || cfg.Encoder == nil || cfg.Constraints == nil {
		return nil, fmt.Errorf("attack problem requires a classifier, an encoder and a constraint evaluator")
	}
	if len(cfg.InitialState) == 0 {
		return nil, fmt.Errorf("attack problem requires a non-empty initial state")
	}
	switch cfg.Norm {
	case framework.NormL2, framework.NormLinf:
	default:
		return nil, fmt.Errorf("unsupported norm %q", cfg.Norm)
	}
	switch cfg.History {
	case HistoryNone, HistoryReduced, HistoryFull:
	default:
		return nil, fmt.Errorf("unsupported history mode %q", cfg.History)
	}

	normed := cfg.Encoder.Normalize([][]float64{cfg.InitialState})
	xl, xu := cfg.Encoder.MinMaxGenetic()

	return &AttackProblem{
		cfg:          cfg,
		xInitialNorm: normed[0],
		xl:           xl,
		xu:           xu,
		f2Scaler:     newDistanceScaler(cfg.Norm, len(cfg.InitialState)),
	}, nil
}

func (p *AttackProblem) Name() string { return problemName }

func (p *AttackProblem) NumVariables() int { return p.cfg.Encoder.GeneticLength() }

func (p *AttackProblem) NumObjectives() int { return NumObjectives + len(p.cfg.Extras) }

func (p *AttackProblem) Bounds() (xl, xu []float64) { return p.xl, p.xu }

// InitialState returns the sample the run is attacking.
func (p *AttackProblem) InitialState() []float64 { return p.cfg.InitialState }

// History returns the per-generation log captured so far. Nil when history
// capture is disabled.
func (p *AttackProblem) History() [][][]float64 { return p.history }

// Evaluate scores one generation of genetic candidates.
func (p *AttackProblem) Evaluate(X [][]float64) ([][]float64, error) {
	p.checkBounds(X)

	xF, err := p.cfg.Encoder.GeneticToML(X, p.cfg.InitialState)
	if err != nil {
		return nil, fmt.Errorf("genetic to ml conversion: %w", err)
	}
	xFNorm := p.cfg.Encoder.Normalize(xF)

	xML := xF
	if p.cfg.MLScaler != nil {
		if xML, err = p.cfg.MLScaler.Transform(xF); err != nil {
			return nil, fmt.Errorf("ml scaling: %w", err)
		}
	}

	f1, err := p.objMisclassify(xML)
	if err != nil {
		return nil, err
	}
	f2 := p.objDistance(xFNorm)
	g, gAll, err := p.objConstraints(xF)
	if err != nil {
		return nil, err
	}

	F := make([][]float64, len(X))
	for i := range X {
		F[i] = []float64{f1[i], f2[i], g[i]}
	}
	for _, extra := range p.cfg.Extras {
		col, err := extra(X, xF, xFNorm, xML)
		if err != nil {
			return nil, fmt.Errorf("additional objective: %w", err)
		}
		if len(col) != len(X) {
			return nil, fmt.Errorf("additional objective returned %d values for a population of %d", len(col), len(X))
		}
		for i := range F {
			F[i] = append(F[i], col[i])
		}
	}

	p.appendHistory(F, gAll)
	return F, nil
}

// checkBounds emits a non-fatal diagnostic if any genetic value falls outside
// the declared bounds. Evolution continues either way.
func (p *AttackProblem) checkBounds(X [][]float64) {
	below, above := 0, 0
	for _, row := range X {
		for j, v := range row {
			if v < p.xl[j] {
				below++
			}
			if v > p.xu[j] {
				above++
			}
		}
	}
	if below > 0 {
		klog.Warningf("%s: %d genetic values below the declared lower bound", problemName, below)
	}
	if above > 0 {
		klog.Warningf("%s: %d genetic values above the declared upper bound", problemName, above)
	}
}

func (p *AttackProblem) objMisclassify(xML [][]float64) ([]float64, error) {
	proba, err := p.cfg.Classifier.PredictProba(xML)
	if err != nil {
		return nil, fmt.Errorf("classifier scoring: %w", err)
	}
	f1 := make([]float64, len(proba))
	for i, row := range proba {
		if p.cfg.TargetClass < 0 || p.cfg.TargetClass >= len(row) {
			return nil, fmt.Errorf("target class %d out of range for %d classes", p.cfg.TargetClass, len(row))
		}
		f1[i] = row[p.cfg.TargetClass]
	}
	return f1, nil
}

func (p *AttackProblem) objDistance(xFNorm [][]float64) []float64 {
	order := normOrder(p.cfg.Norm)
	f2 := make([]float64, len(xFNorm))
	for i, row := range xFNorm {
		d := floats.Distance(row, p.xInitialNorm, order)
		if p.cfg.ScaleObjectives {
			d = p.f2Scaler.scale(d)
		}
		f2[i] = d
	}
	return f2
}

// objConstraints clips satisfied (non-positive) violations to zero and sums
// per individual. The raw clipped matrix is returned for full-history capture.
func (p *AttackProblem) objConstraints(xF [][]float64) ([]float64, [][]float64, error) {
	gAll, err := p.cfg.Constraints.Evaluate(xF)
	if err != nil {
		return nil, nil, fmt.Errorf("constraint evaluation: %w", err)
	}
	g := make([]float64, len(gAll))
	for i, row := range gAll {
		sum := 0.0
		for j, v := range row {
			if v < 0 {
				row[j] = 0
				continue
			}
			sum += v
		}
		g[i] = sum
	}
	return g, gAll, nil
}

func (p *AttackProblem) appendHistory(F [][]float64, gAll [][]float64) {
	switch p.cfg.History {
	case HistoryReduced:
		p.history = append(p.history, copyMatrix(F))
	case HistoryFull:
		entry := make([][]float64, len(F))
		for i := range F {
			row := make([]float64, 0, len(F[i])+len(gAll[i]))
			row = append(row, F[i]...)
			row = append(row, gAll[i]...)
			entry[i] = row
		}
		p.history = append(p.history, entry)
	}
}

func copyMatrix(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = make([]float64, len(row))
		copy(out[i], row)
	}
	return out
}
