package moeva

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/algorithms"
	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
	"github.com/Srinivas0rch/moeva2/pkg/moeva/operators"
)

// PerturbedSampling enables the alternate initial sampler that seeds a
// fraction of the population inside an Lp ball around the initial state.
type PerturbedSampling struct {
	Ratio float64
	Eps   float64
}

// Config parameterizes a batch attack. Classifier, constraints and encoder
// are built through factories because every worker must own a fresh instance:
// these collaborators are not guaranteed safe for concurrent access.
type Config struct {
	NewClassifier  func() (framework.Classifier, error)
	NewConstraints func() (framework.ConstraintEvaluator, error)
	NewEncoder     func(constraints framework.ConstraintEvaluator, xInitial []float64) (framework.Encoder, error)

	Norm framework.Norm
	NGen int
	NPop int

	// CrossoverProbability defaults to 0.9, MutationProbability to
	// 1/genetic_length, MutationEta to 20.
	CrossoverProbability float64
	MutationProbability  float64
	MutationEta          float64

	ScaleObjectives bool
	SaveHistory     HistoryMode
	MLScaler        Transformer
	Extras          []ExtraObjective

	// Perturbed selects MixedSamplingLp instead of the initial-state sampler.
	Perturbed *PerturbedSampling

	// Optimizer defaults to NSGA-II.
	Optimizer framework.OptimizerFactory

	// Seed fixes per-sample randomness; 0 draws a fresh base seed.
	Seed int64
	// NJobs == 1 forces sequential execution; NJobs <= 0 uses all CPUs.
	NJobs   int
	Verbose bool
}

// Moeva2 drives one evolutionary run per input sample and fans the runs out
// across a batch, sequentially or in parallel. Runs are independent: no
// mutable state is shared between samples.
type Moeva2 struct {
	cfg      Config
	baseSeed int64
}

func New(cfg Config) (*Moeva2, error) {
	if cfg.NewClassifier == nil || cfg.NewConstraints == nil || cfg.NewEncoder == nil {
		return nil, fmt.Errorf("classifier, constraints and encoder factories are all required")
	}
	if cfg.NPop <= 0 || cfg.NGen <= 0 {
		return nil, fmt.Errorf("invalid budget: n_pop %d, n_gen %d", cfg.NPop, cfg.NGen)
	}
	switch cfg.Norm {
	case framework.NormL2, framework.NormLinf:
	default:
		return nil, fmt.Errorf("unsupported norm %q", cfg.Norm)
	}
	if cfg.CrossoverProbability == 0 {
		cfg.CrossoverProbability = 0.9
	}
	if cfg.MutationEta == 0 {
		cfg.MutationEta = 20
	}
	if cfg.Optimizer == nil {
		cfg.Optimizer = algorithms.Factory(algorithms.NSGA2Config{})
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Moeva2{cfg: cfg, baseSeed: seed}, nil
}

// RepeatClass expands a single shared target class into a per-sample vector.
func RepeatClass(class, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = class
	}
	return out
}

// GenerateClass attacks every sample in the batch toward the same target
// class.
func (m *Moeva2) GenerateClass(ctx context.Context, X [][]float64, targetClass int) ([]*Result, error) {
	return m.Generate(ctx, X, RepeatClass(targetClass, len(X)))
}

// Generate runs one evolutionary search per input sample and returns the
// per-sample results in input order, regardless of execution mode. All
// validation happens before any search starts.
func (m *Moeva2) Generate(ctx context.Context, X [][]float64, targetClasses []int) ([]*Result, error) {
	if err := m.validateInput(X, targetClasses); err != nil {
		return nil, err
	}

	logger := klog.FromContext(ctx)
	start := time.Now()

	results := make([]*Result, len(X))
	workers := m.cfg.NJobs
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if workers == 1 {
		for i, x := range X {
			res, err := m.generateOne(ctx, i, x, targetClasses[i])
			if err != nil {
				return nil, fmt.Errorf("sample %d: %w", i, err)
			}
			results[i] = res
			m.reportProgress(logger, i+1, len(X))
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, x := range X {
			i, x := i, x
			g.Go(func() error {
				res, err := m.generateOne(gctx, i, x, targetClasses[i])
				if err != nil {
					return fmt.Errorf("sample %d: %w", i, err)
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	logger.V(2).Info("batch attack complete", "samples", len(X), "workers", workers, "elapsed", time.Since(start))
	return results, nil
}

func (m *Moeva2) validateInput(X [][]float64, targetClasses []int) error {
	if len(X) == 0 {
		return fmt.Errorf("x must have 2 dimensions, got an empty batch")
	}
	width := len(X[0])
	if width == 0 {
		return fmt.Errorf("x must have 2 dimensions, got empty rows")
	}
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("x is ragged: row %d has %d features, row 0 has %d", i, len(row), width)
		}
	}
	if len(targetClasses) != len(X) {
		return fmt.Errorf("target classes must be a single integer or a vector of length %d, got length %d", len(X), len(targetClasses))
	}

	constraints, err := m.cfg.NewConstraints()
	if err != nil {
		return fmt.Errorf("construct constraint evaluator: %w", err)
	}
	if mask := constraints.MutableMask(); len(mask) != width {
		return fmt.Errorf("mutable mask has %d features, x has %d", len(mask), width)
	}
	return nil
}

// generateOne runs a single sample's search in an isolated scope: a freshly
// loaded classifier, a fresh constraint evaluator and an encoder bound to the
// sample.
func (m *Moeva2) generateOne(ctx context.Context, index int, x []float64, targetClass int) (*Result, error) {
	classifier, err := m.cfg.NewClassifier()
	if err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}
	constraints, err := m.cfg.NewConstraints()
	if err != nil {
		return nil, fmt.Errorf("construct constraint evaluator: %w", err)
	}
	encoder, err := m.cfg.NewEncoder(constraints, x)
	if err != nil {
		return nil, fmt.Errorf("construct encoder: %w", err)
	}

	problem, err := NewAttackProblem(AttackProblemConfig{
		InitialState:    x,
		Classifier:      classifier,
		TargetClass:     targetClass,
		Encoder:         encoder,
		Constraints:     constraints,
		ScaleObjectives: m.cfg.ScaleObjectives,
		History:         m.cfg.SaveHistory,
		MLScaler:        m.cfg.MLScaler,
		Norm:            m.cfg.Norm,
		Extras:          m.cfg.Extras,
	})
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(m.baseSeed + int64(index)))

	layout := encoder.Layout()
	xl, xu := encoder.MinMaxGenetic()
	var sampler framework.Sampler
	if p := m.cfg.Perturbed; p != nil {
		sampler = operators.NewMixedSamplingLp(encoder, x, p.Ratio, p.Eps, m.cfg.Norm)
	} else {
		sampler = operators.NewInitialStateSampling(encoder, x)
	}
	mutProb := m.cfg.MutationProbability
	if mutProb == 0 {
		mutProb = 1 / float64(layout.Len())
	}

	optimizer, err := m.cfg.Optimizer(framework.SearchSpec{
		Problem:        problem,
		Sampler:        sampler,
		Crossover:      operators.NewMixedCrossover(layout, m.cfg.CrossoverProbability),
		Mutation:       operators.NewMixedMutation(layout, xl, xu, mutProb, m.cfg.MutationEta),
		PopulationSize: m.cfg.NPop,
		Generations:    m.cfg.NGen,
		RNG:            rng,
	})
	if err != nil {
		return nil, fmt.Errorf("construct optimizer: %w", err)
	}

	population, err := optimizer.Run(ctx)
	if err != nil {
		return nil, err
	}

	if m.cfg.SaveHistory != HistoryNone {
		return newHistoryResult(problem, population), nil
	}
	return newEfficientResult(problem, population), nil
}

func (m *Moeva2) reportProgress(logger klog.Logger, done, total int) {
	if !m.cfg.Verbose {
		return
	}
	logger.Info("attack progress", "done", done, "total", total)
}
