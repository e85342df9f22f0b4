package framework

import (
	"context"
	"fmt"
	"math/rand"
)

// GeneType tags one position of a genetic vector.
type GeneType int

const (
	// GeneReal is a continuous position bounded by [xl, xu].
	GeneReal GeneType = iota
	// GeneInt is an integer position; operators round it after variation.
	GeneInt
	// GeneSoftmax is one component of a probability-simplex block encoding a
	// categorical choice. Block membership is carried separately in Layout.
	GeneSoftmax
)

func (t GeneType) String() string {
	switch t {
	case GeneReal:
		return "real"
	case GeneInt:
		return "int"
	case GeneSoftmax:
		return "softmax"
	default:
		return fmt.Sprintf("genetype(%d)", int(t))
	}
}

// Block is a half-open range [Start, End) of softmax positions that jointly
// encode one categorical variable. Components of a block always sum to 1.
type Block struct {
	Start int
	End   int
}

func (b Block) Len() int { return b.End - b.Start }

// Layout describes the mixed-type structure of a genetic vector: a parallel
// type-tag slice plus explicit block boundaries, so operators can dispatch on
// gene type without reinterpreting raw values.
type Layout struct {
	Types  []GeneType
	Blocks []Block
}

func (l Layout) Len() int { return len(l.Types) }

// ScalarIndices returns the positions carrying the given scalar gene type.
func (l Layout) ScalarIndices(t GeneType) []int {
	var idx []int
	for i, gt := range l.Types {
		if gt == t {
			idx = append(idx, i)
		}
	}
	return idx
}

// Validate checks that blocks are in range, non-overlapping, in order, and
// cover exactly the softmax-tagged positions.
func (l Layout) Validate() error {
	covered := make([]bool, len(l.Types))
	prevEnd := 0
	for _, b := range l.Blocks {
		if b.Start < 0 || b.End > len(l.Types) || b.Len() < 2 {
			return fmt.Errorf("invalid softmax block [%d, %d) for vector of length %d", b.Start, b.End, len(l.Types))
		}
		if b.Start < prevEnd {
			return fmt.Errorf("softmax block [%d, %d) overlaps the previous block", b.Start, b.End)
		}
		for i := b.Start; i < b.End; i++ {
			if l.Types[i] != GeneSoftmax {
				return fmt.Errorf("position %d inside block [%d, %d) is tagged %s, want softmax", i, b.Start, b.End, l.Types[i])
			}
			covered[i] = true
		}
		prevEnd = b.End
	}
	for i, gt := range l.Types {
		if gt == GeneSoftmax && !covered[i] {
			return fmt.Errorf("softmax position %d does not belong to any block", i)
		}
	}
	return nil
}

// Individual represents one evaluated solution in the population.
type Individual struct {
	Genes      []float64
	Objectives []float64

	// Rank and Distance are NSGA-II bookkeeping.
	Rank     int
	Distance float64
}

// ObjectiveSpacePoint represents an N-dimensional point in the objective space.
// As an example, for a problem with 2 objective functions f1 and f2, a point
// in the objective space could be [f1(x'), f2(x')], for the input of x'.
type ObjectiveSpacePoint []float64

// Problem describes the contract a batch-evaluated optimization problem needs
// to implement. Evaluate scores one generation at a time and returns one row
// of objective values per individual; it must be stateless across calls apart
// from any append-only diagnostics it keeps.
type Problem interface {
	Name() string

	NumVariables() int
	NumObjectives() int
	Bounds() (xl, xu []float64)

	Evaluate(X [][]float64) ([][]float64, error)
}

// Sampler produces an initial population.
type Sampler interface {
	Sample(rng *rand.Rand, n int) ([][]float64, error)
}

// Crossover recombines two parents into two children of identical shape and
// type layout. Implementations never violate bounds or block-sum invariants.
type Crossover interface {
	Do(rng *rand.Rand, p1, p2 []float64) ([]float64, []float64)
}

// Mutation perturbs one genetic vector in place, preserving bounds and
// block-sum invariants.
type Mutation interface {
	Do(rng *rand.Rand, x []float64)
}

// Optimizer is the injected multi-objective search strategy. Any correct
// algorithm that accepts a population, a fitness function and type-aware
// variation operators, and returns a final population, satisfies it.
type Optimizer interface {
	Name() string
	Run(ctx context.Context) ([]Individual, error)
}

// SearchSpec bundles everything an Optimizer needs for one run.
type SearchSpec struct {
	Problem   Problem
	Sampler   Sampler
	Crossover Crossover
	Mutation  Mutation

	PopulationSize int
	Generations    int

	RNG *rand.Rand
}

// OptimizerFactory builds a fresh Optimizer for one sample's run.
type OptimizerFactory func(SearchSpec) (Optimizer, error)

// Norm selects the distance objective's norm.
type Norm string

const (
	NormL2   Norm = "l2"
	NormLinf Norm = "linf"
)

// ParseNorm maps the accepted spellings onto a Norm. Anything else is an
// unsupported configuration and fails construction.
func ParseNorm(s string) (Norm, error) {
	switch s {
	case "2", "l2", "L2":
		return NormL2, nil
	case "inf", "linf", "Linf", "LInf":
		return NormLinf, nil
	default:
		return "", fmt.Errorf("unsupported norm %q: want one of 2, l2, inf, linf", s)
	}
}
