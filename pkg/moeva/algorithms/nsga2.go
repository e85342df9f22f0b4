package algorithms

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"k8s.io/klog/v2"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

const (
	Name = "NSGA-II"
)

// NSGA2Config holds the algorithm parameters that are not part of the search
// spec itself.
type NSGA2Config struct {
	TournamentSize int
}

// NSGAII runs non-dominated sorting with crowding-distance selection over a
// batch-evaluated problem. Variation is delegated to the injected type-aware
// operators, so the algorithm itself never inspects gene types.
type NSGAII struct {
	Config NSGA2Config
	spec   framework.SearchSpec
	rng    *rand.Rand
}

// NewNSGAII creates an NSGA-II instance for one search run.
func NewNSGAII(cfg NSGA2Config, spec framework.SearchSpec) (*NSGAII, error) {
	if spec.Problem == nil || spec.Sampler == nil || spec.Crossover == nil || spec.Mutation == nil {
		return nil, fmt.Errorf("search spec is missing a problem or an operator")
	}
	if spec.PopulationSize <= 0 || spec.Generations <= 0 {
		return nil, fmt.Errorf("invalid budget: population %d, generations %d", spec.PopulationSize, spec.Generations)
	}
	if cfg.TournamentSize <= 0 {
		cfg.TournamentSize = 2
	}
	rng := spec.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &NSGAII{Config: cfg, spec: spec, rng: rng}, nil
}

// Factory adapts NewNSGAII to the injected-optimizer contract.
func Factory(cfg NSGA2Config) framework.OptimizerFactory {
	return func(spec framework.SearchSpec) (framework.Optimizer, error) {
		return NewNSGAII(cfg, spec)
	}
}

func (n *NSGAII) Name() string {
	return Name
}

// Run executes the generational loop and returns the terminal population. The
// loop is strictly sequential: generation N's population depends on the
// evaluated fitness of generation N-1.
func (n *NSGAII) Run(ctx context.Context) ([]framework.Individual, error) {
	logger := klog.FromContext(ctx)

	population, err := n.initialize()
	if err != nil {
		return nil, err
	}

	for gen := 0; gen < n.spec.Generations; gen++ {
		offspring, err := n.makeOffspring(population)
		if err != nil {
			return nil, fmt.Errorf("generation %d: %w", gen, err)
		}

		combined := append(population, offspring...)
		fronts := framework.NonDominatedSort(combined)

		population = make([]framework.Individual, 0, n.spec.PopulationSize)
		frontIndex := 0
		for frontIndex < len(fronts) && len(population)+len(fronts[frontIndex]) <= n.spec.PopulationSize {
			CrowdingDistance(fronts[frontIndex])
			population = append(population, fronts[frontIndex]...)
			frontIndex++
		}
		if len(population) < n.spec.PopulationSize && frontIndex < len(fronts) {
			CrowdingDistance(fronts[frontIndex])
			sort.Slice(fronts[frontIndex], func(i, j int) bool {
				return fronts[frontIndex][i].Distance > fronts[frontIndex][j].Distance
			})
			population = append(population, fronts[frontIndex][:n.spec.PopulationSize-len(population)]...)
		}

		logger.V(5).Info("generation complete", "problem", n.spec.Problem.Name(), "generation", gen, "fronts", len(fronts))
	}

	return population, nil
}

func (n *NSGAII) initialize() ([]framework.Individual, error) {
	X, err := n.spec.Sampler.Sample(n.rng, n.spec.PopulationSize)
	if err != nil {
		return nil, fmt.Errorf("sample initial population: %w", err)
	}
	return n.evaluate(X)
}

// makeOffspring produces PopulationSize children via tournament selection,
// crossover and mutation, evaluated in a single batch.
func (n *NSGAII) makeOffspring(population []framework.Individual) ([]framework.Individual, error) {
	X := make([][]float64, 0, n.spec.PopulationSize)
	for len(X) < n.spec.PopulationSize {
		parent1 := n.tournamentSelect(population)
		parent2 := n.tournamentSelect(population)

		child1, child2 := n.spec.Crossover.Do(n.rng, parent1.Genes, parent2.Genes)
		n.spec.Mutation.Do(n.rng, child1)
		n.spec.Mutation.Do(n.rng, child2)

		X = append(X, child1)
		if len(X) < n.spec.PopulationSize {
			X = append(X, child2)
		}
	}
	return n.evaluate(X)
}

func (n *NSGAII) evaluate(X [][]float64) ([]framework.Individual, error) {
	F, err := n.spec.Problem.Evaluate(X)
	if err != nil {
		return nil, err
	}
	if len(F) != len(X) {
		return nil, fmt.Errorf("objective matrix has %d rows for a population of %d", len(F), len(X))
	}
	population := make([]framework.Individual, len(X))
	for i := range X {
		population[i] = framework.Individual{Genes: X[i], Objectives: F[i]}
	}
	return population, nil
}

func (n *NSGAII) tournamentSelect(population []framework.Individual) framework.Individual {
	best := population[n.rng.Intn(len(population))]
	for i := 1; i < n.Config.TournamentSize; i++ {
		contestant := population[n.rng.Intn(len(population))]
		if contestant.Rank < best.Rank || (contestant.Rank == best.Rank && contestant.Distance > best.Distance) {
			best = contestant
		}
	}
	return best
}

// CrowdingDistance calculates crowding distance for individuals in a front.
func CrowdingDistance(front []framework.Individual) {
	if len(front) <= 2 {
		for i := range front {
			front[i].Distance = math.Inf(1)
		}
		return
	}

	numObjectives := len(front[0].Objectives)
	for i := range front {
		front[i].Distance = 0
	}

	for m := 0; m < numObjectives; m++ {
		sort.Slice(front, func(i, j int) bool {
			return front[i].Objectives[m] < front[j].Objectives[m]
		})

		front[0].Distance = math.Inf(1)
		front[len(front)-1].Distance = math.Inf(1)

		objectiveRange := front[len(front)-1].Objectives[m] - front[0].Objectives[m]
		if objectiveRange == 0 {
			continue
		}

		for i := 1; i < len(front)-1; i++ {
			front[i].Distance += (front[i+1].Objectives[m] - front[i-1].Objectives[m]) / objectiveRange
		}
	}
}

// GetParetoFront extracts the objective-space points of the first
// non-dominated front of a population.
func GetParetoFront(population []framework.Individual) []framework.ObjectiveSpacePoint {
	if len(population) == 0 {
		return nil
	}
	fronts := framework.NonDominatedSort(population)
	if len(fronts) == 0 || len(fronts[0]) == 0 {
		return nil
	}
	front := make([]framework.ObjectiveSpacePoint, len(fronts[0]))
	for i, ind := range fronts[0] {
		point := make(framework.ObjectiveSpacePoint, len(ind.Objectives))
		copy(point, ind.Objectives)
		front[i] = point
	}
	return front
}
