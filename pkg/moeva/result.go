package moeva

import "github.com/Srinivas0rch/moeva2/pkg/moeva/framework"

// Result is the immutable terminal state of one sample's evolutionary run.
// The compact form keeps only the final population and the initial state; in
// history mode the full per-generation objective log is retained as well.
type Result struct {
	InitialState []float64
	Population   []framework.Individual

	// History holds one objective matrix per generation. Nil unless history
	// capture was enabled for the run.
	History [][][]float64
}

func newEfficientResult(problem *AttackProblem, population []framework.Individual) *Result {
	return &Result{
		InitialState: problem.InitialState(),
		Population:   population,
	}
}

func newHistoryResult(problem *AttackProblem, population []framework.Individual) *Result {
	return &Result{
		InitialState: problem.InitialState(),
		Population:   population,
		History:      problem.History(),
	}
}

// PopulationGenes returns the genetic vectors of the terminal population.
func (r *Result) PopulationGenes() [][]float64 {
	X := make([][]float64, len(r.Population))
	for i, ind := range r.Population {
		X[i] = ind.Genes
	}
	return X
}
