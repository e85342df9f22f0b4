// Package benchmarks holds synthetic problems used to validate optimizer
// strategies independent of attack semantics.
package benchmarks

import (
	"math"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

// ZDT1 is a benchmark function used to test the correctness of
// multi-objective algorithms. For more details, check the article below:
// https://datacrayon.com/practical-evolutionary-algorithms/synthetic-objective-functions-and-zdt1/
type ZDT1 struct {
	numVars int
}

func NewZDT1(numVars int) *ZDT1 {
	return &ZDT1{numVars: numVars}
}

func (p *ZDT1) Name() string { return "ZDT1" }

func (p *ZDT1) NumVariables() int { return p.numVars }

func (p *ZDT1) NumObjectives() int { return 2 }

func (p *ZDT1) Bounds() (xl, xu []float64) {
	xl = make([]float64, p.numVars)
	xu = make([]float64, p.numVars)
	for i := range xu {
		xu[i] = 1
	}
	return xl, xu
}

// Layout declares every variable continuous; ZDT1 has no integer or
// categorical structure.
func (p *ZDT1) Layout() framework.Layout {
	types := make([]framework.GeneType, p.numVars)
	return framework.Layout{Types: types}
}

func (p *ZDT1) Evaluate(X [][]float64) ([][]float64, error) {
	F := make([][]float64, len(X))
	for i, x := range X {
		g := 1.0
		for j := 1; j < len(x); j++ {
			g += 9.0 * x[j] / float64(len(x)-1)
		}
		f1 := x[0]
		f2 := g * (1.0 - math.Sqrt(x[0]/g))
		F[i] = []float64{f1, f2}
	}
	return F, nil
}

// TrueParetoFront generates numPoints points on the true Pareto front.
func (p *ZDT1) TrueParetoFront(numPoints int) []framework.ObjectiveSpacePoint {
	points := make([]framework.ObjectiveSpacePoint, numPoints)
	for i := 0; i < numPoints; i++ {
		x := float64(i) / float64(numPoints-1)
		points[i] = framework.ObjectiveSpacePoint{x, 1.0 - math.Sqrt(x)}
	}
	return points
}
