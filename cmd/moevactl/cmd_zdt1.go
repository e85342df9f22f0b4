package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/algorithms"
	"github.com/Srinivas0rch/moeva2/pkg/moeva/benchmarks"
	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
	"github.com/Srinivas0rch/moeva2/pkg/moeva/operators"
	"github.com/Srinivas0rch/moeva2/pkg/moeva/util"
)

// newZDT1Command wires the search engine to a benchmark with a known Pareto
// front. Useful for sanity-checking optimizer changes without a model.
func newZDT1Command() *cobra.Command {
	var (
		numVars int
		nPop    int
		nGen    int
		seed    int64
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "zdt1",
		Short: "Run NSGA-II on the ZDT1 benchmark and plot the front",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := klog.FromContext(cmd.Context())

			problem := benchmarks.NewZDT1(numVars)
			xl, xu := problem.Bounds()
			layout := problem.Layout()

			opt, err := algorithms.NewNSGAII(algorithms.NSGA2Config{}, framework.SearchSpec{
				Problem:        problem,
				Sampler:        operators.NewRandomSampling(layout, xl, xu),
				Crossover:      operators.NewMixedCrossover(layout, 0.9),
				Mutation:       operators.NewMixedMutation(layout, xl, xu, 1.0/float64(numVars), 20),
				PopulationSize: nPop,
				Generations:    nGen,
				RNG:            rand.New(rand.NewSource(seed)),
			})
			if err != nil {
				return err
			}
			population, err := opt.Run(cmd.Context())
			if err != nil {
				return err
			}
			front := algorithms.GetParetoFront(population)
			logger.Info("search finished", "paretoSize", len(front), "population", len(population))

			if err := util.PlotResults(front, problem, opt.Name(), outPath); err != nil {
				return fmt.Errorf("plot results: %w", err)
			}
			logger.Info("plot written", "path", outPath)
			return nil
		},
	}
	cmd.Flags().IntVar(&numVars, "vars", 30, "number of decision variables")
	cmd.Flags().IntVar(&nPop, "pop", 100, "population size")
	cmd.Flags().IntVar(&nGen, "gen", 250, "number of generations")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().StringVar(&outPath, "out", "zdt1.html", "output HTML path for the Pareto plot")
	return cmd
}
