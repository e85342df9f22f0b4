package util

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

// ParetoFrontProvider is implemented by problems whose true Pareto front is
// known, such as the benchmark problems.
type ParetoFrontProvider interface {
	Name() string
	TrueParetoFront(int) []framework.ObjectiveSpacePoint
}

// PlotResults renders a 2D scatter plot of the found objective-space points
// to an HTML file, overlaid with the true Pareto front when the problem
// provides one.
func PlotResults(results []framework.ObjectiveSpacePoint, problem ParetoFrontProvider, algorithmName, outPath string) error {
	if len(results) == 0 {
		return fmt.Errorf("results are empty for problem %s", problem.Name())
	}
	if len(results[0]) != 2 {
		return fmt.Errorf("can only plot 2D objective spaces, problem %s has %d objectives", problem.Name(), len(results[0]))
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s Results for %s", algorithmName, problem.Name()),
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "f1(x)",
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "f2(x)",
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}))

	if front := problem.TrueParetoFront(100); len(front) > 0 {
		trueX := make([]opts.ScatterData, len(front))
		for i, p := range front {
			trueX[i] = opts.ScatterData{
				Value:      p,
				Symbol:     "circle",
				SymbolSize: 10,
			}
		}
		scatter.AddSeries("True Pareto Front", trueX)
	}

	foundX := make([]opts.ScatterData, len(results))
	for i, res := range results {
		foundX[i] = opts.ScatterData{
			Value:      []float64{res[0], res[1]},
			Symbol:     "triangle",
			SymbolSize: 10,
		}
	}

	scatter.AddSeries(fmt.Sprintf("%s Solutions", algorithmName), foundX).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
			charts.WithEmphasisOpts(opts.Emphasis{}),
		)

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return scatter.Render(f)
}
