package tabular

import (
	"fmt"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

// Encoder maps between the ml representation (every feature, categorical
// features one-hot) and the genetic representation (mutable features only,
// categorical features as probability-simplex blocks).
type Encoder struct {
	fs     *FeatureSet
	layout framework.Layout

	// geneCols[i] is the ml column the i-th gene reads from / writes to.
	geneCols []int
	xl, xu   []float64

	colMin, colMax []float64
}

var _ framework.Encoder = (*Encoder)(nil)

func NewEncoder(fs *FeatureSet) (*Encoder, error) {
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	e := &Encoder{fs: fs}
	e.colMin, e.colMax = fs.columnMinMax()

	col := 0
	for _, f := range fs.Features {
		if !f.Mutable {
			col += f.width()
			continue
		}
		switch f.Type {
		case TypeReal, TypeInt:
			t := framework.GeneReal
			if f.Type == TypeInt {
				t = framework.GeneInt
			}
			e.layout.Types = append(e.layout.Types, t)
			e.geneCols = append(e.geneCols, col)
			e.xl = append(e.xl, f.Min)
			e.xu = append(e.xu, f.Max)
		case TypeCategorical:
			start := len(e.layout.Types)
			for i := 0; i < f.Categories; i++ {
				e.layout.Types = append(e.layout.Types, framework.GeneSoftmax)
				e.geneCols = append(e.geneCols, col+i)
				e.xl = append(e.xl, 0)
				e.xu = append(e.xu, 1)
			}
			e.layout.Blocks = append(e.layout.Blocks, framework.Block{Start: start, End: len(e.layout.Types)})
		}
		col += f.width()
	}
	if len(e.layout.Types) == 0 {
		return nil, fmt.Errorf("feature set has no mutable features to search over")
	}
	if err := e.layout.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// GeneticToML writes the mutable genes of each candidate into a copy of the
// initial state. Softmax blocks resolve to the one-hot vector of their argmax
// component.
func (e *Encoder) GeneticToML(X [][]float64, xInitial []float64) ([][]float64, error) {
	if len(xInitial) != e.fs.NumColumns() {
		return nil, fmt.Errorf("initial state has %d features, feature set declares %d", len(xInitial), e.fs.NumColumns())
	}
	out := make([][]float64, len(X))
	for i, genes := range X {
		if len(genes) != len(e.geneCols) {
			return nil, fmt.Errorf("candidate %d has %d genes, encoder declares %d", i, len(genes), len(e.geneCols))
		}
		row := make([]float64, len(xInitial))
		copy(row, xInitial)
		for g, col := range e.geneCols {
			row[col] = genes[g]
		}
		for _, b := range e.layout.Blocks {
			block := make([]float64, b.Len())
			copy(block, genes[b.Start:b.End])
			argmaxOneHot(block)
			for k, v := range block {
				row[e.geneCols[b.Start+k]] = v
			}
		}
		out[i] = row
	}
	return out, nil
}

// MLToGenetic extracts the mutable columns of each ml vector. One-hot groups
// are valid simplex blocks already and are copied through.
func (e *Encoder) MLToGenetic(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != e.fs.NumColumns() {
			return nil, fmt.Errorf("sample %d has %d features, feature set declares %d", i, len(row), e.fs.NumColumns())
		}
		genes := make([]float64, len(e.geneCols))
		for g, col := range e.geneCols {
			genes[g] = row[col]
		}
		out[i] = genes
	}
	return out, nil
}

// Normalize min-max scales the ml representation into the unit cube using
// the declared feature bounds.
func (e *Encoder) Normalize(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		norm := make([]float64, len(row))
		for j, v := range row {
			span := e.colMax[j] - e.colMin[j]
			if span == 0 {
				norm[j] = 0
				continue
			}
			norm[j] = (v - e.colMin[j]) / span
		}
		out[i] = norm
	}
	return out
}

func (e *Encoder) MinMaxGenetic() (xl, xu []float64) { return e.xl, e.xu }

func (e *Encoder) GeneticLength() int { return len(e.geneCols) }

func (e *Encoder) Layout() framework.Layout { return e.layout }
