package moeva

import (
	"fmt"
	"math"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

// Transformer is a fitted transform applied to batches of feature vectors.
// Input feature order must match the order the transformer was fitted on.
type Transformer interface {
	Transform(X [][]float64) ([][]float64, error)
}

// MinMaxScaler scales every feature into [0, 1] using fitted per-feature
// bounds.
type MinMaxScaler struct {
	min []float64
	max []float64
}

func NewMinMaxScaler(min, max []float64) (*MinMaxScaler, error) {
	if len(min) != len(max) {
		return nil, fmt.Errorf("min has %d features, max has %d", len(min), len(max))
	}
	for i := range min {
		if min[i] > max[i] {
			return nil, fmt.Errorf("feature %d: min %g > max %g", i, min[i], max[i])
		}
	}
	return &MinMaxScaler{min: min, max: max}, nil
}

// FitMinMaxScaler fits per-feature bounds on the given data.
func FitMinMaxScaler(X [][]float64) (*MinMaxScaler, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return nil, fmt.Errorf("cannot fit a scaler on empty data")
	}
	min := make([]float64, len(X[0]))
	max := make([]float64, len(X[0]))
	copy(min, X[0])
	copy(max, X[0])
	for _, row := range X[1:] {
		for j, v := range row {
			min[j] = math.Min(min[j], v)
			max[j] = math.Max(max[j], v)
		}
	}
	return &MinMaxScaler{min: min, max: max}, nil
}

func (s *MinMaxScaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.min) {
			return nil, fmt.Errorf("row %d has %d features, scaler was fitted on %d", i, len(row), len(s.min))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			span := s.max[j] - s.min[j]
			if span == 0 {
				scaled[j] = 0
				continue
			}
			scaled[j] = (v - s.min[j]) / span
		}
		out[i] = scaled
	}
	return out, nil
}

// distanceScaler rescales a norm distance measured in the [0,1] feature cube
// by the maximum value that norm can take there, so the distance objective is
// comparable in magnitude with the misclassification probability.
type distanceScaler struct {
	maxNorm float64
}

func newDistanceScaler(norm framework.Norm, dim int) distanceScaler {
	switch norm {
	case framework.NormL2:
		return distanceScaler{maxNorm: math.Sqrt(float64(dim))}
	default: // NormLinf
		return distanceScaler{maxNorm: 1}
	}
}

func (s distanceScaler) scale(v float64) float64 {
	return v / s.maxNorm
}

// normOrder maps a Norm onto the L parameter of gonum's floats.Distance.
func normOrder(norm framework.Norm) float64 {
	if norm == framework.NormLinf {
		return math.Inf(1)
	}
	return 2
}
