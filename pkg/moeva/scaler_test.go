package moeva

import (
	"math"
	"testing"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

func TestMinMaxScalerTransform(t *testing.T) {
	s, err := NewMinMaxScaler([]float64{0, -1, 5}, []float64{10, 1, 5})
	if err != nil {
		t.Fatalf("NewMinMaxScaler failed: %v", err)
	}
	out, err := s.Transform([][]float64{{5, 0, 5}, {0, -1, 5}, {10, 1, 5}})
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	want := [][]float64{{0.5, 0.5, 0}, {0, 0, 0}, {1, 1, 0}}
	for i := range want {
		for j := range want[i] {
			if math.Abs(out[i][j]-want[i][j]) > 1e-12 {
				t.Errorf("out[%d][%d] = %g, want %g", i, j, out[i][j], want[i][j])
			}
		}
	}
}

func TestMinMaxScalerRejectsBadInput(t *testing.T) {
	if _, err := NewMinMaxScaler([]float64{1}, []float64{0}); err == nil {
		t.Error("expected error for min > max")
	}
	if _, err := NewMinMaxScaler([]float64{0, 0}, []float64{1}); err == nil {
		t.Error("expected error for mismatched lengths")
	}
	s, _ := NewMinMaxScaler([]float64{0, 0}, []float64{1, 1})
	if _, err := s.Transform([][]float64{{1}}); err == nil {
		t.Error("expected error for a row of the wrong width")
	}
}

func TestFitMinMaxScaler(t *testing.T) {
	s, err := FitMinMaxScaler([][]float64{{1, 10}, {3, -10}, {2, 0}})
	if err != nil {
		t.Fatalf("FitMinMaxScaler failed: %v", err)
	}
	out, err := s.Transform([][]float64{{1, -10}, {3, 10}})
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if out[0][0] != 0 || out[0][1] != 0 || out[1][0] != 1 || out[1][1] != 1 {
		t.Errorf("fitted transform = %v, want identity corners", out)
	}

	if _, err := FitMinMaxScaler(nil); err == nil {
		t.Error("expected error for empty data")
	}
}

func TestDistanceScaler(t *testing.T) {
	l2 := newDistanceScaler(framework.NormL2, 4)
	// The unit cube diagonal in 4 dimensions has l2 norm 2.
	if got := l2.scale(2); math.Abs(got-1) > 1e-12 {
		t.Errorf("l2 scaled diagonal = %g, want 1", got)
	}

	linf := newDistanceScaler(framework.NormLinf, 4)
	if got := linf.scale(0.7); got != 0.7 {
		t.Errorf("linf scaling should be identity, got %g", got)
	}
}

func TestNormOrder(t *testing.T) {
	if normOrder(framework.NormL2) != 2 {
		t.Error("l2 should map to order 2")
	}
	if !math.IsInf(normOrder(framework.NormLinf), 1) {
		t.Error("linf should map to +inf")
	}
}
