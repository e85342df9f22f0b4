package framework

import (
	"testing"
)

func ind(objectives ...float64) Individual {
	return Individual{Objectives: objectives}
}

func TestDominates(t *testing.T) {
	tests := []struct {
		name string
		a, b Individual
		want bool
	}{
		{"strictly better on both", ind(1, 1), ind(2, 2), true},
		{"better on one, equal on other", ind(1, 2), ind(2, 2), true},
		{"equal", ind(1, 1), ind(1, 1), false},
		{"worse on one", ind(1, 3), ind(2, 2), false},
		{"strictly worse", ind(3, 3), ind(2, 2), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Dominates(tc.a, tc.b); got != tc.want {
				t.Errorf("Dominates(%v, %v) = %v, want %v", tc.a.Objectives, tc.b.Objectives, got, tc.want)
			}
		})
	}
}

func TestNonDominatedSort(t *testing.T) {
	// Two clear fronts: (1,1) dominates everything, (2,3) and (3,2) are
	// mutually non-dominated, (4,4) is dominated by all.
	population := []Individual{ind(4, 4), ind(2, 3), ind(1, 1), ind(3, 2)}

	fronts := NonDominatedSort(population)
	if len(fronts) != 3 {
		t.Fatalf("expected 3 fronts, got %d", len(fronts))
	}
	if len(fronts[0]) != 1 || fronts[0][0].Objectives[0] != 1 {
		t.Errorf("first front should hold only (1,1), got %v", fronts[0])
	}
	if len(fronts[1]) != 2 {
		t.Errorf("second front should hold 2 individuals, got %d", len(fronts[1]))
	}
	if len(fronts[2]) != 1 || fronts[2][0].Objectives[0] != 4 {
		t.Errorf("last front should hold only (4,4), got %v", fronts[2])
	}

	// Ranks are written back onto the input population.
	for _, p := range population {
		switch p.Objectives[0] {
		case 1:
			if p.Rank != 0 {
				t.Errorf("(1,1) should have rank 0, got %d", p.Rank)
			}
		case 4:
			if p.Rank != 2 {
				t.Errorf("(4,4) should have rank 2, got %d", p.Rank)
			}
		}
	}

	total := 0
	for _, f := range fronts {
		total += len(f)
	}
	if total != len(population) {
		t.Errorf("fronts cover %d individuals, want %d", total, len(population))
	}
}

func TestLayoutValidate(t *testing.T) {
	valid := Layout{
		Types:  []GeneType{GeneReal, GeneInt, GeneSoftmax, GeneSoftmax, GeneSoftmax},
		Blocks: []Block{{Start: 2, End: 5}},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid layout rejected: %v", err)
	}

	tests := []struct {
		name   string
		layout Layout
	}{
		{
			"block out of range",
			Layout{Types: []GeneType{GeneSoftmax, GeneSoftmax}, Blocks: []Block{{Start: 0, End: 3}}},
		},
		{
			"block of one component",
			Layout{Types: []GeneType{GeneSoftmax}, Blocks: []Block{{Start: 0, End: 1}}},
		},
		{
			"overlapping blocks",
			Layout{
				Types:  []GeneType{GeneSoftmax, GeneSoftmax, GeneSoftmax},
				Blocks: []Block{{Start: 0, End: 2}, {Start: 1, End: 3}},
			},
		},
		{
			"block over a non-softmax position",
			Layout{Types: []GeneType{GeneReal, GeneSoftmax}, Blocks: []Block{{Start: 0, End: 2}}},
		},
		{
			"uncovered softmax position",
			Layout{Types: []GeneType{GeneSoftmax, GeneSoftmax, GeneSoftmax}, Blocks: []Block{{Start: 0, End: 2}}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.layout.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLayoutScalarIndices(t *testing.T) {
	l := Layout{
		Types:  []GeneType{GeneReal, GeneInt, GeneReal, GeneSoftmax, GeneSoftmax},
		Blocks: []Block{{Start: 3, End: 5}},
	}
	reals := l.ScalarIndices(GeneReal)
	if len(reals) != 2 || reals[0] != 0 || reals[1] != 2 {
		t.Errorf("real indices = %v, want [0 2]", reals)
	}
	ints := l.ScalarIndices(GeneInt)
	if len(ints) != 1 || ints[0] != 1 {
		t.Errorf("int indices = %v, want [1]", ints)
	}
}

func TestParseNorm(t *testing.T) {
	for _, s := range []string{"2", "l2", "L2"} {
		n, err := ParseNorm(s)
		if err != nil || n != NormL2 {
			t.Errorf("ParseNorm(%q) = %v, %v, want l2", s, n, err)
		}
	}
	for _, s := range []string{"inf", "linf", "Linf", "LInf"} {
		n, err := ParseNorm(s)
		if err != nil || n != NormLinf {
			t.Errorf("ParseNorm(%q) = %v, %v, want linf", s, n, err)
		}
	}
	if _, err := ParseNorm("l1"); err == nil {
		t.Error("ParseNorm(\"l1\") should fail")
	}
}
