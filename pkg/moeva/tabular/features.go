// Package tabular provides reference implementations of the collaborator
// contracts for tabular datasets: a metadata-driven feature encoder, a
// constraint evaluator, and a logistic classifier.
package tabular

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

// Feature type names accepted in feature specs.
const (
	TypeReal        = "real"
	TypeInt         = "int"
	TypeCategorical = "categorical"
)

// FeatureSpec describes one dataset feature. Categorical features occupy
// Categories one-hot columns in the ml representation.
type FeatureSpec struct {
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	Min        float64 `yaml:"min"`
	Max        float64 `yaml:"max"`
	Categories int     `yaml:"categories"`
	Mutable    bool    `yaml:"mutable"`
}

// LinearConstraint is a domain constraint of the form
// sum(coefficients[name] * x[name]) + bias <= 0, evaluated on real and
// integer columns of the ml representation. The violation magnitude is the
// left-hand side.
type LinearConstraint struct {
	Coefficients map[string]float64 `yaml:"coefficients"`
	Bias         float64            `yaml:"bias"`
}

// FeatureSet is the YAML-loadable description of a tabular domain.
type FeatureSet struct {
	Features    []FeatureSpec      `yaml:"features"`
	Constraints []LinearConstraint `yaml:"constraints"`
}

// LoadFeatureSet reads and validates a feature set from a YAML file.
func LoadFeatureSet(path string) (*FeatureSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature set: %w", err)
	}
	var fs FeatureSet
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("parse feature set: %w", err)
	}
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	return &fs, nil
}

func (fs *FeatureSet) Validate() error {
	if len(fs.Features) == 0 {
		return fmt.Errorf("feature set declares no features")
	}
	seen := map[string]bool{}
	for i, f := range fs.Features {
		if f.Name == "" {
			return fmt.Errorf("feature %d has no name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate feature name %q", f.Name)
		}
		seen[f.Name] = true
		switch f.Type {
		case TypeReal, TypeInt:
			if f.Min > f.Max {
				return fmt.Errorf("feature %q: min %g > max %g", f.Name, f.Min, f.Max)
			}
		case TypeCategorical:
			if f.Categories < 2 {
				return fmt.Errorf("feature %q: categorical features need at least 2 categories, got %d", f.Name, f.Categories)
			}
		default:
			return fmt.Errorf("feature %q has unknown type %q", f.Name, f.Type)
		}
	}
	for i, c := range fs.Constraints {
		if len(c.Coefficients) == 0 {
			return fmt.Errorf("constraint %d has no coefficients", i)
		}
		for name := range c.Coefficients {
			f, ok := fs.feature(name)
			if !ok {
				return fmt.Errorf("constraint %d references unknown feature %q", i, name)
			}
			if f.Type == TypeCategorical {
				return fmt.Errorf("constraint %d references categorical feature %q; linear constraints apply to real and int features only", i, name)
			}
		}
	}
	return nil
}

func (fs *FeatureSet) feature(name string) (FeatureSpec, bool) {
	for _, f := range fs.Features {
		if f.Name == name {
			return f, true
		}
	}
	return FeatureSpec{}, false
}

// width returns the number of ml columns a feature occupies.
func (f FeatureSpec) width() int {
	if f.Type == TypeCategorical {
		return f.Categories
	}
	return 1
}

// NumColumns returns the width of the ml representation.
func (fs *FeatureSet) NumColumns() int {
	n := 0
	for _, f := range fs.Features {
		n += f.width()
	}
	return n
}

// columnOf returns the first ml column of the named feature.
func (fs *FeatureSet) columnOf(name string) int {
	col := 0
	for _, f := range fs.Features {
		if f.Name == name {
			return col
		}
		col += f.width()
	}
	return -1
}

// featureTags returns the per-ml-column type tags; one-hot columns of the
// same categorical feature share a group.
func (fs *FeatureSet) featureTags() []framework.FeatureTag {
	tags := make([]framework.FeatureTag, 0, fs.NumColumns())
	group := 0
	for _, f := range fs.Features {
		switch f.Type {
		case TypeReal:
			tags = append(tags, framework.FeatureTag{Kind: framework.FeatureReal, Group: -1})
		case TypeInt:
			tags = append(tags, framework.FeatureTag{Kind: framework.FeatureInt, Group: -1})
		case TypeCategorical:
			for i := 0; i < f.Categories; i++ {
				tags = append(tags, framework.FeatureTag{Kind: framework.FeatureCategorical, Group: group})
			}
			group++
		}
	}
	return tags
}

// columnMinMax returns per-ml-column bounds; one-hot columns are [0, 1].
func (fs *FeatureSet) columnMinMax() (min, max []float64) {
	min = make([]float64, 0, fs.NumColumns())
	max = make([]float64, 0, fs.NumColumns())
	for _, f := range fs.Features {
		if f.Type == TypeCategorical {
			for i := 0; i < f.Categories; i++ {
				min = append(min, 0)
				max = append(max, 1)
			}
			continue
		}
		min = append(min, f.Min)
		max = append(max, f.Max)
	}
	return min, max
}
