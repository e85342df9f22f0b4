// Package config defines the experiment configuration consumed by moevactl.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

// Experiment is the YAML-loadable description of one batch attack run.
type Experiment struct {
	Name string `yaml:"name"`

	// FeaturesPath points at the tabular feature set (features, bounds,
	// mutability, linear constraints). ModelPath points at the classifier
	// weights. CandidatesPath points at a JSON array of initial states.
	FeaturesPath   string `yaml:"featuresPath"`
	ModelPath      string `yaml:"modelPath"`
	CandidatesPath string `yaml:"candidatesPath"`

	TargetClass int    `yaml:"targetClass"`
	Norm        string `yaml:"norm"`
	NPop        int    `yaml:"nPop"`
	NGen        int    `yaml:"nGen"`
	NJobs       int    `yaml:"nJobs"`
	Seed        int64  `yaml:"seed"`

	MisclassificationThreshold float64   `yaml:"misclassificationThreshold"`
	EpsList                    []float64 `yaml:"epsList"`

	SaveHistory string `yaml:"saveHistory"`
	Verbose     bool   `yaml:"verbose"`

	OutputDir string `yaml:"outputDir"`
	StorePath string `yaml:"storePath"`
}

// Load reads, defaults and validates an experiment config.
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var exp Experiment
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	exp.applyDefaults()
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return &exp, nil
}

func (e *Experiment) applyDefaults() {
	if e.Norm == "" {
		e.Norm = "l2"
	}
	if e.NPop == 0 {
		e.NPop = 640
	}
	if e.NGen == 0 {
		e.NGen = 625
	}
	if e.NJobs == 0 {
		e.NJobs = 1
	}
	if e.MisclassificationThreshold == 0 {
		e.MisclassificationThreshold = 0.5
	}
	if len(e.EpsList) == 0 {
		e.EpsList = []float64{0.1}
	}
	if e.OutputDir == "" {
		e.OutputDir = "out"
	}
}

func (e *Experiment) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("experiment name is required")
	}
	if e.FeaturesPath == "" || e.ModelPath == "" || e.CandidatesPath == "" {
		return fmt.Errorf("featuresPath, modelPath and candidatesPath are all required")
	}
	if _, err := framework.ParseNorm(e.Norm); err != nil {
		return err
	}
	if e.NPop <= 0 || e.NGen <= 0 {
		return fmt.Errorf("invalid budget: nPop %d, nGen %d", e.NPop, e.NGen)
	}
	switch e.SaveHistory {
	case "", "reduced", "full":
	default:
		return fmt.Errorf("saveHistory must be empty, \"reduced\" or \"full\", got %q", e.SaveHistory)
	}
	for i, eps := range e.EpsList {
		if eps <= 0 {
			return fmt.Errorf("epsList[%d] must be positive, got %g", i, eps)
		}
	}
	return nil
}
