package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/Srinivas0rch/moeva2/apis/config"
	"github.com/Srinivas0rch/moeva2/pkg/moeva"
	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
	"github.com/Srinivas0rch/moeva2/pkg/moeva/storage"
	"github.com/Srinivas0rch/moeva2/pkg/moeva/tabular"
)

// epsMetrics is the per-threshold slice of the metrics report.
type epsMetrics struct {
	Eps   float64            `json:"eps"`
	Rates map[string]float64 `json:"rates"`
}

type runReport struct {
	RunID       string       `json:"run_id"`
	Experiment  string       `json:"experiment"`
	Norm        string       `json:"norm"`
	NPop        int          `json:"n_pop"`
	NGen        int          `json:"n_gen"`
	Samples     int          `json:"samples"`
	Duration    string       `json:"duration"`
	Metrics     []epsMetrics `json:"metrics"`
	AttacksPath string       `json:"attacks_path,omitempty"`
}

func newRunCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a batch attack experiment described by a YAML config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExperiment(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "experiment.yaml", "path to the experiment config")
	return cmd
}

func runExperiment(ctx context.Context, configPath string) error {
	logger := klog.FromContext(ctx)

	exp, err := config.Load(configPath)
	if err != nil {
		return err
	}
	digest, err := fileDigest(configPath)
	if err != nil {
		return err
	}

	fs, err := tabular.LoadFeatureSet(exp.FeaturesPath)
	if err != nil {
		return err
	}
	classifier, err := tabular.LoadLogisticClassifier(exp.ModelPath)
	if err != nil {
		return err
	}
	candidates, err := loadCandidates(exp.CandidatesPath)
	if err != nil {
		return err
	}
	norm, err := framework.ParseNorm(exp.Norm)
	if err != nil {
		return err
	}

	constraints, err := tabular.NewEvaluator(fs)
	if err != nil {
		return err
	}
	// Refuse seeds that already violate the domain: an attack starting from
	// an invalid point produces meaningless success rates.
	if err := framework.CheckConstraints(constraints, candidates); err != nil {
		return fmt.Errorf("initial states: %w", err)
	}

	attack, err := moeva.New(moeva.Config{
		NewClassifier: func() (framework.Classifier, error) {
			return classifier, nil
		},
		NewConstraints: func() (framework.ConstraintEvaluator, error) {
			return constraints.Clone(), nil
		},
		NewEncoder: func(framework.ConstraintEvaluator, []float64) (framework.Encoder, error) {
			return tabular.NewEncoder(fs)
		},
		Norm:            norm,
		NGen:            exp.NGen,
		NPop:            exp.NPop,
		ScaleObjectives: true,
		SaveHistory:     moeva.HistoryMode(exp.SaveHistory),
		Seed:            exp.Seed,
		NJobs:           exp.NJobs,
		Verbose:         exp.Verbose,
	})
	if err != nil {
		return err
	}

	logger.Info("starting attack", "experiment", exp.Name, "samples", len(candidates),
		"nPop", exp.NPop, "nGen", exp.NGen, "nJobs", exp.NJobs)
	started := time.Now()
	results, err := attack.GenerateClass(ctx, candidates, exp.TargetClass)
	if err != nil {
		return err
	}
	elapsed := time.Since(started)
	logger.Info("attack finished", "duration", elapsed)

	colMin, colMax := constraints.FeatureMinMax()
	minMax, err := moeva.NewMinMaxScaler(colMin, colMax)
	if err != nil {
		return err
	}
	encoder, err := tabular.NewEncoder(fs)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	report := runReport{
		RunID:      runID,
		Experiment: exp.Name,
		Norm:       string(norm),
		NPop:       exp.NPop,
		NGen:       exp.NGen,
		Samples:    len(candidates),
		Duration:   elapsed.String(),
	}

	var store storage.Store
	if exp.StorePath != "" {
		store = storage.NewSQLiteStore(exp.StorePath)
		if err := store.Init(ctx); err != nil {
			return err
		}
		defer store.Close()
	}

	for _, eps := range exp.EpsList {
		calc, err := moeva.NewObjectiveCalculator(moeva.ObjectiveCalculatorConfig{
			Classifier:   classifier,
			Constraints:  constraints.Clone(),
			Encoder:      encoder,
			TargetClass:  exp.TargetClass,
			Thresholds:   moeva.Thresholds{F1: exp.MisclassificationThreshold, F2: eps},
			MinMaxScaler: minMax,
			Norm:         norm,
			NJobs:        exp.NJobs,
		})
		if err != nil {
			return err
		}
		rates, err := calc.SuccessRateGenetic(results)
		if err != nil {
			return err
		}
		m := epsMetrics{Eps: eps, Rates: make(map[string]float64, len(rates))}
		for i, col := range moeva.SuccessColumns() {
			m.Rates[col] = rates[i]
			logger.Info("success rate", "eps", eps, "objective", col, "rate", rates[i])
		}
		report.Metrics = append(report.Metrics, m)

		if store != nil {
			err := store.SaveRun(ctx, storage.RunRecord{
				ID:           uuid.New().String(),
				Experiment:   exp.Name,
				ConfigDigest: digest,
				Norm:         string(norm),
				NPop:         exp.NPop,
				NGen:         exp.NGen,
				Eps:          eps,
				SuccessRates: rates,
				Duration:     elapsed,
				CreatedAt:    time.Now().UTC(),
			})
			if err != nil {
				return err
			}
		}
	}

	if err := os.MkdirAll(exp.OutputDir, 0o755); err != nil {
		return err
	}

	// Export the best qualifying attack per sample at the tightest threshold.
	tightest := exp.EpsList[0]
	for _, eps := range exp.EpsList[1:] {
		if eps < tightest {
			tightest = eps
		}
	}
	calc, err := moeva.NewObjectiveCalculator(moeva.ObjectiveCalculatorConfig{
		Classifier:   classifier,
		Constraints:  constraints.Clone(),
		Encoder:      encoder,
		TargetClass:  exp.TargetClass,
		Thresholds:   moeva.Thresholds{F1: exp.MisclassificationThreshold, F2: tightest},
		MinMaxScaler: minMax,
		Norm:         norm,
		NJobs:        exp.NJobs,
	})
	if err != nil {
		return err
	}
	attacks, _, err := calc.GetSuccessfulAttacksResults(results, moeva.MetricDistance, moeva.OrderAsc, 1)
	if err != nil {
		return err
	}
	attacksPath := filepath.Join(exp.OutputDir, fmt.Sprintf("%s_attacks.json", exp.Name))
	if err := writeJSON(attacksPath, attacks); err != nil {
		return err
	}
	report.AttacksPath = attacksPath

	reportPath := filepath.Join(exp.OutputDir, fmt.Sprintf("%s_metrics.json", exp.Name))
	if err := writeJSON(reportPath, report); err != nil {
		return err
	}
	logger.Info("report written", "path", reportPath, "attacks", len(attacks))
	return nil
}

func loadCandidates(path string) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	var X [][]float64
	if err := json.Unmarshal(data, &X); err != nil {
		return nil, fmt.Errorf("parse candidates: %w", err)
	}
	if len(X) == 0 {
		return nil, fmt.Errorf("candidates file %s holds no samples", path)
	}
	return X, nil
}

func fileDigest(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
