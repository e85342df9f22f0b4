package tabular

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"

	"github.com/Srinivas0rch/moeva2/pkg/moeva/framework"
)

// LogisticClassifier is a multinomial logistic model: class probabilities are
// the softmax of W*x + b.
type LogisticClassifier struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

var _ framework.Classifier = (*LogisticClassifier)(nil)

func NewLogisticClassifier(weights [][]float64, bias []float64) (*LogisticClassifier, error) {
	if len(weights) < 2 {
		return nil, fmt.Errorf("classifier needs at least 2 classes, got %d", len(weights))
	}
	if len(bias) != len(weights) {
		return nil, fmt.Errorf("bias has %d entries for %d classes", len(bias), len(weights))
	}
	for c, w := range weights {
		if len(w) != len(weights[0]) {
			return nil, fmt.Errorf("class %d has %d weights, class 0 has %d", c, len(w), len(weights[0]))
		}
	}
	return &LogisticClassifier{Weights: weights, Bias: bias}, nil
}

// LoadLogisticClassifier reads model weights from a JSON file.
func LoadLogisticClassifier(path string) (*LogisticClassifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var c LogisticClassifier
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	return NewLogisticClassifier(c.Weights, c.Bias)
}

func (c *LogisticClassifier) NumClasses() int { return len(c.Weights) }

func (c *LogisticClassifier) PredictProba(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, x := range X {
		if len(x) != len(c.Weights[0]) {
			return nil, fmt.Errorf("sample %d has %d features, model expects %d", i, len(x), len(c.Weights[0]))
		}
		logits := make([]float64, len(c.Weights))
		for k, w := range c.Weights {
			logits[k] = floats.Dot(w, x) + c.Bias[k]
		}
		out[i] = softmax(logits)
	}
	return out, nil
}

func softmax(logits []float64) []float64 {
	max := floats.Max(logits)
	sum := 0.0
	probs := make([]float64, len(logits))
	for i, l := range logits {
		probs[i] = math.Exp(l - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
