package classifier

import "math"

// Training hyperparameters. Small corpora converge quickly; the epoch
// count is generous because per-technique training sets rarely exceed a
// few hundred sentences.
const (
	learningRate = 0.1
	epochs       = 300
	l2Penalty    = 1e-4
)

// LogisticRegression is a binary classifier over count features.
type LogisticRegression struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// Fit trains with batch gradient descent and L2 regularization.
func (lr *LogisticRegression) Fit(x [][]float64, y []int) {
	if len(x) == 0 {
		return
	}
	dim := len(x[0])
	lr.Weights = make([]float64, dim)
	lr.Bias = 0

	n := float64(len(x))
	grad := make([]float64, dim)
	for epoch := 0; epoch < epochs; epoch++ {
		for i := range grad {
			grad[i] = 0
		}
		gradBias := 0.0
		for i, row := range x {
			err := sigmoid(lr.decision(row)) - float64(y[i])
			for j, v := range row {
				if v != 0 {
					grad[j] += err * v
				}
			}
			gradBias += err
		}
		for j := range lr.Weights {
			lr.Weights[j] -= learningRate * (grad[j]/n + l2Penalty*lr.Weights[j])
		}
		lr.Bias -= learningRate * gradBias / n
	}
}

func (lr *LogisticRegression) decision(features []float64) float64 {
	z := lr.Bias
	for j, v := range features {
		if v != 0 && j < len(lr.Weights) {
			z += lr.Weights[j] * v
		}
	}
	return z
}

// PredictProb returns P(positive | features).
func (lr *LogisticRegression) PredictProb(features []float64) float64 {
	return sigmoid(lr.decision(features))
}

// Predict returns true when the positive class is more likely.
func (lr *LogisticRegression) Predict(features []float64) bool {
	return lr.decision(features) > 0
}

// Score returns accuracy over a labelled set.
func (lr *LogisticRegression) Score(x [][]float64, y []int) float64 {
	if len(x) == 0 {
		return 0
	}
	correct := 0
	for i, row := range x {
		if lr.Predict(row) == (y[i] == 1) {
			correct++
		}
	}
	return float64(correct) / float64(len(x))
}
