package model

import (
	"context"
	"fmt"
	"math"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// Sample is one labeled training example.
type Sample struct {
	Features *models.FeatureVector
	HomeWon  bool
}

// LogisticClassifier is a plain logistic regression over the closed
// feature namespace. Training is fully deterministic: fixed iteration
// order, fixed initialization, no sampling. The backtester depends on
// that to reproduce byte-identical recommendations.
type LogisticClassifier struct {
	weights []float64
	bias    float64
	means   []float64
	stds    []float64
}

// TrainLogistic fits the model with batch gradient descent.
func TrainLogistic(samples []Sample, cfg *config.ModelConfig) (*LogisticClassifier, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no training samples", models.ErrInsufficientData)
	}

	dim := len(models.FeatureNames)
	rows := make([][]float64, len(samples))
	labels := make([]float64, len(samples))
	for i, s := range samples {
		rows[i] = vectorize(s.Features)
		if s.HomeWon {
			labels[i] = 1
		}
	}

	means, stds := standardize(rows, dim)

	m := &LogisticClassifier{
		weights: make([]float64, dim),
		means:   means,
		stds:    stds,
	}

	n := float64(len(rows))
	lr := cfg.LocalLearningRate
	for epoch := 0; epoch < cfg.LocalEpochs; epoch++ {
		gradW := make([]float64, dim)
		gradB := 0.0
		for i, row := range rows {
			p := m.score(row)
			err := p - labels[i]
			for j := 0; j < dim; j++ {
				gradW[j] += err * m.normalized(row, j)
			}
			gradB += err
		}
		for j := 0; j < dim; j++ {
			m.weights[j] -= lr * gradW[j] / n
		}
		m.bias -= lr * gradB / n
	}

	return m, nil
}

// Predict scores one vector. Always succeeds once trained.
func (m *LogisticClassifier) Predict(ctx context.Context, fv *models.FeatureVector) (float64, error) {
	return m.score(vectorize(fv)), nil
}

func (m *LogisticClassifier) score(row []float64) float64 {
	z := m.bias
	for j := range m.weights {
		z += m.weights[j] * m.normalized(row, j)
	}
	return sigmoid(z)
}

func (m *LogisticClassifier) normalized(row []float64, j int) float64 {
	if m.stds[j] == 0 {
		return 0
	}
	return (row[j] - m.means[j]) / m.stds[j]
}

func standardize(rows [][]float64, dim int) (means, stds []float64) {
	means = make([]float64, dim)
	stds = make([]float64, dim)
	n := float64(len(rows))

	for _, row := range rows {
		for j := 0; j < dim; j++ {
			means[j] += row[j]
		}
	}
	for j := 0; j < dim; j++ {
		means[j] /= n
	}

	for _, row := range rows {
		for j := 0; j < dim; j++ {
			d := row[j] - means[j]
			stds[j] += d * d
		}
	}
	for j := 0; j < dim; j++ {
		stds[j] = math.Sqrt(stds[j] / n)
	}
	return means, stds
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
