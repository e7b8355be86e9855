// Package model provides the win-probability classifier behind the
// decision pipeline: a remote inference client for live operation, a
// deterministic locally trained fallback the backtester uses, and a
// cache keyed by feature snapshot so repeated evaluations are free.
package model

import (
	"context"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// Classifier maps a feature vector to the home side's win probability.
type Classifier interface {
	// Predict returns p(home win) in [0, 1].
	Predict(ctx context.Context, fv *models.FeatureVector) (float64, error)
}

// vectorize flattens the closed feature namespace into a stable-order
// slice for the numeric models.
func vectorize(fv *models.FeatureVector) []float64 {
	out := make([]float64, len(models.FeatureNames))
	for i, name := range models.FeatureNames {
		v, _ := fv.Field(name)
		out[i] = v
	}
	return out
}
