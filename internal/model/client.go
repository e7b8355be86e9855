package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// InferenceClient calls a remote scoring service over HTTP. Any failure
// is wrapped in ErrClassifierFailed: the engine treats classifier
// failures as hard errors for the run, so nothing here retries or
// degrades silently.
type InferenceClient struct {
	url    string
	client *http.Client
	logger *logrus.Entry
}

// NewInferenceClient creates the remote classifier client.
func NewInferenceClient(cfg *config.ModelConfig, log *logrus.Logger) *InferenceClient {
	return &InferenceClient{
		url:    cfg.InferenceURL,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger: log.WithField("component", "model_client"),
	}
}

type inferenceRequest struct {
	GameID       string             `json:"game_id"`
	SnapshotHash string             `json:"snapshot_hash"`
	Features     map[string]float64 `json:"features"`
}

type inferenceResponse struct {
	PHomeWin float64 `json:"p_home_win"`
}

// Predict scores one feature vector.
func (c *InferenceClient) Predict(ctx context.Context, fv *models.FeatureVector) (float64, error) {
	features := make(map[string]float64, len(models.FeatureNames))
	for _, name := range models.FeatureNames {
		v, _ := fv.Field(name)
		features[name] = v
	}

	body, err := json.Marshal(inferenceRequest{
		GameID:       fv.GameID,
		SnapshotHash: fv.SnapshotHash(),
		Features:     features,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to encode request: %v", models.ErrClassifierFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrClassifierFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrClassifierFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: inference service returned %d", models.ErrClassifierFailed, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrClassifierFailed, err)
	}

	var out inferenceResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("%w: malformed response: %v", models.ErrClassifierFailed, err)
	}
	if out.PHomeWin < 0 || out.PHomeWin > 1 {
		return 0, fmt.Errorf("%w: probability %f outside [0,1]", models.ErrClassifierFailed, out.PHomeWin)
	}

	return out.PHomeWin, nil
}
