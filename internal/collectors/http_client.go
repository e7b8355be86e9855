package collectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// httpClient is the shared single-shot transport for every HTTP
// collector. It classifies failures into the transient/permanent
// taxonomy the orchestrator's retry path keys off; the retry itself is
// deliberately not here.
type httpClient struct {
	collectorKey string
	baseURL      string
	apiKey       string
	client       *http.Client
}

func newHTTPClient(collectorKey, baseURL, apiKey string, timeout time.Duration) *httpClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpClient{
		collectorKey: collectorKey,
		baseURL:      baseURL,
		apiKey:       apiKey,
		client:       &http.Client{Timeout: timeout},
	}
}

// getJSON performs one GET against path with query params and decodes
// the body into out.
func (c *httpClient) getJSON(ctx context.Context, path string, params map[string]string, out interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return models.NewPermanentError(c.collectorKey, models.ErrCodeBadRequest,
			fmt.Sprintf("invalid request URL %q", c.baseURL+path), err)
	}

	query := u.Query()
	for k, v := range params {
		query.Set(k, v)
	}
	if c.apiKey != "" {
		query.Set("apiKey", c.apiKey)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return models.NewPermanentError(c.collectorKey, models.ErrCodeBadRequest, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return c.classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.classifyStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return models.NewTransientError(c.collectorKey, models.ErrCodeConnection, "failed to read response body", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return models.NewPermanentError(c.collectorKey, models.ErrCodeSchema, "response does not match expected schema", err)
	}

	return nil
}

func (c *httpClient) classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return models.NewTransientError(c.collectorKey, models.ErrCodeTimeout, "request timed out", err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.NewTransientError(c.collectorKey, models.ErrCodeTimeout, "request timed out", err)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return models.NewTransientError(c.collectorKey, models.ErrCodeTimeout, "request timed out", err)
	}
	return models.NewTransientError(c.collectorKey, models.ErrCodeConnection, "connection failed", err)
}

func (c *httpClient) classifyStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return models.NewTransientError(c.collectorKey, models.ErrCodeRateLimited,
			fmt.Sprintf("provider returned %d", status), nil)
	case status >= 500:
		return models.NewTransientError(c.collectorKey, models.ErrCodeServerError,
			fmt.Sprintf("provider returned %d", status), nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return models.NewPermanentError(c.collectorKey, models.ErrCodeUnauthorized,
			fmt.Sprintf("provider returned %d", status), nil)
	default:
		return models.NewPermanentError(c.collectorKey, models.ErrCodeBadRequest,
			fmt.Sprintf("provider returned %d", status), nil)
	}
}
