// Package reasoning asks an external language model for candidate edge
// hypotheses. Proposals are free text on the wire but must parse into
// the structured predicate grammar; anything that does not is silently
// discarded. The discoverer validates survivors statistically like any
// other candidate, so a bad proposal costs nothing but the call.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/models"
	"github.com/yourusername/gridiron-edge/internal/predicate"
)

// Proposal is one parsed candidate from the model.
type Proposal struct {
	Predicate *predicate.Predicate
	Side      models.Side
	Rationale string
}

// Client wraps the completion API with retry, rate limiting and a
// circuit breaker so a degraded provider cannot stall a discovery run.
type Client struct {
	cfg     *config.ReasoningConfig
	http    *retryablehttp.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Entry
}

// NewClient creates the proposer client.
func NewClient(cfg *config.ReasoningConfig, log *logrus.Logger) *Client {
	entry := log.WithField("component", "reasoning")

	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = time.Second
	rc.RetryWaitMax = 10 * time.Second
	rc.HTTPClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	rc.Logger = nil

	perMin := cfg.RequestsPerMin
	if perMin <= 0 {
		perMin = 10
	}

	return &Client{
		cfg:     cfg,
		http:    rc,
		limiter: rate.NewLimiter(rate.Limit(float64(perMin)/60.0), 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "reasoning",
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		logger: entry,
	}
}

type completionRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// wireProposal is the JSON shape the prompt instructs the model to emit.
type wireProposal struct {
	Predicate string `json:"predicate"`
	Side      string `json:"side"`
	Rationale string `json:"rationale"`
}

// Propose requests up to n candidate predicates. Failures and
// unparseable proposals reduce the returned set; they never error the
// discovery run.
func (c *Client) Propose(ctx context.Context, n int, activePredicates []string) []Proposal {
	if !c.cfg.Enabled || n <= 0 {
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, c.buildPrompt(n, activePredicates))
	})
	if err != nil {
		c.logger.WithError(err).Warn("Proposal request failed")
		return nil
	}

	return c.parseProposals(raw.(string))
}

// buildPrompt describes the closed feature namespace and the required
// output shape, and lists known predicates to steer away from rediscovery.
func (c *Client) buildPrompt(n int, activePredicates []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Propose %d NFL pregame betting hypotheses as JSON.\n", n)
	b.WriteString("Each hypothesis is an object {\"predicate\", \"side\", \"rationale\"}.\n")
	b.WriteString("A predicate is a conjunction of comparisons joined by ' AND ', each of the form '<feature> <op> <number>' with op in (<, <=, >, >=, ==).\n")
	b.WriteString("Allowed features: " + strings.Join(models.FeatureNames, ", ") + ".\n")
	b.WriteString("Side is one of: home, away, over, under.\n")
	if len(activePredicates) > 0 {
		b.WriteString("Avoid these already-known predicates:\n")
		for _, p := range activePredicates {
			b.WriteString("- " + p + "\n")
		}
	}
	b.WriteString("Respond with only a JSON array.")
	return b.String()
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion API returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("malformed completion response: %w", err)
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return out.Content[0].Text, nil
}

// parseProposals extracts the JSON array from the completion text and
// keeps only proposals whose predicate parses into the grammar.
func (c *Client) parseProposals(text string) []Proposal {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		c.logger.Warn("Completion contained no JSON array")
		return nil
	}

	var wires []wireProposal
	if err := json.Unmarshal([]byte(text[start:end+1]), &wires); err != nil {
		c.logger.WithError(err).Warn("Completion JSON did not parse")
		return nil
	}

	proposals := make([]Proposal, 0, len(wires))
	for _, w := range wires {
		p, err := predicate.Parse(w.Predicate)
		if err != nil {
			c.logger.WithField("predicate", w.Predicate).Debug("Discarded unparseable proposal")
			continue
		}
		side := models.Side(w.Side)
		if side != models.SideHome && side != models.SideAway && side != models.SideOver && side != models.SideUnder {
			c.logger.WithField("side", w.Side).Debug("Discarded proposal with unknown side")
			continue
		}
		proposals = append(proposals, Proposal{Predicate: p, Side: side, Rationale: w.Rationale})
	}
	return proposals
}
