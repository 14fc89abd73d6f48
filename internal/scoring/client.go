// Package scoring calls the external cohesion scoring service.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hpungsan/cohesion/internal/errors"
	"github.com/hpungsan/cohesion/internal/request"
)

// DefaultEndpoint is the local scoring service.
const DefaultEndpoint = "http://localhost:5000/api/calculate-cohesion"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Scorer scores one analysis request.
type Scorer interface {
	Score(ctx context.Context, req *request.AnalysisRequest) (*Result, error)
}

// Result is the validated scoring response. Similarities has one entry per
// request item, in item order.
type Result struct {
	CohesionScore float64   `json:"cohesion_score"`
	Similarities  []float64 `json:"similarities"`
	MeanScore     *float64  `json:"mean_score,omitempty"`
	Variance      *float64  `json:"variance,omitempty"`
	ItemsCount    *int      `json:"items_count,omitempty"`
}

type wireRequest struct {
	Category          string   `json:"category"`
	Items             []string `json:"items"`
	AggregationMethod string   `json:"aggregation_method"`
}

type wireResponse struct {
	CohesionScore *float64  `json:"cohesion_score"`
	Similarities  []float64 `json:"similarities"`
	MeanScore     *float64  `json:"mean_score"`
	Variance      *float64  `json:"variance"`
	ItemsCount    *int      `json:"items_count"`
}

type wireError struct {
	Error string `json:"error"`
}

// Client is an HTTP Scorer.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// Compile-time check that Client implements Scorer.
var _ Scorer = (*Client)(nil)

// NewClient creates a scoring client. Empty endpoint means DefaultEndpoint.
// A zero timeout leaves requests bounded only by the caller's context.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Endpoint returns the configured scoring URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Score issues one request. It never retries.
func (c *Client) Score(ctx context.Context, req *request.AnalysisRequest) (*Result, error) {
	body, err := json.Marshal(wireRequest{
		Category:          req.Category,
		Items:             req.Items,
		AggregationMethod: string(req.Method),
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid scoring endpoint: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("scoring request failed", "endpoint", c.endpoint, "error", err)
		return nil, errors.NewTransport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.NewTransport(err)
	}

	c.logger.Debug("scoring response",
		"status", resp.StatusCode,
		"items", len(req.Items),
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewService(resp.StatusCode, serviceMessage(data))
	}

	var wr wireResponse
	if err := json.Unmarshal(data, &wr); err != nil || wr.CohesionScore == nil {
		return nil, errors.NewService(resp.StatusCode, "malformed scoring response")
	}

	if len(wr.Similarities) != len(req.Items) {
		return nil, errors.NewShapeMismatch(len(req.Items), len(wr.Similarities))
	}

	return &Result{
		CohesionScore: *wr.CohesionScore,
		Similarities:  wr.Similarities,
		MeanScore:     wr.MeanScore,
		Variance:      wr.Variance,
		ItemsCount:    wr.ItemsCount,
	}, nil
}

// serviceMessage pulls {"error": "..."} out of a failure body.
func serviceMessage(data []byte) string {
	var we wireError
	if err := json.Unmarshal(data, &we); err == nil && strings.TrimSpace(we.Error) != "" {
		return we.Error
	}
	return "calculation failed"
}

// Health checks the service's health route, a sibling of the scoring path:
// /api/calculate-cohesion probes /api/health under the same prefix.
func (c *Client) Health(ctx context.Context) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid scoring endpoint: %v", err))
	}
	u.Path = healthPath(u.Path)
	u.RawPath = ""
	u.RawQuery = ""

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errors.NewTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return errors.NewService(resp.StatusCode, serviceMessage(data))
	}
	return nil
}

func healthPath(endpointPath string) string {
	return path.Join("/", path.Dir(endpointPath), "health")
}
