package opentopo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
	"github.com/couchcryptid/pivot-coverage-service/internal/observability"
)

const (
	// DefaultBaseURL is the public OpenTopoData SRTM 90 m dataset.
	DefaultBaseURL = "https://api.opentopodata.org/v1/srtm90m"

	// maxLocations is the per-request location limit of the public API.
	maxLocations = 100
	serviceName  = "opentopodata"
	maxErrorBody = 512
)

// Client implements domain.ElevationProvider using the OpenTopoData API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OpenTopoData client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// Elevations returns one elevation per point, in order. Points are sent in
// chunks the public API accepts.
func (c *Client) Elevations(ctx context.Context, points []domain.Coordinate) ([]*float64, error) {
	out := make([]*float64, 0, len(points))
	for start := 0; start < len(points); start += maxLocations {
		end := min(start+maxLocations, len(points))
		chunk, err := c.fetch(ctx, points[start:end])
		if err != nil {
			c.metrics.ElevationRequests.WithLabelValues("error").Inc()
			return nil, err
		}
		c.metrics.ElevationRequests.WithLabelValues("success").Inc()
		out = append(out, chunk...)
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, points []domain.Coordinate) ([]*float64, error) {
	locs := make([]string, len(points))
	for i, p := range points {
		locs[i] = fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
	}
	u := c.baseURL + "?" + url.Values{"locations": {strings.Join(locs, "|")}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ElevationAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: elevation request: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.UpstreamError{
			Service:    serviceName,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(body)),
		}
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, domain.ResponseReadError("decode elevation response", err)
	}
	if r.Status != "" && r.Status != "OK" {
		return nil, fmt.Errorf("%w: elevation status %s: %s", domain.ErrUpstreamMalformed, r.Status, r.Error)
	}
	if len(r.Results) != len(points) {
		return nil, fmt.Errorf("%w: requested %d, got %d", domain.ErrElevationCount, len(points), len(r.Results))
	}

	out := make([]*float64, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Elevation
	}
	c.logger.Debug("elevations fetched", "points", len(points), "elapsed", time.Since(start))
	return out, nil
}

// OpenTopoData API response types.

type response struct {
	Status  string   `json:"status"`
	Error   string   `json:"error"`
	Results []result `json:"results"`
}

type result struct {
	Elevation *float64 `json:"elevation"`
}
