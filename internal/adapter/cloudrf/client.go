package cloudrf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

const (
	// DefaultBaseURL is the CloudRF area coverage endpoint.
	DefaultBaseURL = "https://api.cloudrf.com/area"

	apiVersion   = "CloudRF-API-v3.24"
	serviceName  = "cloudrf"
	maxErrorBody = 512
	maxRaster    = 64 << 20
)

// Client implements domain.Propagator using the CloudRF area API.
type Client struct {
	apiKey         string
	baseURL        string
	httpClient     *http.Client
	downloadClient *http.Client
	logger         *slog.Logger
}

// NewClient creates a CloudRF client. timeout bounds the simulation call and
// downloadTimeout bounds the raster fetch.
func NewClient(apiKey, baseURL string, timeout, downloadTimeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:         apiKey,
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: timeout},
		downloadClient: &http.Client{Timeout: downloadTimeout},
		logger:         logger,
	}
}

// Simulate runs an area coverage simulation. Both the raster URL and the
// bounds must be present in the answer; nothing is defaulted.
func (c *Client) Simulate(ctx context.Context, req domain.SimulationRequest) (domain.SimulationResult, error) {
	body, err := json.Marshal(newPayload(req))
	if err != nil {
		return domain.SimulationResult{}, fmt.Errorf("encode payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return domain.SimulationResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.SimulationResult{}, fmt.Errorf("%w: cloudrf request: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.SimulationResult{}, upstreamError(resp)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.SimulationResult{}, domain.ResponseReadError("decode cloudrf response", err)
	}
	if out.PNGWGS84 == "" {
		return domain.SimulationResult{}, fmt.Errorf("%w: cloudrf response has no PNG_WGS84", domain.ErrUpstreamMalformed)
	}
	bounds, err := domain.BoundsFromSlice(out.Bounds)
	if err != nil {
		return domain.SimulationResult{}, fmt.Errorf("%w: cloudrf bounds: %v", domain.ErrUpstreamMalformed, err)
	}

	c.logger.Debug("cloudrf simulation complete",
		"template", req.Template.ID,
		"lat", req.Transmitter.Lat,
		"lon", req.Transmitter.Lon,
		"elapsed", time.Since(start),
	)
	return domain.SimulationResult{ImageURL: out.PNGWGS84, Bounds: bounds}, nil
}

// DownloadRaster fetches the PNG a simulation produced.
func (c *Client) DownloadRaster(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: raster download: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError(resp)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRaster))
	if err != nil {
		return nil, fmt.Errorf("%w: read raster: %v", domain.ErrUpstreamUnavailable, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty raster", domain.ErrUpstreamMalformed)
	}
	return data, nil
}

func upstreamError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.UpstreamError{
		Service:    serviceName,
		StatusCode: resp.StatusCode,
		Body:       string(bytes.TrimSpace(body)),
	}
}
