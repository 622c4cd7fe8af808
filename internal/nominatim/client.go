// Package nominatim resolves free-text addresses against an OpenStreetMap
// Nominatim-compatible geocoding service. The service is public,
// best-effort, and rate-limited: it answers valid queries with empty result
// sets and throttles aggressive clients with HTTP 429. Both are ordinary
// outcomes here, not failures.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lmarchau/provider-atlas/internal/domain"
	"github.com/lmarchau/provider-atlas/internal/observability"
)

// ErrThrottled reports an HTTP 429 from the geocoding service. The resolver
// backs off and retries; it is never surfaced to end users.
var ErrThrottled = errors.New("geocoding service throttled request")

// Endpoint is one transport strategy for reaching the geocoding service.
// Strategies are tried in order: typically a relay mirror first, then the
// direct service with an identifying User-Agent.
type Endpoint struct {
	Name      string
	BaseURL   string
	UserAgent string
}

// Client issues search requests against one endpoint at a time.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a geocoding HTTP client.
func NewClient(timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// Search geocodes a query through the given endpoint. It returns nil
// coordinates (with nil error) for an empty result set or a candidate whose
// lat/lon do not parse as finite numbers, and ErrThrottled on HTTP 429.
func (c *Client) Search(ctx context.Context, ep Endpoint, query string) (*domain.Coordinates, error) {
	params := url.Values{
		"format": {"json"},
		"limit":  {"1"},
		"q":      {query},
	}
	fullURL := ep.BaseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if ep.UserAgent != "" {
		req.Header.Set("User-Agent", ep.UserAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(ep.Name, "error").Inc()
		return nil, fmt.Errorf("geocode request via %s: %w", ep.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.metrics.GeocodeRequests.WithLabelValues(ep.Name, "throttled").Inc()
		return nil, fmt.Errorf("%s: %w", ep.Name, ErrThrottled)
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues(ep.Name, "error").Inc()
		return nil, fmt.Errorf("geocode via %s: status %d", ep.Name, resp.StatusCode)
	}

	var candidates []candidate
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(ep.Name, "error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("geocode request",
		"strategy", ep.Name,
		"query", query,
		"candidates", len(candidates),
		"duration", time.Since(start),
	)

	if len(candidates) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues(ep.Name, "empty").Inc()
		return nil, nil
	}

	coord, ok := candidates[0].coordinates()
	if !ok {
		// Unparseable lat/lon is identical to an empty response.
		c.metrics.GeocodeRequests.WithLabelValues(ep.Name, "empty").Inc()
		c.logger.Warn("geocoder returned unusable coordinates",
			"strategy", ep.Name, "lat", candidates[0].Lat, "lon", candidates[0].Lon)
		return nil, nil
	}

	c.metrics.GeocodeRequests.WithLabelValues(ep.Name, "success").Inc()
	return &coord, nil
}

// Nominatim wire types. Coordinates arrive string-encoded.

type candidate struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (c candidate) coordinates() (domain.Coordinates, bool) {
	lat, errLat := strconv.ParseFloat(c.Lat, 64)
	lon, errLon := strconv.ParseFloat(c.Lon, 64)
	if errLat != nil || errLon != nil {
		return domain.Coordinates{}, false
	}
	coord := domain.Coordinates{Lat: lat, Lon: lon}
	return coord, coord.Valid()
}
