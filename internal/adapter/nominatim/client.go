// Package nominatim reverse geocodes coordinates through an OpenStreetMap
// Nominatim endpoint.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/district-analytics-service/internal/geo"
	"github.com/couchcryptid/district-analytics-service/internal/observability"
)

// Client implements geo.ReverseGeocoder against the Nominatim /reverse API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. Public Nominatim instances reject
// requests without an identifying User-Agent.
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		userAgent:  userAgent,
		metrics:    metrics,
		logger:     logger,
	}
}

// ReverseGeocode returns the administrative names around a coordinate, most
// specific district-level name first. An empty result is not an error.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (geo.Place, error) {
	params := url.Values{
		"lat":            {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', 6, 64)},
		"format":         {"json"},
		"addressdetails": {"1"},
		"zoom":           {"10"},
	}

	place, err := c.doRequest(ctx, c.baseURL+"/reverse?"+params.Encode())
	if err != nil {
		c.count("error")
		c.logger.Warn("reverse geocode failed", "lat", lat, "lon", lon, "error", err)
		return geo.Place{}, err
	}
	c.count("success")
	return place, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (geo.Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return geo.Place{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geo.Place{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return geo.Place{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return geo.Place{}, fmt.Errorf("decode response: %w", err)
	}
	if r.Error != "" {
		// Nominatim answers 200 with an error body for points it cannot place.
		return geo.Place{}, nil
	}

	place := geo.Place{DisplayName: r.DisplayName}
	for _, name := range []string{r.Address.StateDistrict, r.Address.County, r.Address.City, r.Address.Suburb} {
		if name != "" {
			place.Names = append(place.Names, name)
		}
	}
	return place, nil
}

func (c *Client) count(outcome string) {
	if c.metrics != nil {
		c.metrics.GeocoderRequests.WithLabelValues(outcome).Inc()
	}
}

// Nominatim API response types.

type response struct {
	DisplayName string  `json:"display_name"`
	Address     address `json:"address"`
	Error       string  `json:"error"`
}

type address struct {
	StateDistrict string `json:"state_district"`
	County        string `json:"county"`
	City          string `json:"city"`
	Suburb        string `json:"suburb"`
}
