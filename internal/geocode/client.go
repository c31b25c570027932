// Package geocode resolves free-text place names to coordinates through an
// external geocoding service, with an optional Redis-backed cache.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/floodwatch/pipeline/internal/domain"
	"github.com/floodwatch/pipeline/internal/logging"
)

// Result is one resolved place.
type Result struct {
	Point       domain.GeoPoint `json:"point"`
	DisplayName string          `json:"display_name"`
	Country     string          `json:"country"`
}

// Geocoder resolves a place name to coordinates. The boolean result is
// false when the service knows no such place; errors are reserved for
// transport failures.
type Geocoder interface {
	Geocode(ctx context.Context, place string) (Result, bool, error)
}

// Client is a Nominatim-compatible geocoding client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient creates a geocoding client.
func NewClient(baseURL string, timeout time.Duration, logger logging.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Geocode resolves a place name to its best-ranked match.
func (c *Client) Geocode(ctx context.Context, place string) (Result, bool, error) {
	query := url.Values{}
	query.Set("q", place)
	query.Set("format", "json")
	query.Set("limit", "1")
	query.Set("addressdetails", "1")

	endpoint := c.baseURL + "/search?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, false, fmt.Errorf("create geocode request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, false, fmt.Errorf("call geocoder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, false, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var matches []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
		Address     struct {
			Country string `json:"country"`
		} `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
		return Result{}, false, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(matches) == 0 {
		return Result{}, false, nil
	}

	lat, latErr := strconv.ParseFloat(matches[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(matches[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		c.logger.Warn("geocoder returned unparseable coordinates",
			logging.String("place", place),
			logging.String("lat", matches[0].Lat),
			logging.String("lon", matches[0].Lon))
		return Result{}, false, nil
	}

	return Result{
		Point:       domain.GeoPoint{Lat: lat, Lon: lon},
		DisplayName: matches[0].DisplayName,
		Country:     matches[0].Address.Country,
	}, true, nil
}
