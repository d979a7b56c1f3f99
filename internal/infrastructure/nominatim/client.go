package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/waypointhq/waypoint/internal/config"
	"github.com/waypointhq/waypoint/internal/domain"
)

// Client implements domain.Geocoder using a Nominatim-compatible search API.
// It performs a single lookup per call and never retries; retry policy is
// the caller's decision.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a geocoding client from configuration.
func NewClient(cfg config.GeocoderConfig) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Geocode resolves a free-text address to coordinates. It returns
// domain.ErrInvalidInput for a blank address, domain.ErrNotFound when the
// lookup yields no match, and domain.ErrUpstreamUnavailable for transport or
// upstream failures.
func (c *Client) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	if strings.TrimSpace(address) == "" {
		return domain.Coordinates{}, fmt.Errorf("%w: address must not be empty", domain.ErrInvalidInput)
	}

	params := url.Values{
		"q":      {address},
		"format": {"json"},
		"limit":  {"1"},
	}
	fullURL := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: create request: %v", domain.ErrUpstreamUnavailable, err)
	}
	// Nominatim's usage policy requires an identifying User-Agent.
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: geocode request: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.Coordinates{}, fmt.Errorf("%w: geocoder returned status %d: %s", domain.ErrUpstreamUnavailable, resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: decode response: %v", domain.ErrUpstreamUnavailable, err)
	}

	if len(places) == 0 {
		return domain.Coordinates{}, fmt.Errorf("%w: no match for address %q", domain.ErrNotFound, address)
	}

	// The first entry is the highest-confidence match.
	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: invalid latitude %q", domain.ErrUpstreamUnavailable, places[0].Lat)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: invalid longitude %q", domain.ErrUpstreamUnavailable, places[0].Lon)
	}

	return domain.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// Nominatim API response types. Coordinates come back as strings.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
