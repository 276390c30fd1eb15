package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/ports"
)

// NominatimClient resolves place names against a Nominatim instance. Searches
// are constrained to Bangladesh.
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

var _ ports.Geocoder = (*NominatimClient)(nil)

// NewNominatimClient builds a client for the given base URL. A nil http client
// gets a 20 second timeout default.
func NewNominatimClient(baseURL, userAgent string, client *http.Client) *NominatimClient {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &NominatimClient{baseURL: baseURL, userAgent: userAgent, httpClient: client}
}

// Name identifies the provider inside the resolver's fallback order.
func (c *NominatimClient) Name() string {
	return "nominatim"
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode looks the place up via /search. A nil coordinate with a nil error
// means Nominatim knows no such place.
func (c *NominatimClient) Geocode(ctx context.Context, place string) (*domain.Coordinate, error) {
	params := url.Values{}
	params.Set("q", place+", Bangladesh")
	params.Set("format", "jsonv2")
	params.Set("countrycodes", "bd")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request nominatim: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode nominatim response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse latitude %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse longitude %q: %w", results[0].Lon, err)
	}
	return &domain.Coordinate{Lat: lat, Lng: lng}, nil
}
