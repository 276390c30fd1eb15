package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/ports"
)

// PeliasClient resolves place names against a Pelias instance, bounded to
// Bangladesh.
type PeliasClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

var _ ports.Geocoder = (*PeliasClient)(nil)

// NewPeliasClient builds a client for the given base URL. A nil http client
// gets a 20 second timeout default.
func NewPeliasClient(baseURL, userAgent string, client *http.Client) *PeliasClient {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &PeliasClient{baseURL: baseURL, userAgent: userAgent, httpClient: client}
}

// Name identifies the provider inside the resolver's fallback order.
func (c *PeliasClient) Name() string {
	return "pelias"
}

type peliasResponse struct {
	Features []struct {
		Geometry struct {
			// GeoJSON order: longitude first, then latitude.
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode looks the place up via /search. A nil coordinate with a nil error
// means Pelias knows no such place.
func (c *PeliasClient) Geocode(ctx context.Context, place string) (*domain.Coordinate, error) {
	params := url.Values{}
	params.Set("text", place+", Bangladesh")
	params.Set("boundary.country", "BD")
	params.Set("size", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request pelias: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pelias returned status %d", resp.StatusCode)
	}

	var decoded peliasResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode pelias response: %w", err)
	}
	if len(decoded.Features) == 0 {
		return nil, nil
	}
	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) < 2 {
		return nil, fmt.Errorf("pelias feature has %d coordinates", len(coords))
	}
	return &domain.Coordinate{Lat: coords[1], Lng: coords[0]}, nil
}
