// Package geocode resolves free-text addresses into coordinates using the
// Google Geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

const (
	defaultGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

	// UnresolvedToken appears in formatted addresses the provider could not
	// fully resolve.
	UnresolvedToken = "undefined"

	statusZeroResults = "ZERO_RESULTS"
)

// ErrInvalidAddress is returned when an address cannot be resolved.
var ErrInvalidAddress = errors.New("invalid address")

// Point is a latitude/longitude pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Result is a resolved address.
type Result struct {
	Point   Point  `json:"geolocation"`
	Address string `json:"location"`
}

// Client performs geocoding lookups.
type Client struct {
	httpClient *http.Client
	apiKey     string
	limiter    *rate.Limiter

	// Overridable for testing.
	geocodeURL string
}

// NewClient creates a geocoding client. rps limits outbound requests per
// second; zero or less disables the limit.
func NewClient(apiKey string, rps float64) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("HM_GEOCODE_API_KEY is required")
	}

	c := &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		geocodeURL: defaultGeocodeURL,
	}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return c, nil
}

// geocodeResponse is the subset of the Geocoding API response we read.
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location Point `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Lookup issues a single geocoding request for address. It does not retry.
func (c *Client) Lookup(ctx context.Context, address string) (result *Result, err error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidAddress)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	params := url.Values{
		"address": {address},
		"key":     {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.geocodeURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing body: %w", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if body.Status == statusZeroResults || len(body.Results) == 0 {
		return nil, fmt.Errorf("%w: no results for %q", ErrInvalidAddress, address)
	}

	first := body.Results[0]
	if first.FormattedAddress == "" || strings.Contains(first.FormattedAddress, UnresolvedToken) {
		return nil, fmt.Errorf("%w: unresolved address %q", ErrInvalidAddress, address)
	}

	return &Result{
		Point:   first.Geometry.Location,
		Address: first.FormattedAddress,
	}, nil
}
