// Package geocode verifies free-form place descriptions against a
// fuzzy-search geocoding API.
//
// Verification is best effort: callers fold a VerifiedLocation into the
// record when one is available and keep the caller-supplied text when
// it is not. ErrUnavailable marks every degrade path (missing key,
// HTTP failure, no match) so callers never block a write on it.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable means the location could not be verified. It covers
// missing credentials, transport failures, non-200 responses, and
// empty result sets alike; callers treat all of them as "keep the
// unverified text".
var ErrUnavailable = errors.New("location verification unavailable")

// VerifiedLocation is the structured address a successful lookup
// returns. It is stored alongside itinerary items for map display.
type VerifiedLocation struct {
	Address      string  `json:"address"`
	Municipality string  `json:"municipality"`
	Region       string  `json:"region"`
	PostalCode   string  `json:"postalCode"`
	Country      string  `json:"country"`
	CountryCode  string  `json:"countryCode"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// Verifier resolves a place name plus optional city and country into a
// verified location.
type Verifier interface {
	Verify(ctx context.Context, name, city, country string) (VerifiedLocation, error)
}

// countryCodes maps common country names to ISO codes; the search API
// ranks results better when countrySet is provided.
var countryCodes = map[string]string{
	"USA": "US", "United States": "US",
	"UK": "GB", "United Kingdom": "GB",
	"France": "FR", "Germany": "DE", "Spain": "ES",
	"Italy": "IT", "Japan": "JP", "China": "CN",
	"Canada": "CA", "Australia": "AU", "Mexico": "MX",
	"India": "IN", "Brazil": "BR", "Netherlands": "NL",
}

const defaultBaseURL = "https://atlas.microsoft.com/search/fuzzy/json"

// Client is a Verifier backed by an Atlas-style fuzzy search endpoint.
type Client struct {
	key        string
	baseURL    string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the search endpoint, mainly for tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a geocoding client. An empty key is allowed; every
// Verify call then degrades with ErrUnavailable.
func NewClient(key string, opts ...ClientOption) *Client {
	c := &Client{
		key:     key,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify looks up the best fuzzy match for "name, city, country".
func (c *Client) Verify(ctx context.Context, name, city, country string) (VerifiedLocation, error) {
	var zero VerifiedLocation

	if c.key == "" {
		return zero, ErrUnavailable
	}
	if name == "" {
		return zero, ErrUnavailable
	}

	query := name
	if city != "" {
		query += ", " + city
	}
	if country != "" {
		query += ", " + country
	}

	params := url.Values{}
	params.Set("api-version", "1.0")
	params.Set("subscription-key", c.key)
	params.Set("query", query)
	params.Set("limit", "1")
	params.Set("typeahead", "false")
	if code := countryCode(country); code != "" {
		params.Set("countrySet", code)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return zero, fmt.Errorf("%w: search returned %d", ErrUnavailable, resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Address struct {
				FreeformAddress         string `json:"freeformAddress"`
				Municipality            string `json:"municipality"`
				MunicipalitySubdivision string `json:"municipalitySubdivision"`
				CountrySubdivision      string `json:"countrySubdivision"`
				PostalCode              string `json:"postalCode"`
				Country                 string `json:"country"`
				CountryCode             string `json:"countryCode"`
			} `json:"address"`
			Position struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"position"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return zero, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	if len(payload.Results) == 0 {
		return zero, fmt.Errorf("%w: no match for %q", ErrUnavailable, query)
	}

	best := payload.Results[0]
	municipality := best.Address.Municipality
	if municipality == "" {
		municipality = best.Address.MunicipalitySubdivision
	}

	return VerifiedLocation{
		Address:      best.Address.FreeformAddress,
		Municipality: municipality,
		Region:       best.Address.CountrySubdivision,
		PostalCode:   best.Address.PostalCode,
		Country:      best.Address.Country,
		CountryCode:  best.Address.CountryCode,
		Latitude:     best.Position.Lat,
		Longitude:    best.Position.Lon,
	}, nil
}

func countryCode(country string) string {
	if country == "" {
		return ""
	}
	if code, ok := countryCodes[country]; ok {
		return code
	}
	if len(country) == 2 {
		return strings.ToUpper(country)
	}
	return ""
}
