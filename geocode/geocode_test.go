package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const matchResponse = `{
	"results": [
		{
			"address": {
				"freeformAddress": "Praca do Comercio, 1100-148 Lisboa",
				"municipality": "Lisboa",
				"countrySubdivision": "Lisboa",
				"postalCode": "1100-148",
				"country": "Portugal",
				"countryCode": "PT"
			},
			"position": {"lat": 38.7077, "lon": -9.1365}
		}
	]
}`

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("successful lookup", func(t *testing.T) {
		var gotQuery, gotCountrySet string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query().Get("query")
			gotCountrySet = r.URL.Query().Get("countrySet")
			if r.URL.Query().Get("limit") != "1" {
				t.Errorf("expected limit=1, got %q", r.URL.Query().Get("limit"))
			}
			if r.URL.Query().Get("typeahead") != "false" {
				t.Errorf("expected typeahead=false, got %q", r.URL.Query().Get("typeahead"))
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(matchResponse))
		}))
		defer srv.Close()

		c := NewClient("test-key", WithBaseURL(srv.URL))
		loc, err := c.Verify(ctx, "Praca do Comercio", "Lisbon", "PT")
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}

		if gotQuery != "Praca do Comercio, Lisbon, PT" {
			t.Errorf("unexpected query %q", gotQuery)
		}
		if gotCountrySet != "PT" {
			t.Errorf("expected countrySet PT, got %q", gotCountrySet)
		}
		if loc.Municipality != "Lisboa" || loc.CountryCode != "PT" {
			t.Errorf("unexpected location %+v", loc)
		}
		if loc.Latitude == 0 || loc.Longitude == 0 {
			t.Errorf("expected coordinates, got %+v", loc)
		}
	})

	t.Run("municipality falls back to subdivision", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":[{"address":{"municipalitySubdivision":"Brooklyn","country":"United States"},"position":{"lat":40.67,"lon":-73.94}}]}`))
		}))
		defer srv.Close()

		c := NewClient("test-key", WithBaseURL(srv.URL))
		loc, err := c.Verify(ctx, "Some Deli", "New York", "USA")
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if loc.Municipality != "Brooklyn" {
			t.Errorf("expected subdivision fallback, got %q", loc.Municipality)
		}
	})

	t.Run("degrades without credentials", func(t *testing.T) {
		c := NewClient("")
		if _, err := c.Verify(ctx, "anywhere", "", ""); !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("degrades on empty name", func(t *testing.T) {
		c := NewClient("test-key")
		if _, err := c.Verify(ctx, "", "Lisbon", "PT"); !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("degrades on server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewClient("test-key", WithBaseURL(srv.URL))
		if _, err := c.Verify(ctx, "anywhere", "", ""); !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("degrades on empty result set", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":[]}`))
		}))
		defer srv.Close()

		c := NewClient("test-key", WithBaseURL(srv.URL))
		if _, err := c.Verify(ctx, "nowhere at all", "", ""); !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("degrades on malformed response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		c := NewClient("test-key", WithBaseURL(srv.URL))
		if _, err := c.Verify(ctx, "anywhere", "", ""); !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})
}

func TestCountryCode(t *testing.T) {
	tests := []struct {
		country string
		want    string
	}{
		{"USA", "US"},
		{"United States", "US"},
		{"UK", "GB"},
		{"United Kingdom", "GB"},
		{"Japan", "JP"},
		{"pt", "PT"},
		{"", ""},
		{"Atlantis", ""},
	}

	for _, tt := range tests {
		if got := countryCode(tt.country); got != tt.want {
			t.Errorf("countryCode(%q) = %q, want %q", tt.country, got, tt.want)
		}
	}
}
