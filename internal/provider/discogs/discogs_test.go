package discogs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/sydlexius/spinmatch/internal/gateway"
	"github.com/sydlexius/spinmatch/internal/provider"
	"github.com/sydlexius/spinmatch/internal/release"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("loading fixture %s: %v", name, err)
	}
	return data
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Discogs token=test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query()
		switch {
		case r.URL.Path == "/database/search" && q.Get("catno") == "NONE 1":
			w.Write([]byte(`{"pagination":{},"results":[]}`))
		case r.URL.Path == "/database/search" && (q.Get("catno") != "" || q.Get("barcode") != ""):
			if q.Get("type") != "release" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Write(loadFixture(t, "search_lita197.json"))
		case r.URL.Path == "/database/search" && q.Get("artist") != "":
			w.Write(loadFixture(t, "search_kind_of_blue.json"))
		case r.URL.Path == "/database/search":
			w.Write([]byte(`{"pagination":{},"results":[]}`))
		case r.URL.Path == "/releases/7592261":
			w.Write(loadFixture(t, "release_7592261.json"))
		case r.URL.Path == "/marketplace/listings" && q.Get("release_id") == "7592261":
			w.Write(loadFixture(t, "listings_7592261.json"))
		case r.URL.Path == "/marketplace/listings" && q.Get("release_id") == "403":
			w.WriteHeader(http.StatusForbidden)
		case r.URL.Path == "/marketplace/stats/7592261":
			w.Write([]byte(`{"lowest_price":{"value":19.99,"currency":"USD"},"num_for_sale":23,"blocked_from_sale":false}`))
		case r.URL.Path == "/marketplace/stats/blocked":
			w.Write([]byte(`{"lowest_price":{"value":9.99,"currency":"USD"},"num_for_sale":4,"blocked_from_sale":true}`))
		case r.URL.Path == "/marketplace/stats/empty":
			w.Write([]byte(`{"lowest_price":null,"num_for_sale":0,"blocked_from_sale":false}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestAdapter(t *testing.T, baseURL, token string) *Adapter {
	t.Helper()
	limiter := provider.NewRateLimiterMap()
	limiter.SetLimit(provider.NameDiscogs, 0)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWithBaseURL(limiter, logger, baseURL, token, "Spinmatch/test", gateway.WithBaseDelay(0))
}

func TestSearchByCatalogNumber(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "test-token")

	c, err := a.SearchByCatalogNumber(context.Background(), "lita-197")
	if err != nil {
		t.Fatalf("SearchByCatalogNumber: %v", err)
	}
	if c.ExternalID != "7592261" {
		t.Errorf("expected the hit with matching catno, got %s", c.ExternalID)
	}
	if c.Artist != "Khruangbin" || c.Title != "The Universe Smiles Upon You" || c.Year != 2015 {
		t.Errorf("unexpected candidate: %+v", c)
	}
	if c.Label != "Late Night Tales" || c.CatalogNumber != "LITA 197" {
		t.Errorf("unexpected label: %s %s", c.Label, c.CatalogNumber)
	}
}

func TestSearchByBarcode(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "test-token")

	c, err := a.SearchByBarcode(context.Background(), "5 060391 090961")
	if err != nil {
		t.Fatalf("SearchByBarcode: %v", err)
	}
	if c.ExternalID != "7592261" {
		t.Errorf("expected the hit with matching barcode, got %s", c.ExternalID)
	}
}

func TestSearchByArtistAndTitle(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "test-token")

	c, err := a.SearchByArtistAndTitle(context.Background(), "Miles Davis", "Kind of Blue")
	if err != nil {
		t.Fatalf("SearchByArtistAndTitle: %v", err)
	}
	if c.ExternalID != "1961203" || c.Artist != "Miles Davis" {
		t.Errorf("unexpected candidate: %+v", c)
	}
}

func TestSearchEmptyIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "test-token")

	_, err := a.SearchByCatalogNumber(context.Background(), "NONE 1")
	var nf *provider.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchFailureIsNotFound(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`},
		{"unavailable", http.StatusServiceUnavailable, ""},
		{"malformed body", http.StatusOK, "<html>maintenance</html>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			a := newTestAdapter(t, srv.URL, "test-token")

			_, err := a.SearchByCatalogNumber(context.Background(), "LITA 197")
			var nf *provider.ErrNotFound
			if !errors.As(err, &nf) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if nf.Reason == "" {
				t.Error("expected the failure to be kept as the reason")
			}
		})
	}
}

func TestSearchQuotaStopsSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "test-token")

	_, err := a.SearchByBarcode(context.Background(), "5060391090961")
	if !errors.Is(err, gateway.ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
	var nf *provider.ErrNotFound
	if errors.As(err, &nf) {
		t.Error("quota failures must not read as a miss")
	}
}

func TestMissingTokenIsAuthFailure(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "")

	_, err := a.SearchByCatalogNumber(context.Background(), "LITA 197")
	var ar *provider.ErrAuthRequired
	if !errors.As(err, &ar) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	if !errors.Is(err, gateway.ErrAuthFailure) {
		t.Error("expected a missing token to read as an auth failure")
	}
}

func TestBadTokenIsAuthFailure(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "wrong")

	_, err := a.SearchByBarcode(context.Background(), "5060391090961")
	if !errors.Is(err, gateway.ErrAuthFailure) {
		t.Fatalf("expected ErrAuthFailure, got %v", err)
	}
}

func TestRelease(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "test-token")

	c, err := a.Release(context.Background(), "7592261")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if c.Artist != "Khruangbin" || c.CatalogNumber != "LITA 197" {
		t.Errorf("unexpected release: %+v", c)
	}
	if len(c.Labels) != 2 || c.Labels[1].Label != "Night Time Stories" {
		t.Errorf("expected disambiguation suffix stripped, got %+v", c.Labels)
	}

	_, err = a.Release(context.Background(), "1")
	var nf *provider.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound for unknown release, got %v", err)
	}
}

func TestListings(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "test-token")

	listings, err := a.Listings(context.Background(), "7592261", "USD")
	if err != nil {
		t.Fatalf("Listings: %v", err)
	}
	if len(listings) != 4 {
		t.Fatalf("expected sold listing dropped, got %d listings", len(listings))
	}
	if listings[1].ShipsFrom != "Germany" || listings[1].Price != 22.5 || listings[1].Seller != "plattenladen" {
		t.Errorf("unexpected listing: %+v", listings[1])
	}
}

func TestListingsForbiddenIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "test-token")

	_, err := a.Listings(context.Background(), "403", "USD")
	var nf *provider.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "test-token")

	s, err := a.Stats(context.Background(), "7592261", "USD")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.LowestPrice == nil || *s.LowestPrice != 19.99 || s.NumForSale != 23 || s.Currency != "USD" {
		t.Errorf("unexpected stats: %+v", s)
	}

	s, err = a.Stats(context.Background(), "blocked", "USD")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.NumForSale != 0 || s.LowestPrice != nil {
		t.Errorf("expected blocked release to report nothing for sale, got %+v", s)
	}

	s, err = a.Stats(context.Background(), "empty", "USD")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.LowestPrice != nil {
		t.Errorf("expected no lowest price, got %v", *s.LowestPrice)
	}
}

func TestMalformedBodyIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"lowest_price":`))
	}))
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "test-token")

	_, err := a.Stats(context.Background(), "7592261", "USD")
	if got := release.Kind(err); got != release.KindUnavailable {
		t.Errorf("Stats: Kind = %s, want %s (err %v)", got, release.KindUnavailable, err)
	}
	_, err = a.Release(context.Background(), "7592261")
	if got := release.Kind(err); got != release.KindUnavailable {
		t.Errorf("Release: Kind = %s, want %s (err %v)", got, release.KindUnavailable, err)
	}
}

func TestReleaseURL(t *testing.T) {
	a := newTestAdapter(t, "http://localhost", "test-token")
	if got := a.ReleaseURL("7592261"); got != "https://www.discogs.com/release/7592261" {
		t.Errorf("unexpected URL: %s", got)
	}
}

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		in, artist, title string
	}{
		{"Khruangbin - The Universe Smiles Upon You", "Khruangbin", "The Universe Smiles Upon You"},
		{"Prince (2) - Sign O' The Times", "Prince", "Sign O' The Times"},
		{"Davis* - Kind Of Blue", "Davis", "Kind Of Blue"},
		{"Untitled", "", "Untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a, ti := splitTitle(tt.in)
			if a != tt.artist || ti != tt.title {
				t.Errorf("splitTitle(%q) = %q, %q", tt.in, a, ti)
			}
		})
	}
}

func TestTestConnection(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	if err := newTestAdapter(t, srv.URL, "test-token").TestConnection(context.Background()); err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
	err := newTestAdapter(t, srv.URL, "bad").TestConnection(context.Background())
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 failure, got %v", err)
	}
}
