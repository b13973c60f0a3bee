package wikipedia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/sydlexius/spinmatch/internal/gateway"
	"github.com/sydlexius/spinmatch/internal/provider"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 48)), nil); err != nil {
		t.Fatalf("encoding test jpeg: %v", err)
	}
	portrait := buf.Bytes()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		base := "http://" + r.Host
		switch r.URL.Path {
		case "/page/summary/Khruangbin":
			fmt.Fprintf(w, `{"type":"standard","title":"Khruangbin","thumbnail":{"source":"%s/thumb.jpg","width":32,"height":48}}`, base)
		case "/page/summary/Miles_Davis":
			fmt.Fprintf(w, `{"type":"standard","title":"Miles Davis","originalimage":{"source":"%s/original.jpg","width":32,"height":48}}`, base)
		case "/page/summary/Genesis":
			w.Write([]byte(`{"type":"disambiguation","title":"Genesis"}`))
		case "/page/summary/No_Image_Band":
			w.Write([]byte(`{"type":"standard","title":"No Image Band"}`))
		case "/page/summary/Vinyl_record":
			w.Write([]byte(`{"type":"standard","title":"Phonograph record"}`))
		case "/thumb.jpg", "/original.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(portrait)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	limiter := provider.NewRateLimiterMap()
	limiter.SetLimit(provider.NameWikipedia, 0)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWithBaseURL(limiter, logger, baseURL, "Spinmatch/test", gateway.WithBaseDelay(0))
}

func TestFetchPortrait(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	for _, artist := range []string{"Khruangbin", "Miles Davis"} {
		t.Run(artist, func(t *testing.T) {
			data, err := a.FetchPortrait(context.Background(), artist)
			if err != nil {
				t.Fatalf("FetchPortrait: %v", err)
			}
			if len(data) == 0 {
				t.Error("expected image bytes")
			}
		})
	}
}

func TestFetchPortraitNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	for _, artist := range []string{"Genesis", "No Image Band", "Unknown Artist", ""} {
		t.Run(artist, func(t *testing.T) {
			_, err := a.FetchPortrait(context.Background(), artist)
			var nf *provider.ErrNotFound
			if !errors.As(err, &nf) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestPageTitle(t *testing.T) {
	if got := pageTitle("Sly & the Family Stone"); got != "Sly_&_the_Family_Stone" {
		t.Errorf("unexpected title: %s", got)
	}
	if got := pageTitle("AC/DC"); got != "AC%2FDC" {
		t.Errorf("unexpected title: %s", got)
	}
}

func TestTestConnection(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)
	if err := a.TestConnection(context.Background()); err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
	if a.Name() != provider.NameWikipedia || a.RequiresAuth() {
		t.Error("unexpected provider identity")
	}
}
