package pricecache

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/sydlexius/spinmatch/internal/database"
	"github.com/sydlexius/spinmatch/internal/release"
)

func setupStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	if err := database.Migrate(ctx, db, slog.New(slog.DiscardHandler)); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return NewStore(db, time.Hour), db
}

type fakePricer struct {
	calls int
	fn    func(ctx context.Context, q release.IdentifierQuery, id string) (*release.PriceSummary, error)
}

func (f *fakePricer) PriceRelease(ctx context.Context, q release.IdentifierQuery, id string) (*release.PriceSummary, error) {
	f.calls++
	return f.fn(ctx, q, id)
}

func summary(id string, lowest float64) *release.PriceSummary {
	return &release.PriceSummary{
		ReleaseID:   id,
		ReleaseURL:  "https://market.example/release/" + id,
		LowestPrice: &lowest,
		Currency:    "USD",
		NumForSale:  3,
		Listings:    []release.Listing{{Price: lowest, Currency: "USD", ShipsFrom: "Germany"}},
		Mode:        release.ModeItemized,
		Verification: release.Verification{
			Verified:     true,
			Confidence:   release.ConfidenceHigh,
			MatchReasons: []string{"Manually selected"},
			Warnings:     []string{},
		},
	}
}

func TestStoreGetPut(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := s.Put(ctx, "k1", summary("7592261", 22.5)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.ReleaseID != "7592261" || *got.LowestPrice != 22.5 || len(got.Listings) != 1 {
		t.Errorf("unexpected summary: %+v", got)
	}
	if got.Verification.Confidence != release.ConfidenceHigh {
		t.Errorf("verification not preserved: %+v", got.Verification)
	}

	// Overwrite keeps a single row.
	if err := s.Put(ctx, "k1", summary("7592261", 19)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _, _ = s.Get(ctx, "k1")
	if *got.LowestPrice != 19 {
		t.Errorf("expected overwritten price, got %v", *got.LowestPrice)
	}
}

func TestStoreExpiryAndPurge(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	if err := s.Put(ctx, "old", summary("1", 10)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.now = func() time.Time { return base.Add(30 * time.Minute) }
	if err := s.Put(ctx, "new", summary("2", 20)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	s.now = func() time.Time { return base.Add(time.Hour) }
	if _, ok, _ := s.Get(ctx, "old"); ok {
		t.Error("expected expired entry to miss")
	}
	if _, ok, _ := s.Get(ctx, "new"); !ok {
		t.Error("expected fresh entry to hit")
	}

	n, err := s.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged row, got %d", n)
	}
	var left int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_cache`).Scan(&left); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if left != 1 {
		t.Errorf("expected 1 row left, got %d", left)
	}
}

func TestKey(t *testing.T) {
	q := release.IdentifierQuery{CatalogNumber: "lita 197", Artist: "Khruangbin"}
	a := Key(q, "", "usd")
	b := Key(release.IdentifierQuery{CatalogNumber: " LITA 197 ", Artist: "khruangbin", LabelImage: []byte{1}}, "", "USD")
	if a != b {
		t.Error("expected normalized queries to share a key")
	}
	if a == Key(q, "", "EUR") {
		t.Error("currency must be part of the key")
	}
	if a == Key(q, "7592261", "USD") {
		t.Error("known release id must be part of the key")
	}
}

func TestPricerCachesSuccess(t *testing.T) {
	s, _ := setupStore(t)
	next := &fakePricer{fn: func(context.Context, release.IdentifierQuery, string) (*release.PriceSummary, error) {
		return summary("7592261", 22.5), nil
	}}
	p := NewPricer(next, s, "USD", slog.New(slog.DiscardHandler))
	q := release.IdentifierQuery{CatalogNumber: "LITA 197"}

	for i := 0; i < 3; i++ {
		got, err := p.PriceRelease(context.Background(), q, "")
		if err != nil {
			t.Fatalf("PriceRelease: %v", err)
		}
		if got.ReleaseID != "7592261" {
			t.Errorf("unexpected release %s", got.ReleaseID)
		}
	}
	if next.calls != 1 {
		t.Errorf("expected one upstream call, got %d", next.calls)
	}
}

func TestPricerDoesNotCacheErrors(t *testing.T) {
	s, _ := setupStore(t)
	next := &fakePricer{fn: func(context.Context, release.IdentifierQuery, string) (*release.PriceSummary, error) {
		return nil, release.ErrNotAvailable
	}}
	p := NewPricer(next, s, "USD", slog.New(slog.DiscardHandler))

	for i := 0; i < 2; i++ {
		if _, err := p.PriceRelease(context.Background(), release.IdentifierQuery{Barcode: "1"}, ""); !errors.Is(err, release.ErrNotAvailable) {
			t.Fatalf("expected ErrNotAvailable, got %v", err)
		}
	}
	if next.calls != 2 {
		t.Errorf("expected errors to reach upstream every time, got %d calls", next.calls)
	}
}

func TestPricerSurvivesBrokenStore(t *testing.T) {
	s, db := setupStore(t)
	if _, err := db.ExecContext(context.Background(), `DROP TABLE price_cache`); err != nil {
		t.Fatalf("dropping table: %v", err)
	}
	next := &fakePricer{fn: func(context.Context, release.IdentifierQuery, string) (*release.PriceSummary, error) {
		return summary("1", 5), nil
	}}
	p := NewPricer(next, s, "USD", slog.New(slog.DiscardHandler))

	got, err := p.PriceRelease(context.Background(), release.IdentifierQuery{Barcode: "1"}, "")
	if err != nil {
		t.Fatalf("PriceRelease: %v", err)
	}
	if got.ReleaseID != "1" {
		t.Errorf("unexpected summary: %+v", got)
	}
}
