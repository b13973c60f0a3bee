// Package pricecache keeps recent price summaries in SQLite so repeated
// lookups of the same release do not hit the marketplace again until the
// entry expires.
package pricecache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/spinmatch/internal/pricing"
	"github.com/sydlexius/spinmatch/internal/release"
)

// DefaultTTL is how long a summary stays fresh.
const DefaultTTL = 6 * time.Hour

// Store is a TTL cache of price summaries backed by the price_cache table.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewStore creates a store on a migrated database. A non-positive ttl uses
// DefaultTTL.
func NewStore(db *sql.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, ttl: ttl, now: time.Now}
}

// Key derives the cache key for a pricing request. The label image does not
// take part: pricing never looks at it.
func Key(q release.IdentifierQuery, knownReleaseID, currency string) string {
	q = q.Normalized()
	parts := []string{
		strings.ToUpper(currency),
		strings.TrimSpace(knownReleaseID),
		q.Barcode,
		strings.ToUpper(q.CatalogNumber),
		strings.ToLower(q.Artist),
		strings.ToLower(q.Album),
		strconv.Itoa(q.Year),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached summary for key. ok is false when there is no
// entry or it has expired.
func (s *Store) Get(ctx context.Context, key string) (summary *release.PriceSummary, ok bool, err error) {
	var (
		payload   string
		fetchedAt int64
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM price_cache WHERE cache_key = ?`, key,
	).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading price cache: %w", err)
	}
	if s.now().Sub(time.UnixMilli(fetchedAt)) >= s.ttl {
		return nil, false, nil
	}
	var out release.PriceSummary
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, false, fmt.Errorf("decoding cached summary: %w", err)
	}
	return &out, true, nil
}

// Put stores summary under key, replacing any previous entry.
func (s *Store) Put(ctx context.Context, key string, summary *release.PriceSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO price_cache (cache_key, release_id, currency, payload, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			release_id = excluded.release_id,
			currency = excluded.currency,
			payload = excluded.payload,
			fetched_at = excluded.fetched_at`,
		key, summary.ReleaseID, summary.Currency, string(payload), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("writing price cache: %w", err)
	}
	return nil
}

// Purge deletes expired entries and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM price_cache WHERE fetched_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging price cache: %w", err)
	}
	return res.RowsAffected()
}

// Pricer serves summaries from the store and asks next on a miss. Errors are
// never cached, and a failing store only costs the cache.
type Pricer struct {
	next     pricing.Pricer
	store    *Store
	currency string
	logger   *slog.Logger
}

// NewPricer wraps next with store. currency is part of the key so changing
// the configured currency does not serve stale conversions.
func NewPricer(next pricing.Pricer, store *Store, currency string, logger *slog.Logger) *Pricer {
	return &Pricer{
		next:     next,
		store:    store,
		currency: currency,
		logger:   logger.With(slog.String("component", "pricecache")),
	}
}

// PriceRelease implements pricing.Pricer.
func (p *Pricer) PriceRelease(ctx context.Context, q release.IdentifierQuery, knownReleaseID string) (*release.PriceSummary, error) {
	key := Key(q, knownReleaseID, p.currency)

	cached, ok, err := p.store.Get(ctx, key)
	switch {
	case err != nil:
		p.logger.Warn("price cache read failed", slog.String("error", err.Error()))
	case ok:
		p.logger.Debug("price cache hit", slog.String("release_id", cached.ReleaseID))
		return cached, nil
	}

	summary, err := p.next.PriceRelease(ctx, q, knownReleaseID)
	if err != nil {
		return nil, err
	}
	if err := p.store.Put(ctx, key, summary); err != nil {
		p.logger.Warn("price cache write failed", slog.String("error", err.Error()))
	}
	return summary, nil
}
