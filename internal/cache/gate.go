package cache

import (
	"context"
	"log/slog"
	"time"

	"GroceryScanner/internal/domain"
	"GroceryScanner/internal/ports"
)

const bucketLayout = "2006-01-02-15"

// HourBucket renders the wall-clock hour window a decision belongs to.
// Downstream code treats the result as an opaque comparable token.
func HourBucket(t time.Time) string {
	return t.Format(bucketLayout)
}

// Gate enforces the at-most-one-scrape-per-hour policy per (store, category)
// key, backed by the scrape-cache repository.
type Gate struct {
	repo   ports.ScrapeCacheRepository
	clock  func() time.Time
	logger *slog.Logger
}

// NewGate wires the repository; clock defaults to time.Now.
func NewGate(repo ports.ScrapeCacheRepository, clock func() time.Time, logger *slog.Logger) *Gate {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{repo: repo, clock: clock, logger: logger}
}

// ShouldScrape reports whether the key is still unvisited in the current hour
// bucket. When the repository is unreachable the gate fails open: skipping a
// scrape entirely is worse than running an extra one.
func (g *Gate) ShouldScrape(ctx context.Context, store domain.Store, category string) bool {
	entry, err := g.repo.GetLatest(ctx, store, category)
	if err != nil {
		g.logger.Warn("cache lookup failed, allowing scrape",
			"store", store, "category", category, "error", err)
		return true
	}
	if entry == nil {
		return true
	}
	return entry.HourBucket != HourBucket(g.clock())
}

// LastFingerprint returns the most recent batch fingerprint for the key,
// or "" when none is recorded or the repository is unreachable.
func (g *Gate) LastFingerprint(ctx context.Context, store domain.Store, category string) string {
	entry, err := g.repo.GetLatest(ctx, store, category)
	if err != nil || entry == nil {
		return ""
	}
	return entry.Fingerprint
}

// RecordScrape upserts the cache row for the current bucket. Callers invoke
// it on every completed fetch, including empty ones, so a broken category is
// not retried every request within the same hour.
func (g *Gate) RecordScrape(ctx context.Context, store domain.Store, category, fp string, productCount, changes int) error {
	now := g.clock()
	return g.repo.UpsertEntry(ctx, domain.ScrapeCacheEntry{
		Store:           store,
		Category:        category,
		HourBucket:      HourBucket(now),
		Fingerprint:     fp,
		ProductCount:    productCount,
		ChangesDetected: changes,
		ScrapedAt:       now,
	})
}
