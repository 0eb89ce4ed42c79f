package ports

import (
	"context"

	"GroceryScanner/internal/domain"
)

// CatalogRepository persists catalog entries and their price history.
type CatalogRepository interface {
	GetEntry(ctx context.Context, store domain.Store, productKey string) (*domain.CatalogEntry, error)
	InsertEntry(ctx context.Context, entry domain.CatalogEntry) error
	UpdateEntry(ctx context.Context, entry domain.CatalogEntry) error
	InsertPriceHistory(ctx context.Context, event domain.PriceChangeEvent) error
	Stats(ctx context.Context) (domain.CatalogStats, error)
}

// ScrapeCacheRepository persists per-key scrape fingerprints and counters.
// GetLatest returns nil when the key has never been scraped.
type ScrapeCacheRepository interface {
	GetLatest(ctx context.Context, store domain.Store, category string) (*domain.ScrapeCacheEntry, error)
	UpsertEntry(ctx context.Context, entry domain.ScrapeCacheEntry) error
	ListBucket(ctx context.Context, hourBucket string) ([]domain.ScrapeCacheEntry, error)
}

// ChangeNotifier pushes detected price changes to an outbound channel.
type ChangeNotifier interface {
	NotifyChanges(ctx context.Context, store domain.Store, category string, changes []domain.PriceChangeEvent) error
}
