package usecase

import (
	"context"
	"sync"
	"time"

	"GroceryScanner/internal/domain"
	"GroceryScanner/internal/scraper"
)

type fakeCatalog struct {
	mu      sync.Mutex
	entries map[string]domain.CatalogEntry
	history []domain.PriceChangeEvent
	err     error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{entries: map[string]domain.CatalogEntry{}}
}

func catalogKey(store domain.Store, productKey string) string {
	return string(store) + "/" + productKey
}

func (f *fakeCatalog) GetEntry(_ context.Context, store domain.Store, productKey string) (*domain.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	entry, ok := f.entries[catalogKey(store, productKey)]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (f *fakeCatalog) InsertEntry(_ context.Context, entry domain.CatalogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries[catalogKey(entry.Store, entry.ProductKey)] = entry
	return nil
}

func (f *fakeCatalog) UpdateEntry(_ context.Context, entry domain.CatalogEntry) error {
	return f.InsertEntry(context.Background(), entry)
}

func (f *fakeCatalog) InsertPriceHistory(_ context.Context, event domain.PriceChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.history = append(f.history, event)
	return nil
}

func (f *fakeCatalog) Stats(_ context.Context) (domain.CatalogStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := domain.CatalogStats{
		TotalProducts:      len(f.entries),
		ProductsByStore:    map[domain.Store]int{},
		RecentPriceChanges: len(f.history),
	}
	for _, entry := range f.entries {
		stats.ProductsByStore[entry.Store]++
	}
	return stats, nil
}

type fakeCacheRepo struct {
	mu      sync.Mutex
	entries map[string]domain.ScrapeCacheEntry
	err     error
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{entries: map[string]domain.ScrapeCacheEntry{}}
}

func (f *fakeCacheRepo) GetLatest(_ context.Context, store domain.Store, category string) (*domain.ScrapeCacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	entry, ok := f.entries[string(store)+"/"+category]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (f *fakeCacheRepo) UpsertEntry(_ context.Context, entry domain.ScrapeCacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries[string(entry.Store)+"/"+entry.Category] = entry
	return nil
}

func (f *fakeCacheRepo) ListBucket(_ context.Context, bucket string) ([]domain.ScrapeCacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ScrapeCacheEntry
	for _, entry := range f.entries {
		if entry.HourBucket == bucket {
			out = append(out, entry)
		}
	}
	return out, nil
}

// fakeAdapter replays canned batches (or an error) and counts fetches.
type fakeAdapter struct {
	store   domain.Store
	batch   []domain.ProductRecord
	err     error
	fetches int
}

func (f *fakeAdapter) Store() domain.Store {
	return f.store
}

func (f *fakeAdapter) FetchProducts(_ context.Context, _ scraper.Request) ([]domain.ProductRecord, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.batch, nil
}

// manualClock hands out a settable time for deterministic scheduling tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
