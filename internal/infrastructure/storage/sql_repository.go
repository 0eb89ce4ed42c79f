package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"GroceryScanner/internal/domain"
	"GroceryScanner/internal/ports"
)

// SQLRepository persists the catalog, price history, and scrape cache in one
// relational store. The scrape-cache upsert is what makes concurrent runs of
// the same key safe: last write wins on the (store, category, hour_bucket)
// primary key.
type SQLRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.CatalogRepository = (*SQLRepository)(nil)
var _ ports.ScrapeCacheRepository = (*SQLRepository)(nil)

// NewSQLRepository wires a sql.DB; driver selects the placeholder dialect.
func NewSQLRepository(db *sql.DB, driver string) *SQLRepository {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == "postgres" {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &SQLRepository{db: db, builder: builder}
}

// GetEntry loads one catalog entry, or nil when the key is unseen.
func (r *SQLRepository) GetEntry(ctx context.Context, store domain.Store, productKey string) (*domain.CatalogEntry, error) {
	query, args, err := r.builder.
		Select("id", "store", "product_key", "category", "name", "price",
			"image_url", "product_url", "is_available", "first_seen_at", "last_seen_at").
		From("catalog_entries").
		Where(sq.Eq{"store": string(store), "product_key": productKey}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entry domain.CatalogEntry
	row := r.db.QueryRowContext(ctx, query, args...)
	err = row.Scan(&entry.ID, &entry.Store, &entry.ProductKey, &entry.Category,
		&entry.Name, &entry.Price, &entry.ImageURL, &entry.ProductURL,
		&entry.IsAvailable, &entry.FirstSeenAt, &entry.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	return &entry, nil
}

// InsertEntry writes a first-sighting row. On a concurrent insert of the same
// key the conflict clause degrades to a last-seen refresh.
func (r *SQLRepository) InsertEntry(ctx context.Context, entry domain.CatalogEntry) error {
	query, args, err := r.builder.
		Insert("catalog_entries").
		Columns("id", "store", "product_key", "category", "name", "price",
			"image_url", "product_url", "is_available", "first_seen_at", "last_seen_at").
		Values(entry.ID, string(entry.Store), entry.ProductKey, entry.Category,
			entry.Name, entry.Price, entry.ImageURL, entry.ProductURL,
			entry.IsAvailable, entry.FirstSeenAt, entry.LastSeenAt).
		Suffix(`ON CONFLICT (store, product_key) DO UPDATE SET
			last_seen_at = excluded.last_seen_at,
			is_available = excluded.is_available`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// UpdateEntry rewrites the mutable fields of an existing entry.
func (r *SQLRepository) UpdateEntry(ctx context.Context, entry domain.CatalogEntry) error {
	query, args, err := r.builder.
		Update("catalog_entries").
		Set("name", entry.Name).
		Set("price", entry.Price).
		Set("image_url", entry.ImageURL).
		Set("product_url", entry.ProductURL).
		Set("is_available", entry.IsAvailable).
		Set("last_seen_at", entry.LastSeenAt).
		Where(sq.Eq{"id": entry.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return nil
}

// InsertPriceHistory appends one price-change row.
func (r *SQLRepository) InsertPriceHistory(ctx context.Context, event domain.PriceChangeEvent) error {
	query, args, err := r.builder.
		Insert("price_history").
		Columns("entry_id", "store", "product_name", "old_price", "new_price", "change_percent", "changed_at").
		Values(event.EntryID, string(event.Store), event.ProductName,
			event.OldPrice, event.NewPrice, event.ChangePercent, event.ChangedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build history insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// Stats aggregates catalog totals and the 24h price-change count.
func (r *SQLRepository) Stats(ctx context.Context) (domain.CatalogStats, error) {
	stats := domain.CatalogStats{ProductsByStore: map[domain.Store]int{}}

	query, args, err := r.builder.
		Select("store", "COUNT(*)").
		From("catalog_entries").
		GroupBy("store").
		ToSql()
	if err != nil {
		return stats, fmt.Errorf("build stats query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return stats, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var store string
		var count int
		if err := rows.Scan(&store, &count); err != nil {
			return stats, fmt.Errorf("scan stats: %w", err)
		}
		stats.ProductsByStore[domain.Store(store)] = count
		stats.TotalProducts += count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("stats rows: %w", err)
	}

	since := time.Now().Add(-24 * time.Hour)
	query, args, err = r.builder.
		Select("COUNT(*)").
		From("price_history").
		Where(sq.Gt{"changed_at": since}).
		ToSql()
	if err != nil {
		return stats, fmt.Errorf("build history count: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&stats.RecentPriceChanges); err != nil {
		return stats, fmt.Errorf("count history: %w", err)
	}

	return stats, nil
}

// GetLatest returns the most recent cache row for a key, or nil.
func (r *SQLRepository) GetLatest(ctx context.Context, store domain.Store, category string) (*domain.ScrapeCacheEntry, error) {
	query, args, err := r.builder.
		Select("store", "category", "hour_bucket", "fingerprint",
			"product_count", "changes_detected", "scraped_at").
		From("scrape_cache").
		Where(sq.Eq{"store": string(store), "category": category}).
		OrderBy("hour_bucket DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cache query: %w", err)
	}

	var entry domain.ScrapeCacheEntry
	row := r.db.QueryRowContext(ctx, query, args...)
	err = row.Scan(&entry.Store, &entry.Category, &entry.HourBucket,
		&entry.Fingerprint, &entry.ProductCount, &entry.ChangesDetected, &entry.ScrapedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan cache entry: %w", err)
	}
	return &entry, nil
}

// UpsertEntry writes the cache row for one hour bucket, last write wins.
func (r *SQLRepository) UpsertEntry(ctx context.Context, entry domain.ScrapeCacheEntry) error {
	query, args, err := r.builder.
		Insert("scrape_cache").
		Columns("store", "category", "hour_bucket", "fingerprint",
			"product_count", "changes_detected", "scraped_at").
		Values(string(entry.Store), entry.Category, entry.HourBucket,
			entry.Fingerprint, entry.ProductCount, entry.ChangesDetected, entry.ScrapedAt).
		Suffix(`ON CONFLICT (store, category, hour_bucket) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			product_count = excluded.product_count,
			changes_detected = excluded.changes_detected,
			scraped_at = excluded.scraped_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cache upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// ListBucket returns every cache row recorded in one hour bucket.
func (r *SQLRepository) ListBucket(ctx context.Context, hourBucket string) ([]domain.ScrapeCacheEntry, error) {
	query, args, err := r.builder.
		Select("store", "category", "hour_bucket", "fingerprint",
			"product_count", "changes_detected", "scraped_at").
		From("scrape_cache").
		Where(sq.Eq{"hour_bucket": hourBucket}).
		OrderBy("store", "category").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build bucket query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bucket: %w", err)
	}
	defer rows.Close()

	var entries []domain.ScrapeCacheEntry
	for rows.Next() {
		var entry domain.ScrapeCacheEntry
		if err := rows.Scan(&entry.Store, &entry.Category, &entry.HourBucket,
			&entry.Fingerprint, &entry.ProductCount, &entry.ChangesDetected, &entry.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan bucket row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bucket rows: %w", err)
	}
	return entries, nil
}
