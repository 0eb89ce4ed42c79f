package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"GroceryScanner/internal/domain"
	"GroceryScanner/internal/ports"
)

// redisKeyPrefix namespaces scrape-cache hashes.
const redisKeyPrefix = "scrape_cache:"

// redisCacheTTL keeps stale keys from accumulating while leaving the last
// fingerprint available well beyond one schedule cycle.
const redisCacheTTL = 48 * time.Hour

// RedisCache is an alternative scrape-cache backend: one hash per
// (store, category) key, holding only the latest bucket. Writes are
// last-write-wins, which is all the gate requires.
type RedisCache struct {
	client *redis.Client
}

var _ ports.ScrapeCacheRepository = (*RedisCache)(nil)

// NewRedisCache connects and verifies the redis backend.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &RedisCache{client: client}, nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func cacheKey(store domain.Store, category string) string {
	return redisKeyPrefix + string(store) + ":" + category
}

// GetLatest loads the hash for a key, or nil when absent.
func (c *RedisCache) GetLatest(ctx context.Context, store domain.Store, category string) (*domain.ScrapeCacheEntry, error) {
	fields, err := c.client.HGetAll(ctx, cacheKey(store, category)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return entryFromFields(store, category, fields)
}

// UpsertEntry overwrites the hash for the key and refreshes its TTL.
func (c *RedisCache) UpsertEntry(ctx context.Context, entry domain.ScrapeCacheEntry) error {
	key := cacheKey(entry.Store, entry.Category)
	fields := map[string]interface{}{
		"hour_bucket":      entry.HourBucket,
		"fingerprint":      entry.Fingerprint,
		"product_count":    entry.ProductCount,
		"changes_detected": entry.ChangesDetected,
		"scraped_at":       entry.ScrapedAt.UTC().Format(time.RFC3339),
	}
	if err := c.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("hset: %w", err)
	}
	if err := c.client.Expire(ctx, key, redisCacheTTL).Err(); err != nil {
		return fmt.Errorf("expire: %w", err)
	}
	return nil
}

// ListBucket scans all cache hashes and keeps those in the given bucket.
func (c *RedisCache) ListBucket(ctx context.Context, hourBucket string) ([]domain.ScrapeCacheEntry, error) {
	var entries []domain.ScrapeCacheEntry

	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := c.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("hgetall %s: %w", key, err)
		}
		if fields["hour_bucket"] != hourBucket {
			continue
		}

		store, category, ok := splitCacheKey(key)
		if !ok {
			continue
		}
		entry, err := entryFromFields(store, category, fields)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return entries, nil
}

func splitCacheKey(key string) (domain.Store, string, bool) {
	rest := key[len(redisKeyPrefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == ':' {
			return domain.Store(rest[:i]), rest[i+1:], true
		}
	}
	return "", "", false
}

func entryFromFields(store domain.Store, category string, fields map[string]string) (*domain.ScrapeCacheEntry, error) {
	entry := domain.ScrapeCacheEntry{
		Store:       store,
		Category:    category,
		HourBucket:  fields["hour_bucket"],
		Fingerprint: fields["fingerprint"],
	}

	var err error
	if v := fields["product_count"]; v != "" {
		if entry.ProductCount, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("parse product_count: %w", err)
		}
	}
	if v := fields["changes_detected"]; v != "" {
		if entry.ChangesDetected, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("parse changes_detected: %w", err)
		}
	}
	if v := fields["scraped_at"]; v != "" {
		if entry.ScrapedAt, err = time.Parse(time.RFC3339, v); err != nil {
			return nil, fmt.Errorf("parse scraped_at: %w", err)
		}
	}
	return &entry, nil
}
