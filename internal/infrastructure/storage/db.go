package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured relational backend and verifies the
// connection. Supported drivers: "postgres", "sqlite3".
func Open(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "postgres" {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return db, nil
}

// Migrate creates the three core tables when they do not exist. The DDL is
// kept portable across sqlite and postgres.
func Migrate(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS catalog_entries (
			id TEXT PRIMARY KEY,
			store TEXT NOT NULL,
			product_key TEXT NOT NULL,
			category TEXT NOT NULL,
			name TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			image_url TEXT NOT NULL DEFAULT '',
			product_url TEXT NOT NULL DEFAULT '',
			is_available BOOLEAN NOT NULL DEFAULT TRUE,
			first_seen_at TIMESTAMP NOT NULL,
			last_seen_at TIMESTAMP NOT NULL,
			UNIQUE (store, product_key)
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			entry_id TEXT NOT NULL,
			store TEXT NOT NULL,
			product_name TEXT NOT NULL,
			old_price DOUBLE PRECISION NOT NULL,
			new_price DOUBLE PRECISION NOT NULL,
			change_percent DOUBLE PRECISION NOT NULL,
			changed_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scrape_cache (
			store TEXT NOT NULL,
			category TEXT NOT NULL,
			hour_bucket TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			product_count INTEGER NOT NULL,
			changes_detected INTEGER NOT NULL,
			scraped_at TIMESTAMP NOT NULL,
			PRIMARY KEY (store, category, hour_bucket)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_changed_at ON price_history (changed_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
