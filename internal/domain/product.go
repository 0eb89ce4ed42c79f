package domain

import "time"

// Store identifies a supported retailer.
type Store string

const (
	StoreShoprite   Store = "shoprite"
	StorePnP        Store = "pnp"
	StoreWoolworths Store = "woolworths"
)

// KnownStores lists every retailer the registry may serve.
var KnownStores = []Store{StoreShoprite, StorePnP, StoreWoolworths}

// Valid reports whether the store belongs to the fixed retailer set.
func (s Store) Valid() bool {
	for _, known := range KnownStores {
		if s == known {
			return true
		}
	}
	return false
}

// ProductRecord is one observed product at one point in time, as extracted
// by a site adapter. Records without a name never enter the core.
type ProductRecord struct {
	Store      Store
	Category   string
	ExternalID string
	Name       string
	Price      float64
	ImageURL   string
	ProductURL string
	OnSpecial  bool
	ObservedAt time.Time
}

// CatalogEntry is the durable row per (store, product key).
type CatalogEntry struct {
	ID          string
	Store       Store
	ProductKey  string
	Category    string
	Name        string
	Price       float64
	ImageURL    string
	ProductURL  string
	IsAvailable bool
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// PriceChangeEvent reports one detected price movement for a catalog entry.
type PriceChangeEvent struct {
	EntryID       string
	Store         Store
	ProductName   string
	OldPrice      float64
	NewPrice      float64
	ChangePercent float64
	ChangedAt     time.Time
}

// ChangePercent computes the relative movement between two prices.
// A zero old price yields 0 rather than a division blowup.
func ChangePercent(oldPrice, newPrice float64) float64 {
	if oldPrice <= 0 {
		return 0
	}
	return (newPrice - oldPrice) / oldPrice * 100
}

// ScrapeCacheEntry tracks the last observed state of one (store, category)
// key inside one hour bucket.
type ScrapeCacheEntry struct {
	Store           Store
	Category        string
	HourBucket      string
	Fingerprint     string
	ProductCount    int
	ChangesDetected int
	ScrapedAt       time.Time
}

// ScrapeStatus tags the outcome of one pipeline run.
type ScrapeStatus string

const (
	// StatusCached means the gate rejected the run; nothing was fetched.
	StatusCached ScrapeStatus = "cached"
	// StatusEmpty means the source was reachable but produced no valid records.
	StatusEmpty ScrapeStatus = "empty"
	// StatusUnchanged means the batch fingerprint matched the previous one.
	StatusUnchanged ScrapeStatus = "unchanged"
	// StatusChanged means the batch was reconciled into the catalog.
	StatusChanged ScrapeStatus = "changed"
)

// ScrapeResult is the tagged outcome returned to triggered-mode callers.
// Products and Changes are populated only for StatusChanged.
type ScrapeResult struct {
	Status   ScrapeStatus
	Store    Store
	Category string
	Products []ProductRecord
	Changes  []PriceChangeEvent
}

// CatalogStats aggregates catalog and history counters for introspection.
type CatalogStats struct {
	TotalProducts      int
	ProductsByStore    map[Store]int
	RecentPriceChanges int
}

// ValidRecords filters out records that must not reach the core: missing
// names and negative prices.
func ValidRecords(products []ProductRecord) []ProductRecord {
	valid := make([]ProductRecord, 0, len(products))
	for _, p := range products {
		if p.Name == "" || p.Price < 0 {
			continue
		}
		valid = append(valid, p)
	}
	return valid
}
