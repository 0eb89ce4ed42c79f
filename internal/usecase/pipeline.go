package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"GroceryScanner/internal/cache"
	"GroceryScanner/internal/domain"
	"GroceryScanner/internal/fingerprint"
	"GroceryScanner/internal/ports"
	"GroceryScanner/internal/scraper"
)

// ScrapeRequest addresses one (store, category) key for a pipeline run.
type ScrapeRequest struct {
	Store       domain.Store
	Category    string
	MaxPages    int
	MaxProducts int
	Force       bool
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Registry   *scraper.Registry
	Gate       *cache.Gate
	Reconciler *Reconciler
	Notifier   ports.ChangeNotifier
	Logger     *slog.Logger
}

// Pipeline runs the shared gate → fetch → fingerprint → reconcile sequence
// for one key. Both the cyclic scheduler and API-triggered calls go through
// here; concurrent runs of the same key are safe because the cache row is
// upserted last-write-wins and reconciliation is idempotent.
type Pipeline struct {
	registry   *scraper.Registry
	gate       *cache.Gate
	reconciler *Reconciler
	notifier   ports.ChangeNotifier
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		registry:   deps.Registry,
		gate:       deps.Gate,
		reconciler: deps.Reconciler,
		notifier:   deps.Notifier,
		logger:     logger,
	}
}

// Run executes the pipeline for one key and reports the tagged outcome.
// A fetch failure propagates as an error without touching the gate, so the
// key is retried on the next request instead of being cached as empty.
func (p *Pipeline) Run(ctx context.Context, req ScrapeRequest) (domain.ScrapeResult, error) {
	if !req.Store.Valid() {
		return domain.ScrapeResult{}, fmt.Errorf("unknown store %q", req.Store)
	}

	category := NormalizeCategory(req.Store, req.Category)
	result := domain.ScrapeResult{Store: req.Store, Category: category}

	adapter, err := p.registry.Resolve(req.Store)
	if err != nil {
		return result, err
	}

	if !req.Force && !p.gate.ShouldScrape(ctx, req.Store, category) {
		p.logger.Debug("scrape gated", "store", req.Store, "category", category)
		result.Status = domain.StatusCached
		return result, nil
	}

	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	products, err := adapter.FetchProducts(ctx, scraper.Request{
		Category:    category,
		MaxPages:    maxPages,
		MaxProducts: req.MaxProducts,
	})
	if err != nil {
		return result, err
	}

	products = domain.ValidRecords(products)
	if len(products) == 0 {
		p.logger.Warn("no products found", "store", req.Store, "category", category)
		if err := p.gate.RecordScrape(ctx, req.Store, category, "", 0, 0); err != nil {
			p.logger.Warn("record empty scrape failed", "store", req.Store, "category", category, "error", err)
		}
		result.Status = domain.StatusEmpty
		return result, nil
	}

	previous := p.gate.LastFingerprint(ctx, req.Store, category)
	fp := fingerprint.Batch(products)

	if !req.Force && fp == previous {
		p.logger.Debug("batch unchanged", "store", req.Store, "category", category, "fingerprint", fp)
		if err := p.gate.RecordScrape(ctx, req.Store, category, fp, len(products), 0); err != nil {
			p.logger.Warn("record unchanged scrape failed", "store", req.Store, "category", category, "error", err)
		}
		result.Status = domain.StatusUnchanged
		return result, nil
	}

	changes, err := p.reconciler.Reconcile(ctx, products, req.Store, category, true)
	if err != nil {
		return result, fmt.Errorf("reconcile %s/%s: %w", req.Store, category, err)
	}

	if err := p.gate.RecordScrape(ctx, req.Store, category, fp, len(products), len(changes)); err != nil {
		p.logger.Warn("record scrape failed", "store", req.Store, "category", category, "error", err)
	}

	if p.notifier != nil && len(changes) > 0 {
		if err := p.notifier.NotifyChanges(ctx, req.Store, category, changes); err != nil {
			p.logger.Warn("notify changes failed", "store", req.Store, "error", err)
		}
	}

	p.logger.Info("scrape complete",
		"store", req.Store, "category", category,
		"products", len(products), "changes", len(changes))

	result.Status = domain.StatusChanged
	result.Products = products
	result.Changes = changes
	return result, nil
}

// Per-store canonical categories for stores whose listings have no real
// category taxonomy. Keeping one spelling per store is what makes cache-hit
// comparisons against history line up across entry points.
var defaultCategories = map[domain.Store]string{
	domain.StorePnP:        "promotions",
	domain.StoreShoprite:   "food",
	domain.StoreWoolworths: "fruit-vegetables",
}

// NormalizeCategory canonicalizes a category label: lowercased, trimmed,
// inner whitespace collapsed to hyphens. Empty labels map to the store's
// default category.
func NormalizeCategory(store domain.Store, category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return defaultCategories[store]
	}
	return strings.Join(strings.Fields(category), "-")
}
