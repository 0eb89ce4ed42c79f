package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"GroceryScanner/internal/domain"
	"GroceryScanner/internal/fingerprint"
	"GroceryScanner/internal/ports"
)

// Reconciler folds a freshly scraped batch into the catalog and emits one
// event per genuine price movement. It never decides whether to run; that is
// the gate's job. Repeated calls with the identical batch are idempotent:
// the second pass observes the already-updated prices and emits nothing.
type Reconciler struct {
	catalog ports.CatalogRepository
	clock   func() time.Time
	logger  *slog.Logger
}

// NewReconciler wires the catalog repository; clock defaults to time.Now.
func NewReconciler(catalog ports.CatalogRepository, clock func() time.Time, logger *slog.Logger) *Reconciler {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{catalog: catalog, clock: clock, logger: logger}
}

// Reconcile upserts each record and returns the detected price changes.
// With compare false the pass only refreshes last-seen state.
func (r *Reconciler) Reconcile(ctx context.Context, products []domain.ProductRecord, store domain.Store, category string, compare bool) ([]domain.PriceChangeEvent, error) {
	now := r.clock()
	var changes []domain.PriceChangeEvent

	for _, product := range products {
		key := fingerprint.ProductKey(store, product.ExternalID, product.Name)

		existing, err := r.catalog.GetEntry(ctx, store, key)
		if err != nil {
			return changes, fmt.Errorf("lookup %s/%s: %w", store, key, err)
		}

		if existing == nil {
			entry := domain.CatalogEntry{
				ID:          uuid.NewString(),
				Store:       store,
				ProductKey:  key,
				Category:    category,
				Name:        product.Name,
				Price:       product.Price,
				ImageURL:    product.ImageURL,
				ProductURL:  product.ProductURL,
				IsAvailable: true,
				FirstSeenAt: now,
				LastSeenAt:  now,
			}
			if err := r.catalog.InsertEntry(ctx, entry); err != nil {
				return changes, fmt.Errorf("insert %s/%s: %w", store, key, err)
			}
			continue
		}

		updated := *existing
		updated.LastSeenAt = now
		updated.IsAvailable = true

		// Exact inequality, no tolerance band. Inherited behavior: rounding
		// drift in a source feed will surface as a change event.
		if compare && product.Price != existing.Price {
			event := domain.PriceChangeEvent{
				EntryID:       existing.ID,
				Store:         store,
				ProductName:   product.Name,
				OldPrice:      existing.Price,
				NewPrice:      product.Price,
				ChangePercent: domain.ChangePercent(existing.Price, product.Price),
				ChangedAt:     now,
			}
			if err := r.catalog.InsertPriceHistory(ctx, event); err != nil {
				return changes, fmt.Errorf("insert history %s/%s: %w", store, key, err)
			}
			changes = append(changes, event)

			updated.Name = product.Name
			updated.Price = product.Price
			if product.ImageURL != "" {
				updated.ImageURL = product.ImageURL
			}
			if product.ProductURL != "" {
				updated.ProductURL = product.ProductURL
			}
		}

		if err := r.catalog.UpdateEntry(ctx, updated); err != nil {
			return changes, fmt.Errorf("update %s/%s: %w", store, key, err)
		}
	}

	return changes, nil
}
