package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"GroceryScanner/internal/domain"
)

func TestReconcileFirstSightingCreatesEntries(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog()
	rec := NewReconciler(catalog, nil, nil)

	batch := []domain.ProductRecord{
		{Name: "Milk 1L", Price: 20},
		{Name: "Bread", Price: 15},
	}

	changes, err := rec.Reconcile(context.Background(), batch, domain.StoreShoprite, "food", true)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("first sighting must not emit price events, got %d", len(changes))
	}
	if len(catalog.entries) != 2 {
		t.Fatalf("expected 2 catalog entries, got %d", len(catalog.entries))
	}
	for _, entry := range catalog.entries {
		if entry.ID == "" {
			t.Fatalf("catalog entry missing id")
		}
		if !entry.IsAvailable {
			t.Fatalf("new entry should be available")
		}
	}
}

func TestReconcilePriceChangeMath(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog()
	rec := NewReconciler(catalog, nil, nil)
	ctx := context.Background()

	if _, err := rec.Reconcile(ctx, []domain.ProductRecord{{Name: "Rice 2kg", Price: 100}}, domain.StorePnP, "snacks", true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	changes, err := rec.Reconcile(ctx, []domain.ProductRecord{{Name: "Rice 2kg", Price: 80}}, domain.StorePnP, "snacks", true)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}

	change := changes[0]
	if change.OldPrice != 100 || change.NewPrice != 80 {
		t.Fatalf("unexpected prices: old=%v new=%v", change.OldPrice, change.NewPrice)
	}
	if math.Abs(change.ChangePercent-(-20.0)) > 1e-9 {
		t.Fatalf("expected -20%%, got %v", change.ChangePercent)
	}
	if len(catalog.history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(catalog.history))
	}
}

func TestReconcileIdempotent(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog()
	rec := NewReconciler(catalog, nil, nil)
	ctx := context.Background()

	seed := []domain.ProductRecord{{Name: "Butter 500g", Price: 60}}
	if _, err := rec.Reconcile(ctx, seed, domain.StoreWoolworths, "dairy-eggs", true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	update := []domain.ProductRecord{{Name: "Butter 500g", Price: 55}}
	first, err := rec.Reconcile(ctx, update, domain.StoreWoolworths, "dairy-eggs", true)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := rec.Reconcile(ctx, update, domain.StoreWoolworths, "dairy-eggs", true)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}

	if len(first) != 1 {
		t.Fatalf("first pass should emit 1 event, got %d", len(first))
	}
	if len(second) != 0 {
		t.Fatalf("second identical pass should emit 0 events, got %d", len(second))
	}
}

func TestReconcileCompareFalseSkipsEvents(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog()
	clock := newManualClock(time.Date(2025, time.May, 1, 8, 0, 0, 0, time.UTC))
	rec := NewReconciler(catalog, clock.Now, nil)
	ctx := context.Background()

	if _, err := rec.Reconcile(ctx, []domain.ProductRecord{{Name: "Juice 1L", Price: 30}}, domain.StoreShoprite, "beverages", true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	clock.Advance(time.Hour)
	changes, err := rec.Reconcile(ctx, []domain.ProductRecord{{Name: "Juice 1L", Price: 25}}, domain.StoreShoprite, "beverages", false)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("compare=false must not emit events, got %d", len(changes))
	}

	for _, e := range catalog.entries {
		if e.Name != "Juice 1L" {
			continue
		}
		if e.Price != 30 {
			t.Fatalf("stored price must stay at 30 with compare=false, got %v", e.Price)
		}
		if !e.LastSeenAt.Equal(clock.Now()) {
			t.Fatalf("last seen should be refreshed")
		}
	}
}
