package usecase

import (
	"context"
	"testing"
	"time"

	"GroceryScanner/internal/cache"
	"GroceryScanner/internal/domain"
	"GroceryScanner/internal/scraper"
)

func newTestScheduler(adapter *fakeAdapter, clock *manualClock, schedule []ScheduleEntry) *Scheduler {
	registry := scraper.NewRegistry()
	registry.Register(adapter)

	pipeline := NewPipeline(PipelineDeps{
		Registry:   registry,
		Gate:       cache.NewGate(newFakeCacheRepo(), clock.Now, nil),
		Reconciler: NewReconciler(newFakeCatalog(), clock.Now, nil),
	})

	return NewScheduler(pipeline, SchedulerConfig{
		Schedule: schedule,
		Pacing:   time.Millisecond,
	}, clock.Now, nil)
}

func TestRunCycleDispatchesDueEntries(t *testing.T) {
	t.Parallel()

	clock := newManualClock(time.Date(2025, time.June, 2, 6, 0, 0, 0, time.UTC))
	adapter := &fakeAdapter{
		store: domain.StoreShoprite,
		batch: []domain.ProductRecord{{Name: "Bread", Price: 15}},
	}
	sched := newTestScheduler(adapter, clock, []ScheduleEntry{
		{Store: domain.StoreShoprite, Category: "food", MaxPages: 2, Frequency: time.Hour},
		{Store: domain.StoreShoprite, Category: "beverages", MaxPages: 2, Frequency: 3 * time.Hour},
	})
	ctx := context.Background()

	if err := sched.RunCycle(ctx); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if adapter.fetches != 2 {
		t.Fatalf("expected both entries dispatched, fetches=%d", adapter.fetches)
	}

	status := sched.Status()
	if len(status.LastRun) != 2 {
		t.Fatalf("expected 2 last-run entries, got %d", len(status.LastRun))
	}

	// One hour later only the hourly entry is due again.
	clock.Advance(time.Hour + time.Minute)
	if err := sched.RunCycle(ctx); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if adapter.fetches != 3 {
		t.Fatalf("expected only the hourly entry re-dispatched, fetches=%d", adapter.fetches)
	}
}

func TestRunCycleContinuesPastFailingKey(t *testing.T) {
	t.Parallel()

	clock := newManualClock(time.Date(2025, time.June, 2, 6, 0, 0, 0, time.UTC))
	failing := &fakeAdapter{
		store: domain.StorePnP,
		err:   &scraper.FetchError{Store: domain.StorePnP, Category: "snacks", Err: context.DeadlineExceeded},
	}
	healthy := &fakeAdapter{
		store: domain.StoreShoprite,
		batch: []domain.ProductRecord{{Name: "Bread", Price: 15}},
	}

	registry := scraper.NewRegistry()
	registry.Register(failing)
	registry.Register(healthy)

	pipeline := NewPipeline(PipelineDeps{
		Registry:   registry,
		Gate:       cache.NewGate(newFakeCacheRepo(), clock.Now, nil),
		Reconciler: NewReconciler(newFakeCatalog(), clock.Now, nil),
	})
	sched := NewScheduler(pipeline, SchedulerConfig{
		Schedule: []ScheduleEntry{
			{Store: domain.StorePnP, Category: "snacks", MaxPages: 1, Frequency: time.Hour},
			{Store: domain.StoreShoprite, Category: "food", MaxPages: 1, Frequency: time.Hour},
		},
		Pacing: time.Millisecond,
	}, clock.Now, nil)

	if err := sched.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle should not fail on a bad key: %v", err)
	}
	if healthy.fetches != 1 {
		t.Fatalf("healthy key must still run after a failing one, fetches=%d", healthy.fetches)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	t.Parallel()

	clock := newManualClock(time.Date(2025, time.June, 2, 6, 0, 0, 0, time.UTC))
	adapter := &fakeAdapter{store: domain.StoreShoprite, batch: []domain.ProductRecord{{Name: "Bread", Price: 15}}}
	sched := newTestScheduler(adapter, clock, nil)

	if sched.Status().IsRunning {
		t.Fatalf("scheduler should start stopped")
	}

	sched.Start(context.Background())
	if !sched.Status().IsRunning {
		t.Fatalf("scheduler should report running after Start")
	}

	sched.Stop()
	if sched.Status().IsRunning {
		t.Fatalf("scheduler should report stopped after Stop")
	}
}

func TestRunCycleHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	clock := newManualClock(time.Date(2025, time.June, 2, 6, 0, 0, 0, time.UTC))
	adapter := &fakeAdapter{store: domain.StoreShoprite, batch: []domain.ProductRecord{{Name: "Bread", Price: 15}}}
	sched := newTestScheduler(adapter, clock, []ScheduleEntry{
		{Store: domain.StoreShoprite, Category: "food", MaxPages: 1, Frequency: time.Hour},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sched.RunCycle(ctx); err == nil {
		t.Fatalf("cancelled context should abort the cycle")
	}
	if adapter.fetches != 0 {
		t.Fatalf("no dispatch should happen after cancellation")
	}
}
