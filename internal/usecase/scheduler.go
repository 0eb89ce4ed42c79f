package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"GroceryScanner/internal/domain"
)

// ScheduleEntry declares one recurring (store, category) scrape.
type ScheduleEntry struct {
	Store     domain.Store
	Category  string
	MaxPages  int
	Frequency time.Duration
}

// SchedulerConfig tunes the cyclic scraper loop.
type SchedulerConfig struct {
	Schedule      []ScheduleEntry
	Pacing        time.Duration // delay between dispatches within one cycle
	CycleInterval time.Duration // sleep between full cycles
	ErrorBackoff  time.Duration // sleep after a cycle-level failure
}

// SchedulerStatus is the read-only introspection snapshot.
type SchedulerStatus struct {
	IsRunning bool
	LastRun   map[string]time.Time
	Schedule  []ScheduleEntry
}

// Scheduler drives the recurring scrape cycle over a declarative schedule,
// tracking last-run times per key so each entry honors its own frequency.
// It shares the pipeline (and therefore the cache gate) with triggered-mode
// callers; nothing here assumes exclusive access to any key.
type Scheduler struct {
	pipeline *Pipeline
	cfg      SchedulerConfig
	clock    func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	lastRun map[string]time.Time
	running bool
	stop    chan struct{}
}

// NewScheduler builds a stopped scheduler; clock defaults to time.Now.
func NewScheduler(pipeline *Pipeline, cfg SchedulerConfig, clock func() time.Time, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pacing <= 0 {
		cfg.Pacing = 30 * time.Second
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = time.Hour
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Minute
	}
	return &Scheduler{
		pipeline: pipeline,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
		lastRun:  map[string]time.Time{},
	}
}

// Start launches the background loop. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	go s.loop(ctx, stop)
}

// Stop signals the loop to exit. The signal takes effect between dispatches;
// an in-flight fetch is allowed to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stop)
	s.running = false
}

// Status reports the running flag, per-key last runs, and the schedule.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := make(map[string]time.Time, len(s.lastRun))
	for k, v := range s.lastRun {
		last[k] = v
	}
	return SchedulerStatus{
		IsRunning: s.running,
		LastRun:   last,
		Schedule:  append([]ScheduleEntry(nil), s.cfg.Schedule...),
	}
}

func (s *Scheduler) loop(ctx context.Context, stop chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("scheduler started", "entries", len(s.cfg.Schedule))

	for {
		wait := s.cfg.CycleInterval
		if err := s.RunCycle(ctx); err != nil {
			s.logger.Error("scrape cycle failed", "error", err)
			wait = s.cfg.ErrorBackoff
		}

		select {
		case <-time.After(wait):
		case <-stop:
			s.logger.Info("scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			return
		}
	}
}

// RunCycle performs one pass over the schedule table, dispatching every entry
// that is due. A failing key is logged and skipped; one bad source must not
// halt unrelated scrapes. Safe to call repeatedly.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	s.logger.Info("starting scrape cycle")

	for _, entry := range s.cfg.Schedule {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if s.stopRequested() {
			return nil
		}

		key := scheduleKey(entry.Store, entry.Category)
		if !s.due(key, entry.Frequency) {
			s.logger.Debug("skipping, not due yet", "store", entry.Store, "category", entry.Category)
			continue
		}

		result, err := s.pipeline.Run(ctx, ScrapeRequest{
			Store:    entry.Store,
			Category: entry.Category,
			MaxPages: entry.MaxPages,
		})
		if err != nil {
			s.logger.Error("scheduled scrape failed",
				"store", entry.Store, "category", entry.Category, "error", err)
		} else {
			s.logger.Info("scheduled scrape done",
				"store", entry.Store, "category", entry.Category,
				"status", result.Status, "changes", len(result.Changes))
		}

		s.mu.Lock()
		s.lastRun[key] = s.clock()
		s.mu.Unlock()

		// Pacing between dispatches keeps the load on upstream sites low.
		select {
		case <-time.After(s.cfg.Pacing):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (s *Scheduler) due(key string, frequency time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.lastRun[key]
	if !ok {
		return true
	}
	return s.clock().Sub(last) >= frequency
}

func (s *Scheduler) stopRequested() bool {
	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()

	if stop == nil {
		return false
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func scheduleKey(store domain.Store, category string) string {
	return fmt.Sprintf("%s_%s", store, category)
}
