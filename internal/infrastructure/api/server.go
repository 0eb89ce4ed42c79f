// Package api exposes the thin HTTP surface over the scrape orchestration:
// triggered scrapes, cache status, and catalog statistics.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"GroceryScanner/internal/cache"
	"GroceryScanner/internal/domain"
	"GroceryScanner/internal/ports"
	"GroceryScanner/internal/scraper"
	"GroceryScanner/internal/usecase"
)

// Server routes API requests into the pipeline and read-side repositories.
type Server struct {
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	catalog   ports.CatalogRepository
	cacheRepo ports.ScrapeCacheRepository
	clock     func() time.Time
	logger    *slog.Logger
}

// NewServer wires the handler dependencies; clock defaults to time.Now.
func NewServer(pipeline *usecase.Pipeline, scheduler *usecase.Scheduler, catalog ports.CatalogRepository, cacheRepo ports.ScrapeCacheRepository, clock func() time.Time, logger *slog.Logger) *Server {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		pipeline:  pipeline,
		scheduler: scheduler,
		catalog:   catalog,
		cacheRepo: cacheRepo,
		clock:     clock,
		logger:    logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scrape", s.handleScrape)
	mux.HandleFunc("GET /api/scrape-status", s.handleScrapeStatus)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/scheduler", s.handleScheduler)
	return mux
}

type scrapeRequest struct {
	Store       string `json:"store"`
	Category    string `json:"category"`
	MaxPages    int    `json:"max_pages"`
	MaxProducts int    `json:"max_products"`
	Force       bool   `json:"force"`
}

type scrapeResponse struct {
	Status        domain.ScrapeStatus `json:"status"`
	Store         domain.Store        `json:"store"`
	Category      string              `json:"category"`
	Cached        bool                `json:"cached"`
	ProductsCount int                 `json:"products_count"`
	PriceChanges  int                 `json:"price_changes"`
	Products      []productJSON       `json:"products,omitempty"`
	Changes       []changeJSON        `json:"changes,omitempty"`
}

type changeJSON struct {
	ProductName   string  `json:"product_name"`
	OldPrice      float64 `json:"old_price"`
	NewPrice      float64 `json:"new_price"`
	ChangePercent float64 `json:"change_percent"`
}

type productJSON struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	ExternalID string  `json:"external_id,omitempty"`
	ImageURL   string  `json:"image_url,omitempty"`
	ProductURL string  `json:"product_url,omitempty"`
	OnSpecial  bool    `json:"on_special"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Store == "" {
		s.writeError(w, http.StatusBadRequest, "store is required")
		return
	}

	result, err := s.pipeline.Run(r.Context(), usecase.ScrapeRequest{
		Store:       domain.Store(req.Store),
		Category:    req.Category,
		MaxPages:    req.MaxPages,
		MaxProducts: req.MaxProducts,
		Force:       req.Force,
	})
	if err != nil {
		var fetchErr *scraper.FetchError
		if errors.As(err, &fetchErr) {
			s.writeError(w, http.StatusBadGateway, fetchErr.Error())
			return
		}
		s.logger.Error("triggered scrape failed", "store", req.Store, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := scrapeResponse{
		Status:        result.Status,
		Store:         result.Store,
		Category:      result.Category,
		Cached:        result.Status == domain.StatusCached,
		ProductsCount: len(result.Products),
		PriceChanges:  len(result.Changes),
	}
	for _, change := range result.Changes {
		resp.Changes = append(resp.Changes, changeJSON{
			ProductName:   change.ProductName,
			OldPrice:      change.OldPrice,
			NewPrice:      change.NewPrice,
			ChangePercent: change.ChangePercent,
		})
	}
	for _, p := range result.Products {
		resp.Products = append(resp.Products, productJSON{
			Name:       p.Name,
			Price:      p.Price,
			ExternalID: p.ExternalID,
			ImageURL:   p.ImageURL,
			ProductURL: p.ProductURL,
			OnSpecial:  p.OnSpecial,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type cacheEntryJSON struct {
	Store           domain.Store `json:"store"`
	Category        string       `json:"category"`
	HourBucket      string       `json:"hour_bucket"`
	Fingerprint     string       `json:"fingerprint"`
	ProductCount    int          `json:"products_count"`
	ChangesDetected int          `json:"changes_detected"`
	ScrapedAt       time.Time    `json:"scraped_at"`
}

func (s *Server) handleScrapeStatus(w http.ResponseWriter, r *http.Request) {
	bucket := cache.HourBucket(s.clock())

	entries, err := s.cacheRepo.ListBucket(r.Context(), bucket)
	if err != nil {
		s.logger.Error("list cache bucket failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "cache lookup failed")
		return
	}

	out := make([]cacheEntryJSON, 0, len(entries))
	for _, entry := range entries {
		out = append(out, cacheEntryJSON{
			Store:           entry.Store,
			Category:        entry.Category,
			HourBucket:      entry.HourBucket,
			Fingerprint:     entry.Fingerprint,
			ProductCount:    entry.ProductCount,
			ChangesDetected: entry.ChangesDetected,
			ScrapedAt:       entry.ScrapedAt,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"current_hour":  bucket,
		"count":         len(out),
		"cache_entries": out,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.Stats(r.Context())
	if err != nil {
		s.logger.Error("catalog stats failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "stats lookup failed")
		return
	}

	scrapesThisHour := 0
	if entries, err := s.cacheRepo.ListBucket(r.Context(), cache.HourBucket(s.clock())); err == nil {
		scrapesThisHour = len(entries)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_products":           stats.TotalProducts,
		"products_by_store":        stats.ProductsByStore,
		"recent_price_changes_24h": stats.RecentPriceChanges,
		"scrapes_this_hour":        scrapesThisHour,
	})
}

type scheduleEntryJSON struct {
	Store          domain.Store `json:"store"`
	Category       string       `json:"category"`
	MaxPages       int          `json:"max_pages"`
	FrequencyHours float64      `json:"frequency_hours"`
}

func (s *Server) handleScheduler(w http.ResponseWriter, _ *http.Request) {
	status := s.scheduler.Status()

	schedule := make([]scheduleEntryJSON, 0, len(status.Schedule))
	for _, entry := range status.Schedule {
		schedule = append(schedule, scheduleEntryJSON{
			Store:          entry.Store,
			Category:       entry.Category,
			MaxPages:       entry.MaxPages,
			FrequencyHours: entry.Frequency.Hours(),
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"is_running": status.IsRunning,
		"last_run":   status.LastRun,
		"schedule":   schedule,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
