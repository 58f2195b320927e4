// Package api provides the HTTP REST API server for EpiCurve.
//
// It exposes the region registry, per-region analysis reports, raw and
// smoothed series, projections, outbreak news, and WebSocket streaming of
// refresh events.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/outbreaklab/epicurve/internal/analysis/project"
	"github.com/outbreaklab/epicurve/internal/config"
	"github.com/outbreaklab/epicurve/internal/datasource"
	"github.com/outbreaklab/epicurve/internal/pipeline"
	"github.com/outbreaklab/epicurve/pkg/models"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	pipe   *pipeline.Pipeline
	feed   *datasource.Client
	news   *datasource.News
	wsHub  *WSHub

	mu          sync.RWMutex
	dataset     *datasource.Dataset
	reports     map[string]*models.Report
	lastRefresh time.Time
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config) *Server {
	srv := &Server{
		cfg:     cfg,
		pipe:    pipeline.New(cfg.Analysis),
		feed:    datasource.NewClient(cfg.Data.FeedURL, time.Duration(cfg.Data.CacheTTLSec)*time.Second),
		news:    datasource.NewNews(cfg.Data.NewsFeedURL),
		wsHub:   NewWSHub(),
		reports: make(map[string]*models.Report),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// SetDataset installs a feed snapshot directly, bypassing the fetcher.
// Used when serving from a local file and by tests. Cached reports are
// dropped so the next request analyses the new data.
func (s *Server) SetDataset(ds *datasource.Dataset) {
	s.mu.Lock()
	s.dataset = ds
	s.reports = make(map[string]*models.Report)
	s.lastRefresh = time.Now().UTC()
	s.mu.Unlock()
}

// Refresh fetches the latest feed snapshot and notifies WebSocket clients.
// Reports are recomputed lazily on request; unchanged series hit the
// pipeline's fit cache.
func (s *Server) Refresh(ctx context.Context) error {
	ds, err := s.feed.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	if s.cfg.Data.PopulationURL != "" {
		if table, err := datasource.FetchPopulations(ctx, s.cfg.Data.PopulationURL); err != nil {
			log.Printf("population table unavailable: %v", err)
		} else {
			ds.ApplyPopulations(table)
		}
	}

	s.SetDataset(ds)
	s.wsHub.Broadcast(WSMessage{
		Type: "data_refreshed",
		Data: map[string]any{
			"regions":   len(ds.Regions()),
			"fetchedAt": ds.FetchedAt,
		},
	})
	return nil
}

// ListenAndServe starts the HTTP server with graceful shutdown and the
// periodic feed refresh loop.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.refreshLoop(ctx)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	return httpSrv.Shutdown(shutdownCtx)
}

// refreshLoop re-fetches the feed on the configured interval. The first
// refresh runs immediately unless a dataset was already installed.
func (s *Server) refreshLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.Data.RefreshSec) * time.Second
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	s.mu.RLock()
	loaded := s.dataset != nil
	s.mu.RUnlock()
	if !loaded {
		if err := s.Refresh(ctx); err != nil {
			log.Printf("initial refresh failed: %v", err)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				log.Printf("refresh failed: %v", err)
			}
		}
	}
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/config", s.handleGetConfig)
		r.Get("/regions", s.handleRegions)

		r.Route("/regions/{geoId}", func(r chi.Router) {
			r.Get("/report", s.handleReport)
			r.Get("/series", s.handleSeries)
			r.Get("/projection", s.handleProjection)
			r.Get("/news", s.handleNews)
		})
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SeriesResponse carries a region's raw and smoothed series for both tracks.
type SeriesResponse struct {
	GeoID          string                `json:"geoId"`
	Region         string                `json:"region"`
	Cases          models.Series         `json:"cases"`
	Deaths         models.Series         `json:"deaths"`
	SmoothedCases  models.SmoothedSeries `json:"smoothedCases"`
	SmoothedDeaths models.SmoothedSeries `json:"smoothedDeaths"`
}

// ProjectionResponse carries the projected curves for one region.
type ProjectionResponse struct {
	GeoID  string                   `json:"geoId"`
	Region string                   `json:"region"`
	Days   int                      `json:"days"`
	Cases  []models.ProjectionPoint `json:"cases,omitempty"`
	Deaths []models.ProjectionPoint `json:"deaths,omitempty"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	regions := 0
	if s.dataset != nil {
		regions = len(s.dataset.Regions())
	}
	last := s.lastRefresh
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":      "ok",
			"regions":     regions,
			"lastRefresh": last,
			"wsClients":   s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"analysis": s.cfg.Analysis,
			"data": map[string]any{
				"feed_url":    s.cfg.Data.FeedURL,
				"refresh_sec": s.cfg.Data.RefreshSec,
			},
		},
	})
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	ds, err := s.snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	var regions []datasource.RegionInfo
	if q := r.URL.Query().Get("find"); q != "" {
		regions = ds.Find(q)
	} else {
		regions = ds.Regions()
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    regions,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, status, err := s.reportFor(r.Context(), chi.URLParam(r, "geoId"))
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    report,
	})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	report, status, err := s.reportFor(r.Context(), chi.URLParam(r, "geoId"))
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: SeriesResponse{
			GeoID:          report.GeoID,
			Region:         report.Region,
			Cases:          report.Cases.Raw,
			Deaths:         report.Deaths.Raw,
			SmoothedCases:  report.Cases.Smoothed,
			SmoothedDeaths: report.Deaths.Smoothed,
		},
	})
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	report, status, err := s.reportFor(r.Context(), chi.URLParam(r, "geoId"))
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	days := s.cfg.Analysis.HorizonDays
	if dq := r.URL.Query().Get("days"); dq != "" {
		d, err := strconv.Atoi(dq)
		if err != nil || d < 0 || d > 365 {
			writeError(w, http.StatusBadRequest, "days must be an integer in 0..365")
			return
		}
		days = d
	}

	resp := ProjectionResponse{
		GeoID:  report.GeoID,
		Region: report.Region,
		Days:   days,
	}
	if m := report.Cases.Model; m != nil {
		resp.Cases = project.Project(m, report.Cases.Raw.Last(), days)
	}
	if m := report.Deaths.Model; m != nil {
		resp.Deaths = project.Project(m, report.Deaths.Raw.Last(), days)
	}
	if resp.Cases == nil && resp.Deaths == nil {
		writeError(w, http.StatusConflict, "no fitted curve for region "+report.GeoID)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    resp,
	})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	ds, err := s.snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	region, err := ds.Region(chi.URLParam(r, "geoId"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	items, err := s.news.ForRegion(ctx, region.Name, 20)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    items,
	})
}

// ============================================================
// Helpers
// ============================================================

// snapshot returns the current dataset, fetching it on first use.
func (s *Server) snapshot(ctx context.Context) (*datasource.Dataset, error) {
	s.mu.RLock()
	ds := s.dataset
	s.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}

	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset, nil
}

// reportFor returns the cached report for a region, running the pipeline on
// first request after a refresh.
func (s *Server) reportFor(ctx context.Context, geoID string) (*models.Report, int, error) {
	ds, err := s.snapshot(ctx)
	if err != nil {
		return nil, http.StatusServiceUnavailable, err
	}

	region, err := ds.Region(geoID)
	if err != nil {
		return nil, http.StatusNotFound, err
	}

	s.mu.RLock()
	report, ok := s.reports[region.GeoID]
	s.mu.RUnlock()
	if ok {
		return report, http.StatusOK, nil
	}

	report, err = s.pipe.Run(pipeline.Input{
		GeoID:      region.GeoID,
		Region:     region.Name,
		Population: region.Population,
		Cases:      region.Cases,
		Deaths:     region.Deaths,
	})
	if err != nil {
		return nil, http.StatusUnprocessableEntity, fmt.Errorf("analyse %s: %w", region.GeoID, err)
	}

	s.mu.Lock()
	s.reports[region.GeoID] = report
	s.mu.Unlock()
	return report, http.StatusOK, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// ============================================================
// WebSocket Hub
// ============================================================

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// WSHub manages WebSocket connections and message broadcasting.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// WSClient represents a single WebSocket connection.
type WSClient struct {
	hub  *WSHub
	send chan WSMessage
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the hub event loop.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client; disconnect
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, client)
					close(client.send)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a message to all connected WebSocket clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop message if broadcast channel is full
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(client *WSClient) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	h.unregister <- client
}
