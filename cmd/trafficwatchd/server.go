package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/transitops/trafficwatch/aggregator"
	"github.com/transitops/trafficwatch/config"
	"github.com/transitops/trafficwatch/scheduler"
	"github.com/transitops/trafficwatch/sources"
)

type server struct {
	httpServer  *http.Server
	agg         *aggregator.Aggregator
	sched       *scheduler.Scheduler
	manualStore *sources.ManualStore
	logger      *zap.Logger
}

func newServer(cfg config.ServerConfig, agg *aggregator.Aggregator, sched *scheduler.Scheduler, manualStore *sources.ManualStore, logger *zap.Logger) *server {
	s := &server{
		agg:         agg,
		sched:       sched,
		manualStore: manualStore,
		logger:      logger.Named("http"),
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/alerts", s.handleAlerts)
	r.Post("/api/refresh", s.handleRefresh)
	r.Post("/api/incidents", s.handleAddIncident)
	r.Delete("/api/incidents/{id}", s.handleResolveIncident)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *server) start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("server error", zap.Error(err))
		}
	}()
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
}

func (s *server) waitForShutdown() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	s.logger.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown error", zap.Error(err))
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	feed := s.agg.Latest()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"phase":       s.agg.Phase(),
		"lastUpdated": feed.Metadata.LastUpdated,
	})
}

func (s *server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agg.Latest())
}

// handleRefresh runs a cycle on demand. ?override=1 engages the emergency
// override for the duration of this cycle, bypassing windows and quotas
// but never the per-source minimum interval.
func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("override") == "1" {
		s.sched.SetOverride(true)
		defer s.sched.SetOverride(false)
	}
	feed := s.agg.RunCycle(r.Context())
	writeJSON(w, http.StatusOK, feed)
}

func (s *server) handleAddIncident(w http.ResponseWriter, r *http.Request) {
	var in sources.ManualIncident
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid incident payload"})
		return
	}
	if in.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	alert := s.manualStore.Add(r.Context(), in)
	writeJSON(w, http.StatusCreated, alert)
}

func (s *server) handleResolveIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.manualStore.Resolve(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown incident id"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
