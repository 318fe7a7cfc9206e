package processor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"logredact/internal/buffer"
	"logredact/internal/config"
	"logredact/internal/handlers"
	"logredact/internal/kafka"
	"logredact/internal/logger"
	"logredact/internal/middleware"
	"logredact/internal/normalizer"
)

// IngestServer serves the HTTP acceptance boundary
type IngestServer struct {
	cfg        *config.Config
	publisher  buffer.Publisher
	service    *normalizer.Service
	httpServer *http.Server
	started    time.Time
}

// NewIngestServer wires the acceptance service to publisher. A nil
// publisher keeps the server up but fails every submission with 500.
func NewIngestServer(cfg *config.Config, publisher buffer.Publisher) *IngestServer {
	s := &IngestServer{
		cfg:       cfg,
		publisher: publisher,
		service:   normalizer.NewService(normalizer.New(), publisher, cfg.Buffer.Backend),
		started:   time.Now(),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Ingest.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.Ingest.ReadTimeout,
		WriteTimeout: cfg.Ingest.WriteTimeout,
		IdleTimeout:  cfg.Ingest.IdleTimeout,
	}
	return s
}

// Handler returns the router with every ingest endpoint
func (s *IngestServer) Handler() http.Handler {
	router := chi.NewRouter()

	router.Method(http.MethodPost, "/ingest", handlers.NewIngestHandler(handlers.IngestConfig{
		Service:     s.service,
		MaxBodySize: s.cfg.Ingest.MaxBodySize,
	}))
	router.Get("/health", s.healthHandler)
	router.Get("/stats", s.statsHandler)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return middleware.Chain(router, middleware.Recovery, middleware.Logging)
}

// Run serves until ctx is cancelled, then drains requests and closes the
// publisher.
func (s *IngestServer) Run(ctx context.Context) error {
	log := logger.WithComponent("ingest")

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", s.httpServer.Addr).
			Str("buffer", s.cfg.Buffer.Backend).
			Bool("buffer_configured", s.service.Configured()).
			Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server error")
			s.closePublisher()
			return err
		}
	}

	return s.shutdown()
}

func (s *IngestServer) shutdown() error {
	log := logger.WithComponent("ingest")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Ingest.ShutdownTimeout)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	err := s.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	s.closePublisher()
	log.Info().Msg("ingest server stopped")
	return err
}

func (s *IngestServer) closePublisher() {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Close(); err != nil {
		log := logger.WithComponent("ingest")
		log.Error().Err(err).Msg("buffer publisher close error")
	}
}

// healthHandler reports 503 while no buffer target is configured
func (s *IngestServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if !s.service.Configured() {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["error"] = config.ErrBufferTargetMissing.Error()
	}
	writeJSON(w, status, body)
}

func (s *IngestServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"ingest":         s.service.Stats(),
	}

	switch p := s.publisher.(type) {
	case *kafka.Producer:
		stats["producer"] = p.Stats()
	case *buffer.Memory:
		stats["buffer"] = map[string]any{
			"pending":   p.Len(),
			"in_flight": p.InFlight(),
			"counters":  p.Stats(),
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
