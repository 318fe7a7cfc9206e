package processor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"logredact/internal/buffer"
	"logredact/internal/config"
	"logredact/internal/logger"
	"logredact/internal/middleware"
	"logredact/internal/storage"
	"logredact/internal/worker"
)

// pinger is implemented by stores that can check their connection
type pinger interface {
	Ping(ctx context.Context) error
}

// WorkerServer runs the worker pool plus an admin HTTP server
type WorkerServer struct {
	cfg      *config.Config
	consumer buffer.Consumer
	store    storage.Store
	pool     *worker.Pool
	admin    *http.Server
}

// NewWorkerServer wires a pool draining consumer into store
func NewWorkerServer(cfg *config.Config, consumer buffer.Consumer, store storage.Store, opts ...worker.Option) *WorkerServer {
	s := &WorkerServer{
		cfg:      cfg,
		consumer: consumer,
		store:    store,
		pool: worker.NewPool(worker.Config{
			Consumer:  consumer,
			Processor: worker.NewProcessor(store, opts...),
			Workers:   cfg.Worker.Concurrency,
			Backend:   cfg.Buffer.Backend,
		}),
	}

	if cfg.Worker.AdminAddr != "" {
		s.admin = &http.Server{
			Addr:              cfg.Worker.AdminAddr,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return s
}

// Handler returns the admin router
func (s *WorkerServer) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recovery)

	router.Get("/health", s.healthHandler)
	router.Get("/stats", s.statsHandler)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return router
}

// Run drains the buffer until ctx is cancelled. In-flight records finish
// before the consumer and store are closed.
func (s *WorkerServer) Run(ctx context.Context) error {
	log := logger.WithComponent("worker_runner")

	s.pool.Start()

	errCh := make(chan error, 1)
	if s.admin != nil {
		go func() {
			log.Info().Str("addr", s.admin.Addr).Msg("starting admin server")
			if err := s.admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("admin server error")
	}

	s.shutdown()
	return runErr
}

func (s *WorkerServer) shutdown() {
	log := logger.WithComponent("worker_runner")
	log.Info().Msg("initiating graceful shutdown")

	done := make(chan struct{})
	go func() {
		s.pool.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("workers stopped gracefully")
	case <-time.After(s.cfg.Worker.ShutdownTimeout):
		log.Warn().Msg("worker shutdown timeout - forcing exit")
	}

	if s.admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.admin.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("admin server shutdown error")
		}
	}

	if err := s.consumer.Close(); err != nil {
		log.Error().Err(err).Msg("buffer consumer close error")
	}
	if err := s.store.Close(); err != nil {
		log.Error().Err(err).Msg("store close error")
	}

	stats := s.pool.Stats()
	log.Info().
		Uint64("processed", stats.Processed).
		Uint64("failed", stats.Failed).
		Msg("worker stopped")
}

func (s *WorkerServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *WorkerServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"worker":  s.pool.Stats(),
		"buffer":  s.cfg.Buffer.Backend,
		"store":   s.cfg.Store.Backend,
		"workers": s.cfg.Worker.Concurrency,
	})
}
