package normalizer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"logredact/internal/buffer"
	"logredact/internal/logger"
	"logredact/internal/metrics"
	"logredact/internal/models"
)

// Service is the acceptance boundary: normalize, then buffer.
type Service struct {
	normalizer *Normalizer
	publisher  buffer.Publisher
	backend    string

	accepted atomic.Uint64
	rejected atomic.Uint64
	failed   atomic.Uint64
}

// Stats counts submissions by outcome
type Stats struct {
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
	Failed   uint64 `json:"failed"`
}

// NewService creates the acceptance service. A nil publisher means no
// buffer target is configured and every request fails with
// ErrConfigurationMissing.
func NewService(normalizer *Normalizer, publisher buffer.Publisher, backend string) *Service {
	if normalizer == nil {
		normalizer = New()
	}
	return &Service{
		normalizer: normalizer,
		publisher:  publisher,
		backend:    backend,
	}
}

// Accept normalizes the request and appends exactly one envelope to the
// buffer. It returns as soon as the buffer write succeeds.
func (s *Service) Accept(ctx context.Context, req Request) (*models.AcceptResponse, error) {
	log := logger.WithComponent("normalizer")

	if s.publisher == nil {
		log.Error().Msg("rejecting submission: buffer target is not configured")
		metrics.IngestTotal.WithLabelValues("unknown", "failed").Inc()
		s.failed.Add(1)
		return nil, ErrConfigurationMissing
	}

	env, err := s.normalizer.Normalize(req)
	if err != nil {
		log.Debug().Err(err).Str("content_type", req.DeclaredContentType()).Msg("submission rejected")
		metrics.IngestRejections.WithLabelValues(Reason(err)).Inc()
		metrics.IngestTotal.WithLabelValues("unknown", "rejected").Inc()
		s.rejected.Add(1)
		return nil, err
	}

	start := time.Now()
	err = s.publisher.Publish(ctx, env)
	duration := time.Since(start)
	metrics.BufferPublishDuration.WithLabelValues(s.backend).Observe(duration.Seconds())

	if err != nil {
		log.Error().
			Err(err).
			Str("tenant_id", env.TenantID).
			Str("log_id", env.LogID).
			Dur("duration", duration).
			Msg("failed to buffer envelope")
		metrics.BufferPublishTotal.WithLabelValues(s.backend, "failed").Inc()
		metrics.IngestTotal.WithLabelValues(string(env.Source), "failed").Inc()
		s.failed.Add(1)
		return nil, fmt.Errorf("%w: %v", ErrBufferWrite, err)
	}

	metrics.BufferPublishTotal.WithLabelValues(s.backend, "success").Inc()
	metrics.IngestTotal.WithLabelValues(string(env.Source), "accepted").Inc()
	s.accepted.Add(1)
	log.Debug().
		Str("tenant_id", env.TenantID).
		Str("log_id", env.LogID).
		Str("source", string(env.Source)).
		Msg("envelope buffered")

	return &models.AcceptResponse{Message: MessageAccepted, LogID: env.LogID}, nil
}

// Configured reports whether a buffer publisher is available
func (s *Service) Configured() bool {
	return s.publisher != nil
}

// Stats returns submission counters
func (s *Service) Stats() Stats {
	return Stats{
		Accepted: s.accepted.Load(),
		Rejected: s.rejected.Load(),
		Failed:   s.failed.Load(),
	}
}
