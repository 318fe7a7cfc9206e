package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"logredact/internal/buffer"
	"logredact/internal/logger"
	"logredact/internal/metrics"
)

// Pool runs consumer loops that drain the buffer into a Processor
type Pool struct {
	consumer     buffer.Consumer
	processor    *Processor
	workers      int
	backend      string
	errorBackoff time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	// Metrics
	processed atomic.Uint64
	failed    atomic.Uint64
}

// Config holds worker pool configuration
type Config struct {
	Consumer  buffer.Consumer
	Processor *Processor
	Workers   int
	// Backend labels metrics
	Backend string
	// Pause after a failed receive
	ErrorBackoff time.Duration
}

// NewPool creates a new worker pool
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		consumer:     cfg.Consumer,
		processor:    cfg.Processor,
		workers:      cfg.Workers,
		backend:      cfg.Backend,
		errorBackoff: cfg.ErrorBackoff,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins draining the buffer
func (p *Pool) Start() {
	log := logger.WithComponent("worker_pool")
	log.Info().
		Int("workers", p.workers).
		Str("backend", p.backend).
		Msg("starting worker pool")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop stops fetching new batches and waits for in-flight records to finish
func (p *Pool) Stop() {
	log := logger.WithComponent("worker_pool")
	log.Info().Msg("stopping worker pool")
	p.cancel()
	p.wg.Wait()
	log.Info().Msg("worker pool stopped")
}

// worker receives batches until the pool is stopped
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := logger.WithComponent("worker").With().Int("worker_id", id).Logger()
	log.Info().Msg("worker started")
	defer log.Info().Msg("worker stopped")

	for {
		batch, err := p.consumer.Receive(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil || errors.Is(err, buffer.ErrClosed) {
				return
			}

			log.Error().Err(err).Dur("backoff", p.errorBackoff).Msg("failed to receive from buffer")
			select {
			case <-time.After(p.errorBackoff):
			case <-p.ctx.Done():
				return
			}
			continue
		}

		p.handleBatch(batch)
	}
}

// handleBatch processes a batch in delivery order, settling each delivery
// as soon as its record is done. Records already started run to completion
// even when the pool is stopping.
func (p *Pool) handleBatch(batch []buffer.Delivery) {
	log := logger.WithComponent("worker")
	ctx := context.WithoutCancel(p.ctx)
	metrics.WorkerBatchSize.Observe(float64(len(batch)))

	for i, delivery := range batch {
		// deliveries not yet started go back to the buffer on shutdown
		if p.ctx.Err() != nil {
			p.release(ctx, batch[i:])
			return
		}

		res := p.processor.Process(ctx, delivery.Body())

		if res.OK() {
			p.processed.Add(1)
			if err := delivery.Ack(ctx); err != nil {
				// the record is persisted; a redelivery overwrites it
				log.Warn().
					Err(err).
					Str("delivery_id", delivery.ID()).
					Str("log_id", res.LogID).
					Msg("failed to acknowledge delivery")
			}
			metrics.BufferDeliveriesTotal.WithLabelValues(p.backend, "ack").Inc()
			continue
		}

		p.failed.Add(1)
		p.release(ctx, batch[i:i+1])
	}
}

func (p *Pool) release(ctx context.Context, deliveries []buffer.Delivery) {
	log := logger.WithComponent("worker")
	for _, d := range deliveries {
		if err := d.Release(ctx); err != nil {
			log.Warn().Err(err).Str("delivery_id", d.ID()).Msg("failed to release delivery")
		}
		metrics.BufferDeliveriesTotal.WithLabelValues(p.backend, "release").Inc()
	}
}

// Stats returns worker pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Stats holds worker pool metrics
type Stats struct {
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
}
