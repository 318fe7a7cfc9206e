package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"logredact/internal/logger"
	"logredact/internal/metrics"
	"logredact/internal/models"
	"logredact/internal/redact"
	"logredact/internal/schedule"
	"logredact/internal/storage"
)

// State is a step of the per-record state machine
type State int

const (
	StateReceived State = iota
	StateParsing
	StateDelaying
	StatePersisting
	StateAcknowledged
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateParsing:
		return "parsing"
	case StateDelaying:
		return "delaying"
	case StatePersisting:
		return "persisting"
	case StateAcknowledged:
		return "acknowledged"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrMalformedPayload is returned for deliveries that are not a valid envelope
var ErrMalformedPayload = errors.New("malformed payload")

// Result is the outcome of processing one delivered payload
type Result struct {
	TenantID string
	LogID    string

	// StateAcknowledged on success
	State State
	// State in which the failure happened, only set when State is StateFailed
	FailedIn State

	// Delay applied, zero if Delaying was not reached
	Delay time.Duration
	// Sensitive matches replaced in the persisted record
	Redactions int
	Err        error
}

// OK reports whether the record was persisted and may be acknowledged
func (r Result) OK() bool {
	return r.State == StateAcknowledged && r.Err == nil
}

// Processor runs the state machine for one record at a time. It never
// retries; failures are returned so the delivery integration can let the
// buffer redeliver.
type Processor struct {
	store storage.Store
	sleep schedule.Sleeper
	now   func() time.Time
}

// Option configures a Processor
type Option func(*Processor)

// WithSleeper replaces the delay implementation
func WithSleeper(fn schedule.Sleeper) Option {
	return func(p *Processor) { p.sleep = fn }
}

// WithClock replaces the processed_at clock
func WithClock(fn func() time.Time) Option {
	return func(p *Processor) { p.now = fn }
}

// NewProcessor creates a processor writing to store
func NewProcessor(store storage.Store, opts ...Option) *Processor {
	p := &Processor{
		store: store,
		sleep: schedule.Sleep,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process parses, delays, redacts and persists one payload
func (p *Processor) Process(ctx context.Context, payload []byte) (res Result) {
	state := StateReceived
	log := logger.WithComponent("worker")

	fail := func(err error) Result {
		res.State = StateFailed
		res.FailedIn = state
		res.Err = fmt.Errorf("%s: %w", state, err)
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("tenant_id", res.TenantID).
				Str("log_id", res.LogID).
				Msg("record panic recovered")
			metrics.PanicsRecovered.WithLabelValues("worker").Inc()
			res = fail(fmt.Errorf("panic: %v", r))
		}
		p.observe(res)
	}()

	metrics.WorkerInFlight.Inc()
	defer metrics.WorkerInFlight.Dec()

	// Parsing
	state = StateParsing
	var env models.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrMalformedPayload, err))
	}
	res.TenantID, res.LogID = env.TenantID, env.LogID
	if err := env.Validate(); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrMalformedPayload, err))
	}

	log = logger.WithRecord("worker", env.TenantID, env.LogID)
	log.Info().Str("source", string(env.Source)).Msg("processing log")

	// Delaying
	state = StateDelaying
	delay := schedule.Delay(env.Text)
	log.Debug().Dur("delay", delay).Msg("applying processing delay")
	if err := p.sleep(ctx, delay); err != nil {
		return fail(err)
	}
	res.Delay = delay

	// Persisting
	state = StatePersisting
	record := models.NewProcessedRecord(&env, redact.Text(env.Text), delay, p.now())
	if err := p.store.Upsert(ctx, record); err != nil {
		return fail(err)
	}

	res.State = StateAcknowledged
	res.Redactions = redact.Count(env.Text)
	log.Info().
		Int64("processing_time_ms", record.ProcessingTimeMS).
		Int("redactions", res.Redactions).
		Msg("successfully processed")
	return res
}

// ProcessBatch handles payloads sequentially in delivery order. Every
// payload gets its own result; one failure does not stop the rest.
func (p *Processor) ProcessBatch(ctx context.Context, payloads [][]byte) []Result {
	metrics.WorkerBatchSize.Observe(float64(len(payloads)))

	results := make([]Result, len(payloads))
	for i, payload := range payloads {
		results[i] = p.Process(ctx, payload)
	}
	return results
}

func (p *Processor) observe(res Result) {
	if res.OK() {
		metrics.WorkerRecordsTotal.WithLabelValues("success", res.State.String()).Inc()
		metrics.WorkerAppliedDelay.Observe(res.Delay.Seconds())
		metrics.WorkerRedactions.Add(float64(res.Redactions))
		return
	}

	metrics.WorkerRecordsTotal.WithLabelValues("failed", res.FailedIn.String()).Inc()
	log := logger.WithRecord("worker", res.TenantID, res.LogID)
	log.Error().
		Err(res.Err).
		Str("state", res.FailedIn.String()).
		Msg("worker error")
}
