package buffer

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"logredact/internal/models"
)

// DefaultMemoryRedeliveryDelay is how long a released message stays hidden
const DefaultMemoryRedeliveryDelay = time.Second

// Memory is an in-process queue with at-least-once semantics: released
// messages go back to the tail and become visible again after the
// redelivery delay.
type Memory struct {
	name            string
	batchSize       int
	redeliveryDelay time.Duration
	now             func() time.Time

	mu       sync.Mutex
	pending  []memoryMessage
	inFlight map[string]memoryMessage
	notify   chan struct{}
	done     chan struct{}
	closed   bool

	seq       atomic.Uint64
	published atomic.Uint64
	acked     atomic.Uint64
	released  atomic.Uint64
}

type memoryMessage struct {
	id        string
	body      []byte
	attempts  int
	visibleAt time.Time
}

// MemoryOption configures a Memory queue
type MemoryOption func(*Memory)

// WithRedeliveryDelay sets how long a released message is hidden
func WithRedeliveryDelay(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d >= 0 {
			m.redeliveryDelay = d
		}
	}
}

// NewMemory creates an in-process queue handing out at most batchSize
// messages per Receive.
func NewMemory(name string, batchSize int, opts ...MemoryOption) *Memory {
	if batchSize <= 0 {
		batchSize = 10
	}
	m := &Memory{
		name:            name,
		batchSize:       batchSize,
		redeliveryDelay: DefaultMemoryRedeliveryDelay,
		now:             time.Now,
		inFlight:        make(map[string]memoryMessage),
		notify:          make(chan struct{}, 1),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Publish serializes the envelope and appends it to the queue
func (m *Memory) Publish(ctx context.Context, envelope *models.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(envelope)
	if err != nil {
		return err
	}
	return m.PublishRaw(data)
}

// PublishRaw appends an opaque payload, bypassing serialization
func (m *Memory) PublishRaw(body []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	id := m.name + "-" + strconv.FormatUint(m.seq.Add(1), 10)
	m.pending = append(m.pending, memoryMessage{id: id, body: body})
	m.mu.Unlock()

	m.published.Add(1)
	m.signal()
	return nil
}

// Receive returns up to batchSize visible messages, blocking while none
// are available.
func (m *Memory) Receive(ctx context.Context) ([]Delivery, error) {
	for {
		err := ctx.Err()
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		batch, wait := m.take()
		more := len(batch) == m.batchSize && len(m.pending) > 0
		m.mu.Unlock()

		if len(batch) > 0 {
			if more {
				m.signal()
			}
			return batch, nil
		}

		var timer *time.Timer
		var visible <-chan time.Time
		if wait > 0 {
			timer = time.NewTimer(wait)
			visible = timer.C
		}

		select {
		case <-m.notify:
		case <-visible:
		case <-m.done:
			err = ErrClosed
		case <-ctx.Done():
			err = ctx.Err()
		}
		if timer != nil {
			timer.Stop()
		}
		if err != nil {
			return nil, err
		}
	}
}

// take moves up to batchSize visible messages in flight. When nothing is
// visible it returns how long until the next hidden message appears, zero
// if the queue is empty. Callers hold m.mu.
func (m *Memory) take() ([]Delivery, time.Duration) {
	if len(m.pending) == 0 {
		return nil, 0
	}

	now := m.now()
	var batch []Delivery
	var wait time.Duration
	kept := m.pending[:0:0]
	for _, msg := range m.pending {
		if len(batch) < m.batchSize && !msg.visibleAt.After(now) {
			msg.attempts++
			m.inFlight[msg.id] = msg
			batch = append(batch, &memoryDelivery{queue: m, msg: msg})
			continue
		}
		if d := msg.visibleAt.Sub(now); d > 0 && (wait == 0 || d < wait) {
			wait = d
		}
		kept = append(kept, msg)
	}
	m.pending = kept
	return batch, wait
}

// Len returns the number of messages waiting for delivery
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// InFlight returns the number of delivered but unsettled messages
func (m *Memory) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inFlight)
}

// Stats returns queue counters
func (m *Memory) Stats() MemoryStats {
	return MemoryStats{
		Published: m.published.Load(),
		Acked:     m.acked.Load(),
		Released:  m.released.Load(),
	}
}

// MemoryStats holds queue counters
type MemoryStats struct {
	Published uint64 `json:"published"`
	Acked     uint64 `json:"acked"`
	Released  uint64 `json:"released"`
}

// Close stops the queue; blocked receivers return ErrClosed
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (m *Memory) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Memory) settle(id string, requeue bool) error {
	m.mu.Lock()
	msg, ok := m.inFlight[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.inFlight, id)
	if requeue && !m.closed {
		msg.visibleAt = m.now().Add(m.redeliveryDelay)
		m.pending = append(m.pending, msg)
	}
	m.mu.Unlock()

	if requeue {
		m.released.Add(1)
		m.signal()
	} else {
		m.acked.Add(1)
	}
	return nil
}

type memoryDelivery struct {
	queue *Memory
	msg   memoryMessage
}

func (d *memoryDelivery) ID() string   { return d.msg.id }
func (d *memoryDelivery) Body() []byte { return d.msg.body }

// Attempts returns how many times the message has been delivered
func (d *memoryDelivery) Attempts() int { return d.msg.attempts }

func (d *memoryDelivery) Ack(ctx context.Context) error {
	return d.queue.settle(d.msg.id, false)
}

func (d *memoryDelivery) Release(ctx context.Context) error {
	return d.queue.settle(d.msg.id, true)
}
