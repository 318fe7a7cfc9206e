package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"logredact/internal/buffer"
	"logredact/internal/config"
	"logredact/internal/logger"
)

// reader is the subset of *kafka.Reader the consumer relies on
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads envelopes from a topic as a member of a consumer group.
//
// Offsets are committed in partition order, so at most one delivery is
// outstanding at a time: Receive blocks until the previous delivery was
// acked or released. Scale out with more partitions and processes.
// A released delivery causes the reader to be recreated from the last
// committed offset after RedeliveryDelay.
type Consumer struct {
	newReader       func() reader
	redeliveryDelay time.Duration

	mu     sync.Mutex
	rd     reader
	rewind bool
	closed bool
	done   chan struct{}

	// holds a token while a delivery is outstanding
	outstanding chan struct{}
}

// NewConsumer creates a group consumer for topic
func NewConsumer(brokers []string, groupID, topic string, cfg config.ConsumerConfig) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	if groupID == "" {
		return nil, errors.New("group id is required")
	}

	newReader := func() reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
			MaxWait:  cfg.MaxWait,
			// commits are explicit
			CommitInterval: 0,
			StartOffset:    kafka.FirstOffset,
		})
	}
	return newConsumer(newReader, cfg.RedeliveryDelay), nil
}

func newConsumer(newReader func() reader, redeliveryDelay time.Duration) *Consumer {
	return &Consumer{
		newReader:       newReader,
		redeliveryDelay: redeliveryDelay,
		rd:              newReader(),
		done:            make(chan struct{}),
		outstanding:     make(chan struct{}, 1),
	}
}

// Receive fetches the next message as a single-delivery batch
func (c *Consumer) Receive(ctx context.Context) ([]buffer.Delivery, error) {
	select {
	case c.outstanding <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	rd, err := c.current(ctx)
	if err != nil {
		<-c.outstanding
		return nil, err
	}

	msg, err := rd.FetchMessage(ctx)
	if err != nil {
		<-c.outstanding
		// a closed reader returns io.EOF
		if errors.Is(err, io.EOF) {
			return nil, buffer.ErrClosed
		}
		return nil, err
	}

	return []buffer.Delivery{&delivery{consumer: c, reader: rd, msg: msg}}, nil
}

// current returns the active reader, recreating it when a rewind is
// pending. The redelivery delay is waited out without holding the lock so
// Close is never blocked by it.
func (c *Consumer) current(ctx context.Context) (reader, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, buffer.ErrClosed
	}
	if !c.rewind {
		rd := c.rd
		c.mu.Unlock()
		return rd, nil
	}
	c.mu.Unlock()

	log := logger.WithComponent("kafka_consumer")
	log.Info().Dur("delay", c.redeliveryDelay).Msg("rewinding to last committed offset")

	if c.redeliveryDelay > 0 {
		timer := time.NewTimer(c.redeliveryDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-c.done:
			return nil, buffer.ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, buffer.ErrClosed
	}
	if c.rewind {
		if err := c.rd.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close reader before rewind")
		}
		c.rd = c.newReader()
		c.rewind = false
	}
	return c.rd, nil
}

func (c *Consumer) settle(rewind bool) {
	if rewind {
		c.mu.Lock()
		c.rewind = true
		c.mu.Unlock()
	}
	<-c.outstanding
}

// Close closes the underlying reader
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return c.rd.Close()
}

type delivery struct {
	consumer *Consumer
	reader   reader
	msg      kafka.Message
	once     sync.Once
}

func (d *delivery) ID() string {
	return fmt.Sprintf("%s/%d/%d", d.msg.Topic, d.msg.Partition, d.msg.Offset)
}

func (d *delivery) Body() []byte { return d.msg.Value }

// Ack commits the message offset
func (d *delivery) Ack(ctx context.Context) error {
	err := d.reader.CommitMessages(ctx, d.msg)
	d.once.Do(func() { d.consumer.settle(err != nil) })
	if err != nil {
		return fmt.Errorf("commit offset %d: %w", d.msg.Offset, err)
	}
	return nil
}

// Release leaves the offset uncommitted and schedules a rewind
func (d *delivery) Release(ctx context.Context) error {
	d.once.Do(func() { d.consumer.settle(true) })
	return nil
}
