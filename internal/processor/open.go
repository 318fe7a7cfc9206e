// Package processor assembles the ingest server and the worker runner from
// configuration and runs them until shutdown.
package processor

import (
	"context"
	"fmt"
	"sync"

	"logredact/internal/buffer"
	"logredact/internal/config"
	"logredact/internal/kafka"
	"logredact/internal/sqsqueue"
)

// memory queues are shared by name so an ingest server and a worker in the
// same process see the same buffer
var (
	memoryMu     sync.Mutex
	memoryQueues = map[string]*buffer.Memory{}
)

func memoryQueue(cfg *config.Config) *buffer.Memory {
	name := cfg.Buffer.Target

	memoryMu.Lock()
	defer memoryMu.Unlock()

	if q, ok := memoryQueues[name]; ok {
		return q
	}
	q := buffer.NewMemory(name, int(cfg.Buffer.SQS.MaxMessages),
		buffer.WithRedeliveryDelay(cfg.Buffer.Memory.RedeliveryDelay))
	memoryQueues[name] = q
	return q
}

// OpenPublisher constructs the buffer publisher selected by the
// configuration. It returns config.ErrBufferTargetMissing when no target
// is set.
func OpenPublisher(ctx context.Context, cfg *config.Config) (buffer.Publisher, error) {
	if err := cfg.RequireBuffer(); err != nil {
		return nil, err
	}

	switch cfg.Buffer.Backend {
	case config.BufferKafka:
		return kafka.NewProducer(cfg.Buffer.Kafka.Brokers, cfg.Buffer.Target, cfg.Buffer.Kafka.Producer)
	case config.BufferSQS:
		awsCfg, err := cfg.LoadAWS(ctx)
		if err != nil {
			return nil, err
		}
		return sqsqueue.NewPublisher(sqsqueue.NewClient(awsCfg, cfg.AWS.Endpoint), cfg.Buffer.Target)
	case config.BufferMemory:
		return memoryQueue(cfg), nil
	default:
		return nil, fmt.Errorf("unknown buffer backend %q", cfg.Buffer.Backend)
	}
}

// OpenConsumer constructs the buffer consumer selected by the configuration
func OpenConsumer(ctx context.Context, cfg *config.Config) (buffer.Consumer, error) {
	if err := cfg.RequireBuffer(); err != nil {
		return nil, err
	}

	switch cfg.Buffer.Backend {
	case config.BufferKafka:
		return kafka.NewConsumer(cfg.Buffer.Kafka.Brokers, cfg.Buffer.Kafka.GroupID, cfg.Buffer.Target, cfg.Buffer.Kafka.Consumer)
	case config.BufferSQS:
		awsCfg, err := cfg.LoadAWS(ctx)
		if err != nil {
			return nil, err
		}
		return sqsqueue.NewConsumer(sqsqueue.NewClient(awsCfg, cfg.AWS.Endpoint), cfg.Buffer.Target, cfg.Buffer.SQS)
	case config.BufferMemory:
		return memoryQueue(cfg), nil
	default:
		return nil, fmt.Errorf("unknown buffer backend %q", cfg.Buffer.Backend)
	}
}
