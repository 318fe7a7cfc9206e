// Package buffer defines the durable queue contract between the ingest
// boundary and the workers, plus an in-process implementation.
package buffer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"logredact/internal/models"
)

// Buffer errors
var (
	ErrClosed          = errors.New("buffer is closed")
	ErrSerializeFailed = errors.New("failed to serialize envelope")
)

// Publisher appends envelopes to the buffer
type Publisher interface {
	Publish(ctx context.Context, envelope *models.Envelope) error
	Close() error
}

// Delivery is one message handed to a consumer. Exactly one of Ack or
// Release should be called once the message has been handled.
type Delivery interface {
	// ID identifies the delivery for logging
	ID() string
	// Body is the raw payload as written by the publisher
	Body() []byte
	// Ack marks the message processed so it is not redelivered
	Ack(ctx context.Context) error
	// Release hands the message back to the buffer for redelivery
	Release(ctx context.Context) error
}

// Consumer pulls batches of deliveries from the buffer
type Consumer interface {
	// Receive blocks until at least one delivery is available or ctx ends
	Receive(ctx context.Context) ([]Delivery, error)
	Close() error
}

// Encode serializes an envelope into its wire form
func Encode(envelope *models.Envelope) ([]byte, error) {
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}
	return data, nil
}
