// Package sqsqueue implements the buffer on an Amazon SQS queue.
package sqsqueue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"logredact/internal/buffer"
	"logredact/internal/config"
	"logredact/internal/models"
)

// SQSAPI is the subset of the SQS client used by the queue
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Message attributes set on every envelope
const (
	AttrTenantID = "tenant_id"
	AttrLogID    = "log_id"
	AttrSource   = "source"
)

// NewClient builds an SQS client, optionally against a custom endpoint
func NewClient(awsCfg aws.Config, endpoint string) *sqs.Client {
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// Publisher sends envelopes to a queue
type Publisher struct {
	client   SQSAPI
	queueURL string
	closed   atomic.Bool
}

// NewPublisher creates a publisher for queueURL
func NewPublisher(client SQSAPI, queueURL string) (*Publisher, error) {
	if queueURL == "" {
		return nil, config.ErrBufferTargetMissing
	}
	return &Publisher{client: client, queueURL: queueURL}, nil
}

// Publish sends one envelope and returns once SQS accepted it
func (p *Publisher) Publish(ctx context.Context, envelope *models.Envelope) error {
	if p.closed.Load() {
		return buffer.ErrClosed
	}

	data, err := buffer.Encode(envelope)
	if err != nil {
		return err
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(data)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			AttrTenantID: stringAttr(envelope.TenantID),
			AttrLogID:    stringAttr(envelope.LogID),
			AttrSource:   stringAttr(string(envelope.Source)),
		},
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

// Close stops further publishing
func (p *Publisher) Close() error {
	p.closed.Store(true)
	return nil
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}

// Consumer long-polls a queue. Unacknowledged messages reappear after the
// visibility timeout; Release shortens it to ReleaseVisibility.
type Consumer struct {
	client   SQSAPI
	queueURL string
	cfg      config.SQSConfig
	closed   atomic.Bool
}

// NewConsumer creates a consumer for queueURL
func NewConsumer(client SQSAPI, queueURL string, cfg config.SQSConfig) (*Consumer, error) {
	if queueURL == "" {
		return nil, config.ErrBufferTargetMissing
	}
	if cfg.MaxMessages <= 0 || cfg.MaxMessages > 10 {
		cfg.MaxMessages = 10
	}
	return &Consumer{client: client, queueURL: queueURL, cfg: cfg}, nil
}

// Receive long-polls until at least one message arrives or ctx ends
func (c *Consumer) Receive(ctx context.Context) ([]buffer.Delivery, error) {
	for {
		if c.closed.Load() {
			return nil, buffer.ErrClosed
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:              aws.String(c.queueURL),
			MaxNumberOfMessages:   c.cfg.MaxMessages,
			WaitTimeSeconds:       seconds(c.cfg.WaitTime),
			VisibilityTimeout:     seconds(c.cfg.VisibilityTimeout),
			MessageAttributeNames: []string{"All"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("sqs receive message: %w", err)
		}

		if len(out.Messages) == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			continue
		}

		batch := make([]buffer.Delivery, 0, len(out.Messages))
		for _, msg := range out.Messages {
			batch = append(batch, &delivery{consumer: c, msg: msg})
		}
		return batch, nil
	}
}

// Close stops further receives
func (c *Consumer) Close() error {
	c.closed.Store(true)
	return nil
}

func seconds(d time.Duration) int32 {
	return int32(d / time.Second)
}

type delivery struct {
	consumer *Consumer
	msg      types.Message
}

func (d *delivery) ID() string { return aws.ToString(d.msg.MessageId) }

func (d *delivery) Body() []byte { return []byte(aws.ToString(d.msg.Body)) }

// Ack deletes the message from the queue
func (d *delivery) Ack(ctx context.Context) error {
	if d.msg.ReceiptHandle == nil {
		return errors.New("message has no receipt handle")
	}
	_, err := d.consumer.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(d.consumer.queueURL),
		ReceiptHandle: d.msg.ReceiptHandle,
	})
	if err != nil {
		return fmt.Errorf("sqs delete message: %w", err)
	}
	return nil
}

// Release makes the message visible again after ReleaseVisibility
func (d *delivery) Release(ctx context.Context) error {
	if d.msg.ReceiptHandle == nil {
		return errors.New("message has no receipt handle")
	}
	_, err := d.consumer.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(d.consumer.queueURL),
		ReceiptHandle:     d.msg.ReceiptHandle,
		VisibilityTimeout: seconds(d.consumer.cfg.ReleaseVisibility),
	})
	if err != nil {
		return fmt.Errorf("sqs change message visibility: %w", err)
	}
	return nil
}
