package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"logredact/internal/models"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the store
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoDB stores records in a table with partition key tenant_id and
// sort key log_id.
type DynamoDB struct {
	client DynamoDBAPI
	table  string
}

// NewDynamoDB wraps an existing client
func NewDynamoDB(client DynamoDBAPI, table string) (*DynamoDB, error) {
	if table == "" {
		return nil, errors.New("dynamodb table name is required")
	}
	return &DynamoDB{client: client, table: table}, nil
}

// NewDynamoDBFromConfig builds a client from the shared AWS configuration.
// A non-empty endpoint overrides the resolved service endpoint.
func NewDynamoDBFromConfig(awsCfg aws.Config, table, endpoint string) (*DynamoDB, error) {
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewDynamoDB(client, table)
}

// Upsert writes the record unconditionally, replacing any previous version
func (d *DynamoDB) Upsert(ctx context.Context, record *models.ProcessedRecord) error {
	start := time.Now()
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      recordToItem(record),
	})
	observeWrite("dynamodb", start, err)
	if err != nil {
		return fmt.Errorf("dynamodb put error: %w", err)
	}
	return nil
}

// Get reads one record by key
func (d *DynamoDB) Get(ctx context.Context, tenantID, logID string) (*models.ProcessedRecord, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			"tenant_id": &types.AttributeValueMemberS{Value: tenantID},
			"log_id":    &types.AttributeValueMemberS{Value: logID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get error: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return itemToRecord(out.Item)
}

func (d *DynamoDB) Close() error { return nil }

func recordToItem(r *models.ProcessedRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"tenant_id":          &types.AttributeValueMemberS{Value: r.TenantID},
		"log_id":             &types.AttributeValueMemberS{Value: r.LogID},
		"source":             &types.AttributeValueMemberS{Value: string(r.Source)},
		"original_text":      &types.AttributeValueMemberS{Value: r.Text},
		"modified_text":      &types.AttributeValueMemberS{Value: r.ModifiedText},
		"ingested_at":        &types.AttributeValueMemberS{Value: r.IngestedAt.UTC().Format(time.RFC3339Nano)},
		"processed_at":       &types.AttributeValueMemberS{Value: r.ProcessedAt.UTC().Format(time.RFC3339Nano)},
		"processing_time_ms": &types.AttributeValueMemberN{Value: strconv.FormatInt(r.ProcessingTimeMS, 10)},
	}
}

func itemToRecord(item map[string]types.AttributeValue) (*models.ProcessedRecord, error) {
	str := func(name string) string {
		if v, ok := item[name].(*types.AttributeValueMemberS); ok {
			return v.Value
		}
		return ""
	}

	r := &models.ProcessedRecord{
		TenantID:     str("tenant_id"),
		LogID:        str("log_id"),
		Source:       models.Source(str("source")),
		Text:         str("original_text"),
		ModifiedText: str("modified_text"),
	}

	var err error
	if s := str("ingested_at"); s != "" {
		if r.IngestedAt, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return nil, fmt.Errorf("ingested_at: %w", err)
		}
	}
	if s := str("processed_at"); s != "" {
		if r.ProcessedAt, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return nil, fmt.Errorf("processed_at: %w", err)
		}
	}
	if n, ok := item["processing_time_ms"].(*types.AttributeValueMemberN); ok {
		if r.ProcessingTimeMS, err = strconv.ParseInt(n.Value, 10, 64); err != nil {
			return nil, fmt.Errorf("processing_time_ms: %w", err)
		}
	}

	return r, nil
}
