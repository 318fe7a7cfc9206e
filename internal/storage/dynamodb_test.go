package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamoDB keeps items in a map keyed like the real table
type fakeDynamoDB struct {
	mu     sync.Mutex
	items  map[string]map[string]types.AttributeValue
	puts   []*dynamodb.PutItemInput
	putErr error
}

func newFakeDynamoDB() *fakeDynamoDB {
	return &fakeDynamoDB{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(item map[string]types.AttributeValue) string {
	tenant := item["tenant_id"].(*types.AttributeValueMemberS).Value
	log := item["log_id"].(*types.AttributeValueMemberS).Value
	return tenant + "\x00" + log
}

func (f *fakeDynamoDB) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamoDB) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func TestDynamoDBStore(t *testing.T) {
	fake := newFakeDynamoDB()
	s, err := NewDynamoDB(fake, "ProcessedLogs")
	if err != nil {
		t.Fatalf("NewDynamoDB: %v", err)
	}
	exerciseStore(t, s)

	for _, in := range fake.puts {
		if *in.TableName != "ProcessedLogs" {
			t.Errorf("wrong table %q", *in.TableName)
		}
		if in.ConditionExpression != nil {
			t.Error("upsert must not be conditional")
		}
	}
}

func TestDynamoDBItemShape(t *testing.T) {
	item := recordToItem(testRecord("t1", "log-1", 250))

	want := []string{"tenant_id", "log_id", "source", "original_text", "modified_text",
		"ingested_at", "processed_at", "processing_time_ms"}
	for _, name := range want {
		if _, ok := item[name]; !ok {
			t.Errorf("missing attribute %q", name)
		}
	}
	n, ok := item["processing_time_ms"].(*types.AttributeValueMemberN)
	if !ok || n.Value != "250" {
		t.Errorf("processing_time_ms should be numeric 250, got %#v", item["processing_time_ms"])
	}
}

func TestDynamoDBPutError(t *testing.T) {
	fake := newFakeDynamoDB()
	fake.putErr = errors.New("throttled")
	s, _ := NewDynamoDB(fake, "ProcessedLogs")

	err := s.Upsert(context.Background(), testRecord("t1", "log-1", 1))
	if err == nil || !errors.Is(err, fake.putErr) {
		t.Errorf("expected wrapped put error, got %v", err)
	}
}

func TestDynamoDBRequiresTable(t *testing.T) {
	if _, err := NewDynamoDB(newFakeDynamoDB(), ""); err == nil {
		t.Error("expected error for empty table name")
	}
}
