package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"gopkg.in/yaml.v3"
)

// Buffer backends
const (
	BufferKafka  = "kafka"
	BufferSQS    = "sqs"
	BufferMemory = "memory"
)

// Store backends
const (
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Configuration errors
var (
	ErrBufferTargetMissing = errors.New("buffer target is not configured")
	ErrStoreTargetMissing  = errors.New("store target is not configured")
)

// Config holds runtime configuration for the ingest server and the worker.
type Config struct {
	LogLevel string       `yaml:"log_level"`
	Ingest   IngestConfig `yaml:"ingest"`
	Worker   WorkerConfig `yaml:"worker"`
	Buffer   BufferConfig `yaml:"buffer"`
	Store    StoreConfig  `yaml:"store"`
	AWS      AWSConfig    `yaml:"aws"`
}

// IngestConfig configures the HTTP acceptance boundary.
type IngestConfig struct {
	Addr            string        `yaml:"addr"`
	NodeID          string        `yaml:"node_id"`
	MaxBodySize     int64         `yaml:"max_body_size"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// WorkerConfig configures the consumer side.
type WorkerConfig struct {
	// Number of concurrent consumer loops
	Concurrency int `yaml:"concurrency"`
	// Address of the health/metrics server, empty disables it
	AdminAddr       string        `yaml:"admin_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// BufferConfig selects and configures the durable queue.
type BufferConfig struct {
	Backend string `yaml:"backend"`
	// Topic for kafka, queue URL for sqs, queue name for memory
	Target string       `yaml:"target"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	SQS    SQSConfig    `yaml:"sqs"`
	Memory MemoryConfig `yaml:"memory"`
}

// MemoryConfig tunes the in-process queue.
type MemoryConfig struct {
	// How long a released message stays hidden before redelivery
	RedeliveryDelay time.Duration `yaml:"redelivery_delay"`
}

// KafkaConfig holds kafka connection settings.
type KafkaConfig struct {
	Brokers  []string       `yaml:"brokers"`
	GroupID  string         `yaml:"group_id"`
	Producer ProducerConfig `yaml:"producer"`
	Consumer ConsumerConfig `yaml:"consumer"`
}

// ProducerConfig tunes the kafka writers.
type ProducerConfig struct {
	PoolSize     int           `yaml:"pool_size"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RequiredAcks int           `yaml:"required_acks"`
	Compression  string        `yaml:"compression"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// ConsumerConfig tunes the kafka reader.
type ConsumerConfig struct {
	MinBytes int           `yaml:"min_bytes"`
	MaxBytes int           `yaml:"max_bytes"`
	MaxWait  time.Duration `yaml:"max_wait"`
	// Pause before re-reading from the last committed offset after a failure
	RedeliveryDelay time.Duration `yaml:"redelivery_delay"`
}

// SQSConfig tunes the SQS poller.
type SQSConfig struct {
	MaxMessages       int32         `yaml:"max_messages"`
	WaitTime          time.Duration `yaml:"wait_time"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	// Visibility applied to a released message, zero makes it visible at once
	ReleaseVisibility time.Duration `yaml:"release_visibility"`
}

// StoreConfig selects and configures the processed record store.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	// Table name for dynamodb, DSN for postgres, file path for sqlite
	Target   string         `yaml:"target"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig tunes the pgx pool.
type PostgresConfig struct {
	MaxConns int32 `yaml:"max_conns"`
	Migrate  bool  `yaml:"migrate"`
}

// SQLiteConfig tunes the sqlite database.
type SQLiteConfig struct {
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// AWSConfig overrides the default AWS client resolution.
type AWSConfig struct {
	Region string `yaml:"region"`
	// Endpoint points the SDK at a local emulator
	Endpoint string `yaml:"endpoint"`
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Ingest: IngestConfig{
			Addr:            ":8080",
			MaxBodySize:     10 * 1024 * 1024,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Worker: WorkerConfig{
			Concurrency:     4,
			AdminAddr:       ":8081",
			ShutdownTimeout: 15 * time.Second,
		},
		Buffer: BufferConfig{
			Backend: BufferKafka,
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "logredact-worker",
				Producer: ProducerConfig{
					PoolSize:     4,
					BatchSize:    1,
					BatchTimeout: 10 * time.Millisecond,
					WriteTimeout: 10 * time.Second,
					RequiredAcks: -1,
					Compression:  "snappy",
					MaxRetries:   3,
					RetryBackoff: 100 * time.Millisecond,
				},
				Consumer: ConsumerConfig{
					MinBytes:        1,
					MaxBytes:        10 * 1024 * 1024,
					MaxWait:         500 * time.Millisecond,
					RedeliveryDelay: 5 * time.Second,
				},
			},
			SQS: SQSConfig{
				MaxMessages:       10,
				WaitTime:          20 * time.Second,
				VisibilityTimeout: 60 * time.Second,
			},
			Memory: MemoryConfig{
				RedeliveryDelay: time.Second,
			},
		},
		Store: StoreConfig{
			Backend: StoreDynamoDB,
			Target:  "ProcessedLogs",
			Postgres: PostgresConfig{
				MaxConns: 10,
				Migrate:  true,
			},
			SQLite: SQLiteConfig{
				BusyTimeout: 5 * time.Second,
			},
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies LOGREDACT_* variables and the deployment
// variable names used by the Lambda functions.
func applyEnvOverrides(cfg *Config) error {
	setString := func(dst *string, keys ...string) {
		for _, key := range keys {
			if val := os.Getenv(key); val != "" {
				*dst = val
				return
			}
		}
	}

	setString(&cfg.LogLevel, "LOGREDACT_LOG_LEVEL")
	setString(&cfg.Ingest.Addr, "LOGREDACT_INGEST_ADDR")
	setString(&cfg.Ingest.NodeID, "LOGREDACT_INGEST_NODE_ID")
	setString(&cfg.Worker.AdminAddr, "LOGREDACT_WORKER_ADMIN_ADDR")
	setString(&cfg.Buffer.Backend, "LOGREDACT_BUFFER_BACKEND")
	setString(&cfg.Buffer.Target, "LOGREDACT_BUFFER_TARGET", "QUEUE_URL", "SQS_QUEUE_URL")
	setString(&cfg.Buffer.Kafka.GroupID, "LOGREDACT_KAFKA_GROUP_ID")
	setString(&cfg.Store.Backend, "LOGREDACT_STORE_BACKEND")
	setString(&cfg.Store.Target, "LOGREDACT_STORE_TARGET", "TABLE_NAME", "DYNAMODB_TABLE_NAME")
	setString(&cfg.AWS.Region, "LOGREDACT_AWS_REGION")
	setString(&cfg.AWS.Endpoint, "LOGREDACT_AWS_ENDPOINT")

	if val := os.Getenv("LOGREDACT_KAFKA_BROKERS"); val != "" {
		cfg.Buffer.Kafka.Brokers = splitCSV(val)
	}

	if val := os.Getenv("LOGREDACT_WORKER_CONCURRENCY"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("LOGREDACT_WORKER_CONCURRENCY: invalid integer %q", val)
		}
		cfg.Worker.Concurrency = n
	}

	if val := os.Getenv("LOGREDACT_INGEST_MAX_BODY_SIZE"); val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("LOGREDACT_INGEST_MAX_BODY_SIZE: invalid integer %q", val)
		}
		cfg.Ingest.MaxBodySize = n
	}

	return nil
}

// Validate checks structural settings. Missing targets are reported by
// RequireBuffer and RequireStore so that each process decides how to react.
func (c *Config) Validate() error {
	switch c.Buffer.Backend {
	case BufferKafka, BufferSQS, BufferMemory:
	default:
		return fmt.Errorf("unknown buffer backend %q", c.Buffer.Backend)
	}

	switch c.Store.Backend {
	case StoreDynamoDB, StorePostgres, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Buffer.Backend == BufferKafka && len(c.Buffer.Kafka.Brokers) == 0 {
		return errors.New("at least one kafka broker is required")
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be positive, got %d", c.Worker.Concurrency)
	}

	if c.Ingest.MaxBodySize <= 0 {
		return fmt.Errorf("ingest max body size must be positive, got %d", c.Ingest.MaxBodySize)
	}

	if c.Buffer.SQS.MaxMessages < 1 || c.Buffer.SQS.MaxMessages > 10 {
		return fmt.Errorf("sqs max messages must be between 1 and 10, got %d", c.Buffer.SQS.MaxMessages)
	}

	return nil
}

// RequireBuffer reports whether a buffer target is configured
func (c *Config) RequireBuffer() error {
	if strings.TrimSpace(c.Buffer.Target) == "" {
		return ErrBufferTargetMissing
	}
	return nil
}

// RequireStore reports whether a store target is configured
func (c *Config) RequireStore() error {
	if c.Store.Backend == StoreMemory {
		return nil
	}
	if strings.TrimSpace(c.Store.Target) == "" {
		return ErrStoreTargetMissing
	}
	return nil
}

// LoadAWS resolves the shared AWS client configuration.
func (c *Config) LoadAWS(ctx context.Context) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.AWS.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return awsCfg, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
