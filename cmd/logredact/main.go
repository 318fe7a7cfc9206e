// Command logredact runs the log ingestion pipeline: the HTTP ingest
// server, the buffer worker, their Lambda variants, and a record lookup.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"logredact/internal/buffer"
	"logredact/internal/config"
	"logredact/internal/lambda"
	"logredact/internal/logger"
	"logredact/internal/normalizer"
	"logredact/internal/processor"
	"logredact/internal/storage"
	"logredact/internal/worker"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "logredact",
		Short:         "Multi-tenant log ingestion and redaction pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	lambdaCmd := &cobra.Command{
		Use:   "lambda",
		Short: "Run as an AWS Lambda function",
	}
	lambdaCmd.AddCommand(
		&cobra.Command{
			Use:   "ingest",
			Short: "API Gateway HTTP API handler writing to the buffer",
			Args:  cobra.NoArgs,
			RunE:  runLambdaIngest,
		},
		&cobra.Command{
			Use:   "worker",
			Short: "SQS event handler processing buffered envelopes",
			Args:  cobra.NoArgs,
			RunE:  runLambdaWorker,
		},
	)

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "ingest",
			Short: "Start the HTTP ingest server",
			Args:  cobra.NoArgs,
			RunE:  runIngest,
		},
		&cobra.Command{
			Use:   "worker",
			Short: "Start the buffer worker",
			Args:  cobra.NoArgs,
			RunE:  runWorker,
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Run the ingest server and the worker in one process",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		lambdaCmd,
		&cobra.Command{
			Use:   "get <tenant_id> <log_id>",
			Short: "Print one processed record from the store",
			Args:  cobra.ExactArgs(2),
			RunE:  runGet,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		logger.Logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig reads the configuration and initializes logging
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	logger.Init(cfg.LogLevel)
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// openPublisher tolerates a missing buffer target: ingest keeps running
// and answers every submission with 500.
func openPublisher(ctx context.Context, cfg *config.Config) (buffer.Publisher, error) {
	publisher, err := processor.OpenPublisher(ctx, cfg)
	if errors.Is(err, config.ErrBufferTargetMissing) {
		log := logger.WithComponent("main")
		log.Error().
			Err(err).
			Str("backend", cfg.Buffer.Backend).
			Msg("buffer target is not configured, submissions will fail")
		return nil, nil
	}
	return publisher, err
}

// openWorkerDeps opens the store before the consumer so that a missing
// store target stops the worker before it takes anything from the buffer
func openWorkerDeps(ctx context.Context, cfg *config.Config) (buffer.Consumer, storage.Store, error) {
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	consumer, err := processor.OpenConsumer(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("open buffer consumer: %w", err)
	}
	return consumer, store, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	publisher, err := openPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open buffer publisher: %w", err)
	}

	return processor.NewIngestServer(cfg, publisher).Run(ctx)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	consumer, store, err := openWorkerDeps(ctx, cfg)
	if err != nil {
		return err
	}

	return processor.NewWorkerServer(cfg, consumer, store).Run(ctx)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	consumer, store, err := openWorkerDeps(ctx, cfg)
	if err != nil {
		return err
	}
	publisher, err := openPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open buffer publisher: %w", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = processor.NewWorkerServer(cfg, consumer, store).Run(ctx)
		cancel()
	}()
	go func() {
		defer wg.Done()
		errs[1] = processor.NewIngestServer(cfg, publisher).Run(ctx)
		cancel()
	}()
	wg.Wait()

	return errors.Join(errs...)
}

func runLambdaIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	publisher, err := openPublisher(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("open buffer publisher: %w", err)
	}

	service := normalizer.NewService(normalizer.New(), publisher, cfg.Buffer.Backend)
	awslambda.Start(lambda.NewIngestHandler(service).Handle)
	return nil
}

func runLambdaWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := storage.Open(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	awslambda.Start(lambda.NewWorkerHandler(worker.NewProcessor(store)).Handle)
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	record, err := store.Get(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}
