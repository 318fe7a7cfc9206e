package storage

import (
	"context"
	"fmt"

	"logredact/internal/config"
)

// Open constructs the store selected by the configuration
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if err := cfg.RequireStore(); err != nil {
		return nil, err
	}

	switch cfg.Store.Backend {
	case config.StoreDynamoDB:
		awsCfg, err := cfg.LoadAWS(ctx)
		if err != nil {
			return nil, err
		}
		return NewDynamoDBFromConfig(awsCfg, cfg.Store.Target, cfg.AWS.Endpoint)
	case config.StorePostgres:
		return NewPostgres(ctx, cfg.Store.Target, PostgresOptions{
			MaxConns: cfg.Store.Postgres.MaxConns,
			Migrate:  cfg.Store.Postgres.Migrate,
		})
	case config.StoreSQLite:
		return NewSQLite(cfg.Store.Target, cfg.Store.SQLite.BusyTimeout)
	case config.StoreMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
