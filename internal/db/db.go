// Package db opens the configured ward store.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jeremiassm/controlh-app/internal/config"
	"github.com/Jeremiassm/controlh-app/pkg/ward"
)

// Connect opens a pgx pool for url and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Open returns the store selected by cfg.Driver with its schema in place.
func Open(ctx context.Context, cfg *config.Config) (ward.Store, error) {
	cats := ward.NewCategorySet(cfg.Categories...)

	var store ward.Store
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store = ward.NewPgStore(pool, cats)
	default:
		s, err := ward.OpenSQLiteStore(cfg.SQLitePath, cats)
		if err != nil {
			return nil, err
		}
		store = s
	}

	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
