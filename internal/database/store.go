package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps the connection pool and runs multi-statement units of work.
type Store struct {
	*Queries
	pool *pgxpool.Pool
}

// NewStore returns a Store over pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Queries: New(pool),
		pool:    pool,
	}
}

// ExecTx runs fn inside a single transaction. The transaction commits only
// when fn returns nil; errors and panics roll it back.
func (s *Store) ExecTx(ctx context.Context, fn func(Querier) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Error("rollback after panic failed", "error", rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// ConnectRetries is how many times a failed initial connect is retried.
	ConnectRetries int
	// ConnectBackoff is the initial delay between connect attempts.
	ConnectBackoff time.Duration
}

// Connect opens a pool and pings it, retrying with exponential backoff while
// the database is unreachable.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	expo := backoff.NewExponentialBackOff()
	if cfg.ConnectBackoff > 0 {
		expo.InitialInterval = cfg.ConnectBackoff
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(expo, uint64(max(cfg.ConnectRetries, 0))),
		ctx,
	)

	var pool *pgxpool.Pool
	operation := func() error {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return fmt.Errorf("create pool: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return fmt.Errorf("ping database: %w", err)
		}
		pool = p
		return nil
	}

	err = backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		slog.Warn("database not ready, retrying", "error", err, "wait", wait)
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}
