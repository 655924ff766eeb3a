package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// TxQuerier is implemented by both pgxpool.Pool and pgx.Tx.
// Repository methods that need transaction support should accept TxQuerier.
type TxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// NewPool creates a PostgreSQL connection pool, retrying with exponential backoff
// (1s, 2s, 4s, ... capped at 16s) until maxRetries attempts have failed.
func NewPool(ctx context.Context, dsn string, maxRetries int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	// Ensure at least one attempt even if maxRetries is 0
	attempts := maxRetries
	if attempts < 1 {
		attempts = 1
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = 16 * time.Second
	policy.MaxElapsedTime = 0

	var pool *pgxpool.Pool
	attempt := 0
	connect := func() error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return fmt.Errorf("ping failed: %w", err)
		}
		pool = p
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_retries", maxRetries).
			Dur("next_retry_in", next).
			Msg("database connection failed, retrying")
	}

	err = backoff.RetryNotify(connect,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx),
		notify)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempts, err)
	}

	log.Info().Int32("max_conns", cfg.MaxConns).Msg("database connection established")
	return pool, nil
}
