package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/casino-ledger/internal/model"
	"github.com/fairyhunter13/casino-ledger/internal/service"
	"github.com/fairyhunter13/casino-ledger/pkg/database"
)

const accountColumns = `id, username, balance, total_bets, total_wins, biggest_win,
	coupons_used, game_stats, version, created_at, updated_at`

// AccountRepository provides data access for accounts using pgx.
type AccountRepository struct {
	pool PoolInterface
}

// NewAccountRepository creates a new AccountRepository with the given pool.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// NewAccountRepositoryWithPool creates a new AccountRepository with a custom pool interface.
// This is primarily used for testing.
func NewAccountRepositoryWithPool(pool PoolInterface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var acc model.Account
	err := row.Scan(
		&acc.ID,
		&acc.Username,
		&acc.Balance,
		&acc.TotalBets,
		&acc.TotalWins,
		&acc.BiggestWin,
		&acc.CouponsUsed,
		&acc.GameStats,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if acc.CouponsUsed == nil {
		acc.CouponsUsed = []string{}
	}
	if acc.GameStats == nil {
		acc.GameStats = model.GameCounters{}
	}
	return &acc, nil
}

// CreateWithDefaults inserts a fresh account holding startingBalance.
// Returns service.ErrAccountExists if the username is taken.
func (r *AccountRepository) CreateWithDefaults(ctx context.Context, username string, startingBalance decimal.Decimal) (*model.Account, error) {
	query := `INSERT INTO accounts (id, username, balance) VALUES ($1, $2, $3) RETURNING ` + accountColumns

	acc, err := scanAccount(r.pool.QueryRow(ctx, query, uuid.New(), username, startingBalance))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, service.ErrAccountExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return acc, nil
}

// GetByID retrieves an account without locking it.
// Returns nil, nil if the account is not found (service layer handles this).
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return acc, nil
}

// GetForUpdate retrieves an account with a row lock (SELECT FOR UPDATE).
// This locks the row until the transaction completes.
// Returns service.ErrAccountNotFound if the account doesn't exist.
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	acc, err := scanAccount(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account for update %s: %w", id, err)
	}
	return acc, nil
}

// Save replaces the mutable state of the account if its version is unchanged
// since it was read, then bumps the version.
// Returns service.ErrConcurrencyConflict on a version mismatch.
func (r *AccountRepository) Save(ctx context.Context, tx database.TxQuerier, acc *model.Account) error {
	query := `UPDATE accounts
		SET balance = $2, total_bets = $3, total_wins = $4, biggest_win = $5,
			coupons_used = $6, game_stats = $7, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $8
		RETURNING version, updated_at`

	couponsUsed := acc.CouponsUsed
	if couponsUsed == nil {
		couponsUsed = []string{}
	}

	err := tx.QueryRow(ctx, query,
		acc.ID,
		acc.Balance,
		acc.TotalBets,
		acc.TotalWins,
		acc.BiggestWin,
		couponsUsed,
		acc.GameStats.Clone(),
		acc.Version,
	).Scan(&acc.Version, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("save account %s: %w", acc.ID, service.ErrConcurrencyConflict)
		}
		if database.IsCheckViolation(err) {
			return fmt.Errorf("save account %s: %w", acc.ID, service.ErrInsufficientFunds)
		}
		if database.IsNumericOutOfRange(err) {
			return fmt.Errorf("save account %s: %w", acc.ID, service.ErrInvalidAmount)
		}
		return fmt.Errorf("save account %s: %w", acc.ID, err)
	}
	return nil
}

// GlobalStats aggregates play statistics over all accounts.
func (r *AccountRepository) GlobalStats(ctx context.Context) (*model.GlobalStats, error) {
	query := `SELECT COUNT(*),
		COALESCE(SUM(total_bets), 0)::BIGINT,
		COALESCE(SUM(total_wins), 0)::BIGINT,
		COALESCE(MAX(biggest_win), 0)
		FROM accounts`

	var stats model.GlobalStats
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.TotalUsers,
		&stats.TotalBets,
		&stats.TotalWins,
		&stats.BiggestWinEver,
	)
	if err != nil {
		return nil, fmt.Errorf("global stats: %w", err)
	}
	return &stats, nil
}
