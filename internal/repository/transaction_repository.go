package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/casino-ledger/internal/model"
	"github.com/fairyhunter13/casino-ledger/pkg/database"
)

// TransactionRepository is the append-only transaction log.
type TransactionRepository struct {
	pool PoolInterface
}

// NewTransactionRepository creates a new TransactionRepository with the given pool.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// NewTransactionRepositoryWithPool creates a new TransactionRepository with a custom pool interface.
// This is primarily used for testing.
func NewTransactionRepositoryWithPool(pool PoolInterface) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Append stores txn inside the caller's transaction and fills in its ID
// (when unset) and creation timestamp.
func (r *TransactionRepository) Append(ctx context.Context, tx database.TxQuerier, txn *model.Transaction) error {
	query := `INSERT INTO transactions
		(id, account_id, kind, game, amount, balance_before, balance_after,
		 bet_amount, win_amount, multiplier, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}

	details := model.TransactionDetails{}
	if txn.Details != nil {
		details = *txn.Details
	}

	var game *string
	if txn.Game != "" {
		g := string(txn.Game)
		game = &g
	}

	err := tx.QueryRow(ctx, query,
		txn.ID,
		txn.AccountID,
		string(txn.Kind),
		game,
		txn.Amount,
		txn.BalanceBefore,
		txn.BalanceAfter,
		details.Bet,
		details.WinAmount,
		details.Multiplier,
		details.Result,
	).Scan(&txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

// ListByAccount returns up to limit transactions of the account, newest first.
// On success, returns an empty slice (not nil) when no transactions exist.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Transaction, error) {
	query := `SELECT id, account_id, kind, game, amount, balance_before, balance_after,
			bet_amount, win_amount, multiplier, result, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", accountID, err)
	}
	defer rows.Close()

	txns := []model.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

func scanTransaction(rows pgx.Rows) (model.Transaction, error) {
	var (
		txn     model.Transaction
		kind    string
		game    *string
		details model.TransactionDetails
	)
	err := rows.Scan(
		&txn.ID,
		&txn.AccountID,
		&kind,
		&game,
		&txn.Amount,
		&txn.BalanceBefore,
		&txn.BalanceAfter,
		&details.Bet,
		&details.WinAmount,
		&details.Multiplier,
		&details.Result,
		&txn.CreatedAt,
	)
	if err != nil {
		return model.Transaction{}, err
	}

	txn.Kind = model.TransactionKind(kind)
	if game != nil {
		txn.Game = model.Game(*game)
		txn.Details = &details
	}
	return txn, nil
}

// AggregateByGame summarizes the account's log per game. A round counts as
// a win when its win amount is positive. Games never played are omitted.
func (r *TransactionRepository) AggregateByGame(ctx context.Context, accountID uuid.UUID) ([]model.GameAggregate, error) {
	query := `SELECT game,
			COUNT(*) FILTER (WHERE kind = 'bet'),
			COUNT(*) FILTER (WHERE kind = 'win' OR (kind = 'bet' AND win_amount > 0)),
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(bet_amount), 0),
			COALESCE(SUM(win_amount), 0)
		FROM transactions
		WHERE account_id = $1 AND game IS NOT NULL
		GROUP BY game
		ORDER BY game`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("aggregate transactions for %s: %w", accountID, err)
	}
	defer rows.Close()

	stats := []model.GameAggregate{}
	for rows.Next() {
		var (
			agg  model.GameAggregate
			game string
		)
		if err := rows.Scan(&game, &agg.Bets, &agg.Wins, &agg.TotalAmount, &agg.TotalWagered, &agg.TotalWon); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		agg.Game = model.Game(game)
		stats = append(stats, agg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate rows: %w", err)
	}
	return stats, nil
}
