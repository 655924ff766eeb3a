package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/casino-ledger/internal/model"
	"github.com/fairyhunter13/casino-ledger/pkg/database"
)

const (
	// DefaultHistoryLimit is used when a history request carries no positive limit.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps the number of transactions returned by one history request.
	MaxHistoryLimit = 200
)

// maxBalance is the exclusive upper bound a mutation may leave a balance at.
var maxBalance = decimal.NewFromFloat(model.MaxMoney)

// AccountRepositoryInterface defines the interface for account data access.
type AccountRepositoryInterface interface {
	CreateWithDefaults(ctx context.Context, username string, startingBalance decimal.Decimal) (*model.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.Account, error)
	Save(ctx context.Context, tx database.TxQuerier, account *model.Account) error
	GlobalStats(ctx context.Context) (*model.GlobalStats, error)
}

// TransactionRepositoryInterface defines the interface for the transaction log.
type TransactionRepositoryInterface interface {
	Append(ctx context.Context, tx database.TxQuerier, txn *model.Transaction) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Transaction, error)
	AggregateByGame(ctx context.Context, accountID uuid.UUID) ([]model.GameAggregate, error)
}

// CouponRepositoryInterface defines the interface for coupon data access.
type CouponRepositoryInterface interface {
	Insert(ctx context.Context, coupon *model.Coupon) error
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.Coupon, error)
	IncrementUsage(ctx context.Context, tx database.TxQuerier, code string) error
	ListActive(ctx context.Context, now time.Time) ([]model.Coupon, error)
	Deactivate(ctx context.Context, code string) error
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Locker serializes work on a key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Options tunes the ledger. Zero values fall back to the defaults below.
type Options struct {
	StartingBalance decimal.Decimal
	StorageTimeout  time.Duration
	MaxRetries      int
	RetryInterval   time.Duration
	Now             func() time.Time
}

func (o Options) withDefaults() Options {
	if o.StartingBalance.IsZero() {
		o.StartingBalance = decimal.NewFromInt(10000)
	}
	if o.StorageTimeout <= 0 {
		o.StorageTimeout = 5 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 10 * time.Millisecond
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// LedgerService is the only component that mutates account balances.
// Every mutation takes the per-account lock, then runs one database
// transaction that row-locks the account, applies the change, saves it
// with a version check and appends the transaction record.
type LedgerService struct {
	pool         TxBeginner
	accounts     AccountRepositoryInterface
	transactions TransactionRepositoryInterface
	coupons      CouponRepositoryInterface
	locker       Locker
	opts         Options
}

// NewLedgerService creates a LedgerService. pool is usually a *pgxpool.Pool.
func NewLedgerService(
	pool TxBeginner,
	accounts AccountRepositoryInterface,
	transactions TransactionRepositoryInterface,
	coupons CouponRepositoryInterface,
	locker Locker,
	opts Options,
) *LedgerService {
	return &LedgerService{
		pool:         pool,
		accounts:     accounts,
		transactions: transactions,
		coupons:      coupons,
		locker:       locker,
		opts:         opts.withDefaults(),
	}
}

// StartingBalance returns the balance new and reset accounts receive.
func (s *LedgerService) StartingBalance() decimal.Decimal {
	return s.opts.StartingBalance
}

// accountMutation changes acc in place and returns the record to append, or nil.
type accountMutation func(ctx context.Context, tx pgx.Tx, acc *model.Account) (*model.Transaction, error)

// ApplyGameOutcome settles one game round against the account.
// A single transaction of kind bet is recorded whose amount is the net
// change (win - bet).
func (s *LedgerService) ApplyGameOutcome(ctx context.Context, accountID uuid.UUID, outcome model.GameOutcome) (*model.BalanceUpdate, error) {
	if !outcome.Game.Valid() {
		return nil, ErrInvalidGame
	}
	bet, err := toMoney(outcome.BetAmount)
	if err != nil {
		return nil, err
	}
	win, err := toMoney(outcome.WinAmount)
	if err != nil {
		return nil, err
	}

	acc, err := s.mutate(ctx, accountID, func(_ context.Context, _ pgx.Tx, acc *model.Account) (*model.Transaction, error) {
		if acc.Balance.LessThan(bet) {
			return nil, &InsufficientFundsError{Balance: acc.Balance, Bet: bet}
		}

		before := acc.Balance
		acc.Balance = acc.Balance.Sub(bet)
		acc.TotalBets++
		if win.IsPositive() {
			acc.Balance = acc.Balance.Add(win)
			acc.TotalWins++
			if win.GreaterThan(acc.BiggestWin) {
				acc.BiggestWin = win
			}
		}
		if acc.GameStats == nil {
			acc.GameStats = model.GameCounters{}
		}
		acc.GameStats[outcome.Game]++

		multiplier := decimal.Zero
		if bet.IsPositive() {
			multiplier = win.DivRound(bet, 4)
		}

		return &model.Transaction{
			Kind:          model.KindBet,
			Game:          outcome.Game,
			Amount:        win.Sub(bet),
			BalanceBefore: before,
			BalanceAfter:  acc.Balance,
			Details: &model.TransactionDetails{
				Bet:        bet,
				WinAmount:  win,
				Multiplier: multiplier,
				Result:     outcome.Result,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	update := acc.Snapshot()
	return &update, nil
}

// RedeemCoupon credits the coupon bonus to the account.
// Rules are checked in order: not found, inactive, expired, exhausted,
// already used by this account. Nothing is written unless all pass.
func (s *LedgerService) RedeemCoupon(ctx context.Context, accountID uuid.UUID, code string) (*model.RedeemResult, error) {
	code = model.NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidRequest
	}

	var result model.RedeemResult
	acc, err := s.mutate(ctx, accountID, func(ctx context.Context, tx pgx.Tx, acc *model.Account) (*model.Transaction, error) {
		coupon, err := s.coupons.GetForUpdate(ctx, tx, code)
		if err != nil {
			return nil, err
		}

		switch {
		case !coupon.IsActive:
			return nil, ErrCouponInactive
		case coupon.Expired(s.opts.Now()):
			return nil, ErrCouponExpired
		case coupon.Exhausted():
			return nil, ErrCouponExhausted
		case acc.HasUsedCoupon(code):
			return nil, ErrCouponAlreadyUsed
		}

		if err := s.coupons.IncrementUsage(ctx, tx, code); err != nil {
			return nil, err
		}

		before := acc.Balance
		acc.Balance = acc.Balance.Add(coupon.BonusAmount)
		acc.CouponsUsed = append(acc.CouponsUsed, code)

		result = model.RedeemResult{
			Message:     coupon.RedeemMessage(),
			BonusAmount: coupon.BonusAmount,
		}
		return &model.Transaction{
			Kind:          model.KindCoupon,
			Amount:        coupon.BonusAmount,
			BalanceBefore: before,
			BalanceAfter:  acc.Balance,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	result.NewBalance = acc.Balance
	return &result, nil
}

// ResetAccount restores the starting balance and clears bet, win and
// biggest-win statistics. No transaction is recorded.
func (s *LedgerService) ResetAccount(ctx context.Context, accountID uuid.UUID) (*model.BalanceUpdate, error) {
	acc, err := s.mutate(ctx, accountID, func(_ context.Context, _ pgx.Tx, acc *model.Account) (*model.Transaction, error) {
		acc.Balance = s.opts.StartingBalance
		acc.TotalBets = 0
		acc.TotalWins = 0
		acc.BiggestWin = decimal.Zero
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	update := acc.Snapshot()
	return &update, nil
}

// Deposit credits a positive amount and records a deposit transaction.
func (s *LedgerService) Deposit(ctx context.Context, accountID uuid.UUID, amount float64) (*model.BalanceUpdate, error) {
	value, err := toMoney(amount)
	if err != nil {
		return nil, err
	}
	if !value.IsPositive() {
		return nil, ErrInvalidAmount
	}

	acc, err := s.mutate(ctx, accountID, func(_ context.Context, _ pgx.Tx, acc *model.Account) (*model.Transaction, error) {
		before := acc.Balance
		acc.Balance = acc.Balance.Add(value)
		return &model.Transaction{
			Kind:          model.KindDeposit,
			Amount:        value,
			BalanceBefore: before,
			BalanceAfter:  acc.Balance,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	update := acc.Snapshot()
	return &update, nil
}

// RegisterAccount creates an account with the starting balance.
// Returns ErrAccountExists if the username is taken.
func (s *LedgerService) RegisterAccount(ctx context.Context, username string) (*model.Account, error) {
	username = normalizeUsername(username)
	if username == "" {
		return nil, ErrInvalidRequest
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	acc, err := s.accounts.CreateWithDefaults(ctx, username, s.opts.StartingBalance)
	if err != nil {
		return nil, classify(err)
	}
	return acc, nil
}

// GetAccount returns the account profile.
func (s *LedgerService) GetAccount(ctx context.Context, accountID uuid.UUID) (*model.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, classify(fmt.Errorf("get account: %w", err))
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

// GetBalance returns the current balance of the account.
func (s *LedgerService) GetBalance(ctx context.Context, accountID uuid.UUID) (*model.Balance, error) {
	acc, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &model.Balance{Balance: acc.Balance}, nil
}

// GetHistory returns the most recent transactions of the account, newest
// first. limit is clamped to [1, MaxHistoryLimit]; non-positive values use
// DefaultHistoryLimit.
func (s *LedgerService) GetHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	txns, err := s.transactions.ListByAccount(ctx, accountID, ClampHistoryLimit(limit))
	if err != nil {
		return nil, classify(fmt.Errorf("list transactions: %w", err))
	}
	return txns, nil
}

// GetAggregateStats summarizes the account's transaction log per game.
func (s *LedgerService) GetAggregateStats(ctx context.Context, accountID uuid.UUID) ([]model.GameAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	stats, err := s.transactions.AggregateByGame(ctx, accountID)
	if err != nil {
		return nil, classify(fmt.Errorf("aggregate transactions: %w", err))
	}
	return stats, nil
}

// GetGlobalStats summarizes play across all accounts.
func (s *LedgerService) GetGlobalStats(ctx context.Context) (*model.GlobalStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	stats, err := s.accounts.GlobalStats(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("global stats: %w", err))
	}
	return stats, nil
}

// ClampHistoryLimit maps a requested history size onto the accepted range.
func ClampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

// mutate runs fn under the account lock with conflict retries and the
// storage timeout.
func (s *LedgerService) mutate(ctx context.Context, accountID uuid.UUID, fn accountMutation) (*model.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(ctx, accountLockKey(accountID))
	if err != nil {
		return nil, classify(fmt.Errorf("acquire account lock: %w", err))
	}
	defer unlock()

	var acc *model.Account
	err = s.withRetry(ctx, func() error {
		var err error
		acc, err = s.runInTx(ctx, accountID, fn)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return acc, nil
}

func (s *LedgerService) runInTx(ctx context.Context, accountID uuid.UUID, fn accountMutation) (*model.Account, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	// 1. Lock the account row (SELECT FOR UPDATE)
	acc, err := s.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, conflictOr(err)
	}

	// 2. Validate and mutate
	record, err := fn(ctx, tx, acc)
	if err != nil {
		return nil, conflictOr(err)
	}
	if acc.Balance.GreaterThanOrEqual(maxBalance) {
		return nil, ErrInvalidAmount
	}

	// 3. Persist with version check
	if err := s.accounts.Save(ctx, tx, acc); err != nil {
		return nil, conflictOr(err)
	}

	// 4. Append the ledger entry
	if record != nil {
		record.AccountID = acc.ID
		if err := s.transactions.Append(ctx, tx, record); err != nil {
			return nil, conflictOr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, conflictOr(fmt.Errorf("commit tx: %w", err))
	}
	return acc, nil
}

// withRetry repeats op while it fails with ErrConcurrencyConflict.
func (s *LedgerService) withRetry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.RetryInterval
	policy.MaxInterval = 20 * s.opts.RetryInterval
	policy.MaxElapsedTime = 0

	attempt := 0
	return backoff.RetryNotify(
		func() error {
			attempt++
			err := op()
			if err == nil || errors.Is(err, ErrConcurrencyConflict) {
				return err
			}
			return backoff.Permanent(err)
		},
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.opts.MaxRetries)), ctx),
		func(err error, next time.Duration) {
			log.Debug().
				Err(err).
				Int("attempt", attempt).
				Dur("next_retry_in", next).
				Msg("ledger write conflicted, retrying")
		},
	)
}

// conflictOr tags serialization failures and deadlocks as ErrConcurrencyConflict.
func conflictOr(err error) error {
	if database.IsConflict(err) && !errors.Is(err, ErrConcurrencyConflict) {
		return fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
	}
	return err
}

func normalizeUsername(name string) string {
	return strings.TrimSpace(name)
}

func accountLockKey(id uuid.UUID) string {
	return "account:" + id.String()
}

// toMoney converts an API amount to a two-decimal money value below MaxMoney.
func toMoney(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v >= model.MaxMoney {
		return decimal.Zero, ErrInvalidAmount
	}
	return decimal.NewFromFloat(v).Round(2), nil
}
