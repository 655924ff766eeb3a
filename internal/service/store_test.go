package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/casino-ledger/internal/lock"
	"github.com/fairyhunter13/casino-ledger/internal/model"
	"github.com/fairyhunter13/casino-ledger/pkg/database"
)

// memStore is an in-memory stand-in for PostgreSQL. Writes made through a
// memTx become visible on Commit; row locks are held until Commit or Rollback.
type memStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]model.Account
	coupons  map[string]model.Coupon
	txns     []model.Transaction
	clock    time.Time
	rowLocks *lock.KeyedMutex

	beginErr      error
	saveConflicts int
	commitErrs    []error
	begins        int
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[uuid.UUID]model.Account{},
		coupons:  map[string]model.Coupon{},
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		rowLocks: lock.NewKeyedMutex(),
	}
}

func (s *memStore) Begin(ctx context.Context) (pgx.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &memTx{
		store:    s,
		accounts: map[uuid.UUID]model.Account{},
		coupons:  map[string]model.Coupon{},
	}, nil
}

func (s *memStore) addAccount(balance int64) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.accounts[id] = model.Account{
		ID:          id,
		Username:    "player-" + id.String()[:8],
		Balance:     decimal.NewFromInt(balance),
		BiggestWin:  decimal.Zero,
		CouponsUsed: []string{},
		GameStats:   model.GameCounters{},
		CreatedAt:   s.clock,
		UpdatedAt:   s.clock,
	}
	return id
}

func (s *memStore) addCoupon(c model.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[c.Code] = c
}

func (s *memStore) account(id uuid.UUID) model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyAccount(s.accounts[id])
}

func (s *memStore) coupon(code string) model.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coupons[code]
}

func (s *memStore) transactionsOf(id uuid.UUID) []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Transaction
	for _, t := range s.txns {
		if t.AccountID == id {
			out = append(out, t)
		}
	}
	return out
}

func copyAccount(a model.Account) model.Account {
	a.CouponsUsed = slices.Clone(a.CouponsUsed)
	a.GameStats = a.GameStats.Clone()
	return a
}

// memTx implements pgx.Tx on top of memStore.
type memTx struct {
	store    *memStore
	accounts map[uuid.UUID]model.Account
	coupons  map[string]model.Coupon
	txns     []model.Transaction
	unlocks  []func()
	done     bool
}

func asMemTx(q database.TxQuerier) *memTx {
	return q.(*memTx)
}

func (t *memTx) lockRow(ctx context.Context, key string) error {
	unlock, err := t.store.rowLocks.Lock(ctx, key)
	if err != nil {
		return err
	}
	t.unlocks = append(t.unlocks, unlock)
	return nil
}

func (t *memTx) release() {
	for _, unlock := range t.unlocks {
		unlock()
	}
	t.unlocks = nil
	t.done = true
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	s := t.store
	s.mu.Lock()
	if len(s.commitErrs) > 0 {
		err := s.commitErrs[0]
		s.commitErrs = s.commitErrs[1:]
		s.mu.Unlock()
		t.release()
		return err
	}
	for id, a := range t.accounts {
		s.accounts[id] = a
	}
	for code, c := range t.coupons {
		s.coupons[code] = c
	}
	s.txns = append(s.txns, t.txns...)
	s.mu.Unlock()

	t.release()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if !t.done {
		t.release()
	}
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }

func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *memTx) Conn() *pgx.Conn                                               { return nil }

// memAccounts implements AccountRepositoryInterface.
type memAccounts struct{ s *memStore }

func (r memAccounts) CreateWithDefaults(ctx context.Context, username string, startingBalance decimal.Decimal) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.Username == username {
			return nil, ErrAccountExists
		}
	}
	acc := model.Account{
		ID:          uuid.New(),
		Username:    username,
		Balance:     startingBalance,
		CouponsUsed: []string{},
		GameStats:   model.GameCounters{},
		CreatedAt:   r.s.clock,
		UpdatedAt:   r.s.clock,
	}
	r.s.accounts[acc.ID] = acc
	return &acc, nil
}

func (r memAccounts) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	a = copyAccount(a)
	return &a, nil
}

func (r memAccounts) GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.Account, error) {
	mt := asMemTx(tx)
	if err := mt.lockRow(ctx, "account:"+id.String()); err != nil {
		return nil, fmt.Errorf("get account for update %s: %w", id, err)
	}
	if a, ok := mt.accounts[id]; ok {
		a = copyAccount(a)
		return &a, nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	a = copyAccount(a)
	return &a, nil
}

func (r memAccounts) Save(ctx context.Context, tx database.TxQuerier, acc *model.Account) error {
	mt := asMemTx(tx)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.saveConflicts > 0 {
		r.s.saveConflicts--
		return fmt.Errorf("save account %s: %w", acc.ID, ErrConcurrencyConflict)
	}
	current, ok := mt.accounts[acc.ID]
	if !ok {
		current = r.s.accounts[acc.ID]
	}
	if current.Version != acc.Version {
		return fmt.Errorf("save account %s: %w", acc.ID, ErrConcurrencyConflict)
	}
	if acc.Balance.IsNegative() {
		return fmt.Errorf("save account %s: %w", acc.ID, ErrInsufficientFunds)
	}
	acc.Version++
	acc.UpdatedAt = r.s.clock
	mt.accounts[acc.ID] = copyAccount(*acc)
	return nil
}

func (r memAccounts) GlobalStats(ctx context.Context) (*model.GlobalStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stats := &model.GlobalStats{}
	for _, a := range r.s.accounts {
		stats.TotalUsers++
		stats.TotalBets += a.TotalBets
		stats.TotalWins += a.TotalWins
		if a.BiggestWin.GreaterThan(stats.BiggestWinEver) {
			stats.BiggestWinEver = a.BiggestWin
		}
	}
	return stats, nil
}

// memTransactions implements TransactionRepositoryInterface.
type memTransactions struct{ s *memStore }

func (r memTransactions) Append(ctx context.Context, tx database.TxQuerier, txn *model.Transaction) error {
	mt := asMemTx(tx)
	r.s.mu.Lock()
	r.s.clock = r.s.clock.Add(time.Millisecond)
	txn.CreatedAt = r.s.clock
	r.s.mu.Unlock()
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	mt.txns = append(mt.txns, *txn)
	return nil
}

func (r memTransactions) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Transaction, error) {
	txns := r.s.transactionsOf(accountID)
	sort.SliceStable(txns, func(i, j int) bool { return txns[i].CreatedAt.After(txns[j].CreatedAt) })
	if len(txns) > limit {
		txns = txns[:limit]
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	return txns, nil
}

func (r memTransactions) AggregateByGame(ctx context.Context, accountID uuid.UUID) ([]model.GameAggregate, error) {
	return model.AggregateByGame(r.s.transactionsOf(accountID)), nil
}

// memCoupons implements CouponRepositoryInterface.
type memCoupons struct{ s *memStore }

func (r memCoupons) Insert(ctx context.Context, c *model.Coupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.coupons[c.Code]; ok {
		return ErrCouponExists
	}
	stored := *c
	stored.CreatedAt = r.s.clock
	r.s.coupons[c.Code] = stored
	return nil
}

func (r memCoupons) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.coupons[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r memCoupons) GetForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.Coupon, error) {
	mt := asMemTx(tx)
	if err := mt.lockRow(ctx, "coupon:"+code); err != nil {
		return nil, fmt.Errorf("get coupon for update %s: %w", code, err)
	}
	if c, ok := mt.coupons[code]; ok {
		return &c, nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.coupons[code]
	if !ok {
		return nil, ErrCouponNotFound
	}
	return &c, nil
}

func (r memCoupons) IncrementUsage(ctx context.Context, tx database.TxQuerier, code string) error {
	mt := asMemTx(tx)
	c, ok := mt.coupons[code]
	if !ok {
		r.s.mu.Lock()
		c = r.s.coupons[code]
		r.s.mu.Unlock()
	}
	if c.Exhausted() {
		return ErrCouponExhausted
	}
	c.CurrentUses++
	mt.coupons[code] = c
	return nil
}

func (r memCoupons) ListActive(ctx context.Context, now time.Time) ([]model.Coupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Coupon{}
	for _, c := range r.s.coupons {
		if c.IsActive && !c.Expired(now) && !c.Exhausted() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r memCoupons) Deactivate(ctx context.Context, code string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.coupons[code]
	if !ok {
		return ErrCouponNotFound
	}
	c.IsActive = false
	r.s.coupons[code] = c
	return nil
}

func newTestLedger(store *memStore, opts Options) *LedgerService {
	return NewLedgerService(store, memAccounts{store}, memTransactions{store}, memCoupons{store}, lock.NewKeyedMutex(), opts)
}
