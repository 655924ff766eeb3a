package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/casino-ledger/internal/model"
	"github.com/fairyhunter13/casino-ledger/internal/service"
	"github.com/fairyhunter13/casino-ledger/pkg/database"
)

const couponColumns = `code, bonus_amount, message, max_uses, current_uses, expires_at, is_active, created_at`

// CouponRepository provides data access for coupons using pgx.
type CouponRepository struct {
	pool PoolInterface
}

// NewCouponRepository creates a new CouponRepository with the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// NewCouponRepositoryWithPool creates a new CouponRepository with a custom pool interface.
// This is primarily used for testing.
func NewCouponRepositoryWithPool(pool PoolInterface) *CouponRepository {
	return &CouponRepository{pool: pool}
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var coupon model.Coupon
	err := row.Scan(
		&coupon.Code,
		&coupon.BonusAmount,
		&coupon.Message,
		&coupon.MaxUses,
		&coupon.CurrentUses,
		&coupon.ExpiresAt,
		&coupon.IsActive,
		&coupon.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// Insert inserts a new coupon into the database.
// Returns service.ErrCouponExists if a coupon with the same code already exists.
func (r *CouponRepository) Insert(ctx context.Context, coupon *model.Coupon) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO coupons (code, bonus_amount, message, max_uses, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		coupon.Code, coupon.BonusAmount, coupon.Message, coupon.MaxUses, coupon.ExpiresAt, coupon.IsActive)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return service.ErrCouponExists
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// GetByCode retrieves a coupon by its code.
// Returns nil, nil if the coupon is not found (service layer handles this).
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	coupon, err := scanCoupon(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("get coupon by code %s: %w", code, err)
	}
	return coupon, nil
}

// GetForUpdate retrieves a coupon with a row lock (SELECT FOR UPDATE).
// This locks the row until the transaction completes.
// Returns service.ErrCouponNotFound if the coupon doesn't exist.
func (r *CouponRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1 FOR UPDATE`

	coupon, err := scanCoupon(tx.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon for update %s: %w", code, err)
	}
	return coupon, nil
}

// IncrementUsage counts one redemption. The update only matches while the
// coupon is under its cap, so it can never push current_uses past max_uses.
// Returns service.ErrCouponExhausted when no row qualified.
func (r *CouponRepository) IncrementUsage(ctx context.Context, tx database.TxQuerier, code string) error {
	query := `UPDATE coupons SET current_uses = current_uses + 1
		WHERE code = $1 AND (max_uses < 0 OR current_uses < max_uses)`

	tag, err := tx.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("increment usage for %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrCouponExhausted
	}
	return nil
}

// ListActive returns redeemable coupons: active, unexpired at now and under
// their usage cap. On success, returns an empty slice (not nil).
func (r *CouponRepository) ListActive(ctx context.Context, now time.Time) ([]model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons
		WHERE is_active
			AND (expires_at IS NULL OR expires_at > $1)
			AND (max_uses < 0 OR current_uses < max_uses)
		ORDER BY code`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list active coupons: %w", err)
	}
	defer rows.Close()

	coupons := []model.Coupon{}
	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, *coupon)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coupon rows: %w", err)
	}
	return coupons, nil
}

// Deactivate marks a coupon inactive.
// Returns service.ErrCouponNotFound if the coupon doesn't exist.
func (r *CouponRepository) Deactivate(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE coupons SET is_active = FALSE WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("deactivate coupon %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrCouponNotFound
	}
	return nil
}
