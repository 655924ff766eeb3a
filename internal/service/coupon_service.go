package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/casino-ledger/internal/model"
)

// DefaultCoupons is the catalog seeded on startup. All are unlimited.
var DefaultCoupons = []model.Coupon{
	{Code: "BOOST50", BonusAmount: decimal.NewFromInt(5000), Message: "Boost! 5000 credits added to your balance", MaxUses: model.UnlimitedUses, IsActive: true},
	{Code: "CASINO100", BonusAmount: decimal.NewFromInt(10000), Message: "Jackpot! 10000 credits added to your balance", MaxUses: model.UnlimitedUses, IsActive: true},
	{Code: "LUCKY777", BonusAmount: decimal.NewFromInt(7777), Message: "Lucky you! 7777 credits added to your balance", MaxUses: model.UnlimitedUses, IsActive: true},
	{Code: "SPIN50", BonusAmount: decimal.NewFromInt(5000), Message: "Free spins! 5000 credits added to your balance", MaxUses: model.UnlimitedUses, IsActive: true},
	{Code: "WELCOME", BonusAmount: decimal.NewFromInt(2000), Message: "Welcome bonus! 2000 credits added to your balance", MaxUses: model.UnlimitedUses, IsActive: true},
}

// CouponService provides catalog operations on coupons. Redemption lives in
// LedgerService because it mutates balances.
type CouponService struct {
	couponRepo CouponRepositoryInterface
	now        func() time.Time
}

// NewCouponService creates a new CouponService with the given repository.
func NewCouponService(couponRepo CouponRepositoryInterface) *CouponService {
	return &CouponService{couponRepo: couponRepo, now: time.Now}
}

// Create adds a coupon to the catalog.
// Returns ErrCouponExists if the code is taken.
// Returns ErrInvalidRequest if request data is nil or incomplete.
func (s *CouponService) Create(ctx context.Context, req *model.CreateCouponRequest) (*model.Coupon, error) {
	if req == nil || req.BonusAmount == nil {
		return nil, ErrInvalidRequest
	}

	code := model.NormalizeCode(req.Code)
	if code == "" {
		return nil, ErrInvalidRequest
	}
	bonus := *req.BonusAmount
	if math.IsNaN(bonus) || math.IsInf(bonus, 0) || bonus <= 0 {
		return nil, ErrInvalidAmount
	}

	maxUses := model.UnlimitedUses
	if req.MaxUses != nil {
		if *req.MaxUses < model.UnlimitedUses {
			return nil, ErrInvalidRequest
		}
		maxUses = *req.MaxUses
	}

	coupon := &model.Coupon{
		Code:        code,
		BonusAmount: decimal.NewFromFloat(bonus).Round(2),
		Message:     req.Message,
		MaxUses:     maxUses,
		ExpiresAt:   req.ExpiresAt,
		IsActive:    true,
	}
	if err := s.couponRepo.Insert(ctx, coupon); err != nil {
		return nil, classify(err)
	}
	return coupon, nil
}

// ListActive returns coupons that are active and not expired.
func (s *CouponService) ListActive(ctx context.Context) ([]model.Coupon, error) {
	coupons, err := s.couponRepo.ListActive(ctx, s.now())
	if err != nil {
		return nil, classify(fmt.Errorf("list coupons: %w", err))
	}
	return coupons, nil
}

// Deactivate disables a coupon. Deactivating twice is not an error.
// Returns ErrCouponNotFound if the coupon doesn't exist.
func (s *CouponService) Deactivate(ctx context.Context, code string) error {
	code = model.NormalizeCode(code)
	if code == "" {
		return ErrInvalidRequest
	}
	if err := s.couponRepo.Deactivate(ctx, code); err != nil {
		return classify(err)
	}
	return nil
}

// SeedDefaults inserts DefaultCoupons, skipping codes that already exist.
func (s *CouponService) SeedDefaults(ctx context.Context) error {
	created := 0
	for i := range DefaultCoupons {
		coupon := DefaultCoupons[i]
		err := s.couponRepo.Insert(ctx, &coupon)
		if errors.Is(err, ErrCouponExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed coupon %s: %w", coupon.Code, err)
		}
		created++
	}
	log.Info().Int("created", created).Int("catalog", len(DefaultCoupons)).Msg("default coupons seeded")
	return nil
}
