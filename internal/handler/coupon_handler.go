package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/casino-ledger/internal/middleware"
	"github.com/fairyhunter13/casino-ledger/internal/model"
)

// CouponServiceInterface defines the catalog operations on coupons.
type CouponServiceInterface interface {
	Create(ctx context.Context, req *model.CreateCouponRequest) (*model.Coupon, error)
	ListActive(ctx context.Context) ([]model.Coupon, error)
	Deactivate(ctx context.Context, code string) error
}

// CouponRedeemer credits coupons to accounts.
type CouponRedeemer interface {
	RedeemCoupon(ctx context.Context, accountID uuid.UUID, code string) (*model.RedeemResult, error)
}

// CouponHandler handles HTTP requests for coupon operations.
type CouponHandler struct {
	service   CouponServiceInterface
	redeemer  CouponRedeemer
	validator *validator.Validate
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(svc CouponServiceInterface, redeemer CouponRedeemer, v *validator.Validate) *CouponHandler {
	return &CouponHandler{service: svc, redeemer: redeemer, validator: v}
}

// List handles GET /api/coupons.
func (h *CouponHandler) List(c *fiber.Ctx) error {
	coupons, err := h.service.ListActive(c.UserContext())
	if err != nil {
		return respondError(c, err, "failed to list coupons")
	}
	return c.JSON(coupons)
}

// Redeem handles POST /api/coupons/redeem.
func (h *CouponHandler) Redeem(c *fiber.Ctx) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return unauthorized(c)
	}

	var req model.RedeemCouponRequest
	if ok, err := parseAndValidate(c, h.validator, &req); !ok {
		return err
	}

	result, err := h.redeemer.RedeemCoupon(c.UserContext(), accountID, req.Code)
	if err != nil {
		return respondError(c, err, "failed to redeem coupon")
	}

	log.Info().
		Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
		Str("account_id", accountID.String()).
		Str("coupon_code", model.NormalizeCode(req.Code)).
		Str("bonus", result.BonusAmount.StringFixed(2)).
		Msg("coupon redeemed")

	return c.JSON(result)
}

// Create handles POST /api/admin/coupons.
func (h *CouponHandler) Create(c *fiber.Ctx) error {
	var req model.CreateCouponRequest
	if ok, err := parseAndValidate(c, h.validator, &req); !ok {
		return err
	}

	coupon, err := h.service.Create(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err, "failed to create coupon")
	}

	log.Info().Str("coupon_code", coupon.Code).Int("max_uses", coupon.MaxUses).Msg("coupon created")
	return c.Status(fiber.StatusCreated).JSON(coupon)
}

// Deactivate handles POST /api/admin/coupons/:code/deactivate.
func (h *CouponHandler) Deactivate(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
	}

	if err := h.service.Deactivate(c.UserContext(), code); err != nil {
		return respondError(c, err, "failed to deactivate coupon")
	}

	log.Info().Str("coupon_code", model.NormalizeCode(code)).Msg("coupon deactivated")
	return c.SendStatus(fiber.StatusNoContent)
}
