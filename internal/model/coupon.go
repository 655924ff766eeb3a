package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnlimitedUses marks a coupon without a redemption cap.
const UnlimitedUses = -1

// DefaultCouponMessage is shown when a coupon carries no message of its own.
const DefaultCouponMessage = "Coupon redeemed successfully"

// Coupon is a redeemable promotional code.
type Coupon struct {
	Code        string          `json:"code"`
	BonusAmount decimal.Decimal `json:"bonusAmount"`
	Message     string          `json:"message"`
	MaxUses     int             `json:"maxUses"`
	CurrentUses int             `json:"currentUses"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// NormalizeCode canonicalizes a user-entered coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Expired reports whether the coupon's expiry lies before now.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// Exhausted reports whether a capped coupon has no redemptions left.
func (c *Coupon) Exhausted() bool {
	return c.MaxUses >= 0 && c.CurrentUses >= c.MaxUses
}

// RedeemMessage returns the message to show after a successful redemption.
func (c *Coupon) RedeemMessage() string {
	if strings.TrimSpace(c.Message) == "" {
		return DefaultCouponMessage
	}
	return c.Message
}

// RedeemResult is returned by a successful coupon redemption.
type RedeemResult struct {
	Message     string          `json:"message"`
	BonusAmount decimal.Decimal `json:"bonusAmount"`
	NewBalance  decimal.Decimal `json:"newBalance"`
}
