package model

import "time"

// RegisterAccountRequest is the DTO for POST /api/accounts.
type RegisterAccountRequest struct {
	Username string `json:"username" validate:"required,notblank,min=3,max=30"`
}

// GameOutcomeRequest is the DTO for POST /api/games/outcome.
// Amounts are pointers so that a missing field is distinguishable from zero.
type GameOutcomeRequest struct {
	Game      string   `json:"game" validate:"required,game"`
	BetAmount *float64 `json:"betAmount" validate:"required,money,gte=0"`
	WinAmount *float64 `json:"winAmount" validate:"required,money,gte=0"`
	Result    string   `json:"result" validate:"max=255"`
}

// RedeemCouponRequest is the DTO for POST /api/coupons/redeem.
type RedeemCouponRequest struct {
	Code string `json:"code" validate:"required,notblank,max=64"`
}

// DepositRequest is the DTO for POST /api/admin/accounts/:id/deposit.
type DepositRequest struct {
	Amount *float64 `json:"amount" validate:"required,money,gt=0"`
}

// CreateCouponRequest is the DTO for POST /api/admin/coupons.
type CreateCouponRequest struct {
	Code        string     `json:"code" validate:"required,notblank,max=64"`
	BonusAmount *float64   `json:"bonusAmount" validate:"required,money,gt=0"`
	Message     string     `json:"message" validate:"max=255"`
	MaxUses     *int       `json:"maxUses" validate:"omitempty,gte=-1"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// GameOutcome is a validated round result handed to the ledger.
type GameOutcome struct {
	Game      Game
	BetAmount float64
	WinAmount float64
	Result    string
}
