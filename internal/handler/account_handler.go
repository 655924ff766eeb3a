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

// AccountServiceInterface defines the account operations of the ledger.
type AccountServiceInterface interface {
	RegisterAccount(ctx context.Context, username string) (*model.Account, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (*model.Account, error)
	GetBalance(ctx context.Context, accountID uuid.UUID) (*model.Balance, error)
	ResetAccount(ctx context.Context, accountID uuid.UUID) (*model.BalanceUpdate, error)
	Deposit(ctx context.Context, accountID uuid.UUID, amount float64) (*model.BalanceUpdate, error)
	GetGlobalStats(ctx context.Context) (*model.GlobalStats, error)
}

// AccountHandler handles HTTP requests for accounts and balances.
type AccountHandler struct {
	service   AccountServiceInterface
	validator *validator.Validate
}

// NewAccountHandler creates a new AccountHandler with the given service and validator.
func NewAccountHandler(svc AccountServiceInterface, v *validator.Validate) *AccountHandler {
	return &AccountHandler{service: svc, validator: v}
}

// Register handles POST /api/accounts.
func (h *AccountHandler) Register(c *fiber.Ctx) error {
	var req model.RegisterAccountRequest
	if ok, err := parseAndValidate(c, h.validator, &req); !ok {
		return err
	}

	acc, err := h.service.RegisterAccount(c.UserContext(), req.Username)
	if err != nil {
		return respondError(c, err, "failed to register account")
	}

	log.Info().
		Str("account_id", acc.ID.String()).
		Str("username", acc.Username).
		Msg("account registered")

	return c.Status(fiber.StatusCreated).JSON(acc)
}

// Me handles GET /api/me.
func (h *AccountHandler) Me(c *fiber.Ctx) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return unauthorized(c)
	}

	acc, err := h.service.GetAccount(c.UserContext(), accountID)
	if err != nil {
		return respondError(c, err, "failed to get account")
	}
	return c.JSON(acc)
}

// Balance handles GET /api/me/balance.
func (h *AccountHandler) Balance(c *fiber.Ctx) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return unauthorized(c)
	}

	balance, err := h.service.GetBalance(c.UserContext(), accountID)
	if err != nil {
		return respondError(c, err, "failed to get balance")
	}
	return c.JSON(balance)
}

// Reset handles POST /api/me/reset.
func (h *AccountHandler) Reset(c *fiber.Ctx) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return unauthorized(c)
	}

	update, err := h.service.ResetAccount(c.UserContext(), accountID)
	if err != nil {
		return respondError(c, err, "failed to reset account")
	}

	log.Info().Str("account_id", accountID.String()).Msg("account reset")
	return c.JSON(update)
}

// Deposit handles POST /api/admin/accounts/:id/deposit.
func (h *AccountHandler) Deposit(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: id is invalid"})
	}

	var req model.DepositRequest
	if ok, err := parseAndValidate(c, h.validator, &req); !ok {
		return err
	}

	update, err := h.service.Deposit(c.UserContext(), accountID, *req.Amount)
	if err != nil {
		return respondError(c, err, "failed to deposit")
	}

	log.Info().
		Str("account_id", accountID.String()).
		Float64("amount", *req.Amount).
		Str("balance", update.Balance.StringFixed(2)).
		Msg("deposit applied")

	return c.JSON(update)
}

// GlobalStats handles GET /api/stats/global.
func (h *AccountHandler) GlobalStats(c *fiber.Ctx) error {
	stats, err := h.service.GetGlobalStats(c.UserContext())
	if err != nil {
		return respondError(c, err, "failed to get global stats")
	}
	return c.JSON(stats)
}
