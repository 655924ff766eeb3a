package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/fairyhunter13/casino-ledger/internal/middleware"
	"github.com/fairyhunter13/casino-ledger/internal/model"
)

// TransactionServiceInterface defines the read side of the transaction log.
type TransactionServiceInterface interface {
	GetHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Transaction, error)
	GetAggregateStats(ctx context.Context, accountID uuid.UUID) ([]model.GameAggregate, error)
}

// TransactionHandler serves the caller's transaction history and stats.
type TransactionHandler struct {
	service TransactionServiceInterface
}

// NewTransactionHandler creates a new TransactionHandler with the given service.
func NewTransactionHandler(svc TransactionServiceInterface) *TransactionHandler {
	return &TransactionHandler{service: svc}
}

// History handles GET /api/transactions?limit=N.
// A missing or malformed limit falls back to the service default.
func (h *TransactionHandler) History(c *fiber.Ctx) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return unauthorized(c)
	}

	txns, err := h.service.GetHistory(c.UserContext(), accountID, c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err, "failed to get transaction history")
	}
	return c.JSON(txns)
}

// Stats handles GET /api/transactions/stats.
func (h *TransactionHandler) Stats(c *fiber.Ctx) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return unauthorized(c)
	}

	stats, err := h.service.GetAggregateStats(c.UserContext(), accountID)
	if err != nil {
		return respondError(c, err, "failed to get transaction stats")
	}
	return c.JSON(stats)
}
