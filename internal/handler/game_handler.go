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

// GameServiceInterface defines how game rounds reach the ledger.
type GameServiceInterface interface {
	ApplyGameOutcome(ctx context.Context, accountID uuid.UUID, outcome model.GameOutcome) (*model.BalanceUpdate, error)
}

// GameHandler handles HTTP requests reporting game outcomes.
type GameHandler struct {
	service   GameServiceInterface
	validator *validator.Validate
}

// NewGameHandler creates a new GameHandler with the given service and validator.
func NewGameHandler(svc GameServiceInterface, v *validator.Validate) *GameHandler {
	return &GameHandler{service: svc, validator: v}
}

// ApplyOutcome handles POST /api/games/outcome.
func (h *GameHandler) ApplyOutcome(c *fiber.Ctx) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return unauthorized(c)
	}

	var req model.GameOutcomeRequest
	if ok, err := parseAndValidate(c, h.validator, &req); !ok {
		return err
	}
	game, _ := model.ParseGame(req.Game)

	update, err := h.service.ApplyGameOutcome(c.UserContext(), accountID, model.GameOutcome{
		Game:      game,
		BetAmount: *req.BetAmount,
		WinAmount: *req.WinAmount,
		Result:    req.Result,
	})
	if err != nil {
		return respondError(c, err, "failed to apply game outcome")
	}

	log.Info().
		Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
		Str("account_id", accountID.String()).
		Str("game", string(game)).
		Float64("bet", *req.BetAmount).
		Float64("win", *req.WinAmount).
		Str("balance", update.Balance.StringFixed(2)).
		Msg("game outcome applied")

	return c.JSON(update)
}
