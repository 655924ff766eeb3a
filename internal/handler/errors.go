package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/casino-ledger/internal/middleware"
	"github.com/fairyhunter13/casino-ledger/internal/service"
)

const unavailableMessage = "service temporarily unavailable"

// errorStatus maps service sentinels to HTTP status codes. The sentinel's
// text is the response message.
var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrInvalidRequest, fiber.StatusBadRequest},
	{service.ErrInvalidAmount, fiber.StatusBadRequest},
	{service.ErrInvalidGame, fiber.StatusBadRequest},
	{service.ErrInsufficientFunds, fiber.StatusBadRequest},
	{service.ErrCouponInactive, fiber.StatusBadRequest},
	{service.ErrCouponExpired, fiber.StatusBadRequest},
	{service.ErrCouponExhausted, fiber.StatusBadRequest},
	{service.ErrCouponAlreadyUsed, fiber.StatusConflict},
	{service.ErrCouponExists, fiber.StatusConflict},
	{service.ErrAccountExists, fiber.StatusConflict},
	{service.ErrAccountNotFound, fiber.StatusNotFound},
	{service.ErrCouponNotFound, fiber.StatusNotFound},
}

// respondError writes the response for a service error. Infrastructure
// failures are logged and hidden behind a generic message.
func respondError(c *fiber.Ctx, err error, msg string) error {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return c.Status(m.status).JSON(fiber.Map{"error": m.err.Error()})
		}
	}

	status := fiber.StatusInternalServerError
	text := "internal server error"
	if service.IsRetryable(err) {
		status = fiber.StatusServiceUnavailable
		text = unavailableMessage
	}

	event := log.Error().
		Err(err).
		Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
		Str("method", c.Method()).
		Str("path", c.Path())
	if accountID, ok := middleware.AccountID(c); ok {
		event = event.Str("account_id", accountID.String())
	}
	event.Msg(msg)

	return c.Status(status).JSON(fiber.Map{"error": text})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
}

// formatValidationError converts validator errors to client-facing messages.
// Field names are the JSON names registered by the validator package.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}

	fe := ve[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return "invalid request: " + field + " is required"
	case "notblank":
		return "invalid request: " + field + " cannot be whitespace only"
	case "max":
		return fmt.Sprintf("invalid request: %s exceeds maximum length of %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("invalid request: %s must be at least %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("invalid request: %s must be at least %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("invalid request: %s must be greater than %s", field, fe.Param())
	case "game":
		return "invalid request: unknown game"
	case "money":
		return "invalid request: " + field + " is not a valid amount"
	default:
		return "invalid request: " + field + " is invalid"
	}
}

// parseAndValidate decodes the JSON body into req and validates it.
// On failure it writes the 400 response and returns false.
func parseAndValidate(c *fiber.Ctx, v *validator.Validate, req any) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := v.Struct(req); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}
	return true, nil
}
