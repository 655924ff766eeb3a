package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/casino-ledger/internal/model"
	"github.com/fairyhunter13/casino-ledger/internal/service"
	appvalidator "github.com/fairyhunter13/casino-ledger/internal/validator"
)

func setupAccountApp(svc *mockLedger, accountID uuid.UUID) *fiber.App {
	app := fiber.New()
	h := NewAccountHandler(svc, appvalidator.New())
	app.Post("/api/accounts", h.Register)
	app.Get("/api/stats/global", h.GlobalStats)
	app.Get("/api/me", authAs(accountID, false), h.Me)
	app.Get("/api/me/balance", authAs(accountID, false), h.Balance)
	app.Post("/api/me/reset", authAs(accountID, false), h.Reset)
	app.Post("/api/admin/accounts/:id/deposit", authAs(accountID, true), h.Deposit)
	app.Get("/anonymous/me", h.Me)
	return app
}

func TestRegister_Success(t *testing.T) {
	id := uuid.New()
	svc := &mockLedger{
		registerFn: func(ctx context.Context, username string) (*model.Account, error) {
			assert.Equal(t, "alice", username)
			return &model.Account{
				ID:          id,
				Username:    username,
				Balance:     decimal.NewFromInt(10000),
				BiggestWin:  decimal.Zero,
				CouponsUsed: []string{},
				GameStats:   model.GameCounters{},
				CreatedAt:   time.Now(),
			}, nil
		},
	}

	resp := send(t, setupAccountApp(svc, uuid.New()), http.MethodPost, "/api/accounts", `{"username":"alice"}`)

	assert.Equal(t, fiber.StatusCreated, resp.status)
	assert.Equal(t, id.String(), resp.body["id"])
	assert.Equal(t, float64(10000), resp.body["balance"], "amounts are JSON numbers")
	assert.NotContains(t, resp.raw, "version")
}

func TestRegister_Validation(t *testing.T) {
	app := setupAccountApp(&mockLedger{}, uuid.New())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing username", `{}`, "invalid request: username is required"},
		{"blank username", `{"username":"    "}`, "invalid request: username cannot be whitespace only"},
		{"too short", `{"username":"al"}`, "invalid request: username must be at least 3 characters"},
		{"malformed json", `{"username":`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := send(t, app, http.MethodPost, "/api/accounts", tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.status)
			assert.Equal(t, tt.want, resp.body["error"])
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	svc := &mockLedger{
		registerFn: func(ctx context.Context, username string) (*model.Account, error) {
			return nil, service.ErrAccountExists
		},
	}

	resp := send(t, setupAccountApp(svc, uuid.New()), http.MethodPost, "/api/accounts", `{"username":"alice"}`)

	assert.Equal(t, fiber.StatusConflict, resp.status)
	assert.Equal(t, "account already exists", resp.body["error"])
}

func TestMe(t *testing.T) {
	accountID := uuid.New()
	svc := &mockLedger{
		getAccountFn: func(ctx context.Context, id uuid.UUID) (*model.Account, error) {
			assert.Equal(t, accountID, id)
			return &model.Account{ID: id, Username: "bob", Balance: decimal.NewFromInt(900)}, nil
		},
	}

	resp := send(t, setupAccountApp(svc, accountID), http.MethodGet, "/api/me", "")

	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "bob", resp.body["username"])
}

func TestMe_Unauthenticated(t *testing.T) {
	resp := send(t, setupAccountApp(&mockLedger{}, uuid.New()), http.MethodGet, "/anonymous/me", "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
}

func TestMe_NotFound(t *testing.T) {
	svc := &mockLedger{
		getAccountFn: func(ctx context.Context, id uuid.UUID) (*model.Account, error) {
			return nil, service.ErrAccountNotFound
		},
	}

	resp := send(t, setupAccountApp(svc, uuid.New()), http.MethodGet, "/api/me", "")
	assert.Equal(t, fiber.StatusNotFound, resp.status)
}

func TestBalance(t *testing.T) {
	svc := &mockLedger{
		getBalanceFn: func(ctx context.Context, id uuid.UUID) (*model.Balance, error) {
			return &model.Balance{Balance: decimal.RequireFromString("1234.50")}, nil
		},
	}

	resp := send(t, setupAccountApp(svc, uuid.New()), http.MethodGet, "/api/me/balance", "")

	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, 1234.5, resp.body["balance"])
}

func TestReset(t *testing.T) {
	svc := &mockLedger{
		resetFn: func(ctx context.Context, id uuid.UUID) (*model.BalanceUpdate, error) {
			return &model.BalanceUpdate{Balance: decimal.NewFromInt(10000)}, nil
		},
	}

	resp := send(t, setupAccountApp(svc, uuid.New()), http.MethodPost, "/api/me/reset", "")

	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, float64(10000), resp.body["balance"])
	assert.Equal(t, float64(0), resp.body["totalBets"])
}

func TestDeposit(t *testing.T) {
	target := uuid.New()
	svc := &mockLedger{
		depositFn: func(ctx context.Context, id uuid.UUID, amount float64) (*model.BalanceUpdate, error) {
			assert.Equal(t, target, id)
			assert.Equal(t, 250.0, amount)
			return &model.BalanceUpdate{Balance: decimal.NewFromInt(1250)}, nil
		},
	}
	app := setupAccountApp(svc, uuid.New())

	resp := send(t, app, http.MethodPost, fmt.Sprintf("/api/admin/accounts/%s/deposit", target), `{"amount":250}`)
	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, float64(1250), resp.body["balance"])

	resp = send(t, app, http.MethodPost, "/api/admin/accounts/not-a-uuid/deposit", `{"amount":250}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = send(t, app, http.MethodPost, fmt.Sprintf("/api/admin/accounts/%s/deposit", target), `{"amount":0}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, "invalid request: amount must be greater than 0", resp.body["error"])
}

func TestGlobalStats(t *testing.T) {
	svc := &mockLedger{
		globalStatsFn: func(ctx context.Context) (*model.GlobalStats, error) {
			return &model.GlobalStats{TotalUsers: 2, TotalBets: 10, TotalWins: 4, BiggestWinEver: decimal.NewFromInt(7777)}, nil
		},
	}

	resp := send(t, setupAccountApp(svc, uuid.New()), http.MethodGet, "/api/stats/global", "")

	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, float64(2), resp.body["totalUsers"])
	assert.Equal(t, float64(7777), resp.body["biggestWinEver"])
}

func TestGlobalStats_StorageUnavailable(t *testing.T) {
	svc := &mockLedger{
		globalStatsFn: func(ctx context.Context) (*model.GlobalStats, error) {
			return nil, fmt.Errorf("%w: %w", service.ErrStorageUnavailable, errors.New("dial tcp 10.0.0.5:5432: i/o timeout"))
		},
	}

	resp := send(t, setupAccountApp(svc, uuid.New()), http.MethodGet, "/api/stats/global", "")

	assert.Equal(t, fiber.StatusServiceUnavailable, resp.status)
	assert.Equal(t, "service temporarily unavailable", resp.body["error"])
	assert.NotContains(t, resp.raw, "10.0.0.5", "infrastructure detail must not leak")
}
