package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/casino-ledger/internal/middleware"
	"github.com/fairyhunter13/casino-ledger/internal/model"
)

// mockLedger is a mock implementation of the ledger-facing handler interfaces.
type mockLedger struct {
	registerFn     func(ctx context.Context, username string) (*model.Account, error)
	getAccountFn   func(ctx context.Context, accountID uuid.UUID) (*model.Account, error)
	getBalanceFn   func(ctx context.Context, accountID uuid.UUID) (*model.Balance, error)
	resetFn        func(ctx context.Context, accountID uuid.UUID) (*model.BalanceUpdate, error)
	depositFn      func(ctx context.Context, accountID uuid.UUID, amount float64) (*model.BalanceUpdate, error)
	globalStatsFn  func(ctx context.Context) (*model.GlobalStats, error)
	applyOutcomeFn func(ctx context.Context, accountID uuid.UUID, outcome model.GameOutcome) (*model.BalanceUpdate, error)
	redeemFn       func(ctx context.Context, accountID uuid.UUID, code string) (*model.RedeemResult, error)
	historyFn      func(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Transaction, error)
	aggregateFn    func(ctx context.Context, accountID uuid.UUID) ([]model.GameAggregate, error)
}

func (m *mockLedger) RegisterAccount(ctx context.Context, username string) (*model.Account, error) {
	return m.registerFn(ctx, username)
}

func (m *mockLedger) GetAccount(ctx context.Context, accountID uuid.UUID) (*model.Account, error) {
	return m.getAccountFn(ctx, accountID)
}

func (m *mockLedger) GetBalance(ctx context.Context, accountID uuid.UUID) (*model.Balance, error) {
	return m.getBalanceFn(ctx, accountID)
}

func (m *mockLedger) ResetAccount(ctx context.Context, accountID uuid.UUID) (*model.BalanceUpdate, error) {
	return m.resetFn(ctx, accountID)
}

func (m *mockLedger) Deposit(ctx context.Context, accountID uuid.UUID, amount float64) (*model.BalanceUpdate, error) {
	return m.depositFn(ctx, accountID, amount)
}

func (m *mockLedger) GetGlobalStats(ctx context.Context) (*model.GlobalStats, error) {
	return m.globalStatsFn(ctx)
}

func (m *mockLedger) ApplyGameOutcome(ctx context.Context, accountID uuid.UUID, outcome model.GameOutcome) (*model.BalanceUpdate, error) {
	return m.applyOutcomeFn(ctx, accountID, outcome)
}

func (m *mockLedger) RedeemCoupon(ctx context.Context, accountID uuid.UUID, code string) (*model.RedeemResult, error) {
	return m.redeemFn(ctx, accountID, code)
}

func (m *mockLedger) GetHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Transaction, error) {
	return m.historyFn(ctx, accountID, limit)
}

func (m *mockLedger) GetAggregateStats(ctx context.Context, accountID uuid.UUID) ([]model.GameAggregate, error) {
	return m.aggregateFn(ctx, accountID)
}

// mockCouponService is a mock implementation of CouponServiceInterface.
type mockCouponService struct {
	createFn     func(ctx context.Context, req *model.CreateCouponRequest) (*model.Coupon, error)
	listActiveFn func(ctx context.Context) ([]model.Coupon, error)
	deactivateFn func(ctx context.Context, code string) error
}

func (m *mockCouponService) Create(ctx context.Context, req *model.CreateCouponRequest) (*model.Coupon, error) {
	return m.createFn(ctx, req)
}

func (m *mockCouponService) ListActive(ctx context.Context) ([]model.Coupon, error) {
	return m.listActiveFn(ctx)
}

func (m *mockCouponService) Deactivate(ctx context.Context, code string) error {
	return m.deactivateFn(ctx, code)
}

// authAs injects an authenticated caller the way middleware.Authenticate does.
func authAs(accountID uuid.UUID, admin bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		middleware.SetAccount(c, accountID, admin)
		return c.Next()
	}
}

type testResponse struct {
	status int
	body   map[string]any
	raw    string
}

func send(t *testing.T, app *fiber.App, method, path, body string) testResponse {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := testResponse{status: resp.StatusCode, raw: string(raw)}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

