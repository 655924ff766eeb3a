package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Amounts are JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
}

// MaxMoney is the exclusive upper bound for amounts and balances.
// NUMERIC(20,2) columns overflow at 1e18.
const MaxMoney = 1e15

// Account is a player's balance and cumulative play statistics.
type Account struct {
	ID          uuid.UUID       `json:"id"`
	Username    string          `json:"username"`
	Balance     decimal.Decimal `json:"balance"`
	TotalBets   int64           `json:"totalBets"`
	TotalWins   int64           `json:"totalWins"`
	BiggestWin  decimal.Decimal `json:"biggestWin"`
	CouponsUsed []string        `json:"couponsUsed"`
	GameStats   GameCounters    `json:"gameStats"`
	Version     int64           `json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// HasUsedCoupon reports whether the account already redeemed code.
func (a *Account) HasUsedCoupon(code string) bool {
	return slices.Contains(a.CouponsUsed, code)
}

// Snapshot returns the balance and stats view of the account.
func (a *Account) Snapshot() BalanceUpdate {
	return BalanceUpdate{
		Balance:    a.Balance,
		TotalBets:  a.TotalBets,
		TotalWins:  a.TotalWins,
		BiggestWin: a.BiggestWin,
	}
}

// BalanceUpdate is returned by every mutating ledger operation.
type BalanceUpdate struct {
	Balance    decimal.Decimal `json:"balance"`
	TotalBets  int64           `json:"totalBets"`
	TotalWins  int64           `json:"totalWins"`
	BiggestWin decimal.Decimal `json:"biggestWin"`
}

// Balance is the response for a plain balance lookup.
type Balance struct {
	Balance decimal.Decimal `json:"balance"`
}

// GlobalStats aggregates play statistics across all accounts.
type GlobalStats struct {
	TotalUsers     int64           `json:"totalUsers"`
	TotalBets      int64           `json:"totalBets"`
	TotalWins      int64           `json:"totalWins"`
	BiggestWinEver decimal.Decimal `json:"biggestWinEver"`
}
