package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind classifies a ledger entry.
type TransactionKind string

const (
	KindBet     TransactionKind = "bet"
	KindWin     TransactionKind = "win"
	KindDeposit TransactionKind = "deposit"
	KindCoupon  TransactionKind = "coupon"
)

// TransactionDetails carries the round data of a game transaction.
type TransactionDetails struct {
	Bet        decimal.Decimal `json:"bet"`
	WinAmount  decimal.Decimal `json:"winAmount"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Result     string          `json:"result,omitempty"`
}

// Transaction is an immutable record of one balance-affecting event.
// Game is empty for coupon and deposit entries.
type Transaction struct {
	ID            uuid.UUID           `json:"id"`
	AccountID     uuid.UUID           `json:"accountId"`
	Kind          TransactionKind     `json:"type"`
	Game          Game                `json:"game,omitempty"`
	Amount        decimal.Decimal     `json:"amount"`
	BalanceBefore decimal.Decimal     `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal     `json:"balanceAfter"`
	Details       *TransactionDetails `json:"details,omitempty"`
	CreatedAt     time.Time           `json:"timestamp"`
}

// GameAggregate summarizes one game's transactions for an account.
type GameAggregate struct {
	Game         Game            `json:"game"`
	Bets         int64           `json:"bets"`
	Wins         int64           `json:"wins"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	TotalWagered decimal.Decimal `json:"totalWagered"`
	TotalWon     decimal.Decimal `json:"totalWon"`
}

// AggregateByGame computes the per-game summary of txns. A round counts as a
// win when its win amount is positive. Games without transactions are
// omitted; the result is ordered by game name.
func AggregateByGame(txns []Transaction) []GameAggregate {
	index := map[Game]*GameAggregate{}
	for _, txn := range txns {
		if txn.Game == "" {
			continue
		}
		agg, ok := index[txn.Game]
		if !ok {
			agg = &GameAggregate{Game: txn.Game}
			index[txn.Game] = agg
		}

		var bet, win decimal.Decimal
		if txn.Details != nil {
			bet, win = txn.Details.Bet, txn.Details.WinAmount
		}
		if txn.Kind == KindBet {
			agg.Bets++
		}
		if txn.Kind == KindWin || (txn.Kind == KindBet && win.IsPositive()) {
			agg.Wins++
		}
		agg.TotalAmount = agg.TotalAmount.Add(txn.Amount)
		agg.TotalWagered = agg.TotalWagered.Add(bet)
		agg.TotalWon = agg.TotalWon.Add(win)
	}

	games := make([]Game, 0, len(index))
	for g := range index {
		games = append(games, g)
	}
	slices.Sort(games)

	out := make([]GameAggregate, 0, len(games))
	for _, g := range games {
		out = append(out, *index[g])
	}
	return out
}
