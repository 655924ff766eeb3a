package model

import "strings"

// Game identifies one of the casino games that can report outcomes to the ledger.
type Game string

const (
	GameSlots     Game = "slots"
	GameBlackjack Game = "blackjack"
	GameRoulette  Game = "roulette"
	GameDice      Game = "dice"
	GamePoker     Game = "poker"
	GameKeno      Game = "keno"
)

// Games lists every supported game in display order.
var Games = []Game{GameSlots, GameBlackjack, GameRoulette, GameDice, GamePoker, GameKeno}

// Valid reports whether g is a supported game.
func (g Game) Valid() bool {
	for _, known := range Games {
		if g == known {
			return true
		}
	}
	return false
}

// ParseGame normalizes s and returns the matching game.
func ParseGame(s string) (Game, bool) {
	g := Game(strings.ToLower(strings.TrimSpace(s)))
	return g, g.Valid()
}

// GameCounters counts rounds played per game.
type GameCounters map[Game]int64

// Clone returns an independent copy of c. A nil receiver yields an empty map.
func (c GameCounters) Clone() GameCounters {
	out := make(GameCounters, len(c))
	for g, n := range c {
		out[g] = n
	}
	return out
}
