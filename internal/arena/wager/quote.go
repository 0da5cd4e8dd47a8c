package wager

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/live-match-arena/internal/arena/match"
)

// Quote é o valor que um bet vencedor receberia no pool pari-mutuel.
// O crédito em si é feito pelo ledger externo.
type Quote struct {
	BetID    int64  `json:"betId"`
	BettorID string `json:"bettorId"`
	Stake    int64  `json:"stake"`
	Payout   int64  `json:"payout"`
}

// QuotePayouts calcula floor(stake * total / potVencedor) para cada aposta no lado vencedor.
// No contest (winner vazio) devolve a stake de todo mundo.
func QuotePayouts(bets []match.Bet, winner match.Side) []Quote {
	pot := Totals(bets)
	out := make([]Quote, 0, len(bets))

	if winner == "" {
		for _, b := range bets {
			out = append(out, Quote{BetID: b.ID, BettorID: b.BettorID, Stake: b.Stake, Payout: b.Stake})
		}
		return out
	}

	winPot := pot.Side(winner)
	if winPot == 0 {
		return out
	}
	total := decimal.NewFromInt(pot.Total)
	den := decimal.NewFromInt(winPot)
	for _, b := range bets {
		if b.Side != winner {
			continue
		}
		payout, _ := decimal.NewFromInt(b.Stake).Mul(total).QuoRem(den, 0)
		out = append(out, Quote{BetID: b.ID, BettorID: b.BettorID, Stake: b.Stake, Payout: payout.IntPart()})
	}
	return out
}
