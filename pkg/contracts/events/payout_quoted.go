package events

import "time"

type PayoutLine struct {
	BetID    int64  `json:"betId"`
	BettorID string `json:"bettorId"`
	Stake    int64  `json:"stake"`
	Payout   int64  `json:"payout"`
}

// Evento emitido pelo payout-quote-worker. O crédito fica com o ledger externo.
type PayoutQuoted struct {
	MatchID    string       `json:"matchId"`
	WinnerSide string       `json:"winnerSide"`
	TotalPot   int64        `json:"totalPot"`
	Lines      []PayoutLine `json:"lines"`
	Ts         time.Time    `json:"ts"`
}
