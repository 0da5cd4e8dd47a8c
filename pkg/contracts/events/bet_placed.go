package events

// BetPlaced é publicado no Kafka depois que o ledger aceita a aposta.
type BetPlaced struct {
	BetID    int64  `json:"bet_id"`
	MatchID  string `json:"match_id"`
	BettorID string `json:"bettor_id"`
	Side     string `json:"side"` // "participant-1" | "participant-2"
	Stake    int64  `json:"stake"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}
