package topics

const (
	// Apostas aceitas pela arena
	BetPlaced = "arena_bet_placed"

	// Partidas encerradas (gatilho da liquidação externa)
	MatchFinished = "match_finished"

	// Cotações de pagamento calculadas pelo payout-quote-worker
	PayoutQuoted = "payout_quoted"

	// DLQs
	MatchFinishedDLQ = "match_finished_dlq"
)

// Canais Redis Pub/Sub do fan-out: um canal por partida.
const (
	MatchChannelPrefix  = "arena:match:"
	MatchChannelPattern = MatchChannelPrefix + "*"
)

func MatchChannel(matchID string) string { return MatchChannelPrefix + matchID }

// MatchIDFromChannel é o inverso de MatchChannel.
func MatchIDFromChannel(channel string) (string, bool) {
	if len(channel) <= len(MatchChannelPrefix) || channel[:len(MatchChannelPrefix)] != MatchChannelPrefix {
		return "", false
	}
	return channel[len(MatchChannelPrefix):], true
}
