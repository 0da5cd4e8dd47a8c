package events

// MatchFinished é emitido uma única vez, quando a partida chega em finished.
// WinnerSide vazio = no contest.
type MatchFinished struct {
	MatchID    string  `json:"match_id"`
	WinnerID   *string `json:"winner_id"`
	WinnerSide string  `json:"winner_side"`
	Version    int64   `json:"version"`
	TsUnixMs   int64   `json:"ts_unix_ms"`
}
