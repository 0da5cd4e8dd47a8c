package dto

import (
	"encoding/json"

	"github.com/radieske/live-match-arena/pkg/contracts/events"
)

// Frames do cliente WebSocket.
const (
	ClientChat   = "chat"
	ClientBet    = "bet"
	ClientStatus = "status"
	ClientWinner = "winner"
	ClientJoin   = "join"
	ClientMic    = "mic"
	ClientPing   = "ping"
)

// Frames do servidor.
const (
	ServerSnapshot = "snapshot"
	ServerEvent    = "event"
	ServerError    = "error"
	ServerAck      = "ack"
	ServerPong     = "pong"
)

// ClientFrame é um comando recebido pelo WebSocket.
// Ref é ecoado no ack/error para o cliente correlacionar a resposta.
type ClientFrame struct {
	Type     string      `json:"type"`
	Ref      string      `json:"ref,omitempty"`
	Body     string      `json:"body,omitempty"`
	Side     string      `json:"side,omitempty"`
	Stake    json.Number `json:"stake,omitempty"`
	Status   string      `json:"status,omitempty"`
	WinnerID *string     `json:"winnerId,omitempty"`
	On       bool        `json:"on,omitempty"`
}

type ServerFrame struct {
	Type    string           `json:"type"`
	Ref     string           `json:"ref,omitempty"`
	Event   *events.Envelope `json:"event,omitempty"`
	View    any              `json:"view,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
	Message string           `json:"message,omitempty"`
}
