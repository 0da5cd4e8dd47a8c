package dto

import (
	"encoding/json"
	"errors"

	"github.com/radieske/live-match-arena/internal/arena/match"
	"github.com/radieske/live-match-arena/internal/arena/wager"
)

type CreateMatchRequest struct {
	Topic          string  `json:"topic"`
	Description    string  `json:"description"`
	Participant1ID string  `json:"participant1Id"`
	ModeratorID    *string `json:"moderatorId"`
}

type ChatRequest struct {
	Body string `json:"body"`
}

// BetRequest: stake chega como número JSON e precisa ser inteiro positivo.
type BetRequest struct {
	Side  string      `json:"side"`
	Stake json.Number `json:"stake"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

// WinnerRequest: winnerId null = no contest.
type WinnerRequest struct {
	WinnerID *string `json:"winnerId"`
}

// ErrorResponse é o corpo de erro do REST e do frame "error" do WebSocket.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ParseStake aceita só inteiros entre 1 e wager.MaxStake; qualquer outra coisa é InvalidStake.
func ParseStake(n json.Number) (int64, error) {
	v, err := n.Int64()
	if err != nil || v <= 0 || v > wager.MaxStake {
		return 0, match.ErrInvalidStake
	}
	return v, nil
}

// NewError expõe o kind e o motivo legível; erros de infraestrutura ficam genéricos.
func NewError(err error) ErrorResponse {
	var e *match.Error
	if errors.As(err, &e) {
		return ErrorResponse{Error: string(e.Kind), Message: e.Reason}
	}
	return ErrorResponse{Error: "INTERNAL", Message: "something went wrong, try again"}
}
