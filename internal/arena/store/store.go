package store

import (
	"context"
	"errors"

	"github.com/radieske/live-match-arena/internal/arena/match"
)

// ErrConflict indica que a escrita condicional não encontrou o valor esperado.
// Não é um erro de domínio: o chamador relê a partida e reaplica a regra.
var ErrConflict = errors.New("store: conditional write conflict")

// NewMatch são os dados de criação de uma partida (criação é feita fora do core).
type NewMatch struct {
	Topic          string
	Description    string
	Participant1ID string
	ModeratorID    *string
}

// Store é a API de leitura/escrita do Match Store.
// Toda escrita na linha da partida é condicional (id + valor anterior esperado) e incrementa Version.
type Store interface {
	CreateMatch(ctx context.Context, in NewMatch) (*match.Match, error)
	GetMatch(ctx context.Context, id string) (*match.Match, error)

	// UpdateMatchStatus falha com ErrConflict se o status atual não for expectedPrior.
	UpdateMatchStatus(ctx context.Context, id string, expectedPrior, next match.Status) (*match.Match, error)
	// SetParticipant2IfEmpty retorna match.ErrSlotTaken para o perdedor da corrida.
	SetParticipant2IfEmpty(ctx context.Context, id, userID string) (*match.Match, error)
	// SetWinner grava o vencedor e move para finished na mesma escrita.
	SetWinner(ctx context.Context, id string, expectedStatus match.Status, winnerID *string) (*match.Match, error)

	AppendChat(ctx context.Context, matchID, authorID, body string) (*match.ChatMessage, error)
	// AppendBet reaplica as regras de status/lado no momento da escrita.
	AppendBet(ctx context.Context, matchID, bettorID string, side match.Side, stake int64) (*match.Bet, error)

	// ListRecentChat retorna as últimas limit mensagens em ordem cronológica.
	ListRecentChat(ctx context.Context, matchID string, limit int) ([]match.ChatMessage, error)
	ListBets(ctx context.Context, matchID string) ([]match.Bet, error)

	Ping(ctx context.Context) error
}

// classifyJoinMiss explica por que o CAS do slot de challenger não aplicou.
func classifyJoinMiss(m *match.Match) error {
	if _, taken := m.ParticipantFor(match.SideParticipant2); taken {
		return match.ErrSlotTaken
	}
	if m.Status != match.StatusPending {
		return match.ErrJoinClosed
	}
	return ErrConflict
}

// classifyBetMiss explica por que o insert condicional de aposta não aplicou.
func classifyBetMiss(m *match.Match, side match.Side) error {
	if m.Status == match.StatusFinished {
		return match.ErrMatchClosed
	}
	if _, ok := m.ParticipantFor(side); !ok {
		return match.ErrInvalidSide
	}
	return ErrConflict
}
