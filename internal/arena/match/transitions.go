package match

import (
	"strings"
	"unicode/utf8"
)

// MaxChatRunes limita o tamanho de uma mensagem de chat.
const MaxChatRunes = 500

// CheckTransition valida uma mudança de status.
// Primeiro o estado (só avança um passo, finished apenas via CheckWinner), depois a permissão.
func CheckTransition(m *Match, actor Actor, next Status) error {
	if !next.Valid() {
		return newError(KindInvalidState, "UNKNOWN_STATUS", "unknown match status "+string(next))
	}
	if next == StatusFinished {
		if m.Status == StatusFinished {
			return alreadyFinished()
		}
		return ErrFinishViaWinner
	}
	if m.Status == StatusFinished {
		return alreadyFinished()
	}
	if next.rank() != m.Status.rank()+1 {
		return newError(KindInvalidState, "ILLEGAL_TRANSITION",
			"cannot move match from "+string(m.Status)+" to "+string(next))
	}

	allowed := m.IsModerator(actor.UserID)
	// administrador da plataforma só pode abrir a partida
	if !allowed && next == StatusLive && actor.Authenticated() && actor.Role == RoleAdmin {
		allowed = true
	}
	if !allowed {
		return ErrNotModerator
	}

	if next == StatusLive {
		if _, ok := m.ParticipantFor(SideParticipant2); !ok {
			return ErrChallengerMissing
		}
	}
	return nil
}

// CheckWinner valida a declaração de vencedor (nil = no contest).
func CheckWinner(m *Match, actor Actor, winnerID *string) error {
	if m.Status != StatusLive && m.Status != StatusVoting {
		if m.Status == StatusFinished {
			return alreadyFinished()
		}
		return ErrWinnerNotAllowed
	}
	if !m.IsModerator(actor.UserID) {
		return ErrNotModerator
	}
	if winnerID == nil {
		return nil
	}
	if _, ok := m.SideOf(*winnerID); !ok {
		return ErrInvalidWinner
	}
	return nil
}

// CheckJoin valida o pedido para ocupar o slot de participant-2.
// A corrida entre dois pedidos é resolvida no store (SetParticipant2IfEmpty).
func CheckJoin(m *Match, actor Actor) error {
	if !actor.Authenticated() {
		return ErrNotAuthenticated
	}
	if actor.UserID == m.Participant1ID {
		return ErrSelfChallenge
	}
	if _, taken := m.ParticipantFor(SideParticipant2); taken {
		return ErrSlotTaken
	}
	if m.Status != StatusPending {
		return ErrJoinClosed
	}
	return nil
}

// CheckChat exige usuário autenticado; o chat fica aberto em qualquer status.
func CheckChat(actor Actor) error {
	if !actor.Authenticated() {
		return ErrNotAuthenticated
	}
	return nil
}

// CheckMic: só participantes e o moderador falam.
func CheckMic(m *Match, actor Actor) error {
	if !actor.Authenticated() {
		return ErrNotAuthenticated
	}
	if _, ok := m.SideOf(actor.UserID); ok || m.IsModerator(actor.UserID) {
		return nil
	}
	return ErrNotParticipant
}

// NormalizeChatBody remove espaços das pontas e aplica os limites.
func NormalizeChatBody(body string) (string, error) {
	b := strings.TrimSpace(body)
	if b == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(b) > MaxChatRunes {
		return "", ErrMessageTooLong
	}
	return b, nil
}

func alreadyFinished() error {
	return newError(KindInvalidState, "MATCH_FINISHED", "match already finished")
}
