package match

import (
	"strings"
	"time"
)

// Status representa o ciclo de vida de uma partida: pending -> live -> voting -> finished.
type Status string

const (
	StatusPending  Status = "pending"
	StatusLive     Status = "live"
	StatusVoting   Status = "voting"
	StatusFinished Status = "finished"
)

// rank define a ordem linear dos status (nenhuma transição volta para trás)
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusLive:
		return 1
	case StatusVoting:
		return 2
	case StatusFinished:
		return 3
	default:
		return -1
	}
}

func (s Status) Valid() bool { return s.rank() >= 0 }

// ParseStatus aceita o nome do status sem diferenciar maiúsculas
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", newError(KindInvalidState, "UNKNOWN_STATUS", "unknown match status "+strings.TrimSpace(v))
	}
	return s, nil
}

// Side identifica o participante apostado.
type Side string

const (
	SideParticipant1 Side = "participant-1"
	SideParticipant2 Side = "participant-2"
)

// ParseSide normaliza o lado recebido do cliente ("participant-1", "p1", "1").
func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "participant-1", "p1", "1":
		return SideParticipant1, nil
	case "participant-2", "p2", "2":
		return SideParticipant2, nil
	default:
		return "", ErrInvalidSide
	}
}

// Match é o registro durável de uma partida.
// Version é incrementado a cada escrita condicional e ordena as atualizações do registro.
type Match struct {
	ID             string     `json:"id"`
	Topic          string     `json:"topic"`
	Description    string     `json:"description"`
	Status         Status     `json:"status"`
	Participant1ID string     `json:"participant1Id"`
	Participant2ID *string    `json:"participant2Id"`
	ModeratorID    *string    `json:"moderatorId"`
	WinnerID       *string    `json:"winnerId"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
}

// ParticipantFor retorna o id do participante do lado informado; false se o slot está vazio.
func (m *Match) ParticipantFor(side Side) (string, bool) {
	switch side {
	case SideParticipant1:
		return m.Participant1ID, m.Participant1ID != ""
	case SideParticipant2:
		if m.Participant2ID == nil || *m.Participant2ID == "" {
			return "", false
		}
		return *m.Participant2ID, true
	default:
		return "", false
	}
}

// SideOf retorna o lado de um participante
func (m *Match) SideOf(userID string) (Side, bool) {
	if userID == "" {
		return "", false
	}
	if userID == m.Participant1ID {
		return SideParticipant1, true
	}
	if m.Participant2ID != nil && userID == *m.Participant2ID {
		return SideParticipant2, true
	}
	return "", false
}

func (m *Match) IsModerator(userID string) bool {
	return userID != "" && m.ModeratorID != nil && *m.ModeratorID == userID
}

// Clone devolve uma cópia sem ponteiros compartilhados.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Participant2ID = cloneStr(m.Participant2ID)
	c.ModeratorID = cloneStr(m.ModeratorID)
	c.WinnerID = cloneStr(m.WinnerID)
	if m.StartedAt != nil {
		t := *m.StartedAt
		c.StartedAt = &t
	}
	return &c
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ChatMessage é imutável depois de criada.
type ChatMessage struct {
	ID        int64     `json:"id"`
	MatchID   string    `json:"matchId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Bet é uma aposta do ledger; o mesmo apostador pode ter várias.
type Bet struct {
	ID        int64     `json:"id"`
	MatchID   string    `json:"matchId"`
	BettorID  string    `json:"bettorId"`
	Side      Side      `json:"side"`
	Stake     int64     `json:"stake"`
	CreatedAt time.Time `json:"createdAt"`
}

// Role é a dica de papel fornecida pelo provedor de identidade.
type Role string

const (
	RoleAnonymous   Role = "anonymous"
	RoleUser        Role = "user"
	RoleParticipant Role = "participant"
	RoleModerator   Role = "moderator"
	RoleAdmin       Role = "administrator"
)

func ParseRole(v string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(v))); r {
	case RoleUser, RoleParticipant, RoleModerator, RoleAdmin:
		return r
	case "admin":
		return RoleAdmin
	default:
		return RoleAnonymous
	}
}

// Actor é quem emite um comando. UserID vazio = espectador anônimo.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) Authenticated() bool { return a.UserID != "" }
