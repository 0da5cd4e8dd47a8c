package wager

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/radieske/live-match-arena/internal/arena/match"
)

// MaxStake limita uma aposta; o pot continua em int64.
const MaxStake int64 = 1_000_000_000

// ValidateBet aplica as regras de aposta contra o estado atual da partida.
// Ordem: stake, partida encerrada, lado.
func ValidateBet(m *match.Match, side match.Side, stake int64) error {
	if stake <= 0 || stake > MaxStake {
		return match.ErrInvalidStake
	}
	if m.Status == match.StatusFinished {
		return match.ErrMatchClosed
	}
	if _, ok := m.ParticipantFor(side); !ok {
		return match.ErrInvalidSide
	}
	return nil
}

// Pot é derivado do ledger, nunca armazenado.
type Pot struct {
	Participant1 int64 `json:"participant1"`
	Participant2 int64 `json:"participant2"`
	Total        int64 `json:"total"`
}

func (p Pot) Side(s match.Side) int64 {
	switch s {
	case match.SideParticipant1:
		return p.Participant1
	case match.SideParticipant2:
		return p.Participant2
	default:
		return 0
	}
}

// Add retorna o pot com mais uma aposta (usado pela view incremental da sessão).
func (p Pot) Add(b match.Bet) Pot {
	switch b.Side {
	case match.SideParticipant1:
		p.Participant1 = addStake(p.Participant1, b.Stake)
	case match.SideParticipant2:
		p.Participant2 = addStake(p.Participant2, b.Stake)
	default:
		return p
	}
	p.Total = addStake(p.Participant1, p.Participant2)
	return p
}

// addStake satura em MaxInt64 em vez de dar a volta.
func addStake(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func Totals(bets []match.Bet) Pot {
	var p Pot
	for _, b := range bets {
		p = p.Add(b)
	}
	return p
}

// Odds é o multiplicador pari-mutuel de um lado.
// Available=false significa "no odds yet" (nenhuma stake nesse lado).
type Odds struct {
	Side       match.Side      `json:"side"`
	Available  bool            `json:"available"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Display    string          `json:"display"`
}

// MultiplierPlaces é a precisão exibida dos multiplicadores.
const MultiplierPlaces = 2

func Multiplier(p Pot, side match.Side) Odds {
	stake := p.Side(side)
	if stake <= 0 {
		return Odds{Side: side, Display: "no odds yet"}
	}
	m := decimal.NewFromInt(p.Total).DivRound(decimal.NewFromInt(stake), MultiplierPlaces)
	return Odds{Side: side, Available: true, Multiplier: m, Display: m.StringFixed(MultiplierPlaces)}
}

// Board agrega as odds dos dois lados.
type Board struct {
	Participant1 Odds `json:"participant1"`
	Participant2 Odds `json:"participant2"`
}

func OddsBoard(p Pot) Board {
	return Board{
		Participant1: Multiplier(p, match.SideParticipant1),
		Participant2: Multiplier(p, match.SideParticipant2),
	}
}
