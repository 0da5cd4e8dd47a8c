package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/live-match-arena/internal/arena/match"
)

// Memory é o Store em processo (STORE_DRIVER=memory, testes).
// Um mutex por partida: escritas em partidas diferentes não competem.
type Memory struct {
	mu      sync.RWMutex
	matches map[string]*memMatch
	nextID  int64
	idMu    sync.Mutex
}

type memMatch struct {
	mu   sync.Mutex
	m    *match.Match
	chat []match.ChatMessage
	bets []match.Bet
}

func NewMemory() *Memory {
	return &Memory{matches: make(map[string]*memMatch)}
}

func (s *Memory) Ping(context.Context) error { return nil }

func (s *Memory) id() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.nextID++
	return s.nextID
}

func (s *Memory) entry(id string) (*memMatch, error) {
	s.mu.RLock()
	e, ok := s.matches[id]
	s.mu.RUnlock()
	if !ok {
		return nil, match.ErrNotFound
	}
	return e, nil
}

func (s *Memory) CreateMatch(_ context.Context, in NewMatch) (*match.Match, error) {
	if strings.TrimSpace(in.Participant1ID) == "" {
		return nil, &match.Error{Kind: match.KindInvalidInput, Code: "PARTICIPANT1_REQUIRED", Reason: "participant-1 is required"}
	}
	m := &match.Match{
		ID:             uuid.NewString(),
		Topic:          in.Topic,
		Description:    in.Description,
		Status:         match.StatusPending,
		Participant1ID: in.Participant1ID,
		Version:        1,
		CreatedAt:      time.Now().UTC(),
	}
	if in.ModeratorID != nil {
		mod := *in.ModeratorID
		m.ModeratorID = &mod
	}
	s.mu.Lock()
	s.matches[m.ID] = &memMatch{m: m}
	s.mu.Unlock()
	return m.Clone(), nil
}

func (s *Memory) GetMatch(_ context.Context, id string) (*match.Match, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m.Clone(), nil
}

func (s *Memory) UpdateMatchStatus(_ context.Context, id string, expectedPrior, next match.Status) (*match.Match, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.m.Status != expectedPrior {
		return nil, ErrConflict
	}
	e.m.Status = next
	if next == match.StatusLive && e.m.StartedAt == nil {
		now := time.Now().UTC()
		e.m.StartedAt = &now
	}
	e.m.Version++
	return e.m.Clone(), nil
}

func (s *Memory) SetParticipant2IfEmpty(_ context.Context, id, userID string) (*match.Match, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.m.Participant2ID != nil || e.m.Status != match.StatusPending {
		return nil, classifyJoinMiss(e.m)
	}
	p2 := userID
	e.m.Participant2ID = &p2
	e.m.Version++
	return e.m.Clone(), nil
}

func (s *Memory) SetWinner(_ context.Context, id string, expectedStatus match.Status, winnerID *string) (*match.Match, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.m.Status != expectedStatus {
		return nil, ErrConflict
	}
	e.m.Status = match.StatusFinished
	e.m.WinnerID = nil
	if winnerID != nil {
		w := *winnerID
		e.m.WinnerID = &w
	}
	e.m.Version++
	return e.m.Clone(), nil
}

func (s *Memory) AppendChat(_ context.Context, matchID, authorID, body string) (*match.ChatMessage, error) {
	e, err := s.entry(matchID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	c := match.ChatMessage{ID: s.id(), MatchID: matchID, AuthorID: authorID, Body: body, CreatedAt: time.Now().UTC()}
	e.chat = append(e.chat, c)
	return &c, nil
}

func (s *Memory) AppendBet(_ context.Context, matchID, bettorID string, side match.Side, stake int64) (*match.Bet, error) {
	if stake <= 0 {
		return nil, match.ErrInvalidStake
	}
	e, err := s.entry(matchID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.m.ParticipantFor(side); !ok || e.m.Status == match.StatusFinished {
		return nil, classifyBetMiss(e.m, side)
	}
	b := match.Bet{ID: s.id(), MatchID: matchID, BettorID: bettorID, Side: side, Stake: stake, CreatedAt: time.Now().UTC()}
	e.bets = append(e.bets, b)
	return &b, nil
}

func (s *Memory) ListRecentChat(_ context.Context, matchID string, limit int) ([]match.ChatMessage, error) {
	e, err := s.entry(matchID)
	if err != nil {
		return []match.ChatMessage{}, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 {
		return []match.ChatMessage{}, nil
	}
	start := 0
	if len(e.chat) > limit {
		start = len(e.chat) - limit
	}
	out := append([]match.ChatMessage(nil), e.chat[start:]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Memory) ListBets(_ context.Context, matchID string) ([]match.Bet, error) {
	e, err := s.entry(matchID)
	if err != nil {
		return []match.Bet{}, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]match.Bet{}, e.bets...), nil
}
