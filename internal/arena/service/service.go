package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/live-match-arena/internal/arena/fanout"
	"github.com/radieske/live-match-arena/internal/arena/match"
	"github.com/radieske/live-match-arena/internal/arena/presence"
	"github.com/radieske/live-match-arena/internal/arena/settlement"
	"github.com/radieske/live-match-arena/internal/arena/store"
	"github.com/radieske/live-match-arena/internal/arena/wager"
	"github.com/radieske/live-match-arena/pkg/contracts/events"
)

// Invalidator descarta snapshots em cache depois de uma escrita.
type Invalidator interface {
	Invalidate(ctx context.Context, matchID string) error
}

// Service aplica os comandos da arena de forma autoritativa:
// regra de domínio -> escrita condicional no store -> publicação no fan-out.
type Service struct {
	Store    store.Store
	Bus      fanout.Bus
	Presence *presence.Tracker
	Hook     settlement.Hook
	Bets     settlement.BetObserver
	Cache    Invalidator
	Log      *zap.Logger

	RecentChatLimit int

	OnCommand func(cmd, outcome string)
}

func New(st store.Store, bus fanout.Bus, tr *presence.Tracker, log *zap.Logger) *Service {
	return &Service{
		Store:           st,
		Bus:             bus,
		Presence:        tr,
		Hook:            settlement.Nop{},
		Bets:            settlement.Nop{},
		Log:             log,
		RecentChatLimit: 50,
	}
}

// Snapshot é o read-model entregue ao viewer.
type Snapshot struct {
	Match      *match.Match        `json:"match"`
	RecentChat []match.ChatMessage `json:"recentChat"`
	Bets       []match.Bet         `json:"bets"`
	PotTotals  wager.Pot           `json:"potTotals"`
	Odds       wager.Board         `json:"odds"`
	Speakers   []string            `json:"speakers"`
	Presence   []presence.Entry    `json:"presence"`
}

func (s *Service) Snapshot(ctx context.Context, matchID string) (*Snapshot, error) {
	m, err := s.Store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	chat, err := s.Store.ListRecentChat(ctx, matchID, s.RecentChatLimit)
	if err != nil {
		return nil, err
	}
	bets, err := s.Store.ListBets(ctx, matchID)
	if err != nil {
		return nil, err
	}
	entries, err := s.Presence.Entries(ctx, matchID)
	if err != nil {
		// presença é best-effort: snapshot sai sem speakers
		s.Log.Warn("presence read failed", zap.String("match_id", matchID), zap.Error(err))
		entries = nil
	}
	pot := wager.Totals(bets)
	return &Snapshot{
		Match:      m,
		RecentChat: chat,
		Bets:       bets,
		PotTotals:  pot,
		Odds:       wager.OddsBoard(pot),
		Speakers:   presence.Speakers(entries),
		Presence:   entries,
	}, nil
}

func (s *Service) CreateMatch(ctx context.Context, actor match.Actor, in store.NewMatch) (*match.Match, error) {
	if !actor.Authenticated() {
		return nil, s.done("create", match.ErrNotAuthenticated)
	}
	if strings.TrimSpace(in.Participant1ID) == "" {
		in.Participant1ID = actor.UserID
	}
	in.Topic = strings.TrimSpace(in.Topic)
	if in.Topic == "" {
		return nil, s.done("create", &match.Error{Kind: match.KindInvalidInput, Code: "TOPIC_REQUIRED", Reason: "topic is required"})
	}
	m, err := s.Store.CreateMatch(ctx, in)
	if err != nil {
		return nil, s.done("create", err)
	}
	s.Log.Info("match created", zap.String("match_id", m.ID), zap.String("participant1_id", m.Participant1ID))
	return m, s.done("create", nil)
}

func (s *Service) SendChat(ctx context.Context, actor match.Actor, matchID, producer, body string) (*match.ChatMessage, error) {
	if err := match.CheckChat(actor); err != nil {
		return nil, s.done("chat", err)
	}
	text, err := match.NormalizeChatBody(body)
	if err != nil {
		return nil, s.done("chat", err)
	}
	var msg *match.ChatMessage
	err = s.retry(ctx, "append chat", func() error {
		var werr error
		msg, werr = s.Store.AppendChat(ctx, matchID, actor.UserID, text)
		return werr
	})
	if err != nil {
		return nil, s.done("chat", err)
	}
	s.publish(ctx, events.TypeChatPosted, matchID, producerID("conn", producer), msg)
	return msg, s.done("chat", nil)
}

func (s *Service) PlaceBet(ctx context.Context, actor match.Actor, matchID string, side match.Side, stake int64) (*match.Bet, error) {
	if !actor.Authenticated() {
		return nil, s.done("bet", match.ErrNotAuthenticated)
	}
	var bet *match.Bet
	err := s.retry(ctx, "append bet", func() error {
		m, err := s.Store.GetMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if err := wager.ValidateBet(m, side, stake); err != nil {
			return err
		}
		bet, err = s.Store.AppendBet(ctx, matchID, actor.UserID, side, stake)
		return err
	})
	if err != nil {
		return nil, s.done("bet", err)
	}
	s.publish(ctx, events.TypeBetPlaced, matchID, "ledger", bet)
	s.Bets.OnBetPlaced(*bet)
	return bet, s.done("bet", nil)
}

func (s *Service) SetStatus(ctx context.Context, actor match.Actor, matchID string, next match.Status) (*match.Match, error) {
	var updated *match.Match
	err := s.retry(ctx, "update status", func() error {
		m, err := s.Store.GetMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if err := match.CheckTransition(m, actor, next); err != nil {
			return err
		}
		updated, err = s.Store.UpdateMatchStatus(ctx, matchID, m.Status, next)
		return err
	})
	if err != nil {
		return nil, s.done("status", err)
	}
	s.Log.Info("match status changed", zap.String("match_id", matchID), zap.String("status", string(next)), zap.String("user_id", actor.UserID))
	s.publish(ctx, events.TypeMatchUpdated, matchID, "match", updated)
	return updated, s.done("status", nil)
}

// DeclareWinner encerra a partida; winnerID nil = no contest.
// O hook de liquidação dispara só para a escrita que efetivamente moveu para finished.
func (s *Service) DeclareWinner(ctx context.Context, actor match.Actor, matchID string, winnerID *string) (*match.Match, error) {
	var (
		updated *match.Match
		side    match.Side
	)
	err := s.retry(ctx, "set winner", func() error {
		m, err := s.Store.GetMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if err := match.CheckWinner(m, actor, winnerID); err != nil {
			return err
		}
		side = ""
		if winnerID != nil {
			side, _ = m.SideOf(*winnerID)
		}
		updated, err = s.Store.SetWinner(ctx, matchID, m.Status, winnerID)
		return err
	})
	if err != nil {
		return nil, s.done("winner", err)
	}
	s.Log.Info("match finished", zap.String("match_id", matchID), zap.String("winner_side", string(side)))
	s.publish(ctx, events.TypeMatchUpdated, matchID, "match", updated)
	s.Hook.OnMatchFinished(updated.Clone(), side)
	return updated, s.done("winner", nil)
}

func (s *Service) JoinAsChallenger(ctx context.Context, actor match.Actor, matchID string) (*match.Match, error) {
	var updated *match.Match
	err := s.retry(ctx, "join", func() error {
		m, err := s.Store.GetMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if err := match.CheckJoin(m, actor); err != nil {
			return err
		}
		updated, err = s.Store.SetParticipant2IfEmpty(ctx, matchID, actor.UserID)
		return err
	})
	if err != nil {
		return nil, s.done("join", err)
	}
	s.Log.Info("challenger joined", zap.String("match_id", matchID), zap.String("user_id", actor.UserID))
	s.publish(ctx, events.TypeMatchUpdated, matchID, "match", updated)
	return updated, s.done("join", nil)
}

// retry re-executa fn uma vez quando a falha não é de domínio (conexão, conflito).
// fn relê a partida, então a regra é reavaliada contra o estado novo.
func (s *Service) retry(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil || match.IsDomain(err) {
		return err
	}
	s.Log.Warn("store operation failed, retrying once", zap.String("op", op), zap.Error(err))
	if ctx.Err() == nil {
		err = fn()
		if err == nil || match.IsDomain(err) {
			return err
		}
	}
	s.Log.Error("store operation failed", zap.String("op", op), zap.Error(err))
	return match.ErrUnavailable
}

// publish nunca falha o comando: o registro já é durável e um gap vira resync.
func (s *Service) publish(ctx context.Context, t events.Type, matchID, producer string, payload any) {
	if t.Durable() && s.Cache != nil {
		if err := s.Cache.Invalidate(ctx, matchID); err != nil {
			s.Log.Warn("snapshot cache invalidate failed", zap.String("match_id", matchID), zap.Error(err))
		}
	}
	env, err := events.NewEnvelope(t, matchID, producer, payload)
	if err != nil {
		s.Log.Error("build envelope", zap.Error(err))
		return
	}
	if err := s.Bus.Publish(ctx, env); err != nil {
		s.Log.Warn("fanout publish failed", zap.String("match_id", matchID), zap.String("type", string(t)), zap.Error(err))
	}
}

func (s *Service) done(cmd string, err error) error {
	if s.OnCommand != nil {
		outcome := "ok"
		if err != nil {
			outcome = string(match.KindOf(err))
			if outcome == "" {
				outcome = "error"
			}
		}
		s.OnCommand(cmd, outcome)
	}
	return err
}

func producerID(kind, id string) string {
	if id == "" {
		return kind
	}
	return kind + ":" + id
}
