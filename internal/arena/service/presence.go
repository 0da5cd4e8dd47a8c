package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/live-match-arena/internal/arena/match"
	"github.com/radieske/live-match-arena/internal/arena/presence"
	"github.com/radieske/live-match-arena/pkg/contracts/events"
)

// Presença não passa pelo store: vai direto do tracker para o canal da partida.

// Connect registra a conexão com mic fechado. Espectador anônimo não entra na presença.
func (s *Service) Connect(ctx context.Context, actor match.Actor, matchID, connID string) error {
	if !actor.Authenticated() {
		return nil
	}
	e, err := s.Presence.Announce(ctx, matchID, connID, actor.UserID, false)
	if err != nil {
		return err
	}
	s.publishPresence(ctx, matchID, e, false)
	return nil
}

// ToggleMic reanuncia a tupla completa de presença da conexão.
func (s *Service) ToggleMic(ctx context.Context, actor match.Actor, matchID, connID string, on bool) error {
	m, err := s.Store.GetMatch(ctx, matchID)
	if err != nil {
		return s.done("mic", err)
	}
	if on {
		if err := match.CheckMic(m, actor); err != nil {
			return s.done("mic", err)
		}
	} else if !actor.Authenticated() {
		return s.done("mic", match.ErrNotAuthenticated)
	}
	e, err := s.Presence.Announce(ctx, matchID, connID, actor.UserID, on)
	if err != nil {
		return s.done("mic", err)
	}
	s.publishPresence(ctx, matchID, e, false)
	return s.done("mic", nil)
}

// Heartbeat renova a entrada da conexão (pong do WebSocket).
func (s *Service) Heartbeat(ctx context.Context, matchID, connID string) {
	if _, err := s.Presence.Touch(ctx, matchID, connID); err != nil {
		s.Log.Debug("presence touch failed", zap.String("match_id", matchID), zap.String("conn_id", connID), zap.Error(err))
	}
}

// Disconnect remove a entrada e avisa os outros viewers.
func (s *Service) Disconnect(ctx context.Context, matchID, connID string) {
	e, ok, err := s.Presence.Remove(ctx, matchID, connID)
	if err != nil {
		s.Log.Warn("presence remove failed", zap.String("match_id", matchID), zap.String("conn_id", connID), zap.Error(err))
		return
	}
	if ok {
		s.publishPresence(ctx, matchID, e, true)
	}
}

// SweepPresence remove conexões sem heartbeat e publica o clear de cada uma.
func (s *Service) SweepPresence(ctx context.Context) (int, error) {
	removed, err := s.Presence.Sweep(ctx)
	for _, r := range removed {
		s.Log.Info("presence expired", zap.String("match_id", r.MatchID), zap.String("conn_id", r.Entry.ConnID), zap.String("user_id", r.Entry.UserID))
		s.publishPresence(ctx, r.MatchID, r.Entry, true)
	}
	return len(removed), err
}

func (s *Service) publishPresence(ctx context.Context, matchID string, e presence.Entry, removed bool) {
	ev := events.PresenceChanged{
		ConnID:   e.ConnID,
		UserID:   e.UserID,
		Speaking: e.Speaking && !removed,
		Removed:  removed,
		SeenAt:   e.SeenAt,
	}
	s.publish(ctx, events.TypePresenceChanged, matchID, producerID("presence", e.ConnID), ev)
}
