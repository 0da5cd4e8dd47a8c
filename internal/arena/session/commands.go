package session

import (
	"context"

	"github.com/radieske/live-match-arena/internal/arena/match"
)

// Os comandos são rejeitados localmente quando o papel não permite (só UX).
// A regra autoritativa é reaplicada pelo serviço; o resultado chega à view pelo canal da partida.

func (c *Controller) SendChat(ctx context.Context, body string) (*match.ChatMessage, error) {
	if err := match.CheckChat(c.Actor); err != nil {
		return nil, err
	}
	if _, err := match.NormalizeChatBody(body); err != nil {
		return nil, err
	}
	return c.arena.SendChat(ctx, c.Actor, c.MatchID, c.ConnID, body)
}

func (c *Controller) PlaceBet(ctx context.Context, side match.Side, stake int64) (*match.Bet, error) {
	if !c.Actor.Authenticated() {
		return nil, match.ErrNotAuthenticated
	}
	if stake <= 0 {
		return nil, match.ErrInvalidStake
	}
	return c.arena.PlaceBet(ctx, c.Actor, c.MatchID, side, stake)
}

func (c *Controller) SetStatus(ctx context.Context, next match.Status) (*match.Match, error) {
	if !c.canModerate(next == match.StatusLive) {
		return nil, match.ErrNotModerator
	}
	return c.arena.SetStatus(ctx, c.Actor, c.MatchID, next)
}

func (c *Controller) DeclareWinner(ctx context.Context, winnerID *string) (*match.Match, error) {
	if !c.canModerate(false) {
		return nil, match.ErrNotModerator
	}
	return c.arena.DeclareWinner(ctx, c.Actor, c.MatchID, winnerID)
}

func (c *Controller) JoinAsChallenger(ctx context.Context) (*match.Match, error) {
	if !c.Actor.Authenticated() {
		return nil, match.ErrNotAuthenticated
	}
	c.mu.Lock()
	m := c.match
	c.mu.Unlock()
	if m != nil && m.Participant1ID == c.Actor.UserID {
		return nil, match.ErrSelfChallenge
	}
	return c.arena.JoinAsChallenger(ctx, c.Actor, c.MatchID)
}

func (c *Controller) ToggleMic(ctx context.Context, on bool) error {
	if !c.Actor.Authenticated() {
		return match.ErrNotAuthenticated
	}
	if on && !c.canSpeak() {
		return match.ErrNotParticipant
	}
	return c.arena.ToggleMic(ctx, c.Actor, c.MatchID, c.ConnID, on)
}

// canModerate usa a dica de papel ou o moderador da view local.
func (c *Controller) canModerate(openingMatch bool) bool {
	if !c.Actor.Authenticated() {
		return false
	}
	switch c.Actor.Role {
	case match.RoleModerator:
		return true
	case match.RoleAdmin:
		if openingMatch {
			return true
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.match != nil && c.match.IsModerator(c.Actor.UserID)
}

func (c *Controller) canSpeak() bool {
	if c.Actor.Role == match.RoleParticipant || c.Actor.Role == match.RoleModerator {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.match == nil {
		return false
	}
	_, ok := c.match.SideOf(c.Actor.UserID)
	return ok || c.match.IsModerator(c.Actor.UserID)
}
