package session

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/radieske/live-match-arena/internal/arena/fanout"
	"github.com/radieske/live-match-arena/internal/arena/match"
	"github.com/radieske/live-match-arena/internal/arena/presence"
	"github.com/radieske/live-match-arena/internal/arena/service"
	"github.com/radieske/live-match-arena/internal/arena/wager"
	"github.com/radieske/live-match-arena/pkg/contracts/events"
)

// Arena é o lado autoritativo visto pelo controller (implementado por service.Service).
type Arena interface {
	Snapshot(ctx context.Context, matchID string) (*service.Snapshot, error)
	SendChat(ctx context.Context, actor match.Actor, matchID, producer, body string) (*match.ChatMessage, error)
	PlaceBet(ctx context.Context, actor match.Actor, matchID string, side match.Side, stake int64) (*match.Bet, error)
	SetStatus(ctx context.Context, actor match.Actor, matchID string, next match.Status) (*match.Match, error)
	DeclareWinner(ctx context.Context, actor match.Actor, matchID string, winnerID *string) (*match.Match, error)
	JoinAsChallenger(ctx context.Context, actor match.Actor, matchID string) (*match.Match, error)
	ToggleMic(ctx context.Context, actor match.Actor, matchID, connID string, on bool) error
}

// Subscriber abre a inscrição da conexão no canal da partida.
type Subscriber interface {
	Subscribe(matchID, connID string) *fanout.Subscription
}

// UpdateKind diz como o consumidor deve tratar um Update.
type UpdateKind string

const (
	UpdateSnapshot UpdateKind = "snapshot" // view substituída (ativação ou resync)
	UpdateEvent    UpdateKind = "event"    // evento novo aplicado à view
)

type Update struct {
	Kind  UpdateKind
	Event *events.Envelope
	View  View
}

// View é o estado local derivado de um viewer.
type View struct {
	Match      *match.Match        `json:"match"`
	RecentChat []match.ChatMessage `json:"recentChat"`
	Bets       []match.Bet         `json:"bets"`
	PotTotals  wager.Pot           `json:"potTotals"`
	Odds       wager.Board         `json:"odds"`
	Speakers   []string            `json:"speakers"`
	// Stale: o último resync falhou e a view mostra o último estado conhecido
	Stale bool `json:"stale,omitempty"`
}

// Controller orquestra um viewer em uma partida: cold read + warm tail, merge por id e comandos.
// Cada controller tem a sua própria inscrição; nada é compartilhado entre viewers.
type Controller struct {
	MatchID string
	ConnID  string
	Actor   match.Actor
	// ChatWindow deve ser o mesmo limite do cold read (RecentChatLimit do serviço)
	ChatWindow int

	arena      Arena
	subscriber Subscriber
	log        *zap.Logger

	mu       sync.Mutex
	sub      *fanout.Subscription
	match    *match.Match
	chat     []match.ChatMessage
	chatIDs  map[int64]struct{}
	bets     []match.Bet
	betIDs   map[int64]struct{}
	pot      wager.Pot
	presence map[string]presence.Entry
	stale    bool

	updates chan Update
}

// DefaultChatWindow acompanha o default de RECENT_CHAT_LIMIT.
const DefaultChatWindow = 50

func New(arena Arena, sub Subscriber, log *zap.Logger, matchID, connID string, actor match.Actor) *Controller {
	return &Controller{
		MatchID:    matchID,
		ConnID:     connID,
		Actor:      actor,
		arena:      arena,
		subscriber: sub,
		log:        log.With(zap.String("match_id", matchID), zap.String("conn_id", connID)),
		ChatWindow: DefaultChatWindow,
		updates:    make(chan Update, 64),
	}
}

// Updates é consumido pelo writer da conexão.
func (c *Controller) Updates() <-chan Update { return c.updates }

// Activate inscreve antes de ler: o que chegar entre a inscrição e a leitura fica na fila
// e é descartado pelo merge por id/version quando já estiver no snapshot.
func (c *Controller) Activate(ctx context.Context) (View, error) {
	c.mu.Lock()
	if c.sub == nil {
		c.sub = c.subscriber.Subscribe(c.MatchID, c.ConnID)
	}
	c.mu.Unlock()

	snap, err := c.arena.Snapshot(ctx, c.MatchID)
	if err != nil {
		c.Close()
		return View{}, err
	}
	c.mu.Lock()
	c.replace(snap)
	v := c.viewLocked()
	c.mu.Unlock()
	return v, nil
}

// Run aplica os eventos da inscrição até ctx terminar ou a inscrição fechar.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub == nil {
		return
	}
	defer close(c.updates)

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-sub.C():
			if !ok {
				return
			}
			c.handle(ctx, env)
		}
	}
}

func (c *Controller) handle(ctx context.Context, env events.Envelope) {
	if env.Type == events.TypeResyncRequired {
		c.Resync(ctx)
		return
	}
	c.mu.Lock()
	stale := c.stale
	c.mu.Unlock()
	if stale {
		// view parada no último estado conhecido: tenta reler antes de seguir
		if c.Resync(ctx) {
			return
		}
	}

	applied, err := c.Apply(env)
	if err != nil {
		c.log.Warn("drop malformed event", zap.String("type", string(env.Type)), zap.Error(err))
		return
	}
	if applied {
		c.emit(ctx, Update{Kind: UpdateEvent, Event: &env, View: c.View()})
	}
}

// Resync relê o store e substitui a view. Falhando, mantém a view e marca stale.
func (c *Controller) Resync(ctx context.Context) bool {
	snap, err := c.arena.Snapshot(ctx, c.MatchID)
	if err != nil {
		c.log.Warn("resync failed, keeping last known state", zap.Error(err))
		c.mu.Lock()
		c.stale = true
		c.mu.Unlock()
		return false
	}
	c.mu.Lock()
	c.replace(snap)
	v := c.viewLocked()
	c.mu.Unlock()
	c.emit(ctx, Update{Kind: UpdateSnapshot, View: v})
	return true
}

func (c *Controller) emit(ctx context.Context, u Update) {
	select {
	case c.updates <- u:
	case <-ctx.Done():
	}
}

// Close encerra a inscrição; Run termina em seguida.
func (c *Controller) Close() {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	entries := make([]presence.Entry, 0, len(c.presence))
	for _, e := range c.presence {
		entries = append(entries, e)
	}
	return View{
		Match:      c.match.Clone(),
		RecentChat: append([]match.ChatMessage{}, c.chat...),
		Bets:       append([]match.Bet{}, c.bets...),
		PotTotals:  c.pot,
		Odds:       wager.OddsBoard(c.pot),
		Speakers:   presence.Speakers(entries),
		Stale:      c.stale,
	}
}

func (c *Controller) replace(snap *service.Snapshot) {
	c.match = snap.Match.Clone()
	c.chat = append([]match.ChatMessage{}, snap.RecentChat...)
	sortChat(c.chat)
	c.chatIDs = make(map[int64]struct{}, len(c.chat))
	for _, m := range c.chat {
		c.chatIDs[m.ID] = struct{}{}
	}
	c.bets = append([]match.Bet{}, snap.Bets...)
	c.betIDs = make(map[int64]struct{}, len(c.bets))
	for _, b := range c.bets {
		c.betIDs[b.ID] = struct{}{}
	}
	c.pot = wager.Totals(c.bets)
	c.presence = make(map[string]presence.Entry, len(snap.Presence))
	for _, e := range snap.Presence {
		c.presence[e.ConnID] = e
	}
	c.stale = false
}

var errUnknownEvent = errors.New("unknown event type")

// Apply aplica um evento à view. false quando o evento já estava refletido.
func (c *Controller) Apply(env events.Envelope) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch env.Type {
	case events.TypeMatchUpdated:
		var m match.Match
		if err := env.Decode(&m); err != nil {
			return false, err
		}
		return c.applyMatch(&m), nil
	case events.TypeChatPosted:
		var msg match.ChatMessage
		if err := env.Decode(&msg); err != nil {
			return false, err
		}
		return c.applyChat(msg), nil
	case events.TypeBetPlaced:
		var b match.Bet
		if err := env.Decode(&b); err != nil {
			return false, err
		}
		return c.applyBet(b), nil
	case events.TypePresenceChanged:
		var p events.PresenceChanged
		if err := env.Decode(&p); err != nil {
			return false, err
		}
		return c.applyPresence(p), nil
	default:
		return false, errUnknownEvent
	}
}

// só versões mais novas substituem a partida local
func (c *Controller) applyMatch(m *match.Match) bool {
	if c.match != nil && m.Version <= c.match.Version {
		return false
	}
	c.match = m
	return true
}

func (c *Controller) applyChat(msg match.ChatMessage) bool {
	if _, dup := c.chatIDs[msg.ID]; dup {
		return false
	}
	// mais antiga que a janela local: já saiu da view
	if len(c.chat) >= c.ChatWindow && chatBefore(msg, c.chat[0]) {
		return false
	}
	c.chatIDs[msg.ID] = struct{}{}
	i := sort.Search(len(c.chat), func(i int) bool { return chatBefore(msg, c.chat[i]) })
	c.chat = append(c.chat, match.ChatMessage{})
	copy(c.chat[i+1:], c.chat[i:])
	c.chat[i] = msg
	if over := len(c.chat) - c.ChatWindow; over > 0 {
		for _, old := range c.chat[:over] {
			delete(c.chatIDs, old.ID)
		}
		c.chat = append([]match.ChatMessage{}, c.chat[over:]...)
	}
	return true
}

func (c *Controller) applyBet(b match.Bet) bool {
	if _, dup := c.betIDs[b.ID]; dup {
		return false
	}
	c.betIDs[b.ID] = struct{}{}
	c.bets = append(c.bets, b)
	c.pot = c.pot.Add(b)
	return true
}

func (c *Controller) applyPresence(p events.PresenceChanged) bool {
	cur, ok := c.presence[p.ConnID]
	if ok && p.SeenAt.Before(cur.SeenAt) {
		return false
	}
	if p.Removed {
		if !ok {
			return false
		}
		delete(c.presence, p.ConnID)
		return true
	}
	c.presence[p.ConnID] = presence.Entry{ConnID: p.ConnID, UserID: p.UserID, Speaking: p.Speaking, SeenAt: p.SeenAt}
	return true
}

func chatBefore(a, b match.ChatMessage) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func sortChat(msgs []match.ChatMessage) {
	sort.SliceStable(msgs, func(i, j int) bool { return chatBefore(msgs[i], msgs[j]) })
}
