package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/live-match-arena/internal/arena-service/dto"
	"github.com/radieske/live-match-arena/internal/arena-service/identity"
	"github.com/radieske/live-match-arena/internal/arena/match"
	"github.com/radieske/live-match-arena/internal/arena/session"
)

// Arena é o serviço visto pelo gateway: comandos (via controller) + ciclo de presença.
type Arena interface {
	session.Arena
	Connect(ctx context.Context, actor match.Actor, matchID, connID string) error
	Heartbeat(ctx context.Context, matchID, connID string)
	Disconnect(ctx context.Context, matchID, connID string)
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 4096

	// tem que ficar abaixo da janela de staleness da presença
	defaultPingInterval = 5 * time.Second
)

// Gateway atende /ws?matchId=...: uma conexão = um viewer = um controller de sessão.
type Gateway struct {
	arena    Arena
	hub      session.Subscriber
	log      *zap.Logger
	upgrader websocket.Upgrader

	// PingInterval deve ser menor que pongWait
	PingInterval time.Duration
	// ChatWindow = RecentChatLimit do serviço; 0 usa session.DefaultChatWindow
	ChatWindow int
	// OnConnections recebe +1/-1 a cada conexão aberta/fechada
	OnConnections func(delta int)
}

// NewGateway cria o gateway com política customizada de origem (CORS)
func NewGateway(arena Arena, hub session.Subscriber, log *zap.Logger, allowOrigin func(r *http.Request) bool) *Gateway {
	return &Gateway{
		arena:        arena,
		hub:          hub,
		log:          log,
		upgrader:     websocket.Upgrader{CheckOrigin: allowOrigin},
		PingInterval: defaultPingInterval,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("matchId")
	if matchID == "" {
		http.Error(w, "matchId is required", http.StatusBadRequest)
		return
	}
	actor := identity.FromRequest(r)

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log := g.log.With(zap.String("match_id", matchID), zap.String("conn_id", connID), zap.String("user_id", actor.UserID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ctrl := session.New(g.arena, g.hub, g.log, matchID, connID, actor)
	if g.ChatWindow > 0 {
		ctrl.ChatWindow = g.ChatWindow
	}
	view, err := ctrl.Activate(ctx)
	if err != nil {
		e := dto.NewError(err)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(dto.ServerFrame{Type: dto.ServerError, Error: e.Error, Message: e.Message})
		return
	}
	defer ctrl.Close()

	if g.OnConnections != nil {
		g.OnConnections(1)
		defer g.OnConnections(-1)
	}
	if err := g.arena.Connect(ctx, actor, matchID, connID); err != nil {
		log.Warn("presence announce failed", zap.Error(err))
	}
	defer func() {
		// ctx já foi cancelado aqui; o clear de presença usa um contexto próprio
		dctx, dcancel := context.WithTimeout(context.Background(), 2*time.Second)
		g.arena.Disconnect(dctx, matchID, connID)
		dcancel()
	}()
	log.Info("viewer connected", zap.String("role", string(actor.Role)))

	ping := g.PingInterval
	if ping <= 0 {
		ping = defaultPingInterval
	}
	c := &client{
		conn:   conn,
		ctrl:   ctrl,
		arena:  g.arena,
		log:    log,
		out:    make(chan dto.ServerFrame, 16),
		ping:   ping,
		closed: make(chan struct{}),
	}
	go ctrl.Run(ctx)
	go c.writePump(ctx, view)
	c.readPump(ctx)
	cancel()
	<-c.closed
	log.Info("viewer disconnected")
}

type client struct {
	conn   *websocket.Conn
	ctrl   *session.Controller
	arena  Arena
	log    *zap.Logger
	out    chan dto.ServerFrame
	ping   time.Duration
	closed chan struct{}
}

// readPump processa os comandos do cliente; só o writePump escreve na conexão.
func (c *client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.arena.Heartbeat(ctx, c.ctrl.MatchID, c.ctrl.ConnID)
		return nil
	})

	for {
		var f dto.ClientFrame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("ws read error", zap.Error(err))
			}
			return
		}
		c.send(ctx, c.dispatch(ctx, f))
	}
}

func (c *client) dispatch(ctx context.Context, f dto.ClientFrame) dto.ServerFrame {
	var (
		result any
		err    error
	)
	switch f.Type {
	case dto.ClientChat:
		result, err = c.ctrl.SendChat(ctx, f.Body)
	case dto.ClientBet:
		var stake int64
		var side match.Side
		if stake, err = dto.ParseStake(f.Stake); err == nil {
			if side, err = match.ParseSide(f.Side); err == nil {
				result, err = c.ctrl.PlaceBet(ctx, side, stake)
			}
		}
	case dto.ClientStatus:
		var next match.Status
		if next, err = match.ParseStatus(f.Status); err == nil {
			result, err = c.ctrl.SetStatus(ctx, next)
		}
	case dto.ClientWinner:
		result, err = c.ctrl.DeclareWinner(ctx, f.WinnerID)
	case dto.ClientJoin:
		result, err = c.ctrl.JoinAsChallenger(ctx)
	case dto.ClientMic:
		err = c.ctrl.ToggleMic(ctx, f.On)
	case dto.ClientPing:
		c.arena.Heartbeat(ctx, c.ctrl.MatchID, c.ctrl.ConnID)
		return dto.ServerFrame{Type: dto.ServerPong, Ref: f.Ref}
	default:
		return dto.ServerFrame{Type: dto.ServerError, Ref: f.Ref, Error: string(match.KindInvalidInput), Message: "unknown frame type"}
	}
	if err != nil {
		e := dto.NewError(err)
		return dto.ServerFrame{Type: dto.ServerError, Ref: f.Ref, Error: e.Error, Message: e.Message}
	}
	return dto.ServerFrame{Type: dto.ServerAck, Ref: f.Ref, Result: result}
}

func (c *client) send(ctx context.Context, f dto.ServerFrame) {
	select {
	case c.out <- f:
	case <-ctx.Done():
	case <-c.closed:
	}
}

// writePump envia o snapshot inicial e depois updates, respostas e pings.
func (c *client) writePump(ctx context.Context, view session.View) {
	ticker := time.NewTicker(c.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.closed)
	}()

	if err := c.write(dto.ServerFrame{Type: dto.ServerSnapshot, View: view}); err != nil {
		return
	}
	updates := c.ctrl.Updates()
	for {
		select {
		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			f := dto.ServerFrame{Type: dto.ServerEvent, Event: u.Event, View: u.View}
			if u.Kind == session.UpdateSnapshot {
				f = dto.ServerFrame{Type: dto.ServerSnapshot, View: u.View}
			}
			if err := c.write(f); err != nil {
				return
			}
		case f := <-c.out:
			if err := c.write(f); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(f dto.ServerFrame) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}
