package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/live-match-arena/internal/arena-service/dto"
)

var chatLines = []string{
	"gg", "that argument was weak", "source?", "go go go", "ok that was a good point",
	"mods asleep", "bet placed, no regrets", "lol", "he's dodging the question", "W take",
}

// Viewer simula um espectador conectado ao WebSocket da arena.
// Autenticado (UserID preenchido), ele também conversa, aposta e liga o mic quando pode.
type Viewer struct {
	BaseURL string // ws://host:port/ws
	MatchID string
	UserID  string // vazio = anônimo
	Role    string
	Every   time.Duration // intervalo entre ações
	Log     *zap.Logger
	Rand    *rand.Rand

	OnFrame  func(frameType string)
	OnAction func(action string)
}

// URL monta o endereço com matchId e identidade na query.
func (v *Viewer) URL() (string, error) {
	u, err := url.Parse(v.BaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("matchId", v.MatchID)
	if v.UserID != "" {
		q.Set("userId", v.UserID)
		q.Set("role", v.Role)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Start mantém o viewer conectado até ctx terminar, reconectando com backoff.
func (v *Viewer) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := v.connectAndPlay(ctx); err != nil {
				v.Log.Warn("viewer connection closed", zap.String("user_id", v.UserID), zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(3 * time.Second): // Aguarda antes de tentar reconectar
				}
			}
		}
	}
}

func (v *Viewer) connectAndPlay(ctx context.Context) error {
	addr, err := v.URL()
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	readErr := make(chan error, 1)
	go func() { readErr <- v.readLoop(conn) }()

	if v.UserID == "" || v.Every <= 0 {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		}
	}

	ticker := time.NewTicker(v.Every)
	defer ticker.Stop()
	ref := 0
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		case err := <-readErr:
			return err
		case <-ticker.C:
			ref++
			f := v.nextAction(strconv.Itoa(ref))
			if err := conn.WriteJSON(f); err != nil {
				return fmt.Errorf("write %s: %w", f.Type, err)
			}
			if v.OnAction != nil {
				v.OnAction(f.Type)
			}
		}
	}
}

func (v *Viewer) readLoop(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		var f dto.ServerFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			v.Log.Warn("invalid frame", zap.Error(err))
			continue
		}
		if f.Type == dto.ServerError {
			v.Log.Debug("command rejected", zap.String("ref", f.Ref), zap.String("error", f.Error), zap.String("message", f.Message))
		}
		if v.OnFrame != nil {
			v.OnFrame(f.Type)
		}
	}
}

// nextAction sorteia o próximo comando: chat na maioria das vezes, às vezes aposta ou mic.
func (v *Viewer) nextAction(ref string) dto.ClientFrame {
	switch n := v.Rand.Intn(10); {
	case n < 6:
		return dto.ClientFrame{Type: dto.ClientChat, Ref: ref, Body: chatLines[v.Rand.Intn(len(chatLines))]}
	case n < 9:
		side := "participant-1"
		if v.Rand.Intn(2) == 1 {
			side = "participant-2"
		}
		stake := 10 * (1 + v.Rand.Intn(50))
		return dto.ClientFrame{Type: dto.ClientBet, Ref: ref, Side: side, Stake: json.Number(strconv.Itoa(stake))}
	default:
		return dto.ClientFrame{Type: dto.ClientMic, Ref: ref, On: v.Rand.Intn(2) == 1}
	}
}
