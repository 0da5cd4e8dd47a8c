package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifica o frame de fan-out de uma partida.
type Type string

const (
	TypeMatchUpdated    Type = "match_updated"    // payload: match completo (com version)
	TypeChatPosted      Type = "chat_posted"      // payload: chat message
	TypeBetPlaced       Type = "bet_placed"       // payload: bet
	TypePresenceChanged Type = "presence_changed" // payload: PresenceChanged
	TypeResyncRequired  Type = "resync_required"  // payload: ResyncRequired
)

// Durable informa se o evento vem de uma escrita no store (entrega at-least-once).
func (t Type) Durable() bool {
	return t == TypeMatchUpdated || t == TypeChatPosted || t == TypeBetPlaced
}

// Envelope é o frame publicado no canal da partida.
// Producer identifica a origem (conexão, ledger, moderação) para o FIFO por produtor.
type Envelope struct {
	Type     Type            `json:"type"`
	MatchID  string          `json:"matchId"`
	Producer string          `json:"producer,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Ts       time.Time       `json:"ts"`
}

func NewEnvelope(t Type, matchID, producer string, payload any) (Envelope, error) {
	env := Envelope{Type: t, MatchID: matchID, Producer: producer, Ts: time.Now().UTC()}
	if payload == nil {
		return env, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	env.Payload = b
	return env, nil
}

func (e Envelope) Decode(dst any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	return json.Unmarshal(e.Payload, dst)
}

// PresenceChanged é efêmero: perdido, é corrigido pelo próximo toggle ou resync.
type PresenceChanged struct {
	ConnID   string    `json:"connId"`
	UserID   string    `json:"userId"`
	Speaking bool      `json:"speaking"`
	Removed  bool      `json:"removed,omitempty"` // conexão saiu ou expirou
	SeenAt   time.Time `json:"seenAt"`
}

// ResyncRequired avisa o controller que pode ter perdido eventos.
type ResyncRequired struct {
	Reason string `json:"reason"` // "overflow" | "resubscribe" | "publish_failed"
}
