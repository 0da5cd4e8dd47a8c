package fanout

import (
	"sync"

	"github.com/radieske/live-match-arena/pkg/contracts/events"
)

// Motivos de resync enviados no frame resync_required.
const (
	GapOverflow      = "overflow"
	GapResubscribe   = "resubscribe"
	GapPublishFailed = "publish_failed"
)

// Hub entrega os frames de cada partida às conexões inscritas naquele processo.
// matches: mapeia matchID -> connID -> subscription
//
// Deliver nunca bloqueia: cada inscrição tem sua própria fila, e uma fila cheia
// descarta o frame e enfileira um resync_required para aquela conexão apenas.
type Hub struct {
	mu      sync.RWMutex
	matches map[string]map[string]*Subscription
	buffer  int

	// callbacks de métricas (opcionais)
	OnDelivered   func(t events.Type)
	OnDropped     func(matchID string)
	OnGap         func(reason string)
	OnSubscribers func(delta int)
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{matches: make(map[string]map[string]*Subscription), buffer: buffer}
}

// Subscription é a fila de uma conexão em uma partida.
type Subscription struct {
	MatchID string
	ConnID  string

	hub *Hub
	ch  chan events.Envelope

	mu        sync.Mutex
	closed    bool
	gapQueued bool // já existe um resync na vaga reservada
}

// C é o canal de leitura; fechado quando a inscrição termina.
func (s *Subscription) C() <-chan events.Envelope { return s.ch }

// Close remove a inscrição do hub. Pode ser chamado mais de uma vez.
func (s *Subscription) Close() { s.hub.Unsubscribe(s.MatchID, s.ConnID) }

// Subscribe é idempotente por conexão: a segunda chamada devolve a mesma inscrição.
func (h *Hub) Subscribe(matchID, connID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.matches[matchID]
	if !ok {
		conns = make(map[string]*Subscription)
		h.matches[matchID] = conns
	}
	if sub, ok := conns[connID]; ok {
		return sub
	}
	// uma vaga extra fica reservada para o resync_required
	sub := &Subscription{MatchID: matchID, ConnID: connID, hub: h, ch: make(chan events.Envelope, h.buffer+1)}
	conns[connID] = sub
	if h.OnSubscribers != nil {
		h.OnSubscribers(1)
	}
	return sub
}

func (h *Hub) Unsubscribe(matchID, connID string) {
	h.mu.Lock()
	conns := h.matches[matchID]
	sub, ok := conns[connID]
	if ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.matches, matchID)
		}
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	sub.mu.Lock()
	sub.closed = true
	close(sub.ch)
	sub.mu.Unlock()
	if h.OnSubscribers != nil {
		h.OnSubscribers(-1)
	}
}

// Subscribers retorna quantas conexões locais seguem a partida.
func (h *Hub) Subscribers(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.matches[matchID])
}

// Deliver entrega o frame a todas as inscrições locais da partida.
func (h *Hub) Deliver(env events.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.matches[env.MatchID] {
		if sub.offer(env) {
			if h.OnDelivered != nil {
				h.OnDelivered(env.Type)
			}
			continue
		}
		if h.OnDropped != nil {
			h.OnDropped(env.MatchID)
		}
	}
}

// SignalGap pede resync às inscrições da partida; matchID vazio = todas.
func (h *Hub) SignalGap(matchID, reason string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if matchID != "" {
		for _, sub := range h.matches[matchID] {
			h.gap(sub, reason)
		}
		return
	}
	for _, conns := range h.matches {
		for _, sub := range conns {
			h.gap(sub, reason)
		}
	}
}

func (h *Hub) gap(sub *Subscription, reason string) {
	if sub.queueGap(reason) && h.OnGap != nil {
		h.OnGap(reason)
	}
}

func (s *Subscription) offer(env events.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if len(s.ch) < s.hub.buffer {
		s.ch <- env
		s.gapQueued = false
		return true
	}
	if !s.gapQueued {
		s.ch <- resyncFrame(s.MatchID, GapOverflow)
		s.gapQueued = true
		if s.hub.OnGap != nil {
			s.hub.OnGap(GapOverflow)
		}
	}
	return false
}

func (s *Subscription) queueGap(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gapQueued {
		return false
	}
	s.ch <- resyncFrame(s.MatchID, reason)
	// só conta como reservado se ocupou a vaga extra
	s.gapQueued = len(s.ch) > s.hub.buffer
	return true
}

func resyncFrame(matchID, reason string) events.Envelope {
	env, _ := events.NewEnvelope(events.TypeResyncRequired, matchID, "fanout", events.ResyncRequired{Reason: reason})
	return env
}
