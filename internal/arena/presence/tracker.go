package presence

import (
	"context"
	"sort"
	"time"
)

// Entry é o estado de presença de uma conexão.
type Entry struct {
	ConnID   string    `json:"connId"`
	UserID   string    `json:"userId"`
	Speaking bool      `json:"speaking"`
	SeenAt   time.Time `json:"seenAt"`
}

// Backend guarda as entradas por partida. Implementações: Memory e Redis.
type Backend interface {
	Put(ctx context.Context, matchID string, e Entry) error
	Get(ctx context.Context, matchID, connID string) (Entry, bool, error)
	Delete(ctx context.Context, matchID, connID string) (Entry, bool, error)
	List(ctx context.Context, matchID string) ([]Entry, error)
	// Matches lista as partidas com alguma entrada (usado pelo sweeper).
	Matches(ctx context.Context) ([]string, error)
}

// Removal é uma entrada retirada pelo sweeper, para o broadcast de clear.
type Removal struct {
	MatchID string
	Entry   Entry
}

// Tracker mantém quem está falando em cada partida.
// Cada conexão escreve só a própria entrada (last-write-wins).
// Entradas sem heartbeat por mais de staleAfter são tratadas como ausentes.
type Tracker struct {
	backend    Backend
	staleAfter time.Duration
	now        func() time.Time
}

func NewTracker(b Backend, staleAfter time.Duration) *Tracker {
	return &Tracker{backend: b, staleAfter: staleAfter, now: time.Now}
}

// WithClock troca o relógio (testes).
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func (t *Tracker) StaleAfter() time.Duration { return t.staleAfter }

// Announce grava a tupla completa de presença da conexão.
func (t *Tracker) Announce(ctx context.Context, matchID, connID, userID string, speaking bool) (Entry, error) {
	e := Entry{ConnID: connID, UserID: userID, Speaking: speaking, SeenAt: t.now().UTC()}
	if err := t.backend.Put(ctx, matchID, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Touch renova o heartbeat sem mudar o estado do mic. false se a entrada não existe.
func (t *Tracker) Touch(ctx context.Context, matchID, connID string) (bool, error) {
	e, ok, err := t.backend.Get(ctx, matchID, connID)
	if err != nil || !ok {
		return false, err
	}
	e.SeenAt = t.now().UTC()
	return true, t.backend.Put(ctx, matchID, e)
}

func (t *Tracker) Remove(ctx context.Context, matchID, connID string) (Entry, bool, error) {
	return t.backend.Delete(ctx, matchID, connID)
}

func (t *Tracker) fresh(e Entry, now time.Time) bool {
	return t.staleAfter <= 0 || now.Sub(e.SeenAt) <= t.staleAfter
}

// Entries retorna só as entradas dentro do intervalo de staleness.
func (t *Tracker) Entries(ctx context.Context, matchID string) ([]Entry, error) {
	all, err := t.backend.List(ctx, matchID)
	if err != nil {
		return nil, err
	}
	now := t.now()
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if t.fresh(e, now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnID < out[j].ConnID })
	return out, nil
}

// CurrentSpeakers é a união das conexões vivas de cada usuário com mic aberto.
func (t *Tracker) CurrentSpeakers(ctx context.Context, matchID string) ([]string, error) {
	entries, err := t.Entries(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return Speakers(entries), nil
}

// Speakers reduz entradas a um conjunto ordenado de userIDs.
func Speakers(entries []Entry) []string {
	set := make(map[string]struct{})
	for _, e := range entries {
		if e.Speaking {
			set[e.UserID] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Sweep remove entradas vencidas de todas as partidas.
func (t *Tracker) Sweep(ctx context.Context) ([]Removal, error) {
	if t.staleAfter <= 0 {
		return nil, nil
	}
	ids, err := t.backend.Matches(ctx)
	if err != nil {
		return nil, err
	}
	now := t.now()
	var removed []Removal
	for _, matchID := range ids {
		all, err := t.backend.List(ctx, matchID)
		if err != nil {
			return removed, err
		}
		for _, e := range all {
			if t.fresh(e, now) {
				continue
			}
			// outra réplica pode ter removido antes
			if old, ok, err := t.backend.Delete(ctx, matchID, e.ConnID); err != nil {
				return removed, err
			} else if ok {
				removed = append(removed, Removal{MatchID: matchID, Entry: old})
			}
		}
	}
	return removed, nil
}
