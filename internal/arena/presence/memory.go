package presence

import (
	"context"
	"sync"
)

// Memory é o backend em processo (uma única réplica).
type Memory struct {
	mu      sync.Mutex
	matches map[string]map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{matches: make(map[string]map[string]Entry)}
}

func (m *Memory) Put(_ context.Context, matchID string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conns, ok := m.matches[matchID]
	if !ok {
		conns = make(map[string]Entry)
		m.matches[matchID] = conns
	}
	conns[e.ConnID] = e
	return nil
}

func (m *Memory) Get(_ context.Context, matchID, connID string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.matches[matchID][connID]
	return e, ok, nil
}

func (m *Memory) Delete(_ context.Context, matchID, connID string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conns := m.matches[matchID]
	e, ok := conns[connID]
	if !ok {
		return Entry{}, false, nil
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(m.matches, matchID)
	}
	return e, true, nil
}

func (m *Memory) List(_ context.Context, matchID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.matches[matchID]))
	for _, e := range m.matches[matchID] {
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) Matches(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.matches))
	for id := range m.matches {
		out = append(out, id)
	}
	return out, nil
}
