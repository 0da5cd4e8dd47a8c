package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/live-match-arena/internal/arena-service/cache"
	"github.com/radieske/live-match-arena/internal/arena-service/identity"
	"github.com/radieske/live-match-arena/internal/arena/fanout"
	"github.com/radieske/live-match-arena/internal/arena/match"
	"github.com/radieske/live-match-arena/internal/arena/presence"
	"github.com/radieske/live-match-arena/internal/arena/service"
	"github.com/radieske/live-match-arena/internal/arena/store"
)

func newServer(t *testing.T, c *cache.SnapshotCache) (*httptest.Server, *service.Service) {
	t.Helper()
	return newServerWith(t, c, func(svc *service.Service) Arena { return svc })
}

func newServerWith(t *testing.T, c *cache.SnapshotCache, wrap func(*service.Service) Arena) (*httptest.Server, *service.Service) {
	t.Helper()
	svc := service.New(store.NewMemory(), fanout.NewLocalBus(fanout.NewHub(16)),
		presence.NewTracker(presence.NewMemory(), 15*time.Second), zap.NewNop())
	api := &API{Arena: wrap(svc), Log: zap.NewNop()}
	if c != nil {
		api.Cache = c
		svc.Cache = c
	}
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, srv *httptest.Server, method, path, user, role string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if user != "" {
		req.Header.Set(identity.HeaderUserID, user)
		req.Header.Set(identity.HeaderRole, role)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func createMatch(t *testing.T, srv *httptest.Server) match.Match {
	t.Helper()
	resp := do(t, srv, http.MethodPost, "/v1/matches", "A", "participant",
		map[string]any{"topic": "tabs vs spaces", "moderatorId": "mod"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var m match.Match
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestCommandsAndSnapshot(t *testing.T) {
	srv, _ := newServer(t, nil)
	m := createMatch(t, srv)
	base := "/v1/matches/" + m.ID

	if resp := do(t, srv, http.MethodPost, base+"/join", "B", "user", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("join = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, base+"/status", "mod", "moderator", map[string]string{"status": "live"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("live = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, base+"/bets", "C", "user", map[string]any{"side": "participant-1", "stake": 100}); resp.StatusCode != http.StatusCreated {
		t.Fatalf("bet = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, base+"/chat", "C", "user", map[string]string{"body": "go A"}); resp.StatusCode != http.StatusCreated {
		t.Fatalf("chat = %d", resp.StatusCode)
	}

	resp := do(t, srv, http.MethodGet, base, "", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("snapshot = %d", resp.StatusCode)
	}
	var snap service.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Match.Status != match.StatusLive || snap.PotTotals.Total != 100 || len(snap.RecentChat) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newServer(t, nil)
	m := createMatch(t, srv)
	base := "/v1/matches/" + m.ID

	cases := []struct {
		name       string
		method     string
		path       string
		user, role string
		body       any
		status     int
		kind       string
	}{
		{"anonymous chat", http.MethodPost, base + "/chat", "", "", map[string]string{"body": "hi"}, http.StatusForbidden, "PERMISSION_DENIED"},
		{"zero stake", http.MethodPost, base + "/bets", "C", "user", map[string]any{"side": "participant-1", "stake": 0}, http.StatusUnprocessableEntity, "INVALID_BET"},
		{"stake above limit", http.MethodPost, base + "/bets", "C", "user", map[string]any{"side": "participant-1", "stake": json.Number("9223372036854775807")}, http.StatusUnprocessableEntity, "INVALID_BET"},
		{"fractional stake", http.MethodPost, base + "/bets", "C", "user", map[string]any{"side": "participant-1", "stake": 1.5}, http.StatusUnprocessableEntity, "INVALID_BET"},
		{"live without challenger", http.MethodPost, base + "/status", "mod", "moderator", map[string]string{"status": "live"}, http.StatusConflict, "INVALID_STATE"},
		{"viewer moderating", http.MethodPost, base + "/status", "C", "user", map[string]string{"status": "live"}, http.StatusForbidden, "PERMISSION_DENIED"},
		{"unknown match", http.MethodGet, "/v1/matches/nope", "", "", nil, http.StatusNotFound, "NOT_FOUND"},
		{"self challenge", http.MethodPost, base + "/join", "A", "participant", nil, http.StatusForbidden, "PERMISSION_DENIED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, srv, tc.method, tc.path, tc.user, tc.role, tc.body)
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.status)
			}
			var e struct{ Error string }
			_ = json.NewDecoder(resp.Body).Decode(&e)
			if e.Error != tc.kind {
				t.Fatalf("error = %q, want %q", e.Error, tc.kind)
			}
		})
	}

	if resp := do(t, srv, http.MethodPost, base+"/join", "B", "user", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("join = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, base+"/join", "E", "user", nil); resp.StatusCode != http.StatusConflict {
		t.Fatalf("second join = %d", resp.StatusCode)
	}
}

func TestSnapshotCacheInvalidatedOnWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv, _ := newServer(t, cache.New(rdb, time.Minute))
	m := createMatch(t, srv)
	base := "/v1/matches/" + m.ID

	do(t, srv, http.MethodGet, base, "", "", nil)
	if !mr.Exists("arena:snapshot:" + m.ID) {
		t.Fatalf("snapshot was not cached")
	}

	do(t, srv, http.MethodPost, base+"/chat", "C", "user", map[string]string{"body": "first"})
	if mr.Exists("arena:snapshot:" + m.ID) {
		t.Fatalf("cached snapshot survived a chat write")
	}

	var snap service.Snapshot
	resp := do(t, srv, http.MethodGet, base, "", "", nil)
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.RecentChat) != 1 {
		t.Fatalf("stale snapshot served: %+v", snap.RecentChat)
	}
}

// writeDuringRead deixa uma escrita cair entre a leitura do store e o Set no cache.
type writeDuringRead struct {
	*service.Service
	armed atomic.Bool
}

func (w *writeDuringRead) Snapshot(ctx context.Context, matchID string) (*service.Snapshot, error) {
	snap, err := w.Service.Snapshot(ctx, matchID)
	if err != nil || !w.armed.CompareAndSwap(true, false) {
		return snap, err
	}
	if _, err := w.Service.SendChat(ctx, match.Actor{UserID: "C", Role: match.RoleUser}, matchID, "other", "late"); err != nil {
		return nil, err
	}
	return snap, nil
}

func TestSnapshotReadRacingWriteIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	racy := &writeDuringRead{}
	srv, _ := newServerWith(t, cache.New(rdb, time.Minute), func(svc *service.Service) Arena {
		racy.Service = svc
		return racy
	})
	m := createMatch(t, srv)
	base := "/v1/matches/" + m.ID

	racy.armed.Store(true)
	if resp := do(t, srv, http.MethodGet, base, "", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("get = %d", resp.StatusCode)
	}
	if mr.Exists("arena:snapshot:" + m.ID) {
		t.Fatalf("snapshot older than the last write was cached")
	}

	var snap service.Snapshot
	resp := do(t, srv, http.MethodGet, base, "", "", nil)
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.RecentChat) != 1 {
		t.Fatalf("chat = %+v", snap.RecentChat)
	}
}
