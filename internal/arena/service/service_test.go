package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/live-match-arena/internal/arena/fanout"
	"github.com/radieske/live-match-arena/internal/arena/match"
	"github.com/radieske/live-match-arena/internal/arena/presence"
	"github.com/radieske/live-match-arena/internal/arena/store"
	"github.com/radieske/live-match-arena/pkg/contracts/events"
)

type finishedCall struct {
	matchID string
	side    match.Side
}

type harness struct {
	svc      *Service
	hub      *fanout.Hub
	store    store.Store
	mu       sync.Mutex
	finished []finishedCall
}

func newHarness(t *testing.T, st store.Store) *harness {
	t.Helper()
	if st == nil {
		st = store.NewMemory()
	}
	h := &harness{hub: fanout.NewHub(64), store: st}
	h.svc = New(st, fanout.NewLocalBus(h.hub), presence.NewTracker(presence.NewMemory(), 15*time.Second), zap.NewNop())
	h.svc.Hook = hookFunc(func(m *match.Match, side match.Side) {
		h.mu.Lock()
		h.finished = append(h.finished, finishedCall{matchID: m.ID, side: side})
		h.mu.Unlock()
	})
	return h
}

type hookFunc func(m *match.Match, side match.Side)

func (f hookFunc) OnMatchFinished(m *match.Match, side match.Side) { f(m, side) }

func (h *harness) newMatch(t *testing.T) *match.Match {
	t.Helper()
	mod := "mod"
	m, err := h.svc.CreateMatch(context.Background(), match.Actor{UserID: "A"}, store.NewMatch{Topic: "pineapple on pizza", ModeratorID: &mod})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return m
}

var (
	actorA   = match.Actor{UserID: "A", Role: match.RoleParticipant}
	actorB   = match.Actor{UserID: "B", Role: match.RoleUser}
	actorC   = match.Actor{UserID: "C", Role: match.RoleUser}
	actorD   = match.Actor{UserID: "D", Role: match.RoleUser}
	actorMod = match.Actor{UserID: "mod", Role: match.RoleModerator}
)

func TestArenaScenario(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	m := h.newMatch(t)
	if m.Participant1ID != "A" || m.Status != match.StatusPending {
		t.Fatalf("new match = %+v", m)
	}

	sub := h.hub.Subscribe(m.ID, "viewer")
	defer sub.Close()

	if _, err := h.svc.JoinAsChallenger(ctx, actorB, m.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := h.svc.SetStatus(ctx, actorMod, m.ID, match.StatusLive); err != nil {
		t.Fatalf("live: %v", err)
	}
	if _, err := h.svc.PlaceBet(ctx, actorC, m.ID, match.SideParticipant1, 100); err != nil {
		t.Fatalf("bet C: %v", err)
	}
	if _, err := h.svc.PlaceBet(ctx, actorD, m.ID, match.SideParticipant2, 300); err != nil {
		t.Fatalf("bet D: %v", err)
	}

	snap, err := h.svc.Snapshot(ctx, m.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.PotTotals.Participant1 != 100 || snap.PotTotals.Participant2 != 300 || snap.PotTotals.Total != 400 {
		t.Fatalf("pot = %+v", snap.PotTotals)
	}
	if snap.Odds.Participant1.Display != "4.00" || snap.Odds.Participant2.Display != "1.33" {
		t.Fatalf("odds = %s / %s", snap.Odds.Participant1.Display, snap.Odds.Participant2.Display)
	}

	if _, err := h.svc.SetStatus(ctx, actorMod, m.ID, match.StatusVoting); err != nil {
		t.Fatalf("voting: %v", err)
	}
	winner := "A"
	final, err := h.svc.DeclareWinner(ctx, actorMod, m.ID, &winner)
	if err != nil {
		t.Fatalf("declare winner: %v", err)
	}
	if final.Status != match.StatusFinished || final.WinnerID == nil || *final.WinnerID != "A" {
		t.Fatalf("final = %+v", final)
	}

	// segunda declaração é rejeitada e não dispara o hook de novo
	if _, err := h.svc.DeclareWinner(ctx, actorMod, m.ID, &winner); !errors.Is(err, match.ErrInvalidState) {
		t.Fatalf("second declare: %v", err)
	}
	if len(h.finished) != 1 || h.finished[0] != (finishedCall{matchID: m.ID, side: match.SideParticipant1}) {
		t.Fatalf("settlement calls = %+v", h.finished)
	}

	if _, err := h.svc.PlaceBet(ctx, actorC, m.ID, match.SideParticipant1, 10); !errors.Is(err, match.ErrMatchClosed) {
		t.Fatalf("bet after finish: %v", err)
	}

	// join, live, bet, bet, voting, finished
	want := []events.Type{
		events.TypeMatchUpdated, events.TypeMatchUpdated,
		events.TypeBetPlaced, events.TypeBetPlaced,
		events.TypeMatchUpdated, events.TypeMatchUpdated,
	}
	for i, w := range want {
		select {
		case env := <-sub.C():
			if env.Type != w {
				t.Fatalf("frame %d = %s, want %s", i, env.Type, w)
			}
		default:
			t.Fatalf("missing frame %d (%s)", i, w)
		}
	}
	select {
	case env := <-sub.C():
		t.Fatalf("rejected command was broadcast: %+v", env)
	default:
	}
}

func TestInvalidStakeNeverAppends(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	m := h.newMatch(t)

	for _, stake := range []int64{0, -10} {
		if _, err := h.svc.PlaceBet(ctx, actorC, m.ID, match.SideParticipant1, stake); !errors.Is(err, match.ErrInvalidStake) {
			t.Fatalf("stake %d: %v", stake, err)
		}
	}
	bets, _ := h.store.ListBets(ctx, m.ID)
	if len(bets) != 0 {
		t.Fatalf("ledger has %d bets", len(bets))
	}
}

func TestConcurrentChallengers(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	m := h.newMatch(t)

	var ok, taken int32
	var g errgroup.Group
	for _, user := range []string{"B", "E"} {
		actor := match.Actor{UserID: user, Role: match.RoleUser}
		g.Go(func() error {
			_, err := h.svc.JoinAsChallenger(ctx, actor, m.ID)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, match.ErrSlotTaken):
				atomic.AddInt32(&taken, 1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("join: %v", err)
	}
	if ok != 1 || taken != 1 {
		t.Fatalf("ok=%d taken=%d", ok, taken)
	}
}

func TestDeclareWinnerWhilePendingRejected(t *testing.T) {
	h := newHarness(t, nil)
	m := h.newMatch(t)
	winner := "A"
	if _, err := h.svc.DeclareWinner(context.Background(), actorMod, m.ID, &winner); !errors.Is(err, match.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if len(h.finished) != 0 {
		t.Fatalf("hook fired for rejected declaration")
	}
}

func TestChatValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	m := h.newMatch(t)

	if _, err := h.svc.SendChat(ctx, match.Actor{}, m.ID, "c1", "hi"); !errors.Is(err, match.ErrPermissionDenied) {
		t.Fatalf("anonymous chat: %v", err)
	}
	if _, err := h.svc.SendChat(ctx, actorC, m.ID, "c1", "   "); !errors.Is(err, match.ErrInvalidInput) {
		t.Fatalf("blank chat: %v", err)
	}
	msg, err := h.svc.SendChat(ctx, actorC, m.ID, "c1", "  gl hf ")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if msg.Body != "gl hf" || msg.AuthorID != "C" {
		t.Fatalf("msg = %+v", msg)
	}
	if _, err := h.svc.SendChat(ctx, actorC, "nope", "c1", "hi"); !errors.Is(err, match.ErrNotFound) {
		t.Fatalf("unknown match: %v", err)
	}
}

// flakyStore falha as primeiras N chamadas de escrita com erro de infraestrutura.
type flakyStore struct {
	store.Store
	failures int32
}

func (f *flakyStore) fail() error {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return errors.New("connection reset by peer")
	}
	return nil
}

func (f *flakyStore) AppendChat(ctx context.Context, matchID, authorID, body string) (*match.ChatMessage, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Store.AppendChat(ctx, matchID, authorID, body)
}

func TestStoreFailureRetriedOnce(t *testing.T) {
	flaky := &flakyStore{Store: store.NewMemory(), failures: 1}
	h := newHarness(t, flaky)
	ctx := context.Background()
	m := h.newMatch(t)

	if _, err := h.svc.SendChat(ctx, actorC, m.ID, "c1", "first try fails"); err != nil {
		t.Fatalf("single failure should be retried: %v", err)
	}

	atomic.StoreInt32(&flaky.failures, 2)
	_, err := h.svc.SendChat(ctx, actorC, m.ID, "c1", "fails twice")
	if match.KindOf(err) != match.KindUnavailable {
		t.Fatalf("expected unavailable after second failure, got %v", err)
	}
	chat, _ := flaky.ListRecentChat(ctx, m.ID, 10)
	if len(chat) != 1 {
		t.Fatalf("chat log = %+v", chat)
	}
}

func TestPresenceLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	m := h.newMatch(t)
	if _, err := h.svc.JoinAsChallenger(ctx, actorB, m.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := h.svc.Connect(ctx, actorA, m.ID, "conn-a"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := h.svc.ToggleMic(ctx, actorC, m.ID, "conn-c", true); !errors.Is(err, match.ErrNotParticipant) {
		t.Fatalf("spectator mic: %v", err)
	}
	if err := h.svc.ToggleMic(ctx, actorA, m.ID, "conn-a", true); err != nil {
		t.Fatalf("mic on: %v", err)
	}
	snap, _ := h.svc.Snapshot(ctx, m.ID)
	if len(snap.Speakers) != 1 || snap.Speakers[0] != "A" {
		t.Fatalf("speakers = %v", snap.Speakers)
	}

	sub := h.hub.Subscribe(m.ID, "watcher")
	defer sub.Close()
	h.svc.Disconnect(ctx, m.ID, "conn-a")

	env := <-sub.C()
	var pc events.PresenceChanged
	if err := env.Decode(&pc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != events.TypePresenceChanged || !pc.Removed || pc.Speaking || pc.UserID != "A" {
		t.Fatalf("presence clear = %s %+v", env.Type, pc)
	}
	snap, _ = h.svc.Snapshot(ctx, m.ID)
	if len(snap.Speakers) != 0 {
		t.Fatalf("speakers after disconnect = %v", snap.Speakers)
	}
}
