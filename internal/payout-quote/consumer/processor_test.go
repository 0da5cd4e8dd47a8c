package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-match-arena/internal/arena/match"
	"github.com/radieske/live-match-arena/internal/arena/store"
	"github.com/radieske/live-match-arena/internal/shared/kafka"
	"github.com/radieske/live-match-arena/pkg/contracts/events"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

// fakeReader entrega as mensagens em ordem e depois bloqueia até ctx terminar.
type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		m := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

type failingBets struct{}

func (failingBets) ListBets(context.Context, string) ([]match.Bet, error) {
	return nil, errors.New("connection refused")
}

func finishedMsg(t *testing.T, matchID, side string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(events.MatchFinished{MatchID: matchID, WinnerSide: side})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Key: []byte(matchID), Value: b}
}

func seedMatch(t *testing.T) (*store.Memory, string) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	m, err := st.CreateMatch(ctx, store.NewMatch{Topic: "t", Participant1ID: "A"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.SetParticipant2IfEmpty(ctx, m.ID, "B"); err != nil {
		t.Fatalf("join: %v", err)
	}
	for _, b := range []struct {
		who   string
		side  match.Side
		stake int64
	}{{"C", match.SideParticipant1, 100}, {"D", match.SideParticipant2, 300}, {"E", match.SideParticipant2, 20}} {
		if _, err := st.AppendBet(ctx, m.ID, b.who, b.side, b.stake); err != nil {
			t.Fatalf("bet: %v", err)
		}
	}
	return st, m.ID
}

func TestRunPublishesQuotesAndCommits(t *testing.T) {
	st, matchID := seedMatch(t)
	reader := &fakeReader{pending: []kafka.Message{finishedMsg(t, matchID, "participant-2")}}
	quotes := &fakeWriter{}
	p := &Processor{Log: zap.NewNop(), Reader: reader, Bets: st, Quotes: quotes}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		reader.mu.Lock()
		n := len(reader.committed)
		reader.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run = %v", err)
	}

	if len(quotes.msgs) != 1 {
		t.Fatalf("published %d messages", len(quotes.msgs))
	}
	var out events.PayoutQuoted
	if err := json.Unmarshal(quotes.msgs[0].Value, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// pot 420, lado 2 = 320: 300*420/320 = 393, 20*420/320 = 26
	if out.TotalPot != 420 || len(out.Lines) != 2 || out.Lines[0].Payout != 393 || out.Lines[1].Payout != 26 {
		t.Fatalf("quote = %+v", out)
	}
	if string(quotes.msgs[0].Key) != matchID {
		t.Fatalf("key = %s", quotes.msgs[0].Key)
	}
}

func TestNoContestRefundsEveryone(t *testing.T) {
	st, matchID := seedMatch(t)
	bets, _ := st.ListBets(context.Background(), matchID)
	out := Build(events.MatchFinished{MatchID: matchID}, bets, time.Now())
	if len(out.Lines) != 3 {
		t.Fatalf("lines = %+v", out.Lines)
	}
	for _, l := range out.Lines {
		if l.Payout != l.Stake {
			t.Fatalf("refund = %+v", l)
		}
	}
}

func TestFailuresGoToDLQ(t *testing.T) {
	dlq := &fakeWriter{}
	var dlqCount int
	p := &Processor{
		Log:     zap.NewNop(),
		Bets:    failingBets{},
		Quotes:  &fakeWriter{},
		DLQ:     dlq,
		Retries: 2,
		Backoff: time.Millisecond,
		OnDLQ:   func() { dlqCount++ },
	}

	if err := p.Handle(context.Background(), finishedMsg(t, "m1", "participant-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := p.Handle(context.Background(), kafka.Message{Key: []byte("m2"), Value: []byte("{not json")}); err != nil {
		t.Fatalf("handle bad json: %v", err)
	}
	if len(dlq.msgs) != 2 || dlqCount != 2 {
		t.Fatalf("dlq = %d msgs, %d callbacks", len(dlq.msgs), dlqCount)
	}
	if string(dlq.msgs[1].Value) != "{not json" {
		t.Fatalf("dlq payload = %s", dlq.msgs[1].Value)
	}
}

func TestFailureWithoutDLQIsNotAcknowledged(t *testing.T) {
	p := &Processor{Log: zap.NewNop(), Bets: failingBets{}, Quotes: &fakeWriter{}}
	if err := p.Handle(context.Background(), finishedMsg(t, "m1", "participant-1")); err == nil {
		t.Fatalf("expected error without dlq")
	}
}
