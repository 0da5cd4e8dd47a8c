package settlement

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gammazero/workerpool"
	"go.uber.org/zap"

	"github.com/radieske/live-match-arena/internal/arena/match"
	"github.com/radieske/live-match-arena/internal/shared/kafka"
	"github.com/radieske/live-match-arena/pkg/contracts/events"
)

// Hook é chamado uma única vez quando a partida chega em finished.
// Fire-and-forget: o chamador não espera nem recebe erro.
// winnerSide vazio = no contest.
type Hook interface {
	OnMatchFinished(m *match.Match, winnerSide match.Side)
}

// BetObserver recebe cada aposta aceita pelo ledger.
type BetObserver interface {
	OnBetPlaced(b match.Bet)
}

// HookFunc adapta uma função para Hook.
type HookFunc func(m *match.Match, winnerSide match.Side)

func (f HookFunc) OnMatchFinished(m *match.Match, winnerSide match.Side) { f(m, winnerSide) }

// Nop descarta as notificações (sem Kafka configurado).
type Nop struct{}

func (Nop) OnMatchFinished(*match.Match, match.Side) {}
func (Nop) OnBetPlaced(match.Bet) {}

// KafkaNotifier publica match_finished e bet_placed no Kafka.
// O envio roda no workerpool para nunca segurar o comando do moderador.
type KafkaNotifier struct {
	Log      *zap.Logger
	Finished kafka.MessageWriter
	Bets     kafka.MessageWriter
	Timeout  time.Duration

	OnPublished func(topic string)
	OnError     func(topic string)

	pool *workerpool.WorkerPool
}

func NewKafkaNotifier(log *zap.Logger, finished, bets kafka.MessageWriter, workers int) *KafkaNotifier {
	if workers < 1 {
		workers = 1
	}
	return &KafkaNotifier{
		Log:      log,
		Finished: finished,
		Bets:     bets,
		Timeout:  5 * time.Second,
		pool:     workerpool.New(workers),
	}
}

func (n *KafkaNotifier) OnMatchFinished(m *match.Match, winnerSide match.Side) {
	ev := events.MatchFinished{
		MatchID:    m.ID,
		WinnerID:   m.WinnerID,
		WinnerSide: string(winnerSide),
		Version:    m.Version,
		TsUnixMs:   time.Now().UnixMilli(),
	}
	n.submit("match_finished", n.Finished, m.ID, ev)
}

func (n *KafkaNotifier) OnBetPlaced(b match.Bet) {
	ev := events.BetPlaced{
		BetID:    b.ID,
		MatchID:  b.MatchID,
		BettorID: b.BettorID,
		Side:     string(b.Side),
		Stake:    b.Stake,
		TsUnixMs: b.CreatedAt.UnixMilli(),
	}
	n.submit("bet_placed", n.Bets, b.MatchID, ev)
}

func (n *KafkaNotifier) submit(topic string, w kafka.MessageWriter, key string, payload any) {
	if w == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		n.Log.Error("marshal "+topic, zap.Error(err))
		return
	}
	n.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.Timeout)
		defer cancel()
		if err := kafka.WriteJSON(ctx, w, key, b); err != nil {
			n.Log.Error("kafka publish failed", zap.String("topic", topic), zap.String("match_id", key), zap.Error(err))
			if n.OnError != nil {
				n.OnError(topic)
			}
			return
		}
		if n.OnPublished != nil {
			n.OnPublished(topic)
		}
	})
}

// Close espera as publicações pendentes.
func (n *KafkaNotifier) Close() { n.pool.StopWait() }
