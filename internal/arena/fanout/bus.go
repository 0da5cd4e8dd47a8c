package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/live-match-arena/pkg/contracts/events"
	"github.com/radieske/live-match-arena/pkg/contracts/topics"
)

// Bus publica um frame uma vez no tópico da partida.
type Bus interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// LocalBus entrega direto no hub do processo (ARENA_BUS=local, uma réplica).
type LocalBus struct{ Hub *Hub }

func NewLocalBus(h *Hub) *LocalBus { return &LocalBus{Hub: h} }

func (b *LocalBus) Publish(_ context.Context, env events.Envelope) error {
	b.Hub.Deliver(env)
	return nil
}

// RedisBus publica no canal Redis da partida; Run escuta todos os canais
// arena:match:* e repassa ao hub local (inclusive o que este processo publicou).
type RedisBus struct {
	R   *redis.Client
	Hub *Hub
	Log *zap.Logger

	OnPublishError func()
}

func NewRedisBus(r *redis.Client, h *Hub, log *zap.Logger) *RedisBus {
	return &RedisBus{R: r, Hub: h, Log: log}
}

// Publish falhando, as conexões locais recebem resync: o evento já está no store.
func (b *RedisBus) Publish(ctx context.Context, env events.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.R.Publish(ctx, topics.MatchChannel(env.MatchID), raw).Err(); err != nil {
		if b.OnPublishError != nil {
			b.OnPublishError()
		}
		b.Hub.SignalGap(env.MatchID, GapPublishFailed)
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run bloqueia até ctx terminar.
// Toda reinscrição depois da primeira pode ter perdido mensagens: todas as conexões recebem resync.
func (b *RedisBus) Run(ctx context.Context) error {
	ps := b.R.PSubscribe(ctx, topics.MatchChannelPattern)
	defer ps.Close()

	ch := ps.ChannelWithSubscriptions(redis.WithChannelHealthCheckInterval(30 * time.Second))
	subscribed := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			switch m := msg.(type) {
			case *redis.Subscription:
				if m.Kind != "psubscribe" {
					continue
				}
				if subscribed {
					b.Log.Warn("arena bus resubscribed, requesting resync")
					b.Hub.SignalGap("", GapResubscribe)
				}
				subscribed = true
			case *redis.Message:
				var env events.Envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					b.Log.Warn("arena bus unmarshal error", zap.String("channel", m.Channel), zap.Error(err))
					continue
				}
				if env.MatchID == "" {
					env.MatchID, _ = topics.MatchIDFromChannel(m.Channel)
				}
				b.Hub.Deliver(env)
			}
		}
	}
}

// Ready espera a inscrição inicial do listener (testes e startup).
func (b *RedisBus) Ready(ctx context.Context) error {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		n, err := b.R.PubSubNumPat(ctx).Result()
		if err == nil && n > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}
