package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyMatches = "arena:presence:matches"

func keyMatch(matchID string) string { return "arena:presence:" + matchID }

// Redis guarda a presença em um hash por partida (connID -> JSON da entrada),
// compartilhado entre réplicas do arena-service.
type Redis struct {
	R   *redis.Client
	TTL time.Duration // expiração do hash inteiro se ninguém mais escrever
}

func NewRedis(r *redis.Client, ttl time.Duration) *Redis { return &Redis{R: r, TTL: ttl} }

func (b *Redis) Put(ctx context.Context, matchID string, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := b.R.TxPipeline()
	pipe.HSet(ctx, keyMatch(matchID), e.ConnID, raw)
	pipe.SAdd(ctx, keyMatches, matchID)
	if b.TTL > 0 {
		pipe.Expire(ctx, keyMatch(matchID), b.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence put: %w", err)
	}
	return nil
}

func (b *Redis) Get(ctx context.Context, matchID, connID string) (Entry, bool, error) {
	raw, err := b.R.HGet(ctx, keyMatch(matchID), connID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("presence get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Delete só reporta a entrada se este HDEL foi quem a removeu.
func (b *Redis) Delete(ctx context.Context, matchID, connID string) (Entry, bool, error) {
	e, ok, err := b.Get(ctx, matchID, connID)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	n, err := b.R.HDel(ctx, keyMatch(matchID), connID).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("presence delete: %w", err)
	}
	if n == 0 {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (b *Redis) List(ctx context.Context, matchID string) ([]Entry, error) {
	all, err := b.R.HGetAll(ctx, keyMatch(matchID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence list: %w", err)
	}
	out := make([]Entry, 0, len(all))
	for _, raw := range all {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Matches também limpa do índice as partidas cujo hash já sumiu.
func (b *Redis) Matches(ctx context.Context) ([]string, error) {
	ids, err := b.R.SMembers(ctx, keyMatches).Result()
	if err != nil {
		return nil, fmt.Errorf("presence matches: %w", err)
	}
	out := ids[:0]
	for _, id := range ids {
		n, err := b.R.Exists(ctx, keyMatch(id)).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			_ = b.R.SRem(ctx, keyMatches, id).Err()
			continue
		}
		out = append(out, id)
	}
	return out, nil
}
