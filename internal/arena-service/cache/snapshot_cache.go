package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache guarda o snapshot público da partida por alguns segundos.
// Toda escrita durável invalida a chave antes de publicar o evento e avança a geração da partida;
// o leitor só grava o snapshot se a geração lida antes do store ainda é a atual.
type SnapshotCache struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *SnapshotCache { return &SnapshotCache{R: r, TTL: ttl} }

func keyMatch(matchID string) string { return "arena:snapshot:" + matchID }
func keyGen(matchID string) string   { return "arena:snapshot-gen:" + matchID }

// genTTL mantém o contador bem além do TTL do snapshot.
const genTTL = 24 * time.Hour

// setIfCurrent: KEYS[1]=geração, KEYS[2]=snapshot; ARGV = geração esperada, payload, ttl em ms.
var setIfCurrent = redis.NewScript(`
local g = redis.call('GET', KEYS[1])
if not g then g = '0' end
if g ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

func (c *SnapshotCache) Get(ctx context.Context, matchID string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyMatch(matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

// Generation deve ser lida antes do snapshot ir ao store.
func (c *SnapshotCache) Generation(ctx context.Context, matchID string) (int64, error) {
	g, err := c.R.Get(ctx, keyGen(matchID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return g, err
}

// SetIfCurrent grava o snapshot só se nenhuma escrita invalidou a partida desde gen.
func (c *SnapshotCache) SetIfCurrent(ctx context.Context, matchID string, gen int64, v any) (bool, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	ttl := c.TTL.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}
	n, err := setIfCurrent.Run(ctx, c.R, []string{keyGen(matchID), keyMatch(matchID)},
		strconv.FormatInt(gen, 10), b, ttl).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *SnapshotCache) Invalidate(ctx context.Context, matchID string) error {
	pipe := c.R.TxPipeline()
	pipe.Incr(ctx, keyGen(matchID))
	pipe.Expire(ctx, keyGen(matchID), genTTL)
	pipe.Del(ctx, keyMatch(matchID))
	_, err := pipe.Exec(ctx)
	return err
}
