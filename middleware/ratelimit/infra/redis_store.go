package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"learning-rewards/clock"
	"learning-rewards/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript incrementa e define a expiração na primeira chamada da janela,
// tudo numa única operação atômica no Redis. Retorna {count, pttl_ms}.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore é um CounterStore de janela fixa compartilhado entre instâncias.
//
// A janela começa no primeiro INCR da chave e termina quando a chave expira.
type RedisStore struct {
	rdb    redis.Scripter
	prefix string
	clock  clock.Clock
}

type RedisOption func(*RedisStore)

func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		prefix = strings.TrimSpace(prefix)
		if prefix != "" && !strings.HasSuffix(prefix, ":") {
			prefix += ":"
		}
		s.prefix = prefix
	}
}

func WithRedisClock(c clock.Clock) RedisOption {
	return func(s *RedisStore) { s.clock = c }
}

func NewRedisStore(rdb redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "ratelimit:",
		clock:  clock.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Increment implementa domain.CounterStore.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (domain.Bucket, error) {
	ms := window.Milliseconds()
	if ms < 1 {
		ms = 1
	}

	fullKey := s.prefix + key
	vals, err := fixedWindowScript.Run(ctx, s.rdb, []string{fullKey}, ms).Int64Slice()
	if err != nil {
		return domain.Bucket{}, fmt.Errorf("%w: incr %s: %w", domain.ErrStoreUnavailable, fullKey, err)
	}
	if len(vals) != 2 {
		return domain.Bucket{}, fmt.Errorf("%w: unexpected script reply %v", domain.ErrStoreUnavailable, vals)
	}

	return domain.Bucket{
		Key:     key,
		Count:   vals[0],
		ResetAt: s.clock.Now().Add(time.Duration(vals[1]) * time.Millisecond),
	}, nil
}
