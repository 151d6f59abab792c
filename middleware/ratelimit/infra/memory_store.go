package infra

import (
	"context"
	"sync"
	"time"

	"learning-rewards/clock"
	"learning-rewards/middleware/ratelimit/domain"

	"github.com/cespare/xxhash/v2"
)

// MemoryStore é um CounterStore de janela fixa local ao processo.
//
// O mapa é particionado em shards; cada shard serializa o read-modify-write
// das suas chaves, então dois incrementos simultâneos da mesma chave nunca
// observam o mesmo count. Buckets expirados são removidos pelo janitor e,
// se houver limite de chaves, no momento da inserção.
type MemoryStore struct {
	shards       []*memShard
	clock        clock.Clock
	maxKeys      int // por shard; 0 = sem limite
	cleanupEvery time.Duration
}

type memShard struct {
	mu      sync.Mutex
	buckets map[string]domain.Bucket
}

type MemoryOption func(*MemoryStore)

func WithClock(c clock.Clock) MemoryOption {
	return func(s *MemoryStore) { s.clock = c }
}

func WithShards(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.shards = newShards(n)
		}
	}
}

// WithMaxKeys limita o total aproximado de chaves (dividido entre os shards).
func WithMaxKeys(n int) MemoryOption {
	return func(s *MemoryStore) { s.maxKeys = n }
}

func WithCleanupEvery(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		shards:       newShards(32),
		clock:        clock.RealClock{},
		cleanupEvery: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxKeys > 0 {
		per := s.maxKeys / len(s.shards)
		if per < 1 {
			per = 1
		}
		s.maxKeys = per
	}
	return s
}

func newShards(n int) []*memShard {
	out := make([]*memShard, n)
	for i := range out {
		out[i] = &memShard{buckets: make(map[string]domain.Bucket)}
	}
	return out
}

func (s *MemoryStore) shardFor(key string) *memShard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Increment implementa domain.CounterStore.
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (domain.Bucket, error) {
	sh := s.shardFor(key)
	now := s.clock.Now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	b, ok := sh.buckets[key]
	if ok && now.Before(b.ResetAt) {
		b.Count++
		sh.buckets[key] = b
		return b, nil
	}

	if !ok && s.maxKeys > 0 && len(sh.buckets) >= s.maxKeys {
		sh.evictLocked(now)
	}
	// janela nova substitui a anterior
	b = domain.Bucket{Key: key, Count: 1, ResetAt: now.Add(window)}
	sh.buckets[key] = b
	return b, nil
}

// evictLocked remove os buckets expirados; se nenhum expirou, remove o que
// reseta primeiro.
func (sh *memShard) evictLocked(now time.Time) {
	var (
		oldestKey string
		oldestAt  time.Time
		removed   int
	)
	for k, b := range sh.buckets {
		if !now.Before(b.ResetAt) {
			delete(sh.buckets, k)
			removed++
			continue
		}
		if oldestKey == "" || b.ResetAt.Before(oldestAt) {
			oldestKey, oldestAt = k, b.ResetAt
		}
	}
	if removed == 0 && oldestKey != "" {
		delete(sh.buckets, oldestKey)
	}
}

// Cleanup remove buckets cuja janela já terminou e retorna quantos removeu.
func (s *MemoryStore) Cleanup() int {
	now := s.clock.Now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, b := range sh.buckets {
			if !now.Before(b.ResetAt) {
				delete(sh.buckets, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len retorna o número de buckets mantidos (expirados ou não).
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.buckets)
		sh.mu.Unlock()
	}
	return n
}

func (s *MemoryStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// StartJanitor inicia uma goroutine que limpa buckets expirados periodicamente.
// Pare cancelando o contexto.
func (s *MemoryStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário do context.Context para o janitor.
type DoneContext interface {
	Done() <-chan struct{}
}
