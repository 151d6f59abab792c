package infra

import (
	"context"
	"io"
	"log"
	"sync/atomic"
	"time"

	"learning-rewards/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// FallbackStore consulta o store primário (compartilhado) com timeout e, se ele
// falhar, responde pelo store local. A requisição nunca espera além do timeout.
//
// Durante uma queda do primário cada instância passa a contar sozinha, então o
// limite efetivo fica multiplicado pelo número de instâncias.
type FallbackStore struct {
	primary  domain.CounterStore
	fallback domain.CounterStore
	timeout  time.Duration
	logger   *log.Logger

	// evita inundar o log enquanto o primário estiver fora
	warn      *rate.Sometimes
	fallbacks atomic.Uint64
}

type FallbackOption func(*FallbackStore)

func WithFallbackTimeout(d time.Duration) FallbackOption {
	return func(s *FallbackStore) { s.timeout = d }
}

func WithFallbackLogger(l *log.Logger) FallbackOption {
	return func(s *FallbackStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFallbackLogEvery define o intervalo mínimo entre logs de falha.
func WithFallbackLogEvery(d time.Duration) FallbackOption {
	return func(s *FallbackStore) { s.warn = &rate.Sometimes{First: 1, Interval: d} }
}

func NewFallbackStore(primary, fallback domain.CounterStore, opts ...FallbackOption) *FallbackStore {
	s := &FallbackStore{
		primary:  primary,
		fallback: fallback,
		timeout:  100 * time.Millisecond,
		logger:   log.New(io.Discard, "", 0),
		warn:     &rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Increment implementa domain.CounterStore.
func (s *FallbackStore) Increment(ctx context.Context, key string, window time.Duration) (domain.Bucket, error) {
	pctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	b, err := s.primary.Increment(pctx, key, window)
	if err == nil {
		return b, nil
	}

	n := s.fallbacks.Add(1)
	s.warn.Do(func() {
		s.logger.Printf("ratelimit_fallback store=memory fallbacks_total=%d err=%v", n, err)
	})
	return s.fallback.Increment(ctx, key, window)
}

// Fallbacks retorna quantas chamadas foram atendidas pelo store local.
func (s *FallbackStore) Fallbacks() uint64 { return s.fallbacks.Load() }
