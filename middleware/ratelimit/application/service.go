package application

import (
	"context"
	"io"
	"log"
	"time"

	"learning-rewards/clock"
	"learning-rewards/middleware/ratelimit/domain"
)

// Service concentra a regra de janela fixa.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store  domain.CounterStore
	Clock  clock.Clock
	Logger *log.Logger
}

// Check decide se a chamada de key sob a política p é admitida.
//
// Falha do store nunca bloqueia: o erro é logado e a chamada é admitida.
func (s Service) Check(ctx context.Context, key domain.Key, p domain.Policy) domain.Decision {
	if s.Store == nil || p.Disabled() {
		return domain.Decision{Allowed: true, Limit: p.Limit}
	}
	if key == "" {
		key = domain.UnknownKey
	}

	b, err := s.Store.Increment(ctx, p.BucketKey(key), p.Window)
	if err != nil {
		s.logger().Printf("ratelimit_store_error policy=%s err=%v", p.KeyPrefix, err)
		return domain.Decision{Allowed: true, Limit: p.Limit}
	}

	dec := domain.Decision{
		Allowed: b.Count <= int64(p.Limit),
		Count:   b.Count,
		Limit:   p.Limit,
		ResetAt: b.ResetAt,
	}
	if !dec.Allowed {
		dec.RetryAfter = RetryAfter(b.ResetAt, s.now())
	}
	return dec
}

// RetryAfter = max(1s, resetAt-now) arredondado para cima em segundos inteiros.
func RetryAfter(resetAt, now time.Time) time.Duration {
	d := resetAt.Sub(now)
	secs := int64(d / time.Second)
	if d%time.Second > 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s Service) logger() *log.Logger {
	if s.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return s.Logger
}
