package ratelimit

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"learning-rewards/clock"
	"learning-rewards/middleware/ratelimit/application"
	"learning-rewards/middleware/ratelimit/domain"
)

type Options struct {
	Store               domain.CounterStore
	Stats               domain.StatsStore
	Clock               clock.Clock
	Logger              *log.Logger
	KeyFn               KeyFunc
	RejectStatus        int
	AddRateLimitHeaders bool
}

// Limiter aplica políticas de janela fixa a rotas HTTP. Um único Limiter
// (e portanto um único store) atende todas as políticas.
type Limiter struct {
	svc   application.Service
	opts  Options
	clock clock.Clock
}

func New(opts Options) *Limiter {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = ClientIP
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	return &Limiter{
		svc: application.Service{
			Store:  opts.Store,
			Clock:  opts.Clock,
			Logger: opts.Logger,
		},
		opts:  opts,
		clock: opts.Clock,
	}
}

// Check decide para a requisição sob a política p e registra a estatística.
func (l *Limiter) Check(r *http.Request, p domain.Policy) domain.Decision {
	key := l.opts.KeyFn(r)
	dec := l.svc.Check(r.Context(), key, p)

	if l.opts.Stats != nil && !p.Disabled() {
		_ = l.opts.Stats.Record(r.Context(), domain.StatsEvent{
			Policy:  p.KeyPrefix,
			Key:     key,
			Allowed: dec.Allowed,
			Method:  r.Method,
			Path:    r.URL.Path,
			At:      l.clock.Now(),
		})
	}
	return dec
}

// Middleware limita a rota pela política p.
func (l *Limiter) Middleware(p domain.Policy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if p.Disabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dec := l.Check(r, p)

			if l.opts.AddRateLimitHeaders && dec.Limit > 0 {
				remaining := int64(dec.Limit) - dec.Count
				if remaining < 0 {
					remaining = 0
				}
				w.Header().Set("X-RateLimit-Limit", formatInt(int64(dec.Limit)))
				w.Header().Set("X-RateLimit-Remaining", formatInt(remaining))
				if !dec.ResetAt.IsZero() {
					w.Header().Set("X-RateLimit-Reset", formatInt(dec.ResetAt.Unix()))
				}
			}

			if !dec.Allowed {
				retry := dec.RetryAfter
				if retry < time.Second {
					retry = time.Second
				}
				w.Header().Set("Retry-After", formatSeconds(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(l.opts.RejectStatus)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
