package application

import (
	"context"
	"time"

	"learning-rewards/middleware/ratelimit/domain"
)

// ConcurrencyService limita requisições em andamento, com espera limitada
// por AcquireTimeout. Não conhece HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta reservar uma vaga.
//
// AcquireTimeout <= 0: espera até o ctx da requisição encerrar.
// AcquireTimeout > 0: desiste após o timeout.
// Com ok=false nada foi reservado e release é um no-op.
func (s ConcurrencyService) Acquire(ctx context.Context) (release func(), ok bool) {
	if s.Pool == nil {
		return noop, true
	}

	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok = s.Pool.Acquire(ctx)
	if !ok || release == nil {
		return noop, false
	}
	return release, true
}

func noop() {}
