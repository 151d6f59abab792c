package domain

import (
	"context"
	"errors"
	"time"
)

// Key identifica um chamador (IP, API key, usuário).
type Key string

// UnknownKey é o bucket compartilhado por todos os chamadores sem identificação.
const UnknownKey Key = "unknown"

// Policy descreve um limite por operação lógica: no máximo Limit chamadas
// por janela fixa de duração Window.
type Policy struct {
	KeyPrefix string
	Limit     int
	Window    time.Duration
}

// Disabled indica que a política não limita nada.
func (p Policy) Disabled() bool { return p.Limit <= 0 || p.Window <= 0 }

// BucketKey monta a chave composta "prefixo:identidade".
func (p Policy) BucketKey(k Key) string {
	return p.KeyPrefix + ":" + string(k)
}

// Bucket é o estado de uma janela após um incremento.
type Bucket struct {
	Key     string
	Count   int64
	ResetAt time.Time
}

// CounterStore é o backend de contagem.
//
// Increment incrementa atomicamente o contador da chave. Se a chave não existe,
// ou se a janela anterior já expirou, uma nova janela é criada com Count=1 e
// ResetAt = agora + window.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (Bucket, error)
}

// ErrStoreUnavailable indica falha do backend (timeout, conexão, resposta inválida).
var ErrStoreUnavailable = errors.New("ratelimit: counter store unavailable")

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear
	// (segundos inteiros, arredondado para cima, mínimo 1s). Se 0, não há recomendação.
	RetryAfter time.Duration

	Count   int64
	Limit   int
	ResetAt time.Time
}
