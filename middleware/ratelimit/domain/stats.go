package domain

import (
	"context"
	"time"
)

// StatsEvent é um evento de decisão do rate limit.
//
// Policy é o prefixo da política (ex: "api:me"); Key é a identidade do chamador.
// Cuidado com cardinalidade ao persistir Key.
type StatsEvent struct {
	Policy  string
	Key     Key
	Allowed bool

	Method string
	Path   string

	At time.Time
}

// StatsStore persiste estatísticas de decisões.
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
