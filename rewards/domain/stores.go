package domain

import (
	"context"
	"time"
)

// EventStore é o ledger append-only de eventos de XP.
type EventStore interface {
	// InsertEvent devolve ErrDuplicate se a ocorrência já existe.
	InsertEvent(ctx context.Context, ev XpEvent) error
	// TotalXP soma os deltas das regras sobre os eventos do usuário.
	TotalXP(ctx context.Context, userID string) (int, error)
}

type RuleStore interface {
	// LookupDelta devolve ok=false quando não há regra para o tipo.
	LookupDelta(ctx context.Context, kind string) (delta int, ok bool, err error)
}

type StreakStore interface {
	GetStreak(ctx context.Context, userID string) (StreakState, bool, error)
	// UpsertStreak grava o estado por UserID; o último a escrever vence.
	UpsertStreak(ctx context.Context, s StreakState) error
}

type BadgeStore interface {
	// InsertBadge devolve ErrDuplicate se o usuário já tem o badge.
	InsertBadge(ctx context.Context, b UserBadge) error
	// ListBadges lista as concessões do usuário, mais recentes primeiro.
	ListBadges(ctx context.Context, userID string) ([]UserBadge, error)
}

type ProgressStore interface {
	UpsertUnitProgress(ctx context.Context, userID, module, unit string, at time.Time) error
	UpsertModuleProgress(ctx context.Context, userID, module string, at time.Time) error
	CountUnits(ctx context.Context, userID string) (int, error)
	// CountModules conta módulos com quiz aprovado.
	CountModules(ctx context.Context, userID string) (int, error)
}
