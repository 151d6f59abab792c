package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	"learning-rewards/clock"
	"learning-rewards/rewards/domain"

	"github.com/google/uuid"
)

// Ledger registra ocorrências recompensáveis exatamente uma vez.
type Ledger struct {
	Events domain.EventStore
	Rules  domain.RuleStore
	Clock  clock.Clock
	Logger *log.Logger
}

func NewLedger(events domain.EventStore, rules domain.RuleStore, clk clock.Clock, logger *log.Logger) *Ledger {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Ledger{Events: events, Rules: rules, Clock: clk, Logger: discardIfNil(logger)}
}

// Record insere o evento. A unicidade do store é o controle de concorrência:
// entre chamadas simultâneas da mesma ocorrência exatamente uma recebe Awarded,
// as outras AlreadyAwarded.
func (l *Ledger) Record(ctx context.Context, e domain.Event) (domain.Outcome, error) {
	e, err := domain.NormalizeEvent(e)
	if err != nil {
		return domain.Outcome{}, err
	}

	ev := domain.XpEvent{
		ID:        uuid.NewString(),
		Event:     e,
		CreatedAt: l.Clock.Now(),
	}

	status := domain.Awarded
	switch err := l.Events.InsertEvent(ctx, ev); {
	case errors.Is(err, domain.ErrDuplicate):
		status = domain.AlreadyAwarded
	case err != nil:
		return domain.Outcome{}, wrapBackend(fmt.Sprintf("record %s", e.Kind), err)
	}

	return domain.Outcome{Status: status, Delta: l.LookupDelta(ctx, e.Kind)}, nil
}

// LookupDelta resolve o XP do tipo. Sem regra ou com falha do store, 0.
func (l *Ledger) LookupDelta(ctx context.Context, kind string) int {
	if l.Rules == nil {
		return 0
	}
	delta, ok, err := l.Rules.LookupDelta(ctx, kind)
	if err != nil {
		l.Logger.Printf("xp_rule_lookup_failed kind=%s err=%v", kind, err)
		return 0
	}
	if !ok {
		return 0
	}
	return delta
}

// TotalXP devolve o XP acumulado do usuário; em falha loga e devolve 0.
func (l *Ledger) TotalXP(ctx context.Context, userID string) int {
	total, err := l.Events.TotalXP(ctx, userID)
	if err != nil {
		l.Logger.Printf("xp_total_failed user=%s err=%v", userID, err)
		return 0
	}
	return total
}

func wrapBackend(op string, err error) error {
	if errors.Is(err, domain.ErrBackendUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrBackendUnavailable, op, err)
}
