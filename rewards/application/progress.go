package application

import (
	"context"
	"fmt"
	"log"
	"strings"

	"learning-rewards/clock"
	"learning-rewards/rewards/domain"
)

// Progress grava conclusões de unidade/módulo e dispara XP e badges.
type Progress struct {
	Store  domain.ProgressStore
	Ledger *Ledger
	Badges *Badges
	Clock  clock.Clock
	Logger *log.Logger
}

func NewProgress(store domain.ProgressStore, ledger *Ledger, badges *Badges, clk clock.Clock, logger *log.Logger) *Progress {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Progress{Store: store, Ledger: ledger, Badges: badges, Clock: clk, Logger: discardIfNil(logger)}
}

type Completion struct {
	Outcome domain.Outcome
	Badges  []string
}

// CompleteUnit registra a unidade concluída e concede XP uma vez por unidade.
func (p *Progress) CompleteUnit(ctx context.Context, userID, module, unit string) (Completion, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Completion{}, domain.ErrInvalidUser
	}
	if !domain.IsSlug(module) || !domain.IsSlug(unit) {
		return Completion{}, fmt.Errorf("%w: moduleSlug/unitSlug", domain.ErrInvalidSlug)
	}
	module, unit = strings.TrimSpace(module), strings.TrimSpace(unit)

	if err := p.Store.UpsertUnitProgress(ctx, userID, module, unit, p.Clock.Now()); err != nil {
		return Completion{}, wrapBackend("save unit progress", err)
	}

	out, err := p.Ledger.Record(ctx, domain.Event{
		UserID:    userID,
		Kind:      domain.KindUnitCompleted,
		ModuleRef: module,
		UnitRef:   unit,
	})
	if err != nil {
		return Completion{}, err
	}

	res := Completion{Outcome: out}
	n, err := p.Store.CountUnits(ctx, userID)
	if err != nil {
		p.Logger.Printf("badge_counts_failed user=%s counter=%s err=%v", userID, domain.CounterUnits, err)
		return res, nil
	}
	res.Badges = p.Badges.Evaluate(ctx, userID, domain.Counts{domain.CounterUnits: n}).Granted
	return res, nil
}

// CompleteModule registra o quiz aprovado e concede XP uma vez por módulo.
func (p *Progress) CompleteModule(ctx context.Context, userID, module string) (Completion, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Completion{}, domain.ErrInvalidUser
	}
	if !domain.IsSlug(module) {
		return Completion{}, fmt.Errorf("%w: moduleSlug", domain.ErrInvalidSlug)
	}
	module = strings.TrimSpace(module)

	if err := p.Store.UpsertModuleProgress(ctx, userID, module, p.Clock.Now()); err != nil {
		return Completion{}, wrapBackend("save module progress", err)
	}

	out, err := p.Ledger.Record(ctx, domain.Event{
		UserID:    userID,
		Kind:      domain.KindModuleCompleted,
		ModuleRef: module,
	})
	if err != nil {
		return Completion{}, err
	}

	res := Completion{Outcome: out}
	n, err := p.Store.CountModules(ctx, userID)
	if err != nil {
		p.Logger.Printf("badge_counts_failed user=%s counter=%s err=%v", userID, domain.CounterModules, err)
		return res, nil
	}
	res.Badges = p.Badges.Evaluate(ctx, userID, domain.Counts{domain.CounterModules: n}).Granted
	return res, nil
}
