package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	"learning-rewards/clock"
	"learning-rewards/rewards/domain"
)

// Badges avalia regras de limiar e concede badges. Best-effort.
type Badges struct {
	Store  domain.BadgeStore
	Rules  []domain.BadgeRule
	Clock  clock.Clock
	Logger *log.Logger
}

func NewBadges(store domain.BadgeStore, rules []domain.BadgeRule, clk clock.Clock, logger *log.Logger) *Badges {
	if rules == nil {
		rules = domain.DefaultBadges
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Badges{Store: store, Rules: rules, Clock: clk, Logger: discardIfNil(logger)}
}

// BadgeReport é o resultado de uma avaliação: badges concedidos agora e as
// falhas encontradas. Errors nunca vira erro da ação que disparou a avaliação.
type BadgeReport struct {
	Granted []string
	Errors  []error
}

func (r BadgeReport) Err() error { return errors.Join(r.Errors...) }

// Evaluate concede cada badge cujo contador atingiu o limiar. Repetir a
// concessão é no-op silencioso e não aparece em Granted.
func (b *Badges) Evaluate(ctx context.Context, userID string, counts domain.Counts) BadgeReport {
	var rep BadgeReport
	if b == nil || b.Store == nil {
		return rep
	}

	now := b.Clock.Now()
	for _, rule := range b.Rules {
		n, ok := counts[rule.Counter]
		if !ok || n < rule.Threshold {
			continue
		}
		err := b.Store.InsertBadge(ctx, domain.UserBadge{UserID: userID, BadgeKey: rule.Key, AwardedAt: now})
		switch {
		case err == nil:
			rep.Granted = append(rep.Granted, rule.Key)
		case errors.Is(err, domain.ErrDuplicate):
		default:
			rep.Errors = append(rep.Errors, fmt.Errorf("grant %s: %w", rule.Key, err))
		}
	}

	if err := rep.Err(); err != nil {
		b.Logger.Printf("badge_grant_failed user=%s err=%v", userID, err)
	}
	return rep
}

// Earned lista as concessões do usuário, mais recentes primeiro.
func (b *Badges) Earned(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	list, err := b.Store.ListBadges(ctx, userID)
	if err != nil {
		return nil, wrapBackend("list badges", err)
	}
	return list, nil
}

func (b *Badges) Catalog() []domain.BadgeRule { return b.Rules }
