package application

import (
	"context"
	"fmt"
	"log"
	"strings"

	"learning-rewards/clock"
	"learning-rewards/rewards/domain"
)

type Streaks struct {
	Store  domain.StreakStore
	Ledger *Ledger
	Badges *Badges
	Clock  clock.Clock
	Logger *log.Logger
}

func NewStreaks(store domain.StreakStore, ledger *Ledger, badges *Badges, clk clock.Clock, logger *log.Logger) *Streaks {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Streaks{Store: store, Ledger: ledger, Badges: badges, Clock: clk, Logger: discardIfNil(logger)}
}

type TickResult struct {
	State     domain.StreakState
	Today     clock.Day
	AwardedXP bool
	Delta     int
	XP        int
	Badges    []string
}

// Tick aplica o check-in diário.
//
// Ordem: upsert do streak, evento streak:daily do dia (o que impede XP em dobro
// em ticks repetidos), badges por streak e total de XP. Falha no evento é
// devolvida, mas o streak já gravado permanece.
func (s *Streaks) Tick(ctx context.Context, userID string) (TickResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return TickResult{}, domain.ErrInvalidUser
	}
	today := clock.Today(s.Clock)

	cur, _, err := s.Store.GetStreak(ctx, userID)
	if err != nil {
		return TickResult{}, wrapBackend("load streak", err)
	}
	cur.UserID = userID

	next := domain.NextStreak(cur, today)
	if err := s.Store.UpsertStreak(ctx, next); err != nil {
		return TickResult{}, wrapBackend("save streak", err)
	}

	res := TickResult{State: next, Today: today}

	out, err := s.Ledger.Record(ctx, domain.Event{UserID: userID, Kind: domain.KindStreakDaily, Date: today})
	if err != nil {
		return res, fmt.Errorf("daily xp: %w", err)
	}
	res.AwardedXP = out.Awarded()
	res.Delta = out.Delta

	rep := s.Badges.Evaluate(ctx, userID, domain.Counts{domain.CounterStreak: next.Current})
	res.Badges = rep.Granted
	res.XP = s.Ledger.TotalXP(ctx, userID)
	return res, nil
}

// Current devolve o streak salvo, sem aplicar tick.
func (s *Streaks) Current(ctx context.Context, userID string) (domain.StreakState, bool, error) {
	st, ok, err := s.Store.GetStreak(ctx, userID)
	if err != nil {
		return domain.StreakState{}, false, wrapBackend("load streak", err)
	}
	return st, ok, nil
}
