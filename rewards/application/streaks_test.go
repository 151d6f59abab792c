package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"learning-rewards/clock"
	"learning-rewards/rewards/domain"
)

func clockDay(s string) clock.Day { return clock.Day(s) }

func newStreaks(badgeStore domain.BadgeStore) (*Streaks, *clock.Fake) {
	store, clk := newFixture()
	ledger := NewLedger(store, store, clk, nil)
	if badgeStore == nil {
		badgeStore = store
	}
	badges := NewBadges(badgeStore, nil, clk, nil)
	return NewStreaks(store, ledger, badges, clk, nil), clk
}

func TestStreaks_TickSequence(t *testing.T) {
	s, clk := newStreaks(nil)
	ctx := context.Background()

	res, err := s.Tick(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State.Current != 1 || res.State.Best != 1 || !res.AwardedXP || res.XP != 5 {
		t.Fatalf("unexpected first tick: %+v", res)
	}

	// mesmo dia: estado igual, sem XP novo
	clk.Advance(3 * time.Hour)
	res, err = s.Tick(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State.Current != 1 || res.AwardedXP || res.XP != 5 || res.Delta != 5 {
		t.Fatalf("unexpected same-day tick: %+v", res)
	}

	clk.Advance(24 * time.Hour)
	res, _ = s.Tick(ctx, "u1")
	if res.State.Current != 2 || res.State.Best != 2 || res.Today != "2024-01-02" || res.XP != 10 {
		t.Fatalf("unexpected next-day tick: %+v", res)
	}

	// pulou um dia
	clk.Advance(48 * time.Hour)
	res, _ = s.Tick(ctx, "u1")
	if res.State.Current != 1 || res.State.Best != 2 {
		t.Fatalf("expected reset to 1 keeping best 2, got %+v", res.State)
	}

	st, ok, err := s.Current(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected saved streak, got ok=%v err=%v", ok, err)
	}
	if st.LastActive != "2024-01-04" {
		t.Fatalf("expected lastActive 2024-01-04, got %q", st.LastActive)
	}
}

func TestStreaks_SevenDaysGrantsBadge(t *testing.T) {
	s, clk := newStreaks(nil)
	ctx := context.Background()

	var granted []string
	for i := 0; i < 7; i++ {
		res, err := s.Tick(ctx, "u1")
		if err != nil {
			t.Fatalf("day %d: unexpected error: %v", i+1, err)
		}
		granted = append(granted, res.Badges...)
		clk.Advance(24 * time.Hour)
	}
	if len(granted) != 1 || granted[0] != "streak_7" {
		t.Fatalf("expected only streak_7, got %v", granted)
	}
}

func TestStreaks_BadgeFailureDoesNotFailTick(t *testing.T) {
	s, clk := newStreaks(failingBadges{})
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		res, err := s.Tick(ctx, "u1")
		if err != nil {
			t.Fatalf("day %d: unexpected error: %v", i+1, err)
		}
		if len(res.Badges) != 0 {
			t.Fatalf("expected no badges, got %v", res.Badges)
		}
		clk.Advance(24 * time.Hour)
	}
}

func TestStreaks_LedgerFailureKeepsStreak(t *testing.T) {
	store, clk := newFixture()
	ledger := NewLedger(&failingEvents{}, store, clk, nil)
	s := NewStreaks(store, ledger, NewBadges(store, nil, clk, nil), clk, nil)

	_, err := s.Tick(context.Background(), "u1")
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	st, ok, _ := store.GetStreak(context.Background(), "u1")
	if !ok || st.Current != 1 {
		t.Fatalf("expected streak to be kept, got ok=%v %+v", ok, st)
	}
}

func TestStreaks_RejectsEmptyUser(t *testing.T) {
	s, _ := newStreaks(nil)
	if _, err := s.Tick(context.Background(), "  "); !errors.Is(err, domain.ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
}
