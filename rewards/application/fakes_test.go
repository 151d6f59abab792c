package application

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"learning-rewards/clock"
	"learning-rewards/rewards/domain"
	"learning-rewards/rewards/infra"
)

var errBoom = errors.New("boom")

var testRules = []domain.XpRule{
	{Kind: domain.KindUnitCompleted, Delta: 10},
	{Kind: domain.KindModuleCompleted, Delta: 50},
	{Kind: domain.KindStreakDaily, Delta: 5},
}

func newFixture() (*infra.MemoryStore, *clock.Fake) {
	return infra.NewMemoryStore(testRules...), clock.NewFake(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
}

// failingEvents falha em toda inserção e conta as chamadas.
type failingEvents struct {
	calls atomic.Int64
}

func (f *failingEvents) InsertEvent(context.Context, domain.XpEvent) error {
	f.calls.Add(1)
	return errBoom
}

func (f *failingEvents) TotalXP(context.Context, string) (int, error) { return 0, errBoom }

type failingRules struct{}

func (failingRules) LookupDelta(context.Context, string) (int, bool, error) {
	return 0, false, errBoom
}

type failingBadges struct{}

func (failingBadges) InsertBadge(context.Context, domain.UserBadge) error { return errBoom }

func (failingBadges) ListBadges(context.Context, string) ([]domain.UserBadge, error) {
	return nil, errBoom
}

// failingCounts delega ao MemoryStore mas falha nas contagens.
type failingCounts struct {
	*infra.MemoryStore
}

func (failingCounts) CountUnits(context.Context, string) (int, error)   { return 0, errBoom }
func (failingCounts) CountModules(context.Context, string) (int, error) { return 0, errBoom }
