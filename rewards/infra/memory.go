package infra

import (
	"context"
	"sort"
	"sync"
	"time"

	"learning-rewards/rewards/domain"
)

// MemoryStore implementa todos os stores de recompensas em memória.
// A unicidade é checada sob o mesmo mutex da inserção.
type MemoryStore struct {
	mu      sync.Mutex
	rules   map[string]int
	events  map[string]map[string]domain.XpEvent // user -> idempotency key -> evento
	streaks map[string]domain.StreakState
	badges  map[string]map[string]domain.UserBadge
	units   map[string]map[string]time.Time // user -> module/unit
	modules map[string]map[string]time.Time // user -> module (quiz aprovado)
}

func NewMemoryStore(rules ...domain.XpRule) *MemoryStore {
	s := &MemoryStore{
		rules:   make(map[string]int),
		events:  make(map[string]map[string]domain.XpEvent),
		streaks: make(map[string]domain.StreakState),
		badges:  make(map[string]map[string]domain.UserBadge),
		units:   make(map[string]map[string]time.Time),
		modules: make(map[string]map[string]time.Time),
	}
	for _, r := range rules {
		s.rules[r.Kind] = r.Delta
	}
	return s
}

// SetRule cria ou troca a regra de um tipo de evento.
func (s *MemoryStore) SetRule(kind string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[kind] = delta
}

func (s *MemoryStore) InsertEvent(_ context.Context, ev domain.XpEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := s.events[ev.Event.UserID]
	if byKey == nil {
		byKey = make(map[string]domain.XpEvent)
		s.events[ev.Event.UserID] = byKey
	}
	key := ev.Event.IdempotencyKey()
	if _, exists := byKey[key]; exists {
		return domain.ErrDuplicate
	}
	byKey[key] = ev
	return nil
}

// Events retorna os eventos do usuário em ordem de criação.
func (s *MemoryStore) Events(userID string) []domain.XpEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.XpEvent, 0, len(s.events[userID]))
	for _, ev := range s.events[userID] {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) TotalXP(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, ev := range s.events[userID] {
		total += s.rules[ev.Event.Kind]
	}
	return total, nil
}

func (s *MemoryStore) LookupDelta(_ context.Context, kind string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.rules[kind]
	return d, ok, nil
}

func (s *MemoryStore) GetStreak(_ context.Context, userID string) (domain.StreakState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streaks[userID]
	return st, ok, nil
}

func (s *MemoryStore) UpsertStreak(_ context.Context, st domain.StreakState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaks[st.UserID] = st
	return nil
}

func (s *MemoryStore) InsertBadge(_ context.Context, b domain.UserBadge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := s.badges[b.UserID]
	if byKey == nil {
		byKey = make(map[string]domain.UserBadge)
		s.badges[b.UserID] = byKey
	}
	if _, exists := byKey[b.BadgeKey]; exists {
		return domain.ErrDuplicate
	}
	byKey[b.BadgeKey] = b
	return nil
}

func (s *MemoryStore) ListBadges(_ context.Context, userID string) ([]domain.UserBadge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserBadge, 0, len(s.badges[userID]))
	for _, b := range s.badges[userID] {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AwardedAt.Equal(out[j].AwardedAt) {
			return out[i].BadgeKey < out[j].BadgeKey
		}
		return out[i].AwardedAt.After(out[j].AwardedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpsertUnitProgress(_ context.Context, userID, module, unit string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.units[userID]
	if m == nil {
		m = make(map[string]time.Time)
		s.units[userID] = m
	}
	m[module+"/"+unit] = at
	return nil
}

func (s *MemoryStore) UpsertModuleProgress(_ context.Context, userID, module string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.modules[userID]
	if m == nil {
		m = make(map[string]time.Time)
		s.modules[userID] = m
	}
	m[module] = at
	return nil
}

func (s *MemoryStore) CountUnits(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.units[userID]), nil
}

func (s *MemoryStore) CountModules(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.modules[userID]), nil
}
