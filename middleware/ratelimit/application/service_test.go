package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"learning-rewards/clock"
	"learning-rewards/middleware/ratelimit/domain"
)

// fakeStore implementa janela fixa em memória usando o relógio injetado,
// independente do pacote infra.
type fakeStore struct {
	mu      sync.Mutex
	clk     clock.Clock
	buckets map[string]domain.Bucket
	err     error
	keys    []string
}

func newFakeStore(clk clock.Clock) *fakeStore {
	return &fakeStore{clk: clk, buckets: map[string]domain.Bucket{}}
}

func (s *fakeStore) Increment(_ context.Context, key string, window time.Duration) (domain.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	if s.err != nil {
		return domain.Bucket{}, s.err
	}
	now := s.clk.Now()
	b, ok := s.buckets[key]
	if !ok || !now.Before(b.ResetAt) {
		b = domain.Bucket{Key: key, Count: 1, ResetAt: now.Add(window)}
	} else {
		b.Count++
	}
	s.buckets[key] = b
	return b, nil
}

func TestService_Check_AllowsWhenNoStore(t *testing.T) {
	svc := Service{}
	dec := svc.Check(context.Background(), "k", domain.Policy{KeyPrefix: "p", Limit: 1, Window: time.Minute})
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Check_DisabledPolicySkipsStore(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	store := newFakeStore(clk)
	svc := Service{Store: store, Clock: clk}

	dec := svc.Check(context.Background(), "k", domain.Policy{KeyPrefix: "p", Limit: 0, Window: time.Minute})
	if !dec.Allowed {
		t.Fatalf("expected allowed for disabled policy")
	}
	if len(store.keys) != 0 {
		t.Fatalf("expected store untouched, got %v", store.keys)
	}
}

func TestService_Check_ComposesKeyWithPrefix(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	store := newFakeStore(clk)
	svc := Service{Store: store, Clock: clk}

	svc.Check(context.Background(), "1.2.3.4", domain.Policy{KeyPrefix: "api:me", Limit: 5, Window: time.Minute})
	svc.Check(context.Background(), "", domain.Policy{KeyPrefix: "api:me", Limit: 5, Window: time.Minute})

	if store.keys[0] != "api:me:1.2.3.4" {
		t.Fatalf("expected composite key, got %q", store.keys[0])
	}
	if store.keys[1] != "api:me:unknown" {
		t.Fatalf("expected unknown sentinel, got %q", store.keys[1])
	}
}

func TestService_Check_ExactlyLimitAdmittedPerWindow(t *testing.T) {
	for _, limit := range []int{1, 2, 5, 30} {
		clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		svc := Service{Store: newFakeStore(clk), Clock: clk}
		p := domain.Policy{KeyPrefix: "p", Limit: limit, Window: time.Minute}

		for i := 1; i <= limit; i++ {
			if dec := svc.Check(context.Background(), "k", p); !dec.Allowed {
				t.Fatalf("limit=%d: call %d unexpectedly denied", limit, i)
			}
		}
		dec := svc.Check(context.Background(), "k", p)
		if dec.Allowed {
			t.Fatalf("limit=%d: call %d should be denied", limit, limit+1)
		}
		if dec.RetryAfter < time.Second || dec.RetryAfter > p.Window {
			t.Fatalf("limit=%d: RetryAfter out of range: %s", limit, dec.RetryAfter)
		}

		clk.Advance(p.Window)
		dec = svc.Check(context.Background(), "k", p)
		if !dec.Allowed || dec.Count != 1 {
			t.Fatalf("limit=%d: expected fresh window with count=1, got %+v", limit, dec)
		}
	}
}

func TestService_Check_ScenarioRetryAfter40s(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	svc := Service{Store: newFakeStore(clk), Clock: clk}
	p := domain.Policy{KeyPrefix: "p", Limit: 2, Window: 60 * time.Second}

	if !svc.Check(context.Background(), "k", p).Allowed {
		t.Fatalf("t=0 should be admitted")
	}
	clk.Advance(10 * time.Second)
	if !svc.Check(context.Background(), "k", p).Allowed {
		t.Fatalf("t=10 should be admitted")
	}
	clk.Advance(10 * time.Second)
	dec := svc.Check(context.Background(), "k", p)
	if dec.Allowed {
		t.Fatalf("t=20 should be denied")
	}
	if dec.RetryAfter != 40*time.Second {
		t.Fatalf("expected RetryAfter=40s, got %s", dec.RetryAfter)
	}
}

func TestService_Check_FailsOpenOnStoreError(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	store := newFakeStore(clk)
	store.err = errors.New("boom")
	svc := Service{Store: store, Clock: clk}

	dec := svc.Check(context.Background(), "k", domain.Policy{KeyPrefix: "p", Limit: 1, Window: time.Minute})
	if !dec.Allowed {
		t.Fatalf("expected allowed when store fails")
	}
}

func TestRetryAfter_RoundsUpWithOneSecondFloor(t *testing.T) {
	now := time.Unix(100, 0)
	cases := []struct {
		reset time.Time
		want  time.Duration
	}{
		{now.Add(40 * time.Second), 40 * time.Second},
		{now.Add(39*time.Second + time.Millisecond), 40 * time.Second},
		{now.Add(200 * time.Millisecond), time.Second},
		{now, time.Second},
		{now.Add(-time.Second), time.Second},
	}
	for _, c := range cases {
		if got := RetryAfter(c.reset, now); got != c.want {
			t.Fatalf("RetryAfter(%s): expected %s, got %s", c.reset.Sub(now), c.want, got)
		}
	}
}
