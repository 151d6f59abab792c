package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"learning-rewards/clock"
	"learning-rewards/config"
	"learning-rewards/middleware/auth"
	"learning-rewards/middleware/ratelimit"
	rldomain "learning-rewards/middleware/ratelimit/domain"
	rlinfra "learning-rewards/middleware/ratelimit/infra"
	"learning-rewards/rewards/application"
	"learning-rewards/rewards/domain"
	"learning-rewards/rewards/infra"
)

type fixture struct {
	srv   *Server
	store *infra.MemoryStore
	clock *clock.Fake
}

// fakeAuth aceita "tok-<user>" e devolve <user>.
var fakeAuth = auth.AuthenticatorFunc(func(_ context.Context, token string) (string, error) {
	if id, ok := strings.CutPrefix(token, "tok-"); ok && id != "" {
		return id, nil
	}
	return "", auth.ErrInvalidToken
})

func newFixture(t *testing.T, policies map[string]rldomain.Policy, badgeStore domain.BadgeStore) *fixture {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	store := infra.NewMemoryStore(config.DefaultXPRules()...)
	if badgeStore == nil {
		badgeStore = store
	}

	ledger := application.NewLedger(store, store, clk, nil)
	badges := application.NewBadges(badgeStore, nil, clk, nil)
	limiter := ratelimit.New(ratelimit.Options{
		Store: rlinfra.NewMemoryStore(rlinfra.WithClock(clk)),
		Clock: clk,
	})

	srv := NewServer(Dependencies{
		Policies: policies,
		Limiter:  limiter,
		Auth:     fakeAuth,
		Ledger:   ledger,
		Streaks:  application.NewStreaks(store, ledger, badges, clk, nil),
		Progress: application.NewProgress(store, ledger, badges, clk, nil),
		Badges:   badges,
	})
	return &fixture{srv: srv, store: store, clock: clk}
}

func (f *fixture) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
		if method == http.MethodPost {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer tok-"+user)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rr := httptest.NewRecorder()
	f.srv.Router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v (body=%q)", err, rr.Body.String())
	}
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, nil)
	rr := f.do(t, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestMe_NoStreakYet(t *testing.T) {
	f := newFixture(t, nil, nil)
	rr := f.do(t, http.MethodGet, "/api/me", "u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decode[map[string]any](t, rr)
	if resp["userId"] != "u1" || resp["xp"] != float64(0) || resp["streak"] != nil {
		t.Fatalf("unexpected body: %v", resp)
	}
}

func TestStreakTick(t *testing.T) {
	f := newFixture(t, nil, nil)

	rr := f.do(t, http.MethodPost, "/api/streak/tick", "u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	first := decode[tickResponse](t, rr)
	if !first.OK || !first.AwardedXP || first.Delta != 5 || first.XP != 5 || first.Today != "2024-01-01" {
		t.Fatalf("unexpected first tick: %+v", first)
	}
	if first.Streak.Current != 1 || first.Streak.Best != 1 || first.Streak.LastActive != "2024-01-01" {
		t.Fatalf("unexpected streak: %+v", first.Streak)
	}

	rr = f.do(t, http.MethodPost, "/api/streak/tick", "u1", "")
	again := decode[tickResponse](t, rr)
	if again.AwardedXP || again.XP != 5 || again.Streak.Current != 1 {
		t.Fatalf("unexpected same-day tick: %+v", again)
	}

	me := decode[meResponse](t, f.do(t, http.MethodGet, "/api/me", "u1", ""))
	if me.XP != 5 || me.Streak == nil || me.Streak.Current != 1 {
		t.Fatalf("unexpected me: %+v", me)
	}
}

func TestProgressUnit(t *testing.T) {
	f := newFixture(t, nil, nil)
	body := `{"moduleSlug":"basics","unitSlug":"intro"}`

	rr := f.do(t, http.MethodPost, "/api/progress/unit", "u1", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	resp := decode[completionResponse](t, rr)
	if !resp.OK || !resp.AwardedXP || resp.Delta != 10 || len(resp.Badges) != 1 || resp.Badges[0] != "first_unit" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp = decode[completionResponse](t, f.do(t, http.MethodPost, "/api/progress/unit", "u1", body))
	if resp.AwardedXP || resp.Delta != 10 || len(resp.Badges) != 0 {
		t.Fatalf("unexpected replay: %+v", resp)
	}
}

func TestProgressModule(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp := decode[completionResponse](t, f.do(t, http.MethodPost, "/api/progress/module", "u1", `{"moduleSlug":"basics"}`))
	if !resp.AwardedXP || resp.Delta != 50 || len(resp.Badges) != 1 || resp.Badges[0] != "first_module" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestProgressUnit_BadgeFailureStillOK(t *testing.T) {
	f := newFixture(t, nil, failingBadges{})

	rr := f.do(t, http.MethodPost, "/api/progress/unit", "u1", `{"moduleSlug":"basics","unitSlug":"intro"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decode[completionResponse](t, rr)
	if !resp.AwardedXP || len(resp.Badges) != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestXPAward(t *testing.T) {
	f := newFixture(t, nil, nil)
	body := `{"eventKey":"unit:completed","moduleSlug":"basics","unitSlug":"bad slug!"}`

	resp := decode[awardResponse](t, f.do(t, http.MethodPost, "/api/xp/award", "u1", body))
	if !resp.Awarded || resp.Delta != 10 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	resp = decode[awardResponse](t, f.do(t, http.MethodPost, "/api/xp/award", "u1", body))
	if resp.Awarded || resp.Delta != 10 {
		t.Fatalf("unexpected replay: %+v", resp)
	}

	// slug inválido foi gravado como não definido
	evs := f.store.Events("u1")
	if len(evs) != 1 || evs[0].Event.UnitRef != "" || evs[0].Event.ModuleRef != "basics" {
		t.Fatalf("unexpected stored events: %+v", evs)
	}
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t, nil, nil)
	cases := []struct {
		path, body string
		code       int
		msg        string
	}{
		{"/api/xp/award", `{"eventKey":"x"}`, http.StatusBadRequest, "Invalid eventKey"},
		{"/api/xp/award", `{"eventKey":"has space"}`, http.StatusBadRequest, "Invalid eventKey"},
		{"/api/progress/unit", `{"moduleSlug":"basics"}`, http.StatusBadRequest, "Invalid moduleSlug/unitSlug"},
		{"/api/progress/module", `{"moduleSlug":"a/b"}`, http.StatusBadRequest, "Invalid moduleSlug/unitSlug"},
		{"/api/progress/unit", `{not json`, http.StatusBadRequest, "Invalid JSON"},
	}
	for _, c := range cases {
		rr := f.do(t, http.MethodPost, c.path, "u1", c.body)
		if rr.Code != c.code {
			t.Fatalf("%s %s: expected %d, got %d", c.path, c.body, c.code, rr.Code)
		}
		if got := decode[map[string]string](t, rr)["error"]; got != c.msg {
			t.Fatalf("%s %s: expected %q, got %q", c.path, c.body, c.msg, got)
		}
	}
}

func TestUnauthenticated(t *testing.T) {
	f := newFixture(t, nil, nil)
	for _, path := range []string{"/api/me", "/api/badges/me"} {
		if rr := f.do(t, http.MethodGet, path, "", ""); rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rr.Code)
		}
	}
	if rr := f.do(t, http.MethodPost, "/api/streak/tick", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestNonJSONPost(t *testing.T) {
	f := newFixture(t, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/xp/award", strings.NewReader(`eventKey=x`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer tok-u1")
	rr := httptest.NewRecorder()

	f.srv.Router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	policies := config.DefaultPolicies()
	policies[config.RouteMe] = rldomain.Policy{KeyPrefix: "api:me", Limit: 2, Window: time.Minute}
	f := newFixture(t, policies, nil)

	for i := 0; i < 2; i++ {
		if rr := f.do(t, http.MethodGet, "/api/me", "u1", ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}
	rr := f.do(t, http.MethodGet, "/api/me", "u1", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rr.Header().Get("Retry-After"))
	}

	// outra rota tem bucket próprio
	if rr := f.do(t, http.MethodGet, "/api/badges/me", "u1", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on another route, got %d", rr.Code)
	}

	f.clock.Advance(time.Minute)
	if rr := f.do(t, http.MethodGet, "/api/me", "u1", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 after window, got %d", rr.Code)
	}
}

func TestUnauthenticatedDoesNotConsumeQuota(t *testing.T) {
	policies := config.DefaultPolicies()
	policies[config.RouteMe] = rldomain.Policy{KeyPrefix: "api:me", Limit: 1, Window: time.Minute}
	f := newFixture(t, policies, nil)

	for i := 0; i < 3; i++ {
		f.do(t, http.MethodGet, "/api/me", "", "")
	}
	if rr := f.do(t, http.MethodGet, "/api/me", "u1", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestBadges(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.do(t, http.MethodPost, "/api/progress/module", "u1", `{"moduleSlug":"basics"}`)

	resp := decode[badgesResponse](t, f.do(t, http.MethodGet, "/api/badges/me", "u1", ""))
	if len(resp.Badges) != len(domain.DefaultBadges) {
		t.Fatalf("expected full catalog, got %d", len(resp.Badges))
	}
	if len(resp.Earned) != 1 || resp.Earned[0].BadgeKey != "first_module" {
		t.Fatalf("unexpected earned: %+v", resp.Earned)
	}
}

func TestBackendFailureIs500(t *testing.T) {
	f := newFixture(t, nil, failingBadges{})
	rr := f.do(t, http.MethodGet, "/api/badges/me", "u1", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if got := decode[map[string]string](t, rr)["error"]; got != "Internal error" {
		t.Fatalf("expected generic message, got %q", got)
	}
}

type failingBadges struct{}

func (failingBadges) InsertBadge(context.Context, domain.UserBadge) error {
	return domain.ErrBackendUnavailable
}

func (failingBadges) ListBadges(context.Context, string) ([]domain.UserBadge, error) {
	return nil, domain.ErrBackendUnavailable
}
