// Package api expõe as rotas HTTP de recompensas.
//
// Cada rota /api passa por: JSON guard (415), autenticação (401), rate limit
// da rota (429) e só então o handler.
package api

import (
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"learning-rewards/config"
	"learning-rewards/middleware/auth"
	"learning-rewards/middleware/jsonguard"
	"learning-rewards/middleware/ratelimit"
	rldomain "learning-rewards/middleware/ratelimit/domain"
	"learning-rewards/rewards/application"
)

type Dependencies struct {
	Policies     map[string]rldomain.Policy
	MaxBodyBytes int64
	Concurrency  ratelimit.ConcurrencyOptions

	Limiter  *ratelimit.Limiter
	Auth     auth.Authenticator
	Ledger   *application.Ledger
	Streaks  *application.Streaks
	Progress *application.Progress
	Badges   *application.Badges
	Logger   *log.Logger
}

type Server struct {
	policies     map[string]rldomain.Policy
	maxBodyBytes int64
	concurrency  ratelimit.ConcurrencyOptions

	limiter  *ratelimit.Limiter
	auth     auth.Authenticator
	ledger   *application.Ledger
	streaks  *application.Streaks
	progress *application.Progress
	badges   *application.Badges
	logger   *log.Logger

	Router http.Handler
}

func NewServer(deps Dependencies) *Server {
	logSink := deps.Logger
	if logSink == nil {
		logSink = log.New(io.Discard, "", 0)
	}
	policies := deps.Policies
	if policies == nil {
		policies = config.DefaultPolicies()
	}
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = jsonguard.DefaultMaxBytes
	}

	s := &Server{
		policies:     policies,
		maxBodyBytes: maxBody,
		concurrency:  deps.Concurrency,
		limiter:      deps.Limiter,
		auth:         deps.Auth,
		ledger:       deps.Ledger,
		streaks:      deps.Streaks,
		progress:     deps.Progress,
		badges:       deps.Badges,
		logger:       logSink,
	}
	s.Router = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(ratelimit.ConcurrencyMiddleware(s.concurrency))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonguard.New(jsonguard.Options{MaxBytes: s.maxBodyBytes}))
		r.Use(auth.Middleware(s.auth, s.logger))

		r.With(s.rateLimit(config.RouteMe)).Get("/me", s.handleMe)
		r.With(s.rateLimit(config.RouteStreakTick)).Post("/streak/tick", s.handleStreakTick)
		r.With(s.rateLimit(config.RouteProgressUnit)).Post("/progress/unit", s.handleProgressUnit)
		r.With(s.rateLimit(config.RouteProgressModule)).Post("/progress/module", s.handleProgressModule)
		r.With(s.rateLimit(config.RouteXPAward)).Post("/xp/award", s.handleXPAward)
		r.With(s.rateLimit(config.RouteBadges)).Get("/badges/me", s.handleBadges)
	})

	return r
}

// rateLimit aplica a política da rota. Sem Limiter ou com a política
// desligada a rota fica sem limite.
func (s *Server) rateLimit(route string) func(http.Handler) http.Handler {
	p, ok := s.policies[route]
	if s.limiter == nil || !ok || p.Disabled() {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return s.limiter.Middleware(p)
}
