package api

import (
	"errors"
	"net/http"
	"time"

	"learning-rewards/clock"
	"learning-rewards/middleware/auth"
	"learning-rewards/rewards/domain"
)

type streakJSON struct {
	Current    int       `json:"current"`
	Best       int       `json:"best"`
	LastActive clock.Day `json:"lastActive"`
}

func toStreakJSON(st domain.StreakState) *streakJSON {
	return &streakJSON{Current: st.Current, Best: st.Best, LastActive: st.LastActive}
}

type meResponse struct {
	UserID string      `json:"userId"`
	XP     int         `json:"xp"`
	Streak *streakJSON `json:"streak"`
}

type tickResponse struct {
	OK        bool        `json:"ok"`
	Streak    *streakJSON `json:"streak"`
	Today     clock.Day   `json:"today"`
	AwardedXP bool        `json:"awardedXp"`
	Delta     int         `json:"delta"`
	XP        int         `json:"xp"`
	Badges    []string    `json:"badges"`
}

type completionResponse struct {
	OK        bool     `json:"ok"`
	AwardedXP bool     `json:"awardedXp"`
	Delta     int      `json:"delta"`
	Badges    []string `json:"badges"`
}

type awardResponse struct {
	Awarded bool `json:"awarded"`
	Delta   int  `json:"delta"`
}

type earnedJSON struct {
	BadgeKey  string    `json:"badgeKey"`
	AwardedAt time.Time `json:"awardedAt"`
}

type badgesResponse struct {
	Badges []domain.BadgeRule `json:"badges"`
	Earned []earnedJSON       `json:"earned"`
}

type unitRequest struct {
	ModuleSlug string `json:"moduleSlug"`
	UnitSlug   string `json:"unitSlug"`
}

type moduleRequest struct {
	ModuleSlug string `json:"moduleSlug"`
}

type awardRequest struct {
	EventKey   string `json:"eventKey"`
	ModuleSlug string `json:"moduleSlug"`
	UnitSlug   string `json:"unitSlug"`
}

func userID(r *http.Request) string {
	id, _ := auth.UserIDFrom(r.Context())
	return id
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	st, found, err := s.streaks.Current(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := meResponse{UserID: uid, XP: s.ledger.TotalXP(r.Context(), uid)}
	if found {
		resp.Streak = toStreakJSON(st)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStreakTick(w http.ResponseWriter, r *http.Request) {
	res, err := s.streaks.Tick(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tickResponse{
		OK:        true,
		Streak:    toStreakJSON(res.State),
		Today:     res.Today,
		AwardedXP: res.AwardedXP,
		Delta:     res.Delta,
		XP:        res.XP,
		Badges:    nonNil(res.Badges),
	})
}

func (s *Server) handleProgressUnit(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if err := decodeJSON(w, r, &req, s.maxBodyBytes); err != nil {
		writeDecodeError(w, err)
		return
	}
	res, err := s.progress.CompleteUnit(r.Context(), userID(r), req.ModuleSlug, req.UnitSlug)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, completionResponse{
		OK:        true,
		AwardedXP: res.Outcome.Awarded(),
		Delta:     res.Outcome.Delta,
		Badges:    nonNil(res.Badges),
	})
}

func (s *Server) handleProgressModule(w http.ResponseWriter, r *http.Request) {
	var req moduleRequest
	if err := decodeJSON(w, r, &req, s.maxBodyBytes); err != nil {
		writeDecodeError(w, err)
		return
	}
	res, err := s.progress.CompleteModule(r.Context(), userID(r), req.ModuleSlug)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, completionResponse{
		OK:        true,
		AwardedXP: res.Outcome.Awarded(),
		Delta:     res.Outcome.Delta,
		Badges:    nonNil(res.Badges),
	})
}

func (s *Server) handleXPAward(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := decodeJSON(w, r, &req, s.maxBodyBytes); err != nil {
		writeDecodeError(w, err)
		return
	}
	out, err := s.ledger.Record(r.Context(), domain.Event{
		UserID:    userID(r),
		Kind:      req.EventKey,
		ModuleRef: req.ModuleSlug,
		UnitRef:   req.UnitSlug,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, awardResponse{Awarded: out.Awarded(), Delta: out.Delta})
}

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	list, err := s.badges.Earned(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	earned := make([]earnedJSON, 0, len(list))
	for _, b := range list {
		earned = append(earned, earnedJSON{BadgeKey: b.BadgeKey, AwardedAt: b.AwardedAt})
	}
	writeJSON(w, http.StatusOK, badgesResponse{Badges: s.badges.Catalog(), Earned: earned})
}

// writeError traduz erros de domínio. Falha de backend vira 500 com mensagem
// genérica; a causa vai só para o log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidEventKind):
		writeErrorMsg(w, http.StatusBadRequest, "Invalid eventKey")
	case errors.Is(err, domain.ErrInvalidSlug):
		writeErrorMsg(w, http.StatusBadRequest, "Invalid moduleSlug/unitSlug")
	case errors.Is(err, domain.ErrInvalidUser):
		writeErrorMsg(w, http.StatusUnauthorized, "Unauthorized")
	default:
		s.logger.Printf("request_failed request_id=%s path=%s err=%v", requestID(r), r.URL.Path, err)
		writeErrorMsg(w, http.StatusInternalServerError, "Internal error")
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
