package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alem-hub/learning-tracker/internal/application/command"
	"github.com/alem-hub/learning-tracker/internal/application/query"
	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

type registerUserRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if !s.decode(w, r, &req) {
		return
	}

	p, err := s.deps.RegisterUser.Handle(r.Context(), command.RegisterUserCommand{
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, progress.ComputeStats(p))
}

// completionResponse is CompletionResult without the internal event list.
type completionResponse struct {
	UserID           shared.UserID     `json:"user_id"`
	Kind             progress.ItemKind `json:"kind"`
	ItemID           string            `json:"item_id"`
	AlreadyCompleted bool              `json:"already_completed"`
	XPGained         int64             `json:"xp_gained"`
	XPBreakdown      *progress.XPAward `json:"xp_breakdown,omitempty"`
	TotalXP          int64             `json:"total_xp"`
	CurrentStreak    int               `json:"current_streak"`
	LongestStreak    int               `json:"longest_streak"`
	Level            int64             `json:"level"`
	LeveledUp        bool              `json:"leveled_up"`
	NewBadges        []shared.BadgeID  `json:"new_badges"`
}

func newCompletionResponse(res *command.CompletionResult) completionResponse {
	badges := res.NewBadges
	if badges == nil {
		badges = []shared.BadgeID{}
	}
	return completionResponse{
		UserID:           res.UserID,
		Kind:             res.Kind,
		ItemID:           res.ItemID,
		AlreadyCompleted: res.AlreadyCompleted,
		XPGained:         res.XPGained,
		XPBreakdown:      res.XPBreakdown,
		TotalXP:          res.TotalXP,
		CurrentStreak:    res.CurrentStreak,
		LongestStreak:    res.LongestStreak,
		Level:            res.Level,
		LeveledUp:        res.LeveledUp,
		NewBadges:        badges,
	}
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	kind, err := progress.ParseItemKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.CompleteItem.Handle(r.Context(), command.CompleteItemCommand{
		UserID:        shared.UserID(userID(r)),
		Kind:          kind,
		ItemID:        chi.URLParam(r, "id"),
		CorrelationID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if !res.AlreadyCompleted {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, newCompletionResponse(res))
}

type upsertLessonRequest struct {
	Title                string `json:"title"`
	Category             string `json:"category"`
	Difficulty           int    `json:"difficulty"`
	XPReward             int64  `json:"xp_reward"`
	EstimatedTimeMinutes *int   `json:"estimated_time_minutes"`
	Order                int    `json:"order"`

	// Active - defaults to true when omitted.
	Active *bool `json:"active"`
}

type upsertLessonResponse struct {
	Lesson          progress.LessonDefinition `json:"lesson"`
	Created         bool                      `json:"created"`
	DefaultedReward bool                      `json:"defaulted_reward"`
}

func (s *Server) handleUpsertLesson(w http.ResponseWriter, r *http.Request) {
	var req upsertLessonRequest
	if !s.decode(w, r, &req) {
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	res, err := s.deps.UpsertLesson.Handle(r.Context(), command.UpsertLessonCommand{
		ID:                   shared.LessonID(chi.URLParam(r, "id")),
		Title:                req.Title,
		Category:             req.Category,
		Difficulty:           req.Difficulty,
		EstimatedTimeMinutes: req.EstimatedTimeMinutes,
		XPReward:             req.XPReward,
		Order:                req.Order,
		Active:               active,
		CorrelationID:        middleware.GetReqID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, upsertLessonResponse{
		Lesson:          res.Lesson,
		Created:         res.Created,
		DefaultedReward: res.DefaultedReward,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.UserStats.Handle(r.Context(), query.GetUserStatsQuery{
		UserID: shared.UserID(userID(r)),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

func (s *Server) handleBadgeProgress(w http.ResponseWriter, r *http.Request) {
	onlyLocked, ok := s.boolParam(w, r, "only_locked")
	if !ok {
		return
	}
	res, err := s.deps.Badges.Progress(r.Context(), query.GetBadgeProgressQuery{
		UserID:     shared.UserID(userID(r)),
		OnlyLocked: onlyLocked,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleUserBadges(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Badges.UserBadges(r.Context(), query.GetUserBadgesQuery{
		UserID: shared.UserID(userID(r)),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleBadgeCatalog(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Badges.Catalog(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.intParam(w, r, "limit")
	if !ok {
		return
	}
	res, err := s.deps.Recommendations.Handle(r.Context(), query.GetRecommendedLessonsQuery{
		UserID:   shared.UserID(userID(r)),
		Category: r.URL.Query().Get("category"),
		Limit:    limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleLeaderboard is public. The caller's row is highlighted when the
// identity header is present.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.intParam(w, r, "limit")
	if !ok {
		return
	}
	res, err := s.deps.Leaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		Limit:  limit,
		UserID: shared.UserID(r.Header.Get(s.config.UserHeader)),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_body", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// intParam reads an optional integer query parameter; absent means 0.
func (s *Server) intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_input", name+" must be an integer")
		return 0, false
	}
	return v, true
}

func (s *Server) boolParam(w http.ResponseWriter, r *http.Request, name string) (bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_input", name+" must be a boolean")
		return false, false
	}
	return v, true
}
