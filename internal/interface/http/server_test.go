package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learning-tracker/internal/application/command"
	"github.com/alem-hub/learning-tracker/internal/application/query"
	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
	"github.com/alem-hub/learning-tracker/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/learning-tracker/pkg/timeutil"
)

type recordedRequest struct {
	method, route string
	status        int
}

type fakeMetrics struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (m *fakeMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("tracker_up 1\n"))
	})
}

func (m *fakeMetrics) ObserveRequest(method, route string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, recordedRequest{method, route, status})
}

func (m *fakeMetrics) recorded() []recordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedRequest(nil), m.requests...)
}

type testEnv struct {
	store   *memory.Store
	metrics *fakeMetrics
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	clock := timeutil.NewFixedClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	require.NoError(t, store.SaveLesson(ctx, progress.LessonDefinition{
		ID: "intro", Title: "Intro", Category: "go", Difficulty: 1, XPReward: 80, Active: true, Order: 1,
	}))
	require.NoError(t, store.SaveLesson(ctx, progress.LessonDefinition{
		ID: "joins", Title: "Joins", Category: "sql", Difficulty: 2, XPReward: 100, Active: true, Order: 2,
	}))
	require.NoError(t, store.SaveBadge(ctx, progress.BadgeDefinition{
		ID: "first-lesson", Name: "First steps", Type: progress.BadgeLessonCompletion,
		RequiredValue: progress.Int64(1), Rarity: progress.RarityCommon, Active: true,
	}))
	require.NoError(t, store.SaveBadge(ctx, progress.BadgeDefinition{
		ID: "xp-1000", Name: "Grinder", Type: progress.BadgeXPMilestone,
		RequiredValue: progress.Int64(1000), Rarity: progress.RarityRare, Active: true,
	}))

	health := NewHealthChecker("test", time.Second)
	health.AddCheck("store", func(context.Context) error { return nil })

	m := &fakeMetrics{}
	srv := NewServer(DefaultConfig(), Dependencies{
		CompleteItem:    command.NewCompletionHandler(store, store, clock, nil, command.DefaultCompletionHandlerConfig()),
		RegisterUser:    command.NewRegisterUserHandler(store, clock, nil),
		UpsertLesson:    command.NewUpsertLessonHandler(store, clock, nil, nil),
		UserStats:       query.NewGetUserStatsHandler(store),
		Badges:          query.NewBadgeQueryHandler(store, store),
		Recommendations: query.NewGetRecommendedLessonsHandler(store, store, 0),
		Leaderboard:     query.NewGetLeaderboardHandler(store),
		Health:          health,
		Metrics:         m,
	})
	return &testEnv{store: store, metrics: m, handler: srv.Handler()}
}

// do sends a request as user (empty for anonymous) and decodes the envelope.
func (e *testEnv) do(t *testing.T, method, path, user, body string) (int, JSONResponse, json.RawMessage) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var raw struct {
		JSONResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw), rec.Body.String())
	return rec.Code, raw.JSONResponse, raw.Data
}

func (e *testEnv) register(t *testing.T, user string) {
	t.Helper()
	code, _, _ := e.do(t, http.MethodPost, "/users", "", `{"user_id":"`+user+`","display_name":"Ada"}`)
	require.Equal(t, http.StatusCreated, code)
}

func TestRegisterUser(t *testing.T) {
	env := newTestEnv(t)

	code, resp, data := env.do(t, http.MethodPost, "/users", "", `{"user_id":"u1","display_name":"Ada"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RequestID)

	var stats progress.UserStats
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, shared.UserID("u1"), stats.UserID)
	assert.Equal(t, int64(1), stats.Level)

	code, resp, _ = env.do(t, http.MethodPost, "/users", "", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, resp.Success)
	assert.Equal(t, "already_exists", resp.Error.Code)

	code, resp, _ = env.do(t, http.MethodPost, "/users", "", `{"user_id":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input", resp.Error.Code)

	code, resp, _ = env.do(t, http.MethodPost, "/users", "", `{"user":"u2"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_body", resp.Error.Code)
}

func TestCompleteLesson(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "u1")

	code, _, data := env.do(t, http.MethodPost, "/me/completions/lesson/intro", "u1", "")
	require.Equal(t, http.StatusCreated, code)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &first))
	assert.Equal(t, false, first["already_completed"])
	assert.Equal(t, 80.0, first["xp_gained"])
	assert.Equal(t, 80.0, first["total_xp"])
	assert.Equal(t, 1.0, first["current_streak"])
	assert.Equal(t, []interface{}{"first-lesson"}, first["new_badges"])
	assert.NotContains(t, first, "events")
	assert.NotContains(t, first, "attempts")

	// Repeating the completion is idempotent.
	code, _, data = env.do(t, http.MethodPost, "/me/completions/lesson/intro", "u1", "")
	require.Equal(t, http.StatusOK, code)

	var again map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &again))
	assert.Equal(t, true, again["already_completed"])
	assert.Equal(t, 0.0, again["xp_gained"])
	assert.Equal(t, 80.0, again["total_xp"])
	assert.Equal(t, []interface{}{}, again["new_badges"])
}

func TestCompleteErrors(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "u1")

	tests := []struct {
		name   string
		path   string
		user   string
		status int
		code   string
	}{
		{"missing user header", "/me/completions/lesson/intro", "", http.StatusUnauthorized, "missing_user"},
		{"unknown kind", "/me/completions/course/intro", "u1", http.StatusBadRequest, "invalid_input"},
		{"unknown lesson", "/me/completions/lesson/nope", "u1", http.StatusNotFound, "not_found"},
		{"unknown quest", "/me/completions/quest/nope", "u1", http.StatusNotFound, "not_found"},
		{"unregistered user", "/me/completions/lesson/intro", "ghost", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp, _ := env.do(t, http.MethodPost, tt.path, tt.user, "")
			assert.Equal(t, tt.status, code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestReadModels(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "u1")
	env.register(t, "u2")
	code, _, _ := env.do(t, http.MethodPost, "/me/completions/lesson/joins", "u2", "")
	require.Equal(t, http.StatusCreated, code)

	t.Run("stats", func(t *testing.T) {
		code, _, data := env.do(t, http.MethodGet, "/me/stats", "u2", "")
		require.Equal(t, http.StatusOK, code)
		var stats progress.UserStats
		require.NoError(t, json.Unmarshal(data, &stats))
		assert.Equal(t, int64(120), stats.TotalXP)
		assert.Equal(t, 1, stats.LessonsCompleted)
		assert.Equal(t, 1, stats.BadgesCount)
	})

	t.Run("badges", func(t *testing.T) {
		code, _, data := env.do(t, http.MethodGet, "/me/badges", "u2", "")
		require.Equal(t, http.StatusOK, code)
		var res query.GetUserBadgesResult
		require.NoError(t, json.Unmarshal(data, &res))
		require.Len(t, res.Badges, 1)
		assert.Equal(t, shared.BadgeID("first-lesson"), res.Badges[0].ID)
	})

	t.Run("badge progress", func(t *testing.T) {
		code, _, data := env.do(t, http.MethodGet, "/me/badges/progress?only_locked=true", "u2", "")
		require.Equal(t, http.StatusOK, code)
		var res query.GetBadgeProgressResult
		require.NoError(t, json.Unmarshal(data, &res))
		require.Len(t, res.Badges, 1)
		assert.Equal(t, shared.BadgeID("xp-1000"), res.Badges[0].Badge.ID)

		code, _, _ = env.do(t, http.MethodGet, "/me/badges/progress?only_locked=maybe", "u2", "")
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("catalog", func(t *testing.T) {
		code, _, data := env.do(t, http.MethodGet, "/badges/catalog", "", "")
		require.Equal(t, http.StatusOK, code)
		var res query.GetBadgeCatalogResult
		require.NoError(t, json.Unmarshal(data, &res))
		assert.Len(t, res.Badges, 2)
	})

	t.Run("recommendations", func(t *testing.T) {
		code, _, data := env.do(t, http.MethodGet, "/me/recommendations?limit=5", "u2", "")
		require.Equal(t, http.StatusOK, code)
		var res query.GetRecommendedLessonsResult
		require.NoError(t, json.Unmarshal(data, &res))
		for _, l := range res.Lessons {
			assert.NotEqual(t, shared.LessonID("joins"), l.ID)
		}

		code, _, _ = env.do(t, http.MethodGet, "/me/recommendations?limit=abc", "u2", "")
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("leaderboard", func(t *testing.T) {
		code, _, data := env.do(t, http.MethodGet, "/leaderboard?limit=10", "u2", "")
		require.Equal(t, http.StatusOK, code)
		var res query.GetLeaderboardResult
		require.NoError(t, json.Unmarshal(data, &res))
		require.Len(t, res.Entries, 2)
		assert.Equal(t, shared.UserID("u2"), res.Entries[0].UserID)
		require.NotNil(t, res.Me)
		assert.Equal(t, shared.UserID("u2"), res.Me.UserID)

		code, _, _ = env.do(t, http.MethodGet, "/leaderboard?limit=-1", "", "")
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestUpsertLesson(t *testing.T) {
	env := newTestEnv(t)

	code, _, data := env.do(t, http.MethodPut, "/lessons/maps", "",
		`{"title":"Maps","category":"go","difficulty":3,"estimated_time_minutes":10}`)
	require.Equal(t, http.StatusCreated, code)

	var res upsertLessonResponse
	require.NoError(t, json.Unmarshal(data, &res))
	assert.True(t, res.Created)
	assert.True(t, res.DefaultedReward)
	assert.True(t, res.Lesson.Active)
	assert.Equal(t, 3, res.Lesson.Order)
	assert.Equal(t, int64(50+2*25+10*2), res.Lesson.XPReward)

	code, _, data = env.do(t, http.MethodPut, "/lessons/maps", "",
		`{"title":"Maps","difficulty":3,"xp_reward":90,"order":3,"active":false}`)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(data, &res))
	assert.False(t, res.Created)
	assert.False(t, res.Lesson.Active)
	assert.Equal(t, int64(90), res.Lesson.XPReward)

	code, resp, _ := env.do(t, http.MethodPut, "/lessons/maps", "", `{"title":"Maps","difficulty":9,"xp_reward":90}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "invalid_definition", resp.Error.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	code, _, data := env.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(data, &status))
	assert.True(t, status.Healthy)
	assert.Equal(t, "test", status.Version)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "tracker_up 1\n", rec.Body.String())

	env.do(t, http.MethodGet, "/me/stats", "ghost", "")
	assert.Contains(t, env.metrics.recorded(), recordedRequest{http.MethodGet, "/me/stats", http.StatusNotFound})
	assert.Contains(t, env.metrics.recorded(), recordedRequest{http.MethodGet, "/healthz", http.StatusOK})
}

func TestHealthChecker(t *testing.T) {
	hc := NewHealthChecker("1.0.0", 50*time.Millisecond)
	hc.AddCheck("db", func(context.Context) error { return nil })
	hc.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	hc.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := hc.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "failing checks: redis, slow", status.Message)
	assert.True(t, status.Checks["db"].Healthy)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"].Message)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{shared.ErrUserNotFound, http.StatusNotFound},
		{shared.ErrUserExists, http.StatusConflict},
		{shared.ErrProgressConflict, http.StatusConflict},
		{shared.NewDomainError("lesson", "Validate", shared.ErrInvalidDefinition, "bad"), http.StatusUnprocessableEntity},
		{shared.NewDomainError("lesson", "Validate", shared.ErrInvalidInput, "bad"), http.StatusBadRequest},
		{shared.WrapError("postgres", "Load", shared.ErrServiceUnavailable, "down", errors.New("dial")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
