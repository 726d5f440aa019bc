package api

import (
	"alcyxob/coaching-platform/internal/cache"
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/logger"
	"alcyxob/coaching-platform/internal/repository/memory"
	"alcyxob/coaching-platform/internal/service"
	"alcyxob/coaching-platform/internal/storage"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubStorage struct {
	deleted []string
}

func (s *stubStorage) PutObject(context.Context, string, string, []byte, map[string]string) error {
	return nil
}
func (s *stubStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://archive.example/" + key, nil
}
func (s *stubStorage) DeleteObject(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

func newTestRouter(t *testing.T, archives storage.FileStorage) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx := context.Background()
	log := logger.Nop()
	store := memory.NewStore(memory.Options{ProvenanceIndexes: true})
	require.NoError(t, store.LibrarySessions.Upsert(ctx, &domain.LibrarySession{
		ID:        "lib-squat",
		CreatorID: "coach-1",
		Title:     "Back Squat",
		Exercises: []domain.Exercise{{ID: "ex-squat", Title: "Squat", Sets: []domain.Set{{ID: "set-1", Reps: "5"}}}},
	}))
	day0, day2, day3 := 0, 2, 3
	require.NoError(t, store.Plans.Upsert(ctx, &domain.Plan{
		ID:        "plan-1",
		CreatorID: "coach-1",
		Title:     "Strength",
		Modules: []domain.Module{
			{ID: "m1", Title: "Week1", Order: 0, Sessions: []domain.PlanSession{
				{ID: "s1-1", DayIndex: &day0, LibrarySessionRef: "lib-squat"},
				{ID: "s1-2", DayIndex: &day2, Order: 1, Title: "Conditioning", UseLocalContent: true},
			}},
			{ID: "m2", Title: "Week2", Order: 1, Sessions: []domain.PlanSession{
				{ID: "s2-1", DayIndex: &day3, LibrarySessionRef: "lib-squat"},
			}},
		},
	}))

	weekCache := cache.NewMemory(time.Minute)
	archiver := storage.NoopArchiver{}
	resolver := service.NewContentResolver(log, store, weekCache)
	personalization := service.NewPersonalizationService(log, store, weekCache, archiver)
	scheduler := service.NewSchedulerService(log, store, weekCache, archiver, personalization)
	propagation := service.NewPropagationService(log, store, weekCache, archiver)

	router := gin.New()
	SetupRoutes(router, log, testSecret, time.UTC, resolver, personalization, scheduler, propagation, archives)
	return router
}

func signToken(t *testing.T, userID string, role domain.Role, expires time.Time) string {
	t.Helper()
	claims := jwtClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func coachToken(t *testing.T) string {
	return signToken(t, "coach-1", domain.RoleCoach, time.Now().Add(time.Hour))
}

func clientToken(t *testing.T, clientID string) string {
	return signToken(t, clientID, domain.RoleClient, time.Now().Add(time.Hour))
}

func doRequest(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

const programPath = "/api/v1/coach/clients/client-1/programs/prog-1"

func assignPlan(t *testing.T, router *gin.Engine) {
	t.Helper()
	w := doRequest(t, router, http.MethodPost, programPath+"/plan-assignments", coachToken(t),
		AssignPlanRequest{PlanID: "plan-1", StartWeekKey: "2025-W10"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	wf := decode[domain.Workflow](t, w)
	require.Equal(t, domain.WorkflowCompleted, wf.Status)
}

func TestPingAndMetrics(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())

	w = doRequest(t, router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"expired token", signToken(t, "client-1", domain.RoleClient, time.Now().Add(-time.Minute)), http.StatusUnauthorized},
		{"valid token", clientToken(t, "client-1"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodGet, "/api/v1/me", tt.token, nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	t.Run("token signed with another secret", func(t *testing.T) {
		claims := jwtClaims{UserID: "client-1", Role: domain.RoleClient, RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other"))
		require.NoError(t, err)
		w := doRequest(t, router, http.MethodGet, "/api/v1/me", forged, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token without expiry", func(t *testing.T) {
		claims := jwtClaims{UserID: "client-1", Role: domain.RoleClient}
		noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		w := doRequest(t, router, http.MethodGet, "/api/v1/me", noExp, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRoleMiddleware(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodGet, programPath+"/plan-assignments", clientToken(t, "client-1"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/client/programs/prog-1/weeks/2025-W10", coachToken(t), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAssignPlanThenClientResolvesWeek(t *testing.T) {
	router := newTestRouter(t, nil)
	assignPlan(t, router)

	w := doRequest(t, router, http.MethodGet, "/api/v1/client/programs/prog-1/weeks/2025-W10", clientToken(t, "client-1"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	week := decode[service.ResolvedWeek](t, w)
	assert.Equal(t, service.WeekPlanBacked, week.State)
	assert.Equal(t, "plan-1", week.PlanID)
	require.Len(t, week.Sessions, 2)
	assert.Equal(t, "s1-1", week.Sessions[0].ID)
	assert.Equal(t, "Conditioning", week.Sessions[1].Title)

	w = doRequest(t, router, http.MethodGet, programPath+"/plan-assignments", coachToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[map[string]domain.PlanAssignment](t, w)
	assert.Len(t, view, 2)

	w = doRequest(t, router, http.MethodGet, "/api/v1/client/programs/prog-1/calendar?start=2025-03-10&end=2025-03-23", clientToken(t, "client-1"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	weeks := decode[[]service.ResolvedWeek](t, w)
	assert.Len(t, weeks, 2)
}

func TestErrorStatusMapping(t *testing.T) {
	router := newTestRouter(t, nil)
	assignPlan(t, router)
	coach := coachToken(t)

	t.Run("invalid week key is 400", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, programPath+"/weeks/2025-10", coach, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown plan is 404", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, programPath+"/plan-assignments", coach,
			AssignPlanRequest{PlanID: "missing", StartWeekKey: "2025-W20"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("personalize without client program is 409", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/api/v1/coach/clients/client-9/programs/prog-1/weeks/2025-W10/personalize", coach, nil)
		assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	})

	t.Run("reset without confirmation is 428", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, programPath+"/weeks/2025-W10/personalize", coach, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = doRequest(t, router, http.MethodPost, programPath+"/weeks/2025-W10/reset", coach, ResetRequest{})
		assert.Equal(t, http.StatusPreconditionRequired, w.Code)

		w = doRequest(t, router, http.MethodPost, programPath+"/weeks/2025-W10/reset", coach, ResetRequest{Confirm: true})
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("unknown workflow is 404", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/coach/workflows/nope", coach, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("move without target day is 400", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, programPath+"/moves", coach, gin.H{
			"sourceWeekKey": "2025-W10", "targetWeekKey": "2025-W11", "sessionId": "s1-1",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPersonalizeAndEditWeek(t *testing.T) {
	router := newTestRouter(t, nil)
	assignPlan(t, router)
	coach := coachToken(t)

	w := doRequest(t, router, http.MethodPatch, programPath+"/weeks/2025-W10/sessions/s1-1", coach, gin.H{"title": "Squat Day"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(t, router, http.MethodGet, "/api/v1/client/programs/prog-1/weeks/2025-W10", clientToken(t, "client-1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	week := decode[service.ResolvedWeek](t, w)
	assert.Equal(t, service.WeekPersonalized, week.State)
	require.Len(t, week.Sessions, 2)
	assert.Equal(t, "Squat Day", week.Sessions[0].Title)

	w = doRequest(t, router, http.MethodDelete, programPath+"/weeks/2025-W10/sessions/s1-1/exercises/missing", coach, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMoveSessionAcrossWeeks(t *testing.T) {
	router := newTestRouter(t, nil)
	assignPlan(t, router)

	w := doRequest(t, router, http.MethodPost, programPath+"/moves", coachToken(t), MoveSessionBody{
		SourceWeekKey:  "2025-W10",
		TargetWeekKey:  "2025-W11",
		SessionID:      "s1-1",
		TargetDayIndex: func() *int { v := 5; return &v }(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	wf := decode[domain.Workflow](t, w)
	assert.Equal(t, domain.WorkflowCompleted, wf.Status)
	assert.Equal(t, domain.WorkflowMoveSession, wf.Kind)

	w = doRequest(t, router, http.MethodGet, "/api/v1/coach/workflows/"+wf.ID, coachToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/client/programs/prog-1/weeks/2025-W11", clientToken(t, "client-1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	target := decode[service.ResolvedWeek](t, w)
	assert.Equal(t, service.WeekPersonalized, target.State)
	assert.Len(t, target.Sessions, 2)

	w = doRequest(t, router, http.MethodGet, "/api/v1/client/programs/prog-1/weeks/2025-W10", clientToken(t, "client-1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	source := decode[service.ResolvedWeek](t, w)
	require.Len(t, source.Sessions, 1)
	assert.Equal(t, "s1-2", source.Sessions[0].ID)

	// s1-2 is now the only session left in the plan-backed week.
	w = doRequest(t, router, http.MethodPost, programPath+"/moves", coachToken(t), MoveSessionBody{
		SourceWeekKey:  "2025-W10",
		TargetWeekKey:  "2025-W11",
		SessionID:      "s1-2",
		TargetDayIndex: func() *int { v := 6; return &v }(),
	})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = doRequest(t, router, http.MethodDelete, programPath+"/weeks/2025-W10/sessions/s1-2", coachToken(t), nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestClientAssignmentOwnership(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPost, programPath+"/dates/2025-04-02/session", coachToken(t),
		AssignSessionToDateRequest{LibrarySessionID: "lib-squat"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assignment := decode[domain.ClientSessionAssignment](t, w)

	w = doRequest(t, router, http.MethodGet, "/api/v1/client/assignments/"+assignment.ID, clientToken(t, "client-2"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/client/assignments/"+assignment.ID, clientToken(t, "client-1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[service.ResolvedSession](t, w)
	assert.Equal(t, "2025-04-02", res.Assignment.Date)

	w = doRequest(t, router, http.MethodPost, "/api/v1/client/assignments/"+assignment.ID+"/complete", clientToken(t, "client-2"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/v1/client/assignments/"+assignment.ID+"/complete", clientToken(t, "client-1"), nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestArchiveRoutes(t *testing.T) {
	t.Run("disabled without storage", func(t *testing.T) {
		router := newTestRouter(t, nil)
		w := doRequest(t, router, http.MethodGet, "/api/v1/coach/archives/url?key=archives/x.json", coachToken(t), nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("presigns and deletes", func(t *testing.T) {
		files := &stubStorage{}
		router := newTestRouter(t, files)

		w := doRequest(t, router, http.MethodGet, "/api/v1/coach/archives/url?key=archives/x.json", coachToken(t), nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode[map[string]string](t, w)
		assert.Equal(t, "https://archive.example/archives/x.json", body["downloadUrl"])

		w = doRequest(t, router, http.MethodGet, "/api/v1/coach/archives/url?key=../etc/passwd", coachToken(t), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doRequest(t, router, http.MethodDelete, "/api/v1/coach/archives?key=archives/x.json", coachToken(t), nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, []string{"archives/x.json"}, files.deleted)
	})
}
