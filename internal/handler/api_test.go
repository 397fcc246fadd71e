package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ace-lms-api/internal/middleware"
	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/internal/service"
	"github.com/noah-isme/ace-lms-api/internal/store"
	"github.com/noah-isme/ace-lms-api/pkg/jobs"
	"github.com/noah-isme/ace-lms-api/pkg/storage"
)

// inlineQueue runs report jobs synchronously so a request observes the finished job.
type inlineQueue struct {
	worker *service.ReportWorker
}

func (q inlineQueue) Enqueue(job jobs.Job) error {
	return q.worker.Handle(context.Background(), job)
}

type testAPI struct {
	router *gin.Engine
	audit  *store.UserRepository
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(m.Reset)

	catalog, err := service.NewCatalog(false)
	require.NoError(t, err)

	users := store.NewUserRepository(m)
	courses := store.NewCourseRepository(m)
	requirements := store.NewRequirementRepository(m)
	reports := store.NewReportRepository(m)

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	exporter := service.NewExportService(
		service.ReportSources{Users: users, Courses: courses, Requirements: requirements},
		files, storage.NewSignedURLSigner("test-secret", time.Hour), catalog,
		service.ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, nil,
	)
	worker := service.NewReportWorker(reports, exporter, 1, nil)

	authSvc := service.NewAuthService(users, nil, nil, service.AuthConfig{
		AccessTokenSecret:  "access-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: time.Hour,
		Issuer:             "ace-lms-test",
	})
	userSvc := service.NewUserService(users, nil, catalog, nil, nil)
	courseSvc := service.NewCourseService(courses, users, nil, catalog, nil, nil)
	requirementSvc := service.NewRequirementService(requirements, nil, catalog, nil, nil)
	gamificationSvc := service.NewGamificationService(store.NewGamificationRepository(m), users, nil, catalog, nil, nil, service.GamificationConfig{})

	router := gin.New()
	Register(router.Group("/api/v1"), Handlers{
		Auth:         NewAuthHandler(authSvc),
		Courses:      NewCourseHandler(courseSvc),
		Requirements: NewRequirementHandler(requirementSvc),
		Users:        NewUserHandler(userSvc),
		Gamification: NewGamificationHandler(gamificationSvc),
		Reports:      NewReportHandler(service.NewReportService(reports, inlineQueue{worker: worker}, exporter, users, nil, nil, service.ReportServiceConfig{})),
		Settings:     NewSettingsHandler(service.NewSettingsService(store.NewSettingsRepository(m), users, nil, nil)),
		Dashboard: NewDashboardHandler(service.NewDashboardService(service.DashboardServiceParams{
			Users:        userSvc,
			Courses:      courseSvc,
			Requirements: requirementSvc,
			Gamification: gamificationSvc,
		})),
		Metrics: NewMetricsHandler(service.NewMetricsService()),
	}, RouteDeps{Auth: middleware.JWT(authSvc), Audit: users})

	return testAPI{router: router, audit: users}
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *struct{ Code string } `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func (a testAPI) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
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
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (a testAPI) login(t *testing.T, email string) string {
	t.Helper()
	rec, env := a.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{Email: email, Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res models.Session
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res.AccessToken
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

const (
	adminEmail      = "wole@fincra.com"
	instructorEmail = "yewande@fincra.com"
	learnerEmail    = "anna@fincra.com"
)

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{Email: learnerEmail, Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{Email: "kemi@fincra.com", Password: "password123"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := api.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{Email: learnerEmail, Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[models.Session](t, env.Data)
	assert.Equal(t, models.RoleLearner, login.User.Role)

	rec, env = api.do(t, http.MethodGet, "/api/v1/auth/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "usr-003", decode[models.User](t, env.Data).ID)

	rec, _ = api.do(t, http.MethodPost, "/api/v1/auth/logout", login.AccessToken, models.LogoutRequest{RefreshToken: login.RefreshToken})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/v1/auth/refresh", "", models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{Email: learnerEmail, Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[models.Session](t, env.Data)

	rec, env = api.do(t, http.MethodPut, "/api/v1/auth/password", login.AccessToken, models.ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, _ = api.do(t, http.MethodPut, "/api/v1/auth/password", login.AccessToken, models.ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "learning-2025"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec, _ = api.do(t, http.MethodPost, "/api/v1/auth/refresh", "", models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{Email: learnerEmail, Password: "password123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = api.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{Email: learnerEmail, Password: "learning-2025"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListingPastTheLastPage(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, learnerEmail)

	for _, page := range []string{"2", "461168601842738792", "9223372036854775807"} {
		rec, env := api.do(t, http.MethodGet, "/api/v1/courses?page="+page, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, page)
		assert.Empty(t, decode[[]models.Course](t, env.Data), page)
		require.NotNil(t, env.Pagination)
		assert.Equal(t, 6, env.Pagination.TotalCount)
	}
}

func TestCourseListingCarriesSummary(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, learnerEmail)

	rec, env := api.do(t, http.MethodGet, "/api/v1/courses?status=in_progress&sort_by=progress&sort_order=desc", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	courses := decode[[]models.Course](t, env.Data)
	require.Len(t, courses, 3)
	assert.Equal(t, "crs-002", courses[0].ID)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 3, env.Pagination.TotalCount)

	summary, ok := env.Meta["summary"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 6, summary["total"])
	assert.EqualValues(t, 1, summary["completed"])

	rec, _ = api.do(t, http.MethodGet, "/api/v1/courses?foo=bar", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(t, http.MethodGet, "/api/v1/courses?sort_by=rating", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(t, http.MethodGet, "/api/v1/courses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCourseEnrollAndProgress(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, learnerEmail)

	rec, env := api.do(t, http.MethodPost, "/api/v1/courses/crs-001/enroll", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decode[models.Course](t, env.Data).IsEnrolled)

	rec, _ = api.do(t, http.MethodPost, "/api/v1/courses/crs-001/enroll", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = api.do(t, http.MethodPut, "/api/v1/courses/crs-001/progress", token, map[string]int{"progress": 100})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, decode[models.Course](t, env.Data).Progress)

	rec, _ = api.do(t, http.MethodPut, "/api/v1/courses/crs-001/progress", token, map[string]int{"progress": 101})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequirementsListing(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, learnerEmail)

	rec, env := api.do(t, http.MethodGet, "/api/v1/mvk/requirements?status=completed", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Requirement](t, env.Data), 2)
	summary := env.Meta["summary"].(map[string]interface{})
	assert.EqualValues(t, 6, summary["total"])

	rec, env = api.do(t, http.MethodGet, "/api/v1/mvk/progress", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.CollegeProgress](t, env.Data), 5)
}

func TestUserRoutesAreGuarded(t *testing.T) {
	api := newTestAPI(t)
	learner := api.login(t, learnerEmail)
	instructor := api.login(t, instructorEmail)
	admin := api.login(t, adminEmail)

	rec, _ := api.do(t, http.MethodGet, "/api/v1/users", learner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = api.do(t, http.MethodGet, "/api/v1/users", instructor, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := api.do(t, http.MethodGet, "/api/v1/users?role=learner&status=active", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.User](t, env.Data), 3)

	rec, _ = api.do(t, http.MethodGet, "/api/v1/users/usr-003", learner, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = api.do(t, http.MethodGet, "/api/v1/users/usr-004", learner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	payload := models.CreateUserRequest{Name: "Ada Obi", Email: "ada@fincra.com", Role: models.RoleLearner, Password: "secret123"}
	rec, _ = api.do(t, http.MethodPost, "/api/v1/users", instructor, payload)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, env = api.do(t, http.MethodPost, "/api/v1/users", admin, payload)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.User](t, env.Data)
	rec, _ = api.do(t, http.MethodPost, "/api/v1/users", admin, payload)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = api.do(t, http.MethodDelete, "/api/v1/users/"+created.ID, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	logs, err := api.audit.ListAuditLogs(context.Background(), 10)
	require.NoError(t, err)
	actions := make([]string, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.Contains(t, actions, models.AuditActionUserDelete)

	rec, env = api.do(t, http.MethodGet, "/api/v1/audit-logs?limit=5", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]models.AuditLog](t, env.Data)
	require.NotEmpty(t, entries)
	assert.LessOrEqual(t, len(entries), 5)
	assert.Equal(t, models.AuditActionUserDelete, entries[0].Action)

	rec, _ = api.do(t, http.MethodGet, "/api/v1/audit-logs?limit=0", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGamificationAward(t *testing.T) {
	api := newTestAPI(t)
	learner := api.login(t, learnerEmail)
	instructor := api.login(t, instructorEmail)

	award := models.AwardRequest{UserID: "usr-005", Type: models.AwardTypePoints, Points: 80, Reason: "Mentoring"}
	rec, _ := api.do(t, http.MethodPost, "/api/v1/gamification/awards", learner, award)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/v1/gamification/awards", instructor, award)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := api.do(t, http.MethodGet, "/api/v1/gamification/learners/usr-005/stats", instructor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, decode[models.LearnerStats](t, env.Data).TotalPoints)

	rec, _ = api.do(t, http.MethodGet, "/api/v1/gamification/learners/usr-005/stats", learner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = api.do(t, http.MethodGet, "/api/v1/gamification/activities?limit=1", learner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	activities := decode[[]models.Activity](t, env.Data)
	require.Len(t, activities, 1)
	assert.Equal(t, "Awarded 80 points to Tolu Bello", activities[0].Message)
}

func TestDashboardFollowsRole(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(t, http.MethodGet, "/api/v1/dashboard", api.login(t, adminEmail), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, decode[models.AdminDashboard](t, env.Data).TotalUsers)
	assert.Equal(t, false, env.Meta["cache_hit"])

	rec, env = api.do(t, http.MethodGet, "/api/v1/dashboard", api.login(t, learnerEmail), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 750, decode[models.LearnerDashboard](t, env.Data).Stats.TotalPoints)
}

func TestReportLifecycle(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login(t, adminEmail)

	rec, _ := api.do(t, http.MethodGet, "/api/v1/reports/types", api.login(t, instructorEmail), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := api.do(t, http.MethodPost, "/api/v1/reports", admin, models.GenerateReportRequest{
		Type:     models.ReportTypeUserActivity,
		Criteria: map[string]string{"role": "learner"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var job struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &job))

	rec, env = api.do(t, http.MethodGet, "/api/v1/reports/jobs/"+job.ID, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Status    models.ReportStatus `json:"status"`
		ResultURL string              `json:"result_url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	require.Equal(t, models.ReportStatusFinished, status.Status)

	rec, _ = api.do(t, http.MethodGet, status.ResultURL, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "user_activity_")
	assert.Contains(t, rec.Body.String(), "Anna Ugwu")
	assert.NotContains(t, rec.Body.String(), "Wole Ayodele")

	rec, env = api.do(t, http.MethodGet, "/api/v1/reports/downloads", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[[]models.ReportDownload](t, env.Data))

	rec, _ = api.do(t, http.MethodGet, "/api/v1/reports/download/forged", admin, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSettingsUpdate(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login(t, adminEmail)

	rec, env := api.do(t, http.MethodGet, "/api/v1/settings", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decode[models.Settings](t, env.Data)

	security := settings.Security
	security.SessionTimeoutMinutes = 3
	rec, _ = api.do(t, http.MethodPut, "/api/v1/settings/security", admin, security)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	security.SessionTimeoutMinutes = 45
	rec, env = api.do(t, http.MethodPut, "/api/v1/settings/security", admin, security)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 45, decode[models.Settings](t, env.Data).Security.SessionTimeoutMinutes)

	rec, _ = api.do(t, http.MethodGet, "/api/v1/settings", api.login(t, learnerEmail), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	h.Health(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"uptime"`)

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
