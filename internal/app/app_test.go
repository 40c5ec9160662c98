package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"lms_backend/pkg/database"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t   *testing.T
	app *App
	db  *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		Server:      config.ServerConfig{Mode: gin.TestMode},
		JWT:         config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
		Storage:     config.StorageConfig{Type: util.StorageLocal, LocalPath: t.TempDir()},
		CORS:        config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		RateLimit:   config.RateLimitConfig{MaxRequests: 1000, WindowMinutes: 1},
		Progression: config.ProgressionConfig{ModulePassingScore: 80, LessonPassingScore: 80, MaxAttempts: 3, AppealWindowDays: 30},
	}
	a := New(cfg, db, nil)
	t.Cleanup(func() { a.Close(context.Background()) })
	return &testServer{t: t, app: a, db: db}
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.app.Router.ServeHTTP(w, req)

	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func (s *testServer) user(role model.UserRole) (*model.User, string) {
	s.t.Helper()
	u := &model.User{Name: string(role), Email: uuid.NewString() + "@example.com", Password: "x", Role: role}
	require.NoError(s.t, s.db.Create(u).Error)
	token, err := util.GenerateJWT(u, s.app.Config.JWT.Secret, s.app.Config.JWT.Issuer, time.Hour)
	require.NoError(s.t, err)
	return u, token
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	w, resp := s.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	var data struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "ok", data.Status)
	assert.Equal(t, "up", data.Components["database"])
	assert.Equal(t, "disabled", data.Components["redis"])
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = s.do(http.MethodGet, "/api/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, "/api/register", "", gin.H{"name": "Ada", "email": "bad-email", "password": "password123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	register := gin.H{"name": "Ada", "email": "ada@example.com", "password": "password123"}
	w, _ = s.do(http.MethodPost, "/api/register", "", register)
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = s.do(http.MethodPost, "/api/register", "", register)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(http.MethodPost, "/api/login", "", gin.H{"email": "ada@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := s.do(http.MethodPost, "/api/login", "", gin.H{"email": "ada@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &login))
	require.NotEmpty(t, login.Token)

	w, resp = s.do(http.MethodGet, "/api/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me model.User
	require.NoError(t, json.Unmarshal(resp.Data, &me))
	assert.Equal(t, "ada@example.com", me.Email)
	assert.Equal(t, model.Student, me.Role)
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	s := newTestServer(t)
	u, _ := s.user(model.Student)

	expired, err := util.GenerateJWT(u, s.app.Config.JWT.Secret, s.app.Config.JWT.Issuer, -time.Minute)
	require.NoError(t, err)
	w, resp := s.do(http.MethodGet, "/api/me", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token expired", resp.Message)

	foreign, err := util.GenerateJWT(u, s.app.Config.JWT.Secret, "another-service", time.Hour)
	require.NoError(t, err)
	w, resp = s.do(http.MethodGet, "/api/me", foreign, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized", resp.Message)
}

func TestRoleRouting(t *testing.T) {
	s := newTestServer(t)
	_, studentToken := s.user(model.Student)
	_, instructorToken := s.user(model.Instructor)
	_, adminToken := s.user(model.Admin)

	course := gin.H{"title": "Go Fundamentals"}
	w, _ := s.do(http.MethodPost, "/api/instructor/courses", studentToken, course)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(http.MethodPost, "/api/instructor/courses", instructorToken, course)
	assert.Equal(t, http.StatusCreated, w.Code)
	w, _ = s.do(http.MethodPost, "/api/instructor/courses", adminToken, course)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, _ = s.do(http.MethodGet, "/api/admin/appeals/pending", instructorToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(http.MethodGet, "/api/admin/appeals/pending", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLessonAndModuleEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(model.Student)

	course := &model.Course{Title: "Go Fundamentals", IsPublished: true}
	require.NoError(t, s.db.Create(course).Error)
	module := &model.Module{CourseID: course.ID, Title: "Basics", Order: 1, MaxAttempts: 3}
	require.NoError(t, s.db.Create(module).Error)
	lesson := &model.Lesson{ModuleID: module.ID, Title: "Hello", Order: 1}
	require.NoError(t, s.db.Create(lesson).Error)

	lessonPath := fmt.Sprintf("/api/student/lessons/%d", lesson.ID)
	w, _ := s.do(http.MethodPost, lessonPath+"/progress", token, gin.H{"readingProgress": 50})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodPost, fmt.Sprintf("/api/student/courses/%d/enroll", course.ID), token, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = s.do(http.MethodPost, lessonPath+"/progress", token, gin.H{"readingProgress": 50, "engagementScore": 80})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := s.do(http.MethodPost, lessonPath+"/complete", token, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "Lesson requirements not yet met", resp.Message)

	w, resp = s.do(http.MethodPost, fmt.Sprintf("/api/learning/module/%d/retake", module.ID), token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Module is not in failed status", resp.Message)

	w, _ = s.do(http.MethodGet, "/api/student/lessons/abc/score", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPost, lessonPath+"/progress", token, gin.H{"readingProgress": 100, "engagementScore": 80})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(http.MethodPost, lessonPath+"/complete", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, fmt.Sprintf("/api/student/progress/course/%d", course.ID), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/courses", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.app.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestScheduler(t *testing.T) {
	s := newTestServer(t)

	_, err := newScheduler("not a cron spec", s.app.services.progression, s.app.services.achievement)
	assert.Error(t, err)

	c, err := newScheduler("0 3 * * *", s.app.services.progression, s.app.services.achievement)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	// 没有数据时维护任务也能正常结束
	runMaintenance(s.app.services.progression, s.app.services.achievement)
}

func TestConfigCallbackUpdatesPolicy(t *testing.T) {
	s := newTestServer(t)
	cfg := *s.app.Config
	cfg.Progression.ModulePassingScore = 65
	for _, cb := range s.app.configCallbacks {
		cb(&cfg)
	}
	assert.Equal(t, 65.0, s.app.services.progression.Policy().ModulePassingScore)
}
