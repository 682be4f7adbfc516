package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"accreditation-api/models"
	"accreditation-api/services"
	"accreditation-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type authFixture struct {
	db       *gorm.DB
	log      *services.ActivityLog
	identity *services.IdentityService
	token    string
	user     *models.User
}

func newAuthFixture(t *testing.T, role models.Role) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	hashed, err := utils.HashPassword("correct-horse-battery")
	require.NoError(t, err)
	user := &models.User{Name: "Ada Admin", Email: "ada@example.com", Password: hashed, Role: role, Status: models.UserActive}
	require.NoError(t, db.Create(user).Error)

	log := services.NewActivityLog(db)
	identity := services.NewIdentityService(db, services.IdentityConfig{AccessSecret: "test-access-secret"}, log, nil)
	session, err := identity.Login(context.Background(), user.Email, "correct-horse-battery", services.RequestContext{})
	require.NoError(t, err)

	return &authFixture{db: db, log: log, identity: identity, token: session.AccessToken, user: user}
}

func (f *authFixture) router(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Correlation())
	r.Use(ActivityLogger(f.log))
	chain := append([]gin.HandlerFunc{AuthMiddleware(f.identity)}, handlers...)
	chain = append(chain, func(c *gin.Context) {
		rc := RequestContext(c)
		c.JSON(http.StatusOK, gin.H{"id": Actor(c).ID, "session": rc.SessionID, "ip": rc.IP})
	})
	r.GET("/api/private", chain...)
	return r
}

func (f *authFixture) apiRequests(t *testing.T) []models.ActivityLog {
	t.Helper()
	var out []models.ActivityLog
	require.NoError(t, f.db.Where("action = ?", models.APIRequestAction(http.MethodGet)).Find(&out).Error)
	return out
}

func TestAuthMiddleware(t *testing.T) {
	f := newAuthFixture(t, models.RoleAdmin)
	r := f.router()

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + f.token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + f.token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/private", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestAuthMiddleware_RejectsInactiveUser(t *testing.T) {
	f := newAuthFixture(t, models.RoleAdmin)
	require.NoError(t, f.db.Model(f.user).Update("status", models.UserSuspended).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/private", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	rec := httptest.NewRecorder()
	f.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Account is not active")
}

func TestRequireRole(t *testing.T) {
	f := newAuthFixture(t, models.RoleReviewer)

	req := httptest.NewRequest(http.MethodGet, "/api/private", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	rec := httptest.NewRecorder()
	f.router(RequireRole(models.RoleAdmin)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "User role reviewer is not authorized")

	rec = httptest.NewRecorder()
	f.router(RequireRole(models.RoleAdmin, models.RoleReviewer)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActivityLogger(t *testing.T) {
	f := newAuthFixture(t, models.RoleAdmin)
	r := f.router()

	req := httptest.NewRequest(http.MethodGet, "/api/private?page=2", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set(CorrelationHeader, "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(CorrelationHeader))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/private", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(CorrelationHeader))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	logs := f.apiRequests(t)
	require.Len(t, logs, 2)

	byCorrelation := map[string]models.ActivityLog{}
	for _, l := range logs {
		byCorrelation[l.CorrelationID] = l
	}
	ok := byCorrelation["req-123"]
	require.NotNil(t, ok.UserID)
	assert.Equal(t, f.user.ID, *ok.UserID)
	assert.Equal(t, models.LogSuccess, ok.Status)
	assert.Equal(t, "page=2", ok.Details["query"])
	assert.NotEmpty(t, ok.SessionID)

	for id, l := range byCorrelation {
		if id == "req-123" {
			continue
		}
		assert.Nil(t, l.UserID)
		assert.Equal(t, models.SeverityHigh, l.Severity)
		assert.Equal(t, models.LogFailure, l.Status)
		assert.EqualValues(t, http.StatusUnauthorized, l.Details["statusCode"])
	}
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://localhost:5173"}))
	r.OPTIONS("/api/auth/login", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
