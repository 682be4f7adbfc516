package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"accreditation-api/config"
	"accreditation-api/models"
	"accreditation-api/services"
	"accreditation-api/storage"
	"accreditation-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const password = "correct-horse-battery"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiFixture struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine

	reviewerID string
	auditorID  string
}

func newAPIFixture(t *testing.T) *apiFixture {
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

	blobs, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)
	settings := config.Settings{
		JWTSecret:        "test-access-secret",
		JWTRefreshSecret: "test-refresh-secret",
		AllowedOrigins:   []string{"http://localhost:5173"},
	}
	app := services.NewApp(db, settings, services.AppDeps{Blobs: blobs})
	f := &apiFixture{t: t, db: db, router: NewRouter(app, settings)}

	f.user("admin@example.com", models.RoleAdmin)
	owner := f.user("institute@example.com", models.RoleInstitute)
	reviewerUser := f.user("reviewer@example.com", models.RoleReviewer)
	auditorUser := f.user("auditor@example.com", models.RoleAuditor)

	require.NoError(t, db.Create(&models.Institute{
		Name: "Northfield College", Code: "NFC", Type: "college",
		ContactEmail: "office@northfield.example", AdministratorID: owner.ID,
		Status: models.InstituteActive, DocumentIDs: datatypes.JSONSlice[string]{},
	}).Error)
	reviewer := &models.Reviewer{UserID: reviewerUser.ID, Specialization: datatypes.JSONSlice[string]{"academic"},
		Availability: models.Available, WorkloadMaximum: 10}
	require.NoError(t, db.Create(reviewer).Error)
	auditor := &models.Auditor{UserID: auditorUser.ID, LicenseNumber: "AUD-0001", Specialization: datatypes.JSONSlice[string]{"compliance"},
		Availability: models.Available, WorkloadMaximum: 8}
	require.NoError(t, db.Create(auditor).Error)
	f.reviewerID, f.auditorID = reviewer.ID, auditor.ID
	return f
}

func (f *apiFixture) user(email string, role models.Role) *models.User {
	f.t.Helper()
	hashed, err := utils.HashPassword(password)
	require.NoError(f.t, err)
	u := &models.User{Name: string(role) + " user", Email: email, Password: hashed, Role: role, Status: models.UserActive}
	require.NoError(f.t, f.db.Create(u).Error)
	return u
}

func (f *apiFixture) send(req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	f.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if bytes.HasPrefix(bytes.TrimSpace(rec.Body.Bytes()), []byte("{")) {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func (f *apiFixture) call(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	f.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return f.send(req, token)
}

func (f *apiFixture) login(email string) string {
	f.t.Helper()
	rec, env := f.call(http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
	var session struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(f.t, json.Unmarshal(env.Data, &session))
	require.NotEmpty(f.t, session.AccessToken)
	assert.Empty(f.t, session.RefreshToken)
	return session.AccessToken
}

func (f *apiFixture) upload(token, title, mimeType string, content []byte) (*httptest.ResponseRecorder, envelope) {
	f.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(f.t, w.WriteField("title", title))
	require.NoError(f.t, w.WriteField("type", "accreditation_application"))
	require.NoError(f.t, w.WriteField("tags", "2026, self-study"))
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="document"; filename="application.pdf"`)
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	require.NoError(f.t, err)
	_, err = part.Write(content)
	require.NoError(f.t, err)
	require.NoError(f.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return f.send(req, token)
}

func decode[T any](t *testing.T, env envelope, key string) T {
	t.Helper()
	var wrapper map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &wrapper))
	var out T
	require.NoError(t, json.Unmarshal(wrapper[key], &out))
	return out
}

func TestAccreditationFlow(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.login("admin@example.com")
	institute := f.login("institute@example.com")
	reviewer := f.login("reviewer@example.com")
	auditor := f.login("auditor@example.com")

	content := []byte("%PDF-1.7 self study")
	rec, env := f.upload(institute, "Self Study Report", "application/pdf", content)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decode[models.Document](t, env, "document")
	assert.Equal(t, models.StatusUploaded, doc.Status)
	assert.Equal(t, []string{"2026", "self-study"}, []string(doc.Tags))

	rec, _ = f.call(http.MethodPost, "/api/admin/assign-reviewer", admin, gin.H{"documentId": doc.ID, "reviewerId": f.reviewerID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = f.call(http.MethodGet, "/api/documents/assigned", reviewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), doc.ID)

	rec, env = f.call(http.MethodPost, "/api/reviews/start/"+doc.ID, reviewer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	review := decode[models.Review](t, env, "review")

	rec, env = f.call(http.MethodPut, "/api/reviews/"+review.ID, reviewer, gin.H{
		"criteria": []gin.H{{"name": "Governance", "score": 80, "weight": 1}, {"name": "Facilities", "score": 60, "weight": 1}},
		"reason":   "first pass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	review = decode[models.Review](t, env, "review")
	require.NotNil(t, review.OverallScore)
	assert.Equal(t, 70, *review.OverallScore)

	rec, _ = f.call(http.MethodPost, "/api/reviews/"+review.ID+"/submit", reviewer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = f.call(http.MethodPost, "/api/reviews/"+review.ID+"/submit", reviewer, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = f.call(http.MethodPost, "/api/admin/assign-auditor", admin, gin.H{"documentId": doc.ID, "auditorId": f.auditorID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = f.call(http.MethodPost, "/api/audits/start/"+doc.ID, auditor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	audit := decode[models.Audit](t, env, "audit")

	rec, _ = f.call(http.MethodPost, "/api/audits/"+audit.ID+"/findings", auditor, gin.H{
		"category": "minor", "description": "Library hours are not published",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = f.call(http.MethodPost, "/api/audits/"+audit.ID+"/submit", auditor, gin.H{"final_decision": "approved"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = f.call(http.MethodPost, "/api/audits/"+audit.ID+"/submit", auditor, gin.H{
		"final_decision": "approved", "justification": "Meets every standard", "final_score": 88,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	audit = decode[models.Audit](t, env, "audit")
	assert.Equal(t, models.AuditCompleted, audit.Status)

	rec, env = f.call(http.MethodGet, "/api/documents/"+doc.ID, institute, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusApproved, decode[models.Document](t, env, "document").Status)

	rec, _ = f.call(http.MethodGet, "/api/documents/"+doc.ID+"/download", institute, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "application.pdf")

	rec, env = f.call(http.MethodGet, "/api/documents/"+doc.ID+"/history", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history services.DocumentHistory
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history.Reviews, 1)
	assert.Len(t, history.Audits, 1)

	rec, env = f.call(http.MethodGet, "/api/admin/dashboard", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dash services.Dashboard
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.EqualValues(t, 1, dash.Overview.TotalDocuments)
}

func TestErrorMapping(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.login("admin@example.com")
	institute := f.login("institute@example.com")
	reviewer := f.login("reviewer@example.com")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
	}{
		{"no token", http.MethodGet, "/api/documents", "", nil, http.StatusUnauthorized},
		{"wrong role", http.MethodGet, "/api/admin/dashboard", reviewer, nil, http.StatusForbidden},
		{"missing document", http.MethodGet, "/api/documents/" + uuid.NewString(), admin, nil, http.StatusNotFound},
		{"unknown status override", http.MethodPut, "/api/documents/" + uuid.NewString() + "/status", admin, gin.H{"status": "shredded"}, http.StatusBadRequest},
		{"missing reviewer id", http.MethodPost, "/api/admin/assign-reviewer", admin, gin.H{"documentId": "x"}, http.StatusBadRequest},
		{"review start without assignment", http.MethodPost, "/api/reviews/start/" + uuid.NewString(), reviewer, nil, http.StatusNotFound},
		{"other user's logs", http.MethodGet, "/api/logs/user/someone-else", institute, nil, http.StatusForbidden},
		{"unknown route", http.MethodGet, "/api/nothing", admin, nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := f.call(tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	f := newAPIFixture(t)
	institute := f.login("institute@example.com")

	rec, env := f.upload(institute, "Script", "application/x-sh", []byte("#!/bin/sh"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "Invalid file type")

	var n int64
	require.NoError(t, f.db.Model(&models.Document{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestRegisterLoginRefresh(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.call(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "New Person", "email": "new@example.com", "password": password, "role": "institute",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, models.UserPending, decode[models.User](t, env, "user").Status)

	rec, _ = f.call(http.MethodPost, "/api/auth/login", "", gin.H{"email": "new@example.com", "password": password})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.call(http.MethodPost, "/api/auth/login", "", gin.H{"email": "admin@example.com", "password": password})
	require.Equal(t, http.StatusOK, rec.Code)
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refreshToken" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(cookie)
	rec, env = f.send(req, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refreshed struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &refreshed))

	rec, env = f.call(http.MethodGet, "/api/auth/profile", refreshed.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@example.com", decode[models.User](t, env, "user").Email)
}

func TestLogEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.login("admin@example.com")

	rec, env := f.call(http.MethodGet, "/api/logs?category=authentication", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page services.LogPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.NotEmpty(t, page.Logs)

	rec, _ = f.call(http.MethodGet, "/api/logs/summary?timeframe=7d", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.call(http.MethodPost, "/api/logs/export", admin, gin.H{"format": "csv"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Body.String(), "Timestamp,User,Role,Action")

	rec, _ = f.call(http.MethodPost, "/api/logs/export", admin, gin.H{"format": "xml"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = f.call(http.MethodDelete, "/api/logs/cleanup", admin, gin.H{"days": 30})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res services.CleanupResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Zero(t, res.Deleted)

	var n int64
	require.NoError(t, f.db.Model(&models.ActivityLog{}).Where("action = ?", models.ActionDataExport).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}
