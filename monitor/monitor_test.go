package monitor

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"accreditation-api/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openDB(t)
	r := gin.New()
	RegisterHealth(r, db)

	rec := get(r, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	rec = get(r, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterMetrics(r)

	rec := get(r, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMonitorPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	require.NoError(t, os.MkdirAll(filepath.Dir(config.LogFilePath()), 0o755))
	body := strings.Repeat("x", logTailBytes) + "last line\n"
	require.NoError(t, os.WriteFile(config.LogFilePath(), []byte(body), 0o644))

	disabled := gin.New()
	RegisterMonitorPage(disabled, "")
	assert.Equal(t, http.StatusNotFound, get(disabled, "/logs").Code)

	r := gin.New()
	RegisterMonitorPage(r, "s3cret")
	assert.Equal(t, http.StatusUnauthorized, get(r, "/monitor").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/logs?token=wrong").Code)

	rec := get(r, "/monitor?token=s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Accreditation API Monitor")

	rec = get(r, "/logs?token=s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Body.Bytes(), logTailBytes)
	assert.True(t, strings.HasSuffix(rec.Body.String(), "last line\n"))
}
