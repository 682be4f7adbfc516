package monitor

import (
	"crypto/subtle"
	"io"
	"net/http"
	"os"
	"time"

	"accreditation-api/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// logTailBytes is how much of the log file /logs returns.
const logTailBytes = 256 << 10

// RegisterHealth mounts /health and /api/health. Both report database reachability.
func RegisterHealth(router *gin.Engine, db *gorm.DB) {
	started := time.Now()
	handler := func(c *gin.Context) {
		dbStatus := "ok"
		status := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			dbStatus = "unreachable"
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"success":   status == http.StatusOK,
			"status":    dbStatus,
			"uptime":    time.Since(started).Round(time.Second).String(),
			"timestamp": time.Now().UTC(),
		})
	}
	router.GET("/health", handler)
	router.GET("/api/health", handler)
}

// RegisterMetrics exposes the Prometheus registry at /metrics.
func RegisterMetrics(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func tokenOK(c *gin.Context, token string) bool {
	got := c.Query("token")
	return token != "" && subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

// RegisterMonitorPage mounts the live log viewer. Without a token both routes stay unregistered.
func RegisterMonitorPage(router *gin.Engine, token string) {
	if token == "" {
		return
	}
	router.GET("/monitor", func(c *gin.Context) {
		if !tokenOK(c, token) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(monitorPage))
	})
	router.GET("/logs", func(c *gin.Context) {
		if !tokenOK(c, token) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		data, err := tail(config.LogFilePath(), logTailBytes)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Unable to read log"})
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
	})
}

// tail returns at most n bytes from the end of path.
func tail(path string, n int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > n {
		if _, err := f.Seek(-n, io.SeekEnd); err != nil {
			return nil, err
		}
	}
	return io.ReadAll(f)
}

const monitorPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>Accreditation API Monitor</title>
  <style>
    body { background: #0f0f0f; color: #e0e0e0; font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; padding: 20px; }
    .container { max-width: 1200px; margin: 0 auto; }
    .card { background: rgba(255,255,255,0.05); border: 1px solid rgba(255,255,255,0.1); border-radius: 16px; padding: 1.5rem; margin-bottom: 2rem; }
    #logs { background: #000; border-radius: 12px; padding: 1rem; max-height: 600px; overflow-y: auto; white-space: pre-wrap; font-family: 'Monaco', 'Menlo', monospace; font-size: 0.85rem; }
    button { background: #667eea; color: #fff; border: none; padding: 0.5rem 1rem; border-radius: 8px; cursor: pointer; }
    button.paused { background: #f5576c; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Accreditation API Monitor</h1>
    <div class="card"><div id="status">Status: Checking...</div></div>
    <div class="card">
      <button onclick="toggleLive()" id="toggleBtn">Pause Live Logs</button>
      <pre id="logs">Loading logs...</pre>
    </div>
  </div>
  <script>
    const token = new URLSearchParams(window.location.search).get('token') || '';
    let liveLogs = true;
    const logsElement = document.getElementById('logs');
    const statusElement = document.getElementById('status');
    const toggleBtn = document.getElementById('toggleBtn');

    function fetchStatus() {
      fetch('/health')
        .then(res => res.json())
        .then(data => { statusElement.textContent = 'Status: ' + (data.success ? 'Online' : 'Degraded (' + data.status + ')') + ', up ' + data.uptime; })
        .catch(() => { statusElement.textContent = 'Status: Offline'; });
    }

    function fetchLogs() {
      if (!liveLogs) return;
      fetch('/logs?token=' + encodeURIComponent(token))
        .then(res => res.text())
        .then(data => { logsElement.textContent = data; logsElement.scrollTop = logsElement.scrollHeight; });
    }

    function toggleLive() {
      liveLogs = !liveLogs;
      toggleBtn.textContent = liveLogs ? 'Pause Live Logs' : 'Resume Live Logs';
      toggleBtn.classList.toggle('paused', !liveLogs);
    }

    fetchStatus();
    fetchLogs();
    setInterval(fetchStatus, 5000);
    setInterval(fetchLogs, 5000);
  </script>
</body>
</html>`
