package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds the runtime configuration read from the environment.
type Settings struct {
	ServerPort  string
	GinMode     string
	Environment string

	DBDriver     string
	DBHost       string
	DBPort       string
	DBDatabase   string
	DBUsername   string
	DBPassword   string
	DBSQLitePath string
	DebugSQL     bool

	JWTSecret          string
	JWTRefreshSecret   string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	LoginMaxAttempts   int
	LoginLockDuration  time.Duration
	LogRetentionDays   int
	LogCleanupSchedule string

	ClientURL      string
	AllowedOrigins []string

	StorageDriver string
	UploadPath    string
	GCSBucket     string

	RedisURL string

	MonitorToken string

	Mail MailSettings
}

// Load reads Settings from the process environment. Call after godotenv.Load.
func Load() Settings {
	return Settings{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		GinMode:     os.Getenv("GIN_MODE"),
		Environment: strings.ToLower(getEnv("ENVIRONMENT", "development")),

		DBDriver:     strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBPort:       getEnv("DB_PORT", "3306"),
		DBDatabase:   getEnv("DB_DATABASE", "accreditation"),
		DBUsername:   os.Getenv("DB_USERNAME"),
		DBPassword:   os.Getenv("DB_PASSWORD"),
		DBSQLitePath: getEnv("DB_SQLITE_PATH", "accreditation.db"),
		DebugSQL:     strings.ToLower(os.Getenv("DEBUG_SQL")) == "true",

		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTRefreshSecret:   getEnv("JWT_REFRESH_SECRET", os.Getenv("JWT_SECRET")),
		AccessTokenTTL:     time.Duration(getEnvInt("JWT_EXPIRE_MINUTES", 15)) * time.Minute,
		RefreshTokenTTL:    time.Duration(getEnvInt("JWT_REFRESH_EXPIRE_HOURS", 168)) * time.Hour,
		LoginMaxAttempts:   getEnvInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginLockDuration:  time.Duration(getEnvInt("LOGIN_LOCK_MINUTES", 120)) * time.Minute,
		LogRetentionDays:   getEnvInt("LOG_RETENTION_DAYS", 365),
		LogCleanupSchedule: getEnv("LOG_CLEANUP_SCHEDULE", "@daily"),

		ClientURL:      getEnv("CLIENT_URL", "http://localhost:5173"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
		UploadPath:    getEnv("UPLOAD_PATH", "./uploads"),
		GCSBucket:     os.Getenv("GCS_BUCKET"),

		RedisURL: os.Getenv("REDIS_URL"),

		MonitorToken: os.Getenv("MONITOR_TOKEN"),

		Mail: loadMailSettings(),
	}
}

// IsProduction reports whether the service runs with production defaults.
func (s Settings) IsProduction() bool {
	return s.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
