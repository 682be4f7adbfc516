package config

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// OpenDB connects to the database selected by DB_DRIVER.
func OpenDB(s Settings) (*gorm.DB, error) {
	// In production, suppress SQL logs unless explicitly re-enabled via DEBUG_SQL=true.
	logLevel := logger.Info
	if s.IsProduction() && !s.DebugSQL {
		logLevel = logger.Warn
	}

	cfg := &gorm.Config{
		Logger: logger.New(
			log.New(LogWriter, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logLevel,
				SlowThreshold:             500 * time.Millisecond,
				IgnoreRecordNotFoundError: true,
			},
		),
	}

	var dialector gorm.Dialector
	switch s.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			s.DBUsername, s.DBPassword, s.DBHost, s.DBPort, s.DBDatabase)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(s.DBSQLitePath)
	case "mysql", "":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			s.DBUsername, s.DBPassword, s.DBHost, s.DBPort, s.DBDatabase)
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", s.DBDriver)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.DBDriver, err)
	}
	if s.DBDriver == "sqlite" {
		// sqlite serializes writers; a single connection avoids "database is locked".
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return db, nil
}

// InitDB opens the database and stores it in DB.
func InitDB(s Settings) {
	db, err := OpenDB(s)
	if err != nil {
		Log.Fatalw("Failed to connect to database", "driver", s.DBDriver, "error", err)
	}
	DB = db
	Log.Infow("Database connected successfully", "driver", s.DBDriver)
}
