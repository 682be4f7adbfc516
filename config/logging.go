package config

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Log is the application logger. It is a no-op logger until InitLogging runs.
	Log = zap.NewNop().Sugar()

	// LogWriter is the writer used for database logs.
	LogWriter io.Writer = os.Stdout
)

// LogFilePath returns the path to the backend log file.
func LogFilePath() string {
	return filepath.Join("logs", "accreditation-api.log")
}

// InitLogging builds the zap logger, writing to stdout and the log file.
// The returned file is nil when the log file could not be opened.
func InitLogging(production bool) (*os.File, *zap.SugaredLogger) {
	encCfg := zap.NewDevelopmentEncoderConfig()
	level := zap.DebugLevel
	if production {
		encCfg = zap.NewProductionEncoderConfig()
		level = zap.InfoLevel
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sinks := []zapcore.WriteSyncer{zapcore.Lock(os.Stdout)}

	var logFile *os.File
	if err := os.MkdirAll(filepath.Dir(LogFilePath()), os.ModePerm); err == nil {
		f, err := os.OpenFile(LogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			logFile = f
			sinks = append(sinks, zapcore.AddSync(f))
		}
	}

	var encoder zapcore.Encoder
	if production {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), zap.NewAtomicLevelAt(level))
	logger := zap.New(core, zap.AddCaller())
	Log = logger.Sugar()

	if logFile != nil {
		LogWriter = io.MultiWriter(os.Stdout, logFile)
	}
	if logFile == nil {
		Log.Warnw("log file unavailable, logging to stdout only", "path", LogFilePath())
	}
	return logFile, Log
}
