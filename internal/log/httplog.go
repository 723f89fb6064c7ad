package log

import (
	"time"

	"go.uber.org/zap"
)

// HTTPLogEntry describes one served request
type HTTPLogEntry struct {
	Method     string
	Path       string
	Status     int
	Duration   time.Duration
	Size       int
	RemoteAddr string
	UserAgent  string
}

// LogHTTPRequest writes a request log line. Server errors are logged at
// error level, client errors at warn and everything else at debug.
func LogHTTPRequest(logger *zap.SugaredLogger, e HTTPLogEntry) {
	if logger == nil {
		logger = GetSugaredLogger()
	}
	fields := []interface{}{
		"method", e.Method,
		"path", e.Path,
		"status", e.Status,
		"duration_ms", e.Duration.Milliseconds(),
		"size", e.Size,
		"remote_addr", e.RemoteAddr,
		"user_agent", e.UserAgent,
	}

	switch {
	case e.Status >= 500:
		logger.Errorw("http request", fields...)
	case e.Status >= 400:
		logger.Warnw("http request", fields...)
	default:
		logger.Debugw("http request", fields...)
	}
}
