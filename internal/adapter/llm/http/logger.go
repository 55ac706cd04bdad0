package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"time"
)

// Logger provides structured logging shared by the API clients and the
// review orchestrator.
type Logger interface {
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogError(ctx context.Context, message string, fields map[string]interface{})
}

// LogLevel defines the logging verbosity level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ParseLogLevel maps a config string onto a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogFormat defines the output format for logs.
type LogFormat int

const (
	LogFormatHuman LogFormat = iota
	LogFormatJSON
)

// DefaultLogger writes leveled, structured lines via the standard logger.
type DefaultLogger struct {
	level  LogLevel
	format LogFormat
}

// NewDefaultLogger creates a logger with the specified level and format.
func NewDefaultLogger(level LogLevel, format LogFormat) *DefaultLogger {
	return &DefaultLogger{level: level, format: format}
}

// LogInfo logs an informational message with structured fields.
func (l *DefaultLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	l.emit("info", message, fields)
}

// LogWarning logs a warning with structured fields.
func (l *DefaultLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelWarn {
		return
	}
	l.emit("warn", message, fields)
}

// LogError logs an error with structured fields.
func (l *DefaultLogger) LogError(ctx context.Context, message string, fields map[string]interface{}) {
	l.emit("error", message, fields)
}

func (l *DefaultLogger) emit(level, message string, fields map[string]interface{}) {
	if l.format == LogFormatJSON {
		entry := map[string]interface{}{
			"level":     level,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"message":   message,
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			log.Print(string(data))
			return
		}
	}

	line := fmt.Sprintf("[%s] %s", level, message)
	for k, v := range fields {
		line += fmt.Sprintf(" %s=%v", k, v)
	}
	log.Print(line)
}

// RedactAPIKey shows only the last 4 characters of an API key.
func RedactAPIKey(key string) string {
	if len(key) <= 4 {
		return "[REDACTED]"
	}
	return fmt.Sprintf("[REDACTED-%s]", key[len(key)-4:])
}

// secretParamRe matches credential-bearing query parameters in URLs.
var secretParamRe = regexp.MustCompile(`(key|apiKey|api_key|token|access_token)=[^&"\s]+`)

// RedactURLSecrets replaces credential-bearing query parameter values in
// text, so error messages carrying request URLs are safe to log.
func RedactURLSecrets(text string) string {
	if text == "" {
		return text
	}
	return secretParamRe.ReplaceAllString(text, "$1=[REDACTED]")
}

// MaxLoggedResponseLength bounds how much response text reaches the logs, so
// source code and secrets from the diff are not shipped to log aggregators.
const MaxLoggedResponseLength = 200

// TruncateForLogging safely truncates a model response for logging.
func TruncateForLogging(response string) string {
	if len(response) <= MaxLoggedResponseLength {
		return response
	}
	return response[:MaxLoggedResponseLength] + fmt.Sprintf("... [truncated, total length=%d bytes]", len(response))
}
